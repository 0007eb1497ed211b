// Package contract holds the contract artifact recorded by consumers and replayed
// against providers, encoded as a pact v2 document.
package contract

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/form3tech-oss/pact-harness/internal/app/matchers"
	"github.com/pkg/errors"
)

const (
	SpecVersion              = 2
	pactSpecificationVersion = "2.0.0"
)

var ErrInvalidArtifact = errors.New("invalid contract artifact")

type Request struct {
	Method  string
	Path    *matchers.Matcher
	Query   string
	Headers map[string]*matchers.Matcher
	Body    *matchers.Matcher
}

type Response struct {
	Status  int
	Headers map[string]*matchers.Matcher
	Body    *matchers.Matcher
}

// Interaction is one expected request/response pair and the provider state it needs.
type Interaction struct {
	Description   string
	ProviderState string
	Request       Request
	Response      Response
}

type Artifact struct {
	Consumer     string
	Provider     string
	SpecVersion  int
	Interactions []Interaction
}

func NewArtifact(consumer, provider string) *Artifact {
	return &Artifact{Consumer: consumer, Provider: provider, SpecVersion: SpecVersion}
}

// Find returns the interaction with the given description.
func (a *Artifact) Find(description string) (Interaction, bool) {
	for _, i := range a.Interactions {
		if i.Description == description {
			return i, true
		}
	}
	return Interaction{}, false
}

// Key identifies the artifact by its consumer and provider, e.g. "frontend-carts".
func (a *Artifact) Key() string {
	return a.Consumer + "-" + a.Provider
}

func (r Request) PathExample() string {
	if s, ok := matchers.ExampleOf(r.Path).(string); ok {
		return s
	}
	return "/"
}

func (i Interaction) String() string {
	return fmt.Sprintf("%s %s (%s)", i.Request.Method, i.Request.PathExample(), i.Description)
}

type pacticipant struct {
	Name string `json:"name"`
}

type versionDocument struct {
	Version string `json:"version"`
}

// metadata accepts the v3 "pactSpecification" form on read, but only writes the v2 form.
type metadata struct {
	PactSpecificationVersion string           `json:"pactSpecificationVersion,omitempty"`
	PactSpecification        *versionDocument `json:"pactSpecification,omitempty"`
}

type artifactDocument struct {
	Consumer     pacticipant   `json:"consumer"`
	Provider     pacticipant   `json:"provider"`
	Interactions []Interaction `json:"interactions"`
	Metadata     metadata      `json:"metadata"`
}

type requestDocument struct {
	Method        string            `json:"method"`
	Path          string            `json:"path"`
	Query         string            `json:"query,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          json.RawMessage   `json:"body,omitempty"`
	MatchingRules matchers.Rules    `json:"matchingRules,omitempty"`
}

type responseDocument struct {
	Status        int               `json:"status"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          json.RawMessage   `json:"body,omitempty"`
	MatchingRules matchers.Rules    `json:"matchingRules,omitempty"`
}

type interactionDocument struct {
	Description   string           `json:"description"`
	ProviderState string           `json:"providerState,omitempty"`
	Request       requestDocument  `json:"request"`
	Response      responseDocument `json:"response"`
}

func (a Artifact) MarshalJSON() ([]byte, error) {
	doc := artifactDocument{
		Consumer:     pacticipant{Name: a.Consumer},
		Provider:     pacticipant{Name: a.Provider},
		Interactions: a.Interactions,
	}
	if doc.Interactions == nil {
		doc.Interactions = []Interaction{}
	}
	doc.Metadata.PactSpecificationVersion = pactSpecificationVersion
	return json.Marshal(doc)
}

func (a *Artifact) UnmarshalJSON(data []byte) error {
	var doc artifactDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	version := doc.Metadata.PactSpecificationVersion
	if version == "" && doc.Metadata.PactSpecification != nil {
		version = doc.Metadata.PactSpecification.Version
	}

	*a = Artifact{
		Consumer:     doc.Consumer.Name,
		Provider:     doc.Provider.Name,
		SpecVersion:  majorVersion(version),
		Interactions: doc.Interactions,
	}
	return nil
}

func majorVersion(version string) int {
	var major int
	if _, err := fmt.Sscanf(version, "%d", &major); err != nil {
		return SpecVersion
	}
	return major
}

func (i Interaction) MarshalJSON() ([]byte, error) {
	req, err := encodeRequest(i.Request)
	if err != nil {
		return nil, errors.Wrapf(err, "interaction '%s'", i.Description)
	}
	res, err := encodeResponse(i.Response)
	if err != nil {
		return nil, errors.Wrapf(err, "interaction '%s'", i.Description)
	}
	return json.Marshal(interactionDocument{
		Description:   i.Description,
		ProviderState: i.ProviderState,
		Request:       req,
		Response:      res,
	})
}

func (i *Interaction) UnmarshalJSON(data []byte) error {
	var doc interactionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	doc.Request.MatchingRules = canonicalRules(doc.Request.MatchingRules)
	doc.Response.MatchingRules = canonicalRules(doc.Response.MatchingRules)

	body, err := decodeBody(doc.Request.Body, doc.Request.MatchingRules)
	if err != nil {
		return errors.Wrapf(err, "interaction '%s' request", doc.Description)
	}
	responseBody, err := decodeBody(doc.Response.Body, doc.Response.MatchingRules)
	if err != nil {
		return errors.Wrapf(err, "interaction '%s' response", doc.Description)
	}

	*i = Interaction{
		Description:   doc.Description,
		ProviderState: doc.ProviderState,
		Request: Request{
			Method:  strings.ToUpper(doc.Request.Method),
			Path:    matchers.Decode(doc.Request.Path, doc.Request.MatchingRules.Scoped("$.path"), "$.path"),
			Query:   doc.Request.Query,
			Headers: decodeHeaders(doc.Request.Headers, doc.Request.MatchingRules),
			Body:    body,
		},
		Response: Response{
			Status:  doc.Response.Status,
			Headers: decodeHeaders(doc.Response.Headers, doc.Response.MatchingRules),
			Body:    responseBody,
		},
	}
	return nil
}

func encodeRequest(r Request) (requestDocument, error) {
	rules := matchers.Rules{}
	path := "/"
	if r.Path != nil {
		example, pathRules := matchers.Encode(r.Path, "$.path")
		s, ok := example.(string)
		if !ok {
			return requestDocument{}, errors.Errorf("request path example %v is not a string", example)
		}
		path = s
		rules.Merge(pathRules)
	}

	headers, headerRules := encodeHeaders(r.Headers)
	rules.Merge(headerRules)

	body, bodyRules, err := encodeBody(r.Body)
	if err != nil {
		return requestDocument{}, errors.Wrap(err, "request")
	}
	rules.Merge(bodyRules)

	doc := requestDocument{
		Method:  strings.ToUpper(r.Method),
		Path:    path,
		Query:   r.Query,
		Headers: headers,
		Body:    body,
	}
	if len(rules) > 0 {
		doc.MatchingRules = rules
	}
	return doc, nil
}

func encodeResponse(r Response) (responseDocument, error) {
	rules := matchers.Rules{}
	headers, headerRules := encodeHeaders(r.Headers)
	rules.Merge(headerRules)

	body, bodyRules, err := encodeBody(r.Body)
	if err != nil {
		return responseDocument{}, errors.Wrap(err, "response")
	}
	rules.Merge(bodyRules)

	doc := responseDocument{Status: r.Status, Headers: headers, Body: body}
	if len(rules) > 0 {
		doc.MatchingRules = rules
	}
	return doc, nil
}

func headerPath(name string) string {
	return matchers.ChildPath("$.headers", name)
}

// canonicalRules rewrites header rules keyed the way other pact tools write them,
// $.headers.Content-Type or $.headers['Content-Type'], to the headerPath form.
func canonicalRules(rules matchers.Rules) matchers.Rules {
	if len(rules) == 0 {
		return rules
	}
	out := make(matchers.Rules, len(rules))
	for path, rule := range rules {
		out[canonicalHeaderPath(path)] = rule
	}
	return out
}

func canonicalHeaderPath(path string) string {
	rest := strings.TrimPrefix(path, "$.headers")
	switch {
	case rest == path || rest == "":
		return path
	case strings.HasPrefix(rest, "."):
		return headerPath(rest[1:])
	case strings.HasPrefix(rest, "['") && strings.HasSuffix(rest, "']"):
		return headerPath(strings.ReplaceAll(rest[2:len(rest)-2], `\'`, "'"))
	}
	return path
}

func encodeHeaders(headers map[string]*matchers.Matcher) (map[string]string, matchers.Rules) {
	if len(headers) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(headers))
	rules := matchers.Rules{}
	for name, m := range headers {
		example, headerRules := matchers.Encode(m, headerPath(name))
		out[name] = fmt.Sprint(example)
		rules.Merge(headerRules)
	}
	return out, rules
}

func decodeHeaders(headers map[string]string, rules matchers.Rules) map[string]*matchers.Matcher {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]*matchers.Matcher, len(headers))
	for name, value := range headers {
		out[name] = matchers.Decode(value, rules, headerPath(name))
	}
	return out
}

func encodeBody(m *matchers.Matcher) (json.RawMessage, matchers.Rules, error) {
	if m == nil {
		return nil, nil, nil
	}
	example, rules := matchers.Encode(m, "$.body")
	data, err := json.Marshal(example)
	if err != nil {
		return nil, nil, errors.Wrap(err, "unable to encode body example")
	}
	return data, rules, nil
}

func decodeBody(raw json.RawMessage, rules matchers.Rules) (*matchers.Matcher, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var example interface{}
	if err := json.Unmarshal(raw, &example); err != nil {
		return nil, errors.Wrap(err, "unable to decode body")
	}
	return matchers.Decode(example, rules.Scoped("$.body"), "$.body"), nil
}

// HeaderValues renders the example of every header, sorted by name.
func HeaderValues(headers map[string]*matchers.Matcher) http.Header {
	out := http.Header{}
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out.Set(name, fmt.Sprint(matchers.ExampleOf(headers[name])))
	}
	return out
}

// BodyBytes renders the example of a body, nil when no body is expected.
func BodyBytes(m *matchers.Matcher) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(matchers.ExampleOf(m))
}
