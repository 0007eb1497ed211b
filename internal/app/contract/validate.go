package contract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/form3tech-oss/pact-harness/internal/app/matchers"
	"github.com/pkg/errors"
)

// Validate checks the artifact is self consistent: it names both pacticipants,
// descriptions are unique, every matcher accepts its own example and every
// matching rule addresses a value present in the example it was written with.
func (a *Artifact) Validate() error {
	if a.Consumer == "" || a.Provider == "" {
		return errors.Wrap(ErrInvalidArtifact, "consumer and provider names are required")
	}

	seen := map[string]bool{}
	for _, i := range a.Interactions {
		if seen[i.Description] {
			return errors.Wrapf(ErrInvalidArtifact, "duplicate interaction '%s'", i.Description)
		}
		seen[i.Description] = true

		if err := i.Validate(); err != nil {
			return errors.Wrapf(ErrInvalidArtifact, "%s", err.Error())
		}
	}
	return nil
}

func (i Interaction) Validate() error {
	if strings.TrimSpace(i.Description) == "" {
		return errors.New("interaction description is required")
	}
	if i.Request.Method == "" {
		return errors.Errorf("interaction '%s' has no request method", i.Description)
	}
	if i.Response.Status < 100 || i.Response.Status > 599 {
		return errors.Errorf("interaction '%s' has invalid response status %d", i.Description, i.Response.Status)
	}

	for name, m := range i.matchers() {
		if err := matchers.Validate(m); err != nil {
			return errors.Wrapf(err, "interaction '%s' %s", i.Description, name)
		}
	}

	req, err := encodeRequest(i.Request)
	if err != nil {
		return errors.Wrapf(err, "interaction '%s'", i.Description)
	}
	if err := checkRulePaths(req.MatchingRules, requestExample(req)); err != nil {
		return errors.Wrapf(err, "interaction '%s' request", i.Description)
	}

	res, err := encodeResponse(i.Response)
	if err != nil {
		return errors.Wrapf(err, "interaction '%s'", i.Description)
	}
	if err := checkRulePaths(res.MatchingRules, responseExample(res)); err != nil {
		return errors.Wrapf(err, "interaction '%s' response", i.Description)
	}
	return nil
}

func (i Interaction) matchers() map[string]*matchers.Matcher {
	out := map[string]*matchers.Matcher{}
	if i.Request.Path != nil {
		out["request path"] = i.Request.Path
	}
	if i.Request.Body != nil {
		out["request body"] = i.Request.Body
	}
	if i.Response.Body != nil {
		out["response body"] = i.Response.Body
	}
	for name, m := range i.Request.Headers {
		out[fmt.Sprintf("request header %s", name)] = m
	}
	for name, m := range i.Response.Headers {
		out[fmt.Sprintf("response header %s", name)] = m
	}
	return out
}

func requestExample(doc requestDocument) map[string]interface{} {
	return map[string]interface{}{
		"path":    doc.Path,
		"headers": headerExample(doc.Headers),
		"body":    bodyExample(doc.Body),
	}
}

func responseExample(doc responseDocument) map[string]interface{} {
	return map[string]interface{}{
		"headers": headerExample(doc.Headers),
		"body":    bodyExample(doc.Body),
	}
}

func headerExample(headers map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	return out
}

func bodyExample(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	var body interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body
}

// checkRulePaths evaluates every rule path against the example document.
func checkRulePaths(rules matchers.Rules, example map[string]interface{}) error {
	paths := make([]string, 0, len(rules))
	for path := range rules {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if _, err := jsonpath.Get(path, example); err != nil {
			return errors.Wrapf(err, "matching rule '%s' does not resolve against the example", path)
		}
	}
	return nil
}

// checkDocumentRules resolves the matching rules of an encoded artifact against
// the example values they were written with, before decoding drops rules that address nothing.
func checkDocumentRules(data []byte) error {
	var doc struct {
		Interactions []struct {
			Description string           `json:"description"`
			Request     requestDocument  `json:"request"`
			Response    responseDocument `json:"response"`
		} `json:"interactions"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	for _, i := range doc.Interactions {
		if err := checkRulePaths(canonicalRules(i.Request.MatchingRules), requestExample(i.Request)); err != nil {
			return errors.Wrapf(err, "interaction '%s' request", i.Description)
		}
		if err := checkRulePaths(canonicalRules(i.Response.MatchingRules), responseExample(i.Response)); err != nil {
			return errors.Wrapf(err, "interaction '%s' response", i.Description)
		}
	}
	return nil
}
