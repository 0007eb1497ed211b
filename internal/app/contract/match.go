package contract

import (
	"encoding/json"
	"net/http"
	"net/url"
	"reflect"
	"sort"

	"github.com/form3tech-oss/pact-harness/internal/app/matchers"
)

// MatchRequest compares a request received by a mock provider with r.
func (r Request) MatchRequest(req *http.Request, body []byte) []matchers.Mismatch {
	var out []matchers.Mismatch
	if req.Method != r.Method {
		out = append(out, matchers.Mismatch{Path: "$.method", Expected: r.Method, Actual: req.Method, Reason: "method mismatch"})
	}
	if r.Path != nil {
		out = append(out, matchers.MatchAt(r.Path, req.URL.Path, "$.path")...)
	}
	out = append(out, matchQuery(r.Query, req.URL.RawQuery)...)
	out = append(out, MatchHeaders(r.Headers, req.Header)...)
	out = append(out, MatchBody(r.Body, body)...)
	return out
}

// MatchResponse compares a response returned by a provider with r. The status must be equal.
func (r Response) MatchResponse(status int, header http.Header, body []byte) []matchers.Mismatch {
	var out []matchers.Mismatch
	if status != r.Status {
		out = append(out, matchers.Mismatch{Path: "$.status", Expected: r.Status, Actual: status, Reason: "status mismatch"})
	}
	out = append(out, MatchHeaders(r.Headers, header)...)
	out = append(out, MatchBody(r.Body, body)...)
	return out
}

// MatchHeaders checks every expected header, extra headers are ignored.
func MatchHeaders(expected map[string]*matchers.Matcher, actual http.Header) []matchers.Mismatch {
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []matchers.Mismatch
	for _, name := range names {
		path := headerPath(name)
		values, ok := actual[http.CanonicalHeaderKey(name)]
		if !ok || len(values) == 0 {
			out = append(out, matchers.Mismatch{Path: path, Expected: matchers.ExampleOf(expected[name]), Reason: "missing header"})
			continue
		}
		out = append(out, matchers.MatchAt(expected[name], values[0], path)...)
	}
	return out
}

// MatchBody checks a raw body against expected. A nil expectation accepts any body.
func MatchBody(expected *matchers.Matcher, body []byte) []matchers.Mismatch {
	if expected == nil {
		return nil
	}
	if len(body) == 0 {
		return []matchers.Mismatch{{Path: "$.body", Expected: matchers.ExampleOf(expected), Reason: "missing body"}}
	}

	var actual interface{}
	if err := json.Unmarshal(body, &actual); err != nil {
		actual = string(body)
	}
	return matchers.MatchAt(expected, actual, "$.body")
}

func matchQuery(expected, actual string) []matchers.Mismatch {
	want, err := url.ParseQuery(expected)
	if err != nil {
		return []matchers.Mismatch{{Path: "$.query", Expected: expected, Actual: actual, Reason: "invalid expected query"}}
	}
	got, err := url.ParseQuery(actual)
	if err != nil {
		return []matchers.Mismatch{{Path: "$.query", Expected: expected, Actual: actual, Reason: "invalid query"}}
	}
	if len(want) == 0 && len(got) == 0 {
		return nil
	}
	if !reflect.DeepEqual(want, got) {
		return []matchers.Mismatch{{Path: "$.query", Expected: expected, Actual: actual, Reason: "query mismatch"}}
	}
	return nil
}
