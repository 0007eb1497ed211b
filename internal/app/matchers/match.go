package matchers

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
)

type Mismatch struct {
	Path     string      `json:"path" yaml:"path"`
	Expected interface{} `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   interface{} `json:"actual,omitempty" yaml:"actual,omitempty"`
	Reason   string      `json:"reason" yaml:"reason"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s (expected %v, got %v)", m.Path, m.Reason, m.Expected, m.Actual)
}

// Matches reports whether actual satisfies m.
func Matches(m *Matcher, actual interface{}) bool {
	return len(Match(m, actual)) == 0
}

// Match returns every position where actual diverges from m, rooted at "$".
func Match(m *Matcher, actual interface{}) []Mismatch {
	return MatchAt(m, actual, "$")
}

// MatchAt is Match with the reported paths rooted at root, e.g. "$.body".
func MatchAt(m *Matcher, actual interface{}, root string) []Mismatch {
	var out []Mismatch
	match(m, actual, root, false, &out)
	return out
}

func match(m *Matcher, actual interface{}, path string, typed bool, out *[]Mismatch) {
	if m == nil {
		return
	}

	switch m.Kind {
	case KindLiteral:
		if typed {
			if jsonType(m.Value) != jsonType(actual) {
				*out = append(*out, Mismatch{Path: path, Expected: jsonType(m.Value), Actual: jsonType(actual), Reason: "type mismatch"})
			}
			return
		}
		if !equalScalars(m.Value, actual) {
			*out = append(*out, Mismatch{Path: path, Expected: m.Value, Actual: actual, Reason: "value mismatch"})
		}
	case KindObject:
		values, ok := actual.(map[string]interface{})
		if !ok {
			*out = append(*out, Mismatch{Path: path, Expected: "object", Actual: jsonType(actual), Reason: "type mismatch"})
			return
		}
		keys := make([]string, 0, len(m.Fields))
		for k := range m.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := ChildPath(path, k)
			value, present := values[k]
			if !present {
				*out = append(*out, Mismatch{Path: child, Expected: ExampleOf(m.Fields[k]), Reason: "missing key"})
				continue
			}
			match(m.Fields[k], value, child, typed, out)
		}
	case KindArray:
		items, ok := actual.([]interface{})
		if !ok {
			*out = append(*out, Mismatch{Path: path, Expected: "array", Actual: jsonType(actual), Reason: "type mismatch"})
			return
		}
		if !typed {
			if len(items) != len(m.Items) {
				*out = append(*out, Mismatch{Path: path, Expected: len(m.Items), Actual: len(items), Reason: "array length mismatch"})
				return
			}
			for i, item := range items {
				match(m.Items[i], item, IndexPath(path, i), false, out)
			}
			return
		}
		// under type matching extra elements are compared with the first expected one
		if len(m.Items) == 0 {
			return
		}
		for i, item := range items {
			expected := m.Items[0]
			if i < len(m.Items) {
				expected = m.Items[i]
			}
			match(expected, item, IndexPath(path, i), true, out)
		}
	case KindType:
		match(m.Inner, actual, path, true, out)
	case KindEachLike:
		items, ok := actual.([]interface{})
		if !ok {
			*out = append(*out, Mismatch{Path: path, Expected: "array", Actual: jsonType(actual), Reason: "type mismatch"})
			return
		}
		if len(items) < m.Min {
			*out = append(*out, Mismatch{Path: path, Expected: fmt.Sprintf("at least %d elements", m.Min), Actual: len(items), Reason: "array too short"})
			return
		}
		for i, item := range items {
			match(m.Inner, item, IndexPath(path, i), true, out)
		}
	case KindRegex:
		s, ok := actual.(string)
		if !ok {
			*out = append(*out, Mismatch{Path: path, Expected: "string", Actual: jsonType(actual), Reason: "type mismatch"})
			return
		}
		re := m.re
		if re == nil {
			var err error
			if re, err = regexp.Compile(m.Regex); err != nil {
				*out = append(*out, Mismatch{Path: path, Expected: m.Regex, Actual: s, Reason: "invalid regex"})
				return
			}
		}
		if !re.MatchString(s) {
			*out = append(*out, Mismatch{Path: path, Expected: m.Regex, Actual: s, Reason: "regex mismatch"})
		}
	case KindInteger:
		f, ok := toFloat(actual)
		if !ok || math.Trunc(f) != f {
			*out = append(*out, Mismatch{Path: path, Expected: "integer", Actual: actual, Reason: "type mismatch"})
		}
	case KindDecimal:
		if _, ok := toFloat(actual); !ok {
			*out = append(*out, Mismatch{Path: path, Expected: "number", Actual: actual, Reason: "type mismatch"})
		}
	}
}

func equalScalars(expected, actual interface{}) bool {
	ef, eok := toFloat(expected)
	af, aok := toFloat(actual)
	if eok && aok {
		return ef == af
	}
	return reflect.DeepEqual(expected, actual)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func jsonType(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	}
	if _, ok := toFloat(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
