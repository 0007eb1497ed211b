// Package matchers describes expected JSON values structurally rather than byte for byte.
//
// A Matcher is a tree of tagged nodes. Plain values become literals and must be equal,
// Like/EachLike switch the subtree into type matching, and Term/UUID/ISO8601DateTime
// constrain strings with a regular expression. ExampleOf renders the concrete value a
// mock provider answers with, Match checks a value received from a real provider.
package matchers

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Kind int

const (
	KindLiteral Kind = iota
	KindObject
	KindArray
	KindType
	KindEachLike
	KindRegex
	KindInteger
	KindDecimal
)

var kindNames = map[Kind]string{
	KindLiteral:  "literal",
	KindObject:   "object",
	KindArray:    "array",
	KindType:     "type",
	KindEachLike: "eachLike",
	KindRegex:    "regex",
	KindInteger:  "integer",
	KindDecimal:  "decimal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

const (
	iso8601DateTimeRegex   = `^\d{4}-[01]\d-[0-3]\dT[0-2]\d:[0-5]\d:[0-5]\d(\.\d+)?([+-][0-2]\d:[0-5]\d|Z)$`
	iso8601DateTimeExample = "2015-08-06T16:53:10+01:00"
	uuidRegex              = `^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`
)

var uuidExample = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/form3tech-oss/pact-harness")).String()

// Matcher is one node of a structural descriptor.
//
// Value holds the literal for KindLiteral and the example for the leaf matchers
// (regex, integer, decimal). Fields and Items hold the children of objects and
// arrays, Inner the wrapped descriptor of KindType and KindEachLike.
type Matcher struct {
	Kind   Kind
	Value  interface{}
	Fields map[string]*Matcher
	Items  []*Matcher
	Inner  *Matcher
	Min    int
	Regex  string

	re  *regexp.Regexp
	err error
}

// Map is a convenience type for building object descriptors that mix literals and matchers.
type Map map[string]interface{}

// Like accepts any value with the same JSON type and shape as example.
func Like(example interface{}) *Matcher {
	return &Matcher{Kind: KindType, Inner: From(example)}
}

// EachLike accepts an array of at least min elements, each shaped like example.
func EachLike(example interface{}, min int) *Matcher {
	return &Matcher{Kind: KindEachLike, Inner: From(example), Min: min}
}

// Term pairs a generated example with the regular expression the actual value must satisfy.
func Term(generate, matcher string) *Matcher {
	m := &Matcher{Kind: KindRegex, Value: generate, Regex: matcher}
	m.re, m.err = regexp.Compile(matcher)
	if m.err != nil {
		m.err = errors.Wrapf(m.err, "invalid regex %q", matcher)
	}
	return m
}

func Regex(generate, matcher string) *Matcher {
	return Term(generate, matcher)
}

func UUID() *Matcher {
	return Term(uuidExample, uuidRegex)
}

func UUIDOf(id string) *Matcher {
	return Term(id, uuidRegex)
}

func Integer(n int) *Matcher {
	return &Matcher{Kind: KindInteger, Value: float64(n)}
}

func Decimal(f float64) *Matcher {
	return &Matcher{Kind: KindDecimal, Value: f}
}

func Boolean(b bool) *Matcher {
	return Like(b)
}

func String(s string) *Matcher {
	return Like(s)
}

func ISO8601DateTime() *Matcher {
	return Term(iso8601DateTimeExample, iso8601DateTimeRegex)
}

func ISO8601DateTimeOf(t time.Time) *Matcher {
	return Term(t.Format(time.RFC3339), iso8601DateTimeRegex)
}

// From lifts a Go value into a descriptor. Matchers found anywhere in maps or
// slices are kept, every other value becomes a literal. Structs and typed
// collections are normalised through their JSON encoding.
func From(v interface{}) *Matcher {
	switch val := v.(type) {
	case *Matcher:
		if val == nil {
			return &Matcher{Kind: KindLiteral}
		}
		return val
	case Map:
		return fromMap(val)
	case map[string]interface{}:
		return fromMap(val)
	case map[string]*Matcher:
		fields := make(map[string]*Matcher, len(val))
		for k, child := range val {
			fields[k] = From(child)
		}
		return &Matcher{Kind: KindObject, Fields: fields}
	case []interface{}:
		items := make([]*Matcher, 0, len(val))
		for _, item := range val {
			items = append(items, From(item))
		}
		return &Matcher{Kind: KindArray, Items: items}
	case []*Matcher:
		items := make([]*Matcher, 0, len(val))
		for _, item := range val {
			items = append(items, From(item))
		}
		return &Matcher{Kind: KindArray, Items: items}
	case nil, string, bool, float64:
		return &Matcher{Kind: KindLiteral, Value: val}
	}

	normalised, err := normalise(v)
	if err != nil {
		return &Matcher{Kind: KindLiteral, err: err}
	}
	return From(normalised)
}

func fromMap(values map[string]interface{}) *Matcher {
	fields := make(map[string]*Matcher, len(values))
	for k, child := range values {
		fields[k] = From(child)
	}
	return &Matcher{Kind: KindObject, Fields: fields}
}

func normalise(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to encode %T as json", v)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrapf(err, "unable to decode %T from json", v)
	}
	return out, nil
}

// ExampleOf renders the concrete value described by m.
func ExampleOf(m *Matcher) interface{} {
	if m == nil {
		return nil
	}

	switch m.Kind {
	case KindObject:
		out := make(map[string]interface{}, len(m.Fields))
		for k, child := range m.Fields {
			out[k] = ExampleOf(child)
		}
		return out
	case KindArray:
		out := make([]interface{}, 0, len(m.Items))
		for _, item := range m.Items {
			out = append(out, ExampleOf(item))
		}
		return out
	case KindType:
		return ExampleOf(m.Inner)
	case KindEachLike:
		n := m.Min
		if n < 1 {
			n = 1
		}
		out := make([]interface{}, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, ExampleOf(m.Inner))
		}
		return out
	default:
		return m.Value
	}
}

// Validate reports a malformed descriptor: a bad regex, a negative minimum, or a
// descriptor that does not accept its own example.
func Validate(m *Matcher) error {
	if err := validateNode(m, "$"); err != nil {
		return err
	}
	if mismatches := Match(m, ExampleOf(m)); len(mismatches) > 0 {
		return errors.Errorf("matcher does not accept its own example: %s", mismatches[0])
	}
	return nil
}

func validateNode(m *Matcher, path string) error {
	if m == nil {
		return nil
	}
	if m.err != nil {
		return errors.Wrapf(m.err, "invalid matcher at %s", path)
	}

	switch m.Kind {
	case KindObject:
		keys := make([]string, 0, len(m.Fields))
		for k := range m.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := validateNode(m.Fields[k], ChildPath(path, k)); err != nil {
				return err
			}
		}
	case KindArray:
		for i, item := range m.Items {
			if err := validateNode(item, IndexPath(path, i)); err != nil {
				return err
			}
		}
	case KindType:
		if m.Inner == nil {
			return errors.Errorf("type matcher at %s has no example", path)
		}
		return validateNode(m.Inner, path)
	case KindEachLike:
		if m.Inner == nil {
			return errors.Errorf("eachLike matcher at %s has no example", path)
		}
		if m.Min < 0 {
			return errors.Errorf("eachLike matcher at %s has negative minimum %d", path, m.Min)
		}
		return validateNode(m.Inner, path+"[*]")
	case KindRegex:
		if _, ok := m.Value.(string); !ok {
			return errors.Errorf("regex matcher at %s has non string example %v", path, m.Value)
		}
		if m.re == nil {
			if _, err := regexp.Compile(m.Regex); err != nil {
				return errors.Wrapf(err, "invalid regex at %s", path)
			}
		}
	}
	return nil
}
