package matchers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	matchType    = "type"
	matchRegex   = "regex"
	matchInteger = "integer"
	matchDecimal = "decimal"
)

// Rule is a pact v2 matching rule, stored in an interaction's matchingRules map
// under the JSONPath of the value it applies to.
type Rule struct {
	Match string `json:"match,omitempty"`
	Min   *int   `json:"min,omitempty"`
	Regex string `json:"regex,omitempty"`
}

type Rules map[string]Rule

func (r Rules) Merge(other Rules) Rules {
	if r == nil {
		r = Rules{}
	}
	for k, v := range other {
		r[k] = v
	}
	return r
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ChildPath appends an object key to a JSONPath, quoting keys that are not plain identifiers.
func ChildPath(path, key string) string {
	if identifier.MatchString(key) {
		return path + "." + key
	}
	return path + "[" + strconv.Quote(key) + "]"
}

func IndexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

// Encode splits m into the example written to the contract and the matching
// rules that describe how flexible each position is.
func Encode(m *Matcher, root string) (interface{}, Rules) {
	rules := Rules{}
	encode(m, root, rules)
	return ExampleOf(m), rules
}

func encode(m *Matcher, path string, rules Rules) {
	if m == nil {
		return
	}

	switch m.Kind {
	case KindObject:
		for k, child := range m.Fields {
			encode(child, ChildPath(path, k), rules)
		}
	case KindArray:
		for i, item := range m.Items {
			encode(item, IndexPath(path, i), rules)
		}
	case KindType:
		rules[path] = Rule{Match: matchType}
		encode(m.Inner, path, rules)
	case KindEachLike:
		min := m.Min
		rules[path] = Rule{Match: matchType, Min: &min}
		encode(m.Inner, path+"[*]", rules)
	case KindRegex:
		rules[path] = Rule{Match: matchRegex, Regex: m.Regex}
	case KindInteger:
		rules[path] = Rule{Match: matchInteger}
	case KindDecimal:
		rules[path] = Rule{Match: matchDecimal}
	}
}

// Decode rebuilds a descriptor from a contract example and its matching rules.
// Positions without a rule become literals.
func Decode(example interface{}, rules Rules, path string) *Matcher {
	rule, ok := rules[path]
	if !ok {
		return decodeStructure(example, rules, path)
	}

	if rule.Match == "" && rule.Min != nil {
		rule.Match = matchType
	}

	switch rule.Match {
	case matchRegex:
		m := &Matcher{Kind: KindRegex, Value: example, Regex: rule.Regex}
		m.re, m.err = regexp.Compile(rule.Regex)
		return m
	case matchInteger:
		return &Matcher{Kind: KindInteger, Value: example}
	case matchDecimal:
		return &Matcher{Kind: KindDecimal, Value: example}
	case matchType:
		if items, isArray := example.([]interface{}); isArray && rule.Min != nil {
			var elem interface{}
			if len(items) > 0 {
				elem = items[0]
			}
			return &Matcher{Kind: KindEachLike, Min: *rule.Min, Inner: Decode(elem, rules, path+"[*]")}
		}
		return &Matcher{Kind: KindType, Inner: decodeStructure(example, rules, path)}
	}

	log.Warnf("unsupported matching rule '%s' at path '%s', falling back to equality", rule.Match, path)
	return decodeStructure(example, rules, path)
}

func decodeStructure(example interface{}, rules Rules, path string) *Matcher {
	switch val := example.(type) {
	case map[string]interface{}:
		fields := make(map[string]*Matcher, len(val))
		for k, child := range val {
			fields[k] = Decode(child, rules, ChildPath(path, k))
		}
		return &Matcher{Kind: KindObject, Fields: fields}
	case []interface{}:
		// rules written by other pact tools may address every element with [*]
		wildcard := path + "[*]"
		useWildcard := rules.hasPrefix(wildcard)
		items := make([]*Matcher, 0, len(val))
		for i, item := range val {
			itemPath := IndexPath(path, i)
			if useWildcard {
				itemPath = wildcard
			}
			items = append(items, Decode(item, rules, itemPath))
		}
		return &Matcher{Kind: KindArray, Items: items}
	default:
		return &Matcher{Kind: KindLiteral, Value: val}
	}
}

func (r Rules) hasPrefix(prefix string) bool {
	for k := range r {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// Scoped returns the rules under root, e.g. every "$.body..." rule.
func (r Rules) Scoped(root string) Rules {
	out := Rules{}
	for k, v := range r {
		if k == root || strings.HasPrefix(k, root+".") || strings.HasPrefix(k, root+"[") {
			out[k] = v
		}
	}
	return out
}
