package recorder

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const fmtLen = "_length_"

// Constraint narrows an interaction beyond its request matchers: the value found
// at Path in the received request must render as fmt.Sprintf(Format, Values...).
// With Source set, every value is itself a jsonpath into the last request matched
// by the Source interaction. Format "_length_" checks the length of an array.
type Constraint struct {
	Interaction string        `json:"interaction"`
	Path        string        `json:"path"`
	Values      []interface{} `json:"values"`
	Format      string        `json:"format"`
	Source      string        `json:"source,omitempty"`
}

func loadConstraint(data []byte) (Constraint, error) {
	var c Constraint
	if err := json.Unmarshal(data, &c); err != nil {
		return c, errors.Wrap(err, "unable to parse constraint from data")
	}
	if c.Format == "" {
		c.Format = "%v"
	}
	if c.Format == fmtLen {
		for i, v := range c.Values {
			// lengths decoded from json arrive as float64
			if f, ok := v.(float64); ok {
				c.Values[i] = int(f)
			}
		}
	}
	return c, nil
}

func (c Constraint) Key() string {
	return strings.Join([]string{c.Interaction, c.Path}, "_")
}

func (c Constraint) check(expectedValues []interface{}, actualValue interface{}) error {
	if c.Format == fmtLen {
		if len(expectedValues) != 1 {
			return fmt.Errorf(
				"expected single positive integer value for path %q length constraint, but there are %v expected values",
				c.Path, len(expectedValues))
		}
		expected, ok := expectedValues[0].(int)
		if !ok || expected < 0 {
			return fmt.Errorf("expected value for %q length constraint must be a positive integer", c.Path)
		}

		actualSlice, ok := actualValue.([]interface{})
		if !ok {
			return fmt.Errorf("value at path %q must be an array due to length constraint", c.Path)
		}
		if expected != len(actualSlice) {
			return fmt.Errorf("value of length %v at path %q does not match length constraint %v",
				len(actualSlice), c.Path, expected)
		}
		return nil
	}

	expected := fmt.Sprintf(c.Format, expectedValues...)
	actual := fmt.Sprintf("%v", actualValue)
	if expected != actual {
		return fmt.Errorf("value %q at path %q does not match constraint %q", actual, c.Path, expected)
	}
	return nil
}
