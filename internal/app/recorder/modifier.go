package recorder

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tidwall/sjson"
)

const (
	statusPath = "$.status"
	bodyPrefix = "$.body."
)

// Modifier overrides part of the response of an interaction, either "$.status"
// or a "$.body." path. With Attempt set only that matching request is affected.
type Modifier struct {
	Interaction string      `json:"interaction"`
	Path        string      `json:"path"`
	Value       interface{} `json:"value"`
	Attempt     *int        `json:"attempt,omitempty"`
}

func loadModifier(data []byte) (*Modifier, error) {
	modifier := &Modifier{}
	if err := json.Unmarshal(data, modifier); err != nil {
		return modifier, errors.Wrap(err, "unable to parse modifier from data")
	}
	return modifier, modifier.validate()
}

func (m *Modifier) validate() error {
	if m.Path == statusPath {
		if _, err := m.statusCode(); err != nil {
			return err
		}
		return nil
	}
	if !strings.HasPrefix(m.Path, bodyPrefix) || len(m.Path) == len(bodyPrefix) {
		return fmt.Errorf("invalid modifier path: %s", m.Path)
	}
	return nil
}

func (m *Modifier) Key() string {
	return strings.Join([]string{m.Interaction, m.Path}, "_")
}

func (m *Modifier) statusCode() (int, error) {
	switch v := m.Value.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		code, err := strconv.Atoi(v)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid status modifier value %q", v)
		}
		return code, nil
	}
	return 0, fmt.Errorf("invalid status modifier value %v", m.Value)
}

type modifiers struct {
	mu        sync.Mutex
	modifiers map[string]*Modifier
	attempts  int
}

func newModifiers() *modifiers {
	return &modifiers{modifiers: map[string]*Modifier{}}
}

func (ms *modifiers) add(m *Modifier) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.modifiers[m.Key()] = m
}

// apply rewrites status and body for the next matched request.
func (ms *modifiers) apply(status int, body []byte) (int, []byte, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.attempts++

	for _, m := range ms.modifiers {
		if m.Attempt != nil && *m.Attempt != ms.attempts {
			continue
		}

		if m.Path == statusPath {
			code, err := m.statusCode()
			if err != nil {
				return 0, nil, err
			}
			status = code
			continue
		}

		if len(body) == 0 {
			body = []byte("{}")
		}
		out, err := sjson.SetBytes(body, m.Path[len(bodyPrefix):], m.Value)
		if err != nil {
			return 0, nil, errors.Wrapf(err, "unable to apply modifier %s", m.Path)
		}
		body = out
	}
	return status, body, nil
}
