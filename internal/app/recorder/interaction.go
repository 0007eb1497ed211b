package recorder

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/PaesslerAG/jsonpath"
	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/form3tech-oss/pact-harness/internal/app/matchers"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// interaction is a registered expectation and the requests it has matched.
type interaction struct {
	mu             sync.RWMutex
	order          int
	Definition     contract.Interaction
	Description    string
	RequestCount   int
	RequestHistory []requestDocument
	LastRequest    requestDocument
	constraints    map[string]Constraint
	modifiers      *modifiers
}

func newInteraction(definition contract.Interaction, order int) *interaction {
	return &interaction{
		order:       order,
		Definition:  definition,
		Description: definition.Description,
		constraints: map[string]Constraint{},
		modifiers:   newModifiers(),
	}
}

// Match reports whether the interaction is a candidate for a request to path with method.
func (i *interaction) Match(path, method string) bool {
	if method != i.Definition.Request.Method {
		return false
	}
	if i.Definition.Request.Path == nil {
		return true
	}
	return matchers.Matches(i.Definition.Request.Path, path)
}

func (i *interaction) AddConstraint(constraint Constraint) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.constraints[constraint.Key()] = constraint
}

func (i *interaction) loadValuesFromSource(constraint Constraint, interactions *Interactions) ([]interface{}, error) {
	values := append([]interface{}(nil), constraint.Values...)
	source, ok := interactions.Load(constraint.Source)
	if !ok {
		return nil, errors.Errorf("cannot find source interaction '%s' for constraint", constraint.Source)
	}

	source.mu.RLock()
	sourceRequest := source.LastRequest
	source.mu.RUnlock()
	if sourceRequest == nil {
		return nil, errors.Errorf("source interaction '%s' has no requests", constraint.Source)
	}

	for idx, v := range constraint.Values {
		path, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("source constraint value %v is not a path", v)
		}
		values[idx], _ = jsonpath.Get(path, map[string]interface{}(sourceRequest))
	}
	return values, nil
}

// EvaluateConstraints checks every constraint against request, returning the violations.
func (i *interaction) EvaluateConstraints(request requestDocument, interactions *Interactions) (bool, []string) {
	i.mu.RLock()
	constraints := make([]Constraint, 0, len(i.constraints))
	for _, c := range i.constraints {
		constraints = append(constraints, c)
	}
	i.mu.RUnlock()

	var violations []string
	for _, constraint := range constraints {
		values := constraint.Values
		if constraint.Source != "" {
			var err error
			values, err = i.loadValuesFromSource(constraint, interactions)
			if err != nil {
				violations = append(violations, err.Error())
				continue
			}
		}

		val, err := jsonpath.Get(request.encodeValues(constraint.Path), map[string]interface{}(request))
		if err != nil {
			log.Warn(err)
		}
		if constraint.Format != fmtLen && reflect.TypeOf(val) == reflect.TypeOf([]interface{}{}) {
			log.Infof("skipping matching on array value for path '%s'", constraint.Path)
			continue
		}
		if err != nil {
			val = ""
		}

		if err := constraint.check(values, val); err != nil {
			violations = append(violations, err.Error())
		}
	}

	return len(violations) == 0, violations
}

func (i *interaction) StoreRequest(request requestDocument) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.LastRequest = request
	i.RequestCount++
	i.RequestHistory = append(i.RequestHistory, request)
}

func (i *interaction) HasRequests(count int) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.RequestCount >= count
}

// respond renders the response example after applying the modifiers.
func (i *interaction) respond() (int, []byte, error) {
	body, err := contract.BodyBytes(i.Definition.Response.Body)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "unable to render response of '%s'", i.Description)
	}
	return i.modifiers.apply(i.Definition.Response.Status, body)
}

func (i *interaction) String() string {
	return fmt.Sprintf("'%s' (%s)", i.Description, i.Definition)
}
