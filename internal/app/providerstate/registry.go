// Package providerstate maps the provider state named by an interaction to the
// setup procedure that puts a mock provider into that state.
package providerstate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrNoStateHandler = errors.New("no provider state handler")

// State is a parsed provider state description. Params holds the values
// captured by the placeholders of the matching template.
type State struct {
	Description string
	Kind        string
	Params      map[string]string
}

func (s State) Param(name string) string {
	return s.Params[name]
}

type Handler func(ctx context.Context, s State) error

// StateHandler is anything able to put a provider into a described state.
type StateHandler interface {
	SetUp(ctx context.Context, description string) error
}

type registration struct {
	kind     string
	template string
	pattern  *regexp.Regexp
	handler  Handler
}

type Registry struct {
	provider      string
	mu            sync.RWMutex
	registrations []registration
	fallback      Handler
}

func NewRegistry(provider string) *Registry {
	return &Registry{provider: provider}
}

var placeholder = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9_]*)\}`)

// Register adds a handler for every description matching template. Placeholders
// such as "{customerId}" match a single word and are exposed through State.Params,
// so one handler serves any id.
func (r *Registry) Register(kind, template string, handler Handler) error {
	pattern, err := compileTemplate(template)
	if err != nil {
		return errors.Wrapf(err, "invalid state template '%s'", template)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.registrations {
		if existing.kind == kind {
			return errors.Errorf("state kind '%s' already registered for %s", kind, r.provider)
		}
	}
	r.registrations = append(r.registrations, registration{
		kind:     kind,
		template: template,
		pattern:  pattern,
		handler:  handler,
	})
	return nil
}

func (r *Registry) MustRegister(kind, template string, handler Handler) {
	if err := r.Register(kind, template, handler); err != nil {
		panic(err)
	}
}

// Default sets the handler used for interactions without a provider state.
func (r *Registry) Default(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = handler
}

func compileTemplate(template string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range placeholder.FindAllStringSubmatchIndex(template, -1) {
		b.WriteString(regexp.QuoteMeta(template[last:loc[0]]))
		fmt.Fprintf(&b, `(?P<%s>\S+)`, template[loc[2]:loc[3]])
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(template[last:]))
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Parse finds the registration matching description. The first registered match wins.
func (r *Registry) Parse(description string) (State, Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if strings.TrimSpace(description) == "" {
		return State{}, r.fallback, nil
	}

	for _, reg := range r.registrations {
		groups := reg.pattern.FindStringSubmatch(description)
		if groups == nil {
			continue
		}
		params := map[string]string{}
		for i, name := range reg.pattern.SubexpNames() {
			if name != "" {
				params[name] = groups[i]
			}
		}
		return State{Description: description, Kind: reg.kind, Params: params}, reg.handler, nil
	}

	return State{}, nil, errors.Wrapf(ErrNoStateHandler, "provider '%s' has no handler for state '%s'", r.provider, description)
}

// SetUp runs the handler for description and waits for it to finish.
func (r *Registry) SetUp(ctx context.Context, description string) error {
	state, handler, err := r.Parse(description)
	if err != nil {
		return err
	}
	if handler == nil {
		return nil
	}

	log.WithFields(log.Fields{
		"provider": r.provider,
		"state":    description,
		"kind":     state.Kind,
	}).Info("setting up provider state")

	if err := handler(ctx, state); err != nil {
		return errors.Wrapf(err, "provider state '%s' setup failed", description)
	}
	return nil
}

// Templates lists the registered state templates in registration order.
func (r *Registry) Templates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	templates := make([]string, 0, len(r.registrations))
	for _, reg := range r.registrations {
		templates = append(templates, reg.template)
	}
	return templates
}

func (r *Registry) Provider() string {
	return r.provider
}
