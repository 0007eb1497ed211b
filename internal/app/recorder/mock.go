// Package recorder runs the mock provider consumer tests are driven against, and
// records the interactions they declared into a contract artifact.
package recorder

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/form3tech-oss/pact-harness/internal/app/httpresponse"
	"github.com/form3tech-oss/pact-harness/internal/app/matchers"
	"github.com/google/go-cmp/cmp"
	"github.com/labstack/echo/v4"
	"github.com/pact-foundation/pact-go/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultDelay    = 500 * time.Millisecond
	defaultDuration = 15 * time.Second
)

type Config struct {
	Consumer     string
	Provider     string
	PactDir      string
	Port         int           // 0 picks a free port
	WaitDelay    time.Duration // polling interval of the wait operations
	WaitDuration time.Duration // how long the wait operations wait
}

// RequestProblem is a request the mock provider could not answer as declared.
type RequestProblem struct {
	Method      string              `json:"method"`
	Path        string              `json:"path"`
	Interaction string              `json:"interaction,omitempty"`
	Reason      string              `json:"reason"`
	Mismatches  []matchers.Mismatch `json:"mismatches,omitempty"`
	Violations  []string            `json:"violations,omitempty"`
	Diff        string              `json:"diff,omitempty"`
}

func (p RequestProblem) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", p.Method, p.Path, p.Reason)
	for _, m := range p.Mismatches {
		fmt.Fprintf(&b, "\n  %s", m)
	}
	for _, v := range p.Violations {
		fmt.Fprintf(&b, "\n  %s", v)
	}
	if p.Diff != "" {
		fmt.Fprintf(&b, "\n  request diff (-expected +actual):\n%s", p.Diff)
	}
	return b.String()
}

// VerificationError reports a consumer test that did not exercise its interactions as declared.
type VerificationError struct {
	TestErr  error
	Missing  []string
	Problems []RequestProblem
}

func (e *VerificationError) Error() string {
	var parts []string
	if e.TestErr != nil {
		parts = append(parts, "consumer test failed: "+e.TestErr.Error())
	}
	for _, description := range e.Missing {
		parts = append(parts, fmt.Sprintf("interaction '%s' was never requested", description))
	}
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, "\n")
}

func (e *VerificationError) Unwrap() error {
	return e.TestErr
}

// MockProvider plays the provider during consumer tests.
type MockProvider struct {
	config       Config
	echo         *echo.Echo
	server       *http.Server
	url          string
	interactions *Interactions
	notify       *notify

	mu       sync.Mutex
	builders []*InteractionBuilder
	order    int
	problems []RequestProblem
	verified []contract.Interaction
	written  bool
}

func New(config Config) *MockProvider {
	if config.WaitDelay == 0 {
		config.WaitDelay = defaultDelay
	}
	if config.WaitDuration == 0 {
		config.WaitDuration = defaultDuration
	}
	if config.PactDir == "" {
		config.PactDir = "pacts"
	}

	m := &MockProvider{
		config:       config,
		interactions: &Interactions{},
		notify:       newNotify(),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpresponse.ErrorHandler
	m.echo = e
	m.routes()
	return m
}

func (m *MockProvider) Start() error {
	if m.server != nil {
		return errors.Errorf("mock provider %s already running at %s", m.config.Provider, m.url)
	}

	port := m.config.Port
	if port == 0 {
		var err error
		if port, err = utils.GetFreePort(); err != nil {
			return errors.Wrap(err, "unable to find a free port")
		}
	}

	address := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "unable to listen on %s", address)
	}

	server := &http.Server{Handler: m.echo}
	m.server = server
	m.url = "http://" + listener.Addr().String()
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error(err)
		}
	}()

	log.Infof("mock %s provider for %s listening on %s", m.config.Provider, m.config.Consumer, m.url)
	return nil
}

func (m *MockProvider) URL() string {
	return m.url
}

// Handler exposes the mock provider without a listener, e.g. for httptest.
func (m *MockProvider) Handler() http.Handler {
	return m.echo
}

func (m *MockProvider) AddInteraction() *InteractionBuilder {
	b := &InteractionBuilder{mock: m}
	m.mu.Lock()
	m.builders = append(m.builders, b)
	m.mu.Unlock()
	return b
}

func (m *MockProvider) register(b *InteractionBuilder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.registered = true
	m.store(b.interaction)
}

// store must be called with mu held.
func (m *MockProvider) store(definition contract.Interaction) {
	if existing, ok := m.interactions.Load(definition.Description); ok {
		existing.mu.Lock()
		existing.Definition = definition
		existing.mu.Unlock()
		return
	}
	m.order++
	m.interactions.Store(newInteraction(definition, m.order))
	log.Infof("storing interaction '%s'", definition.Description)
}

// InteractionHandle adds constraints and modifiers to a registered interaction.
type InteractionHandle struct {
	mock        *MockProvider
	description string
}

func (m *MockProvider) ForInteraction(description string) *InteractionHandle {
	return &InteractionHandle{mock: m, description: description}
}

// AddConstraint requires the value at path of a matching request to equal value.
func (h *InteractionHandle) AddConstraint(path string, value interface{}) error {
	return h.mock.AddConstraint(Constraint{Interaction: h.description, Path: path, Format: "%v", Values: []interface{}{value}})
}

// AddLengthConstraint requires the array at path of a matching request to have length elements.
func (h *InteractionHandle) AddLengthConstraint(path string, length int) error {
	return h.mock.AddConstraint(Constraint{Interaction: h.description, Path: path, Format: fmtLen, Values: []interface{}{length}})
}

// AddModifier overrides the response at path ("$.status" or "$.body.<path>"). With an
// attempt given only that matching request is modified.
func (h *InteractionHandle) AddModifier(path string, value interface{}, attempt ...int) error {
	modifier := &Modifier{Interaction: h.description, Path: path, Value: value}
	if len(attempt) > 0 {
		modifier.Attempt = &attempt[0]
	}
	return h.mock.AddModifier(modifier)
}

func (m *MockProvider) AddConstraint(c Constraint) error {
	i, ok := m.interactions.Load(c.Interaction)
	if !ok {
		return errors.Errorf("unable to find interaction '%s'", c.Interaction)
	}
	log.Infof("adding constraint to interaction '%s'", i.Description)
	i.AddConstraint(c)
	return nil
}

func (m *MockProvider) AddModifier(modifier *Modifier) error {
	if err := modifier.validate(); err != nil {
		return err
	}
	i, ok := m.interactions.Load(modifier.Interaction)
	if !ok {
		return errors.Errorf("unable to find interaction for modifier '%s'", modifier.Interaction)
	}
	log.Infof("adding modifier to interaction '%s'", i.Description)
	i.modifiers.add(modifier)
	return nil
}

// Verify runs test against the declared interactions. Malformed declarations fail
// before test runs. Afterwards every declared interaction must have been requested
// and every request must have matched one; the interactions are then kept for the
// artifact. The declarations are cleared either way.
func (m *MockProvider) Verify(test func() error) error {
	if err := m.validatePending(); err != nil {
		m.reset()
		return err
	}
	return m.complete(test())
}

func (m *MockProvider) validatePending() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]bool{}
	for _, b := range m.builders {
		if !b.registered {
			return errors.Errorf("interaction '%s' was declared without a response", b.interaction.Description)
		}
		if seen[b.interaction.Description] {
			return errors.Errorf("interaction '%s' was declared twice", b.interaction.Description)
		}
		seen[b.interaction.Description] = true
	}

	for _, i := range m.interactions.All() {
		if err := i.Definition.Validate(); err != nil {
			return errors.Wrap(err, "invalid interaction")
		}
	}
	return nil
}

func (m *MockProvider) complete(testErr error) error {
	defer m.reset()

	var missing []string
	pending := m.interactions.All()
	for _, i := range pending {
		if !i.HasRequests(1) {
			log.Infof("'%s' has no requests", i.Description)
			missing = append(missing, i.Description)
		}
	}

	m.mu.Lock()
	problems := append([]RequestProblem(nil), m.problems...)
	m.mu.Unlock()

	if testErr != nil || len(missing) > 0 || len(problems) > 0 {
		return &VerificationError{TestErr: testErr, Missing: missing, Problems: problems}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, i := range pending {
		m.keep(i.Definition)
	}
	return nil
}

// keep must be called with mu held.
func (m *MockProvider) keep(definition contract.Interaction) {
	for idx, existing := range m.verified {
		if existing.Description == definition.Description {
			m.verified[idx] = definition
			return
		}
	}
	m.verified = append(m.verified, definition)
}

func (m *MockProvider) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions.Clear()
	m.builders = nil
	m.problems = nil
}

func (m *MockProvider) addProblem(p RequestProblem) {
	log.WithFields(log.Fields{
		"method":      p.Method,
		"path":        p.Path,
		"interaction": p.Interaction,
	}).Warn(p.Reason)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.problems = append(m.problems, p)
}

// WaitForInteraction waits until the interaction has matched count requests.
func (m *MockProvider) WaitForInteraction(description string, count int) error {
	i, ok := m.interactions.Load(description)
	if !ok {
		return errors.Errorf("cannot wait for interaction '%s', interaction not found", description)
	}

	log.WithField("wait_for", description).Infof("waiting")
	retryFor(func(timeLeft time.Duration) bool {
		if i.HasRequests(count) {
			return true
		}
		if timeLeft > 0 {
			m.notify.Wait(timeLeft)
		}
		return false
	}, m.config.WaitDelay, m.config.WaitDuration)

	if !i.HasRequests(count) {
		return errors.Errorf("timeout waiting for %d requests to interaction '%s'", count, description)
	}
	return nil
}

// WaitForAll waits until every registered interaction has matched a request.
func (m *MockProvider) WaitForAll() error {
	log.Info("waiting for all")
	retryFor(func(timeLeft time.Duration) bool {
		if m.interactions.AllHaveRequests() {
			return true
		}
		if timeLeft > 0 {
			m.notify.Wait(timeLeft)
		}
		return false
	}, m.config.WaitDelay, m.config.WaitDuration)

	if !m.interactions.AllHaveRequests() {
		for _, i := range m.interactions.All() {
			if !i.HasRequests(1) {
				log.Infof("'%s' has no requests", i.Description)
			}
		}
		return errors.New("timeout waiting for interactions to be met")
	}
	return nil
}

// Artifact returns the verified interactions as a contract artifact.
func (m *MockProvider) Artifact() *contract.Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := contract.NewArtifact(m.config.Consumer, m.config.Provider)
	a.Interactions = append([]contract.Interaction(nil), m.verified...)
	return a
}

// WritePact writes the verified interactions to the pact directory, replacing any earlier artifact.
func (m *MockProvider) WritePact() (string, error) {
	path, err := m.Artifact().Write(m.config.PactDir)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.written = true
	m.mu.Unlock()
	return path, nil
}

// Teardown writes the artifact, unless WritePact already did, and stops the mock provider.
func (m *MockProvider) Teardown() error {
	m.mu.Lock()
	write := !m.written && len(m.verified) > 0
	m.mu.Unlock()

	var writeErr error
	if write {
		_, writeErr = m.WritePact()
	}

	m.Close()
	return writeErr
}

// Close stops the mock provider without writing the artifact.
func (m *MockProvider) Close() {
	if m.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.server.Shutdown(ctx); err != nil {
		log.Error(err)
	}
	m.server = nil
}

func (m *MockProvider) handle(c echo.Context) error {
	req := c.Request()
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return httpresponse.JSON(c, http.StatusBadRequest, "unable to read request body. %s", err.Error())
	}

	logger := log.WithFields(log.Fields{"method": req.Method, "path": req.URL.Path})
	logger.Info("received request")

	doc, err := parseRequest(req, data)
	if err != nil {
		m.addProblem(RequestProblem{Method: req.Method, Path: req.URL.Path, Reason: err.Error()})
		return httpresponse.JSON(c, http.StatusBadRequest, "unable to read request. %s", err.Error())
	}

	candidates, ok := m.interactions.FindAll(req.URL.Path, req.Method)
	if !ok {
		m.addProblem(RequestProblem{Method: req.Method, Path: req.URL.Path, Reason: "unexpected request, no interaction registered"})
		return httpresponse.JSON(c, http.StatusInternalServerError, "unable to find interaction to match '%s %s'", req.Method, req.URL.Path)
	}

	var closest *RequestProblem
	for _, i := range candidates {
		mismatches := i.Definition.Request.MatchRequest(req, data)
		satisfied, violations := i.EvaluateConstraints(doc, m.interactions)
		if len(mismatches) == 0 && satisfied {
			return m.respond(c, i, doc)
		}

		problem := RequestProblem{
			Method:      req.Method,
			Path:        req.URL.Path,
			Interaction: i.Description,
			Reason:      fmt.Sprintf("request does not match interaction '%s'", i.Description),
			Mismatches:  mismatches,
			Violations:  violations,
			Diff:        requestDiff(i.Definition.Request, doc),
		}
		if closest == nil || len(problem.Mismatches)+len(problem.Violations) < len(closest.Mismatches)+len(closest.Violations) {
			closest = &problem
		}
	}

	m.addProblem(*closest)
	return httpresponse.JSON(c, http.StatusInternalServerError, "%s", closest.Reason)
}

func (m *MockProvider) respond(c echo.Context, i *interaction, doc requestDocument) error {
	i.StoreRequest(doc)
	m.notify.Notify()
	log.Infof("matched interaction %s", i)

	status, body, err := i.respond()
	if err != nil {
		return httpresponse.JSON(c, http.StatusInternalServerError, "%s", err.Error())
	}

	for name, values := range contract.HeaderValues(i.Definition.Response.Headers) {
		c.Response().Header()[name] = values
	}
	if body == nil {
		return c.NoContent(status)
	}
	return c.Blob(status, echo.MIMEApplicationJSON, body)
}

// requestDiff renders expected against actual, restricted to the parts the interaction declares.
func requestDiff(expected contract.Request, actual requestDocument) string {
	want := map[string]interface{}{
		"method": expected.Method,
		"path":   expected.PathExample(),
		"query":  parseQueryValues(&url.URL{RawQuery: expected.Query}),
	}
	got := map[string]interface{}{
		"method": actual["method"],
		"path":   actual["path"],
		"query":  actual["query"],
	}

	if len(expected.Headers) > 0 {
		wantHeaders := map[string]interface{}{}
		gotHeaders := map[string]interface{}{}
		actualHeaders, _ := actual["headers"].(map[string]interface{})
		for name, values := range contract.HeaderValues(expected.Headers) {
			wantHeaders[name] = values[0]
			if v, ok := actualHeaders[name]; ok {
				gotHeaders[name] = v
			}
		}
		want["headers"] = wantHeaders
		got["headers"] = gotHeaders
	}

	if expected.Body != nil {
		want["body"] = matchers.ExampleOf(expected.Body)
		got["body"] = actual["body"]
	}

	return cmp.Diff(want, got)
}
