// Package verifier replays a contract artifact against a provider and checks
// every recorded interaction still holds.
package verifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/form3tech-oss/pact-harness/internal/app/broker"
	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/form3tech-oss/pact-harness/internal/app/matchers"
	"github.com/form3tech-oss/pact-harness/internal/app/providerstate"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Phase is how far an interaction got through verification.
type Phase string

const (
	PhasePending     Phase = "PENDING"
	PhaseStateSetup  Phase = "STATE_SETUP"
	PhaseRequestSent Phase = "REQUEST_SENT"
	PhaseMatched     Phase = "MATCHED"
	PhaseMismatched  Phase = "MISMATCHED"
)

var ErrTransport = errors.New("provider unreachable")

const defaultBreakerThreshold = 3

type Config struct {
	BaseURL         string
	StateHandler    providerstate.StateHandler
	Client          *http.Client
	Publisher       broker.Publisher
	ProviderVersion string
	// BreakerThreshold is the number of consecutive transport errors after which
	// the remaining requests of the run fail without being sent.
	BreakerThreshold uint32
}

// Result of one interaction. Err is set when the interaction stopped before a
// response could be compared, Phase tells where.
type Result struct {
	Description   string              `json:"description" yaml:"description"`
	ProviderState string              `json:"providerState,omitempty" yaml:"providerState,omitempty"`
	Phase         Phase               `json:"phase" yaml:"phase"`
	Mismatches    []matchers.Mismatch `json:"mismatches,omitempty" yaml:"mismatches,omitempty"`
	Err           error               `json:"-" yaml:"-"`
	Error         string              `json:"error,omitempty" yaml:"error,omitempty"`
	Duration      time.Duration       `json:"duration" yaml:"duration"`
}

func (r Result) OK() bool {
	return r.Phase == PhaseMatched
}

func (r *Result) fail(err error) Result {
	r.Err = err
	r.Error = err.Error()
	return *r
}

type Verifier struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker
}

func New(cfg Config) (*Verifier, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("a provider base url is required")
	}
	if cfg.StateHandler == nil {
		return nil, errors.New("a provider state handler is required")
	}
	if cfg.Publisher != nil && cfg.ProviderVersion == "" {
		return nil, errors.New("a provider version is required to publish")
	}

	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = defaultBreakerThreshold
	}

	threshold := cfg.BreakerThreshold
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: cfg.BaseURL,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("provider %s circuit %s -> %s", name, from, to)
		},
	})

	return &Verifier{cfg: cfg, breaker: breaker}, nil
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// RunInteraction takes one interaction through state setup, the recorded request
// and the comparison of the response. It never retries.
func (v *Verifier) RunInteraction(ctx context.Context, i contract.Interaction) Result {
	started := time.Now()
	res := Result{Description: i.Description, ProviderState: i.ProviderState, Phase: PhasePending}
	defer func() {
		log.WithFields(log.Fields{
			"interaction": i.Description,
			"phase":       res.Phase,
		}).Info("verified interaction")
	}()

	res.Phase = PhaseStateSetup
	if err := v.cfg.StateHandler.SetUp(ctx, i.ProviderState); err != nil {
		res.Duration = time.Since(started)
		return res.fail(errors.Wrapf(err, "state setup for '%s'", i.Description))
	}

	req, err := v.newRequest(ctx, i.Request)
	if err != nil {
		res.Duration = time.Since(started)
		return res.fail(err)
	}

	res.Phase = PhaseRequestSent
	out, err := v.breaker.Execute(func() (interface{}, error) {
		return v.send(req)
	})
	res.Duration = time.Since(started)
	if err != nil {
		return res.fail(errors.Wrapf(ErrTransport, "%s %s: %s", req.Method, req.URL, err.Error()))
	}

	actual := out.(*response)
	res.Mismatches = i.Response.MatchResponse(actual.status, actual.header, actual.body)
	if len(res.Mismatches) > 0 {
		res.Phase = PhaseMismatched
		return res
	}
	res.Phase = PhaseMatched
	return res
}

// newRequest builds the literal request recorded for the interaction, using the
// example of every matcher.
func (v *Verifier) newRequest(ctx context.Context, r contract.Request) (*http.Request, error) {
	target := v.cfg.BaseURL + r.PathExample()
	if r.Query != "" {
		target += "?" + r.Query
	}

	body, err := contract.BodyBytes(r.Body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode request body")
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target, reader)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create request")
	}

	for name, values := range contract.HeaderValues(r.Headers) {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (v *Verifier) send(req *http.Request) (*response, error) {
	res, err := v.cfg.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &response{status: res.StatusCode, header: res.Header, body: body}, nil
}

// VerifyArtifact runs every interaction in order. The run passes only when all
// of them match, and only then is the artifact published.
func (v *Verifier) VerifyArtifact(ctx context.Context, a *contract.Artifact) (*Report, error) {
	report := &Report{
		Consumer:        a.Consumer,
		Provider:        a.Provider,
		ProviderURL:     v.cfg.BaseURL,
		ProviderVersion: v.cfg.ProviderVersion,
		StartedAt:       time.Now().UTC(),
	}

	log.Infof("verifying %d interactions of %s against %s", len(a.Interactions), a.Key(), v.cfg.BaseURL)
	for _, i := range a.Interactions {
		report.Results = append(report.Results, v.RunInteraction(ctx, i))
	}

	if !report.OK() {
		return report, &VerificationError{Consumer: a.Consumer, Provider: a.Provider, Failures: report.Failures()}
	}

	if v.cfg.Publisher == nil {
		return report, nil
	}
	if err := v.cfg.Publisher.Publish(ctx, a, v.cfg.ProviderVersion); err != nil {
		return report, err
	}
	report.Published = true
	return report, nil
}

func (v *Verifier) VerifyFile(ctx context.Context, path string) (*Report, error) {
	a, err := contract.Load(path)
	if err != nil {
		return nil, err
	}
	return v.VerifyArtifact(ctx, a)
}

// VerificationError lists every interaction of a run that did not match.
type VerificationError struct {
	Consumer string
	Provider string
	Failures []Result
}

func (e *VerificationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "verification of %s-%s failed for %d interaction(s)", e.Consumer, e.Provider, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			fmt.Fprintf(&b, "\n  '%s' failed at %s: %s", f.Description, f.Phase, f.Err.Error())
			continue
		}
		for _, m := range f.Mismatches {
			fmt.Fprintf(&b, "\n  '%s' %s", f.Description, m.String())
		}
	}
	return b.String()
}

func (e *VerificationError) Unwrap() []error {
	var errs []error
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
