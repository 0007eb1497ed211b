// Package contracts declares what the frontend expects from the catalogue,
// carts and payment services, and the client calls that exercise each expectation.
package contracts

import (
	"context"
	"fmt"
	"time"

	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/form3tech-oss/pact-harness/internal/app/matchers"
	"github.com/form3tech-oss/pact-harness/internal/app/recorder"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const Consumer = "frontend"

// Scenario pairs one declared interaction with the consumer call that must
// produce exactly that request.
type Scenario struct {
	Interaction contract.Interaction
	Exercise    func(ctx context.Context, baseURL string) error
}

type Config struct {
	PactDir      string
	WaitDelay    time.Duration
	WaitDuration time.Duration
}

// ForProvider returns the scenarios the frontend has with provider.
func ForProvider(provider string) ([]Scenario, error) {
	switch provider {
	case "catalogue":
		return Catalogue(), nil
	case "carts":
		return Carts(), nil
	case "payment":
		return Payment(), nil
	}
	return nil, errors.Errorf("the frontend has no contract with '%s'", provider)
}

// Record runs every scenario against a recording mock of provider and writes
// the artifact. Any scenario whose call does not match its declaration fails
// the recording and the artifact already in cfg.PactDir is left as it was.
func Record(ctx context.Context, cfg Config, provider string, scenarios []Scenario) (string, error) {
	mock := recorder.New(recorder.Config{
		Consumer:     Consumer,
		Provider:     provider,
		PactDir:      cfg.PactDir,
		WaitDelay:    cfg.WaitDelay,
		WaitDuration: cfg.WaitDuration,
	})
	if err := mock.Start(); err != nil {
		return "", err
	}
	defer mock.Close()
	log.Infof("recording %d %s scenarios of %s", len(scenarios), provider, Consumer)

	for _, s := range scenarios {
		i := s.Interaction
		mock.AddInteraction().
			Given(i.ProviderState).
			UponReceiving(i.Description).
			WithRequest(i.Request).
			WillRespondWith(i.Response)

		exercise := s.Exercise
		if err := mock.Verify(func() error { return exercise(ctx, mock.URL()) }); err != nil {
			return "", errors.Wrapf(err, "scenario '%s'", i.Description)
		}
	}

	return mock.WritePact()
}

func jsonHeaders() map[string]*matchers.Matcher {
	return map[string]*matchers.Matcher{"Content-Type": matchers.Term("application/json", `^application/json`)}
}

func errorBody(example string) *matchers.Matcher {
	return matchers.From(matchers.Map{"error": matchers.Like(example)})
}

func unexpected(what string, got interface{}) error {
	return fmt.Errorf("unexpected %s: %v", what, got)
}
