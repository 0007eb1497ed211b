package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const adminPrefix = "/_pact"

// MockProvider drives a recording mock provider running in another process
// through its admin API.
type MockProvider struct {
	client
}

type InteractionSetup struct {
	interaction  string
	mockProvider *MockProvider
}

type InteractionStatus struct {
	Description  string `json:"description"`
	RequestCount int    `json:"request_count"`
}

func NewMockProvider(url string) *MockProvider {
	return &MockProvider{client: newClient(url)}
}

func (p *MockProvider) Ready(ctx context.Context) error {
	return p.do(ctx, http.MethodGet, adminPrefix+"/ready", nil, nil)
}

func (p *MockProvider) AddInteraction(ctx context.Context, i contract.Interaction) error {
	data, err := json.Marshal(i)
	if err != nil {
		return errors.Wrap(err, "failed to marshal interaction")
	}
	return p.do(ctx, http.MethodPost, adminPrefix+"/interactions", json.RawMessage(data), nil)
}

func (p *MockProvider) Interactions(ctx context.Context) ([]InteractionStatus, error) {
	var statuses []InteractionStatus
	err := p.do(ctx, http.MethodGet, adminPrefix+"/interactions", nil, &statuses)
	return statuses, err
}

func (p *MockProvider) Reset(ctx context.Context) error {
	return p.do(ctx, http.MethodDelete, adminPrefix+"/interactions", nil, nil)
}

func (p *MockProvider) ForInteraction(interaction string) *InteractionSetup {
	return &InteractionSetup{
		interaction:  interaction,
		mockProvider: p,
	}
}

func (p *MockProvider) WaitForAll(ctx context.Context) error {
	return p.do(ctx, http.MethodGet, adminPrefix+"/interactions/wait", nil, nil)
}

func (p *MockProvider) WaitForInteraction(ctx context.Context, interaction string, count int) error {
	q := url.Values{}
	q.Add("interaction", interaction)
	q.Add("count", strconv.Itoa(count))
	return p.do(ctx, http.MethodGet, adminPrefix+"/interactions/wait?"+q.Encode(), nil, nil)
}

// Verify checks every declared interaction was called as declared and keeps
// them for the pact file.
func (p *MockProvider) Verify(ctx context.Context) error {
	return p.do(ctx, http.MethodGet, adminPrefix+"/interactions/verification", nil, nil)
}

// WritePact writes the verified interactions and returns the pact file path.
func (p *MockProvider) WritePact(ctx context.Context) (string, error) {
	var written struct {
		Path string `json:"path"`
	}
	err := p.do(ctx, http.MethodPost, adminPrefix+"/pact", nil, &written)
	return written.Path, err
}

func (s *InteractionSetup) AddConstraint(ctx context.Context, path string, value interface{}) error {
	return s.mockProvider.do(ctx, http.MethodPost, adminPrefix+"/interactions/constraints", map[string]interface{}{
		"interaction": s.interaction,
		"path":        path,
		"format":      "%v",
		"values":      []interface{}{value},
	}, nil)
}

func (s *InteractionSetup) AddConstraintFrom(ctx context.Context, path, fromInteraction, format string, values ...string) error {
	return s.mockProvider.do(ctx, http.MethodPost, adminPrefix+"/interactions/constraints", map[string]interface{}{
		"interaction": s.interaction,
		"path":        path,
		"source":      fromInteraction,
		"format":      format,
		"values":      values,
	}, nil)
}

func (s *InteractionSetup) AddModifier(ctx context.Context, path string, value interface{}, attempt *int) error {
	body := map[string]interface{}{
		"interaction": s.interaction,
		"path":        path,
		"value":       value,
	}
	if attempt != nil {
		body["attempt"] = attempt
	}
	if err := s.mockProvider.do(ctx, http.MethodPost, adminPrefix+"/interactions/modifiers", body, nil); err != nil {
		log.Warnf("failed to add modifier %s to '%s'. %s", path, s.interaction, err.Error())
		return err
	}
	return nil
}
