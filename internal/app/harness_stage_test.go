package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/form3tech-oss/pact-harness/internal/app/contracts"
	"github.com/form3tech-oss/pact-harness/internal/app/fixtures"
	"github.com/form3tech-oss/pact-harness/internal/app/matchers"
	"github.com/form3tech-oss/pact-harness/internal/app/recorder"
	"github.com/form3tech-oss/pact-harness/internal/app/verifier"
	"github.com/form3tech-oss/pact-harness/pkg/clients"
	"github.com/pact-foundation/pact-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addItem = "a request to add an item to the cart"

type HarnessStage struct {
	t       *testing.T
	assert  *assert.Assertions
	require *require.Assertions
	ctx     context.Context

	mock  *recorder.MockProvider
	admin *clients.MockProvider
	carts *clients.Carts

	scenarios    []contracts.Scenario
	scenarioErrs []error
	pact         []byte

	mu       sync.Mutex
	statuses []int

	mockVerificationErr error
	verificationStatus  int
	report              verifier.Report
}

func NewHarnessStage(t *testing.T) (*HarnessStage, *HarnessStage, *HarnessStage) {
	mock := recorder.New(recorder.Config{
		Consumer:     contracts.Consumer,
		Provider:     "carts",
		PactDir:      t.TempDir(),
		WaitDelay:    10 * time.Millisecond,
		WaitDuration: 2 * time.Second,
	})
	require.NoError(t, mock.Start())

	s := &HarnessStage{
		t:       t,
		assert:  assert.New(t),
		require: require.New(t),
		ctx:     context.Background(),
		mock:    mock,
		admin:   clients.NewMockProvider(mock.URL()),
		carts:   clients.NewCarts(mock.URL()),
	}

	t.Cleanup(func() {
		if err := mock.Teardown(); err != nil {
			t.Log(err)
		}
		req, _ := http.NewRequest(http.MethodDelete, adminURL+"/providers", nil)
		if res, err := http.DefaultClient.Do(req); err == nil {
			res.Body.Close()
		}
	})

	s.require.NoError(s.admin.Ready(s.ctx))
	return s, s, s
}

func (s *HarnessStage) and() *HarnessStage {
	return s
}

func (s *HarnessStage) scenario(description string) contracts.Scenario {
	for _, sc := range contracts.Carts() {
		if sc.Interaction.Description == description {
			return sc
		}
	}
	s.t.Fatalf("no cart scenario '%s'", description)
	return contracts.Scenario{}
}

func (s *HarnessStage) the_frontend_cart_scenarios() *HarnessStage {
	s.scenarios = contracts.Carts()
	return s
}

func (s *HarnessStage) a_pact_expecting_an_unknown_cart_to_be_not_found() *HarnessStage {
	a := contract.NewArtifact(contracts.Consumer, "carts")
	a.Interactions = append(a.Interactions, contract.Interaction{
		Description:   "a request for a cart that was never created",
		ProviderState: "no cart exists for customer customer-99",
		Request: contract.Request{
			Method: http.MethodGet,
			Path:   matchers.From("/carts/customer-99"),
		},
		Response: contract.Response{
			Status: http.StatusNotFound,
			Body:   matchers.From(matchers.Map{"error": matchers.Like("cart not found")}),
		},
	})

	var err error
	s.pact, err = json.Marshal(a)
	s.require.NoError(err)
	return s
}

func (s *HarnessStage) the_add_item_interaction_is_declared() *HarnessStage {
	s.require.NoError(s.admin.AddInteraction(s.ctx, s.scenario(addItem).Interaction))
	return s
}

func (s *HarnessStage) a_quantity_constraint_of_(quantity int) *HarnessStage {
	s.require.NoError(s.admin.ForInteraction(addItem).AddConstraint(s.ctx, "$.body.quantity", quantity))
	return s
}

func (s *HarnessStage) a_modified_response_status_of_(status, attempt int) *HarnessStage {
	s.require.NoError(s.admin.ForInteraction(addItem).AddModifier(s.ctx, "$.status", status, &attempt))
	return s
}

func (s *HarnessStage) each_scenario_is_run_through_the_admin_api() *HarnessStage {
	for _, sc := range s.scenarios {
		s.require.NoError(s.admin.AddInteraction(s.ctx, sc.Interaction))
		exerciseErr := sc.Exercise(s.ctx, s.mock.URL())
		verifyErr := s.admin.Verify(s.ctx)
		if exerciseErr != nil {
			s.scenarioErrs = append(s.scenarioErrs, exerciseErr)
		}
		if verifyErr != nil {
			s.scenarioErrs = append(s.scenarioErrs, verifyErr)
		}
	}

	path, err := s.admin.WritePact(s.ctx)
	s.require.NoError(err)
	s.pact, err = os.ReadFile(path)
	s.require.NoError(err)
	return s
}

func (s *HarnessStage) the_pact_is_verified_against_the_carts_provider() *HarnessStage {
	port, err := utils.GetFreePort()
	s.require.NoError(err)

	start, err := json.Marshal(map[string]interface{}{"name": "carts", "port": port})
	s.require.NoError(err)
	res, err := http.Post(adminURL+"/providers", "application/json", bytes.NewReader(start))
	s.require.NoError(err)
	res.Body.Close()
	s.require.Equal(http.StatusCreated, res.StatusCode)

	res, err = http.Post(adminURL+"/verifications", "application/json", bytes.NewReader(s.pact))
	s.require.NoError(err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	s.require.NoError(err)
	s.verificationStatus = res.StatusCode
	s.require.NoError(json.Unmarshal(body, &s.report), string(body))
	return s
}

func (s *HarnessStage) record(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *HarnessStage) addItem(quantity int) {
	item := fixtures.NewCartItem(fixtures.ProductID(1), quantity, 99.99)
	_, err := s.carts.AddItem(s.ctx, fixtures.CustomerID, item)
	if err != nil {
		s.record(clients.StatusOf(err))
		return
	}
	s.record(http.StatusCreated)
}

func (s *HarnessStage) the_frontend_adds_an_item_with_quantity_(quantity int) *HarnessStage {
	s.addItem(quantity)
	return s
}

func (s *HarnessStage) n_items_are_added(n int) *HarnessStage {
	for i := 0; i < n; i++ {
		s.addItem(1)
	}
	return s
}

func (s *HarnessStage) n_items_are_added_concurrently(n int) *HarnessStage {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.addItem(1)
		}()
	}
	wg.Wait()
	return s
}

func (s *HarnessStage) the_mock_provider_waits_for_(n int) *HarnessStage {
	s.require.NoError(s.admin.WaitForInteraction(s.ctx, addItem, n))
	return s
}

func (s *HarnessStage) the_mock_provider_is_verified() *HarnessStage {
	s.mockVerificationErr = s.admin.Verify(s.ctx)
	return s
}

func (s *HarnessStage) every_scenario_passed() *HarnessStage {
	s.assert.Empty(s.scenarioErrs)
	return s
}

func (s *HarnessStage) a_pact_with_every_scenario_is_written() *HarnessStage {
	a, err := contract.Parse(s.pact)
	s.require.NoError(err)
	s.assert.Equal(contracts.Consumer, a.Consumer)
	s.assert.Equal("carts", a.Provider)
	s.assert.Len(a.Interactions, len(s.scenarios))
	return s
}

func (s *HarnessStage) verification_is_successful() *HarnessStage {
	s.assert.Equal(http.StatusOK, s.verificationStatus)
	s.assert.True(s.report.OK())
	for _, res := range s.report.Results {
		s.assert.Equal(verifier.PhaseMatched, res.Phase, res.Description)
	}
	return s
}

func (s *HarnessStage) verification_fails_at_(path string) *HarnessStage {
	s.assert.Equal(http.StatusUnprocessableEntity, s.verificationStatus)
	s.require.Len(s.report.Results, 1)
	res := s.report.Results[0]
	s.assert.Equal(verifier.PhaseMismatched, res.Phase)
	s.require.NotEmpty(res.Mismatches)
	s.assert.Equal(path, res.Mismatches[0].Path)
	s.assert.False(s.report.Published)
	return s
}

func (s *HarnessStage) the_responses_are_(statuses ...int) *HarnessStage {
	s.assert.Equal(statuses, s.statuses)
	return s
}

func (s *HarnessStage) all_n_responses_are_(n, status int) *HarnessStage {
	s.require.Len(s.statuses, n)
	for _, got := range s.statuses {
		s.assert.Equal(status, got)
	}
	return s
}

func (s *HarnessStage) mock_verification_is_successful() *HarnessStage {
	s.assert.NoError(s.mockVerificationErr)
	return s
}

func (s *HarnessStage) mock_verification_is_not_successful() *HarnessStage {
	s.require.Error(s.mockVerificationErr)
	s.assert.Equal(http.StatusInternalServerError, clients.StatusOf(s.mockVerificationErr))
	return s
}
