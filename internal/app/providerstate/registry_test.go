package providerstate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCartRegistry(t *testing.T, calls *[]State) *Registry {
	r := NewRegistry("carts")
	record := func(ctx context.Context, s State) error {
		*calls = append(*calls, s)
		return nil
	}
	require.NoError(t, r.Register("cart-exists", "cart exists for customer {customerId}", record))
	require.NoError(t, r.Register("empty-cart", "empty cart for customer {customerId}", record))
	require.NoError(t, r.Register("item-in-cart", "cart for customer {customerId} contains item {itemId}", record))
	return r
}

func TestRegistry_DispatchesAnyID(t *testing.T) {
	var calls []State
	r := newCartRegistry(t, &calls)

	require.NoError(t, r.SetUp(context.Background(), "cart exists for customer customer-12345"))
	require.NoError(t, r.SetUp(context.Background(), "cart exists for customer customer-999"))
	require.NoError(t, r.SetUp(context.Background(), "cart for customer c-1 contains item sock.1"))

	require.Len(t, calls, 3)
	assert.Equal(t, "cart-exists", calls[0].Kind)
	assert.Equal(t, "customer-12345", calls[0].Param("customerId"))
	assert.Equal(t, "customer-999", calls[1].Param("customerId"))
	assert.Equal(t, "item-in-cart", calls[2].Kind)
	assert.Equal(t, map[string]string{"customerId": "c-1", "itemId": "sock.1"}, calls[2].Params)
}

func TestRegistry_UnknownState(t *testing.T) {
	var calls []State
	r := newCartRegistry(t, &calls)

	err := r.SetUp(context.Background(), "cart exists for customers")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoStateHandler))
	assert.Contains(t, err.Error(), "cart exists for customers")
	assert.Empty(t, calls)
}

func TestRegistry_TemplateIsLiteral(t *testing.T) {
	r := NewRegistry("catalogue")
	require.NoError(t, r.Register("price", "product costs $5.00 (today)", func(context.Context, State) error { return nil }))

	_, _, err := r.Parse("product costs $5.00 (today)")
	assert.NoError(t, err)

	_, _, err = r.Parse("product costs $5x00 (today)")
	assert.Error(t, err)
}

func TestRegistry_DuplicateKind(t *testing.T) {
	var calls []State
	r := newCartRegistry(t, &calls)

	err := r.Register("cart-exists", "another cart for {customerId}", nil)

	assert.Error(t, err)
}

func TestRegistry_EmptyStateUsesDefault(t *testing.T) {
	var calls []State
	r := newCartRegistry(t, &calls)

	require.NoError(t, r.SetUp(context.Background(), ""))
	assert.Empty(t, calls)

	defaulted := false
	r.Default(func(context.Context, State) error {
		defaulted = true
		return nil
	})
	require.NoError(t, r.SetUp(context.Background(), ""))
	assert.True(t, defaulted)
}

func TestRegistry_HandlerError(t *testing.T) {
	r := NewRegistry("payment")
	r.MustRegister("broken", "payment service is broken", func(context.Context, State) error {
		return errors.New("boom")
	})

	err := r.SetUp(context.Background(), "payment service is broken")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []string{"payment service is broken"}, r.Templates())
}

func TestRemoteSetup(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(http.StatusOK))
	server := httptest.NewServer(handler)
	defer server.Close()

	err := NewRemoteSetup(server.URL, "frontend").SetUp(context.Background(), "products exist")
	require.NoError(t, err)

	req := <-requests
	assert.Equal(t, http.MethodPost, req.Request.Method)

	var body SetupRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, SetupRequest{Consumer: "frontend", State: "products exist", States: []string{"products exist"}}, body)
}

func TestRemoteSetup_Failure(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(http.StatusBadRequest))
	defer server.Close()

	err := NewRemoteSetup(server.URL, "frontend").SetUp(context.Background(), "products exist")

	assert.Error(t, err)
}

func TestRemoteSetup_EmptyState(t *testing.T) {
	err := NewRemoteSetup("http://localhost:1", "frontend").SetUp(context.Background(), "")

	assert.NoError(t, err)
}
