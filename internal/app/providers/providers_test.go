package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/form3tech-oss/pact-harness/internal/app/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.Handler, method, path, body string) (int, map[string]interface{}, []byte) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var object map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &object)
	return rec.Code, object, rec.Body.Bytes()
}

func TestCatalogue_Size(t *testing.T) {
	p := NewCatalogue(nil)
	require.NoError(t, p.SetUp(context.Background(), "products exist"))

	code, body, _ := serve(t, p.Echo, http.MethodGet, "/catalogue/size", "")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"size": float64(5)}, body)
}

func TestCatalogue_SizeWithTags(t *testing.T) {
	p := NewCatalogue(nil)
	require.NoError(t, p.SetUp(context.Background(), ""))

	code, body, _ := serve(t, p.Echo, http.MethodGet, "/catalogue/size?tags=formal,magic", "")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(4), body["size"])
}

func TestCatalogue_Get(t *testing.T) {
	p := NewCatalogue(nil)
	require.NoError(t, p.SetUp(context.Background(), "product with ID sock-42 exists"))

	for _, tt := range []struct {
		name string
		path string
		code int
	}{
		{name: "seeded product", path: "/catalogue/" + fixtures.ProductID(1), code: http.StatusOK},
		{name: "product named by the state", path: "/catalogue/sock-42", code: http.StatusOK},
		{name: "unknown product", path: "/catalogue/" + fixtures.UnknownProductID, code: http.StatusNotFound},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			code, body, _ := serve(t, p.Echo, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.code, code)
			if tt.code == http.StatusNotFound {
				assert.Contains(t, body, "error")
			} else {
				assert.Contains(t, body, "id")
			}
		})
	}
}

func TestCatalogue_ProductMissing(t *testing.T) {
	p := NewCatalogue(nil)
	id := fixtures.ProductID(2)
	require.NoError(t, p.SetUp(context.Background(), "product with ID "+id+" does not exist"))

	code, body, _ := serve(t, p.Echo, http.MethodGet, "/catalogue/"+id, "")

	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "product "+id+" not found", body["error"])
	assert.Equal(t, 4, p.Store.Size())
}

func TestCatalogue_ListAndTags(t *testing.T) {
	p := NewCatalogue(nil)
	require.NoError(t, p.SetUp(context.Background(), "products exist"))

	code, _, raw := serve(t, p.Echo, http.MethodGet, "/catalogue", "")
	require.Equal(t, http.StatusOK, code)
	var products []fixtures.Product
	require.NoError(t, json.Unmarshal(raw, &products))
	assert.Equal(t, fixtures.Products(), products)

	code, body, _ := serve(t, p.Echo, http.MethodGet, "/tags", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["tags"], len(fixtures.Tags()))

	require.NoError(t, p.SetUp(context.Background(), "no products exist"))
	_, _, raw = serve(t, p.Echo, http.MethodGet, "/catalogue", "")
	assert.JSONEq(t, "[]", string(raw))
}

func TestCatalogue_HandlersAreIdempotent(t *testing.T) {
	p := NewCatalogue(nil)

	require.NoError(t, p.SetUp(context.Background(), "products exist"))
	once := p.Store.List()
	require.NoError(t, p.SetUp(context.Background(), "products exist"))

	assert.Equal(t, once, p.Store.List())
	assert.Equal(t, 5, p.Store.Size())
}

func TestCarts_DeleteThenGet(t *testing.T) {
	p := NewCarts(nil)
	require.NoError(t, p.SetUp(context.Background(), "cart exists for customer "+fixtures.CustomerID))

	code, body, _ := serve(t, p.Echo, http.MethodDelete, "/carts/"+fixtures.CustomerID, "")
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, map[string]interface{}{"status": "accepted"}, body)

	code, _, raw := serve(t, p.Echo, http.MethodGet, "/carts/"+fixtures.CustomerID, "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"customerId":"customer-12345","items":[]}`, string(raw))
}

func TestCarts_StateForAnyCustomer(t *testing.T) {
	p := NewCarts(nil)
	require.NoError(t, p.SetUp(context.Background(), "cart has items for customer customer-777"))

	code, _, raw := serve(t, p.Echo, http.MethodGet, "/carts/customer-777/items", "")

	require.Equal(t, http.StatusOK, code)
	var items []fixtures.CartItem
	require.NoError(t, json.Unmarshal(raw, &items))
	assert.Equal(t, fixtures.CartItems(), items)
}

func TestCarts_Items(t *testing.T) {
	p := NewCarts(nil)
	require.NoError(t, p.SetUp(context.Background(), "empty cart for customer c-1"))
	product := fixtures.Products()[1]
	item := `{"itemId":"` + product.ID + `","quantity":2,"unitPrice":18}`

	for _, tt := range []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{name: "add", method: http.MethodPost, path: "/carts/c-1/items", body: item, code: http.StatusCreated},
		{name: "add without id", method: http.MethodPost, path: "/carts/c-1/items", body: `{"quantity":1}`, code: http.StatusBadRequest},
		{name: "add negative quantity", method: http.MethodPost, path: "/carts/c-1/items", body: `{"itemId":"x","quantity":-1}`, code: http.StatusBadRequest},
		{name: "add malformed", method: http.MethodPost, path: "/carts/c-1/items", body: `{"itemId":`, code: http.StatusBadRequest},
		{name: "update", method: http.MethodPatch, path: "/carts/c-1/items", body: `{"itemId":"` + product.ID + `","quantity":5}`, code: http.StatusAccepted},
		{name: "update missing item", method: http.MethodPatch, path: "/carts/c-1/items", body: `{"itemId":"nope","quantity":5}`, code: http.StatusNotFound},
		{name: "remove", method: http.MethodDelete, path: "/carts/c-1/items/" + product.ID, code: http.StatusNoContent},
		{name: "remove again", method: http.MethodDelete, path: "/carts/c-1/items/" + product.ID, code: http.StatusNotFound},
		{name: "remove from unknown cart", method: http.MethodDelete, path: "/carts/c-2/items/" + product.ID, code: http.StatusNotFound},
	} {
		code, body, _ := serve(t, p.Echo, tt.method, tt.path, tt.body)
		assert.Equal(t, tt.code, code, tt.name)
		if code >= http.StatusBadRequest {
			assert.Contains(t, body, "error", tt.name)
		}
	}
}

func TestCarts_AddMergesQuantity(t *testing.T) {
	p := NewCarts(nil)
	require.NoError(t, p.SetUp(context.Background(), "no cart exists for customer c-9"))

	serve(t, p.Echo, http.MethodPost, "/carts/c-9/items", `{"itemId":"sock","unitPrice":3}`)
	code, body, _ := serve(t, p.Echo, http.MethodPost, "/carts/c-9/items", `{"itemId":"sock","quantity":2,"unitPrice":3}`)

	assert.Equal(t, http.StatusCreated, code)
	assert.Equal(t, float64(3), body["quantity"])
	cart, ok := p.Store.Get("c-9")
	require.True(t, ok)
	assert.Len(t, cart.Items, 1)
}

func TestPayment_Authorise(t *testing.T) {
	p := NewPayment(nil)

	for _, tt := range []struct {
		name       string
		state      string
		request    fixtures.PaymentRequest
		code       int
		authorised bool
		message    string
	}{
		{
			name:       "approved card",
			state:      "payment service is healthy",
			request:    fixtures.NewPaymentRequest(50),
			code:       http.StatusOK,
			authorised: true,
			message:    fixtures.AuthorisedMessage,
		},
		{
			name:    "designated declined card",
			state:   "payment service is healthy",
			request: fixtures.DeclinedPaymentRequest(50),
			code:    http.StatusOK,
			message: fixtures.DeclinedMessage,
		},
		{
			name:    "card declined by state",
			state:   "card " + fixtures.ApprovedCardNumber + " will be declined",
			request: fixtures.NewPaymentRequest(50),
			code:    http.StatusOK,
			message: fixtures.DeclinedMessage,
		},
		{
			name:    "all declined",
			state:   "all payments are declined",
			request: fixtures.NewPaymentRequest(50),
			code:    http.StatusOK,
			message: "Payment declined",
		},
		{
			name:    "amount over limit",
			state:   "payment service is healthy",
			request: fixtures.NewPaymentRequest(200),
			code:    http.StatusOK,
			message: "Payment declined: amount exceeds 105.00",
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, p.SetUp(context.Background(), tt.state))
			raw, err := json.Marshal(tt.request)
			require.NoError(t, err)

			code, body, _ := serve(t, p.Echo, http.MethodPost, "/paymentAuth", string(raw))

			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.authorised, body["authorised"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestPayment_InvalidRequest(t *testing.T) {
	p := NewPayment(nil)

	code, body, _ := serve(t, p.Echo, http.MethodPost, "/paymentAuth", `{"amount":0}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "error")

	code, body, _ = serve(t, p.Echo, http.MethodPost, "/paymentAuth", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "error")
}

func TestPayment_Unavailable(t *testing.T) {
	p := NewPayment(nil)
	require.NoError(t, p.SetUp(context.Background(), "payment service is unavailable"))

	code, body, _ := serve(t, p.Echo, http.MethodPost, "/paymentAuth", `{"amount":10}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "error")

	code, body, _ = serve(t, p.Echo, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])

	require.NoError(t, p.SetUp(context.Background(), "payment service is healthy"))
	code, body, _ = serve(t, p.Echo, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
}

func TestStateSetupEndpoint(t *testing.T) {
	p := NewCarts(nil)

	code, _, _ := serve(t, p.Echo, http.MethodPost, StateSetupPath, `{"consumer":"frontend","state":"cart has items for customer c-5"}`)
	require.Equal(t, http.StatusOK, code)
	cart, ok := p.Store.Get("c-5")
	require.True(t, ok)
	assert.Len(t, cart.Items, 2)

	code, body, _ := serve(t, p.Echo, http.MethodPost, StateSetupPath, `{"state":"cart is haunted"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "cart is haunted")
}

func TestUnknownRouteRendersError(t *testing.T) {
	p := NewPayment(nil)

	code, body, _ := serve(t, p.Echo, http.MethodGet, "/nothing-here", "")

	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, "error")
}

func TestProvidersOwnTheirState(t *testing.T) {
	a, b := NewCarts(nil), NewCarts(nil)
	require.NoError(t, a.SetUp(context.Background(), "cart exists for customer c-1"))

	_, ok := b.Store.Get("c-1")
	assert.False(t, ok)
}

func TestServer_CloseRightAfterStart(t *testing.T) {
	for i := 0; i < 20; i++ {
		s, err := New(Carts)
		require.NoError(t, err)
		require.NoError(t, s.Start())
		require.NoError(t, s.Close(context.Background()))
	}
}

func TestServer_StartAndClose(t *testing.T) {
	s, err := New(Catalogue)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer s.Close(context.Background())

	require.NoError(t, s.SetUp(context.Background(), "products exist"))
	resp, err := http.Get(s.URL() + "/catalogue/size")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Error(t, s.Start())

	_, err = New("inventory")
	assert.Error(t, err)
}
