package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/form3tech-oss/pact-harness/internal/app/matchers"
	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthArtifact() *contract.Artifact {
	a := contract.NewArtifact("frontend", "payment")
	a.Interactions = append(a.Interactions, contract.Interaction{
		Description: "a health check",
		Request:     contract.Request{Method: http.MethodGet, Path: matchers.From("/health")},
		Response: contract.Response{
			Status: http.StatusOK,
			Body:   matchers.From(matchers.Map{"status": "healthy"}),
		},
	})
	return a
}

func fastBroker(url string) *HTTPBroker {
	b := NewHTTPBroker(url)
	b.Delay = time.Millisecond
	return b
}

func TestHTTPBroker_Publish(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(http.StatusCreated))
	server := httptest.NewServer(handler)
	defer server.Close()

	err := fastBroker(server.URL+"/").Publish(context.Background(), healthArtifact(), "1.0.0")
	require.NoError(t, err)

	req := <-requests
	assert.Equal(t, http.MethodPut, req.Request.Method)
	assert.Equal(t, "/pacts/provider/payment/consumer/frontend/version/1.0.0", req.Request.URL.Path)
	assert.Equal(t, "application/json", req.Request.Header.Get("Content-Type"))

	published, err := contract.Parse(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "a health check", published.Interactions[0].Description)
}

func TestHTTPBroker_RejectionIsNotRetried(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(http.StatusConflict))
	server := httptest.NewServer(handler)
	defer server.Close()

	err := fastBroker(server.URL).Publish(context.Background(), healthArtifact(), "1.0.0")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Len(t, requests, 1)
}

func TestHTTPBroker_RetriesTransportErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic(http.ErrAbortHandler)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := fastBroker(server.URL).Publish(context.Background(), healthArtifact(), "1.0.0")

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPBroker_Unreachable(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(http.StatusOK))
	server.Close()

	b := fastBroker(server.URL)
	b.Attempts = 2
	err := b.Publish(context.Background(), healthArtifact(), "1.0.0")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "frontend-payment.json")
}

func TestPublish_RequiresVersion(t *testing.T) {
	assert.Error(t, fastBroker("http://localhost:1").Publish(context.Background(), healthArtifact(), ""))
	assert.Error(t, NewRedisBroker("localhost:1").Publish(context.Background(), healthArtifact(), ""))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "pact:frontend-payment:1.0.0", Key("frontend", "payment", "1.0.0"))
}

func TestRedisBroker_PublishAndFetch(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	b := NewRedisBroker(addr)
	defer b.Close()
	require.NoError(t, b.Ping(ctx))

	require.NoError(t, b.Publish(ctx, healthArtifact(), "1.0.0"))

	for _, version := range []string{"1.0.0", "latest"} {
		a, err := b.Fetch(ctx, "frontend", "payment", version)
		require.NoError(t, err)
		data, err := json.Marshal(a)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"a health check"`)
	}

	_, err := b.Fetch(ctx, "frontend", "payment", "0.0.0-missing")
	assert.Error(t, err)
}
