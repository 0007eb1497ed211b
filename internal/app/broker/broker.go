// Package broker publishes verified contract artifacts so providers and
// consumers can share the version that last passed verification.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/form3tech-oss/pact-harness/internal/app/contract"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Publisher stores an artifact under the provider version that verified it.
type Publisher interface {
	Publish(ctx context.Context, a *contract.Artifact, version string) error
}

// HTTPBroker publishes to a pact broker over its HTTP API.
type HTTPBroker struct {
	URL      string
	Client   *http.Client
	Attempts uint
	Delay    time.Duration
}

func NewHTTPBroker(brokerURL string) *HTTPBroker {
	return &HTTPBroker{
		URL:      strings.TrimSuffix(brokerURL, "/"),
		Client:   &http.Client{Timeout: 30 * time.Second},
		Attempts: 3,
		Delay:    time.Second,
	}
}

// PactPath is where the broker expects the artifact for a consumer version.
func PactPath(a *contract.Artifact, version string) string {
	return fmt.Sprintf("/pacts/provider/%s/consumer/%s/version/%s",
		url.PathEscape(a.Provider), url.PathEscape(a.Consumer), url.PathEscape(version))
}

type transportError struct {
	err error
}

func (e transportError) Error() string {
	return e.err.Error()
}

// Publish PUTs the artifact to the broker. Only transport errors are retried,
// a rejection by the broker fails straight away.
func (b *HTTPBroker) Publish(ctx context.Context, a *contract.Artifact, version string) error {
	if version == "" {
		return errors.New("a version is required to publish")
	}

	body, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "unable to encode artifact")
	}

	target := b.URL + PactPath(a, version)
	err = retry.Do(
		func() error {
			return b.put(ctx, target, body)
		},
		retry.Context(ctx),
		retry.Attempts(b.Attempts),
		retry.Delay(b.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			_, ok := err.(transportError)
			return ok
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warnf("publish to %s failed, attempt %d: %s", target, n+1, err.Error())
		}),
	)
	if err != nil {
		if te, ok := err.(transportError); ok {
			err = te.err
		}
		return errors.Wrapf(err, "unable to publish %s", contract.FileName(a.Consumer, a.Provider))
	}

	log.Infof("published %s version %s to %s", contract.FileName(a.Consumer, a.Provider), version, b.URL)
	return nil
}

func (b *HTTPBroker) put(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := b.Client.Do(req)
	if err != nil {
		return transportError{err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(res.Body)
		return errors.Errorf("broker returned %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
