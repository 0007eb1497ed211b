package providerstate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SetupRequest is the body posted to a provider states setup URL.
type SetupRequest struct {
	Consumer string   `json:"consumer,omitempty"`
	State    string   `json:"state"`
	States   []string `json:"states,omitempty"`
}

// RemoteSetup drives state setup of a provider running in another process.
type RemoteSetup struct {
	URL      string
	Consumer string
	Client   *http.Client
}

func NewRemoteSetup(url, consumer string) *RemoteSetup {
	return &RemoteSetup{
		URL:      url,
		Consumer: consumer,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *RemoteSetup) SetUp(ctx context.Context, description string) error {
	if description == "" {
		return nil
	}

	body, err := json.Marshal(SetupRequest{
		Consumer: r.Consumer,
		State:    description,
		States:   []string{description},
	})
	if err != nil {
		return errors.Wrap(err, "unable to encode state setup request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "unable to create state setup request")
	}
	req.Header.Set("Content-Type", "application/json")

	log.Infof("setting up remote provider state '%s' via %s", description, r.URL)
	res, err := r.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "state setup request for '%s' failed", description)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(res.Body)
		return errors.Errorf("state setup for '%s' returned %d: %s", description, res.StatusCode, string(msg))
	}
	return nil
}
