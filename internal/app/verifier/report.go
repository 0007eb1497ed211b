package verifier

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Report struct {
	Consumer        string    `json:"consumer" yaml:"consumer"`
	Provider        string    `json:"provider" yaml:"provider"`
	ProviderURL     string    `json:"providerUrl" yaml:"providerUrl"`
	ProviderVersion string    `json:"providerVersion,omitempty" yaml:"providerVersion,omitempty"`
	StartedAt       time.Time `json:"startedAt" yaml:"startedAt"`
	Results         []Result  `json:"results" yaml:"results"`
	Published       bool      `json:"published" yaml:"published"`
}

func (r *Report) OK() bool {
	for _, res := range r.Results {
		if !res.OK() {
			return false
		}
	}
	return true
}

func (r *Report) Failures() []Result {
	var failures []Result
	for _, res := range r.Results {
		if !res.OK() {
			failures = append(failures, res)
		}
	}
	return failures
}

// Print writes a human readable summary, one line per interaction followed by
// what diverged.
func (r *Report) Print(w io.Writer) {
	passed := color.New(color.FgGreen)
	failed := color.New(color.FgRed)
	detail := color.New(color.FgYellow)

	fmt.Fprintf(w, "Verifying a pact between %s and %s at %s\n", r.Consumer, r.Provider, r.ProviderURL)
	for _, res := range r.Results {
		if res.OK() {
			passed.Fprintf(w, "  PASS %s\n", res.Description)
			continue
		}

		failed.Fprintf(w, "  FAIL %s [%s]\n", res.Description, res.Phase)
		if res.ProviderState != "" {
			fmt.Fprintf(w, "       given %s\n", res.ProviderState)
		}
		if res.Error != "" {
			detail.Fprintf(w, "       %s\n", res.Error)
		}
		for _, m := range res.Mismatches {
			detail.Fprintf(w, "       %s\n", m.String())
		}
	}

	failures := len(r.Failures())
	summary := fmt.Sprintf("%d interactions, %d failed", len(r.Results), failures)
	if failures > 0 {
		failed.Fprintln(w, summary)
		return
	}
	passed.Fprintln(w, summary)
	if r.Published {
		fmt.Fprintf(w, "published as provider version %s\n", r.ProviderVersion)
	}
}

// Save writes the report as YAML when path ends in .yaml or .yml, JSON otherwise.
func (r *Report) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(r)
	default:
		data, err = json.MarshalIndent(r, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "unable to encode report")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "unable to create report directory %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "unable to write report %s", path)
	}
	return nil
}
