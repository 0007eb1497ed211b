package contract

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// FileName is the file an artifact between consumer and provider is written to.
func FileName(consumer, provider string) string {
	return consumer + "-" + provider + ".json"
}

// Parse validates data against the contract schema, decodes it and checks the
// artifact is self consistent.
func Parse(data []byte) (*Artifact, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidArtifact, "unable to read document. %s", err.Error())
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.Field()+": "+e.Description())
		}
		return nil, errors.Wrapf(ErrInvalidArtifact, "schema violations: %s", strings.Join(problems, "; "))
	}

	if err := checkDocumentRules(data); err != nil {
		return nil, errors.Wrapf(ErrInvalidArtifact, "%s", err.Error())
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrapf(ErrInvalidArtifact, "unable to decode artifact. %s", err.Error())
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read contract %s", path)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "contract %s", path)
	}
	log.Infof("loaded contract %s with %d interactions", path, len(a.Interactions))
	return a, nil
}

// Write stores the artifact in dir as FileName(consumer, provider), replacing
// any previous file. The file is written next to its destination and renamed
// so readers never observe a partial artifact.
func (a *Artifact) Write(dir string) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "unable to encode artifact")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "unable to create pact directory %s", dir)
	}

	path := filepath.Join(dir, FileName(a.Consumer, a.Provider))
	tmp, err := os.CreateTemp(dir, ".pact-*.json")
	if err != nil {
		return "", errors.Wrap(err, "unable to create temporary contract file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return "", errors.Wrap(err, "unable to write contract")
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "unable to write contract")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", errors.Wrapf(err, "unable to move contract to %s", path)
	}

	log.Infof("wrote contract %s with %d interactions", path, len(a.Interactions))
	return path, nil
}
