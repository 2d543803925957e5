// Package scanfile decodes the JSON or YAML files the scanner drops into the
// inbox.
package scanfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/codestash/internal/symbology"
)

// ErrInvalid marks files that can never be ingested.
var ErrInvalid = errors.New("scanfile: invalid scan file")

// Extensions lists the file suffixes the inbox picks up.
var Extensions = []string{".json", ".yaml", ".yml"}

// Scan is one decoded scanner result.
type Scan struct {
	Payload   string `yaml:"payload" json:"payload"`
	Symbology string `yaml:"symbology" json:"symbology"`
	Name      string `yaml:"name,omitempty" json:"name,omitempty"`
	Favorite  bool   `yaml:"favorite,omitempty" json:"favorite,omitempty"`
}

// Validate checks that the scan can become a record.
func (s Scan) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Payload, validation.Required),
		validation.Field(&s.Symbology, validation.Required, validation.By(knownSymbology)),
	)
}

func knownSymbology(v any) error {
	id, _ := v.(string)
	if _, err := symbology.Parse(id); err != nil {
		return errors.New("unknown symbology")
	}
	return nil
}

// Supported reports whether name has one of Extensions.
func Supported(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Parse decodes one document holding either a single scan or a list of them.
// JSON is accepted as a subset of YAML.
func Parse(data []byte) ([]Scan, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalid)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return nil, fmt.Errorf("%w: no document", ErrInvalid)
	}

	var scans []Scan
	switch root := node.Content[0]; root.Kind {
	case yaml.MappingNode:
		var s Scan
		if err := root.Decode(&s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		scans = []Scan{s}
	case yaml.SequenceNode:
		if err := root.Decode(&scans); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	default:
		return nil, fmt.Errorf("%w: expected a mapping or a list", ErrInvalid)
	}

	if len(scans) == 0 {
		return nil, fmt.Errorf("%w: no scans", ErrInvalid)
	}
	for i, s := range scans {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("%w: scan %d: %v", ErrInvalid, i, err)
		}
	}
	return scans, nil
}

// Marshal encodes scans as a list in the format name's extension implies, so
// the result parses back with Parse.
func Marshal(name string, scans []Scan) ([]byte, error) {
	if strings.EqualFold(path.Ext(name), ".json") {
		out, err := json.MarshalIndent(scans, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("scanfile: encode json: %w", err)
		}
		return append(out, '\n'), nil
	}
	out, err := yaml.Marshal(scans)
	if err != nil {
		return nil, fmt.Errorf("scanfile: encode yaml: %w", err)
	}
	return out, nil
}
