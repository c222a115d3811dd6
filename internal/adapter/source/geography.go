package source

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/vaccination-data-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed geography.yaml
var defaultGeography []byte

// LoadGeography parses the geography at path, or the embedded default when
// path is empty, and validates it.
func LoadGeography(path string) (domain.Geography, error) {
	data := defaultGeography
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return domain.Geography{}, fmt.Errorf("read geography: %w", err)
		}
	}
	return ParseGeography(data)
}

// ParseGeography decodes and validates a YAML geography document. Unknown
// keys are rejected.
func ParseGeography(data []byte) (domain.Geography, error) {
	var geo domain.Geography
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&geo); err != nil && !errors.Is(err, io.EOF) {
		return domain.Geography{}, fmt.Errorf("parse geography: %w", err)
	}
	if err := geo.Validate(); err != nil {
		return domain.Geography{}, err
	}
	return geo, nil
}
