package codec

import (
	"fmt"
	"io"

	"geobridge/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec handles YAML scene files
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// Parse imports a collection from YAML
func (c *YAMLCodec) Parse(r io.Reader) (*domain.Collection, error) {
	var doc sceneDocument
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	coll, err := doc.collection()
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return coll, nil
}

// Export exports a collection to YAML
func (c *YAMLCodec) Export(coll *domain.Collection, w io.Writer) error {
	doc, err := documentOf(coll)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
