package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"geobridge/internal/domain"
)

// JSONCodec handles JSON scene files
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse imports a collection from JSON. Numbers are kept exact until
// they are converted to the attribute type.
func (c *JSONCodec) Parse(r io.Reader) (*domain.Collection, error) {
	var doc sceneDocument
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	coll, err := doc.collection()
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return coll, nil
}

// Export exports a collection to JSON
func (c *JSONCodec) Export(coll *domain.Collection, w io.Writer) error {
	doc, err := documentOf(coll)
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
