// Package codec converts values between scene and engine layouts and
// reads and writes scene files.
package codec

import (
	"io"
	"path/filepath"
	"strings"

	"geobridge/internal/domain"
)

// Importer reads a collection from a scene file format
type Importer interface {
	Parse(r io.Reader) (*domain.Collection, error)
	Format() string
}

// Exporter writes a collection in a scene file format
type Exporter interface {
	Export(c *domain.Collection, w io.Writer) error
	Format() string
}

// Codec both reads and writes one format
type Codec interface {
	Importer
	Exporter
}

// ForPath picks the codec matching a file extension, YAML by default
func ForPath(path string) Codec {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return NewJSONCodec()
	}
	return NewYAMLCodec()
}
