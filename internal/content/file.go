package content

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"geobridge/internal/codec"
	"geobridge/internal/domain"
)

// LoadFile reads a scene file, picking the format from its extension
func LoadFile(path string) (*domain.Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseFile(path, data)
}

// ParseFile parses scene file bytes in the format of path's extension
func ParseFile(path string, data []byte) (*domain.Collection, error) {
	c, err := codec.ForPath(path).Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// SaveFile writes c to path, creating parent directories
func SaveFile(path string, c *domain.Collection) error {
	var buf bytes.Buffer
	if err := codec.ForPath(path).Export(c, &buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
