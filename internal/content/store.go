// Package content keeps scene collections in memory and persists them as
// scene files under a content directory.
package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"

	"geobridge/internal/domain"
	"geobridge/internal/service"
)

// FileExt is the extension finalized assets are saved with
const FileExt = ".yaml"

// Store holds collections by asset path
type Store struct {
	mu       sync.RWMutex
	dir      string
	assets   map[string]*domain.Collection
	modified map[string]bool
	eventBus *service.EventBus
}

// NewStore creates a store saving under dir. An empty dir keeps
// everything in memory.
func NewStore(dir string, eventBus *service.EventBus) *Store {
	return &Store{
		dir:      dir,
		assets:   make(map[string]*domain.Collection),
		modified: make(map[string]bool),
		eventBus: eventBus,
	}
}

// Dir returns the content directory
func (s *Store) Dir() string { return s.dir }

// FindOrCreate returns the collection at path, creating it if needed
func (s *Store) FindOrCreate(_ context.Context, path string) (*domain.Collection, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("asset path required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.assets[path]; ok {
		return c, nil
	}
	c := domain.NewCollection(path)
	s.assets[path] = c
	return c, nil
}

// Put stores c under its own path, replacing what was there
func (s *Store) Put(c *domain.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[c.Path] = c
}

// Get returns the collection at path
func (s *Store) Get(path string) (*domain.Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.assets[path]
	return c, ok
}

// Paths returns every held asset path, sorted
func (s *Store) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.assets))
	for p := range s.assets {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Modified reports whether path changed since it was last finalized
func (s *Store) Modified(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified[path]
}

// NotifyChanged marks c modified and publishes the change
func (s *Store) NotifyChanged(_ context.Context, c *domain.Collection) error {
	s.mu.Lock()
	s.modified[c.Path] = true
	s.mu.Unlock()

	s.eventBus.Publish(service.Event{
		Type:    service.EventAssetModified,
		Payload: service.AssetPayload{Path: c.Path, Items: len(c.Items)},
	})
	return nil
}

// Finalize saves c to its file and clears its modified flag
func (s *Store) Finalize(ctx context.Context, c *domain.Collection) error {
	if s.dir != "" {
		file, err := s.FilePath(c.Path)
		if err != nil {
			return err
		}
		if err := SaveFile(file, c); err != nil {
			return err
		}
		logging.GetFromContext(ctx).Debug("saved asset", "path", c.Path, "file", file)
	}

	s.mu.Lock()
	delete(s.modified, c.Path)
	s.mu.Unlock()

	s.eventBus.Publish(service.Event{
		Type:    service.EventAssetFinalized,
		Payload: service.AssetPayload{Path: c.Path, Items: len(c.Items)},
	})
	return nil
}

// Load returns the collection at path, reading its file when it is not
// held yet
func (s *Store) Load(ctx context.Context, path string) (*domain.Collection, error) {
	if c, ok := s.Get(path); ok {
		return c, nil
	}
	if s.dir == "" {
		return nil, fmt.Errorf("%s: %w", path, service.ErrAssetNotFound)
	}

	file, err := s.FilePath(path)
	if err != nil {
		return nil, err
	}
	c, err := LoadFile(file)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, service.ErrAssetNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.Path = path

	logging.GetFromContext(ctx).Debug("loaded asset", "path", path, "file", file, "items", len(c.Items))
	s.Put(c)
	return c, nil
}

// FilePath maps an asset path onto a file under the content directory:
// <dir>/<asset path>.yaml
func (s *Store) FilePath(path string) (string, error) {
	rel := filepath.FromSlash(strings.TrimPrefix(path, "/"))
	rel = filepath.Clean(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid asset path %q", path)
	}
	return filepath.Join(s.dir, rel+FileExt), nil
}

var (
	_ service.AssetStore  = (*Store)(nil)
	_ service.AssetSource = (*Store)(nil)
)
