package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"geobridge/internal/codec"
	"geobridge/internal/domain"
	"geobridge/internal/engine"
	"geobridge/internal/engine/sqlite"
)

// ============================================================================
// Test Helpers
// ============================================================================

func newTestSession(t *testing.T) *sqlite.Session {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err, "failed to create test session")
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func newTestUploader(t *testing.T, session engine.Session, opts UploadOptions) *Uploader {
	t.Helper()
	d := NewDispatcher(session, codec.DefaultConverter, DefaultAttributePrefix, AttributeFilter{})
	return NewUploader(session, codec.DefaultConverter, d, opts)
}

func pointSet(name string, positions ...domain.Vector3) *domain.PointSet {
	ps := domain.NewPointSet(name)
	for i, p := range positions {
		pt := domain.NewPoint(p)
		pt.Entry = int64(i)
		ps.Points = append(ps.Points, pt)
	}
	return ps
}

func items(objects ...domain.Object) []domain.TaggedData {
	out := make([]domain.TaggedData, len(objects))
	for i, o := range objects {
		out[i] = domain.TaggedData{Data: o}
	}
	return out
}

// nPointSets returns n single point sets named a, b, ...
func nPointSets(n int) []domain.TaggedData {
	objs := make([]domain.Object, n)
	for i := range objs {
		objs[i] = pointSet(string(rune('a'+i)), domain.Vector3{X: float64(i)})
	}
	return items(objs...)
}

func nodeExists(t *testing.T, s *sqlite.Session, node engine.NodeID) bool {
	t.Helper()
	_, err := s.Node(context.Background(), node)
	if errors.Is(err, engine.ErrNodeNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

// memAssets is an in-memory AssetStore and AssetSource
type memAssets struct {
	mu        sync.Mutex
	assets    map[string]*domain.Collection
	changed   []string
	finalized []string
}

func newMemAssets() *memAssets {
	return &memAssets{assets: make(map[string]*domain.Collection)}
}

func (m *memAssets) put(c *domain.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[c.Path] = c
}

func (m *memAssets) FindOrCreate(_ context.Context, path string) (*domain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.assets[path]; ok {
		return c, nil
	}
	c := domain.NewCollection(path)
	m.assets[path] = c
	return c, nil
}

func (m *memAssets) NotifyChanged(_ context.Context, c *domain.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changed = append(m.changed, c.Path)
	return nil
}

func (m *memAssets) Finalize(_ context.Context, c *domain.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = append(m.finalized, c.Path)
	return nil
}

func (m *memAssets) Load(_ context.Context, path string) (*domain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.assets[path]
	if !ok {
		return nil, ErrAssetNotFound
	}
	return c, nil
}

// recordingSession records node deletions and string lookups and can be
// told to fail the n-th CreateNode
type recordingSession struct {
	engine.Session

	failCreateAt int
	creates      int
	deleted      []engine.NodeID
	lookups      [][]engine.StringHandle
}

var errInjected = errors.New("injected failure")

func (r *recordingSession) CreateNode(ctx context.Context, parent engine.NodeID, operator, name string) (engine.NodeID, error) {
	r.creates++
	if r.failCreateAt > 0 && r.creates == r.failCreateAt {
		return engine.NoNode, engine.Fail("create node", parent, "", errInjected)
	}
	return r.Session.CreateNode(ctx, parent, operator, name)
}

func (r *recordingSession) DeleteNode(ctx context.Context, node engine.NodeID) error {
	r.deleted = append(r.deleted, node)
	return r.Session.DeleteNode(ctx, node)
}

func (r *recordingSession) StringValues(ctx context.Context, handles []engine.StringHandle) ([]string, error) {
	r.lookups = append(r.lookups, append([]engine.StringHandle(nil), handles...))
	return r.Session.StringValues(ctx, handles)
}
