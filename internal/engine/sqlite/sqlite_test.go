package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geobridge/internal/engine"
)

// ============================================================================
// Test Helpers
// ============================================================================

// newTestSession creates an in-memory session store for testing
func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err, "failed to create test session")
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// newPointPart creates a node holding one mesh part with n points
func newPointPart(t *testing.T, s *Session, n int) engine.NodeID {
	t.Helper()
	ctx := context.Background()
	node, err := s.CreateNode(ctx, engine.NoNode, "null", "points")
	require.NoError(t, err)
	require.NoError(t, s.SetPartInfo(ctx, node, 0, engine.PartInfo{Type: engine.PartMesh, PointCount: n}))
	return node
}

func pointAttr(storage engine.StorageType, tuple, count int) engine.AttributeInfo {
	return engine.AttributeInfo{Owner: engine.OwnerPoint, Storage: storage, TupleSize: tuple, Count: count}
}

// ============================================================================
// Node Tests
// ============================================================================

func TestNodes(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	t.Run("create and list", func(t *testing.T) {
		geo, err := s.CreateNode(ctx, engine.NoNode, "geo", "input")
		require.NoError(t, err)
		child, err := s.CreateNode(ctx, geo, "null", "child")
		require.NoError(t, err)

		nodes, err := s.ListNodes(ctx)
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, engine.NoNode, nodes[0].Parent)
		assert.Equal(t, geo, nodes[1].Parent)
		assert.Equal(t, child, nodes[1].ID)
	})

	t.Run("deleting parent removes children", func(t *testing.T) {
		nodes, err := s.ListNodes(ctx)
		require.NoError(t, err)
		require.NoError(t, s.DeleteNode(ctx, nodes[0].ID))

		nodes, err = s.ListNodes(ctx)
		require.NoError(t, err)
		assert.Empty(t, nodes)
	})

	t.Run("missing node", func(t *testing.T) {
		err := s.DeleteNode(ctx, 999)
		assert.True(t, errors.Is(err, engine.ErrNodeNotFound))

		_, err = s.CreateNode(ctx, 999, "null", "orphan")
		assert.True(t, errors.Is(err, engine.ErrNodeNotFound))
	})

	t.Run("commit counts", func(t *testing.T) {
		node, err := s.CreateNode(ctx, engine.NoNode, "null", "n")
		require.NoError(t, err)
		require.NoError(t, s.CommitGeo(ctx, node))
		require.NoError(t, s.CommitGeo(ctx, node))

		info, err := s.Node(ctx, node)
		require.NoError(t, err)
		assert.Equal(t, 2, info.Commits)
	})

	t.Run("connections follow deletes", func(t *testing.T) {
		merge, err := s.CreateNode(ctx, engine.NoNode, "merge", "merge")
		require.NoError(t, err)
		a, err := s.CreateNode(ctx, engine.NoNode, "null", "a")
		require.NoError(t, err)
		b, err := s.CreateNode(ctx, engine.NoNode, "null", "b")
		require.NoError(t, err)
		require.NoError(t, s.ConnectNodeInput(ctx, merge, 0, a))
		require.NoError(t, s.ConnectNodeInput(ctx, merge, 1, b))

		require.NoError(t, s.DeleteNode(ctx, a))
		inputs, err := s.NodeInputs(ctx, merge)
		require.NoError(t, err)
		assert.Equal(t, []engine.NodeID{b}, inputs)
	})
}

// ============================================================================
// Attribute Tests
// ============================================================================

func TestAttributeData(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	node := newPointPart(t, s, 2)

	t.Run("full write round trip", func(t *testing.T) {
		info := pointAttr(engine.StorageFloat, 3, 2)
		require.NoError(t, s.AddAttribute(ctx, node, 0, "P", info))
		require.NoError(t, s.SetAttributeData(ctx, node, 0, "P", info, engine.Float32Buffer{1, 2, 3, 4, 5, 6}))

		got, err := s.AttributeInfo(ctx, node, 0, "P", engine.OwnerPoint)
		require.NoError(t, err)
		assert.True(t, got.Exists)
		assert.False(t, got.Unique)

		data, err := s.AttributeData(ctx, node, 0, "P", got)
		require.NoError(t, err)
		assert.Equal(t, engine.Float32Buffer{1, 2, 3, 4, 5, 6}, data)
	})

	t.Run("unique write reports unique", func(t *testing.T) {
		info := pointAttr(engine.StorageInt64, 1, 2)
		require.NoError(t, s.AddAttribute(ctx, node, 0, "id", info))
		require.NoError(t, s.SetAttributeUniqueData(ctx, node, 0, "id", info, engine.Int64Buffer{1 << 40}))

		got, err := s.AttributeInfo(ctx, node, 0, "id", engine.OwnerPoint)
		require.NoError(t, err)
		assert.True(t, got.Unique)

		data, err := s.AttributeData(ctx, node, 0, "id", got)
		require.NoError(t, err)
		assert.Equal(t, engine.Int64Buffer{1 << 40}, data)
	})

	t.Run("strings come back as handles", func(t *testing.T) {
		info := pointAttr(engine.StorageString, 1, 2)
		require.NoError(t, s.AddAttribute(ctx, node, 0, "label", info))
		require.NoError(t, s.SetAttributeData(ctx, node, 0, "label", info, engine.StringBuffer{"a", "a"}))

		data, err := s.AttributeData(ctx, node, 0, "label", info)
		require.NoError(t, err)
		handles, ok := data.(engine.HandleBuffer)
		require.True(t, ok)
		require.Len(t, handles, 2)
		assert.Equal(t, handles[0], handles[1])

		strs, err := s.StringValues(ctx, []engine.StringHandle{handles[0]})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, strs)
	})

	t.Run("names in declaration order", func(t *testing.T) {
		names, err := s.AttributeNames(ctx, node, 0, engine.OwnerPoint)
		require.NoError(t, err)
		assert.Equal(t, []string{"P", "id", "label"}, names)

		part, err := s.PartInfo(ctx, node, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, part.AttributeCounts[engine.OwnerPoint])
	})

	t.Run("missing attribute reports not exists", func(t *testing.T) {
		got, err := s.AttributeInfo(ctx, node, 0, "nope", engine.OwnerPoint)
		require.NoError(t, err)
		assert.False(t, got.Exists)
	})
}

func TestAttributeInvariants(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	node := newPointPart(t, s, 2)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{
			name: "count must match owner",
			run: func() error {
				return s.AddAttribute(ctx, node, 0, "x", pointAttr(engine.StorageFloat, 1, 3))
			},
			want: engine.ErrInvalidArgument,
		},
		{
			name: "empty name",
			run: func() error {
				return s.AddAttribute(ctx, node, 0, "", pointAttr(engine.StorageFloat, 1, 2))
			},
			want: engine.ErrInvalidArgument,
		},
		{
			name: "write before add",
			run: func() error {
				return s.SetAttributeData(ctx, node, 0, "ghost", pointAttr(engine.StorageFloat, 1, 2), engine.Float32Buffer{1, 2})
			},
			want: engine.ErrAttributeNotFound,
		},
		{
			name: "storage mismatch",
			run: func() error {
				info := pointAttr(engine.StorageFloat, 1, 2)
				if err := s.AddAttribute(ctx, node, 0, "w", info); err != nil {
					return err
				}
				return s.SetAttributeData(ctx, node, 0, "w", info, engine.Int32Buffer{1, 2})
			},
			want: engine.ErrStorageMismatch,
		},
		{
			name: "length mismatch",
			run: func() error {
				info := pointAttr(engine.StorageFloat, 1, 2)
				if err := s.AddAttribute(ctx, node, 0, "v", info); err != nil {
					return err
				}
				return s.SetAttributeData(ctx, node, 0, "v", info, engine.Float32Buffer{1})
			},
			want: engine.ErrInvalidArgument,
		},
		{
			name: "missing part",
			run: func() error {
				return s.AddAttribute(ctx, node, 5, "x", pointAttr(engine.StorageFloat, 1, 2))
			},
			want: engine.ErrPartNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestSetPartInfoResetsGeometry(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	node := newPointPart(t, s, 1)

	info := pointAttr(engine.StorageFloat, 1, 1)
	require.NoError(t, s.AddAttribute(ctx, node, 0, "stale", info))
	require.NoError(t, s.SetAttributeData(ctx, node, 0, "stale", info, engine.Float32Buffer{9}))

	require.NoError(t, s.SetPartInfo(ctx, node, 0, engine.PartInfo{Type: engine.PartMesh, PointCount: 4}))

	names, err := s.AttributeNames(ctx, node, 0, engine.OwnerPoint)
	require.NoError(t, err)
	assert.Empty(t, names)
}

// ============================================================================
// Topology Tests
// ============================================================================

func TestTopology(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	t.Run("mesh faces", func(t *testing.T) {
		node, err := s.CreateNode(ctx, engine.NoNode, "null", "mesh")
		require.NoError(t, err)
		require.NoError(t, s.SetPartInfo(ctx, node, 0, engine.PartInfo{Type: engine.PartMesh, PointCount: 3, VertexCount: 3, FaceCount: 1}))
		require.NoError(t, s.SetVertexList(ctx, node, 0, []int32{2, 1, 0}))
		require.NoError(t, s.SetFaceCounts(ctx, node, 0, []int32{3}))

		verts, err := s.VertexList(ctx, node, 0)
		require.NoError(t, err)
		assert.Equal(t, []int32{2, 1, 0}, verts)

		err = s.SetVertexList(ctx, node, 0, []int32{0, 1, 7})
		assert.True(t, errors.Is(err, engine.ErrInvalidArgument))
	})

	t.Run("curve counts must sum to vertex count", func(t *testing.T) {
		node, err := s.CreateNode(ctx, engine.NoNode, "null", "curve")
		require.NoError(t, err)
		require.NoError(t, s.SetPartInfo(ctx, node, 0, engine.PartInfo{Type: engine.PartCurve, PointCount: 7, VertexCount: 7, FaceCount: 2}))
		require.NoError(t, s.SetCurveInfo(ctx, node, 0, engine.CurveInfo{Type: engine.CurveLinear, CurveCount: 2, VertexCount: 7, Order: 2}))

		err = s.SetCurveCounts(ctx, node, 0, []int32{3, 3})
		assert.True(t, errors.Is(err, engine.ErrInvalidArgument))

		require.NoError(t, s.SetCurveCounts(ctx, node, 0, []int32{3, 4}))
		counts, err := s.CurveCounts(ctx, node, 0)
		require.NoError(t, err)
		assert.Equal(t, []int32{3, 4}, counts)

		info, err := s.CurveInfo(ctx, node, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, info.CurveCount)
	})

	t.Run("instance transforms default rot and scale", func(t *testing.T) {
		node := newPointPart(t, s, 2)
		p := pointAttr(engine.StorageFloat, 3, 2)
		require.NoError(t, s.AddAttribute(ctx, node, 0, "P", p))
		require.NoError(t, s.SetAttributeData(ctx, node, 0, "P", p, engine.Float32Buffer{1, 2, 3, 4, 5, 6}))
		sc := pointAttr(engine.StorageFloat, 3, 2)
		require.NoError(t, s.AddAttribute(ctx, node, 0, "scale", sc))
		require.NoError(t, s.SetAttributeUniqueData(ctx, node, 0, "scale", sc, engine.Float32Buffer{2, 2, 2}))

		xforms, err := s.InstanceTransforms(ctx, node, 0)
		require.NoError(t, err)
		require.Len(t, xforms, 2)
		assert.Equal(t, [3]float32{4, 5, 6}, xforms[1].Position)
		assert.Equal(t, [4]float32{0, 0, 0, 1}, xforms[1].Rotation)
		assert.Equal(t, [3]float32{2, 2, 2}, xforms[1].Scale)
	})
}

func TestInputState(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	state, found, err := s.LoadInput(ctx, "scene")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, engine.NoNode, state.GeoNode)

	want := engine.InputState{GeoNode: 1, MergeNode: 2, MergeInputs: 2, Slots: []engine.NodeID{3, 4}}
	require.NoError(t, s.SaveInput(ctx, "scene", want))

	got, found, err := s.LoadInput(ctx, "scene")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}
