package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geobridge/internal/codec"
	"geobridge/internal/domain"
	"geobridge/internal/engine"
)

func TestAttributeFilter(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		allow   []string
		deny    []string
	}{
		{
			name:  "empty admits everything",
			allow: []string{"height", "seed", "a/b"},
		},
		{
			name:    "include only",
			include: []string{"h*"},
			allow:   []string{"height", "hue"},
			deny:    []string{"seed"},
		},
		{
			name:    "exclude wins",
			include: []string{"*"},
			exclude: []string{"debug_*"},
			allow:   []string{"height"},
			deny:    []string{"debug_id"},
		},
		{
			name:    "doublestar crosses separators",
			include: []string{"meta/**"},
			allow:   []string{"meta/a/b"},
			deny:    []string{"other/a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewAttributeFilter(tt.include, tt.exclude)
			require.NoError(t, err)
			for _, n := range tt.allow {
				assert.True(t, f.Allow(n), n)
			}
			for _, n := range tt.deny {
				assert.False(t, f.Allow(n), n)
			}
		})
	}

	_, err := NewAttributeFilter(nil, []string{"[oops"})
	assert.Error(t, err)
}

func TestDispatcherFiltersBothWays(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	node := newNode(t, s, "p")
	require.NoError(t, s.SetPartInfo(ctx, node, 0, engine.PartInfo{Type: engine.PartMesh, PointCount: 2}))

	attrs := domain.NewAttributes()
	require.NoError(t, attrs.Add(domain.NewColumn("height", domain.Float32(1))))
	require.NoError(t, attrs.Add(domain.NewColumn("debug_id", domain.Int32(3))))

	filter, err := NewAttributeFilter(nil, []string{"debug_*"})
	require.NoError(t, err)
	d := NewDispatcher(s, codec.DefaultConverter, DefaultAttributePrefix, filter)
	require.NoError(t, d.Encode(ctx, node, 0, engine.OwnerPoint, attrs, 2, nil))

	names, err := s.AttributeNames(ctx, node, 0, engine.OwnerPoint)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultAttributePrefix + "height"}, names)

	// written unfiltered, read back filtered
	open := NewDispatcher(s, codec.DefaultConverter, DefaultAttributePrefix, AttributeFilter{})
	require.NoError(t, open.Encode(ctx, node, 0, engine.OwnerPoint, attrs, 2, nil))
	decoded, err := d.Decode(ctx, node, 0, engine.OwnerPoint)
	require.NoError(t, err)
	assert.Equal(t, 1, decoded.Len())
	_, ok := decoded.Column("height")
	assert.True(t, ok)
}

func TestDispatcherSkipsUnsupportedLayouts(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	node := newNode(t, s, "p")
	require.NoError(t, s.SetPartInfo(ctx, node, 0, engine.PartInfo{Type: engine.PartMesh, PointCount: 1}))

	// a 7-wide float tuple has no scene type
	info := engine.AttributeInfo{Exists: true, Owner: engine.OwnerPoint, Storage: engine.StorageFloat, TupleSize: 7, Count: 1}
	name := DefaultAttributePrefix + "odd"
	require.NoError(t, s.AddAttribute(ctx, node, 0, name, info))
	require.NoError(t, s.SetAttributeData(ctx, node, 0, name, info, make(engine.Float32Buffer, 7)))

	// unprefixed attributes are not generic
	plain := engine.AttributeInfo{Exists: true, Owner: engine.OwnerPoint, Storage: engine.StorageFloat, TupleSize: 1, Count: 1}
	require.NoError(t, s.AddAttribute(ctx, node, 0, "pscale", plain))

	d := NewDispatcher(s, codec.DefaultConverter, DefaultAttributePrefix, AttributeFilter{})
	attrs, err := d.Decode(ctx, node, 0, engine.OwnerPoint)
	require.NoError(t, err)
	assert.Equal(t, 0, attrs.Len())
}

func TestReindex(t *testing.T) {
	col := domain.NewColumn("id", domain.Int32(-1))
	require.NoError(t, col.SetValue(0, domain.Int32(10)))
	require.NoError(t, col.SetValue(1, domain.Int32(20)))

	out, err := reindex(col, []int64{1, -1, 0})
	require.NoError(t, err)

	for i, want := range []domain.Int32{20, -1, 10} {
		v, err := out.Resolve(i)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}

	uniform := domain.NewColumn("u", domain.Int32(5))
	same, err := reindex(uniform, []int64{3, 2, 1})
	require.NoError(t, err)
	assert.Same(t, uniform, same)
}
