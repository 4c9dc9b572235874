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

type retrieveFixture struct {
	session  engine.Session
	assets   *memAssets
	tasks    *DeferredQueue
	bus      *EventBus
	uploader *Uploader
	r        *Retriever
}

func newRetrieveFixture(t *testing.T, session engine.Session, opts RetrieveOptions) *retrieveFixture {
	t.Helper()
	d := NewDispatcher(session, codec.DefaultConverter, DefaultAttributePrefix, AttributeFilter{})
	f := &retrieveFixture{
		session:  session,
		assets:   newMemAssets(),
		tasks:    NewDeferredQueue(),
		bus:      NewEventBus(),
		uploader: NewUploader(session, codec.DefaultConverter, d, UploadOptions{MarkOutput: true}),
	}
	f.r = NewRetriever(session, codec.DefaultConverter, d, f.assets, f.tasks, f.bus, opts)
	return f
}

func (f *retrieveFixture) upload(t *testing.T, name string, src domain.Source, item domain.TaggedData) engine.NodeID {
	t.Helper()
	node := newNode(t, f.session, name)
	require.NoError(t, f.uploader.Upload(context.Background(), node, src, item))
	return node
}

// setOutputFlag writes the output asset detail attribute with the given layout
func setOutputFlag(t *testing.T, s engine.Session, node engine.NodeID, data engine.Buffer, tuple int) {
	t.Helper()
	info := engine.AttributeInfo{Exists: true, Owner: engine.OwnerDetail, Storage: data.Storage(), TupleSize: tuple, Count: 1}
	ctx := context.Background()
	require.NoError(t, s.AddAttribute(ctx, node, 0, AttrOutputAsset, info))
	require.NoError(t, s.SetAttributeData(ctx, node, 0, AttrOutputAsset, info, data))
}

func TestRetrievePointSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	f := newRetrieveFixture(t, s, RetrieveOptions{})

	ps := pointSet("trees", domain.Vector3{X: 1, Y: 2, Z: 3}, domain.Vector3{X: 4, Y: 5, Z: 6})
	ps.Points[1].Density = 0.5
	kind := domain.NewColumn("kind", domain.String("none"))
	require.NoError(t, kind.SetValue(0, domain.String("oak")))
	require.NoError(t, kind.SetValue(1, domain.String("pine")))
	require.NoError(t, ps.Attributes.Add(kind))

	src := domain.Source{Name: "Forest", Path: "/Game/PCG/Forest.Forest"}
	node := f.upload(t, "trees", src, domain.TaggedData{Tags: []string{"a", "b"}, Data: ps})

	colls, err := f.r.RetrieveNode(ctx, node, "out")
	require.NoError(t, err)
	require.Len(t, colls, 1)

	coll := colls[0]
	assert.Equal(t, "/Game/PCG/Forest.Forest", coll.Path)
	require.Len(t, coll.Items, 1)
	require.Len(t, coll.Checksums, 1)
	assert.NotEmpty(t, coll.Checksums[0])
	assert.Equal(t, []string{"a", "b"}, coll.Items[0].Tags)

	got, ok := coll.Items[0].Data.(*domain.PointSet)
	require.True(t, ok)
	assert.Equal(t, "trees", got.Name)
	require.Len(t, got.Points, 2)

	for i, want := range []domain.Vector3{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}} {
		loc := got.Points[i].Transform.Location
		assert.InDelta(t, want.X, loc.X, 1e-4)
		assert.InDelta(t, want.Y, loc.Y, 1e-4)
		assert.InDelta(t, want.Z, loc.Z, 1e-4)
		assert.InDelta(t, 1, got.Points[i].Transform.Rotation.W, 1e-6)
		assert.Equal(t, int64(i), got.Points[i].Entry)
	}
	assert.InDelta(t, 0.5, got.Points[1].Density, 1e-6)

	col, ok := got.Attributes.Column("kind")
	require.True(t, ok)
	for i, want := range []string{"oak", "pine"} {
		v, err := col.Resolve(i)
		require.NoError(t, err)
		assert.Equal(t, domain.String(want), v)
	}

	assert.Equal(t, []string{coll.Path}, f.assets.changed)
	assert.Empty(t, f.assets.finalized, "finalize waits for the queue to drain")
	assert.Equal(t, 1, f.tasks.Len())

	require.NoError(t, f.tasks.Drain(ctx))
	assert.Equal(t, []string{coll.Path}, f.assets.finalized)
}

func TestRetrieveFallbackAssetPath(t *testing.T) {
	tests := []struct {
		name string
		opts RetrieveOptions
		src  domain.Source
		want string
	}{
		{
			name: "no object path",
			src:  domain.Source{Name: "p"},
			want: "/Game/HoudiniEngine/Temp/PCGDA_out_0",
		},
		{
			name: "custom cook folder",
			opts: RetrieveOptions{CookFolder: "/Game/Cooked/", AssetPrefix: "DA"},
			src:  domain.Source{Name: "p"},
			want: "/Game/Cooked/DA_out_0",
		},
		{
			name: "object path is not a reference",
			src:  domain.Source{Name: "p", Path: "not a path"},
			want: "/Game/HoudiniEngine/Temp/PCGDA_out_0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t)
			f := newRetrieveFixture(t, s, tt.opts)
			node := f.upload(t, "p", tt.src, domain.TaggedData{Data: pointSet("p", domain.Vector3{})})

			colls, err := f.r.RetrieveNode(context.Background(), node, "out")
			require.NoError(t, err)
			require.Len(t, colls, 1)
			assert.Equal(t, tt.want, colls[0].Path)
		})
	}
}

func TestIsPartValid(t *testing.T) {
	points := engine.PartInfo{Type: engine.PartMesh, PointCount: 1}
	mesh := engine.PartInfo{Type: engine.PartMesh, PointCount: 3, VertexCount: 3, FaceCount: 1}
	curve := engine.PartInfo{Type: engine.PartCurve, PointCount: 2, VertexCount: 2, FaceCount: 1}

	tests := []struct {
		name   string
		part   engine.PartInfo
		meshes bool
		flag   engine.Buffer
		tuple  int
		want   bool
	}{
		{name: "points flagged", part: points, flag: engine.Int32Buffer{1}, tuple: 1, want: true},
		{name: "points flag zero", part: points, flag: engine.Int32Buffer{0}, tuple: 1, want: false},
		{name: "points unflagged", part: points, want: false},
		{name: "float flag", part: points, flag: engine.Float32Buffer{1}, tuple: 1, want: false},
		{name: "wide flag", part: points, flag: engine.Int32Buffer{1, 1}, tuple: 2, want: false},
		{name: "int64 flag", part: points, flag: engine.Int64Buffer{5}, tuple: 1, want: true},
		{name: "curve flagged", part: curve, flag: engine.Int32Buffer{1}, tuple: 1, want: true},
		{name: "mesh without mesh output", part: mesh, flag: engine.Int32Buffer{1}, tuple: 1, want: false},
		{name: "mesh with mesh output", part: mesh, meshes: true, flag: engine.Int32Buffer{1}, tuple: 1, want: true},
		{name: "instancer", part: engine.PartInfo{Type: engine.PartInstancer}, flag: engine.Int32Buffer{1}, tuple: 1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestSession(t)
			f := newRetrieveFixture(t, s, RetrieveOptions{Meshes: tt.meshes})
			node := newNode(t, s, "part")
			require.NoError(t, s.SetPartInfo(ctx, node, 0, tt.part))
			if tt.flag != nil {
				setOutputFlag(t, s, node, tt.flag, tt.tuple)
			}

			got, err := f.r.IsPartValid(ctx, node, tt.part)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRetrieveCurvesPerPrimRotation(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	f := newRetrieveFixture(t, s, RetrieveOptions{})
	node := newNode(t, s, "roads")

	part := engine.PartInfo{Name: "road", Type: engine.PartCurve, PointCount: 7, VertexCount: 7, FaceCount: 2}
	require.NoError(t, s.SetPartInfo(ctx, node, 0, part))
	require.NoError(t, s.SetCurveInfo(ctx, node, 0, engine.CurveInfo{Type: engine.CurveLinear, CurveCount: 2, VertexCount: 7, Order: 2}))
	require.NoError(t, s.SetCurveCounts(ctx, node, 0, []int32{3, 4}))

	pos := make(engine.Float32Buffer, 0, 21)
	for i := 0; i < 7; i++ {
		pos = append(pos, float32(i), 0, 0)
	}
	posInfo := floatInfo(engine.OwnerPoint, 3, engine.TypeInfoPoint, 7)
	require.NoError(t, s.AddAttribute(ctx, node, 0, AttrPosition, posInfo))
	require.NoError(t, s.SetAttributeData(ctx, node, 0, AttrPosition, posInfo, pos))

	rotInfo := floatInfo(engine.OwnerPrim, 4, engine.TypeInfoQuaternion, 2)
	require.NoError(t, s.AddAttribute(ctx, node, 0, AttrRotation, rotInfo))
	require.NoError(t, s.SetAttributeData(ctx, node, 0, AttrRotation, rotInfo, engine.Float32Buffer{0, 0, 0, -1, 0.5, 0.5, 0.5, -0.5}))

	setOutputFlag(t, s, node, engine.Int32Buffer{1}, 1)

	colls, err := f.r.RetrieveNode(ctx, node, "roads")
	require.NoError(t, err)
	require.Len(t, colls, 1)
	assert.Equal(t, "/Game/HoudiniEngine/Temp/PCGDA_roads_0", colls[0].Path)
	require.Len(t, colls[0].Items, 2)

	first := colls[0].Items[0].Data.(*domain.Curve)
	second := colls[0].Items[1].Data.(*domain.Curve)
	assert.Equal(t, "road_0", first.Name)
	assert.Equal(t, "road_1", second.Name)
	require.Len(t, first.Points, 3)
	require.Len(t, second.Points, 4)

	for _, p := range first.Points {
		assert.Equal(t, domain.IdentityQuat, p.Rotation)
	}
	for _, p := range second.Points {
		assert.Equal(t, domain.Quat{X: 0.5, Y: 0.5, Z: 0.5, W: 0.5}, p.Rotation)
	}
	assert.InDelta(t, 300, second.Points[0].Position.X, 1e-4)
}

func TestRetrieveCurveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	f := newRetrieveFixture(t, s, RetrieveOptions{})

	c := domain.NewCurve("path")
	c.Closed = true
	for i := 0; i < 4; i++ {
		c.Points = append(c.Points, domain.NewSplinePoint(float32(i), domain.Vector3{X: float64(i) * 100, Y: 50}))
	}
	node := f.upload(t, "path", domain.Source{Name: "path"}, domain.TaggedData{Data: c})

	colls, err := f.r.RetrieveNode(ctx, node, "out")
	require.NoError(t, err)
	require.Len(t, colls, 1)
	require.Len(t, colls[0].Items, 1)

	got := colls[0].Items[0].Data.(*domain.Curve)
	assert.Equal(t, "path", got.Name)
	assert.True(t, got.Closed)
	require.Len(t, got.Points, 4)
	for i, p := range got.Points {
		assert.InDelta(t, float64(i)*100, p.Position.X, 1e-3)
		assert.InDelta(t, 50, p.Position.Y, 1e-3)
		assert.Equal(t, float32(i), p.InputKey)
	}
}

func TestRetrieveMeshSkipsDegenerate(t *testing.T) {
	m := domain.NewMesh("rock")
	m.Vertices = []domain.Vector3{{}, {X: 100}, {Y: 100}, {Z: 100}}
	m.Triangles = []domain.Triangle{{0, 1, 2}, {1, 1, 3}}

	t.Run("mesh output enabled", func(t *testing.T) {
		ctx := context.Background()
		s := newTestSession(t)
		f := newRetrieveFixture(t, s, RetrieveOptions{Meshes: true})
		node := f.upload(t, "rock", domain.Source{Name: "rock"}, domain.TaggedData{Data: m})

		colls, err := f.r.RetrieveNode(ctx, node, "out")
		require.NoError(t, err)
		require.Len(t, colls, 1)

		got := colls[0].Items[0].Data.(*domain.Mesh)
		require.Len(t, got.Triangles, 1)
		require.Len(t, got.Vertices, 3, "the vertex only the degenerate triangle used is dropped")

		tri := got.Triangles[0]
		for i, want := range m.Vertices[:3] {
			v := got.Vertices[tri[i]]
			assert.InDelta(t, want.X, v.X, 1e-4)
			assert.InDelta(t, want.Y, v.Y, 1e-4)
			assert.InDelta(t, want.Z, v.Z, 1e-4)
		}
	})

	t.Run("mesh output disabled", func(t *testing.T) {
		s := newTestSession(t)
		f := newRetrieveFixture(t, s, RetrieveOptions{})
		node := f.upload(t, "rock", domain.Source{Name: "rock"}, domain.TaggedData{Data: m})

		colls, err := f.r.RetrieveNode(context.Background(), node, "out")
		require.NoError(t, err)
		assert.Empty(t, colls)
	})
}

func TestRetrieveResetsCollectionOncePerCall(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	f := newRetrieveFixture(t, s, RetrieveOptions{})

	src := domain.Source{Name: "Forest", Path: "/Game/PCG/Forest.Forest"}
	node := f.upload(t, "p", src, domain.TaggedData{Data: pointSet("p", domain.Vector3{})})

	stale := domain.NewCollection(src.Path)
	stale.Add(domain.TaggedData{Data: pointSet("stale", domain.Vector3{})}, "old")
	f.assets.put(stale)

	events := make(chan Event, 8)
	f.bus.Subscribe(events)

	part, err := s.PartInfo(ctx, node, 0)
	require.NoError(t, err)

	colls, err := f.r.Retrieve(ctx, node, "out", []engine.PartInfo{part, part})
	require.NoError(t, err)
	require.Len(t, colls, 1)
	assert.Same(t, stale, colls[0])
	require.Len(t, stale.Items, 2)
	for _, item := range stale.Items {
		assert.Equal(t, "p", item.Data.Label())
	}
	assert.Equal(t, 1, f.tasks.Len(), "one finalize per touched collection")

	select {
	case e := <-events:
		assert.Equal(t, EventRetrieveFinished, e.Type)
	default:
		t.Fatal("expected a retrieve event")
	}
}

func TestRetrieveDecodesEachDistinctStringOnce(t *testing.T) {
	ctx := context.Background()
	rs := &recordingSession{Session: newTestSession(t)}
	up := newTestUploader(t, rs, UploadOptions{})
	node := newNode(t, rs, "p")

	ps := pointSet("p", domain.Vector3{}, domain.Vector3{}, domain.Vector3{}, domain.Vector3{}, domain.Vector3{}, domain.Vector3{})
	col := domain.NewColumn("kind", domain.String(""))
	oak, err := col.AddValue(domain.String("oak"))
	require.NoError(t, err)
	pine, err := col.AddValue(domain.String("pine"))
	require.NoError(t, err)
	for i := range ps.Points {
		k := oak
		if i%2 == 1 {
			k = pine
		}
		col.SetEntry(i, domain.Ref(k))
	}
	require.NoError(t, ps.Attributes.Add(col))
	require.NoError(t, up.Upload(ctx, node, domain.Source{Name: "p"}, domain.TaggedData{Data: ps}))

	d := NewDispatcher(rs, codec.DefaultConverter, DefaultAttributePrefix, AttributeFilter{})
	attrs, err := d.Decode(ctx, node, 0, engine.OwnerPoint)
	require.NoError(t, err)

	require.Len(t, rs.lookups, 1)
	assert.Len(t, rs.lookups[0], 2)

	got, ok := attrs.Column("kind")
	require.True(t, ok)
	for i := range ps.Points {
		v, err := got.Resolve(i)
		require.NoError(t, err)
		want := domain.String("oak")
		if i%2 == 1 {
			want = "pine"
		}
		assert.Equal(t, want, v)
	}
}

func TestRetrieveMissingNode(t *testing.T) {
	s := newTestSession(t)
	f := newRetrieveFixture(t, s, RetrieveOptions{})

	_, err := f.r.RetrieveNode(context.Background(), engine.NodeID(42), "out")
	assert.ErrorIs(t, err, engine.ErrNodeNotFound)
}
