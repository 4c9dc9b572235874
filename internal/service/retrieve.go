package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"geobridge/internal/codec"
	"geobridge/internal/domain"
	"geobridge/internal/engine"
	"geobridge/internal/topology"
)

// Output defaults
const (
	DefaultCookFolder  = "/Game/HoudiniEngine/Temp/"
	DefaultAssetPrefix = "PCGDA"
)

// RetrieveOptions tune where and what a retrieve writes
type RetrieveOptions struct {
	CookFolder  string
	AssetPrefix string
	// Meshes enables mesh output for parts with faces
	Meshes bool
}

// Retriever decodes committed engine parts into scene collections
type Retriever struct {
	session  engine.Session
	conv     codec.Converter
	dispatch *Dispatcher
	assets   AssetStore
	tasks    TaskQueue
	eventBus *EventBus
	opts     RetrieveOptions
}

// NewRetriever creates a retriever
func NewRetriever(session engine.Session, conv codec.Converter, dispatch *Dispatcher, assets AssetStore, tasks TaskQueue, eventBus *EventBus, opts RetrieveOptions) *Retriever {
	if opts.CookFolder == "" {
		opts.CookFolder = DefaultCookFolder
	}
	if opts.AssetPrefix == "" {
		opts.AssetPrefix = DefaultAssetPrefix
	}
	return &Retriever{
		session:  session,
		conv:     conv,
		dispatch: dispatch,
		assets:   assets,
		tasks:    tasks,
		eventBus: eventBus,
		opts:     opts,
	}
}

// IsPartValid reports whether part is flagged as a data asset output with
// a non-zero integer detail attribute and holds a retrievable kind
func (r *Retriever) IsPartValid(ctx context.Context, node engine.NodeID, part engine.PartInfo) (bool, error) {
	switch {
	case part.Type == engine.PartCurve:
	case part.Type == engine.PartMesh && part.FaceCount <= 0:
	case part.Type == engine.PartMesh && r.opts.Meshes:
	default:
		return false, nil
	}

	info, err := r.session.AttributeInfo(ctx, node, part.ID, AttrOutputAsset, engine.OwnerDetail)
	if err != nil {
		return false, err
	}
	if !info.Exists || info.TupleSize != 1 || !isIntStorage(info.Storage) {
		return false, nil
	}
	data, err := r.session.AttributeData(ctx, node, part.ID, AttrOutputAsset, info)
	if err != nil {
		return false, err
	}
	return data.Len() > 0 && data.Int(0) != 0, nil
}

func isIntStorage(s engine.StorageType) bool {
	switch s {
	case engine.StorageInt, engine.StorageInt64, engine.StorageInt8, engine.StorageInt16, engine.StorageUInt8:
		return true
	}
	return false
}

// RetrieveNode retrieves every valid part of node
func (r *Retriever) RetrieveNode(ctx context.Context, node engine.NodeID, outputName string) ([]*domain.Collection, error) {
	geo, err := r.session.GeoInfo(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("failed to get geo info: %w", err)
	}

	parts := make([]engine.PartInfo, 0, geo.PartCount)
	for id := 0; id < geo.PartCount; id++ {
		info, err := r.session.PartInfo(ctx, node, engine.PartID(id))
		if err != nil {
			return nil, fmt.Errorf("failed to get part info: %w", err)
		}
		valid, err := r.IsPartValid(ctx, node, info)
		if err != nil {
			return nil, fmt.Errorf("failed to validate part %d: %w", id, err)
		}
		if valid {
			parts = append(parts, info)
		}
	}
	return r.Retrieve(ctx, node, outputName, parts)
}

// Retrieve decodes parts into the collections they address. A collection
// is reset the first time a part of this call touches it. Touched
// collections are marked changed and queued for finalization.
func (r *Retriever) Retrieve(ctx context.Context, node engine.NodeID, outputName string, parts []engine.PartInfo) ([]*domain.Collection, error) {
	log := logging.GetFromContext(ctx)

	var touched []*domain.Collection
	seen := make(map[string]bool)

	for _, part := range parts {
		path, err := r.assetPath(ctx, node, part.ID, outputName)
		if err != nil {
			return nil, err
		}
		coll, err := r.assets.FindOrCreate(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to find asset %s: %w", path, err)
		}
		if !seen[coll.Path] {
			coll.Reset()
			seen[coll.Path] = true
			touched = append(touched, coll)
		}

		items, err := r.retrievePart(ctx, node, outputName, part)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			sum, err := codec.Checksum(item)
			if err != nil {
				return nil, fmt.Errorf("failed to checksum %s: %w", item.Data.Label(), err)
			}
			coll.Add(item, sum)
		}
	}

	for _, coll := range touched {
		if err := r.assets.NotifyChanged(ctx, coll); err != nil {
			return nil, fmt.Errorf("failed to notify asset %s: %w", coll.Path, err)
		}
		if r.tasks != nil {
			c := coll
			r.tasks.Enqueue("finalize "+c.Path, func(ctx context.Context) error {
				return r.assets.Finalize(ctx, c)
			})
		}
	}

	log.Info("retrieved node", "node", int32(node), "output", outputName, "parts", len(parts), "assets", len(touched))
	r.eventBus.Publish(Event{Type: EventRetrieveFinished, Payload: NodePayload{Node: int32(node), Name: outputName}})
	return touched, nil
}

// assetPath returns the collection a part writes into: the part's object
// path when it is a valid reference, else a path under the cook folder
func (r *Retriever) assetPath(ctx context.Context, node engine.NodeID, part engine.PartID, outputName string) (string, error) {
	for _, owner := range []engine.AttributeOwner{engine.OwnerDetail, engine.OwnerPrim, engine.OwnerPoint, engine.OwnerVertex} {
		info, err := r.session.AttributeInfo(ctx, node, part, AttrObjectPath, owner)
		if err != nil {
			return "", fmt.Errorf("failed to get object path info: %w", err)
		}
		if !info.Exists || info.Storage != engine.StorageString {
			continue
		}
		s, err := r.firstString(ctx, node, part, AttrObjectPath, info)
		if err != nil {
			return "", err
		}
		if ref, ok := codec.ParseReference(s); ok {
			return string(ref), nil
		}
		break
	}
	return fmt.Sprintf("%s%s_%s_%d", r.opts.CookFolder, r.opts.AssetPrefix, outputName, part), nil
}

func (r *Retriever) firstString(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo) (string, error) {
	data, err := r.session.AttributeData(ctx, node, part, name, info)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	if data.Len() == 0 {
		return "", nil
	}
	strs, err := r.session.StringValues(ctx, []engine.StringHandle{engine.StringHandle(data.Int(0))})
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	return strs[0], nil
}

func (r *Retriever) retrievePart(ctx context.Context, node engine.NodeID, outputName string, part engine.PartInfo) (_ []domain.TaggedData, err error) {
	ctx, span := tracer.Start(ctx, "retrieve-part", trace.WithAttributes(
		attribute.Int("node", int(node)),
		attribute.Int("part", int(part.ID)),
		attribute.String("type", part.Type.String()),
	))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	tags, err := r.tags(ctx, node, part.ID)
	if err != nil {
		return nil, err
	}
	name := part.Name
	if name == "" {
		name = fmt.Sprintf("%s_%d", outputName, part.ID)
	}

	var objects []domain.Object
	switch {
	case part.Type == engine.PartMesh && part.FaceCount <= 0:
		ps, err := r.retrievePoints(ctx, node, name, part)
		if err != nil {
			return nil, err
		}
		objects = append(objects, ps)
	case part.Type == engine.PartCurve:
		curves, err := r.retrieveCurves(ctx, node, name, part)
		if err != nil {
			return nil, err
		}
		for _, c := range curves {
			objects = append(objects, c)
		}
	case part.Type == engine.PartMesh && r.opts.Meshes:
		m, err := r.retrieveMesh(ctx, node, name, part)
		if err != nil {
			return nil, err
		}
		objects = append(objects, m)
	}

	items := make([]domain.TaggedData, 0, len(objects))
	for _, obj := range objects {
		items = append(items, domain.TaggedData{Tags: append([]string(nil), tags...), Data: obj})
	}
	return items, nil
}

func (r *Retriever) tags(ctx context.Context, node engine.NodeID, part engine.PartID) ([]string, error) {
	info, err := r.session.AttributeInfo(ctx, node, part, AttrTags, engine.OwnerDetail)
	if err != nil {
		return nil, fmt.Errorf("failed to get tags info: %w", err)
	}
	if !info.Exists || info.Storage != engine.StorageString {
		return nil, nil
	}
	s, err := r.firstString(ctx, node, part, AttrTags, info)
	if err != nil || s == "" {
		return nil, err
	}
	return strings.Split(s, TagSeparator), nil
}

func (r *Retriever) retrievePoints(ctx context.Context, node engine.NodeID, name string, part engine.PartInfo) (*domain.PointSet, error) {
	transforms, err := r.session.InstanceTransforms(ctx, node, part.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get instance transforms: %w", err)
	}

	ps := domain.NewPointSet(name)
	ps.Points = make([]domain.Point, len(transforms))
	for i, t := range transforms {
		p := domain.NewPoint(r.conv.PositionFromEngine(float64(t.Position[0]), float64(t.Position[1]), float64(t.Position[2])))
		p.Transform.Rotation = codec.QuatFromEngine(float64(t.Rotation[0]), float64(t.Rotation[1]), float64(t.Rotation[2]), float64(t.Rotation[3]))
		p.Transform.Scale = codec.VectorFromEngine(float64(t.Scale[0]), float64(t.Scale[1]), float64(t.Scale[2]))
		p.Entry = int64(i)
		ps.Points[i] = p
	}
	n := len(ps.Points)

	density, err := r.pointFloats(ctx, node, part.ID, AttrDensity, 1, n)
	if err != nil {
		return nil, err
	}
	color, err := r.pointFloats(ctx, node, part.ID, AttrColor, 3, n)
	if err != nil {
		return nil, err
	}
	alpha, err := r.pointFloats(ctx, node, part.ID, AttrAlpha, 1, n)
	if err != nil {
		return nil, err
	}
	for i := range ps.Points {
		p := &ps.Points[i]
		if density != nil {
			p.Density = float32(density.Float(i))
		}
		if color != nil {
			p.Color.X, p.Color.Y, p.Color.Z = color.Float(i*3), color.Float(i*3+1), color.Float(i*3+2)
		}
		if alpha != nil {
			p.Color.W = alpha.Float(i)
		}
	}

	attrs, err := r.dispatch.Decode(ctx, node, part.ID, engine.OwnerPoint)
	if err != nil {
		return nil, err
	}
	ps.Attributes = attrs
	return ps, nil
}

// pointFloats reads a float point attribute as count tuples, or nil when
// it is absent or differently shaped
func (r *Retriever) pointFloats(ctx context.Context, node engine.NodeID, part engine.PartID, name string, tuple, count int) (engine.Buffer, error) {
	info, err := r.session.AttributeInfo(ctx, node, part, name, engine.OwnerPoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get attribute info %s: %w", name, err)
	}
	if !info.Exists || info.TupleSize != tuple {
		return nil, nil
	}
	if info.Storage != engine.StorageFloat && info.Storage != engine.StorageFloat64 {
		return nil, nil
	}
	data, err := r.session.AttributeData(ctx, node, part, name, info)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if info.Unique {
		data = engine.Repeat(data, count)
	}
	if data.Len() < tuple*count {
		return nil, fmt.Errorf("attribute %s: short buffer: %w", name, engine.ErrInvalidArgument)
	}
	return data, nil
}

// channel reads name from the first owner carrying it, or nil
func (r *Retriever) channel(ctx context.Context, node engine.NodeID, part engine.PartID, name string) (*topology.Channel, error) {
	info, ok, err := engine.QueryOwner(ctx, r.session, node, part, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	data, err := r.session.AttributeData(ctx, node, part, name, info)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return topology.NewChannel(info, data), nil
}

func (r *Retriever) retrieveCurves(ctx context.Context, node engine.NodeID, name string, part engine.PartInfo) ([]*domain.Curve, error) {
	counts, err := r.session.CurveCounts(ctx, node, part.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get curve counts: %w", err)
	}
	positions, err := r.pointFloats(ctx, node, part.ID, AttrPosition, 3, part.PointCount)
	if err != nil {
		return nil, err
	}
	if positions == nil {
		return nil, engine.Fail("get attribute data", node, AttrPosition, engine.ErrAttributeNotFound)
	}

	d := topology.CurveData{Counts: counts, Positions: positions}
	for _, ch := range []struct {
		name string
		dst  **topology.Channel
	}{
		{AttrRotation, &d.Rotation},
		{AttrScale, &d.Scale},
		{AttrArriveTangent, &d.ArriveTangent},
		{AttrLeaveTangent, &d.LeaveTangent},
		{AttrCurveType, &d.Type},
		{AttrCurveClosed, &d.Closed},
	} {
		c, err := r.channel(ctx, node, part.ID, ch.name)
		if err != nil {
			return nil, err
		}
		*ch.dst = c
	}
	return topology.BuildCurves(r.conv, name, d)
}

func (r *Retriever) retrieveMesh(ctx context.Context, node engine.NodeID, name string, part engine.PartInfo) (*domain.Mesh, error) {
	positions, err := r.pointFloats(ctx, node, part.ID, AttrPosition, 3, part.PointCount)
	if err != nil {
		return nil, err
	}
	if positions == nil {
		return nil, engine.Fail("get attribute data", node, AttrPosition, engine.ErrAttributeNotFound)
	}
	vertices, err := r.session.VertexList(ctx, node, part.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get vertex list: %w", err)
	}
	return topology.BuildMesh(r.conv, name, positions, vertices)
}
