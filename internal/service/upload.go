package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"geobridge/internal/codec"
	"geobridge/internal/domain"
	"geobridge/internal/engine"
	"geobridge/internal/topology"
)

// Engine attribute names
const (
	AttrPosition      = "P"
	AttrRotation      = "rot"
	AttrScale         = "scale"
	AttrDensity       = "density"
	AttrColor         = "Cd"
	AttrAlpha         = "Alpha"
	AttrArriveTangent = "unreal_spline_point_arrive_tangent"
	AttrLeaveTangent  = "unreal_spline_point_leave_tangent"
	AttrCurveClosed   = "curve_closed"
	AttrCurveType     = "curve_type"
	AttrObjectPath    = "unreal_object_path"
	AttrTags          = "unreal_pcg_tags"
	AttrOutputAsset   = "unreal_output_pcg_data_asset"
)

// TagSeparator joins tags in the tags detail string
const TagSeparator = ","

// UploadOptions tune what an upload writes
type UploadOptions struct {
	// ImportRotAndScale writes per-point rot and scale on curves
	ImportRotAndScale bool
	// MarkOutput flags every uploaded part as a retrievable output
	MarkOutput bool
}

// Uploader encodes scene objects onto engine nodes
type Uploader struct {
	session  engine.Session
	conv     codec.Converter
	dispatch *Dispatcher
	opts     UploadOptions
}

// NewUploader creates an uploader
func NewUploader(session engine.Session, conv codec.Converter, dispatch *Dispatcher, opts UploadOptions) *Uploader {
	return &Uploader{session: session, conv: conv, dispatch: dispatch, opts: opts}
}

// Encoder returns an EncodeFunc uploading on behalf of src
func (u *Uploader) Encoder(src domain.Source) EncodeFunc {
	return func(ctx context.Context, node engine.NodeID, item domain.TaggedData) error {
		return u.Upload(ctx, node, src, item)
	}
}

// Upload writes item as part 0 of node
func (u *Uploader) Upload(ctx context.Context, node engine.NodeID, src domain.Source, item domain.TaggedData) (err error) {
	if item.Data == nil {
		return fmt.Errorf("upload to node %d: no data: %w", node, engine.ErrInvalidArgument)
	}
	ctx, span := tracer.Start(ctx, "upload-object", trace.WithAttributes(
		attribute.Int("node", int(node)),
		attribute.String("kind", string(item.Data.Kind())),
		attribute.String("object", item.Data.Label()),
	))
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	const part = engine.PartID(0)
	var owner engine.AttributeOwner
	var count int

	switch obj := item.Data.(type) {
	case *domain.PointSet:
		err = u.uploadPoints(ctx, node, part, obj)
		owner, count = engine.OwnerPoint, len(obj.Points)
	case *domain.Curve:
		err = u.uploadCurve(ctx, node, part, obj)
		owner, count = engine.OwnerPoint, len(obj.Points)
	case *domain.Mesh:
		err = u.uploadMesh(ctx, node, part, obj)
		owner, count = engine.OwnerPoint, len(obj.Vertices)
	default:
		return fmt.Errorf("upload %T: %w", item.Data, engine.ErrInvalidArgument)
	}
	if err != nil {
		return err
	}
	return u.writeCommon(ctx, node, part, src, item.Tags, owner, count)
}

func (u *Uploader) uploadPoints(ctx context.Context, node engine.NodeID, part engine.PartID, ps *domain.PointSet) error {
	n := len(ps.Points)
	if err := u.session.SetPartInfo(ctx, node, part, engine.PartInfo{ID: part, Name: ps.Name, Type: engine.PartMesh, PointCount: n}); err != nil {
		return fmt.Errorf("failed to set part info: %w", err)
	}

	var (
		pos     = make(engine.Float32Buffer, 0, n*3)
		rot     = make(engine.Float32Buffer, 0, n*4)
		scale   = make(engine.Float32Buffer, 0, n*3)
		density = make(engine.Float32Buffer, 0, n)
		color   = make(engine.Float32Buffer, 0, n*3)
		alpha   = make(engine.Float32Buffer, 0, n)
		entries []int64
	)
	for i, p := range ps.Points {
		at := u.conv.PositionToEngine(p.Transform.Location)
		q := codec.QuatToEngine(p.Transform.Rotation)
		s := codec.VectorToEngine(p.Transform.Scale)
		pos = append(pos, at[:]...)
		rot = append(rot, q[:]...)
		scale = append(scale, s[:]...)
		density = append(density, p.Density)
		color = append(color, float32(p.Color.X), float32(p.Color.Y), float32(p.Color.Z))
		alpha = append(alpha, float32(p.Color.W))

		if p.Entry != int64(i) && entries == nil {
			entries = make([]int64, i, n)
			for k := range entries {
				entries[k] = int64(k)
			}
		}
		if entries != nil {
			entries = append(entries, p.Entry)
		}
	}

	for _, a := range []struct {
		name     string
		tuple    int
		typeInfo engine.TypeInfo
		data     engine.Float32Buffer
	}{
		{AttrPosition, 3, engine.TypeInfoPoint, pos},
		{AttrRotation, 4, engine.TypeInfoQuaternion, rot},
		{AttrScale, 3, engine.TypeInfoNone, scale},
		{AttrDensity, 1, engine.TypeInfoNone, density},
		{AttrColor, 3, engine.TypeInfoColor, color},
		{AttrAlpha, 1, engine.TypeInfoNone, alpha},
	} {
		info := floatInfo(engine.OwnerPoint, a.tuple, a.typeInfo, n)
		if err := u.write(ctx, node, part, a.name, info, a.data, false); err != nil {
			return err
		}
	}

	return u.dispatch.Encode(ctx, node, part, engine.OwnerPoint, ps.Attributes, n, entries)
}

func (u *Uploader) uploadCurve(ctx context.Context, node engine.NodeID, part engine.PartID, c *domain.Curve) error {
	n := len(c.Points)
	flat := topology.FlattenCurve(u.conv, c, u.opts.ImportRotAndScale)

	info := engine.PartInfo{ID: part, Name: c.Name, Type: engine.PartCurve, PointCount: n, VertexCount: n, FaceCount: 1}
	if err := u.session.SetPartInfo(ctx, node, part, info); err != nil {
		return fmt.Errorf("failed to set part info: %w", err)
	}
	curveInfo := engine.CurveInfo{Type: engine.CurveLinear, CurveCount: 1, VertexCount: n, Order: 2, Periodic: flat.Closed}
	if err := u.session.SetCurveInfo(ctx, node, part, curveInfo); err != nil {
		return fmt.Errorf("failed to set curve info: %w", err)
	}
	if err := u.session.SetCurveCounts(ctx, node, part, []int32{int32(n)}); err != nil {
		return fmt.Errorf("failed to set curve counts: %w", err)
	}

	if err := u.write(ctx, node, part, AttrPosition, floatInfo(engine.OwnerPoint, 3, engine.TypeInfoPoint, n), flat.Positions, false); err != nil {
		return err
	}
	if err := u.write(ctx, node, part, AttrArriveTangent, floatInfo(engine.OwnerPoint, 3, engine.TypeInfoVector, n), flat.ArriveTangent, false); err != nil {
		return err
	}
	if err := u.write(ctx, node, part, AttrLeaveTangent, floatInfo(engine.OwnerPoint, 3, engine.TypeInfoVector, n), flat.LeaveTangent, false); err != nil {
		return err
	}
	if flat.Rotation != nil {
		if err := u.write(ctx, node, part, AttrRotation, floatInfo(engine.OwnerPoint, 4, engine.TypeInfoQuaternion, n), flat.Rotation, false); err != nil {
			return err
		}
		if err := u.write(ctx, node, part, AttrScale, floatInfo(engine.OwnerPoint, 3, engine.TypeInfoNone, n), flat.Scale, false); err != nil {
			return err
		}
	}

	var closed int32
	if flat.Closed {
		closed = 1
	}
	closedInfo := engine.AttributeInfo{Exists: true, Owner: engine.OwnerPrim, Storage: engine.StorageInt, TupleSize: 1, Count: 1}
	return u.write(ctx, node, part, AttrCurveClosed, closedInfo, engine.Int32Buffer{closed}, false)
}

func (u *Uploader) uploadMesh(ctx context.Context, node engine.NodeID, part engine.PartID, m *domain.Mesh) error {
	flat, err := topology.FlattenMesh(u.conv, m)
	if err != nil {
		return err
	}

	info := engine.PartInfo{
		ID:          part,
		Name:        m.Name,
		Type:        engine.PartMesh,
		PointCount:  len(m.Vertices),
		VertexCount: len(flat.Vertices),
		FaceCount:   len(flat.FaceCounts),
	}
	if err := u.session.SetPartInfo(ctx, node, part, info); err != nil {
		return fmt.Errorf("failed to set part info: %w", err)
	}
	if err := u.write(ctx, node, part, AttrPosition, floatInfo(engine.OwnerPoint, 3, engine.TypeInfoPoint, info.PointCount), flat.Positions, false); err != nil {
		return err
	}
	if len(flat.FaceCounts) == 0 {
		return nil
	}
	if err := u.session.SetVertexList(ctx, node, part, flat.Vertices); err != nil {
		return fmt.Errorf("failed to set vertex list: %w", err)
	}
	if err := u.session.SetFaceCounts(ctx, node, part, flat.FaceCounts); err != nil {
		return fmt.Errorf("failed to set face counts: %w", err)
	}
	return nil
}

// writeCommon writes the attributes every uploaded kind carries: the
// source object path, the tags and the output flag
func (u *Uploader) writeCommon(ctx context.Context, node engine.NodeID, part engine.PartID, src domain.Source, tags []string, owner engine.AttributeOwner, count int) error {
	if !src.IsActor && src.Path != "" && count > 0 {
		info := stringInfo(owner, count)
		if err := u.write(ctx, node, part, AttrObjectPath, info, engine.StringBuffer{src.Path}, true); err != nil {
			return err
		}
	}
	if len(tags) > 0 {
		info := stringInfo(engine.OwnerDetail, 1)
		if err := u.write(ctx, node, part, AttrTags, info, engine.StringBuffer{strings.Join(tags, TagSeparator)}, false); err != nil {
			return err
		}
	}
	if u.opts.MarkOutput {
		info := engine.AttributeInfo{Exists: true, Owner: engine.OwnerDetail, Storage: engine.StorageInt, TupleSize: 1, Count: 1}
		if err := u.write(ctx, node, part, AttrOutputAsset, info, engine.Int32Buffer{1}, false); err != nil {
			return err
		}
	}
	return nil
}

func (u *Uploader) write(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, data engine.Buffer, unique bool) error {
	if err := u.session.AddAttribute(ctx, node, part, name, info); err != nil {
		return fmt.Errorf("failed to add attribute %s: %w", name, err)
	}
	var err error
	if unique {
		err = u.session.SetAttributeUniqueData(ctx, node, part, name, info, data)
	} else {
		err = u.session.SetAttributeData(ctx, node, part, name, info, data)
	}
	if err != nil {
		return fmt.Errorf("failed to write attribute %s: %w", name, err)
	}
	return nil
}

func floatInfo(owner engine.AttributeOwner, tuple int, typeInfo engine.TypeInfo, count int) engine.AttributeInfo {
	return engine.AttributeInfo{Exists: true, Owner: owner, Storage: engine.StorageFloat, TupleSize: tuple, TypeInfo: typeInfo, Count: count}
}

func stringInfo(owner engine.AttributeOwner, count int) engine.AttributeInfo {
	return engine.AttributeInfo{Exists: true, Owner: owner, Storage: engine.StorageString, TupleSize: 1, Count: count}
}
