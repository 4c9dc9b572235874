package topology

import (
	"fmt"

	"geobridge/internal/codec"
	"geobridge/internal/domain"
	"geobridge/internal/engine"
)

// EntryResolver maps a curve vertex to the element an attribute stores
// its value at
type EntryResolver func(vertex, curve int) int

// NewEntryResolver builds the resolver for an attribute's owner. Uniform
// attributes always resolve to element 0.
func NewEntryResolver(owner engine.AttributeOwner, unique bool) EntryResolver {
	if unique {
		return func(int, int) int { return 0 }
	}
	switch owner {
	case engine.OwnerPoint, engine.OwnerVertex:
		return func(vertex, _ int) int { return vertex }
	case engine.OwnerPrim:
		return func(_, curve int) int { return curve }
	}
	return func(int, int) int { return 0 }
}

// Channel is an optional attribute read for curve decode. A nil channel
// is absent.
type Channel struct {
	Info engine.AttributeInfo
	Data engine.Buffer

	entry EntryResolver
}

// NewChannel wraps attribute data
func NewChannel(info engine.AttributeInfo, data engine.Buffer) *Channel {
	return &Channel{Info: info, Data: data, entry: NewEntryResolver(info.Owner, info.Unique)}
}

// offset returns the first element of the tuple for (vertex, curve)
func (ch *Channel) offset(vertex, curve int) (int, error) {
	o := ch.entry(vertex, curve) * ch.Info.TupleSize
	if o < 0 || o+ch.Info.TupleSize > ch.Data.Len() {
		return 0, fmt.Errorf("element %d of %d-tuple buffer with %d values: %w", o, ch.Info.TupleSize, ch.Data.Len(), engine.ErrInvalidArgument)
	}
	return o, nil
}

func (ch *Channel) vector(vertex, curve int) (x, y, z float64, err error) {
	o, err := ch.offset(vertex, curve)
	if err != nil {
		return 0, 0, 0, err
	}
	return ch.Data.Float(o), ch.Data.Float(o + 1), ch.Data.Float(o + 2), nil
}

func (ch *Channel) integer(vertex, curve int) (int64, error) {
	o, err := ch.offset(vertex, curve)
	if err != nil {
		return 0, err
	}
	return ch.Data.Int(o), nil
}

// hasShape reports whether ch is present with a float tuple of one of sizes
func (ch *Channel) hasShape(sizes ...int) bool {
	if ch == nil || ch.Data == nil {
		return false
	}
	if ch.Info.Storage != engine.StorageFloat && ch.Info.Storage != engine.StorageFloat64 {
		return false
	}
	for _, s := range sizes {
		if ch.Info.TupleSize == s {
			return true
		}
	}
	return false
}

// present reports whether ch carries a scalar tuple
func (ch *Channel) present() bool {
	return ch != nil && ch.Data != nil && ch.Info.TupleSize >= 1
}

// CurveData is the engine-side content of a curve part. Positions are
// indexed by vertex.
type CurveData struct {
	Counts        []int32
	Positions     engine.Buffer
	Rotation      *Channel
	Scale         *Channel
	ArriveTangent *Channel
	LeaveTangent  *Channel
	Type          *Channel
	Closed        *Channel
}

// BuildCurves splits a curve part into one scene Curve per curve count.
// Curves are named <name>_<index> when there is more than one.
func BuildCurves(c codec.Converter, name string, d CurveData) ([]*domain.Curve, error) {
	total := 0
	for _, n := range d.Counts {
		if n < 0 {
			return nil, fmt.Errorf("curve %s: negative vertex count: %w", name, engine.ErrInvalidArgument)
		}
		total += int(n)
	}
	if d.Positions == nil || d.Positions.Len() < total*3 {
		return nil, fmt.Errorf("curve %s: %d vertices without positions: %w", name, total, engine.ErrInvalidArgument)
	}

	rotation := d.Rotation
	if !rotation.hasShape(3, 4) {
		rotation = nil
	}
	scale := d.Scale
	if !scale.hasShape(3) {
		scale = nil
	}
	arrive, leave := d.ArriveTangent, d.LeaveTangent
	if !arrive.hasShape(3) {
		arrive = nil
	}
	if !leave.hasShape(3) {
		leave = nil
	}
	custom := arrive != nil && leave != nil

	curves := make([]*domain.Curve, 0, len(d.Counts))
	vertex := 0
	for ci, n := range d.Counts {
		label := name
		if len(d.Counts) > 1 {
			label = fmt.Sprintf("%s_%d", name, ci)
		}
		curve := domain.NewCurve(label)

		for k := 0; k < int(n); k++ {
			v := vertex + k
			o := v * 3
			p := domain.NewSplinePoint(float32(k), c.PositionFromEngine(d.Positions.Float(o), d.Positions.Float(o+1), d.Positions.Float(o+2)))

			if rotation != nil {
				q, err := readRotation(rotation, v, ci)
				if err != nil {
					return nil, fmt.Errorf("curve %s rot: %w", name, err)
				}
				p.Rotation = q
			}
			if scale != nil {
				x, y, z, err := scale.vector(v, ci)
				if err != nil {
					return nil, fmt.Errorf("curve %s scale: %w", name, err)
				}
				p.Scale = codec.VectorFromEngine(x, y, z)
			}
			if arrive != nil {
				x, y, z, err := arrive.vector(v, ci)
				if err != nil {
					return nil, fmt.Errorf("curve %s arrive tangent: %w", name, err)
				}
				p.ArriveTangent = c.PositionFromEngine(x, y, z)
			}
			if leave != nil {
				x, y, z, err := leave.vector(v, ci)
				if err != nil {
					return nil, fmt.Errorf("curve %s leave tangent: %w", name, err)
				}
				p.LeaveTangent = c.PositionFromEngine(x, y, z)
			}

			switch {
			case custom:
				p.Type = domain.PointCustomTangent
			case d.Type.present():
				flag, err := d.Type.integer(v, ci)
				if err != nil {
					return nil, fmt.Errorf("curve %s type: %w", name, err)
				}
				if flag <= 0 {
					p.Type = domain.PointLinear
				}
			}
			curve.Points = append(curve.Points, p)
		}

		if d.Closed.present() {
			flag, err := d.Closed.integer(vertex, ci)
			if err != nil {
				return nil, fmt.Errorf("curve %s closed: %w", name, err)
			}
			curve.Closed = flag != 0
		}

		curves = append(curves, curve)
		vertex += int(n)
	}
	return curves, nil
}

// readRotation reads a quaternion 4-tuple or an euler 3-tuple in radians
func readRotation(ch *Channel, vertex, curve int) (domain.Quat, error) {
	o, err := ch.offset(vertex, curve)
	if err != nil {
		return domain.Quat{}, err
	}
	b := ch.Data
	if ch.Info.TupleSize == 4 {
		return codec.QuatFromEngine(b.Float(o), b.Float(o+1), b.Float(o+2), b.Float(o+3)), nil
	}
	return codec.EulerFromEngine(b.Float(o), b.Float(o+1), b.Float(o+2)), nil
}

// CurveBuffers is one curve in engine layout, one tuple per point
type CurveBuffers struct {
	Positions     engine.Float32Buffer
	ArriveTangent engine.Float32Buffer
	LeaveTangent  engine.Float32Buffer
	// Rotation and Scale are nil unless requested
	Rotation engine.Float32Buffer
	Scale    engine.Float32Buffer
	Closed   bool
}

// FlattenCurve converts a curve to engine layout. Positions and tangents
// are moved out of curve space first. With rotAndScale, point rotations
// are composed with the curve rotation and point scales multiplied by the
// curve scale.
func FlattenCurve(c codec.Converter, curve *domain.Curve, rotAndScale bool) CurveBuffers {
	n := len(curve.Points)
	out := CurveBuffers{
		Positions:     make(engine.Float32Buffer, 0, n*3),
		ArriveTangent: make(engine.Float32Buffer, 0, n*3),
		LeaveTangent:  make(engine.Float32Buffer, 0, n*3),
		Closed:        curve.Closed,
	}
	if rotAndScale {
		out.Rotation = make(engine.Float32Buffer, 0, n*4)
		out.Scale = make(engine.Float32Buffer, 0, n*3)
	}

	t := curve.Transform
	for _, p := range curve.Points {
		pos := c.PositionToEngine(t.TransformPosition(p.Position))
		arrive := c.PositionToEngine(t.TransformVector(p.ArriveTangent))
		leave := c.PositionToEngine(t.TransformVector(p.LeaveTangent))
		out.Positions = append(out.Positions, pos[:]...)
		out.ArriveTangent = append(out.ArriveTangent, arrive[:]...)
		out.LeaveTangent = append(out.LeaveTangent, leave[:]...)

		if rotAndScale {
			q := codec.QuatToEngine(t.TransformRotation(p.Rotation))
			s := codec.VectorToEngine(t.Scale.Mul(p.Scale))
			out.Rotation = append(out.Rotation, q[:]...)
			out.Scale = append(out.Scale, s[:]...)
		}
	}
	return out
}
