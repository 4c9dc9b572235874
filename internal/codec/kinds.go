package codec

import (
	"errors"
	"fmt"

	"geobridge/internal/domain"
	"geobridge/internal/engine"
)

// ErrUnsupportedEncoding is returned for storage/tuple/type-info triples
// outside the decode table
var ErrUnsupportedEncoding = errors.New("unsupported attribute encoding")

// Layout is the engine-side shape of an attribute
type Layout struct {
	Storage   engine.StorageType
	TupleSize int
	TypeInfo  engine.TypeInfo
}

func (l Layout) String() string {
	return fmt.Sprintf("%v[%d]/%v", l.Storage, l.TupleSize, l.TypeInfo)
}

// LayoutOf extracts the layout of an attribute
func LayoutOf(info engine.AttributeInfo) Layout {
	return Layout{Storage: info.Storage, TupleSize: info.TupleSize, TypeInfo: info.TypeInfo}
}

// normalize drops type info wherever it does not change decoding
func (l Layout) normalize() Layout {
	switch {
	case l.TupleSize == 16:
		l.TypeInfo = engine.TypeInfoMatrix
	case l.Storage == engine.StorageFloat && l.TupleSize == 3 && l.TypeInfo == engine.TypeInfoPoint:
	case l.Storage == engine.StorageFloat && l.TupleSize == 4 && l.TypeInfo == engine.TypeInfoQuaternion:
	default:
		l.TypeInfo = engine.TypeInfoNone
	}
	return l
}

// ============================================================================
// Encode table
// ============================================================================

// Encoding writes one scene value type into an engine buffer
type Encoding struct {
	Layout
	Type domain.ValueType
	put  func(c Converter, v domain.Value, b *Builder)
}

var encodings = map[domain.ValueType]Encoding{
	domain.TypeFloat32: {Layout{engine.StorageFloat, 1, engine.TypeInfoNone}, domain.TypeFloat32, func(_ Converter, v domain.Value, b *Builder) {
		b.f32 = append(b.f32, float32(v.(domain.Float32)))
	}},
	domain.TypeFloat64: {Layout{engine.StorageFloat64, 1, engine.TypeInfoNone}, domain.TypeFloat64, func(_ Converter, v domain.Value, b *Builder) {
		b.f64 = append(b.f64, float64(v.(domain.Float64)))
	}},
	domain.TypeInt32: {Layout{engine.StorageInt, 1, engine.TypeInfoNone}, domain.TypeInt32, func(_ Converter, v domain.Value, b *Builder) {
		b.i32 = append(b.i32, int32(v.(domain.Int32)))
	}},
	domain.TypeInt64: {Layout{engine.StorageInt64, 1, engine.TypeInfoNone}, domain.TypeInt64, func(_ Converter, v domain.Value, b *Builder) {
		b.i64 = append(b.i64, int64(v.(domain.Int64)))
	}},
	domain.TypeBool: {Layout{engine.StorageUInt8, 1, engine.TypeInfoNone}, domain.TypeBool, func(_ Converter, v domain.Value, b *Builder) {
		var u uint8
		if v.(domain.Bool) {
			u = 1
		}
		b.u8 = append(b.u8, u)
	}},
	domain.TypeVector2: {Layout{engine.StorageFloat, 2, engine.TypeInfoNone}, domain.TypeVector2, func(_ Converter, v domain.Value, b *Builder) {
		vec := v.(domain.Vector2)
		b.f32 = append(b.f32, float32(vec.X), float32(vec.Y))
	}},
	domain.TypeVector3: {Layout{engine.StorageFloat, 3, engine.TypeInfoNone}, domain.TypeVector3, func(_ Converter, v domain.Value, b *Builder) {
		vec := v.(domain.Vector3)
		b.f32 = append(b.f32, float32(vec.X), float32(vec.Y), float32(vec.Z))
	}},
	domain.TypeVector4: {Layout{engine.StorageFloat, 4, engine.TypeInfoNone}, domain.TypeVector4, func(_ Converter, v domain.Value, b *Builder) {
		vec := v.(domain.Vector4)
		b.f32 = append(b.f32, float32(vec.X), float32(vec.Y), float32(vec.Z), float32(vec.W))
	}},
	domain.TypeQuat: {Layout{engine.StorageFloat, 4, engine.TypeInfoQuaternion}, domain.TypeQuat, func(_ Converter, v domain.Value, b *Builder) {
		q := QuatToEngine(v.(domain.Quat))
		b.f32 = append(b.f32, q[:]...)
	}},
	domain.TypeTransform: {Layout{engine.StorageFloat, 16, engine.TypeInfoMatrix}, domain.TypeTransform, func(c Converter, v domain.Value, b *Builder) {
		m := c.TransformToEngine(v.(domain.Transform))
		b.f32 = append(b.f32, m[:]...)
	}},
	domain.TypeRotator: {Layout{engine.StorageFloat, 3, engine.TypeInfoNone}, domain.TypeRotator, func(_ Converter, v domain.Value, b *Builder) {
		r := RotatorToEngine(v.(domain.Rotator))
		b.f32 = append(b.f32, r[:]...)
	}},
	domain.TypeString:     textEncoding,
	domain.TypeName:       textEncoding,
	domain.TypeObjectPath: textEncoding,
	domain.TypeClassPath:  textEncoding,
}

var textEncoding = Encoding{Layout{engine.StorageString, 1, engine.TypeInfoNone}, domain.TypeString, func(_ Converter, v domain.Value, b *Builder) {
	s, _ := domain.Text(v)
	b.strs = append(b.strs, s)
}}

// EncodingFor returns the encoding of a scene value type
func EncodingFor(t domain.ValueType) (Encoding, error) {
	e, ok := encodings[t]
	if !ok {
		return Encoding{}, fmt.Errorf("value type %v: %w", t, ErrUnsupportedEncoding)
	}
	e.Type = t
	return e, nil
}

// Put appends v to b
func (e Encoding) Put(c Converter, v domain.Value, b *Builder) error {
	if v == nil {
		return fmt.Errorf("nil value: %w", domain.ErrTypeMismatch)
	}
	if v.Type() != e.Type && !(v.Type().IsText() && e.Type.IsText()) {
		return fmt.Errorf("%v into %v: %w", v.Type(), e.Layout, domain.ErrTypeMismatch)
	}
	e.put(c, v, b)
	return nil
}

// Builder accumulates one engine buffer
type Builder struct {
	storage engine.StorageType
	f32     []float32
	f64     []float64
	i32     []int32
	i64     []int64
	u8      []uint8
	strs    []string
}

// NewBuilder creates a builder for storage
func NewBuilder(storage engine.StorageType) *Builder {
	return &Builder{storage: storage}
}

// Buffer returns the accumulated buffer
func (b *Builder) Buffer() engine.Buffer {
	switch b.storage {
	case engine.StorageFloat:
		return engine.Float32Buffer(b.f32)
	case engine.StorageFloat64:
		return engine.Float64Buffer(b.f64)
	case engine.StorageInt:
		return engine.Int32Buffer(b.i32)
	case engine.StorageInt64:
		return engine.Int64Buffer(b.i64)
	case engine.StorageUInt8:
		return engine.UInt8Buffer(b.u8)
	case engine.StorageString:
		return engine.StringBuffer(b.strs)
	}
	return nil
}

// ============================================================================
// Decode table
// ============================================================================

// Decoding reads one engine tuple into a scene value
type Decoding struct {
	Layout
	Type domain.ValueType
	get  func(c Converter, b engine.Buffer, o int) domain.Value
}

// Get decodes tuple i of b
func (d Decoding) Get(c Converter, b engine.Buffer, i int) domain.Value {
	return d.get(c, b, i*d.TupleSize)
}

func vec2(_ Converter, b engine.Buffer, o int) domain.Value {
	return domain.Vector2{X: b.Float(o), Y: b.Float(o + 1)}
}

func vec3(_ Converter, b engine.Buffer, o int) domain.Value {
	return domain.Vector3{X: b.Float(o), Y: b.Float(o + 1), Z: b.Float(o + 2)}
}

func vec4(_ Converter, b engine.Buffer, o int) domain.Value {
	return domain.Vector4{X: b.Float(o), Y: b.Float(o + 1), Z: b.Float(o + 2), W: b.Float(o + 3)}
}

func matrix(c Converter, b engine.Buffer, o int) domain.Value {
	var m [16]float64
	for i := range m {
		m[i] = b.Float(o + i)
	}
	return c.TransformFromEngine(m)
}

var decodings = map[Layout]Decoding{}

func register(l Layout, t domain.ValueType, get func(Converter, engine.Buffer, int) domain.Value) {
	decodings[l] = Decoding{Layout: l, Type: t, get: get}
}

func init() {
	none := engine.TypeInfoNone

	register(Layout{engine.StorageInt, 1, none}, domain.TypeInt32, func(_ Converter, b engine.Buffer, o int) domain.Value {
		return domain.Int32(b.Int(o))
	})
	register(Layout{engine.StorageInt64, 1, none}, domain.TypeInt64, func(_ Converter, b engine.Buffer, o int) domain.Value {
		return domain.Int64(b.Int(o))
	})
	for _, s := range []engine.StorageType{engine.StorageInt, engine.StorageInt64, engine.StorageFloat, engine.StorageFloat64} {
		register(Layout{s, 2, none}, domain.TypeVector2, vec2)
		register(Layout{s, 3, none}, domain.TypeVector3, vec3)
		register(Layout{s, 4, none}, domain.TypeVector4, vec4)
	}

	register(Layout{engine.StorageFloat, 1, none}, domain.TypeFloat32, func(_ Converter, b engine.Buffer, o int) domain.Value {
		return domain.Float32(b.Float(o))
	})
	register(Layout{engine.StorageFloat, 3, engine.TypeInfoPoint}, domain.TypeVector3, func(c Converter, b engine.Buffer, o int) domain.Value {
		return c.PositionFromEngine(b.Float(o), b.Float(o+1), b.Float(o+2))
	})
	register(Layout{engine.StorageFloat, 4, engine.TypeInfoQuaternion}, domain.TypeQuat, func(_ Converter, b engine.Buffer, o int) domain.Value {
		return QuatFromEngine(b.Float(o), b.Float(o+1), b.Float(o+2), b.Float(o+3))
	})
	register(Layout{engine.StorageFloat, 16, engine.TypeInfoMatrix}, domain.TypeTransform, matrix)

	register(Layout{engine.StorageFloat64, 1, none}, domain.TypeFloat64, func(_ Converter, b engine.Buffer, o int) domain.Value {
		return domain.Float64(b.Float(o))
	})
	register(Layout{engine.StorageFloat64, 16, engine.TypeInfoMatrix}, domain.TypeTransform, matrix)

	boolean := func(_ Converter, b engine.Buffer, o int) domain.Value {
		return domain.Bool(b.Int(o) != 0)
	}
	register(Layout{engine.StorageUInt8, 1, none}, domain.TypeBool, boolean)
	register(Layout{engine.StorageInt8, 1, none}, domain.TypeBool, boolean)
	register(Layout{engine.StorageInt16, 1, none}, domain.TypeInt32, func(_ Converter, b engine.Buffer, o int) domain.Value {
		return domain.Int32(b.Int(o))
	})
}

// DecodingFor returns the decode routine for a layout. String storage is
// not in the table; it goes through DecodeStrings.
func DecodingFor(l Layout) (Decoding, error) {
	d, ok := decodings[l.normalize()]
	if !ok {
		return Decoding{}, fmt.Errorf("%v: %w", l, ErrUnsupportedEncoding)
	}
	return d, nil
}
