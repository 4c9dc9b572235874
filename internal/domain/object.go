package domain

// ObjectKind identifies the concrete Object variant
type ObjectKind string

const (
	KindPointSet ObjectKind = "points"
	KindCurve    ObjectKind = "curve"
	KindMesh     ObjectKind = "mesh"
)

// Object is a scene-graph geometric object: *PointSet, *Curve or *Mesh
type Object interface {
	Kind() ObjectKind
	Label() string
	// Empty reports whether the object carries no elements
	Empty() bool
	isObject()
}

// Point is one element of a PointSet
type Point struct {
	Transform Transform
	Density   float32
	Color     Vector4
	// Entry is the element index used for attribute lookups
	Entry int64
}

// NewPoint returns a point at location with default transform, density and color
func NewPoint(location Vector3) Point {
	t := IdentityTransform
	t.Location = location
	return Point{Transform: t, Density: 1, Color: Vector4{X: 1, Y: 1, Z: 1, W: 1}}
}

// PointSet is a cloud of transformed points with an attribute table
type PointSet struct {
	Name       string
	Points     []Point
	Attributes *Attributes
}

// NewPointSet creates an empty point set
func NewPointSet(name string) *PointSet {
	return &PointSet{Name: name, Attributes: NewAttributes()}
}

func (*PointSet) Kind() ObjectKind { return KindPointSet }
func (p *PointSet) Label() string  { return p.Name }
func (p *PointSet) Empty() bool    { return len(p.Points) == 0 }
func (*PointSet) isObject()        {}

// PointType is the interpolation mode of a spline point
type PointType string

const (
	PointLinear        PointType = "linear"
	PointCurve         PointType = "curve"
	PointCustomTangent PointType = "custom_tangent"
)

// SplinePoint is one control point of a Curve
type SplinePoint struct {
	InputKey      float32
	Position      Vector3
	ArriveTangent Vector3
	LeaveTangent  Vector3
	Rotation      Quat
	Scale         Vector3
	Type          PointType
}

// NewSplinePoint returns a curve-type point at position with identity rotation and unit scale
func NewSplinePoint(key float32, position Vector3) SplinePoint {
	return SplinePoint{
		InputKey: key,
		Position: position,
		Rotation: IdentityQuat,
		Scale:    OneVector,
		Type:     PointCurve,
	}
}

// Curve is a spline in its own local space
type Curve struct {
	Name      string
	Transform Transform
	Points    []SplinePoint
	Closed    bool
}

// NewCurve creates an empty curve with identity transform
func NewCurve(name string) *Curve {
	return &Curve{Name: name, Transform: IdentityTransform}
}

func (*Curve) Kind() ObjectKind { return KindCurve }
func (c *Curve) Label() string  { return c.Name }
func (c *Curve) Empty() bool    { return len(c.Points) == 0 }
func (*Curve) isObject()        {}

// Triangle holds three vertex indices
type Triangle [3]int

// Mesh is a triangle mesh with positions only
type Mesh struct {
	Name      string
	Vertices  []Vector3
	Triangles []Triangle
}

// NewMesh creates an empty mesh
func NewMesh(name string) *Mesh {
	return &Mesh{Name: name}
}

func (*Mesh) Kind() ObjectKind { return KindMesh }
func (m *Mesh) Label() string  { return m.Name }
func (m *Mesh) Empty() bool    { return len(m.Vertices) == 0 }
func (*Mesh) isObject()        {}
