package codec

import (
	"encoding/json"
	"fmt"

	"geobridge/internal/domain"
)

// sceneDocument is the on-disk form of a collection, shared by the YAML
// and JSON codecs
type sceneDocument struct {
	Path    string        `yaml:"path" json:"path"`
	Objects []sceneObject `yaml:"objects" json:"objects"`
}

type sceneObject struct {
	Kind       string           `yaml:"kind" json:"kind"`
	Name       string           `yaml:"name,omitempty" json:"name,omitempty"`
	Tags       []string         `yaml:"tags,omitempty,flow" json:"tags,omitempty"`
	Points     []scenePoint     `yaml:"points,omitempty" json:"points,omitempty"`
	Attributes []sceneAttribute `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Spline     *sceneSpline     `yaml:"spline,omitempty" json:"spline,omitempty"`
	Mesh       *sceneMesh       `yaml:"mesh,omitempty" json:"mesh,omitempty"`
}

type scenePoint struct {
	Position [3]float64 `yaml:"position,flow" json:"position"`
	Rotation []float64  `yaml:"rotation,omitempty,flow" json:"rotation,omitempty"`
	Scale    []float64  `yaml:"scale,omitempty,flow" json:"scale,omitempty"`
	Density  *float32   `yaml:"density,omitempty" json:"density,omitempty"`
	Color    []float64  `yaml:"color,omitempty,flow" json:"color,omitempty"`
	Entry    *int64     `yaml:"entry,omitempty" json:"entry,omitempty"`
}

type sceneSpline struct {
	Closed bool `yaml:"closed,omitempty" json:"closed,omitempty"`
	// Transform is location, rotation quaternion, scale
	Transform []float64          `yaml:"transform,omitempty,flow" json:"transform,omitempty"`
	Points    []sceneSplinePoint `yaml:"points" json:"points"`
}

type sceneSplinePoint struct {
	Key      float32    `yaml:"key" json:"key"`
	Position [3]float64 `yaml:"position,flow" json:"position"`
	Arrive   []float64  `yaml:"arrive,omitempty,flow" json:"arrive,omitempty"`
	Leave    []float64  `yaml:"leave,omitempty,flow" json:"leave,omitempty"`
	Rotation []float64  `yaml:"rotation,omitempty,flow" json:"rotation,omitempty"`
	Scale    []float64  `yaml:"scale,omitempty,flow" json:"scale,omitempty"`
	Type     string     `yaml:"type,omitempty" json:"type,omitempty"`
}

type sceneMesh struct {
	Vertices  [][3]float64 `yaml:"vertices,flow" json:"vertices"`
	Triangles [][3]int     `yaml:"triangles,flow" json:"triangles"`
}

// sceneAttribute lists one value per entry. A null value selects the
// default; no values at all makes the column uniform.
type sceneAttribute struct {
	Name    string `yaml:"name" json:"name"`
	Type    string `yaml:"type" json:"type"`
	Default any    `yaml:"default,omitempty" json:"default,omitempty"`
	Values  []any  `yaml:"values,omitempty,flow" json:"values,omitempty"`
}

// ============================================================================
// Document -> domain
// ============================================================================

func (d *sceneDocument) collection() (*domain.Collection, error) {
	c := domain.NewCollection(d.Path)
	for i, so := range d.Objects {
		item, err := so.taggedData()
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		sum, err := Checksum(item)
		if err != nil {
			return nil, err
		}
		c.Add(item, sum)
	}
	return c, nil
}

func (so *sceneObject) taggedData() (domain.TaggedData, error) {
	var (
		obj domain.Object
		err error
	)
	switch domain.ObjectKind(so.Kind) {
	case domain.KindPointSet:
		obj, err = so.pointSet()
	case domain.KindCurve:
		obj, err = so.curve()
	case domain.KindMesh:
		obj, err = so.mesh(), nil
	default:
		err = fmt.Errorf("unknown object kind %q", so.Kind)
	}
	if err != nil {
		return domain.TaggedData{}, err
	}
	return domain.TaggedData{Tags: so.Tags, Data: obj}, nil
}

func (so *sceneObject) pointSet() (*domain.PointSet, error) {
	ps := domain.NewPointSet(so.Name)
	for i, sp := range so.Points {
		p := domain.NewPoint(vector3(sp.Position))
		if sp.Rotation != nil {
			q, err := quatOf(sp.Rotation)
			if err != nil {
				return nil, fmt.Errorf("point %d rotation: %w", i, err)
			}
			p.Transform.Rotation = q
		}
		if sp.Scale != nil {
			s, err := vector3Of(sp.Scale)
			if err != nil {
				return nil, fmt.Errorf("point %d scale: %w", i, err)
			}
			p.Transform.Scale = s
		}
		if sp.Density != nil {
			p.Density = *sp.Density
		}
		if sp.Color != nil {
			if len(sp.Color) != 4 {
				return nil, fmt.Errorf("point %d color: want 4 components, got %d", i, len(sp.Color))
			}
			p.Color = domain.Vector4{X: sp.Color[0], Y: sp.Color[1], Z: sp.Color[2], W: sp.Color[3]}
		}
		p.Entry = int64(i)
		if sp.Entry != nil {
			p.Entry = *sp.Entry
		}
		ps.Points = append(ps.Points, p)
	}
	for _, sa := range so.Attributes {
		col, err := sa.column()
		if err != nil {
			return nil, err
		}
		if err := ps.Attributes.Add(col); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

func (so *sceneObject) curve() (*domain.Curve, error) {
	c := domain.NewCurve(so.Name)
	if so.Spline == nil {
		return c, nil
	}
	c.Closed = so.Spline.Closed
	if so.Spline.Transform != nil {
		t, err := transformOf(so.Spline.Transform)
		if err != nil {
			return nil, fmt.Errorf("curve transform: %w", err)
		}
		c.Transform = t
	}
	for i, ssp := range so.Spline.Points {
		p := domain.NewSplinePoint(ssp.Key, vector3(ssp.Position))
		var err error
		if ssp.Arrive != nil {
			if p.ArriveTangent, err = vector3Of(ssp.Arrive); err != nil {
				return nil, fmt.Errorf("spline point %d arrive: %w", i, err)
			}
		}
		if ssp.Leave != nil {
			if p.LeaveTangent, err = vector3Of(ssp.Leave); err != nil {
				return nil, fmt.Errorf("spline point %d leave: %w", i, err)
			}
		}
		if ssp.Rotation != nil {
			if p.Rotation, err = quatOf(ssp.Rotation); err != nil {
				return nil, fmt.Errorf("spline point %d rotation: %w", i, err)
			}
		}
		if ssp.Scale != nil {
			if p.Scale, err = vector3Of(ssp.Scale); err != nil {
				return nil, fmt.Errorf("spline point %d scale: %w", i, err)
			}
		}
		switch pt := domain.PointType(ssp.Type); pt {
		case "":
		case domain.PointLinear, domain.PointCurve, domain.PointCustomTangent:
			p.Type = pt
		default:
			return nil, fmt.Errorf("spline point %d: unknown point type %q", i, ssp.Type)
		}
		c.Points = append(c.Points, p)
	}
	return c, nil
}

func (so *sceneObject) mesh() *domain.Mesh {
	m := domain.NewMesh(so.Name)
	if so.Mesh == nil {
		return m
	}
	for _, v := range so.Mesh.Vertices {
		m.Vertices = append(m.Vertices, vector3(v))
	}
	for _, t := range so.Mesh.Triangles {
		m.Triangles = append(m.Triangles, domain.Triangle(t))
	}
	return m
}

func (sa *sceneAttribute) column() (*domain.Column, error) {
	t, err := domain.ParseValueType(sa.Type)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", sa.Name, err)
	}
	def, err := sceneValue(t, sa.Default)
	if err != nil {
		return nil, fmt.Errorf("attribute %s default: %w", sa.Name, err)
	}
	col := domain.NewColumn(sa.Name, def)
	for i, raw := range sa.Values {
		if raw == nil {
			col.SetEntry(i, domain.Default())
			continue
		}
		v, err := sceneValue(t, raw)
		if err != nil {
			return nil, fmt.Errorf("attribute %s value %d: %w", sa.Name, i, err)
		}
		if err := col.SetValue(i, v); err != nil {
			return nil, err
		}
	}
	return col, nil
}

// sceneValue converts a decoded YAML or JSON value to t. nil yields the
// zero value of t.
func sceneValue(t domain.ValueType, raw any) (domain.Value, error) {
	if raw == nil {
		return domain.ZeroValue(t)
	}
	switch t {
	case domain.TypeFloat32:
		f, err := number(raw)
		return domain.Float32(f), err
	case domain.TypeFloat64:
		f, err := number(raw)
		return domain.Float64(f), err
	case domain.TypeInt32:
		i, err := integer(raw)
		return domain.Int32(i), err
	case domain.TypeInt64:
		i, err := integer(raw)
		return domain.Int64(i), err
	case domain.TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", raw)
		}
		return domain.Bool(b), nil
	case domain.TypeString, domain.TypeName, domain.TypeObjectPath, domain.TypeClassPath:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", raw)
		}
		switch t {
		case domain.TypeName:
			return domain.Name(s), nil
		case domain.TypeObjectPath:
			return domain.ObjectPath(s), nil
		case domain.TypeClassPath:
			return domain.ClassPath(s), nil
		}
		return domain.String(s), nil
	}

	f, err := numbers(raw)
	if err != nil {
		return nil, err
	}
	switch t {
	case domain.TypeVector2:
		if len(f) != 2 {
			return nil, fmt.Errorf("vector2: want 2 components, got %d", len(f))
		}
		return domain.Vector2{X: f[0], Y: f[1]}, nil
	case domain.TypeVector3:
		return vector3Of(f)
	case domain.TypeVector4:
		if len(f) != 4 {
			return nil, fmt.Errorf("vector4: want 4 components, got %d", len(f))
		}
		return domain.Vector4{X: f[0], Y: f[1], Z: f[2], W: f[3]}, nil
	case domain.TypeQuat:
		return quatOf(f)
	case domain.TypeRotator:
		if len(f) != 3 {
			return nil, fmt.Errorf("rotator: want 3 components, got %d", len(f))
		}
		return domain.Rotator{Pitch: f[0], Yaw: f[1], Roll: f[2]}, nil
	case domain.TypeTransform:
		return transformOf(f)
	}
	return nil, fmt.Errorf("unsupported value type %v", t)
}

func number(raw any) (float64, error) {
	switch n := raw.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("want number, got %T", raw)
}

func integer(raw any) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("want integer, got %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("want integer, got %T", raw)
}

func numbers(raw any) ([]float64, error) {
	switch list := raw.(type) {
	case []float64:
		return list, nil
	case []any:
		out := make([]float64, len(list))
		for i, x := range list {
			f, err := number(x)
			if err != nil {
				return nil, fmt.Errorf("component %d: %w", i, err)
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("want list of numbers, got %T", raw)
}

func vector3(a [3]float64) domain.Vector3 {
	return domain.Vector3{X: a[0], Y: a[1], Z: a[2]}
}

func vector3Of(f []float64) (domain.Vector3, error) {
	if len(f) != 3 {
		return domain.Vector3{}, fmt.Errorf("vector: want 3 components, got %d", len(f))
	}
	return domain.Vector3{X: f[0], Y: f[1], Z: f[2]}, nil
}

func quatOf(f []float64) (domain.Quat, error) {
	if len(f) != 4 {
		return domain.Quat{}, fmt.Errorf("quat: want 4 components, got %d", len(f))
	}
	return domain.Quat{X: f[0], Y: f[1], Z: f[2], W: f[3]}, nil
}

func transformOf(f []float64) (domain.Transform, error) {
	if len(f) != 10 {
		return domain.Transform{}, fmt.Errorf("transform: want 10 components, got %d", len(f))
	}
	return domain.Transform{
		Location: domain.Vector3{X: f[0], Y: f[1], Z: f[2]},
		Rotation: domain.Quat{X: f[3], Y: f[4], Z: f[5], W: f[6]},
		Scale:    domain.Vector3{X: f[7], Y: f[8], Z: f[9]},
	}, nil
}

// ============================================================================
// Domain -> document
// ============================================================================

func documentOf(c *domain.Collection) (sceneDocument, error) {
	d := sceneDocument{Path: c.Path, Objects: make([]sceneObject, 0, len(c.Items))}
	for i, item := range c.Items {
		so, err := objectOf(item)
		if err != nil {
			return sceneDocument{}, fmt.Errorf("object %d: %w", i, err)
		}
		d.Objects = append(d.Objects, so)
	}
	return d, nil
}

func objectOf(item domain.TaggedData) (sceneObject, error) {
	if item.Data == nil {
		return sceneObject{}, fmt.Errorf("tagged data has no object")
	}
	so := sceneObject{Kind: string(item.Data.Kind()), Name: item.Data.Label(), Tags: item.Tags}

	switch obj := item.Data.(type) {
	case *domain.PointSet:
		for _, p := range obj.Points {
			t := p.Transform
			density := p.Density
			entry := p.Entry
			so.Points = append(so.Points, scenePoint{
				Position: [3]float64{t.Location.X, t.Location.Y, t.Location.Z},
				Rotation: []float64{t.Rotation.X, t.Rotation.Y, t.Rotation.Z, t.Rotation.W},
				Scale:    []float64{t.Scale.X, t.Scale.Y, t.Scale.Z},
				Density:  &density,
				Color:    []float64{p.Color.X, p.Color.Y, p.Color.Z, p.Color.W},
				Entry:    &entry,
			})
		}
		for _, col := range obj.Attributes.Columns() {
			sa, err := attributeOf(col)
			if err != nil {
				return sceneObject{}, err
			}
			so.Attributes = append(so.Attributes, sa)
		}

	case *domain.Curve:
		t := obj.Transform
		spline := &sceneSpline{
			Closed:    obj.Closed,
			Transform: []float64{t.Location.X, t.Location.Y, t.Location.Z, t.Rotation.X, t.Rotation.Y, t.Rotation.Z, t.Rotation.W, t.Scale.X, t.Scale.Y, t.Scale.Z},
			Points:    make([]sceneSplinePoint, 0, len(obj.Points)),
		}
		for _, p := range obj.Points {
			spline.Points = append(spline.Points, sceneSplinePoint{
				Key:      p.InputKey,
				Position: [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
				Arrive:   []float64{p.ArriveTangent.X, p.ArriveTangent.Y, p.ArriveTangent.Z},
				Leave:    []float64{p.LeaveTangent.X, p.LeaveTangent.Y, p.LeaveTangent.Z},
				Rotation: []float64{p.Rotation.X, p.Rotation.Y, p.Rotation.Z, p.Rotation.W},
				Scale:    []float64{p.Scale.X, p.Scale.Y, p.Scale.Z},
				Type:     string(p.Type),
			})
		}
		so.Spline = spline

	case *domain.Mesh:
		m := &sceneMesh{
			Vertices:  make([][3]float64, 0, len(obj.Vertices)),
			Triangles: make([][3]int, 0, len(obj.Triangles)),
		}
		for _, v := range obj.Vertices {
			m.Vertices = append(m.Vertices, [3]float64{v.X, v.Y, v.Z})
		}
		for _, t := range obj.Triangles {
			m.Triangles = append(m.Triangles, [3]int(t))
		}
		so.Mesh = m
	}
	return so, nil
}

func attributeOf(col *domain.Column) (sceneAttribute, error) {
	sa := sceneAttribute{Name: col.Name, Type: col.Type.String(), Default: rawValue(col.Default)}
	n := col.EntryCount()
	if n == 0 {
		return sa, nil
	}
	sa.Values = make([]any, n)
	for i := 0; i < n; i++ {
		ref := col.Entry(i)
		if ref.IsDefault() {
			continue
		}
		v, err := col.ResolveRef(ref)
		if err != nil {
			return sceneAttribute{}, err
		}
		sa.Values[i] = rawValue(v)
	}
	return sa, nil
}

// rawValue is the inverse of sceneValue
func rawValue(v domain.Value) any {
	switch x := v.(type) {
	case domain.Float32:
		return float64(x)
	case domain.Float64:
		return float64(x)
	case domain.Int32:
		return int64(x)
	case domain.Int64:
		return int64(x)
	case domain.Bool:
		return bool(x)
	case domain.Vector2:
		return []float64{x.X, x.Y}
	case domain.Vector3:
		return []float64{x.X, x.Y, x.Z}
	case domain.Vector4:
		return []float64{x.X, x.Y, x.Z, x.W}
	case domain.Quat:
		return []float64{x.X, x.Y, x.Z, x.W}
	case domain.Rotator:
		return []float64{x.Pitch, x.Yaw, x.Roll}
	case domain.Transform:
		return []float64{
			x.Location.X, x.Location.Y, x.Location.Z,
			x.Rotation.X, x.Rotation.Y, x.Rotation.Z, x.Rotation.W,
			x.Scale.X, x.Scale.Y, x.Scale.Z,
		}
	}
	s, _ := domain.Text(v)
	return s
}
