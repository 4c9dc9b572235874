package domain

import "fmt"

// ValueType enumerates the attribute kinds a Column can hold
type ValueType int

const (
	TypeFloat32 ValueType = iota
	TypeFloat64
	TypeInt32
	TypeInt64
	TypeBool
	TypeVector2
	TypeVector3
	TypeVector4
	TypeQuat
	TypeTransform
	TypeString
	TypeName
	TypeObjectPath
	TypeClassPath
	TypeRotator
)

var valueTypeNames = map[ValueType]string{
	TypeFloat32:    "float",
	TypeFloat64:    "double",
	TypeInt32:      "int32",
	TypeInt64:      "int64",
	TypeBool:       "bool",
	TypeVector2:    "vector2",
	TypeVector3:    "vector",
	TypeVector4:    "vector4",
	TypeQuat:       "quat",
	TypeTransform:  "transform",
	TypeString:     "string",
	TypeName:       "name",
	TypeObjectPath: "softobjectpath",
	TypeClassPath:  "softclasspath",
	TypeRotator:    "rotator",
}

// String returns the scene file name of the type
func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// ParseValueType is the inverse of ValueType.String
func ParseValueType(s string) (ValueType, error) {
	for t, name := range valueTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown value type %q", s)
}

// IsText reports whether values of this type travel as strings
func (t ValueType) IsText() bool {
	switch t {
	case TypeString, TypeName, TypeObjectPath, TypeClassPath:
		return true
	}
	return false
}

// Value is one attribute value. The set of implementations is closed.
type Value interface {
	Type() ValueType
	isValue()
}

type (
	Float32    float32
	Float64    float64
	Int32      int32
	Int64      int64
	Bool       bool
	String     string
	Name       string
	ObjectPath string
	ClassPath  string
)

// Vector2 is a 2D vector
type Vector2 struct{ X, Y float64 }

// Vector3 is a 3D vector in scene axes
type Vector3 struct{ X, Y, Z float64 }

// Vector4 is a 4D vector
type Vector4 struct{ X, Y, Z, W float64 }

// Quat is a rotation quaternion in scene handedness
type Quat struct{ X, Y, Z, W float64 }

// Rotator is an euler rotation in degrees
type Rotator struct{ Pitch, Yaw, Roll float64 }

// Transform is a location, rotation and non-uniform scale
type Transform struct {
	Location Vector3
	Rotation Quat
	Scale    Vector3
}

func (Float32) Type() ValueType    { return TypeFloat32 }
func (Float64) Type() ValueType    { return TypeFloat64 }
func (Int32) Type() ValueType      { return TypeInt32 }
func (Int64) Type() ValueType      { return TypeInt64 }
func (Bool) Type() ValueType       { return TypeBool }
func (Vector2) Type() ValueType    { return TypeVector2 }
func (Vector3) Type() ValueType    { return TypeVector3 }
func (Vector4) Type() ValueType    { return TypeVector4 }
func (Quat) Type() ValueType       { return TypeQuat }
func (Transform) Type() ValueType  { return TypeTransform }
func (String) Type() ValueType     { return TypeString }
func (Name) Type() ValueType       { return TypeName }
func (ObjectPath) Type() ValueType { return TypeObjectPath }
func (ClassPath) Type() ValueType  { return TypeClassPath }
func (Rotator) Type() ValueType    { return TypeRotator }

func (Float32) isValue()    {}
func (Float64) isValue()    {}
func (Int32) isValue()      {}
func (Int64) isValue()      {}
func (Bool) isValue()       {}
func (Vector2) isValue()    {}
func (Vector3) isValue()    {}
func (Vector4) isValue()    {}
func (Quat) isValue()       {}
func (Transform) isValue()  {}
func (String) isValue()     {}
func (Name) isValue()       {}
func (ObjectPath) isValue() {}
func (ClassPath) isValue()  {}
func (Rotator) isValue()    {}

// IdentityQuat is the no-rotation quaternion
var IdentityQuat = Quat{W: 1}

// OneVector has every component set to 1
var OneVector = Vector3{X: 1, Y: 1, Z: 1}

// IdentityTransform places at the origin with no rotation and unit scale
var IdentityTransform = Transform{Rotation: IdentityQuat, Scale: OneVector}

// ZeroValue returns the zero value of t. Rotation-bearing types return identity.
func ZeroValue(t ValueType) (Value, error) {
	switch t {
	case TypeFloat32:
		return Float32(0), nil
	case TypeFloat64:
		return Float64(0), nil
	case TypeInt32:
		return Int32(0), nil
	case TypeInt64:
		return Int64(0), nil
	case TypeBool:
		return Bool(false), nil
	case TypeVector2:
		return Vector2{}, nil
	case TypeVector3:
		return Vector3{}, nil
	case TypeVector4:
		return Vector4{}, nil
	case TypeQuat:
		return IdentityQuat, nil
	case TypeTransform:
		return IdentityTransform, nil
	case TypeString:
		return String(""), nil
	case TypeName:
		return Name(""), nil
	case TypeObjectPath:
		return ObjectPath(""), nil
	case TypeClassPath:
		return ClassPath(""), nil
	case TypeRotator:
		return Rotator{}, nil
	}
	return nil, fmt.Errorf("unknown value type %d", int(t))
}

// Text returns the string form of a text-typed value
func Text(v Value) (string, bool) {
	switch s := v.(type) {
	case String:
		return string(s), true
	case Name:
		return string(s), true
	case ObjectPath:
		return string(s), true
	case ClassPath:
		return string(s), true
	}
	return "", false
}
