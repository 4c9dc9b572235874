package engine

import "fmt"

// NodeID identifies a node in the geometry engine
type NodeID int32

// NoNode marks an unset node slot
const NoNode NodeID = -1

// Valid reports whether id refers to a node
func (id NodeID) Valid() bool { return id >= 0 }

// PartID identifies a part within a node's geometry
type PartID int32

// AttributeOwner is the granularity an attribute is defined at
type AttributeOwner int

const (
	OwnerVertex AttributeOwner = iota
	OwnerPoint
	OwnerPrim
	OwnerDetail
	OwnerMax
)

// Owners lists every owner in engine order
var Owners = []AttributeOwner{OwnerVertex, OwnerPoint, OwnerPrim, OwnerDetail}

func (o AttributeOwner) String() string {
	switch o {
	case OwnerVertex:
		return "vertex"
	case OwnerPoint:
		return "point"
	case OwnerPrim:
		return "prim"
	case OwnerDetail:
		return "detail"
	}
	return fmt.Sprintf("owner(%d)", int(o))
}

// StorageType is the element width and kind of an attribute buffer
type StorageType int

const (
	StorageInt StorageType = iota
	StorageInt64
	StorageFloat
	StorageFloat64
	StorageString
	StorageUInt8
	StorageInt8
	StorageInt16
)

func (s StorageType) String() string {
	switch s {
	case StorageInt:
		return "int"
	case StorageInt64:
		return "int64"
	case StorageFloat:
		return "float"
	case StorageFloat64:
		return "float64"
	case StorageString:
		return "string"
	case StorageUInt8:
		return "uint8"
	case StorageInt8:
		return "int8"
	case StorageInt16:
		return "int16"
	}
	return fmt.Sprintf("storage(%d)", int(s))
}

// TypeInfo is the semantic tag that disambiguates same-shaped tuples
type TypeInfo int

const (
	TypeInfoNone TypeInfo = iota
	TypeInfoPoint
	TypeInfoVector
	TypeInfoNormal
	TypeInfoColor
	TypeInfoQuaternion
	TypeInfoMatrix
)

func (t TypeInfo) String() string {
	switch t {
	case TypeInfoNone:
		return "none"
	case TypeInfoPoint:
		return "point"
	case TypeInfoVector:
		return "vector"
	case TypeInfoNormal:
		return "normal"
	case TypeInfoColor:
		return "color"
	case TypeInfoQuaternion:
		return "quaternion"
	case TypeInfoMatrix:
		return "matrix"
	}
	return fmt.Sprintf("typeinfo(%d)", int(t))
}

// AttributeInfo describes one attribute on a part
type AttributeInfo struct {
	Exists    bool           `json:"exists"`
	Owner     AttributeOwner `json:"owner"`
	Storage   StorageType    `json:"storage"`
	TupleSize int            `json:"tuple_size"`
	TypeInfo  TypeInfo       `json:"type_info"`
	Count     int            `json:"count"`
	// Unique is set when the data was written as a single shared tuple
	Unique bool `json:"unique"`
}

// PartType is the geometry kind of a part
type PartType int

const (
	PartInvalid PartType = iota - 1
	PartMesh
	PartCurve
	PartInstancer
)

func (p PartType) String() string {
	switch p {
	case PartMesh:
		return "mesh"
	case PartCurve:
		return "curve"
	case PartInstancer:
		return "instancer"
	}
	return "invalid"
}

// PartInfo describes a part's element counts
type PartInfo struct {
	ID          PartID   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Type        PartType `json:"type"`
	PointCount  int      `json:"point_count"`
	VertexCount int      `json:"vertex_count"`
	FaceCount   int      `json:"face_count"`
	// AttributeCounts is indexed by AttributeOwner
	AttributeCounts [OwnerMax]int `json:"attribute_counts"`
}

// ElementCount returns the number of elements an owner spans on this part
func (p PartInfo) ElementCount(owner AttributeOwner) int {
	switch owner {
	case OwnerVertex:
		return p.VertexCount
	case OwnerPoint:
		return p.PointCount
	case OwnerPrim:
		return p.FaceCount
	case OwnerDetail:
		return 1
	}
	return 0
}

// CurveType is the basis of a curve part
type CurveType int

const (
	CurveLinear CurveType = iota
	CurveNURBS
	CurveBezier
)

// CurveInfo describes the curves of a curve part
type CurveInfo struct {
	Type        CurveType `json:"type"`
	CurveCount  int       `json:"curve_count"`
	VertexCount int       `json:"vertex_count"`
	Order       int       `json:"order"`
	Periodic    bool      `json:"periodic"`
}

// GeoInfo summarizes a node's geometry
type GeoInfo struct {
	NodeID    NodeID `json:"node_id"`
	PartCount int    `json:"part_count"`
}

// Transform is a per-instance SRT in engine axes
type Transform struct {
	Position [3]float32
	// Rotation is x, y, z, w
	Rotation [4]float32
	Scale    [3]float32
}

// NodeInfo describes a node
type NodeInfo struct {
	ID       NodeID `json:"id"`
	Parent   NodeID `json:"parent"`
	Operator string `json:"operator"`
	Name     string `json:"name"`
	Commits  int    `json:"commits"`
}

// InputState is the persisted bookkeeping of one named input
type InputState struct {
	GeoNode     NodeID   `json:"geo_node"`
	MergeNode   NodeID   `json:"merge_node"`
	MergeInputs int      `json:"merge_inputs"`
	Slots       []NodeID `json:"slots"`
}
