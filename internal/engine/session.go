// Package engine defines the node attribute-geometry model and the
// session interface the bridge drives it through.
//
// A Session is a remote typed key-value store addressed by
// (node, part, attribute name, owner). Every call is synchronous and a
// returned error is the only failure signal.
package engine

import "context"

// Session is a connection to the geometry engine
type Session interface {
	// Nodes
	CreateNode(ctx context.Context, parent NodeID, operator, name string) (NodeID, error)
	DeleteNode(ctx context.Context, node NodeID) error
	ConnectNodeInput(ctx context.Context, node NodeID, input int, source NodeID) error
	CommitGeo(ctx context.Context, node NodeID) error
	GeoInfo(ctx context.Context, node NodeID) (GeoInfo, error)

	// Parts. SetPartInfo resets any geometry previously stored on the part.
	SetPartInfo(ctx context.Context, node NodeID, part PartID, info PartInfo) error
	PartInfo(ctx context.Context, node NodeID, part PartID) (PartInfo, error)

	// Attributes
	AddAttribute(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo) error
	AttributeInfo(ctx context.Context, node NodeID, part PartID, name string, owner AttributeOwner) (AttributeInfo, error)
	AttributeNames(ctx context.Context, node NodeID, part PartID, owner AttributeOwner) ([]string, error)
	SetAttributeData(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo, data Buffer) error
	SetAttributeUniqueData(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo, tuple Buffer) error
	// AttributeData returns count*tuple elements, or a single tuple when info.Unique.
	// String storage comes back as a HandleBuffer.
	AttributeData(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo) (Buffer, error)
	StringValues(ctx context.Context, handles []StringHandle) ([]string, error)

	// Topology
	SetVertexList(ctx context.Context, node NodeID, part PartID, vertices []int32) error
	VertexList(ctx context.Context, node NodeID, part PartID) ([]int32, error)
	SetFaceCounts(ctx context.Context, node NodeID, part PartID, counts []int32) error
	FaceCounts(ctx context.Context, node NodeID, part PartID) ([]int32, error)
	SetCurveInfo(ctx context.Context, node NodeID, part PartID, info CurveInfo) error
	CurveInfo(ctx context.Context, node NodeID, part PartID) (CurveInfo, error)
	SetCurveCounts(ctx context.Context, node NodeID, part PartID, counts []int32) error
	CurveCounts(ctx context.Context, node NodeID, part PartID) ([]int32, error)
	InstanceTransforms(ctx context.Context, node NodeID, part PartID) ([]Transform, error)
}

// QueryOwner returns the first owner, in engine order, that carries name
func QueryOwner(ctx context.Context, s Session, node NodeID, part PartID, name string) (AttributeInfo, bool, error) {
	for _, owner := range Owners {
		info, err := s.AttributeInfo(ctx, node, part, name, owner)
		if err != nil {
			return AttributeInfo{}, false, err
		}
		if info.Exists {
			return info, true, nil
		}
	}
	return AttributeInfo{}, false, nil
}
