package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"geobridge/internal/engine"
)

// topology columns that may be written independently
const (
	colVertexList  = "vertex_list"
	colFaceCounts  = "face_counts"
	colCurveInfo   = "curve_info"
	colCurveCounts = "curve_counts"
)

// SetVertexList stores the part's per-vertex point indices
func (s *Session) SetVertexList(ctx context.Context, node engine.NodeID, part engine.PartID, vertices []int32) error {
	info, err := s.PartInfo(ctx, node, part)
	if err != nil {
		return err
	}
	if len(vertices) != info.VertexCount {
		return engine.Fail("set vertex list", node, "", fmt.Errorf("%d vertices, part has %d: %w", len(vertices), info.VertexCount, engine.ErrInvalidArgument))
	}
	for _, v := range vertices {
		if v < 0 || int(v) >= info.PointCount {
			return engine.Fail("set vertex list", node, "", fmt.Errorf("point index %d out of range: %w", v, engine.ErrInvalidArgument))
		}
	}
	return s.writeTopology(ctx, node, part, colVertexList, vertices)
}

// VertexList reads the part's vertex list
func (s *Session) VertexList(ctx context.Context, node engine.NodeID, part engine.PartID) ([]int32, error) {
	var out []int32
	if err := s.readTopology(ctx, node, part, colVertexList, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetFaceCounts stores vertices-per-face; the sum must equal the vertex count
func (s *Session) SetFaceCounts(ctx context.Context, node engine.NodeID, part engine.PartID, counts []int32) error {
	info, err := s.PartInfo(ctx, node, part)
	if err != nil {
		return err
	}
	if err := checkRuns("set face counts", node, counts, info.FaceCount, info.VertexCount); err != nil {
		return err
	}
	return s.writeTopology(ctx, node, part, colFaceCounts, counts)
}

// FaceCounts reads vertices-per-face
func (s *Session) FaceCounts(ctx context.Context, node engine.NodeID, part engine.PartID) ([]int32, error) {
	var out []int32
	if err := s.readTopology(ctx, node, part, colFaceCounts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetCurveInfo stores curve metadata on a curve part
func (s *Session) SetCurveInfo(ctx context.Context, node engine.NodeID, part engine.PartID, info engine.CurveInfo) error {
	partInfo, err := s.PartInfo(ctx, node, part)
	if err != nil {
		return err
	}
	if partInfo.Type != engine.PartCurve {
		return engine.Fail("set curve info", node, "", fmt.Errorf("part type %v: %w", partInfo.Type, engine.ErrInvalidArgument))
	}
	if info.CurveCount != partInfo.FaceCount || info.VertexCount != partInfo.VertexCount {
		return engine.Fail("set curve info", node, "", fmt.Errorf("curve counts disagree with part: %w", engine.ErrInvalidArgument))
	}
	return s.writeTopology(ctx, node, part, colCurveInfo, info)
}

// CurveInfo reads curve metadata
func (s *Session) CurveInfo(ctx context.Context, node engine.NodeID, part engine.PartID) (engine.CurveInfo, error) {
	var info engine.CurveInfo
	if err := s.readTopology(ctx, node, part, colCurveInfo, &info); err != nil {
		return engine.CurveInfo{}, err
	}
	return info, nil
}

// SetCurveCounts stores vertices-per-curve
func (s *Session) SetCurveCounts(ctx context.Context, node engine.NodeID, part engine.PartID, counts []int32) error {
	info, err := s.PartInfo(ctx, node, part)
	if err != nil {
		return err
	}
	if info.Type != engine.PartCurve {
		return engine.Fail("set curve counts", node, "", fmt.Errorf("part type %v: %w", info.Type, engine.ErrInvalidArgument))
	}
	if err := checkRuns("set curve counts", node, counts, info.FaceCount, info.VertexCount); err != nil {
		return err
	}
	return s.writeTopology(ctx, node, part, colCurveCounts, counts)
}

// CurveCounts reads vertices-per-curve
func (s *Session) CurveCounts(ctx context.Context, node engine.NodeID, part engine.PartID) ([]int32, error) {
	var out []int32
	if err := s.readTopology(ctx, node, part, colCurveCounts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InstanceTransforms builds one transform per point from P, rot and scale.
// Missing rot reads as identity and missing scale as one.
func (s *Session) InstanceTransforms(ctx context.Context, node engine.NodeID, part engine.PartID) ([]engine.Transform, error) {
	info, err := s.PartInfo(ctx, node, part)
	if err != nil {
		return nil, err
	}

	pos, err := s.pointChannel(ctx, node, part, "P", 3, info.PointCount)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, engine.Fail("get instance transforms", node, "P", engine.ErrAttributeNotFound)
	}
	rot, err := s.pointChannel(ctx, node, part, "rot", 4, info.PointCount)
	if err != nil {
		return nil, err
	}
	scale, err := s.pointChannel(ctx, node, part, "scale", 3, info.PointCount)
	if err != nil {
		return nil, err
	}

	out := make([]engine.Transform, info.PointCount)
	for i := range out {
		t := engine.Transform{Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}}
		for c := 0; c < 3; c++ {
			t.Position[c] = float32(pos.Float(i*3 + c))
		}
		if rot != nil {
			for c := 0; c < 4; c++ {
				t.Rotation[c] = float32(rot.Float(i*4 + c))
			}
		}
		if scale != nil {
			for c := 0; c < 3; c++ {
				t.Scale[c] = float32(scale.Float(i*3 + c))
			}
		}
		out[i] = t
	}
	return out, nil
}

// pointChannel returns a point float attribute expanded to count tuples, or
// nil when it is absent or has a different shape.
func (s *Session) pointChannel(ctx context.Context, node engine.NodeID, part engine.PartID, name string, tuple, count int) (engine.Buffer, error) {
	info, err := s.AttributeInfo(ctx, node, part, name, engine.OwnerPoint)
	if err != nil {
		return nil, err
	}
	if !info.Exists || info.TupleSize != tuple {
		return nil, nil
	}
	if info.Storage != engine.StorageFloat && info.Storage != engine.StorageFloat64 {
		return nil, nil
	}
	data, err := s.AttributeData(ctx, node, part, name, info)
	if err != nil {
		return nil, err
	}
	if info.Unique {
		data = engine.Repeat(data, count)
	}
	return data, nil
}

func checkRuns(op string, node engine.NodeID, counts []int32, runs, total int) error {
	if len(counts) != runs {
		return engine.Fail(op, node, "", fmt.Errorf("%d counts, part has %d: %w", len(counts), runs, engine.ErrInvalidArgument))
	}
	sum := 0
	for _, c := range counts {
		if c < 0 {
			return engine.Fail(op, node, "", fmt.Errorf("negative count: %w", engine.ErrInvalidArgument))
		}
		sum += int(c)
	}
	if sum != total {
		return engine.Fail(op, node, "", fmt.Errorf("counts sum to %d, want %d: %w", sum, total, engine.ErrInvalidArgument))
	}
	return nil
}

func (s *Session) writeTopology(ctx context.Context, node engine.NodeID, part engine.PartID, column string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", column, err)
	}
	// column is one of the colX constants, never user input
	query := fmt.Sprintf(`
		INSERT INTO topology (node_id, part_id, %[1]s) VALUES (?, ?, ?)
		ON CONFLICT(node_id, part_id) DO UPDATE SET %[1]s = excluded.%[1]s
	`, column)
	if _, err := s.db.ExecContext(ctx, query, node, part, string(raw)); err != nil {
		return fmt.Errorf("failed to write %s: %w", column, err)
	}
	return nil
}

func (s *Session) readTopology(ctx context.Context, node engine.NodeID, part engine.PartID, column string, target any) error {
	if _, err := s.PartInfo(ctx, node, part); err != nil {
		return err
	}
	var raw sql.NullString
	query := fmt.Sprintf(`SELECT %s FROM topology WHERE node_id = ? AND part_id = ?`, column)
	err := s.db.QueryRowContext(ctx, query, node, part).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", column, err)
	}
	return unmarshalJSONField(raw, target)
}
