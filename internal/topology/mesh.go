// Package topology rebuilds scene meshes and curves from engine element
// runs and flattens them back.
package topology

import (
	"fmt"

	"geobridge/internal/codec"
	"geobridge/internal/domain"
	"geobridge/internal/engine"
)

// BuildMesh rebuilds a triangle mesh. positions holds 3 floats per
// engine point; vertices holds 3 point indices per triangle. Triangles
// that repeat a point are dropped, only referenced points become mesh
// vertices, and winding is reversed.
func BuildMesh(c codec.Converter, name string, positions engine.Buffer, vertices []int32) (*domain.Mesh, error) {
	if len(vertices)%3 != 0 {
		return nil, fmt.Errorf("mesh %s: %d vertices is not a triangle list: %w", name, len(vertices), engine.ErrInvalidArgument)
	}
	points := positions.Len() / 3

	m := domain.NewMesh(name)
	local := make(map[int32]int)
	for f := 0; f < len(vertices); f += 3 {
		tri := [3]int32{vertices[f], vertices[f+1], vertices[f+2]}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[2] == tri[0] {
			continue
		}

		var out domain.Triangle
		for i, global := range tri {
			if global < 0 || int(global) >= points {
				return nil, fmt.Errorf("mesh %s: point %d out of range: %w", name, global, engine.ErrInvalidArgument)
			}
			idx, seen := local[global]
			if !seen {
				o := int(global) * 3
				idx = len(m.Vertices)
				local[global] = idx
				m.Vertices = append(m.Vertices, c.PositionFromEngine(positions.Float(o), positions.Float(o+1), positions.Float(o+2)))
			}
			out[2-i] = idx
		}
		m.Triangles = append(m.Triangles, out)
	}
	return m, nil
}

// MeshBuffers is a mesh in engine layout
type MeshBuffers struct {
	Positions  engine.Float32Buffer
	Vertices   []int32
	FaceCounts []int32
}

// FlattenMesh converts m to engine layout, emitting each triangle as C, B, A
func FlattenMesh(c codec.Converter, m *domain.Mesh) (MeshBuffers, error) {
	out := MeshBuffers{
		Positions:  make(engine.Float32Buffer, 0, len(m.Vertices)*3),
		Vertices:   make([]int32, 0, len(m.Triangles)*3),
		FaceCounts: make([]int32, 0, len(m.Triangles)),
	}
	for _, v := range m.Vertices {
		p := c.PositionToEngine(v)
		out.Positions = append(out.Positions, p[:]...)
	}
	for i, t := range m.Triangles {
		for _, idx := range t {
			if idx < 0 || idx >= len(m.Vertices) {
				return MeshBuffers{}, fmt.Errorf("mesh %s: triangle %d references vertex %d: %w", m.Name, i, idx, engine.ErrInvalidArgument)
			}
		}
		out.Vertices = append(out.Vertices, int32(t[2]), int32(t[1]), int32(t[0]))
		out.FaceCounts = append(out.FaceCounts, 3)
	}
	return out, nil
}
