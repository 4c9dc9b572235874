package domain

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < eps }

func nearVec(a, b Vector3) bool { return near(a.X, b.X) && near(a.Y, b.Y) && near(a.Z, b.Z) }

func TestRotatorQuat(t *testing.T) {
	tests := []struct {
		name string
		rot  Rotator
		want Quat
	}{
		{"identity", Rotator{}, IdentityQuat},
		{"yaw 90", Rotator{Yaw: 90}, Quat{Z: math.Sqrt2 / 2, W: math.Sqrt2 / 2}},
		{"roll 90", Rotator{Roll: 90}, Quat{X: -math.Sqrt2 / 2, W: math.Sqrt2 / 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rot.Quat()
			if !near(got.X, tt.want.X) || !near(got.Y, tt.want.Y) || !near(got.Z, tt.want.Z) || !near(got.W, tt.want.W) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestTransformPosition(t *testing.T) {
	tr := Transform{
		Location: Vector3{X: 10},
		Rotation: Rotator{Yaw: 90}.Quat(),
		Scale:    Vector3{X: 2, Y: 2, Z: 2},
	}

	got := tr.TransformPosition(Vector3{X: 1})
	want := Vector3{X: 10, Y: 2}
	if !nearVec(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	vec := tr.TransformVector(Vector3{X: 1})
	if !nearVec(vec, Vector3{Y: 2}) {
		t.Errorf("expected translation-free vector, got %+v", vec)
	}
}
