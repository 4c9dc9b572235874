package codec

import (
	"math"

	"cogentcore.org/core/math32"

	"geobridge/internal/domain"
)

// DefaultPositionScale converts scene units to engine units
const DefaultPositionScale = 0.01

// Converter maps spatial values between scene axes and engine axes. The
// engine swaps Y and Z, uses a different length unit and the opposite
// rotational sense.
type Converter struct {
	toEngine float64
	toScene  float64
}

// NewConverter creates a converter with the given scene-to-engine position
// scale. A non-positive scale selects DefaultPositionScale.
func NewConverter(scale float64) Converter {
	if scale <= 0 {
		scale = DefaultPositionScale
	}
	return Converter{toEngine: scale, toScene: 1 / scale}
}

// DefaultConverter uses DefaultPositionScale
var DefaultConverter = NewConverter(DefaultPositionScale)

// ToEngine returns the scene-to-engine scale
func (c Converter) ToEngine() float64 { return c.toEngine }

// ToScene returns the engine-to-scene scale
func (c Converter) ToScene() float64 { return c.toScene }

// PositionToEngine swaps Y/Z and scales
func (c Converter) PositionToEngine(p domain.Vector3) [3]float32 {
	return [3]float32{
		float32(p.X * c.toEngine),
		float32(p.Z * c.toEngine),
		float32(p.Y * c.toEngine),
	}
}

// PositionFromEngine swaps Y/Z and scales back
func (c Converter) PositionFromEngine(x, y, z float64) domain.Vector3 {
	return domain.Vector3{X: x * c.toScene, Y: z * c.toScene, Z: y * c.toScene}
}

// VectorToEngine swaps Y/Z without scaling
func VectorToEngine(v domain.Vector3) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Z), float32(v.Y)}
}

// VectorFromEngine swaps Y/Z without scaling
func VectorFromEngine(x, y, z float64) domain.Vector3 {
	return domain.Vector3{X: x, Y: z, Z: y}
}

// QuatToEngine swaps Y/Z and negates W
func QuatToEngine(q domain.Quat) [4]float32 {
	return [4]float32{float32(q.X), float32(q.Z), float32(q.Y), float32(-q.W)}
}

// QuatFromEngine swaps Y/Z and negates W
func QuatFromEngine(x, y, z, w float64) domain.Quat {
	return domain.Quat{X: x, Y: z, Z: y, W: -w}
}

// ConvertMatrix exchanges rows 1 and 2 and columns 1 and 2 of a row-major
// 4x4 transform and multiplies the translation row by scale. It serves
// both directions; only the scale differs.
func ConvertMatrix[T float32 | float64](m [16]T, scale T) [16]T {
	swap := [4]int{0, 2, 1, 3}
	var out [16]T
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			v := m[swap[r]*4+swap[c]]
			if r == 3 && c < 3 {
				v *= scale
			}
			out[r*4+c] = v
		}
	}
	return out
}

// TransformToEngine composes t into an engine matrix
func (c Converter) TransformToEngine(t domain.Transform) [16]float32 {
	var m math32.Matrix4
	m.SetTransform(
		math32.Vec3(float32(t.Location.X), float32(t.Location.Y), float32(t.Location.Z)),
		math32.Quat{X: float32(t.Rotation.X), Y: float32(t.Rotation.Y), Z: float32(t.Rotation.Z), W: float32(t.Rotation.W)},
		math32.Vec3(float32(t.Scale.X), float32(t.Scale.Y), float32(t.Scale.Z)),
	)
	return ConvertMatrix([16]float32(m), float32(c.toEngine))
}

// TransformFromEngine decomposes an engine matrix into a scene transform
func (c Converter) TransformFromEngine(m [16]float64) domain.Transform {
	s := ConvertMatrix(m, c.toScene)

	scale := domain.Vector3{
		X: math.Sqrt(s[0]*s[0] + s[1]*s[1] + s[2]*s[2]),
		Y: math.Sqrt(s[4]*s[4] + s[5]*s[5] + s[6]*s[6]),
		Z: math.Sqrt(s[8]*s[8] + s[9]*s[9] + s[10]*s[10]),
	}
	if determinant3(s) < 0 {
		scale.X = -scale.X
	}

	var rot math32.Matrix4
	rot.SetIdentity()
	for col, k := range []float64{scale.X, scale.Y, scale.Z} {
		if k == 0 {
			continue
		}
		for row := 0; row < 3; row++ {
			rot[col*4+row] = float32(s[col*4+row] / k)
		}
	}
	var q math32.Quat
	q.SetFromRotationMatrix(&rot)

	return domain.Transform{
		Location: domain.Vector3{X: s[12], Y: s[13], Z: s[14]},
		Rotation: domain.Quat{X: float64(q.X), Y: float64(q.Y), Z: float64(q.Z), W: float64(q.W)},
		Scale:    scale,
	}
}

// determinant3 of the upper-left 3x3 block
func determinant3(m [16]float64) float64 {
	return m[0]*(m[5]*m[10]-m[6]*m[9]) -
		m[1]*(m[4]*m[10]-m[6]*m[8]) +
		m[2]*(m[4]*m[9]-m[5]*m[8])
}

// RotatorToEngine orders the rotator as roll, yaw, pitch
func RotatorToEngine(r domain.Rotator) [3]float32 {
	return [3]float32{float32(r.Roll), float32(r.Yaw), float32(r.Pitch)}
}

// EulerFromEngine reads an engine euler triple in radians as a scene rotation
func EulerFromEngine(x, y, z float64) domain.Quat {
	return domain.Rotator{
		Pitch: x * math32.RadToDegFactor,
		Yaw:   z * math32.RadToDegFactor,
		Roll:  y * math32.RadToDegFactor,
	}.Quat()
}
