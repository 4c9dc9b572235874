package domain

import "math"

// Add returns v+o
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Mul returns the component-wise product
func (v Vector3) Mul(o Vector3) Vector3 {
	return Vector3{v.X * o.X, v.Y * o.Y, v.Z * o.Z}
}

// Scale returns v*s
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Mul returns the Hamilton product q*o (o applied first)
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
	}
}

// Rotate applies q to v
func (q Quat) Rotate(v Vector3) Vector3 {
	// t = 2 * cross(q.xyz, v); v' = v + w*t + cross(q.xyz, t)
	tx := 2 * (q.Y*v.Z - q.Z*v.Y)
	ty := 2 * (q.Z*v.X - q.X*v.Z)
	tz := 2 * (q.X*v.Y - q.Y*v.X)
	return Vector3{
		X: v.X + q.W*tx + (q.Y*tz - q.Z*ty),
		Y: v.Y + q.W*ty + (q.Z*tx - q.X*tz),
		Z: v.Z + q.W*tz + (q.X*ty - q.Y*tx),
	}
}

// Quat converts the rotator to a quaternion using pitch about Y, yaw about Z
// and roll about X, applied roll first.
func (r Rotator) Quat() Quat {
	const halfDeg = math.Pi / 360
	sp, cp := math.Sincos(r.Pitch * halfDeg)
	sy, cy := math.Sincos(r.Yaw * halfDeg)
	sr, cr := math.Sincos(r.Roll * halfDeg)
	return Quat{
		X: cr*sp*sy - sr*cp*cy,
		Y: -cr*sp*cy - sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
		W: cr*cp*cy + sr*sp*sy,
	}
}

// TransformPosition applies scale, rotation and translation to p
func (t Transform) TransformPosition(p Vector3) Vector3 {
	return t.Rotation.Rotate(p.Mul(t.Scale)).Add(t.Location)
}

// TransformVector applies scale and rotation to v
func (t Transform) TransformVector(v Vector3) Vector3 {
	return t.Rotation.Rotate(v.Mul(t.Scale))
}

// TransformRotation composes q under t's rotation
func (t Transform) TransformRotation(q Quat) Quat {
	return t.Rotation.Mul(q)
}
