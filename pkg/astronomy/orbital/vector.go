package orbital

import "math"

// Vector3 is a position or direction in the sky-projected frame. Z points along the
// line of sight.
type Vector3 struct {
	X, Y, Z float64
}

// LineOfSight is the unit vector towards the observer
var LineOfSight = Vector3{Z: 1}

// Dot returns the dot product of two vectors
func (v Vector3) Dot(other Vector3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Magnitude returns the length of the vector
func (v Vector3) Magnitude() float64 {
	return math.Sqrt(v.Dot(v))
}

// Unit returns a unit vector in the same direction. The zero vector is returned unchanged.
func (v Vector3) Unit() Vector3 {
	mag := v.Magnitude()
	if mag == 0 {
		return v
	}
	return Vector3{X: v.X / mag, Y: v.Y / mag, Z: v.Z / mag}
}

// RotateZ rotates the vector counter-clockwise about the z axis by angle radians
func (v Vector3) RotateZ(angle float64) Vector3 {
	s, c := math.Sincos(angle)
	return Vector3{
		X: c*v.X - s*v.Y,
		Y: s*v.X + c*v.Y,
		Z: v.Z,
	}
}

// RotateX rotates the vector counter-clockwise about the x axis by angle radians
func (v Vector3) RotateX(angle float64) Vector3 {
	s, c := math.Sincos(angle)
	return Vector3{
		X: v.X,
		Y: c*v.Y - s*v.Z,
		Z: s*v.Y + c*v.Z,
	}
}
