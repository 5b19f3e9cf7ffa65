package model

import "math"

// Vector3 is a position or direction in system space, in meters.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector3) Add(o Vector3) Vector3 { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vector3) Scale(f float64) Vector3 {
	return Vector3{v.X * f, v.Y * f, v.Z * f}
}

func (v Vector3) Len() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Dist returns the euclidean distance between two points.
func (v Vector3) Dist(o Vector3) float64 { return v.Sub(o).Len() }

// IsZero reports whether all components are zero.
func (v Vector3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// Normalize returns the unit vector in the direction of v, or the zero
// vector when v has no length.
func (v Vector3) Normalize() Vector3 {
	l := v.Len()
	if l == 0 {
		return Vector3{}
	}
	return v.Scale(1 / l)
}

// MoveToward steps v toward target by at most maxStep and returns the new
// point. It never overshoots.
func (v Vector3) MoveToward(target Vector3, maxStep float64) Vector3 {
	d := target.Sub(v)
	dist := d.Len()
	if dist <= maxStep || dist == 0 {
		return target
	}
	return v.Add(d.Scale(maxStep / dist))
}

// DefaultHeading points along +Y, the "forward" axis of formation slot tables.
var DefaultHeading = Vector3{X: 0, Y: 1, Z: 0}

// RotateToHeading maps a local slot offset (X = right, Y = forward, Z = up)
// into world orientation for the given heading. Only the heading's XY
// projection is used; formations stay level.
func RotateToHeading(local, heading Vector3) Vector3 {
	fwd := Vector3{X: heading.X, Y: heading.Y}.Normalize()
	if fwd.IsZero() {
		fwd = DefaultHeading
	}
	// Right is 90° clockwise from forward.
	right := Vector3{X: fwd.Y, Y: -fwd.X}
	return Vector3{
		X: right.X*local.X + fwd.X*local.Y,
		Y: right.Y*local.X + fwd.Y*local.Y,
		Z: local.Z,
	}
}
