package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Box3D is a 7-DOF oriented 3D bounding box.
//
//   - Center: box centre (metres)
//   - Length: extent along the heading direction
//   - Width: extent perpendicular to heading in the XY plane
//   - Height: extent along Z
//   - Heading: yaw around Z (radians)
type Box3D struct {
	Center  r3.Vec
	Length  float64
	Width   float64
	Height  float64
	Heading float64
}

// Contains reports whether p lies inside the box, boundary included. The
// test is axis-aligned in the box's own frame.
func (b Box3D) Contains(p r3.Vec) bool {
	dx := p.X - b.Center.X
	dy := p.Y - b.Center.Y
	dz := p.Z - b.Center.Z

	cosH, sinH := math.Cos(b.Heading), math.Sin(b.Heading)
	localX := dx*cosH + dy*sinH
	localY := -dx*sinH + dy*cosH

	return math.Abs(localX) <= b.Length*0.5 &&
		math.Abs(localY) <= b.Width*0.5 &&
		math.Abs(dz) <= b.Height*0.5
}

// CountInBox returns how many points fall inside b.
func CountInBox(points []r3.Vec, b Box3D) int {
	n := 0
	for _, p := range points {
		if b.Contains(p) {
			n++
		}
	}
	return n
}
