package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// FromEuler builds a rigid transform from intrinsic roll/pitch/yaw angles
// (radians) and a translation. The rotation is Rz(yaw)·Ry(pitch)·Rx(roll).
func FromEuler(roll, pitch, yaw float64, t r3.Vec) Transform {
	cr, sr := math.Cos(roll), math.Sin(roll)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cy, sy := math.Cos(yaw), math.Sin(yaw)

	return Transform{m: [16]float64{
		cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr, t.X,
		sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr, t.Y,
		-sp, cp * sr, cp * cr, t.Z,
		0, 0, 0, 1,
	}}
}

// SphericalToCartesian converts a range (metres), azimuth and inclination
// (radians) into Cartesian sensor-frame coordinates.
// Coordinate convention: X=forward, Y=left, Z=up; azimuth is measured from +X
// towards +Y and inclination from the XY plane towards +Z.
func SphericalToCartesian(rng, azimuth, inclination float64) r3.Vec {
	cosIncl := math.Cos(inclination)
	return r3.Vec{
		X: rng * cosIncl * math.Cos(azimuth),
		Y: rng * cosIncl * math.Sin(azimuth),
		Z: rng * math.Sin(inclination),
	}
}

// Yaw returns the heading of the transform's rotation about Z.
func (t Transform) Yaw() float64 {
	return math.Atan2(t.m[4], t.m[0])
}
