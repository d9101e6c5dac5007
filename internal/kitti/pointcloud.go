package kitti

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waymo-kitti/internal/projector"
)

// pointStride is the size of one velodyne record: x y z intensity
// elongation as little-endian float32.
const pointStride = 5 * 4

// EncodePointCloud lays out pc as consecutive velodyne records.
func EncodePointCloud(pc projector.PointCloud) []byte {
	buf := make([]byte, pc.Len()*pointStride)
	for i, p := range pc.Points {
		rec := buf[i*pointStride:]
		binary.LittleEndian.PutUint32(rec[0:], math.Float32bits(float32(p.X)))
		binary.LittleEndian.PutUint32(rec[4:], math.Float32bits(float32(p.Y)))
		binary.LittleEndian.PutUint32(rec[8:], math.Float32bits(float32(p.Z)))
		binary.LittleEndian.PutUint32(rec[12:], math.Float32bits(pc.Intensity[i]))
		binary.LittleEndian.PutUint32(rec[16:], math.Float32bits(pc.Elongation[i]))
	}
	return buf
}

// DecodePointCloud is the inverse of EncodePointCloud. Coordinates come back
// at float32 precision.
func DecodePointCloud(data []byte) (projector.PointCloud, error) {
	if len(data)%pointStride != 0 {
		return projector.PointCloud{}, fmt.Errorf("%w: %d bytes is not a whole number of points",
			ErrMalformedRecord, len(data))
	}
	n := len(data) / pointStride
	pc := projector.PointCloud{
		Points:     make([]r3.Vec, n),
		Intensity:  make([]float32, n),
		Elongation: make([]float32, n),
	}
	f := func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
	for i := 0; i < n; i++ {
		rec := data[i*pointStride:]
		pc.Points[i] = r3.Vec{X: float64(f(rec[0:])), Y: float64(f(rec[4:])), Z: float64(f(rec[8:]))}
		pc.Intensity[i] = f(rec[12:])
		pc.Elongation[i] = f(rec[16:])
	}
	return pc, nil
}
