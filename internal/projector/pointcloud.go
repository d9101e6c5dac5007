package projector

import "gonum.org/v1/gonum/spatial/r3"

// PointCloud is an ordered point set with index-aligned per-point attributes.
// Points, Intensity and Elongation always have the same length.
type PointCloud struct {
	Points     []r3.Vec
	Intensity  []float32
	Elongation []float32
}

// Len returns the number of points.
func (pc PointCloud) Len() int { return len(pc.Points) }

// Concat joins clouds in argument order.
func Concat(clouds ...PointCloud) PointCloud {
	n := 0
	for _, c := range clouds {
		n += c.Len()
	}
	out := PointCloud{
		Points:     make([]r3.Vec, 0, n),
		Intensity:  make([]float32, 0, n),
		Elongation: make([]float32, 0, n),
	}
	for _, c := range clouds {
		out.Points = append(out.Points, c.Points...)
		out.Intensity = append(out.Intensity, c.Intensity...)
		out.Elongation = append(out.Elongation, c.Elongation...)
	}
	return out
}
