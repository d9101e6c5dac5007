package rangeimage

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waymo-kitti/internal/geom"
)

// Range image channels.
const (
	ChannelRange       = 0
	ChannelIntensity   = 1
	ChannelElongation  = 2
	ChannelNoLabelZone = 3
)

// MinChannels is the number of channels reconstruction reads.
const MinChannels = ChannelElongation + 1

// RangeImage is a height × width grid of per-pixel channels. A pixel with
// range <= 0 recorded no return.
type RangeImage struct {
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// NewRangeImage checks that m is a [H, W, C] matrix with at least the range,
// intensity and elongation channels.
func NewRangeImage(m Matrix) (RangeImage, error) {
	if len(m.Dims) != 3 {
		return RangeImage{}, fmt.Errorf("%w: range image needs 3 dims, got %v", ErrShapeMismatch, m.Dims)
	}
	if m.Dims[2] < MinChannels {
		return RangeImage{}, fmt.Errorf("%w: range image needs %d channels, got %d",
			ErrShapeMismatch, MinChannels, m.Dims[2])
	}
	if m.Size() != len(m.Data) {
		return RangeImage{}, fmt.Errorf("%w: dims %v hold %d values, got %d",
			ErrShapeMismatch, m.Dims, m.Size(), len(m.Data))
	}
	return RangeImage{Height: m.Dims[0], Width: m.Dims[1], Channels: m.Dims[2], Data: m.Data}, nil
}

// At returns channel ch of the pixel at (row, col).
func (ri RangeImage) At(row, col, ch int) float32 {
	return ri.Data[(row*ri.Width+col)*ri.Channels+ch]
}

// Range returns the range channel of a pixel.
func (ri RangeImage) Range(row, col int) float32 { return ri.At(row, col, ChannelRange) }

// Valid reports whether the pixel recorded a return.
func (ri RangeImage) Valid(row, col int) bool { return ri.Range(row, col) > 0 }

// ValidCount returns the number of pixels with range > 0.
func (ri RangeImage) ValidCount() int {
	n := 0
	for row := 0; row < ri.Height; row++ {
		for col := 0; col < ri.Width; col++ {
			if ri.Valid(row, col) {
				n++
			}
		}
	}
	return n
}

// Pose grid channels: roll, pitch, yaw, then translation.
const poseChannels = 6

// PixelPoseGrid holds one vehicle pose per range image pixel of the primary
// laser, recorded at the moment that pixel was captured.
type PixelPoseGrid struct {
	Height int
	Width  int
	poses  []geom.Transform
}

// NewPixelPoseGrid builds the grid from a [H, W, 6] matrix of
// (roll, pitch, yaw, x, y, z) values.
func NewPixelPoseGrid(m Matrix) (*PixelPoseGrid, error) {
	if len(m.Dims) != 3 || m.Dims[2] != poseChannels {
		return nil, fmt.Errorf("%w: pixel pose needs [H, W, %d], got %v", ErrShapeMismatch, poseChannels, m.Dims)
	}
	if m.Size() != len(m.Data) {
		return nil, fmt.Errorf("%w: dims %v hold %d values, got %d",
			ErrShapeMismatch, m.Dims, m.Size(), len(m.Data))
	}

	g := &PixelPoseGrid{
		Height: m.Dims[0],
		Width:  m.Dims[1],
		poses:  make([]geom.Transform, m.Dims[0]*m.Dims[1]),
	}
	for i := range g.poses {
		v := m.Data[i*poseChannels : (i+1)*poseChannels]
		g.poses[i] = geom.FromEuler(
			float64(v[0]), float64(v[1]), float64(v[2]),
			r3.Vec{X: float64(v[3]), Y: float64(v[4]), Z: float64(v[5])},
		)
	}
	return g, nil
}

// At returns the vehicle pose recorded for the pixel at (row, col).
func (g *PixelPoseGrid) At(row, col int) geom.Transform {
	return g.poses[row*g.Width+col]
}
