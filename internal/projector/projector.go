// Package projector reconstructs Cartesian point clouds from laser range
// images.
//
// Each valid pixel is treated as (inclination, azimuth, range), projected
// into the laser frame and moved into the vehicle frame by the laser
// extrinsic. Pixels of the primary laser are additionally motion-compensated
// with the vehicle pose recorded for that pixel; the other lasers use the
// extrinsic alone.
package projector

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waymo-kitti/internal/calib"
	"github.com/banshee-data/waymo-kitti/internal/geom"
	"github.com/banshee-data/waymo-kitti/internal/rangeimage"
	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

var (
	// ErrMissingPixelPose is returned when the primary laser's return has no
	// per-pixel pose grid to motion compensate with.
	ErrMissingPixelPose = errors.New("primary laser has no per-pixel pose grid")
	// ErrMissingRangeImage is returned when a calibrated laser lacks the
	// requested return.
	ErrMissingRangeImage = errors.New("no range image for calibrated laser")
	// ErrPoseShape is returned when the pose grid and range image disagree on
	// height or width.
	ErrPoseShape = errors.New("pixel pose grid does not match range image")
)

// Projector reconstructs the point cloud of one capture. It holds no mutable
// state and may be shared across goroutines.
type Projector struct {
	// FramePose is the vehicle pose of the capture (vehicle to world).
	FramePose geom.Transform
	// PixelPoses is the per-pixel vehicle pose grid of the primary laser.
	PixelPoses *rangeimage.PixelPoseGrid
	// Primary is the laser that receives per-pixel motion compensation.
	Primary sensor.LaserName
}

// New returns a Projector for a capture with the given frame pose and
// primary-laser pose grid.
func New(framePose geom.Transform, pixelPoses *rangeimage.PixelPoseGrid) *Projector {
	return &Projector{
		FramePose:  framePose,
		PixelPoses: pixelPoses,
		Primary:    sensor.PrimaryLaser,
	}
}

// ProjectLaser converts one laser's range image into a vehicle-frame point
// cloud, keeping only pixels with range > 0 in row-major pixel order.
func (p *Projector) ProjectLaser(l calib.LaserCalibration, ri rangeimage.RangeImage) (PointCloud, error) {
	inclinations, err := l.Inclinations(ri.Height)
	if err != nil {
		return PointCloud{}, err
	}

	var grid *rangeimage.PixelPoseGrid
	if l.Name == p.Primary {
		if p.PixelPoses == nil {
			return PointCloud{}, fmt.Errorf("laser %v: %w", l.Name, ErrMissingPixelPose)
		}
		if p.PixelPoses.Height != ri.Height || p.PixelPoses.Width != ri.Width {
			return PointCloud{}, fmt.Errorf("laser %v: %w: poses %dx%d, image %dx%d", l.Name, ErrPoseShape,
				p.PixelPoses.Height, p.PixelPoses.Width, ri.Height, ri.Width)
		}
		grid = p.PixelPoses
	}

	azimuths := columnAzimuths(ri.Width, l.Extrinsic)

	n := ri.ValidCount()
	local := make([]r3.Vec, 0, n)
	pixels := make([]int, 0, n)
	pc := PointCloud{
		Intensity:  make([]float32, 0, n),
		Elongation: make([]float32, 0, n),
	}
	for row := 0; row < ri.Height; row++ {
		for col := 0; col < ri.Width; col++ {
			rng := ri.Range(row, col)
			if rng <= 0 {
				continue
			}
			local = append(local, geom.SphericalToCartesian(float64(rng), azimuths[col], inclinations[row]))
			pixels = append(pixels, row*ri.Width+col)
			pc.Intensity = append(pc.Intensity, ri.At(row, col, rangeimage.ChannelIntensity))
			pc.Elongation = append(pc.Elongation, ri.At(row, col, rangeimage.ChannelElongation))
		}
	}

	pc.Points = geom.Apply(l.Extrinsic, local)

	if grid != nil {
		worldToVehicle := geom.Invert(p.FramePose)
		for i, px := range pixels {
			pixelPose := grid.At(px/ri.Width, px%ri.Width)
			pc.Points[i] = geom.Compose(worldToVehicle, pixelPose).ApplyPoint(pc.Points[i])
		}
	}
	return pc, nil
}

// columnAzimuths maps each image column onto the full 2π sweep. Column 0 is
// +π and azimuth decreases left to right; the extrinsic yaw is removed so the
// angles are in the laser frame.
func columnAzimuths(width int, extrinsic geom.Transform) []float64 {
	correction := math.Atan2(extrinsic.At(1, 0), extrinsic.At(0, 0))
	out := make([]float64, width)
	for col := range out {
		ratio := (float64(width-col) - 0.5) / float64(width)
		out[col] = (ratio*2-1)*math.Pi - correction
	}
	return out
}

// ProjectCapture reconstructs every calibrated laser concurrently and
// concatenates the clouds in calibration order.
func (p *Projector) ProjectCapture(set *calib.Set, images map[sensor.LaserName]rangeimage.RangeImage) (PointCloud, error) {
	lasers := set.Lasers()
	clouds := make([]PointCloud, len(lasers))

	var g errgroup.Group
	for i, l := range lasers {
		ri, ok := images[l.Name]
		if !ok {
			return PointCloud{}, fmt.Errorf("laser %v: %w", l.Name, ErrMissingRangeImage)
		}
		g.Go(func() error {
			pc, err := p.ProjectLaser(l, ri)
			if err != nil {
				return err
			}
			clouds[i] = pc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PointCloud{}, err
	}
	return Concat(clouds...), nil
}
