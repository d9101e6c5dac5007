// Package calib holds the static calibration of a capture rig and derives the
// per-frame projection and frame-to-frame matrices written with each capture.
package calib

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/waymo-kitti/internal/geom"
	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

var (
	// ErrInclinationMismatch is returned when an explicit beam table has a
	// different length than the range image height.
	ErrInclinationMismatch = errors.New("beam inclination table size does not match image height")
	// ErrNoCameras is returned when a capture carries no camera calibration.
	ErrNoCameras = errors.New("calibration has no cameras")
	// ErrDuplicateSensor is returned when a sensor name is calibrated twice.
	ErrDuplicateSensor = errors.New("duplicate sensor calibration")
	// ErrBadIntrinsic is returned when an intrinsic vector is shorter than
	// fx, fy, cx, cy.
	ErrBadIntrinsic = errors.New("camera intrinsic needs at least 4 values")
)

// LaserCalibration is the static calibration of one laser.
type LaserCalibration struct {
	Name sensor.LaserName
	// Extrinsic maps laser-frame points into the vehicle frame.
	Extrinsic geom.Transform
	// BeamInclinations is the explicit per-row inclination table (radians),
	// ordered bottom row first. When empty, inclinations are spread evenly
	// between BeamInclinationMin and BeamInclinationMax.
	BeamInclinations   []float64
	BeamInclinationMin float64
	BeamInclinationMax float64
}

// Inclinations returns one inclination per image row, index 0 being the top
// row of the range image.
func (l LaserCalibration) Inclinations(height int) ([]float64, error) {
	out := make([]float64, height)
	if len(l.BeamInclinations) > 0 {
		if len(l.BeamInclinations) != height {
			return nil, fmt.Errorf("laser %v: %w: %d inclinations for height %d",
				l.Name, ErrInclinationMismatch, len(l.BeamInclinations), height)
		}
		for i := range out {
			out[i] = l.BeamInclinations[height-1-i]
		}
		return out, nil
	}

	diff := l.BeamInclinationMax - l.BeamInclinationMin
	for i := range out {
		ratio := (float64(height-1-i) + 0.5) / float64(height)
		out[i] = l.BeamInclinationMin + ratio*diff
	}
	return out, nil
}

// Intrinsics are the pinhole parameters of a camera, in pixels.
type Intrinsics struct {
	FocalX     float64
	FocalY     float64
	PrincipalX float64
	PrincipalY float64
}

// IntrinsicsFromSlice reads [f_u, f_v, c_u, c_v, ...]; distortion terms past
// the fourth value are ignored.
func IntrinsicsFromSlice(v []float64) (Intrinsics, error) {
	if len(v) < 4 {
		return Intrinsics{}, fmt.Errorf("%w: got %d", ErrBadIntrinsic, len(v))
	}
	return Intrinsics{FocalX: v[0], FocalY: v[1], PrincipalX: v[2], PrincipalY: v[3]}, nil
}

// CameraCalibration is the static calibration of one camera.
type CameraCalibration struct {
	Name sensor.CameraName
	// Extrinsic maps camera-frame points into the vehicle frame.
	Extrinsic geom.Transform
	Intrinsic Intrinsics
	Width     int
	Height    int
}

// Set is the complete, read-only calibration of one capture, with lasers and
// cameras ordered by sensor name.
type Set struct {
	lasers  []LaserCalibration
	cameras []CameraCalibration
	front   int
}

// NewSet validates and orders the calibrations of a capture. At least one
// camera is required since the front camera anchors the reference frame.
func NewSet(lasers []LaserCalibration, cameras []CameraCalibration) (*Set, error) {
	if len(cameras) == 0 {
		return nil, ErrNoCameras
	}

	s := &Set{
		lasers:  append([]LaserCalibration(nil), lasers...),
		cameras: append([]CameraCalibration(nil), cameras...),
	}
	sort.SliceStable(s.lasers, func(i, j int) bool { return s.lasers[i].Name < s.lasers[j].Name })
	sort.SliceStable(s.cameras, func(i, j int) bool { return s.cameras[i].Name < s.cameras[j].Name })

	for i := 1; i < len(s.lasers); i++ {
		if s.lasers[i].Name == s.lasers[i-1].Name {
			return nil, fmt.Errorf("%w: laser %v", ErrDuplicateSensor, s.lasers[i].Name)
		}
	}
	for i := 1; i < len(s.cameras); i++ {
		if s.cameras[i].Name == s.cameras[i-1].Name {
			return nil, fmt.Errorf("%w: camera %v", ErrDuplicateSensor, s.cameras[i].Name)
		}
	}
	for i, c := range s.cameras {
		if c.Name == sensor.FrontCamera {
			s.front = i
			break
		}
	}
	return s, nil
}

// Lasers returns the laser calibrations in sensor-name order.
func (s *Set) Lasers() []LaserCalibration {
	return append([]LaserCalibration(nil), s.lasers...)
}

// Cameras returns the camera calibrations in sensor-name order.
func (s *Set) Cameras() []CameraCalibration {
	return append([]CameraCalibration(nil), s.cameras...)
}

// Laser looks up a laser by name.
func (s *Set) Laser(name sensor.LaserName) (LaserCalibration, bool) {
	for _, l := range s.lasers {
		if l.Name == name {
			return l, true
		}
	}
	return LaserCalibration{}, false
}

// Camera looks up a camera by name.
func (s *Set) Camera(name sensor.CameraName) (CameraCalibration, bool) {
	for _, c := range s.cameras {
		if c.Name == name {
			return c, true
		}
	}
	return CameraCalibration{}, false
}

// FrontCamera returns the camera that anchors the reference frame: the FRONT
// camera when present, otherwise the first camera in name order.
func (s *Set) FrontCamera() CameraCalibration {
	return s.cameras[s.front]
}

// frontCamToRef re-axes a point expressed in the front camera's native frame
// (x forward, y left, z up) into the reference camera axes used by the output
// records (x right, y down, z forward).
var frontCamToRef = func() geom.Transform {
	t, err := geom.FromAxes(3, 3, []float64{
		0, -1, 0,
		0, 0, -1,
		1, 0, 0,
	})
	if err != nil {
		panic(err)
	}
	return t
}()

// FrontCamToRef returns the fixed axis remap applied to both the calibration
// record chain and the label reprojection chain.
func FrontCamToRef() geom.Transform { return frontCamToRef }
