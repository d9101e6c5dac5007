// Package labels turns vehicle-frame 3D object labels into reference-frame
// label records paired with their camera-projected 2D boxes.
package labels

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waymo-kitti/internal/calib"
	"github.com/banshee-data/waymo-kitti/internal/geom"
	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

var (
	// ErrZeroHeight is returned for a matched object whose box height is not
	// positive.
	ErrZeroHeight = errors.New("object box has non-positive height")
	// ErrUnknownObjectType is returned for a matched object with a type
	// outside the known enumeration.
	ErrUnknownObjectType = errors.New("unknown object type")
)

// Record is one output label line.
type Record struct {
	ObjectID   string
	Type       ObjectType
	Truncation int
	Occlusion  int
	// Alpha is the observation angle in [0, 2π).
	Alpha float64
	Box   Box2D
	// Dimensions in metres.
	Height float64
	Width  float64
	Length float64
	// Location is the bottom centre of the box in reference axes.
	Location  r3.Vec
	RotationY float64
	NumPoints int
	// Difficulty is passed through from the source label.
	Difficulty int
	// Camera is the camera the projected box was found in.
	Camera sensor.CameraName
}

// Reprojector converts vehicle-frame labels into reference-frame records.
type Reprojector struct {
	// VehicleToRef is FrontCamToRef · VehicleToFrontCam.
	VehicleToRef geom.Transform
	// MatchOrder is the camera suffix order tried per object.
	MatchOrder []sensor.CameraName
}

// NewReprojector returns a Reprojector for one capture's frame calibration.
func NewReprojector(fc calib.FrameCalibration) *Reprojector {
	return &Reprojector{
		VehicleToRef: fc.VehicleToRef(),
		MatchOrder:   sensor.MatchOrder,
	}
}

// Result holds the records of one capture in source label order.
type Result struct {
	Records []Record
}

// ForCamera returns the records whose matched camera is in the selection.
func (r Result) ForCamera(sel sensor.CameraSelection) []Record {
	var out []Record
	for _, rec := range r.Records {
		if sel.Includes(rec.Camera) {
			out = append(out, rec)
		}
	}
	return out
}

// HasUsable reports whether the selection holds at least one record with at
// least minPoints enclosed points.
func (r Result) HasUsable(sel sensor.CameraSelection, minPoints int) bool {
	for _, rec := range r.ForCamera(sel) {
		if rec.NumPoints >= minPoints {
			return true
		}
	}
	return false
}

// Reproject emits one record per object that has a projected box. Objects
// with no projection in any camera are dropped; objects that enclose no
// points are kept with NumPoints 0.
func (r *Reprojector) Reproject(points []r3.Vec, objects []ObjectLabel, index ProjectionIndex) (Result, error) {
	var res Result
	for _, obj := range objects {
		proj, ok := index.Match(obj.ID, r.MatchOrder)
		if !ok {
			continue
		}
		rec, err := r.record(points, obj, proj)
		if err != nil {
			return Result{}, fmt.Errorf("object %q: %w", obj.ID, err)
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func (r *Reprojector) record(points []r3.Vec, obj ObjectLabel, proj Projection) (Record, error) {
	if !obj.Type.Valid() {
		return Record{}, fmt.Errorf("%w: %d", ErrUnknownObjectType, int(obj.Type))
	}
	b := obj.Box
	if b.Height <= 0 {
		return Record{}, fmt.Errorf("%w: %v", ErrZeroHeight, b.Height)
	}

	bottom := r3.Vec{X: b.Center.X, Y: b.Center.Y, Z: b.Center.Z - b.Height/2}
	loc := r.VehicleToRef.ApplyPoint(bottom)

	rotY := -b.Heading - math.Pi/2
	return Record{
		ObjectID:   obj.ID,
		Type:       obj.Type,
		Alpha:      Alpha(rotY, loc),
		Box:        proj.Box,
		Height:     b.Height,
		Width:      b.Width,
		Length:     b.Length,
		Location:   loc,
		RotationY:  rotY,
		NumPoints:  geom.CountInBox(points, b),
		Difficulty: obj.Difficulty,
		Camera:     proj.Camera,
	}, nil
}

// Alpha is the observation angle of an object at reference-frame location
// loc with yaw rotY, normalised into [0, 2π).
func Alpha(rotY float64, loc r3.Vec) float64 {
	return wrapTwoPi(rotY + math.Atan2(loc.X, loc.Z) - math.Pi/2)
}

func wrapTwoPi(a float64) float64 {
	const twoPi = 2 * math.Pi
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	// a tiny negative remainder rounds up to exactly 2π
	if a >= twoPi {
		a = 0
	}
	return a
}
