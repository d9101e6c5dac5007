package calib

import (
	"github.com/banshee-data/waymo-kitti/internal/geom"
	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

// Mat34 is a row-major 3×4 matrix.
type Mat34 [12]float64

// Metadata is passed through verbatim into the calibration record.
type Metadata struct {
	TimestampMicros int64
	ContextName     string
}

// CameraMatrices are the per-camera matrices of a frame calibration.
type CameraMatrices struct {
	Camera sensor.CameraName
	// P is the intrinsic projection matrix.
	P Mat34
	// VeloToCam maps vehicle-frame points into this camera's reference axes:
	// FrontCamToRef · inv(camera extrinsic).
	VeloToCam Mat34
}

// LaserMatrices are the per-laser matrices of a frame calibration.
type LaserMatrices struct {
	Laser sensor.LaserName
	// LaserToRef maps laser-frame points into the reference axes:
	// FrontCamToRef · inv(laser extrinsic). It is exposed for callers only;
	// the calibration record carries per-camera rows and never writes it.
	LaserToRef Mat34
}

// FrameCalibration is everything the calibration record of one capture needs,
// plus the transform chain shared with label reprojection.
type FrameCalibration struct {
	Cameras []CameraMatrices
	Lasers  []LaserMatrices
	R0Rect  [9]float64
	// VehicleToFrontCam is the inverse of the front camera extrinsic.
	VehicleToFrontCam geom.Transform
	Metadata
}

// identityR0 is the rectification matrix; frames are already rectified.
var identityR0 = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// BuildFrame derives the frame calibration from a calibration set.
func BuildFrame(set *Set, meta Metadata) FrameCalibration {
	ref := FrontCamToRef()
	fc := FrameCalibration{
		R0Rect:            identityR0,
		VehicleToFrontCam: geom.Invert(set.FrontCamera().Extrinsic),
		Metadata:          meta,
	}

	for _, cam := range set.Cameras() {
		fc.Cameras = append(fc.Cameras, CameraMatrices{
			Camera:    cam.Name,
			P:         ProjectionMatrix(cam.Intrinsic),
			VeloToCam: Mat34(geom.Compose(ref, geom.Invert(cam.Extrinsic)).Rows34()),
		})
	}
	for _, l := range set.Lasers() {
		fc.Lasers = append(fc.Lasers, LaserMatrices{
			Laser:      l.Name,
			LaserToRef: Mat34(geom.Compose(ref, geom.Invert(l.Extrinsic)).Rows34()),
		})
	}
	return fc
}

// ProjectionMatrix lays out the intrinsics as
//
//	[fx  0 cx 0]
//	[ 0 fy cy 0]
//	[ 0  0  1 0]
func ProjectionMatrix(in Intrinsics) Mat34 {
	return Mat34{
		in.FocalX, 0, in.PrincipalX, 0,
		0, in.FocalY, in.PrincipalY, 0,
		0, 0, 1, 0,
	}
}

// VehicleToRef is the label reprojection chain: FrontCamToRef · VehicleToFrontCam.
func (f FrameCalibration) VehicleToRef() geom.Transform {
	return geom.Compose(FrontCamToRef(), f.VehicleToFrontCam)
}
