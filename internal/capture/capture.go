// Package capture defines the per-capture value handed from the decode layer
// to the conversion pipeline. Nothing here is shared between captures.
package capture

import (
	"fmt"

	"github.com/banshee-data/waymo-kitti/internal/calib"
	"github.com/banshee-data/waymo-kitti/internal/geom"
	"github.com/banshee-data/waymo-kitti/internal/labels"
	"github.com/banshee-data/waymo-kitti/internal/rangeimage"
	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

// Velocity is the sensor velocity at image capture: linear (m/s) then
// angular (rad/s), in the vehicle frame.
type Velocity struct {
	VX, VY, VZ float32
	WX, WY, WZ float64
}

// Values returns the six velocity components in record order.
func (v Velocity) Values() [6]float64 {
	return [6]float64{float64(v.VX), float64(v.VY), float64(v.VZ), v.WX, v.WY, v.WZ}
}

// CameraImage is one encoded camera image and the timing of its exposure.
type CameraImage struct {
	Camera sensor.CameraName
	// Data is the encoded image as recorded; it is never decoded.
	Data []byte
	// Pose is the vehicle pose at the time of exposure.
	Pose            geom.Transform
	Velocity        Velocity
	PoseTimestamp   float64
	ShutterTime     float64
	TriggerTime     float64
	ReadoutDoneTime float64
}

// Capture is one decoded multi-sensor snapshot.
type Capture struct {
	ContextName     string
	TimestampMicros int64
	Location        string
	// Pose is the vehicle pose of the capture (vehicle to world).
	Pose        geom.Transform
	Calibration *calib.Set
	// RangeImages holds each laser's range images indexed by return.
	RangeImages map[sensor.LaserName][]rangeimage.RangeImage
	// TopPose is the per-pixel vehicle pose grid of the primary laser.
	TopPose *rangeimage.PixelPoseGrid

	LaserLabels     []labels.ObjectLabel
	ProjectedLabels []labels.CameraGroup
	CameraLabels    []labels.CameraGroup
	Images          []CameraImage
}

// Metadata returns the values passed through into the calibration record.
func (c *Capture) Metadata() calib.Metadata {
	return calib.Metadata{TimestampMicros: c.TimestampMicros, ContextName: c.ContextName}
}

// Return collects return ret of every laser that recorded one.
func (c *Capture) Return(ret int) map[sensor.LaserName]rangeimage.RangeImage {
	out := make(map[sensor.LaserName]rangeimage.RangeImage, len(c.RangeImages))
	for name, returns := range c.RangeImages {
		if ret >= 0 && ret < len(returns) {
			out[name] = returns[ret]
		}
	}
	return out
}

// Image returns the image recorded by camera name.
func (c *Capture) Image(name sensor.CameraName) (CameraImage, bool) {
	for _, img := range c.Images {
		if img.Camera == name {
			return img, true
		}
	}
	return CameraImage{}, false
}

func (c *Capture) String() string {
	return fmt.Sprintf("%s@%d", c.ContextName, c.TimestampMicros)
}
