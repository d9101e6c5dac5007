// Package pipeline converts decoded captures into dataset records and runs
// the conversion over whole segment files.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/banshee-data/waymo-kitti/internal/calib"
	"github.com/banshee-data/waymo-kitti/internal/capture"
	"github.com/banshee-data/waymo-kitti/internal/config"
	"github.com/banshee-data/waymo-kitti/internal/kitti"
	"github.com/banshee-data/waymo-kitti/internal/labels"
	"github.com/banshee-data/waymo-kitti/internal/projector"
	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

// ErrNoUsableLabels marks a capture that is not worth keeping: no matched
// label in the selected cameras encloses enough points.
var ErrNoUsableLabels = errors.New("capture has no usable labels")

// Converter turns one capture into the records of one output frame. It holds
// only settings and may be shared across goroutines.
type Converter struct {
	// CameraType is a camera index or "all".
	CameraType     string
	ReturnIndices  []int
	TestMode       bool
	MinLabelPoints int
	WriteImages    bool
}

// NewConverter returns a Converter with the settings of cfg.
func NewConverter(cfg *config.ConvertConfig) *Converter {
	return &Converter{
		CameraType:     cfg.GetCameraType(),
		ReturnIndices:  cfg.GetReturnIndices(),
		TestMode:       cfg.GetTestMode(),
		MinLabelPoints: cfg.GetMinLabelPoints(),
		WriteImages:    cfg.GetWriteImages(),
	}
}

// Process builds the frame calibration, reconstructs the point cloud and
// reprojects labels for c. Failures come back as *capture.CaptureError; a
// capture with nothing to label returns ErrNoUsableLabels.
func (cv *Converter) Process(c *capture.Capture) (*kitti.Frame, error) {
	if c.Calibration == nil {
		return nil, capture.Fail(c, capture.StageCalibration, calib.ErrNoCameras)
	}
	sel, err := sensor.ParseCameraSelection(cv.CameraType, len(c.Calibration.Cameras()))
	if err != nil {
		return nil, capture.Fail(c, capture.StageCalibration, err)
	}

	fc := calib.BuildFrame(c.Calibration, c.Metadata())

	points, err := cv.project(c)
	if err != nil {
		return nil, capture.Fail(c, capture.StageProjection, err)
	}

	frame := &kitti.Frame{
		Calibration: fc,
		Points:      points,
		GroundTruth: !cv.TestMode,
		Exposures:   c.Images,
	}
	if cv.WriteImages {
		for _, img := range c.Images {
			if sel.Includes(img.Camera) {
				frame.Images = append(frame.Images, img)
			}
		}
	}
	if cv.TestMode {
		return frame, nil
	}

	res, err := labels.NewReprojector(fc).Reproject(points.Points, c.LaserLabels, labels.BuildProjectionIndex(c.ProjectedLabels))
	if err != nil {
		return nil, capture.Fail(c, capture.StageLabels, err)
	}
	if !res.HasUsable(sel, cv.MinLabelPoints) {
		return nil, ErrNoUsableLabels
	}
	frame.Labels = res.ForCamera(sel)
	frame.LabelsAll = res.Records
	frame.CameraLabels = labels.SelectCameraBoxes(c.CameraLabels, sel)
	return frame, nil
}

func (cv *Converter) project(c *capture.Capture) (projector.PointCloud, error) {
	returns := cv.ReturnIndices
	if len(returns) == 0 {
		returns = []int{0}
	}
	p := projector.New(c.Pose, c.TopPose)
	clouds := make([]projector.PointCloud, 0, len(returns))
	for _, ret := range returns {
		pc, err := p.ProjectCapture(c.Calibration, c.Return(ret))
		if err != nil {
			return projector.PointCloud{}, fmt.Errorf("return %d: %w", ret, err)
		}
		clouds = append(clouds, pc)
	}
	return projector.Concat(clouds...), nil
}
