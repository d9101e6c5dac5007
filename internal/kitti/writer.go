// Package kitti reads and writes the converted dataset: one file per capture
// in each record directory, named by a zero-padded output index.
package kitti

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/waymo-kitti/internal/calib"
	"github.com/banshee-data/waymo-kitti/internal/capture"
	"github.com/banshee-data/waymo-kitti/internal/fsutil"
	"github.com/banshee-data/waymo-kitti/internal/labels"
	"github.com/banshee-data/waymo-kitti/internal/projector"
)

// Record directories under the output root.
const (
	DirCalib       = "calib"
	DirVelodyne    = "velodyne"
	DirLabel       = "label_0"
	DirLabelAll    = "label_all"
	DirCameraLabel = "cam_label_0"
	DirImage       = "image_0"
	DirImageCalib  = "img_calib"
)

// Dirs lists every record directory in creation order.
var Dirs = []string{DirCalib, DirVelodyne, DirLabelAll, DirImageCalib, DirImage, DirLabel, DirCameraLabel}

// DefaultIndexLength is the zero-padded width of output names.
const DefaultIndexLength = 15

// Frame is everything written for one converted capture.
type Frame struct {
	Calibration calib.FrameCalibration
	Points      projector.PointCloud
	// GroundTruth controls whether the three label records are written.
	GroundTruth  bool
	Labels       []labels.Record
	LabelsAll    []labels.Record
	CameraLabels []labels.CameraBox
	// Images are the selected camera images, written verbatim.
	Images []capture.CameraImage
	// Exposures feed the img_calib record; usually every camera image.
	Exposures []capture.CameraImage
}

// Writer lays out converted captures under Root. It keeps no per-capture
// state; calls for distinct indexes may run concurrently.
type Writer struct {
	fs          fsutil.FileSystem
	root        string
	indexLength int
}

// NewWriter creates the record directories under root.
func NewWriter(fsys fsutil.FileSystem, root string, indexLength int) (*Writer, error) {
	if indexLength <= 0 {
		indexLength = DefaultIndexLength
	}
	for _, d := range Dirs {
		if err := fsys.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", d, err)
		}
	}
	return &Writer{fs: fsys, root: root, indexLength: indexLength}, nil
}

// Name returns the zero-padded output name of index.
func (w *Writer) Name(index int) string {
	return fmt.Sprintf("%0*d", w.indexLength, index)
}

// Path returns the path of a record file.
func (w *Writer) Path(dir string, index int, ext string) string {
	return filepath.Join(w.root, dir, w.Name(index)+ext)
}

// WriteCapture writes every record of f under index and returns the number
// of files written.
func (w *Writer) WriteCapture(index int, f *Frame) (int, error) {
	type file struct {
		path string
		data []byte
	}
	files := []file{
		{w.Path(DirCalib, index, ".txt"), FormatCalibration(f.Calibration)},
		{w.Path(DirVelodyne, index, ".bin"), EncodePointCloud(f.Points)},
		{w.Path(DirImageCalib, index, ".txt"), FormatImageCalibration(f.Exposures)},
	}
	if f.GroundTruth {
		files = append(files,
			file{w.Path(DirLabel, index, ".txt"), FormatLabels(f.Labels)},
			file{w.Path(DirLabelAll, index, ".txt"), FormatLabelsAll(f.LabelsAll)},
			file{w.Path(DirCameraLabel, index, ".txt"), FormatCameraLabels(f.CameraLabels)},
		)
	}
	for _, img := range f.Images {
		name := w.Name(index)
		if len(f.Images) > 1 {
			name = fmt.Sprintf("%s_%d", name, img.Camera.Index())
		}
		files = append(files, file{filepath.Join(w.root, DirImage, name+imageExt(img.Data)), img.Data})
	}

	for i, fl := range files {
		if err := w.fs.WriteFile(fl.path, fl.data, 0644); err != nil {
			return i, fmt.Errorf("write %s: %w", fl.path, err)
		}
	}
	return len(files), nil
}

// imageExt picks a file extension from the encoded image's magic bytes.
func imageExt(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return ".jpg"
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return ".png"
	default:
		return ".img"
	}
}
