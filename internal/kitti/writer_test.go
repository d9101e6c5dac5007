package kitti

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waymo-kitti/internal/capture"
	"github.com/banshee-data/waymo-kitti/internal/fsutil"
	"github.com/banshee-data/waymo-kitti/internal/geom"
	"github.com/banshee-data/waymo-kitti/internal/labels"
	"github.com/banshee-data/waymo-kitti/internal/projector"
	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}

func testFrame(t *testing.T) *Frame {
	return &Frame{
		Calibration: testFrameCalibration(t),
		Points: projector.PointCloud{
			Points:     []r3.Vec{{X: 1}, {X: 2}},
			Intensity:  []float32{0.1, 0.2},
			Elongation: []float32{0, 0},
		},
		GroundTruth:  true,
		Labels:       []labels.Record{sampleRecord()},
		LabelsAll:    []labels.Record{sampleRecord(), sampleRecord()},
		CameraLabels: []labels.CameraBox{{Type: labels.TypeSign}},
		Images:       []capture.CameraImage{{Camera: sensor.CameraFront, Data: jpeg}},
		Exposures: []capture.CameraImage{
			{Camera: sensor.CameraFront, Pose: geom.Identity()},
			{Camera: sensor.CameraSideLeft, Pose: geom.Identity()},
		},
	}
}

func TestWriterLayout(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	w, err := NewWriter(mfs, "/out", 0)
	require.NoError(t, err)
	for _, d := range Dirs {
		assert.True(t, mfs.Exists("/out/"+d), "missing directory %s", d)
	}
	assert.Equal(t, "000000000000007", w.Name(7))

	n, err := w.WriteCapture(7, testFrame(t))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	for _, p := range []string{
		"/out/calib/000000000000007.txt",
		"/out/velodyne/000000000000007.bin",
		"/out/img_calib/000000000000007.txt",
		"/out/label_0/000000000000007.txt",
		"/out/label_all/000000000000007.txt",
		"/out/cam_label_0/000000000000007.txt",
		"/out/image_0/000000000000007.jpg",
	} {
		assert.True(t, mfs.Exists(p), "missing %s", p)
	}

	bin, err := mfs.ReadFile("/out/velodyne/000000000000007.bin")
	require.NoError(t, err)
	assert.Len(t, bin, 2*pointStride)

	all, err := mfs.ReadFile("/out/label_all/000000000000007.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(all), "\n"))

	img, err := mfs.ReadFile("/out/image_0/000000000000007.jpg")
	require.NoError(t, err)
	assert.Equal(t, jpeg, img, "images are written verbatim")
}

func TestWriterSkipsGroundTruthInTestMode(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	w, err := NewWriter(mfs, "/out", 6)
	require.NoError(t, err)

	f := testFrame(t)
	f.GroundTruth = false
	n, err := w.WriteCapture(3, f)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.True(t, mfs.Exists("/out/calib/000003.txt"))
	assert.False(t, mfs.Exists("/out/label_0/000003.txt"))
	assert.False(t, mfs.Exists("/out/label_all/000003.txt"))
	assert.False(t, mfs.Exists("/out/cam_label_0/000003.txt"))
}

func TestWriterSuffixesMultipleImages(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	w, err := NewWriter(mfs, "/out", 4)
	require.NoError(t, err)

	f := testFrame(t)
	f.Images = []capture.CameraImage{
		{Camera: sensor.CameraFront, Data: jpeg},
		{Camera: sensor.CameraSideRight, Data: []byte("\x89PNG\r\n\x1a\nrest")},
	}
	_, err = w.WriteCapture(12, f)
	require.NoError(t, err)

	assert.True(t, mfs.Exists("/out/image_0/0012_0.jpg"))
	assert.True(t, mfs.Exists("/out/image_0/0012_4.png"))
}

func TestWriterReportsFailedWrite(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	w := &Writer{fs: mfs, root: "/nowhere", indexLength: 3}
	n, err := w.WriteCapture(1, testFrame(t))
	assert.Error(t, err)
	assert.Equal(t, 0, n)
}

func TestFormatImageCalibration(t *testing.T) {
	images := []capture.CameraImage{
		{Camera: sensor.CameraSideLeft, Pose: geom.Identity(), PoseTimestamp: 2.5, ShutterTime: 0.003},
		{
			Camera:          sensor.CameraFront,
			Pose:            geom.FromEuler(0, 0, 0, r3.Vec{X: 4}),
			Velocity:        capture.Velocity{VX: 10, WZ: 0.5},
			PoseTimestamp:   1.5,
			TriggerTime:     1.25,
			ReadoutDoneTime: 1.75,
		},
	}
	lines := strings.Split(strings.TrimSuffix(string(FormatImageCalibration(images)), "\n"), "\n")
	require.Len(t, lines, 12)

	wantPrefixes := []string{
		"Pose_0: ", "Pose_3: ", "Velocity_0: ", "Velocity_3: ", "Timestamp_0: ", "Timestamp_3: ",
		"Shutter_0: ", "Shutter_3: ", "Trigger_0: ", "Trigger_3: ", "Readout_0: ", "Readout_3: ",
	}
	for i, p := range wantPrefixes {
		assert.True(t, strings.HasPrefix(lines[i], p), "line %d = %q, want prefix %q", i, lines[i], p)
	}
	assert.Len(t, strings.Fields(lines[0]), 17)
	assert.Contains(t, lines[0], "4.000000e+00")
	assert.Equal(t, "Velocity_0: 1.000000e+01 0.000000e+00 0.000000e+00 0.000000e+00 0.000000e+00 5.000000e-01", lines[2])
	assert.Equal(t, "Timestamp_0: 1.500000e+00", lines[4])
	assert.Equal(t, "Shutter_3: 3.000000e-03", lines[7])
	assert.Equal(t, "Trigger_0: 1.250000e+00", lines[8])
	assert.Equal(t, "Readout_0: 1.750000e+00", lines[10])
}
