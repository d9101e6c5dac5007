package kitti

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/banshee-data/waymo-kitti/internal/capture"
)

// FormatImageCalibration renders the per-camera exposure record: every
// camera's Pose_i, then Velocity_i, Timestamp_i, Shutter_i, Trigger_i and
// Readout_i, with i the camera index.
func FormatImageCalibration(images []capture.CameraImage) []byte {
	imgs := append([]capture.CameraImage(nil), images...)
	sort.SliceStable(imgs, func(i, j int) bool { return imgs[i].Camera < imgs[j].Camera })

	var b bytes.Buffer
	section := func(key string, values func(capture.CameraImage) []float64) {
		for _, img := range imgs {
			fmt.Fprintf(&b, "%s_%d: %s\n", key, img.Camera.Index(), sciJoin(values(img)))
		}
	}
	section("Pose", func(img capture.CameraImage) []float64 {
		v := img.Pose.Values()
		return v[:]
	})
	section("Velocity", func(img capture.CameraImage) []float64 {
		v := img.Velocity.Values()
		return v[:]
	})
	section("Timestamp", func(img capture.CameraImage) []float64 { return []float64{img.PoseTimestamp} })
	section("Shutter", func(img capture.CameraImage) []float64 { return []float64{img.ShutterTime} })
	section("Trigger", func(img capture.CameraImage) []float64 { return []float64{img.TriggerTime} })
	section("Readout", func(img capture.CameraImage) []float64 { return []float64{img.ReadoutDoneTime} })
	return b.Bytes()
}
