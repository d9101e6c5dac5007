package kitti

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/waymo-kitti/internal/calib"
	"github.com/banshee-data/waymo-kitti/internal/geom"
	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

// ErrMalformedRecord is returned when a calibration, label or shuffle
// record cannot be parsed.
var ErrMalformedRecord = errors.New("malformed record")

// Calibration record keys.
const (
	keyProjection = "P"
	keyR0Rect     = "R0_rect"
	keyVeloToCam  = "Tr_velo_to_cam_"
	keyTimestamp  = "timestamp_micros"
	keyContext    = "context_name"
)

// FormatCalibration renders the calibration record of one capture. Matrix
// rows are indexed by camera index, so P0 is always the FRONT camera.
func FormatCalibration(fc calib.FrameCalibration) []byte {
	var b bytes.Buffer
	for _, c := range fc.Cameras {
		fmt.Fprintf(&b, "%s%d: %s\n", keyProjection, c.Camera.Index(), sciJoin(c.P[:]))
	}
	fmt.Fprintf(&b, "%s: %s\n", keyR0Rect, sciJoin(fc.R0Rect[:]))
	for _, c := range fc.Cameras {
		fmt.Fprintf(&b, "%s%d: %s\n", keyVeloToCam, c.Camera.Index(), sciJoin(c.VeloToCam[:]))
	}
	fmt.Fprintf(&b, "%s: %d\n", keyTimestamp, fc.TimestampMicros)
	fmt.Fprintf(&b, "%s: %s\n", keyContext, fc.ContextName)
	return b.Bytes()
}

// ParseCalibration reads a record written by FormatCalibration. Per-laser
// matrices are not part of the record and come back empty. VehicleToFrontCam
// is recovered from the front camera's Tr_velo_to_cam row.
func ParseCalibration(data []byte) (calib.FrameCalibration, error) {
	var fc calib.FrameCalibration
	cams := map[int]*calib.CameraMatrices{}
	camera := func(i int) *calib.CameraMatrices {
		c, ok := cams[i]
		if !ok {
			c = &calib.CameraMatrices{Camera: sensor.CameraFromIndex(i)}
			cams[i] = c
		}
		return c
	}
	seen := map[string]bool{}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; sc.Scan(); line++ {
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		key, value, ok := strings.Cut(text, ":")
		if !ok {
			return fc, fmt.Errorf("%w: line %d has no key", ErrMalformedRecord, line)
		}
		value = strings.TrimSpace(value)
		if seen[key] {
			return fc, fmt.Errorf("%w: line %d repeats %s", ErrMalformedRecord, line, key)
		}
		seen[key] = true

		var err error
		switch {
		case key == keyR0Rect:
			err = parseFloats(value, fc.R0Rect[:])
		case key == keyTimestamp:
			fc.TimestampMicros, err = strconv.ParseInt(value, 10, 64)
		case key == keyContext:
			fc.ContextName = value
		case strings.HasPrefix(key, keyVeloToCam):
			var i int
			if i, err = cameraIndex(key, keyVeloToCam); err == nil {
				err = parseFloats(value, camera(i).VeloToCam[:])
			}
		case strings.HasPrefix(key, keyProjection):
			var i int
			if i, err = cameraIndex(key, keyProjection); err == nil {
				err = parseFloats(value, camera(i).P[:])
			}
		default:
			err = fmt.Errorf("unknown key %q", key)
		}
		if err != nil {
			return fc, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fc, err
	}
	for _, k := range []string{keyR0Rect, keyTimestamp, keyContext} {
		if !seen[k] {
			return fc, fmt.Errorf("%w: missing %s", ErrMalformedRecord, k)
		}
	}
	if len(cams) == 0 {
		return fc, fmt.Errorf("%w: no cameras", ErrMalformedRecord)
	}

	idx := make([]int, 0, len(cams))
	for i := range cams {
		if !seen[fmt.Sprintf("%s%d", keyProjection, i)] || !seen[fmt.Sprintf("%s%d", keyVeloToCam, i)] {
			return fc, fmt.Errorf("%w: camera %d needs both P and Tr_velo_to_cam", ErrMalformedRecord, i)
		}
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		fc.Cameras = append(fc.Cameras, *cams[i])
	}

	front := fc.Cameras[0]
	veloToRef, err := geom.FromAxes(3, 4, front.VeloToCam[:])
	if err != nil {
		return fc, fmt.Errorf("%w: Tr_velo_to_cam_%d: %v", ErrMalformedRecord, front.Camera.Index(), err)
	}
	fc.VehicleToFrontCam = geom.Compose(geom.Invert(calib.FrontCamToRef()), veloToRef)
	return fc, nil
}

func cameraIndex(key, prefix string) (int, error) {
	i, err := strconv.Atoi(strings.TrimPrefix(key, prefix))
	if err != nil || i < 0 {
		return 0, fmt.Errorf("bad camera index in %q", key)
	}
	return i, nil
}

func parseFloats(s string, dst []float64) error {
	fields := strings.Fields(s)
	if len(fields) != len(dst) {
		return fmt.Errorf("want %d values, got %d", len(dst), len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}
