package kitti

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/waymo-kitti/internal/labels"
)

// Sentinels written in the 3D fields of 2D-only camera labels.
const (
	noTruncation = "-1"
	noOcclusion  = "-1"
	noAngle      = "-10"
	noDimension  = "-1"
	noLocation   = "-1000"
	cameraScore  = "1.0"
)

// FormatLabel renders one 3D label line, without a trailing newline:
//
//	type truncation occlusion alpha left top right bottom h w l x y z rotation_y num_points difficulty
func FormatLabel(r labels.Record) string {
	fields := []string{
		r.Type.String(),
		strconv.Itoa(r.Truncation),
		strconv.Itoa(r.Occlusion),
		round2(r.Alpha),
		round2(r.Box.Left), round2(r.Box.Top), round2(r.Box.Right), round2(r.Box.Bottom),
		round2(r.Height), round2(r.Width), round2(r.Length),
		round2(r.Location.X), round2(r.Location.Y), round2(r.Location.Z),
		round2(r.RotationY),
		strconv.Itoa(r.NumPoints),
		strconv.Itoa(r.Difficulty),
	}
	return strings.Join(fields, " ")
}

// FormatLabelAll is FormatLabel followed by the matched camera index.
func FormatLabelAll(r labels.Record) string {
	return FormatLabel(r) + " " + strconv.Itoa(r.Camera.Index())
}

// FormatCameraLabel renders a 2D-only label line. Fields that need 3D
// geometry carry fixed "not applicable" values.
func FormatCameraLabel(b labels.CameraBox) string {
	fields := []string{
		b.Type.String(),
		noTruncation, noOcclusion, noAngle,
		round2(b.Box.Left), round2(b.Box.Top), round2(b.Box.Right), round2(b.Box.Bottom),
		noDimension, noDimension, noDimension,
		noLocation, noLocation, noLocation,
		noAngle,
		cameraScore,
	}
	return strings.Join(fields, " ")
}

func joinLines[T any](items []T, format func(T) string) []byte {
	var b bytes.Buffer
	for _, it := range items {
		b.WriteString(format(it))
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// FormatLabels renders a label_0 record.
func FormatLabels(rs []labels.Record) []byte { return joinLines(rs, FormatLabel) }

// FormatLabelsAll renders a label_all record.
func FormatLabelsAll(rs []labels.Record) []byte { return joinLines(rs, FormatLabelAll) }

// FormatCameraLabels renders a cam_label_0 record.
func FormatCameraLabels(bs []labels.CameraBox) []byte { return joinLines(bs, FormatCameraLabel) }

// Label is a parsed label line of any of the three shapes.
type Label struct {
	Type       labels.ObjectType
	Truncation float64
	Occlusion  float64
	Alpha      float64
	Box        labels.Box2D
	Height     float64
	Width      float64
	Length     float64
	X, Y, Z    float64
	RotationY  float64
	// NumPoints and Difficulty are set on 3D lines.
	NumPoints  int
	Difficulty int
	// Camera is the camera index on label_all lines, otherwise -1.
	Camera int
	// Score is set on 2D-only lines.
	Score float64
}

// Number of numeric fields after the type.
const (
	cameraLabelFields = 15
	labelFields       = 16
	labelAllFields    = 17
)

// ParseLabel reads one line written by FormatLabel, FormatLabelAll or
// FormatCameraLabel.
func ParseLabel(line string) (Label, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Label{}, fmt.Errorf("%w: empty label line", ErrMalformedRecord)
	}
	typ, err := labels.ParseObjectType(fields[0])
	if err != nil {
		return Label{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	nums := fields[1:]
	switch len(nums) {
	case cameraLabelFields, labelFields, labelAllFields:
	default:
		return Label{}, fmt.Errorf("%w: label line has %d values", ErrMalformedRecord, len(nums))
	}

	f := make([]float64, 14)
	for i := range f {
		if f[i], err = strconv.ParseFloat(nums[i], 64); err != nil {
			return Label{}, fmt.Errorf("%w: field %d: %v", ErrMalformedRecord, i+1, err)
		}
	}
	l := Label{
		Type:       typ,
		Truncation: f[0],
		Occlusion:  f[1],
		Alpha:      f[2],
		Box:        labels.Box2D{Left: f[3], Top: f[4], Right: f[5], Bottom: f[6]},
		Height:     f[7],
		Width:      f[8],
		Length:     f[9],
		X:          f[10],
		Y:          f[11],
		Z:          f[12],
		RotationY:  f[13],
		Camera:     -1,
	}

	if len(nums) == cameraLabelFields {
		if l.Score, err = strconv.ParseFloat(nums[14], 64); err != nil {
			return Label{}, fmt.Errorf("%w: score: %v", ErrMalformedRecord, err)
		}
		return l, nil
	}

	ints := make([]int, len(nums)-14)
	for i := range ints {
		if ints[i], err = strconv.Atoi(nums[14+i]); err != nil {
			return Label{}, fmt.Errorf("%w: field %d: %v", ErrMalformedRecord, 15+i, err)
		}
	}
	l.NumPoints, l.Difficulty = ints[0], ints[1]
	if len(ints) == 3 {
		l.Camera = ints[2]
	}
	return l, nil
}
