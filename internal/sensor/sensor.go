// Package sensor enumerates the lasers and cameras of a capture rig.
//
// Numeric values match the on-disk frame records, so a decoded enum can be
// converted directly.
package sensor

import (
	"fmt"
	"strconv"
	"strings"
)

// LaserName identifies a laser on the rig.
type LaserName int

const (
	LaserUnknown   LaserName = 0
	LaserTop       LaserName = 1
	LaserFront     LaserName = 2
	LaserSideLeft  LaserName = 3
	LaserSideRight LaserName = 4
	LaserRear      LaserName = 5
)

// PrimaryLaser is the rotating top laser, the only one with a per-pixel pose grid.
const PrimaryLaser = LaserTop

func (n LaserName) String() string {
	switch n {
	case LaserTop:
		return "TOP"
	case LaserFront:
		return "FRONT"
	case LaserSideLeft:
		return "SIDE_LEFT"
	case LaserSideRight:
		return "SIDE_RIGHT"
	case LaserRear:
		return "REAR"
	default:
		return fmt.Sprintf("LASER_%d", int(n))
	}
}

// CameraName identifies a camera on the rig.
type CameraName int

const (
	CameraUnknown    CameraName = 0
	CameraFront      CameraName = 1
	CameraFrontLeft  CameraName = 2
	CameraFrontRight CameraName = 3
	CameraSideLeft   CameraName = 4
	CameraSideRight  CameraName = 5
)

// FrontCamera anchors the reference frame.
const FrontCamera = CameraFront

func (n CameraName) String() string {
	switch n {
	case CameraFront:
		return "FRONT"
	case CameraFrontLeft:
		return "FRONT_LEFT"
	case CameraFrontRight:
		return "FRONT_RIGHT"
	case CameraSideLeft:
		return "SIDE_LEFT"
	case CameraSideRight:
		return "SIDE_RIGHT"
	default:
		return fmt.Sprintf("CAMERA_%d", int(n))
	}
}

// Index is the zero-based output index of the camera (P0 is FRONT).
func (n CameraName) Index() int { return int(n) - 1 }

// CameraFromIndex is the inverse of CameraName.Index.
func CameraFromIndex(i int) CameraName { return CameraName(i + 1) }

// Suffix is the string appended to an object id by camera-projected labels.
func (n CameraName) Suffix() string { return "_" + n.String() }

// MatchOrder is the order in which camera suffixes are tried when pairing a
// laser label with its camera-projected box. The first match wins.
var MatchOrder = []CameraName{
	CameraFront,
	CameraFrontRight,
	CameraFrontLeft,
	CameraSideRight,
	CameraSideLeft,
}

// CameraSelection picks which camera's records count as the primary output.
type CameraSelection struct {
	All    bool
	Camera CameraName
}

// Includes reports whether records from camera c belong to the selection.
func (s CameraSelection) Includes(c CameraName) bool {
	return s.All || s.Camera == c
}

func (s CameraSelection) String() string {
	if s.All {
		return "all"
	}
	return strconv.Itoa(s.Camera.Index())
}

// ParseCameraSelection accepts a zero-based camera index ("0".."numCameras-1")
// or "all".
func ParseCameraSelection(v string, numCameras int) (CameraSelection, error) {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "all") {
		return CameraSelection{All: true}, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return CameraSelection{}, fmt.Errorf("camera selection %q: want an index or \"all\"", v)
	}
	if i < 0 || i >= numCameras {
		return CameraSelection{}, fmt.Errorf("camera selection %d out of range [0, %d)", i, numCameras)
	}
	return CameraSelection{Camera: CameraFromIndex(i)}, nil
}
