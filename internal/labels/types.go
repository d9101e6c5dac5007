package labels

import (
	"fmt"

	"github.com/banshee-data/waymo-kitti/internal/geom"
	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

// ObjectType is the semantic class of a labelled object. Values match the
// label records of the source dataset.
type ObjectType int

const (
	TypeUnknown    ObjectType = 0
	TypeVehicle    ObjectType = 1
	TypePedestrian ObjectType = 2
	TypeSign       ObjectType = 3
	TypeCyclist    ObjectType = 4
)

var typeNames = [...]string{
	TypeUnknown:    "UNKNOWN",
	TypeVehicle:    "VEHICLE",
	TypePedestrian: "PEDESTRIAN",
	TypeSign:       "SIGN",
	TypeCyclist:    "CYCLIST",
}

// Valid reports whether t is a known object type.
func (t ObjectType) Valid() bool { return t >= 0 && int(t) < len(typeNames) }

func (t ObjectType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("TYPE_%d", int(t))
	}
	return typeNames[t]
}

// ParseObjectType is the inverse of ObjectType.String.
func ParseObjectType(s string) (ObjectType, error) {
	for i, name := range typeNames {
		if name == s {
			return ObjectType(i), nil
		}
	}
	return TypeUnknown, fmt.Errorf("%w: %q", ErrUnknownObjectType, s)
}

// ObjectLabel is a 3D box label in the vehicle frame.
type ObjectLabel struct {
	ID         string
	Type       ObjectType
	Box        geom.Box3D
	Difficulty int
}

// Box2D is an image-space rectangle in pixels.
type Box2D struct {
	Left, Top, Right, Bottom float64
}

// Box2DFromCenter builds a rectangle from a centre and extents; length runs
// along image x and width along image y.
func Box2DFromCenter(cx, cy, length, width float64) Box2D {
	return Box2D{
		Left:   cx - length/2,
		Top:    cy - width/2,
		Right:  cx + length/2,
		Bottom: cy + width/2,
	}
}

// CameraBox is one 2D box annotation in a camera image. For boxes projected
// from 3D labels, ID carries the source object id plus the camera suffix.
type CameraBox struct {
	ID   string
	Type ObjectType
	Box  Box2D
}

// CameraGroup is the set of 2D boxes annotated for one camera.
type CameraGroup struct {
	Camera sensor.CameraName
	Boxes  []CameraBox
}

// SelectCameraBoxes returns the boxes of every group the selection includes,
// in group order.
func SelectCameraBoxes(groups []CameraGroup, sel sensor.CameraSelection) []CameraBox {
	var out []CameraBox
	for _, g := range groups {
		if sel.Includes(g.Camera) {
			out = append(out, g.Boxes...)
		}
	}
	return out
}
