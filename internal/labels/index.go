package labels

import (
	"strings"

	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

type projectionKey struct {
	objectID string
	suffix   sensor.CameraName
}

// Projection is the camera-projected box of one 3D object.
type Projection struct {
	Box Box2D
	// Camera is the camera whose group the box was annotated in.
	Camera sensor.CameraName
}

// ProjectionIndex finds the projected 2D box of an object by
// (object id, camera suffix). Build one per capture.
type ProjectionIndex struct {
	byKey map[projectionKey]Projection
}

// BuildProjectionIndex indexes camera-projected boxes. Ids without a known
// camera suffix can never be matched and are skipped. A later box with the
// same key replaces an earlier one.
func BuildProjectionIndex(groups []CameraGroup) ProjectionIndex {
	ix := ProjectionIndex{byKey: make(map[projectionKey]Projection)}
	for _, g := range groups {
		for _, b := range g.Boxes {
			base, suffix, ok := splitSuffix(b.ID)
			if !ok {
				continue
			}
			ix.byKey[projectionKey{objectID: base, suffix: suffix}] = Projection{Box: b.Box, Camera: g.Camera}
		}
	}
	return ix
}

func splitSuffix(id string) (string, sensor.CameraName, bool) {
	// no camera suffix is a suffix of another, so order does not matter
	for _, c := range sensor.MatchOrder {
		if base, ok := strings.CutSuffix(id, c.Suffix()); ok {
			return base, c, true
		}
	}
	return "", sensor.CameraUnknown, false
}

// Len returns the number of indexed boxes.
func (ix ProjectionIndex) Len() int { return len(ix.byKey) }

// Match tries each camera suffix in order and returns the first projection
// found for objectID.
func (ix ProjectionIndex) Match(objectID string, order []sensor.CameraName) (Projection, bool) {
	for _, c := range order {
		if p, ok := ix.byKey[projectionKey{objectID: objectID, suffix: c}]; ok {
			return p, true
		}
	}
	return Projection{}, false
}
