package labels

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waymo-kitti/internal/calib"
	"github.com/banshee-data/waymo-kitti/internal/geom"
	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

func identityFrontReprojector(t *testing.T) *Reprojector {
	t.Helper()
	set, err := calib.NewSet(nil, []calib.CameraCalibration{
		{Name: sensor.CameraFront, Extrinsic: geom.Identity()},
		{Name: sensor.CameraFrontLeft, Extrinsic: geom.FromEuler(0, 0, 0.7, r3.Vec{X: 1})},
	})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return NewReprojector(calib.BuildFrame(set, calib.Metadata{}))
}

func projected(camera sensor.CameraName, ids ...string) CameraGroup {
	g := CameraGroup{Camera: camera}
	for i, id := range ids {
		g.Boxes = append(g.Boxes, CameraBox{
			ID:  id,
			Box: Box2DFromCenter(100*float64(i+1), 50, 20, 10),
		})
	}
	return g
}

func TestAlphaAlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	locs := []r3.Vec{{}, {X: 1}, {X: -1}, {Z: 1}, {Z: -1}, {X: -1e-300, Z: -1}}
	for i := 0; i < 500; i++ {
		locs = append(locs, r3.Vec{X: rng.NormFloat64() * 20, Z: rng.NormFloat64() * 20})
	}
	headings := []float64{0, math.Pi, -math.Pi, math.Pi / 2, -math.Pi / 2, 2 * math.Pi, -7 * math.Pi, 1e-17, -1e-17}
	for i := 0; i < 50; i++ {
		headings = append(headings, (rng.Float64()-0.5)*20*math.Pi)
	}

	for _, h := range headings {
		for _, loc := range locs {
			a := Alpha(-h-math.Pi/2, loc)
			if !(a >= 0 && a < 2*math.Pi) {
				t.Fatalf("heading %v loc %v: alpha %v outside [0, 2π)", h, loc, a)
			}
		}
	}
}

func TestWrapTwoPi(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{2 * math.Pi, 0},
		{-2 * math.Pi, 0},
		{5 * math.Pi, math.Pi},
		{-1e-17, 0},
	}
	for _, tt := range tests {
		if got := wrapTwoPi(tt.in); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("wrapTwoPi(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReprojectHeadingZeroStraightAhead(t *testing.T) {
	r := identityFrontReprojector(t)
	obj := ObjectLabel{
		ID:   "car",
		Type: TypeVehicle,
		Box:  geom.Box3D{Center: r3.Vec{X: 5, Z: 1}, Length: 4, Width: 2, Height: 2},
	}
	res, err := r.Reproject(nil, []ObjectLabel{obj}, BuildProjectionIndex([]CameraGroup{projected(sensor.CameraFront, "car_FRONT")}))
	if err != nil {
		t.Fatalf("Reproject: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	rec := res.Records[0]

	// bottom centre (5, 0, 0) in the vehicle frame is straight ahead of the
	// reference camera: x = 0, z > 0.
	want := r3.Vec{Z: 5}
	if r3.Norm(r3.Sub(rec.Location, want)) > 1e-9 {
		t.Errorf("location = %v, want %v", rec.Location, want)
	}
	if math.Abs(rec.RotationY+math.Pi/2) > 1e-12 {
		t.Errorf("rotation_y = %v, want -π/2", rec.RotationY)
	}
	// alpha = (-π/2 + atan2(0, 5) - π/2) mod 2π = π
	if math.Abs(rec.Alpha-math.Pi) > 1e-12 {
		t.Errorf("alpha = %v, want π", rec.Alpha)
	}
}

func TestReprojectFacingCameraGivesZeroAlpha(t *testing.T) {
	r := identityFrontReprojector(t)
	obj := ObjectLabel{
		ID:   "ped",
		Type: TypePedestrian,
		Box:  geom.Box3D{Center: r3.Vec{X: 8, Z: 0.9}, Length: 1, Width: 1, Height: 1.8, Heading: -math.Pi},
	}
	res, err := r.Reproject(nil, []ObjectLabel{obj}, BuildProjectionIndex([]CameraGroup{projected(sensor.CameraFront, "ped_FRONT")}))
	if err != nil {
		t.Fatalf("Reproject: %v", err)
	}
	if a := res.Records[0].Alpha; a > 1e-12 && a < 2*math.Pi-1e-12 {
		t.Errorf("alpha = %v, want 0 (mod 2π)", a)
	}
}

func TestReprojectKeepsObjectsWithoutPoints(t *testing.T) {
	r := identityFrontReprojector(t)
	objects := []ObjectLabel{
		{ID: "empty", Type: TypeSign, Box: geom.Box3D{Center: r3.Vec{X: 50}, Length: 1, Width: 1, Height: 1}},
		{ID: "full", Type: TypeVehicle, Box: geom.Box3D{Center: r3.Vec{X: 10}, Length: 4, Width: 2, Height: 2}},
	}
	points := []r3.Vec{{X: 10}, {X: 11, Y: 0.5}, {X: 10, Z: 0.9}, {X: 20}}
	index := BuildProjectionIndex([]CameraGroup{projected(sensor.CameraFront, "empty_FRONT", "full_FRONT")})

	res, err := r.Reproject(points, objects, index)
	if err != nil {
		t.Fatalf("Reproject: %v", err)
	}
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	if res.Records[0].ObjectID != "empty" || res.Records[0].NumPoints != 0 {
		t.Errorf("record 0 = %s with %d points, want empty with 0", res.Records[0].ObjectID, res.Records[0].NumPoints)
	}
	if res.Records[1].NumPoints != 3 {
		t.Errorf("full box: NumPoints = %d, want 3", res.Records[1].NumPoints)
	}
}

func TestReprojectDropsUnmatchedObjects(t *testing.T) {
	r := identityFrontReprojector(t)
	objects := []ObjectLabel{
		{ID: "seen", Type: TypeVehicle, Box: geom.Box3D{Center: r3.Vec{X: 10}, Length: 4, Width: 2, Height: 2}},
		{ID: "hidden", Type: TypeVehicle, Box: geom.Box3D{Center: r3.Vec{X: -10}, Length: 4, Width: 2, Height: 0}},
	}
	index := BuildProjectionIndex([]CameraGroup{projected(sensor.CameraFront, "seen_FRONT", "hidden")})

	res, err := r.Reproject(nil, objects, index)
	if err != nil {
		t.Fatalf("Reproject: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].ObjectID != "seen" {
		t.Errorf("records = %+v, want only \"seen\"", res.Records)
	}
}

func TestReprojectMatchOrder(t *testing.T) {
	r := identityFrontReprojector(t)
	obj := ObjectLabel{ID: "bike", Type: TypeCyclist, Box: geom.Box3D{Center: r3.Vec{X: 3, Y: 3}, Length: 2, Width: 1, Height: 1.5}}
	groups := []CameraGroup{
		projected(sensor.CameraFrontLeft, "bike_FRONT_LEFT"),
		projected(sensor.CameraFrontRight, "other_FRONT_RIGHT", "bike_FRONT_RIGHT"),
		projected(sensor.CameraSideLeft, "bike_SIDE_LEFT"),
	}

	res, err := r.Reproject(nil, []ObjectLabel{obj}, BuildProjectionIndex(groups))
	if err != nil {
		t.Fatalf("Reproject: %v", err)
	}
	rec := res.Records[0]
	if rec.Camera != sensor.CameraFrontRight {
		t.Errorf("camera = %v, want FRONT_RIGHT", rec.Camera)
	}
	if want := Box2DFromCenter(200, 50, 20, 10); rec.Box != want {
		t.Errorf("box = %+v, want %+v", rec.Box, want)
	}
}

func TestReprojectContractViolations(t *testing.T) {
	r := identityFrontReprojector(t)
	index := BuildProjectionIndex([]CameraGroup{projected(sensor.CameraFront, "a_FRONT")})

	flat := ObjectLabel{ID: "a", Type: TypeVehicle, Box: geom.Box3D{Length: 1, Width: 1}}
	if _, err := r.Reproject(nil, []ObjectLabel{flat}, index); !errors.Is(err, ErrZeroHeight) {
		t.Errorf("zero height: err = %v, want ErrZeroHeight", err)
	}

	odd := ObjectLabel{ID: "a", Type: ObjectType(9), Box: geom.Box3D{Length: 1, Width: 1, Height: 1}}
	if _, err := r.Reproject(nil, []ObjectLabel{odd}, index); !errors.Is(err, ErrUnknownObjectType) {
		t.Errorf("unknown type: err = %v, want ErrUnknownObjectType", err)
	}
}

func TestResultSelection(t *testing.T) {
	res := Result{Records: []Record{
		{ObjectID: "a", Camera: sensor.CameraFront, NumPoints: 0},
		{ObjectID: "b", Camera: sensor.CameraSideLeft, NumPoints: 12},
		{ObjectID: "c", Camera: sensor.CameraFront, NumPoints: 3},
	}}
	front := sensor.CameraSelection{Camera: sensor.CameraFront}

	if got := res.ForCamera(front); len(got) != 2 || got[0].ObjectID != "a" || got[1].ObjectID != "c" {
		t.Errorf("ForCamera(front) = %+v", got)
	}
	if got := res.ForCamera(sensor.CameraSelection{All: true}); len(got) != 3 {
		t.Errorf("ForCamera(all) returned %d records, want 3", len(got))
	}

	if !res.HasUsable(front, 0) {
		t.Error("front with min 0 should be usable")
	}
	if res.HasUsable(front, 4) {
		t.Error("front with min 4 should not be usable")
	}
	if !res.HasUsable(sensor.CameraSelection{All: true}, 10) {
		t.Error("all with min 10 should be usable")
	}
	if (Result{}).HasUsable(front, 0) {
		t.Error("empty result should not be usable")
	}
}

func TestBuildProjectionIndexSkipsUnsuffixedIDs(t *testing.T) {
	ix := BuildProjectionIndex([]CameraGroup{
		projected(sensor.CameraFront, "x_FRONT", "y", "z_REAR"),
		projected(sensor.CameraSideRight, "x_SIDE_RIGHT"),
	})
	if ix.Len() != 2 {
		t.Errorf("Len = %d, want 2", ix.Len())
	}
	if _, ok := ix.Match("y", sensor.MatchOrder); ok {
		t.Error("unsuffixed id should not match")
	}
	p, ok := ix.Match("x", []sensor.CameraName{sensor.CameraSideRight, sensor.CameraFront})
	if !ok || p.Camera != sensor.CameraSideRight {
		t.Errorf("Match = %+v, %v; want SIDE_RIGHT", p, ok)
	}
}

func TestObjectTypeStrings(t *testing.T) {
	for i, want := range []string{"UNKNOWN", "VEHICLE", "PEDESTRIAN", "SIGN", "CYCLIST"} {
		typ := ObjectType(i)
		if typ.String() != want {
			t.Errorf("ObjectType(%d) = %q, want %q", i, typ.String(), want)
		}
		got, err := ParseObjectType(want)
		if err != nil || got != typ {
			t.Errorf("ParseObjectType(%q) = %v, %v", want, got, err)
		}
	}
	if _, err := ParseObjectType("TRUCK"); !errors.Is(err, ErrUnknownObjectType) {
		t.Errorf("err = %v, want ErrUnknownObjectType", err)
	}
}

func TestSelectCameraBoxes(t *testing.T) {
	groups := []CameraGroup{
		projected(sensor.CameraFront, "a"),
		projected(sensor.CameraSideLeft, "b", "c"),
	}
	if got := SelectCameraBoxes(groups, sensor.CameraSelection{Camera: sensor.CameraSideLeft}); len(got) != 2 || got[0].ID != "b" {
		t.Errorf("side left boxes = %+v", got)
	}
	if got := SelectCameraBoxes(groups, sensor.CameraSelection{All: true}); len(got) != 3 {
		t.Errorf("all boxes = %d, want 3", len(got))
	}
}
