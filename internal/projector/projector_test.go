package projector

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/waymo-kitti/internal/calib"
	"github.com/banshee-data/waymo-kitti/internal/geom"
	"github.com/banshee-data/waymo-kitti/internal/rangeimage"
	"github.com/banshee-data/waymo-kitti/internal/sensor"
)

func near(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= tol
}

// singlePixel returns a 1×1 range image whose only pixel points straight
// ahead (azimuth 0, inclination 0).
func singlePixel(rng float32) rangeimage.RangeImage {
	return rangeimage.RangeImage{Height: 1, Width: 1, Channels: 4, Data: []float32{rng, 0.7, 0.2, 0}}
}

func identityGrid(h, w int) *rangeimage.PixelPoseGrid {
	g, err := rangeimage.NewPixelPoseGrid(rangeimage.Matrix{Dims: []int{h, w, 6}, Data: make([]float32, h*w*6)})
	if err != nil {
		panic(err)
	}
	return g
}

func translationGrid(h, w int, t r3.Vec) *rangeimage.PixelPoseGrid {
	data := make([]float32, 0, h*w*6)
	for i := 0; i < h*w; i++ {
		data = append(data, 0, 0, 0, float32(t.X), float32(t.Y), float32(t.Z))
	}
	g, err := rangeimage.NewPixelPoseGrid(rangeimage.Matrix{Dims: []int{h, w, 6}, Data: data})
	if err != nil {
		panic(err)
	}
	return g
}

func TestProjectLaserSinglePixelAhead(t *testing.T) {
	p := New(geom.Identity(), identityGrid(1, 1))
	top := calib.LaserCalibration{Name: sensor.LaserTop, Extrinsic: geom.Identity(), BeamInclinations: []float64{0}}

	pc, err := p.ProjectLaser(top, singlePixel(10))
	if err != nil {
		t.Fatalf("ProjectLaser: %v", err)
	}
	if pc.Len() != 1 {
		t.Fatalf("got %d points, want 1", pc.Len())
	}
	if !near(pc.Points[0], r3.Vec{X: 10}, 1e-9) {
		t.Errorf("point = %v, want (10,0,0)", pc.Points[0])
	}
	if pc.Intensity[0] != 0.7 || pc.Elongation[0] != 0.2 {
		t.Errorf("attributes = %v/%v, want 0.7/0.2", pc.Intensity[0], pc.Elongation[0])
	}
}

func TestColumnAzimuthsSpanFullSweep(t *testing.T) {
	got := columnAzimuths(4, geom.Identity())
	want := []float64{0.75 * math.Pi, 0.25 * math.Pi, -0.25 * math.Pi, -0.75 * math.Pi}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("column %d: azimuth %v, want %v", i, got[i], want[i])
		}
	}
}

func TestExtrinsicYawIsCorrected(t *testing.T) {
	// A laser mounted with a yaw still maps its centre column onto the
	// vehicle's forward axis.
	ext := geom.FromEuler(0, 0, 0.6, r3.Vec{X: 1, Z: 2})
	front := calib.LaserCalibration{Name: sensor.LaserFront, Extrinsic: ext, BeamInclinations: []float64{0}}

	pc, err := New(geom.Identity(), nil).ProjectLaser(front, singlePixel(5))
	if err != nil {
		t.Fatalf("ProjectLaser: %v", err)
	}
	if !near(pc.Points[0], r3.Vec{X: 6, Z: 2}, 1e-9) {
		t.Errorf("point = %v, want (6,0,2)", pc.Points[0])
	}
}

// indexedImage encodes the pixel index into every channel so outputs can be
// traced back to their source pixel.
func indexedImage(h, w int, invalid map[int]bool) rangeimage.RangeImage {
	data := make([]float32, 0, h*w*4)
	for i := 0; i < h*w; i++ {
		rng := float32(1 + i)
		if invalid[i] {
			rng = -1
		}
		data = append(data, rng, float32(i), float32(i)*0.5, 0)
	}
	return rangeimage.RangeImage{Height: h, Width: w, Channels: 4, Data: data}
}

func TestProjectLaserAttributesStayAligned(t *testing.T) {
	invalid := map[int]bool{0: true, 5: true, 6: true, 11: true}
	ri := indexedImage(3, 4, invalid)
	side := calib.LaserCalibration{
		Name:               sensor.LaserSideLeft,
		Extrinsic:          geom.Identity(),
		BeamInclinationMin: -0.3,
		BeamInclinationMax: 0.1,
	}

	pc, err := New(geom.Identity(), nil).ProjectLaser(side, ri)
	if err != nil {
		t.Fatalf("ProjectLaser: %v", err)
	}
	if pc.Len() != ri.ValidCount() || pc.Len() != 12-len(invalid) {
		t.Fatalf("got %d points, want %d", pc.Len(), 12-len(invalid))
	}
	if len(pc.Intensity) != pc.Len() || len(pc.Elongation) != pc.Len() {
		t.Fatalf("attribute lengths %d/%d, points %d", len(pc.Intensity), len(pc.Elongation), pc.Len())
	}
	for i := range pc.Points {
		pixel := pc.Intensity[i]
		if invalid[int(pixel)] {
			t.Errorf("invalid pixel %v leaked into output", pixel)
		}
		if pc.Elongation[i] != pixel*0.5 {
			t.Errorf("point %d: elongation %v does not belong to pixel %v", i, pc.Elongation[i], pixel)
		}
		// identity extrinsic: the point's distance from the laser is the pixel's range
		if d := r3.Norm(pc.Points[i]); math.Abs(d-float64(pixel+1)) > 1e-4 {
			t.Errorf("point %d: |p| = %v, want range %v", i, d, pixel+1)
		}
	}
}

func TestProjectLaserIsDeterministic(t *testing.T) {
	ri := indexedImage(4, 8, map[int]bool{3: true})
	top := calib.LaserCalibration{
		Name:               sensor.LaserTop,
		Extrinsic:          geom.FromEuler(0.01, -0.02, 0.3, r3.Vec{X: 1.4, Z: 2.2}),
		BeamInclinationMin: -0.3,
		BeamInclinationMax: 0.05,
	}
	grid := translationGrid(4, 8, r3.Vec{X: 0.2, Y: -0.1})
	p := New(geom.FromEuler(0, 0, 1, r3.Vec{X: 100, Y: 50}), grid)

	first, err := p.ProjectLaser(top, ri)
	if err != nil {
		t.Fatalf("ProjectLaser: %v", err)
	}
	second, err := p.ProjectLaser(top, ri)
	if err != nil {
		t.Fatalf("ProjectLaser: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("outputs differ between runs:\n%s", diff)
	}
}

// The primary laser is motion-compensated per pixel; secondary lasers are
// not. This asymmetry is intentional.
func TestMotionCompensationOnlyForPrimaryLaser(t *testing.T) {
	grid := translationGrid(1, 1, r3.Vec{X: 1})
	p := New(geom.Identity(), grid)

	top := calib.LaserCalibration{Name: sensor.LaserTop, Extrinsic: geom.Identity(), BeamInclinations: []float64{0}}
	front := calib.LaserCalibration{Name: sensor.LaserFront, Extrinsic: geom.Identity(), BeamInclinations: []float64{0}}

	pcTop, err := p.ProjectLaser(top, singlePixel(10))
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	pcFront, err := p.ProjectLaser(front, singlePixel(10))
	if err != nil {
		t.Fatalf("front: %v", err)
	}

	if !near(pcTop.Points[0], r3.Vec{X: 11}, 1e-9) {
		t.Errorf("primary laser point = %v, want (11,0,0) after compensation", pcTop.Points[0])
	}
	if !near(pcFront.Points[0], r3.Vec{X: 10}, 1e-9) {
		t.Errorf("secondary laser point = %v, want uncompensated (10,0,0)", pcFront.Points[0])
	}
}

func TestMotionCompensationCancelsWhenPixelPoseEqualsFramePose(t *testing.T) {
	framePose := geom.FromEuler(0, 0, 0.8, r3.Vec{X: 30, Y: -4, Z: 1})
	data := make([]float32, 0, 2*3*6)
	for i := 0; i < 6; i++ {
		data = append(data, 0, 0, 0.8, 30, -4, 1)
	}
	grid, err := rangeimage.NewPixelPoseGrid(rangeimage.Matrix{Dims: []int{2, 3, 6}, Data: data})
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	ext := geom.FromEuler(0, 0, 0.2, r3.Vec{X: 1, Z: 2})
	top := calib.LaserCalibration{Name: sensor.LaserTop, Extrinsic: ext, BeamInclinations: []float64{-0.1, 0.05}}
	ri := indexedImage(2, 3, nil)

	compensated, err := New(framePose, grid).ProjectLaser(top, ri)
	if err != nil {
		t.Fatalf("compensated: %v", err)
	}
	plain, err := New(geom.Identity(), nil).ProjectLaser(
		calib.LaserCalibration{Name: sensor.LaserFront, Extrinsic: ext, BeamInclinations: []float64{-0.1, 0.05}}, ri)
	if err != nil {
		t.Fatalf("plain: %v", err)
	}
	for i := range plain.Points {
		// pose grid values pass through float32
		if !near(compensated.Points[i], plain.Points[i], 1e-4) {
			t.Errorf("point %d: compensated %v, plain %v", i, compensated.Points[i], plain.Points[i])
		}
	}
}

func TestProjectLaserContractViolations(t *testing.T) {
	top := calib.LaserCalibration{Name: sensor.LaserTop, Extrinsic: geom.Identity(), BeamInclinations: []float64{0}}

	if _, err := New(geom.Identity(), nil).ProjectLaser(top, singlePixel(1)); !errors.Is(err, ErrMissingPixelPose) {
		t.Errorf("missing grid: err = %v, want ErrMissingPixelPose", err)
	}
	if _, err := New(geom.Identity(), identityGrid(2, 2)).ProjectLaser(top, singlePixel(1)); !errors.Is(err, ErrPoseShape) {
		t.Errorf("grid shape: err = %v, want ErrPoseShape", err)
	}

	tall := calib.LaserCalibration{Name: sensor.LaserRear, Extrinsic: geom.Identity(), BeamInclinations: []float64{0, 0.1}}
	if _, err := New(geom.Identity(), nil).ProjectLaser(tall, singlePixel(1)); !errors.Is(err, calib.ErrInclinationMismatch) {
		t.Errorf("inclination table: err = %v, want ErrInclinationMismatch", err)
	}
}

func TestProjectCaptureConcatenatesInCalibrationOrder(t *testing.T) {
	set, err := calib.NewSet(
		[]calib.LaserCalibration{
			{Name: sensor.LaserRear, Extrinsic: geom.Identity(), BeamInclinations: []float64{0}},
			{Name: sensor.LaserTop, Extrinsic: geom.Identity(), BeamInclinations: []float64{0}},
			{Name: sensor.LaserFront, Extrinsic: geom.Identity(), BeamInclinations: []float64{0}},
		},
		[]calib.CameraCalibration{{Name: sensor.CameraFront, Extrinsic: geom.Identity()}},
	)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	images := map[sensor.LaserName]rangeimage.RangeImage{
		sensor.LaserRear:  singlePixel(3),
		sensor.LaserTop:   singlePixel(1),
		sensor.LaserFront: singlePixel(2),
	}

	pc, err := New(geom.Identity(), identityGrid(1, 1)).ProjectCapture(set, images)
	if err != nil {
		t.Fatalf("ProjectCapture: %v", err)
	}
	want := []r3.Vec{{X: 1}, {X: 2}, {X: 3}}
	if pc.Len() != len(want) {
		t.Fatalf("got %d points, want %d", pc.Len(), len(want))
	}
	for i := range want {
		if !near(pc.Points[i], want[i], 1e-9) {
			t.Errorf("point %d = %v, want %v", i, pc.Points[i], want[i])
		}
	}

	delete(images, sensor.LaserFront)
	if _, err := New(geom.Identity(), identityGrid(1, 1)).ProjectCapture(set, images); !errors.Is(err, ErrMissingRangeImage) {
		t.Errorf("err = %v, want ErrMissingRangeImage", err)
	}
}

func TestConcat(t *testing.T) {
	a := PointCloud{Points: []r3.Vec{{X: 1}}, Intensity: []float32{1}, Elongation: []float32{0.1}}
	b := PointCloud{Points: []r3.Vec{{X: 2}, {X: 3}}, Intensity: []float32{2, 3}, Elongation: []float32{0.2, 0.3}}
	got := Concat(a, PointCloud{}, b)
	want := PointCloud{
		Points:     []r3.Vec{{X: 1}, {X: 2}, {X: 3}},
		Intensity:  []float32{1, 2, 3},
		Elongation: []float32{0.1, 0.2, 0.3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Concat mismatch (-want +got):\n%s", diff)
	}
}
