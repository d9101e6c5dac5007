package geom

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func randomTransform(rng *rand.Rand) Transform {
	return FromEuler(
		(rng.Float64()*2-1)*math.Pi,
		(rng.Float64()*2-1)*math.Pi/2,
		(rng.Float64()*2-1)*math.Pi,
		r3.Vec{X: rng.Float64()*100 - 50, Y: rng.Float64()*100 - 50, Z: rng.Float64()*10 - 5},
	)
}

func TestComposeInverseIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		tr := randomTransform(rng)
		if got := Compose(Invert(tr), tr); !got.ApproxEqual(Identity(), tol) {
			t.Fatalf("sample %d: invert(t)·t = %v, want identity", i, got)
		}
		if got := Compose(tr, Invert(tr)); !got.ApproxEqual(Identity(), tol) {
			t.Fatalf("sample %d: t·invert(t) = %v, want identity", i, got)
		}
	}
}

func TestComposeOrderAppliesRightFirst(t *testing.T) {
	translate, _ := FromAxes(3, 4, []float64{
		1, 0, 0, 5,
		0, 1, 0, 0,
		0, 0, 1, 0,
	})
	rotate := FromEuler(0, 0, math.Pi/2, r3.Vec{})

	// rotate first, then translate
	p := Compose(translate, rotate).ApplyPoint(r3.Vec{X: 1})
	if math.Abs(p.X-5) > tol || math.Abs(p.Y-1) > tol {
		t.Errorf("translate·rotate applied to (1,0,0) = %v, want (5,1,0)", p)
	}

	// translate first, then rotate
	p = Compose(rotate, translate).ApplyPoint(r3.Vec{X: 1})
	if math.Abs(p.X) > tol || math.Abs(p.Y-6) > tol {
		t.Errorf("rotate·translate applied to (1,0,0) = %v, want (0,6,0)", p)
	}
}

func TestComposeIsAssociative(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	a, b, c := randomTransform(rng), randomTransform(rng), randomTransform(rng)
	left := Compose(Compose(a, b), c)
	right := Compose(a, Compose(b, c))
	if !left.ApproxEqual(right, 1e-9) {
		t.Errorf("(ab)c = %v, a(bc) = %v", left, right)
	}
}

func TestApplyMatchesApplyPoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	tr := randomTransform(rng)
	points := make([]r3.Vec, 50)
	for i := range points {
		points[i] = r3.Vec{X: rng.Float64() * 10, Y: rng.Float64() * 10, Z: rng.Float64() * 10}
	}
	orig := append([]r3.Vec(nil), points...)

	got := Apply(tr, points)
	if len(got) != len(points) {
		t.Fatalf("Apply returned %d points, want %d", len(got), len(points))
	}
	for i := range points {
		want := tr.ApplyPoint(points[i])
		if r3.Norm(r3.Sub(got[i], want)) > 1e-9 {
			t.Errorf("point %d: Apply=%v ApplyPoint=%v", i, got[i], want)
		}
		if points[i] != orig[i] {
			t.Errorf("Apply mutated input point %d", i)
		}
	}
}

func TestApplyEmpty(t *testing.T) {
	if got := Apply(Identity(), nil); len(got) != 0 {
		t.Errorf("expected empty output, got %d points", len(got))
	}
}

func TestFromAxes(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		cols    int
		values  []float64
		wantErr error
	}{
		{"3x3 axis remap", 3, 3, []float64{0, -1, 0, 0, 0, -1, 1, 0, 0}, nil},
		{"3x4 with translation", 3, 4, []float64{1, 0, 0, 1, 0, 1, 0, 2, 0, 0, 1, 3}, nil},
		{"4x4 rejected", 4, 4, make([]float64, 16), ErrUnsupportedShape},
		{"2x3 rejected", 2, 3, make([]float64, 6), ErrUnsupportedShape},
		{"short data", 3, 3, []float64{1, 0, 0}, ErrUnsupportedShape},
		{"scaling is not rigid", 3, 3, []float64{2, 0, 0, 0, 2, 0, 0, 0, 2}, ErrNotRigid},
		{"reflection is not rigid", 3, 3, []float64{-1, 0, 0, 0, 1, 0, 0, 0, 1}, ErrNotRigid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := FromAxes(tt.rows, tt.cols, tt.values)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for r := 0; r < 3; r++ {
				for c := 0; c < tt.cols; c++ {
					if tr.At(r, c) != tt.values[r*tt.cols+c] {
						t.Errorf("At(%d,%d) = %v, want %v", r, c, tr.At(r, c), tt.values[r*tt.cols+c])
					}
				}
			}
			if tr.At(3, 3) != 1 || tr.At(3, 0) != 0 {
				t.Errorf("last row not homogeneous: %v", tr)
			}
		})
	}
}

func TestNewTransformRejectsBadInput(t *testing.T) {
	if _, err := NewTransform(make([]float64, 12)); !errors.Is(err, ErrUnsupportedShape) {
		t.Errorf("12 values: err = %v, want ErrUnsupportedShape", err)
	}
	bad := Identity().Values()
	bad[12] = 1
	if _, err := NewTransform(bad[:]); !errors.Is(err, ErrNotRigid) {
		t.Errorf("bad last row: err = %v, want ErrNotRigid", err)
	}
	id := Identity().Values()
	if _, err := NewTransform(id[:]); err != nil {
		t.Errorf("identity rejected: %v", err)
	}
}

func TestFromEulerIsRigid(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 8))
	for i := 0; i < 50; i++ {
		tr := randomTransform(rng)
		if !IsRigid(tr.Values()) {
			t.Fatalf("FromEuler produced non-rigid matrix %v", tr)
		}
	}
}

func TestFromEulerYaw(t *testing.T) {
	tr := FromEuler(0, 0, math.Pi/2, r3.Vec{X: 1, Y: 2, Z: 3})
	p := tr.ApplyPoint(r3.Vec{X: 1})
	want := r3.Vec{X: 1, Y: 3, Z: 3}
	if r3.Norm(r3.Sub(p, want)) > tol {
		t.Errorf("got %v, want %v", p, want)
	}
	if math.Abs(tr.Yaw()-math.Pi/2) > tol {
		t.Errorf("Yaw() = %v, want π/2", tr.Yaw())
	}
}

func TestSphericalToCartesian(t *testing.T) {
	tests := []struct {
		name          string
		rng, az, incl float64
		want          r3.Vec
	}{
		{"forward", 10, 0, 0, r3.Vec{X: 10}},
		{"left", 5, math.Pi / 2, 0, r3.Vec{Y: 5}},
		{"up", 2, 0, math.Pi / 2, r3.Vec{Z: 2}},
		{"behind", 3, math.Pi, 0, r3.Vec{X: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SphericalToCartesian(tt.rng, tt.az, tt.incl)
			if r3.Norm(r3.Sub(got, tt.want)) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
