package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// MatrixValidationTolerance is the tolerance for checking rotation matrix validity.
const MatrixValidationTolerance = 0.01

var (
	// ErrUnsupportedShape is returned when a matrix cannot be embedded into a
	// homogeneous 4×4 transform.
	ErrUnsupportedShape = errors.New("unsupported matrix shape")
	// ErrNotRigid is returned when a matrix is not a proper rigid transform.
	ErrNotRigid = errors.New("matrix is not a rigid transform")
)

// Transform is a rigid 4×4 homogeneous pose, stored row-major.
//
// A Transform is never mutated; Compose and Invert return new values.
// The zero value is not a valid transform, use Identity.
type Transform struct {
	m [16]float64
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{m: [16]float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}}
}

// NewTransform builds a Transform from 16 row-major values, rejecting
// anything that is not a proper rigid transform.
func NewTransform(values []float64) (Transform, error) {
	if len(values) != 16 {
		return Transform{}, fmt.Errorf("%w: want 16 values, got %d", ErrUnsupportedShape, len(values))
	}
	var t Transform
	copy(t.m[:], values)
	if !IsRigid(t.m) {
		return Transform{}, fmt.Errorf("%w: %v", ErrNotRigid, values)
	}
	return t, nil
}

// FromAxes embeds a row-major 3×3 rotation or 3×4 [R|t] matrix into a 4×4
// homogeneous transform, with identity elsewhere.
func FromAxes(rows, cols int, values []float64) (Transform, error) {
	if rows != 3 || (cols != 3 && cols != 4) {
		return Transform{}, fmt.Errorf("%w: %dx%d", ErrUnsupportedShape, rows, cols)
	}
	if len(values) != rows*cols {
		return Transform{}, fmt.Errorf("%w: %dx%d needs %d values, got %d",
			ErrUnsupportedShape, rows, cols, rows*cols, len(values))
	}
	t := Identity()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			t.m[r*4+c] = values[r*cols+c]
		}
	}
	if !IsRigid(t.m) {
		return Transform{}, fmt.Errorf("%w: %v", ErrNotRigid, values)
	}
	return t, nil
}

// IsRigid reports whether a row-major 4×4 matrix is a rigid transform:
// orthonormal rotation block with det ≈ 1 and a last row of [0 0 0 1].
func IsRigid(T [16]float64) bool {
	if T[12] != 0 || T[13] != 0 || T[14] != 0 || math.Abs(T[15]-1.0) > 0.001 {
		return false
	}
	rot := mat.NewDense(3, 3, []float64{
		T[0], T[1], T[2],
		T[4], T[5], T[6],
		T[8], T[9], T[10],
	})
	if math.Abs(mat.Det(rot)-1.0) > MatrixValidationTolerance {
		return false
	}
	var rrt mat.Dense
	rrt.Mul(rot, rot.T())
	return mat.EqualApprox(&rrt, eye3, MatrixValidationTolerance)
}

var eye3 = mat.NewDiagDense(3, []float64{1, 1, 1})

// Compose returns a·b: the transform that applies b first, then a.
func Compose(a, b Transform) Transform {
	var out Transform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out.m[r*4+c] = a.m[r*4]*b.m[c] +
				a.m[r*4+1]*b.m[4+c] +
				a.m[r*4+2]*b.m[8+c] +
				a.m[r*4+3]*b.m[12+c]
		}
	}
	return out
}

// Invert returns the inverse of a rigid transform: [Rᵀ | -Rᵀt].
func Invert(t Transform) Transform {
	m := t.m
	inv := Identity()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			inv.m[r*4+c] = m[c*4+r]
		}
	}
	for r := 0; r < 3; r++ {
		inv.m[r*4+3] = -(inv.m[r*4]*m[3] + inv.m[r*4+1]*m[7] + inv.m[r*4+2]*m[11])
	}
	return inv
}

// Apply transforms an N×3 point set. The input is left untouched.
func Apply(t Transform, points []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(points))
	if len(points) == 0 {
		return out
	}

	homo := mat.NewDense(len(points), 4, nil)
	for i, p := range points {
		homo.SetRow(i, []float64{p.X, p.Y, p.Z, 1})
	}
	var moved mat.Dense
	moved.Mul(homo, t.Dense().T())

	for i := range out {
		out[i] = r3.Vec{X: moved.At(i, 0), Y: moved.At(i, 1), Z: moved.At(i, 2)}
	}
	return out
}

// ApplyPoint transforms a single point.
func (t Transform) ApplyPoint(p r3.Vec) r3.Vec {
	T := &t.m
	return r3.Vec{
		X: T[0]*p.X + T[1]*p.Y + T[2]*p.Z + T[3],
		Y: T[4]*p.X + T[5]*p.Y + T[6]*p.Z + T[7],
		Z: T[8]*p.X + T[9]*p.Y + T[10]*p.Z + T[11],
	}
}

// At returns the element at row r, column c.
func (t Transform) At(r, c int) float64 { return t.m[r*4+c] }

// Values returns the row-major 4×4 values.
func (t Transform) Values() [16]float64 { return t.m }

// Rows34 returns the top three rows flattened row-major, the [R|t] block.
func (t Transform) Rows34() [12]float64 {
	var out [12]float64
	copy(out[:], t.m[:12])
	return out
}

// Translation returns the translation component.
func (t Transform) Translation() r3.Vec {
	return r3.Vec{X: t.m[3], Y: t.m[7], Z: t.m[11]}
}

// Dense returns a fresh 4×4 gonum copy of the transform.
func (t Transform) Dense() *mat.Dense {
	data := make([]float64, 16)
	copy(data, t.m[:])
	return mat.NewDense(4, 4, data)
}

// ApproxEqual reports whether every element of t and o differs by at most tol.
func (t Transform) ApproxEqual(o Transform, tol float64) bool {
	for i := range t.m {
		if math.Abs(t.m[i]-o.m[i]) > tol {
			return false
		}
	}
	return true
}

// String renders the transform row by row.
func (t Transform) String() string {
	return fmt.Sprintf("[%v %v %v %v]", t.m[0:4], t.m[4:8], t.m[8:12], t.m[12:16])
}
