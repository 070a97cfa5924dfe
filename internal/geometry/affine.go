// Package geometry holds the coordinate transforms used to move landmarks
// between frame, working-frame and crop spaces.
package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Affine is a 2D affine transform stored row-major as
// x' = A[0]*x + A[1]*y + A[2], y' = A[3]*x + A[4]*y + A[5].
type Affine [6]float64

// Identity is the identity transform.
var Identity = Affine{1, 0, 0, 0, 1, 0}

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Affine {
	return Affine{1, 0, tx, 0, 1, ty}
}

// Scale returns a scale about the origin.
func Scale(sx, sy float64) Affine {
	return Affine{sx, 0, 0, 0, sy, 0}
}

// MirrorX mirrors normalized x about 0.5: x' = 1 - x.
var MirrorX = Affine{-1, 0, 1, 0, 1, 0}

// MirrorY mirrors normalized y about 0.5: y' = 1 - y.
var MirrorY = Affine{1, 0, 0, 0, -1, 1}

// Apply maps the point (x, y).
func (a Affine) Apply(x, y float64) (float64, float64) {
	return a[0]*x + a[1]*y + a[2], a[3]*x + a[4]*y + a[5]
}

// Then returns the transform that applies a first and b second.
func (a Affine) Then(b Affine) Affine {
	var m mat.Dense
	m.Mul(b.dense(), a.dense())
	return fromDense(&m)
}

// Inverse returns the inverse transform. It fails for singular transforms,
// which only arise from a zero-sized region.
func (a Affine) Inverse() (Affine, error) {
	if math.Abs(a.Det()) < 1e-12 {
		return Affine{}, fmt.Errorf("affine transform is singular")
	}
	var m mat.Dense
	if err := m.Inverse(a.dense()); err != nil {
		return Affine{}, fmt.Errorf("invert affine: %w", err)
	}
	return fromDense(&m), nil
}

// Det returns the determinant of the linear part.
func (a Affine) Det() float64 {
	return a[0]*a[4] - a[1]*a[3]
}

// LinearScale returns the mean linear scale factor, used to carry relative
// depth through the same transform as x and y.
func (a Affine) LinearScale() float64 {
	return math.Sqrt(math.Abs(a.Det()))
}

// Matrix4x4 expands the transform into a row-major 4x4 matrix acting on
// (x, y, z, 1) with z untouched, the layout renderers expect for crop
// matrices.
func (a Affine) Matrix4x4() [16]float64 {
	return [16]float64{
		a[0], a[1], 0, a[2],
		a[3], a[4], 0, a[5],
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// AffineFrom4x4 extracts the xy affine part of a row-major 4x4 matrix.
func AffineFrom4x4(m [16]float64) Affine {
	return Affine{m[0], m[1], m[3], m[4], m[5], m[7]}
}

func (a Affine) dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		a[0], a[1], a[2],
		a[3], a[4], a[5],
		0, 0, 1,
	})
}

func fromDense(m *mat.Dense) Affine {
	return Affine{
		m.At(0, 0), m.At(0, 1), m.At(0, 2),
		m.At(1, 0), m.At(1, 1), m.At(1, 2),
	}
}
