// Package lina provides the small dense vector/matrix kernel the set
// representations and propagators are built on. Everything is value
// semantics: operations allocate fresh results and never mutate inputs.
package lina

import (
	"errors"
	"fmt"
	"math"
)

// ErrExpDiverged indicates the truncated Taylor series of the matrix
// exponential has no convergent tail bound at the requested order.
var ErrExpDiverged = errors.New("lina: matrix exponential series not convergent at requested order")

type Vector []float64

func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) Add(other Vector) Vector {
	r := make(Vector, len(v))
	for i := range v {
		r[i] = v[i] + other[i]
	}
	return r
}

func (v Vector) Sub(other Vector) Vector {
	r := make(Vector, len(v))
	for i := range v {
		r[i] = v[i] - other[i]
	}
	return r
}

func (v Vector) Scale(factor float64) Vector {
	r := make(Vector, len(v))
	for i := range v {
		r[i] = v[i] * factor
	}
	return r
}

func (v Vector) Dot(other Vector) float64 {
	sum := 0.0
	for i := range v {
		sum += v[i] * other[i]
	}
	return sum
}

func (v Vector) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// InfNorm returns the maximum absolute component.
func (v Vector) InfNorm() float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

func (v Vector) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Ones returns a vector of n ones.
func Ones(n int) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

// Matrix is a dense row-major matrix.
type Matrix struct {
	Rows, Cols int
	Data       []float64
}

func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// MatrixFrom builds a matrix from row slices. Rows must have equal length.
func MatrixFrom(rows [][]float64) Matrix {
	r := len(rows)
	if r == 0 {
		return Matrix{}
	}
	c := len(rows[0])
	m := NewMatrix(r, c)
	for i, row := range rows {
		copy(m.Data[i*c:(i+1)*c], row)
	}
	return m
}

func Identity(n int) Matrix {
	m := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		m.Data[i*n+i] = 1
	}
	return m
}

func (m Matrix) At(i, j int) float64 { return m.Data[i*m.Cols+j] }

func (m Matrix) Set(i, j int, v float64) { m.Data[i*m.Cols+j] = v }

func (m Matrix) Clone() Matrix {
	c := Matrix{Rows: m.Rows, Cols: m.Cols, Data: make([]float64, len(m.Data))}
	copy(c.Data, m.Data)
	return c
}

func (m Matrix) MulVec(v Vector) Vector {
	r := make(Vector, m.Rows)
	for i := 0; i < m.Rows; i++ {
		sum := 0.0
		for j := 0; j < m.Cols; j++ {
			sum += m.Data[i*m.Cols+j] * v[j]
		}
		r[i] = sum
	}
	return r
}

func (m Matrix) Mul(other Matrix) Matrix {
	r := NewMatrix(m.Rows, other.Cols)
	for i := 0; i < m.Rows; i++ {
		for k := 0; k < m.Cols; k++ {
			a := m.Data[i*m.Cols+k]
			if a == 0 {
				continue
			}
			for j := 0; j < other.Cols; j++ {
				r.Data[i*other.Cols+j] += a * other.Data[k*other.Cols+j]
			}
		}
	}
	return r
}

func (m Matrix) Add(other Matrix) Matrix {
	r := m.Clone()
	for i := range r.Data {
		r.Data[i] += other.Data[i]
	}
	return r
}

func (m Matrix) Scale(factor float64) Matrix {
	r := m.Clone()
	for i := range r.Data {
		r.Data[i] *= factor
	}
	return r
}

func (m Matrix) Transpose() Matrix {
	r := NewMatrix(m.Cols, m.Rows)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			r.Data[j*m.Rows+i] = m.Data[i*m.Cols+j]
		}
	}
	return r
}

// InfNorm returns the maximum absolute row sum.
func (m Matrix) InfNorm() float64 {
	max := 0.0
	for i := 0; i < m.Rows; i++ {
		sum := 0.0
		for j := 0; j < m.Cols; j++ {
			sum += math.Abs(m.Data[i*m.Cols+j])
		}
		max = math.Max(max, sum)
	}
	return max
}

func (m Matrix) String() string {
	return fmt.Sprintf("Matrix(%dx%d)%v", m.Rows, m.Cols, m.Data)
}

// ExpTaylor computes the truncated Taylor series of e^{At} up to the given
// order, together with a rigorous bound on the infinity norm of the
// truncation remainder. The tail is bounded by the geometric series
//
//	sum_{k>order} (|At|^k / k!)  <=  (|At|^(order+1) / (order+1)!) * 1/(1-eps)
//
// with eps = |At|/(order+2), which requires eps < 1. When the bound does not
// converge at the requested order the call fails with ErrExpDiverged; the
// caller must not fall back to an unsound approximation.
func ExpTaylor(a Matrix, t float64, order int) (Matrix, float64, error) {
	n := a.Rows
	normAt := a.InfNorm() * math.Abs(t)
	eps := normAt / float64(order+2)
	if eps >= 1 {
		return Matrix{}, 0, fmt.Errorf("%w: ||At||=%.4g order=%d", ErrExpDiverged, normAt, order)
	}

	result := Identity(n)
	term := Identity(n)
	factorial := 1.0
	for k := 1; k <= order; k++ {
		term = term.Mul(a).Scale(t)
		factorial *= float64(k)
		result = result.Add(term.Scale(1 / factorial))
	}

	// |At|^(order+1) / (order+1)!
	tail := 1.0
	for k := 1; k <= order+1; k++ {
		tail *= normAt / float64(k)
	}
	remainder := tail / (1 - eps)

	return result, remainder, nil
}

// ExpIntegralTaylor computes the truncated series of the input transition
// matrix  int_0^t e^{As} ds = sum_k A^k t^(k+1)/(k+1)!  up to the given
// order plus the remainder bound on its tail. Same convergence condition as
// ExpTaylor.
func ExpIntegralTaylor(a Matrix, t float64, order int) (Matrix, float64, error) {
	n := a.Rows
	normAt := a.InfNorm() * math.Abs(t)
	eps := normAt / float64(order+2)
	if eps >= 1 {
		return Matrix{}, 0, fmt.Errorf("%w: ||At||=%.4g order=%d", ErrExpDiverged, normAt, order)
	}

	result := Identity(n).Scale(t)
	term := Identity(n)
	factorial := 1.0
	for k := 1; k <= order; k++ {
		term = term.Mul(a).Scale(t)
		factorial *= float64(k)
		result = result.Add(term.Scale(t / (factorial * float64(k+1))))
	}

	// t * |At|^(order+1) / (order+2)!
	tail := math.Abs(t)
	for k := 1; k <= order+1; k++ {
		tail *= normAt / float64(k)
	}
	remainder := tail / float64(order+2) / (1 - eps)

	return result, remainder, nil
}

// CurvatureBound bounds the deviation of e^{A tau}, tau in [0,t], from the
// chord between identity and e^{At}: sum_{k>=2} |At|^k/k! plus the series
// tail. Used to bloat the time-interval enclosure of a propagation step.
func CurvatureBound(a Matrix, t float64, order int) (float64, error) {
	normAt := a.InfNorm() * math.Abs(t)
	eps := normAt / float64(order+2)
	if eps >= 1 {
		return 0, fmt.Errorf("%w: ||At||=%.4g order=%d", ErrExpDiverged, normAt, order)
	}
	sum := 0.0
	term := 1.0
	for k := 1; k <= order; k++ {
		term *= normAt / float64(k)
		if k >= 2 {
			sum += term
		}
	}
	term *= normAt / float64(order+1)
	sum += term / (1 - eps)
	return sum, nil
}
