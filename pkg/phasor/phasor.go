// Package phasor implements the fixed-size complex/real vector and
// tensor algebra shared by every solver: balanced-phasor rotation,
// symmetric-component transforms, and the Kron
// reduction used to collapse a four-terminal (phase+neutral) tensor
// down to a three-phase one. Dense 3x3/4x4 linear algebra (tensor
// inverse, Kron reduction) is delegated to gonum/mat so the only
// hand-rolled numerics here are the small, domain-specific transforms
// (symmetric components, rotation) that have no generic library
// analogue. Per-unit conversion is not done here; the package holds no
// per-unit helpers.
package phasor

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// A is the 120-degree rotation phasor e^{j*2*pi/3}, and A2 its square
// (240 degrees). Both appear throughout the symmetric-component
// transform and balanced three-phase construction.
var (
	A  = cmplx.Rect(1, 2*math.Pi/3)
	A2 = cmplx.Rect(1, -2*math.Pi/3)
)

// Vec3 is a three-element complex vector: one entry per phase (a, b, c)
// or per sequence (zero, positive, negative), depending on context.
type Vec3 [3]complex128

// Balanced builds a Vec3 from a single positive-sequence phasor x,
// rotating by A and A2 for the b and c components - the standard
// construction of a symmetric three-phase phasor from one value.
func Balanced(x complex128) Vec3 {
	return Vec3{x, x * A2, x * A}
}

// Repeated builds a Vec3 by repeating x three times, without rotation -
// used when a per-unit scalar quantity (e.g. a shunt conductance) is
// applied identically to every phase.
func Repeated(x complex128) Vec3 { return Vec3{x, x, x} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }
func (v Vec3) Scale(s complex128) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Mul is the element-wise (Hadamard) product, used for per-phase power
// S = U ⊙ conj(I).
func (v Vec3) Mul(o Vec3) Vec3 { return Vec3{v[0] * o[0], v[1] * o[1], v[2] * o[2]} }

func (v Vec3) Conj() Vec3 { return Vec3{cmplx.Conj(v[0]), cmplx.Conj(v[1]), cmplx.Conj(v[2])} }

// Abs returns the per-component magnitude.
func (v Vec3) Abs() [3]float64 { return [3]float64{cmplx.Abs(v[0]), cmplx.Abs(v[1]), cmplx.Abs(v[2])} }

// Arg returns the per-component phase angle, in radians.
func (v Vec3) Arg() [3]float64 { return [3]float64{cmplx.Phase(v[0]), cmplx.Phase(v[1]), cmplx.Phase(v[2])} }

// IsNaN is true iff any component is NaN.
func (v Vec3) IsNaN() bool {
	for _, c := range v {
		if math.IsNaN(real(c)) || math.IsNaN(imag(c)) {
			return true
		}
	}
	return false
}

// Tensor3 is a 3x3 complex tensor, row-major: Tensor3[row][col].
type Tensor3 [3][3]complex128

// Diag3 builds a diagonal tensor from a per-phase scalar - the
// phase-domain shape of a balanced admittance with no mutual coupling.
func Diag3(x complex128) Tensor3 {
	var t Tensor3
	t[0][0], t[1][1], t[2][2] = x, x, x
	return t
}

// SelfMutual3 builds a symmetric self/mutual tensor: diagonal s,
// off-diagonal m - the shape produced by a balanced three-phase line
// with equal self and mutual series impedance.
func SelfMutual3(s, m complex128) Tensor3 {
	return Tensor3{
		{s, m, m},
		{m, s, m},
		{m, m, s},
	}
}

func (t Tensor3) Add(o Tensor3) Tensor3 {
	var r Tensor3
	for i := range 3 {
		for j := range 3 {
			r[i][j] = t[i][j] + o[i][j]
		}
	}
	return r
}

func (t Tensor3) Scale(s complex128) Tensor3 {
	var r Tensor3
	for i := range 3 {
		for j := range 3 {
			r[i][j] = t[i][j] * s
		}
	}
	return r
}

// DotVec computes t*v (matrix-vector product).
func (t Tensor3) DotVec(v Vec3) Vec3 {
	var r Vec3
	for i := range 3 {
		var acc complex128
		for j := range 3 {
			acc += t[i][j] * v[j]
		}
		r[i] = acc
	}
	return r
}

// Hermitian returns the conjugate transpose.
func (t Tensor3) Hermitian() Tensor3 {
	var r Tensor3
	for i := range 3 {
		for j := range 3 {
			r[j][i] = cmplx.Conj(t[i][j])
		}
	}
	return r
}

func toGonum(t Tensor3) *mat.CDense {
	m := mat.NewCDense(3, 3, nil)
	for i := range 3 {
		for j := range 3 {
			m.Set(i, j, t[i][j])
		}
	}
	return m
}

func fromGonum(m *mat.CDense) Tensor3 {
	var t Tensor3
	for i := range 3 {
		for j := range 3 {
			t[i][j] = m.At(i, j)
		}
	}
	return t
}

// Inverse computes the 3x3 tensor inverse via gonum's dense complex
// LU factorization.
func (t Tensor3) Inverse() (Tensor3, error) {
	src := toGonum(t)
	var dst mat.CDense
	err := dst.Inverse(src)
	if err != nil {
		return Tensor3{}, err
	}
	return fromGonum(&dst), nil
}

// Tensor4 is a 4x4 complex tensor (three phases plus neutral), used
// only as the intermediate shape for Kron reduction of asymmetric line
// parameters.
type Tensor4 [4][4]complex128

// KronReduceNeutral eliminates the fourth (neutral) row/column of a
// 4x4 phase+neutral tensor via the Schur complement:
//
//	Y_abc = Y_aa - Y_an * Y_nn^-1 * Y_na
func (t Tensor4) KronReduceNeutral() (Tensor3, error) {
	yaa := mat.NewCDense(3, 3, nil)
	yan := mat.NewCDense(3, 1, nil)
	yna := mat.NewCDense(1, 3, nil)
	ynn := mat.NewCDense(1, 1, nil)

	for i := range 3 {
		for j := range 3 {
			yaa.Set(i, j, t[i][j])
		}
		yan.Set(i, 0, t[i][3])
		yna.Set(0, i, t[3][i])
	}
	ynn.Set(0, 0, t[3][3])

	var ynnInv mat.CDense
	if err := ynnInv.Inverse(ynn); err != nil {
		return Tensor3{}, err
	}

	var tmp, corr mat.CDense
	tmp.Mul(yan, &ynnInv)
	corr.Mul(&tmp, yna)

	var result mat.CDense
	result.Sub(yaa, &corr)
	return fromGonum(&result), nil
}

// Block is a dim*dim complex admittance block, stored row-major flat.
// dim is 1 for a symmetric (single-phase-equivalent) quantity, 3 for
// an asymmetric (per-phase) one. Block is the shape that ybus and
// sparselu consume: every branch/shunt/Jacobian contribution is a
// Block, and sparselu ultimately "stamps" its dim*dim entries as
// individual scalar entries into a flat scalar sparse matrix (see
// ybus's package doc for why).
type Block []complex128

// NewBlock allocates a zero Block of the given dimension.
func NewBlock(dim int) Block { return make(Block, dim*dim) }

// ScalarBlock builds a dim=1 Block from a single complex value.
func ScalarBlock(x complex128) Block { return Block{x} }

// At/Set index a Block as if it were a dim x dim matrix.
func (b Block) At(dim, i, j int) complex128 { return b[i*dim+j] }
func (b Block) Set(dim, i, j int, v complex128) {
	b[i*dim+j] = v
}

func (b Block) Add(o Block) Block {
	r := make(Block, len(b))
	for i := range b {
		r[i] = b[i] + o[i]
	}
	return r
}

func (b Block) Scale(s complex128) Block {
	r := make(Block, len(b))
	for i, v := range b {
		r[i] = v * s
	}
	return r
}

// Block converts a Tensor3 to its flat dim=3 Block representation.
func (t Tensor3) Block() Block {
	b := make(Block, 9)
	for i := range 3 {
		for j := range 3 {
			b[i*3+j] = t[i][j]
		}
	}
	return b
}

// symTransform is the symmetric-component transform matrix A (not to
// be confused with the scalar rotation phasor A above): maps
// sequence components [zero, positive, negative] to phase components
// [a, b, c].
var symTransform = Tensor3{
	{1, 1, 1},
	{1, A2, A},
	{1, A, A2},
}

// SeqToPhase maps a sequence-domain vector (zero, positive, negative)
// to the phase-domain vector (a, b, c).
func SeqToPhase(seq Vec3) Vec3 { return symTransform.DotVec(seq) }

// PhaseToSeq maps a phase-domain vector (a, b, c) to the sequence
// domain (zero, positive, negative): A^-1 = (1/3) * conj(A)^T for this
// particular unitary-up-to-scale transform.
func PhaseToSeq(phase Vec3) Vec3 {
	inv := Tensor3{
		{1, 1, 1},
		{1, A, A2},
		{1, A2, A},
	}.Scale(1.0 / 3.0)
	return inv.DotVec(phase)
}
