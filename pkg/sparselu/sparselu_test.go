package sparselu_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"powergrid/pkg/sparselu"
)

func TestSolveDiagonalSystem(t *testing.T) {
	mat, err := sparselu.New(2)
	require.NoError(t, err)
	defer mat.Destroy()

	mat.AddAt(0, 0, complex(2, 0))
	mat.AddAt(1, 1, complex(4, 0))

	require.NoError(t, mat.Factor())
	x, err := mat.Solve([]complex128{4, 8})
	require.NoError(t, err)
	require.InDelta(t, 2.0, real(x[0]), 1e-9)
	require.InDelta(t, 2.0, real(x[1]), 1e-9)
}

func TestClearResetsStamps(t *testing.T) {
	mat, err := sparselu.New(1)
	require.NoError(t, err)
	defer mat.Destroy()

	mat.AddAt(0, 0, complex(5, 0))
	mat.Clear()
	mat.AddAt(0, 0, complex(1, 0))

	require.NoError(t, mat.Factor())
	x, err := mat.Solve([]complex128{2})
	require.NoError(t, err)
	require.InDelta(t, 2.0, real(x[0]), 1e-9)
}

func TestFromCSR(t *testing.T) {
	rowPtr := []int{0, 2, 4}
	colIdx := []int{0, 1, 0, 1}
	values := []complex128{2, -1, -1, 2}
	mat, err := sparselu.FromCSR(2, rowPtr, colIdx, values)
	require.NoError(t, err)
	defer mat.Destroy()

	require.NoError(t, mat.Factor())
	x, err := mat.Solve([]complex128{1, 0})
	require.NoError(t, err)
	// Symmetric 2x2 [[2,-1],[-1,2]] * x = [1,0] -> x = [2/3, 1/3]
	require.InDelta(t, 2.0/3.0, real(x[0]), 1e-6)
	require.InDelta(t, 1.0/3.0, real(x[1]), 1e-6)
}
