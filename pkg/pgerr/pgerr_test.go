package pgerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"powergrid/pkg/pgerr"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("singular pivot")
	err := pgerr.Wrap(pgerr.SparseMatrixError, cause, "factorizing node %d", 3)
	require.True(t, pgerr.Is(err, pgerr.SparseMatrixError))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "factorizing node 3")
}

func TestIsFalseForDifferentKind(t *testing.T) {
	err := pgerr.New(pgerr.IterationDiverge, "did not converge")
	require.False(t, pgerr.Is(err, pgerr.SparseMatrixError))
}

func TestIsUnwrapsChain(t *testing.T) {
	inner := pgerr.New(pgerr.IDNotFound, "missing id 5")
	outer := pgerr.Wrap(pgerr.BatchCalculationError, inner, "batch entry 0 failed")
	require.True(t, pgerr.Is(outer, pgerr.BatchCalculationError))
	require.True(t, pgerr.Is(outer, pgerr.IDNotFound))
}
