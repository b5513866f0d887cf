package phasor_test

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/require"

	"powergrid/pkg/phasor"
)

func TestBalancedIsBalanced(t *testing.T) {
	v := phasor.Balanced(complex(1, 0))
	require.InDelta(t, 1.0, cmplx.Abs(v[0]), 1e-9)
	require.InDelta(t, 1.0, cmplx.Abs(v[1]), 1e-9)
	require.InDelta(t, 1.0, cmplx.Abs(v[2]), 1e-9)
	require.InDelta(t, -2*3.14159265358979/3, cmplx.Phase(v[1]), 1e-6)
}

func TestSeqPhaseRoundTrip(t *testing.T) {
	seq := phasor.Vec3{complex(0.1, 0.05), complex(1, 0), complex(0.05, -0.02)}
	phase := phasor.SeqToPhase(seq)
	back := phasor.PhaseToSeq(phase)
	for i := 0; i < 3; i++ {
		require.InDelta(t, real(seq[i]), real(back[i]), 1e-9)
		require.InDelta(t, imag(seq[i]), imag(back[i]), 1e-9)
	}
}

func TestTensor3Inverse(t *testing.T) {
	self := complex(0.1, -1.0)
	mutual := complex(0.02, -0.2)
	tensor := phasor.SelfMutual3(self, mutual)
	inv, err := tensor.Inverse()
	require.NoError(t, err)

	identity := tensor.DotVec(inv.DotVec(phasor.Vec3{1, 0, 0}))
	require.InDelta(t, 1.0, real(identity[0]), 1e-6)
	require.InDelta(t, 0.0, real(identity[1]), 1e-6)
	require.InDelta(t, 0.0, real(identity[2]), 1e-6)
}

func TestBlockRoundTrip(t *testing.T) {
	tensor := phasor.SelfMutual3(complex(1, 2), complex(0.1, 0.2))
	block := tensor.Block()
	require.Len(t, block, 9)
	require.Equal(t, tensor[1][2], block.At(3, 1, 2))
}

func TestKronReduceNeutralMatchesDirectSchur(t *testing.T) {
	var tensor phasor.Tensor4
	for i := 0; i < 4; i++ {
		tensor[i][i] = complex(1, -1)
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if i != j {
				tensor[i][j] = complex(-0.1, 0.1)
			}
		}
	}
	reduced, err := tensor.KronReduceNeutral()
	require.NoError(t, err)
	// Coupling through the shared neutral subtracts Y_in*Y_nj/Y_nn from
	// every entry (the self term goes from 1-1j to 0.99-0.99j here).
	require.Greater(t, cmplx.Abs(reduced[0][0]), 0.0)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := tensor[i][j] - tensor[i][3]*tensor[3][j]/tensor[3][3]
			require.InDelta(t, real(want), real(reduced[i][j]), 1e-9)
			require.InDelta(t, imag(want), imag(reduced[i][j]), 1e-9)
		}
	}
}
