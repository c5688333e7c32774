package gemm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetABC_SizesAndTails(t *testing.T) {
	g := mustGeometry(t, "tC0_tA0_tB0_colMaj1_m64_n32_k48_lda64_ldb48_ldc64_f32")
	toff := PaddingOffsets(0)
	rng := NewRandSource(1).Fill()

	a, b, c, err := SetABC(&g, &toff, rng)
	require.NoError(t, err)

	assert.Equal(t, int(MatSize(&g, &toff, MatA)), len(a))
	assert.Equal(t, int(MatSize(&g, &toff, MatB)), len(b))
	assert.Equal(t, int(MatSize(&g, &toff, MatC)), len(c))

	// the body is small, the tail is huge
	for _, v := range a[:len(a)-int(toff.TailA)] {
		assert.LessOrEqual(t, math.Abs(v), 0.5)
	}
	tailBig := false
	for _, v := range a[len(a)-int(toff.TailA):] {
		if math.Abs(v) > 1e6 {
			tailBig = true
		}
	}
	assert.True(t, tailBig, "tail values must be loud")
}

func TestSetABCW_WorkspaceSizing(t *testing.T) {
	g := mustGeometry(t, "tC0_tA0_tB0_colMaj1_m64_n32_k48_lda64_ldb48_ldc64_ws1000_f32")
	toff := PaddingOffsets(1)
	rng := NewRandSource(1).Fill()

	_, _, _, w, err := SetABCW(&g, &toff, rng)
	require.NoError(t, err)
	assert.Equal(t, 1000+101+103, len(w))
}

func TestSetABC_RejectsHugeProblems(t *testing.T) {
	g, err := NewGeometry(true, false, false, false, 100000, 100000, 100000, 100000, 100000, 100000, nil, F32)
	require.NoError(t, err)
	toff := ZeroOffsets(0)
	rng := NewRandSource(1).Fill()

	_, _, _, err = SetABC(&g, &toff, rng)
	assert.Error(t, err)
}
