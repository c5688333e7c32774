package gemm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cacheHPKey = "Y96_X64_y6_x4_U16_P1_GA2_APLU0_BPLU0_PU1_LIW1_MIW1_ICE5_NAW64_UFO0"

func TestDeriveability_CacheKernelOnItsGeometry(t *testing.T) {
	// GIVEN the deepbench geometry and its cached kernel
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_ws0_f32")
	hp := MustParseHyperParams(cacheHPKey)

	// THEN the pair is deriveable
	ok, reason := Deriveability(&g, hp, Constraints{})
	assert.True(t, ok, "unexpected rejection: %s", reason)
}

func TestDeriveability_MacroTileTooTall(t *testing.T) {
	// GIVEN m = 1024 and a hand-built kernel with macro_tile_length A = 2048
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	hp := MustParseHyperParams("Y2048_X64_y8_x4_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0")

	ok, reason := Deriveability(&g, hp, Constraints{})
	assert.False(t, ok)
	assert.Contains(t, reason, "macro_tile_length")
}

func TestDeriveability_UFONeedsLargeK(t *testing.T) {
	// GIVEN UFO = 1 with unroll 16 and k = 16
	g, err := NewGeometry(true, false, false, false, 64, 16, 64, 64, 64, 16, nil, F32)
	require.NoError(t, err)
	hp := MustParseHyperParams("Y8_X8_y1_x1_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO1")

	ok, reason := Deriveability(&g, hp, Constraints{})
	assert.False(t, ok)
	assert.Contains(t, reason, "UNR must be greater than k")
}

func TestDeriveability_Deterministic(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	hp := MustParseHyperParams(cacheHPKey)

	ok1, reason1 := Deriveability(&g, hp, Constraints{})
	ok2, reason2 := Deriveability(&g, hp, Constraints{})
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, reason1, reason2)
}

func TestDeriveability_GridFactorisation(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	// micro tile 5 does not divide macro tile 96
	hp := MustParseHyperParams("Y96_X64_y5_x4_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0")

	ok, reason := Deriveability(&g, hp, Constraints{})
	assert.False(t, ok)
	assert.Contains(t, reason, "factorisation")
}

func TestDeriveability_Divisibility(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	// 256 work items per workgroup, n_elements_in_unroll of A = 96*10 = 960,
	// and 960 is not a multiple of 256
	hp := MustParseHyperParams("Y96_X64_y6_x4_U10_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0")

	ok, reason := Deriveability(&g, hp, Constraints{})
	assert.False(t, ok)
	assert.Contains(t, reason, "not a factor")
}

func TestDeriveability_InsufficientWorkspace(t *testing.T) {
	// GIVEN a COPY-mode constraint on A, which needs 67*64 = 4288 workspace
	// elements, and a workspace of only 100
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m64_n64_k64_lda64_ldb64_ldc64_ws100_f32")
	hp := MustParseHyperParams("Y8_X8_y1_x1_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0")
	wos, err := ParseConstraints("A_WOS1")
	require.NoError(t, err)

	ok, reason := Deriveability(&g, hp, wos)
	assert.False(t, ok)
	assert.Contains(t, reason, "workspace")
}

func TestNewDerivedParams_FullBuild(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	hp := MustParseHyperParams(cacheHPKey)

	dp, err := NewDerivedParams(&g, hp, Constraints{})
	require.NoError(t, err)

	a, b := dp.At(MatA), dp.At(MatB)
	assert.Equal(t, uint32(96), a.MacroTileLength)
	assert.Equal(t, uint32(64), b.MacroTileLength)
	assert.Equal(t, uint32(256), dp.MainNWorkItemsPerWorkgroup)

	// 1024 = 10*96 + 64 : 11 groups of A, final tile preshifted to 64
	assert.Equal(t, uint32(11), a.NGroups)
	assert.Equal(t, uint32(64), a.PreshiftFinalTile)
	// 128 = 2*64 exactly
	assert.Equal(t, uint32(2), b.NGroups)
	assert.Equal(t, uint32(64), b.PreshiftFinalTile)

	// ICE * ceil(m/96) * ceil(n/64)
	assert.Equal(t, uint64(5*11*2), dp.MainNWorkGroups)
	assert.Equal(t, uint64(5*11*2*256), dp.MainGlobalWorkSize)

	// m is not divisible by 96, so the edge trick is on
	assert.Equal(t, uint32(1), dp.MainUseEdgeTrick)
	// k = 3072 is divisible by 16 and UFO is off
	assert.Equal(t, uint32(0), dp.MainFinalFractionalUnroll)

	// split on k
	assert.Equal(t, uint32(1), dp.MainSplitOnK)
	assert.Equal(t, uint32(0), dp.MainDoesBetaCInc)
	assert.Equal(t, "uint", dp.Infa)
	assert.Equal(t, "atomic_cmpxchg", dp.Fati)

	// load volumes: n_elements_in_unroll / work items
	assert.Equal(t, uint32(96*16/256), a.MainNElementsToLoadPerWorkItem)
	assert.Equal(t, uint32(64*16/256), b.MainNElementsToLoadPerWorkItem)
}

func TestNewDerivedParams_F64Atomics(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f64")
	hp := MustParseHyperParams(cacheHPKey)

	dp, err := NewDerivedParams(&g, hp, Constraints{})
	require.NoError(t, err)
	assert.Equal(t, "ulong", dp.Infa)
	assert.Equal(t, "atom_cmpxchg", dp.Fati)
	assert.Equal(t, "double", dp.TFloat)
}

func TestNewDerivedParams_NoAtomicsWithoutSplit(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	hp := MustParseHyperParams(cacheHPKey)
	hp.NWorkItemsPerCElm = 1

	dp, err := NewDerivedParams(&g, hp, Constraints{})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), dp.MainSplitOnK)
	assert.Equal(t, uint32(1), dp.MainDoesBetaCInc)
	assert.True(t, strings.Contains(dp.Infa, "should not be using atomics"))
}

func TestDerivedParams_IntegerWidthTags(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	dp, err := NewDerivedParams(&g, MustParseHyperParams(cacheHPKey), Constraints{})
	require.NoError(t, err)

	// conservative u64 everywhere; the narrowing path stays gated off
	for _, tag := range dp.TInts {
		assert.Equal(t, "size_t", tag)
	}
	assert.Equal(t, "size_t", dp.TIntK)
}

func TestDerivedParams_StrideSelector(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	dp, err := NewDerivedParams(&g, MustParseHyperParams(cacheHPKey), Constraints{})
	require.NoError(t, err)

	// tA = colMaj : the coalesced dim of A runs parallel to k
	require.True(t, g.CoalIsPllK(MatA))
	assert.Equal(t, uint32(1), dp.Stride(MatA, true, false, ScratchUnused))
	assert.Equal(t, uint32(3072), dp.Stride(MatA, false, false, ScratchUnused))

	// tB != colMaj with B n x k : coal of B also runs parallel to k
	require.True(t, g.CoalIsPllK(MatB))
	assert.Equal(t, uint32(1), dp.Stride(MatB, true, false, ScratchUnused))
	assert.Equal(t, uint32(3072), dp.Stride(MatB, false, false, ScratchUnused))

	// NFORM strides depend only on the tile decomposition
	assert.Equal(t, dp.At(MatA).MacroTileLength, dp.Stride(MatA, true, false, ScratchNForm))
	assert.Equal(t, uint32(1), dp.Stride(MatA, false, false, ScratchNForm))
	assert.Equal(t, g.K, dp.Stride(MatA, false, true, ScratchNForm))
}

func TestDerivedParams_CopyWorkspaceQuantities(t *testing.T) {
	// GIVEN the deepbench geometry with a large workspace and both inputs in COPY mode
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_ws7000000_f32")
	wos, err := ParseConstraints("A_WOS1__B_WOS1")
	require.NoError(t, err)

	dp, err := NewDerivedParams(&g, MustParseHyperParams(cacheHPKey), wos)
	require.NoError(t, err)

	a, b := dp.At(MatA), dp.At(MatB)

	// coal(A) = k = 3072; rounded to 16*192 + 3
	assert.Equal(t, uint32(3072), a.CW1SmallestPossibleLDX)
	assert.Equal(t, uint32(3075), a.CW1TargetLDX)
	assert.Equal(t, uint64(3075*1024), a.CWNElements)

	// coal(B) = k = 3072; rounded to 16*192 + 6
	assert.Equal(t, uint32(3078), b.CW1TargetLDX)
	assert.Equal(t, uint64(3078*128), b.CWNElements)

	// B's workspace lands after A's
	assert.Equal(t, uint64(0), a.CWGlobalOffset)
	assert.Equal(t, a.CWNElements, b.CWGlobalOffset)

	// COPY strides walk the padded leading dimension
	assert.Equal(t, uint32(3075), dp.Stride(MatA, false, false, ScratchCopy))
	assert.Equal(t, uint32(1), dp.Stride(MatA, true, false, ScratchCopy))
}

func TestDerivedParams_GA3SuperColumns(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n1000_k3072_lda3072_ldb3072_ldc1024_f32")
	hp := MustParseHyperParams("Y64_X64_y4_x4_U16_P1_GA3_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0")

	dp, err := NewDerivedParams(&g, hp, Constraints{})
	require.NoError(t, err)

	// floor(sqrt(64)) with no k-split
	assert.Equal(t, uint32(8), dp.GA3SuperColumnWidth)
	// ceil(1000/64) = 16 groups of B; 16 mod 8 = 0
	assert.Equal(t, uint32(16), dp.At(MatB).NGroups)
	assert.Equal(t, uint32(0), dp.GA3LastSuperColumnWidth)

	// with a k-split the column width shrinks
	hp.NWorkItemsPerCElm = 4
	dp, err = NewDerivedParams(&g, hp, Constraints{})
	require.NoError(t, err)
	assert.Equal(t, uint32(4), dp.GA3SuperColumnWidth)
}
