package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemmtune/gemmtune/gemm"
)

const cacheHPKey = "Y96_X64_y6_x4_U16_P1_GA2_APLU0_BPLU0_PU1_LIW1_MIW1_ICE5_NAW64_UFO0"

func derive(t *testing.T, geometry, hp, constraints string) *gemm.DerivedParams {
	t.Helper()
	g, err := gemm.ParseGeometry(geometry)
	require.NoError(t, err)
	wos, err := gemm.ParseConstraints(constraints)
	require.NoError(t, err)
	dp, err := gemm.NewDerivedParams(&g, gemm.MustParseHyperParams(hp), wos)
	require.NoError(t, err)
	return dp
}

func TestMainKernel_SplitK_F32UsesUintCAS(t *testing.T) {
	dp := derive(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32", cacheHPKey, "")
	ks := MainKernel(dp)

	assert.Equal(t, "gemm_main", ks.Name)
	assert.Contains(t, ks.Source, "__kernel void gemm_main")
	assert.Contains(t, ks.Source, "barrier(CLK_LOCAL_MEM_FENCE)")
	assert.Contains(t, ks.Source, "#define TINTFLOAT uint\n")
	assert.Contains(t, ks.Source, "atomic_cmpxchg")
	assert.NotContains(t, ks.Source, "atom_cmpxchg(")

	assert.Equal(t, uint64(256), ks.LocalWorkSize)
	assert.Equal(t, dp.MainGlobalWorkSize, ks.GlobalWorkSize)
}

func TestMainKernel_SplitK_F64UsesUlongCAS(t *testing.T) {
	dp := derive(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f64", cacheHPKey, "")
	ks := MainKernel(dp)

	assert.Contains(t, ks.Source, "#define TINTFLOAT ulong\n")
	assert.Contains(t, ks.Source, "atom_cmpxchg")
	assert.Contains(t, ks.Source, "#define TFLOAT double\n")
}

func TestMainKernel_NoSplitNoAtomics(t *testing.T) {
	hp := gemm.MustParseHyperParams(cacheHPKey)
	hp.NWorkItemsPerCElm = 1
	dp := derive(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32", hp.String(), "")
	ks := MainKernel(dp)

	assert.NotContains(t, ks.Source, "cmpxchg")
	assert.Contains(t, ks.Source, "beta*c")
}

func TestMainKernel_EdgeTrickGuard(t *testing.T) {
	// m = 1024 is not a multiple of 96, so stores must be guarded
	dp := derive(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32", cacheHPKey, "")
	ks := MainKernel(dp)
	assert.Contains(t, ks.Source, "if (row < __M__ && col < __N__)")

	// 96 | 960 and 64 | 128 : no guard needed
	dp = derive(t, "tC0_tA1_tB0_colMaj1_m960_n128_k3072_lda3072_ldb3072_ldc960_f32", cacheHPKey, "")
	ks = MainKernel(dp)
	assert.NotContains(t, ks.Source, "if (row < __M__")
}

func TestMainKernel_UnrollPragma(t *testing.T) {
	dp := derive(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32", cacheHPKey, "")
	assert.Contains(t, MainKernel(dp).Source, "#pragma unroll")

	hp := gemm.MustParseHyperParams(cacheHPKey)
	hp.UnrollPragma = 0
	dp = derive(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32", hp.String(), "")
	assert.NotContains(t, MainKernel(dp).Source, "#pragma unroll")
}

func TestCopyKernel_LaunchGeometry(t *testing.T) {
	dp := derive(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_ws7000000_f32",
		cacheHPKey, "A_WOS1__B_WOS1")

	ka := CopyKernel(dp, gemm.MatA)
	assert.Equal(t, "gemm_copy_a", ka.Name)
	assert.Contains(t, ka.Source, "__kernel void gemm_copy_a")
	assert.Contains(t, ka.Source, "#define LDW 3075\n")
	assert.Equal(t, uint64(256), ka.LocalWorkSize)
	assert.Equal(t, uint32(2), ka.WorkPerThread)
	// 3075*1024 elements / (256 work items * 2 per thread) = 6150 groups
	assert.Equal(t, uint64(6150*256), ka.GlobalWorkSize)

	kb := CopyKernel(dp, gemm.MatB)
	assert.Contains(t, kb.Source, "#define GLOBAL_OFFSET_W 3148800\n")
}

func TestCopyKernel_NFormVariant(t *testing.T) {
	// macro tile 8, unroll 16, k = 64 : cw2 quantities are small and exact
	dp := derive(t, "tC0_tA1_tB0_colMaj1_m64_n64_k64_lda64_ldb64_ldc64_ws100000_f32",
		"Y8_X8_y1_x1_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0", "A_WOS2")

	ka := CopyKernel(dp, gemm.MatA)
	assert.Equal(t, "gemm_nform_a", ka.Name)
	assert.Contains(t, ka.Source, "#define MACRO_TILE_LENGTH 8\n")
	assert.Contains(t, ka.Source, "__kernel void gemm_nform_a")
}

func TestBetaCKernel(t *testing.T) {
	dp := derive(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32", cacheHPKey, "")
	ks := BetaCKernel(dp)

	assert.Equal(t, "gemm_betac", ks.Name)
	assert.Contains(t, ks.Source, "__kernel void gemm_betac")
	assert.Contains(t, ks.Source, "*= beta")
	assert.Equal(t, uint64(256), ks.LocalWorkSize)
	assert.Equal(t, uint32(2), ks.WorkPerThread)
}

func TestAll_KernelSetAndOrder(t *testing.T) {
	// split-k without workspace : betac then main
	dp := derive(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32", cacheHPKey, "")
	names := kernelNames(All(dp))
	assert.Equal(t, []string{"gemm_betac", "gemm_main"}, names)

	// no split, no workspace : just main
	hp := gemm.MustParseHyperParams(cacheHPKey)
	hp.NWorkItemsPerCElm = 1
	dp = derive(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32", hp.String(), "")
	assert.Equal(t, []string{"gemm_main"}, kernelNames(All(dp)))

	// both inputs copied : copies first
	dp = derive(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_ws7000000_f32",
		cacheHPKey, "A_WOS1__B_WOS1")
	assert.Equal(t, []string{"gemm_copy_a", "gemm_copy_b", "gemm_betac", "gemm_main"}, kernelNames(All(dp)))
}

func TestMainKernel_WorkspaceReadsSkipRawPointer(t *testing.T) {
	dp := derive(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_ws7000000_f32",
		cacheHPKey, "A_WOS1")
	src := MainKernel(dp).Source

	// a arrives through the workspace pointer, b through its raw buffer
	assert.NotContains(t, src, "restrict a, const TINTA a_offset")
	assert.Contains(t, src, "restrict b, const TINTB b_offset")
	assert.Contains(t, src, "restrict w")
	// the padded leading dimension replaces lda
	assert.Contains(t, src, "#define LDA 3075\n")
}

func kernelNames(kss []gemm.KernelString) []string {
	names := make([]string, 0, len(kss))
	for _, ks := range kss {
		names = append(names, ks.Name)
	}
	return names
}
