package gemm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGeometry(t *testing.T, s string) Geometry {
	t.Helper()
	g, err := ParseGeometry(s)
	require.NoError(t, err)
	return g
}

func TestGeometry_RoundTrip(t *testing.T) {
	// GIVEN the deepbench-style geometry from the cache
	g, err := NewGeometry(true, true, false, false, 3072, 3072, 1024, 1024, 128, 3072, nil, F32)
	require.NoError(t, err)

	// WHEN serialized
	s := g.String()

	// THEN the canonical form is stable and parses back to the same value
	want := "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32"
	assert.Equal(t, want, s)

	g2, err := ParseGeometry(s)
	require.NoError(t, err)
	assert.True(t, g.Equal(&g2))
}

func TestGeometry_RoundTrip_Workspace(t *testing.T) {
	g, err := NewGeometry(false, false, true, false, 700, 700, 600, 500, 600, 700, []uint32{100, 2000}, F64)
	require.NoError(t, err)

	s := g.String()
	g2, err := ParseGeometry(s)
	require.NoError(t, err)
	assert.True(t, g.Equal(&g2))
	// workspace sizes are kept sorted descending
	assert.Equal(t, []uint32{2000, 100}, g2.WSpaceSize)
}

func TestParseGeometry_BadStrings(t *testing.T) {
	base := "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32"

	cases := map[string]string{
		"unknown key":   base + "_zz3",
		"missing key":   "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_f32",
		"duplicate key": base + "_m1024",
		"no value":      base + "_lda",
		"bad f":         "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f16",
	}
	for name, s := range cases {
		_, err := ParseGeometry(s)
		if !errors.Is(err, ErrBadGeometryString) {
			t.Errorf("%s: got error %v, want ErrBadGeometryString", name, err)
		}
	}
}

func TestGeometry_CoalescenceIdentity(t *testing.T) {
	// For every (layout, transpose) combination, coal + uncoal covers the
	// matrix's two axes, and coal_is_pll_k agrees with the parity formula.
	m, n, k := uint32(100), uint32(200), uint32(400)
	for _, colMaj := range []bool{false, true} {
		for _, tA := range []bool{false, true} {
			for _, tB := range []bool{false, true} {
				for _, tC := range []bool{false, true} {
					g, err := NewGeometry(colMaj, tA, tB, tC, 1000, 1000, 1000, m, n, k, nil, F32)
					require.NoError(t, err)

					assert.Equal(t, m+k, g.Coal(MatA)+g.Uncoal(MatA))
					assert.Equal(t, k+n, g.Coal(MatB)+g.Uncoal(MatB))
					assert.Equal(t, m+n, g.Coal(MatC)+g.Uncoal(MatC))

					// coal(M) == k exactly when the coalesced dim runs parallel to k
					assert.Equal(t, g.Coal(MatA) == k, g.CoalIsPllK(MatA), "A colMaj=%v tA=%v", colMaj, tA)
					assert.Equal(t, g.Coal(MatB) == k, g.CoalIsPllK(MatB), "B colMaj=%v tB=%v", colMaj, tB)
				}
			}
		}
	}
}

func TestGeometry_LDConsistency(t *testing.T) {
	// GIVEN colMaj=false, tA=false : coal(A) = k
	// WHEN lda == coal(A), construction succeeds
	_, err := NewGeometry(false, false, false, false, 400, 200, 200, 100, 200, 400, nil, F32)
	assert.NoError(t, err)

	// WHEN lda < coal(A), construction fails with ErrInvalidGeometry
	_, err = NewGeometry(false, false, false, false, 399, 200, 200, 100, 200, 400, nil, F32)
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestGeometry_PaddedAreaAndGFLOPs(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")

	// A is walked uncoal (m) lines of lda
	assert.Equal(t, uint64(1024)*3072, g.PaddedArea(MatA))
	assert.InDelta(t, 2.0*1024*128*3072/1e9, g.GFLOPs(1.0), 1e-12)
	assert.InDelta(t, 2.0*1024*128*3072/1e6, g.GFLOPs(1e-3), 1e-9)
}

func TestGeometry_Distance_ZeroOnEqual(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	g2 := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	assert.Equal(t, 0.0, g.Distance(&g2))
}

func TestGeometry_Distance_InfiniteAcrossTransposes(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	g2 := mustGeometry(t, "tC0_tA0_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	assert.True(t, g.Distance(&g2) > 1e30)
}

func TestGeometry_Distance_GrowsWithDivergence(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	near := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n256_k3072_lda3072_ldb3072_ldc1024_f32")
	far := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n1024_k3072_lda3072_ldb3072_ldc1024_f32")

	dNear := g.Distance(&near)
	dFar := g.Distance(&far)
	assert.Greater(t, dNear, 0.0)
	assert.Greater(t, dFar, dNear)
}

func TestGeometry_Distance_WorkspaceTerm(t *testing.T) {
	// differing workspace lists with identical sufficiency tiers add the
	// small constant term, nothing more
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_ws0_f32")
	g2 := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	assert.InDelta(t, 1e-5, g.Distance(&g2), 1e-12)
}

func TestOffsets_LengthMismatch(t *testing.T) {
	_, err := NewOffsets(0, 0, 0, []uint32{1, 2}, 0, 0, 0, []uint32{1})
	assert.Error(t, err)
}

func TestMatSize(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32")
	toff := PaddingOffsets(0)
	assert.Equal(t, g.PaddedArea(MatA)+11+67, MatSize(&g, &toff, MatA))
	assert.Equal(t, 4*MatSize(&g, &toff, MatC), MatMemSize(&g, &toff, MatC))
}
