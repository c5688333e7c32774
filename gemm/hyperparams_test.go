package gemm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallHPKey = "Y8_X8_y1_x1_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE3_NAW64_UFO0"

func TestHyperParams_RoundTrip(t *testing.T) {
	h, err := ParseHyperParams(smallHPKey)
	require.NoError(t, err)
	assert.Equal(t, smallHPKey, h.String())

	h2, err := ParseHyperParams(h.String())
	require.NoError(t, err)
	assert.True(t, h.Equal(h2))
}

func TestParseHyperParams_AnyPermutation(t *testing.T) {
	// GIVEN the same tokens in reversed order
	permuted := "UFO0_NAW64_ICE3_MIW1_LIW0_PU1_BPLU1_APLU0_GA1_P1_U16_x1_y1_X8_Y8"

	// WHEN parsed
	h, err := ParseHyperParams(permuted)
	require.NoError(t, err)

	// THEN the emitter restores canonical order
	assert.Equal(t, smallHPKey, h.String())
}

func TestParseHyperParams_BadStrings(t *testing.T) {
	cases := map[string]string{
		"unknown key": smallHPKey + "_QQ3",
		"missing key": "Y8_X8_y1_x1_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE3_NAW64",
		"duplicate":   smallHPKey + "_Y8",
		"no value":    "Y_X8_y1_x1_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE3_NAW64_UFO0",
	}
	for name, s := range cases {
		_, err := ParseHyperParams(s)
		if !errors.Is(err, ErrBadHPString) {
			t.Errorf("%s: got error %v, want ErrBadHPString", name, err)
		}
	}
}

func TestHyperParamsFromMap(t *testing.T) {
	m := map[string]uint32{
		"macro_tile_height": 8, "macro_tile_width": 8,
		"micro_tile_height": 1, "micro_tile_width": 1,
		"unroll": 16, "pad": 1, "group_allocation": 1,
		"work_item_load_a_pll_to_unroll": 0, "work_item_load_b_pll_to_unroll": 1,
		"unroll_pragma": 1, "load_to_lds_interwoven": 0, "c_micro_tiles_interwoven": 1,
		"n_work_items_per_c_elm": 3, "n_target_active_workgroups": 64, "unroll_for_offset": 0,
	}
	h, err := HyperParamsFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, smallHPKey, h.String())

	delete(m, "unroll")
	_, err = HyperParamsFromMap(m)
	assert.ErrorIs(t, err, ErrBadHPString)

	m["unroll"] = 16
	m["warp_size"] = 32
	_, err = HyperParamsFromMap(m)
	assert.ErrorIs(t, err, ErrBadHPString)
}

func TestHyperParams_Get(t *testing.T) {
	h := MustParseHyperParams(smallHPKey)

	ice, err := h.Get("ICE")
	require.NoError(t, err)
	assert.Equal(t, uint32(3), ice)

	_, err = h.Get("ice")
	assert.Error(t, err)
}

func TestHyperParams_WorkgroupAccessors(t *testing.T) {
	h := MustParseHyperParams("Y96_X64_y6_x4_U16_P1_GA2_APLU0_BPLU0_PU1_LIW1_MIW1_ICE5_NAW64_UFO0")
	assert.Equal(t, uint32(256), h.WorkgroupSize())
	assert.Equal(t, uint32(16), h.NWItemsH())
	assert.Equal(t, uint32(16), h.NWItemsW())
}

func TestDefaultSmall(t *testing.T) {
	assert.Equal(t, smallHPKey, DefaultSmall(false).String())
	// deterministic clamps the k-split
	assert.Equal(t, uint32(1), DefaultSmall(true).NWorkItemsPerCElm)
}

func TestDefaultTiny(t *testing.T) {
	want := "Y1_X1_y1_x1_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0"
	assert.Equal(t, want, DefaultTiny().String())
}

func TestHyperParams_CanBeUsedOn(t *testing.T) {
	g := mustGeometry(t, "tC0_tA1_tB0_colMaj1_m64_n32_k512_lda512_ldb512_ldc64_f32")

	assert.True(t, MustParseHyperParams("Y64_X32_y4_x2_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0").CanBeUsedOn(&g))
	assert.False(t, MustParseHyperParams("Y128_X32_y4_x2_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0").CanBeUsedOn(&g))
	assert.False(t, MustParseHyperParams("Y64_X64_y4_x2_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0").CanBeUsedOn(&g))
}

func TestConstraints_RoundTrip(t *testing.T) {
	for _, s := range []string{"", "A_WOS1", "B_WOS2", "A_WOS1__B_WOS2"} {
		c, err := ParseConstraints(s)
		require.NoError(t, err)
		assert.Equal(t, s, c.String())
	}

	_, err := ParseConstraints("C_WOS1")
	assert.Error(t, err)
	_, err = ParseConstraints("A_WOS7")
	assert.Error(t, err)
}
