package gemm

import (
	"math"

	"github.com/sirupsen/logrus"
)

// DefaultDeviceID is the device the shipped cache entries were tuned on.
const DefaultDeviceID = "Fiji"

// CacheEntry is one row of the kernel cache: a geometry tuned on a device
// under some constraints, and the winning hyperparameter string.
type CacheEntry struct {
	Device      string
	Constraints string
	GeometryKey string
	Comment     string
	HPKey       string
}

// fijiDefaults were produced by long find runs over the deepbench problem
// set, three starting kernels per problem (small, medium, large).
var fijiDefaults = []struct{ g, hp string }{
	{"tC0_tA1_tB0_colMaj1_m1024_n128_k3072_lda3072_ldb3072_ldc1024_f32", "Y96_X64_y6_x4_U16_P1_GA2_APLU0_BPLU0_PU1_LIW1_MIW1_ICE5_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m1760_n128_k1760_lda1760_ldb1760_ldc1760_f32", "Y64_X64_y4_x4_U32_P1_GA2_APLU0_BPLU0_PU1_LIW1_MIW1_ICE2_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m4096_n32_k4096_lda4096_ldb4096_ldc4096_f32", "Y64_X32_y4_x2_U16_P1_GA2_APLU0_BPLU1_PU1_LIW0_MIW1_ICE3_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m4096_n7000_k4096_lda4096_ldb4096_ldc4096_f32", "Y128_X128_y8_x8_U16_P1_GA1_APLU0_BPLU0_PU1_LIW0_MIW1_ICE1_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m3072_n32_k1024_lda3072_ldb1024_ldc3072_f32", "Y32_X16_y4_x2_U16_P1_GA2_APLU0_BPLU1_PU1_LIW0_MIW1_ICE2_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m2560_n16_k7680_lda7680_ldb7680_ldc2560_f32", "Y16_X16_y2_x2_U32_P1_GA1_APLU1_BPLU1_PU0_LIW0_MIW0_ICE3_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m5124_n9124_k2560_lda5124_ldb2560_ldc5124_f32", "Y128_X96_y8_x6_U16_P1_GA1_APLU0_BPLU1_PU0_LIW0_MIW1_ICE1_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m2048_n64_k2048_lda2048_ldb2048_ldc2048_f32", "Y64_X64_y4_x4_U16_P1_GA2_APLU1_BPLU0_PU0_LIW1_MIW1_ICE4_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m2048_n128_k2048_lda2048_ldb2048_ldc2048_f32", "Y64_X64_y4_x4_U16_P1_GA2_APLU0_BPLU1_PU1_LIW0_MIW1_ICE2_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m2048_n32_k2048_lda2048_ldb2048_ldc2048_f32", "Y32_X32_y2_x2_U16_P1_GA2_APLU0_BPLU0_PU0_LIW1_MIW1_ICE4_NAW64_UFO0"},
	{"tC0_tA0_tB1_colMaj1_m2560_n7133_k2560_lda2560_ldb7133_ldc2560_f32", "Y128_X128_y8_x8_U8_P1_GA1_APLU0_BPLU0_PU1_LIW0_MIW1_ICE1_NAW64_UFO1"},
	{"tC0_tA1_tB0_colMaj1_m2048_n16_k2048_lda2048_ldb2048_ldc2048_f32", "Y8_X16_y1_x2_U32_P1_GA2_APLU0_BPLU0_PU0_LIW0_MIW1_ICE7_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m2560_n64_k2560_lda2560_ldb2560_ldc2560_f32", "Y24_X32_y3_x4_U16_P1_GA2_APLU1_BPLU1_PU1_LIW0_MIW1_ICE2_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m2560_n8457_k35_lda35_ldb35_ldc2560_f32", "Y48_X48_y3_x3_U16_P1_GA1_APLU0_BPLU1_PU0_LIW0_MIW1_ICE1_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m4096_n16_k4096_lda4096_ldb4096_ldc4096_f32", "Y16_X16_y2_x2_U8_P1_GA2_APLU0_BPLU1_PU1_LIW1_MIW1_ICE3_NAW64_UFO0"},
	{"tC0_tA0_tB1_colMaj1_m7680_n5481_k2560_lda7680_ldb5481_ldc7680_f32", "Y128_X128_y8_x8_U8_P1_GA1_APLU0_BPLU0_PU1_LIW0_MIW1_ICE1_NAW64_UFO1"},
	{"tC0_tA1_tB0_colMaj1_m2048_n8457_k35_lda35_ldb35_ldc2048_f32", "Y64_X32_y4_x2_U16_P1_GA1_APLU1_BPLU1_PU0_LIW1_MIW1_ICE1_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m1760_n9124_k5124_lda5124_ldb5124_ldc1760_f32", "Y128_X128_y8_x8_U8_P1_GA1_APLU1_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO1"},
	{"tC0_tA0_tB0_colMaj1_m35_n8457_k2048_lda35_ldb2048_ldc35_f32", "Y24_X24_y3_x3_U16_P1_GA1_APLU1_BPLU1_PU0_LIW0_MIW1_ICE7_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m5124_n9124_k4096_lda5124_ldb4096_ldc5124_f32", "Y128_X96_y8_x6_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m1760_n32_k1760_lda1760_ldb1760_ldc1760_f32", "Y48_X32_y3_x2_U16_P1_GA2_APLU1_BPLU0_PU1_LIW1_MIW1_ICE5_NAW64_UFO1"},
	{"tC0_tA0_tB0_colMaj1_m35_n8457_k2560_lda35_ldb2560_ldc35_f32", "Y24_X40_y3_x5_U32_P1_GA1_APLU1_BPLU1_PU1_LIW0_MIW1_ICE4_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m2560_n32_k7680_lda7680_ldb7680_ldc2560_f32", "Y48_X32_y3_x2_U32_P1_GA1_APLU1_BPLU1_PU1_LIW0_MIW1_ICE7_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m4096_n9124_k5124_lda5124_ldb5124_ldc4096_f32", "Y128_X128_y8_x8_U16_P1_GA1_APLU0_BPLU1_PU0_LIW0_MIW1_ICE1_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m2560_n128_k2560_lda2560_ldb2560_ldc2560_f32", "Y80_X64_y5_x4_U16_P1_GA2_APLU0_BPLU1_PU1_LIW0_MIW1_ICE2_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m1760_n64_k1760_lda1760_ldb1760_ldc1760_f32", "Y64_X64_y4_x4_U32_P1_GA2_APLU1_BPLU0_PU0_LIW0_MIW1_ICE4_NAW64_UFO0"},
	{"tC0_tA0_tB1_colMaj1_m1760_n7133_k1760_lda1760_ldb7133_ldc1760_f32", "Y128_X128_y8_x8_U16_P1_GA1_APLU0_BPLU0_PU0_LIW0_MIW1_ICE1_NAW64_UFO0"},
	{"tC0_tA0_tB1_colMaj1_m4096_n7133_k4096_lda4096_ldb7133_ldc4096_f32", "Y128_X128_y8_x8_U8_P1_GA1_APLU0_BPLU0_PU1_LIW0_MIW1_ICE1_NAW64_UFO1"},
	{"tC0_tA1_tB0_colMaj1_m5124_n9124_k1760_lda1760_ldb1760_ldc5124_f32", "Y128_X128_y8_x8_U8_P1_GA3_APLU1_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO1"},
	{"tC0_tA1_tB0_colMaj1_m3072_n128_k1024_lda1024_ldb1024_ldc3072_f32", "Y32_X64_y2_x4_U48_P1_GA2_APLU0_BPLU0_PU1_LIW0_MIW1_ICE3_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m1760_n7000_k1760_lda1760_ldb1760_ldc1760_f32", "Y128_X128_y8_x8_U16_P1_GA1_APLU0_BPLU0_PU0_LIW1_MIW1_ICE1_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m4096_n64_k4096_lda4096_ldb4096_ldc4096_f32", "Y32_X32_y2_x2_U32_P1_GA2_APLU0_BPLU1_PU1_LIW0_MIW1_ICE4_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m4096_n7000_k4096_lda4096_ldb4096_ldc4096_f32", "Y128_X128_y8_x8_U16_P1_GA1_APLU0_BPLU1_PU0_LIW0_MIW1_ICE2_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m7680_n64_k2560_lda2560_ldb2560_ldc7680_f32", "Y96_X64_y6_x4_U32_P1_GA1_APLU0_BPLU0_PU1_LIW0_MIW1_ICE3_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m3072_n128_k1024_lda3072_ldb1024_ldc3072_f32", "Y96_X32_y6_x2_U16_P1_GA2_APLU0_BPLU0_PU0_LIW0_MIW1_ICE1_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m1024_n64_k3072_lda3072_ldb3072_ldc1024_f32", "Y32_X64_y2_x4_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE5_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m35_n8457_k2560_lda2560_ldb2560_ldc35_f32", "Y24_X24_y3_x3_U32_P1_GA1_APLU1_BPLU1_PU0_LIW0_MIW1_ICE4_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m7680_n32_k2560_lda7680_ldb2560_ldc7680_f32", "Y64_X32_y4_x2_U16_P1_GA1_APLU0_BPLU0_PU1_LIW0_MIW1_ICE4_NAW64_UFO0"},
	{"tC0_tA0_tB0_colMaj1_m4096_n64_k4096_lda4096_ldb4096_ldc4096_f32", "Y128_X64_y8_x4_U16_P1_GA2_APLU1_BPLU1_PU0_LIW0_MIW1_ICE4_NAW64_UFO0"},
	{"tC0_tA1_tB0_colMaj1_m2048_n64_k2048_lda2048_ldb2048_ldc2048_f32", "Y48_X32_y3_x2_U16_P1_GA2_APLU1_BPLU0_PU1_LIW1_MIW1_ICE9_NAW64_UFO0"},
}

// kernelCache is process-wide read-only state, fixed at init.
var kernelCache = buildKernelCache()

func buildKernelCache() []CacheEntry {
	entries := make([]CacheEntry, 0, len(fijiDefaults))
	for _, d := range fijiDefaults {
		entries = append(entries, CacheEntry{
			Device:      DefaultDeviceID,
			Constraints: "",
			GeometryKey: d.g,
			HPKey:       d.hp,
		})
	}
	return entries
}

// KernelCache returns a copy of the cache rows, in insertion order.
func KernelCache() []CacheEntry {
	return append([]CacheEntry(nil), kernelCache...)
}

// DefaultHyperParams seeds the search: the hyperparameters of the cached
// geometry nearest to gg among entries matching device and constraints,
// ties broken by insertion order. Problems with m < 8 or n < 8 get the
// tiny kernel; a cache miss falls through to the small default. With
// enforceDeterministic the returned point always has ICE == 1.
func DefaultHyperParams(device, constraints string, gg *Geometry, enforceDeterministic bool) HyperParams {
	if gg.M < 8 || gg.N < 8 {
		return DefaultTiny()
	}

	best := DefaultSmall(enforceDeterministic)
	minDistance := math.Inf(1)

	for _, e := range kernelCache {
		if e.Device != device || e.Constraints != constraints {
			continue
		}
		cg, err := ParseGeometry(e.GeometryKey)
		if err != nil {
			logrus.Warnf("skipping malformed kernel cache geometry %q: %v", e.GeometryKey, err)
			continue
		}
		d := gg.Distance(&cg)
		if d < minDistance {
			minDistance = d
			hp, err := ParseHyperParams(e.HPKey)
			if err != nil {
				logrus.Warnf("skipping malformed kernel cache hyperparams %q: %v", e.HPKey, err)
				continue
			}
			best = hp
		}
	}

	if enforceDeterministic {
		best.NWorkItemsPerCElm = 1
	}
	return best
}
