package codegen

import "github.com/gemmtune/gemmtune/gemm"

// All returns every kernel a solution needs, in launch order: workspace
// formatting first, then the beta pre-scale when the main kernel
// accumulates with atomics, then the main kernel.
func All(dp *gemm.DerivedParams) []gemm.KernelString {
	var out []gemm.KernelString
	for _, x := range []gemm.Mat{gemm.MatA, gemm.MatB} {
		if dp.WOS.WOS[x] != gemm.ScratchUnused {
			out = append(out, CopyKernel(dp, x))
		}
	}
	if dp.MainSplitOnK == 1 {
		out = append(out, BetaCKernel(dp))
	}
	out = append(out, MainKernel(dp))
	return out
}
