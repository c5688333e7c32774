package codegen

import (
	"fmt"
	"strings"

	"github.com/gemmtune/gemmtune/gemm"
)

// bylineWorkSizes returns the launch geometry for a kernel whose work
// items each process workPerThread consecutive elements of an nElements
// buffer.
func bylineWorkSizes(nElements uint64, localWorkSize uint32, workPerThread uint32) (local, global uint64) {
	local = uint64(localWorkSize)
	perGroup := local * uint64(workPerThread)
	nGroups := nElements / perGroup
	if nElements%perGroup != 0 {
		nGroups++
	}
	return local, nGroups * local
}

// CopyKernel emits the workspace formatting kernel for matrix x (A or B):
// the cw1 byline padded copy in COPY mode, the cw2 re-tiling in NFORM mode.
func CopyKernel(dp *gemm.DerivedParams, x gemm.Mat) gemm.KernelString {
	if x != gemm.MatA && x != gemm.MatB {
		panic("copy kernels exist only for A and B")
	}
	if dp.WOS.WOS[x] == gemm.ScratchNForm {
		return nformKernel(dp, x)
	}

	c := dp.At(x)
	name := "gemm_copy_" + x.String()
	matrixChar := x.String()

	// stride of a line walk perpendicular to k, in the source and in the
	// padded workspace
	strideX := dp.Stride(x, false, false, gemm.ScratchUnused)
	strideW := dp.Stride(x, false, false, gemm.ScratchCopy)

	var sb strings.Builder
	fmt.Fprintf(&sb, "/* %s : byline padded re-layout of %s into workspace */\n", name, matrixChar)
	fmt.Fprintf(&sb, "#define TFLOAT %s\n", dp.TFloat)
	fmt.Fprintf(&sb, "#define TINTX %s\n", dp.TInts[memOf(x)])
	fmt.Fprintf(&sb, "#define LDX %d\n", dp.GG.LDX[x])
	fmt.Fprintf(&sb, "#define LDW %d\n", dp.TargetLD(x))
	fmt.Fprintf(&sb, "#define GLOBAL_OFFSET_W %d\n", c.CWGlobalOffset)
	fmt.Fprintf(&sb, "#define N_LINES %d\n", dp.GG.Uncoal(x))
	fmt.Fprintf(&sb, "#define LINE_LENGTH %d\n", dp.GG.Coal(x))
	fmt.Fprintf(&sb, "#define STRIDE_PERP_K_X %d\n", strideX)
	fmt.Fprintf(&sb, "#define STRIDE_PERP_K_W %d\n", strideW)
	fmt.Fprintf(&sb, "#define WORK_PER_THREAD %d\n", c.CW1WorkPerThread)
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "__kernel void %s\n", name)
	fmt.Fprintf(&sb, "(__global const TFLOAT * restrict %s, const TINTX x_offset, __global TFLOAT * restrict w, const TINTX w_offset)\n", matrixChar)
	sb.WriteString("{\n")
	fmt.Fprintf(&sb, "%s += x_offset;\n", matrixChar)
	sb.WriteString("w += w_offset + GLOBAL_OFFSET_W;\n")
	sb.WriteString("TINTX gid = get_global_id(0);\n")
	sb.WriteString("TINTX start = gid * WORK_PER_THREAD;\n")
	sb.WriteString("for (TINTX i = start; i < start + WORK_PER_THREAD; ++i) {\n")
	sb.WriteString("TINTX line = i / LINE_LENGTH;\n")
	sb.WriteString("TINTX elm = i % LINE_LENGTH;\n")
	sb.WriteString("if (line < N_LINES) {\n")
	sb.WriteString("\n/* the copy */\n")
	fmt.Fprintf(&sb, "w[line*LDW + elm] = %s[line*LDX + elm];\n", matrixChar)
	sb.WriteString("}\n")
	sb.WriteString("}\n")
	sb.WriteString("}\n")

	local, global := bylineWorkSizes(c.CWNElements, c.CW1LocalWorkSize, c.CW1WorkPerThread)
	return gemm.KernelString{
		Name:           name,
		Source:         sb.String(),
		LocalWorkSize:  local,
		GlobalWorkSize: global,
		WorkPerThread:  c.CW1WorkPerThread,
		Description:    fmt.Sprintf("padded workspace copy of %s, target ld %d", matrixChar, dp.TargetLD(x)),
	}
}

// nformKernel emits the cw2 kernel re-tiling matrix x into normal form:
// macro tiles laid out contiguously, the coalesced dimension running
// parallel to k inside each tile.
func nformKernel(dp *gemm.DerivedParams, x gemm.Mat) gemm.KernelString {
	c := dp.At(x)
	name := "gemm_nform_" + x.String()
	matrixChar := x.String()

	var sb strings.Builder
	fmt.Fprintf(&sb, "/* %s : re-tiling of %s into normal-form workspace */\n", name, matrixChar)
	fmt.Fprintf(&sb, "#define TFLOAT %s\n", dp.TFloat)
	fmt.Fprintf(&sb, "#define TINTX %s\n", dp.TInts[memOf(x)])
	fmt.Fprintf(&sb, "#define __K__ %d\n", dp.GG.K)
	fmt.Fprintf(&sb, "#define MACRO_TILE_LENGTH %d\n", c.MacroTileLength)
	fmt.Fprintf(&sb, "#define N_ELEMENTS_PERP_UNROLL %d\n", c.CW2NElementsPerpUnroll)
	fmt.Fprintf(&sb, "#define NON_K_DIM %d\n", dp.GG.NonKDim(x))
	fmt.Fprintf(&sb, "#define GLOBAL_OFFSET_W %d\n", c.CWGlobalOffset)
	fmt.Fprintf(&sb, "#define STRIDE_PLL_K_X %d\n", dp.Stride(x, true, false, gemm.ScratchUnused))
	fmt.Fprintf(&sb, "#define STRIDE_PERP_K_X %d\n", dp.Stride(x, false, false, gemm.ScratchUnused))
	fmt.Fprintf(&sb, "#define STRIDE_PLL_K_W %d\n", dp.Stride(x, true, false, gemm.ScratchNForm))
	fmt.Fprintf(&sb, "#define WORK_PER_THREAD %d\n", c.CW1WorkPerThread)
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "__kernel void %s\n", name)
	fmt.Fprintf(&sb, "(__global const TFLOAT * restrict %s, const TINTX x_offset, __global TFLOAT * restrict w, const TINTX w_offset)\n", matrixChar)
	sb.WriteString("{\n")
	fmt.Fprintf(&sb, "%s += x_offset;\n", matrixChar)
	sb.WriteString("w += w_offset + GLOBAL_OFFSET_W;\n")
	sb.WriteString("TINTX gid = get_global_id(0);\n")
	sb.WriteString("TINTX start = gid * WORK_PER_THREAD;\n")
	sb.WriteString("for (TINTX i = start; i < start + WORK_PER_THREAD; ++i) {\n")
	sb.WriteString("TINTX perp = i / __K__;\n")
	sb.WriteString("TINTX pll = i % __K__;\n")
	sb.WriteString("if (perp < N_ELEMENTS_PERP_UNROLL) {\n")
	sb.WriteString("TINTX tile = perp / MACRO_TILE_LENGTH;\n")
	sb.WriteString("TINTX within = perp % MACRO_TILE_LENGTH;\n")
	sb.WriteString("TINTX src_perp = perp < NON_K_DIM ? perp : NON_K_DIM - 1;\n")
	sb.WriteString("\n/* the re-tiling */\n")
	fmt.Fprintf(&sb, "w[tile*MACRO_TILE_LENGTH*__K__ + pll*STRIDE_PLL_K_W + within] = %s[src_perp*STRIDE_PERP_K_X + pll*STRIDE_PLL_K_X];\n", matrixChar)
	sb.WriteString("}\n")
	sb.WriteString("}\n")
	sb.WriteString("}\n")

	local, global := bylineWorkSizes(c.CWNElements, c.CW2LocalWorkSize, c.CW1WorkPerThread)
	return gemm.KernelString{
		Name:           name,
		Source:         sb.String(),
		LocalWorkSize:  local,
		GlobalWorkSize: global,
		WorkPerThread:  c.CW1WorkPerThread,
		Description:    fmt.Sprintf("normal-form re-tiling of %s, macro tile length %d", matrixChar, c.MacroTileLength),
	}
}

// BetaCKernel emits the kernel that pre-scales C by beta. It runs before a
// split-k main kernel, whose work groups then accumulate with atomics.
func BetaCKernel(dp *gemm.DerivedParams) gemm.KernelString {
	name := "gemm_betac"

	nElements := dp.GG.PaddedArea(gemm.MatC)

	var sb strings.Builder
	fmt.Fprintf(&sb, "/* %s : scales c by beta ahead of split-k accumulation */\n", name)
	fmt.Fprintf(&sb, "#define TFLOAT %s\n", dp.TFloat)
	fmt.Fprintf(&sb, "#define TINTC %s\n", dp.TInts[gemm.MemC])
	fmt.Fprintf(&sb, "#define LDC %d\n", dp.GG.LDX[gemm.MatC])
	fmt.Fprintf(&sb, "#define N_LINES %d\n", dp.GG.Uncoal(gemm.MatC))
	fmt.Fprintf(&sb, "#define LINE_LENGTH %d\n", dp.GG.Coal(gemm.MatC))
	fmt.Fprintf(&sb, "#define WORK_PER_THREAD %d\n", dp.BetaCWorkPerThread)
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "__kernel void %s\n", name)
	sb.WriteString("(__global TFLOAT * restrict c, const TINTC c_offset, const TFLOAT beta)\n")
	sb.WriteString("{\n")
	sb.WriteString("c += c_offset;\n")
	sb.WriteString("TINTC gid = get_global_id(0);\n")
	sb.WriteString("TINTC start = gid * WORK_PER_THREAD;\n")
	sb.WriteString("for (TINTC i = start; i < start + WORK_PER_THREAD; ++i) {\n")
	sb.WriteString("TINTC line = i / LINE_LENGTH;\n")
	sb.WriteString("TINTC elm = i % LINE_LENGTH;\n")
	sb.WriteString("if (line < N_LINES) {\n")
	sb.WriteString("c[line*LDC + elm] *= beta;\n")
	sb.WriteString("}\n")
	sb.WriteString("}\n")
	sb.WriteString("}\n")

	local, global := bylineWorkSizes(nElements, dp.BetaCLocalWorkSize, dp.BetaCWorkPerThread)
	return gemm.KernelString{
		Name:           name,
		Source:         sb.String(),
		LocalWorkSize:  local,
		GlobalWorkSize: global,
		WorkPerThread:  dp.BetaCWorkPerThread,
		Description:    "beta scaling of c before split-k accumulation",
	}
}

func memOf(x gemm.Mat) gemm.Mem {
	switch x {
	case gemm.MatA:
		return gemm.MemA
	case gemm.MatB:
		return gemm.MemB
	}
	return gemm.MemC
}
