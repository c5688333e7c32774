package codegen

import (
	"fmt"
	"strings"

	"github.com/gemmtune/gemmtune/gemm"
)

// MainKernel emits the alpha*A*B + beta*C kernel for a validated
// DerivedParams bundle.
func MainKernel(dp *gemm.DerivedParams) gemm.KernelString {
	hp := dp.HP
	name := "gemm_main"

	var sb strings.Builder
	writeMainDescription(&sb, dp)
	writeMainDefines(&sb, dp)
	writeMainSignature(&sb, dp)
	sb.WriteString("{\n")
	writeGroupMapping(&sb, dp)
	writeLocalTiles(&sb, dp)
	writeUnrollLoop(&sb, dp)
	writeWriteBack(&sb, dp)
	sb.WriteString("}\n")

	description := fmt.Sprintf(
		"gemm main kernel, macro tile %dx%d, micro tile %dx%d, unroll %d, k-split %d",
		dp.At(gemm.MatA).MacroTileLength, dp.At(gemm.MatB).MacroTileLength,
		hp.MicroTileHeight, hp.MicroTileWidth, hp.Unroll, hp.NWorkItemsPerCElm)

	return gemm.KernelString{
		Name:           name,
		Source:         sb.String(),
		LocalWorkSize:  uint64(dp.MainNWorkItemsPerWorkgroup),
		GlobalWorkSize: dp.MainGlobalWorkSize,
		WorkPerThread:  dp.MainMicroTileArea,
		Description:    description,
	}
}

func writeMainDescription(sb *strings.Builder, dp *gemm.DerivedParams) {
	sb.WriteString("/* gemm_main : c <- alpha*a*b + beta*c */\n")
	if dp.MainSplitOnK == 1 {
		sb.WriteString("/* the reduction is split over work groups; c is updated with compare-and-swap loops */\n")
	}
	if dp.MainUseEdgeTrick == 1 {
		sb.WriteString("/* macro tiles do not divide c; edge groups preshift onto the final tile */\n")
	}
}

func writeMainDefines(sb *strings.Builder, dp *gemm.DerivedParams) {
	gg, hp := &dp.GG, dp.HP
	a, b := dp.At(gemm.MatA), dp.At(gemm.MatB)

	fmt.Fprintf(sb, "#define TFLOAT %s\n", dp.TFloat)
	fmt.Fprintf(sb, "#define __M__ %d\n", gg.M)
	fmt.Fprintf(sb, "#define __N__ %d\n", gg.N)
	fmt.Fprintf(sb, "#define __K__ %d\n", gg.K)
	fmt.Fprintf(sb, "#define TINTA %s\n", dp.TInts[gemm.MemA])
	fmt.Fprintf(sb, "#define TINTB %s\n", dp.TInts[gemm.MemB])
	fmt.Fprintf(sb, "#define TINTC %s\n", dp.TInts[gemm.MemC])
	fmt.Fprintf(sb, "#define TINTK %s\n", dp.TIntK)
	fmt.Fprintf(sb, "#define UNROLL %d\n", hp.Unroll)
	fmt.Fprintf(sb, "#define GROUP_ALLOCATION %d\n", hp.GroupAllocation)
	fmt.Fprintf(sb, "#define N_WORK_ITEMS_PER_WORKGROUP %d\n", dp.MainNWorkItemsPerWorkgroup)
	fmt.Fprintf(sb, "#define N_WORK_ITEMS_PER_C_ELM %d\n", hp.NWorkItemsPerCElm)
	fmt.Fprintf(sb, "#define SPLIT_ON_K %d\n", dp.MainSplitOnK)
	fmt.Fprintf(sb, "#define DOES_BETA_C_INC %d\n", dp.MainDoesBetaCInc)
	fmt.Fprintf(sb, "#define USE_EDGE_TRICK %d\n", dp.MainUseEdgeTrick)
	fmt.Fprintf(sb, "#define FINAL_FRACTIONAL_UNROLL %d\n", dp.MainFinalFractionalUnroll)
	fmt.Fprintf(sb, "#define C_INTERWEAVE_STRIDE_A %d\n", a.MainCInterweaveStride)
	fmt.Fprintf(sb, "#define C_INTERWEAVE_STRIDE_B %d\n", b.MainCInterweaveStride)
	if dp.MainSplitOnK == 1 {
		fmt.Fprintf(sb, "#define TINTFLOAT %s\n", dp.Infa)
		fmt.Fprintf(sb, "#define FATI %s\n", dp.Fati)
		if gg.FloatType == gemm.F32 {
			sb.WriteString("#define AS_TFLOAT as_float\n")
			sb.WriteString("#define AS_TINTFLOAT as_uint\n")
		} else {
			sb.WriteString("#define AS_TFLOAT as_double\n")
			sb.WriteString("#define AS_TINTFLOAT as_ulong\n")
		}
	}
	if hp.UnrollForOffset == 1 {
		sb.WriteString("#define UNROLL_FOR_OFFSET 1\n")
	}

	for _, pair := range []struct {
		x gemm.Mat
		c *gemm.ChiralDerived
	}{{gemm.MatA, a}, {gemm.MatB, b}} {
		x, c := pair.x, pair.c
		X := strings.ToUpper(x.String())
		ws := dp.WOS.WOS[x]
		fmt.Fprintf(sb, "#define LD%s %d\n", X, effectiveLD(dp, x))
		fmt.Fprintf(sb, "#define MACRO_TILE_LENGTH_%s %d\n", X, c.MacroTileLength)
		fmt.Fprintf(sb, "#define MICRO_TILE_LENGTH_%s %d\n", X, hp.Micro(x))
		fmt.Fprintf(sb, "#define MACRO_TILE_LENGTH_%s_AND_PAD %d\n", X, c.MainMacroTileLengthAndPad)
		fmt.Fprintf(sb, "#define N_ELEMENTS_IN_PADDED_UNROLL_%s %d\n", X, c.MainNElementsInPaddedUnroll)
		fmt.Fprintf(sb, "#define N_ELEMENTS_TO_LOAD_PER_WORKITEM_%s %d\n", X, c.MainNElementsToLoadPerWorkItem)
		fmt.Fprintf(sb, "#define MICRO_TILE_PERP_UNROLL_%s %d\n", X, c.MainMicroTilePerpUnroll)
		fmt.Fprintf(sb, "#define MICRO_TILE_PLL_UNROLL_%s %d\n", X, c.MainMicroTilePllUnroll)
		fmt.Fprintf(sb, "#define N_MICRO_IN_MACRO_%s %d\n", X, c.MainNMicroInMacro)
		fmt.Fprintf(sb, "#define N_GROUPS_%s %d\n", X, c.NGroups)
		fmt.Fprintf(sb, "#define PRESHIFT_FINAL_TILE_%s %d\n", X, c.PreshiftFinalTile)
		fmt.Fprintf(sb, "#define STRIDE_PLL_K_%s %d\n", X, dp.Stride(x, true, false, ws))
		fmt.Fprintf(sb, "#define STRIDE_PERP_K_%s %d\n", X, dp.Stride(x, false, false, ws))
	}
	fmt.Fprintf(sb, "#define LDC %d\n", dp.GG.LDX[gemm.MatC])

	if hp.GroupAllocation == 3 {
		fmt.Fprintf(sb, "#define GA3_SUPER_COLUMN_WIDTH %d\n", dp.GA3SuperColumnWidth)
		fmt.Fprintf(sb, "#define GA3_LAST_SUPER_COLUMN_WIDTH %d\n", dp.GA3LastSuperColumnWidth)
	}
	sb.WriteString("\n")
}

// effectiveLD is the leading dimension the main kernel actually reads
// through: the raw buffer's, the padded copy's, or the normal form's tile
// stride.
func effectiveLD(dp *gemm.DerivedParams, x gemm.Mat) uint32 {
	switch dp.WOS.WOS[x] {
	case gemm.ScratchCopy:
		return dp.TargetLD(x)
	case gemm.ScratchNForm:
		return dp.At(x).MacroTileLength
	}
	return dp.GG.LDX[x]
}

func writeMainSignature(sb *strings.Builder, dp *gemm.DerivedParams) {
	usesW := dp.WOS.WOS[gemm.MatA] != gemm.ScratchUnused || dp.WOS.WOS[gemm.MatB] != gemm.ScratchUnused
	sb.WriteString("__kernel void gemm_main(\n")
	if dp.WOS.WOS[gemm.MatA] == gemm.ScratchUnused {
		sb.WriteString("__global const TFLOAT * restrict a, const TINTA a_offset,\n")
	}
	if dp.WOS.WOS[gemm.MatB] == gemm.ScratchUnused {
		sb.WriteString("__global const TFLOAT * restrict b, const TINTB b_offset,\n")
	}
	if usesW {
		sb.WriteString("__global const TFLOAT * restrict w, const size_t w_offset,\n")
	}
	sb.WriteString("__global TFLOAT * restrict c, const TINTC c_offset,\n")
	sb.WriteString("const TFLOAT alpha, const TFLOAT beta)\n")
}

func writeGroupMapping(sb *strings.Builder, dp *gemm.DerivedParams) {
	switch dp.WOS.WOS[gemm.MatA] {
	case gemm.ScratchUnused:
		sb.WriteString("a += a_offset;\n")
	default:
		sb.WriteString("__global const TFLOAT * restrict a = w + w_offset;\n")
	}
	switch dp.WOS.WOS[gemm.MatB] {
	case gemm.ScratchUnused:
		sb.WriteString("b += b_offset;\n")
	default:
		fmt.Fprintf(sb, "__global const TFLOAT * restrict b = w + w_offset + %d;\n", dp.At(gemm.MatB).CWGlobalOffset)
	}
	sb.WriteString("c += c_offset;\n\n")

	sb.WriteString("const TINTC group_id = get_group_id(0);\n")
	sb.WriteString("const TINTC local_id = get_local_id(0);\n")

	if dp.MainSplitOnK == 1 {
		sb.WriteString("const TINTC group_id_xy = group_id / N_WORK_ITEMS_PER_C_ELM;\n")
		sb.WriteString("const TINTK group_id_z = group_id % N_WORK_ITEMS_PER_C_ELM;\n")
	} else {
		sb.WriteString("const TINTC group_id_xy = group_id;\n")
	}

	switch dp.HP.GroupAllocation {
	case 1:
		sb.WriteString("/* column-wise group allocation */\n")
		sb.WriteString("TINTC group_id_a = group_id_xy % N_GROUPS_A;\n")
		sb.WriteString("TINTC group_id_b = group_id_xy / N_GROUPS_A;\n")
	case 2:
		sb.WriteString("/* row-wise group allocation */\n")
		sb.WriteString("TINTC group_id_a = group_id_xy / N_GROUPS_B;\n")
		sb.WriteString("TINTC group_id_b = group_id_xy % N_GROUPS_B;\n")
	case 3:
		sb.WriteString("/* column-wise within row-wise group allocation, in super columns */\n")
		sb.WriteString("TINTC group_id_a;\n")
		sb.WriteString("TINTC group_id_b;\n")
		sb.WriteString("const TINTC wg_super_column = group_id_xy / (GA3_SUPER_COLUMN_WIDTH*N_GROUPS_A);\n")
		sb.WriteString("const TINTC n_full_super_columns = N_GROUPS_B / GA3_SUPER_COLUMN_WIDTH;\n")
		sb.WriteString("if (wg_super_column < n_full_super_columns) {\n")
		sb.WriteString("group_id_b = wg_super_column*GA3_SUPER_COLUMN_WIDTH + (group_id_xy % GA3_SUPER_COLUMN_WIDTH);\n")
		sb.WriteString("group_id_a = (group_id_xy / GA3_SUPER_COLUMN_WIDTH) % N_GROUPS_A;\n")
		sb.WriteString("} else {\n")
		sb.WriteString("const TINTC local_xy = group_id_xy - n_full_super_columns*GA3_SUPER_COLUMN_WIDTH*N_GROUPS_A;\n")
		sb.WriteString("group_id_b = n_full_super_columns*GA3_SUPER_COLUMN_WIDTH + (local_xy % GA3_LAST_SUPER_COLUMN_WIDTH);\n")
		sb.WriteString("group_id_a = local_xy / GA3_LAST_SUPER_COLUMN_WIDTH;\n")
		sb.WriteString("}\n")
	}

	if dp.MainUseEdgeTrick == 1 {
		sb.WriteString("\n/* edge trick : the final tile in each dimension is preshifted so it stays in bounds */\n")
		sb.WriteString("const TINTC macro_offset_a = group_id_a*MACRO_TILE_LENGTH_A - (group_id_a == N_GROUPS_A - 1 ? MACRO_TILE_LENGTH_A - PRESHIFT_FINAL_TILE_A : 0);\n")
		sb.WriteString("const TINTC macro_offset_b = group_id_b*MACRO_TILE_LENGTH_B - (group_id_b == N_GROUPS_B - 1 ? MACRO_TILE_LENGTH_B - PRESHIFT_FINAL_TILE_B : 0);\n")
	} else {
		sb.WriteString("const TINTC macro_offset_a = group_id_a*MACRO_TILE_LENGTH_A;\n")
		sb.WriteString("const TINTC macro_offset_b = group_id_b*MACRO_TILE_LENGTH_B;\n")
	}

	sb.WriteString("\n")
}

func writeLocalTiles(sb *strings.Builder, dp *gemm.DerivedParams) {
	sb.WriteString("__local TFLOAT local_a[N_ELEMENTS_IN_PADDED_UNROLL_A];\n")
	sb.WriteString("__local TFLOAT local_b[N_ELEMENTS_IN_PADDED_UNROLL_B];\n")
	sb.WriteString("TFLOAT rc[MICRO_TILE_LENGTH_A][MICRO_TILE_LENGTH_B] = {{0.}};\n")
	sb.WriteString("TFLOAT ra[MICRO_TILE_LENGTH_A];\n")
	sb.WriteString("TFLOAT rb[MICRO_TILE_LENGTH_B];\n\n")

	sb.WriteString("/* work-item coordinates inside the macro tile */\n")
	sb.WriteString("const TINTC micro_id_a = local_id % N_MICRO_IN_MACRO_A;\n")
	sb.WriteString("const TINTC micro_id_b = local_id / N_MICRO_IN_MACRO_A;\n")
	sb.WriteString("/* when MIW = 0 each work item owns a contiguous micro tile; when MIW = 1 its\n")
	sb.WriteString(" * elements are an interweave stride apart */\n")
	sb.WriteString("#define MICRO_BASE_A (C_INTERWEAVE_STRIDE_A == 1 ? micro_id_a*MICRO_TILE_LENGTH_A : micro_id_a)\n")
	sb.WriteString("#define MICRO_BASE_B (C_INTERWEAVE_STRIDE_B == 1 ? micro_id_b*MICRO_TILE_LENGTH_B : micro_id_b)\n\n")
}

func writeUnrollLoop(sb *strings.Builder, dp *gemm.DerivedParams) {
	hp := dp.HP

	if dp.MainSplitOnK == 1 {
		sb.WriteString("/* the k-split : this work group handles unroll blocks congruent to group_id_z */\n")
		sb.WriteString("TINTK unroll_offset = group_id_z*UNROLL;\n")
		sb.WriteString("TINTK k_remaining = __K__ > unroll_offset ? __K__ - unroll_offset : 0;\n")
		sb.WriteString("TINTK n_unrolls = k_remaining / (N_WORK_ITEMS_PER_C_ELM*UNROLL) + ((k_remaining % (N_WORK_ITEMS_PER_C_ELM*UNROLL)) > group_id_z*UNROLL ? 1 : 0);\n")
	} else if hp.UnrollForOffset == 1 {
		sb.WriteString("/* unroll for offset : fold the non-aligned k tail into the main loop by starting early */\n")
		sb.WriteString("TINTK k_plus_offset = __K__ + (__K__ % UNROLL == 0 ? 0 : UNROLL - __K__ % UNROLL);\n")
		fmt.Fprintf(sb, "TINTK n_unrolls = %s / UNROLL;\n", dp.EffectiveKVariesString)
		sb.WriteString("TINTK unroll_offset = 0;\n")
	} else {
		fmt.Fprintf(sb, "TINTK n_unrolls = %s / UNROLL;\n", dp.EffectiveKVariesString)
		sb.WriteString("TINTK unroll_offset = 0;\n")
	}

	writeLDSLoadBlock(sb, dp)

	sb.WriteString(dp.PragmaUnrollString)
	sb.WriteString("for (TINTK u = 0; u < n_unrolls; ++u) {\n")
	sb.WriteString("barrier(CLK_LOCAL_MEM_FENCE);\n")
	sb.WriteString("load_lds(u);\n")
	sb.WriteString("barrier(CLK_LOCAL_MEM_FENCE);\n\n")

	sb.WriteString(dp.PragmaUnrollString)
	sb.WriteString("for (TINTK z = 0; z < UNROLL; ++z) {\n")
	sb.WriteString("/* register loads from LDS, interweave stride apart when MIW = 1 */\n")
	sb.WriteString(dp.PragmaUnrollString)
	sb.WriteString("for (TINTC i = 0; i < MICRO_TILE_LENGTH_A; ++i) {\n")
	sb.WriteString("ra[i] = local_a[z*MACRO_TILE_LENGTH_A_AND_PAD + MICRO_BASE_A + i*C_INTERWEAVE_STRIDE_A];\n")
	sb.WriteString("}\n")
	sb.WriteString(dp.PragmaUnrollString)
	sb.WriteString("for (TINTC j = 0; j < MICRO_TILE_LENGTH_B; ++j) {\n")
	sb.WriteString("rb[j] = local_b[z*MACRO_TILE_LENGTH_B_AND_PAD + MICRO_BASE_B + j*C_INTERWEAVE_STRIDE_B];\n")
	sb.WriteString("}\n")
	sb.WriteString("/* the rank-1 update of the micro tile */\n")
	sb.WriteString(dp.PragmaUnrollString)
	sb.WriteString("for (TINTC i = 0; i < MICRO_TILE_LENGTH_A; ++i) {\n")
	sb.WriteString("for (TINTC j = 0; j < MICRO_TILE_LENGTH_B; ++j) {\n")
	sb.WriteString("rc[i][j] += ra[i]*rb[j];\n")
	sb.WriteString("}\n")
	sb.WriteString("}\n")
	sb.WriteString("}\n")
	sb.WriteString("}\n\n")

	if dp.MainFinalFractionalUnroll == 1 {
		sb.WriteString("/* the final fractional unroll : the k tail not covered by whole unroll blocks */\n")
		sb.WriteString("{\n")
		sb.WriteString("barrier(CLK_LOCAL_MEM_FENCE);\n")
		sb.WriteString("load_lds_fractional();\n")
		sb.WriteString("barrier(CLK_LOCAL_MEM_FENCE);\n")
		sb.WriteString("for (TINTK z = 0; z < k_remaining_fractional; ++z) {\n")
		sb.WriteString("for (TINTC i = 0; i < MICRO_TILE_LENGTH_A; ++i) {\n")
		sb.WriteString("for (TINTC j = 0; j < MICRO_TILE_LENGTH_B; ++j) {\n")
		sb.WriteString("rc[i][j] += local_a[z*MACRO_TILE_LENGTH_A_AND_PAD + MICRO_BASE_A + i*C_INTERWEAVE_STRIDE_A]*local_b[z*MACRO_TILE_LENGTH_B_AND_PAD + MICRO_BASE_B + j*C_INTERWEAVE_STRIDE_B];\n")
		sb.WriteString("}\n")
		sb.WriteString("}\n")
		sb.WriteString("}\n")
		sb.WriteString("}\n\n")
	}
}

// writeLDSLoadBlock emits the load_lds macro: each work item loads its
// share of the A and B unroll slabs into LDS, either contiguously or
// interwoven across the work group.
func writeLDSLoadBlock(sb *strings.Builder, dp *gemm.DerivedParams) {
	hp := dp.HP

	sb.WriteString("\n/* per-unroll LDS fill : each work item loads N_ELEMENTS_TO_LOAD_PER_WORKITEM_X elements */\n")
	sb.WriteString("#define load_lds(u) { \\\n")
	for _, x := range []gemm.Mat{gemm.MatA, gemm.MatB} {
		X := strings.ToUpper(x.String())
		interwoven := hp.LoadToLDSInterwoven == 1
		fmt.Fprintf(sb, "for (TINTC l = 0; l < N_ELEMENTS_TO_LOAD_PER_WORKITEM_%s; ++l) { \\\n", X)
		if interwoven {
			fmt.Fprintf(sb, "TINTC flat = local_id + l*N_WORK_ITEMS_PER_WORKGROUP; \\\n")
		} else {
			fmt.Fprintf(sb, "TINTC flat = local_id*N_ELEMENTS_TO_LOAD_PER_WORKITEM_%s + l; \\\n", X)
		}
		fmt.Fprintf(sb, "TINTC perp = flat / UNROLL; \\\n")
		fmt.Fprintf(sb, "TINTC pll = flat %% UNROLL; \\\n")
		fmt.Fprintf(sb, "local_%s[pll*MACRO_TILE_LENGTH_%s_AND_PAD + perp] = %s[(macro_offset_%s + perp)*STRIDE_PERP_K_%s + ((u)*UNROLL + unroll_offset + pll)*STRIDE_PLL_K_%s]; \\\n",
			x.String(), X, x.String(), x.String(), X, X)
		sb.WriteString("} \\\n")
	}
	sb.WriteString("}\n\n")

	if dp.MainFinalFractionalUnroll == 1 {
		sb.WriteString("#define k_remaining_fractional (__K__ % UNROLL)\n")
		sb.WriteString("#define load_lds_fractional() { \\\n")
		for _, x := range []gemm.Mat{gemm.MatA, gemm.MatB} {
			X := strings.ToUpper(x.String())
			fmt.Fprintf(sb, "for (TINTC l = 0; l < N_ELEMENTS_TO_LOAD_PER_WORKITEM_%s; ++l) { \\\n", X)
			sb.WriteString("TINTC flat = local_id + l*N_WORK_ITEMS_PER_WORKGROUP; \\\n")
			sb.WriteString("TINTC perp = flat / UNROLL; \\\n")
			sb.WriteString("TINTC pll = flat % UNROLL; \\\n")
			fmt.Fprintf(sb, "if (pll < k_remaining_fractional) { \\\n")
			fmt.Fprintf(sb, "local_%s[pll*MACRO_TILE_LENGTH_%s_AND_PAD + perp] = %s[(macro_offset_%s + perp)*STRIDE_PERP_K_%s + (n_unrolls*UNROLL + unroll_offset + pll)*STRIDE_PLL_K_%s]; \\\n",
				x.String(), X, x.String(), x.String(), X, X)
			sb.WriteString("} \\\n")
			sb.WriteString("} \\\n")
		}
		sb.WriteString("}\n\n")
	}
}

func writeWriteBack(sb *strings.Builder, dp *gemm.DerivedParams) {
	sb.WriteString("/* write-back of the micro tile */\n")
	sb.WriteString("const TINTC row_base = macro_offset_a + MICRO_BASE_A;\n")
	sb.WriteString("const TINTC col_base = macro_offset_b + MICRO_BASE_B;\n")
	sb.WriteString("for (TINTC i = 0; i < MICRO_TILE_LENGTH_A; ++i) {\n")
	sb.WriteString("for (TINTC j = 0; j < MICRO_TILE_LENGTH_B; ++j) {\n")
	sb.WriteString("const TINTC row = row_base + i*C_INTERWEAVE_STRIDE_A;\n")
	sb.WriteString("const TINTC col = col_base + j*C_INTERWEAVE_STRIDE_B;\n")
	if dp.MainUseEdgeTrick == 1 {
		sb.WriteString("if (row < __M__ && col < __N__) {\n")
	} else {
		sb.WriteString("{\n")
	}

	writeCElementUpdate(sb, dp)

	sb.WriteString("}\n")
	sb.WriteString("}\n")
	sb.WriteString("}\n")
}

// writeCElementUpdate emits the per-element store: a plain beta-blended
// store when one work group owns the element, a compare-and-swap
// accumulation when the reduction is split.
func writeCElementUpdate(sb *strings.Builder, dp *gemm.DerivedParams) {
	addr := cIndexExpr(&dp.GG)

	if dp.MainSplitOnK == 0 {
		fmt.Fprintf(sb, "c[%s] = alpha*rc[i][j] + beta*c[%s];\n", addr, addr)
		return
	}

	sb.WriteString("/* split-k accumulation : beta*c is done by the betac kernel, here we add with CAS */\n")
	fmt.Fprintf(sb, "__global volatile TINTFLOAT * restrict target = (__global volatile TINTFLOAT * restrict)(c + %s);\n", addr)
	sb.WriteString("TINTFLOAT previous;\n")
	sb.WriteString("TINTFLOAT expected;\n")
	sb.WriteString("TFLOAT next;\n")
	sb.WriteString("do {\n")
	sb.WriteString("previous = *target;\n")
	sb.WriteString("next = AS_TFLOAT(previous) + alpha*rc[i][j];\n")
	sb.WriteString("expected = previous;\n")
	sb.WriteString("previous = FATI(target, expected, AS_TINTFLOAT(next));\n")
	sb.WriteString("} while (previous != expected);\n")
}

// cIndexExpr returns the element index of c at (row over m, col over n).
// The coalesced dimension of c is contiguous; the other walks LDC.
func cIndexExpr(gg *gemm.Geometry) string {
	if gg.TX[gemm.MatC] == gg.IsColMajor {
		// coal(c) is n : columns are contiguous
		return "row*LDC + col"
	}
	return "col*LDC + row"
}
