package gemm

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrNotDeriveable wraps a phase-1 soft verdict when a caller insists on
// constructing DerivedParams anyway. The search loop never sees it: it asks
// Deriveability first and skips false verdicts as ordinary control flow.
var ErrNotDeriveable = errors.New("not deriveable")

// Mem identifies a device buffer for integer-width tagging.
type Mem int

const (
	MemA Mem = iota
	MemB
	MemC
	MemW
	nMems
)

// narrowIntTags gates the u16/u32 narrowing of buffer index types. The
// narrowing computation is kept but all emitted tags are promoted to
// size_t until the narrow path is proven on edge cases.
const narrowIntTags = false

// ChiralDerived holds the per-matrix derived quantities for A and B.
type ChiralDerived struct {
	MacroTileLength   uint32
	PreshiftFinalTile uint32
	NGroups           uint32

	MainMacroTileLengthAndPad      uint32
	MainNElementsInPaddedUnroll    uint32
	NElementsInUnroll              uint32
	MainNElementsToLoadPerWorkItem uint32
	MainMicroTilePerpUnroll        uint32
	MainMicroTilePllUnroll         uint32
	MainNMicroInMacro              uint32
	MainNMicroTilesPllUnroll       uint32
	MainCInterweaveStride          uint32

	// workspace-copy (cw1 = padded COPY, cw2 = NFORM)
	CW1SmallestPossibleLDX        uint32
	CW1TargetLDX                  uint32
	CW1LocalWorkSize              uint32
	CW1WorkPerThread              uint32
	CW2LocalWorkSize              uint32
	CW2LoadPllToUnroll            uint32
	CW2NElementsPerpUnroll        uint64
	CW2NElementsToLoadPerWorkItem uint32
	CW2MicroTilePerpUnroll        uint32
	CW2MicroTilePllUnroll         uint32
	CW2NMicroTilesPllUnroll       uint32
	CW2NMicroTilesPerpUnroll      uint32
	CWNElements                   uint64
	CWGlobalOffset                uint64
}

// DerivedParams is the full parameter bundle consumed by codegen. It is
// value-owning: the scalars it needs from Geometry and HyperParams are
// copied at construction, so it stays valid independently of its inputs.
type DerivedParams struct {
	GG  Geometry
	HP  HyperParams
	WOS Constraints

	// Chiral is indexed by MatA and MatB.
	Chiral [2]ChiralDerived

	MainMacroTileArea          uint32
	MainMicroTileArea          uint32
	MainNWorkItemsPerWorkgroup uint32
	MainSplitOnK               uint32
	MainDoesBetaCInc           uint32
	MainNWorkGroups            uint64
	MainGlobalWorkSize         uint64
	MainUseEdgeTrick           uint32
	MainFinalFractionalUnroll  uint32

	CW2NMacroTilesPllUnroll uint32

	GA3SuperColumnWidth     uint32
	GA3LastSuperColumnWidth uint32

	BetaCLocalWorkSize uint32
	BetaCWorkPerThread uint32

	// text fragments for codegen
	Infa                   string // integer alias type for compile-time CAS
	Fati                   string // CAS intrinsic name
	PragmaUnrollString     string
	EffectiveKVariesString string
	TFloat                 string

	// TInts is indexed by Mem; TIntK tags the k-loop counter.
	TInts  [nMems]string
	TIntK  string
	TShort string
}

// At returns the per-matrix derived record for A or B.
func (dp *DerivedParams) At(x Mat) *ChiralDerived {
	if x != MatA && x != MatB {
		panic("chiral derived params exist only for A and B")
	}
	return &dp.Chiral[x]
}

// TargetLD returns the workspace leading dimension of matrix x (COPY mode).
func (dp *DerivedParams) TargetLD(x Mat) uint32 { return dp.At(x).CW1TargetLDX }

func getCopyPad(x Mat) uint32 {
	if x == MatA {
		return 3
	}
	return 6
}

// getTarget rounds x up to the next grid line sitting aboveDistance past a
// multiple of gridSize. With gridSize 16 this guarantees the copied
// leading dimension avoids LDS bank conflicts.
func getTarget(gridSize, aboveDistance, x uint32) uint32 {
	toGridLine := (x - aboveDistance) / gridSize
	if (x-aboveDistance)%gridSize != 0 {
		toGridLine++
	}
	return gridSize*toGridLine + aboveDistance
}

func getTint(memsize uint64) string {
	if memsize < 1<<16 {
		return "ushort"
	}
	if memsize < 1<<32 {
		return "unsigned"
	}
	return "size_t"
}

// Deriveability runs the phase-1 fragile checks without building the full
// bundle. A false verdict carries a human-readable reason and is ordinary
// control flow, not an error.
func Deriveability(gg *Geometry, hp HyperParams, wos Constraints) (bool, string) {
	dp := DerivedParams{GG: *gg, HP: hp, WOS: wos}
	return dp.setFragile()
}

// NewDerivedParams runs both phases and returns the completed bundle, or
// ErrNotDeriveable if phase 1 rejects the combination.
func NewDerivedParams(gg *Geometry, hp HyperParams, wos Constraints) (*DerivedParams, error) {
	dp := &DerivedParams{GG: *gg, HP: hp, WOS: wos}
	ok, reason := dp.setFragile()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotDeriveable, reason)
	}
	if err := dp.build(); err != nil {
		return nil, err
	}
	return dp, nil
}

// setShouldBeHyperparams fixes the quantities which are not yet part of the
// tuning vector.
func (dp *DerivedParams) setShouldBeHyperparams() {
	dp.BetaCLocalWorkSize = 256
	dp.BetaCWorkPerThread = 2
	for _, x := range []Mat{MatA, MatB} {
		c := dp.At(x)
		c.CW1LocalWorkSize = 256
		c.CW1WorkPerThread = 2
		c.CW2LoadPllToUnroll = 0
		c.CW2LocalWorkSize = 64
	}
}

// setFragile is phase 1: it reports soft rejections rather than aborting.
func (dp *DerivedParams) setFragile() (bool, string) {
	gg, hp := &dp.GG, dp.HP

	dp.setShouldBeHyperparams()

	gridA, gridB, ok, reason := workItemGrid(hp)
	if !ok {
		return false, reason
	}
	grid := [2]uint32{gridA, gridB}

	for _, x := range []Mat{MatA, MatB} {
		c := dp.At(x)
		c.MacroTileLength = grid[x] * hp.Micro(x)
		c.PreshiftFinalTile = 1 + (gg.NonKDim(x)-1)%c.MacroTileLength
		c.NGroups = gg.NonKDim(x) / c.MacroTileLength
		if c.PreshiftFinalTile != c.MacroTileLength {
			c.NGroups++
		}
		c.MainMacroTileLengthAndPad = c.MacroTileLength + hp.Pad
		c.MainNElementsInPaddedUnroll = c.MainMacroTileLengthAndPad * hp.Unroll
	}

	dp.MainMacroTileArea = dp.At(MatA).MacroTileLength * dp.At(MatB).MacroTileLength
	dp.MainMicroTileArea = hp.MicroTileHeight * hp.MicroTileWidth
	dp.MainNWorkItemsPerWorkgroup = dp.MainMacroTileArea / dp.MainMicroTileArea

	var requiredWorkspace uint64
	var status strings.Builder

	for _, x := range []Mat{MatA, MatB} {
		c := dp.At(x)

		if gg.M < dp.At(MatA).MacroTileLength {
			fmt.Fprintf(&status, "m (%d) < macro_tile_length of A (%d), not considering this kernel. ",
				gg.M, dp.At(MatA).MacroTileLength)
		} else if gg.N < dp.At(MatB).MacroTileLength {
			fmt.Fprintf(&status, "n (%d) < macro_tile_length of B (%d), not considering this kernel. ",
				gg.N, dp.At(MatB).MacroTileLength)
		}

		c.NElementsInUnroll = c.MacroTileLength * hp.Unroll
		c.MainNElementsToLoadPerWorkItem = c.NElementsInUnroll / dp.MainNWorkItemsPerWorkgroup

		if dp.WOS.WOS[x] == ScratchNForm {
			c.CW2NElementsToLoadPerWorkItem = c.NElementsInUnroll / c.CW2LocalWorkSize
		}

		if dp.WOS.WOS[x] != ScratchUnused {
			dp.resetCWParams(x)
			requiredWorkspace += c.CWNElements
		}

		if gg.NonKDim(x) < c.MacroTileLength {
			fmt.Fprintf(&status, "non-k dimension of %s (%d) < macro_tile_length of %s (%d), the tile is too big to work with %s. not considering this kernel. ",
				x, gg.NonKDim(x), x, c.MacroTileLength, x)
		}
	}

	var totalWorkspace uint64
	for _, w := range gg.WSpaceSize {
		totalWorkspace += uint64(w)
	}
	if totalWorkspace < requiredWorkspace {
		fmt.Fprintf(&status, "workspace_size (%d) is less than the required workspace (%d). ",
			totalWorkspace, requiredWorkspace)
	}

	if status.Len() != 0 {
		return false, status.String()
	}

	for _, x := range []Mat{MatA, MatB} {
		c := dp.At(x)
		if c.NElementsInUnroll%dp.MainNWorkItemsPerWorkgroup != 0 {
			return false, fmt.Sprintf(
				"main_n_work_items_per_workgroup (%d) is not a factor of n_elements_in_unroll of %s (%d). consider rounding unroll up. ",
				dp.MainNWorkItemsPerWorkgroup, x, c.NElementsInUnroll)
		}
		if dp.WOS.WOS[x] == ScratchNForm && c.NElementsInUnroll%c.CW2LocalWorkSize != 0 {
			return false, fmt.Sprintf(
				"cw2_local_work_size (%d) is not a factor of n_elements_in_unroll of %s (%d). consider rounding unroll up. ",
				c.CW2LocalWorkSize, x, c.NElementsInUnroll)
		}
	}

	for _, x := range []Mat{MatA, MatB} {
		c := dp.At(x)
		if ok, reason := getTileability(c.MacroTileLength, hp.Unroll, c.MainNElementsToLoadPerWorkItem); !ok {
			return false, reason
		}
		if dp.WOS.WOS[x] == ScratchNForm {
			if ok, reason := getTileability(c.MacroTileLength, hp.Unroll, c.CW2NElementsToLoadPerWorkItem); !ok {
				return false, reason
			}
		}
	}

	if hp.UnrollForOffset == 1 && gg.K <= hp.Unroll {
		return false, "UFO = 1, so UNR must be greater than k"
	}

	return true, ""
}

// resetCWParams fills the workspace-copy quantities of matrix x. The A
// record must be filled before B so that B's global offset can land after
// A's elements.
func (dp *DerivedParams) resetCWParams(x Mat) {
	gg, hp := &dp.GG, dp.HP
	c := dp.At(x)

	switch dp.WOS.WOS[x] {
	case ScratchCopy:
		if gg.CoalIsPllK(x) {
			c.CW1SmallestPossibleLDX = gg.K
		} else {
			c.CW1SmallestPossibleLDX = gg.NonKDim(x)
		}
		c.CW1TargetLDX = getTarget(16, getCopyPad(x), c.CW1SmallestPossibleLDX)
		c.CWNElements = uint64(c.CW1TargetLDX) * uint64(gg.Uncoal(x))

	case ScratchNForm:
		c.CW2NElementsPerpUnroll = uint64(c.NGroups) * uint64(c.MacroTileLength)
		c.CWNElements = c.CW2NElementsPerpUnroll * uint64(gg.K)
		dp.CW2NMacroTilesPllUnroll = gg.K / hp.Unroll
		if gg.K%hp.Unroll != 0 {
			dp.CW2NMacroTilesPllUnroll++
		}

	default:
		panic("resetCWParams called with workspace mode UNUSED")
	}

	if x == MatB && dp.WOS.WOS[MatA] != ScratchUnused {
		c.CWGlobalOffset = dp.At(MatA).CWNElements
	} else {
		c.CWGlobalOffset = 0
	}
}

func (dp *DerivedParams) resetGA3Params() {
	hp := dp.HP
	if dp.MainSplitOnK == 1 {
		dp.GA3SuperColumnWidth = uint32(math.Floor(math.Sqrt(
			float64(hp.NTargetActiveWorkgroups) / float64(hp.NWorkItemsPerCElm))))
	} else {
		dp.GA3SuperColumnWidth = uint32(math.Floor(math.Sqrt(float64(hp.NTargetActiveWorkgroups))))
	}
	dp.GA3LastSuperColumnWidth = dp.At(MatB).NGroups % dp.GA3SuperColumnWidth
}

// build is phase 2: it runs only after setFragile has passed, and fills
// everything codegen needs.
func (dp *DerivedParams) build() error {
	gg, hp := &dp.GG, dp.HP

	for _, x := range []Mat{MatA, MatB} {
		c := dp.At(x)

		pllFirst := hp.WorkItemLoadAPllToUnroll == 1
		if x == MatB {
			pllFirst = hp.WorkItemLoadBPllToUnroll == 1
		}
		perp, pll, err := setTileDimensions(c.MacroTileLength, hp.Unroll, c.MainNElementsToLoadPerWorkItem, pllFirst)
		if err != nil {
			return err
		}
		c.MainMicroTilePerpUnroll, c.MainMicroTilePllUnroll = perp, pll

		if dp.WOS.WOS[x] == ScratchNForm {
			perp, pll, err = setTileDimensions(c.MacroTileLength, hp.Unroll, c.CW2NElementsToLoadPerWorkItem, c.CW2LoadPllToUnroll == 1)
			if err != nil {
				return err
			}
			c.CW2MicroTilePerpUnroll, c.CW2MicroTilePllUnroll = perp, pll
		}
	}

	if hp.NWorkItemsPerCElm == 1 {
		dp.MainSplitOnK = 0
		dp.Infa = "n_work_items_per_c_elm is 1, should not be using atomics"
		dp.Fati = "n_work_items_per_c_elm is 1, should not be using atomics"
	} else {
		dp.MainSplitOnK = 1
		if gg.FloatType == F32 {
			dp.Infa, dp.Fati = "uint", "atomic_cmpxchg"
		} else {
			dp.Infa, dp.Fati = "ulong", "atom_cmpxchg"
		}
	}
	dp.MainDoesBetaCInc = 1 - dp.MainSplitOnK

	if hp.UnrollPragma == 1 {
		dp.PragmaUnrollString = "#pragma unroll\n"
	}
	if hp.UnrollForOffset == 0 {
		dp.EffectiveKVariesString = "__K__"
	} else {
		dp.EffectiveKVariesString = "k_plus_offset"
	}
	if gg.FloatType == F32 {
		dp.TFloat = "float"
	} else {
		dp.TFloat = "double"
	}

	dp.MainNWorkGroups = uint64(hp.NWorkItemsPerCElm) *
		uint64(ceilDiv(gg.M, dp.At(MatA).MacroTileLength)) *
		uint64(ceilDiv(gg.N, dp.At(MatB).MacroTileLength))
	dp.MainGlobalWorkSize = dp.MainNWorkGroups * uint64(dp.MainNWorkItemsPerWorkgroup)

	for _, x := range []Mat{MatA, MatB} {
		c := dp.At(x)
		c.MainNMicroInMacro = c.MacroTileLength / hp.Micro(x)
		c.MainNMicroTilesPllUnroll = hp.Unroll / c.MainMicroTilePllUnroll
		if hp.CMicroTilesInterwoven == 0 {
			c.MainCInterweaveStride = 1
		} else {
			c.MainCInterweaveStride = c.MainNMicroInMacro
		}
		if dp.WOS.WOS[x] == ScratchNForm {
			c.CW2NMicroTilesPllUnroll = hp.Unroll / c.CW2MicroTilePllUnroll
			c.CW2NMicroTilesPerpUnroll = c.MacroTileLength / c.CW2MicroTilePerpUnroll
		}
	}

	if hp.GroupAllocation == 3 {
		dp.resetGA3Params()
	}

	if gg.M%dp.At(MatA).MacroTileLength == 0 && gg.N%dp.At(MatB).MacroTileLength == 0 {
		dp.MainUseEdgeTrick = 0
	} else {
		dp.MainUseEdgeTrick = 1
	}
	if hp.UnrollForOffset == 1 || gg.K%hp.Unroll != 0 {
		dp.MainFinalFractionalUnroll = 1
	}

	var totalWorkspace uint64
	for _, w := range gg.WSpaceSize {
		totalWorkspace += uint64(w)
	}
	dp.TInts[MemA] = getTint(gg.PaddedArea(MatA))
	dp.TInts[MemB] = getTint(gg.PaddedArea(MatB))
	dp.TInts[MemC] = getTint(gg.PaddedArea(MatC))
	dp.TInts[MemW] = getTint(totalWorkspace)
	dp.TIntK = getTint(uint64(gg.K) + 2*uint64(hp.Unroll))
	dp.TShort = "ushort"

	if !narrowIntTags {
		for i := range dp.TInts {
			dp.TInts[i] = "size_t"
		}
		dp.TIntK = "size_t"
		dp.TShort = "size_t"
	}

	return nil
}

func ceilDiv(a, b uint32) uint32 {
	return a/b + b2u(a%b != 0)
}

// === stride selector ===

// Stride returns the element stride for walking matrix x, either parallel
// or perpendicular to k, through the original buffer (wsmode UNUSED), the
// padded copy (COPY) or the re-tiled normal form (NFORM, where the macro
// flag selects between within-tile and tile-to-tile movement).
func (dp *DerivedParams) Stride(x Mat, pllK, isMacro bool, wsmode Scratch) uint32 {
	switch wsmode {
	case ScratchUnused:
		if dp.GG.CoalIsPllK(x) == pllK {
			return 1
		}
		return dp.GG.LDX[x]
	case ScratchCopy:
		if dp.GG.CoalIsPllK(x) == pllK {
			return 1
		}
		return dp.At(x).CW1TargetLDX
	case ScratchNForm:
		if !isMacro {
			if pllK {
				return dp.At(x).MacroTileLength
			}
			return 1
		}
		if pllK {
			return dp.At(x).MacroTileLength
		}
		return dp.GG.K
	}
	panic(fmt.Sprintf("unrecognised workspace mode %d in Stride", wsmode))
}
