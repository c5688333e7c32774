package gemm

import "fmt"

// workItemGrid maps the macro/micro tile pair to the 2D grid of work items
// covering the macro tile. A macro tile that the micro tile does not divide
// has no valid factorisation, which is a soft (phase-1) failure.
func workItemGrid(hp HyperParams) (gridA, gridB uint32, ok bool, reason string) {
	if hp.MicroTileHeight == 0 || hp.MicroTileWidth == 0 {
		return 0, 0, false, "micro tile has a zero dimension"
	}
	if hp.MacroTileHeight%hp.MicroTileHeight != 0 || hp.MacroTileWidth%hp.MicroTileWidth != 0 {
		return 0, 0, false, fmt.Sprintf(
			"macro tile %dx%d has no valid 2D work-item factorisation by micro tile %dx%d",
			hp.MacroTileHeight, hp.MacroTileWidth, hp.MicroTileHeight, hp.MicroTileWidth)
	}
	return hp.NWItemsH(), hp.NWItemsW(), true, ""
}

// tileFactorisations returns every (perp, pll) with perp*pll ==
// nLoadPerWorkItem, perp dividing macroTileLength and pll dividing unroll.
// The strides implied by macro/perp and unroll/pll are then always whole,
// which is what makes the work-item load loop expressible.
func tileFactorisations(macroTileLength, unroll, nLoadPerWorkItem uint32) [][2]uint32 {
	var out [][2]uint32
	for pll := uint32(1); pll <= nLoadPerWorkItem; pll++ {
		if nLoadPerWorkItem%pll != 0 || unroll%pll != 0 {
			continue
		}
		perp := nLoadPerWorkItem / pll
		if macroTileLength%perp != 0 {
			continue
		}
		out = append(out, [2]uint32{perp, pll})
	}
	return out
}

// getTileability reports whether a work-item micro tile exists for the
// given load volume.
func getTileability(macroTileLength, unroll, nLoadPerWorkItem uint32) (bool, string) {
	if nLoadPerWorkItem == 0 {
		return false, fmt.Sprintf(
			"n_elements_to_load_per_workitem is 0 for macro_tile_length %d, unroll %d", macroTileLength, unroll)
	}
	if len(tileFactorisations(macroTileLength, unroll, nLoadPerWorkItem)) == 0 {
		return false, fmt.Sprintf(
			"no (perp, pll) factorisation of n_elements_to_load_per_workitem (%d) with perp dividing macro_tile_length (%d) and pll dividing unroll (%d)",
			nLoadPerWorkItem, macroTileLength, unroll)
	}
	return true, ""
}

// setTileDimensions picks a load-tile factorisation. With pllFirst the tile
// is made as long as possible parallel to the unroll dimension, otherwise
// as long as possible perpendicular to it.
func setTileDimensions(macroTileLength, unroll, nLoadPerWorkItem uint32, pllFirst bool) (perp, pll uint32, err error) {
	cands := tileFactorisations(macroTileLength, unroll, nLoadPerWorkItem)
	if len(cands) == 0 {
		_, reason := getTileability(macroTileLength, unroll, nLoadPerWorkItem)
		return 0, 0, fmt.Errorf("setTileDimensions: %s", reason)
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if pllFirst {
			if c[1] > best[1] {
				best = c
			}
		} else {
			if c[0] > best[0] {
				best = c
			}
		}
	}
	return best[0], best[1], nil
}
