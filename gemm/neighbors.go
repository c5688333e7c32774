package gemm

import (
	"fmt"
	"math/rand"
)

// microTileStep is the raw step relation of the micro-tile coordinate
// graph. Candidate edges are the pruned cartesian product of the per-axis
// steps.
var microTileStep = map[uint32][]uint32{
	1: {1, 2},
	2: {1, 2, 3, 4},
	3: {2, 3, 4},
	4: {2, 3, 4, 5, 6},
	5: {4, 5, 6, 8},
	6: {4, 5, 6, 8},
	8: {6, 8},
}

// microTileEdgeOK prunes the raw product of per-axis steps down to the
// admissible micro-tile edges.
func microTileEdgeOK(h, w, nh, nw uint32) bool {
	// eliminate skinny micro tiles
	diff := int(nh) - int(nw)
	if diff < 0 {
		diff = -diff
	}
	if diff > 4 {
		return false
	}
	// eliminate too-dramatic changes in skinniness
	deltaRatio := (float64(h) / float64(w)) / (float64(nh) / float64(nw))
	if deltaRatio >= 2.01 || deltaRatio <= 0.499 {
		return false
	}
	// eliminate too-dramatic changes in volume, unless going to an even hub
	deltaVolume := (float64(h) * float64(w)) / (float64(nh) * float64(nw))
	if !(nh%2 == 0 && nw%2 == 0) && (deltaVolume > 2.01 || deltaVolume <= 0.499) {
		return false
	}
	// the only way to get to (5,8) is from (4,8), likewise (8,5) from (8,4)
	if (nh == 5 && nw == 8) || (nh == 8 && nw == 5) {
		return (h == 4 && w == 8) || (h == 8 && w == 4)
	}
	return true
}

// OneAways generates the shuffled list of hyperparameter points one design
// step away from h. The shuffle bounds the expected time to a first
// improvement; it draws from rng so runs are reproducible.
func (h HyperParams) OneAways(gg *Geometry, rng *rand.Rand) ([]HyperParams, error) {
	if gg.M < 8 || gg.N < 8 {
		return nil, fmt.Errorf("the neighbor graph is not defined when C has a dimension less than 8 (m=%d, n=%d)", gg.M, gg.N)
	}

	var oneAways []HyperParams

	nH0 := h.NWItemsH()
	nW0 := h.NWItemsW()

	// micro-tile steps, macro tile kept proportional
	for _, nh := range microTileStep[h.MicroTileHeight] {
		for _, nw := range microTileStep[h.MicroTileWidth] {
			if !microTileEdgeOK(h.MicroTileHeight, h.MicroTileWidth, nh, nw) {
				continue
			}

			oldArea := h.MicroTileHeight * h.MicroTileWidth
			newArea := nh * nw

			// with p ~ 1/3, ride an ICE change along with the tile step:
			// ICE up when the tile shrinks, down when it grows
			iceCandidates := []uint32{h.NWorkItemsPerCElm}
			if newArea < oldArea && oldArea < 36 {
				if rng.Intn(3) == 0 {
					iceCandidates = append(iceCandidates, h.NWorkItemsPerCElm+1)
				}
			} else if newArea > oldArea && h.NWorkItemsPerCElm > 1 {
				if rng.Intn(3) == 0 {
					iceCandidates = append(iceCandidates, h.NWorkItemsPerCElm-1)
				}
			}

			for _, ice := range iceCandidates {
				hp := h
				hp.MicroTileHeight = nh
				hp.MicroTileWidth = nw
				hp.MacroTileHeight = nh * nH0
				hp.MacroTileWidth = nw * nW0
				hp.NWorkItemsPerCElm = ice
				// k-split > 1 does not combine well with ufo
				if ice > 1 {
					hp.UnrollForOffset = 0
				}
				oneAways = append(oneAways, hp)
			}
		}
	}

	// ICE sweep at fixed tile
	for _, dx := range []int{-4, -2, -1, 1, 2, 4, 8} {
		oldICE := int(h.NWorkItemsPerCElm)
		newICE := oldICE + dx
		if newICE > 0 && newICE/oldICE <= 2 {
			hp := h
			hp.NWorkItemsPerCElm = uint32(newICE)
			if newICE > 1 {
				hp.UnrollForOffset = 0
			}
			oneAways = append(oneAways, hp)
		}
	}

	// the standard 8x8 and 16x16 tiling schemes
	for _, wg := range []uint32{8, 16} {
		hp := h
		hp.MacroTileHeight = wg * hp.MicroTileHeight
		hp.MacroTileWidth = wg * hp.MicroTileWidth
		oneAways = append(oneAways, hp)
	}

	// unroll sweep
	for _, du := range []int{-16, -8, 8, 16} {
		newUnroll := int(h.Unroll) + du
		if newUnroll > 0 && newUnroll <= 60 {
			hp := h
			hp.Unroll = uint32(newUnroll)
			// unroll > 8 does not combine well with ufo
			if newUnroll > 8 {
				hp.UnrollForOffset = 0
			}
			oneAways = append(oneAways, hp)
		}
	}

	// coupled jump: large k-splits halve while unroll rounds up a 16-block
	if h.NWorkItemsPerCElm >= 4 {
		hp := h
		hp.Unroll = 16 * (hp.Unroll/16 + 1)
		hp.NWorkItemsPerCElm = 2 * (h.NWorkItemsPerCElm / 4)
		oneAways = append(oneAways, hp)
	}

	// pads: anything other than 1 has never been seen to win
	for _, pad := range []uint32{1} {
		hp := h
		hp.Pad = pad
		oneAways = append(oneAways, hp)
	}

	// group allocation: 1 (column-wise), 2 (row-wise), 3 (column within row)
	for _, ga := range []uint32{1, 2, 3} {
		hp := h
		hp.GroupAllocation = ga
		oneAways = append(oneAways, hp)
	}

	for _, v := range []uint32{0, 1} {
		hp := h
		hp.WorkItemLoadAPllToUnroll = v
		oneAways = append(oneAways, hp)
	}
	for _, v := range []uint32{0, 1} {
		hp := h
		hp.WorkItemLoadBPllToUnroll = v
		oneAways = append(oneAways, hp)
	}
	for _, v := range []uint32{0, 1} {
		hp := h
		hp.UnrollPragma = v
		oneAways = append(oneAways, hp)
	}
	for _, v := range []uint32{0, 1} {
		hp := h
		hp.LoadToLDSInterwoven = v
		oneAways = append(oneAways, hp)
	}
	for _, v := range []uint32{0, 1} {
		hp := h
		hp.CMicroTilesInterwoven = v
		oneAways = append(oneAways, hp)
	}
	// ufo has only been seen to help in combination with the unroll pragma
	for _, v := range []uint32{0, 1} {
		hp := h
		hp.UnrollForOffset = v
		hp.UnrollPragma = 1
		oneAways = append(oneAways, hp)
	}

	oneAways = append(oneAways, h.customEdges(gg)...)

	// shuffle: prevents the pathological case of all improving kernels at
	// the end of the list
	rng.Shuffle(len(oneAways), func(i, j int) {
		oneAways[i], oneAways[j] = oneAways[j], oneAways[i]
	})
	return oneAways, nil
}

// customEdges is a fixed catalog of known-good kernels which experience
// shows can tunnel out of local minima, gated by predicates on the current
// point and the problem.
func (h HyperParams) customEdges(gg *Geometry) []HyperParams {
	var out []HyperParams
	add := func(s string) { out = append(out, MustParseHyperParams(s)) }

	y, x := h.MicroTileHeight, h.MicroTileWidth
	area := y * x
	ice := h.NWorkItemsPerCElm

	if area <= 4 {
		add("Y16_X16_y2_x2_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE6_NAW64_UFO0")
	}
	if area <= 16 {
		add("Y48_X32_y3_x2_U16_P1_GA2_APLU1_BPLU0_PU0_LIW0_MIW1_ICE5_NAW64_UFO0")
	}
	if area <= 20 {
		add("Y64_X64_y4_x4_U16_P1_GA2_APLU0_BPLU0_PU0_LIW1_MIW1_ICE4_NAW64_UFO0")
	}
	if area >= 16 {
		add("Y128_X128_y8_x8_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0")
	}
	if area >= 8 {
		add("Y80_X64_y5_x4_U16_P1_GA2_APLU0_BPLU1_PU1_LIW0_MIW1_ICE2_NAW64_UFO0")
	}
	if y >= x && area >= 10 {
		add("Y96_X64_y6_x4_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE4_NAW64_UFO0")
	}
	if (y == 8 || y == 4) && x == 4 {
		add("Y128_X64_y8_x4_U16_P1_GA2_APLU0_BPLU1_PU0_LIW0_MIW1_ICE3_NAW64_UFO0")
		add("Y64_X64_y4_x4_U16_P1_GA3_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0")
	}
	if area == 24 && ice > 1 {
		add("Y48_X64_y3_x4_U16_P1_GA2_APLU0_BPLU1_PU0_LIW0_MIW1_ICE1_NAW64_UFO0")
	}
	if y == 3 && y < x {
		add("Y24_X40_y3_x5_U16_P1_GA1_APLU1_BPLU1_PU0_LIW0_MIW1_ICE1_NAW64_UFO0")
	}
	if area > 5 && area < 48 && ice > 1 {
		add("Y64_X64_y4_x4_U16_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO0")
	}
	if uint64(gg.M)*uint64(gg.N) < 64*64 && gg.K > 20000 {
		add("Y16_X32_y1_x2_U48_P1_GA1_APLU0_BPLU1_PU1_LIW0_MIW1_ICE32_NAW64_UFO0")
	}
	if uint64(gg.M)*uint64(gg.N) > 2000*2000 {
		add("Y128_X128_y8_x8_U8_P1_GA1_APLU0_BPLU1_PU0_LIW0_MIW1_ICE1_NAW64_UFO0")
	}
	if gg.TX[MatA] == gg.IsColMajor && gg.TX[MatB] != gg.IsColMajor && y == 8 && x == 8 {
		add("Y128_X128_y8_x8_U8_P1_GA1_APLU1_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO1")
		add("Y128_X128_y8_x8_U8_P1_GA2_APLU1_BPLU1_PU1_LIW0_MIW1_ICE1_NAW64_UFO1")
	} else if gg.TX[MatA] != gg.IsColMajor && gg.TX[MatB] == gg.IsColMajor && y == 8 && x == 8 {
		add("Y128_X128_y8_x8_U8_P1_GA1_APLU0_BPLU0_PU1_LIW0_MIW1_ICE1_NAW64_UFO1")
		add("Y128_X128_y8_x8_U8_P1_GA2_APLU0_BPLU0_PU1_LIW0_MIW1_ICE1_NAW64_UFO1")
	}

	return out
}

// TwoAways is the deduplicated union of OneAways applied to every member
// of OneAways, shuffled.
func (h HyperParams) TwoAways(gg *Geometry, rng *rand.Rand) ([]HyperParams, error) {
	oneAways, err := h.OneAways(gg, rng)
	if err != nil {
		return nil, err
	}
	seen := map[HyperParams]bool{}
	var twoAways []HyperParams
	for _, hp := range oneAways {
		via, err := hp.OneAways(gg, rng)
		if err != nil {
			return nil, err
		}
		for _, hp2 := range via {
			if !seen[hp2] {
				seen[hp2] = true
				twoAways = append(twoAways, hp2)
			}
		}
	}
	rng.Shuffle(len(twoAways), func(i, j int) {
		twoAways[i], twoAways[j] = twoAways[j], twoAways[i]
	})
	return twoAways, nil
}
