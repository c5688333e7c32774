package gemm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadHPString is returned when a hyperparameter string fails to parse.
var ErrBadHPString = errors.New("bad hyperparameter string")

// HyperParams is the discrete tuning vector defining one member of the
// kernel family. The 15 fields, their long names and their short keys are
// part of the external interface; the wire form joins the short-key tokens
// with underscores in schema order.
type HyperParams struct {
	MacroTileHeight          uint32 // Y : work-group tile in the M dimension
	MacroTileWidth           uint32 // X : work-group tile in the N dimension
	MicroTileHeight          uint32 // y : per-work-item tile in M
	MicroTileWidth           uint32 // x : per-work-item tile in N
	Unroll                   uint32 // U : k-dimension unroll block
	Pad                      uint32 // P : LDS padding, usually 1
	GroupAllocation          uint32 // GA : workgroup->tile mapping mode 1/2/3
	WorkItemLoadAPllToUnroll uint32 // APLU : 0/1
	WorkItemLoadBPllToUnroll uint32 // BPLU : 0/1
	UnrollPragma             uint32 // PU : 0/1
	LoadToLDSInterwoven      uint32 // LIW : 0/1
	CMicroTilesInterwoven    uint32 // MIW : 0/1
	NWorkItemsPerCElm        uint32 // ICE : k-split factor, >= 1
	NTargetActiveWorkgroups  uint32 // NAW : heuristic, typically 64
	UnrollForOffset          uint32 // UFO : 0/1
}

// hpKey binds a short key and a long name to a field accessor. This table
// replaces the pointer-to-member map of the reference with an exhaustive
// schema; it is the single source of truth for ordering and naming.
type hpKey struct {
	Short string
	Long  string
	Get   func(*HyperParams) *uint32
}

var hpSchema = []hpKey{
	{"Y", "macro_tile_height", func(h *HyperParams) *uint32 { return &h.MacroTileHeight }},
	{"X", "macro_tile_width", func(h *HyperParams) *uint32 { return &h.MacroTileWidth }},
	{"y", "micro_tile_height", func(h *HyperParams) *uint32 { return &h.MicroTileHeight }},
	{"x", "micro_tile_width", func(h *HyperParams) *uint32 { return &h.MicroTileWidth }},
	{"U", "unroll", func(h *HyperParams) *uint32 { return &h.Unroll }},
	{"P", "pad", func(h *HyperParams) *uint32 { return &h.Pad }},
	{"GA", "group_allocation", func(h *HyperParams) *uint32 { return &h.GroupAllocation }},
	{"APLU", "work_item_load_a_pll_to_unroll", func(h *HyperParams) *uint32 { return &h.WorkItemLoadAPllToUnroll }},
	{"BPLU", "work_item_load_b_pll_to_unroll", func(h *HyperParams) *uint32 { return &h.WorkItemLoadBPllToUnroll }},
	{"PU", "unroll_pragma", func(h *HyperParams) *uint32 { return &h.UnrollPragma }},
	{"LIW", "load_to_lds_interwoven", func(h *HyperParams) *uint32 { return &h.LoadToLDSInterwoven }},
	{"MIW", "c_micro_tiles_interwoven", func(h *HyperParams) *uint32 { return &h.CMicroTilesInterwoven }},
	{"ICE", "n_work_items_per_c_elm", func(h *HyperParams) *uint32 { return &h.NWorkItemsPerCElm }},
	{"NAW", "n_target_active_workgroups", func(h *HyperParams) *uint32 { return &h.NTargetActiveWorkgroups }},
	{"UFO", "unroll_for_offset", func(h *HyperParams) *uint32 { return &h.UnrollForOffset }},
}

// Get returns the value behind a short key ("Y", "ICE", ...).
func (h HyperParams) Get(short string) (uint32, error) {
	for i := range hpSchema {
		if hpSchema[i].Short == short {
			return *hpSchema[i].Get(&h), nil
		}
	}
	return 0, fmt.Errorf("short key %q does not appear in the hyperparameter schema", short)
}

// String returns the canonical wire form, tokens in schema order.
func (h HyperParams) String() string {
	var sb strings.Builder
	for i := range hpSchema {
		if i > 0 {
			sb.WriteByte('_')
		}
		fmt.Fprintf(&sb, "%s%d", hpSchema[i].Short, *hpSchema[i].Get(&h))
	}
	return sb.String()
}

// ParseHyperParams parses a wire-form string. Tokens may appear in any
// order, but all 15 must appear exactly once.
func ParseHyperParams(s string) (HyperParams, error) {
	var h HyperParams
	seen := map[string]bool{}
	for _, tok := range strings.Split(s, "_") {
		key, val, err := splitToken(tok)
		if err != nil {
			return HyperParams{}, fmt.Errorf("%w: %v", ErrBadHPString, err)
		}
		found := false
		for i := range hpSchema {
			if hpSchema[i].Short == key {
				if seen[key] {
					return HyperParams{}, fmt.Errorf("%w: key %q appears more than once", ErrBadHPString, key)
				}
				seen[key] = true
				*hpSchema[i].Get(&h) = val
				found = true
				break
			}
		}
		if !found {
			return HyperParams{}, fmt.Errorf("%w: unrecognised key %q", ErrBadHPString, key)
		}
	}
	if len(seen) != len(hpSchema) {
		for i := range hpSchema {
			if !seen[hpSchema[i].Short] {
				return HyperParams{}, fmt.Errorf("%w: missing key %q", ErrBadHPString, hpSchema[i].Short)
			}
		}
	}
	return h, nil
}

// HyperParamsFromMap builds a HyperParams from a long-name map
// ("macro_tile_height", "unroll", ...). All 15 keys must be present and no
// others.
func HyperParamsFromMap(params map[string]uint32) (HyperParams, error) {
	var h HyperParams
	for i := range hpSchema {
		v, ok := params[hpSchema[i].Long]
		if !ok {
			return HyperParams{}, fmt.Errorf("%w: missing key %q", ErrBadHPString, hpSchema[i].Long)
		}
		*hpSchema[i].Get(&h) = v
	}
	if len(params) != len(hpSchema) {
		for k := range params {
			known := false
			for i := range hpSchema {
				if hpSchema[i].Long == k {
					known = true
					break
				}
			}
			if !known {
				return HyperParams{}, fmt.Errorf("%w: unrecognised key %q", ErrBadHPString, k)
			}
		}
	}
	return h, nil
}

// MustParseHyperParams is ParseHyperParams for statically-known strings.
func MustParseHyperParams(s string) HyperParams {
	h, err := ParseHyperParams(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Equal compares every field, which is what the canonical string covers.
func (h HyperParams) Equal(h2 HyperParams) bool { return h == h2 }

// WorkgroupSize returns Y*X / (y*x), the number of work items per workgroup.
func (h HyperParams) WorkgroupSize() uint32 {
	return (h.MacroTileHeight * h.MacroTileWidth) / (h.MicroTileHeight * h.MicroTileWidth)
}

// NWItemsH returns Y/y, the height of the work-item grid.
func (h HyperParams) NWItemsH() uint32 { return h.MacroTileHeight / h.MicroTileHeight }

// NWItemsW returns X/x, the width of the work-item grid.
func (h HyperParams) NWItemsW() uint32 { return h.MacroTileWidth / h.MicroTileWidth }

// CanBeUsedOn reports whether the macro tile fits inside C.
func (h HyperParams) CanBeUsedOn(g *Geometry) bool {
	return h.MacroTileHeight <= g.M && h.MacroTileWidth <= g.N
}

// Micro returns the micro tile length of matrix x (y for A, x for B).
func (h HyperParams) Micro(x Mat) uint32 {
	if x == MatA {
		return h.MicroTileHeight
	}
	return h.MicroTileWidth
}

// === defaults ===

// DefaultSmall is the fallback starting point for problems with m, n >= 8
// when the kernel cache has no usable entry.
func DefaultSmall(enforceDeterministic bool) HyperParams {
	h := HyperParams{
		MacroTileHeight: 8, MacroTileWidth: 8,
		MicroTileHeight: 1, MicroTileWidth: 1,
		Unroll: 16, Pad: 1, GroupAllocation: 1,
		WorkItemLoadAPllToUnroll: 0, WorkItemLoadBPllToUnroll: 1,
		UnrollPragma: 1, LoadToLDSInterwoven: 0, CMicroTilesInterwoven: 1,
		NWorkItemsPerCElm: 3, NTargetActiveWorkgroups: 64, UnrollForOffset: 0,
	}
	if enforceDeterministic {
		h.NWorkItemsPerCElm = 1
	}
	return h
}

// DefaultTiny is the starting point for problems with m < 8 or n < 8.
// K-split on a 1x1 macro tile cannot pay for its atomics, so ICE is 1.
func DefaultTiny() HyperParams {
	return HyperParams{
		MacroTileHeight: 1, MacroTileWidth: 1,
		MicroTileHeight: 1, MicroTileWidth: 1,
		Unroll: 16, Pad: 1, GroupAllocation: 1,
		WorkItemLoadAPllToUnroll: 0, WorkItemLoadBPllToUnroll: 1,
		UnrollPragma: 1, LoadToLDSInterwoven: 0, CMicroTilesInterwoven: 1,
		NWorkItemsPerCElm: 1, NTargetActiveWorkgroups: 64, UnrollForOffset: 0,
	}
}
