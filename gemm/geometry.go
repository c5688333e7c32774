package gemm

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// === Matrix tags ===

// Mat identifies one of the three GEMM operands.
type Mat int

const (
	MatA Mat = iota
	MatB
	MatC
	nMats
)

func (m Mat) String() string {
	switch m {
	case MatA:
		return "a"
	case MatB:
		return "b"
	case MatC:
		return "c"
	}
	return "?"
}

// === Float types ===

// FloatType is the element precision of a GEMM problem.
type FloatType int

const (
	F32 FloatType = iota
	F64
)

// SizeBytes returns the element width in bytes.
func (f FloatType) SizeBytes() uint32 {
	if f == F64 {
		return 8
	}
	return 4
}

// SizeBits returns the element width in bits.
func (f FloatType) SizeBits() uint32 { return 8 * f.SizeBytes() }

func floatTypeFromBits(bits uint32) (FloatType, error) {
	switch bits {
	case 32:
		return F32, nil
	case 64:
		return F64, nil
	}
	return F32, fmt.Errorf("float width %d bits: must be 32 or 64", bits)
}

// === Errors ===

var (
	// ErrInvalidGeometry is returned when geometry fields are mutually inconsistent.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrBadGeometryString is returned when a canonical geometry string fails to parse.
	ErrBadGeometryString = errors.New("bad geometry string")
)

// === Geometry ===

// Geometry is the validated description of one GEMM problem instance:
// C <- alpha*A*B + beta*C with layout, transposes, leading dimensions,
// algebraic sizes, usable workspace and element precision.
//
// A Geometry is immutable after successful construction.
type Geometry struct {
	IsColMajor bool

	// TX and LDX are indexed by Mat (A, B, C).
	TX  [nMats]bool
	LDX [nMats]uint32

	M, N, K uint32

	// WSpaceSize holds the usable scratch element counts, sorted descending.
	WSpaceSize []uint32

	FloatType FloatType

	// distance-metric coordinates, fixed at construction
	metricCo         [6]float64
	wSpaceSufficient [5]bool
}

// NewGeometry validates and constructs a Geometry.
// Construction fails with ErrInvalidGeometry if any leading dimension is
// smaller than the coalesced dimension of its matrix.
func NewGeometry(isColMajor, tA, tB, tC bool,
	lda, ldb, ldc, m, n, k uint32,
	wSpaceSize []uint32, floatType FloatType) (Geometry, error) {

	g := Geometry{
		IsColMajor: isColMajor,
		TX:         [nMats]bool{tA, tB, tC},
		LDX:        [nMats]uint32{lda, ldb, ldc},
		M:          m, N: n, K: k,
		FloatType: floatType,
	}
	g.WSpaceSize = append([]uint32(nil), wSpaceSize...)
	sort.Slice(g.WSpaceSize, func(i, j int) bool { return g.WSpaceSize[i] > g.WSpaceSize[j] })

	if floatType != F32 && floatType != F64 {
		return Geometry{}, fmt.Errorf("%w: floattype must be F32 or F64", ErrInvalidGeometry)
	}

	for _, x := range []Mat{MatA, MatB, MatC} {
		if g.LDX[x] < g.Coal(x) {
			return Geometry{}, fmt.Errorf("%w: ld%s (%d) < coal_%s (%d); ldx must be at least the coalesced dimension",
				ErrInvalidGeometry, x, g.LDX[x], x, g.Coal(x))
		}
	}

	g.setMetricCoordinates()
	return g, nil
}

func (g *Geometry) setMetricCoordinates() {
	g.metricCo[0] = math.Log2(float64(g.K))
	g.metricCo[1] = math.Log2(float64(g.M)) - math.Log2(float64(g.N))
	g.metricCo[2] = math.Log2(float64(g.M)) + math.Log2(float64(g.N))
	g.metricCo[3] = 0.2 * math.Log2(float64(g.LDX[MatA]))
	g.metricCo[4] = 0.2 * math.Log2(float64(g.LDX[MatB]))
	g.metricCo[5] = 0.2 * math.Log2(float64(g.LDX[MatC]))

	// memory required for a padded copy, an estimate used for the
	// workspace-sufficiency tiers of the distance metric
	var forPadCopy [2]uint64
	for _, x := range []Mat{MatA, MatB} {
		forPadCopy[x] = uint64(g.Uncoal(x)) * uint64(g.Coal(x)+16)
	}
	var wsp0 uint64
	for _, w := range g.WSpaceSize {
		wsp0 += uint64(w)
	}
	g.wSpaceSufficient[0] = forPadCopy[MatA] < wsp0
	g.wSpaceSufficient[1] = forPadCopy[MatB] < wsp0
	g.wSpaceSufficient[2] = 1*(forPadCopy[MatA]+forPadCopy[MatB]) < wsp0
	g.wSpaceSufficient[3] = 2*(forPadCopy[MatA]+forPadCopy[MatB]) < wsp0
	g.wSpaceSufficient[4] = 4*(forPadCopy[MatA]+forPadCopy[MatB]) < wsp0
}

// padlessDim returns one dimension of matrix x: the coalesced dimension if
// isCoal, else the uncoalesced one. For A (m x k) with tA=false,
// isColMajor=false, the coalesced dimension is k.
func (g *Geometry) padlessDim(x Mat, isCoal bool) uint32 {
	gate := (g.TX[x] == g.IsColMajor) == isCoal
	switch x {
	case MatA:
		if gate {
			return g.K
		}
		return g.M
	case MatB:
		if gate {
			return g.N
		}
		return g.K
	case MatC:
		if gate {
			return g.N
		}
		return g.M
	}
	panic(fmt.Sprintf("unrecognised Mat %d in padlessDim", x))
}

// Coal returns the coalesced dimension of matrix x. This is the lower bound
// on ld(x).
func (g *Geometry) Coal(x Mat) uint32 { return g.padlessDim(x, true) }

// Uncoal returns the uncoalesced dimension of matrix x.
func (g *Geometry) Uncoal(x Mat) uint32 { return g.padlessDim(x, false) }

// NonKDim returns m for A and n for B.
func (g *Geometry) NonKDim(x Mat) uint32 {
	switch x {
	case MatA:
		return g.M
	case MatB:
		return g.N
	}
	panic("NonKDim is defined only for A and B")
}

// CoalIsPllK reports whether the coalesced dimension of x runs parallel to k.
func (g *Geometry) CoalIsPllK(x Mat) bool {
	s := 0
	if g.IsColMajor {
		s++
	}
	if g.TX[x] {
		s++
	}
	if x == MatA {
		s++
	}
	return s%2 == 1
}

// PaddedArea returns uncoal(x) * ld(x), the element footprint of matrix x.
func (g *Geometry) PaddedArea(x Mat) uint64 {
	return uint64(g.Uncoal(x)) * uint64(g.LDX[x])
}

// GFLOPs converts an execution time in seconds to GFLOP/s for this problem.
func (g *Geometry) GFLOPs(seconds float64) float64 {
	return (2.0 * float64(g.M) * float64(g.N) * float64(g.K)) / (1e9 * seconds)
}

// SameTransposes reports whether the layout and all transpose flags agree.
func (g *Geometry) SameTransposes(g2 *Geometry) bool {
	return g.TX == g2.TX && g.IsColMajor == g2.IsColMajor
}

// Equal compares all constructed fields.
func (g *Geometry) Equal(g2 *Geometry) bool {
	return g.IsColMajor == g2.IsColMajor && g.TX == g2.TX && g.LDX == g2.LDX &&
		g.M == g2.M && g.N == g2.N && g.K == g2.K &&
		equalU32s(g.WSpaceSize, g2.WSpaceSize) && g.FloatType == g2.FloatType
}

func equalU32s(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Distance is the metric used for nearest-cache-entry seeding. Geometries
// with differing transposes or layout are infinitely far apart. Otherwise
// it is a weighted sum of |log2| gaps on m, n, k and the leading
// dimensions, plus small discrete penalties for differing alignment
// classes and workspace-sufficiency tiers. Distance(g, g) == 0 except for
// the asymmetric workspace term, which is 0 when the workspace lists are
// equal.
func (g *Geometry) Distance(g2 *Geometry) float64 {
	if !g.SameTransposes(g2) {
		return math.Inf(1)
	}

	d := 0.0
	for i := 0; i < 6; i++ {
		d += math.Abs(g.metricCo[i] - g2.metricCo[i])
	}
	for _, x := range []uint32{2, 4, 8} {
		for _, emat := range []Mat{MatA, MatB, MatC} {
			if (g.LDX[emat]%x == 0) != (g2.LDX[emat]%x == 0) {
				d += 0.2
			}
		}
	}
	for _, x := range []uint32{256, 512, 1024} {
		for _, emat := range []Mat{MatA, MatB, MatC} {
			if residueClass(g.LDX[emat], x) != residueClass(g2.LDX[emat], x) {
				d += 0.2
			}
		}
	}
	for i := range g.wSpaceSufficient {
		if g.wSpaceSufficient[i] != g2.wSpaceSufficient[i] {
			d += 0.2
		}
	}

	if !equalU32s(g.WSpaceSize, g2.WSpaceSize) {
		d += 1e-5
	}
	return d
}

func residueClass(ld, x uint32) uint32 {
	r := ld % x
	if x-r < r {
		r = x - r
	}
	return r % 4
}

// === canonical string form ===

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// String returns the canonical wire form:
// tC<b>_tA<b>_tB<b>_colMaj<b>_m<n>_n<n>_k<n>_lda<n>_ldb<n>_ldc<n>[_ws<n>]*_f<bits>.
func (g Geometry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "tC%d_tA%d_tB%d_colMaj%d_m%d_n%d_k%d_lda%d_ldb%d_ldc%d",
		b2u(g.TX[MatC]), b2u(g.TX[MatA]), b2u(g.TX[MatB]), b2u(g.IsColMajor),
		g.M, g.N, g.K, g.LDX[MatA], g.LDX[MatB], g.LDX[MatC])
	for _, w := range g.WSpaceSize {
		fmt.Fprintf(&sb, "_ws%d", w)
	}
	fmt.Fprintf(&sb, "_f%d", g.FloatType.SizeBits())
	return sb.String()
}

// splitToken splits "lda3072" into ("lda", 3072).
func splitToken(tok string) (string, uint32, error) {
	i := 0
	for i < len(tok) && (tok[i] < '0' || tok[i] > '9') {
		i++
	}
	if i == 0 || i == len(tok) {
		return "", 0, fmt.Errorf("token %q is not <alpha-key><decimal-int>", tok)
	}
	var v uint64
	for _, c := range tok[i:] {
		if c < '0' || c > '9' {
			return "", 0, fmt.Errorf("token %q has a non-numeric tail", tok)
		}
		v = v*10 + uint64(c-'0')
		if v > math.MaxUint32 {
			return "", 0, fmt.Errorf("token %q overflows u32", tok)
		}
	}
	return tok[:i], uint32(v), nil
}

var geometryKeys = []string{"tC", "tA", "tB", "colMaj", "m", "n", "k", "lda", "ldb", "ldc", "f"}

// ParseGeometry parses the canonical string form. All keys except the
// multi-valued ws are required exactly once; unknown keys are rejected.
// Round-trip: ParseGeometry(g.String()) equals g.
func ParseGeometry(s string) (Geometry, error) {
	vals := map[string]uint32{}
	var ws []uint32
	for _, tok := range strings.Split(s, "_") {
		key, val, err := splitToken(tok)
		if err != nil {
			return Geometry{}, fmt.Errorf("%w: %v", ErrBadGeometryString, err)
		}
		if key == "ws" {
			ws = append(ws, val)
			continue
		}
		known := false
		for _, gk := range geometryKeys {
			if gk == key {
				known = true
				break
			}
		}
		if !known {
			return Geometry{}, fmt.Errorf("%w: unrecognised key %q", ErrBadGeometryString, key)
		}
		if _, dup := vals[key]; dup {
			return Geometry{}, fmt.Errorf("%w: key %q appears more than once", ErrBadGeometryString, key)
		}
		vals[key] = val
	}
	for _, gk := range geometryKeys {
		if _, ok := vals[gk]; !ok {
			return Geometry{}, fmt.Errorf("%w: missing required key %q (only ws is optional)", ErrBadGeometryString, gk)
		}
	}

	ft, err := floatTypeFromBits(vals["f"])
	if err != nil {
		return Geometry{}, fmt.Errorf("%w: %v", ErrBadGeometryString, err)
	}
	g, err := NewGeometry(vals["colMaj"] != 0, vals["tA"] != 0, vals["tB"] != 0, vals["tC"] != 0,
		vals["lda"], vals["ldb"], vals["ldc"], vals["m"], vals["n"], vals["k"], ws, ft)
	if err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// === Offsets ===

// Offsets carries base offsets and tail paddings for A, B, C plus per-buffer
// workspace pre- and post-padding. All counts are elements, not bytes.
// Tails exist to catch out-of-bounds kernel writes under test.
type Offsets struct {
	OA, OB, OC uint32
	VWS        []uint32

	TailA, TailB, TailC uint32
	TailVWS             []uint32
}

// NewOffsets validates that the workspace pre- and post-padding lists have
// matching lengths.
func NewOffsets(oa, ob, oc uint32, vws []uint32, ta, tb, tc uint32, tailVWS []uint32) (Offsets, error) {
	if len(vws) != len(tailVWS) {
		return Offsets{}, fmt.Errorf("workspace pre-padding list (len %d) and post-padding list (len %d) are not the same length",
			len(vws), len(tailVWS))
	}
	return Offsets{
		OA: oa, OB: ob, OC: oc, VWS: append([]uint32(nil), vws...),
		TailA: ta, TailB: tb, TailC: tc, TailVWS: append([]uint32(nil), tailVWS...),
	}, nil
}

// PaddingOffsets returns offsets with distinctive non-zero paddings,
// useful for shaking out addressing bugs.
func PaddingOffsets(nWorkspaces int) Offsets {
	pre := make([]uint32, nWorkspaces)
	post := make([]uint32, nWorkspaces)
	for i := range pre {
		pre[i], post[i] = 101, 103
	}
	o, _ := NewOffsets(11, 17, 13, pre, 67, 15, 29, post)
	return o
}

// ZeroOffsets returns all-zero offsets with nWorkspaces workspace slots.
func ZeroOffsets(nWorkspaces int) Offsets {
	z := make([]uint32, nWorkspaces)
	o, _ := NewOffsets(0, 0, 0, z, 0, 0, 0, append([]uint32(nil), z...))
	return o
}

// Offset returns the base offset of matrix x.
func (o *Offsets) Offset(x Mat) uint32 {
	switch x {
	case MatA:
		return o.OA
	case MatB:
		return o.OB
	case MatC:
		return o.OC
	}
	panic("Offset is defined only for A, B and C")
}

// Tail returns the tail padding of matrix x.
func (o *Offsets) Tail(x Mat) uint32 {
	switch x {
	case MatA:
		return o.TailA
	case MatB:
		return o.TailB
	case MatC:
		return o.TailC
	}
	panic("Tail is defined only for A, B and C")
}

// MatSize returns the element count of the host buffer for matrix x:
// padded area plus base offset plus tail.
func MatSize(g *Geometry, toff *Offsets, x Mat) uint64 {
	return g.PaddedArea(x) + uint64(toff.Offset(x)) + uint64(toff.Tail(x))
}

// MatMemSize is MatSize in bytes.
func MatMemSize(g *Geometry, toff *Offsets, x Mat) uint64 {
	return uint64(g.FloatType.SizeBytes()) * MatSize(g, toff, x)
}
