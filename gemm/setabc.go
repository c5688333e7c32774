package gemm

import (
	"fmt"
	"math/rand"
)

// maxFillElements bounds host-side random matrix generation.
const maxFillElements = 20000 * 10000

// fillUni fills v[:rSmall] with uniform values in [-0.5, 0.5) and
// v[rSmall:rBig] with huge values. The huge range marks tail regions, so
// an out-of-bounds kernel write or read is loud in a correctness check.
func fillUni(v []float64, rSmall, rBig int, rng *rand.Rand) error {
	if rSmall > rBig {
		return fmt.Errorf("fillUni with rSmall (%d) > rBig (%d), this seems like an incorrect request", rSmall, rBig)
	}
	if rBig > len(v) {
		return fmt.Errorf("fillUni with rBig (%d) > len(v) (%d)", rBig, len(v))
	}
	for i := 0; i < rSmall; i++ {
		v[i] = float64(rng.Intn(1000))/1000. - 0.5
	}
	for i := rSmall; i < rBig; i++ {
		v[i] = 1e9 * (float64(rng.Intn(1000))/1000. - 0.5)
	}
	return nil
}

// SetABC allocates and fills host buffers for A, B and C. The matrices are
// filled with random floats: integer-valued inputs let a kernel cheat (and
// run faster), so they are useless for benchmarking.
func SetABC(gg *Geometry, toff *Offsets, rng *rand.Rand) (a, b, c []float64, err error) {
	nA := MatSize(gg, toff, MatA)
	nB := MatSize(gg, toff, MatB)
	nC := MatSize(gg, toff, MatC)

	if nA > maxFillElements || nB > maxFillElements || nC > maxFillElements {
		return nil, nil, nil, fmt.Errorf(
			"random matrix generation is limited to %d elements per buffer; geometry %s needs (n_a=%d n_b=%d n_c=%d)",
			maxFillElements, gg.String(), nA, nB, nC)
	}

	a = make([]float64, nA)
	b = make([]float64, nB)
	c = make([]float64, nC)

	if err := fillUni(a, int(nA)-int(toff.TailA), int(nA), rng); err != nil {
		return nil, nil, nil, err
	}
	if err := fillUni(b, int(nB)-int(toff.TailB), int(nB), rng); err != nil {
		return nil, nil, nil, err
	}
	if err := fillUni(c, int(nC)-int(toff.TailC), int(nC), rng); err != nil {
		return nil, nil, nil, err
	}
	return a, b, c, nil
}

// SetABCW is SetABC plus a workspace buffer sized for the geometry's
// scratch plus its pre- and post-paddings.
func SetABCW(gg *Geometry, toff *Offsets, rng *rand.Rand) (a, b, c, w []float64, err error) {
	a, b, c, err = SetABC(gg, toff, rng)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	var nW uint64
	for _, ws := range gg.WSpaceSize {
		nW += uint64(ws)
	}
	for _, o := range toff.VWS {
		nW += uint64(o)
	}
	for _, t := range toff.TailVWS {
		nW += uint64(t)
	}

	w = make([]float64, nW)
	if err := fillUni(w, len(w), len(w), rng); err != nil {
		return nil, nil, nil, nil, err
	}
	return a, b, c, w, nil
}
