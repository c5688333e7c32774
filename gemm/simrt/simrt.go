// Package simrt provides an analytical implementation of the gemm.Runtime
// boundary: kernels are "compiled" by inspection and "timed" with a
// roofline model (peak FLOP/s against effective memory bandwidth, scaled
// by an occupancy estimate). It exists so the search driver can run end to
// end without a GPU, with timings that respond plausibly to tile shape,
// workgroup size and k-splitting.
package simrt

import (
	"fmt"
	"strings"

	"github.com/gemmtune/gemmtune/gemm"
)

// --- Hardware Data Structures ---

type HardwareCalib struct {
	TFlopsEff       float64 // Tera (10^12) FLOP/s
	BwEffTBs        float64 // in TB/s
	TOverheadMicros float64 // per-launch overheads unaccounted for
	WavefrontSize   uint64
	NComputeUnits   float64
}

var HardwareList = map[string]HardwareCalib{
	"Fiji": {
		TFlopsEff:       8.2,
		BwEffTBs:        0.512 * 0.72,
		TOverheadMicros: 8.0,
		WavefrontSize:   64,
		NComputeUnits:   64,
	},
	"Vega10": {
		TFlopsEff:       12.6,
		BwEffTBs:        0.484 * 0.72,
		TOverheadMicros: 8.0,
		WavefrontSize:   64,
		NComputeUnits:   64,
	},
}

// Runtime is a simulated device.
type Runtime struct {
	device string
	hw     HardwareCalib

	gg   *gemm.Geometry
	toff *gemm.Offsets
}

// New returns a simulated runtime for a device in HardwareList.
func New(device string) (*Runtime, error) {
	hw, ok := HardwareList[device]
	if !ok {
		return nil, fmt.Errorf("device %q is not in the simulated hardware list", device)
	}
	return &Runtime{device: device, hw: hw}, nil
}

// DeviceIdentifier implements gemm.Runtime.
func (r *Runtime) DeviceIdentifier() string { return r.device }

// EnsureBuffers implements gemm.Runtime. The simulated device has no
// memory; it records the problem so kernel timing can see it, and applies
// the same sizing checks a real allocation would.
func (r *Runtime) EnsureBuffers(gg *gemm.Geometry, toff *gemm.Offsets) error {
	for _, x := range []gemm.Mat{gemm.MatA, gemm.MatB, gemm.MatC} {
		if gemm.MatSize(gg, toff, x) == 0 {
			return fmt.Errorf("matrix %s has a zero-sized buffer", x)
		}
	}
	r.gg = gg
	r.toff = toff
	return nil
}

// Compile implements gemm.Runtime. The "compiler" accepts any source that
// declares a kernel with the expected entry point; everything else is a
// CompileFailure to the search.
func (r *Runtime) Compile(ks gemm.KernelString) (gemm.Kernel, error) {
	if r.gg == nil {
		return nil, fmt.Errorf("no buffers bound; EnsureBuffers must run before Compile")
	}
	if !strings.Contains(ks.Source, "__kernel void "+ks.Name) {
		return nil, fmt.Errorf("source does not define __kernel void %s", ks.Name)
	}
	if ks.LocalWorkSize == 0 || ks.GlobalWorkSize%ks.LocalWorkSize != 0 {
		return nil, fmt.Errorf("bad launch geometry: global %d is not a multiple of local %d", ks.GlobalWorkSize, ks.LocalWorkSize)
	}
	return &kernel{rt: r, ks: ks}, nil
}

type kernel struct {
	rt *Runtime
	ks gemm.KernelString
}

// Benchmark implements gemm.Kernel. The model is deterministic: every run
// of the same kernel on the same problem reports the same time.
func (k *kernel) Benchmark(nRuns uint32) ([]float64, error) {
	if nRuns == 0 {
		return nil, fmt.Errorf("benchmark of %s requested with 0 runs", k.ks.Name)
	}
	t := k.rt.modelSeconds(k.ks)
	out := make([]float64, nRuns)
	for i := range out {
		out[i] = t
	}
	return out, nil
}

// modelSeconds is the roofline step: compute-bound time against
// memory-bound time, the slower wins, plus a fixed launch overhead.
func (r *Runtime) modelSeconds(ks gemm.KernelString) float64 {
	overhead := r.hw.TOverheadMicros * 1e-6

	if strings.HasPrefix(ks.Name, "gemm_main") {
		gg := r.gg
		flops := 2.0 * float64(gg.M) * float64(gg.N) * float64(gg.K)
		bytes := float64(gg.FloatType.SizeBytes()) *
			(float64(gg.M)*float64(gg.K) + float64(gg.K)*float64(gg.N) + 2*float64(gg.M)*float64(gg.N))

		tCompute := flops / (r.hw.TFlopsEff * 1e12 * r.mainEfficiency(ks))
		tMemory := bytes / (r.hw.BwEffTBs * 1e12)
		if tMemory > tCompute {
			return tMemory + overhead
		}
		return tCompute + overhead
	}

	// byline kernels are pure bandwidth: one read and one write per element
	elements := float64(ks.GlobalWorkSize) * float64(ks.WorkPerThread)
	bytes := 2 * elements * float64(r.gg.FloatType.SizeBytes())
	return bytes/(r.hw.BwEffTBs*1e12) + overhead
}

// mainEfficiency estimates how much of peak the main kernel reaches from
// its launch descriptor alone.
func (r *Runtime) mainEfficiency(ks gemm.KernelString) float64 {
	eff := 0.9

	// partial wavefronts waste lanes
	if ks.LocalWorkSize%r.hw.WavefrontSize != 0 {
		occupied := float64(ks.LocalWorkSize % r.hw.WavefrontSize)
		eff *= 0.5 + 0.5*(occupied/float64(r.hw.WavefrontSize))
	}

	// register-level ILP grows with the micro tile, saturating at 32
	// elements per work item
	ilp := float64(ks.WorkPerThread)
	if ilp > 32 {
		ilp = 32
	}
	eff *= 0.35 + 0.65*(ilp/32.0)

	// too few workgroups leave compute units idle
	nGroups := float64(ks.GlobalWorkSize / ks.LocalWorkSize)
	if nGroups < r.hw.NComputeUnits {
		eff *= nGroups / r.hw.NComputeUnits
	}

	// very large workgroups limit concurrent wavefronts
	if ks.LocalWorkSize > 256 {
		eff *= 256.0 / float64(ks.LocalWorkSize)
	}

	return eff
}
