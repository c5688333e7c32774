package find

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gemmtune/gemmtune/gemm"
	"github.com/gemmtune/gemmtune/gemm/codegen"
)

// Options carries the optional inputs of a search run.
type Options struct {
	// Constraints restricts the kernel family; "" means unrestricted.
	Constraints string

	// ForcedHP, when non-empty, replaces the cache-seeded starting point.
	ForcedHP string

	// EnforceDeterministic pins ICE to 1 on every candidate, so the
	// returned kernel is bit-reproducible.
	EnforceDeterministic bool

	// Seed drives neighbor shuffling; equal seeds enumerate candidates in
	// the same order.
	Seed int64
}

// Solution is the result of a search run.
type Solution struct {
	Geometry gemm.Geometry
	HP       gemm.HyperParams
	Kernels  []gemm.KernelString
	TimeS    float64
	GFLOPs   float64
	Trace    *Trace
}

// HPKey returns the canonical hyperparameter string of the solution.
func (s *Solution) HPKey() string { return s.HP.String() }

// Run executes the guided local search. It is single-threaded cooperative:
// one candidate is compiled and benchmarked at a time, and the deadline is
// checked between candidates. Soft failures (non-deriveable candidates,
// compiler rejections) are ordinary control flow; Run fails only on hard
// errors, including a non-deriveable or non-compilable seed.
func Run(rt gemm.Runtime, gg gemm.Geometry, toff gemm.Offsets, p Params, opts Options) (Solution, error) {
	if err := p.Validate(); err != nil {
		return Solution{}, err
	}
	wos, err := gemm.ParseConstraints(opts.Constraints)
	if err != nil {
		return Solution{}, err
	}
	if err := rt.EnsureBuffers(&gg, &toff); err != nil {
		return Solution{}, fmt.Errorf("binding device buffers: %w", err)
	}

	rng := gemm.NewRandSource(opts.Seed)

	var seed gemm.HyperParams
	if opts.ForcedHP != "" {
		seed, err = gemm.ParseHyperParams(opts.ForcedHP)
		if err != nil {
			return Solution{}, err
		}
		if opts.EnforceDeterministic {
			seed.NWorkItemsPerCElm = 1
		}
	} else {
		seed = gemm.DefaultHyperParams(rt.DeviceIdentifier(), opts.Constraints, &gg, opts.EnforceDeterministic)
	}

	trace := &Trace{}
	start := time.Now()

	best, err := evaluate(rt, &gg, seed, wos, p)
	if err != nil {
		return Solution{}, fmt.Errorf("the seed kernel %s failed: %w", seed.String(), err)
	}
	best.Trace = trace
	trace.add(CandidateRecord{Descent: -1, HPKey: seed.String(), Verdict: true, TimeS: best.TimeS, GFLOPs: best.GFLOPs})
	logrus.Infof("seed %s : %.1f gflop/s", seed.String(), best.GFLOPs)

	for descent := 0; descent < int(p.AllottedDescents); descent++ {
		if time.Since(start) > p.AllottedTime {
			logrus.Infof("allotted time exhausted before descent %d, returning best so far", descent)
			return best, nil
		}

		neighbors, err := best.HP.OneAways(&gg, rng.Descent(descent))
		if err != nil {
			// tiny problems have no neighbor graph; the seed stands
			logrus.Debugf("no neighbor graph: %v", err)
			return best, nil
		}

		improved := false
		for _, cand := range neighbors {
			if time.Since(start) > p.AllottedTime {
				logrus.Infof("allotted time exhausted in descent %d, returning best so far", descent)
				return best, nil
			}
			if opts.EnforceDeterministic {
				cand.NWorkItemsPerCElm = 1
			}
			if cand == best.HP {
				continue
			}

			ok, reason := gemm.Deriveability(&gg, cand, wos)
			if !ok {
				trace.add(CandidateRecord{Descent: descent, HPKey: cand.String(), Verdict: false, Reason: reason})
				continue
			}

			sol, err := evaluate(rt, &gg, cand, wos, p)
			if err != nil {
				logrus.Warnf("candidate %s skipped: %v", cand.String(), err)
				trace.add(CandidateRecord{Descent: descent, HPKey: cand.String(), Verdict: true, Reason: err.Error()})
				continue
			}

			rec := CandidateRecord{Descent: descent, HPKey: cand.String(), Verdict: true, TimeS: sol.TimeS, GFLOPs: sol.GFLOPs}
			if sol.GFLOPs > best.GFLOPs {
				rec.Improved = true
				trace.add(rec)
				sol.Trace = trace
				best = sol
				improved = true
				logrus.Infof("descent %d : improved to %s : %.1f gflop/s", descent, cand.String(), best.GFLOPs)
				break
			}
			trace.add(rec)
		}

		if !improved {
			logrus.Infof("descent %d : no improving neighbor, search converged", descent)
			break
		}
	}

	return best, nil
}

// evaluate generates, compiles and benchmarks one candidate, returning its
// aggregated time and gflops.
func evaluate(rt gemm.Runtime, gg *gemm.Geometry, hp gemm.HyperParams, wos gemm.Constraints, p Params) (Solution, error) {
	dp, err := gemm.NewDerivedParams(gg, hp, wos)
	if err != nil {
		return Solution{}, err
	}
	kernels := codegen.All(dp)

	compiled := make([]gemm.Kernel, 0, len(kernels))
	for _, ks := range kernels {
		k, err := rt.Compile(ks)
		if err != nil {
			return Solution{}, fmt.Errorf("compiling %s: %w", ks.Name, err)
		}
		compiled = append(compiled, k)
	}

	// per-run totals across the kernel pipeline
	totals := make([]float64, p.NRunsPerKernel)
	for i, k := range compiled {
		times, err := k.Benchmark(p.NRunsPerKernel)
		if err != nil {
			return Solution{}, fmt.Errorf("benchmarking %s: %w", kernels[i].Name, err)
		}
		if len(times) != int(p.NRunsPerKernel) {
			return Solution{}, fmt.Errorf("runtime returned %d timings for %s, want %d", len(times), kernels[i].Name, p.NRunsPerKernel)
		}
		for r, t := range times {
			totals[r] += t
		}
	}

	timeS := p.SummaryStat.Aggregate(totals)
	return Solution{
		Geometry: *gg,
		HP:       hp,
		Kernels:  kernels,
		TimeS:    timeS,
		GFLOPs:   gg.GFLOPs(timeS),
	}, nil
}
