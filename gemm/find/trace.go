package find

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CandidateRecord captures one candidate evaluation.
type CandidateRecord struct {
	Descent  int
	HPKey    string
	Verdict  bool
	Reason   string // phase-1 rejection or compile failure, empty otherwise
	TimeS    float64
	GFLOPs   float64
	Improved bool
}

// Trace is the per-candidate log of a search run.
type Trace struct {
	Records []CandidateRecord
}

func (t *Trace) add(r CandidateRecord) {
	t.Records = append(t.Records, r)
}

// TraceSummary aggregates a search trace.
type TraceSummary struct {
	NCandidates      int
	NRejected        int // phase-1 verdicts false
	NCompileFailures int
	NBenchmarked     int
	NImprovements    int
	BestGFLOPs       float64
	MeanGFLOPs       float64
}

// Summarize computes aggregate statistics from a Trace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(t *Trace) *TraceSummary {
	summary := &TraceSummary{}
	if t == nil {
		return summary
	}

	summary.NCandidates = len(t.Records)
	var gflops []float64
	for _, r := range t.Records {
		switch {
		case !r.Verdict && r.Reason != "":
			summary.NRejected++
		case r.Verdict && r.Reason != "":
			summary.NCompileFailures++
		case r.Verdict:
			summary.NBenchmarked++
			gflops = append(gflops, r.GFLOPs)
		}
		if r.Improved {
			summary.NImprovements++
		}
	}
	if len(gflops) > 0 {
		summary.BestGFLOPs = floats.Max(gflops)
		summary.MeanGFLOPs = stat.Mean(gflops, nil)
	}
	return summary
}
