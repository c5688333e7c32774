// Package find implements the guided local search over the hyperparameter
// design space: seed from the kernel cache, enumerate neighbors, benchmark,
// descend on first improvement.
package find

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SummaryStat selects how per-run kernel times are collapsed into the
// single number the search compares.
type SummaryStat int

const (
	Min SummaryStat = iota
	Median
	Mean
	Max
)

func (s SummaryStat) String() string {
	switch s {
	case Min:
		return "min"
	case Median:
		return "median"
	case Mean:
		return "mean"
	case Max:
		return "max"
	}
	return "?"
}

// ParseSummaryStat parses "min", "median", "mean" or "max".
func ParseSummaryStat(s string) (SummaryStat, error) {
	switch s {
	case "min":
		return Min, nil
	case "median":
		return Median, nil
	case "mean":
		return Mean, nil
	case "max":
		return Max, nil
	}
	return Min, fmt.Errorf("summary statistic %q is not one of min, median, mean, max", s)
}

// Aggregate collapses per-run seconds into the selected statistic.
func (s SummaryStat) Aggregate(seconds []float64) float64 {
	switch s {
	case Min:
		return floats.Min(seconds)
	case Max:
		return floats.Max(seconds)
	case Mean:
		return stat.Mean(seconds, nil)
	case Median:
		sorted := append([]float64(nil), seconds...)
		sort.Float64s(sorted)
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	panic("unreachable summary statistic")
}

// Params bounds a search run.
type Params struct {
	// AllottedTime is the wall-clock budget. The seed is always compiled
	// and timed; no other candidate is compiled after the budget has
	// elapsed.
	AllottedTime time.Duration

	// AllottedDescents caps the number of first-improvement descents.
	AllottedDescents uint32

	// NRunsPerKernel is how many times each candidate kernel is timed.
	NRunsPerKernel uint32

	// SummaryStat collapses the per-run times.
	SummaryStat SummaryStat
}

// Validate rejects parameter combinations the driver cannot honor.
func (p Params) Validate() error {
	if p.AllottedDescents == 0 {
		return fmt.Errorf("allotted_descents must be at least 1")
	}
	if p.NRunsPerKernel == 0 {
		return fmt.Errorf("n_runs_per_kernel must be at least 1")
	}
	return nil
}
