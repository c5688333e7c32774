// cmd/root.go
package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gemmtune/gemmtune/gemm"
	"github.com/gemmtune/gemmtune/gemm/find"
	"github.com/gemmtune/gemmtune/gemm/simrt"
)

var (
	geometryString string
	configPath     string
	constraints    string
	forcedHP       string
	deterministic  bool
	allottedTimeS  float64
	descents       uint32
	runsPerKernel  uint32
	summaryStat    string
	seed           int64
	device         string
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "gemmtune",
	Short: "Autotuning code generator for dense GEMM kernels",
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Search for a fast kernel for one GEMM geometry",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if configPath != "" {
			applyFindConfig(configPath)
		}
		if geometryString == "" {
			logrus.Fatal("a geometry is required: pass --geometry or a --config file")
		}

		gg, err := gemm.ParseGeometry(geometryString)
		if err != nil {
			logrus.Fatalf("Bad geometry: %v", err)
		}
		stat, err := find.ParseSummaryStat(summaryStat)
		if err != nil {
			logrus.Fatalf("Bad summary statistic: %v", err)
		}
		rt, err := simrt.New(device)
		if err != nil {
			logrus.Fatalf("No such device: %v", err)
		}

		params := find.Params{
			AllottedTime:     time.Duration(allottedTimeS * float64(time.Second)),
			AllottedDescents: descents,
			NRunsPerKernel:   runsPerKernel,
			SummaryStat:      stat,
		}
		opts := find.Options{
			Constraints:          constraints,
			ForcedHP:             forcedHP,
			EnforceDeterministic: deterministic,
			Seed:                 seed,
		}
		logrus.Infof("Starting find on %s : %s, budget %.1fs / %d descents / %d runs per kernel (%s)",
			device, gg.String(), allottedTimeS, descents, runsPerKernel, stat)

		toff := gemm.ZeroOffsets(len(gg.WSpaceSize))
		soln, err := find.Run(rt, gg, toff, params, opts)
		if err != nil {
			logrus.Fatalf("Find failed: %v", err)
		}

		summary := find.Summarize(soln.Trace)
		logrus.Infof("candidates: %d benchmarked, %d rejected, %d compile failures, %d improvements",
			summary.NBenchmarked, summary.NRejected, summary.NCompileFailures, summary.NImprovements)
		logrus.Infof("best kernel: %s", soln.HPKey())
		logrus.Infof("best time: %.3f ms (%.1f gflop/s)", 1e3*soln.TimeS, soln.GFLOPs)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	findCmd.Flags().StringVar(&geometryString, "geometry", "", "GEMM geometry string (tC0_tA1_..._f32)")
	findCmd.Flags().StringVar(&configPath, "config", "", "YAML find configuration file")
	findCmd.Flags().StringVar(&constraints, "constraints", "", "constraints string (e.g. A_WOS1__B_WOS2); empty = unrestricted")
	findCmd.Flags().StringVar(&forcedHP, "force-hp", "", "hyperparameter string to seed from, overriding the cache")
	findCmd.Flags().BoolVar(&deterministic, "deterministic", false, "only consider deterministic kernels (ICE = 1)")
	findCmd.Flags().Float64Var(&allottedTimeS, "time", 30.0, "search budget in seconds")
	findCmd.Flags().Uint32Var(&descents, "descents", 8, "maximum number of descents")
	findCmd.Flags().Uint32Var(&runsPerKernel, "runs", 3, "timed runs per candidate kernel")
	findCmd.Flags().StringVar(&summaryStat, "stat", "max", "summary statistic over runs (min, median, mean, max)")
	findCmd.Flags().Int64Var(&seed, "seed", 1011, "random seed for neighbor shuffling")
	findCmd.Flags().StringVar(&device, "device", gemm.DefaultDeviceID, "simulated device to tune on")
	findCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(findCmd)
}
