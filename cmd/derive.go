package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gemmtune/gemmtune/gemm"
	"github.com/gemmtune/gemmtune/gemm/codegen"
)

var (
	deriveGeometry    string
	deriveHP          string
	deriveConstraints string
)

func deriveInputs() (gemm.Geometry, gemm.HyperParams, gemm.Constraints) {
	gg, err := gemm.ParseGeometry(deriveGeometry)
	if err != nil {
		logrus.Fatalf("Bad geometry: %v", err)
	}
	hp, err := gemm.ParseHyperParams(deriveHP)
	if err != nil {
		logrus.Fatalf("Bad hyperparams: %v", err)
	}
	wos, err := gemm.ParseConstraints(deriveConstraints)
	if err != nil {
		logrus.Fatalf("Bad constraints: %v", err)
	}
	return gg, hp, wos
}

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Check deriveability of a (geometry, hyperparams) pair and print the launch parameters",
	Run: func(cmd *cobra.Command, args []string) {
		gg, hp, wos := deriveInputs()

		ok, reason := gemm.Deriveability(&gg, hp, wos)
		if !ok {
			fmt.Printf("verdict: false\nreason: %s\n", reason)
			return
		}
		dp, err := gemm.NewDerivedParams(&gg, hp, wos)
		if err != nil {
			logrus.Fatalf("Derivation failed after a true verdict: %v", err)
		}
		fmt.Printf("verdict: true\n")
		fmt.Printf("macro tile: %d x %d\n", dp.At(gemm.MatA).MacroTileLength, dp.At(gemm.MatB).MacroTileLength)
		fmt.Printf("work items per workgroup: %d\n", dp.MainNWorkItemsPerWorkgroup)
		fmt.Printf("work groups: %d\n", dp.MainNWorkGroups)
		fmt.Printf("global work size: %d\n", dp.MainGlobalWorkSize)
		fmt.Printf("split on k: %d\n", dp.MainSplitOnK)
		fmt.Printf("edge trick: %d\n", dp.MainUseEdgeTrick)
	},
}

var emitCmd = &cobra.Command{
	Use:   "emit",
	Short: "Emit the kernel sources for a (geometry, hyperparams) pair",
	Run: func(cmd *cobra.Command, args []string) {
		gg, hp, wos := deriveInputs()

		dp, err := gemm.NewDerivedParams(&gg, hp, wos)
		if err != nil {
			logrus.Fatalf("Not deriveable: %v", err)
		}
		for _, ks := range codegen.All(dp) {
			fmt.Printf("/* ===== %s : local %d, global %d, work per thread %d ===== */\n",
				ks.Name, ks.LocalWorkSize, ks.GlobalWorkSize, ks.WorkPerThread)
			fmt.Println(ks.Source)
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{deriveCmd, emitCmd} {
		c.Flags().StringVar(&deriveGeometry, "geometry", "", "GEMM geometry string")
		c.Flags().StringVar(&deriveHP, "hp", "", "hyperparameter string")
		c.Flags().StringVar(&deriveConstraints, "constraints", "", "constraints string")
		c.MarkFlagRequired("geometry")
		c.MarkFlagRequired("hp")
	}
	rootCmd.AddCommand(deriveCmd)
	rootCmd.AddCommand(emitCmd)
}
