package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gemmtune/gemmtune/gemm"
)

var (
	cacheGeometry      string
	cacheDevice        string
	cacheConstraints   string
	cacheDeterministic bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "List the kernel cache, or look up the default kernel for a geometry",
	Run: func(cmd *cobra.Command, args []string) {
		if cacheGeometry == "" {
			for i, e := range gemm.KernelCache() {
				fmt.Printf("%3d  %-12s %-12q %s -> %s\n", i, e.Device, e.Constraints, e.GeometryKey, e.HPKey)
			}
			return
		}

		gg, err := gemm.ParseGeometry(cacheGeometry)
		if err != nil {
			logrus.Fatalf("Bad geometry: %v", err)
		}
		hp := gemm.DefaultHyperParams(cacheDevice, cacheConstraints, &gg, cacheDeterministic)
		fmt.Println(hp.String())
	},
}

func init() {
	cacheCmd.Flags().StringVar(&cacheGeometry, "geometry", "", "geometry to look up; omit to list all entries")
	cacheCmd.Flags().StringVar(&cacheDevice, "device", gemm.DefaultDeviceID, "device identifier")
	cacheCmd.Flags().StringVar(&cacheConstraints, "constraints", "", "constraints string")
	cacheCmd.Flags().BoolVar(&cacheDeterministic, "deterministic", false, "clamp the result to ICE = 1")
	rootCmd.AddCommand(cacheCmd)
}
