// Command-line interface to catvol.
// Provides the HTTP server plus offline commands acting directly on the stores.

package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/janelia-flyem/catvol/catvol"
	"github.com/janelia-flyem/catvol/server"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Run in verbose mode if true.
	runVerbose bool

	// Profile CPU usage using standard gotest system.
	cpuprofile string

	// Number of logical CPUs to use.
	useCPU int
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "catvol",
		Short:   "catvol serves CATMAID segmentation, tiles and node queries",
		Version: server.Version,
		Long: `catvol holds component trees, segmentation volumes and image tiles for
CATMAID stacks in a key-value store and answers the segmentation, tile and
tracing requests of the CATMAID client over HTTP.

Every command takes the server TOML configuration as its first argument.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if runVerbose {
				catvol.SetLogMode(catvol.DebugMode)
			}
			if useCPU > 0 {
				runtime.GOMAXPROCS(useCPU)
			}
			if cpuprofile != "" {
				f, err := os.Create(cpuprofile)
				if err != nil {
					return err
				}
				return pprof.StartCPUProfile(f)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if cpuprofile != "" {
				pprof.StopCPUProfile()
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&runVerbose, "verbose", "v", false, "Run in verbose mode")
	rootCmd.PersistentFlags().StringVar(&cpuprofile, "cpuprofile", "", "Write CPU profile to this file")
	rootCmd.PersistentFlags().IntVar(&useCPU, "numcpu", 0, "Number of logical CPUs to use")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(buildVolumeCmd())
	rootCmd.AddCommand(importComponentsCmd())
	rootCmd.AddCommand(importSectionCmd())
	rootCmd.AddCommand(aboutCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint("ERROR"), err)
		os.Exit(1)
	}
}
