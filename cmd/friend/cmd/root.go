package cmd

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	// Global flags
	verbose bool
	trace   bool

	klogFlags = flag.NewFlagSet("klog", flag.ContinueOnError)
)

var rootCmd = &cobra.Command{
	Use:   "friend",
	Short: "JTAG over an FTDI Friend in synchronous bit-bang mode",
	Long: `Drive a JTAG chain through an FT232R based FTDI Friend board in
synchronous bit-bang mode, or through the built-in simulator.

Examples:
  friend interfaces                                   # List FTDI converters
  friend idcode --adapter simulator                   # Read IDCODEs from the simulated chain
  friend run bringup.jtag --stats                     # Run a command script
  friend latency 4                                    # Store the latency timer default`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command
func Execute() {
	defer klog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	klog.InitFlags(klogFlags)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (klog level 2)")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "per-flush tracing (klog level 4)")
	addSessionFlags(rootCmd)
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level := 0
	if verbose {
		level = 2
	}
	if trace {
		level = 4
	}
	return klogFlags.Set("v", strconv.Itoa(level))
}
