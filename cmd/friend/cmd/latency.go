package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceFriend/internal/config"
	"github.com/OpenTraceLab/OpenTraceFriend/pkg/bitbang"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var latencyCmd = &cobra.Command{
	Use:   "latency <ms>",
	Short: "Store the latency timer used for new sessions",
	Long: `Set the FTDI latency timer, in milliseconds, that later sessions program into the
converter. The value must be a single integer between 0 and 255; anything else is
reported and the stored configuration is left unchanged.`,
	Args: cobra.ArbitraryArgs,
	RunE: runLatency,
}

func init() {
	rootCmd.AddCommand(latencyCmd)
}

func runLatency(cmd *cobra.Command, args []string) error {
	ms, err := bitbang.ParseLatencyArgs(args)
	if err != nil {
		klog.Errorf("latency: %v", err)
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Latency = &ms
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	path, _ := config.Path()
	fmt.Printf("Latency timer set to %d ms (%s)\n", ms, path)
	return nil
}
