package cmd

import (
	"fmt"
	"os"

	"github.com/OpenTraceLab/OpenTraceFriend/pkg/script"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var showStats bool

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Execute a JTAG command script",
	Long: `Compile a command script and execute it against the adapter. Scan fields marked
with "capture" are printed after the script completes.

Script example:
  reset 1 0
  reset 0 0
  runtest 5 end IDLE
  scan ir 4 0x1 end IDLE
  scan dr 32 0xffffffff capture
  flush`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	runCmd.Flags().BoolVar(&showStats, "stats", false, "print transport counters after the run")
	rootCmd.AddCommand(runCmd)
}

func runScript(cmd *cobra.Command, args []string) error {
	prog, err := script.Load(args[0])
	if err != nil {
		return err
	}

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			klog.Warningf("close: %v", err)
		}
	}()

	klog.V(2).Infof("running %s: %d steps", args[0], len(prog.Steps))
	if err := prog.Run(sess.driver); err != nil {
		return err
	}

	prog.WriteCaptures(os.Stdout)

	if showStats {
		return printStats(sess)
	}
	return nil
}

func printStats(sess *session) error {
	families, err := sess.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	fmt.Println("Transport statistics:")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fmt.Printf("  %-36s %.0f\n", mf.GetName(), m.GetCounter().GetValue())
		}
	}
	return nil
}
