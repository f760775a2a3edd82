package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var maxDevices int

var idcodeCmd = &cobra.Command{
	Use:   "idcode",
	Short: "Read the IDCODE of every device in the chain",
	Long: `Reset the TAP controllers and shift the data registers out. Devices that come out
of reset with IDCODE selected report their 32-bit identifier; devices in BYPASS
show up as a single bit.`,
	Args: cobra.NoArgs,
	RunE: runIDCode,
}

func init() {
	idcodeCmd.Flags().IntVar(&maxDevices, "max", 8, "maximum number of devices to look for")
	rootCmd.AddCommand(idcodeCmd)
}

func runIDCode(cmd *cobra.Command, args []string) error {
	if maxDevices <= 0 {
		return fmt.Errorf("--max must be positive, got %d", maxDevices)
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

	entries, err := sess.adapter.ReadIDCodes(maxDevices)
	if err != nil {
		return fmt.Errorf("read IDCODEs: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No devices found (TDO stuck high?)")
		return nil
	}

	fmt.Printf("Found %d device(s), nearest TDO first:\n", len(entries))
	for i, e := range entries {
		if e.Bypass {
			fmt.Printf("  [%d] bypass\n", i)
			continue
		}
		fmt.Printf("  [%d] %s\n", i, e.IDCode)
	}
	return nil
}
