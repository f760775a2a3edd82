package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceFriend/internal/config"
	"github.com/OpenTraceLab/OpenTraceFriend/pkg/bitbang"
	"github.com/OpenTraceLab/OpenTraceFriend/pkg/ftdi"
	"github.com/OpenTraceLab/OpenTraceFriend/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceFriend/pkg/tap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	adapterType   string
	vendorID      string
	productID     string
	latencyMS     uint8
	speedKHz      int
	overflow      string
	srstPullsTRST bool
	simIDCodes    []string
)

func addSessionFlags(c *cobra.Command) {
	f := c.PersistentFlags()
	f.StringVarP(&adapterType, "adapter", "a", "ftdi", "adapter type (ftdi, simulator)")
	f.StringVar(&vendorID, "vid", "0x0403", "USB vendor ID")
	f.StringVar(&productID, "pid", "0x6001", "USB product ID")
	f.Uint8Var(&latencyMS, "latency", bitbang.DefaultLatency, "latency timer in ms")
	f.IntVar(&speedKHz, "speed", bitbang.DefaultSpeedKHz, "TCK byte rate in kHz")
	f.StringVar(&overflow, "overflow", "flush", "full transmit buffer policy (flush, drop)")
	f.BoolVar(&srstPullsTRST, "srst-pulls-trst", false, "system reset also resets the TAP")
	f.StringSliceVar(&simIDCodes, "sim-ids", nil,
		"simulator: IDCODEs in the chain, nearest TDO first (hex, 0 for a BYPASS-only part)")
}

// session bundles an open driver with its adapter and metrics.
type session struct {
	driver   *bitbang.Driver
	adapter  *jtag.BitbangAdapter
	registry *prometheus.Registry
	sim      *bitbang.SimDevice
}

func (s *session) Close() error {
	return s.driver.Close()
}

// sessionConfig merges the config file with explicitly set flags.
func sessionConfig(c *cobra.Command) (bitbang.Config, string, error) {
	stored, err := config.Load()
	if err != nil {
		return bitbang.Config{}, "", fmt.Errorf("load config: %w", err)
	}
	cfg, err := stored.Session()
	if err != nil {
		return cfg, "", fmt.Errorf("config file: %w", err)
	}
	kind := stored.Adapter
	if kind == "" || c.Flags().Changed("adapter") {
		kind = adapterType
	}

	flags := c.Flags()
	if flags.Changed("vid") {
		if cfg.VendorID, err = parseID(vendorID); err != nil {
			return cfg, "", err
		}
	}
	if flags.Changed("pid") {
		if cfg.ProductID, err = parseID(productID); err != nil {
			return cfg, "", err
		}
	}
	if flags.Changed("latency") {
		cfg.Latency = latencyMS
	}
	if flags.Changed("speed") {
		cfg.SpeedKHz = speedKHz
	}
	if flags.Changed("overflow") {
		if cfg.Overflow, err = bitbang.ParseOverflowPolicy(overflow); err != nil {
			return cfg, "", err
		}
	}
	if flags.Changed("srst-pulls-trst") {
		cfg.SRSTPullsTRST = srstPullsTRST
	}
	return cfg, kind, cfg.Validate()
}

func openSession(c *cobra.Command) (*session, error) {
	cfg, kind, err := sessionConfig(c)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	metrics := bitbang.WithMetrics(bitbang.NewMetrics(reg))
	s := &session{registry: reg}

	switch strings.ToLower(kind) {
	case "sim", string(ftdi.InterfaceKindSim):
		targets, err := simTargets(simIDCodes)
		if err != nil {
			return nil, err
		}
		s.sim = bitbang.NewSimDevice(targets...)
		s.driver, err = bitbang.New(s.sim, tap.NewStateMachine(), cfg, metrics)
		if err != nil {
			return nil, err
		}
	case string(ftdi.InterfaceKindFTDI):
		s.driver, err = bitbang.Open(cfg, tap.NewStateMachine(), metrics)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown adapter type %q (ftdi, simulator)", kind)
	}

	info := jtag.FTDIFriendInfo()
	if s.sim != nil {
		info.Name = "FTDI Friend (simulated)"
	}
	s.adapter = jtag.NewBitbangAdapter(s.driver, info)
	return s, nil
}

func parseID(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid USB ID %q: %w", s, err)
	}
	return uint16(v), nil
}

// simTargets builds the simulated chain. Without IDs it is a single ARM
// JTAG-DP.
func simTargets(ids []string) ([]bitbang.SimTarget, error) {
	if len(ids) == 0 {
		return []bitbang.SimTarget{{IDCode: 0x4BA00477}}, nil
	}
	targets := make([]bitbang.SimTarget, 0, len(ids))
	for _, s := range ids {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid IDCODE %q: %w", s, err)
		}
		targets = append(targets, bitbang.SimTarget{IDCode: uint32(v)})
	}
	return targets, nil
}
