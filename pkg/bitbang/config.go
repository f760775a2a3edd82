package bitbang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceFriend/pkg/ftdi"
	"k8s.io/klog/v2"
)

// OverflowPolicy decides what happens when the transmit buffer is full.
type OverflowPolicy int

const (
	// OverflowFlush drains the buffer synchronously so the append succeeds.
	OverflowFlush OverflowPolicy = iota
	// OverflowDrop logs the overflow and drops the byte.
	OverflowDrop
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowFlush:
		return "flush"
	case OverflowDrop:
		return "drop"
	}
	return fmt.Sprintf("OverflowPolicy(%d)", int(p))
}

// ParseOverflowPolicy accepts "flush" or "drop".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(s) {
	case "flush":
		return OverflowFlush, nil
	case "drop":
		return OverflowDrop, nil
	}
	return 0, fmt.Errorf("%w: overflow policy %q", ErrInvalidArgs, s)
}

const (
	MinBufferSize     = 64
	MaxBufferSize     = 16 * 1024
	DefaultBufferSize = MaxBufferSize
	DefaultFrameSize  = 256
	DefaultLatency    = 2
	DefaultSpeedKHz   = 1000
	DefaultMaxStalls  = 64
)

// Config holds the session parameters.
type Config struct {
	VendorID  uint16
	ProductID uint16

	// Latency is the converter's latency timer in milliseconds.
	Latency  uint8
	SpeedKHz int

	BufferSize int
	FrameSize  int
	Overflow   OverflowPolicy

	// SRSTPullsTRST makes a system reset also reset the TAP.
	SRSTPullsTRST bool

	// MaxStalls bounds consecutive flush iterations without progress.
	MaxStalls int
}

// DefaultConfig returns the settings for an FT232R based FTDI Friend.
func DefaultConfig() Config {
	return Config{
		VendorID:   ftdi.VendorIDFTDI,
		ProductID:  ftdi.ProductIDFT232R,
		Latency:    DefaultLatency,
		SpeedKHz:   DefaultSpeedKHz,
		BufferSize: DefaultBufferSize,
		FrameSize:  DefaultFrameSize,
		Overflow:   OverflowFlush,
		MaxStalls:  DefaultMaxStalls,
	}
}

// Validate checks sizes and limits.
func (c Config) Validate() error {
	if c.BufferSize < MinBufferSize || c.BufferSize > MaxBufferSize {
		return fmt.Errorf("%w: buffer size %d outside [%d, %d]", ErrInvalidArgs, c.BufferSize, MinBufferSize, MaxBufferSize)
	}
	if c.BufferSize&(c.BufferSize-1) != 0 {
		return fmt.Errorf("%w: buffer size %d is not a power of two", ErrInvalidArgs, c.BufferSize)
	}
	if c.FrameSize <= 0 {
		return fmt.Errorf("%w: frame size %d", ErrInvalidArgs, c.FrameSize)
	}
	if c.SpeedKHz <= 0 {
		return fmt.Errorf("%w: speed %d kHz", ErrInvalidArgs, c.SpeedKHz)
	}
	if c.MaxStalls <= 0 {
		return fmt.Errorf("%w: max stalls %d", ErrInvalidArgs, c.MaxStalls)
	}
	if c.Overflow != OverflowFlush && c.Overflow != OverflowDrop {
		return fmt.Errorf("%w: %s", ErrInvalidArgs, c.Overflow)
	}
	return nil
}

// ParseLatencyArgs parses the arguments of the latency configuration
// command: exactly one integer in [0, 255].
func ParseLatencyArgs(args []string) (uint8, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: latency takes exactly one argument, got %d", ErrInvalidArgs, len(args))
	}
	v, err := strconv.ParseUint(strings.TrimSpace(args[0]), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: latency %q: must be an integer in [0, 255]", ErrInvalidArgs, args[0])
	}
	return uint8(v), nil
}

// ConfigureLatency applies the latency configuration command. Invalid
// arguments are logged and leave the configuration unchanged.
func (c *Config) ConfigureLatency(args []string) error {
	ms, err := ParseLatencyArgs(args)
	if err != nil {
		klog.Errorf("%v", err)
		return err
	}
	c.Latency = ms
	return nil
}
