package bitbang

import (
	"errors"
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceFriend/pkg/ftdi"
	"github.com/OpenTraceLab/OpenTraceFriend/pkg/tap"
	"k8s.io/klog/v2"
)

// Device is the converter as seen by the driver. *ftdi.Device and *SimDevice
// implement it.
type Device interface {
	EnableSyncBitbang(mask byte) error
	SetLatencyTimer(ms uint8) error
	SetClock(hz int) error
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	Close() error
}

// TAP is the state tracking service. The driver reads the current and end
// states and commits a new state only after the matching signals are queued.
// *tap.StateMachine implements it.
type TAP interface {
	State() tap.State
	SetState(s tap.State)
	EndState() tap.State
	SetEndState(s tap.State) error
	NextState(current tap.State, tms bool) tap.State
	Path(from, to tap.State) (pattern uint8, count int, err error)
}

// Sleeper waits for real time to pass.
type Sleeper interface {
	Sleep(d time.Duration)
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(time.Duration)

func (f SleeperFunc) Sleep(d time.Duration) { f(d) }

// Scanner shifts IR/DR scan commands through the byte stream.
type Scanner interface {
	Scan(s ByteStream, t TAP, cmd ScanCommand) error
}

// Option customizes a Driver.
type Option func(*Driver)

// WithSleeper replaces time.Sleep for sleep commands and delays.
func WithSleeper(s Sleeper) Option {
	return func(d *Driver) { d.sleeper = s }
}

// WithScanner installs the scan layer used for scan commands.
func WithScanner(s Scanner) Option {
	return func(d *Driver) { d.scanner = s }
}

// WithMetrics shares a metrics set across sessions.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// Driver is one open bit-bang session: the device handle plus the transmit
// and receive buffers. It is not safe for concurrent use.
type Driver struct {
	cfg Config
	dev Device
	tap TAP

	tx    *Buffer
	rx    *Buffer
	frame []byte

	resets   ResetLines
	speedKHz int

	sleeper Sleeper
	scanner Scanner
	metrics *Metrics
}

var openDevice = func(vid, pid uint16) (Device, error) {
	dev, err := ftdi.Open(vid, pid)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// Open claims the converter named by cfg and configures it for synchronous
// bit-bang.
func Open(cfg Config, t TAP, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dev, err := openDevice(cfg.VendorID, cfg.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to open USB device: %w", err)
	}
	return New(dev, t, cfg, opts...)
}

// New configures an already opened device and takes ownership of it. The
// device is closed when configuration fails.
func New(dev Device, t TAP, cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		dev.Close()
		return nil, err
	}

	d := &Driver{
		cfg:     cfg,
		dev:     dev,
		tap:     t,
		tx:      NewBuffer(cfg.BufferSize),
		rx:      NewBuffer(cfg.BufferSize),
		frame:   make([]byte, cfg.FrameSize),
		sleeper: SleeperFunc(time.Sleep),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(nil)
	}

	if err := dev.EnableSyncBitbang(OutputMask); err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to enable bit-bang mode: %w", err)
	}
	if err := dev.SetLatencyTimer(cfg.Latency); err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to set latency timer: %w", err)
	}
	if err := dev.SetClock(cfg.SpeedKHz * 1000); err != nil {
		dev.Close()
		return nil, fmt.Errorf("failed to set default speed: %w", err)
	}
	d.speedKHz = cfg.SpeedKHz

	klog.V(2).Infof("bitbang: session open, latency %d ms, %d kHz, %d byte buffers, %s on overflow",
		cfg.Latency, cfg.SpeedKHz, cfg.BufferSize, cfg.Overflow)
	return d, nil
}

// Close releases the device. Closing twice is a no-op.
func (d *Driver) Close() error {
	if d.dev == nil {
		return nil
	}
	err := d.dev.Close()
	d.dev = nil
	d.tx.Reset()
	d.rx.Reset()
	klog.V(2).Infof("bitbang: session closed")
	return err
}

// SetScanner installs the scan layer after construction, for scan layers
// that need the session themselves.
func (d *Driver) SetScanner(s Scanner) { d.scanner = s }

// Config returns the session configuration.
func (d *Driver) Config() Config { return d.cfg }

// TAP returns the state service the driver reports to.
func (d *Driver) TAP() TAP { return d.tap }

// Pending returns the encoded bytes waiting to be flushed.
func (d *Driver) Pending() []byte { return d.tx.Bytes() }

// ConfigureLatency applies the latency configuration command, pushing the
// new value to the device when one is open.
func (d *Driver) ConfigureLatency(args []string) error {
	if err := d.cfg.ConfigureLatency(args); err != nil {
		return err
	}
	if d.dev == nil {
		return nil
	}
	if err := d.dev.SetLatencyTimer(d.cfg.Latency); err != nil {
		klog.Warningf("bitbang: set latency timer: %v", err)
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// Enqueue appends one encoded byte to the transmit buffer. A full buffer is
// flushed first under OverflowFlush; under OverflowDrop the byte is dropped
// and ErrOverflow returned. When the automatic flush fails b is discarded
// along with the rest of the buffer, so no partial pulse survives it.
func (d *Driver) Enqueue(b byte) error {
	if d.tx.Full() {
		if d.cfg.Overflow == OverflowDrop {
			d.metrics.OverflowDrops.Inc()
			klog.Warningf("bitbang: transmit buffer full (%d bytes), dropping 0x%02X", d.tx.Cap(), b)
			return ErrOverflow
		}
		if err := d.Flush(); err != nil {
			return err
		}
	}
	d.tx.Append(b)
	return nil
}

// put enqueues b, treating a dropped byte as already reported.
func (d *Driver) put(b byte) error {
	if err := d.Enqueue(b); err != nil && !errors.Is(err, ErrOverflow) {
		return err
	}
	return nil
}

func (d *Driver) emit(tck, tms, tdi, sample bool) error {
	return d.put(Encode(tck, tms, tdi, sample, d.resets))
}

// clock queues one two-phase TCK cycle.
func (d *Driver) clock(tms, tdi, sample bool) error {
	for _, b := range Pulse(tms, tdi, sample, d.resets) {
		if err := d.put(b); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) idle() error {
	return d.put(Idle(d.resets))
}
