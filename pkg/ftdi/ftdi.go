// Package ftdi talks to FTDI USB serial converters through gousb. It covers
// the subset the bit-bang JTAG driver needs: vendor control requests for
// reset, bit mode, latency timer and baud rate, plus bulk transfers with the
// modem-status header stripped from every IN packet.
package ftdi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
	"k8s.io/klog/v2"
)

const (
	VendorIDFTDI    = 0x0403
	ProductIDFT232R = 0x6001

	// Vendor request type, host to device.
	requestTypeOut = 0x40

	// SIO requests.
	sioReset           = 0x00
	sioSetBaudRate     = 0x03
	sioSetLatencyTimer = 0x09
	sioSetBitMode      = 0x0B

	// sioReset values.
	resetSIO     = 0
	resetPurgeRX = 1
	resetPurgeTX = 2

	// Every IN packet starts with two modem status bytes.
	statusBytes = 2

	DefaultPacketSize = 64
	DefaultTimeout    = 5 * time.Second
)

// BitMode selects the pin driver mode programmed with SetBitMode.
type BitMode uint8

const (
	BitModeReset        BitMode = 0x00
	BitModeAsyncBitbang BitMode = 0x01
	BitModeMPSSE        BitMode = 0x02
	BitModeSyncBitbang  BitMode = 0x04
	BitModeCBUSBitbang  BitMode = 0x20
)

// ErrClosed is returned by operations on a device that has been closed.
var ErrClosed = errors.New("ftdi: device closed")

// Device is an opened FTDI interface.
type Device struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface
	done func()

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration
	index      uint16
	bitbang    bool

	// IN payload received beyond what the last Read asked for.
	pending []byte

	vid uint16
	pid uint16

	mu sync.Mutex
}

// Open claims the first device matching vid:pid and resets its SIO engine.
func Open(vid, pid uint16) (*Device, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("USB error: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("device not found (VID:0x%04X PID:0x%04X)", vid, pid)
	}

	// Not fatal on platforms without kernel driver detach.
	if err := dev.SetAutoDetach(true); err != nil {
		klog.V(2).Infof("ftdi: auto-detach unavailable: %v", err)
	}

	d := &Device{
		ctx:        ctx,
		dev:        dev,
		packetSize: DefaultPacketSize,
		timeout:    DefaultTimeout,
		index:      1, // interface A
		vid:        vid,
		pid:        pid,
	}

	if err := d.claimInterface(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}

	if err := d.Reset(); err != nil {
		d.Close()
		return nil, fmt.Errorf("ftdi: reset failed: %w", err)
	}
	// Stale bytes in the chip FIFOs would shift the bit-bang sample stream.
	if err := d.Purge(); err != nil {
		d.Close()
		return nil, fmt.Errorf("ftdi: purge failed: %w", err)
	}

	klog.V(2).Infof("ftdi: opened %04X:%04X (packet size %d)", vid, pid, d.packetSize)
	return d, nil
}

// claimInterface claims interface 0 and opens its bulk endpoints.
func (d *Device) claimInterface() error {
	intf, done, err := d.dev.DefaultInterface()
	if err != nil {
		return fmt.Errorf("failed to claim interface: %w", err)
	}
	d.intf = intf
	d.done = done

	if err := d.findEndpoints(); err != nil {
		done()
		d.intf, d.done = nil, nil
		return err
	}
	return nil
}

// findEndpoints discovers the bulk IN and OUT endpoints.
func (d *Device) findEndpoints() error {
	var outNum, inNum int
	for _, ep := range d.intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionOut:
			if outNum == 0 {
				outNum = ep.Number
			}
		case gousb.EndpointDirectionIn:
			if inNum == 0 {
				inNum = ep.Number
				d.packetSize = ep.MaxPacketSize
			}
		}
	}
	if outNum == 0 {
		return fmt.Errorf("bulk OUT endpoint not found")
	}
	if inNum == 0 {
		return fmt.Errorf("bulk IN endpoint not found")
	}

	epOut, err := d.intf.OutEndpoint(outNum)
	if err != nil {
		return fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	d.epOut = epOut

	epIn, err := d.intf.InEndpoint(inNum)
	if err != nil {
		return fmt.Errorf("failed to open IN endpoint: %w", err)
	}
	d.epIn = epIn
	return nil
}

func (d *Device) control(request uint8, value uint16) error {
	if d.dev == nil {
		return ErrClosed
	}
	if _, err := d.dev.Control(requestTypeOut, request, value, d.index, nil); err != nil {
		return fmt.Errorf("control request 0x%02X: %w", request, err)
	}
	return nil
}

// Reset resets the SIO engine and drops any buffered IN payload.
func (d *Device) Reset() error {
	d.mu.Lock()
	d.pending = d.pending[:0]
	d.mu.Unlock()
	return d.control(sioReset, resetSIO)
}

// Purge discards the chip's RX and TX FIFOs.
func (d *Device) Purge() error {
	if err := d.control(sioReset, resetPurgeRX); err != nil {
		return err
	}
	return d.control(sioReset, resetPurgeTX)
}

// SetBitMode selects mode with mask marking output pins.
func (d *Device) SetBitMode(mask byte, mode BitMode) error {
	if err := d.control(sioSetBitMode, uint16(mode)<<8|uint16(mask)); err != nil {
		return err
	}
	d.bitbang = mode != BitModeReset
	return nil
}

// EnableSyncBitbang switches the D bus into synchronous bit-bang mode.
func (d *Device) EnableSyncBitbang(mask byte) error {
	return d.SetBitMode(mask, BitModeSyncBitbang)
}

// SetLatencyTimer sets the IN packet flush timeout in milliseconds.
func (d *Device) SetLatencyTimer(ms uint8) error {
	return d.control(sioSetLatencyTimer, uint16(ms))
}

// SetBaudRate programs the closest achievable rate and returns it. In bit-bang
// modes the chip clocks four times the programmed rate, which is folded in
// here so callers pass the rate they want on the pins.
func (d *Device) SetBaudRate(baud int) (int, error) {
	requested := baud
	if d.bitbang {
		requested = baud * 4
	}
	value, index, actual, err := BaudDivisor(requested)
	if err != nil {
		return 0, err
	}
	if d.dev == nil {
		return 0, ErrClosed
	}
	if _, err := d.dev.Control(requestTypeOut, sioSetBaudRate, value, index, nil); err != nil {
		return 0, fmt.Errorf("set baud rate: %w", err)
	}
	if d.bitbang {
		actual /= 4
	}
	return actual, nil
}

// SetClock sets the bit-bang byte rate in Hz.
func (d *Device) SetClock(hz int) error {
	actual, err := d.SetBaudRate(hz)
	if err != nil {
		return err
	}
	klog.V(2).Infof("ftdi: clock %d Hz requested, %d Hz programmed", hz, actual)
	return nil
}

// Write sends raw pin bytes.
func (d *Device) Write(data []byte) (int, error) {
	if d.epOut == nil {
		return 0, ErrClosed
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	n, err := d.epOut.WriteContext(ctx, data)
	if err != nil {
		return n, fmt.Errorf("USB write failed: %w", err)
	}
	return n, nil
}

// Read returns up to len(p) payload bytes. A read that only carries modem
// status returns 0 bytes and no error.
func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) > 0 {
		n := copy(p, d.pending)
		d.pending = d.pending[n:]
		return n, nil
	}
	if d.epIn == nil {
		return 0, ErrClosed
	}

	payload := d.packetSize - statusBytes
	packets := (len(p) + payload - 1) / payload
	raw := make([]byte, packets*d.packetSize)

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	n, err := d.epIn.ReadContext(ctx, raw)
	if err != nil {
		return 0, fmt.Errorf("USB read failed: %w", err)
	}

	data := StripStatus(raw[:n], d.packetSize)
	copied := copy(p, data)
	d.pending = append(d.pending[:0], data[copied:]...)
	return copied, nil
}

// StripStatus removes the two status bytes heading each packetSize chunk of
// an IN transfer.
func StripStatus(raw []byte, packetSize int) []byte {
	out := make([]byte, 0, len(raw))
	for off := 0; off < len(raw); off += packetSize {
		end := off + packetSize
		if end > len(raw) {
			end = len(raw)
		}
		if end-off <= statusBytes {
			continue
		}
		out = append(out, raw[off+statusBytes:end]...)
	}
	return out
}

// Close leaves bit-bang mode and releases USB resources. It is safe to call
// more than once.
func (d *Device) Close() error {
	if d.dev != nil && d.bitbang {
		if err := d.SetBitMode(0, BitModeReset); err != nil {
			klog.Warningf("ftdi: leaving bit-bang mode: %v", err)
		}
	}
	if d.done != nil {
		d.done()
		d.done = nil
		d.intf = nil
	}
	d.epIn, d.epOut = nil, nil
	if d.dev != nil {
		d.dev.Close()
		d.dev = nil
	}
	if d.ctx != nil {
		d.ctx.Close()
		d.ctx = nil
	}
	return nil
}

func (d *Device) String() string {
	return fmt.Sprintf("ftdi(%04X:%04X)", d.vid, d.pid)
}
