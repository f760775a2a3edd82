package jtag

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceFriend/pkg/bitbang"
	"github.com/OpenTraceLab/OpenTraceFriend/pkg/idcode"
	"github.com/OpenTraceLab/OpenTraceFriend/pkg/tap"
)

// ErrShortCapture is returned when fewer TDO samples come back than were
// requested, which happens after a transport error reset the buffers.
var ErrShortCapture = errors.New("jtag: TDO capture incomplete")

// Session is the part of a bit-bang session the adapter drives.
// *bitbang.Driver implements it.
type Session interface {
	bitbang.ByteStream
	TAP() bitbang.TAP
	SetSpeed(khz int) error
	SetScanner(s bitbang.Scanner)
}

// BitbangAdapter implements Adapter on top of a bit-bang byte stream and is
// the scan layer for the session's ScanCommands.
type BitbangAdapter struct {
	sess Session
	info AdapterInfo
}

var (
	_ Adapter         = (*BitbangAdapter)(nil)
	_ bitbang.Scanner = (*BitbangAdapter)(nil)
	_ Session         = (*bitbang.Driver)(nil)
)

// FTDIFriendInfo describes an FT232R in synchronous bit-bang mode. The
// fastest byte rate is 750 kHz, two bytes per TCK cycle.
func FTDIFriendInfo() AdapterInfo {
	return AdapterInfo{
		Name:         "FTDI Friend",
		Vendor:       "Adafruit",
		Model:        "FT232R synchronous bit-bang",
		MinFrequency: 1000,
		MaxFrequency: 375_000,
		SupportsSRST: true,
		SupportsTRST: true,
		Notes:        "TCK=TXD TDI=RXD TMS=RTS TDO=CTS TRST=DTR SRST=DSR",
	}
}

// NewBitbangAdapter wraps sess and installs the adapter as its scan layer.
func NewBitbangAdapter(sess Session, info AdapterInfo) *BitbangAdapter {
	a := &BitbangAdapter{sess: sess, info: info}
	sess.SetScanner(a)
	return a
}

func (a *BitbangAdapter) Info() (AdapterInfo, error) {
	return a.info, nil
}

func (a *BitbangAdapter) ShiftIR(tms, tdi []byte, bits int) ([]byte, error) {
	return a.shiftRaw(tms, tdi, bits)
}

func (a *BitbangAdapter) ShiftDR(tms, tdi []byte, bits int) ([]byte, error) {
	return a.shiftRaw(tms, tdi, bits)
}

// shiftRaw clocks the TMS/TDI bits as given and captures TDO on every
// cycle. The tracked TAP state follows the TMS bits.
func (a *BitbangAdapter) shiftRaw(tms, tdi []byte, bits int) ([]byte, error) {
	required, err := ValidateShiftBuffers(tms, tdi, bits)
	if err != nil {
		return nil, err
	}
	t := a.sess.TAP()
	state := t.State()
	tdo := make([]byte, required)
	r := newTDOReader(a.sess)
	for i := 0; i < bits; i++ {
		tmsBit := bit(tms, i)
		if err := r.pulse(tmsBit, bit(tdi, i), tdo, i); err != nil {
			return nil, err
		}
		state = t.NextState(state, tmsBit)
	}
	t.SetState(state)

	if err := r.drain(); err != nil {
		return nil, err
	}
	return tdo, nil
}

// ResetTAP puts the TAP in Test-Logic-Reset, with TRST when hard is set and
// with five TMS=1 clocks otherwise.
func (a *BitbangAdapter) ResetTAP(hard bool) error {
	t := a.sess.TAP()
	if hard {
		t.SetState(tap.StateTestLogicReset)
		if err := a.sess.AssertReset(true, false); err != nil {
			return err
		}
		if err := a.sess.AssertReset(false, false); err != nil {
			return err
		}
	} else {
		for i := 0; i < 5; i++ {
			if err := pulse(a.sess, true, false, false); err != nil {
				return err
			}
		}
		t.SetState(tap.StateTestLogicReset)
	}
	if err := t.SetEndState(tap.StateTestLogicReset); err != nil {
		return err
	}
	return a.sess.Flush()
}

func (a *BitbangAdapter) SetSpeed(hz int) error {
	if hz < 1000 {
		return fmt.Errorf("jtag: invalid speed %dHz", hz)
	}
	return a.sess.SetSpeed(hz / 1000)
}

// Scan shifts cmd's fields through IR or DR. The last bit leaves the shift
// state, the TAP then goes to cmd.EndState and captured bits are stored in
// the fields' In buffers.
func (a *BitbangAdapter) Scan(s bitbang.ByteStream, t bitbang.TAP, cmd bitbang.ScanCommand) error {
	if !tap.IsStable(cmd.EndState) {
		return fmt.Errorf("%w: %s", bitbang.ErrNotStable, cmd.EndState)
	}
	total := cmd.TotalBits()
	if total <= 0 {
		return fmt.Errorf("%w: empty scan", bitbang.ErrInvalidArgs)
	}
	for i, f := range cmd.Fields {
		if f.Bits < 0 || (f.Out != nil && len(f.Out)*8 < f.Bits) || (f.In != nil && len(f.In)*8 < f.Bits) {
			return fmt.Errorf("%w: field %d buffers too short for %d bits", bitbang.ErrInvalidArgs, i, f.Bits)
		}
	}

	shift, exit := tap.StateShiftDR, tap.StateExit1DR
	if cmd.IR {
		shift, exit = tap.StateShiftIR, tap.StateExit1IR
	}
	if err := move(s, t, shift); err != nil {
		return err
	}

	r := newTDOReader(s)
	n := 0
	for _, f := range cmd.Fields {
		for i := 0; i < f.Bits; i++ {
			n++
			if err := r.pulse(n == total, bit(f.Out, i), f.In, i); err != nil {
				return err
			}
		}
	}
	t.SetState(exit)
	if err := move(s, t, cmd.EndState); err != nil {
		return err
	}
	if err := t.SetEndState(cmd.EndState); err != nil {
		return err
	}
	return r.drain()
}

// ReadIDCodes resets the TAP and shifts maxDevices*32 ones through DR,
// decoding the IDCODEs the chain captured.
func (a *BitbangAdapter) ReadIDCodes(maxDevices int) ([]idcode.Entry, error) {
	if maxDevices <= 0 {
		return nil, fmt.Errorf("%w: max devices %d", bitbang.ErrInvalidArgs, maxDevices)
	}
	if err := a.ResetTAP(false); err != nil {
		return nil, err
	}
	bits := (maxDevices + 1) * 32
	out := make([]byte, bits/8)
	for i := range out {
		out[i] = 0xFF
	}
	in := make([]byte, bits/8)
	cmd := bitbang.ScanCommand{
		Fields:   []bitbang.ScanField{{Bits: bits, Out: out, In: in}},
		EndState: tap.StateRunTestIdle,
	}
	if err := a.Scan(a.sess, a.sess.TAP(), cmd); err != nil {
		return nil, err
	}
	return idcode.ExtractChain(in, bits), nil
}

// pulse queues one TCK cycle.
func pulse(s bitbang.ByteStream, tms, tdi, sample bool) error {
	if err := s.Emit(false, tms, tdi, false); err != nil {
		return err
	}
	return s.Emit(true, tms, tdi, sample)
}

// move walks the TAP to target along the shortest path and commits it.
func move(s bitbang.ByteStream, t bitbang.TAP, target tap.State) error {
	pattern, count, err := t.Path(t.State(), target)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := pulse(s, pattern&(1<<uint(i)) != 0, false, false); err != nil {
			return err
		}
	}
	t.SetState(target)
	return nil
}

// tdoReader routes TDO samples into destination bits. Samples are drained
// before the session's receive buffer could overflow, so a capture may be
// longer than the buffer.
type tdoReader struct {
	s     bitbang.ByteStream
	limit int
	slots []tdoSlot
	next  int
}

type tdoSlot struct {
	buf []byte
	bit int
}

func newTDOReader(s bitbang.ByteStream) *tdoReader {
	return &tdoReader{s: s, limit: max(s.SampleCapacity(), 1)}
}

// pulse queues one TCK cycle. A nil dst requests no sample; otherwise TDO
// lands in bit i of dst.
func (r *tdoReader) pulse(tms, tdi bool, dst []byte, i int) error {
	if dst != nil && len(r.slots)-r.next >= r.limit {
		if err := r.drain(); err != nil {
			return err
		}
	}
	if err := pulse(r.s, tms, tdi, dst != nil); err != nil {
		return err
	}
	if dst != nil {
		r.slots = append(r.slots, tdoSlot{buf: dst, bit: i})
	}
	return nil
}

// drain flushes and reads every outstanding sample. It does nothing when no
// sample is outstanding.
func (r *tdoReader) drain() error {
	if r.next == len(r.slots) {
		return nil
	}
	if err := r.s.Flush(); err != nil {
		return err
	}
	for ; r.next < len(r.slots); r.next++ {
		v := r.s.ReadSample()
		if v < 0 {
			return fmt.Errorf("%w: %d of %d bits", ErrShortCapture, r.next, len(r.slots))
		}
		slot := r.slots[r.next]
		setBit(slot.buf, slot.bit, v == 1)
	}
	return nil
}
