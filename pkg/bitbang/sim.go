package bitbang

import (
	"errors"
	"sync"

	"github.com/OpenTraceLab/OpenTraceFriend/pkg/tap"
)

// SimTarget is one TAP in a simulated scan chain.
type SimTarget struct {
	// IDCode is captured by the IDCODE instruction. Zero models a part
	// without an IDCODE register, which selects BYPASS after reset.
	IDCode uint32
	// IRLength defaults to 4.
	IRLength int
	// IDCodeInstruction is the opcode selecting IDCODE, default 0x1. The
	// all-ones opcode and any other value select BYPASS.
	IDCodeInstruction uint32
}

// ErrSimFailure is the default error injected by SimDevice knobs.
var ErrSimFailure = errors.New("bitbang: simulated transfer failure")

// SimDevice is an in-memory synchronous bit-bang converter with a JTAG chain
// behind it. Every written byte is echoed once on the read side with its
// PinTDO bit replaced by the chain's TDO level, sampled before the byte's
// TCK edge takes effect. Targets[0] is nearest TDO.
//
// The knobs inject the faults a real converter shows: short transfers,
// transfer errors, extra read bytes and reads that return nothing.
type SimDevice struct {
	Targets []SimTarget

	// WriteLimit and ReadLimit cap the bytes moved per call when non-zero.
	WriteLimit int
	ReadLimit  int
	// FailWrite and FailRead are returned by the next Write or Read.
	FailWrite error
	FailRead  error
	// FailConfig is returned by the configuration calls.
	FailConfig error
	// ExtraRead queues that many unexpected bytes ahead of the next echo.
	ExtraRead int
	// StallReads makes that many Reads return no data.
	StallReads int

	mu      sync.Mutex
	written []byte
	echo    []byte

	Mask    byte
	Latency uint8
	ClockHz int
	Closed  bool

	tap   *tap.StateMachine
	tck   bool
	ir    []uint32
	reg   []bool
	edges int
}

// NewSimDevice returns a simulator in Test-Logic-Reset with the given chain.
func NewSimDevice(targets ...SimTarget) *SimDevice {
	s := &SimDevice{Targets: targets, tap: tap.NewStateMachine()}
	s.resetChain()
	return s
}

func (s *SimDevice) irLength(i int) int {
	if s.Targets[i].IRLength > 0 {
		return s.Targets[i].IRLength
	}
	return 4
}

func (s *SimDevice) idcodeOpcode(i int) uint32 {
	if s.Targets[i].IDCodeInstruction != 0 {
		return s.Targets[i].IDCodeInstruction
	}
	return 0x1
}

func (s *SimDevice) resetChain() {
	s.tap.SetState(tap.StateTestLogicReset)
	s.ir = make([]uint32, len(s.Targets))
	for i, t := range s.Targets {
		if t.IDCode != 0 {
			s.ir[i] = s.idcodeOpcode(i)
		} else {
			s.ir[i] = 1<<uint(s.irLength(i)) - 1
		}
	}
	s.reg = nil
}

func (s *SimDevice) EnableSyncBitbang(mask byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailConfig != nil {
		return s.FailConfig
	}
	s.Mask = mask
	return nil
}

func (s *SimDevice) SetLatencyTimer(ms uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailConfig != nil {
		return s.FailConfig
	}
	s.Latency = ms
	return nil
}

func (s *SimDevice) SetClock(hz int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailConfig != nil {
		return s.FailConfig
	}
	s.ClockHz = hz
	return nil
}

func (s *SimDevice) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Closed {
		return 0, ErrClosed
	}
	if err := s.FailWrite; err != nil {
		s.FailWrite = nil
		return 0, err
	}
	n := len(p)
	if s.WriteLimit > 0 && n > s.WriteLimit {
		n = s.WriteLimit
	}
	for ; s.ExtraRead > 0; s.ExtraRead-- {
		s.echo = append(s.echo, 0xFF)
	}
	for _, b := range p[:n] {
		s.echo = append(s.echo, s.step(b))
	}
	s.written = append(s.written, p[:n]...)
	return n, nil
}

func (s *SimDevice) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Closed {
		return 0, ErrClosed
	}
	if err := s.FailRead; err != nil {
		s.FailRead = nil
		return 0, err
	}
	if s.StallReads > 0 {
		s.StallReads--
		return 0, nil
	}
	n := copy(p, s.echo)
	if s.ReadLimit > 0 && n > s.ReadLimit {
		n = s.ReadLimit
	}
	s.echo = s.echo[n:]
	return n, nil
}

func (s *SimDevice) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Written returns every byte accepted so far.
func (s *SimDevice) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written...)
}

// State is the TAP state of the simulated chain.
func (s *SimDevice) State() tap.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tap.State()
}

// RisingEdges counts the TCK rising edges seen while TRST was released.
func (s *SimDevice) RisingEdges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edges
}

// Instructions returns the instruction latched in each target.
func (s *SimDevice) Instructions() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint32(nil), s.ir...)
}

// step applies one pin byte and returns the byte the converter reads back.
func (s *SimDevice) step(b byte) byte {
	tdo := s.tdo()

	if b&PinTRST == 0 {
		s.resetChain()
		s.tck = b&PinTCK != 0
	} else {
		tck := b&PinTCK != 0
		if tck && !s.tck {
			s.rise(b&PinTMS != 0, b&PinTDI != 0)
		}
		s.tck = tck
	}

	out := b &^ PinTDO
	if tdo {
		out |= PinTDO
	}
	return out
}

// tdo is high unless a shift state drives it from the register.
func (s *SimDevice) tdo() bool {
	switch s.tap.State() {
	case tap.StateShiftDR, tap.StateShiftIR:
		if len(s.reg) > 0 {
			return s.reg[0]
		}
	}
	return true
}

func (s *SimDevice) rise(tms, tdi bool) {
	s.edges++
	switch s.tap.State() {
	case tap.StateCaptureDR:
		s.captureDR()
	case tap.StateCaptureIR:
		s.captureIR()
	case tap.StateShiftDR, tap.StateShiftIR:
		if len(s.reg) > 0 {
			s.reg = append(s.reg[1:], tdi)
		}
	}

	next := s.tap.Clock(tms)
	switch next {
	case tap.StateUpdateIR:
		s.updateIR()
	case tap.StateTestLogicReset:
		s.resetChain()
	}
}

func (s *SimDevice) captureDR() {
	s.reg = s.reg[:0]
	for i, t := range s.Targets {
		if t.IDCode != 0 && s.ir[i] == s.idcodeOpcode(i) {
			for bit := 0; bit < 32; bit++ {
				s.reg = append(s.reg, t.IDCode&(1<<uint(bit)) != 0)
			}
			continue
		}
		s.reg = append(s.reg, false)
	}
}

// captureIR loads the mandatory 01 pattern into every instruction register.
func (s *SimDevice) captureIR() {
	s.reg = s.reg[:0]
	for i := range s.Targets {
		for bit := 0; bit < s.irLength(i); bit++ {
			s.reg = append(s.reg, bit == 0)
		}
	}
}

func (s *SimDevice) updateIR() {
	pos := 0
	for i := range s.Targets {
		n := s.irLength(i)
		if pos+n > len(s.reg) {
			return
		}
		var v uint32
		for bit := 0; bit < n; bit++ {
			if s.reg[pos+bit] {
				v |= 1 << uint(bit)
			}
		}
		s.ir[i] = v
		pos += n
	}
}
