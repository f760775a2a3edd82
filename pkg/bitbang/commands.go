package bitbang

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceFriend/pkg/tap"
)

// Kind identifies a queued command.
type Kind int

const (
	KindScan Kind = iota
	KindReset
	KindRunTest
	KindPathMove
	KindSleep
	KindStableClocks
	KindTMS
)

func (k Kind) String() string {
	switch k {
	case KindScan:
		return "scan"
	case KindReset:
		return "reset"
	case KindRunTest:
		return "runtest"
	case KindPathMove:
		return "pathmove"
	case KindSleep:
		return "sleep"
	case KindStableClocks:
		return "stableclocks"
	case KindTMS:
		return "tms"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Command is one entry of a command queue.
type Command interface {
	Kind() Kind
}

// ResetCommand drives the reset lines. True asserts the line.
type ResetCommand struct {
	TRST bool
	SRST bool
}

// RunTestCommand clocks Cycles times in Run-Test/Idle and then moves to
// EndState.
type RunTestCommand struct {
	Cycles   int
	EndState tap.State
}

// PathMoveCommand walks the TAP through Path, one state per clock. Each
// state must be a direct successor of the one before it.
type PathMoveCommand struct {
	Path []tap.State
}

// SleepCommand waits after all previously queued bytes reached the wire.
type SleepCommand struct {
	Micros uint32
}

// StableClocksCommand clocks Cycles times without leaving the current state.
type StableClocksCommand struct {
	Cycles int
}

// TMSCommand clocks NumBits bits of Bits out on TMS, LSB first.
type TMSCommand struct {
	NumBits int
	Bits    []byte
}

// ScanField is one segment of a scan. Out holds Bits bits LSB first, a nil
// Out shifts zeros. When In is non-nil the captured TDO bits are stored
// there.
type ScanField struct {
	Bits int
	Out  []byte
	In   []byte
}

// ScanCommand shifts its fields through IR or DR and leaves the TAP in
// EndState.
type ScanCommand struct {
	IR       bool
	Fields   []ScanField
	EndState tap.State
}

// TotalBits is the scan length.
func (c ScanCommand) TotalBits() int {
	n := 0
	for _, f := range c.Fields {
		n += f.Bits
	}
	return n
}

func (ScanCommand) Kind() Kind         { return KindScan }
func (ResetCommand) Kind() Kind        { return KindReset }
func (RunTestCommand) Kind() Kind      { return KindRunTest }
func (PathMoveCommand) Kind() Kind     { return KindPathMove }
func (SleepCommand) Kind() Kind        { return KindSleep }
func (StableClocksCommand) Kind() Kind { return KindStableClocks }
func (TMSCommand) Kind() Kind          { return KindTMS }
