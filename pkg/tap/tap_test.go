package tap

import (
	"errors"
	"testing"
)

func TestNextStateTable(t *testing.T) {
	type transition struct {
		start State
		tms   bool
		end   State
	}

	cases := []transition{
		{StateTestLogicReset, false, StateRunTestIdle},
		{StateTestLogicReset, true, StateTestLogicReset},
		{StateRunTestIdle, true, StateSelectDRScan},
		{StateSelectDRScan, false, StateCaptureDR},
		{StateShiftDR, true, StateExit1DR},
		{StateExit2DR, false, StateShiftDR},
		{StateSelectIRScan, true, StateTestLogicReset},
		{StateCaptureIR, false, StateShiftIR},
		{StatePauseIR, true, StateExit2IR},
		{StateExit2IR, true, StateUpdateIR},
	}

	for _, tc := range cases {
		got := NextState(tc.start, tc.tms)
		if got != tc.end {
			t.Fatalf("NextState(%s, %v) = %s, want %s", tc.start, tc.tms, got, tc.end)
		}
	}
}

func TestFiveOnesReachTestLogicReset(t *testing.T) {
	for s := StateTestLogicReset; s <= StateUpdateIR; s++ {
		m := NewStateMachine()
		m.SetState(s)
		for i := 0; i < 5; i++ {
			m.Clock(true)
		}
		if m.State() != StateTestLogicReset {
			t.Fatalf("five TMS=1 clocks from %s ended in %s", s, m.State())
		}
	}
}

func TestPathClocksMachineToTarget(t *testing.T) {
	m := NewStateMachine()
	m.Clock(false) // -> Run-Test/Idle

	for _, target := range []State{StateShiftIR, StateRunTestIdle, StatePauseDR, StateTestLogicReset} {
		pattern, count, err := m.Path(m.State(), target)
		if err != nil {
			t.Fatalf("Path(%s, %s) returned error: %v", m.State(), target, err)
		}
		for i := 0; i < count; i++ {
			m.Clock(pattern&(1<<uint(i)) != 0)
		}
		if m.State() != target {
			t.Fatalf("State() = %s, want %s", m.State(), target)
		}
	}
}

func TestPathPacksLSBFirst(t *testing.T) {
	m := NewStateMachine()

	pattern, count, err := m.Path(StateRunTestIdle, StateShiftIR)
	if err != nil {
		t.Fatalf("Path returned error: %v", err)
	}
	// TMS 1,1,0,0 LSB first.
	if pattern != 0x03 || count != 4 {
		t.Fatalf("Path = 0x%02X/%d, want 0x03/4", pattern, count)
	}
	if m.State() != StateTestLogicReset {
		t.Fatalf("Path mutated state to %s", m.State())
	}

	if _, count, err := m.Path(StatePauseDR, StatePauseDR); err != nil || count != 0 {
		t.Fatalf("Path to self = %d bits, err %v; want 0, nil", count, err)
	}
}

func TestPathsBetweenStableStatesFitInByte(t *testing.T) {
	m := NewStateMachine()
	var stable []State
	for s := StateTestLogicReset; s <= StateUpdateIR; s++ {
		if IsStable(s) {
			stable = append(stable, s)
		}
	}
	if len(stable) != 6 {
		t.Fatalf("found %d stable states, want 6", len(stable))
	}

	for _, from := range stable {
		for _, to := range stable {
			pattern, count, err := m.Path(from, to)
			if err != nil {
				t.Fatalf("Path(%s, %s) returned error: %v", from, to, err)
			}
			state := from
			for i := 0; i < count; i++ {
				state = NextState(state, pattern&(1<<uint(i)) != 0)
			}
			if state != to {
				t.Fatalf("Path(%s, %s) lands on %s", from, to, state)
			}
		}
	}
}

func TestSequenceByteRejectsLongPaths(t *testing.T) {
	seq := Sequence{TMS: make([]bool, MaxPathBits+1)}
	if _, _, err := seq.Byte(); !errors.Is(err, ErrPathTooLong) {
		t.Fatalf("Byte() error = %v, want ErrPathTooLong", err)
	}
}

func TestParseState(t *testing.T) {
	cases := map[string]State{
		"IDLE":         StateRunTestIdle,
		"idle":         StateRunTestIdle,
		"RunTestIdle":  StateRunTestIdle,
		"DRPAUSE":      StatePauseDR,
		"IRSHIFT":      StateShiftIR,
		"reset":        StateTestLogicReset,
		"SelectDRScan": StateSelectDRScan,
	}
	for name, want := range cases {
		got, err := ParseState(name)
		if err != nil {
			t.Fatalf("ParseState(%q) returned error: %v", name, err)
		}
		if got != want {
			t.Fatalf("ParseState(%q) = %s, want %s", name, got, want)
		}
	}

	if _, err := ParseState("nowhere"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("ParseState(nowhere) error = %v, want ErrInvalidState", err)
	}
}

func TestSetEndStateRequiresStable(t *testing.T) {
	m := NewStateMachine()
	if err := m.SetEndState(StateExit1DR); err == nil {
		t.Fatalf("expected error for unstable end state")
	}
	if err := m.SetEndState(StatePauseIR); err != nil {
		t.Fatalf("SetEndState returned error: %v", err)
	}
	if m.EndState() != StatePauseIR {
		t.Fatalf("EndState() = %s, want %s", m.EndState(), StatePauseIR)
	}
}
