package tap

import (
	"errors"
	"fmt"
	"strings"
)

// State represents one of the 16 defined IEEE 1149.1 TAP controller states.
type State uint8

const (
	StateTestLogicReset State = iota
	StateRunTestIdle
	StateSelectDRScan
	StateCaptureDR
	StateShiftDR
	StateExit1DR
	StatePauseDR
	StateExit2DR
	StateUpdateDR
	StateSelectIRScan
	StateCaptureIR
	StateShiftIR
	StateExit1IR
	StatePauseIR
	StateExit2IR
	StateUpdateIR
)

// MaxPathBits is the longest TMS path Path will pack into a single byte.
const MaxPathBits = 8

var (
	ErrInvalidState = errors.New("tap: invalid state")
	ErrPathTooLong  = errors.New("tap: path does not fit in one byte")
)

type stateName struct {
	long  string
	short string
}

var stateNames = map[State]stateName{
	StateTestLogicReset: {"TestLogicReset", "RESET"},
	StateRunTestIdle:    {"RunTestIdle", "IDLE"},
	StateSelectDRScan:   {"SelectDRScan", "DRSELECT"},
	StateCaptureDR:      {"CaptureDR", "DRCAPTURE"},
	StateShiftDR:        {"ShiftDR", "DRSHIFT"},
	StateExit1DR:        {"Exit1DR", "DREXIT1"},
	StatePauseDR:        {"PauseDR", "DRPAUSE"},
	StateExit2DR:        {"Exit2DR", "DREXIT2"},
	StateUpdateDR:       {"UpdateDR", "DRUPDATE"},
	StateSelectIRScan:   {"SelectIRScan", "IRSELECT"},
	StateCaptureIR:      {"CaptureIR", "IRCAPTURE"},
	StateShiftIR:        {"ShiftIR", "IRSHIFT"},
	StateExit1IR:        {"Exit1IR", "IREXIT1"},
	StatePauseIR:        {"PauseIR", "IRPAUSE"},
	StateExit2IR:        {"Exit2IR", "IREXIT2"},
	StateUpdateIR:       {"UpdateIR", "IRUPDATE"},
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name.long
	}
	return fmt.Sprintf("State(%d)", s)
}

// ShortName returns the upper-case mnemonic used in command scripts.
func (s State) ShortName() string {
	if name, ok := stateNames[s]; ok {
		return name.short
	}
	return s.String()
}

// ParseState accepts either the long or the short state name, ignoring case.
func ParseState(name string) (State, error) {
	for s, n := range stateNames {
		if strings.EqualFold(name, n.long) || strings.EqualFold(name, n.short) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidState, name)
}

// IsStable reports whether the controller can remain in s indefinitely while
// TCK runs with a constant TMS.
func IsStable(s State) bool {
	switch s {
	case StateTestLogicReset, StateRunTestIdle,
		StateShiftDR, StatePauseDR,
		StateShiftIR, StatePauseIR:
		return true
	}
	return false
}

// Sequence captures the TMS drive pattern and the sequence of states that result
// from applying that pattern to the TAP controller.
type Sequence struct {
	TMS    []bool
	States []State
}

// Byte packs the TMS pattern LSB first. It fails when the pattern is longer
// than MaxPathBits.
func (s Sequence) Byte() (pattern uint8, count int, err error) {
	if len(s.TMS) > MaxPathBits {
		return 0, 0, fmt.Errorf("%w: %d bits", ErrPathTooLong, len(s.TMS))
	}
	for i, bit := range s.TMS {
		if bit {
			pattern |= 1 << uint(i)
		}
	}
	return pattern, len(s.TMS), nil
}

type stateTransitions struct {
	onZero State
	onOne  State
}

var transitions = map[State]stateTransitions{
	StateTestLogicReset: {onZero: StateRunTestIdle, onOne: StateTestLogicReset},
	StateRunTestIdle:    {onZero: StateRunTestIdle, onOne: StateSelectDRScan},
	StateSelectDRScan:   {onZero: StateCaptureDR, onOne: StateSelectIRScan},
	StateCaptureDR:      {onZero: StateShiftDR, onOne: StateExit1DR},
	StateShiftDR:        {onZero: StateShiftDR, onOne: StateExit1DR},
	StateExit1DR:        {onZero: StatePauseDR, onOne: StateUpdateDR},
	StatePauseDR:        {onZero: StatePauseDR, onOne: StateExit2DR},
	StateExit2DR:        {onZero: StateShiftDR, onOne: StateUpdateDR},
	StateUpdateDR:       {onZero: StateRunTestIdle, onOne: StateSelectDRScan},
	StateSelectIRScan:   {onZero: StateCaptureIR, onOne: StateTestLogicReset},
	StateCaptureIR:      {onZero: StateShiftIR, onOne: StateExit1IR},
	StateShiftIR:        {onZero: StateShiftIR, onOne: StateExit1IR},
	StateExit1IR:        {onZero: StatePauseIR, onOne: StateUpdateIR},
	StatePauseIR:        {onZero: StatePauseIR, onOne: StateExit2IR},
	StateExit2IR:        {onZero: StateShiftIR, onOne: StateUpdateIR},
	StateUpdateIR:       {onZero: StateRunTestIdle, onOne: StateSelectDRScan},
}

// NextState returns the next TAP state after clocking TCK with the provided TMS
// value. It panics if an invalid state is supplied, which should never happen
// when interacting through the exported API.
func NextState(current State, tms bool) State {
	row, ok := transitions[current]
	if !ok {
		panic(fmt.Sprintf("tap: unhandled state %d", current))
	}
	if tms {
		return row.onOne
	}
	return row.onZero
}

// StateMachine tracks the TAP controller state on behalf of a driver. It does
// not perform I/O: drivers read the current and end states, ask for paths and
// commit the new state once the matching signals have been queued.
type StateMachine struct {
	state State
	end   State
}

// NewStateMachine creates a TAP state machine initialized to Test-Logic-Reset.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateTestLogicReset, end: StateTestLogicReset}
}

// State reports the current TAP state tracked by the machine.
func (m *StateMachine) State() State {
	return m.state
}

// SetState commits s as the current state.
func (m *StateMachine) SetState(s State) {
	m.state = s
}

// EndState reports the state the next operation should leave the TAP in.
func (m *StateMachine) EndState() State {
	return m.end
}

// SetEndState records the desired end state. Only stable states are accepted.
func (m *StateMachine) SetEndState(s State) error {
	if !IsStable(s) {
		return fmt.Errorf("%w: %s is not a stable state", ErrInvalidState, s)
	}
	m.end = s
	return nil
}

// NextState exposes the transition table through the machine so it can be
// used behind an interface.
func (m *StateMachine) NextState(current State, tms bool) State {
	return NextState(current, tms)
}

// Path returns the shortest TMS pattern from one state to another, packed
// LSB first into a byte.
func (m *StateMachine) Path(from, to State) (uint8, int, error) {
	seq, err := computePath(from, to)
	if err != nil {
		return 0, 0, err
	}
	return seq.Byte()
}

// Clock advances the machine one TCK cycle with the provided TMS bit and
// returns the new state.
func (m *StateMachine) Clock(tms bool) State {
	next := NextState(m.state, tms)
	m.state = next
	return next
}

// computePath uses BFS across the TAP state diagram to find the shortest set of
// transitions between two states.
func computePath(from, to State) (Sequence, error) {
	if _, ok := transitions[from]; !ok {
		return Sequence{}, fmt.Errorf("%w: start %d", ErrInvalidState, from)
	}
	if _, ok := transitions[to]; !ok {
		return Sequence{}, fmt.Errorf("%w: target %d", ErrInvalidState, to)
	}
	if from == to {
		return Sequence{States: []State{from}}, nil
	}

	type node struct {
		state  State
		tms    []bool
		states []State
	}

	queue := []node{{
		state:  from,
		states: []State{from},
	}}
	visited := map[State]struct{}{from: {}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, bit := range []bool{false, true} {
			next := NextState(current.state, bit)
			if _, seen := visited[next]; seen {
				continue
			}

			newTMS := append(append([]bool{}, current.tms...), bit)
			newStates := append(append([]State{}, current.states...), next)

			if next == to {
				return Sequence{TMS: newTMS, States: newStates}, nil
			}

			visited[next] = struct{}{}
			queue = append(queue, node{state: next, tms: newTMS, states: newStates})
		}
	}

	return Sequence{}, fmt.Errorf("tap: no path from %s to %s", from, to)
}
