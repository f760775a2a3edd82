package bitbang

import (
	"errors"
	"testing"

	"github.com/OpenTraceLab/OpenTraceFriend/pkg/tap"
)

var stableStates = []tap.State{
	tap.StateTestLogicReset,
	tap.StateRunTestIdle,
	tap.StateShiftDR,
	tap.StatePauseDR,
	tap.StateShiftIR,
	tap.StatePauseIR,
}

// spyTAP records how many bytes were pending whenever a state is committed.
type spyTAP struct {
	*tap.StateMachine
	d       *Driver
	commits []int
}

func (s *spyTAP) SetState(st tap.State) {
	if s.d != nil {
		s.commits = append(s.commits, len(s.d.Pending()))
	}
	s.StateMachine.SetState(st)
}

func newSpyDriver(t *testing.T, mutate func(*Config)) (*Driver, *spyTAP, *SimDevice) {
	t.Helper()
	sim := NewSimDevice()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	spy := &spyTAP{StateMachine: tap.NewStateMachine()}
	d, err := New(sim, spy, cfg, noSleep)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	spy.d = d
	t.Cleanup(func() { d.Close() })
	return d, spy, sim
}

func TestTransitionToCurrentStateEmitsNothing(t *testing.T) {
	for _, s := range stableStates {
		d := newSimDriver(t, NewSimDevice(), nil)
		d.TAP().SetState(s)
		if err := d.TransitionTo(s); err != nil {
			t.Fatalf("TransitionTo(%s) returned error: %v", s, err)
		}
		if len(d.Pending()) != 0 {
			t.Fatalf("TransitionTo(%s) from itself queued %d bytes", s, len(d.Pending()))
		}
		if d.TAP().State() != s {
			t.Fatalf("state changed to %s", d.TAP().State())
		}
	}
}

func TestTransitionBetweenStableStates(t *testing.T) {
	for _, from := range stableStates {
		for _, to := range stableStates {
			if from == to {
				continue
			}
			d := newSimDriver(t, NewSimDevice(), nil)
			d.TAP().SetState(from)
			if err := d.TransitionTo(to); err != nil {
				t.Fatalf("%s -> %s: %v", from, to, err)
			}
			if d.TAP().State() != to {
				t.Fatalf("%s -> %s: landed in %s", from, to, d.TAP().State())
			}

			// Replay the rising edges through the state table.
			pending := d.Pending()
			if len(pending)%2 != 1 || pending[len(pending)-1] != Idle(ResetLines{}) {
				t.Fatalf("%s -> %s: stream %X does not end in one idle byte", from, to, pending)
			}
			state := from
			for i := 1; i < len(pending); i += 2 {
				if pending[i]&PinTCK == 0 || pending[i-1]&PinTCK != 0 {
					t.Fatalf("%s -> %s: byte pair %d is not low/high", from, to, i/2)
				}
				state = tap.NextState(state, pending[i]&PinTMS != 0)
			}
			if state != to {
				t.Fatalf("%s -> %s: replay ends in %s", from, to, state)
			}
		}
	}
}

func TestTransitionRejectsUnstableTarget(t *testing.T) {
	d := newSimDriver(t, NewSimDevice(), nil)
	err := d.TransitionTo(tap.StateUpdateDR)
	if !errors.Is(err, ErrNotStable) {
		t.Fatalf("TransitionTo(UpdateDR) = %v, want ErrNotStable", err)
	}
	if len(d.Pending()) != 0 || d.TAP().State() != tap.StateTestLogicReset {
		t.Fatalf("rejected transition changed the session")
	}
}

func TestTransitionCommitsAfterQueuing(t *testing.T) {
	d, spy, _ := newSpyDriver(t, nil)
	if err := d.TransitionTo(tap.StateShiftIR); err != nil {
		t.Fatalf("TransitionTo returned error: %v", err)
	}
	// TLR -> ShiftIR is 0,1,1,0,0: five pulses and an idle byte.
	if len(spy.commits) != 1 || spy.commits[0] != 11 {
		t.Fatalf("commits at pending lengths %v, want [11]", spy.commits)
	}
}

type longPathTAP struct{ *tap.StateMachine }

func (longPathTAP) Path(from, to tap.State) (uint8, int, error) { return 0xFF, 9, nil }

func TestTransitionRejectsLongPath(t *testing.T) {
	d, err := New(NewSimDevice(), longPathTAP{tap.NewStateMachine()}, DefaultConfig())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer d.Close()
	if err := d.TransitionTo(tap.StateRunTestIdle); !errors.Is(err, ErrPathTooLong) {
		t.Fatalf("TransitionTo = %v, want ErrPathTooLong", err)
	}
	if len(d.Pending()) != 0 {
		t.Fatalf("rejected path queued bytes")
	}
}
