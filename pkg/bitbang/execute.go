package bitbang

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceFriend/pkg/tap"
	"k8s.io/klog/v2"
)

// Execute runs a command queue in order and flushes at the end.
//
// Transport errors are logged and the next command runs with fresh buffers;
// they are not returned. Any other error stops the batch and is returned.
func (d *Driver) Execute(queue []Command) error {
	for i, cmd := range queue {
		err := d.dispatch(cmd)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrTransport) {
			klog.Warningf("bitbang: %s (command %d): %v", kindOf(cmd), i, err)
			continue
		}
		return fmt.Errorf("%s (command %d): %w", kindOf(cmd), i, err)
	}
	if err := d.Flush(); err != nil {
		klog.Warningf("bitbang: closing flush: %v", err)
	}
	return nil
}

func kindOf(cmd Command) string {
	if cmd == nil {
		return "nil command"
	}
	return cmd.Kind().String()
}

func (d *Driver) dispatch(cmd Command) error {
	switch c := cmd.(type) {
	case ResetCommand:
		return d.reset(c)
	case RunTestCommand:
		return d.runTest(c)
	case PathMoveCommand:
		return d.pathMove(c)
	case SleepCommand:
		return d.Delay(c.Micros)
	case StableClocksCommand:
		return d.stableClocks(c)
	case TMSCommand:
		return d.tms(c)
	case ScanCommand:
		return d.scan(c)
	}
	return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
}

// reset drives the reset lines. A reset that reaches the TAP puts it in
// Test-Logic-Reset before the new line levels are queued.
func (d *Driver) reset(c ResetCommand) error {
	if c.TRST || (c.SRST && d.cfg.SRSTPullsTRST) {
		d.tap.SetState(tap.StateTestLogicReset)
	}
	return d.AssertReset(c.TRST, c.SRST)
}

func (d *Driver) runTest(c RunTestCommand) error {
	if c.Cycles < 0 {
		return fmt.Errorf("%w: %d cycles", ErrInvalidArgs, c.Cycles)
	}
	if !tap.IsStable(c.EndState) {
		return fmt.Errorf("%w: %s", ErrNotStable, c.EndState)
	}
	if d.tap.State() != tap.StateRunTestIdle {
		if err := d.TransitionTo(tap.StateRunTestIdle); err != nil {
			return err
		}
	}
	for i := 0; i < c.Cycles; i++ {
		if err := d.clock(false, false, false); err != nil {
			return err
		}
	}
	if err := d.tap.SetEndState(c.EndState); err != nil {
		return fmt.Errorf("%w: %w", ErrNotStable, err)
	}
	if c.EndState != d.tap.State() {
		return d.TransitionTo(c.EndState)
	}
	return nil
}

// pathMove checks the whole path before queuing anything.
func (d *Driver) pathMove(c PathMoveCommand) error {
	tms := make([]bool, len(c.Path))
	cur := d.tap.State()
	for i, next := range c.Path {
		switch next {
		case d.tap.NextState(cur, false):
			tms[i] = false
		case d.tap.NextState(cur, true):
			tms[i] = true
		default:
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.ShortName(), next.ShortName())
		}
		cur = next
	}

	for i, next := range c.Path {
		if err := d.clock(tms[i], false, false); err != nil {
			return err
		}
		d.tap.SetState(next)
	}
	if len(c.Path) == 0 {
		return nil
	}
	if tap.IsStable(cur) {
		if err := d.tap.SetEndState(cur); err != nil {
			return err
		}
	}
	return d.idle()
}

// stableClocks holds TMS high in Test-Logic-Reset and low elsewhere so the
// state does not change.
func (d *Driver) stableClocks(c StableClocksCommand) error {
	if c.Cycles < 0 {
		return fmt.Errorf("%w: %d cycles", ErrInvalidArgs, c.Cycles)
	}
	tms := d.tap.State() == tap.StateTestLogicReset
	for i := 0; i < c.Cycles; i++ {
		if err := d.clock(tms, false, false); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) tms(c TMSCommand) error {
	if c.NumBits < 0 || len(c.Bits)*8 < c.NumBits {
		return fmt.Errorf("%w: %d TMS bits from %d bytes", ErrInvalidArgs, c.NumBits, len(c.Bits))
	}
	state := d.tap.State()
	for i := 0; i < c.NumBits; i++ {
		bit := c.Bits[i/8]&(1<<uint(i%8)) != 0
		if err := d.clock(bit, false, false); err != nil {
			return err
		}
		state = d.tap.NextState(state, bit)
	}
	d.tap.SetState(state)
	if tap.IsStable(state) {
		if err := d.tap.SetEndState(state); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) scan(c ScanCommand) error {
	if d.scanner == nil {
		return ErrNoScanner
	}
	return d.scanner.Scan(d, d.tap, c)
}
