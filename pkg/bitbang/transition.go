package bitbang

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceFriend/pkg/tap"
	"k8s.io/klog/v2"
)

// TransitionTo moves the TAP from its current state to target along the
// shortest TMS path. The path is clocked LSB first and followed by one idle
// byte. The new state is committed once the bytes are queued. A transition
// to the current state queues nothing.
func (d *Driver) TransitionTo(target tap.State) error {
	if !tap.IsStable(target) {
		return fmt.Errorf("%w: %s", ErrNotStable, target)
	}
	from := d.tap.State()
	pattern, count, err := d.tap.Path(from, target)
	if errors.Is(err, tap.ErrPathTooLong) {
		return fmt.Errorf("%w: %s -> %s", ErrPathTooLong, from, target)
	}
	if err != nil {
		return fmt.Errorf("%w: %s -> %s: %w", ErrInvalidArgs, from, target, err)
	}
	if count > tap.MaxPathBits {
		return fmt.Errorf("%w: %s -> %s needs %d bits", ErrPathTooLong, from, target, count)
	}
	if count == 0 {
		return nil
	}

	for i := 0; i < count; i++ {
		if err := d.clock(pattern&(1<<uint(i)) != 0, false, false); err != nil {
			return err
		}
	}
	if err := d.idle(); err != nil {
		return err
	}
	d.tap.SetState(target)
	klog.V(4).Infof("bitbang: %s -> %s, TMS 0x%02X/%d", from.ShortName(), target.ShortName(), pattern, count)
	return nil
}
