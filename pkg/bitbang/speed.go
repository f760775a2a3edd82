package bitbang

import (
	"fmt"

	"k8s.io/klog/v2"
)

// SetSpeed programs the TCK byte rate. The speed unit is kHz, so it is also
// the argument of SpeedToKHz.
func (d *Driver) SetSpeed(khz int) error {
	if khz <= 0 {
		return fmt.Errorf("%w: speed %d kHz", ErrInvalidArgs, khz)
	}
	if d.dev == nil {
		return ErrClosed
	}
	if err := d.Flush(); err != nil {
		return err
	}
	if err := d.dev.SetClock(khz * 1000); err != nil {
		klog.Warningf("bitbang: set clock %d kHz: %v", khz, err)
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	d.speedKHz = khz
	klog.V(2).Infof("bitbang: speed %d kHz", khz)
	return nil
}

// Speed returns the last programmed speed in kHz.
func (d *Driver) Speed() int { return d.speedKHz }

// SpeedToKHz converts a driver speed value to kHz.
func SpeedToKHz(speed int) (int, error) {
	if speed < 0 {
		return 0, fmt.Errorf("%w: speed %d", ErrInvalidArgs, speed)
	}
	return speed, nil
}

// KHzToSpeed converts kHz to a driver speed value. Zero requests adaptive
// clocking, which the converter cannot do.
func KHzToSpeed(khz int) (int, error) {
	if khz == 0 {
		return 0, ErrAdaptiveClock
	}
	if khz < 0 {
		return 0, fmt.Errorf("%w: %d kHz", ErrInvalidArgs, khz)
	}
	return khz, nil
}
