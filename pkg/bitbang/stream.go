package bitbang

import "time"

// ByteStream is the bit-level view of a session used by scan layers: single
// pin bytes in, TDO samples out.
type ByteStream interface {
	// Emit queues one pin byte.
	Emit(tck, tms, tdi, sample bool) error
	Flush() error
	// Delay flushes and then waits us microseconds.
	Delay(us uint32) error
	// AssertReset drives the reset lines (true means asserted, pin low).
	AssertReset(trst, srst bool) error
	SamplesAvailable() int
	// SampleCapacity is the most samples the stream holds before they must
	// be read.
	SampleCapacity() int
	// ReadSample consumes the oldest TDO sample, 0 or 1, or returns -1 when
	// none is buffered.
	ReadSample() int
}

var _ ByteStream = (*Driver)(nil)

func (d *Driver) Emit(tck, tms, tdi, sample bool) error {
	return d.emit(tck, tms, tdi, sample)
}

// Delay flushes pending output and waits. The wait happens even when the
// flush fails; the flush error is returned.
func (d *Driver) Delay(us uint32) error {
	err := d.Flush()
	d.sleeper.Sleep(time.Duration(us) * time.Microsecond)
	return err
}

// AssertReset updates the reset lines and queues one idle byte carrying the
// new levels.
func (d *Driver) AssertReset(trst, srst bool) error {
	d.resets = ResetLines{TRST: trst, SRST: srst}
	return d.idle()
}

// Resets reports the reset lines currently driven.
func (d *Driver) Resets() ResetLines { return d.resets }

func (d *Driver) SamplesAvailable() int { return d.rx.Len() }

func (d *Driver) SampleCapacity() int { return d.rx.Cap() }

func (d *Driver) ReadSample() int {
	c, ok := d.rx.Next()
	if !ok {
		return -1
	}
	return int(c)
}
