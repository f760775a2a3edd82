package bitbang

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Flush drains the transmit buffer. Writes and reads are issued in frames of
// FrameSize bytes, with one write and one read outstanding at a time so the
// converter's IN and OUT endpoints run in parallel. The transmit and receive
// streams are byte synchronous: the Nth byte read is the sample taken while
// the Nth byte written was on the pins. For every transmit byte carrying the
// PinTDO sample request, the TDO level of its read byte is appended to the
// receive buffer as 0 or 1.
//
// A transfer error abandons the flush and resets both buffers.
func (d *Driver) Flush() error {
	total := d.tx.Len()
	if total == 0 {
		return nil
	}
	if d.dev == nil {
		return d.abort("flush", 0, 0, ErrClosed)
	}

	tx := d.tx.Bytes()
	frame := d.cfg.FrameSize
	written, read, stalls := 0, 0, 0

	for read < total {
		wlen := min(frame, total-written)
		rlen := min(frame, total-read)

		var (
			g      errgroup.Group
			wn, rn int
		)
		if wlen > 0 {
			chunk := tx[written : written+wlen]
			g.Go(func() error {
				n, err := d.dev.Write(chunk)
				wn = n
				return err
			})
		}
		g.Go(func() error {
			n, err := d.dev.Read(d.frame[:rlen])
			rn = n
			return err
		})
		if err := g.Wait(); err != nil {
			return d.abort("transfer", written, read, err)
		}
		if wn < 0 || wn > wlen || rn < 0 || rn > rlen {
			return d.abort("transfer", written, read,
				fmt.Errorf("bad transfer count: wrote %d of %d, read %d of %d", wn, wlen, rn, rlen))
		}

		written += wn
		if read+rn > written {
			return d.abort("transfer", written, read,
				fmt.Errorf("%w: %d bytes read, %d written", ErrDesync, read+rn, written))
		}

		for i, sample := range d.frame[:rn] {
			if tx[read+i]&PinTDO != 0 {
				d.capture(sample&PinTDO != 0)
			}
		}
		read += rn

		if wn == 0 && rn == 0 {
			stalls++
			if stalls >= d.cfg.MaxStalls {
				return d.abort("transfer", written, read,
					fmt.Errorf("%w after %d attempts", ErrStalled, stalls))
			}
		} else {
			stalls = 0
		}
	}

	d.tx.Reset()
	d.metrics.Flushes.Inc()
	d.metrics.BytesWritten.Add(float64(written))
	d.metrics.BytesRead.Add(float64(read))
	klog.V(4).Infof("bitbang: flushed %d bytes, %d samples buffered", total, d.rx.Len())
	return nil
}

// capture appends one TDO sample to the receive buffer.
func (d *Driver) capture(tdo bool) {
	var v byte
	if tdo {
		v = 1
	}
	if d.rx.Full() {
		d.rx.Compact()
	}
	if !d.rx.Append(v) {
		d.metrics.OverflowDrops.Inc()
		klog.Warningf("bitbang: receive buffer full (%d samples), dropping sample", d.rx.Cap())
		return
	}
	d.metrics.Samples.Inc()
}

// abort logs a transport warning, discards both buffers and returns the
// error wrapped in ErrTransport.
func (d *Driver) abort(op string, written, read int, err error) error {
	klog.Warningf("bitbang: %s failed after %d/%d bytes written/read of %d: %v",
		op, written, read, d.tx.Len(), err)
	d.tx.Reset()
	d.rx.Reset()
	d.metrics.TransportWarnings.Inc()
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
