package bitbang

import "errors"

var (
	// ErrTransport marks recoverable USB transfer failures. Buffers are reset
	// and the current flush is abandoned.
	ErrTransport = errors.New("bitbang: transport error")
	ErrDesync    = errors.New("bitbang: read progress ahead of write progress")
	ErrStalled   = errors.New("bitbang: transfer made no progress")
	ErrClosed    = errors.New("bitbang: device not open")

	// ErrOverflow is returned for a byte dropped by the OverflowDrop policy.
	ErrOverflow = errors.New("bitbang: transmit buffer overflow")

	// ErrAdaptiveClock rejects a request for RTCK-style adaptive clocking.
	ErrAdaptiveClock = errors.New("bitbang: adaptive clocking not supported")

	ErrInvalidArgs       = errors.New("bitbang: invalid arguments")
	ErrNotStable         = errors.New("bitbang: target state is not stable")
	ErrPathTooLong       = errors.New("bitbang: TMS path longer than 8 bits")
	ErrInvalidTransition = errors.New("bitbang: invalid TAP transition")
	ErrNoScanner         = errors.New("bitbang: no scan layer configured")
	ErrUnknownCommand    = errors.New("bitbang: unknown command")
)
