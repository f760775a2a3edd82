package bitbang

// FT232R D bus assignment.
const (
	PinTCK  byte = 1 << 0 // TXD
	PinTDI  byte = 1 << 1 // RXD
	PinTMS  byte = 1 << 2 // RTS
	PinTDO  byte = 1 << 3 // CTS, input. Sample request in transmit bytes.
	PinTRST byte = 1 << 4 // DTR, active low
	PinSRST byte = 1 << 5 // DSR, active low

	// OutputMask selects the pins the converter drives. PinTDO stays an input,
	// so its bit in transmit bytes never reaches the wire.
	OutputMask = PinTCK | PinTDI | PinTMS | PinTRST | PinSRST
)

// ResetLines records which reset lines are asserted.
type ResetLines struct {
	TRST bool
	SRST bool
}

// Encode returns the pin byte for one bit-bang clock. Reset lines are active
// low, so their bits are set unless the line is asserted.
func Encode(tck, tms, tdi, sampleTDO bool, resets ResetLines) byte {
	var b byte
	if tck {
		b |= PinTCK
	}
	if tms {
		b |= PinTMS
	}
	if tdi {
		b |= PinTDI
	}
	if sampleTDO {
		b |= PinTDO
	}
	if !resets.TRST {
		b |= PinTRST
	}
	if !resets.SRST {
		b |= PinSRST
	}
	return b
}

// Pulse returns the two bytes of a full TCK cycle. TMS and TDI are held for
// both phases and the sample request is only set on the rising phase, where
// the target presents TDO.
func Pulse(tms, tdi, sampleTDO bool, resets ResetLines) [2]byte {
	return [2]byte{
		Encode(false, tms, tdi, false, resets),
		Encode(true, tms, tdi, sampleTDO, resets),
	}
}

// Idle returns the all-signals-low byte with the given reset levels.
func Idle(resets ResetLines) byte {
	return Encode(false, false, false, false, resets)
}
