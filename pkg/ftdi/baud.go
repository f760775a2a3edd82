package ftdi

import "fmt"

const (
	// baseClock is the FT232R/BM baud generator reference in eighths of a
	// 3 MHz clock.
	baseClock    = 24_000_000
	MaxBaudRate  = 3_000_000
	maxDivisor   = 0x1FFFF
	divisor3MBd  = 8
	divisor2MBd  = 12
	divisor15MBd = 16
)

// fracCode maps the divisor's eighths to the chip's sub-integer encoding.
var fracCode = [8]uint32{0, 3, 2, 4, 1, 5, 6, 7}

// BaudDivisor computes the SET_BAUDRATE wValue/wIndex pair for the closest
// achievable rate on FT232R/FT232BM class chips and returns that rate.
func BaudDivisor(baud int) (value, index uint16, actual int, err error) {
	if baud <= 0 {
		return 0, 0, 0, fmt.Errorf("ftdi: invalid baud rate %d", baud)
	}

	divisor := baseClock / baud
	best, bestBaud, bestDiff := 0, 0, 0
	for i := 0; i < 2; i++ {
		try := divisor + i
		switch {
		case try <= divisor3MBd:
			try = divisor3MBd
		case try <= divisor2MBd:
			try = divisor2MBd
		case try < divisor15MBd:
			try = divisor15MBd
		case try > maxDivisor:
			try = maxDivisor
		}
		estimate := (baseClock + try/2) / try
		diff := estimate - baud
		if diff < 0 {
			diff = -diff
		}
		if i == 0 || diff < bestDiff {
			best, bestBaud, bestDiff = try, estimate, diff
		}
	}

	encoded := uint32(best>>3) | fracCode[best&7]<<14
	switch encoded {
	case 1:
		encoded = 0 // 3 MBd
	case 0x4001:
		encoded = 1 // 2 MBd
	}
	return uint16(encoded & 0xFFFF), uint16(encoded >> 16), bestBaud, nil
}
