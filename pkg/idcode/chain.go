package idcode

// Entry is one device found in a scan chain. Bypass marks a device that
// selected BYPASS instead of IDCODE after reset and contributed a single 0.
type Entry struct {
	IDCode IDCode
	Bypass bool
}

// endMarker is what a shift of all ones produces once it has passed every
// device.
const endMarker = 0xFFFFFFFF

// ExtractChain walks bits DR bits captured after a TAP reset, LSB first,
// device nearest TDO first. A 0 bit is a device in BYPASS; a 1 starts a
// 32-bit IDCODE. The walk stops at the first all-ones word, which is the
// shifted-in TDI pattern, or when fewer than 32 bits remain.
func ExtractChain(buf []byte, bits int) []Entry {
	var out []Entry
	for i := 0; i < bits; {
		if !bitAt(buf, i) {
			out = append(out, Entry{Bypass: true})
			i++
			continue
		}
		if i+32 > bits {
			break
		}
		var raw uint32
		for j := 0; j < 32; j++ {
			if bitAt(buf, i+j) {
				raw |= 1 << uint(j)
			}
		}
		if raw == endMarker {
			break
		}
		out = append(out, Entry{IDCode: ParseIDCode(raw)})
		i += 32
	}
	return out
}

// IDCodes returns only the devices that reported an IDCODE.
func IDCodes(entries []Entry) []uint32 {
	var out []uint32
	for _, e := range entries {
		if !e.Bypass {
			out = append(out, e.IDCode.Raw)
		}
	}
	return out
}

func bitAt(buf []byte, i int) bool {
	return i/8 < len(buf) && buf[i/8]&(1<<uint(i%8)) != 0
}
