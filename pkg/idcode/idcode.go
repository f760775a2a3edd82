// Package idcode decodes IEEE 1149.1 IDCODE values and splits the data
// register stream captured after a TAP reset into per-device IDCODEs.
package idcode

import "fmt"

// IDCode is a parsed 32-bit IDCODE.
type IDCode struct {
	Raw              uint32
	Version          uint8  // [31:28]
	PartNumber       uint16 // [27:12]
	ManufacturerCode uint16 // [11:1], JEP106 bank and ID
	HasIDCode        bool   // bit 0
}

// ParseIDCode splits raw into its fields.
func ParseIDCode(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8(raw >> 28 & 0xF),
		PartNumber:       uint16(raw >> 12 & 0xFFFF),
		ManufacturerCode: uint16(raw >> 1 & 0x7FF),
		HasIDCode:        raw&1 == 1,
	}
}

// Valid reports whether the value can be a real IDCODE. The marker bit must
// be set and the manufacturer ID may not be the reserved 0x7F.
func (id IDCode) Valid() bool {
	return id.HasIDCode && id.ManufacturerCode&0x7F != 0x7F
}

func (id IDCode) String() string {
	m, _ := LookupManufacturer(id.ManufacturerCode)
	s := fmt.Sprintf("0x%08X (mfr: %s, part: 0x%04X, ver: %d)",
		id.Raw, m.Name, id.PartNumber, id.Version)
	if p, ok := LookupPart(id.Raw); ok {
		s += " " + p.Name
	}
	return s
}
