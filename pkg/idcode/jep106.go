package idcode

import "fmt"

// Manufacturer is a JEP106 entry. Code holds the continuation count in bits
// [10:7] and the 7-bit ID in [6:0], matching the IDCODE manufacturer field.
type Manufacturer struct {
	Code         uint16
	Name         string
	Abbreviation string
}

// Bank is the 1-based JEP106 bank.
func (m Manufacturer) Bank() int { return int(m.Code>>7) + 1 }

// ID is the manufacturer ID within its bank, parity bit stripped.
func (m Manufacturer) ID() uint8 { return uint8(m.Code & 0x7F) }

var manufacturers = map[uint16]Manufacturer{
	0x001: {Code: 0x001, Name: "AMD", Abbreviation: "AMD"},
	0x009: {Code: 0x009, Name: "Intel", Abbreviation: "Intel"},
	0x00E: {Code: 0x00E, Name: "Freescale (Motorola)", Abbreviation: "Freescale"},
	0x015: {Code: 0x015, Name: "NXP (Philips)", Abbreviation: "NXP"},
	0x017: {Code: 0x017, Name: "Texas Instruments", Abbreviation: "TI"},
	0x01F: {Code: 0x01F, Name: "Atmel", Abbreviation: "Atmel"},
	0x020: {Code: 0x020, Name: "STMicroelectronics", Abbreviation: "ST"},
	0x021: {Code: 0x021, Name: "Lattice Semiconductor", Abbreviation: "Lattice"},
	0x029: {Code: 0x029, Name: "Microchip Technology", Abbreviation: "Microchip"},
	0x041: {Code: 0x041, Name: "Infineon", Abbreviation: "Infineon"},
	0x049: {Code: 0x049, Name: "Xilinx", Abbreviation: "Xilinx"},
	0x06E: {Code: 0x06E, Name: "Altera", Abbreviation: "Altera"},
	0x23B: {Code: 0x23B, Name: "ARM Ltd", Abbreviation: "ARM"},
	0x272: {Code: 0x272, Name: "Espressif Systems", Abbreviation: "Espressif"},
}

// LookupManufacturer returns the entry for code. Unknown codes get a
// placeholder name and false.
func LookupManufacturer(code uint16) (Manufacturer, bool) {
	if m, ok := manufacturers[code]; ok {
		return m, true
	}
	return Manufacturer{
		Code:         code,
		Name:         fmt.Sprintf("Unknown (bank %d, 0x%02X)", code>>7+1, code&0x7F),
		Abbreviation: "Unknown",
	}, false
}
