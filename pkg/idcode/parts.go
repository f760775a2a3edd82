package idcode

// Part is a known device with the IR length its TAP needs.
type Part struct {
	Name     string
	Family   string
	IRLength int
}

type partKey struct {
	manufacturer uint16
	part         uint16
}

var parts = map[partKey]Part{
	{0x23B, 0xBA00}: {Name: "ARM JTAG-DP", Family: "CoreSight", IRLength: 4},
	{0x23B, 0xBA02}: {Name: "ARM JTAG-DP (Cortex-M0)", Family: "CoreSight", IRLength: 4},
	{0x020, 0x6410}: {Name: "STM32F10x medium-density BSC", Family: "STM32F1", IRLength: 5},
	{0x020, 0x6413}: {Name: "STM32F40x/41x BSC", Family: "STM32F4", IRLength: 5},
	{0x049, 0x1414}: {Name: "XC3S200", Family: "Spartan-3", IRLength: 6},
	{0x06E, 0x20A1}: {Name: "EPM240", Family: "MAX II", IRLength: 10},
	{0x272, 0x2003}: {Name: "ESP32", Family: "ESP32", IRLength: 5},
}

// LookupPart finds the part for a raw IDCODE, ignoring the version field.
func LookupPart(raw uint32) (Part, bool) {
	id := ParseIDCode(raw)
	p, ok := parts[partKey{id.ManufacturerCode, id.PartNumber}]
	return p, ok
}
