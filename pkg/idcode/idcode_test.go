package idcode

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseIDCode(t *testing.T) {
	id := ParseIDCode(0x4BA00477)
	want := IDCode{
		Raw:              0x4BA00477,
		Version:          0x4,
		PartNumber:       0xBA00,
		ManufacturerCode: 0x23B,
		HasIDCode:        true,
	}
	if diff := cmp.Diff(want, id); diff != "" {
		t.Fatalf("ParseIDCode mismatch (-want +got):\n%s", diff)
	}
	if !id.Valid() {
		t.Fatalf("0x4BA00477 should be valid")
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		raw  uint32
		want bool
	}{
		{0x06413041, true},
		{0x06413040, false}, // marker bit clear
		{0x000000FF, false}, // manufacturer 0x7F
		{0xFFFFFFFF, false},
	}
	for _, tt := range tests {
		if got := ParseIDCode(tt.raw).Valid(); got != tt.want {
			t.Errorf("Valid(0x%08X) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestLookupManufacturer(t *testing.T) {
	m, ok := LookupManufacturer(0x23B)
	if !ok || m.Abbreviation != "ARM" {
		t.Fatalf("LookupManufacturer(0x23B) = %+v, %v", m, ok)
	}
	if m.Bank() != 5 || m.ID() != 0x3B {
		t.Fatalf("ARM bank %d id 0x%02X, want 5/0x3B", m.Bank(), m.ID())
	}

	m, ok = LookupManufacturer(0x155)
	if ok {
		t.Fatalf("unexpected entry for 0x155")
	}
	if m.Name != "Unknown (bank 3, 0x55)" {
		t.Fatalf("placeholder name = %q", m.Name)
	}
}

func TestLookupPartIgnoresVersion(t *testing.T) {
	for _, raw := range []uint32{0x06413041, 0x16413041, 0x26413041} {
		p, ok := LookupPart(raw)
		if !ok || p.Family != "STM32F4" || p.IRLength != 5 {
			t.Fatalf("LookupPart(0x%08X) = %+v, %v", raw, p, ok)
		}
	}
	if _, ok := LookupPart(0x12345679); ok {
		t.Fatalf("unexpected part match")
	}
}

func TestString(t *testing.T) {
	got := ParseIDCode(0x4BA00477).String()
	want := "0x4BA00477 (mfr: ARM Ltd, part: 0xBA00, ver: 4) ARM JTAG-DP"
	if got != want {
		t.Fatalf("String = %q, want %q", got, want)
	}
}

// chainBits lays words out LSB first, in the order given.
func chainBits(t *testing.T, items ...any) ([]byte, int) {
	t.Helper()
	var bits []bool
	for _, it := range items {
		switch v := it.(type) {
		case uint32:
			for i := 0; i < 32; i++ {
				bits = append(bits, v&(1<<uint(i)) != 0)
			}
		case bool:
			bits = append(bits, v)
		default:
			t.Fatalf("unsupported chain item %T", it)
		}
	}
	buf := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			buf[i/8] |= 1 << uint(i%8)
		}
	}
	return buf, len(bits)
}

func TestExtractChain(t *testing.T) {
	buf, n := chainBits(t, uint32(0x4BA00477), false, uint32(0x06413041), uint32(0xFFFFFFFF))
	entries := ExtractChain(buf, n)

	want := []Entry{
		{IDCode: ParseIDCode(0x4BA00477)},
		{Bypass: true},
		{IDCode: ParseIDCode(0x06413041)},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("ExtractChain mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{0x4BA00477, 0x06413041}, IDCodes(entries)); diff != "" {
		t.Fatalf("IDCodes mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractChainStopsOnPartialWord(t *testing.T) {
	buf, n := chainBits(t, uint32(0x120034E5), true, true, true)
	entries := ExtractChain(buf, n)
	if len(entries) != 1 || entries[0].IDCode.Raw != 0x120034E5 {
		t.Fatalf("ExtractChain = %+v", entries)
	}
}

func TestExtractChainEmpty(t *testing.T) {
	buf, n := chainBits(t, uint32(0xFFFFFFFF))
	if entries := ExtractChain(buf, n); len(entries) != 0 {
		t.Fatalf("empty chain produced %+v", entries)
	}
}
