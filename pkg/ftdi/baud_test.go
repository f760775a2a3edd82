package ftdi

import "testing"

func TestBaudDivisor(t *testing.T) {
	tests := []struct {
		name       string
		baud       int
		wantValue  uint16
		wantIndex  uint16
		wantActual int
	}{
		{"3 MBd", 3_000_000, 0x0000, 0, 3_000_000},
		{"above max clamps", 6_000_000, 0x0000, 0, 3_000_000},
		{"2 MBd", 2_000_000, 0x0001, 0, 2_000_000},
		{"1.5 MBd", 1_500_000, 0x0002, 0, 1_500_000},
		{"1 MBd", 1_000_000, 0x0003, 0, 1_000_000},
		{"115200", 115_200, 0x001A, 0, 115_384},
		{"9600", 9600, 0x4138, 0, 9600},
		{"slowest", 1, 0xFFFF, 1, 183},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, index, actual, err := BaudDivisor(tt.baud)
			if err != nil {
				t.Fatalf("BaudDivisor(%d) returned error: %v", tt.baud, err)
			}
			if value != tt.wantValue || index != tt.wantIndex {
				t.Errorf("BaudDivisor(%d) = 0x%04X/0x%04X, want 0x%04X/0x%04X",
					tt.baud, value, index, tt.wantValue, tt.wantIndex)
			}
			if actual != tt.wantActual {
				t.Errorf("BaudDivisor(%d) actual = %d, want %d", tt.baud, actual, tt.wantActual)
			}
		})
	}
}

func TestBaudDivisorRejectsZero(t *testing.T) {
	if _, _, _, err := BaudDivisor(0); err == nil {
		t.Fatalf("expected error for zero baud")
	}
}
