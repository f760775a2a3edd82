package ftdi

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestStripStatus(t *testing.T) {
	tests := []struct {
		name       string
		raw        []byte
		packetSize int
		want       []byte
	}{
		{
			name:       "status only",
			raw:        []byte{0x31, 0x60},
			packetSize: 8,
			want:       []byte{},
		},
		{
			name:       "single partial packet",
			raw:        []byte{0x31, 0x60, 0xAA, 0xBB},
			packetSize: 8,
			want:       []byte{0xAA, 0xBB},
		},
		{
			name:       "two packets",
			raw:        []byte{0x31, 0x60, 1, 2, 3, 4, 5, 6, 0x31, 0x60, 7, 8},
			packetSize: 8,
			want:       []byte{1, 2, 3, 4, 5, 6, 7, 8},
		},
		{
			name:       "trailing status only packet",
			raw:        []byte{0x31, 0x60, 1, 2, 0x31, 0x60},
			packetSize: 4,
			want:       []byte{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripStatus(tt.raw, tt.packetSize)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("StripStatus() = %X, want %X", got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	info, ok := Classify(VendorIDFTDI, ProductIDFT232R)
	if !ok {
		t.Fatalf("FT232R not classified")
	}
	if info.Kind != InterfaceKindFTDI {
		t.Errorf("Kind = %s, want %s", info.Kind, InterfaceKindFTDI)
	}
	if _, ok := Classify(0x2E8A, 0x000C); ok {
		t.Errorf("CMSIS-DAP probe classified as FTDI")
	}
}

func TestInterfaceLabel(t *testing.T) {
	if got := (InterfaceInfo{Description: "x"}).Label(); got != "x" {
		t.Errorf("Label() = %q, want x", got)
	}
	got := (InterfaceInfo{Kind: InterfaceKindFTDI, VendorID: 0x0403, ProductID: 0x6001}).Label()
	if got != "ftdi (0403:6001)" {
		t.Errorf("Label() = %q", got)
	}
}

func TestDiscoverInterfacesIncludesSimulator(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping USB enumeration in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	infos, err := DiscoverInterfaces(ctx)
	if err != nil {
		t.Skipf("USB enumeration unavailable: %v", err)
	}
	if len(infos) == 0 || infos[len(infos)-1].Kind != InterfaceKindSim {
		t.Fatalf("simulator entry missing: %+v", infos)
	}
}

// Integration test - only runs with real hardware
func TestDeviceIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dev, err := Open(VendorIDFTDI, ProductIDFT232R)
	if err != nil {
		t.Skipf("No FT232R hardware found: %v", err)
	}
	defer dev.Close()

	if err := dev.EnableSyncBitbang(0x37); err != nil {
		t.Fatalf("EnableSyncBitbang failed: %v", err)
	}
	if err := dev.SetLatencyTimer(2); err != nil {
		t.Fatalf("SetLatencyTimer failed: %v", err)
	}

	out := []byte{0x30, 0x31, 0x30, 0x31}
	if _, err := dev.Write(out); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Synchronous bit-bang returns one sample per byte written.
	got := 0
	buf := make([]byte, len(out))
	for tries := 0; got < len(out) && tries < 100; tries++ {
		n, err := dev.Read(buf[got:])
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		got += n
	}
	if got != len(out) {
		t.Fatalf("read %d samples, want %d", got, len(out))
	}
}
