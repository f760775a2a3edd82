package ftdi

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// InterfaceKind categorizes adapter families.
type InterfaceKind string

const (
	InterfaceKindFTDI InterfaceKind = "ftdi"
	InterfaceKindSim  InterfaceKind = "simulator"
)

// InterfaceInfo describes a detected adapter interface.
type InterfaceInfo struct {
	Kind        InterfaceKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Bus         int
	Address     int
}

// Label returns a user-friendly description for the interface.
func (i InterfaceInfo) Label() string {
	if i.Description != "" {
		return i.Description
	}
	if i.Kind != "" {
		return fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
	}
	return fmt.Sprintf("Interface %04X:%04X", i.VendorID, i.ProductID)
}

type knownUSBDevice struct {
	VendorID    uint16
	ProductID   uint16
	Description string
}

// knownFTDIVIDPIDs lists the chips whose D bus supports synchronous bit-bang.
var knownFTDIVIDPIDs = []knownUSBDevice{
	{VendorID: VendorIDFTDI, ProductID: ProductIDFT232R, Description: "FTDI FT232R (FTDI Friend)"},
	{VendorID: VendorIDFTDI, ProductID: 0x6010, Description: "FTDI FT2232"},
	{VendorID: VendorIDFTDI, ProductID: 0x6011, Description: "FTDI FT4232"},
	{VendorID: VendorIDFTDI, ProductID: 0x6014, Description: "FTDI FT232H"},
	{VendorID: VendorIDFTDI, ProductID: 0x6015, Description: "FTDI FT-X series"},
}

// Classify reports whether desc belongs to a known FTDI bit-bang capable chip.
func Classify(vid, pid uint16) (InterfaceInfo, bool) {
	for _, known := range knownFTDIVIDPIDs {
		if vid == known.VendorID && pid == known.ProductID {
			return InterfaceInfo{
				Kind:        InterfaceKindFTDI,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return InterfaceInfo{}, false
}

// DiscoverInterfaces enumerates connected FTDI devices. It always returns the
// simulator entry last so callers can work without hardware connected.
func DiscoverInterfaces(ctx context.Context) ([]InterfaceInfo, error) {
	var results []InterfaceInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := Classify(uint16(desc.Vendor), uint16(desc.Product)); ok {
			info.Bus = desc.Bus
			info.Address = desc.Address
			results = append(results, info)
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, err
	}

	results = append(results, InterfaceInfo{
		Kind:        InterfaceKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, nil
}
