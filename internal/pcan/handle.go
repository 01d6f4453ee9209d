package pcan

import "fmt"

// Handle identifies a PCAN channel (TPCANHandle).
type Handle uint16

// NoneBus is the undefined channel handle. Non-PEAK drivers that own a single
// channel accept it.
const NoneBus Handle = 0x00

// Channel handle bases. Channel n of a family is base+n for the first eight
// channels; PCI and USB continue at a second base for channels 9-16.
const (
	isaBase  Handle = 0x20
	dngBase  Handle = 0x30
	pciBase  Handle = 0x40
	pciBase2 Handle = 0x400
	usbBase  Handle = 0x50
	usbBase2 Handle = 0x500
	pccBase  Handle = 0x60
	lanBase  Handle = 0x800
)

// Bus is a PCAN hardware family.
type Bus int

const (
	BusISA Bus = iota + 1
	BusDNG
	BusPCI
	BusUSB
	BusPCC
	BusLAN
)

var busNames = map[Bus]string{
	BusISA: "isa",
	BusDNG: "dng",
	BusPCI: "pci",
	BusUSB: "usb",
	BusPCC: "pcc",
	BusLAN: "lan",
}

func (b Bus) String() string {
	if s, ok := busNames[b]; ok {
		return s
	}
	return fmt.Sprintf("bus(%d)", int(b))
}

// Channels returns how many channels the family addresses.
func (b Bus) Channels() int {
	switch b {
	case BusISA:
		return 8
	case BusDNG:
		return 1
	case BusPCI, BusUSB, BusLAN:
		return 16
	case BusPCC:
		return 2
	default:
		return 0
	}
}

// ErrChannelRange is returned by ChannelHandle for out-of-range channel numbers.
var ErrChannelRange = fmt.Errorf("pcan: channel out of range: %w", ErrIllHW)

// ChannelHandle returns the handle of channel n (1-based) of family b.
func ChannelHandle(b Bus, n int) (Handle, error) {
	if n < 1 || n > b.Channels() {
		return NoneBus, fmt.Errorf("%w: %s%d", ErrChannelRange, b, n)
	}
	h := Handle(n)
	switch b {
	case BusISA:
		return isaBase + h, nil
	case BusDNG:
		return dngBase + h, nil
	case BusPCI:
		if n > 8 {
			return pciBase2 + h, nil
		}
		return pciBase + h, nil
	case BusUSB:
		if n > 8 {
			return usbBase2 + h, nil
		}
		return usbBase + h, nil
	case BusPCC:
		return pccBase + h, nil
	case BusLAN:
		return lanBase + h, nil
	}
	return NoneBus, fmt.Errorf("%w: %s%d", ErrChannelRange, b, n)
}

// ParseBus maps a family name ("usb", "pci", ...) to a Bus.
func ParseBus(s string) (Bus, bool) {
	for b, name := range busNames {
		if name == s {
			return b, true
		}
	}
	return 0, false
}

// HardwareType selects the non-plug-and-play hardware model (TPCANType).
type HardwareType uint8

const (
	HardwareDefault   HardwareType = 0x00
	HardwareISA       HardwareType = 0x01 // PCAN-ISA 82C200
	HardwareISASJA    HardwareType = 0x09 // PCAN-ISA SJA1000
	HardwarePHYT      HardwareType = 0x04 // PHYTEC ISA
	HardwareDNG       HardwareType = 0x02 // PCAN-Dongle 82C200
	HardwareDNGEPP    HardwareType = 0x03 // PCAN-Dongle EPP 82C200
	HardwareDNGSJA    HardwareType = 0x05 // PCAN-Dongle SJA1000
	HardwareDNGSJAEPP HardwareType = 0x06 // PCAN-Dongle EPP SJA1000
)
