package peak

import (
	"errors"
	"fmt"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// ErrFDUnsupported is returned by Open when FD mode is requested on a
// classic-only family.
var ErrFDUnsupported = errors.New("peak: bus does not support CAN-FD")

// Channel is any open PEAK channel. FD-capable channels additionally satisfy
// can.FDReceiver and can.FDSender.
type Channel interface {
	can.CANReceiver
	can.CANSender
	Close() error
	String() string
}

// Config selects and initializes a channel by name.
type Config struct {
	Channel   string // e.g. "usb1"
	Baudrate  pcan.BTR0BTR1
	FD        bool
	BitrateFD pcan.BitrateFD
	// Non-plug-and-play hardware only (ISA, Dongle).
	HWType pcan.HardwareType
	IOPort uint32
	IRQ    uint16
}

// Open parses cfg.Channel and opens it with the matching constructor.
func Open(drv pcan.Driver, cfg Config) (Channel, error) {
	bus, n, err := ParseChannel(cfg.Channel)
	if err != nil {
		return nil, err
	}
	if cfg.FD {
		switch bus {
		case pcan.BusUSB:
			return orNil(OpenUSBFD(drv, n, cfg.BitrateFD))
		case pcan.BusPCI:
			return orNil(OpenPCIFD(drv, n, cfg.BitrateFD))
		case pcan.BusLAN:
			return orNil(OpenLANFD(drv, n, cfg.BitrateFD))
		}
		return nil, fmt.Errorf("%w: %s", ErrFDUnsupported, bus)
	}
	switch bus {
	case pcan.BusUSB:
		return orNil(OpenUSB(drv, n, cfg.Baudrate))
	case pcan.BusPCI:
		return orNil(OpenPCI(drv, n, cfg.Baudrate))
	case pcan.BusLAN:
		return orNil(OpenLAN(drv, n, cfg.Baudrate))
	case pcan.BusISA:
		return orNil(OpenISA(drv, n, cfg.Baudrate, cfg.HWType, cfg.IOPort, cfg.IRQ))
	case pcan.BusDNG:
		return orNil(OpenDNG(drv, n, cfg.Baudrate, cfg.HWType, cfg.IOPort, cfg.IRQ))
	case pcan.BusPCC:
		return orNil(OpenPCC(drv, n, cfg.Baudrate))
	}
	return nil, fmt.Errorf("peak: unsupported bus %s", bus)
}

// orNil keeps a failed open from returning a non-nil Channel.
func orNil(c Channel, err error) (Channel, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}

func open(drv pcan.Driver, bus pcan.Bus, n int, btr pcan.BTR0BTR1, hw pcan.HardwareType, ioPort uint32, irq uint16) (channel, error) {
	h, err := pcan.ChannelHandle(bus, n)
	if err != nil {
		return channel{}, err
	}
	if err := drv.Initialize(h, btr, hw, ioPort, irq).Err(); err != nil {
		return channel{}, fmt.Errorf("peak: open %s%d: %w", bus, n, err)
	}
	return channel{handle: h, drv: drv, bus: bus, n: n}, nil
}

func openFD(drv pcan.Driver, bus pcan.Bus, n int, bitrate pcan.BitrateFD) (channel, error) {
	h, err := pcan.ChannelHandle(bus, n)
	if err != nil {
		return channel{}, err
	}
	if err := drv.InitializeFD(h, bitrate).Err(); err != nil {
		return channel{}, fmt.Errorf("peak: open %s%d (fd): %w", bus, n, err)
	}
	return channel{handle: h, drv: drv, bus: bus, n: n}, nil
}

// OpenUSB opens USB channel n in classic mode at btr.
func OpenUSB(drv pcan.Driver, n int, btr pcan.BTR0BTR1) (USB, error) {
	c, err := open(drv, pcan.BusUSB, n, btr, pcan.HardwareDefault, 0, 0)
	return USB{channel: c}, err
}

// OpenUSBFD opens USB channel n in FD mode.
func OpenUSBFD(drv pcan.Driver, n int, bitrate pcan.BitrateFD) (USB, error) {
	c, err := openFD(drv, pcan.BusUSB, n, bitrate)
	return USB{channel: c}, err
}

func OpenPCI(drv pcan.Driver, n int, btr pcan.BTR0BTR1) (PCI, error) {
	c, err := open(drv, pcan.BusPCI, n, btr, pcan.HardwareDefault, 0, 0)
	return PCI{channel: c}, err
}

func OpenPCIFD(drv pcan.Driver, n int, bitrate pcan.BitrateFD) (PCI, error) {
	c, err := openFD(drv, pcan.BusPCI, n, bitrate)
	return PCI{channel: c}, err
}

func OpenLAN(drv pcan.Driver, n int, btr pcan.BTR0BTR1) (LAN, error) {
	c, err := open(drv, pcan.BusLAN, n, btr, pcan.HardwareDefault, 0, 0)
	return LAN{channel: c}, err
}

func OpenLANFD(drv pcan.Driver, n int, bitrate pcan.BitrateFD) (LAN, error) {
	c, err := openFD(drv, pcan.BusLAN, n, bitrate)
	return LAN{channel: c}, err
}

// OpenISA opens a non-plug-and-play ISA channel; hw, ioPort and irq
// describe the card.
func OpenISA(drv pcan.Driver, n int, btr pcan.BTR0BTR1, hw pcan.HardwareType, ioPort uint32, irq uint16) (ISA, error) {
	c, err := open(drv, pcan.BusISA, n, btr, hw, ioPort, irq)
	return ISA{channel: c}, err
}

// OpenDNG opens a parallel-port Dongle channel.
func OpenDNG(drv pcan.Driver, n int, btr pcan.BTR0BTR1, hw pcan.HardwareType, ioPort uint32, irq uint16) (DNG, error) {
	c, err := open(drv, pcan.BusDNG, n, btr, hw, ioPort, irq)
	return DNG{channel: c}, err
}

func OpenPCC(drv pcan.Driver, n int, btr pcan.BTR0BTR1) (PCC, error) {
	c, err := open(drv, pcan.BusPCC, n, btr, pcan.HardwareDefault, 0, 0)
	return PCC{channel: c}, err
}
