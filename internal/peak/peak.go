// Package peak provides the PEAK-System transports. Each hardware family is a
// separate type whose embedded capability markers say which of the can
// operations it accepts: USB, PCI and LAN adapters speak classic CAN and
// CAN-FD, ISA, Dongle and PC-Card adapters speak classic CAN only.
package peak

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// channel is an initialized handle on a driver.
type channel struct {
	handle pcan.Handle
	drv    pcan.Driver
	bus    pcan.Bus
	n      int
}

func (c channel) Handle() pcan.Handle { return c.handle }
func (c channel) Driver() pcan.Driver { return c.drv }
func (c channel) String() string      { return c.bus.String() + strconv.Itoa(c.n) }

// Close uninitializes the channel.
func (c channel) Close() error {
	if err := c.drv.Uninitialize(c.handle).Err(); err != nil {
		return fmt.Errorf("peak: close %s: %w", c, err)
	}
	return nil
}

// USB is a PCAN-USB channel.
type USB struct {
	channel
	can.RecvCAN
	can.RecvCANFD
	can.SendCAN
	can.SendCANFD
}

// PCI is a PCAN-PCI channel.
type PCI struct {
	channel
	can.RecvCAN
	can.RecvCANFD
	can.SendCAN
	can.SendCANFD
}

// LAN is a PCAN-Gateway channel.
type LAN struct {
	channel
	can.RecvCAN
	can.RecvCANFD
	can.SendCAN
	can.SendCANFD
}

// ISA is a PCAN-ISA channel.
type ISA struct {
	channel
	can.RecvCAN
	can.SendCAN
}

// DNG is a PCAN-Dongle channel.
type DNG struct {
	channel
	can.RecvCAN
	can.SendCAN
}

// PCC is a PCAN-PC Card channel.
type PCC struct {
	channel
	can.RecvCAN
	can.SendCAN
}

var (
	_ can.FDReceiver  = USB{}
	_ can.FDSender    = USB{}
	_ can.CANReceiver = USB{}
	_ can.CANSender   = USB{}
	_ can.FDReceiver  = PCI{}
	_ can.FDSender    = PCI{}
	_ can.FDReceiver  = LAN{}
	_ can.FDSender    = LAN{}
	_ can.CANReceiver = ISA{}
	_ can.CANSender   = ISA{}
	_ can.CANReceiver = DNG{}
	_ can.CANSender   = DNG{}
	_ can.CANReceiver = PCC{}
	_ can.CANSender   = PCC{}
)

// ParseChannel splits a channel name such as "usb1" or "LAN12" into the bus
// family and 1-based channel number.
func ParseChannel(s string) (pcan.Bus, int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	i := strings.IndexFunc(s, func(r rune) bool { return r >= '0' && r <= '9' })
	if i <= 0 {
		return 0, 0, fmt.Errorf("peak: invalid channel %q", s)
	}
	bus, ok := pcan.ParseBus(s[:i])
	if !ok {
		return 0, 0, fmt.Errorf("peak: unknown bus %q", s[:i])
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, 0, fmt.Errorf("peak: invalid channel %q: %w", s, err)
	}
	if _, err := pcan.ChannelHandle(bus, n); err != nil {
		return 0, 0, err
	}
	return bus, n, nil
}
