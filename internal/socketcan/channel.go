package socketcan

import (
	"fmt"
	"time"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// Channel is an initialized SocketCAN interface. It accepts both the classic
// and the FD operations; FD frames need a socket opened in FD mode.
type Channel struct {
	dev *Device
	can.RecvCAN
	can.RecvCANFD
	can.SendCAN
	can.SendCANFD
}

var (
	_ can.CANReceiver = (*Channel)(nil)
	_ can.FDReceiver  = (*Channel)(nil)
	_ can.CANSender   = (*Channel)(nil)
	_ can.FDSender    = (*Channel)(nil)
)

// OpenChannel opens iface and initializes it in classic or FD mode.
func OpenChannel(iface string, fd bool, readTimeout time.Duration) (*Channel, error) {
	dev, err := Open(iface, fd, readTimeout)
	if err != nil {
		return nil, err
	}
	if err := initChannel(dev, fd).Err(); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("socketcan: init %s: %w", iface, err)
	}
	return &Channel{dev: dev}, nil
}

// initChannel runs exactly one of the classic or FD initializations.
func initChannel(dev pcan.Driver, fd bool) pcan.Status {
	if fd {
		return dev.InitializeFD(pcan.NoneBus, "")
	}
	return dev.Initialize(pcan.NoneBus, 0, pcan.HardwareDefault, 0, 0)
}

func (c *Channel) Handle() pcan.Handle { return pcan.NoneBus }
func (c *Channel) Driver() pcan.Driver { return c.dev }
func (c *Channel) String() string      { return c.dev.String() }

// LastError returns the socket error behind the latest failed call.
func (c *Channel) LastError() error { return c.dev.LastError() }

// Close uninitializes the channel and closes the socket.
func (c *Channel) Close() error {
	_ = c.dev.Uninitialize(pcan.NoneBus)
	return c.dev.Close()
}
