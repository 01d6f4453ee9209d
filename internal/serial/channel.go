package serial

import (
	"fmt"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// Channel is an initialized UART adapter. It carries classic frames only.
type Channel struct {
	port Port
	drv  *Driver
	can.RecvCAN
	can.SendCAN
}

var (
	_ can.CANReceiver = (*Channel)(nil)
	_ can.CANSender   = (*Channel)(nil)
)

// NewChannel initializes a channel over an already open port.
func NewChannel(p Port) (*Channel, error) {
	drv := NewDriver(p)
	if err := drv.Initialize(pcan.NoneBus, 0, pcan.HardwareDefault, 0, 0).Err(); err != nil {
		return nil, fmt.Errorf("serial: init: %w", err)
	}
	return &Channel{port: p, drv: drv}, nil
}

func (c *Channel) Handle() pcan.Handle { return pcan.NoneBus }
func (c *Channel) Driver() pcan.Driver { return c.drv }

// LastError returns the port error behind the latest failed call.
func (c *Channel) LastError() error { return c.drv.LastError() }

// Close uninitializes the channel and closes the port.
func (c *Channel) Close() error {
	_ = c.drv.Uninitialize(pcan.NoneBus)
	return c.port.Close()
}
