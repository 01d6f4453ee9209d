//go:build !linux

package socketcan

import (
	"errors"
	"time"

	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// ErrUnsupported is returned by Open outside Linux.
var ErrUnsupported = errors.New("socketcan: only supported on linux")

// Device is unavailable on this platform; every call reports no driver.
type Device struct{}

var _ pcan.Driver = (*Device)(nil)

func Open(string, bool, time.Duration) (*Device, error) { return nil, ErrUnsupported }

func (d *Device) Close() error {
	return nil
}

func (d *Device) String() string {
	return ""
}

func (d *Device) LastError() error {
	return ErrUnsupported
}

func (d *Device) Initialize(pcan.Handle, pcan.BTR0BTR1, pcan.HardwareType, uint32, uint16) pcan.Status {
	return pcan.StatusNoDriver
}

func (d *Device) InitializeFD(pcan.Handle, pcan.BitrateFD) pcan.Status {
	return pcan.StatusNoDriver
}

func (d *Device) Uninitialize(pcan.Handle) pcan.Status {
	return pcan.StatusNoDriver
}

func (d *Device) Read(pcan.Handle, *pcan.Msg, *pcan.Timestamp) pcan.Status {
	return pcan.StatusNoDriver
}

func (d *Device) ReadFD(pcan.Handle, *pcan.MsgFD, *uint64) pcan.Status {
	return pcan.StatusNoDriver
}

func (d *Device) Write(pcan.Handle, *pcan.Msg) pcan.Status {
	return pcan.StatusNoDriver
}

func (d *Device) WriteFD(pcan.Handle, *pcan.MsgFD) pcan.Status {
	return pcan.StatusNoDriver
}
