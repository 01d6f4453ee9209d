//go:build linux

package socketcan

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// Device is a raw CAN socket that speaks the pcan.Driver interface, so the
// generic can operations run unchanged on Linux SocketCAN interfaces. It owns
// a single channel addressed as pcan.NoneBus.
type Device struct {
	fd     int
	iface  string
	fdMode bool
	opened time.Time

	mu      sync.Mutex
	inited  bool
	lastErr error
}

var _ pcan.Driver = (*Device)(nil)

// Open binds a raw CAN socket to iface. With fd set the socket also carries
// CAN-FD frames. readTimeout bounds each Read; an expired read reports an
// empty receive queue.
func Open(iface string, fd bool, readTimeout time.Duration) (*Device, error) {
	sock, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket(AF_CAN): %w", err)
	}
	enable := 0
	if fd {
		enable = 1
	}
	if err := unix.SetsockoptInt(sock, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, enable); err != nil {
		// Older kernels may not know this option; only fatal when FD was asked for.
		if fd || err != unix.ENOPROTOOPT {
			_ = unix.Close(sock)
			return nil, fmt.Errorf("set CAN FD frames=%d: %w", enable, err)
		}
	}
	if readTimeout > 0 {
		tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
		if err := unix.SetsockoptTimeval(sock, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			_ = unix.Close(sock)
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(sock)
		return nil, fmt.Errorf("if %q: %w", iface, err)
	}
	sa := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(sock, sa); err != nil {
		_ = unix.Close(sock)
		return nil, fmt.Errorf("bind(can@%s): %w", iface, err)
	}
	return &Device{fd: sock, iface: iface, fdMode: fd, opened: time.Now()}, nil
}

// Close releases the socket.
func (d *Device) Close() error { return unix.Close(d.fd) }

func (d *Device) String() string { return d.iface }

// LastError returns the OS error behind the most recent non-OK status.
func (d *Device) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *Device) Initialize(h pcan.Handle, _ pcan.BTR0BTR1, _ pcan.HardwareType, _ uint32, _ uint16) pcan.Status {
	return d.init(h, false)
}

// InitializeFD ignores the bitrate; the interface is configured with ip-link.
func (d *Device) InitializeFD(h pcan.Handle, _ pcan.BitrateFD) pcan.Status {
	return d.init(h, true)
}

func (d *Device) init(h pcan.Handle, fd bool) pcan.Status {
	if h != pcan.NoneBus {
		return pcan.StatusIllHW
	}
	if fd && !d.fdMode {
		return pcan.StatusIllOperation
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inited {
		return pcan.StatusInitialize
	}
	d.inited = true
	return pcan.StatusOK
}

func (d *Device) Uninitialize(h pcan.Handle) pcan.Status {
	if h != pcan.NoneBus {
		return pcan.StatusIllHW
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return pcan.StatusInitialize
	}
	d.inited = false
	return pcan.StatusOK
}

func (d *Device) ready(h pcan.Handle) pcan.Status {
	if h != pcan.NoneBus {
		return pcan.StatusIllHW
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inited {
		return pcan.StatusInitialize
	}
	return pcan.StatusOK
}

func (d *Device) fail(err error) pcan.Status {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
	return statusFromErrno(err)
}

func (d *Device) failTx(err error) pcan.Status {
	if errors.Is(err, unix.EAGAIN) {
		d.fail(err)
		return pcan.StatusQXmtFull
	}
	return d.fail(err)
}

// statusFromErrno maps socket errors to the closest PCAN status.
func statusFromErrno(err error) pcan.Status {
	switch {
	case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
		return pcan.StatusQRcvEmpty
	case errors.Is(err, unix.ENOBUFS):
		return pcan.StatusQXmtFull
	case errors.Is(err, unix.ENETDOWN):
		return pcan.StatusBusOff
	case errors.Is(err, unix.EBADF), errors.Is(err, unix.ENODEV), errors.Is(err, unix.ENXIO):
		return pcan.StatusIllHW
	case errors.Is(err, unix.EINVAL):
		return pcan.StatusIllData
	default:
		return pcan.StatusResource
	}
}

func (d *Device) readRaw(buf []byte) (int, pcan.Status) {
	n, err := unix.Read(d.fd, buf)
	if err != nil {
		return 0, d.fail(err)
	}
	return n, pcan.StatusOK
}

func (d *Device) Read(h pcan.Handle, msg *pcan.Msg, ts *pcan.Timestamp) pcan.Status {
	if s := d.ready(h); s != pcan.StatusOK {
		return s
	}
	var buf [fdMTU]byte
	n, s := d.readRaw(buf[:])
	if s != pcan.StatusOK {
		return s
	}
	var m pcan.MsgFD
	if err := decode(buf[:n], &m); err != nil {
		return d.fail(err)
	}
	if m.MsgType&pcan.MessageFD != 0 {
		// An FD frame cannot be returned through the classic buffer.
		return pcan.StatusIllData
	}
	*msg = pcan.Msg{ID: m.ID, MsgType: m.MsgType, Len: m.DLC}
	copy(msg.Data[:], m.Data[:m.DLC])
	if ts != nil {
		us := uint64(time.Since(d.opened).Microseconds())
		ms := us / 1000
		*ts = pcan.Timestamp{Millis: uint32(ms), MillisOverflow: uint16(ms >> 32), Micros: uint16(us % 1000)}
	}
	return pcan.StatusOK
}

func (d *Device) ReadFD(h pcan.Handle, msg *pcan.MsgFD, ts *uint64) pcan.Status {
	if s := d.ready(h); s != pcan.StatusOK {
		return s
	}
	var buf [fdMTU]byte
	n, s := d.readRaw(buf[:])
	if s != pcan.StatusOK {
		return s
	}
	if err := decode(buf[:n], msg); err != nil {
		return d.fail(err)
	}
	if ts != nil {
		*ts = uint64(time.Since(d.opened).Microseconds())
	}
	return pcan.StatusOK
}

func (d *Device) Write(h pcan.Handle, msg *pcan.Msg) pcan.Status {
	if s := d.ready(h); s != pcan.StatusOK {
		return s
	}
	var buf [classicMTU]byte
	encodeClassic(buf[:], msg)
	if _, err := unix.Write(d.fd, buf[:]); err != nil {
		return d.failTx(err)
	}
	return pcan.StatusOK
}

// WriteFD sends FD frames as canfd_frame and everything else as can_frame.
func (d *Device) WriteFD(h pcan.Handle, msg *pcan.MsgFD) pcan.Status {
	if s := d.ready(h); s != pcan.StatusOK {
		return s
	}
	if msg.MsgType&pcan.MessageFD == 0 {
		if msg.DLC > 8 {
			return pcan.StatusIllData
		}
		c := pcan.Msg{ID: msg.ID, MsgType: msg.MsgType, Len: msg.DLC}
		copy(c.Data[:], msg.Data[:msg.DLC])
		return d.Write(h, &c)
	}
	if !d.fdMode {
		return pcan.StatusIllOperation
	}
	var buf [fdMTU]byte
	encodeFD(buf[:], msg)
	if _, err := unix.Write(d.fd, buf[:]); err != nil {
		return d.failTx(err)
	}
	return pcan.StatusOK
}
