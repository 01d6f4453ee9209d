package serial

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

const (
	readBufSize = 4096
	// reclaimThreshold is the capacity above which a drained RX accumulator
	// is reallocated so bursts of line noise do not pin a large array.
	reclaimThreshold = 16 * 1024
)

// Driver runs the UART adapter protocol behind pcan.Driver. It owns one
// classic channel addressed as pcan.NoneBus; the FD calls report
// StatusIllOperation.
type Driver struct {
	port   Port
	codec  Codec
	opened time.Time

	inited atomic.Bool

	mu      sync.Mutex // guards the RX state; held across port reads
	acc     *bytes.Buffer
	readBuf []byte
	queue   []pcan.Msg

	wmu sync.Mutex // serializes port writes

	errMu   sync.Mutex
	lastErr error
}

var _ pcan.Driver = (*Driver)(nil)

// NewDriver wraps an open port.
func NewDriver(p Port) *Driver {
	return &Driver{
		port:    p,
		opened:  time.Now(),
		acc:     bytes.NewBuffer(nil),
		readBuf: make([]byte, readBufSize),
	}
}

// LastError returns the port error behind the most recent failed call.
func (d *Driver) LastError() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.lastErr
}

func (d *Driver) setErr(err error) {
	d.errMu.Lock()
	d.lastErr = err
	d.errMu.Unlock()
}

// Initialize ignores the bit timing; the adapter's bus speed is fixed in its firmware.
func (d *Driver) Initialize(h pcan.Handle, _ pcan.BTR0BTR1, _ pcan.HardwareType, _ uint32, _ uint16) pcan.Status {
	if h != pcan.NoneBus {
		return pcan.StatusIllHW
	}
	if !d.inited.CompareAndSwap(false, true) {
		return pcan.StatusInitialize
	}
	return pcan.StatusOK
}

func (d *Driver) InitializeFD(pcan.Handle, pcan.BitrateFD) pcan.Status {
	return pcan.StatusIllOperation
}

func (d *Driver) Uninitialize(h pcan.Handle) pcan.Status {
	if h != pcan.NoneBus {
		return pcan.StatusIllHW
	}
	if !d.inited.CompareAndSwap(true, false) {
		return pcan.StatusInitialize
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = nil
	d.acc.Reset()
	return pcan.StatusOK
}

// Read returns the next decoded frame. It performs at most one port read,
// so an idle line reports StatusQRcvEmpty after the port read timeout.
func (d *Driver) Read(h pcan.Handle, msg *pcan.Msg, ts *pcan.Timestamp) pcan.Status {
	if h != pcan.NoneBus {
		return pcan.StatusIllHW
	}
	if !d.inited.Load() {
		return pcan.StatusInitialize
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		if s := d.fill(); s != pcan.StatusOK {
			return s
		}
	}
	if len(d.queue) == 0 {
		return pcan.StatusQRcvEmpty
	}
	*msg = d.queue[0]
	d.queue = d.queue[1:]
	if ts != nil {
		us := uint64(time.Since(d.opened).Microseconds())
		ms := us / 1000
		*ts = pcan.Timestamp{Millis: uint32(ms), MillisOverflow: uint16(ms >> 32), Micros: uint16(us % 1000)}
	}
	return pcan.StatusOK
}

// fill reads once from the port and decodes whatever arrived. Called with mu held.
func (d *Driver) fill() pcan.Status {
	n, err := d.port.Read(d.readBuf)
	if n > 0 {
		d.acc.Write(d.readBuf[:n])
		_ = d.codec.DecodeStream(d.acc, func(m pcan.Msg) { d.queue = append(d.queue, m) })
		if d.acc.Len() == 0 && cap(d.acc.Bytes()) > reclaimThreshold {
			d.acc = bytes.NewBuffer(nil)
		}
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		// EOF is how the port reports a read timeout
		return pcan.StatusOK
	}
	d.setErr(err)
	var perr *os.PathError
	if errors.As(err, &perr) {
		// device removed
		return pcan.StatusIllHW
	}
	if len(d.queue) > 0 {
		return pcan.StatusOK
	}
	return pcan.StatusResource
}

func (d *Driver) ReadFD(pcan.Handle, *pcan.MsgFD, *uint64) pcan.Status {
	return pcan.StatusIllOperation
}

func (d *Driver) Write(h pcan.Handle, msg *pcan.Msg) pcan.Status {
	if h != pcan.NoneBus {
		return pcan.StatusIllHW
	}
	if !d.inited.Load() {
		return pcan.StatusInitialize
	}
	if msg.MsgType&(pcan.MessageRTR|pcan.MessageFD) != 0 {
		return pcan.StatusIllData
	}
	d.wmu.Lock()
	_, err := d.port.Write(d.codec.Encode(msg))
	d.wmu.Unlock()
	if err != nil {
		d.setErr(err)
		var perr *os.PathError
		if errors.As(err, &perr) {
			return pcan.StatusIllHW
		}
		return pcan.StatusXmtFull
	}
	return pcan.StatusOK
}

func (d *Driver) WriteFD(pcan.Handle, *pcan.MsgFD) pcan.Status {
	return pcan.StatusIllOperation
}
