// Package pcantest provides an in-memory pcan.Driver for tests.
package pcantest

import (
	"sync"

	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// Loopback is an in-memory driver. Frames written on a handle are recorded
// and, when Echo is set, queued for reading on the same handle. Tests inject
// received frames with Push/PushFD and force results with the Next* fields.
type Loopback struct {
	mu sync.Mutex

	// Echo feeds written frames back into the receive queue.
	Echo bool

	// NextRead, NextWrite and NextInit override the status of the next
	// matching call when non-zero and are cleared after use.
	NextRead  pcan.Status
	NextWrite pcan.Status
	NextInit  pcan.Status

	inited  map[pcan.Handle]string
	rx      map[pcan.Handle][]pcan.MsgFD
	written map[pcan.Handle][]pcan.MsgFD
	clock   uint64
}

// New returns an empty Loopback.
func New() *Loopback {
	return &Loopback{
		inited:  make(map[pcan.Handle]string),
		rx:      make(map[pcan.Handle][]pcan.MsgFD),
		written: make(map[pcan.Handle][]pcan.MsgFD),
	}
}

var _ pcan.Driver = (*Loopback)(nil)

func (l *Loopback) takeInit() (pcan.Status, bool) {
	if l.NextInit != pcan.StatusOK {
		s := l.NextInit
		l.NextInit = pcan.StatusOK
		return s, true
	}
	return pcan.StatusOK, false
}

func (l *Loopback) Initialize(h pcan.Handle, btr pcan.BTR0BTR1, hw pcan.HardwareType, ioPort uint32, irq uint16) pcan.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.takeInit(); ok {
		return s
	}
	if _, ok := l.inited[h]; ok {
		return pcan.StatusInitialize
	}
	l.inited[h] = "classic"
	return pcan.StatusOK
}

func (l *Loopback) InitializeFD(h pcan.Handle, bitrate pcan.BitrateFD) pcan.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.takeInit(); ok {
		return s
	}
	if _, ok := l.inited[h]; ok {
		return pcan.StatusInitialize
	}
	l.inited[h] = string(bitrate)
	return pcan.StatusOK
}

func (l *Loopback) Uninitialize(h pcan.Handle) pcan.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.inited[h]; !ok {
		return pcan.StatusInitialize
	}
	delete(l.inited, h)
	delete(l.rx, h)
	return pcan.StatusOK
}

// Initialized reports how h was opened: "classic", the FD bitrate string, or
// "" when the handle is closed.
func (l *Loopback) Initialized(h pcan.Handle) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inited[h]
}

func (l *Loopback) pop(h pcan.Handle) (pcan.MsgFD, pcan.Status) {
	if l.NextRead != pcan.StatusOK {
		s := l.NextRead
		l.NextRead = pcan.StatusOK
		return pcan.MsgFD{}, s
	}
	q := l.rx[h]
	if len(q) == 0 {
		return pcan.MsgFD{}, pcan.StatusQRcvEmpty
	}
	l.rx[h] = q[1:]
	l.clock += 1500
	return q[0], pcan.StatusOK
}

func (l *Loopback) Read(h pcan.Handle, msg *pcan.Msg, ts *pcan.Timestamp) pcan.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, s := l.pop(h)
	if s != pcan.StatusOK {
		return s
	}
	msg.ID = m.ID
	msg.MsgType = m.MsgType
	msg.Len = m.DLC
	if msg.Len > 8 {
		msg.Len = 8
	}
	msg.Data = [8]byte{}
	copy(msg.Data[:], m.Data[:msg.Len])
	if ts != nil {
		ms := l.clock / 1000
		ts.Millis = uint32(ms)
		ts.MillisOverflow = uint16(ms >> 32)
		ts.Micros = uint16(l.clock % 1000)
	}
	return pcan.StatusOK
}

func (l *Loopback) ReadFD(h pcan.Handle, msg *pcan.MsgFD, ts *uint64) pcan.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, s := l.pop(h)
	if s != pcan.StatusOK {
		return s
	}
	*msg = m
	if ts != nil {
		*ts = l.clock
	}
	return pcan.StatusOK
}

func (l *Loopback) store(h pcan.Handle, m pcan.MsgFD) pcan.Status {
	if l.NextWrite != pcan.StatusOK {
		s := l.NextWrite
		l.NextWrite = pcan.StatusOK
		return s
	}
	l.written[h] = append(l.written[h], m)
	if l.Echo {
		m.MsgType |= pcan.MessageEcho
		l.rx[h] = append(l.rx[h], m)
	}
	return pcan.StatusOK
}

func (l *Loopback) Write(h pcan.Handle, msg *pcan.Msg) pcan.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := pcan.MsgFD{ID: msg.ID, MsgType: msg.MsgType, DLC: msg.Len}
	copy(m.Data[:], msg.Data[:])
	return l.store(h, m)
}

func (l *Loopback) WriteFD(h pcan.Handle, msg *pcan.MsgFD) pcan.Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store(h, *msg)
}

// Push queues a classic message for the next Read or ReadFD on h.
func (l *Loopback) Push(h pcan.Handle, m pcan.Msg) {
	fd := pcan.MsgFD{ID: m.ID, MsgType: m.MsgType, DLC: m.Len}
	copy(fd.Data[:], m.Data[:])
	l.PushFD(h, fd)
}

// PushFD queues an FD message for the next read on h.
func (l *Loopback) PushFD(h pcan.Handle, m pcan.MsgFD) {
	l.mu.Lock()
	l.rx[h] = append(l.rx[h], m)
	l.mu.Unlock()
}

// Written returns a copy of the messages written on h.
func (l *Loopback) Written(h pcan.Handle) []pcan.MsgFD {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]pcan.MsgFD(nil), l.written[h]...)
}
