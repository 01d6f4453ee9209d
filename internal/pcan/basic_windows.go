//go:build windows

package pcan

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// basic calls into PCANBasic.dll. Pointer arguments are converted inside each
// Proc.Call argument list so the pointee stays alive until the DLL returns.
type basic struct {
	dll *windows.LazyDLL

	initialize   *windows.LazyProc
	initializeFD *windows.LazyProc
	uninitialize *windows.LazyProc
	read         *windows.LazyProc
	readFD       *windows.LazyProc
	write        *windows.LazyProc
	writeFD      *windows.LazyProc
}

var (
	basicOnce sync.Once
	basicDrv  *basic
	basicErr  error
)

func loadBasic() (Driver, error) {
	basicOnce.Do(func() {
		dll := windows.NewLazySystemDLL("PCANBasic.dll")
		if err := dll.Load(); err != nil {
			basicErr = fmt.Errorf("%w: %v", ErrNoDriver, err)
			return
		}
		b := &basic{
			dll:          dll,
			initialize:   dll.NewProc("CAN_Initialize"),
			initializeFD: dll.NewProc("CAN_InitializeFD"),
			uninitialize: dll.NewProc("CAN_Uninitialize"),
			read:         dll.NewProc("CAN_Read"),
			readFD:       dll.NewProc("CAN_ReadFD"),
			write:        dll.NewProc("CAN_Write"),
			writeFD:      dll.NewProc("CAN_WriteFD"),
		}
		for _, p := range []*windows.LazyProc{b.initialize, b.initializeFD, b.uninitialize, b.read, b.readFD, b.write, b.writeFD} {
			if err := p.Find(); err != nil {
				basicErr = fmt.Errorf("%w: %v", ErrNoDriver, err)
				return
			}
		}
		basicDrv = b
	})
	if basicErr != nil {
		return nil, basicErr
	}
	return basicDrv, nil
}

func (b *basic) Initialize(h Handle, btr BTR0BTR1, hw HardwareType, ioPort uint32, irq uint16) Status {
	r, _, _ := b.initialize.Call(uintptr(h), uintptr(btr), uintptr(hw), uintptr(ioPort), uintptr(irq))
	return Status(r)
}

func (b *basic) InitializeFD(h Handle, bitrate BitrateFD) Status {
	s, err := windows.BytePtrFromString(string(bitrate))
	if err != nil {
		return StatusIllParamVal
	}
	r, _, _ := b.initializeFD.Call(uintptr(h), uintptr(unsafe.Pointer(s)))
	return Status(r)
}

func (b *basic) Uninitialize(h Handle) Status {
	r, _, _ := b.uninitialize.Call(uintptr(h))
	return Status(r)
}

func (b *basic) Read(h Handle, msg *Msg, ts *Timestamp) Status {
	r, _, _ := b.read.Call(uintptr(h), uintptr(unsafe.Pointer(msg)), uintptr(unsafe.Pointer(ts)))
	return Status(r)
}

func (b *basic) ReadFD(h Handle, msg *MsgFD, ts *uint64) Status {
	r, _, _ := b.readFD.Call(uintptr(h), uintptr(unsafe.Pointer(msg)), uintptr(unsafe.Pointer(ts)))
	return Status(r)
}

func (b *basic) Write(h Handle, msg *Msg) Status {
	r, _, _ := b.write.Call(uintptr(h), uintptr(unsafe.Pointer(msg)))
	return Status(r)
}

func (b *basic) WriteFD(h Handle, msg *MsgFD) Status {
	r, _, _ := b.writeFD.Call(uintptr(h), uintptr(unsafe.Pointer(msg)))
	return Status(r)
}
