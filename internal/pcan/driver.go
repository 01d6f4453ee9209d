// Package pcan is the boundary to the PEAK PCAN-Basic driver: its result
// codes, message buffers, channel handles, and the Driver interface that
// every transport implementation satisfies.
package pcan

// Driver is the native call boundary. Implementations return the raw status
// of each call; callers translate it with Status.Err.
//
// ts may be nil on Read and ReadFD when the caller does not need a timestamp.
type Driver interface {
	Initialize(h Handle, btr BTR0BTR1, hw HardwareType, ioPort uint32, irq uint16) Status
	InitializeFD(h Handle, bitrate BitrateFD) Status
	Uninitialize(h Handle) Status
	Read(h Handle, msg *Msg, ts *Timestamp) Status
	ReadFD(h Handle, msg *MsgFD, ts *uint64) Status
	Write(h Handle, msg *Msg) Status
	WriteFD(h Handle, msg *MsgFD) Status
}

// Load returns the PCAN-Basic library driver for this platform.
func Load() (Driver, error) { return loadBasic() }
