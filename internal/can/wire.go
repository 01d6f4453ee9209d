package can

import "github.com/kstaniek/go-pcan-server/internal/pcan"

// SocketCAN flag bits for can_id (same values as <linux/can.h>).
// Cannelloni and the trace format carry identifiers in this layout.
const (
	CAN_EFF_FLAG = 0x80000000
	CAN_RTR_FLAG = 0x40000000
	CAN_ERR_FLAG = 0x20000000
	CAN_SFF_MASK = 0x7FF
	CAN_EFF_MASK = 0x1FFFFFFF
)

// canfd_frame.flags bits.
const (
	CANFD_BRS = 0x01
	CANFD_ESI = 0x02
	CANFD_FDF = 0x04
)

// WireID packs an identifier and PCAN message flags into a SocketCAN can_id.
func WireID(id uint32, flags pcan.MessageFlags) uint32 {
	var w uint32
	if flags&pcan.MessageExtended != 0 {
		w = id&CAN_EFF_MASK | CAN_EFF_FLAG
	} else {
		w = id & CAN_SFF_MASK
	}
	if flags&pcan.MessageRTR != 0 {
		w |= CAN_RTR_FLAG
	}
	if flags&pcan.MessageErrFrame != 0 {
		w |= CAN_ERR_FLAG
	}
	return w
}

// SplitWireID unpacks a SocketCAN can_id into identifier and PCAN message flags.
func SplitWireID(w uint32) (uint32, pcan.MessageFlags) {
	var flags pcan.MessageFlags
	id := w & CAN_SFF_MASK
	if w&CAN_EFF_FLAG != 0 {
		flags |= pcan.MessageExtended
		id = w & CAN_EFF_MASK
	}
	if w&CAN_RTR_FLAG != 0 {
		flags |= pcan.MessageRTR
	}
	if w&CAN_ERR_FLAG != 0 {
		flags |= pcan.MessageErrFrame
	}
	return id, flags
}

// WireFDFlags maps PCAN FD bits to canfd_frame.flags.
func WireFDFlags(flags pcan.MessageFlags) uint8 {
	var b uint8
	if flags&pcan.MessageFD != 0 {
		b |= CANFD_FDF
	}
	if flags&pcan.MessageBRS != 0 {
		b |= CANFD_BRS
	}
	if flags&pcan.MessageESI != 0 {
		b |= CANFD_ESI
	}
	return b
}

// FlagsFromWireFD maps canfd_frame.flags to PCAN FD bits.
func FlagsFromWireFD(b uint8) pcan.MessageFlags {
	var flags pcan.MessageFlags
	if b&CANFD_FDF != 0 {
		flags |= pcan.MessageFD
	}
	if b&CANFD_BRS != 0 {
		flags |= pcan.MessageBRS
	}
	if b&CANFD_ESI != 0 {
		flags |= pcan.MessageESI
	}
	return flags
}

// WireID returns the frame identifier in SocketCAN layout.
func (f FDFrame) WireID() uint32 { return WireID(f.ID(), f.msg.MsgType) }

// WireFDFlags returns the frame's canfd_frame.flags.
func (f FDFrame) WireFDFlags() uint8 { return WireFDFlags(f.msg.MsgType) }

// FromWire builds a frame from SocketCAN-layout fields. Payloads longer than
// 8 bytes imply the FD flag.
func FromWire(wireID uint32, fdFlags uint8, data []byte) (FDFrame, error) {
	if len(data) > MaxFDLen {
		return FDFrame{}, ErrTooMuchData
	}
	id, flags := SplitWireID(wireID)
	flags |= FlagsFromWireFD(fdFlags)
	if len(data) > MaxLen {
		flags |= pcan.MessageFD
	}
	var f FDFrame
	f.msg.ID = id
	f.msg.MsgType = flags
	f.msg.DLC = LenToDLC(len(data))
	copy(f.msg.Data[:], data)
	return f, nil
}
