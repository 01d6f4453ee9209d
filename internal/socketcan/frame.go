package socketcan

import (
	"encoding/binary"
	"fmt"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// Kernel frame sizes (CAN_MTU, CANFD_MTU).
const (
	classicMTU = 16
	fdMTU      = 72
)

// struct can_frame / struct canfd_frame (linux/can.h):
//
//	can_id  u32 [0:4]  host byte order, includes EFF/RTR/ERR flags
//	len     u8  [4]
//	flags   u8  [5]    canfd_frame only (can_frame: __pad)
//	res     2B  [6:8]
//	data        [8:16] or [8:72]

func encodeClassic(buf []byte, msg *pcan.Msg) {
	clear(buf[:classicMTU])
	binary.NativeEndian.PutUint32(buf[0:4], can.WireID(msg.ID, msg.MsgType))
	n := msg.Len
	if n > can.MaxLen {
		n = can.MaxLen
	}
	buf[4] = n
	copy(buf[8:], msg.Data[:n])
}

func encodeFD(buf []byte, msg *pcan.MsgFD) {
	clear(buf[:fdMTU])
	binary.NativeEndian.PutUint32(buf[0:4], can.WireID(msg.ID, msg.MsgType))
	n := can.DLCToLen(msg.DLC)
	buf[4] = byte(n)
	buf[5] = can.WireFDFlags(msg.MsgType) | can.CANFD_FDF
	copy(buf[8:], msg.Data[:n])
}

// decode unpacks a kernel frame of either size. Classic frames keep the FD
// bits clear.
func decode(buf []byte, msg *pcan.MsgFD) error {
	var fdFlags uint8
	max := can.MaxLen
	switch len(buf) {
	case classicMTU:
	case fdMTU:
		fdFlags = buf[5] | can.CANFD_FDF
		max = can.MaxFDLen
	default:
		return fmt.Errorf("socketcan: short frame: %d bytes", len(buf))
	}
	n := int(buf[4])
	if n > max {
		n = max
	}
	id, flags := can.SplitWireID(binary.NativeEndian.Uint32(buf[0:4]))
	*msg = pcan.MsgFD{
		ID:      id,
		MsgType: flags | can.FlagsFromWireFD(fdFlags),
		DLC:     can.LenToDLC(n),
	}
	copy(msg.Data[:], buf[8:8+n])
	return nil
}
