package can

import (
	"bytes"

	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// MaxFDLen is the payload capacity of an FD frame.
const MaxFDLen = 64

// FDFrame is a CAN-FD frame. Only the DLC is stored; the payload length is
// derived from it, so a payload is zero-padded up to the next length the DLC
// table can express.
type FDFrame struct {
	msg pcan.MsgFD
}

// NewFDFrame builds an FD frame with the FD and BRS bits set as requested.
// A payload longer than 64 bytes fails with ErrTooMuchData.
func NewFDFrame(id uint32, mt MessageType, data []byte, fd, brs bool) (FDFrame, error) {
	if len(data) > MaxFDLen {
		return FDFrame{}, ErrTooMuchData
	}
	var f FDFrame
	f.msg.ID = id & mt.mask()
	f.msg.MsgType = mt.flags()
	if fd {
		f.msg.MsgType |= pcan.MessageFD
	}
	if brs {
		f.msg.MsgType |= pcan.MessageBRS
	}
	f.msg.DLC = LenToDLC(len(data))
	copy(f.msg.Data[:], data)
	return f, nil
}

// IsStandard tests the standard flag bit itself. The standard flag is zero,
// so this never reports true; use !IsExtended for the addressing mode. Frame
// derives standard from the extended bit instead.
func (f FDFrame) IsStandard() bool {
	return f.msg.MsgType&pcan.MessageStandard != 0
}

// IsExtended tests the extended flag bit directly.
func (f FDFrame) IsExtended() bool   { return f.msg.MsgType&pcan.MessageExtended != 0 }
func (f FDFrame) IsErrorFrame() bool { return f.msg.MsgType&pcan.MessageErrFrame != 0 }
func (f FDFrame) IsEchoFrame() bool  { return f.msg.MsgType&pcan.MessageEcho != 0 }
func (f FDFrame) IsFD() bool         { return f.msg.MsgType&pcan.MessageFD != 0 }
func (f FDFrame) IsBRS() bool        { return f.msg.MsgType&pcan.MessageBRS != 0 }
func (f FDFrame) IsESI() bool        { return f.msg.MsgType&pcan.MessageESI != 0 }
func (f FDFrame) IsRTR() bool        { return f.msg.MsgType&pcan.MessageRTR != 0 }

// ID returns the stored identifier re-masked on read. Because IsStandard
// never holds, the extended mask applies; standard identifiers were already
// reduced to 11 bits at construction.
func (f FDFrame) ID() uint32 {
	if f.IsStandard() {
		return f.msg.ID & StandardMask
	}
	return f.msg.ID & ExtendedMask
}

func (f FDFrame) Flags() pcan.MessageFlags { return f.msg.MsgType }
func (f FDFrame) DLC() uint8               { return f.msg.DLC }

// Len returns the payload length decoded from the DLC.
func (f FDFrame) Len() int      { return DLCToLen(f.msg.DLC) }
func (f FDFrame) IsEmpty() bool { return f.Len() == 0 }

// Data returns a copy of the payload, Len bytes long.
func (f FDFrame) Data() []byte {
	out := make([]byte, f.Len())
	copy(out, f.msg.Data[:])
	return out
}

// MutData returns the payload for in-place rewriting before a send.
func (f *FDFrame) MutData() []byte { return f.msg.Data[:f.Len()] }

// Equal compares identifier, DLC, flags, and the payload bytes in use.
func (f FDFrame) Equal(o FDFrame) bool {
	return f.msg.ID == o.msg.ID &&
		f.msg.DLC == o.msg.DLC &&
		f.msg.MsgType == o.msg.MsgType &&
		bytes.Equal(f.msg.Data[:f.Len()], o.msg.Data[:o.Len()])
}

// Classic converts a non-FD frame of at most 8 bytes into a Frame.
func (f FDFrame) Classic() (Frame, error) {
	if f.IsFD() || f.Len() > MaxLen {
		return Frame{}, ErrNotClassic
	}
	var c Frame
	c.msg.ID = f.msg.ID
	c.msg.MsgType = f.msg.MsgType &^ (pcan.MessageBRS | pcan.MessageESI)
	c.msg.Len = f.msg.DLC
	copy(c.msg.Data[:], f.msg.Data[:c.msg.Len])
	return c, nil
}

func (f FDFrame) String() string {
	return formatFrame(f.ID(), f.IsExtended(), f.msg.MsgType, f.msg.Data[:f.Len()])
}
