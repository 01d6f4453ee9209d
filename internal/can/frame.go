// Package can holds the classic CAN and CAN-FD frame model and the generic
// send/receive operations shared by every transport.
package can

import (
	"bytes"
	"fmt"

	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// Identifier masks.
const (
	StandardMask uint32 = 0x7FF
	ExtendedMask uint32 = 0x1FFFFFFF
)

// MaxLen is the payload capacity of a classic frame.
const MaxLen = 8

// MessageType selects the identifier addressing mode.
type MessageType int

const (
	Standard MessageType = iota
	Extended
)

func (m MessageType) String() string {
	if m == Extended {
		return "extended"
	}
	return "standard"
}

func (m MessageType) mask() uint32 {
	if m == Extended {
		return ExtendedMask
	}
	return StandardMask
}

func (m MessageType) flags() pcan.MessageFlags {
	if m == Extended {
		return pcan.MessageExtended
	}
	return pcan.MessageStandard
}

// ValidateID reports ErrIDMismatch when id has bits outside the range of mt.
// Constructors mask instead of rejecting; callers wanting strict identifiers
// check first.
func ValidateID(id uint32, mt MessageType) error {
	if id&^mt.mask() != 0 {
		return fmt.Errorf("%w: 0x%X (%s)", ErrIDMismatch, id, mt)
	}
	return nil
}

// Frame is a classic CAN frame. The zero value is an empty standard frame
// with identifier 0.
type Frame struct {
	msg pcan.Msg
}

// NewFrame builds a classic frame. Identifier bits outside the mode's range
// are dropped. A payload longer than 8 bytes fails with ErrTooMuchData.
func NewFrame(id uint32, mt MessageType, data []byte) (Frame, error) {
	if len(data) > MaxLen {
		return Frame{}, ErrTooMuchData
	}
	var f Frame
	f.msg.ID = id & mt.mask()
	f.msg.MsgType = mt.flags()
	f.msg.Len = uint8(len(data))
	copy(f.msg.Data[:], data)
	return f, nil
}

// IsStandard reports whether the frame uses 11-bit addressing.
// The standard flag is zero, so this is the absence of the extended flag.
func (f Frame) IsStandard() bool { return !f.IsExtended() }

func (f Frame) IsExtended() bool   { return f.msg.MsgType&pcan.MessageExtended != 0 }
func (f Frame) IsErrorFrame() bool { return f.msg.MsgType&pcan.MessageErrFrame != 0 }
func (f Frame) IsEchoFrame() bool  { return f.msg.MsgType&pcan.MessageEcho != 0 }
func (f Frame) IsRTR() bool        { return f.msg.MsgType&pcan.MessageRTR != 0 }

// ID returns the identifier masked by the frame's current mode.
func (f Frame) ID() uint32 {
	if f.IsStandard() {
		return f.msg.ID & StandardMask
	}
	return f.msg.ID & ExtendedMask
}

// Flags returns the raw message type bits.
func (f Frame) Flags() pcan.MessageFlags { return f.msg.MsgType }

// Len returns the payload length (the classic DLC).
func (f Frame) Len() int { return int(f.length()) }

// DLC is the data length code; for classic frames it equals Len.
func (f Frame) DLC() uint8 { return f.length() }

func (f Frame) IsEmpty() bool { return f.length() == 0 }

func (f *Frame) length() uint8 {
	if f.msg.Len > MaxLen {
		return MaxLen
	}
	return f.msg.Len
}

// Data returns a copy of the payload.
func (f Frame) Data() []byte {
	out := make([]byte, f.length())
	copy(out, f.msg.Data[:])
	return out
}

// MutData returns the payload for in-place rewriting before a send.
func (f *Frame) MutData() []byte { return f.msg.Data[:f.length()] }

// Equal compares identifier, length, flags, and the payload bytes in use.
func (f Frame) Equal(o Frame) bool {
	return f.msg.ID == o.msg.ID &&
		f.msg.Len == o.msg.Len &&
		f.msg.MsgType == o.msg.MsgType &&
		bytes.Equal(f.msg.Data[:f.length()], o.msg.Data[:o.length()])
}

// ToFD returns the frame as a non-FD FDFrame.
func (f Frame) ToFD() FDFrame {
	var fd FDFrame
	fd.msg.ID = f.msg.ID
	fd.msg.MsgType = f.msg.MsgType
	fd.msg.DLC = f.length()
	copy(fd.msg.Data[:], f.msg.Data[:f.length()])
	return fd
}

func (f Frame) String() string {
	return formatFrame(f.ID(), f.IsExtended(), f.msg.MsgType, f.msg.Data[:f.length()])
}

func formatFrame(id uint32, ext bool, flags pcan.MessageFlags, data []byte) string {
	idFmt := "%03X"
	if ext {
		idFmt = "%08X"
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, idFmt, id)
	if flags&pcan.MessageFD != 0 {
		b.WriteString("##")
		var fl byte
		if flags&pcan.MessageBRS != 0 {
			fl |= 0x1
		}
		if flags&pcan.MessageESI != 0 {
			fl |= 0x2
		}
		fmt.Fprintf(&b, "%X", fl)
	} else {
		b.WriteByte('#')
		if flags&pcan.MessageRTR != 0 {
			b.WriteByte('R')
			return b.String()
		}
	}
	fmt.Fprintf(&b, "%X", data)
	return b.String()
}
