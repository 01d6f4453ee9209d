package pcan

// MessageFlags is the PCAN message type bit field (TPCANMessageType).
type MessageFlags uint8

// Message type bits. MessageStandard is zero: a standard frame is one
// without MessageExtended.
const (
	MessageStandard MessageFlags = 0x00
	MessageRTR      MessageFlags = 0x01
	MessageExtended MessageFlags = 0x02
	MessageFD       MessageFlags = 0x04
	MessageBRS      MessageFlags = 0x08
	MessageESI      MessageFlags = 0x10
	MessageEcho     MessageFlags = 0x20
	MessageErrFrame MessageFlags = 0x40
	MessageStatus   MessageFlags = 0x80
)

// Msg mirrors TPCANMsg, the classic CAN buffer exchanged with CAN_Read and CAN_Write.
type Msg struct {
	ID      uint32
	MsgType MessageFlags
	Len     uint8
	Data    [8]byte
}

// MsgFD mirrors TPCANMsgFD, the CAN-FD buffer exchanged with CAN_ReadFD and CAN_WriteFD.
type MsgFD struct {
	ID      uint32
	MsgType MessageFlags
	DLC     uint8
	Data    [64]byte
}

// Timestamp mirrors TPCANTimestamp.
//
// Total microseconds = Micros + 1000*Millis + 0x100000000*1000*MillisOverflow.
type Timestamp struct {
	Millis         uint32
	MillisOverflow uint16
	Micros         uint16
}
