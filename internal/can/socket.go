package can

import "github.com/kstaniek/go-pcan-server/internal/pcan"

// Socket is an open channel on a native driver.
type Socket interface {
	Handle() pcan.Handle
	Driver() pcan.Driver
}

// Capability markers. A transport declares what it supports by embedding
// them; the generic operations below accept only transports that do.
//
//	type USB struct {
//		can.RecvCAN
//		can.SendCAN
//		...
//	}
type (
	RecvCAN   struct{}
	RecvCANFD struct{}
	SendCAN   struct{}
	SendCANFD struct{}
)

func (RecvCAN) canRecv()     {}
func (RecvCANFD) canRecvFD() {}
func (SendCAN) canSend()     {}
func (SendCANFD) canSendFD() {}

// CANReceiver is a socket that can receive classic frames.
type CANReceiver interface {
	Socket
	canRecv()
}

// FDReceiver is a socket that can receive FD frames.
type FDReceiver interface {
	Socket
	canRecvFD()
}

// CANSender is a socket that can send classic frames.
type CANSender interface {
	Socket
	canSend()
}

// FDSender is a socket that can send FD frames.
type FDSender interface {
	Socket
	canSendFD()
}

// Recv reads one classic frame and its timestamp.
// An empty receive queue is reported as pcan.ErrQRcvEmpty.
func Recv(s CANReceiver) (Frame, Timestamp, error) {
	var f Frame
	var ts Timestamp
	if err := s.Driver().Read(s.Handle(), &f.msg, &ts.ts).Err(); err != nil {
		return Frame{}, Timestamp{}, err
	}
	return f, ts, nil
}

// RecvFrame reads one classic frame without a timestamp.
func RecvFrame(s CANReceiver) (Frame, error) {
	var f Frame
	if err := s.Driver().Read(s.Handle(), &f.msg, nil).Err(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// RecvFD reads one FD frame and its raw microsecond timestamp.
func RecvFD(s FDReceiver) (FDFrame, uint64, error) {
	var f FDFrame
	var ts uint64
	if err := s.Driver().ReadFD(s.Handle(), &f.msg, &ts).Err(); err != nil {
		return FDFrame{}, 0, err
	}
	return f, ts, nil
}

// RecvFDFrame reads one FD frame without a timestamp.
func RecvFDFrame(s FDReceiver) (FDFrame, error) {
	var f FDFrame
	if err := s.Driver().ReadFD(s.Handle(), &f.msg, nil).Err(); err != nil {
		return FDFrame{}, err
	}
	return f, nil
}

// Send writes one classic frame.
func Send(s CANSender, f Frame) error {
	return s.Driver().Write(s.Handle(), &f.msg).Err()
}

// SendFD writes one FD frame.
func SendFD(s FDSender, f FDFrame) error {
	return s.Driver().WriteFD(s.Handle(), &f.msg).Err()
}
