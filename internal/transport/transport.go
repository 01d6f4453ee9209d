package transport

import (
	"io"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/cnl"
)

// FrameDecoder decodes a single CAN frame from a stream.
type FrameDecoder interface {
	Decode(r io.Reader) (can.FDFrame, error)
}

// MultiFrameDecoder optionally drains multiple frames from a stream.
type MultiFrameDecoder interface {
	DecodeN(r io.Reader, max int, onFrame func(can.FDFrame)) (int, error)
}

// FrameBatchEncoder encodes batches either to bytes or directly to a writer.
type FrameBatchEncoder interface {
	Encode([]can.FDFrame) []byte
	EncodeTo(w io.Writer, frames []can.FDFrame) (int, error)
}

// Codec is everything a TCP session needs from a stream codec.
type Codec interface {
	FrameDecoder
	MultiFrameDecoder
	FrameBatchEncoder
}

// FrameSink is a CAN frame transmission target. Backend TX writers implement it.
type FrameSink interface {
	SendFrame(can.FDFrame) error
}

var (
	_ FrameDecoder      = (*cnl.Codec)(nil)
	_ MultiFrameDecoder = (*cnl.Codec)(nil)
	_ FrameBatchEncoder = (*cnl.Codec)(nil)
	_ Codec             = (*cnl.Codec)(nil)
	_ FrameSink         = (*AsyncTx)(nil)
)
