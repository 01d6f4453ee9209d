package cnl

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/kstaniek/go-pcan-server/internal/metrics"

	"github.com/kstaniek/go-pcan-server/internal/can"
)

// Codec encodes/decodes cannelloni frames. Stateless and safe for concurrent use.
type Codec struct{}

// fdLenFlag marks a CAN-FD frame in the length byte; a flags byte follows it.
const fdLenFlag = 0x80

// ErrInvalidLength is returned when a frame length is outside 0..8 (0..64 for FD).
var ErrInvalidLength = errors.New("cannelloni: invalid length")

// ErrTruncatedFrame is returned when the underlying reader ends mid-frame.
var ErrTruncatedFrame = errors.New("cannelloni: truncated frame")

// Encode packs frames into a single cannelloni packet (DATA).
func (c *Codec) Encode(frames []can.FDFrame) []byte {
	if len(frames) == 0 {
		return nil
	}
	var buf bytes.Buffer
	// Pre-size for classic frames: 4(id)+1(len)+8(data); FD frames grow the buffer.
	buf.Grow(len(frames) * (4 + 1 + 8))
	_, _ = c.EncodeTo(&buf, frames)
	return buf.Bytes()
}

// EncodeTo writes the wire representation of frames to w and returns bytes written.
// Each frame is encoded as: 4-byte BE can_id, 1-byte length, payload. FD frames
// set bit 7 of the length byte and insert a canfd flags byte before the payload.
func (c *Codec) EncodeTo(w io.Writer, frames []can.FDFrame) (int, error) {
	var total int
	var hdr [6]byte
	for i := range frames {
		f := &frames[i]
		ln := f.Len()
		binary.BigEndian.PutUint32(hdr[:4], f.WireID())
		hl := 5
		if f.IsFD() || ln > can.MaxLen {
			hdr[4] = byte(ln) | fdLenFlag
			hdr[5] = f.WireFDFlags() | can.CANFD_FDF
			hl = 6
		} else {
			hdr[4] = byte(ln)
		}
		n, err := w.Write(hdr[:hl])
		total += n
		if err != nil {
			return total, fmt.Errorf("cannelloni encode header: %w", err)
		}
		if ln > 0 {
			n, err = w.Write(f.MutData())
			total += n
			if err != nil {
				return total, fmt.Errorf("cannelloni encode data: %w", err)
			}
		}
	}
	return total, nil
}

// Decode reads exactly one frame from r.
// It returns io.EOF if called at a clean frame boundary and no more data is available.
func (c *Codec) Decode(r io.Reader) (can.FDFrame, error) {
	var idb [4]byte
	if _, err := io.ReadFull(r, idb[:]); err != nil {
		return can.FDFrame{}, err
	}
	wireID := binary.BigEndian.Uint32(idb[:])
	// Read one length byte; treat 0 bytes read as EOF
	var lb [1]byte
	n, err := r.Read(lb[:])
	if err != nil {
		return can.FDFrame{}, err
	}
	if n == 0 {
		return can.FDFrame{}, io.EOF
	}
	ln, max := int(lb[0]&^fdLenFlag), can.MaxLen
	var fdFlags uint8
	if lb[0]&fdLenFlag != 0 {
		if _, err := io.ReadFull(r, lb[:]); err != nil {
			metrics.IncMalformed()
			return can.FDFrame{}, fmt.Errorf("cannelloni decode flags: %w", ErrTruncatedFrame)
		}
		fdFlags = lb[0] | can.CANFD_FDF
		max = can.MaxFDLen
	}
	if ln > max {
		metrics.IncMalformed()
		return can.FDFrame{}, fmt.Errorf("cannelloni decode: %w (%d)", ErrInvalidLength, ln)
	}
	var data [can.MaxFDLen]byte
	if ln > 0 {
		if _, err := io.ReadFull(r, data[:ln]); err != nil {
			metrics.IncMalformed()
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return can.FDFrame{}, fmt.Errorf("cannelloni decode payload: %w", ErrTruncatedFrame)
			}
			return can.FDFrame{}, fmt.Errorf("cannelloni decode payload: %w", err)
		}
	}
	return can.FromWire(wireID, fdFlags, data[:ln])
}

// DecodeN decodes up to max frames (if max>0) or until EOF (if max<=0) invoking onFrame for each.
// It returns the number of frames decoded and the terminal error (which can be io.EOF).
func (c *Codec) DecodeN(r io.Reader, max int, onFrame func(can.FDFrame)) (int, error) {
	var n int
	for max <= 0 || n < max {
		fr, err := c.Decode(r)
		if err != nil {
			return n, err
		}
		onFrame(fr)
		n++
	}
	return n, nil
}

// DecodeStream decodes a single frame and hands it to onFrame.
func (c *Codec) DecodeStream(r io.Reader, onFrame func(can.FDFrame)) error {
	fr, err := c.Decode(r)
	if err != nil {
		return err
	}
	onFrame(fr)
	return nil
}
