package serial

import (
	"bytes"
	"encoding/binary"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/metrics"
	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// UART envelope: 2D D4 | len | body | checksum, where len counts the body
// plus the checksum byte and checksum = 0x2D + len + sum(body) mod 256.
const (
	preamble0 = 0x2D
	preamble1 = 0xD4

	insSendExt = 2    // TX instruction: send with 29-bit identifier
	flagsDLC   = 0x80 // TX flags byte carries 0x80 | len

	// RX lengths. A 6-byte floor plus checksum keeps the adapter's own
	// status records (shorter) out of the frame path.
	rxMinLen = 6 + 1
	rxMaxLen = 6 + can.MaxLen + 1

	compactMin = 1024
)

var preamble = []byte{preamble0, preamble1}

// Codec speaks the UART CAN adapter framing. The adapter only carries
// classic frames with 29-bit identifiers.
type Codec struct{}

func checksum(ln byte, body []byte) byte {
	sum := preamble0 + ln
	for _, b := range body {
		sum += b
	}
	return sum
}

// envelope wraps body in preamble, length and checksum.
func envelope(body []byte) []byte {
	ln := byte(len(body) + 1)
	out := make([]byte, 0, len(body)+4)
	out = append(out, preamble0, preamble1, ln)
	out = append(out, body...)
	return append(out, checksum(ln, body))
}

// Encode wraps msg in a send command. Standard identifiers travel in the
// extended field masked to 11 bits.
func (Codec) Encode(msg *pcan.Msg) []byte {
	n := min(msg.Len, can.MaxLen)
	id := msg.ID & can.CAN_EFF_MASK
	if msg.MsgType&pcan.MessageExtended == 0 {
		id &= can.CAN_SFF_MASK
	}
	body := make([]byte, 6+n)
	body[0] = insSendExt
	body[1] = flagsDLC | n
	binary.BigEndian.PutUint32(body[2:6], id)
	copy(body[6:], msg.Data[:n])
	return envelope(body)
}

type scanResult int

const (
	scanNeedMore scanResult = iota
	scanFrame
	scanResync // drop n bytes and retry
)

// scan inspects the front of data, which must start with the preamble.
// Each received record is ID(4) | payload, always extended.
func scan(data []byte) (pcan.Msg, int, scanResult) {
	if len(data) < 4 {
		return pcan.Msg{}, 0, scanNeedMore
	}
	ln := int(data[2])
	if ln < rxMinLen || ln > rxMaxLen {
		return pcan.Msg{}, 1, scanResync
	}
	total := 3 + ln
	if len(data) < total {
		return pcan.Msg{}, 0, scanNeedMore
	}
	body := data[3 : total-1]
	if checksum(data[2], body) != data[total-1] {
		return pcan.Msg{}, 1, scanResync
	}
	payload := body[4:]
	m := pcan.Msg{
		ID:      binary.BigEndian.Uint32(body[:4]) & can.CAN_EFF_MASK,
		MsgType: pcan.MessageExtended,
		Len:     uint8(len(payload)),
	}
	copy(m.Data[:], payload)
	return m, total, scanFrame
}

// DecodeStream consumes every complete record buffered in in and passes
// each frame to out. Partial records stay buffered for the next call;
// garbage is skipped a byte at a time and counted as malformed.
// Example record: 2D D4 0D 00 00 00 02 FE 10 19 09 19 04 01 20 AA.
func (Codec) DecodeStream(in *bytes.Buffer, out func(pcan.Msg)) error {
	for {
		compact(in)
		data := in.Bytes()
		if len(data) < 3 {
			return nil
		}
		i := bytes.Index(data, preamble)
		switch {
		case i < 0:
			// The last byte may be the first half of a preamble.
			last := data[len(data)-1]
			in.Reset()
			_ = in.WriteByte(last)
			return nil
		case i > 0:
			in.Next(i)
			continue
		}
		m, n, res := scan(data)
		switch res {
		case scanNeedMore:
			return nil
		case scanResync:
			metrics.IncMalformed()
		case scanFrame:
			out(m)
			metrics.IncSerialRx()
		}
		in.Next(n)
	}
}

// compact moves unread bytes to a right-sized buffer when they occupy less
// than a quarter of a large allocation.
func compact(b *bytes.Buffer) bool {
	data := b.Bytes()
	if len(data) < compactMin || len(data)*4 >= cap(data) {
		return false
	}
	clone := bytes.Clone(data)
	*b = bytes.Buffer{}
	_, _ = b.Write(clone)
	return true
}
