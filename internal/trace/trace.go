// Package trace records bus traffic to a compact msgpack stream that can be
// replayed or inspected offline.
//
// A trace is a header string followed by one record per frame. Each record is
// a five element array: microseconds since the trace started, direction,
// SocketCAN can_id, canfd flags, and payload bytes.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kstaniek/go-pcan-server/internal/can"
)

const header = "pcan-trace/1"

// ErrBadHeader is returned by NewReader when the stream is not a trace.
var ErrBadHeader = errors.New("trace: bad header")

// Direction tells whether a frame came from the bus or went to it.
type Direction uint8

const (
	RX Direction = iota
	TX
)

func (d Direction) String() string {
	if d == TX {
		return "tx"
	}
	return "rx"
}

// Record is one traced frame.
type Record struct {
	Time  time.Duration // since the trace started
	Dir   Direction
	Frame can.FDFrame
}

var (
	_ msgpack.CustomEncoder = (*Record)(nil)
	_ msgpack.CustomDecoder = (*Record)(nil)
)

func (r *Record) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(5); err != nil {
		return err
	}
	if err := enc.EncodeUint64(uint64(r.Time.Microseconds())); err != nil {
		return err
	}
	if err := enc.EncodeUint8(uint8(r.Dir)); err != nil {
		return err
	}
	if err := enc.EncodeUint32(r.Frame.WireID()); err != nil {
		return err
	}
	if err := enc.EncodeUint8(r.Frame.WireFDFlags()); err != nil {
		return err
	}
	return enc.EncodeBytes(r.Frame.Data())
}

func (r *Record) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 5 {
		return fmt.Errorf("trace: record has %d fields, want 5", n)
	}
	us, err := dec.DecodeUint64()
	if err != nil {
		return err
	}
	dir, err := dec.DecodeUint8()
	if err != nil {
		return err
	}
	id, err := dec.DecodeUint32()
	if err != nil {
		return err
	}
	flags, err := dec.DecodeUint8()
	if err != nil {
		return err
	}
	data, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	fr, err := can.FromWire(id, flags, data)
	if err != nil {
		return fmt.Errorf("trace: record frame: %w", err)
	}
	r.Time = time.Duration(us) * time.Microsecond
	r.Dir = Direction(dir)
	r.Frame = fr
	return nil
}

// Writer appends records to a trace. Safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	bw    *bufio.Writer
	enc   *msgpack.Encoder
	c     io.Closer
	start time.Time
	now   func() time.Time
}

// NewWriter writes the trace header to w.
func NewWriter(w io.Writer) (*Writer, error) {
	bw := bufio.NewWriter(w)
	tw := &Writer{bw: bw, enc: msgpack.NewEncoder(bw), now: time.Now}
	tw.start = tw.now()
	if err := tw.enc.EncodeString(header); err != nil {
		return nil, fmt.Errorf("trace: write header: %w", err)
	}
	return tw, nil
}

// Create truncates path and starts a trace in it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.c = f
	return w, nil
}

// Write records fr with the current time.
func (w *Writer) Write(dir Direction, fr can.FDFrame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rec := Record{Time: w.now().Sub(w.start), Dir: dir, Frame: fr}
	return w.enc.Encode(&rec)
}

// Flush writes buffered records to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bw.Flush()
}

// Close flushes and closes the file opened by Create.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.bw.Flush()
	if w.c != nil {
		if cerr := w.c.Close(); err == nil {
			err = cerr
		}
		w.c = nil
	}
	return err
}

// Reader iterates over the records of a trace.
type Reader struct {
	dec *msgpack.Decoder
}

// NewReader checks the header and positions r at the first record.
func NewReader(r io.Reader) (*Reader, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	h, err := dec.DecodeString()
	if err != nil || h != header {
		return nil, ErrBadHeader
	}
	return &Reader{dec: dec}, nil
}

// Next returns the next record, or io.EOF at the end of the trace.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
