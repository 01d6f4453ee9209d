package cnl

import (
	"bytes"
	"io"
	"testing"

	"github.com/kstaniek/go-pcan-server/internal/can"
)

// TestDecodeN_MultiFrame verifies DecodeN drains multiple frames from a single buffer.
func TestDecodeN_MultiFrame(t *testing.T) {
	c := Codec{}
	in := []can.FDFrame{mkFrame(0x10, 8), mkFrame(0x11, 5), mkFrame(0x12, 0), mkFDFrame(0x13, 32, true)}
	buf := bytes.NewReader(c.Encode(in))
	var out []can.FDFrame
	n, err := c.DecodeN(buf, 0, func(f can.FDFrame) { out = append(out, f) })
	if err != io.EOF && err != nil { // EOF expected at clean end
		t.Fatalf("DecodeN err=%v", err)
	}
	if n != len(in) || len(out) != len(in) {
		t.Fatalf("decoded %d collected %d want %d", n, len(out), len(in))
	}
	for i := range in {
		if out[i].ID() != in[i].ID() || out[i].Len() != in[i].Len() {
			t.Fatalf("frame %d mismatch", i)
		}
	}
}

func TestDecodeN_Max(t *testing.T) {
	c := Codec{}
	in := []can.FDFrame{mkFrame(0x10, 1), mkFrame(0x11, 2), mkFrame(0x12, 3)}
	buf := bytes.NewReader(c.Encode(in))
	n, err := c.DecodeN(buf, 2, func(can.FDFrame) {})
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	var last can.FDFrame
	if err := c.DecodeStream(buf, func(f can.FDFrame) { last = f }); err != nil {
		t.Fatalf("DecodeStream: %v", err)
	}
	if last.ID() != 0x12 {
		t.Fatalf("last id %X", last.ID())
	}
}
