package cnl

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"testing"

	"github.com/kstaniek/go-pcan-server/internal/can"
)

func mkFrame(id uint32, n int) can.FDFrame {
	if n < 0 {
		n = 0
	}
	if n > 8 {
		n = 8
	}
	data := make([]byte, n)
	rand.Read(data)
	f, _ := can.NewFDFrame(id, can.Extended, data, false, false)
	return f
}

func mkFDFrame(id uint32, n int, brs bool) can.FDFrame {
	data := make([]byte, n)
	rand.Read(data)
	f, _ := can.NewFDFrame(id, can.Standard, data, true, brs)
	return f
}

func TestCNLCodec_RoundTrip(t *testing.T) {
	codec := Codec{}
	in := []can.FDFrame{
		mkFrame(0x1E5A, 8),
		mkFrame(0x1F55, 6),
		mkFrame(0x12345, 0),
	}

	wire := codec.Encode(in)
	var out []can.FDFrame
	// Use DecodeN over the full buffer
	br := bytes.NewReader(wire)
	n, err := codec.DecodeN(br, 0, func(f can.FDFrame) { out = append(out, f) })
	if err != io.EOF && err != nil { // expect EOF at clean end
		t.Fatalf("DecodeN unexpected err: %v", err)
	}
	if n != len(in) {
		t.Fatalf("decoded %d, want %d", n, len(in))
	}
	if len(out) != len(in) {
		t.Fatalf("collected %d, want %d", len(out), len(in))
	}
	for i := range in {
		if !out[i].Equal(in[i]) {
			t.Fatalf("frame %d mismatch: got %s want %s", i, out[i], in[i])
		}
	}
}

func TestCNLCodec_ClassicWireLayout(t *testing.T) {
	codec := Codec{}
	f, err := can.NewFDFrame(0x123, can.Standard, []byte{0xDE, 0xAD}, false, false)
	if err != nil {
		t.Fatal(err)
	}
	got := codec.Encode([]can.FDFrame{f})
	want := []byte{0, 0, 0x01, 0x23, 2, 0xDE, 0xAD}
	if !bytes.Equal(got, want) {
		t.Fatalf("wire=% X want % X", got, want)
	}

	e, err := can.NewFDFrame(0x12345, can.Extended, nil, false, false)
	if err != nil {
		t.Fatal(err)
	}
	got = codec.Encode([]can.FDFrame{e})
	want = []byte{0x80, 0x01, 0x23, 0x45, 0}
	if !bytes.Equal(got, want) {
		t.Fatalf("ext wire=% X want % X", got, want)
	}
}

func TestCNLCodec_FDRoundTrip(t *testing.T) {
	codec := Codec{}
	in := []can.FDFrame{
		mkFDFrame(0x42, 64, true),
		mkFDFrame(0x43, 12, false),
		mkFrame(0x44, 3),
		mkFDFrame(0x45, 0, true),
	}
	wire := codec.Encode(in)
	// first frame: id, len|0x80, flags(FDF|BRS), 64 bytes
	if wire[4] != 64|0x80 || wire[5] != can.CANFD_FDF|can.CANFD_BRS {
		t.Fatalf("fd header % X", wire[:6])
	}
	var out []can.FDFrame
	_, err := codec.DecodeN(bytes.NewReader(wire), 0, func(f can.FDFrame) { out = append(out, f) })
	if err != io.EOF {
		t.Fatalf("DecodeN err=%v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("decoded %d want %d", len(out), len(in))
	}
	for i := range in {
		if !out[i].Equal(in[i]) {
			t.Fatalf("frame %d: got %s want %s", i, out[i], in[i])
		}
	}
	if !out[0].IsFD() || !out[0].IsBRS() || out[0].Len() != 64 {
		t.Fatalf("fd flags lost: %s", out[0])
	}
	if out[2].IsFD() {
		t.Fatalf("classic frame decoded as FD")
	}
}

func TestCNLCodec_EncodeToMatchesEncode(t *testing.T) {
	codec := Codec{}
	frames := []can.FDFrame{mkFrame(0x10, 8), mkFrame(0x11, 3), mkFDFrame(0x12, 20, true)}
	a := codec.Encode(frames)
	var buf bytes.Buffer
	n, err := codec.EncodeTo(&buf, frames)
	if err != nil {
		t.Fatalf("EncodeTo error: %v", err)
	}
	if n != buf.Len() {
		t.Fatalf("EncodeTo reported %d bytes, wrote %d", n, buf.Len())
	}
	if !bytes.Equal(a, buf.Bytes()) {
		t.Fatalf("Encode vs EncodeTo mismatch\nenc=% X\nencTo=% X", a, buf.Bytes())
	}
}

func TestCNLCodec_DecodeErrors(t *testing.T) {
	codec := Codec{}
	// classic length 9 is invalid
	var bad bytes.Buffer
	bad.Write([]byte{0, 0, 0, 1})
	bad.WriteByte(0x09)
	if _, err := codec.Decode(&bad); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}

	// FD length 65 is invalid
	var badFD bytes.Buffer
	badFD.Write([]byte{0, 0, 0, 1})
	badFD.WriteByte(0x80 | 65)
	badFD.WriteByte(can.CANFD_FDF)
	if _, err := codec.Decode(&badFD); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength for fd, got %v", err)
	}

	// FD marker without flags byte
	var noFlags bytes.Buffer
	noFlags.Write([]byte{0, 0, 0, 1})
	noFlags.WriteByte(0x80 | 4)
	if _, err := codec.Decode(&noFlags); !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("expected ErrTruncatedFrame for missing flags, got %v", err)
	}

	// Truncated payload
	var trunc bytes.Buffer
	trunc.Write([]byte{0, 0, 0, 2})
	trunc.WriteByte(0x05)        // length 5
	trunc.Write([]byte{1, 2, 3}) // only 3 bytes instead of 5
	if _, err := codec.Decode(&trunc); !errors.Is(err, ErrTruncatedFrame) {
		t.Fatalf("expected truncated error, got %v", err)
	}
}

func BenchmarkCNLCodec_Encode(b *testing.B) {
	codec := Codec{}
	frames := make([]can.FDFrame, 64)
	for i := range frames {
		frames[i] = mkFrame(uint32(0x100+i), 8)
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = codec.Encode(frames)
	}
}

func BenchmarkCNLCodec_EncodeTo(b *testing.B) {
	codec := Codec{}
	frames := make([]can.FDFrame, 64)
	for i := range frames {
		frames[i] = mkFrame(uint32(0x200+i), 8)
	}
	var buf bytes.Buffer
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		_, _ = codec.EncodeTo(&buf, frames)
	}
}

func BenchmarkCNLCodec_DecodeN(b *testing.B) {
	codec := Codec{}
	frames := make([]can.FDFrame, 64)
	for i := range frames {
		frames[i] = mkFrame(uint32(0x300+i), 8)
	}
	wire := codec.Encode(frames)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r := bytes.NewReader(wire)
		_, _ = codec.DecodeN(r, 0, func(can.FDFrame) {})
	}
}
