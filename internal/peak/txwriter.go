package peak

import (
	"context"
	"fmt"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/logging"
	"github.com/kstaniek/go-pcan-server/internal/metrics"
	"github.com/kstaniek/go-pcan-server/internal/transport"
)

var ErrTxOverflow = fmt.Errorf("pcan %w", transport.ErrTxOverflow)

// TXWriter funnels all writes to one PEAK channel through a single goroutine.
type TXWriter struct{ base *transport.AsyncTx }

// NewTXWriter writes frames as classic CAN. FD frames fail with
// can.ErrNotClassic and are counted as write errors.
func NewTXWriter(parent context.Context, s can.CANSender, buf int) *TXWriter {
	send := func(fr can.FDFrame) error {
		c, err := fr.Classic()
		if err != nil {
			return err
		}
		return can.Send(s, c)
	}
	return newTXWriter(parent, buf, send)
}

// NewFDTXWriter writes every frame with the FD call; frames without the FD
// flag go out as classic frames.
func NewFDTXWriter(parent context.Context, s can.FDSender, buf int) *TXWriter {
	send := func(fr can.FDFrame) error { return can.SendFD(s, fr) }
	return newTXWriter(parent, buf, send)
}

func newTXWriter(parent context.Context, buf int, send func(can.FDFrame) error) *TXWriter {
	hooks := transport.Hooks{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrPCANWrite)
			logging.L().Error("pcan_write_error", "error", err)
		},
		OnAfter: func(fr can.FDFrame) {
			metrics.IncPCANTx()
			if fr.IsFD() {
				metrics.IncFDTx()
			}
		},
		OnDrop: func() error {
			metrics.IncError(metrics.ErrPCANOverflow)
			return ErrTxOverflow
		},
	}
	return &TXWriter{base: transport.NewAsyncTx(parent, buf, send, hooks)}
}

// SendFrame queues a frame (drops with ErrTxOverflow if buffer full).
func (w *TXWriter) SendFrame(fr can.FDFrame) error { return w.base.SendFrame(fr) }

// Close stops the writer and waits for the worker goroutine to finish.
func (w *TXWriter) Close() { w.base.Close() }

var _ transport.FrameSink = (*TXWriter)(nil)
