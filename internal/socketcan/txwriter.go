package socketcan

import (
	"context"
	"fmt"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/logging"
	"github.com/kstaniek/go-pcan-server/internal/metrics"
	"github.com/kstaniek/go-pcan-server/internal/transport"
)

var ErrTxOverflow = fmt.Errorf("socketcan %w", transport.ErrTxOverflow)

// TXWriter funnels all SocketCAN writes through a single goroutine,
// mirroring the PEAK and serial TXWriter behavior.
type TXWriter struct{ base *transport.AsyncTx }

// NewTXWriter creates a SocketCAN TXWriter with a buffered channel of size buf.
// Classic frames are written as can_frame, FD frames as canfd_frame.
func NewTXWriter(parent context.Context, s can.FDSender, buf int) *TXWriter {
	send := func(fr can.FDFrame) error { return can.SendFD(s, fr) }
	hooks := transport.Hooks{
		OnError: func(err error) {
			metrics.IncError(metrics.ErrSocketCANWrite)
			logging.L().Error("socketcan_write_error", "error", err)
		},
		OnAfter: func(fr can.FDFrame) {
			metrics.IncSocketCANTx()
			if fr.IsFD() {
				metrics.IncFDTx()
			}
		},
		OnDrop: func() error {
			metrics.IncError(metrics.ErrSocketCANOver)
			return ErrTxOverflow
		},
	}
	return &TXWriter{base: transport.NewAsyncTx(parent, buf, send, hooks)}
}

// SendFrame queues a frame for asynchronous device write (drops with ErrTxOverflow if buffer full).
func (w *TXWriter) SendFrame(fr can.FDFrame) error { return w.base.SendFrame(fr) }

// Close stops the writer and waits for the worker goroutine to finish.
func (w *TXWriter) Close() { w.base.Close() }
