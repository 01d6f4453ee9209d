package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/metrics"
	"github.com/kstaniek/go-pcan-server/internal/trace"
)

const traceFlushInterval = time.Second

// recorder sits between the backend and the hub and writes every received
// and transmitted frame to a trace file.
type recorder struct {
	w      *trace.Writer
	next   broadcaster
	l      *slog.Logger
	warned atomic.Bool
}

func openRecorder(path string, next broadcaster, l *slog.Logger) (*recorder, error) {
	w, err := trace.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	return &recorder{w: w, next: next, l: l}, nil
}

func (r *recorder) Broadcast(fr can.FDFrame) {
	r.record(trace.RX, fr)
	r.next.Broadcast(fr)
}

// wrapSend records frames the backend accepted for transmission.
func (r *recorder) wrapSend(send func(can.FDFrame) error) func(can.FDFrame) error {
	return func(fr can.FDFrame) error {
		if err := send(fr); err != nil {
			return err
		}
		r.record(trace.TX, fr)
		return nil
	}
}

func (r *recorder) record(dir trace.Direction, fr can.FDFrame) {
	if err := r.w.Write(dir, fr); err != nil {
		metrics.IncError(metrics.ErrTrace)
		// Log once; the counter tracks the rest.
		if r.warned.CompareAndSwap(false, true) {
			r.l.Warn("trace_write_error", "error", err)
		}
	}
}

// run flushes the file periodically until ctx is done.
func (r *recorder) run(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(traceFlushInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if err := r.w.Flush(); err != nil {
					metrics.IncError(metrics.ErrTrace)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (r *recorder) Close() error { return r.w.Close() }
