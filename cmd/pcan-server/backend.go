package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/metrics"
	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// sleepFn allows tests to intercept idle and backoff sleeps.
var sleepFn = time.Sleep

// broadcaster receives every frame read from the backend. *hub.Hub and the
// trace recorder implement it.
type broadcaster interface {
	Broadcast(fr can.FDFrame)
}

// backendConn is an opened backend.
type backendConn struct {
	send    func(can.FDFrame) error
	cleanup func()
	fd      bool // frames longer than 8 bytes and FD flags are carried
}

// initBackend selects the backend, starts its RX loop and returns its sender.
// It returns an error instead of exiting the process to allow graceful handling by the caller.
func initBackend(ctx context.Context, cfg *appConfig, out broadcaster, l *slog.Logger, wg *sync.WaitGroup) (*backendConn, error) {
	switch cfg.backend {
	case backendPCAN:
		return initPCANBackend(ctx, cfg, out, l, wg)
	case backendSocketCAN:
		return initSocketCANBackend(ctx, cfg, out, l, wg)
	case backendSerial:
		return initSerialBackend(ctx, cfg, out, l, wg)
	default:
		return nil, fmt.Errorf("unknown backend %q (use pcan|socketcan|serial)", cfg.backend)
	}
}

// classicRecv adapts a classic receiver to the gateway's FD frame type.
func classicRecv(s can.CANReceiver) func() (can.FDFrame, error) {
	return func() (can.FDFrame, error) {
		f, err := can.RecvFrame(s)
		if err != nil {
			return can.FDFrame{}, err
		}
		return f.ToFD(), nil
	}
}

func fdRecv(s can.FDReceiver) func() (can.FDFrame, error) {
	return func() (can.FDFrame, error) { return can.RecvFDFrame(s) }
}

// rxLoop drives one backend receive goroutine.
type rxLoop struct {
	name    string // event prefix, e.g. "pcan" -> pcan_read_error
	recv    func() (can.FDFrame, error)
	idle    time.Duration // sleep after an empty read; zero when recv blocks
	readErr string        // metrics error label
	onFrame func(can.FDFrame)
}

var busStates = []struct {
	err   error
	label string
}{
	{pcan.ErrBusOff, "bus_off"},
	{pcan.ErrBusPassive, "bus_passive"},
	{pcan.ErrBusHeavy, "bus_heavy"},
	{pcan.ErrBusLight, "bus_light"},
	{pcan.ErrAnyBusErr, "bus_error"},
	{pcan.ErrOverrun, "overrun"},
	{pcan.ErrQOverrun, "queue_overrun"},
}

func busStatusLabel(err error) (string, bool) {
	for _, s := range busStates {
		if errors.Is(err, s.err) {
			return s.label, true
		}
	}
	return "", false
}

// isFatalRX reports errors after which the channel cannot be read again.
func isFatalRX(err error) bool {
	for _, e := range []error{pcan.ErrIllHW, pcan.ErrIllNet, pcan.ErrIllClient, pcan.ErrInitialize, pcan.ErrNoDriver, pcan.ErrIllOperation} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

func (r rxLoop) start(ctx context.Context, out broadcaster, l *slog.Logger, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info(r.name + "_rx_end")
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			fr, err := r.recv()
			if err == nil {
				if r.onFrame != nil {
					r.onFrame(fr)
				}
				if fr.IsFD() {
					metrics.IncFDRx()
				}
				out.Broadcast(fr)
				backoff = rxBackoffMin
				continue
			}
			if ctx.Err() != nil { // shutting down
				return
			}
			if errors.Is(err, pcan.ErrQRcvEmpty) {
				if r.idle > 0 {
					sleepFn(r.idle)
				}
				continue
			}
			if isFatalRX(err) {
				metrics.IncError(r.readErr)
				l.Error(r.name+"_rx_fatal", "error", err)
				return
			}
			if label, ok := busStatusLabel(err); ok {
				metrics.IncBusStatus(label)
				l.Warn(r.name+"_bus_status", "status", label, "backoff", backoff)
			} else {
				metrics.IncError(r.readErr)
				l.Warn(r.name+"_read_error", "error", err, "backoff", backoff)
			}
			sleepFn(backoff)
			backoff *= 2
			if backoff > rxBackoffMax {
				backoff = rxBackoffMax
			}
		}
	}()
}
