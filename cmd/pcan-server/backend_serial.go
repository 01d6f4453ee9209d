package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kstaniek/go-pcan-server/internal/metrics"
	"github.com/kstaniek/go-pcan-server/internal/serial"
)

// openSerialPort is a hook for tests (overridden in unit tests).
var openSerialPort = serial.Open

// initSerialBackend sets up the UART adapter backend, launching the RX loop.
// The adapter is classic CAN only.
func initSerialBackend(ctx context.Context, cfg *appConfig, out broadcaster, l *slog.Logger, wg *sync.WaitGroup) (*backendConn, error) {
	sp, err := openSerialPort(cfg.serialDev, cfg.baud, cfg.serialReadTO)
	if err != nil {
		return nil, fmt.Errorf("open serial: %w", err)
	}
	ch, err := serial.NewChannel(sp)
	if err != nil {
		_ = sp.Close()
		return nil, err
	}
	l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.baud)
	tw := serial.NewTXWriter(ctx, ch, txQueueSize)
	// RX frames are counted by the serial codec.
	rxLoop{name: "serial", recv: classicRecv(ch), readErr: metrics.ErrSerialRead}.start(ctx, out, l, wg)
	return &backendConn{
		send:    tw.SendFrame,
		cleanup: func() { _ = ch.Close(); tw.Close() },
	}, nil
}
