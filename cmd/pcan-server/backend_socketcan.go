package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/metrics"
	"github.com/kstaniek/go-pcan-server/internal/socketcan"
)

// socketChannel is the part of *socketcan.Channel the backend uses.
type socketChannel interface {
	can.CANReceiver
	can.FDReceiver
	can.FDSender
	Close() error
}

// openSocketCAN is a hook for tests (overridden in unit tests).
var openSocketCAN = func(iface string, fd bool, readTimeout time.Duration) (socketChannel, error) {
	ch, err := socketcan.OpenChannel(iface, fd, readTimeout)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// initSocketCANBackend sets up the SocketCAN backend, launching the RX loop.
// On platforms without SocketCAN the open fails with socketcan.ErrUnsupported.
func initSocketCANBackend(ctx context.Context, cfg *appConfig, out broadcaster, l *slog.Logger, wg *sync.WaitGroup) (*backendConn, error) {
	ch, err := openSocketCAN(cfg.canIf, cfg.fd, cfg.canReadTO)
	if err != nil {
		return nil, fmt.Errorf("socketcan open %s: %w", cfg.canIf, err)
	}
	l.Info("socketcan_open", "if", cfg.canIf, "fd", cfg.fd)
	tw := socketcan.NewTXWriter(ctx, ch, txQueueSize)
	loop := rxLoop{
		name:    "socketcan",
		readErr: metrics.ErrSocketCANRead,
		onFrame: func(can.FDFrame) { metrics.IncSocketCANRx() },
	}
	if cfg.fd {
		loop.recv = fdRecv(ch)
	} else {
		loop.recv = classicRecv(ch)
	}
	loop.start(ctx, out, l, wg)
	return &backendConn{
		send:    tw.SendFrame,
		fd:      cfg.fd,
		cleanup: func() { _ = ch.Close(); tw.Close() },
	}, nil
}
