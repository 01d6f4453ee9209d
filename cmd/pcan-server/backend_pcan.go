package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/metrics"
	"github.com/kstaniek/go-pcan-server/internal/pcan"
	"github.com/kstaniek/go-pcan-server/internal/peak"
)

// openPCANDriver is a hook for tests (overridden in unit tests).
var openPCANDriver = pcan.Load

// fdChannel is a PEAK channel opened in FD mode.
type fdChannel interface {
	peak.Channel
	can.FDReceiver
	can.FDSender
}

// initPCANBackend opens a PEAK channel through PCAN-Basic and launches the RX loop.
func initPCANBackend(ctx context.Context, cfg *appConfig, out broadcaster, l *slog.Logger, wg *sync.WaitGroup) (*backendConn, error) {
	pc, err := cfg.peakConfig()
	if err != nil {
		return nil, err
	}
	drv, err := openPCANDriver()
	if err != nil {
		return nil, fmt.Errorf("pcan driver: %w", err)
	}
	ch, err := peak.Open(drv, pc)
	if err != nil {
		return nil, fmt.Errorf("pcan open %s: %w", pc.Channel, err)
	}

	loop := rxLoop{
		name:    "pcan",
		idle:    cfg.pollInterval,
		readErr: metrics.ErrPCANRead,
		onFrame: func(can.FDFrame) { metrics.IncPCANRx() },
	}
	var tw *peak.TXWriter
	if fc, ok := ch.(fdChannel); ok && pc.FD {
		loop.recv = fdRecv(fc)
		tw = peak.NewFDTXWriter(ctx, fc, txQueueSize)
		l.Info("pcan_open", "channel", ch.String(), "fd", true, "bitrate", string(pc.BitrateFD))
	} else {
		loop.recv = classicRecv(ch)
		tw = peak.NewTXWriter(ctx, ch, txQueueSize)
		l.Info("pcan_open", "channel", ch.String(), "fd", false, "btr0btr1", fmt.Sprintf("0x%04X", uint16(pc.Baudrate)))
	}
	loop.start(ctx, out, l, wg)
	return &backendConn{
		send: tw.SendFrame,
		fd:   pc.FD,
		cleanup: func() {
			tw.Close()
			if err := ch.Close(); err != nil {
				l.Warn("pcan_close_error", "error", err)
			}
		},
	}, nil
}
