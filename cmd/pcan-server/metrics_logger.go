package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-pcan-server/internal/metrics"
)

// startMetricsLogger logs counters for the active backend every interval,
// together with the change since the previous line.
func startMetricsLogger(ctx context.Context, interval time.Duration, backend string, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		prev := metrics.Snap()
		for {
			select {
			case <-t.C:
				cur := metrics.Snap()
				l.Info("metrics_snapshot", snapshotAttrs(backend, prev, cur)...)
				prev = cur
			case <-ctx.Done():
				return
			}
		}
	}()
}

// backendCounts picks the rx/tx totals belonging to backend.
func backendCounts(backend string, s metrics.Snapshot) (rx, tx uint64) {
	switch backend {
	case backendSerial:
		return s.SerialRx, s.SerialTx
	case backendSocketCAN:
		return s.SocketCANRx, s.SocketCANTx
	default:
		return s.PCANRx, s.PCANTx
	}
}

func snapshotAttrs(backend string, prev, cur metrics.Snapshot) []any {
	rx, tx := backendCounts(backend, cur)
	prx, ptx := backendCounts(backend, prev)
	return []any{
		"backend", backend,
		"rx", rx, "rx_delta", rx - prx,
		"tx", tx, "tx_delta", tx - ptx,
		"fd_rx", cur.FDRx,
		"fd_tx", cur.FDTx,
		"tcp_rx", cur.TCPRx,
		"tcp_tx", cur.TCPTx,
		"clients", cur.HubClients,
		"hub_drops", cur.HubDrops,
		"bus_status", cur.BusStatus,
		"errors", cur.Errors,
		"errors_delta", cur.Errors - prev.Errors,
	}
}
