package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/kstaniek/go-pcan-server/internal/cnl"
	"github.com/kstaniek/go-pcan-server/internal/metrics"
	"github.com/kstaniek/go-pcan-server/internal/server"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("pcan-server %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	h := initHub(cfg, l)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, cfg.backend, l, &wg)

	var out broadcaster = h
	var rec *recorder
	if cfg.traceFile != "" {
		var err error
		if rec, err = openRecorder(cfg.traceFile, h, l); err != nil {
			l.Error("trace_open_error", "error", err)
			stopStartup(cancel, &wg, nil)
			return
		}
		rec.run(ctx, &wg)
		out = rec
		l.Info("trace_started", "file", cfg.traceFile)
	}

	be, berr := initBackend(ctx, cfg, out, l, &wg)
	if berr != nil {
		l.Error("backend_init_error", "backend", cfg.backend, "error", berr)
		stopStartup(cancel, &wg, rec)
		return
	}
	send := be.send
	if rec != nil {
		send = rec.wrapSend(send)
	}

	opts := []server.ServerOption{
		server.WithHub(h),
		server.WithCodec(&cnl.Codec{}),
		server.WithSend(send),
		server.WithLogger(l),
		server.WithMaxClients(cfg.maxClients),
		server.WithHandshakeTimeout(cfg.handshakeTO),
		server.WithReadDeadline(cfg.clientReadTO),
	}
	if !be.fd {
		opts = append(opts, server.WithFrameFilter(server.ClassicOnly))
	}
	srv := server.NewServer(opts...)
	srv.SetListenAddr(cfg.listenAddr)
	go func() {
		if err := srv.Serve(ctx); err != nil {
			l.Error("tcp_server_error", "error", err)
			cancel()
		}
	}()

	if cfg.mdnsEnable {
		go func() {
			select {
			case <-srv.Ready():
			case <-ctx.Done():
				return
			}
			port := listenPort(srv.Addr())
			name, err := startMDNS(ctx, cfg, port)
			if err != nil {
				l.Warn("mdns_start_failed", "error", err)
				return
			}
			l.Info("mdns_started", "service", mdnsServiceType, "name", name, "port", port)
		}()
	}

	// Ready when server listener is bound and context not cancelled.
	metrics.SetReadinessFunc(func() bool {
		select {
		case <-srv.Ready():
		default:
			return false
		}
		return ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigCh:
		l.Info("shutdown_signal", "signal", s.String())
	case <-ctx.Done():
	}
	cancel()
	be.cleanup()
	wg.Wait()
	if rec != nil {
		if err := rec.Close(); err != nil {
			l.Warn("trace_close_error", "error", err)
		}
	}
}

// listenPort extracts the port from a bound address (host:port or :port).
func listenPort(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return n
}

// stopStartup stops the workers started before a failed startup step and
// waits for them before closing the recorder they may still flush.
func stopStartup(cancel context.CancelFunc, wg *sync.WaitGroup, rec *recorder) {
	cancel()
	wg.Wait()
	if rec != nil {
		_ = rec.Close()
	}
}
