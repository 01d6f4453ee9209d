package server

import (
	"log/slog"
	"time"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/hub"
	"github.com/kstaniek/go-pcan-server/internal/transport"
)

const (
	defaultFlushInterval    = 5 * time.Millisecond
	defaultBatchSize        = 64
	defaultReadDeadline     = 60 * time.Second
	defaultHandshakeTimeout = 3 * time.Second
	defaultClientBuffer     = 512
	decodeBurst             = 16
)

// ServerOption configures a Server.
type ServerOption func(*Server)

func WithListenAddr(a string) ServerOption     { return func(s *Server) { s.addr = a } }
func WithHub(h *hub.Hub) ServerOption          { return func(s *Server) { s.Hub = h } }
func WithCodec(c transport.Codec) ServerOption { return func(s *Server) { s.codec = c } }
func WithSend(send SendFunc) ServerOption      { return func(s *Server) { s.Send = send } }

// WithFrameFilter drops client frames for which fn returns false before
// they reach the backend.
func WithFrameFilter(fn func(*can.FDFrame) bool) ServerOption {
	return func(s *Server) { s.filter = fn }
}

// ClassicOnly is a frame filter for backends without CAN-FD support.
func ClassicOnly(fr *can.FDFrame) bool { return !fr.IsFD() && fr.Len() <= can.MaxLen }

// WithFlushInterval bounds how long a partial batch waits before it is
// written to a client.
func WithFlushInterval(d time.Duration) ServerOption {
	return func(s *Server) { setPositive(&s.flushInterval, d) }
}

// WithBatchSize sets the number of frames that forces an immediate write.
func WithBatchSize(n int) ServerOption {
	return func(s *Server) { setPositive(&s.batchSize, n) }
}

// WithReadDeadline sets the idle read deadline per client. Expiry between
// frames does not disconnect; it only lets the reader notice shutdown. Expiry
// inside a partially received frame closes the client.
func WithReadDeadline(d time.Duration) ServerOption {
	return func(s *Server) { setPositive(&s.readDeadline, d) }
}

func WithHandshakeTimeout(d time.Duration) ServerOption {
	return func(s *Server) { setPositive(&s.handshakeTimeout, d) }
}

// WithMaxClients caps concurrent clients; zero means unlimited.
func WithMaxClients(n int) ServerOption {
	return func(s *Server) { setPositive(&s.maxClients, n) }
}

func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

func setPositive[T int | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}
