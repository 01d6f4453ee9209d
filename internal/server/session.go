package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/cnl"
	"github.com/kstaniek/go-pcan-server/internal/hub"
	"github.com/kstaniek/go-pcan-server/internal/metrics"
	"github.com/kstaniek/go-pcan-server/internal/transport"
)

// session is one handshaken TCP client: a reader feeding the backend and a
// writer draining its hub queue.
type session struct {
	srv    *Server
	conn   net.Conn
	client *hub.Client
	log    *slog.Logger
	once   sync.Once
}

// admit runs the handshake and, if the client fits under the cap, serves it
// until either side goes away.
func (s *Server) admit(ctx context.Context, conn net.Conn) {
	log := s.logger.With("conn_id", s.nextID.Add(1), "remote", conn.RemoteAddr().String())
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
		_ = tcp.SetKeepAlive(true)
		_ = tcp.SetKeepAlivePeriod(30 * time.Second)
	}
	if err := cnl.Handshake(ctx, conn, s.handshakeTimeout); err != nil {
		s.stats.handshakeFailed.Add(1)
		log.Warn("handshake_failed", "error", s.fail(ErrHandshake, err))
		_ = conn.Close()
		return
	}
	ss := s.register(conn, log)
	if ss == nil {
		s.stats.rejected.Add(1)
		metrics.IncHubReject()
		log.Warn("client_reject_max", "max_clients", s.maxClients)
		_ = conn.Close()
		return
	}
	s.stats.connected.Add(1)
	log.Info("client_connected")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ss.readLoop(ctx)
		ss.close()
	}()
	ss.writeLoop(ctx)
	ss.close()
	s.unregister(ss)
	s.stats.disconnected.Add(1)
	log.Info("client_disconnected")
}

// register adds a session unless the client cap is reached.
func (s *Server) register(conn net.Conn, log *slog.Logger) *session {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if s.maxClients > 0 && len(s.sessions) >= s.maxClients {
		return nil
	}
	buf := defaultClientBuffer
	if s.Hub != nil && s.Hub.OutBufSize > 0 {
		buf = s.Hub.OutBufSize
	}
	ss := &session{srv: s, conn: conn, client: hub.NewClient(buf), log: log}
	s.sessions[ss] = struct{}{}
	if s.Hub != nil {
		s.Hub.Add(ss.client)
		metrics.SetHubClients(s.Hub.Count())
	}
	return ss
}

func (s *Server) unregister(ss *session) {
	s.sessMu.Lock()
	delete(s.sessions, ss)
	s.sessMu.Unlock()
}

// close drops the connection and the hub subscription; both loops exit.
func (ss *session) close() {
	ss.once.Do(func() {
		_ = ss.conn.Close()
		if ss.srv.Hub != nil {
			ss.srv.Hub.Remove(ss.client)
		} else {
			ss.client.Close()
		}
	})
}

// readLoop decodes client frames and forwards them until the connection
// fails. Read deadline expiry between frames only rechecks ctx; expiry inside
// a frame ends the session since the stream position is lost.
func (ss *session) readLoop(ctx context.Context) {
	codec := ss.srv.codec
	fr := &frameReader{r: ss.conn}
	onFrame := func(f can.FDFrame) {
		fr.pending = 0
		ss.forward(f)
	}
	for ctx.Err() == nil {
		_ = ss.conn.SetReadDeadline(time.Now().Add(ss.srv.readDeadline))
		n, err := codec.DecodeN(fr, decodeBurst, onFrame)
		if err != nil {
			var ne net.Error
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			case errors.As(err, &ne) && ne.Timeout() && fr.pending == 0:
				continue
			case errors.As(err, &ne) && ne.Timeout():
				ss.srv.fail(ErrConnRead, fmt.Errorf("%w after %d bytes", errPartialFrame, fr.pending))
			default:
				ss.srv.fail(ErrConnRead, err)
			}
			return
		}
		if n == 0 {
			time.Sleep(100 * time.Microsecond)
		}
	}
}

// frameReader counts bytes read since the last complete frame.
type frameReader struct {
	r       io.Reader
	pending int
}

func (f *frameReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	f.pending += n
	return n, err
}

// forward hands a client frame to the backend. Queue overflow is expected
// under load and only logged at debug level.
func (ss *session) forward(fr can.FDFrame) {
	s := ss.srv
	if s.filter != nil && !s.filter(&fr) {
		return
	}
	metrics.IncTCPRx()
	err := s.Send(fr)
	switch {
	case err == nil:
	case errors.Is(err, transport.ErrTxOverflow):
		s.stats.backendOverflow.Add(1)
		ss.log.Debug("backend_overflow_drop", "id", fmt.Sprintf("0x%X", fr.ID()), "len", fr.Len())
	default:
		s.stats.backendErrors.Add(1)
		ss.log.Error("backend_tx_error", "error", s.fail(ErrBackendTx, err), "id", fmt.Sprintf("0x%X", fr.ID()), "fd", fr.IsFD())
	}
}

// writeLoop batches hub frames to the client. A batch is written when it
// reaches batchSize or when the flush ticker fires.
func (ss *session) writeLoop(ctx context.Context) {
	s := ss.srv
	bw := batchWriter{w: ss.conn, enc: s.codec, frames: make([]can.FDFrame, 0, s.batchSize)}
	t := time.NewTicker(s.flushInterval)
	defer t.Stop()
	for {
		select {
		case fr := <-ss.client.Out:
			bw.frames = append(bw.frames, fr)
			if len(bw.frames) < s.batchSize {
				continue
			}
		case <-t.C:
		case <-ss.client.Closed:
			_ = bw.flush()
			return
		case <-ctx.Done():
			_ = bw.flush()
			return
		}
		if err := bw.flush(); err != nil {
			s.fail(ErrConnWrite, err)
			return
		}
	}
}

type batchWriter struct {
	w      io.Writer
	enc    transport.FrameBatchEncoder
	frames []can.FDFrame
}

func (b *batchWriter) flush() error {
	n := len(b.frames)
	if n == 0 {
		return nil
	}
	_, err := b.enc.EncodeTo(b.w, b.frames)
	b.frames = b.frames[:0]
	if err != nil {
		return err
	}
	metrics.AddTCPTx(n)
	return nil
}
