package server

import (
	"errors"
	"fmt"

	"github.com/kstaniek/go-pcan-server/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen    = errors.New("listen")
	ErrAccept    = errors.New("accept")
	ErrHandshake = errors.New("handshake")
	ErrConnRead  = errors.New("conn_read")
	ErrConnWrite = errors.New("conn_write")
	ErrBackendTx = errors.New("backend_tx")
	ErrContext   = errors.New("context_cancelled")

	errPartialFrame = errors.New("read deadline inside frame")
)

// errorLabels maps each sentinel to its errors_total label. Accept and
// listen failures share the tcp_read series.
var errorLabels = []struct {
	err   error
	label string
}{
	{ErrConnRead, metrics.ErrTCPRead},
	{ErrConnWrite, metrics.ErrTCPWrite},
	{ErrHandshake, metrics.ErrHandshake},
	{ErrBackendTx, metrics.ErrBackendWrite},
	{ErrAccept, metrics.ErrTCPRead},
	{ErrListen, metrics.ErrTCPRead},
	{ErrContext, "context"},
}

func errorLabel(err error) string {
	for _, e := range errorLabels {
		if errors.Is(err, e.err) {
			return e.label
		}
	}
	return "other"
}

// fail wraps cause under kind, counts it and records it as the last error.
func (s *Server) fail(kind, cause error) error {
	err := fmt.Errorf("%w: %v", kind, cause)
	metrics.IncError(errorLabel(err))
	s.lastErrMu.Lock()
	s.lastErr = err
	s.lastErrMu.Unlock()
	select {
	case s.errCh <- err:
	default:
	}
	return err
}

// LastError returns the most recent error recorded by the server.
func (s *Server) LastError() error {
	s.lastErrMu.Lock()
	defer s.lastErrMu.Unlock()
	return s.lastErr
}

// Errors delivers server errors; it holds at most one pending error and
// drops the rest.
func (s *Server) Errors() <-chan error { return s.errCh }
