package transport

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kstaniek/go-pcan-server/internal/can"
)

var (
	errOverflow = errors.New("overflow")
	errSendFail = errors.New("send fail")
)

func frameWithID(t *testing.T, id uint32) can.FDFrame {
	t.Helper()
	fr, err := can.NewFDFrame(id, can.Standard, nil, false, false)
	if err != nil {
		t.Fatalf("NewFDFrame: %v", err)
	}
	return fr
}

// TestAsyncTxSuccess verifies frames are sent in order and hooks fire.
func TestAsyncTxSuccess(t *testing.T) {
	var sent atomic.Int64
	var lastID atomic.Uint32
	ax := NewAsyncTx(context.Background(), 4, func(fr can.FDFrame) error {
		sent.Add(1)
		return nil
	}, Hooks{OnAfter: func(fr can.FDFrame) { lastID.Store(fr.ID()) }})
	defer ax.Close()
	for i := 0; i < 3; i++ {
		if err := ax.SendFrame(frameWithID(t, uint32(i+1))); err != nil {
			t.Fatalf("unexpected send error: %v", err)
		}
	}
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && lastID.Load() != 3 {
		time.Sleep(5 * time.Millisecond)
	}
	if sent.Load() != 3 || lastID.Load() != 3 {
		t.Fatalf("expected 3 sent with last id 3, got sent=%d last=%d", sent.Load(), lastID.Load())
	}
}

// TestAsyncTxOverflow ensures OnDrop is invoked when buffer full.
func TestAsyncTxOverflow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var drops atomic.Int64
	started := make(chan struct{}, 1)
	ax := NewAsyncTx(ctx, 1, func(fr can.FDFrame) error {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(150 * time.Millisecond)
		return nil
	}, Hooks{OnDrop: func() error { drops.Add(1); return errOverflow }})
	defer ax.Close()
	if err := ax.SendFrame(can.FDFrame{}); err != nil {
		t.Fatalf("unexpected error enqueue first: %v", err)
	}
	<-started
	// worker is busy with the first frame; the second fills the queue
	if err := ax.SendFrame(can.FDFrame{}); err != nil {
		t.Fatalf("unexpected error enqueue second: %v", err)
	}
	if ax.Pending() != 1 {
		t.Fatalf("expected 1 pending, got %d", ax.Pending())
	}
	if err := ax.SendFrame(can.FDFrame{}); !errors.Is(err, errOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if drops.Load() != 1 {
		t.Fatalf("expected 1 drop, got %d", drops.Load())
	}
}

// TestAsyncTxSendError triggers OnError hook.
func TestAsyncTxSendError(t *testing.T) {
	var errs atomic.Int64
	var after atomic.Int64
	ax := NewAsyncTx(context.Background(), 2, func(fr can.FDFrame) error { return errSendFail }, Hooks{
		OnError: func(error) { errs.Add(1) },
		OnAfter: func(can.FDFrame) { after.Add(1) },
	})
	defer ax.Close()
	_ = ax.SendFrame(can.FDFrame{})
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && errs.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if errs.Load() == 0 {
		t.Fatalf("expected error hook invocation")
	}
	if after.Load() != 0 {
		t.Fatalf("OnAfter must not fire for failed sends")
	}
}

// TestAsyncTxClose stops processing further frames.
func TestAsyncTxClose(t *testing.T) {
	var sent atomic.Int64
	ax := NewAsyncTx(context.Background(), 2, func(fr can.FDFrame) error { sent.Add(1); return nil }, Hooks{})
	_ = ax.SendFrame(can.FDFrame{})
	ax.Close()
	countAfterClose := sent.Load()
	_ = ax.SendFrame(can.FDFrame{})
	time.Sleep(50 * time.Millisecond)
	if sent.Load() != countAfterClose {
		t.Fatalf("frame processed after close: before=%d after=%d", countAfterClose, sent.Load())
	}
}

func TestAsyncTxSendAfterClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tx := NewAsyncTx(ctx, 2, func(fr can.FDFrame) error { return nil }, Hooks{})
	tx.Close()
	if err := tx.SendFrame(frameWithID(t, 123)); !errors.Is(err, ErrAsyncTxClosed) {
		t.Fatalf("expected ErrAsyncTxClosed, got %v", err)
	}
}

func TestAsyncTxCloseConcurrentSend(t *testing.T) {
	for i := 0; i < 100; i++ {
		ax := NewAsyncTx(context.Background(), 1, func(fr can.FDFrame) error { return nil }, Hooks{})
		done := make(chan error, 1)
		go func() {
			done <- ax.SendFrame(can.FDFrame{})
		}()
		time.Sleep(1 * time.Millisecond)
		ax.Close()
		if err := <-done; err != nil && !errors.Is(err, ErrAsyncTxClosed) {
			t.Fatalf("iteration %d: unexpected send error %v", i, err)
		}
	}
}
