package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-pcan-server/internal/can"
)

// Errors shared by every backend writer. Backends wrap ErrTxOverflow with
// their own sentinel so callers can match either.
var (
	ErrAsyncTxClosed = errors.New("async tx closed")
	ErrTxOverflow    = errors.New("tx overflow")
)

// AsyncTx funnels frame writes for one device through a single goroutine.
// SendFrame never blocks: when the queue is full it returns the OnDrop
// error, so a wedged bus cannot stall TCP readers.
//
//	a := NewAsyncTx(ctx, buf, sendFn, hooks)
//	a.SendFrame(frame)
//	a.Close()
//
// SendFrame after Close returns ErrAsyncTxClosed.
type AsyncTx struct {
	mu     sync.Mutex
	ch     chan can.FDFrame
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	send   func(can.FDFrame) error
	hooks  Hooks
	closed atomic.Bool
}

// Hooks let each backend keep its own metrics and logging.
type Hooks struct {
	// OnError is called when send fails; the frame is dropped.
	OnError func(error)
	// OnAfter is called with each frame that was sent.
	OnAfter func(can.FDFrame)
	// OnDrop is called when the queue is full; its error is returned from
	// SendFrame. A nil OnDrop drops silently.
	OnDrop func() error
}

// NewAsyncTx starts the worker with a queue of buf frames.
func NewAsyncTx(parent context.Context, buf int, send func(can.FDFrame) error, hooks Hooks) *AsyncTx {
	ctx, cancel := context.WithCancel(parent)
	a := &AsyncTx{
		ch:     make(chan can.FDFrame, buf),
		ctx:    ctx,
		cancel: cancel,
		send:   send,
		hooks:  hooks,
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *AsyncTx) loop() {
	defer a.wg.Done()
	for {
		select {
		case fr, ok := <-a.ch:
			if !ok {
				return
			}
			if err := a.send(fr); err != nil {
				if a.hooks.OnError != nil {
					a.hooks.OnError(err)
				}
				continue
			}
			if a.hooks.OnAfter != nil {
				a.hooks.OnAfter(fr)
			}
		case <-a.ctx.Done():
			return
		}
	}
}

// SendFrame queues fr or returns the drop error if the queue is full.
func (a *AsyncTx) SendFrame(fr can.FDFrame) error {
	if a.closed.Load() {
		return ErrAsyncTxClosed
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed.Load() {
		return ErrAsyncTxClosed
	}
	select {
	case a.ch <- fr:
		return nil
	default:
		if a.hooks.OnDrop != nil {
			return a.hooks.OnDrop()
		}
		return nil
	}
}

// Pending returns the number of queued frames.
func (a *AsyncTx) Pending() int { return len(a.ch) }

// Close stops the worker and waits for it to exit. Queued frames are discarded.
func (a *AsyncTx) Close() {
	if a.closed.Swap(true) {
		return
	}
	a.cancel()
	a.mu.Lock()
	close(a.ch)
	a.mu.Unlock()
	a.wg.Wait()
}
