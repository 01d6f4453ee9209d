// Package hub fans CAN frames received from the bus out to TCP clients.
package hub

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/logging"
	"github.com/kstaniek/go-pcan-server/internal/metrics"
)

// Client is one fan-out destination. Classic and FD frames share the queue.
type Client struct {
	Out       chan can.FDFrame
	Closed    chan struct{}
	closeOnce sync.Once
}

// NewClient returns a client with an outbound queue of buf frames.
func NewClient(buf int) *Client {
	return &Client{Out: make(chan can.FDFrame, max(buf, 1)), Closed: make(chan struct{})}
}

// Close signals the client is closed. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.Closed) })
}

// Hub holds the client set. Broadcast reads an immutable snapshot, so
// membership changes never stall the RX path.
type Hub struct {
	OutBufSize int
	Policy     Policy

	mu      sync.Mutex // serialises Add and Remove
	clients atomic.Pointer[[]*Client]
}

func New() *Hub {
	h := &Hub{}
	h.clients.Store(&[]*Client{})
	return h
}

func (h *Hub) load() []*Client { return *h.clients.Load() }

// Add registers c.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	cur := h.load()
	if slices.Contains(cur, c) {
		h.mu.Unlock()
		return
	}
	next := append(slices.Clip(cur), c)
	h.clients.Store(&next)
	h.mu.Unlock()
	if len(next) == 1 {
		logging.L().Info("clients_first_connected")
	}
}

// Remove unregisters c and closes it. Safe to call more than once.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	cur := h.load()
	i := slices.Index(cur, c)
	n := len(cur)
	if i >= 0 {
		next := slices.Delete(slices.Clone(cur), i, i+1)
		h.clients.Store(&next)
		n = len(next)
	}
	h.mu.Unlock()
	c.Close()
	metrics.SetHubClients(n)
	if i >= 0 && n == 0 {
		logging.L().Info("clients_last_disconnected")
	}
}

// Broadcast queues fr on every client, applying Policy to full queues.
// It never blocks.
func (h *Hub) Broadcast(fr can.FDFrame) {
	clients := h.load()
	metrics.SetBroadcastFanout(len(clients))
	metrics.SetHubClients(len(clients))
	if len(clients) == 0 {
		return
	}
	deepest, total := 0, 0
	for _, c := range clients {
		depth := len(c.Out)
		deepest = max(deepest, depth)
		total += depth
		select {
		case c.Out <- fr:
			continue
		default:
		}
		if h.Policy == PolicyKick {
			metrics.IncHubKick()
			c.Close()
		} else {
			metrics.IncHubDrop()
		}
	}
	metrics.SetQueueDepth(deepest, total/len(clients))
}

// Snapshot returns a copy of the current clients.
func (h *Hub) Snapshot() []*Client { return slices.Clone(h.load()) }

// Count returns the number of registered clients.
func (h *Hub) Count() int { return len(h.load()) }
