package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/metrics"
)

func extFrame(id uint32) can.FDFrame {
	f, _ := can.NewFDFrame(id, can.Extended, []byte{1}, false, false)
	return f
}

func TestBroadcastDropDoesNotBlock(t *testing.T) {
	h := New()
	cl := NewClient(4)
	h.Add(cl)
	defer h.Remove(cl)

	pre := metrics.Snap()
	start := time.Now()
	for range 1000 {
		h.Broadcast(extFrame(0x123))
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, cap(cl.Out), len(cl.Out), "queue should be full")
	assert.Equal(t, uint64(996), metrics.Snap().HubDrops-pre.HubDrops)
}

func TestBroadcastDropKeepsOthersFlowing(t *testing.T) {
	h := New()
	slow := NewClient(1)
	fast := NewClient(16)
	h.Add(slow)
	h.Add(fast)
	defer h.Remove(slow)
	defer h.Remove(fast)

	for range 10 {
		h.Broadcast(extFrame(0x2))
	}
	assert.Len(t, fast.Out, 10)
	assert.Len(t, slow.Out, 1)
	select {
	case <-slow.Closed:
		t.Fatal("drop policy closed the slow client")
	default:
	}
}

func TestBroadcastKickClosesSlowClient(t *testing.T) {
	h := New()
	h.Policy = PolicyKick
	slow := NewClient(1)
	h.Add(slow)
	defer h.Remove(slow)

	fd, _ := can.NewFDFrame(0x10, can.Standard, make([]byte, 64), true, true)
	h.Broadcast(fd)
	h.Broadcast(fd)
	select {
	case <-slow.Closed:
	default:
		t.Fatal("expected slow client to be kicked")
	}
	got := <-slow.Out
	assert.True(t, got.Equal(fd), "queued frame %s, want %s", got, fd)
}

func TestAddRemove(t *testing.T) {
	h := New()
	c := NewClient(0)
	assert.Equal(t, 1, cap(c.Out))
	h.Add(c)
	h.Add(c)
	assert.Equal(t, 1, h.Count())

	snap := h.Snapshot()
	snap[0] = nil
	assert.NotNil(t, h.Snapshot()[0], "snapshot must be a copy")

	h.Remove(c)
	h.Remove(c)
	assert.Equal(t, 0, h.Count())
	select {
	case <-c.Closed:
	default:
		t.Fatal("Remove did not close the client")
	}
}

func TestConcurrentMembership(t *testing.T) {
	h := New()
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				h.Broadcast(extFrame(0x1))
			}
		}
	}()
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				c := NewClient(2)
				h.Add(c)
				h.Remove(c)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()
	require.Equal(t, 0, h.Count())
}

func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"drop", "kick"} {
		p, ok := ParsePolicy(s)
		require.True(t, ok, s)
		assert.Equal(t, s, p.String())
	}
	p, ok := ParsePolicy(" KICK ")
	assert.True(t, ok)
	assert.Equal(t, PolicyKick, p)

	p, ok = ParsePolicy("block")
	assert.False(t, ok)
	assert.Equal(t, PolicyDrop, p)
	assert.Equal(t, "drop", Policy(9).String())
}
