package peak

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/metrics"
	"github.com/kstaniek/go-pcan-server/internal/pcan"
	"github.com/kstaniek/go-pcan-server/internal/pcan/pcantest"
	"github.com/kstaniek/go-pcan-server/internal/transport"
)

func waitWritten(t *testing.T, drv *pcantest.Loopback, h pcan.Handle, n int) []pcan.MsgFD {
	t.Helper()
	var got []pcan.MsgFD
	require.Eventually(t, func() bool {
		got = drv.Written(h)
		return len(got) >= n
	}, time.Second, 5*time.Millisecond)
	return got
}

func TestTXWriterClassic(t *testing.T) {
	drv := pcantest.New()
	ch, err := OpenPCC(drv, 1, pcan.Baud500K.BTR0BTR1())
	require.NoError(t, err)
	w := NewTXWriter(context.Background(), ch, 8)
	defer w.Close()

	before := metrics.Snap()
	classic, _ := can.NewFDFrame(0x10, can.Standard, []byte{1, 2}, false, false)
	fd, _ := can.NewFDFrame(0x11, can.Standard, make([]byte, 12), true, false)
	require.NoError(t, w.SendFrame(fd))
	require.NoError(t, w.SendFrame(classic))

	got := waitWritten(t, drv, ch.Handle(), 1)
	require.Len(t, got, 1)
	assert.Equal(t, uint32(0x10), got[0].ID)
	require.Eventually(t, func() bool {
		s := metrics.Snap()
		return s.PCANTx > before.PCANTx && s.Errors > before.Errors
	}, time.Second, 5*time.Millisecond)
}

func TestFDTXWriter(t *testing.T) {
	drv := pcantest.New()
	ch, err := OpenUSBFD(drv, 1, fdBitrate)
	require.NoError(t, err)
	w := NewFDTXWriter(context.Background(), ch, 8)
	defer w.Close()

	fd, _ := can.NewFDFrame(0x123, can.Extended, make([]byte, 64), true, true)
	require.NoError(t, w.SendFrame(fd))
	got := waitWritten(t, drv, ch.Handle(), 1)
	assert.Equal(t, uint8(15), got[0].DLC)
	assert.Equal(t, pcan.MessageExtended|pcan.MessageFD|pcan.MessageBRS, got[0].MsgType)
}

// blockingDriver stalls WriteFD until release is closed.
type blockingDriver struct {
	*pcantest.Loopback
	started chan struct{}
	release chan struct{}
}

func (d *blockingDriver) WriteFD(h pcan.Handle, msg *pcan.MsgFD) pcan.Status {
	select {
	case d.started <- struct{}{}:
	default:
	}
	<-d.release
	return d.Loopback.WriteFD(h, msg)
}

func TestTXWriterOverflow(t *testing.T) {
	drv := &blockingDriver{Loopback: pcantest.New(), started: make(chan struct{}, 1), release: make(chan struct{})}
	ch, err := OpenLANFD(drv, 1, fdBitrate)
	require.NoError(t, err)
	w := NewFDTXWriter(context.Background(), ch, 1)
	defer w.Close()
	defer close(drv.release)

	f, _ := can.NewFDFrame(0x1, can.Standard, nil, false, false)
	require.NoError(t, w.SendFrame(f))
	<-drv.started
	require.NoError(t, w.SendFrame(f))
	err = w.SendFrame(f)
	require.ErrorIs(t, err, ErrTxOverflow)
	assert.True(t, errors.Is(err, transport.ErrTxOverflow))
}
