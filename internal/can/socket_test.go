package can

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kstaniek/go-pcan-server/internal/pcan"
	"github.com/kstaniek/go-pcan-server/internal/pcan/pcantest"
)

type testSocket struct {
	h   pcan.Handle
	drv pcan.Driver
}

func (s testSocket) Handle() pcan.Handle { return s.h }
func (s testSocket) Driver() pcan.Driver { return s.drv }

// classicOnly declares the classic capabilities only.
type classicOnly struct {
	testSocket
	RecvCAN
	SendCAN
}

// fullDuplex declares all four capabilities.
type fullDuplex struct {
	testSocket
	RecvCAN
	RecvCANFD
	SendCAN
	SendCANFD
}

var (
	_ CANReceiver = classicOnly{}
	_ CANSender   = classicOnly{}
	_ CANReceiver = fullDuplex{}
	_ FDReceiver  = fullDuplex{}
	_ CANSender   = fullDuplex{}
	_ FDSender    = fullDuplex{}
)

const testHandle pcan.Handle = 0x51

func TestSendClassic(t *testing.T) {
	drv := pcantest.New()
	s := classicOnly{testSocket: testSocket{h: testHandle, drv: drv}}
	f, err := NewFrame(0x123, Standard, []byte{0, 1, 2})
	require.NoError(t, err)

	require.NoError(t, Send(s, f))

	written := drv.Written(testHandle)
	require.Len(t, written, 1)
	assert.Equal(t, uint32(0x123), written[0].ID)
	assert.Equal(t, uint8(3), written[0].DLC)
	assert.Equal(t, pcan.MessageStandard, written[0].MsgType)
	assert.Equal(t, []byte{0, 1, 2}, written[0].Data[:3])
}

func TestSendMapsStatus(t *testing.T) {
	drv := pcantest.New()
	s := fullDuplex{testSocket: testSocket{h: testHandle, drv: drv}}
	f, _ := NewFrame(0x1, Standard, nil)

	drv.NextWrite = pcan.StatusQXmtFull
	assert.ErrorIs(t, Send(s, f), pcan.ErrQXmtFull)

	drv.NextWrite = pcan.Status(0x123456)
	assert.ErrorIs(t, Send(s, f), pcan.ErrUnknown)

	fd, _ := NewFDFrame(0x1, Standard, nil, true, false)
	drv.NextWrite = pcan.StatusBusOff
	assert.ErrorIs(t, SendFD(s, fd), pcan.ErrBusOff)
	assert.Empty(t, drv.Written(testHandle))
}

func TestRecvClassic(t *testing.T) {
	drv := pcantest.New()
	s := classicOnly{testSocket: testSocket{h: testHandle, drv: drv}}
	drv.Push(testHandle, pcan.Msg{ID: 0x1ABCDEF, MsgType: pcan.MessageExtended, Len: 2, Data: [8]byte{0xAA, 0xBB}})

	f, ts, err := Recv(s)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1ABCDEF), f.ID())
	assert.True(t, f.IsExtended())
	assert.Equal(t, []byte{0xAA, 0xBB}, f.Data())
	assert.Equal(t, uint64(1500), ts.Microseconds())
	assert.Equal(t, uint32(1), ts.Millis())
	assert.Equal(t, uint16(500), ts.Micros())

	_, _, err = Recv(s)
	assert.ErrorIs(t, err, pcan.ErrQRcvEmpty)
}

func TestRecvFrameOnly(t *testing.T) {
	drv := pcantest.New()
	s := classicOnly{testSocket: testSocket{h: testHandle, drv: drv}}
	drv.Push(testHandle, pcan.Msg{ID: 0x10, Len: 1, Data: [8]byte{7}})
	f, err := RecvFrame(s)
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, f.Data())

	drv.NextRead = pcan.StatusIllHW
	_, err = RecvFrame(s)
	assert.ErrorIs(t, err, pcan.ErrIllHW)
}

func TestRecvFD(t *testing.T) {
	drv := pcantest.New()
	s := fullDuplex{testSocket: testSocket{h: testHandle, drv: drv}}
	want, err := NewFDFrame(0x321, Extended, payload64(), true, true)
	require.NoError(t, err)
	drv.PushFD(testHandle, want.msg)

	got, ts, err := RecvFD(s)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
	assert.Equal(t, uint64(1500), ts)

	drv.PushFD(testHandle, want.msg)
	got, err = RecvFDFrame(s)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	_, err = RecvFDFrame(s)
	assert.ErrorIs(t, err, pcan.ErrQRcvEmpty)
}

func TestSendFDRoundTripThroughEcho(t *testing.T) {
	drv := pcantest.New()
	drv.Echo = true
	s := fullDuplex{testSocket: testSocket{h: testHandle, drv: drv}}
	f, _ := NewFDFrame(0x7, Standard, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}, true, false)
	require.NoError(t, SendFD(s, f))

	got, err := RecvFDFrame(s)
	require.NoError(t, err)
	assert.True(t, got.IsEchoFrame())
	assert.Equal(t, f.Data(), got.Data())
	assert.Equal(t, 16, got.Len())
}
