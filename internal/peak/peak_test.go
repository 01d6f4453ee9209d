package peak

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kstaniek/go-pcan-server/internal/can"
	"github.com/kstaniek/go-pcan-server/internal/pcan"
	"github.com/kstaniek/go-pcan-server/internal/pcan/pcantest"
)

const fdBitrate = pcan.BitrateFD("f_clock=80000000,nom_brp=2,nom_tseg1=63,nom_tseg2=16,nom_sjw=16,data_brp=2,data_tseg1=15,data_tseg2=4,data_sjw=4")

func TestOpenUSBClassicRoundTrip(t *testing.T) {
	drv := pcantest.New()
	drv.Echo = true
	usb, err := OpenUSB(drv, 1, pcan.Baud500K.BTR0BTR1())
	require.NoError(t, err)
	assert.Equal(t, pcan.Handle(0x51), usb.Handle())
	assert.Equal(t, "classic", drv.Initialized(0x51))
	assert.Equal(t, "usb1", usb.String())

	f, err := can.NewFrame(0x7FF, can.Standard, []byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, can.Send(usb, f))

	got, ts, err := can.Recv(usb)
	require.NoError(t, err)
	assert.True(t, got.IsEchoFrame())
	assert.Equal(t, uint32(0x7FF), got.ID())
	assert.Equal(t, []byte{1, 2, 3}, got.Data())
	assert.Equal(t, uint64(1500), ts.Microseconds())

	_, err = can.RecvFrame(usb)
	require.ErrorIs(t, err, pcan.ErrQRcvEmpty)

	require.NoError(t, usb.Close())
	assert.Empty(t, drv.Initialized(0x51))
}

func TestOpenFDChannels(t *testing.T) {
	drv := pcantest.New()
	drv.Echo = true

	usb, err := OpenUSBFD(drv, 9, fdBitrate)
	require.NoError(t, err)
	assert.Equal(t, pcan.Handle(0x509), usb.Handle())
	assert.Equal(t, string(fdBitrate), drv.Initialized(0x509))

	pci, err := OpenPCIFD(drv, 2, fdBitrate)
	require.NoError(t, err)
	assert.Equal(t, pcan.Handle(0x42), pci.Handle())

	lan, err := OpenLANFD(drv, 16, fdBitrate)
	require.NoError(t, err)
	assert.Equal(t, pcan.Handle(0x810), lan.Handle())

	payload := make([]byte, 48)
	for i := range payload {
		payload[i] = byte(i)
	}
	f, err := can.NewFDFrame(0x1ABCDE, can.Extended, payload, true, true)
	require.NoError(t, err)
	require.NoError(t, can.SendFD(lan, f))
	got, ts, err := can.RecvFD(lan)
	require.NoError(t, err)
	assert.True(t, got.IsFD())
	assert.True(t, got.IsBRS())
	assert.Equal(t, payload, got.Data())
	assert.NotZero(t, ts)
}

func TestOpenClassicOnlyFamilies(t *testing.T) {
	drv := pcantest.New()
	btr := pcan.Baud250K.BTR0BTR1()

	isa, err := OpenISA(drv, 3, btr, pcan.HardwareISASJA, 0x300, 10)
	require.NoError(t, err)
	assert.Equal(t, pcan.Handle(0x23), isa.Handle())

	dng, err := OpenDNG(drv, 1, btr, pcan.HardwareDNGSJA, 0x378, 7)
	require.NoError(t, err)
	assert.Equal(t, pcan.Handle(0x31), dng.Handle())

	pcc, err := OpenPCC(drv, 2, btr)
	require.NoError(t, err)
	assert.Equal(t, pcan.Handle(0x62), pcc.Handle())

	// Classic-only families never satisfy the FD capabilities.
	var x any = isa
	_, ok := x.(can.FDSender)
	assert.False(t, ok)
	x = pcc
	_, ok = x.(can.FDReceiver)
	assert.False(t, ok)
	x = USB{}
	_, ok = x.(can.FDSender)
	assert.True(t, ok)
}

func TestOpenErrors(t *testing.T) {
	drv := pcantest.New()
	_, err := OpenUSB(drv, 17, pcan.Baud1M.BTR0BTR1())
	require.ErrorIs(t, err, pcan.ErrChannelRange)
	require.ErrorIs(t, err, pcan.ErrIllHW)

	_, err = OpenDNG(drv, 2, pcan.Baud1M.BTR0BTR1(), pcan.HardwareDNG, 0, 0)
	require.ErrorIs(t, err, pcan.ErrChannelRange)

	drv.NextInit = pcan.StatusNoDriver
	_, err = OpenPCI(drv, 1, pcan.Baud1M.BTR0BTR1())
	require.ErrorIs(t, err, pcan.ErrNoDriver)

	_, err = OpenPCI(drv, 1, pcan.Baud1M.BTR0BTR1())
	require.NoError(t, err)
	_, err = OpenPCI(drv, 1, pcan.Baud1M.BTR0BTR1())
	require.ErrorIs(t, err, pcan.ErrInitialize)

	drv.NextInit = pcan.Status(0x7F000000)
	_, err = OpenLAN(drv, 1, pcan.Baud1M.BTR0BTR1())
	require.ErrorIs(t, err, pcan.ErrUnknown)
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		in  string
		bus pcan.Bus
		n   int
	}{
		{"usb1", pcan.BusUSB, 1},
		{"USB16", pcan.BusUSB, 16},
		{" lan3 ", pcan.BusLAN, 3},
		{"pcc2", pcan.BusPCC, 2},
		{"isa8", pcan.BusISA, 8},
	}
	for _, tc := range tests {
		bus, n, err := ParseChannel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.bus, bus, tc.in)
		assert.Equal(t, tc.n, n, tc.in)
	}
	for _, bad := range []string{"", "usb", "1", "can0", "usb0", "pcc3", "usbx"} {
		_, _, err := ParseChannel(bad)
		assert.Error(t, err, bad)
	}
}

func TestOpenByConfig(t *testing.T) {
	drv := pcantest.New()
	ch, err := Open(drv, Config{Channel: "pci1", FD: true, BitrateFD: fdBitrate})
	require.NoError(t, err)
	_, ok := ch.(can.FDSender)
	assert.True(t, ok)
	require.NoError(t, ch.Close())

	ch, err = Open(drv, Config{Channel: "dng1", Baudrate: pcan.Baud100K.BTR0BTR1(), HWType: pcan.HardwareDNGEPP, IOPort: 0x278, IRQ: 5})
	require.NoError(t, err)
	assert.Equal(t, "dng1", ch.String())

	ch, err = Open(drv, Config{Channel: "isa1", FD: true})
	require.ErrorIs(t, err, ErrFDUnsupported)
	assert.Nil(t, ch)

	drv.NextInit = pcan.StatusHWInUse
	ch, err = Open(drv, Config{Channel: "usb2"})
	require.ErrorIs(t, err, pcan.ErrHWInUse)
	assert.Nil(t, ch)
}

func TestCloseTwice(t *testing.T) {
	drv := pcantest.New()
	usb, err := OpenUSB(drv, 1, pcan.Baud1M.BTR0BTR1())
	require.NoError(t, err)
	require.NoError(t, usb.Close())
	require.ErrorIs(t, usb.Close(), pcan.ErrInitialize)
}
