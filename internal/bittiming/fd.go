package bittiming

import (
	"fmt"

	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// FDClock is the default CAN-FD controller clock used by PEAK FD hardware.
const FDClock = 80_000_000

// Phase is one phase of an FD timing.
type Phase struct {
	Prescaler int
	SJW       int
	TSeg1     int
	TSeg2     int
}

// Quanta returns the number of time quanta per bit.
func (p Phase) Quanta() int { return 1 + p.TSeg1 + p.TSeg2 }

// Bitrate returns the phase bit rate for the given controller clock.
func (p Phase) Bitrate(clockHz int) int { return clockHz / (p.Prescaler * p.Quanta()) }

// SamplePoint returns the sample point as a fraction of the bit time.
func (p Phase) SamplePoint() float64 { return float64(1+p.TSeg1) / float64(p.Quanta()) }

// FDBitTiming is a validated CAN-FD timing. Build it with NewFD.
type FDBitTiming struct {
	nomPrescaler  uint16
	nomSJW        uint8
	nomTSeg1      uint16
	nomTSeg2      uint8
	dataPrescaler uint16
	dataSJW       uint8
	dataTSeg1     uint8
	dataTSeg2     uint8
}

// NewFD validates the nominal phase and then the data phase against CANFD().
func NewFD(nomPrescaler uint16, nomSJW uint8, nomTSeg1 uint16, nomTSeg2 uint8,
	dataPrescaler uint16, dataSJW, dataTSeg1, dataTSeg2 uint8) (FDBitTiming, error) {
	if err := canFDBounds.Nominal.check("nom_", int(nomPrescaler), int(nomSJW), int(nomTSeg1), int(nomTSeg2)); err != nil {
		return FDBitTiming{}, err
	}
	if err := canFDBounds.Data.check("data_", int(dataPrescaler), int(dataSJW), int(dataTSeg1), int(dataTSeg2)); err != nil {
		return FDBitTiming{}, err
	}
	return FDBitTiming{
		nomPrescaler:  nomPrescaler,
		nomSJW:        nomSJW,
		nomTSeg1:      nomTSeg1,
		nomTSeg2:      nomTSeg2,
		dataPrescaler: dataPrescaler,
		dataSJW:       dataSJW,
		dataTSeg1:     dataTSeg1,
		dataTSeg2:     dataTSeg2,
	}, nil
}

// Nominal returns the arbitration phase parameters.
func (t FDBitTiming) Nominal() Phase {
	return Phase{int(t.nomPrescaler), int(t.nomSJW), int(t.nomTSeg1), int(t.nomTSeg2)}
}

// Data returns the data phase parameters.
func (t FDBitTiming) Data() Phase {
	return Phase{int(t.dataPrescaler), int(t.dataSJW), int(t.dataTSeg1), int(t.dataTSeg2)}
}

// BitrateString formats the timing for CAN_InitializeFD.
func (t FDBitTiming) BitrateString(clockHz int) pcan.BitrateFD {
	return pcan.BitrateFD(fmt.Sprintf(
		"f_clock=%d,nom_brp=%d,nom_tseg1=%d,nom_tseg2=%d,nom_sjw=%d,data_brp=%d,data_tseg1=%d,data_tseg2=%d,data_sjw=%d",
		clockHz,
		t.nomPrescaler, t.nomTSeg1, t.nomTSeg2, t.nomSJW,
		t.dataPrescaler, t.dataTSeg1, t.dataTSeg2, t.dataSJW,
	))
}

func (t FDBitTiming) String() string {
	n, d := t.Nominal(), t.Data()
	return fmt.Sprintf("nom(brp=%d sjw=%d tseg1=%d tseg2=%d) data(brp=%d sjw=%d tseg1=%d tseg2=%d)",
		n.Prescaler, n.SJW, n.TSeg1, n.TSeg2, d.Prescaler, d.SJW, d.TSeg1, d.TSeg2)
}
