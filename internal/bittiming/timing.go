package bittiming

import (
	"fmt"

	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// ClassicClock is the CAN controller clock behind the BTR0BTR1 codes (16 MHz crystal / 2).
const ClassicClock = 8_000_000

// BitTiming is a validated classic CAN timing. Build it with New.
type BitTiming struct {
	prescaler uint16
	sjw       uint8
	tseg1     uint8
	tseg2     uint8
}

// New validates the parameters against CAN().
func New(prescaler uint16, sjw, tseg1, tseg2 uint8) (BitTiming, error) {
	if err := canBounds.check("", int(prescaler), int(sjw), int(tseg1), int(tseg2)); err != nil {
		return BitTiming{}, err
	}
	return BitTiming{prescaler: prescaler, sjw: sjw, tseg1: tseg1, tseg2: tseg2}, nil
}

// FromBTR0BTR1 decodes a register pair. Every code decodes to a valid timing
// because the register fields are exactly as wide as the limits. The
// triple-sampling bit is ignored.
func FromBTR0BTR1(code pcan.BTR0BTR1) BitTiming {
	btr0, btr1 := uint8(code>>8), uint8(code)
	return BitTiming{
		prescaler: uint16(btr0&0x3F) + 1,
		sjw:       btr0>>6 + 1,
		tseg1:     btr1&0x0F + 1,
		tseg2:     (btr1>>4)&0x07 + 1,
	}
}

func (t BitTiming) Prescaler() uint16 { return t.prescaler }
func (t BitTiming) SJW() uint8        { return t.sjw }
func (t BitTiming) TSeg1() uint8      { return t.tseg1 }
func (t BitTiming) TSeg2() uint8      { return t.tseg2 }

// BTR0BTR1 packs the timing into the SJA1000 register pair:
// BTR0 = (sjw-1)<<6 | (prescaler-1), BTR1 = (tseg2-1)<<4 | (tseg1-1).
func (t BitTiming) BTR0BTR1() pcan.BTR0BTR1 {
	btr0 := uint16(t.sjw-1)<<6 | (t.prescaler - 1)
	btr1 := uint16(t.tseg2-1)<<4 | uint16(t.tseg1-1)
	return pcan.BTR0BTR1(btr0<<8 | btr1)
}

// Quanta returns the number of time quanta per bit.
func (t BitTiming) Quanta() int { return 1 + int(t.tseg1) + int(t.tseg2) }

// Bitrate returns the bit rate for the given controller clock.
func (t BitTiming) Bitrate(clockHz int) int {
	return clockHz / (int(t.prescaler) * t.Quanta())
}

// SamplePoint returns the sample point as a fraction of the bit time.
func (t BitTiming) SamplePoint() float64 {
	return float64(1+int(t.tseg1)) / float64(t.Quanta())
}

func (t BitTiming) String() string {
	return fmt.Sprintf("brp=%d sjw=%d tseg1=%d tseg2=%d", t.prescaler, t.sjw, t.tseg1, t.tseg2)
}
