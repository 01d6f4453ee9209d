package pcan

import (
	"fmt"
	"strings"
)

// BTR0BTR1 is the 16-bit SJA1000 bus timing register pair passed to CAN_Initialize.
type BTR0BTR1 uint16

// BitrateFD is the PCAN-Basic FD bitrate string passed to CAN_InitializeFD.
type BitrateFD string

// Baudrate is one of the standard classic CAN bit rates supported by every PEAK channel.
type Baudrate int

const (
	Baud1M Baudrate = iota
	Baud800K
	Baud500K
	Baud250K
	Baud125K
	Baud100K
	Baud95K
	Baud83K
	Baud50K
	Baud47K
	Baud33K
	Baud20K
	Baud10K
	Baud5K
)

type baudEntry struct {
	name string
	bps  int
	code BTR0BTR1
}

var baudTable = [...]baudEntry{
	Baud1M:   {"1m", 1000000, 0x0014},
	Baud800K: {"800k", 800000, 0x0016},
	Baud500K: {"500k", 500000, 0x001C},
	Baud250K: {"250k", 250000, 0x011C},
	Baud125K: {"125k", 125000, 0x031C},
	Baud100K: {"100k", 100000, 0x432F},
	Baud95K:  {"95k", 95238, 0xC34E},
	Baud83K:  {"83k", 83333, 0x852B},
	Baud50K:  {"50k", 50000, 0x472F},
	Baud47K:  {"47k", 47619, 0x1414},
	Baud33K:  {"33k", 33333, 0x8B2F},
	Baud20K:  {"20k", 20000, 0x532F},
	Baud10K:  {"10k", 10000, 0x672F},
	Baud5K:   {"5k", 5000, 0x7F7F},
}

// Baudrates lists the catalog from fastest to slowest.
func Baudrates() []Baudrate {
	out := make([]Baudrate, len(baudTable))
	for i := range baudTable {
		out[i] = Baudrate(i)
	}
	return out
}

func (b Baudrate) valid() bool { return b >= 0 && int(b) < len(baudTable) }

// BTR0BTR1 returns the native driver code for b.
func (b Baudrate) BTR0BTR1() BTR0BTR1 {
	if !b.valid() {
		return 0
	}
	return baudTable[b].code
}

// Bitrate returns the nominal bit rate in bit/s.
func (b Baudrate) Bitrate() int {
	if !b.valid() {
		return 0
	}
	return baudTable[b].bps
}

func (b Baudrate) String() string {
	if !b.valid() {
		return fmt.Sprintf("baudrate(%d)", int(b))
	}
	return baudTable[b].name
}

// ParseBaudrate accepts catalog names such as "500k", "1M" or "83K".
func ParseBaudrate(s string) (Baudrate, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, e := range baudTable {
		if e.name == name {
			return Baudrate(i), nil
		}
	}
	return 0, fmt.Errorf("pcan: unknown baudrate %q", s)
}
