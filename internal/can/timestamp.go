package can

import (
	"fmt"
	"time"

	"github.com/kstaniek/go-pcan-server/internal/pcan"
)

// Timestamp is the capture time the driver attaches to a received classic frame.
// Only receive operations produce one.
type Timestamp struct {
	ts pcan.Timestamp
}

func (t Timestamp) Millis() uint32         { return t.ts.Millis }
func (t Timestamp) MillisOverflow() uint16 { return t.ts.MillisOverflow }
func (t Timestamp) Micros() uint16         { return t.ts.Micros }

// Microseconds returns the total time in microseconds.
func (t Timestamp) Microseconds() uint64 {
	ms := uint64(t.ts.MillisOverflow)<<32 | uint64(t.ts.Millis)
	return ms*1000 + uint64(t.ts.Micros)
}

// Duration returns the timestamp as time since the driver's epoch.
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t.Microseconds()) * time.Microsecond
}

func (t Timestamp) Equal(o Timestamp) bool { return t.ts == o.ts }

func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%03dms", uint64(t.ts.MillisOverflow)<<32|uint64(t.ts.Millis), t.ts.Micros)
}
