// Package bittiming validates CAN and CAN-FD bit timing parameters against
// the PEAK hardware limits and converts them to the driver's formats.
package bittiming

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is matched by every validation failure.
var ErrOutOfBounds = errors.New("bittiming: parameter out of bounds")

// BoundsError names the parameter that failed validation.
// errors.Is(err, ErrOutOfBounds) holds for every *BoundsError.
type BoundsError struct {
	Field string
	Value int
	Range Range
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("bittiming: %s=%d out of bounds [%d, %d]", e.Field, e.Value, e.Range.Min, e.Range.Max)
}

func (e *BoundsError) Is(target error) bool { return target == ErrOutOfBounds }

// Range is an inclusive interval.
type Range struct {
	Min, Max int
}

func (r Range) Contains(v int) bool { return v >= r.Min && v <= r.Max }

// Boundaries holds the limits for one bit timing phase.
type Boundaries struct {
	Prescaler Range
	SJW       Range
	TSeg1     Range
	TSeg2     Range
}

// FDBoundaries holds the limits for the nominal and data phases.
type FDBoundaries struct {
	Nominal Boundaries
	Data    Boundaries
}

var (
	canBounds = Boundaries{
		Prescaler: Range{1, 64},
		SJW:       Range{1, 4},
		TSeg1:     Range{1, 16},
		TSeg2:     Range{1, 8},
	}
	canFDBounds = FDBoundaries{
		Nominal: Boundaries{
			Prescaler: Range{1, 1024},
			SJW:       Range{1, 128},
			TSeg1:     Range{1, 256},
			TSeg2:     Range{1, 128},
		},
		Data: Boundaries{
			Prescaler: Range{1, 1024},
			SJW:       Range{1, 16},
			TSeg1:     Range{1, 32},
			TSeg2:     Range{1, 16},
		},
	}
)

// CAN returns the classic CAN limits.
func CAN() Boundaries { return canBounds }

// CANFD returns the CAN-FD limits.
func CANFD() FDBoundaries { return canFDBounds }

// check validates in the order prescaler, sjw, tseg1, tseg2 and stops at
// the first failure.
func (b Boundaries) check(prefix string, prescaler, sjw, tseg1, tseg2 int) error {
	params := [...]struct {
		name string
		v    int
		r    Range
	}{
		{"prescaler", prescaler, b.Prescaler},
		{"sjw", sjw, b.SJW},
		{"tseg1", tseg1, b.TSeg1},
		{"tseg2", tseg2, b.TSeg2},
	}
	for _, p := range params {
		if !p.r.Contains(p.v) {
			return &BoundsError{Field: prefix + p.name, Value: p.v, Range: p.r}
		}
	}
	return nil
}
