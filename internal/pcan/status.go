package pcan

import (
	"errors"
	"fmt"
)

// Status is the numeric result code returned by every PCAN-Basic call.
type Status uint32

// PCAN-Basic result codes.
const (
	StatusOK           Status = 0x00000
	StatusXmtFull      Status = 0x00001 // transmit buffer in CAN controller is full
	StatusOverrun      Status = 0x00002 // CAN controller was read too late
	StatusBusLight     Status = 0x00004 // bus error: an error counter reached the light limit
	StatusBusHeavy     Status = 0x00008 // bus error: an error counter reached the heavy limit
	StatusBusOff       Status = 0x00010 // bus error: the CAN controller is in bus-off state
	StatusAnyBusErr    Status = StatusBusLight | StatusBusHeavy | StatusBusOff | StatusBusPassive
	StatusQRcvEmpty    Status = 0x00020 // receive queue is empty
	StatusQOverrun     Status = 0x00040 // receive queue was read too late
	StatusQXmtFull     Status = 0x00080 // transmit queue is full
	StatusRegTest      Status = 0x00100 // test of the CAN controller hardware registers failed
	StatusNoDriver     Status = 0x00200 // driver not loaded
	StatusHWInUse      Status = 0x00400 // hardware already in use by a net
	StatusNetInUse     Status = 0x00800 // a client is already connected to the net
	StatusIllHW        Status = 0x01400 // hardware handle is invalid
	StatusIllNet       Status = 0x01800 // net handle is invalid
	StatusIllClient    Status = 0x01C00 // client handle is invalid
	StatusResource     Status = 0x02000 // resource (FIFO, client, timeout) cannot be created
	StatusIllParamType Status = 0x04000 // invalid parameter
	StatusIllParamVal  Status = 0x08000 // invalid parameter value
	StatusUnknown      Status = 0x10000 // unknown error
	StatusIllData      Status = 0x20000 // invalid data, function, or action
	StatusBusPassive   Status = 0x40000 // bus error: the CAN controller is error passive
	StatusIllMode      Status = 0x80000 // driver object state is wrong for the attempted operation
	StatusCaution      Status = 0x2000000
	StatusInitialize   Status = 0x4000000 // channel is not initialized
	StatusIllOperation Status = 0x8000000 // invalid operation

	// StatusBusWarning is the newer PCAN-Basic name for StatusBusHeavy.
	StatusBusWarning = StatusBusHeavy
	// StatusIllHandle is the combined handle error mask.
	StatusIllHandle = StatusIllClient
)

// Errors returned by Status.Err for known result codes.
var (
	ErrXmtFull      = errors.New("pcan: transmit buffer full")
	ErrOverrun      = errors.New("pcan: controller overrun")
	ErrBusLight     = errors.New("pcan: bus light")
	ErrBusHeavy     = errors.New("pcan: bus heavy")
	ErrBusPassive   = errors.New("pcan: bus passive")
	ErrBusOff       = errors.New("pcan: bus off")
	ErrAnyBusErr    = errors.New("pcan: bus error")
	ErrQRcvEmpty    = errors.New("pcan: receive queue empty")
	ErrQOverrun     = errors.New("pcan: receive queue overrun")
	ErrQXmtFull     = errors.New("pcan: transmit queue full")
	ErrRegTest      = errors.New("pcan: register test failed")
	ErrNoDriver     = errors.New("pcan: driver not loaded")
	ErrHWInUse      = errors.New("pcan: hardware in use")
	ErrNetInUse     = errors.New("pcan: net in use")
	ErrIllHW        = errors.New("pcan: invalid hardware handle")
	ErrIllNet       = errors.New("pcan: invalid net handle")
	ErrIllClient    = errors.New("pcan: invalid client handle")
	ErrResource     = errors.New("pcan: resource cannot be created")
	ErrIllParamType = errors.New("pcan: invalid parameter")
	ErrIllParamVal  = errors.New("pcan: invalid parameter value")
	ErrIllData      = errors.New("pcan: invalid data")
	ErrIllMode      = errors.New("pcan: invalid mode")
	ErrCaution      = errors.New("pcan: caution")
	ErrInitialize   = errors.New("pcan: channel not initialized")
	ErrIllOperation = errors.New("pcan: invalid operation")

	// ErrUnknown is the catch-all for codes without a dedicated error.
	// Errors for such codes wrap it and carry the raw Status.
	ErrUnknown = errors.New("pcan: unknown error")
)

var statusErrors = map[Status]error{
	StatusXmtFull:      ErrXmtFull,
	StatusOverrun:      ErrOverrun,
	StatusBusLight:     ErrBusLight,
	StatusBusHeavy:     ErrBusHeavy,
	StatusBusPassive:   ErrBusPassive,
	StatusBusOff:       ErrBusOff,
	StatusAnyBusErr:    ErrAnyBusErr,
	StatusQRcvEmpty:    ErrQRcvEmpty,
	StatusQOverrun:     ErrQOverrun,
	StatusQXmtFull:     ErrQXmtFull,
	StatusRegTest:      ErrRegTest,
	StatusNoDriver:     ErrNoDriver,
	StatusHWInUse:      ErrHWInUse,
	StatusNetInUse:     ErrNetInUse,
	StatusIllHW:        ErrIllHW,
	StatusIllNet:       ErrIllNet,
	StatusIllClient:    ErrIllClient,
	StatusResource:     ErrResource,
	StatusIllParamType: ErrIllParamType,
	StatusIllParamVal:  ErrIllParamVal,
	StatusUnknown:      ErrUnknown,
	StatusIllData:      ErrIllData,
	StatusIllMode:      ErrIllMode,
	StatusCaution:      ErrCaution,
	StatusInitialize:   ErrInitialize,
	StatusIllOperation: ErrIllOperation,
}

// StatusError is returned for codes that have no dedicated sentinel.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pcan: unknown error (status 0x%X)", uint32(e.Status))
}

// Is reports ErrUnknown so callers can classify with errors.Is.
func (e *StatusError) Is(target error) bool { return target == ErrUnknown }

// Err maps the status to nil, a sentinel error, or a *StatusError wrapping
// ErrUnknown. Every code maps to exactly one of these.
func (s Status) Err() error {
	if s == StatusOK {
		return nil
	}
	if err, ok := statusErrors[s]; ok {
		return err
	}
	return &StatusError{Status: s}
}

// Outcome classifies a Status.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeError
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Classify reports which result class s falls into.
func Classify(s Status) Outcome {
	err := s.Err()
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrUnknown):
		return OutcomeUnknown
	default:
		return OutcomeError
	}
}

// IsBusError reports whether s carries any of the bus error bits.
func (s Status) IsBusError() bool { return s&StatusAnyBusErr != 0 && s&^StatusAnyBusErr == 0 }

func (s Status) String() string {
	if s == StatusOK {
		return "OK"
	}
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("0x%X", uint32(s))
}

var statusNames = map[Status]string{
	StatusXmtFull:      "XMTFULL",
	StatusOverrun:      "OVERRUN",
	StatusBusLight:     "BUSLIGHT",
	StatusBusHeavy:     "BUSHEAVY",
	StatusBusPassive:   "BUSPASSIVE",
	StatusBusOff:       "BUSOFF",
	StatusAnyBusErr:    "ANYBUSERR",
	StatusQRcvEmpty:    "QRCVEMPTY",
	StatusQOverrun:     "QOVERRUN",
	StatusQXmtFull:     "QXMTFULL",
	StatusRegTest:      "REGTEST",
	StatusNoDriver:     "NODRIVER",
	StatusHWInUse:      "HWINUSE",
	StatusNetInUse:     "NETINUSE",
	StatusIllHW:        "ILLHW",
	StatusIllNet:       "ILLNET",
	StatusIllClient:    "ILLCLIENT",
	StatusResource:     "RESOURCE",
	StatusIllParamType: "ILLPARAMTYPE",
	StatusIllParamVal:  "ILLPARAMVAL",
	StatusUnknown:      "UNKNOWN",
	StatusIllData:      "ILLDATA",
	StatusIllMode:      "ILLMODE",
	StatusCaution:      "CAUTION",
	StatusInitialize:   "INITIALIZE",
	StatusIllOperation: "ILLOPERATION",
}
