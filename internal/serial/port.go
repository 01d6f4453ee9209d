package serial

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}

// OpenChannel opens the device and initializes a channel on it.
func OpenChannel(name string, baud int, readTimeout time.Duration) (*Channel, error) {
	p, err := Open(name, baud, readTimeout)
	if err != nil {
		return nil, err
	}
	ch, err := NewChannel(p)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return ch, nil
}
