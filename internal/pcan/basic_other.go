//go:build !windows

package pcan

import "fmt"

// PCANBasic.dll is Windows-only; elsewhere use the SocketCAN driver (peak_usb, peak_pci).
func loadBasic() (Driver, error) {
	return nil, fmt.Errorf("%w: PCAN-Basic library unavailable on this platform", ErrNoDriver)
}
