package can

// MaxDLC is the largest data length code.
const MaxDLC = 15

var dlcLengths = [MaxDLC + 1]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// LenToDLC returns the smallest DLC whose length holds n bytes.
// Lengths above 64 yield 15; constructors reject them before they get here.
func LenToDLC(n int) uint8 {
	switch {
	case n <= 8:
		if n < 0 {
			return 0
		}
		return uint8(n)
	case n <= 12:
		return 9
	case n <= 16:
		return 10
	case n <= 20:
		return 11
	case n <= 24:
		return 12
	case n <= 32:
		return 13
	case n <= 48:
		return 14
	default:
		return 15
	}
}

// DLCToLen returns the payload length encoded by dlc. Codes above 15 decode as 64.
func DLCToLen(dlc uint8) int {
	if dlc > MaxDLC {
		return 64
	}
	return dlcLengths[dlc]
}
