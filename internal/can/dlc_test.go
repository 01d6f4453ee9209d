package can

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDLCExactLengths(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64} {
		assert.Equal(t, n, DLCToLen(LenToDLC(n)), "len %d", n)
	}
}

func TestDLCRoundsUp(t *testing.T) {
	representable := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}
	for n := 0; n <= 64; n++ {
		got := DLCToLen(LenToDLC(n))
		want := 0
		for _, r := range representable {
			if r >= n {
				want = r
				break
			}
		}
		assert.Equal(t, want, got, "len %d", n)
	}
}

func TestDLCKnownValues(t *testing.T) {
	assert.Equal(t, uint8(9), LenToDLC(9))
	assert.Equal(t, 12, DLCToLen(9))
	assert.Equal(t, uint8(13), LenToDLC(25))
	assert.Equal(t, 32, DLCToLen(13))

	enc := map[int]uint8{12: 9, 13: 10, 16: 10, 17: 11, 20: 11, 21: 12, 24: 12, 32: 13, 33: 14, 48: 14, 49: 15, 64: 15}
	for n, dlc := range enc {
		assert.Equal(t, dlc, LenToDLC(n), "len %d", n)
	}
}

func TestDLCDefensiveClamp(t *testing.T) {
	assert.Equal(t, uint8(15), LenToDLC(65))
	assert.Equal(t, uint8(15), LenToDLC(1<<20))
	assert.Equal(t, uint8(0), LenToDLC(-1))
	assert.Equal(t, 64, DLCToLen(16))
	assert.Equal(t, 64, DLCToLen(255))
}
