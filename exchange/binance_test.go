package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSizeRoundsToAssetDecimals(t *testing.T) {
	assert.Equal(t, "1.23457", formatSize("BTC", 1.234567)) // 5 decimals
	assert.Equal(t, "3", formatSize("DOGE", 2.7))           // 0 decimals
	assert.Equal(t, "1.2", formatSize("ARB", 1.23))         // 1 decimal
}

func TestFormatSizeFallsBackToFullPrecisionForUnknownAsset(t *testing.T) {
	assert.Equal(t, "1.23456789", formatSize("ZZZZ", 1.23456789))
}
