package util

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	assert.Equal(t, int64(3), Round(2.5))
	assert.Equal(t, int64(2), Round(2.49))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-3))
	assert.Equal(t, 1.0, Clamp01(7))
	assert.Equal(t, 0.25, Clamp01(0.25))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 100.0, Clamp(101, 0, 100))
}

func TestSortedKeys(t *testing.T) {
	set := map[string]struct{}{"c": {}, "a": {}, "b": {}}
	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(set))
	assert.Empty(t, SortedKeys(nil))
}

func TestCeilTo(t *testing.T) {
	assert.Equal(t, 90.0, CeilTo(89.99999999999, 1))
	assert.Equal(t, 0.124, CeilTo(0.1231, 3))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1h0m0s", FormatDuration(time.Hour))
	assert.Equal(t, "2d1h0m0s", FormatDuration(49*time.Hour))
}
