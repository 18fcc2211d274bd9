package duration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name      string
		magnitude float64
		unit      Unit
		target    Granularity
		want      int64
	}{
		{"hour and a half in ms", 1.5, Hour, Milliseconds, 5_400_000},
		{"half day in hours", 0.5, Day, Hours, 12},
		{"tiny hour rounds to zero", 0.02, Hour, Hours, 0},
		{"half rounds away from zero", 0.5, Hour, Hours, 1},
		{"double hour in seconds", 1, DoubleHour, Seconds, 7200},
		{"week in ms", 1, Week, Milliseconds, 604_800_000},
		{"century in hours", 1, Century, Hours, 876_000},
		{"wood rat in hours", 1, WoodRat, Hours, 525_600},
		{"unknown unit multiplies by one", 42.4, Unit("fortnight"), Milliseconds, 42},
		{"saturates on overflow", 1e30, Century, Milliseconds, math.MaxInt64},
		{"nan is zero", math.NaN(), Hour, Hours, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Convert(tt.magnitude, tt.unit, tt.target))
		})
	}
}

func TestConvertMonotonicAndNotBelowFloor(t *testing.T) {
	units := []Unit{Second, Minute, Hour, DoubleHour, Day, Week, Month, Season, Year, WoodRat, Century}
	targets := []Granularity{Milliseconds, Seconds, Hours}

	for _, u := range units {
		for _, g := range targets {
			prev := int64(math.MinInt64)
			for m := 0.0; m <= 50; m += 0.37 {
				got := Convert(m, u, g)
				assert.GreaterOrEqual(t, got, prev, "unit=%s target=%d m=%v", u, g, m)
				assert.GreaterOrEqual(t, float64(got), math.Floor(m*Multiplier(u, g)), "unit=%s target=%d m=%v", u, g, m)
				prev = got
			}
		}
	}
}

func TestSaturatingAdd(t *testing.T) {
	assert.Equal(t, int64(5), SaturatingAdd(2, 3))
	assert.Equal(t, int64(math.MaxInt64), SaturatingAdd(math.MaxInt64-1, 10))
	assert.Equal(t, int64(math.MinInt64), SaturatingAdd(math.MinInt64+1, -10))
	assert.Equal(t, int64(math.MaxInt64), SaturatingAdd(math.MaxInt64, 0))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "1.5 hour", Label(1.5, Hour))
	assert.Equal(t, "2 day", Label(2.0, Day))
	assert.Equal(t, "0.25 week", Label(0.25, Week))
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(Week, MuteUnits))
	assert.False(t, Supported(Century, MuteUnits))
	assert.True(t, Supported(Century, BanUnits))
	assert.True(t, Supported(Second, BanUnits))
	assert.True(t, Supported(Minute, BanUnits))
	assert.False(t, Supported(Day, SlowModeUnits))
}
