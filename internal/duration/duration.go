// Package duration converts user-supplied (magnitude, unit) pairs into integer
// durations at a fixed granularity.
package duration

import (
	"math"
	"strconv"
	"strings"
)

// Unit is a duration unit symbol as it appears in slash command choices.
type Unit string

const (
	Second     Unit = "second"
	Minute     Unit = "minute"
	Hour       Unit = "hour"
	DoubleHour Unit = "double_hour"
	Day        Unit = "day"
	Week       Unit = "week"
	Month      Unit = "month"
	Season     Unit = "season"
	Year       Unit = "year"
	WoodRat    Unit = "wood_rat" // one sexagenary cycle, 60 years
	Century    Unit = "century"
)

// Granularity is the integer resolution a conversion produces.
type Granularity int

const (
	Milliseconds Granularity = iota
	Seconds
	Hours
)

// unit lengths in milliseconds
var unitMillis = map[Unit]float64{
	Second:     1000,
	Minute:     1000 * 60,
	Hour:       1000 * 60 * 60,
	DoubleHour: 1000 * 60 * 60 * 2,
	Day:        1000 * 60 * 60 * 24,
	Week:       1000 * 60 * 60 * 24 * 7,
	Month:      1000 * 60 * 60 * 24 * 30,
	Season:     1000 * 60 * 60 * 24 * 30 * 3,
	Year:       1000 * 60 * 60 * 24 * 365,
	WoodRat:    1000 * 60 * 60 * 24 * 365 * 60,
	Century:    1000 * 60 * 60 * 24 * 365 * 100,
}

var granularityMillis = map[Granularity]float64{
	Milliseconds: 1,
	Seconds:      1000,
	Hours:        1000 * 60 * 60,
}

// Units accepted by each command.
var (
	MuteUnits     = []Unit{Second, Minute, Hour, DoubleHour, Day, Week}
	BanUnits      = []Unit{Second, Minute, Hour, DoubleHour, Day, Week, Month, Season, Year, WoodRat, Century}
	SlowModeUnits = []Unit{Second, Minute, Hour, DoubleHour}
)

// Multiplier returns how many target-granularity steps one unit spans.
// Unknown units and granularities yield 1.
func Multiplier(unit Unit, target Granularity) float64 {
	u, ok := unitMillis[unit]
	if !ok {
		return 1
	}
	g, ok := granularityMillis[target]
	if !ok {
		return 1
	}
	return u / g
}

// Convert returns magnitude*unit expressed in target, rounded half away from
// zero. Results outside the int64 range saturate; NaN converts to 0.
func Convert(magnitude float64, unit Unit, target Granularity) int64 {
	return Round(magnitude * Multiplier(unit, target))
}

// Round rounds half away from zero and saturates instead of wrapping.
func Round(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	// float64(math.MaxInt64) is 2^63, one past the largest int64
	if r >= math.MaxInt64 {
		return math.MaxInt64
	}
	if r <= math.MinInt64 {
		return math.MinInt64
	}
	return int64(r)
}

// SaturatingAdd adds b to a, clamping to the int64 range on overflow.
func SaturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

// Supported reports whether unit is one of units.
func Supported(unit Unit, units []Unit) bool {
	for _, u := range units {
		if u == unit {
			return true
		}
	}
	return false
}

// Label renders a magnitude and unit the way replies show them, e.g. "1.5 hour"
// or "2 day".
func Label(magnitude float64, unit Unit) string {
	return CleanFloat(magnitude) + " " + string(unit)
}

// CleanFloat formats f without a trailing ".0" and without exponent notation
// for everyday magnitudes.
func CleanFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
