package formula

import (
	"math/rand/v2"
	"time"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// FixedClock always reports the same instant
type FixedClock time.Time

func (c FixedClock) Now() time.Time {
	return time.Time(c)
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

const (
	excelEpochMs = -2209161600000 // December 30, 1899 00:00:00 UTC
	msPerDay     = 86400000
)

// SerialDate converts t to a spreadsheet serial number (days since the
// 1899-12-30 epoch, fraction for the time of day). the wall-clock time of
// t's location is used.
func SerialDate(t time.Time) float64 {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return float64(wall.UnixMilli()-excelEpochMs) / msPerDay
}
