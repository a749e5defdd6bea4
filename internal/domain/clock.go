package domain

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can freeze time via SetClock.
// It drives the UTC offset placed in every geo snapshot.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// UTCOffsetMinutes returns the local time zone's offset from UTC in whole
// minutes, east positive (UTC-5 is -300).
func UTCOffsetMinutes() int {
	_, offset := clock.Now().Zone()
	return offset / 60
}

// OffsetOnly returns the fallback geo snapshot that carries only the UTC offset.
func OffsetOnly() GeoSnapshot {
	return GeoSnapshot{UTCOffset: UTCOffsetMinutes()}
}
