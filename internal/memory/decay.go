package memory

import "time"

// DefaultDecayFloor prevents a decay factor from ever reaching zero, so
// old entries stay retrievable at reduced rank.
const DefaultDecayFloor = 0.1

// DecayFactor computes the time-based multiplier applied to an entry's
// importance at rank time. It never mutates the stored importance.
//
//	factor = max(floor, 1 - ageDays * ratePerDay)
//
// A rate of zero (the Persistent tier) always yields exactly 1.
func DecayFactor(e *Entry, ratePerDay, floor float64, now time.Time) float64 {
	if ratePerDay <= 0 {
		return 1
	}
	f := 1 - e.AgeDays(now)*ratePerDay
	if f < floor {
		return floor
	}
	return f
}
