package memory

import (
	"testing"
	"time"
)

func TestDecayFactorZeroRate(t *testing.T) {
	e := NewEntry("x", nil, 0.9, time.Now().Add(-365*24*time.Hour))
	if f := DecayFactor(e, 0, DefaultDecayFloor, time.Now()); f != 1.0 {
		t.Errorf("zero rate factor = %f, want exactly 1.0", f)
	}
}

func TestDecayFactorMonotone(t *testing.T) {
	now := time.Now()
	prev := 2.0
	for days := 0; days <= 30; days += 3 {
		e := NewEntry("x", nil, 0.5, now.Add(-time.Duration(days)*24*time.Hour))
		f := DecayFactor(e, 0.05, DefaultDecayFloor, now)
		if f > prev {
			t.Fatalf("factor increased with age: day %d gave %f after %f", days, f, prev)
		}
		prev = f
	}
}

func TestDecayFactorFloor(t *testing.T) {
	e := NewEntry("x", nil, 0.5, time.Now().Add(-1000*24*time.Hour))
	if f := DecayFactor(e, 0.1, DefaultDecayFloor, time.Now()); f != DefaultDecayFloor {
		t.Errorf("factor = %f, want floor %f", f, DefaultDecayFloor)
	}
}

func TestDecayFactorFreshEntry(t *testing.T) {
	now := time.Now()
	e := NewEntry("x", nil, 0.5, now)
	if f := DecayFactor(e, 0.1, DefaultDecayFloor, now); f != 1.0 {
		t.Errorf("fresh entry factor = %f, want 1.0", f)
	}
}
