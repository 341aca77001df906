package instancing

import (
	"time"
)

// Time is the frame clock handed to Update by the host loop.
type Time struct {
	Time time.Time
	Dt   time.Duration
}

func NewTime() *Time {
	return &Time{Time: time.Now()}
}

// Tick advances the clock to now.
func (t *Time) Tick(now time.Time) {
	t.Dt = now.Sub(t.Time)
	t.Time = now
}

// Seconds returns Dt in seconds, defaulting to 1/60 before the first tick.
func (t *Time) Seconds() float32 {
	if t == nil || t.Dt <= 0 {
		return 1.0 / 60.0
	}
	return float32(t.Dt.Seconds())
}
