package consensus

import "time"

// Clock abstracts wall-clock reads so round timeouts are deterministic
// in tests, per the module's explicit-context design: nothing in this
// package calls time.Now() directly.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
