package ports

import "time"

// Clock abstracts wall-clock time so time-gated operations are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
