// Package clock provides an injectable time source so watermark
// computations can be made deterministic in tests.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// System reports the current time in UTC.
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time {
	return f.T
}
