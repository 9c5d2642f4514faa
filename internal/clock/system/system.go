// Package system reads the wall clock.
package system

import "time"

// Clock implements internship.Clock. Readings are UTC at millisecond precision,
// the resolution every listing store keeps.
type Clock struct{}

// New returns a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (*Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
