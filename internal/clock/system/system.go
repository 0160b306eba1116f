// Package system supplies the wall clock used outside tests.
package system

import "time"

// Clock satisfies catalog.Clock with the real time source.
type Clock struct{}

// New returns a wall clock.
func New() *Clock {
	return &Clock{}
}

// Now reports the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
