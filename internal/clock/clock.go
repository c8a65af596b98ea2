// Package clock provides timer scheduling with abstraction for testing.
package clock

import "time"

// Real schedules callbacks on the runtime timer.
type Real struct{}

// AfterFunc runs f in its own goroutine once d has elapsed.
func (Real) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}
