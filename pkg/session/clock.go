// =============================================================================
// pkg/session/clock.go - Poll scheduling
// =============================================================================
package session

import "github.com/benbjohnson/clock"

// Clock paces every poll loop of a session and bounds the readiness timeout
type Clock = clock.Clock

// RealClock returns the wall clock
func RealClock() Clock {
	return clock.New()
}
