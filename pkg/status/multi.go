// =============================================================================
// pkg/status/multi.go - Reporter fan-out
// =============================================================================
package status

import "seedplay/pkg/api"

// Multi forwards every report to each of its reporters
type Multi []api.Reporter

var (
	_ api.Reporter       = Multi(nil)
	_ api.TargetObserver = Multi(nil)
)

func (m Multi) Status(l api.StatusLine) {
	for _, r := range m {
		r.Status(l)
	}
}

func (m Multi) Message(format string, args ...any) {
	for _, r := range m {
		r.Message(format, args...)
	}
}

func (m Multi) Done(outcome api.Outcome, detail string) {
	for _, r := range m {
		r.Done(outcome, detail)
	}
}

// Target is passed on to the reporters that observe targets
func (m Multi) Target(torrent string, target api.StreamTarget) {
	for _, r := range m {
		if obs, ok := r.(api.TargetObserver); ok {
			obs.Target(torrent, target)
		}
	}
}
