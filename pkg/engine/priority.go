// =============================================================================
// pkg/engine/priority.go - Piece priorities and rate sampling
// =============================================================================
package engine

import (
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/types"

	"seedplay/pkg/api"
)

func mapPriority(prio api.Priority) types.PiecePriority {
	switch prio {
	case api.PrioritySkip:
		return torrent.PiecePriorityNone
	case api.PriorityHigh:
		return torrent.PiecePriorityNow
	case api.PriorityNormal:
		return torrent.PiecePriorityNormal
	default:
		return torrent.PiecePriorityNormal
	}
}

const defaultRateWindow = time.Second

// rateMeter turns a monotonically growing byte counter into bytes/sec.
// The rate is only recomputed once window has elapsed since the last sample.
type rateMeter struct {
	mu     sync.Mutex
	window time.Duration
	bytes  int64
	at     time.Time
	rate   float64
}

func newRateMeter(window time.Duration) *rateMeter {
	if window <= 0 {
		window = defaultRateWindow
	}
	return &rateMeter{window: window}
}

func (m *rateMeter) Observe(total int64, now time.Time) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.at.IsZero() {
		m.bytes, m.at = total, now
		return 0
	}
	elapsed := now.Sub(m.at)
	if elapsed < m.window {
		return m.rate
	}
	delta := total - m.bytes
	if delta < 0 {
		delta = 0
	}
	m.rate = float64(delta) / elapsed.Seconds()
	m.bytes, m.at = total, now
	return m.rate
}
