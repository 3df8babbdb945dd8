// =============================================================================
// pkg/player/mpv_ipc.go - mpv JSON IPC queries
// =============================================================================
package player

import (
	"sync/atomic"
	"time"

	"github.com/dexterlb/mpvipc"
)

type pauseReply struct {
	paused bool
	ok     bool
}

// pauseQuery reads mpv's "pause" property over its IPC socket. mpvipc calls
// block until mpv answers, so only one query is in flight at a time and a
// caller stops waiting after its timeout.
type pauseQuery struct {
	sock     string
	inFlight atomic.Bool
}

// Paused reports mpv's pause flag. ok is false when mpv could not be reached,
// did not answer within timeout, or an earlier query is still unanswered.
func (q *pauseQuery) Paused(timeout time.Duration) (paused, ok bool) {
	if !q.inFlight.CompareAndSwap(false, true) {
		return false, false
	}
	reply := make(chan pauseReply, 1)
	go func() {
		r := q.ask()
		q.inFlight.Store(false)
		reply <- r
	}()

	select {
	case r := <-reply:
		return r.paused, r.ok
	case <-time.After(timeout):
		return false, false
	}
}

func (q *pauseQuery) ask() pauseReply {
	conn := mpvipc.NewConnection(q.sock)
	if err := conn.Open(); err != nil {
		return pauseReply{}
	}
	defer conn.Close()
	v, err := conn.Get("pause")
	if err != nil {
		return pauseReply{}
	}
	paused, isBool := v.(bool)
	return pauseReply{paused: paused, ok: isBool}
}
