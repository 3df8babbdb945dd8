// =============================================================================
// pkg/session/supervisor.go - Joint transfer/playback lifecycle
// =============================================================================
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"seedplay/pkg/api"
)

// Decide applies the streaming transition rules to one poll. It returns
// done=false while the session should keep streaming.
func Decide(st api.TransferStatus, ps api.PlaybackState, valid bool) (outcome api.Outcome, detail string, done bool) {
	switch {
	case ps.Finished():
		if st.State == api.TransferSeeding {
			return api.OutcomeCompleted, fmt.Sprintf("playback %s, torrent fully downloaded", ps), true
		}
		return api.OutcomePlaybackFailed, fmt.Sprintf("playback %s, torrent is not fully downloaded", ps), true
	case st.State == api.TransferSeeding && !ps.Active():
		return api.OutcomeCompleted, "torrent fully downloaded, player is not playing", true
	case !valid:
		return api.OutcomeDownloadFailed, "torrent became invalid during download", true
	case st.Err != "":
		return api.OutcomeDownloadFailed, "error during download: " + st.Err, true
	case st.State == api.TransferError:
		return api.OutcomeDownloadFailed, "engine reported an error state", true
	}
	return 0, "", false
}

// Supervisor runs one streaming session from readiness to cleanup
type Supervisor struct {
	Transfer  api.Transfer
	Player    api.Player
	Readiness *Readiness
	Cleaner   *Cleaner
	Storage   api.Storage
	Reporter  api.Reporter
	Clock     Clock
	Interval  time.Duration
	Target    api.StreamTarget
	Layout    Layout
	Log       *slog.Logger

	phase atomic.Int32
	drain sync.Once
}

// Phase returns the current supervisor state
func (s *Supervisor) Phase() api.Phase {
	return api.Phase(s.phase.Load())
}

func (s *Supervisor) setPhase(p api.Phase) {
	s.phase.Store(int32(p))
	s.logger().Debug("phase", slog.String("phase", p.String()))
}

// Run drives Priming, Streaming and Draining and returns the session
// outcome. Draining runs exactly once whatever ends the session, including
// ctx cancellation.
func (s *Supervisor) Run(ctx context.Context) api.Outcome {
	s.setPhase(api.PhasePriming)
	playback, outcome, detail, streaming := s.prime(ctx)
	if streaming {
		s.setPhase(api.PhaseStreaming)
		outcome, detail = s.stream(ctx, playback)
	}

	s.drain.Do(func() {
		s.setPhase(api.PhaseDraining)
		s.shutdown(playback, outcome, detail)
	})
	s.setPhase(api.PhaseTerminated)
	return outcome
}

func (s *Supervisor) prime(ctx context.Context) (api.Playback, api.Outcome, string, bool) {
	if err := s.Readiness.Wait(ctx); err != nil {
		return nil, api.OutcomeOf(err), err.Error(), false
	}
	if ctx.Err() != nil {
		return nil, api.OutcomeCancelledByUser, "", false
	}

	s.Reporter.Message("File has some data, attempting to stream...")
	path := s.Layout.ArtifactPath(s.Target.File)
	playback, err := s.Player.Load(ctx, path)
	if err != nil {
		return nil, api.OutcomePlaybackFailed, fmt.Sprintf("load %s: %v", path, err), false
	}
	if err := playback.Play(); err != nil {
		return playback, api.OutcomePlaybackFailed, fmt.Sprintf("start playback: %v", err), false
	}
	s.logger().Info("playback started", slog.String("path", path))
	return playback, 0, "", true
}

func (s *Supervisor) stream(ctx context.Context, playback api.Playback) (api.Outcome, string) {
	ticker := s.Clock.Ticker(s.Interval)
	defer ticker.Stop()

	announced := false
	for {
		select {
		case <-ctx.Done():
			return api.OutcomeCancelledByUser, ""
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return api.OutcomeCancelledByUser, ""
		}

		st := s.Transfer.Status()
		ps := playback.State()
		valid := s.Transfer.Valid()
		if outcome, detail, done := Decide(st, ps, valid); done {
			s.logger().Info("streaming finished",
				slog.String("outcome", outcome.String()),
				slog.String("transfer", st.State.String()),
				slog.String("playback", ps.String()),
			)
			return outcome, detail
		}

		if st.State == api.TransferSeeding && !announced {
			s.Reporter.Message("Torrent fully downloaded and seeding. Playback continues.")
			announced = true
		}
		path := s.Layout.ArtifactPath(s.Target.File)
		s.Reporter.Status(api.StatusLine{
			Phase:    api.PhaseStreaming,
			Transfer: st,
			Playback: ps,
			Path:     path,
			Size:     onDisk(s.Storage, path, s.logger()),
		})
	}
}

func (s *Supervisor) shutdown(playback api.Playback, outcome api.Outcome, detail string) {
	log := s.logger().With(slog.String("outcome", outcome.String()))
	if playback != nil {
		if err := playback.Stop(); err != nil {
			log.Warn("stop player failed", slog.String("error", err.Error()))
		}
	}
	if err := s.Transfer.Release(); err != nil {
		log.Warn("release transfer failed", slog.String("error", err.Error()))
	}
	s.Reporter.Message("Cleaned up torrent session.")

	if err := s.Cleaner.Clean(outcome, s.Target, s.Layout); err != nil {
		log.Warn("cleanup failed", slog.String("error", err.Error()))
		s.Reporter.Message("Error removing file/directory: %v", err)
	}
	s.Reporter.Done(outcome, detail)
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
