// =============================================================================
// pkg/session/readiness.go - Playback readiness monitor
// =============================================================================
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"seedplay/pkg/api"
)

// ReadyPieces is how many full pieces of the artifact must be on disk
// before playback starts.
const ReadyPieces = 2

// Readiness decides when the artifact holds enough data to start playback
type Readiness struct {
	Transfer    api.Transfer
	Storage     api.Storage
	Reporter    api.Reporter
	Clock       Clock
	Interval    time.Duration
	Timeout     time.Duration // 0 waits forever
	Path        string
	PieceLength uint64
	Log         *slog.Logger
}

// Check evaluates the readiness policy once
func (r *Readiness) Check() (bool, error) {
	size := onDisk(r.Storage, r.Path, r.logger())
	if size >= 0 && uint64(size) >= ReadyPieces*r.PieceLength {
		return true, nil
	}

	st := r.Transfer.Status()
	r.Reporter.Status(api.StatusLine{
		Phase:    api.PhasePriming,
		Transfer: st,
		Path:     r.Path,
		Size:     size,
	})

	if st.State == api.TransferSeeding {
		return true, nil
	}
	if !r.Transfer.Valid() {
		return false, fmt.Errorf("torrent is no longer valid: %w", api.ErrDownloadFailed)
	}
	if st.Err != "" {
		return false, fmt.Errorf("error downloading torrent: %s: %w", st.Err, api.ErrDownloadFailed)
	}
	if st.State == api.TransferError {
		return false, fmt.Errorf("engine reported an error state: %w", api.ErrDownloadFailed)
	}
	return false, nil
}

// Wait blocks until Check reports ready, fails, or ctx is cancelled
func (r *Readiness) Wait(ctx context.Context) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = r.Clock.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	ready, err := r.Check()
	if err != nil || ready {
		return err
	}

	ticker := r.Clock.Ticker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return r.interrupted(ctx)
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return r.interrupted(ctx)
		}
		ready, err := r.Check()
		if err != nil || ready {
			return err
		}
	}
}

func (r *Readiness) interrupted(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("not ready after %s: %w", r.Timeout, api.ErrDownloadFailed)
	}
	return api.ErrCancelled
}

// onDisk returns the artifact size, or -1 when it does not exist yet
func onDisk(storage api.Storage, path string, log *slog.Logger) int64 {
	size, exists, err := storage.Stat(path)
	if err != nil {
		log.Warn("stat artifact failed", slog.String("path", path), slog.String("error", err.Error()))
		return -1
	}
	if !exists || size < 0 {
		return -1
	}
	return size
}

func (r *Readiness) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}
