// =============================================================================
// pkg/api/errors.go - Error taxonomy and session outcomes
// =============================================================================
package api

import (
	"context"
	"errors"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrMetadataUnavailable = errors.New("metadata unavailable")
	ErrNoPlayableFile      = errors.New("no playable file")
	ErrDownloadFailed      = errors.New("download failed")
	ErrPlaybackFailed      = errors.New("playback failed")
	ErrCancelled           = errors.New("cancelled by user")
)

// Outcome is the terminal result of a streaming session
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeCancelledByUser
	OutcomeDownloadFailed
	OutcomePlaybackFailed
	OutcomeNoPlayableFile
	OutcomeInvalidInput
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelledByUser:
		return "cancelled-by-user"
	case OutcomeDownloadFailed:
		return "download-failed"
	case OutcomePlaybackFailed:
		return "playback-failed"
	case OutcomeNoPlayableFile:
		return "no-playable-file"
	case OutcomeInvalidInput:
		return "invalid-input"
	default:
		return "unknown"
	}
}

// Explain returns the one-line text printed before exit
func (o Outcome) Explain() string {
	switch o {
	case OutcomeCompleted:
		return "Torrent fully downloaded. Exiting."
	case OutcomeCancelledByUser:
		return "Streaming stopped by user."
	case OutcomeDownloadFailed:
		return "Download failed; torrent is no longer usable."
	case OutcomePlaybackFailed:
		return "Playback stopped before the torrent was fully downloaded."
	case OutcomeNoPlayableFile:
		return "No video files found in this torrent."
	case OutcomeInvalidInput:
		return "Invalid magnet link or torrent file."
	default:
		return "Session ended."
	}
}

// ExitCode maps the outcome to a process exit status
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeCompleted, OutcomeCancelledByUser:
		return 0
	default:
		return 1
	}
}

// Err returns the sentinel error matching the outcome, nil for Completed
func (o Outcome) Err() error {
	switch o {
	case OutcomeCompleted:
		return nil
	case OutcomeCancelledByUser:
		return ErrCancelled
	case OutcomePlaybackFailed:
		return ErrPlaybackFailed
	case OutcomeNoPlayableFile:
		return ErrNoPlayableFile
	case OutcomeInvalidInput:
		return ErrInvalidInput
	default:
		return ErrDownloadFailed
	}
}

// OutcomeOf classifies an error chain. A nil error is a completed session.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCompleted
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return OutcomeCancelledByUser
	case errors.Is(err, ErrInvalidInput):
		return OutcomeInvalidInput
	case errors.Is(err, ErrNoPlayableFile):
		return OutcomeNoPlayableFile
	case errors.Is(err, ErrPlaybackFailed):
		return OutcomePlaybackFailed
	default:
		return OutcomeDownloadFailed
	}
}
