// =============================================================================
// pkg/api/types.go - Streaming data model
// =============================================================================
package api

import "fmt"

// FileEntry is one file of the torrent in original index order
type FileEntry struct {
	Index  int
	Path   string
	Size   uint64
	Offset uint64
}

// Priority is a per-piece fetch hint
type Priority int

const (
	PrioritySkip Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PrioritySkip:
		return "skip"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// PiecePlan holds one priority per piece of the torrent
type PiecePlan []Priority

// Counts returns how many pieces carry each priority
func (p PiecePlan) Counts() (skip, normal, high int) {
	for _, prio := range p {
		switch prio {
		case PriorityNormal:
			normal++
		case PriorityHigh:
			high++
		default:
			skip++
		}
	}
	return skip, normal, high
}

// StreamTarget is the selected file and the piece span it covers
type StreamTarget struct {
	File        FileEntry
	StartPiece  int
	EndPiece    int
	PieceLength uint64
}

// Pieces returns the number of pieces covered by the target
func (t StreamTarget) Pieces() int {
	return t.EndPiece - t.StartPiece + 1
}

// TransferState is the coarse engine state
type TransferState int

const (
	TransferDownloading TransferState = iota
	TransferSeeding
	TransferError
)

func (s TransferState) String() string {
	switch s {
	case TransferDownloading:
		return "downloading"
	case TransferSeeding:
		return "seeding"
	case TransferError:
		return "error"
	default:
		return "unknown"
	}
}

// TransferStatus is a read-only snapshot produced by the engine
type TransferStatus struct {
	Progress     float64 // 0..1
	Peers        int
	DownloadRate float64 // bytes/sec
	State        TransferState
	Err          string
}

// PlaybackState is the player state
type PlaybackState int

const (
	PlaybackIdle PlaybackState = iota
	PlaybackPlaying
	PlaybackPaused
	PlaybackEnded
	PlaybackError
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackIdle:
		return "idle"
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	case PlaybackEnded:
		return "ended"
	case PlaybackError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether the player is still presenting media
func (s PlaybackState) Active() bool {
	return s == PlaybackPlaying || s == PlaybackPaused
}

// Finished reports whether the player will not play any further
func (s PlaybackState) Finished() bool {
	return s == PlaybackEnded || s == PlaybackError
}

// Phase is the supervisor state
type Phase int

const (
	PhasePriming Phase = iota
	PhaseStreaming
	PhaseDraining
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhasePriming:
		return "priming"
	case PhaseStreaming:
		return "streaming"
	case PhaseDraining:
		return "draining"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
