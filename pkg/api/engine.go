// =============================================================================
// pkg/api/engine.go - Engine, Player and Storage boundaries
// =============================================================================
package api

import (
	"context"
	"time"
)

// Engine opens transfers against the swarm
type Engine interface {
	Open(ctx context.Context, src string) (Transfer, error)
	Close() error
}

// Transfer is one torrent inside the engine. A Transfer is owned by a single
// session; only the session submits priorities.
type Transfer interface {
	// AwaitMetadata blocks until the info dictionary is known.
	AwaitMetadata(ctx context.Context) error
	HasMetadata() bool
	// Files returns the raw file list in torrent order, or
	// ErrMetadataUnavailable before metadata arrived.
	Files() ([]RawFile, error)
	Name() string
	MultiFile() bool
	NumPieces() int
	PieceLength() uint64
	SubmitPlan(plan PiecePlan) error
	Status() TransferStatus
	Valid() bool
	Release() error
}

// RawFile is a file descriptor as reported by the engine
type RawFile struct {
	Path   string // relative to the save root, torrent directory included
	Length int64
	Offset int64 // position inside the concatenated piece space
}

// Player starts playback of local files
type Player interface {
	Load(ctx context.Context, path string) (Playback, error)
}

// Playback is a loaded media item
type Playback interface {
	Play() error
	State() PlaybackState
	// Stop is idempotent.
	Stop() error
}

// Storage is the local filesystem as seen by the session
type Storage interface {
	Stat(path string) (size int64, exists bool, err error)
	MkdirAll(dir string) error
	Remove(path string) error
	// RemoveEmptyDir removes dir only if it has no entries.
	RemoveEmptyDir(dir string) (removed bool, err error)
}

// Reporter receives human readable progress
type Reporter interface {
	Status(line StatusLine)
	Message(format string, args ...any)
	Done(outcome Outcome, detail string)
}

// TargetObserver is implemented by reporters that also want to know which
// file a session streams.
type TargetObserver interface {
	Target(torrent string, target StreamTarget)
}

// StatusLine is one poll cycle worth of progress
type StatusLine struct {
	Phase    Phase
	Transfer TransferStatus
	Playback PlaybackState
	Path     string
	Size     int64 // bytes present on disk for Path, -1 when missing
}

// Options configures the engine behavior
type Options struct {
	SaveDir    string        // Download directory
	ListenPort int           // Swarm listen port (0 = engine default)
	MaxPeers   int           // Maximum number of peers per torrent
	RateLimit  int64         // Download rate limit in bytes/sec (0 = unlimited)
	Seed       bool          // Keep uploading after completion
	Sample     time.Duration // Window used for download rate sampling
}
