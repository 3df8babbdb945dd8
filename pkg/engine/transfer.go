// =============================================================================
// pkg/engine/transfer.go - One torrent inside the engine
// =============================================================================
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/anacrolix/torrent"

	"seedplay/pkg/api"
)

// Transfer adapts a *torrent.Torrent to api.Transfer
type Transfer struct {
	t        *torrent.Torrent
	meter    *rateMeter
	released atomic.Bool
}

var _ api.Transfer = (*Transfer)(nil)

func newTransfer(t *torrent.Torrent, window time.Duration) *Transfer {
	return &Transfer{t: t, meter: newRateMeter(window)}
}

// AwaitMetadata waits for the info dictionary, the torrent closing, or ctx
func (tr *Transfer) AwaitMetadata(ctx context.Context) error {
	select {
	case <-tr.t.GotInfo():
		return nil
	case <-tr.t.Closed():
		return fmt.Errorf("torrent closed before metadata arrived: %w", api.ErrDownloadFailed)
	case <-ctx.Done():
		return api.ErrCancelled
	}
}

func (tr *Transfer) HasMetadata() bool {
	return tr.t.Info() != nil
}

// Files lists the torrent's files with paths relative to the data directory
func (tr *Transfer) Files() ([]api.RawFile, error) {
	if tr.t.Info() == nil {
		return nil, api.ErrMetadataUnavailable
	}
	files := tr.t.Files()
	out := make([]api.RawFile, 0, len(files))
	for _, f := range files {
		out = append(out, api.RawFile{
			Path:   f.Path(),
			Length: f.Length(),
			Offset: f.Offset(),
		})
	}
	return out, nil
}

func (tr *Transfer) Name() string {
	return tr.t.Name()
}

func (tr *Transfer) MultiFile() bool {
	info := tr.t.Info()
	return info != nil && info.IsDir()
}

func (tr *Transfer) NumPieces() int {
	if tr.t.Info() == nil {
		return 0
	}
	return tr.t.NumPieces()
}

func (tr *Transfer) PieceLength() uint64 {
	info := tr.t.Info()
	if info == nil || info.PieceLength <= 0 {
		return 0
	}
	return uint64(info.PieceLength)
}

// SubmitPlan applies one priority to every piece of the torrent
func (tr *Transfer) SubmitPlan(plan api.PiecePlan) error {
	if tr.t.Info() == nil {
		return api.ErrMetadataUnavailable
	}
	if n := tr.t.NumPieces(); len(plan) != n {
		return fmt.Errorf("plan covers %d pieces, torrent has %d", len(plan), n)
	}
	for i, prio := range plan {
		tr.t.Piece(i).SetPriority(mapPriority(prio))
	}
	return nil
}

// Status snapshots progress, peers and download rate
func (tr *Transfer) Status() api.TransferStatus {
	if !tr.Valid() {
		return api.TransferStatus{State: api.TransferError, Err: "torrent closed"}
	}
	stats := tr.t.Stats()
	st := api.TransferStatus{
		Peers:        stats.ActivePeers,
		DownloadRate: tr.meter.Observe(stats.BytesReadUsefulData.Int64(), time.Now()),
		State:        api.TransferDownloading,
	}
	if tr.t.Info() == nil {
		return st
	}
	if length := tr.t.Length(); length > 0 {
		st.Progress = float64(tr.t.BytesCompleted()) / float64(length)
	}
	if tr.t.BytesMissing() == 0 {
		st.Progress = 1
		st.State = api.TransferSeeding
	}
	return st
}

// Valid reports whether the torrent is still held by the client
func (tr *Transfer) Valid() bool {
	if tr.released.Load() {
		return false
	}
	select {
	case <-tr.t.Closed():
		return false
	default:
		return true
	}
}

// Release drops the torrent from the client. Later calls are no-ops.
func (tr *Transfer) Release() error {
	if !tr.released.CompareAndSwap(false, true) {
		return nil
	}
	tr.t.Drop()
	return nil
}
