package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"seedplay/pkg/api"
)

const testPieceLength = 16 << 10

// writePack lays out Pack/a.mkv and Pack/b.txt under dir and returns the path
// of a .torrent file describing them.
func writePack(t *testing.T, dir string) string {
	t.Helper()
	root := filepath.Join(dir, "Pack")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, size := range map[string]int{"a.mkv": 40 << 10, "b.txt": 10 << 10} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i % 251)
		}
		if err := os.WriteFile(filepath.Join(root, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	info := metainfo.Info{PieceLength: testPieceLength}
	if err := info.BuildFromFilePath(root); err != nil {
		t.Fatalf("build info: %v", err)
	}
	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		t.Fatalf("marshal info: %v", err)
	}
	mi := metainfo.MetaInfo{InfoBytes: infoBytes}

	path := filepath.Join(t.TempDir(), "pack.torrent")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := mi.Write(f); err != nil {
		t.Fatal(err)
	}
	return path
}

// offlineEngine returns an engine whose client never talks to the network
func offlineEngine(t *testing.T, saveDir string) *TorrentEngine {
	t.Helper()
	e := NewTorrentEngine(api.Options{SaveDir: saveDir, Sample: 10 * time.Millisecond}, nil)
	cfg := ClientConfig(e.opts)
	cfg.NoDHT = true
	cfg.DisableTrackers = true
	cfg.DisablePEX = true
	cfg.ListenPort = 0
	client, err := torrent.NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	e.client = client
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func openPack(t *testing.T, e *TorrentEngine, torrentPath string) *Transfer {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tr, err := e.Open(ctx, torrentPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := tr.AwaitMetadata(ctx); err != nil {
		t.Fatalf("AwaitMetadata: %v", err)
	}
	return tr.(*Transfer)
}

// ----------------------------------------------------------------------------
// Metadata
// ----------------------------------------------------------------------------

func TestTransferLayout(t *testing.T) {
	dataDir := t.TempDir()
	tr := openPack(t, offlineEngine(t, dataDir), writePack(t, dataDir))

	if !tr.HasMetadata() {
		t.Fatal("metadata missing after AwaitMetadata")
	}
	if tr.Name() != "Pack" || !tr.MultiFile() {
		t.Fatalf("name = %q multi = %v", tr.Name(), tr.MultiFile())
	}
	if tr.NumPieces() != 4 || tr.PieceLength() != testPieceLength {
		t.Fatalf("pieces = %d x %d", tr.NumPieces(), tr.PieceLength())
	}

	files, err := tr.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	want := []api.RawFile{
		{Path: "Pack/a.mkv", Length: 40 << 10, Offset: 0},
		{Path: "Pack/b.txt", Length: 10 << 10, Offset: 40 << 10},
	}
	if len(files) != len(want) {
		t.Fatalf("files = %+v", files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("file %d = %+v, want %+v", i, files[i], want[i])
		}
	}
}

// ----------------------------------------------------------------------------
// Piece plans
// ----------------------------------------------------------------------------

func TestTransferSubmitPlan(t *testing.T) {
	torrentPath := writePack(t, t.TempDir())
	tr := openPack(t, offlineEngine(t, t.TempDir()), torrentPath)

	if err := tr.SubmitPlan(api.PiecePlan{api.PriorityHigh}); err == nil {
		t.Fatal("short plan accepted")
	}

	plan := api.PiecePlan{api.PriorityHigh, api.PriorityNormal, api.PrioritySkip, api.PrioritySkip}
	if err := tr.SubmitPlan(plan); err != nil {
		t.Fatalf("SubmitPlan: %v", err)
	}
	for i, prio := range plan {
		if got := tr.t.Piece(i).State().Priority; got != mapPriority(prio) {
			t.Errorf("piece %d priority = %v, want %v", i, got, mapPriority(prio))
		}
	}

	st := tr.Status()
	if st.State != api.TransferDownloading || st.Progress != 0 {
		t.Fatalf("status = %+v", st)
	}
}

// ----------------------------------------------------------------------------
// Status and release
// ----------------------------------------------------------------------------

func TestTransferSeedsVerifiedData(t *testing.T) {
	dataDir := t.TempDir()
	tr := openPack(t, offlineEngine(t, dataDir), writePack(t, dataDir))

	tr.t.VerifyData()
	deadline := time.Now().Add(10 * time.Second)
	for {
		st := tr.Status()
		if st.State == api.TransferSeeding {
			if st.Progress != 1 {
				t.Fatalf("progress = %v at seeding", st.Progress)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never reached seeding, last status %+v", st)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestTransferRelease(t *testing.T) {
	dataDir := t.TempDir()
	tr := openPack(t, offlineEngine(t, dataDir), writePack(t, dataDir))

	if !tr.Valid() {
		t.Fatal("fresh transfer not valid")
	}
	if err := tr.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if tr.Valid() {
		t.Fatal("released transfer still valid")
	}
	if st := tr.Status(); st.State != api.TransferError {
		t.Fatalf("status after release = %+v", st)
	}
	if err := tr.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestTransferAwaitMetadataCancelled(t *testing.T) {
	e := offlineEngine(t, t.TempDir())
	tr, err := e.Open(context.Background(), testMagnet)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if tr.HasMetadata() {
		t.Fatal("magnet without peers has metadata")
	}
	if _, err := tr.Files(); err != api.ErrMetadataUnavailable {
		t.Fatalf("Files err = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tr.AwaitMetadata(ctx); err != api.ErrCancelled {
		t.Fatalf("AwaitMetadata err = %v, want ErrCancelled", err)
	}
}
