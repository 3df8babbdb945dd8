// =============================================================================
// pkg/engine/torrent_engine.go - anacrolix/torrent download engine
// =============================================================================
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"golang.org/x/time/rate"

	"seedplay/pkg/api"
	"seedplay/pkg/utils"
)

const minRateBurst = 1 << 20

// SourceKind tells magnet links and .torrent files apart
type SourceKind int

const (
	SourceMagnet SourceKind = iota
	SourceTorrentFile
)

// Source is a validated torrent identifier
type Source struct {
	Kind   SourceKind
	URI    string
	Magnet metainfo.Magnet
	Meta   *metainfo.MetaInfo
}

// ParseSource validates src as a magnet link or a path to a .torrent file.
// Nothing is contacted; a malformed identifier fails with ErrInvalidInput.
func ParseSource(src string) (Source, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return Source{}, fmt.Errorf("empty magnet link: %w", api.ErrInvalidInput)
	}

	if strings.HasPrefix(strings.ToLower(src), "magnet:") {
		m, err := metainfo.ParseMagnetUri(src)
		if err != nil {
			return Source{}, fmt.Errorf("parse magnet link: %v: %w", err, api.ErrInvalidInput)
		}
		return Source{Kind: SourceMagnet, URI: src, Magnet: m}, nil
	}

	if utils.FileExists(src) {
		mi, err := metainfo.LoadFromFile(src)
		if err != nil {
			return Source{}, fmt.Errorf("load torrent file %s: %v: %w", src, err, api.ErrInvalidInput)
		}
		if len(mi.InfoBytes) == 0 {
			return Source{}, fmt.Errorf("torrent file %s has no info dictionary: %w", src, api.ErrInvalidInput)
		}
		info, err := mi.UnmarshalInfo()
		if err != nil {
			return Source{}, fmt.Errorf("decode info of %s: %v: %w", src, err, api.ErrInvalidInput)
		}
		if info.NumPieces() == 0 {
			return Source{}, fmt.Errorf("torrent file %s lists no pieces: %w", src, api.ErrInvalidInput)
		}
		return Source{Kind: SourceTorrentFile, URI: src, Meta: mi}, nil
	}

	return Source{}, fmt.Errorf("%q is neither a magnet link nor a torrent file: %w", src, api.ErrInvalidInput)
}

// TorrentEngine implements api.Engine over an anacrolix client. The client is
// created on the first successful Open.
type TorrentEngine struct {
	opts api.Options
	log  *slog.Logger

	mu     sync.Mutex
	client *torrent.Client
}

var _ api.Engine = (*TorrentEngine)(nil)

// NewTorrentEngine creates a new torrent engine instance
func NewTorrentEngine(opts api.Options, log *slog.Logger) *TorrentEngine {
	if log == nil {
		log = slog.Default()
	}
	return &TorrentEngine{opts: opts, log: log}
}

// ClientConfig builds the anacrolix client configuration for opts
func ClientConfig(opts api.Options) *torrent.ClientConfig {
	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = opts.SaveDir
	cfg.Seed = opts.Seed
	cfg.DisablePEX = false      // Enable PEX for peer discovery
	cfg.NoDHT = false           // Enable DHT for peer discovery
	cfg.DisableTrackers = false // Enable trackers

	if opts.ListenPort > 0 {
		cfg.ListenPort = opts.ListenPort
	}
	if opts.MaxPeers > 0 {
		cfg.EstablishedConnsPerTorrent = opts.MaxPeers
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < minRateBurst {
			burst = minRateBurst
		}
		cfg.DownloadRateLimiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return cfg
}

// Open validates src and adds it to the client
func (e *TorrentEngine) Open(ctx context.Context, src string) (api.Transfer, error) {
	source, err := ParseSource(src)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, api.ErrCancelled
	}

	client, err := e.ensureClient()
	if err != nil {
		return nil, err
	}

	var t *torrent.Torrent
	switch source.Kind {
	case SourceTorrentFile:
		t, err = client.AddTorrent(source.Meta)
	default:
		t, err = client.AddMagnet(source.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add torrent: %v: %w", err, api.ErrDownloadFailed)
	}

	e.log.Info("torrent added",
		slog.String("infoHash", t.InfoHash().HexString()),
		slog.String("saveDir", e.opts.SaveDir),
	)
	return newTransfer(t, e.opts.Sample), nil
}

// Close shuts the client down
func (e *TorrentEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	return nil
}

func (e *TorrentEngine) ensureClient() (*torrent.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client, nil
	}
	client, err := torrent.NewClient(ClientConfig(e.opts))
	if err != nil {
		return nil, fmt.Errorf("failed to create torrent client: %v: %w", err, api.ErrDownloadFailed)
	}
	e.client = client
	return client, nil
}
