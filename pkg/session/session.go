// =============================================================================
// pkg/session/session.go - One streaming session, source to cleanup
// =============================================================================
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"seedplay/pkg/api"
	"seedplay/pkg/catalog"
	"seedplay/pkg/plan"
)

// DefaultPollInterval paces the readiness and streaming loops
const DefaultPollInterval = time.Second

// Settings tunes a session
type Settings struct {
	SaveDir      string
	PollInterval time.Duration
	ReadyTimeout time.Duration // 0 waits forever
	FileIndex    int           // -1 prompts or auto-selects
}

// Session owns the transfer, the piece plan and the playback of one source.
// Nothing outside the session mutates priorities once the plan is submitted.
type Session struct {
	ID       string
	Source   string
	Engine   api.Engine
	Player   api.Player
	Storage  api.Storage
	Reporter api.Reporter
	Selector *catalog.Selector
	Clock    Clock
	Settings Settings
	Log      *slog.Logger

	supervisor *Supervisor
}

// New creates a session for src with a fresh ID and the real clock
func New(src string, eng api.Engine, player api.Player, storage api.Storage,
	reporter api.Reporter, selector *catalog.Selector, settings Settings, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}
	id := uuid.NewString()
	return &Session{
		ID:       id,
		Source:   src,
		Engine:   eng,
		Player:   player,
		Storage:  storage,
		Reporter: reporter,
		Selector: selector,
		Clock:    RealClock(),
		Settings: settings,
		Log:      log.With(slog.String("session", id)),
	}
}

// Phase reports the supervisor state, or Priming before it started
func (s *Session) Phase() api.Phase {
	if s.supervisor == nil {
		return api.PhasePriming
	}
	return s.supervisor.Phase()
}

// Run streams the source and returns the terminal outcome. Every outcome is
// reported exactly once through the Reporter.
func (s *Session) Run(ctx context.Context) api.Outcome {
	log := s.logger()

	tr, err := s.Engine.Open(ctx, s.Source)
	if err != nil {
		return s.abort(nil, err)
	}

	s.Reporter.Message("Fetching torrent metadata...")
	if err := tr.AwaitMetadata(ctx); err != nil {
		return s.abort(tr, err)
	}
	s.Reporter.Message("Metadata fetched.")
	log = log.With(slog.String("torrent", tr.Name()))

	files, err := catalog.Build(tr)
	if err != nil {
		return s.abort(tr, fmt.Errorf("read file list: %w", err))
	}
	s.Reporter.Message("\nFiles in torrent:\n%s", catalog.Listing(files))

	file, err := s.choose(ctx, files)
	if err != nil {
		return s.abort(tr, err)
	}

	piecePlan, target, err := plan.Build(file, tr.NumPieces(), tr.PieceLength())
	if err != nil {
		return s.abort(tr, fmt.Errorf("plan pieces for %s: %v: %w", file.Path, err, api.ErrDownloadFailed))
	}
	if err := tr.SubmitPlan(piecePlan); err != nil {
		return s.abort(tr, fmt.Errorf("submit piece plan: %v: %w", err, api.ErrDownloadFailed))
	}
	skip, normal, high := piecePlan.Counts()
	log.Info("piece plan submitted",
		slog.String("file", file.Path),
		slog.Int("startPiece", target.StartPiece),
		slog.Int("endPiece", target.EndPiece),
		slog.Int("skip", skip),
		slog.Int("normal", normal),
		slog.Int("high", high),
	)

	layout := Layout{SaveDir: s.Settings.SaveDir, RootName: tr.Name(), MultiFile: tr.MultiFile()}
	artifact := layout.ArtifactPath(file)
	if err := s.Storage.MkdirAll(filepath.Dir(artifact)); err != nil {
		log.Warn("create artifact directory failed", slog.String("error", err.Error()))
	}
	if obs, ok := s.Reporter.(api.TargetObserver); ok {
		obs.Target(tr.Name(), target)
	}
	s.Reporter.Message("\nStarting download for: %s", file.Path)
	s.Reporter.Message("Streaming will begin shortly. File path: %s", artifact)

	s.supervisor = &Supervisor{
		Transfer: tr,
		Player:   s.Player,
		Readiness: &Readiness{
			Transfer:    tr,
			Storage:     s.Storage,
			Reporter:    s.Reporter,
			Clock:       s.Clock,
			Interval:    s.Settings.PollInterval,
			Timeout:     s.Settings.ReadyTimeout,
			Path:        artifact,
			PieceLength: target.PieceLength,
			Log:         log,
		},
		Cleaner:  &Cleaner{Storage: s.Storage, Reporter: s.Reporter, Log: log},
		Storage:  s.Storage,
		Reporter: s.Reporter,
		Clock:    s.Clock,
		Interval: s.Settings.PollInterval,
		Target:   target,
		Layout:   layout,
		Log:      log,
	}
	return s.supervisor.Run(ctx)
}

func (s *Session) choose(ctx context.Context, files []api.FileEntry) (api.FileEntry, error) {
	candidates := catalog.Candidates(files)
	if len(candidates) == 0 {
		return api.FileEntry{}, api.ErrNoPlayableFile
	}
	if s.Settings.FileIndex >= 0 {
		return catalog.ByIndex(candidates, s.Settings.FileIndex)
	}
	return s.Selector.Select(ctx, candidates)
}

// abort ends a session that never reached the supervisor. No piece plan was
// submitted, so there is nothing on disk to clean.
func (s *Session) abort(tr api.Transfer, err error) api.Outcome {
	outcome := api.OutcomeOf(err)
	if errors.Is(err, api.ErrMetadataUnavailable) {
		outcome = api.OutcomeDownloadFailed
	}
	log := s.logger().With(slog.String("outcome", outcome.String()))
	if outcome != api.OutcomeCancelledByUser && outcome != api.OutcomeNoPlayableFile {
		log.Error("session aborted", slog.String("error", err.Error()))
	}
	if tr != nil {
		if rerr := tr.Release(); rerr != nil {
			log.Warn("release transfer failed", slog.String("error", rerr.Error()))
		}
	}
	detail := ""
	if outcome != api.OutcomeNoPlayableFile && outcome != api.OutcomeCancelledByUser {
		detail = err.Error()
	}
	s.Reporter.Done(outcome, detail)
	return outcome
}

func (s *Session) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
