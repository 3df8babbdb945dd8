// =============================================================================
// pkg/api/apitest/apitest.go - Scripted fakes for the engine, player and storage
// =============================================================================
package apitest

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"seedplay/pkg/api"
)

// Step is one scripted poll of a Transfer
type Step struct {
	Status  api.TransferStatus
	Invalid bool
	Do      func() // runs when the step becomes current
}

// Transfer is a scripted api.Transfer. Each Status call moves to the next
// step; the last step repeats.
type Transfer struct {
	mu sync.Mutex

	Meta     bool
	RawFiles []api.RawFile
	Title    string
	Multi    bool
	Pieces   int
	PieceLen uint64
	Steps    []Step
	PlanErr  error

	cur      int
	polled   bool
	Plans    []api.PiecePlan
	Released int
}

var _ api.Transfer = (*Transfer)(nil)

func (t *Transfer) AwaitMetadata(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.Meta {
		return api.ErrMetadataUnavailable
	}
	return nil
}

func (t *Transfer) HasMetadata() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Meta
}

func (t *Transfer) Files() ([]api.RawFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.Meta {
		return nil, api.ErrMetadataUnavailable
	}
	return append([]api.RawFile(nil), t.RawFiles...), nil
}

func (t *Transfer) Name() string        { return t.Title }
func (t *Transfer) MultiFile() bool     { return t.Multi }
func (t *Transfer) NumPieces() int      { return t.Pieces }
func (t *Transfer) PieceLength() uint64 { return t.PieceLen }

func (t *Transfer) SubmitPlan(plan api.PiecePlan) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.PlanErr != nil {
		return t.PlanErr
	}
	t.Plans = append(t.Plans, append(api.PiecePlan(nil), plan...))
	return nil
}

func (t *Transfer) Status() api.TransferStatus {
	t.mu.Lock()
	if len(t.Steps) == 0 {
		t.mu.Unlock()
		return api.TransferStatus{}
	}
	first := !t.polled
	if t.polled && t.cur < len(t.Steps)-1 {
		t.cur++
		first = true
	}
	t.polled = true
	step := t.Steps[t.cur]
	t.mu.Unlock()

	if first && step.Do != nil {
		step.Do()
	}
	return step.Status
}

func (t *Transfer) Valid() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.Steps) == 0 {
		return true
	}
	return !t.Steps[t.cur].Invalid
}

func (t *Transfer) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Released++
	return nil
}

// Polls returns the index of the current step
func (t *Transfer) Polls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}

// Player is a scripted api.Player
type Player struct {
	mu sync.Mutex

	States  []api.PlaybackState
	LoadErr error
	PlayErr error

	Loaded   []string
	Playback *Playback
}

var _ api.Player = (*Player)(nil)

func (p *Player) Load(ctx context.Context, path string) (api.Playback, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Loaded = append(p.Loaded, path)
	if p.LoadErr != nil {
		return nil, p.LoadErr
	}
	p.Playback = &Playback{states: p.States, playErr: p.PlayErr}
	return p.Playback, nil
}

// Playback returns scripted states after Play; each State call moves to the
// next state and the last one repeats.
type Playback struct {
	mu      sync.Mutex
	states  []api.PlaybackState
	playErr error
	cur     int
	polled  bool

	Plays   int
	Stops   int
	stopped bool
}

func (p *Playback) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Plays++
	return p.playErr
}

func (p *Playback) State() api.PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.Plays == 0 {
		if p.stopped {
			return api.PlaybackEnded
		}
		return api.PlaybackIdle
	}
	if len(p.states) == 0 {
		return api.PlaybackPlaying
	}
	if p.polled && p.cur < len(p.states)-1 {
		p.cur++
	}
	p.polled = true
	return p.states[p.cur]
}

func (p *Playback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Stops++
	p.stopped = true
	return nil
}

// Storage is an in-memory api.Storage keyed by slash paths
type Storage struct {
	mu sync.Mutex

	Files     map[string]int64
	Dirs      map[string]bool
	RemoveErr error

	Removed     []string
	RemovedDirs []string
}

var _ api.Storage = (*Storage)(nil)

// NewStorage returns an empty storage
func NewStorage() *Storage {
	return &Storage{Files: map[string]int64{}, Dirs: map[string]bool{}}
}

// Put creates or resizes a file and its parent directories
func (s *Storage) Put(name string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = path.Clean(name)
	s.Files[name] = size
	for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
		s.Dirs[dir] = true
	}
}

func (s *Storage) Stat(name string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	size, ok := s.Files[path.Clean(name)]
	return size, ok, nil
}

func (s *Storage) MkdirAll(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for d := path.Clean(dir); d != "." && d != "/"; d = path.Dir(d) {
		s.Dirs[d] = true
	}
	return nil
}

func (s *Storage) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RemoveErr != nil {
		return s.RemoveErr
	}
	name = path.Clean(name)
	if _, ok := s.Files[name]; !ok {
		return fmt.Errorf("remove %s: no such file", name)
	}
	delete(s.Files, name)
	s.Removed = append(s.Removed, name)
	return nil
}

func (s *Storage) RemoveEmptyDir(dir string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir = path.Clean(dir)
	if !s.Dirs[dir] {
		return false, nil
	}
	prefix := dir + "/"
	for f := range s.Files {
		if strings.HasPrefix(f, prefix) {
			return false, nil
		}
	}
	for d := range s.Dirs {
		if strings.HasPrefix(d, prefix) {
			return false, nil
		}
	}
	delete(s.Dirs, dir)
	s.RemovedDirs = append(s.RemovedDirs, dir)
	return true, nil
}

// Reporter records everything reported to it
type Reporter struct {
	mu sync.Mutex

	Lines    []api.StatusLine
	Messages []string
	Outcomes []api.Outcome
	Details  []string
}

var _ api.Reporter = (*Reporter)(nil)

func (r *Reporter) Status(line api.StatusLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lines = append(r.Lines, line)
}

func (r *Reporter) Message(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

func (r *Reporter) Done(outcome api.Outcome, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes = append(r.Outcomes, outcome)
	r.Details = append(r.Details, detail)
}

// Engine hands out a single scripted Transfer
type Engine struct {
	Transfer *Transfer
	OpenErr  error

	Opened []string
	Closed int
}

var _ api.Engine = (*Engine)(nil)

func (e *Engine) Open(ctx context.Context, src string) (api.Transfer, error) {
	e.Opened = append(e.Opened, src)
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	return e.Transfer, nil
}

func (e *Engine) Close() error {
	e.Closed++
	return nil
}
