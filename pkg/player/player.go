// =============================================================================
// pkg/player/player.go - External media player process
// =============================================================================
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"seedplay/pkg/api"
)

// PathPlaceholder in Args is replaced by the media path. Without it the path
// is appended.
const PathPlaceholder = "{path}"

const (
	defaultGrace   = 3 * time.Second
	ipcQueryWindow = 200 * time.Millisecond
)

// Presets holds the arguments used for known players when none are given
var Presets = map[string][]string{
	"mpv": {"--force-window=immediate", PathPlaceholder},
	"vlc": {"--play-and-exit", PathPlaceholder},
}

// ExecPlayer launches Program once per Load
type ExecPlayer struct {
	Program string
	Args    []string
	Env     []string      // added to the parent environment
	IPC     bool          // query pause state over mpv's JSON IPC
	Grace   time.Duration // time between interrupt and kill on Stop
	Log     *slog.Logger
}

var _ api.Player = (*ExecPlayer)(nil)

// New returns a player for program, falling back to the preset arguments
// when args is empty.
func New(program string, args []string, log *slog.Logger) *ExecPlayer {
	if len(args) == 0 {
		args = Presets[baseName(program)]
	}
	return &ExecPlayer{
		Program: program,
		Args:    args,
		IPC:     isMPV(program),
		Grace:   defaultGrace,
		Log:     log,
	}
}

// Load resolves the player binary and prepares it for path. Nothing runs
// until Play.
func (p *ExecPlayer) Load(ctx context.Context, path string) (api.Playback, error) {
	if err := ctx.Err(); err != nil {
		return nil, api.ErrCancelled
	}
	if p.Program == "" {
		return nil, fmt.Errorf("no player configured: %w", api.ErrPlaybackFailed)
	}
	bin, err := exec.LookPath(p.Program)
	if err != nil {
		return nil, fmt.Errorf("player %q not found: %v: %w", p.Program, err, api.ErrPlaybackFailed)
	}

	args := expandArgs(p.Args, path)
	var sock string
	if p.IPC && isMPV(p.Program) {
		sock = filepath.Join(os.TempDir(), "seedplay-mpv-"+uuid.NewString()+".sock")
		args = append([]string{"--input-ipc-server=" + sock}, args...)
	}

	cmd := exec.Command(bin, args...)
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}

	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	grace := p.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	proc := &Process{
		cmd:   cmd,
		ipc:   sock,
		grace: grace,
		log:   log.With(slog.String("player", baseName(p.Program))),
		done:  make(chan struct{}),
	}
	if sock != "" {
		proc.pause = &pauseQuery{sock: sock}
	}
	return proc, nil
}

// Process is one player run
type Process struct {
	cmd   *exec.Cmd
	ipc   string
	pause *pauseQuery
	grace time.Duration
	log   *slog.Logger

	mu       sync.Mutex
	state    api.PlaybackState
	stopped  bool
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

var _ api.Playback = (*Process)(nil)

// Play starts the player process
func (p *Process) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return fmt.Errorf("player already started: %w", api.ErrPlaybackFailed)
	}
	if err := p.cmd.Start(); err != nil {
		p.state = api.PlaybackError
		return fmt.Errorf("start %s: %v: %w", p.cmd.Path, err, api.ErrPlaybackFailed)
	}
	p.started = true
	p.state = api.PlaybackPlaying
	p.log.Info("player started", slog.Int("pid", p.cmd.Process.Pid))
	go p.wait()
	return nil
}

func (p *Process) wait() {
	err := p.cmd.Wait()

	p.mu.Lock()
	switch {
	case err == nil || p.stopped:
		p.state = api.PlaybackEnded
	default:
		p.state = api.PlaybackError
	}
	state := p.state
	p.mu.Unlock()

	if p.ipc != "" {
		_ = os.Remove(p.ipc)
	}
	p.log.Info("player exited", slog.String("state", state.String()), slog.Any("err", err))
	close(p.done)
}

// State reports the process state, refined to Paused through mpv IPC
func (p *Process) State() api.PlaybackState {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	if state == api.PlaybackPlaying && p.pause != nil {
		if paused, ok := p.pause.Paused(ipcQueryWindow); ok && paused {
			return api.PlaybackPaused
		}
	}
	return state
}

// Stop interrupts the player and kills it if it is still running after the
// grace period. Later calls are no-ops.
func (p *Process) Stop() error {
	var err error
	p.stopOnce.Do(func() { err = p.stop() })
	return err
}

func (p *Process) stop() error {
	p.mu.Lock()
	p.stopped = true
	if !p.started {
		if p.state == api.PlaybackIdle {
			p.state = api.PlaybackEnded
		}
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
	}

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		return p.kill()
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(p.grace):
		p.log.Warn("player ignored interrupt, killing")
		return p.kill()
	}
}

func (p *Process) kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill player: %w", err)
	}
	<-p.done
	return nil
}

// Done is closed once the process has exited
func (p *Process) Done() <-chan struct{} {
	return p.done
}

func expandArgs(args []string, path string) []string {
	out := make([]string, 0, len(args)+1)
	found := false
	for _, a := range args {
		if strings.Contains(a, PathPlaceholder) {
			found = true
			a = strings.ReplaceAll(a, PathPlaceholder, path)
		}
		out = append(out, a)
	}
	if !found {
		out = append(out, path)
	}
	return out
}

func baseName(program string) string {
	name := strings.ToLower(filepath.Base(program))
	return strings.TrimSuffix(name, ".exe")
}

func isMPV(program string) bool {
	return baseName(program) == "mpv"
}
