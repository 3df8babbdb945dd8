package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"seedplay/pkg/api"
)

// TestHelperProcess stands in for a media player. It is not a real test.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("SEEDPLAY_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("SEEDPLAY_HELPER_MODE") {
	case "fail":
		os.Exit(3)
	case "hang":
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func helperPlayer(mode string) *ExecPlayer {
	return &ExecPlayer{
		Program: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--", PathPlaceholder},
		Env:     []string{"SEEDPLAY_HELPER_PROCESS=1", "SEEDPLAY_HELPER_MODE=" + mode},
		Grace:   2 * time.Second,
	}
}

func waitDone(t *testing.T, pb api.Playback) {
	t.Helper()
	select {
	case <-pb.(*Process).Done():
	case <-time.After(10 * time.Second):
		t.Fatal("player did not exit")
	}
}

// ----------------------------------------------------------------------------
// Process lifecycle
// ----------------------------------------------------------------------------

func TestProcessCleanExit(t *testing.T) {
	pb, err := helperPlayer("ok").Load(context.Background(), "/tmp/movie.mkv")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if pb.State() != api.PlaybackIdle {
		t.Fatalf("state before Play = %v", pb.State())
	}
	if err := pb.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitDone(t, pb)
	if pb.State() != api.PlaybackEnded {
		t.Fatalf("state = %v, want ended", pb.State())
	}
	if err := pb.Stop(); err != nil {
		t.Fatalf("Stop after exit: %v", err)
	}
}

func TestProcessFailedExit(t *testing.T) {
	pb, err := helperPlayer("fail").Load(context.Background(), "/tmp/movie.mkv")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := pb.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitDone(t, pb)
	if pb.State() != api.PlaybackError {
		t.Fatalf("state = %v, want error", pb.State())
	}
}

func TestProcessStopInterrupts(t *testing.T) {
	pb, err := helperPlayer("hang").Load(context.Background(), "/tmp/movie.mkv")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := pb.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if pb.State() != api.PlaybackPlaying {
		t.Fatalf("state = %v, want playing", pb.State())
	}
	if err := pb.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if pb.State() != api.PlaybackEnded {
		t.Fatalf("state after Stop = %v, want ended", pb.State())
	}
	if err := pb.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
	if err := pb.Play(); !errors.Is(err, api.ErrPlaybackFailed) {
		t.Fatalf("Play after Stop = %v", err)
	}
}

func TestProcessStopBeforePlay(t *testing.T) {
	pb, err := helperPlayer("ok").Load(context.Background(), "/tmp/movie.mkv")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := pb.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if pb.State() != api.PlaybackEnded {
		t.Fatalf("state = %v", pb.State())
	}
}

func TestLoadErrors(t *testing.T) {
	p := &ExecPlayer{Program: "seedplay-no-such-player"}
	if _, err := p.Load(context.Background(), "x.mkv"); !errors.Is(err, api.ErrPlaybackFailed) {
		t.Fatalf("missing binary: err = %v", err)
	}
	if _, err := (&ExecPlayer{}).Load(context.Background(), "x.mkv"); !errors.Is(err, api.ErrPlaybackFailed) {
		t.Fatalf("empty program: err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := helperPlayer("ok").Load(ctx, "x.mkv"); !errors.Is(err, api.ErrCancelled) {
		t.Fatalf("cancelled: err = %v", err)
	}
}

// ----------------------------------------------------------------------------
// Arguments
// ----------------------------------------------------------------------------

func TestExpandArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"Appended", []string{"--fs"}, "--fs|/m.mkv"},
		{"Placeholder", []string{PathPlaceholder, "--fs"}, "/m.mkv|--fs"},
		{"Embedded", []string{"--file=" + PathPlaceholder}, "--file=/m.mkv"},
		{"Empty", nil, "/m.mkv"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := strings.Join(expandArgs(tc.args, "/m.mkv"), "|")
			if got != tc.want {
				t.Fatalf("expandArgs = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewUsesPresets(t *testing.T) {
	p := New("/usr/bin/mpv", nil, nil)
	if !p.IPC {
		t.Error("mpv should use IPC")
	}
	if len(p.Args) != len(Presets["mpv"]) {
		t.Errorf("args = %v", p.Args)
	}

	p = New("VLC.exe", nil, nil)
	if p.IPC {
		t.Error("vlc should not use IPC")
	}
	if len(p.Args) != len(Presets["vlc"]) {
		t.Errorf("args = %v", p.Args)
	}

	p = New("mpv", []string{"--no-video"}, nil)
	if len(p.Args) != 1 || p.Args[0] != "--no-video" {
		t.Errorf("explicit args replaced: %v", p.Args)
	}
}

// ----------------------------------------------------------------------------
// mpv IPC
// ----------------------------------------------------------------------------

func fakeMPV(t *testing.T, paused bool) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "mpv.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveMPV(conn, paused)
		}
	}()
	return sock
}

// serveMPV answers get_property requests until the client hangs up. Silent
// connections never get a reply.
func serveMPV(conn net.Conn, paused bool) {
	defer conn.Close()
	dec := json.NewDecoder(conn)
	for {
		var req struct {
			Command   []any `json:"command"`
			RequestID int   `json:"request_id"`
		}
		if err := dec.Decode(&req); err != nil {
			return
		}
		if len(req.Command) != 2 || req.Command[0] != "get_property" || req.Command[1] != "pause" {
			fmt.Fprintf(conn, `{"error":"invalid parameter","request_id":%d}`+"\n", req.RequestID)
			continue
		}
		fmt.Fprintln(conn, `{"event":"playback-restart"}`)
		fmt.Fprintf(conn, `{"data":%t,"error":"success","request_id":%d}`+"\n", paused, req.RequestID)
	}
}

// silentMPV accepts connections but never answers.
func silentMPV(t *testing.T) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "mpv.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	return sock
}

func TestPauseQuery(t *testing.T) {
	for _, want := range []bool{true, false} {
		q := &pauseQuery{sock: fakeMPV(t, want)}
		for i := 0; i < 2; i++ {
			paused, ok := q.Paused(time.Second)
			if !ok {
				t.Fatalf("query %d failed", i)
			}
			if paused != want {
				t.Fatalf("paused = %v, want %v", paused, want)
			}
		}
	}
}

func TestPauseQueryTimesOut(t *testing.T) {
	q := &pauseQuery{sock: silentMPV(t)}
	start := time.Now()
	if _, ok := q.Paused(100 * time.Millisecond); ok {
		t.Fatal("query succeeded without a reply")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("query took %s, want it bounded by the timeout", elapsed)
	}
	// the first request is still unanswered, so no second one is sent
	start = time.Now()
	if _, ok := q.Paused(time.Second); ok {
		t.Fatal("second query succeeded while the first is pending")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("second query waited %s instead of returning at once", elapsed)
	}
}

func TestPauseQueryUnreachable(t *testing.T) {
	q := &pauseQuery{sock: filepath.Join(t.TempDir(), "none.sock")}
	if _, ok := q.Paused(time.Second); ok {
		t.Fatal("query succeeded without a socket")
	}
	if !q.inFlight.CompareAndSwap(false, true) {
		t.Fatal("failed query left the in-flight flag set")
	}
}
