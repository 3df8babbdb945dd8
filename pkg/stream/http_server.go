// =============================================================================
// pkg/stream/http_server.go - Local HTTP status server
// =============================================================================
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"

	"seedplay/pkg/api"
)

// Server exposes the current session as JSON. It only reads what the session
// reports and never touches the transfer.
type Server struct {
	port int
	log  *slog.Logger

	mu      sync.RWMutex
	torrent string
	target  *api.StreamTarget
	line    *api.StatusLine
	outcome *api.Outcome
	detail  string
	updated time.Time

	server   *http.Server
	listener net.Listener
}

var (
	_ api.Reporter       = (*Server)(nil)
	_ api.TargetObserver = (*Server)(nil)
)

// NewServer creates a new status server
func NewServer(port int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{port: port, log: log}
}

// Handler returns the routes served by the server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/test", s.handleTest)
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("status server bind %s: %w", addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status server failed", slog.Any("err", err))
		}
	}()
	s.log.Info("status server ready", slog.String("url", s.URL()))
	return nil
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// URL returns the base URL of the running server
func (s *Server) URL() string {
	if s.listener != nil {
		return "http://" + s.listener.Addr().String()
	}
	return fmt.Sprintf("http://127.0.0.1:%d", s.port)
}

// ----------------------------------------------------------------------------
// api.Reporter
// ----------------------------------------------------------------------------

func (s *Server) Status(line api.StatusLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.line = &line
	s.updated = time.Now()
}

func (s *Server) Message(string, ...any) {}

func (s *Server) Done(outcome api.Outcome, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = &outcome
	s.detail = detail
	s.updated = time.Now()
}

func (s *Server) Target(torrent string, target api.StreamTarget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.torrent = torrent
	s.target = &target
}

// ----------------------------------------------------------------------------
// Handlers
// ----------------------------------------------------------------------------

// InfoResponse describes the selected file
type InfoResponse struct {
	Torrent       string `json:"torrent"`
	File          string `json:"file"`
	Index         int    `json:"index"`
	Size          uint64 `json:"size"`
	SizeFormatted string `json:"size_formatted"`
	StartPiece    int    `json:"start_piece"`
	EndPiece      int    `json:"end_piece"`
	PieceLength   uint64 `json:"piece_length"`
}

// StatusResponse is the latest poll of the session
type StatusResponse struct {
	Phase        string  `json:"phase"`
	Progress     float64 `json:"progress"`
	Peers        int     `json:"peers"`
	DownloadRate float64 `json:"download_rate"`
	RateFormat   string  `json:"download_rate_formatted"`
	Transfer     string  `json:"transfer"`
	Playback     string  `json:"playback"`
	OnDisk       int64   `json:"on_disk"`
	Error        string  `json:"error,omitempty"`
	Outcome      string  `json:"outcome,omitempty"`
	Detail       string  `json:"detail,omitempty"`
	Updated      string  `json:"updated,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"endpoints": map[string]string{
			"info":   "/info",
			"status": "/status",
			"test":   "/test",
		},
	})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	s.mu.RLock()
	defer s.mu.RUnlock()
	fmt.Fprintln(w, "seedplay status server is working!")
	if s.target != nil {
		fmt.Fprintf(w, "File: %s\nSize: %s\n", s.target.File.Path, humanize.IBytes(s.target.File.Size))
	} else {
		fmt.Fprintln(w, "No file selected")
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.target == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no file selected"})
		return
	}
	t := s.target
	writeJSON(w, http.StatusOK, InfoResponse{
		Torrent:       s.torrent,
		File:          strings.ReplaceAll(t.File.Path, `\`, `/`),
		Index:         t.File.Index,
		Size:          t.File.Size,
		SizeFormatted: humanize.IBytes(t.File.Size),
		StartPiece:    t.StartPiece,
		EndPiece:      t.EndPiece,
		PieceLength:   t.PieceLength,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.line == nil && s.outcome == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no status yet"})
		return
	}
	var resp StatusResponse
	if l := s.line; l != nil {
		resp = StatusResponse{
			Phase:        l.Phase.String(),
			Progress:     l.Transfer.Progress,
			Peers:        l.Transfer.Peers,
			DownloadRate: l.Transfer.DownloadRate,
			RateFormat:   humanize.IBytes(uint64(max(l.Transfer.DownloadRate, 0))) + "/s",
			Transfer:     l.Transfer.State.String(),
			Playback:     l.Playback.String(),
			OnDisk:       l.Size,
			Error:        l.Transfer.Err,
		}
	}
	if s.outcome != nil {
		resp.Phase = api.PhaseTerminated.String()
		resp.Outcome = s.outcome.String()
		resp.Detail = s.detail
	}
	if !s.updated.IsZero() {
		resp.Updated = s.updated.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
