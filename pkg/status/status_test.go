package status

import (
	"bytes"
	"strings"
	"testing"

	"seedplay/pkg/api"
	"seedplay/pkg/api/apitest"
)

func primingLine() api.StatusLine {
	return api.StatusLine{
		Phase:    api.PhasePriming,
		Transfer: api.TransferStatus{Progress: 0.1234, Peers: 7, DownloadRate: 1536 << 10},
		Path:     "/data/movie.mkv",
		Size:     3 << 20,
	}
}

// ----------------------------------------------------------------------------
// Formatting
// ----------------------------------------------------------------------------

func TestLine(t *testing.T) {
	got := Line(primingLine())
	want := "Downloading: 12.34% | Peers: 7 | Speed: 1.5 MiB/s | Path: /data/movie.mkv | Size: 3.0 MiB"
	if got != want {
		t.Fatalf("Line =\n %q\nwant\n %q", got, want)
	}

	streaming := primingLine()
	streaming.Phase = api.PhaseStreaming
	streaming.Playback = api.PlaybackPaused
	if got := Line(streaming); !strings.HasSuffix(got, "| Player: paused") {
		t.Fatalf("streaming line = %q", got)
	}
}

func TestSizeAndRate(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Size(-1), "0 B"},
		{Size(0), "0 B"},
		{Size(1 << 30), "1.0 GiB"},
		{Rate(-5), "0 B/s"},
		{Rate(2048), "2.0 KiB/s"},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("got %q, want %q", tc.got, tc.want)
		}
	}
}

// ----------------------------------------------------------------------------
// Line reporter
// ----------------------------------------------------------------------------

func TestLineReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewLine(&buf, true)

	r.Status(primingLine())
	short := primingLine()
	short.Path = "/d/m.mkv"
	r.Status(short)
	r.Message("File has some data, attempting to stream...")
	r.Done(api.OutcomeCancelledByUser, "")

	out := buf.String()
	if strings.Count(out, "\r") != 2 {
		t.Fatalf("expected two rewritten lines: %q", out)
	}
	if !strings.Contains(out, "Size: 3.0 MiB"+strings.Repeat(" ", 7)+"\n") {
		t.Fatalf("shorter line was not padded: %q", out)
	}
	if !strings.Contains(out, "\nFile has some data, attempting to stream...\n") {
		t.Fatalf("message not on its own line: %q", out)
	}
	if !strings.HasSuffix(out, "Streaming stopped by user.\n") {
		t.Fatalf("outcome line missing: %q", out)
	}
}

func TestLineReporterDoneDetail(t *testing.T) {
	var buf bytes.Buffer
	r := NewLine(&buf, true)
	r.Done(api.OutcomeDownloadFailed, "torrent became invalid during download")
	want := "Download failed; torrent is no longer usable.\ndownload-failed: torrent became invalid during download\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

// ----------------------------------------------------------------------------
// Bar reporter and selection
// ----------------------------------------------------------------------------

func TestBarReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewBar(&buf, true)
	r.Status(primingLine())
	r.Message("Metadata fetched.")
	done := primingLine()
	done.Transfer.Progress = 1
	r.Status(done)
	r.Done(api.OutcomeCompleted, "")

	out := buf.String()
	if !strings.Contains(out, "Metadata fetched.\n") {
		t.Fatalf("message missing: %q", out)
	}
	if !strings.Contains(out, "Torrent fully downloaded. Exiting.") {
		t.Fatalf("outcome missing: %q", out)
	}
}

func TestBarReporterDrawsEveryStatus(t *testing.T) {
	var buf bytes.Buffer
	r := NewBar(&buf, true)
	r.Message("Metadata fetched.")
	r.Status(primingLine())
	first := buf.String()
	if !strings.Contains(first, " 12.3% 7 peers 1.5 MiB/s | /data/movie.mkv | 3.0 MiB on disk") {
		t.Fatalf("first status not drawn: %q", first)
	}

	r.Message("Starting player.")
	buf.Reset()
	streaming := primingLine()
	streaming.Phase = api.PhaseStreaming
	streaming.Playback = api.PlaybackPlaying
	r.Status(streaming)
	if out := buf.String(); !strings.Contains(out, "| /data/movie.mkv | player playing") {
		t.Fatalf("status after message not drawn: %q", out)
	}
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	tests := []struct {
		mode string
		want string
	}{
		{"", "*status.LineReporter"},
		{"auto", "*status.LineReporter"},
		{"BAR", "*status.BarReporter"},
		{"line", "*status.LineReporter"},
	}
	for _, tc := range tests {
		r, err := New(tc.mode, &buf, false)
		if err != nil {
			t.Fatalf("New(%q): %v", tc.mode, err)
		}
		if got := typeName(r); got != tc.want {
			t.Errorf("New(%q) = %s, want %s", tc.mode, got, tc.want)
		}
	}
	if _, err := New("fancy", &buf, false); err == nil {
		t.Fatal("unknown mode accepted")
	}
}

func typeName(r api.Reporter) string {
	switch r.(type) {
	case *LineReporter:
		return "*status.LineReporter"
	case *BarReporter:
		return "*status.BarReporter"
	default:
		return "other"
	}
}

// ----------------------------------------------------------------------------
// Fan-out
// ----------------------------------------------------------------------------

type observer struct {
	apitest.Reporter
	torrents []string
}

func (o *observer) Target(torrent string, target api.StreamTarget) {
	o.torrents = append(o.torrents, torrent)
}

func TestMulti(t *testing.T) {
	plain := &apitest.Reporter{}
	obs := &observer{}
	m := Multi{plain, obs}

	m.Status(primingLine())
	m.Message("hello %s", "world")
	m.Target("Pack", api.StreamTarget{})
	m.Done(api.OutcomeCompleted, "")

	for _, r := range []*apitest.Reporter{plain, &obs.Reporter} {
		if len(r.Lines) != 1 || len(r.Messages) != 1 || len(r.Outcomes) != 1 {
			t.Fatalf("reporter saw %d lines %d messages %d outcomes", len(r.Lines), len(r.Messages), len(r.Outcomes))
		}
		if r.Messages[0] != "hello world" {
			t.Fatalf("message = %q", r.Messages[0])
		}
	}
	if len(obs.torrents) != 1 || obs.torrents[0] != "Pack" {
		t.Fatalf("targets = %v", obs.torrents)
	}
}
