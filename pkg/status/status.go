// =============================================================================
// pkg/status/status.go - Terminal progress reporting
// =============================================================================
package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	humanize "github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"seedplay/pkg/api"
)

// Progress display modes
const (
	ModeAuto = "auto"
	ModeBar  = "bar"
	ModeLine = "line"
)

// New picks a reporter for mode. Auto uses the bar on a terminal and plain
// lines everywhere else.
func New(mode string, out io.Writer, noColor bool) (api.Reporter, error) {
	switch strings.ToLower(mode) {
	case "", ModeAuto:
		if IsTerminal(out) {
			return NewBar(out, noColor), nil
		}
		return NewLine(out, true), nil
	case ModeBar:
		return NewBar(out, noColor), nil
	case ModeLine:
		return NewLine(out, noColor), nil
	default:
		return nil, fmt.Errorf("unknown progress mode %q (auto|bar|line)", mode)
	}
}

// IsTerminal reports whether out is an interactive terminal
func IsTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type palette struct {
	label   *color.Color
	good    *color.Color
	warn    *color.Color
	bad     *color.Color
	neutral *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		label:   color.New(color.FgCyan),
		good:    color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed),
		neutral: color.New(color.FgHiWhite),
	}
	if noColor {
		for _, c := range []*color.Color{p.label, p.good, p.warn, p.bad, p.neutral} {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) outcome(o api.Outcome) *color.Color {
	switch o {
	case api.OutcomeCompleted:
		return p.good
	case api.OutcomeCancelledByUser:
		return p.warn
	default:
		return p.bad
	}
}

// Rate formats a bytes/sec value
func Rate(bps float64) string {
	if bps < 0 {
		bps = 0
	}
	return humanize.IBytes(uint64(bps)) + "/s"
}

// Size formats an on-disk size, with -1 meaning missing
func Size(n int64) string {
	if n < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// Line renders one status line without color
func Line(l api.StatusLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Downloading: %.2f%% | Peers: %d | Speed: %s",
		l.Transfer.Progress*100, l.Transfer.Peers, Rate(l.Transfer.DownloadRate))
	if l.Phase == api.PhasePriming {
		fmt.Fprintf(&b, " | Path: %s | Size: %s", l.Path, Size(l.Size))
	} else {
		fmt.Fprintf(&b, " | Player: %s", l.Playback)
	}
	return b.String()
}

// LineReporter rewrites a single terminal line per poll
type LineReporter struct {
	out     io.Writer
	colors  palette
	mu      sync.Mutex
	pending bool // a status line without a trailing newline was written
	width   int
}

var _ api.Reporter = (*LineReporter)(nil)

func NewLine(out io.Writer, noColor bool) *LineReporter {
	return &LineReporter{out: out, colors: newPalette(noColor)}
}

func (r *LineReporter) Status(l api.StatusLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	text := Line(l)
	pad := ""
	if n := r.width - len(text); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	r.width = len(text)
	fmt.Fprintf(r.out, "\r%s%s", text, pad)
	r.pending = true
}

func (r *LineReporter) Message(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakLine()
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *LineReporter) Done(outcome api.Outcome, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakLine()
	writeDone(r.out, r.colors, outcome, detail)
}

func (r *LineReporter) breakLine() {
	if r.pending {
		fmt.Fprintln(r.out)
		r.pending = false
		r.width = 0
	}
}

func writeDone(out io.Writer, p palette, outcome api.Outcome, detail string) {
	c := p.outcome(outcome)
	fmt.Fprintln(out, c.Sprint(outcome.Explain()))
	if detail != "" {
		fmt.Fprintf(out, "%s %s\n", p.label.Sprint(outcome.String()+":"), detail)
	}
}
