// =============================================================================
// pkg/status/bar.go - Progress bar reporter
// =============================================================================
package status

import (
	"fmt"
	"io"
	"sync"

	progressbar "github.com/schollz/progressbar/v3"

	"seedplay/pkg/api"
)

const barScale = 1000

// BarReporter draws download progress as a bar
type BarReporter struct {
	out    io.Writer
	colors palette
	noTint bool

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

var _ api.Reporter = (*BarReporter)(nil)

func NewBar(out io.Writer, noColor bool) *BarReporter {
	return &BarReporter{out: out, colors: newPalette(noColor), noTint: noColor}
}

func (r *BarReporter) newBar() *progressbar.ProgressBar {
	theme := progressbar.Theme{
		Saucer:        "[green]=[reset]",
		SaucerHead:    "[green]>[reset]",
		SaucerPadding: " ",
		BarStart:      "[",
		BarEnd:        "]",
	}
	if r.noTint {
		theme.Saucer, theme.SaucerHead = "=", ">"
	}
	return progressbar.NewOptions64(barScale,
		progressbar.OptionSetWriter(r.out),
		progressbar.OptionEnableColorCodes(!r.noTint),
		progressbar.OptionSetTheme(theme),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (r *BarReporter) Status(l api.StatusLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar == nil {
		r.bar = r.newBar()
	}
	r.bar.Describe(describe(l))
	_ = r.bar.Set64(int64(l.Transfer.Progress * barScale))
}

func describe(l api.StatusLine) string {
	tail := fmt.Sprintf("%s on disk", Size(l.Size))
	if l.Phase != api.PhasePriming {
		tail = "player " + l.Playback.String()
	}
	return fmt.Sprintf("%5.1f%% %d peers %s | %s | %s",
		l.Transfer.Progress*100, l.Transfer.Peers, Rate(l.Transfer.DownloadRate), l.Path, tail)
}

func (r *BarReporter) Message(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.release()
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *BarReporter) Done(outcome api.Outcome, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil && outcome == api.OutcomeCompleted {
		_ = r.bar.Finish()
		fmt.Fprintln(r.out)
		r.bar = nil
	}
	r.release()
	writeDone(r.out, r.colors, outcome, detail)
}

// release clears the bar so text can be printed; the next Status draws a
// fresh one below it.
func (r *BarReporter) release() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Clear()
	r.bar = nil
}
