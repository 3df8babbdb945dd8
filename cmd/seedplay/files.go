// =============================================================================
// cmd/seedplay/files.go - Files subcommand
// =============================================================================
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"seedplay/pkg/catalog"
	"seedplay/pkg/engine"
	"seedplay/pkg/utils"
)

var metadataTimeout time.Duration

var filesCmd = &cobra.Command{
	Use:   "files <magnet-link or torrent-file>",
	Short: "List the files of a torrent and mark the playable ones",
	Long: `files fetches the torrent's metadata into a temporary directory, prints the
numbered file list, and exits without downloading any file data. Use the
listed number minus one with --file-index to skip the prompt.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runFiles,
}

func init() {
	filesCmd.Flags().DurationVar(&metadataTimeout, "timeout", 2*time.Minute, "Give up waiting for metadata after this long")
}

func runFiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if metadataTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, metadataTimeout)
		defer cancel()
	}

	tmp, err := utils.CreateTempDir()
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	opts := cfg.EngineOptions()
	opts.SaveDir = tmp
	opts.Seed = false
	eng := engine.NewTorrentEngine(opts, log)
	defer eng.Close()

	tr, err := eng.Open(ctx, args[0])
	if err != nil {
		return err
	}
	defer tr.Release()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Fetching torrent metadata...")
	if err := tr.AwaitMetadata(ctx); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("no metadata after %s", metadataTimeout)
		}
		return err
	}
	files, err := catalog.Build(tr)
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	fmt.Fprintf(out, "\n%s (%d pieces of %d bytes)\n", bold.Sprint(tr.Name()), tr.NumPieces(), tr.PieceLength())
	fmt.Fprint(out, catalog.Listing(files))
	fmt.Fprintf(out, "\n%d playable of %d files\n", len(catalog.Candidates(files)), len(files))
	return nil
}
