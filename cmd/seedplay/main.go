// =============================================================================
// cmd/seedplay/main.go - CLI Application
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

	"seedplay/pkg/api"
	"seedplay/pkg/catalog"
	"seedplay/pkg/config"
	"seedplay/pkg/engine"
	"seedplay/pkg/player"
	"seedplay/pkg/session"
	"seedplay/pkg/status"
	"seedplay/pkg/stream"
	"seedplay/pkg/utils"
)

var (
	version = "dev"

	configPath string
	flagValues = config.Default()

	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "seedplay [magnet-link or torrent-file]",
	Short: "seedplay - Watch torrent videos while they download",
	Long: `seedplay fetches a torrent's metadata, picks its video file (asking when
there are several), downloads that file with its first and last pieces
first, and opens a media player as soon as there is enough data on disk.

When playback ends, the download fails, or you press Ctrl+C, the player is
stopped and a partially downloaded file is removed. A fully downloaded file
is kept.

Settings are read from seedplay.yaml (or ~/.config/seedplay/config.yaml),
then .env and SEEDPLAY_* environment variables, then flags.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStream,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (default: ./seedplay.yaml, ~/.config/seedplay/config.yaml)")
	pf.StringVarP(&flagValues.SaveDir, "save-dir", "d", flagValues.SaveDir, "Download directory")
	pf.IntVar(&flagValues.ListenPort, "port", flagValues.ListenPort, "Swarm listen port")
	pf.IntVar(&flagValues.MaxPeers, "max-peers", flagValues.MaxPeers, "Maximum number of peers")
	pf.Int64VarP(&flagValues.RateLimit, "rate-limit", "r", flagValues.RateLimit, "Download rate limit in bytes/sec (0 = unlimited)")
	pf.StringVar(&flagValues.LogLevel, "log-level", flagValues.LogLevel, "Log level (debug|info|warn|error)")
	pf.StringVar(&flagValues.LogFormat, "log-format", flagValues.LogFormat, "Log format (text|json)")
	pf.BoolVar(&flagValues.NoColor, "no-color", flagValues.NoColor, "Disable colored output")

	f := rootCmd.Flags()
	f.IntVarP(&flagValues.FileIndex, "file-index", "f", flagValues.FileIndex, "File index to stream (-1 to choose interactively)")
	f.StringVar(&flagValues.Player, "player", flagValues.Player, "Player command (mpv|vlc|path)")
	f.StringArrayVar(&flagValues.PlayerArgs, "player-arg", nil, "Player argument, repeatable; {path} is replaced by the file")
	f.DurationVar(&flagValues.PollInterval, "poll-interval", flagValues.PollInterval, "Status poll interval")
	f.DurationVar(&flagValues.ReadyTimeout, "ready-timeout", flagValues.ReadyTimeout, "Give up when the file is not playable after this long (0 = wait forever)")
	f.IntVarP(&flagValues.HTTPPort, "http-port", "p", flagValues.HTTPPort, "Serve JSON status on 127.0.0.1:<port> (0 = off)")
	f.StringVar(&flagValues.Progress, "progress", flagValues.Progress, "Progress display (auto|bar|line)")

	rootCmd.AddCommand(filesCmd, versionCmd)
}

// loadConfig layers the explicitly set flags over the config sources
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, path, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("save-dir", func() { cfg.SaveDir = flagValues.SaveDir })
	set("port", func() { cfg.ListenPort = flagValues.ListenPort })
	set("max-peers", func() { cfg.MaxPeers = flagValues.MaxPeers })
	set("rate-limit", func() { cfg.RateLimit = flagValues.RateLimit })
	set("log-level", func() { cfg.LogLevel = flagValues.LogLevel })
	set("log-format", func() { cfg.LogFormat = flagValues.LogFormat })
	set("no-color", func() { cfg.NoColor = flagValues.NoColor })
	set("file-index", func() { cfg.FileIndex = flagValues.FileIndex })
	set("player", func() { cfg.Player = flagValues.Player })
	set("player-arg", func() { cfg.PlayerArgs = flagValues.PlayerArgs })
	set("poll-interval", func() { cfg.PollInterval = flagValues.PollInterval })
	set("ready-timeout", func() { cfg.ReadyTimeout = flagValues.ReadyTimeout })
	set("http-port", func() { cfg.HTTPPort = flagValues.HTTPPort })
	set("progress", func() { cfg.Progress = flagValues.Progress })

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if cfg.NoColor {
		color.NoColor = true
	}

	log := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(log)
	if path != "" {
		log.Info("config loaded", slog.String("path", path))
	}
	return cfg, nil
}

func runStream(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	reporter, err := status.New(cfg.Progress, out, cfg.NoColor)
	if err != nil {
		return err
	}
	selector := catalog.NewSelector(cmd.InOrStdin(), out)

	var src string
	if len(args) == 1 {
		src = args[0]
	} else if src, err = selector.Ask(ctx, "Enter the magnet link: "); err != nil {
		outcome := api.OutcomeOf(err)
		reporter.Done(outcome, "")
		exitCode = outcome.ExitCode()
		return nil
	}

	rep := reporter
	if cfg.HTTPPort > 0 {
		server := stream.NewServer(cfg.HTTPPort, log)
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := server.Stop(shutdownCtx); err != nil {
				log.Warn("status server shutdown", slog.Any("err", err))
			}
		}()
		fmt.Fprintf(out, "Status: %s/status\n", server.URL())
		rep = status.Multi{reporter, server}
	}

	eng := engine.NewTorrentEngine(cfg.EngineOptions(), log)
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn("engine close", slog.Any("err", err))
		}
	}()

	sess := session.New(src,
		eng,
		player.New(cfg.Player, cfg.PlayerArgs, log),
		utils.OSStorage{},
		rep,
		selector,
		cfg.SessionSettings(),
		log,
	)
	outcome := sess.Run(ctx)
	log.Info("session finished", slog.String("session", sess.ID), slog.String("outcome", outcome.String()))
	exitCode = outcome.ExitCode()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}
