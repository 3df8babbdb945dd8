// =============================================================================
// pkg/config/config.go - Layered configuration
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"seedplay/pkg/api"
	"seedplay/pkg/session"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "SEEDPLAY_"

// FileName is the config file looked up in the working directory
const FileName = "seedplay.yaml"

// Config holds every tunable of a run
type Config struct {
	SaveDir      string        `yaml:"save_dir"`
	Player       string        `yaml:"player"`
	PlayerArgs   []string      `yaml:"player_args"`
	PollInterval time.Duration `yaml:"poll_interval"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
	ListenPort   int           `yaml:"listen_port"`
	MaxPeers     int           `yaml:"max_peers"`
	RateLimit    int64         `yaml:"rate_limit"`
	FileIndex    int           `yaml:"file_index"`
	HTTPPort     int           `yaml:"http_port"`
	Progress     string        `yaml:"progress"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	NoColor      bool          `yaml:"no_color"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		SaveDir:      ".",
		Player:       "vlc",
		PollInterval: session.DefaultPollInterval,
		ListenPort:   6881,
		MaxPeers:     80,
		FileIndex:    -1,
		Progress:     "auto",
		LogLevel:     "warn",
		LogFormat:    "text",
	}
}

// Load layers defaults, the config file, .env and SEEDPLAY_* variables.
// explicitPath must exist when given; the other locations are optional.
func Load(explicitPath string) (Config, string, error) {
	cfg := Default()

	path, err := FindFile(explicitPath)
	if err != nil {
		return cfg, "", err
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, path, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, path, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()

	return cfg, path, cfg.Validate()
}

// FindFile searches for a config file in known locations
func FindFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicitPath, err)
		}
		return explicitPath, nil
	}

	locations := []string{FileName}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "seedplay", "config.yaml"))
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc, nil
		}
	}
	return "", nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("could not parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.SaveDir = getEnv("SAVE_DIR", c.SaveDir)
	c.Player = getEnv("PLAYER", c.Player)
	if args := getEnv("PLAYER_ARGS", ""); args != "" {
		c.PlayerArgs = strings.Fields(args)
	}
	c.PollInterval = getEnvDuration("POLL_INTERVAL", c.PollInterval)
	c.ReadyTimeout = getEnvDuration("READY_TIMEOUT", c.ReadyTimeout)
	c.ListenPort = int(getEnvInt64("LISTEN_PORT", int64(c.ListenPort)))
	c.MaxPeers = int(getEnvInt64("MAX_PEERS", int64(c.MaxPeers)))
	c.RateLimit = getEnvInt64("RATE_LIMIT", c.RateLimit)
	c.FileIndex = int(getEnvInt64("FILE_INDEX", int64(c.FileIndex)))
	c.HTTPPort = int(getEnvInt64("HTTP_PORT", int64(c.HTTPPort)))
	c.Progress = strings.ToLower(getEnv("PROGRESS", c.Progress))
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", c.LogFormat))
	c.NoColor = getEnvBool("NO_COLOR", c.NoColor)
}

// Validate rejects values no component can run with
func (c Config) Validate() error {
	var errs []error
	if c.SaveDir == "" {
		errs = append(errs, errors.New("save_dir must not be empty"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.ReadyTimeout < 0 {
		errs = append(errs, fmt.Errorf("ready_timeout must not be negative, got %s", c.ReadyTimeout))
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Errorf("listen_port out of range: %d", c.ListenPort))
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http_port out of range: %d", c.HTTPPort))
	}
	if c.MaxPeers < 0 {
		errs = append(errs, fmt.Errorf("max_peers must not be negative: %d", c.MaxPeers))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative: %d", c.RateLimit))
	}
	if c.FileIndex < -1 {
		errs = append(errs, fmt.Errorf("file_index must be -1 or a file index: %d", c.FileIndex))
	}
	switch c.Progress {
	case "auto", "bar", "line":
	default:
		errs = append(errs, fmt.Errorf("progress must be auto, bar or line: %q", c.Progress))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// EngineOptions converts the config for the torrent engine
func (c Config) EngineOptions() api.Options {
	return api.Options{
		SaveDir:    c.SaveDir,
		ListenPort: c.ListenPort,
		MaxPeers:   c.MaxPeers,
		RateLimit:  c.RateLimit,
		Seed:       true,
		Sample:     c.PollInterval,
	}
}

// SessionSettings converts the config for the session
func (c Config) SessionSettings() session.Settings {
	return session.Settings{
		SaveDir:      c.SaveDir,
		PollInterval: c.PollInterval,
		ReadyTimeout: c.ReadyTimeout,
		FileIndex:    c.FileIndex,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
