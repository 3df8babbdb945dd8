// =============================================================================
// pkg/session/cleanup.go - Partial artifact removal
// =============================================================================
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"seedplay/pkg/api"
)

// Layout locates a torrent's data under the save root
type Layout struct {
	SaveDir   string
	RootName  string // top-level directory of a multi-file torrent
	MultiFile bool
}

// ArtifactPath is where the engine writes file
func (l Layout) ArtifactPath(file api.FileEntry) string {
	return filepath.Join(l.SaveDir, filepath.FromSlash(file.Path))
}

// RootDir is the torrent's top-level directory, empty for single-file torrents
func (l Layout) RootDir() string {
	if !l.MultiFile || l.RootName == "" {
		return ""
	}
	return filepath.Join(l.SaveDir, filepath.FromSlash(l.RootName))
}

// Cleaner removes what an unfinished session leaves behind
type Cleaner struct {
	Storage  api.Storage
	Reporter api.Reporter
	Log      *slog.Logger
}

// Clean deletes the partial artifact unless the session completed. For
// multi-file torrents the directories between the artifact and the torrent
// root are removed while they are empty. Errors are collected, not fatal.
func (c *Cleaner) Clean(outcome api.Outcome, target api.StreamTarget, layout Layout) error {
	if outcome == api.OutcomeCompleted {
		return nil
	}

	var errs []error
	artifact := layout.ArtifactPath(target.File)
	_, exists, err := c.Storage.Stat(artifact)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("stat %s: %w", artifact, err))
	case exists:
		if err := c.Storage.Remove(artifact); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", artifact, err))
		} else {
			c.Reporter.Message("Removed partially downloaded file: %s", artifact)
		}
	}

	if root := layout.RootDir(); root != "" {
		if err := c.pruneDirs(filepath.Dir(artifact), root); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// pruneDirs walks from dir up to root, removing empty directories. It stops
// at the first directory that still has entries.
func (c *Cleaner) pruneDirs(dir, root string) error {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		c.logger().Warn("artifact outside torrent root, keeping directories",
			slog.String("dir", dir), slog.String("root", root))
		return nil
	}

	for {
		removed, err := c.Storage.RemoveEmptyDir(dir)
		if err != nil {
			return fmt.Errorf("remove directory %s: %w", dir, err)
		}
		if !removed {
			return nil
		}
		c.Reporter.Message("Removed empty torrent directory: %s", dir)
		if dir == root {
			return nil
		}
		dir = filepath.Dir(dir)
	}
}

func (c *Cleaner) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
