// =============================================================================
// pkg/catalog/catalog.go - File catalog and video detection
// =============================================================================
package catalog

import (
	"fmt"
	"strings"

	humanize "github.com/dustin/go-humanize"

	"seedplay/pkg/api"
)

// VideoExtensions contains the extensions treated as playable
var VideoExtensions = []string{".mkv", ".mp4", ".avi", ".mov", ".wmv", ".flv"}

// IsVideo checks the path suffix against VideoExtensions, ignoring case
func IsVideo(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range VideoExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Build transcribes the transfer's files into entries in torrent order
func Build(t api.Transfer) ([]api.FileEntry, error) {
	if !t.HasMetadata() {
		return nil, api.ErrMetadataUnavailable
	}
	raw, err := t.Files()
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	files := make([]api.FileEntry, 0, len(raw))
	for i, f := range raw {
		if f.Length < 0 || f.Offset < 0 {
			return nil, fmt.Errorf("file %d %q has negative geometry: %w", i, f.Path, api.ErrMetadataUnavailable)
		}
		files = append(files, api.FileEntry{
			Index:  i,
			Path:   f.Path,
			Size:   uint64(f.Length),
			Offset: uint64(f.Offset),
		})
	}
	return files, nil
}

// Candidates keeps the video files, preserving order
func Candidates(files []api.FileEntry) []api.FileEntry {
	var out []api.FileEntry
	for _, f := range files {
		if IsVideo(f.Path) {
			out = append(out, f)
		}
	}
	return out
}

// Listing renders the numbered file list shown before selection
func Listing(files []api.FileEntry) string {
	var b strings.Builder
	for i, f := range files {
		marker := " "
		if IsVideo(f.Path) {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %d. %s (%s)\n", marker, i+1, f.Path, humanize.IBytes(f.Size))
	}
	return b.String()
}

// ByIndex picks the candidate whose original torrent index is index
func ByIndex(candidates []api.FileEntry, index int) (api.FileEntry, error) {
	for _, f := range candidates {
		if f.Index == index {
			return f, nil
		}
	}
	return api.FileEntry{}, fmt.Errorf("file index %d is not a video file: %w", index, api.ErrInvalidInput)
}
