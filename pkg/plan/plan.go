// =============================================================================
// pkg/plan/plan.go - Piece priority planning
// =============================================================================
package plan

import (
	"fmt"

	"seedplay/pkg/api"
)

// Target computes the piece span of file inside a torrent of numPieces
// pieces of pieceLength bytes.
func Target(file api.FileEntry, numPieces int, pieceLength uint64) (api.StreamTarget, error) {
	if pieceLength == 0 {
		return api.StreamTarget{}, fmt.Errorf("piece length is zero: %w", api.ErrInvalidInput)
	}
	if numPieces < 1 {
		return api.StreamTarget{}, fmt.Errorf("torrent has %d pieces: %w", numPieces, api.ErrInvalidInput)
	}
	if file.Size == 0 {
		return api.StreamTarget{}, fmt.Errorf("file %q is empty: %w", file.Path, api.ErrInvalidInput)
	}

	last := file.Offset + file.Size - 1
	if last < file.Offset {
		return api.StreamTarget{}, fmt.Errorf("file %q overflows piece space: %w", file.Path, api.ErrInvalidInput)
	}
	start := file.Offset / pieceLength
	end := last / pieceLength
	if end >= uint64(numPieces) {
		return api.StreamTarget{}, fmt.Errorf("file %q ends in piece %d of %d: %w",
			file.Path, end, numPieces, api.ErrInvalidInput)
	}

	return api.StreamTarget{
		File:        file,
		StartPiece:  int(start),
		EndPiece:    int(end),
		PieceLength: pieceLength,
	}, nil
}

// Build returns the priority plan for streaming file: every piece skipped
// except the file's span, whose first and last pieces are raised to High so
// container headers and seek indexes arrive early.
func Build(file api.FileEntry, numPieces int, pieceLength uint64) (api.PiecePlan, api.StreamTarget, error) {
	target, err := Target(file, numPieces, pieceLength)
	if err != nil {
		return nil, api.StreamTarget{}, err
	}

	plan := make(api.PiecePlan, numPieces)
	for i := target.StartPiece; i <= target.EndPiece; i++ {
		plan[i] = api.PriorityNormal
	}
	plan[target.StartPiece] = api.PriorityHigh
	plan[target.EndPiece] = api.PriorityHigh

	return plan, target, nil
}
