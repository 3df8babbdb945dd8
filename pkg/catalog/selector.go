// =============================================================================
// pkg/catalog/selector.go - Interactive file selection
// =============================================================================
package catalog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"seedplay/pkg/api"
)

// ValidationError is a rejected answer to the selection prompt. It is
// retryable and never leaves the Selector.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return api.ErrInvalidInput
}

// ParseChoice converts a 1-based answer into a 0-based candidate position
func ParseChoice(input string, count int) (int, error) {
	input = strings.TrimSpace(input)
	n, err := strconv.Atoi(input)
	if err != nil {
		return 0, &ValidationError{Input: input, Reason: "Invalid input. Please enter a number."}
	}
	if n < 1 || n > count {
		return 0, &ValidationError{
			Input:  input,
			Reason: fmt.Sprintf("Invalid selection. Please enter a number between 1 and %d.", count),
		}
	}
	return n - 1, nil
}

// Selector chooses the file to stream among candidates
type Selector struct {
	In  io.Reader
	Out io.Writer

	lines *bufio.Reader
}

// NewSelector creates a selector prompting on out and reading answers from in
func NewSelector(in io.Reader, out io.Writer) *Selector {
	return &Selector{In: in, Out: out}
}

// Select returns the chosen candidate. A single candidate is chosen without
// prompting; several candidates are offered until a valid number is given.
func (s *Selector) Select(ctx context.Context, candidates []api.FileEntry) (api.FileEntry, error) {
	switch len(candidates) {
	case 0:
		return api.FileEntry{}, api.ErrNoPlayableFile
	case 1:
		fmt.Fprintf(s.Out, "\nAutomatically selecting the only video file: %s\n", candidates[0].Path)
		return candidates[0], nil
	}

	for i, f := range candidates {
		fmt.Fprintf(s.Out, "  %d) %s\n", i+1, f.Path)
	}
	for {
		fmt.Fprintf(s.Out, "\nEnter the number of the video file you want to stream (1-%d): ", len(candidates))
		line, err := s.readLine(ctx)
		if err != nil {
			return api.FileEntry{}, err
		}
		pos, err := ParseChoice(line, len(candidates))
		if err != nil {
			fmt.Fprintln(s.Out, err)
			continue
		}
		return candidates[pos], nil
	}
}

// Ask prints prompt and returns the trimmed answer. It shares the buffered
// input with Select.
func (s *Selector) Ask(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(s.Out, prompt)
	line, err := s.readLine(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

type lineResult struct {
	line string
	err  error
}

func (s *Selector) readLine(ctx context.Context) (string, error) {
	if s.lines == nil {
		s.lines = bufio.NewReader(s.In)
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := s.lines.ReadString('\n')
		ch <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", api.ErrCancelled
	case res := <-ch:
		if res.err != nil {
			if errors.Is(res.err, io.EOF) && strings.TrimSpace(res.line) != "" {
				return res.line, nil
			}
			return "", fmt.Errorf("read selection: %v: %w", res.err, api.ErrInvalidInput)
		}
		return res.line, nil
	}
}
