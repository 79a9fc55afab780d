// Package ingest feeds log streams through the correlator and aggregator.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
)

const (
	// DefaultMaxLineSize bounds a single log line. SQL dumps in profile
	// messages can be large.
	DefaultMaxLineSize = 4 * 1024 * 1024

	// StdinName selects standard input as a source.
	StdinName = "-"

	ctxCheckEvery = 4096
)

// Source is one independently readable log stream.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource reads the file at path, or stdin when path is "-".
func FileSource(path string) Source {
	if path == StdinName {
		return ReaderSource("stdin", os.Stdin)
	}
	return Source{
		Name: path,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// ReaderSource wraps an already open reader. Closing the source leaves r open.
func ReaderSource(name string, r io.Reader) Source {
	return Source{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(r), nil
		},
	}
}

// SourceError reports an input that could not be opened or read. It ends the
// whole run.
type SourceError struct {
	Name string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("failed to read %s: %v", e.Name, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// ReadLines calls fn for every line of r in order. Line terminators, including
// a trailing carriage return, are stripped.
func ReadLines(ctx context.Context, r io.Reader, maxLineSize int, fn func(string)) error {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	initial := 64 * 1024
	if initial > maxLineSize {
		initial = maxLineSize
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxLineSize)
	n := 0
	for scanner.Scan() {
		n++
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fn(scanner.Text())
	}
	return scanner.Err()
}

func consumeSource(ctx context.Context, src Source, maxLineSize int, fn func(string)) error {
	rc, err := src.Open()
	if err != nil {
		return &SourceError{Name: src.Name, Err: err}
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			// Best-effort close for read-only input.
			_ = cerr
		}
	}()
	if err := ReadLines(ctx, rc, maxLineSize, fn); err != nil {
		return &SourceError{Name: src.Name, Err: err}
	}
	return nil
}
