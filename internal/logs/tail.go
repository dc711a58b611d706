package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const pollInterval = 250 * time.Millisecond

// Options controls a Tail call. A negative Offset returns the last Limit
// matching lines; otherwise reading starts at Offset.
type Options struct {
	Offset int64
	Limit  int
	Follow bool
	// Wait bounds how long a follow call waits for a matching line.
	Wait   time.Duration
	Filter Filter
}

// Result carries the lines read and the offset to resume from.
type Result struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from the log file at path. A missing file yields no lines
// and offset zero so callers can keep polling until the file appears.
func Tail(ctx context.Context, path string, opts Options) (Result, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("log path %q is a directory", path)
	}

	var result Result
	if opts.Offset < 0 {
		result, err = lastLines(path, opts.Limit, opts.Filter)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// The file was truncated or rotated; start over.
			offset = 0
		}
		result, err = linesFrom(path, offset, opts.Filter)
	}
	if err != nil {
		return result, err
	}
	if opts.Follow && opts.Wait > 0 && len(result.Lines) == 0 {
		return follow(ctx, path, result.Offset, opts)
	}
	return result, nil
}

func lastLines(path string, limit int, filter Filter) (Result, error) {
	if limit <= 0 {
		info, err := os.Stat(path)
		if err != nil {
			return Result{}, fmt.Errorf("stat log file: %w", err)
		}
		return Result{Offset: info.Size()}, nil
	}
	ring := make([]string, 0, limit)
	offset, err := scan(path, 0, func(line string) {
		if !filter.Match(line) {
			return
		}
		if len(ring) == limit {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Lines: ring, Offset: offset}, nil
}

func linesFrom(path string, offset int64, filter Filter) (Result, error) {
	var lines []string
	next, err := scan(path, offset, func(line string) {
		if filter.Match(line) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return Result{Offset: offset}, err
	}
	return Result{Lines: lines, Offset: next}, nil
}

func follow(ctx context.Context, path string, offset int64, opts Options) (Result, error) {
	deadline := time.Now().Add(opts.Wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	result := Result{Offset: offset}
	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}
		next, err := linesFrom(path, result.Offset, opts.Filter)
		if err != nil {
			return result, err
		}
		result = next
		if len(result.Lines) > 0 || time.Now().After(deadline) {
			return result, nil
		}
	}
}

// scan feeds every complete line at or after offset to fn and returns the
// offset just past the last complete line. A trailing partial line is left
// for the next call.
func scan(path string, offset int64, fn func(string)) (int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return offset, nil
		}
		if err != nil {
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		fn(trimNewline(line))
	}
}

func trimNewline(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
