// Package command runs external tools with line-oriented output capture.
package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// stderrTail bounds how many stderr lines are kept for error messages.
const stderrTail = 8

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// ExitError reports a command that could not be started or exited non-zero.
// Stderr holds the last lines the tool wrote there.
type ExitError struct {
	Binary string
	Stderr []string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Binary, e.Err)
	if len(e.Stderr) > 0 {
		msg += ": " + strings.Join(e.Stderr, " | ")
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Runner executes commands on the host.
type Runner struct{}

// Run starts binary with args, forwards each stdout line to onStdout, and
// waits for it to exit. Stderr is never forwarded; its tail is attached to
// the returned error instead.
func (Runner) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &ExitError{Binary: binary, Err: fmt.Errorf("start command: %w", err)}
	}

	var (
		wg      sync.WaitGroup
		scanErr error
		once    sync.Once
		mu      sync.Mutex
		tail    []string
	)
	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout, func(line string) {
		if onStdout != nil {
			onStdout(line)
		}
	})
	go scan(stderr, func(line string) {
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		mu.Lock()
		tail = append(tail, line)
		if len(tail) > stderrTail {
			tail = tail[len(tail)-stderrTail:]
		}
		mu.Unlock()
	})

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}
	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		return &ExitError{Binary: binary, Stderr: tail, Err: err}
	}
	return nil
}
