// Package tesseract extracts text from page images with the tesseract CLI.
package tesseract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"checkrecon/internal/services/command"
)

// Recognizer extracts text from one image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec command.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithWorkDir sets the parent directory for scratch image files.
func WithWorkDir(dir string) Option {
	return func(c *Client) {
		c.workDir = strings.TrimSpace(dir)
	}
}

// Client wraps tesseract CLI interactions.
type Client struct {
	binary   string
	language string
	psm      int
	timeout  time.Duration
	workDir  string
	exec     command.Executor
}

// New constructs a tesseract client.
func New(binary, language string, psm, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("tesseract binary required")
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = "eng"
	}
	client := &Client{
		binary:   binary,
		language: language,
		psm:      psm,
		timeout:  time.Duration(timeoutSeconds) * time.Second,
		exec:     command.Runner{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Binary returns the configured executable.
func (c *Client) Binary() string {
	return c.binary
}

// Recognize runs tesseract on image and returns the text it printed, with
// trailing blank lines and form feeds removed. An image without text yields
// an empty string.
func (c *Client) Recognize(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("tesseract: empty image")
	}
	file, err := os.CreateTemp(c.workDir, "page-*.png")
	if err != nil {
		return "", fmt.Errorf("tesseract: create scratch image: %w", err)
	}
	path := file.Name()
	defer os.Remove(path)
	if _, err := file.Write(image); err != nil {
		file.Close()
		return "", fmt.Errorf("tesseract: write scratch image: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("tesseract: close scratch image: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	args := []string{filepath.Clean(path), "stdout", "-l", c.language, "--psm", strconv.Itoa(c.psm)}
	var lines []string
	if err := c.exec.Run(runCtx, c.binary, args, func(line string) {
		lines = append(lines, line)
	}); err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return strings.TrimRight(strings.Join(lines, "\n"), " \n\f"), nil
}
