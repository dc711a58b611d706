package pdftoppm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"checkrecon/internal/services/command"
)

const pagePrefix = "page"

// Rasterizer turns a PDF document into one PNG image per page.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([][]byte, error)
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

// WithWorkDir sets the parent directory for per-document scratch space.
func WithWorkDir(dir string) Option {
	return func(c *Client) {
		c.workDir = strings.TrimSpace(dir)
	}
}

// Client wraps pdftoppm CLI interactions.
type Client struct {
	binary  string
	dpi     int
	timeout time.Duration
	workDir string
	exec    command.Executor
}

// New constructs a pdftoppm client.
func New(binary string, dpi, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("pdftoppm binary required")
	}
	if dpi <= 0 {
		return nil, fmt.Errorf("pdftoppm dpi must be positive, got %d", dpi)
	}
	client := &Client{
		binary:  binary,
		dpi:     dpi,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    command.Runner{},
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

// Rasterize writes pdf to scratch space, renders every page and returns the
// PNG bytes in page order.
func (c *Client) Rasterize(ctx context.Context, pdf []byte) ([][]byte, error) {
	if len(pdf) == 0 {
		return nil, errors.New("pdftoppm: empty document")
	}
	dir, err := os.MkdirTemp(c.workDir, "rasterize-*")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "document.pdf")
	if err := os.WriteFile(input, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("pdftoppm: write input: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	args := []string{"-r", strconv.Itoa(c.dpi), "-png", input, filepath.Join(dir, pagePrefix)}
	if err := c.exec.Run(runCtx, c.binary, args, nil); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w", err)
	}

	pages, err := collectPages(dir)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w", err)
	}
	if len(pages) == 0 {
		return nil, errors.New("pdftoppm produced no pages; the document may be damaged")
	}
	out := make([][]byte, 0, len(pages))
	for _, page := range pages {
		data, err := os.ReadFile(page.path)
		if err != nil {
			return nil, fmt.Errorf("pdftoppm: read page %d: %w", page.number, err)
		}
		out = append(out, data)
	}
	return out, nil
}

type pageFile struct {
	path   string
	number int
}

// collectPages finds page-N.png outputs. pdftoppm zero-pads N to the width
// of the page count, so pages are ordered numerically.
func collectPages(dir string) ([]pageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("inspect outputs: %w", err)
	}
	var pages []pageFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, pagePrefix+"-") || filepath.Ext(name) != ".png" {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, pagePrefix+"-"), ".png")
		number, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		pages = append(pages, pageFile{path: filepath.Join(dir, name), number: number})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].number < pages[j].number })
	return pages, nil
}
