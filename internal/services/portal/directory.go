package portal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirectorySource serves documents named <account>_<check>.pdf from a
// directory.
type DirectorySource struct {
	dir string
}

// NewDirectorySource returns a source reading from dir.
func NewDirectorySource(dir string) (*DirectorySource, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("source directory required")
	}
	return &DirectorySource{dir: dir}, nil
}

// Describe names the directory.
func (s *DirectorySource) Describe() string {
	return "directory " + s.dir
}

// Open verifies the directory exists.
func (s *DirectorySource) Open(context.Context) (Session, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, fmt.Errorf("open source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", s.dir)
	}
	return &directorySession{dir: s.dir}, nil
}

type directorySession struct {
	dir string
}

func (s *directorySession) Fetch(ctx context.Context, account, check string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validIdentifiers(account, check); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s_%s.pdf", strings.TrimSpace(account), strings.TrimSpace(check))
	if filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid document name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if err := checkPDF(data); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return data, nil
}

func (s *directorySession) Close() error { return nil }
