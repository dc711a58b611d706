package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"checkrecon/internal/config"
)

var pdfMagic = []byte("%PDF")

// ErrDocumentNotFound reports that the source has no document for a check.
var ErrDocumentNotFound = errors.New("document not found")

// Source opens sessions against a document store.
type Source interface {
	Open(ctx context.Context) (Session, error)
	Describe() string
}

// Session fetches documents until closed.
type Session interface {
	Fetch(ctx context.Context, account, check string) ([]byte, error)
	Close() error
}

// NewSource builds the source selected by the acquisition mode.
func NewSource(cfg config.Acquisition) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case config.AcquisitionHTTP:
		return NewHTTPSource(HTTPConfig{
			BaseURL:        cfg.BaseURL,
			DocumentPath:   cfg.DocumentPath,
			TimeoutSeconds: cfg.TimeoutSeconds,
			RetryAttempts:  cfg.RetryAttempts,
			UserAgent:      cfg.UserAgent,
		})
	case config.AcquisitionDirectory:
		return NewDirectorySource(cfg.SourceDir)
	default:
		return nil, fmt.Errorf("unknown acquisition mode %q", cfg.Mode)
	}
}

func checkPDF(data []byte) error {
	if !bytes.HasPrefix(data, pdfMagic) {
		return fmt.Errorf("response is not a PDF document (%d bytes)", len(data))
	}
	return nil
}

func validIdentifiers(account, check string) error {
	if strings.TrimSpace(account) == "" || strings.TrimSpace(check) == "" {
		return errors.New("account and check number are required")
	}
	return nil
}
