package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"checkrecon/internal/logging"
	"checkrecon/internal/records"
	"checkrecon/internal/services"
	"checkrecon/internal/services/portal"
	"checkrecon/internal/stage"
)

// Stage downloads check documents.
type Stage struct {
	store  *records.Store
	source portal.Source
	logger *slog.Logger

	mu      sync.Mutex
	session portal.Session
}

// NewStage constructs the download stage around a portal source.
func NewStage(store *records.Store, source portal.Source, logger *slog.Logger) *Stage {
	return &Stage{store: store, source: source, logger: logging.NewComponentLogger(logger, "download")}
}

// SetLogger routes stage logs through a record-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "download")
}

// BeginBatch opens the portal session shared by the batch.
func (s *Stage) BeginBatch(ctx context.Context, batch *records.Batch) error {
	if s == nil || s.source == nil {
		return services.Wrap(services.ErrConfiguration, "download", "begin batch", "Download stage is not configured", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return nil
	}
	session, err := s.source.Open(ctx)
	if err != nil {
		return services.Wrap(services.ErrAcquisition, "download", "open session",
			fmt.Sprintf("Could not open %s", s.source.Describe()), err)
	}
	s.session = session
	if batch != nil {
		logging.WithContext(ctx, s.logger).Info("portal session opened",
			logging.String(logging.FieldEventType, "session_open"),
			logging.String("source", s.source.Describe()),
			logging.Int("records", batch.RecordCount),
		)
	}
	return nil
}

// EndBatch closes the batch session.
func (s *Stage) EndBatch(context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}

// Prepare verifies the record is in progress.
func (s *Stage) Prepare(_ context.Context, rec *records.Record) error {
	if s == nil || s.store == nil || s.source == nil {
		return services.Wrap(services.ErrConfiguration, "download", "prepare", "Download stage is not configured", nil)
	}
	return stage.RequirePrecondition(rec, records.StatusDownloaded)
}

// Execute fetches and stores the record's document.
func (s *Stage) Execute(ctx context.Context, rec *records.Record) error {
	if s == nil || s.store == nil || s.source == nil {
		return services.Wrap(services.ErrConfiguration, "download", "execute", "Download stage is not configured", nil)
	}
	if rec.Status == records.StatusDownloaded {
		return nil
	}
	session, err := s.currentSession(ctx)
	if err != nil {
		return err
	}

	data, err := session.Fetch(ctx, rec.AccountNumber, rec.CheckNumber)
	if err != nil {
		if errors.Is(err, portal.ErrDocumentNotFound) {
			return services.Wrap(services.ErrAcquisition, "download", "fetch",
				fmt.Sprintf("No document for check %s", rec.Label()), err)
		}
		return services.Wrap(services.ErrAcquisition, "download", "fetch",
			fmt.Sprintf("Could not fetch check %s", rec.Label()), err)
	}

	doc, err := s.store.AttachDocument(ctx, rec.ID, data)
	if err != nil {
		return err
	}
	logging.WithContext(ctx, s.logger).Info("document downloaded",
		logging.String(logging.FieldEventType, "document_downloaded"),
		logging.Int64("size_bytes", doc.Size),
		logging.String("checksum", doc.Checksum),
	)
	return nil
}

// currentSession returns the batch session, opening one when the stage is
// driven outside of a batch.
func (s *Stage) currentSession(ctx context.Context) (portal.Session, error) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session != nil {
		return session, nil
	}
	if err := s.BeginBatch(ctx, nil); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, nil
}

// HealthCheck reports whether the stage has its dependencies.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s == nil || s.store == nil || s.source == nil {
		return stage.Unhealthy("download", "stage not configured")
	}
	return stage.Healthy("download")
}
