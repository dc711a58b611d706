// Package convert renders each downloaded check document into page images.
package convert

import (
	"context"
	"fmt"
	"log/slog"

	"checkrecon/internal/logging"
	"checkrecon/internal/records"
	"checkrecon/internal/services"
	"checkrecon/internal/services/pdftoppm"
	"checkrecon/internal/stage"
)

// Stage converts a record's PDF into one raw PNG per page.
type Stage struct {
	store      *records.Store
	rasterizer pdftoppm.Rasterizer
	logger     *slog.Logger
}

// NewStage constructs the conversion stage.
func NewStage(store *records.Store, rasterizer pdftoppm.Rasterizer, logger *slog.Logger) *Stage {
	return &Stage{store: store, rasterizer: rasterizer, logger: logging.NewComponentLogger(logger, "convert")}
}

// SetLogger routes stage logs through a record-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "convert")
}

// Prepare verifies the record is downloaded.
func (s *Stage) Prepare(_ context.Context, rec *records.Record) error {
	if s == nil || s.store == nil || s.rasterizer == nil {
		return services.Wrap(services.ErrConfiguration, "convert", "prepare", "Convert stage is not configured", nil)
	}
	return stage.RequirePrecondition(rec, records.StatusConverted)
}

// Execute rasterizes the stored document and attaches the pages.
func (s *Stage) Execute(ctx context.Context, rec *records.Record) error {
	if s == nil || s.store == nil || s.rasterizer == nil {
		return services.Wrap(services.ErrConfiguration, "convert", "execute", "Convert stage is not configured", nil)
	}
	if rec.Status == records.StatusConverted {
		return nil
	}
	doc, err := s.store.DocumentForRecord(ctx, rec.ID)
	if err != nil {
		return services.Wrap(services.ErrExtraction, "convert", "load document",
			fmt.Sprintf("No stored document for check %s", rec.Label()), err)
	}

	pages, err := s.rasterizer.Rasterize(ctx, doc.Data)
	if err != nil {
		return services.Wrap(services.ErrExtraction, "convert", "rasterize",
			fmt.Sprintf("Could not render check %s", rec.Label()), err)
	}
	images, err := s.store.AttachPageImages(ctx, rec.ID, pages)
	if err != nil {
		return err
	}
	logging.WithContext(ctx, s.logger).Info("document converted",
		logging.String(logging.FieldEventType, "document_converted"),
		logging.Int("pages", len(images)),
	)
	return nil
}

// HealthCheck reports whether the stage has its dependencies.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s == nil || s.store == nil || s.rasterizer == nil {
		return stage.Unhealthy("convert", "stage not configured")
	}
	return stage.Healthy("convert")
}
