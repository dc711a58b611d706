// Package extract runs OCR over the saved raw images of a record.
package extract

import (
	"context"
	"fmt"
	"log/slog"

	"checkrecon/internal/logging"
	"checkrecon/internal/records"
	"checkrecon/internal/services"
	"checkrecon/internal/services/tesseract"
	"checkrecon/internal/stage"
)

// Stage recognizes text in each raw page image and stores one OCR result
// per page, moving the record to text_extracted.
type Stage struct {
	store      *records.Store
	recognizer tesseract.Recognizer
	logger     *slog.Logger
}

// NewStage constructs the text extraction stage.
func NewStage(store *records.Store, recognizer tesseract.Recognizer, logger *slog.Logger) *Stage {
	return &Stage{store: store, recognizer: recognizer, logger: logging.NewComponentLogger(logger, "extract")}
}

// SetLogger routes stage logs through a record-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "extract")
}

// Prepare verifies the raw images are saved.
func (s *Stage) Prepare(_ context.Context, rec *records.Record) error {
	if s == nil || s.store == nil || s.recognizer == nil {
		return services.Wrap(services.ErrConfiguration, "extract", "prepare", "Extract stage is not configured", nil)
	}
	return stage.RequirePrecondition(rec, records.StatusTextExtracted)
}

// Execute recognizes every page before storing anything, so a failing page
// leaves the record without partial text.
func (s *Stage) Execute(ctx context.Context, rec *records.Record) error {
	if s == nil || s.store == nil || s.recognizer == nil {
		return services.Wrap(services.ErrConfiguration, "extract", "execute", "Extract stage is not configured", nil)
	}
	if rec.Status == records.StatusTextExtracted {
		return nil
	}
	images, err := s.store.ImagesForRecord(ctx, rec.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "extract", "load images", "Could not load page images", err)
	}

	logger := logging.WithContext(ctx, s.logger)
	inputs := make([]records.OCRInput, 0, len(images))
	chars := 0
	for _, img := range images {
		if img.ProcessingType != records.ProcessingRaw {
			continue
		}
		text, err := s.recognizer.Recognize(ctx, img.Data)
		if err != nil {
			return services.Wrap(services.ErrExtraction, "extract", "recognize",
				fmt.Sprintf("OCR failed on page %d of check %s", img.Page, rec.Label()), err)
		}
		if text == "" {
			logger.Debug("page has no recognizable text", logging.Int("page", img.Page))
		}
		chars += len(text)
		inputs = append(inputs, records.OCRInput{
			ImageID:           img.ID,
			PreprocessingType: records.ProcessingRaw,
			Text:              text,
		})
	}
	if len(inputs) == 0 {
		return services.Wrap(services.ErrValidation, "extract", "execute",
			fmt.Sprintf("Check %s has no raw images", rec.Label()), nil)
	}

	if _, err := s.store.AttachOCRResults(ctx, rec.ID, inputs); err != nil {
		return err
	}
	logger.Info("text extracted",
		logging.String(logging.FieldEventType, "text_extracted"),
		logging.Int("pages", len(inputs)),
		logging.Int("characters", chars),
	)
	return nil
}

// HealthCheck reports whether the stage has its dependencies.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s == nil || s.store == nil || s.recognizer == nil {
		return stage.Unhealthy("extract", "stage not configured")
	}
	return stage.Healthy("extract")
}
