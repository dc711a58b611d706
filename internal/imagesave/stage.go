// Package imagesave writes the raw page images of converted records to the
// image directory so operators can inspect what OCR saw.
package imagesave

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"checkrecon/internal/fileutil"
	"checkrecon/internal/logging"
	"checkrecon/internal/records"
	"checkrecon/internal/services"
	"checkrecon/internal/stage"
	"checkrecon/internal/textutil"
)

// Stage persists raw images under <dir>/<batch>/<record>_p<page>.png.
type Stage struct {
	store  *records.Store
	dir    string
	logger *slog.Logger
}

// NewStage constructs the image save stage rooted at dir.
func NewStage(store *records.Store, dir string, logger *slog.Logger) *Stage {
	return &Stage{store: store, dir: dir, logger: logging.NewComponentLogger(logger, "imagesave")}
}

// SetLogger routes stage logs through a record-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "imagesave")
}

// Prepare verifies the record is converted.
func (s *Stage) Prepare(_ context.Context, rec *records.Record) error {
	if s == nil || s.store == nil || s.dir == "" {
		return services.Wrap(services.ErrConfiguration, "imagesave", "prepare", "Image directory is not configured", nil)
	}
	return stage.RequirePrecondition(rec, records.StatusRawImageSaved)
}

// Execute writes every raw image and records its path.
func (s *Stage) Execute(ctx context.Context, rec *records.Record) error {
	if s == nil || s.store == nil || s.dir == "" {
		return services.Wrap(services.ErrConfiguration, "imagesave", "execute", "Image directory is not configured", nil)
	}
	images, err := s.store.ImagesForRecord(ctx, rec.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "imagesave", "load images", "Could not load page images", err)
	}
	paths := make(map[string]string, len(images))
	for _, img := range images {
		if img.ProcessingType != records.ProcessingRaw {
			continue
		}
		path := ImagePath(s.dir, rec, img.Page)
		if err := fileutil.WriteFileAtomic(path, img.Data, 0o644); err != nil {
			return services.Wrap(services.ErrExtraction, "imagesave", "write image",
				fmt.Sprintf("Could not write page %d of check %s", img.Page, rec.Label()), err)
		}
		paths[img.ID] = path
	}
	if len(paths) == 0 {
		return services.Wrap(services.ErrValidation, "imagesave", "execute",
			fmt.Sprintf("Check %s has no raw images", rec.Label()), nil)
	}
	if err := s.store.MarkImagesSaved(ctx, rec.ID, paths); err != nil {
		return err
	}
	logging.WithContext(ctx, s.logger).Info("raw images saved",
		logging.String(logging.FieldEventType, "images_saved"),
		logging.Int("pages", len(paths)),
		logging.String("dir", filepath.Dir(ImagePath(s.dir, rec, 1))),
	)
	return nil
}

// ImagePath returns where the raw image of a record's page is written.
func ImagePath(dir string, rec *records.Record, page int) string {
	batch := textutil.SanitizeToken(rec.BatchID)
	name := fmt.Sprintf("%s_p%d.png", textutil.SanitizeToken(rec.ID), page)
	return filepath.Join(dir, batch, name)
}

// HealthCheck reports whether the stage has its dependencies.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s == nil || s.store == nil {
		return stage.Unhealthy("imagesave", "stage not configured")
	}
	if s.dir == "" {
		return stage.Unhealthy("imagesave", "image directory not configured")
	}
	return stage.Healthy("imagesave")
}
