package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"checkrecon/internal/config"
	"checkrecon/internal/convert"
	"checkrecon/internal/download"
	"checkrecon/internal/extract"
	"checkrecon/internal/imagesave"
	"checkrecon/internal/payee"
	"checkrecon/internal/records"
	"checkrecon/internal/services/pdftoppm"
	"checkrecon/internal/services/portal"
	"checkrecon/internal/services/tesseract"
	"checkrecon/internal/workflow"
)

func buildStages(cfg *config.Config, store *records.Store, logger *slog.Logger) (workflow.StageSet, error) {
	source, err := portal.NewSource(cfg.Acquisition)
	if err != nil {
		return workflow.StageSet{}, fmt.Errorf("document source: %w", err)
	}
	scratch := filepath.Join(cfg.Paths.DataDir, "scratch")
	rasterizer, err := pdftoppm.New(cfg.Rasterize.Binary, cfg.Rasterize.DPI, cfg.Rasterize.TimeoutSeconds,
		pdftoppm.WithWorkDir(scratch))
	if err != nil {
		return workflow.StageSet{}, fmt.Errorf("rasterizer: %w", err)
	}
	recognizer, err := tesseract.New(cfg.Recognition.Binary, cfg.Recognition.Language,
		cfg.Recognition.PageSegmentationMode, cfg.Recognition.TimeoutSeconds, tesseract.WithWorkDir(scratch))
	if err != nil {
		return workflow.StageSet{}, fmt.Errorf("recognizer: %w", err)
	}

	return workflow.StageSet{
		Download:  download.NewStage(store, source, logger),
		Convert:   convert.NewStage(store, rasterizer, logger),
		ImageSave: imagesave.NewStage(store, cfg.Paths.ImageDir, logger),
		Extract:   extract.NewStage(store, recognizer, logger),
		Payee:     newPayeeStage(cfg, store, logger),
	}, nil
}

func newPayeeStage(cfg *config.Config, store *records.Store, logger *slog.Logger) *payee.Stage {
	return payee.NewStage(store, payee.NewEngine(cfg.Matching), logger)
}

func newManager(cfg *config.Config, store *records.Store, logger *slog.Logger) (*workflow.Manager, error) {
	stages, err := buildStages(cfg, store, logger)
	if err != nil {
		return nil, err
	}
	mgr := workflow.NewManager(cfg, store, logger)
	mgr.ConfigureStages(stages)
	return mgr, nil
}
