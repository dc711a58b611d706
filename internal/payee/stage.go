package payee

import (
	"context"
	"fmt"
	"log/slog"

	"checkrecon/internal/logging"
	"checkrecon/internal/records"
	"checkrecon/internal/services"
	"checkrecon/internal/stage"
)

// Stage runs the engine over every OCR result of a record and stores the
// outcomes, moving the record to payee_match_attempted.
type Stage struct {
	store  *records.Store
	engine *Engine
	logger *slog.Logger
}

// NewStage constructs the payee matching stage.
func NewStage(store *records.Store, engine *Engine, logger *slog.Logger) *Stage {
	return &Stage{store: store, engine: engine, logger: logging.NewComponentLogger(logger, "payee")}
}

// SetLogger routes stage logs through a record-scoped logger.
func (s *Stage) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "payee")
}

// Prepare verifies the record holds extracted text.
func (s *Stage) Prepare(_ context.Context, rec *records.Record) error {
	if s == nil || s.store == nil || s.engine == nil {
		return services.Wrap(services.ErrConfiguration, "payee", "prepare", "Payee stage is not configured", nil)
	}
	return stage.RequirePrecondition(rec, records.StatusPayeeMatchAttempted)
}

// Execute matches each OCR result of the record and stores every outcome
// together. A record whose payee columns are both empty fails with
// services.ErrNoCandidates before any outcome is written.
func (s *Stage) Execute(ctx context.Context, rec *records.Record) error {
	if s == nil || s.store == nil || s.engine == nil {
		return services.Wrap(services.ErrConfiguration, "payee", "execute", "Payee stage is not configured", nil)
	}
	results, err := s.store.OCRResultsForRecord(ctx, rec.ID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "payee", "load text", "Could not load OCR results", err)
	}
	if len(results) == 0 {
		return services.Wrap(services.ErrValidation, "payee", "execute",
			fmt.Sprintf("Record %s has no OCR results", rec.Label()), nil)
	}

	candidates := rec.Candidates()
	outcomes := make([]Result, len(results))
	byID := make(map[string]records.MatchOutcome, len(results))
	for i, ocr := range results {
		res, err := s.engine.Match(ocr.ExtractedText, candidates...)
		if err != nil {
			return err
		}
		outcomes[i] = res
		byID[ocr.ID] = res.Outcome()
	}
	if err := s.store.RecordPayeeMatches(ctx, rec.ID, byID); err != nil {
		return err
	}

	logger := logging.WithContext(ctx, s.logger)
	for i, ocr := range results {
		res := outcomes[i]
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "payee_match"),
			logging.Int("page", ocr.Page),
			logging.String("payee_match", string(res.PayeeMatch)),
			logging.Int("possible_matches", len(res.Possible)),
		}
		if res.Best != nil {
			attrs = append(attrs,
				logging.String("best_candidate", res.Best.Candidate),
				logging.Float64("best_score", res.Best.Score),
			)
		}
		logger.Info("payee match recorded", logging.Args(attrs...)...)
	}
	return nil
}

// HealthCheck reports whether the stage has its dependencies.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s == nil || s.store == nil || s.engine == nil {
		return stage.Unhealthy("payee", "stage not configured")
	}
	return stage.Healthy("payee")
}
