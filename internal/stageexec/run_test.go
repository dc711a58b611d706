package stageexec_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkrecon/internal/records"
	"checkrecon/internal/services"
	"checkrecon/internal/stage"
	"checkrecon/internal/stageexec"
	"checkrecon/internal/testsupport"
)

type stubHandler struct {
	store      *records.Store
	executeErr error
	logger     *slog.Logger
}

func (h *stubHandler) SetLogger(l *slog.Logger) { h.logger = l }

func (h *stubHandler) Prepare(_ context.Context, rec *records.Record) error {
	return stage.RequirePrecondition(rec, records.StatusDownloaded)
}

func (h *stubHandler) Execute(ctx context.Context, rec *records.Record) error {
	if h.executeErr != nil {
		return h.executeErr
	}
	_, err := h.store.AttachDocument(ctx, rec.ID, testsupport.PDFBytes(rec.AccountNumber, rec.CheckNumber))
	return err
}

func (h *stubHandler) HealthCheck(context.Context) stage.Health { return stage.Healthy("stub") }

func claimed(t *testing.T, store *records.Store) *records.Record {
	t.Helper()
	testsupport.MustInsertRecord(t, store, records.NewRecord{AccountNumber: "1001", CheckNumber: "5001", Payee1: "Acme"})
	_, recs := testsupport.MustClaim(t, store, 1)
	require.Len(t, recs, 1)
	return recs[0]
}

func TestRunAdvancesRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := claimed(t, store)

	handler := &stubHandler{store: store}
	updated, err := stageexec.Run(context.Background(), stageexec.Options{
		Store:     store,
		Handler:   handler,
		StageName: "download",
		Record:    rec,
	})
	require.NoError(t, err)
	assert.Equal(t, records.StatusDownloaded, updated.Status)
	assert.NotNil(t, handler.logger, "handler receives a scoped logger")
}

func TestRunFailsRecordOnStageError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := claimed(t, store)

	stageErr := services.Wrap(services.ErrAcquisition, "download", "fetch", "No document for check 1001/5001", errors.New("document not found"))
	updated, err := stageexec.Run(context.Background(), stageexec.Options{
		Store:     store,
		Handler:   &stubHandler{store: store, executeErr: stageErr},
		StageName: "download",
		Record:    rec,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, stageexec.ErrRecordFailed))
	assert.True(t, errors.Is(err, services.ErrAcquisition))
	assert.Equal(t, records.StatusFailed, updated.Status)

	stored, err := store.GetRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, records.StatusFailed, stored.Status)
	assert.Equal(t, "download: No document for check 1001/5001: document not found", stored.ErrorMessage)
}

func TestRunSkipsRecordInWrongState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := claimed(t, store)
	rec = testsupport.MustAdvanceTo(t, store, rec, records.StatusConverted)

	_, err := stageexec.Run(context.Background(), stageexec.Options{
		Store:     store,
		Handler:   &stubHandler{store: store},
		StageName: "download",
		Record:    rec,
	})
	require.True(t, errors.Is(err, services.ErrInvalidState), "got %v", err)
	assert.False(t, errors.Is(err, stageexec.ErrRecordFailed))

	stored, err := store.GetRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, records.StatusConverted, stored.Status)
}

func TestRunLeavesRecordWhenCancelled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	rec := claimed(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := stageexec.Run(ctx, stageexec.Options{
		Store:     store,
		Handler:   &stubHandler{store: store, executeErr: context.Canceled},
		StageName: "download",
		Record:    rec,
	})
	require.ErrorIs(t, err, context.Canceled)

	stored, err := store.GetRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, records.StatusInProgress, stored.Status)
}

func TestRunValidatesOptions(t *testing.T) {
	_, err := stageexec.Run(context.Background(), stageexec.Options{StageName: "download"})
	require.Error(t, err)
}
