package convert_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkrecon/internal/convert"
	"checkrecon/internal/records"
	"checkrecon/internal/services"
	"checkrecon/internal/testsupport"
)

type fakeRasterizer struct {
	pages [][]byte
	err   error
	input []byte
	calls int
}

func (f *fakeRasterizer) Rasterize(_ context.Context, pdf []byte) ([][]byte, error) {
	f.calls++
	f.input = pdf
	return f.pages, f.err
}

func downloadedRecord(t *testing.T, store *records.Store) *records.Record {
	t.Helper()
	testsupport.MustInsertRecord(t, store, records.NewRecord{AccountNumber: "1001", CheckNumber: "5001", Payee1: "Acme"})
	_, claimed := testsupport.MustClaim(t, store, 1)
	require.Len(t, claimed, 1)
	return testsupport.MustAdvanceTo(t, store, claimed[0], records.StatusDownloaded)
}

func TestExecuteAttachesPagesInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	rec := downloadedRecord(t, store)

	raster := &fakeRasterizer{pages: [][]byte{[]byte("front"), []byte("back")}}
	st := convert.NewStage(store, raster, nil)
	require.NoError(t, st.Prepare(ctx, rec))
	require.NoError(t, st.Execute(ctx, rec))

	assert.True(t, bytes.HasPrefix(raster.input, []byte("%PDF")))

	images, err := store.ImagesForRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, 1, images[0].Page)
	assert.Equal(t, []byte("front"), images[0].Data)
	assert.Equal(t, 2, images[1].Page)
	assert.Equal(t, records.ProcessingRaw, images[1].ProcessingType)

	updated, err := store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, records.StatusConverted, updated.Status)

	require.NoError(t, st.Execute(ctx, updated))
	assert.Equal(t, 1, raster.calls, "converted records are not rendered again")
}

func TestRasterizerFailureIsExtractionError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	rec := downloadedRecord(t, store)

	st := convert.NewStage(store, &fakeRasterizer{err: errors.New("syntax error in PDF")}, nil)
	err := st.Execute(ctx, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExtraction))
	details := services.Details(err)
	assert.Equal(t, "convert", details.Stage)
	assert.Equal(t, "syntax error in PDF", details.Hint)

	updated, err := store.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, records.StatusDownloaded, updated.Status)
}

func TestPrepareRejectsInProgressRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustInsertRecord(t, store, records.NewRecord{AccountNumber: "1001", CheckNumber: "5001"})
	_, claimed := testsupport.MustClaim(t, store, 1)

	st := convert.NewStage(store, &fakeRasterizer{}, nil)
	err := st.Prepare(context.Background(), claimed[0])
	require.True(t, errors.Is(err, services.ErrInvalidState), "got %v", err)
}

func TestUnconfiguredStage(t *testing.T) {
	st := convert.NewStage(nil, nil, nil)
	err := st.Prepare(context.Background(), &records.Record{})
	require.True(t, errors.Is(err, services.ErrConfiguration))
	assert.False(t, st.HealthCheck(context.Background()).Ready)
}
