package testsupport

import (
	"context"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"checkrecon/internal/config"
	"checkrecon/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustInsertRecord stores one pending record.
func MustInsertRecord(t testing.TB, store *records.Store, item records.NewRecord) *records.Record {
	t.Helper()

	rec, err := store.InsertRecord(context.Background(), item)
	if err != nil {
		t.Fatalf("store.InsertRecord: %v", err)
	}
	return rec
}

// MustInsertRecords stores n pending records with generated payees. The
// generator is seeded so repeated runs produce the same data.
func MustInsertRecords(t testing.TB, store *records.Store, n int) []*records.Record {
	t.Helper()

	faker := gofakeit.New(int64(n))
	out := make([]*records.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, MustInsertRecord(t, store, records.NewRecord{
			AccountNumber: fmt.Sprintf("ACCT%04d", i+1),
			CheckNumber:   fmt.Sprintf("%06d", 1000+i),
			Payee1:        faker.Company(),
		}))
	}
	return out
}

// MustClaim claims a batch and fails the test on error.
func MustClaim(t testing.TB, store *records.Store, limit int) (*records.Batch, []*records.Record) {
	t.Helper()

	batch, claimed, err := store.ClaimBatch(context.Background(), limit)
	if err != nil {
		t.Fatalf("store.ClaimBatch: %v", err)
	}
	return batch, claimed
}

// MustAdvanceTo walks a claimed record through every stage up to target,
// attaching placeholder artifacts along the way. Each page carries text.
func MustAdvanceTo(t testing.TB, store *records.Store, rec *records.Record, target records.Status, pages ...string) *records.Record {
	t.Helper()

	ctx := context.Background()
	if len(pages) == 0 {
		pages = []string{""}
	}
	steps := []records.Status{
		records.StatusDownloaded,
		records.StatusConverted,
		records.StatusRawImageSaved,
		records.StatusTextExtracted,
		records.StatusPayeeMatchAttempted,
		records.StatusProcessed,
	}
	for _, step := range steps {
		if step.Rank() > target.Rank() {
			break
		}
		var err error
		switch step {
		case records.StatusDownloaded:
			_, err = store.AttachDocument(ctx, rec.ID, PDFBytes(rec.AccountNumber, rec.CheckNumber))
		case records.StatusConverted:
			images := make([][]byte, len(pages))
			for i := range pages {
				images[i] = []byte(fmt.Sprintf("PNG page %d", i+1))
			}
			_, err = store.AttachPageImages(ctx, rec.ID, images)
		case records.StatusRawImageSaved:
			err = markSaved(ctx, store, rec.ID)
		case records.StatusTextExtracted:
			err = attachText(ctx, store, rec.ID, pages)
		case records.StatusPayeeMatchAttempted:
			err = recordNoMatch(ctx, store, rec.ID)
		case records.StatusProcessed:
			err = store.Advance(ctx, rec.ID, records.StatusProcessed)
		}
		if err != nil {
			t.Fatalf("advance %s to %s: %v", rec.ID, step, err)
		}
	}
	updated, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("store.GetRecord: %v", err)
	}
	return updated
}

func markSaved(ctx context.Context, store *records.Store, recordID string) error {
	images, err := store.ImagesForRecord(ctx, recordID)
	if err != nil {
		return err
	}
	paths := make(map[string]string, len(images))
	for _, img := range images {
		paths[img.ID] = fmt.Sprintf("/images/%s_p%d.png", recordID, img.Page)
	}
	return store.MarkImagesSaved(ctx, recordID, paths)
}

func attachText(ctx context.Context, store *records.Store, recordID string, pages []string) error {
	images, err := store.ImagesForRecord(ctx, recordID)
	if err != nil {
		return err
	}
	inputs := make([]records.OCRInput, 0, len(images))
	for i, img := range images {
		text := ""
		if i < len(pages) {
			text = pages[i]
		}
		inputs = append(inputs, records.OCRInput{ImageID: img.ID, PreprocessingType: records.ProcessingRaw, Text: text})
	}
	_, err = store.AttachOCRResults(ctx, recordID, inputs)
	return err
}

func recordNoMatch(ctx context.Context, store *records.Store, recordID string) error {
	results, err := store.OCRResultsForRecord(ctx, recordID)
	if err != nil {
		return err
	}
	outcomes := make(map[string]records.MatchOutcome, len(results))
	for _, result := range results {
		outcomes[result.ID] = records.MatchOutcome{PayeeMatch: records.PayeeMatchNo}
	}
	return store.RecordPayeeMatches(ctx, recordID, outcomes)
}
