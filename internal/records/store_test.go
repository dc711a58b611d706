package records_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"checkrecon/internal/records"
	"checkrecon/internal/services"
	"checkrecon/internal/testsupport"
)

func TestInsertAndGetRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	issued := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	rec := testsupport.MustInsertRecord(t, store, records.NewRecord{
		AccountNumber: " 1001 ",
		CheckNumber:   "5001",
		Amount:        decimal.NewNullDecimal(decimal.RequireFromString("125.5")),
		IssueDate:     &issued,
		Payee1:        "Acme Widget Co",
	})
	if rec.ID == "" {
		t.Fatal("expected generated id")
	}
	if rec.Status != records.StatusPending {
		t.Fatalf("expected pending, got %s", rec.Status)
	}
	if rec.BatchID != "" {
		t.Fatalf("expected no batch, got %q", rec.BatchID)
	}

	fetched, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if fetched.AccountNumber != "1001" || fetched.CheckNumber != "5001" {
		t.Fatalf("unexpected identifiers %s/%s", fetched.AccountNumber, fetched.CheckNumber)
	}
	if !fetched.Amount.Valid || fetched.Amount.Decimal.StringFixed(2) != "125.50" {
		t.Fatalf("unexpected amount %+v", fetched.Amount)
	}
	if fetched.IssueDate == nil || !fetched.IssueDate.Equal(issued) {
		t.Fatalf("unexpected issue date %v", fetched.IssueDate)
	}
	if got := fetched.Candidates(); len(got) != 1 || got[0] != "Acme Widget Co" {
		t.Fatalf("unexpected candidates %v", got)
	}

	inserted, skipped, err := store.InsertRecords(ctx, []records.NewRecord{
		{AccountNumber: "1001", CheckNumber: "5001"},
		{AccountNumber: "1001", CheckNumber: "5002"},
	})
	if err != nil {
		t.Fatalf("InsertRecords: %v", err)
	}
	if inserted != 1 || skipped != 1 {
		t.Fatalf("expected 1 inserted 1 skipped, got %d/%d", inserted, skipped)
	}

	if _, err := store.GetRecord(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := store.InsertRecords(ctx, []records.NewRecord{{AccountNumber: "1"}}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing check number, got %v", err)
	}
}

func TestClaimThreeOfTenThenComplete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustInsertRecords(t, store, 3)

	batch, claimed := testsupport.MustClaim(t, store, 10)
	if len(claimed) != 3 {
		t.Fatalf("expected 3 claimed, got %d", len(claimed))
	}
	if batch.Status != records.BatchInProgress || batch.RecordCount != 3 {
		t.Fatalf("unexpected batch %+v", batch)
	}
	stored, err := store.GetBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if stored.Status != records.BatchInProgress {
		t.Fatalf("expected stored batch in_progress, got %s", stored.Status)
	}
	for _, rec := range claimed {
		if rec.Status != records.StatusInProgress || rec.BatchID != batch.ID {
			t.Fatalf("record not claimed: %+v", rec)
		}
	}

	if err := store.Fail(ctx, claimed[0].ID, "portal returned 404"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	testsupport.MustAdvanceTo(t, store, claimed[1], records.StatusProcessed, "ACME")
	testsupport.MustAdvanceTo(t, store, claimed[2], records.StatusProcessed, "ACME")

	done, err := store.CompleteBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("CompleteBatch: %v", err)
	}
	if done.Status != records.BatchCompleted || done.FailedRecords != 1 || done.ProcessedRecords != 2 {
		t.Fatalf("unexpected completed batch %+v", done)
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completed_at")
	}

	again, err := store.CompleteBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("second CompleteBatch: %v", err)
	}
	if again.FailedRecords != 1 {
		t.Fatalf("expected idempotent failed count, got %d", again.FailedRecords)
	}
	if !again.CompletedAt.Equal(*done.CompletedAt) {
		t.Fatalf("completed_at moved from %v to %v", done.CompletedAt, again.CompletedAt)
	}

	if _, err := store.Requeue(ctx, claimed[0].ID); err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	afterRequeue, err := store.CompleteBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("CompleteBatch after requeue: %v", err)
	}
	if afterRequeue.FailedRecords != 1 || afterRequeue.ProcessedRecords != 2 {
		t.Fatalf("completed counts changed after requeue: %+v", afterRequeue)
	}
}

func TestClaimRespectsLimitAndCreationOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	inserted := testsupport.MustInsertRecords(t, store, 5)

	_, first := testsupport.MustClaim(t, store, 2)
	_, second := testsupport.MustClaim(t, store, 2)
	_, third := testsupport.MustClaim(t, store, 2)

	got := append(append(append([]*records.Record{}, first...), second...), third...)
	if len(first) != 2 || len(second) != 2 || len(third) != 1 {
		t.Fatalf("unexpected claim sizes %d/%d/%d", len(first), len(second), len(third))
	}
	for i, rec := range got {
		if rec.ID != inserted[i].ID {
			t.Fatalf("claim %d: got %s want %s", i, rec.ID, inserted[i].ID)
		}
	}
}

func TestClaimEmptyPoolCreatesBatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	batch, claimed := testsupport.MustClaim(t, store, 10)
	if len(claimed) != 0 {
		t.Fatalf("expected empty claim, got %d", len(claimed))
	}
	if _, err := store.GetBatch(ctx, batch.ID); err != nil {
		t.Fatalf("expected batch to exist: %v", err)
	}
	done, err := store.CompleteBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("CompleteBatch on empty batch: %v", err)
	}
	if done.FailedRecords != 0 || done.Status != records.BatchCompleted {
		t.Fatalf("unexpected empty batch completion %+v", done)
	}

	zero, claimed := testsupport.MustClaim(t, store, 0)
	if len(claimed) != 0 || zero.ID == "" {
		t.Fatalf("limit 0 should create an empty batch, got %d records", len(claimed))
	}
	if _, _, err := store.ClaimBatch(ctx, -1); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for negative limit, got %v", err)
	}
}

func TestConcurrentClaimsNeverOverlap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	storeA := testsupport.MustOpenStore(t, cfg)
	storeB := testsupport.MustOpenStore(t, cfg)

	const (
		pool    = 15
		limit   = 8
		workers = 6
	)
	testsupport.MustInsertRecords(t, storeA, pool)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		owner   = make(map[string]string)
		batches = make(map[string]int)
		errs    []error
	)
	for i := 0; i < workers; i++ {
		store := storeA
		if i%2 == 1 {
			store = storeB
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch, claimed, err := store.ClaimBatch(context.Background(), limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			batches[batch.ID] = len(claimed)
			for _, rec := range claimed {
				if prev, ok := owner[rec.ID]; ok {
					errs = append(errs, errors.New("record "+rec.ID+" claimed by "+prev+" and "+batch.ID))
				}
				owner[rec.ID] = batch.ID
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		t.Error(err)
	}
	if len(owner) != pool {
		t.Fatalf("expected all %d records claimed exactly once, got %d", pool, len(owner))
	}
	for id, n := range batches {
		if n > limit {
			t.Fatalf("batch %s claimed %d records, above limit %d", id, n, limit)
		}
	}
	stats, err := storeA.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[records.StatusInProgress] != pool || stats[records.StatusPending] != 0 {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestCompleteBatchErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.CompleteBatch(ctx, "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	testsupport.MustInsertRecords(t, store, 2)
	batch, claimed := testsupport.MustClaim(t, store, 2)
	testsupport.MustAdvanceTo(t, store, claimed[0], records.StatusProcessed)

	if _, err := store.CompleteBatch(ctx, batch.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected invalid state while a record is in flight, got %v", err)
	}
	stored, err := store.GetBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if stored.Status != records.BatchInProgress {
		t.Fatalf("batch should stay in_progress, got %s", stored.Status)
	}
}

func TestStageOutOfOrderIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustInsertRecords(t, store, 1)
	_, claimed := testsupport.MustClaim(t, store, 1)
	rec := claimed[0]

	_, err := store.AttachPageImages(ctx, rec.ID, [][]byte{[]byte("page")})
	if !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected invalid state, got %v", err)
	}
	var stateErr *records.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected StateError, got %T", err)
	}
	if stateErr.Have != records.StatusInProgress {
		t.Fatalf("unexpected current status %s", stateErr.Have)
	}

	doc, err := store.AttachDocument(ctx, rec.ID, testsupport.PDFBytes("a", "b"))
	if err != nil {
		t.Fatalf("AttachDocument: %v", err)
	}
	again, err := store.AttachDocument(ctx, rec.ID, []byte("%PDF other"))
	if err != nil {
		t.Fatalf("re-attach should be a no-op, got %v", err)
	}
	if again.ID != doc.ID || again.Checksum != doc.Checksum {
		t.Fatalf("re-attach replaced the document: %s vs %s", again.ID, doc.ID)
	}

	if err := store.Advance(ctx, rec.ID, records.StatusProcessed); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected skipping stages to fail, got %v", err)
	}
	if err := store.Advance(ctx, rec.ID, records.StatusPending); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected Advance to refuse pending, got %v", err)
	}
}

func TestFailAndRequeue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustInsertRecords(t, store, 2)
	_, claimed := testsupport.MustClaim(t, store, 2)
	rec := testsupport.MustAdvanceTo(t, store, claimed[0], records.StatusConverted)

	if _, err := store.Requeue(ctx, rec.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("requeue of an in-flight record should fail, got %v", err)
	}
	if err := store.Fail(ctx, rec.ID, "rasterizer crashed"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	failed, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if failed.Status != records.StatusFailed || failed.ErrorMessage != "rasterizer crashed" {
		t.Fatalf("unexpected failed record %+v", failed)
	}
	if err := store.Fail(ctx, rec.ID, "again"); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("failing a failed record should be rejected, got %v", err)
	}

	n, err := store.Requeue(ctx)
	if err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 requeued, got %d", n)
	}
	requeued, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if requeued.Status != records.StatusPending || requeued.BatchID != "" || requeued.ErrorMessage != "" {
		t.Fatalf("unexpected requeued record %+v", requeued)
	}
	if _, err := store.DocumentForRecord(ctx, rec.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected artifacts of the failed attempt to be discarded, got %v", err)
	}
	images, err := store.ImagesForRecord(ctx, rec.ID)
	if err != nil || len(images) != 0 {
		t.Fatalf("expected images discarded, got %d (%v)", len(images), err)
	}

	_, reclaimed := testsupport.MustClaim(t, store, 5)
	if len(reclaimed) != 1 || reclaimed[0].ID != rec.ID {
		t.Fatalf("expected requeued record to be claimable again, got %v", reclaimed)
	}

	if _, err := store.Requeue(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPayeeMatchAcrossPages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustInsertRecords(t, store, 1)
	_, claimed := testsupport.MustClaim(t, store, 1)
	rec := testsupport.MustAdvanceTo(t, store, claimed[0], records.StatusTextExtracted, "front text", "back text")

	results, err := store.OCRResultsForRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("OCRResultsForRecord: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, result := range results {
		if result.PayeeMatch != records.PayeeMatchPending || result.PreprocessingType != records.ProcessingRaw {
			t.Fatalf("unexpected fresh result %+v", result)
		}
	}

	best := &records.PossibleMatch{Candidate: "Acme", Score: 96.5, Window: "acme"}
	if err := store.RecordPayeeMatch(ctx, results[0].ID, records.MatchOutcome{
		PayeeMatch: records.PayeeMatchYes,
		Matched:    []string{"Acme"},
		Best:       best,
	}); err != nil {
		t.Fatalf("RecordPayeeMatch page 1: %v", err)
	}
	partial, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if partial.Status != records.StatusTextExtracted {
		t.Fatalf("record advanced with page 2 still pending: %s", partial.Status)
	}
	if err := store.RecordPayeeMatch(ctx, results[1].ID, records.MatchOutcome{
		PayeeMatch: records.PayeeMatchNo,
		Possible:   []records.PossibleMatch{{Candidate: "Acme", Score: 75, Window: "acmi"}},
	}); err != nil {
		t.Fatalf("RecordPayeeMatch page 2: %v", err)
	}

	first, err := store.GetOCRResult(ctx, results[0].ID)
	if err != nil {
		t.Fatalf("GetOCRResult: %v", err)
	}
	if first.PayeeMatch != records.PayeeMatchYes || len(first.Matched) != 1 || first.Best == nil || first.Best.Score != 96.5 {
		t.Fatalf("unexpected first result %+v", first)
	}
	second, err := store.GetOCRResult(ctx, results[1].ID)
	if err != nil {
		t.Fatalf("GetOCRResult: %v", err)
	}
	if second.PayeeMatch != records.PayeeMatchNo || len(second.Possible) != 1 || second.Possible[0].Window != "acmi" {
		t.Fatalf("unexpected second result %+v", second)
	}

	updated, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if updated.Status != records.StatusPayeeMatchAttempted {
		t.Fatalf("expected payee_match_attempted, got %s", updated.Status)
	}
	if err := store.RecordPayeeMatch(ctx, results[0].ID, records.MatchOutcome{PayeeMatch: records.PayeeMatchPending}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected pending outcome to be rejected, got %v", err)
	}
	if err := store.RecordPayeeMatch(ctx, "missing", records.MatchOutcome{PayeeMatch: records.PayeeMatchNo}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	rows, err := store.ReportRows(ctx, records.ReportFilter{PayeeMatch: records.PayeeMatchNo})
	if err != nil {
		t.Fatalf("ReportRows: %v", err)
	}
	if len(rows) != 1 || rows[0].Page != 2 || rows[0].Text != "back text" {
		t.Fatalf("unexpected report rows %+v", rows)
	}
}

func TestRecordPayeeMatchesIsAllOrNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustInsertRecords(t, store, 2)
	_, claimed := testsupport.MustClaim(t, store, 2)
	rec := testsupport.MustAdvanceTo(t, store, claimed[0], records.StatusTextExtracted, "front text", "back text")
	other := testsupport.MustAdvanceTo(t, store, claimed[1], records.StatusTextExtracted, "other text")

	results, err := store.OCRResultsForRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("OCRResultsForRecord: %v", err)
	}
	otherResults, err := store.OCRResultsForRecord(ctx, other.ID)
	if err != nil {
		t.Fatalf("OCRResultsForRecord: %v", err)
	}
	yes := records.MatchOutcome{PayeeMatch: records.PayeeMatchYes, Matched: []string{"Acme"}}
	no := records.MatchOutcome{PayeeMatch: records.PayeeMatchNo}

	err = store.RecordPayeeMatches(ctx, rec.ID, map[string]records.MatchOutcome{results[0].ID: yes})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected outcomes missing a page to be rejected, got %v", err)
	}
	err = store.RecordPayeeMatches(ctx, rec.ID, map[string]records.MatchOutcome{
		results[0].ID:      yes,
		results[1].ID:      no,
		otherResults[0].ID: no,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected foreign ocr result to be rejected, got %v", err)
	}
	for _, result := range append(results, otherResults...) {
		stored, err := store.GetOCRResult(ctx, result.ID)
		if err != nil {
			t.Fatalf("GetOCRResult: %v", err)
		}
		if stored.PayeeMatch != records.PayeeMatchPending {
			t.Fatalf("rejected call left outcome %s on %s", stored.PayeeMatch, result.ID)
		}
	}

	if err := store.RecordPayeeMatches(ctx, rec.ID, map[string]records.MatchOutcome{
		results[0].ID: yes,
		results[1].ID: no,
	}); err != nil {
		t.Fatalf("RecordPayeeMatches: %v", err)
	}
	updated, err := store.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if updated.Status != records.StatusPayeeMatchAttempted {
		t.Fatalf("expected payee_match_attempted, got %s", updated.Status)
	}
	stored, err := store.OCRResultsForRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("OCRResultsForRecord: %v", err)
	}
	if stored[0].PayeeMatch != records.PayeeMatchYes || stored[1].PayeeMatch != records.PayeeMatchNo {
		t.Fatalf("unexpected outcomes %s/%s", stored[0].PayeeMatch, stored[1].PayeeMatch)
	}

	if err := store.Fail(ctx, other.ID, "operator"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	err = store.RecordPayeeMatches(ctx, other.ID, map[string]records.MatchOutcome{otherResults[0].ID: no})
	if !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected failed record to be rejected, got %v", err)
	}
}

func TestTransitionTableIsMonotonic(t *testing.T) {
	all := records.AllStatuses()
	for _, from := range all {
		for _, to := range all {
			if !records.CanTransition(from, to) {
				continue
			}
			switch {
			case to == records.StatusFailed:
				if from.IsTerminal() || from == records.StatusPending {
					t.Fatalf("%s -> failed should not be allowed", from)
				}
			case from == records.StatusFailed:
				if to != records.StatusPending {
					t.Fatalf("failed may only return to pending, got %s", to)
				}
			default:
				if step := to.Rank() - from.Rank(); step != 0 && step != 1 {
					t.Fatalf("%s -> %s skips or regresses", from, to)
				}
			}
		}
	}
	if records.CanTransition(records.StatusProcessed, records.StatusFailed) {
		t.Fatal("processed is terminal")
	}
	if pre, ok := records.Precondition(records.StatusTextExtracted); !ok || pre != records.StatusRawImageSaved {
		t.Fatalf("unexpected precondition %s", pre)
	}
}

func TestStaleBatchesAndAdopt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustInsertRecords(t, store, 1)
	batch, _ := testsupport.MustClaim(t, store, 1)

	stale, err := store.StaleBatches(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("StaleBatches: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("fresh batch reported stale: %v", stale)
	}

	future := time.Now().Add(time.Hour)
	stale, err = store.StaleBatches(ctx, future)
	if err != nil {
		t.Fatalf("StaleBatches: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != batch.ID {
		t.Fatalf("expected batch to be stale relative to the future, got %v", stale)
	}

	if adopted, err := store.AdoptBatch(ctx, batch.ID, time.Now().Add(-time.Hour)); err != nil || adopted {
		t.Fatalf("fresh batch should not be adopted: %v %v", adopted, err)
	}
	if err := store.FailBatch(ctx, batch.ID, "portal unreachable"); err != nil {
		t.Fatalf("FailBatch: %v", err)
	}
	adopted, err := store.AdoptBatch(ctx, batch.ID, time.Time{})
	if err != nil || !adopted {
		t.Fatalf("expected failed batch to be adopted: %v %v", adopted, err)
	}
	reloaded, err := store.GetBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if reloaded.Status != records.BatchInProgress || reloaded.ErrorMessage != "" {
		t.Fatalf("unexpected adopted batch %+v", reloaded)
	}
	if _, err := store.AdoptBatch(ctx, "missing", time.Time{}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := store.BlockBatch(ctx, batch.ID, "1 record in flight"); err != nil {
		t.Fatalf("BlockBatch: %v", err)
	}
	stale, err = store.StaleBatches(ctx, future)
	if err != nil {
		t.Fatalf("StaleBatches: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("blocked batch reported stale: %v", stale)
	}
	if adopted, err := store.AdoptBatch(ctx, batch.ID, future); err != nil || adopted {
		t.Fatalf("blocked batch adopted as stale: %v %v", adopted, err)
	}
	if adopted, err := store.AdoptBatch(ctx, batch.ID, time.Time{}); err != nil || !adopted {
		t.Fatalf("expected explicit resume of blocked batch: %v %v", adopted, err)
	}
	if err := store.BlockBatch(ctx, "missing", "x"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHealthAndCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustInsertRecords(t, store, 3)
	_, claimed := testsupport.MustClaim(t, store, 1)
	testsupport.MustAdvanceTo(t, store, claimed[0], records.StatusProcessed, "text")

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 3 || health.Pending != 2 || health.Processed != 1 || health.OpenBatch != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
	if health.PayeeMatch[records.PayeeMatchNo] != 1 {
		t.Fatalf("unexpected payee match counts %v", health.PayeeMatch)
	}

	db, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !db.DatabaseExists || !db.DatabaseReadable || !db.IntegrityCheck || len(db.MissingTables) != 0 {
		t.Fatalf("unexpected database health %+v", db)
	}
	if db.TotalRecords != 3 || db.SchemaVersion != 1 {
		t.Fatalf("unexpected totals %+v", db)
	}
}
