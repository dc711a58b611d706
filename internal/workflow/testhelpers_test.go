package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"checkrecon/internal/config"
	"checkrecon/internal/convert"
	"checkrecon/internal/download"
	"checkrecon/internal/extract"
	"checkrecon/internal/imagesave"
	"checkrecon/internal/logging"
	"checkrecon/internal/notifications"
	"checkrecon/internal/payee"
	"checkrecon/internal/records"
	"checkrecon/internal/services/portal"
	"checkrecon/internal/services/tesseract"
	"checkrecon/internal/testsupport"
	"checkrecon/internal/workflow"
)

type fakeSource struct {
	mu      sync.Mutex
	openErr error
	missing map[string]bool
}

func (f *fakeSource) setOpenErr(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

func (f *fakeSource) Open(context.Context) (portal.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	return fakeSession{missing: f.missing}, nil
}

func (f *fakeSource) Describe() string { return "fake portal" }

type fakeSession struct {
	missing map[string]bool
}

func (s fakeSession) Fetch(_ context.Context, account, check string) ([]byte, error) {
	if s.missing[check] {
		return nil, portal.ErrDocumentNotFound
	}
	return testsupport.PDFBytes(account, check), nil
}

func (fakeSession) Close() error { return nil }

// echoRasterizer renders a single page carrying the PDF bytes.
type echoRasterizer struct{}

func (echoRasterizer) Rasterize(_ context.Context, pdf []byte) ([][]byte, error) {
	return [][]byte{append([]byte("PNG "), pdf...)}, nil
}

// chequeRecognizer prints the same payee line on every page.
type chequeRecognizer struct {
	line string
}

func (r chequeRecognizer) Recognize(_ context.Context, image []byte) (string, error) {
	if !bytes.HasPrefix(image, []byte("PNG")) {
		return "", errors.New("not an image")
	}
	return "PAY TO THE ORDER OF " + r.line + "\n$125.50", nil
}

// interruptingRecognizer cancels its run on the given call and fails that
// call with the context error. Every other call behaves like chequeRecognizer.
type interruptingRecognizer struct {
	mu       sync.Mutex
	calls    int
	cancelOn int
	cancel   context.CancelFunc
}

func (r *interruptingRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	r.mu.Lock()
	r.calls++
	call := r.calls
	r.mu.Unlock()
	if call == r.cancelOn {
		r.cancel()
		return "", ctx.Err()
	}
	return chequeRecognizer{line: "ACME WIDGET CO"}.Recognize(ctx, image)
}

func (r *interruptingRecognizer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []notifications.BatchSummary
	failed    []string
}

func (n *recordingNotifier) NotifyBatchCompleted(_ context.Context, s notifications.BatchSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, s)
	return nil
}

func (n *recordingNotifier) NotifyBatchFailed(_ context.Context, batchID, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, batchID+": "+reason)
	return nil
}

func (n *recordingNotifier) NotifyError(context.Context, error, string) error { return nil }
func (n *recordingNotifier) TestNotification(context.Context) error          { return nil }

func (n *recordingNotifier) completedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.completed)
}

type harness struct {
	cfg      *config.Config
	store    *records.Store
	source   *fakeSource
	notifier *recordingNotifier
	manager  *workflow.Manager
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	source := &fakeSource{missing: map[string]bool{}}
	notifier := &recordingNotifier{}

	h := &harness{cfg: cfg, store: store, source: source, notifier: notifier}
	h.manager = workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	h.useRecognizer(chequeRecognizer{line: "ACME WIDGET CO"})
	return h
}

// useRecognizer rebuilds the stage set around recognizer.
func (h *harness) useRecognizer(recognizer tesseract.Recognizer) {
	h.manager.ConfigureStages(workflow.StageSet{
		Download:  download.NewStage(h.store, h.source, nil),
		Convert:   convert.NewStage(h.store, echoRasterizer{}, nil),
		ImageSave: imagesave.NewStage(h.store, h.cfg.Paths.ImageDir, nil),
		Extract:   extract.NewStage(h.store, recognizer, nil),
		Payee:     payee.NewStage(h.store, payee.NewEngine(h.cfg.Matching), nil),
	})
}

func (h *harness) insert(t *testing.T, check, payee1, payee2 string) *records.Record {
	t.Helper()
	return testsupport.MustInsertRecord(t, h.store, records.NewRecord{
		AccountNumber: "1001",
		CheckNumber:   check,
		Payee1:        payee1,
		Payee2:        payee2,
	})
}

func (h *harness) record(t *testing.T, id string) *records.Record {
	t.Helper()
	rec, err := h.store.GetRecord(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	return rec
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
