package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"checkrecon/internal/records"
	"checkrecon/internal/testsupport"
)

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --force to fail")
	}
	if _, err := runCLI(t, "", "config", "init", "--path", target, "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}

	out, err = runCLI(t, target, "config", "validate")
	if err != nil {
		t.Fatalf("validate sample: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestSeedAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env.configPath, "seed", "--count", "5", "--seed", "3")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	requireContains(t, out, "Read 5 row(s)")

	out, err = runCLI(t, env.configPath, "records", "status")
	if err != nil {
		t.Fatalf("records status: %v", err)
	}
	requireContains(t, out, "Pending")
	requireContains(t, out, "Total 5")
}

func TestIngestSkipsDuplicates(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.baseDir, "checks.csv")
	content := "AcctNumber,CheckNumber,Amount,Date,Payee\n100200,5001,125.50,2023-01-01,Acme Widget Co\n100200,5002,80,2023-01-02,Jane Doe\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	out, err := runCLI(t, env.configPath, "ingest", path)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	requireContains(t, out, "2 inserted, 0 already present")

	out, err = runCLI(t, env.configPath, "ingest", path)
	if err != nil {
		t.Fatalf("ingest again: %v", err)
	}
	requireContains(t, out, "0 inserted, 2 already present")

	out, err = runCLI(t, env.configPath, "records", "list", "--status", "pending")
	if err != nil {
		t.Fatalf("records list: %v", err)
	}
	requireContains(t, out, "Acme Widget Co")
}

func TestRecordsRetryRequiresTargets(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := runCLI(t, env.configPath, "records", "retry"); err == nil {
		t.Fatal("expected retry without ids to fail")
	}

	testsupport.MustInsertRecords(t, env.store, 1)
	_, claimed := testsupport.MustClaim(t, env.store, 1)
	if err := env.store.Fail(context.Background(), claimed[0].ID, "download: boom"); err != nil {
		t.Fatalf("fail record: %v", err)
	}

	out, err := runCLI(t, env.configPath, "records", "retry", "--all")
	if err != nil {
		t.Fatalf("records retry: %v", err)
	}
	requireContains(t, out, "Requeued 1 record(s)")

	rec, err := env.store.GetRecord(context.Background(), claimed[0].ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Status != records.StatusPending {
		t.Fatalf("expected pending after retry, got %s", rec.Status)
	}
}

func TestBatchCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustInsertRecords(t, env.store, 1)
	batch, claimed := testsupport.MustClaim(t, env.store, 1)

	if _, err := runCLI(t, env.configPath, "batch", "complete", batch.ID); err == nil {
		t.Fatal("expected completion of an open batch to fail")
	}

	testsupport.MustAdvanceTo(t, env.store, claimed[0], records.StatusProcessed)

	out, err := runCLI(t, env.configPath, "batch", "complete", batch.ID)
	if err != nil {
		t.Fatalf("batch complete: %v", err)
	}
	requireContains(t, out, "1 processed, 0 failed of 1")

	out, err = runCLI(t, env.configPath, "batch", "list")
	if err != nil {
		t.Fatalf("batch list: %v", err)
	}
	requireContains(t, out, batch.ID)
	requireContains(t, out, "Completed")

	out, err = runCLI(t, env.configPath, "batch", "show", batch.ID)
	if err != nil {
		t.Fatalf("batch show: %v", err)
	}
	requireContains(t, out, "Processed")
	requireContains(t, out, claimed[0].AccountNumber)

	if _, err := runCLI(t, env.configPath, "batch", "show", "missing"); err == nil {
		t.Fatal("expected unknown batch to fail")
	}
}

func TestMatchRerunsPayeeMatching(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustInsertRecord(t, env.store, records.NewRecord{
		AccountNumber: "100200",
		CheckNumber:   "5001",
		Payee1:        "Acme Widget Co",
	})
	_, claimed := testsupport.MustClaim(t, env.store, 1)
	rec := testsupport.MustAdvanceTo(t, env.store, claimed[0], records.StatusTextExtracted,
		"PAY TO THE ORDER OF ACME WIDGET CO\n$125.50")

	out, err := runCLI(t, env.configPath, "match", rec.ID)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	requireContains(t, out, "Payee Match Attempted")
	requireContains(t, out, "payee match yes")

	out, err = runCLI(t, env.configPath, "records", "show", rec.ID)
	if err != nil {
		t.Fatalf("records show: %v", err)
	}
	requireContains(t, out, "best: Acme Widget Co 100.0")
}

func TestExportMismatches(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.MustInsertRecords(t, env.store, 2)
	_, claimed := testsupport.MustClaim(t, env.store, 2)
	testsupport.MustAdvanceTo(t, env.store, claimed[0], records.StatusPayeeMatchAttempted, "VOID")

	target := filepath.Join(env.baseDir, "out", "mismatches.xlsx")
	out, err := runCLI(t, env.configPath, "export", "mismatches", "--out", target)
	if err != nil {
		t.Fatalf("export mismatches: %v", err)
	}
	requireContains(t, out, "Wrote 1 mismatch(es)")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected workbook at %s: %v", target, err)
	}

	out, err = runCLI(t, env.configPath, "export", "extracted")
	if err != nil {
		t.Fatalf("export extracted: %v", err)
	}
	requireContains(t, out, "Wrote 1 row(s)")
	data, err := os.ReadFile(filepath.Join(env.cfg.Paths.ExportDir, "extracted_data.csv"))
	if err != nil {
		t.Fatalf("read extracted export: %v", err)
	}
	if !strings.Contains(string(data), "VOID") {
		t.Fatalf("expected OCR text in export, got %q", data)
	}
}

func TestDoctorWithStubbedTools(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	out, err := runCLI(t, env.configPath, "doctor")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "pdftoppm")
	requireContains(t, out, "All checks passed")
}

func TestTestNotifyDisabled(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, env.configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications are disabled")
}

func TestLogsRequiresLogFile(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := runCLI(t, env.configPath, "logs"); err == nil {
		t.Fatal("expected logs without a configured file to fail")
	}
}
