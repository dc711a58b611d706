package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// PDFBytes returns a small payload that carries the PDF magic header and
// names the check it belongs to.
func PDFBytes(account, check string) []byte {
	return []byte(fmt.Sprintf("%%PDF-1.4\n%% check %s/%s\n%%%%EOF\n", account, check))
}

// WriteInboxPDF places a document for account/check in the directory
// acquisition source and returns its path.
func WriteInboxPDF(t testing.TB, dir, account, check string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.pdf", account, check))
	if err := os.WriteFile(path, PDFBytes(account, check), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
