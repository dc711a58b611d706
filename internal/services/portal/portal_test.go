package portal_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkrecon/internal/config"
	"checkrecon/internal/services/portal"
	"checkrecon/internal/testsupport"
)

type portalServer struct {
	*httptest.Server
	docCalls    atomic.Int32
	failFirst   int32
	escapedPath atomic.Value
}

func newPortalServer(t *testing.T) *portalServer {
	t.Helper()
	ps := &portalServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s3cret", Path: "/"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/checks/", func(w http.ResponseWriter, r *http.Request) {
		n := ps.docCalls.Add(1)
		ps.escapedPath.Store(r.URL.EscapedPath())
		if cookie, err := r.Cookie("session"); err != nil || cookie.Value != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if n <= ps.failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		switch {
		case strings.Contains(r.URL.Path, "missing"):
			w.WriteHeader(http.StatusNotFound)
		case strings.Contains(r.URL.Path, "html"):
			_, _ = w.Write([]byte("<html>login</html>"))
		default:
			_, _ = w.Write(testsupport.PDFBytes("a", "c"))
		}
	})
	ps.Server = httptest.NewServer(mux)
	t.Cleanup(ps.Close)
	return ps
}

func newSource(t *testing.T, baseURL string, retries int) *portal.HTTPSource {
	t.Helper()
	source, err := portal.NewHTTPSource(portal.HTTPConfig{
		BaseURL:       baseURL,
		DocumentPath:  "/checks/{account}/{check}.pdf",
		RetryAttempts: retries,
		UserAgent:     "checkrecon-test",
	}, portal.WithRetryBackoff(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)
	return source
}

func TestHTTPSessionFetchesWithCookies(t *testing.T) {
	server := newPortalServer(t)
	session, err := newSource(t, server.URL, 0).Open(context.Background())
	require.NoError(t, err)
	defer session.Close()

	data, err := session.Fetch(context.Background(), "12/34", "5001")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
	assert.Equal(t, "/checks/12%2F34/5001.pdf", server.escapedPath.Load())
}

func TestHTTPSessionRetriesServerErrors(t *testing.T) {
	server := newPortalServer(t)
	server.failFirst = 2
	session, err := newSource(t, server.URL, 3).Open(context.Background())
	require.NoError(t, err)

	_, err = session.Fetch(context.Background(), "1001", "5001")
	require.NoError(t, err)
	assert.Equal(t, int32(3), server.docCalls.Load())
}

func TestHTTPSessionPermanentFailures(t *testing.T) {
	server := newPortalServer(t)
	session, err := newSource(t, server.URL, 3).Open(context.Background())
	require.NoError(t, err)

	_, err = session.Fetch(context.Background(), "1001", "missing")
	assert.True(t, errors.Is(err, portal.ErrDocumentNotFound), "got %v", err)
	assert.Equal(t, int32(1), server.docCalls.Load())

	_, err = session.Fetch(context.Background(), "1001", "html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a PDF")

	_, err = session.Fetch(context.Background(), "", "5001")
	require.Error(t, err)
}

func TestHTTPSourceWithoutSessionIsRejected(t *testing.T) {
	server := newPortalServer(t)
	source := newSource(t, server.URL, 0)

	session, err := source.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, session.Close())

	fresh, err := portal.NewHTTPSource(portal.HTTPConfig{
		BaseURL:      server.URL + "/checks/",
		DocumentPath: "/checks/{account}/{check}.pdf",
	})
	require.NoError(t, err)
	_, err = fresh.Open(context.Background())
	require.Error(t, err, "landing on a protected page must fail the session")
}

func TestNewHTTPSourceValidates(t *testing.T) {
	tests := []portal.HTTPConfig{
		{BaseURL: "", DocumentPath: "/{account}/{check}"},
		{BaseURL: "not a url", DocumentPath: "/{account}/{check}"},
		{BaseURL: "https://bank.example", DocumentPath: "/{account}"},
	}
	for _, cfg := range tests {
		_, err := portal.NewHTTPSource(cfg)
		assert.Error(t, err, "config %+v", cfg)
	}
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteInboxPDF(t, dir, "1001", "5001")

	source, err := portal.NewSource(config.Acquisition{Mode: config.AcquisitionDirectory, SourceDir: dir})
	require.NoError(t, err)
	session, err := source.Open(context.Background())
	require.NoError(t, err)

	data, err := session.Fetch(context.Background(), "1001", "5001")
	require.NoError(t, err)
	assert.Equal(t, testsupport.PDFBytes("1001", "5001"), data)

	_, err = session.Fetch(context.Background(), "1001", "9999")
	assert.True(t, errors.Is(err, portal.ErrDocumentNotFound), "got %v", err)

	_, err = session.Fetch(context.Background(), "..", "x/../../etc")
	require.Error(t, err)

	missing, err := portal.NewDirectorySource(dir + "/nope")
	require.NoError(t, err)
	_, err = missing.Open(context.Background())
	require.Error(t, err)
}

func TestNewSourceUnknownMode(t *testing.T) {
	_, err := portal.NewSource(config.Acquisition{Mode: "ftp"})
	require.Error(t, err)
}
