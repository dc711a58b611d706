package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"checkrecon/internal/config"
	"checkrecon/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newTestServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()
	var got []captured
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
		_, _ = w.Write([]byte("topic closed"))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	svc := notifications.NewService(config.Notifications{})
	if err := svc.NotifyBatchFailed(context.Background(), "b1", "boom"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "batch completed",
			send: func(svc notifications.Service) error {
				return svc.NotifyBatchCompleted(context.Background(), notifications.BatchSummary{
					BatchID:   "0f1e2d3c-aaaa-bbbb",
					Claimed:   10,
					Processed: 9,
					Failed:    1,
					Duration:  90 * time.Second,
				})
			},
			expectTitle:   "checkrecon - Batch Complete",
			expectMessage: "Batch 0f1e2d3c finished: 9 processed, 1 failed of 10 claimed in 1m30s",
			expectTags:    "checkrecon,batch,completed,warning",
		},
		{
			name: "batch failed",
			send: func(svc notifications.Service) error {
				return svc.NotifyBatchFailed(context.Background(), "b1", "portal login rejected")
			},
			expectTitle:    "checkrecon - Batch Failed",
			expectMessage:  "Batch b1 failed: portal login rejected",
			expectTags:     "checkrecon,batch,failed",
			expectPriority: "high",
		},
		{
			name: "error",
			send: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), errors.New("disk full"), "export")
			},
			expectTitle:    "checkrecon - Error",
			expectMessage:  "Error with export: disk full",
			expectTags:     "checkrecon,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			send:           func(svc notifications.Service) error { return svc.TestNotification(context.Background()) },
			expectTitle:    "checkrecon - Test",
			expectMessage:  "Notification system test",
			expectTags:     "checkrecon,test",
			expectPriority: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := newTestServer(t, http.StatusOK)
			svc := notifications.NewServiceWithClient(config.Notifications{NtfyTopic: srv.URL}, srv.Client())
			if err := tt.send(svc); err != nil {
				t.Fatalf("send: %v", err)
			}
			if len(*got) != 1 {
				t.Fatalf("expected 1 request, got %d", len(*got))
			}
			req := (*got)[0]
			if req.title != tt.expectTitle {
				t.Errorf("title = %q, want %q", req.title, tt.expectTitle)
			}
			if req.body != tt.expectMessage {
				t.Errorf("message = %q, want %q", req.body, tt.expectMessage)
			}
			if req.tags != tt.expectTags {
				t.Errorf("tags = %q, want %q", req.tags, tt.expectTags)
			}
			if req.priority != tt.expectPriority {
				t.Errorf("priority = %q, want %q", req.priority, tt.expectPriority)
			}
		})
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusForbidden)
	svc := notifications.NewServiceWithClient(config.Notifications{NtfyTopic: srv.URL}, srv.Client())
	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403: topic closed") {
		t.Fatalf("expected status error, got %v", err)
	}
}
