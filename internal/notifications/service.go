package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"checkrecon/internal/config"
)

const userAgent = "checkrecon/0.1.0"

// BatchSummary is the outcome of one processed batch.
type BatchSummary struct {
	BatchID   string
	Claimed   int
	Processed int
	Failed    int
	Duration  time.Duration
}

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyBatchCompleted(ctx context.Context, summary BatchSummary) error
	NotifyBatchFailed(ctx context.Context, batchID, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	return newService(cfg, nil)
}

// NewServiceWithClient is NewService with a caller supplied HTTP client.
func NewServiceWithClient(cfg config.Notifications, client *http.Client) Service {
	return newService(cfg, client)
}

func newService(cfg config.Notifications, client *http.Client) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	if client == nil {
		timeout := time.Duration(cfg.RequestTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &ntfyService{endpoint: topic, client: client}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, summary BatchSummary) error {
	message := fmt.Sprintf("Batch %s finished: %d processed, %d failed of %d claimed",
		shortID(summary.BatchID), summary.Processed, summary.Failed, summary.Claimed)
	if summary.Duration > 0 {
		message += fmt.Sprintf(" in %s", summary.Duration.Round(time.Second))
	}
	data := payload{
		title:   "checkrecon - Batch Complete",
		message: message,
		tags:    []string{"checkrecon", "batch", "completed"},
	}
	if summary.Failed > 0 {
		data.tags = append(data.tags, "warning")
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchFailed(ctx context.Context, batchID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "checkrecon - Batch Failed",
		message:  fmt.Sprintf("Batch %s failed: %s", shortID(batchID), reason),
		tags:     []string{"checkrecon", "batch", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "checkrecon - Error",
		message:  builder.String(),
		tags:     []string{"checkrecon", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "checkrecon - Test",
		message:  "Notification system test",
		tags:     []string{"checkrecon", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func shortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "?"
	}
	return id
}

type noopService struct{}

func (noopService) NotifyBatchCompleted(context.Context, BatchSummary) error { return nil }
func (noopService) NotifyBatchFailed(context.Context, string, string) error  { return nil }
func (noopService) NotifyError(context.Context, error, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
