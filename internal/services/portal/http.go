package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 10 * time.Second
	maxDocumentBytes      = 50 << 20
)

// HTTPConfig captures the portal settings.
type HTTPConfig struct {
	BaseURL string
	// DocumentPath is joined to BaseURL after {account} and {check} are
	// replaced with the escaped identifiers.
	DocumentPath   string
	TimeoutSeconds int
	RetryAttempts  int
	UserAgent      string
}

// HTTPOption customizes the HTTP source.
type HTTPOption func(*HTTPSource)

// WithHTTPClient overrides the client used by sessions. Its cookie jar is
// replaced per session.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if client != nil {
			s.baseClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.retryBaseDelay = baseDelay
		s.retryMaxDelay = maxDelay
	}
}

// HTTPSource fetches documents from the bank portal.
type HTTPSource struct {
	cfg            HTTPConfig
	base           *url.URL
	baseClient     *http.Client
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
}

// NewHTTPSource validates cfg and returns a portal source.
func NewHTTPSource(cfg HTTPConfig, opts ...HTTPOption) (*HTTPSource, error) {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.DocumentPath = strings.TrimSpace(cfg.DocumentPath)
	if cfg.BaseURL == "" {
		return nil, errors.New("portal base url required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid portal base url %q", cfg.BaseURL)
	}
	if !strings.Contains(cfg.DocumentPath, "{account}") || !strings.Contains(cfg.DocumentPath, "{check}") {
		return nil, fmt.Errorf("document path %q must contain {account} and {check}", cfg.DocumentPath)
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	source := &HTTPSource{
		cfg:            cfg,
		base:           base,
		baseClient:     &http.Client{Timeout: timeout},
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(source)
	}
	return source, nil
}

// Describe names the portal host.
func (s *HTTPSource) Describe() string {
	return "portal " + s.base.Host
}

// Open starts a session by requesting the portal landing page, which sets
// the session cookies later document requests need.
func (s *HTTPSource) Open(ctx context.Context) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("portal cookie jar: %w", err)
	}
	client := *s.baseClient
	client.Jar = jar
	session := &httpSession{source: s, client: &client}

	if _, err := session.get(ctx, s.base.String(), false); err != nil {
		return nil, fmt.Errorf("open portal session: %w", err)
	}
	return session, nil
}

type httpSession struct {
	source *HTTPSource
	client *http.Client
}

type statusError struct {
	StatusCode int
	URL        string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("portal request %s: http %d", e.URL, e.StatusCode)
}

func (s *httpSession) Fetch(ctx context.Context, account, check string) ([]byte, error) {
	if err := validIdentifiers(account, check); err != nil {
		return nil, err
	}
	path := strings.NewReplacer(
		"{account}", url.PathEscape(strings.TrimSpace(account)),
		"{check}", url.PathEscape(strings.TrimSpace(check)),
	).Replace(s.source.cfg.DocumentPath)
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("build document url: %w", err)
	}
	return s.get(ctx, s.source.base.ResolveReference(ref).String(), true)
}

// get issues a GET with retries for transport errors and 5xx/429
// responses. Other statuses fail immediately; 404 maps to
// ErrDocumentNotFound.
func (s *httpSession) get(ctx context.Context, target string, wantPDF bool) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.source.retryBaseDelay
	policy.MaxInterval = s.source.retryMaxDelay
	policy.MaxElapsedTime = 0
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.source.cfg.RetryAttempts)), ctx)

	var body []byte
	err := backoff.Retry(func() error {
		data, err := s.getOnce(ctx, target)
		if err != nil {
			var status *statusError
			if errors.As(err, &status) {
				switch {
				case status.StatusCode == http.StatusNotFound:
					return backoff.Permanent(fmt.Errorf("%w: %v", ErrDocumentNotFound, err))
				case status.StatusCode == http.StatusTooManyRequests, status.StatusCode >= 500:
					return err
				default:
					return backoff.Permanent(err)
				}
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if wantPDF {
			if err := checkPDF(data); err != nil {
				return backoff.Permanent(err)
			}
		}
		body = data
		return nil
	}, retry)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *httpSession) getOnce(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("portal request: %w", err)
	}
	if ua := strings.TrimSpace(s.source.cfg.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("portal request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{StatusCode: resp.StatusCode, URL: target}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("portal read body: %w", err)
	}
	if len(data) > maxDocumentBytes {
		return nil, backoff.Permanent(fmt.Errorf("portal document exceeds %d bytes", maxDocumentBytes))
	}
	return data, nil
}

func (s *httpSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
