// Package postgrest implements the submission store against a hosted
// PostgREST-style endpoint. Inserts are retried with exponential backoff on
// transient failures; backend error codes are translated into the store
// taxonomy so callers never inspect transport details.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/example/waitlist-service/internal/models"
	"github.com/example/waitlist-service/internal/store"
)

// DefaultTable is the submissions table exposed through the REST schema.
const DefaultTable = "waitlist_submissions"

const defaultTimeout = 10 * time.Second

// Config carries the endpoint coordinates and retry policy for the client.
type Config struct {
	// BaseURL is the project endpoint, e.g. https://xyz.example.co.
	BaseURL string
	// APIKey is sent as both the apikey header and the bearer token.
	APIKey string
	// Table overrides DefaultTable when set.
	Table string
	// Retry governs Submit; zero fields fall back to the defaults.
	Retry store.RetryConfig
	// Timeout bounds each individual HTTP request.
	Timeout time.Duration
}

// Option customises client behaviour at construction time.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSleep overrides the function used to wait between retries, useful
// for deterministic tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithClock overrides the clock used for submission timestamps and the
// current-month boundary.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client talks to the remote store. It holds no mutable state between
// calls beyond configuration, so it is safe for concurrent use.
type Client struct {
	cfg    Config
	logger zerolog.Logger
	http   *http.Client
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// New constructs a remote client. BaseURL and APIKey are required; use the
// stub client when the environment is not configured.
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("postgrest: base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("postgrest: API key is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	cfg.Retry = cfg.Retry.Normalize()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &Client{
		cfg:    cfg,
		logger: logger,
		http:   &http.Client{Timeout: cfg.Timeout},
		sleep:  sleepContext,
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Submit implements store.Client. Transient failures are retried up to
// MaxAttempts with exponential backoff; terminal errors, including the
// uniqueness violation, short-circuit immediately and the duplicate
// verdict is authoritative.
func (c *Client) Submit(ctx context.Context, data models.FormData, source string) (*models.SubmissionRecord, error) {
	if source == "" {
		source = models.SourceUnknown
	}

	payload := insertPayload{
		Name:                 data.Name,
		Email:                data.Email,
		SubscribedNewsletter: data.SubscribedNewsletter,
		Message:              data.Message,
		Company:              data.Company,
		Phone:                data.Phone,
		Source:               source,
		SubmittedAt:          c.now().UTC(),
	}

	attempt := 1
	for {
		record, err := c.insert(ctx, payload)
		if err == nil {
			c.logger.Debug().
				Str("email", data.Email).
				Str("source", source).
				Int("attempt", attempt).
				Msg("postgrest: submission stored")
			return record, nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		if !store.Retryable(err) {
			c.logger.Warn().
				Str("email", data.Email).
				Int("attempt", attempt).
				Err(err).
				Msg("postgrest: terminal store error")
			return nil, err
		}

		if attempt >= c.cfg.Retry.MaxAttempts {
			c.logger.Warn().
				Str("email", data.Email).
				Int("attempts", attempt).
				Err(err).
				Msg("postgrest: retry budget exhausted")
			return nil, err
		}

		delay := c.cfg.Retry.Delay(attempt)
		c.logger.Debug().
			Int("attempt", attempt).
			Dur("backoff", delay).
			Err(err).
			Msg("postgrest: retrying after transient error")

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		attempt++
	}
}

// CheckEmailExists implements store.Client. The lookup is case-insensitive
// because submissions are stored with lowercased emails.
func (c *Client) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("email", "eq."+strings.ToLower(strings.TrimSpace(email)))
	query.Set("limit", "1")

	body, _, err := c.do(ctx, http.MethodGet, query, nil, nil)
	if err != nil {
		return false, err
	}

	var rows []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return false, fmt.Errorf("postgrest: decode existence response: %w", err)
	}
	return len(rows) > 0, nil
}

// Count implements store.Client using an exact-count range request; the
// total is carried in the Content-Range header.
func (c *Client) Count(ctx context.Context, filters *models.Filters) (int, error) {
	query := url.Values{}
	query.Set("select", "id")
	applyFilters(query, filters)

	headers := http.Header{}
	headers.Set("Prefer", "count=exact")
	headers.Set("Range-Unit", "items")
	headers.Set("Range", "0-0")

	_, resp, err := c.do(ctx, http.MethodGet, query, nil, headers)
	if err != nil {
		return 0, err
	}
	return parseContentRange(resp.Header.Get("Content-Range"))
}

// Stats implements store.Client, fanning the component counts out
// concurrently. ThisMonth counts submissions at or after the first instant
// of the current calendar month in local time.
func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{SourceBreakdown: make(map[string]int)}
	subscribed := true
	now := c.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := c.Count(gctx, nil)
		if err != nil {
			return err
		}
		stats.Total = n
		return nil
	})
	g.Go(func() error {
		n, err := c.Count(gctx, &models.Filters{SubscribedNewsletter: &subscribed})
		if err != nil {
			return err
		}
		stats.NewsletterSubscribers = n
		return nil
	})
	g.Go(func() error {
		n, err := c.Count(gctx, &models.Filters{SubmittedAfter: &monthStart})
		if err != nil {
			return err
		}
		stats.ThisMonth = n
		return nil
	})
	for _, source := range []string{models.SourceHero, models.SourceFooter, models.SourceCoursePage, models.SourceUnknown} {
		source := source
		g.Go(func() error {
			n, err := c.Count(gctx, &models.Filters{Source: source})
			if err != nil {
				return err
			}
			mu.Lock()
			if n > 0 {
				stats.SourceBreakdown[source] = n
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

type insertPayload struct {
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	SubscribedNewsletter bool      `json:"subscribed_newsletter"`
	Message              *string   `json:"message,omitempty"`
	Company              *string   `json:"company,omitempty"`
	Phone                *string   `json:"phone,omitempty"`
	Source               string    `json:"source"`
	SubmittedAt          time.Time `json:"submitted_at"`
}

func (c *Client) insert(ctx context.Context, payload insertPayload) (*models.SubmissionRecord, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("postgrest: encode payload: %w", err)
	}

	headers := http.Header{}
	headers.Set("Prefer", "return=representation")

	body, _, err := c.do(ctx, http.MethodPost, nil, bytes.NewReader(encoded), headers)
	if err != nil {
		return nil, err
	}

	var rows []models.SubmissionRecord
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("postgrest: decode insert response: %w", err)
	}
	if len(rows) == 0 {
		return nil, store.WrapTransient(errors.New("postgrest: insert returned no representation"))
	}
	return &rows[0], nil
}

// storeError is the error document the endpoint returns on failure.
type storeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// do performs one request against the submissions table and maps failures
// into the store taxonomy. Server errors and rate limiting are marked
// transient; everything else is translated by backend code.
func (c *Client) do(ctx context.Context, method string, query url.Values, body io.Reader, headers http.Header) ([]byte, *http.Response, error) {
	endpoint := c.cfg.BaseURL + "/rest/v1/" + c.cfg.Table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, fmt.Errorf("postgrest: build request: %w", err)
	}
	req.Header.Set("apikey", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, err
		}
		return nil, nil, store.WrapTransient(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, store.WrapTransient(fmt.Errorf("postgrest: read response: %w", err))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return payload, resp, nil
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, resp, store.WrapTransient(fmt.Errorf("postgrest: status %d: %s", resp.StatusCode, truncate(payload)))
	}

	var backend storeError
	if err := json.Unmarshal(payload, &backend); err != nil || backend.Code == "" {
		return nil, resp, store.TranslateCode("", fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(payload)))
	}
	return nil, resp, store.TranslateCode(backend.Code, backend.Message)
}

func applyFilters(query url.Values, filters *models.Filters) {
	if filters == nil {
		return
	}
	if filters.SubscribedNewsletter != nil {
		query.Set("subscribed_newsletter", "eq."+strconv.FormatBool(*filters.SubscribedNewsletter))
	}
	if filters.Source != "" {
		query.Set("source", "eq."+filters.Source)
	}
	if filters.SubmittedAfter != nil {
		query.Add("submitted_at", "gte."+filters.SubmittedAfter.Format(time.RFC3339))
	}
	if filters.SubmittedBefore != nil {
		query.Add("submitted_at", "lte."+filters.SubmittedBefore.Format(time.RFC3339))
	}
}

// parseContentRange extracts the total from a "0-0/123" style header.
func parseContentRange(header string) (int, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, store.WrapTransient(fmt.Errorf("postgrest: malformed Content-Range %q", header))
	}
	total := header[idx+1:]
	if total == "*" {
		return 0, store.WrapTransient(fmt.Errorf("postgrest: count missing in Content-Range %q", header))
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, store.WrapTransient(fmt.Errorf("postgrest: parse Content-Range %q: %w", header, err))
	}
	return n, nil
}

func truncate(payload []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(payload))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
