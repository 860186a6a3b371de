// Package stub implements an in-memory submission store for local
// development when the remote endpoint is not configured. It is
// deterministic, enforces the same email uniqueness contract as the remote
// store and exercises the same error taxonomy, so the rest of the system
// behaves identically in the unconfigured mode.
package stub

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/waitlist-service/internal/models"
	"github.com/example/waitlist-service/internal/store"
)

// Option customises the stub at construction time.
type Option func(*Client)

// WithClock overrides the clock used for submission timestamps, useful for
// deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRecords seeds the store with existing submissions, e.g. to give the
// landing page a non-zero counter during local development.
func WithRecords(records ...models.SubmissionRecord) Option {
	return func(c *Client) {
		for _, record := range records {
			rec := record
			if rec.ID == "" {
				rec.ID = uuid.NewString()
			}
			key := strings.ToLower(strings.TrimSpace(rec.Email))
			if _, exists := c.byEmail[key]; exists {
				continue
			}
			c.records = append(c.records, rec)
			c.byEmail[key] = len(c.records) - 1
		}
	}
}

// Client is the in-memory store.Client implementation. Safe for concurrent
// use.
type Client struct {
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	records []models.SubmissionRecord
	byEmail map[string]int
}

// New constructs an empty stub store.
func New(logger zerolog.Logger, opts ...Option) *Client {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	c := &Client{
		logger:  logger,
		now:     time.Now,
		byEmail: make(map[string]int),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Submit implements store.Client. Email uniqueness is enforced
// case-insensitively, mirroring the remote constraint.
func (c *Client) Submit(ctx context.Context, data models.FormData, source string) (*models.SubmissionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if source == "" {
		source = models.SourceUnknown
	}

	key := strings.ToLower(strings.TrimSpace(data.Email))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byEmail[key]; exists {
		c.logger.Debug().Str("email", key).Msg("stub store: duplicate email rejected")
		return nil, store.ErrDuplicateEmail
	}

	record := models.SubmissionRecord{
		ID:                   uuid.NewString(),
		Name:                 data.Name,
		Email:                key,
		SubscribedNewsletter: data.SubscribedNewsletter,
		Message:              data.Message,
		Company:              data.Company,
		Phone:                data.Phone,
		Source:               source,
		SubmittedAt:          c.now().UTC(),
	}

	c.records = append(c.records, record)
	c.byEmail[key] = len(c.records) - 1

	c.logger.Debug().Str("email", key).Str("source", source).Msg("stub store: submission stored")
	out := record
	return &out, nil
}

// CheckEmailExists implements store.Client.
func (c *Client) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := strings.ToLower(strings.TrimSpace(email))

	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.byEmail[key]
	return exists, nil
}

// Count implements store.Client.
func (c *Client) Count(ctx context.Context, filters *models.Filters) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for i := range c.records {
		if matches(c.records[i], filters) {
			count++
		}
	}
	return count, nil
}

// Stats implements store.Client. ThisMonth uses the first instant of the
// current calendar month in local time, like the remote client.
func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := c.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := &models.Stats{
		Total:           len(c.records),
		SourceBreakdown: make(map[string]int),
	}
	for i := range c.records {
		record := &c.records[i]
		if record.SubscribedNewsletter {
			stats.NewsletterSubscribers++
		}
		if !record.SubmittedAt.Before(monthStart) {
			stats.ThisMonth++
		}
		source := record.Source
		if source == "" {
			source = models.SourceUnknown
		}
		stats.SourceBreakdown[source]++
	}
	return stats, nil
}

func matches(record models.SubmissionRecord, filters *models.Filters) bool {
	if filters == nil {
		return true
	}
	if filters.SubscribedNewsletter != nil && record.SubscribedNewsletter != *filters.SubscribedNewsletter {
		return false
	}
	if filters.Source != "" && record.Source != filters.Source {
		return false
	}
	if filters.SubmittedAfter != nil && record.SubmittedAt.Before(*filters.SubmittedAfter) {
		return false
	}
	if filters.SubmittedBefore != nil && record.SubmittedAt.After(*filters.SubmittedBefore) {
		return false
	}
	return true
}
