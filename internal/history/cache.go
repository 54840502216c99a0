package history

import (
	"context"
	"errors"
	"time"

	"github.com/suPer8Hu/review-insights/internal/logger"
	"gorm.io/gorm"
)

const DefaultFreshness = 24 * time.Hour

type Store interface {
	Insert(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	FindFresh(ctx context.Context, key string, since time.Time) (*Record, error)
	ListRecent(ctx context.Context, userID uint64, domain, category string, since time.Time, limit int) ([]Record, error)
}

// Index is an optional fast path from fingerprint to record id.
type Index interface {
	GetFingerprint(ctx context.Context, fp string) (string, bool, error)
	SetFingerprint(ctx context.Context, fp, recordID string, ttl time.Duration) error
}

// Cache answers "was this exact request answered recently". The store
// stays authoritative; the index only shortcuts the lookup.
type Cache struct {
	store     Store
	index     Index
	freshness time.Duration
	now       func() time.Time
	log       logger.Logger
}

type CacheOption func(*Cache)

func WithIndex(idx Index) CacheOption {
	return func(c *Cache) { c.index = idx }
}

func WithFreshness(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.freshness = d
		}
	}
}

func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(store Store, log logger.Logger, opts ...CacheOption) *Cache {
	c := &Cache{
		store:     store,
		freshness: DefaultFreshness,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Lookup returns the most recent fresh record for fp, or nil.
func (c *Cache) Lookup(ctx context.Context, fp *string) (*Record, error) {
	if fp == nil || *fp == "" {
		return nil, nil
	}
	since := c.now().Add(-c.freshness)

	if c.index != nil {
		if rec := c.fromIndex(ctx, *fp, since); rec != nil {
			return rec, nil
		}
	}
	return c.store.FindFresh(ctx, *fp, since)
}

func (c *Cache) fromIndex(ctx context.Context, fp string, since time.Time) *Record {
	id, ok, err := c.index.GetFingerprint(ctx, fp)
	if err != nil {
		c.log.Warn("fingerprint index read failed", map[string]any{"error": err})
		return nil
	}
	if !ok {
		return nil
	}
	rec, err := c.store.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.log.Warn("indexed record load failed", map[string]any{"record_id": id, "error": err})
		}
		return nil
	}
	if rec.CacheKey == nil || *rec.CacheKey != fp || rec.CreatedAt.Before(since) {
		return nil
	}
	return rec
}

// Remember indexes a cacheable record for the rest of its freshness window.
func (c *Cache) Remember(ctx context.Context, rec *Record) {
	if c.index == nil || rec == nil || rec.CacheKey == nil {
		return
	}
	ttl := rec.CreatedAt.Add(c.freshness).Sub(c.now())
	if err := c.index.SetFingerprint(ctx, *rec.CacheKey, rec.ID, ttl); err != nil {
		c.log.Warn("fingerprint index write failed", map[string]any{"record_id": rec.ID, "error": err})
	}
}
