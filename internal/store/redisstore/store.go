package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const fingerprintPrefix = "insights:fp:"

// Store indexes query fingerprints to the history record that answered them.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return NewFromClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

func NewFromClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// GetFingerprint returns the record id stored for fp, if any.
func (s *Store) GetFingerprint(ctx context.Context, fp string) (string, bool, error) {
	id, err := s.rdb.Get(ctx, fingerprintPrefix+fp).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *Store) SetFingerprint(ctx context.Context, fp, recordID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, fingerprintPrefix+fp, recordID, ttl).Err()
}
