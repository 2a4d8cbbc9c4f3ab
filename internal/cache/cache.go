package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the cache interface
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// SlotKey builds the cache key for a doctor's free slots on a given day.
func SlotKey(doctorID uuid.UUID, date time.Time) string {
	return "slots:" + doctorID.String() + ":" + date.UTC().Format("2006-01-02")
}
