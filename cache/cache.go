package cache

import (
	"context"
	"time"

	"github.com/jmhodges/clock"
)

var clk = clock.New()

// Cache is the transient key-value store backing note list snapshots. Entries
// expire after the given TTL; a missing or expired key is reported as
// ok=false, not as an error.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
}
