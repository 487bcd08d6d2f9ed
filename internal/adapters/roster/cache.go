package roster

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"mccenter/internal/domain/roster"
)

// DefaultCacheTTL is how long a cached roster answer is served.
const DefaultCacheTTL = 2 * time.Minute

const keyPrefix = "mccenter:roster:"

// CachedSource is a read-through Redis cache in front of another Source.
// Redis failures are logged and fall through to the wrapped source.
type CachedSource struct {
	next Source
	rdb  redis.Cmdable
	ttl  time.Duration
}

// NewCachedSource wraps next with a cache held in rdb.
// PRE: next and rdb are non-nil
// POST: ttl <= 0 falls back to DefaultCacheTTL
func NewCachedSource(next Source, rdb redis.Cmdable, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{next: next, rdb: rdb, ttl: ttl}
}

// ListStudents serves filter from the cache, loading and storing it on a miss.
// PRE: none
// POST: Returns the same students the wrapped source would, possibly up to ttl old
func (c *CachedSource) ListStudents(ctx context.Context, filter roster.Filter) ([]roster.Student, error) {
	key := CacheKey(filter)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var students []roster.Student
		if err := sonic.Unmarshal(raw, &students); err == nil {
			return students, nil
		}
		slog.Warn("roster_cache_corrupt", "key", key)
	case !errors.Is(err, redis.Nil):
		slog.Warn("roster_cache_get_failed", "key", key, "error", err)
	}

	students, err := c.next.ListStudents(ctx, filter)
	if err != nil {
		return nil, err
	}
	if payload, err := sonic.Marshal(students); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			slog.Warn("roster_cache_set_failed", "key", key, "error", err)
		}
	}
	return students, nil
}

// CacheKey derives a stable key from a filter. Class order, case and
// spacing do not change the key.
func CacheKey(filter roster.Filter) string {
	classes := filter.ClassKeys()
	slices.Sort(classes)
	email := "any"
	if filter.EmailEnabled != nil {
		email = strconv.FormatBool(*filter.EmailEnabled)
	}
	parts := []string{
		strings.Join(classes, "|"),
		strings.ToLower(strings.TrimSpace(filter.Status)),
		email,
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(sum[:])
}
