// Package cache persists upstream registry responses on disk so that the
// Geonorge registries are not hit on every analysis request. Entries carry
// a fetch timestamp and a TTL counted in whole days.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Clock returns the current time. Injected so tests can age entries
// without sleeping.
type Clock func() time.Time

type envelope struct {
	FetchedAt time.Time       `json:"fetchedAt"`
	Payload   json.RawMessage `json:"payload"`
}

type Cache struct {
	dir string
	now Clock
}

func New(dir string) *Cache {
	return &Cache{dir: dir, now: time.Now}
}

// NewWithClock is used by tests to control entry age.
func NewWithClock(dir string, now Clock) *Cache {
	return &Cache{dir: dir, now: now}
}

// GetOrFetch returns the cached payload for key if it is fresh, otherwise
// calls fetch and stores the result. A stale entry is still served when the
// refresh fails, so a registry outage degrades to old data instead of an
// error.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttlDays int, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	path := c.entryPath(key)
	cached, cachedOK := c.read(path)
	if cachedOK && !c.stale(cached.FetchedAt, ttlDays) {
		return cached.Payload, nil
	}

	payload, err := fetch(ctx)
	if err != nil {
		if cachedOK {
			zap.L().Warn("cache refresh failed, serving stale entry",
				zap.String("key", key), zap.Error(err))
			return cached.Payload, nil
		}
		return nil, eris.Wrapf(err, "cache: fetch %s", key)
	}

	if err := c.write(path, envelope{FetchedAt: c.now().UTC(), Payload: payload}); err != nil {
		zap.L().Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return payload, nil
}

// A whole-days difference strictly greater than the TTL marks the entry
// stale, so a 7 day TTL serves an entry fetched exactly 7 days ago.
func (c *Cache) stale(fetchedAt time.Time, ttlDays int) bool {
	days := int(c.now().UTC().Sub(fetchedAt.UTC()).Hours() / 24)
	return days > ttlDays
}

func (c *Cache) read(path string) (envelope, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

func (c *Cache) write(path string, env envelope) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return eris.Wrap(err, "cache: create dir")
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return eris.Wrap(err, "cache: marshal envelope")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return eris.Wrap(err, "cache: write entry")
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrap(err, "cache: rename entry")
	}
	return nil
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, slugify(key)+".json")
}

// Keys are often URLs; keep them readable on disk but collision safe.
func slugify(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	slug := b.String()
	if len(slug) > 80 {
		slug = slug[:80]
	}
	return fmt.Sprintf("%s-%08x", strings.Trim(slug, "-"), h.Sum32())
}

// GetJSON fetches through cache and decodes the payload into T.
func GetJSON[T any](ctx context.Context, c *Cache, key string, ttlDays int, fetch func(context.Context) ([]byte, error)) (T, error) {
	var out T
	raw, err := c.GetOrFetch(ctx, key, ttlDays, fetch)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, eris.Wrapf(err, "cache: decode %s", key)
	}
	return out, nil
}
