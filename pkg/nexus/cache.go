package nexus

import (
	"net/url"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/modseek/modseek/pkg/config"
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

type cacheEntry struct {
	compressed []byte
	expires    time.Time
}

// Cache is an in-memory URL-keyed response cache. Bodies are held
// zstd-compressed; expiry is per upstream host.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     config.CacheConfig
	now     func() time.Time
}

// NewCache creates an empty cache using the configured per-host TTLs.
func NewCache(ttl config.CacheConfig) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached body for rawURL, if present and not expired.
// Expired entries are dropped on access.
func (c *Cache) Get(rawURL string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[rawURL]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().After(entry.expires) {
		c.Delete(rawURL)
		return nil, false
	}

	body, err := zstdDecoder.DecodeAll(entry.compressed, nil)
	if err != nil {
		c.Delete(rawURL)
		return nil, false
	}
	return body, true
}

// Put stores a response body under its URL.
func (c *Cache) Put(rawURL string, body []byte) {
	entry := cacheEntry{
		compressed: zstdEncoder.EncodeAll(body, nil),
		expires:    c.now().Add(c.ttlFor(rawURL)),
	}
	c.mu.Lock()
	c.entries[rawURL] = entry
	c.mu.Unlock()
}

// Delete evicts a single URL.
func (c *Cache) Delete(rawURL string) {
	c.mu.Lock()
	delete(c.entries, rawURL)
	c.mu.Unlock()
}

// Len reports the number of cached entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) ttlFor(rawURL string) time.Duration {
	u, err := url.Parse(rawURL)
	if err != nil {
		return c.ttl.DefaultTTL.Duration
	}
	return c.ttl.TTLForHost(u.Hostname())
}
