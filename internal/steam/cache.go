package steam

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// memoCache is the read-through response cache of the client.
//
// Entries are raw response bodies keyed by (endpoint, canonicalized params).
// It lives only in process memory; a restart starts cold, which is fine
// because every cached endpoint tolerates a stale-miss refetch.
type memoCache struct {
	mu      sync.Mutex
	entries map[string]memoEntry
	now     func() time.Time
}

type memoEntry struct {
	body    []byte
	expires time.Time
}

func newMemoCache() *memoCache {
	return &memoCache{entries: map[string]memoEntry{}, now: time.Now}
}

func (c *memoCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.body, true
}

func (c *memoCache) put(key string, body []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// Occasional sweep so long-gone entries don't pile up between polls.
	if len(c.entries) >= 4096 {
		now := c.now()
		for k, e := range c.entries {
			if now.After(e.expires) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[key] = memoEntry{body: body, expires: c.now().Add(ttl)}
}

// cacheKey builds a stable key from the endpoint identifier and its params.
// Params are sorted so argument order at the call site cannot split entries.
func cacheKey(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
