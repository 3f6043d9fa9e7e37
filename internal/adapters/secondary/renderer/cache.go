package renderer

import (
	"container/heap"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/fredcamaral/bulletin/internal/domain/entities"
	"github.com/fredcamaral/bulletin/internal/domain/ports"
)

// DefaultCacheBytes bounds the rendered HTML kept by NewCachedRenderer when no size is given
const DefaultCacheBytes = 4 << 20

type cacheEntry struct {
	html string
	heap *heapEntry
}

// CachedRenderer memoizes rendered markdown by payload hash. Kiosk clients
// re-request the same handful of slides on every tick, so most renders are hits.
type CachedRenderer struct {
	next ports.SlideRenderer

	mu       sync.Mutex
	entries  map[string]*cacheEntry
	lru      cacheHeap
	clock    uint64
	bytes    int64
	maxBytes int64

	hits      int64
	misses    int64
	evictions int64
}

// NewCachedRenderer wraps next with a cache holding at most maxBytes of HTML
func NewCachedRenderer(next ports.SlideRenderer, maxBytes int64) *CachedRenderer {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}

	c := &CachedRenderer{
		next:     next,
		entries:  make(map[string]*cacheEntry),
		maxBytes: maxBytes,
	}
	heap.Init(&c.lru)
	return c
}

// RenderMarkdown returns the cached HTML for markdown, rendering it on a miss
func (c *CachedRenderer) RenderMarkdown(markdown string) (string, error) {
	key := cacheKey(markdown)

	if html, ok := c.get(key); ok {
		return html, nil
	}

	html, err := c.next.RenderMarkdown(markdown)
	if err != nil {
		return "", err
	}

	c.set(key, html)
	return html, nil
}

// RenderSlide renders the slide payload through the cache
func (c *CachedRenderer) RenderSlide(slide entities.Slide) (ports.RenderedSlide, error) {
	html, err := c.RenderMarkdown(slide.Payload)
	if err != nil {
		return ports.RenderedSlide{}, fmt.Errorf("slide %s: %w", slide.ID, err)
	}

	return ports.RenderedSlide{Slide: slide, HTML: html}, nil
}

// Stats returns a copy of the cache counters
func (c *CachedRenderer) Stats() entities.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := entities.CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.entries),
		Bytes:     c.bytes,
		MaxBytes:  c.maxBytes,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *CachedRenderer) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false
	}

	c.hits++
	c.touch(entry)
	return entry.html, true
}

func (c *CachedRenderer) set(key, html string) {
	size := int64(len(html))
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent miss may have stored it already
	if entry, ok := c.entries[key]; ok {
		c.touch(entry)
		return
	}

	for c.bytes+size > c.maxBytes && c.lru.Len() > 0 {
		c.evictOldest()
	}

	c.clock++
	entry := &cacheEntry{
		html: html,
		heap: &heapEntry{key: key, lastAccess: c.clock},
	}
	heap.Push(&c.lru, entry.heap)
	c.entries[key] = entry
	c.bytes += size
}

// touch must be called with mu held
func (c *CachedRenderer) touch(entry *cacheEntry) {
	c.clock++
	entry.heap.lastAccess = c.clock
	heap.Fix(&c.lru, entry.heap.index)
}

// evictOldest must be called with mu held
func (c *CachedRenderer) evictOldest() {
	oldest := heap.Pop(&c.lru).(*heapEntry)
	if entry, ok := c.entries[oldest.key]; ok {
		c.bytes -= int64(len(entry.html))
		delete(c.entries, oldest.key)
		c.evictions++
	}
}

func cacheKey(markdown string) string {
	sum := sha256.Sum256([]byte(markdown))
	return hex.EncodeToString(sum[:])
}

var _ ports.SlideRenderer = (*CachedRenderer)(nil)
