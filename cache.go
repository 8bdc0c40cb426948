// Bounded cache of rendered pages.
//
// The cache is an arena of Capacity slots plus an index from (document,
// page) to slot. Inserting into a full arena evicts the entry that was
// inserted first, whatever has been read since, and revokes its handle
// before the slot is reused. Invalidate and Clear revoke as they go. No
// entry ever leaves the arena without its handle being revoked, so the
// number of live handles owned by the cache never exceeds Capacity.
//
// Rendering happens outside the lock. A render that finishes after its
// document was invalidated, or after another caller filled the same key,
// revokes its own fresh handle instead of inserting it.
package binder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Defaults for CacheConfig.
const (
	DefaultCacheCapacity = 50
	DefaultRenderScale   = 1.5
)

// PageKey identifies one rendered page.
type PageKey struct {
	Document string
	Page     int
}

// CacheConfig holds PageCache options.
type CacheConfig struct {
	Capacity int          // Maximum entries (default 50)
	Scale    float64      // Render scale (default 1.5)
	Logger   *slog.Logger // Defaults to discarding
}

type slot struct {
	key  PageKey
	url  string
	data []byte
	seq  uint64 // insertion order
	used bool
}

// PageCache maps rendered pages to handles with a fixed capacity.
type PageCache struct {
	mu      sync.Mutex
	slots   []slot
	free    []int
	index   map[PageKey]int
	next    uint64            // insertion counter
	clock   uint64            // invalidation counter
	dropped map[string]uint64 // document -> clock at last Invalidate
	cleared uint64            // clock at last Clear

	renderer Renderer
	handles  *Handles
	scale    float64
	log      *slog.Logger
}

// NewPageCache returns an empty cache that renders misses with renderer
// and registers the results in handles.
func NewPageCache(renderer Renderer, handles *Handles, config CacheConfig) *PageCache {
	if config.Capacity < 1 {
		config.Capacity = DefaultCacheCapacity
	}
	if config.Scale <= 0 {
		config.Scale = DefaultRenderScale
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	c := &PageCache{
		slots:    make([]slot, config.Capacity),
		free:     make([]int, 0, config.Capacity),
		index:    make(map[PageKey]int, config.Capacity),
		dropped:  map[string]uint64{},
		renderer: renderer,
		handles:  handles,
		scale:    config.Scale,
		log:      config.Logger,
	}
	for i := config.Capacity - 1; i >= 0; i-- {
		c.free = append(c.free, i)
	}
	return c
}

// GetOrRender returns the handle URL of a page of doc, rendering it on a
// miss. Render failures are returned wrapped in ErrRender; callers are
// expected to show Placeholder instead.
func (c *PageCache) GetOrRender(ctx context.Context, doc Document, page int) (string, error) {
	url, _, err := c.get(ctx, doc, page, c.epoch())
	return url, err
}

// epoch returns the invalidation clock. Callers that look a document up
// before rendering it read the epoch first, so that an Invalidate landing
// between the lookup and the insert discards the render.
func (c *PageCache) epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock
}

// get is GetOrRender that also returns the image bytes. Renders are
// discarded if doc was invalidated or the cache cleared after start.
func (c *PageCache) get(ctx context.Context, doc Document, page int, start uint64) (string, []byte, error) {
	key := PageKey{doc.ID, page}

	c.mu.Lock()
	if i, ok := c.index[key]; ok {
		s := c.slots[i]
		c.mu.Unlock()
		return s.url, s.data, nil
	}
	c.mu.Unlock()

	if page < 1 || page > doc.Pages {
		return "", nil, fmt.Errorf("%w: page %d of %d", ErrInvalidRange, page, doc.Pages)
	}

	img, err := c.renderer.Render(ctx, doc.Source, page, c.scale)
	if err != nil {
		c.log.Error("render failed", "document", doc.ID, "page", page, "error", err)
		return "", nil, fmt.Errorf("%w: document %s page %d: %w", ErrRender, doc.ID, page, err)
	}
	url := c.handles.Create(img)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dropped[doc.ID] > start || c.cleared > start {
		c.handles.Revoke(url)
		return "", nil, fmt.Errorf("%w: document %s was removed while rendering", ErrNotFound, doc.ID)
	}
	if i, ok := c.index[key]; ok {
		c.handles.Revoke(url)
		s := c.slots[i]
		return s.url, s.data, nil
	}

	c.insert(key, url, img)
	return url, img, nil
}

// insert places an entry, evicting the oldest one if the arena is full.
// Called with c.mu held.
func (c *PageCache) insert(key PageKey, url string, data []byte) {
	if len(c.free) == 0 {
		oldest := -1
		for i := range c.slots {
			if c.slots[i].used && (oldest < 0 || c.slots[i].seq < c.slots[oldest].seq) {
				oldest = i
			}
		}
		c.log.Debug("evicting page", "document", c.slots[oldest].key.Document, "page", c.slots[oldest].key.Page)
		c.release(oldest)
	}

	i := c.free[len(c.free)-1]
	c.free = c.free[:len(c.free)-1]
	c.slots[i] = slot{key: key, url: url, data: data, seq: c.next, used: true}
	c.next++
	c.index[key] = i
}

// release revokes a slot's handle and returns it to the free list.
// Called with c.mu held.
func (c *PageCache) release(i int) {
	s := c.slots[i]
	c.handles.Revoke(s.url)
	delete(c.index, s.key)
	c.slots[i] = slot{}
	c.free = append(c.free, i)
}

// Invalidate drops every page of a document and returns how many entries
// were released. Renders of the document still in flight are discarded
// when they finish.
func (c *PageCache) Invalidate(document string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clock++
	c.dropped[document] = c.clock

	n := 0
	for i := range c.slots {
		if c.slots[i].used && c.slots[i].key.Document == document {
			c.release(i)
			n++
		}
	}
	return n
}

// Clear drops every entry.
func (c *PageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clock++
	c.cleared = c.clock
	clear(c.dropped)

	for i := range c.slots {
		if c.slots[i].used {
			c.release(i)
		}
	}
}

// Len returns the number of cached pages.
func (c *PageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Capacity returns the maximum number of cached pages.
func (c *PageCache) Capacity() int {
	return len(c.slots)
}

// Contains reports whether a page is cached.
func (c *PageCache) Contains(key PageKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[key]
	return ok
}
