//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

package lexical

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ansera-ai/ansera/chunk"
	"github.com/ansera-ai/ansera/log"
	"github.com/ansera-ai/ansera/vectorstore"
)

// defaultTTL is how long a built index stays valid before a lazy rebuild.
const defaultTTL = time.Hour

// Cache builds and caches one BM25 index per tenant. Expired entries are
// rebuilt on next use; concurrent builds for the same tenant are collapsed
// into one.
type Cache struct {
	lister vectorstore.Lister
	chunks *chunk.Store
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	group   singleflight.Group
}

type cacheEntry struct {
	index   *Index
	builtAt time.Time
}

// CacheOption configures Cache.
type CacheOption func(*Cache)

// WithTTL sets the index expiry.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates an index cache. lister enumerates a tenant's chunk IDs
// and chunks resolves their text.
func NewCache(lister vectorstore.Lister, chunks *chunk.Store, opts ...CacheOption) *Cache {
	c := &Cache{
		lister:  lister,
		chunks:  chunks,
		ttl:     defaultTTL,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the tenant's index, building it if absent or expired.
func (c *Cache) Get(ctx context.Context, tenantID string) (*Index, error) {
	c.mu.RLock()
	entry, ok := c.entries[tenantID]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.builtAt) < c.ttl {
		return entry.index, nil
	}

	v, err, _ := c.group.Do(tenantID, func() (any, error) {
		// Another caller may have rebuilt while we waited on the group.
		c.mu.RLock()
		entry, ok := c.entries[tenantID]
		c.mu.RUnlock()
		if ok && c.now().Sub(entry.builtAt) < c.ttl {
			return entry.index, nil
		}

		index, err := c.build(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[tenantID] = &cacheEntry{index: index, builtAt: c.now()}
		c.mu.Unlock()
		return index, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// Invalidate drops the tenant's cached index, forcing a rebuild on next
// use. Ingestion should call this after changing a tenant's corpus.
func (c *Cache) Invalidate(tenantID string) {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
}

func (c *Cache) build(ctx context.Context, tenantID string) (*Index, error) {
	start := c.now()
	ids, err := c.lister.ListChunkIDs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list chunk ids for tenant %s: %w", tenantID, err)
	}
	if len(ids) == 0 {
		return Build(nil), nil
	}
	chunks, warnings, err := c.chunks.Fetch(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch chunk texts for tenant %s: %w", tenantID, err)
	}
	if len(warnings) > 0 {
		log.Warnf("lexical index build for tenant %s skipped %d chunks", tenantID, len(warnings))
	}
	docs := make([]Doc, 0, len(chunks))
	for _, ch := range chunks {
		docs = append(docs, Doc{ID: ch.ID, Text: ch.Text})
	}
	index := Build(docs)
	log.Infof("built lexical index for tenant %s: %d docs in %s",
		tenantID, index.Len(), c.now().Sub(start))
	return index, nil
}
