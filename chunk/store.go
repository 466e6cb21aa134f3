//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

package chunk

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/ansera-ai/ansera/log"
)

// defaultFetchParallelism limits concurrent blob reads per Fetch call.
const defaultFetchParallelism = 10

// Store fetches chunk text from blob storage with caching and a bounded
// worker pool.
type Store struct {
	blob        Blob
	cache       Cache
	resolver    SourceResolver
	parallelism int
}

// StoreOption configures Store.
type StoreOption func(*Store)

// WithCache sets the text cache. Without one every fetch hits storage.
func WithCache(c Cache) StoreOption {
	return func(s *Store) {
		s.cache = c
	}
}

// WithSourceResolver sets the source identifier resolver. Without one the
// source segment of the chunk ID is used.
func WithSourceResolver(r SourceResolver) StoreOption {
	return func(s *Store) {
		s.resolver = r
	}
}

// WithFetchParallelism sets how many chunks are fetched concurrently.
func WithFetchParallelism(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// NewStore creates a chunk store over the given blob backend.
func NewStore(blob Blob, opts ...StoreOption) *Store {
	s := &Store{
		blob:        blob,
		parallelism: defaultFetchParallelism,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch resolves the given chunk IDs to chunks with text, preserving input
// order. Individual failures are tolerated: missing or failed chunks are
// skipped and reported as warnings. An error is returned only when nothing
// could be fetched at all.
func (s *Store) Fetch(ctx context.Context, tenantID string, ids []string) ([]Chunk, []string, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	pool, err := ants.NewPool(s.parallelism)
	if err != nil {
		return nil, nil, fmt.Errorf("create fetch worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  = make([]*Chunk, len(ids))
		warnings []string
	)
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		log.Warnf("%s", msg)
		mu.Lock()
		warnings = append(warnings, msg)
		mu.Unlock()
	}

	for i, id := range ids {
		idx, chunkID := i, id
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			c, err := s.fetchOne(ctx, tenantID, chunkID)
			if err != nil {
				warn("fetch chunk %s: %v", chunkID, err)
				return
			}
			mu.Lock()
			results[idx] = c
			mu.Unlock()
		}); err != nil {
			wg.Done()
			warn("submit fetch for chunk %s: %v", chunkID, err)
		}
	}
	wg.Wait()

	chunks := make([]Chunk, 0, len(ids))
	for _, c := range results {
		if c != nil {
			chunks = append(chunks, *c)
		}
	}
	if len(chunks) == 0 {
		return nil, warnings, fmt.Errorf("no chunk text could be fetched for %d ids", len(ids))
	}
	return chunks, warnings, nil
}

func (s *Store) fetchOne(ctx context.Context, tenantID, id string) (*Chunk, error) {
	ref, err := ParseID(id, tenantID)
	if err != nil {
		return nil, err
	}

	text, cached := "", false
	if s.cache != nil {
		text, cached = s.cache.Get(ctx, id)
	}
	if !cached {
		text, err = s.blob.Get(ctx, ref.ObjectPath())
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("%w at %s", ErrNotFound, ref.ObjectPath())
			}
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(ctx, id, text)
		}
	}

	source := ref.SourceID()
	if s.resolver != nil {
		resolved, err := s.resolver.ResolveSource(ctx, ref)
		if err != nil {
			log.Warnf("resolve source for chunk %s: %v", id, err)
		} else if resolved != "" {
			source = resolved
		}
	}
	return &Chunk{ID: id, Text: text, SourceIdentifier: source}, nil
}
