//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-process vector store for tests and small
// deployments.
package inmemory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ansera-ai/ansera/vectorstore"
)

type entry struct {
	id       string
	tenantID string
	vector   []float64
}

// Store keeps vectors in memory and searches them by cosine similarity.
type Store struct {
	mu      sync.RWMutex
	entries []entry
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

// Add indexes a vector under the given chunk ID and tenant.
func (s *Store) Add(id, tenantID string, vector []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry{id: id, tenantID: tenantID, vector: vector})
}

// Search implements vectorstore.Searcher.
func (s *Store) Search(ctx context.Context, vector []float64, tenantID string, topK int) ([]vectorstore.ScoredID, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var scored []vectorstore.ScoredID
	for _, e := range s.entries {
		if e.tenantID != tenantID {
			continue
		}
		sim, ok := cosine(vector, e.vector)
		if !ok {
			continue
		}
		scored = append(scored, vectorstore.ScoredID{ID: e.id, Score: sim})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// ListChunkIDs implements vectorstore.Lister.
func (s *Store) ListChunkIDs(ctx context.Context, tenantID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, e := range s.entries {
		if e.tenantID == tenantID {
			ids = append(ids, e.id)
		}
	}
	return ids, nil
}

func cosine(a, b []float64) (float64, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
