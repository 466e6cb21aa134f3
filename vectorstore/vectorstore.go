//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package vectorstore defines the dense retrieval interfaces over an
// external vector index.
package vectorstore

import "context"

// ScoredID is a chunk ID with its similarity score, higher is better.
type ScoredID struct {
	ID    string
	Score float64
}

// Searcher performs nearest-neighbor search restricted to one tenant's
// chunks.
type Searcher interface {
	Search(ctx context.Context, vector []float64, tenantID string, topK int) ([]ScoredID, error)
}

// Lister enumerates all chunk IDs indexed for a tenant. It backs lexical
// index construction.
type Lister interface {
	ListChunkIDs(ctx context.Context, tenantID string) ([]string, error)
}
