//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package embedder provides the text embedding abstraction used by dense
// retrieval.
package embedder

import "context"

// Embedder converts text into dense vectors. Queries and documents may be
// embedded with different task hints, so both operations are explicit.
type Embedder interface {
	// EmbedQuery generates an embedding for a search query.
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	// EmbedDocument generates an embedding for an indexed document.
	EmbedDocument(ctx context.Context, text string) ([]float64, error)
	// GetDimensions returns the dimensionality of the embedding vectors,
	// or -1 when unknown.
	GetDimensions() int
}
