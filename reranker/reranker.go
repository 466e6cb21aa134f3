//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package reranker defines the relevance reranking interface applied to
// retrieved chunks before context assembly.
package reranker

import (
	"context"

	"github.com/ansera-ai/ansera/chunk"
)

// Query is the reranking query.
type Query struct {
	// Text is the query the candidates are scored against.
	Text string
}

// Result is a candidate chunk with its relevance score.
type Result struct {
	Chunk chunk.Chunk
	Score float64
}

// Reranker reorders candidates by relevance to the query, best first.
type Reranker interface {
	Rerank(ctx context.Context, query *Query, results []*Result) ([]*Result, error)
}
