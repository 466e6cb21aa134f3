//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

package retrieval

import (
	"context"
	"fmt"

	"github.com/ansera-ai/ansera/embedder"
	"github.com/ansera-ai/ansera/lexical"
	"github.com/ansera-ai/ansera/log"
	"github.com/ansera-ai/ansera/vectorstore"
)

// Hybrid retrieves candidate chunk IDs for a single query variation by
// fusing dense vector search with BM25 lexical search. Either source may
// fail independently; the other still serves. Only when both fail does
// retrieval error out.
type Hybrid struct {
	embedder embedder.Embedder
	searcher vectorstore.Searcher
	lexical  *lexical.Cache
}

// NewHybrid creates a hybrid retriever. lexCache may be nil, in which
// case only dense retrieval runs.
func NewHybrid(emb embedder.Embedder, searcher vectorstore.Searcher, lexCache *lexical.Cache) *Hybrid {
	return &Hybrid{embedder: emb, searcher: searcher, lexical: lexCache}
}

// Retrieve returns up to topM fused chunk IDs for query within the
// tenant's corpus. denseTopK bounds each source's candidate list before
// fusion and rrfK is the fusion smoothing constant. Warnings describe any
// degraded source.
func (h *Hybrid) Retrieve(ctx context.Context, tenantID, query string, denseTopK, rrfK, topM int) ([]string, []string, error) {
	var warnings []string
	failed := 0

	denseIDs, err := h.dense(ctx, tenantID, query, denseTopK)
	if err != nil {
		log.Warnf("dense retrieval failed for tenant %s: %v", tenantID, err)
		warnings = append(warnings, fmt.Sprintf("dense retrieval failed: %v", err))
		failed++
	}

	lexicalIDs, err := h.sparse(ctx, tenantID, query, denseTopK)
	if err != nil {
		log.Warnf("lexical retrieval failed for tenant %s: %v", tenantID, err)
		warnings = append(warnings, fmt.Sprintf("lexical retrieval failed: %v", err))
		failed++
	}

	sources := 1
	if h.lexical != nil {
		sources = 2
	}
	if failed == sources {
		return nil, warnings, fmt.Errorf("hybrid retrieval: all sources failed for tenant %s", tenantID)
	}

	fused := FuseRRF(rrfK, denseIDs, lexicalIDs)
	if topM > 0 && len(fused) > topM {
		fused = fused[:topM]
	}
	ids := make([]string, 0, len(fused))
	for _, f := range fused {
		ids = append(ids, f.ID)
	}
	return ids, warnings, nil
}

func (h *Hybrid) dense(ctx context.Context, tenantID, query string, topK int) ([]string, error) {
	vector, err := h.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	scored, err := h.searcher.Search(ctx, vector, tenantID, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	ids := make([]string, 0, len(scored))
	for _, s := range scored {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

func (h *Hybrid) sparse(ctx context.Context, tenantID, query string, topK int) ([]string, error) {
	if h.lexical == nil {
		return nil, nil
	}
	index, err := h.lexical.Get(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("lexical index: %w", err)
	}
	scored := index.Score(query, topK)
	ids := make([]string, 0, len(scored))
	for _, s := range scored {
		ids = append(ids, s.ID)
	}
	return ids, nil
}
