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
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ansera-ai/ansera/chunk"
	"github.com/ansera-ai/ansera/log"
	"github.com/ansera-ai/ansera/model"
	"github.com/ansera-ai/ansera/query"
	"github.com/ansera-ai/ansera/tenant"
)

// defaultParallelism bounds concurrent variation retrievals per round.
const defaultParallelism = 5

// Outcome is the result of an iterative retrieval run.
type Outcome struct {
	// Evidence holds the unique chunks fetched across all rounds, in
	// arrival order.
	Evidence []chunk.Chunk
	// SubQuestions are the decomposed sub-questions the run pursued.
	SubQuestions []string
	// FollowUps are the last round's suggested follow-up questions.
	FollowUps []string
	// Sufficient reports whether the final sufficiency analysis judged
	// the evidence enough to answer every sub-question.
	Sufficient bool
	// Rounds is how many retrieval rounds actually ran.
	Rounds int
	// Warnings describes degraded sources and skipped work.
	Warnings []string
}

// Controller drives retrieval rounds until the evidence is judged
// sufficient, no new queries remain, or the round and variation budgets
// run out.
type Controller struct {
	hybrid       *Hybrid
	chunks       *chunk.Store
	understander *query.Understander
	parallelism  int
}

// ControllerOption configures Controller.
type ControllerOption func(*Controller)

// WithParallelism bounds concurrent variation retrievals within a round.
func WithParallelism(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// NewController creates a round controller.
func NewController(hybrid *Hybrid, chunks *chunk.Store, understander *query.Understander, opts ...ControllerOption) *Controller {
	c := &Controller{
		hybrid:       hybrid,
		chunks:       chunks,
		understander: understander,
		parallelism:  defaultParallelism,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run decomposes originalQuery and retrieves evidence for it round by
// round. Round one pursues the sub-questions; later rounds pursue the
// follow-up questions proposed by the previous sufficiency analysis.
func (c *Controller) Run(ctx context.Context, tenantID, originalQuery string, history []model.Message, cfg tenant.Config) (*Outcome, error) {
	cfg = cfg.WithDefaults()
	subQuestions := c.understander.Decompose(ctx, originalQuery, history)
	log.Infof("retrieval for tenant %s: decomposed into %d sub-questions", tenantID, len(subQuestions))

	session := NewSession()
	analysis := query.SufficiencyResult{}
	used := 0
	rounds := 0

	for round := 0; round < cfg.MaxRounds; round++ {
		if err := ctx.Err(); err != nil {
			session.Warn(fmt.Sprintf("retrieval stopped early: %v", err))
			break
		}
		queries := subQuestions
		if round > 0 {
			queries = analysis.FollowUps
		}
		if len(queries) == 0 {
			log.Infof("retrieval round %d: no queries to pursue, stopping", round+1)
			break
		}

		variations := c.collectVariations(ctx, queries, history, cfg.VariationLimit-used)
		if len(variations) == 0 {
			session.Warn(fmt.Sprintf("variation budget of %d exhausted", cfg.VariationLimit))
			break
		}
		rounds++
		used += len(variations)
		log.Infof("retrieval round %d: %d variations (%d/%d budget used)",
			round+1, len(variations), used, cfg.VariationLimit)

		candidates := c.retrieveAll(ctx, tenantID, variations, cfg, session)
		fresh := session.Unseen(candidates)
		if len(fresh) > 0 {
			chunks, warnings, err := c.chunks.Fetch(ctx, tenantID, fresh)
			if err != nil {
				log.Warnf("retrieval round %d: fetching %d chunk texts failed: %v", round+1, len(fresh), err)
				session.Warn(fmt.Sprintf("fetching chunk texts failed: %v", err))
			} else {
				for _, w := range warnings {
					session.Warn(w)
				}
				session.AddEvidence(chunks)
			}
		}

		if len(session.Evidence()) == 0 {
			if round == 0 {
				log.Infof("retrieval round 1 produced no evidence, stopping")
				break
			}
			continue
		}

		analysis = c.understander.Sufficiency(ctx, originalQuery, subQuestions,
			preview(session.Evidence(), cfg.SufficiencyPreviewCount, cfg.SufficiencyPreviewChars))
		if analysis.Sufficient {
			log.Infof("retrieval round %d: evidence judged sufficient", round+1)
			break
		}
		if used >= cfg.VariationLimit {
			session.Warn(fmt.Sprintf("variation budget of %d exhausted", cfg.VariationLimit))
			break
		}
	}

	return &Outcome{
		Evidence:     session.Evidence(),
		SubQuestions: subQuestions,
		FollowUps:    analysis.FollowUps,
		Sufficient:   analysis.Sufficient,
		Rounds:       rounds,
		Warnings:     session.Warnings(),
	}, nil
}

// collectVariations expands queries into deduplicated variations, capped
// at remaining.
func (c *Controller) collectVariations(ctx context.Context, queries []string, history []model.Message, remaining int) []string {
	if remaining <= 0 {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, q := range queries {
		if len(out) >= remaining {
			break
		}
		for _, v := range c.understander.Variations(ctx, q, history) {
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	if len(out) > remaining {
		out = out[:remaining]
	}
	return out
}

// retrieveAll runs hybrid retrieval for every variation concurrently and
// returns the candidate IDs in variation order.
func (c *Controller) retrieveAll(ctx context.Context, tenantID string, variations []string, cfg tenant.Config, session *Session) []string {
	results := make([][]string, len(variations))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i, variation := range variations {
		g.Go(func() error {
			ids, warnings, err := c.hybrid.Retrieve(gctx, tenantID, variation,
				cfg.DenseTopK, cfg.RRFK, cfg.HybridChunksPerQuery)
			mu.Lock()
			for _, w := range warnings {
				session.Warn(w)
			}
			if err != nil {
				session.Warn(fmt.Sprintf("retrieval failed for a query variation: %v", err))
			}
			mu.Unlock()
			if err != nil {
				log.Warnf("hybrid retrieval failed for variation %q: %v", variation, err)
				return nil
			}
			results[i] = ids
			return nil
		})
	}
	_ = g.Wait()

	var candidates []string
	for _, ids := range results {
		candidates = append(candidates, ids...)
	}
	return candidates
}

// preview renders the first count evidence chunks, each cut at chars
// runes, for the sufficiency prompt.
func preview(chunks []chunk.Chunk, count, chars int) string {
	if len(chunks) > count {
		chunks = chunks[:count]
	}
	parts := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		text := ch.Text
		if len(text) > chars {
			text = text[:chars]
		}
		parts = append(parts, text+"...")
	}
	return strings.Join(parts, "\n---\n")
}
