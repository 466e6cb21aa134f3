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
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansera-ai/ansera/chunk"
	"github.com/ansera-ai/ansera/lexical"
	"github.com/ansera-ai/ansera/model"
	"github.com/ansera-ai/ansera/query"
	"github.com/ansera-ai/ansera/tenant"
	"github.com/ansera-ai/ansera/vectorstore"
)

// scriptedLLM routes understanding prompts to canned replies.
type scriptedLLM struct {
	mu sync.Mutex

	decompose   string
	variations  string
	sufficiency []string

	sufficiencyCalls   int
	lastSufficiencyGot string
}

func (s *scriptedLLM) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply := func(text string) (*model.Response, error) {
		return &model.Response{Text: text, FinishReason: model.FinishStop}, nil
	}
	switch {
	case strings.Contains(req.Prompt, "Break it down"):
		return reply(s.decompose)
	case strings.Contains(req.Prompt, "Rephrased Queries"):
		return reply(s.variations)
	case strings.Contains(req.Prompt, "Analysis Task"):
		s.lastSufficiencyGot = req.Prompt
		if len(s.sufficiency) == 0 {
			return reply(`{"sufficient": false, "follow_ups": []}`)
		}
		i := s.sufficiencyCalls
		if i >= len(s.sufficiency) {
			i = len(s.sufficiency) - 1
		}
		s.sufficiencyCalls++
		return reply(s.sufficiency[i])
	}
	return reply("")
}

func newTestController(llm model.Generator, searcher vectorstore.Searcher, corpus *corpusFixture, withLexical bool) *Controller {
	store := chunk.NewStore(corpus)
	var lexCache *lexical.Cache
	if withLexical {
		lexCache = lexical.NewCache(corpus, store)
	}
	hybrid := NewHybrid(&fakeEmbedder{}, searcher, lexCache)
	return NewController(hybrid, store, query.NewUnderstander(llm))
}

func allChunksSearcher() *fakeSearcher {
	return &fakeSearcher{results: []vectorstore.ScoredID{
		{ID: chunkRefund, Score: 0.9},
		{ID: chunkShipping, Score: 0.7},
		{ID: chunkWarranty, Score: 0.5},
	}}
}

func TestControllerRun_StopsWhenSufficient(t *testing.T) {
	llm := &scriptedLLM{
		decompose:   `["what is the refund policy"]`,
		sufficiency: []string{`{"sufficient": true, "follow_ups": ["does it cover shipping?"]}`},
	}
	corpus := newCorpus()
	c := newTestController(llm, allChunksSearcher(), corpus, true)

	out, err := c.Run(context.Background(), "t1", "what is the refund policy", nil, tenant.Config{})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Rounds)
	assert.True(t, out.Sufficient)
	assert.Equal(t, []string{"what is the refund policy"}, out.SubQuestions)
	assert.Equal(t, []string{"does it cover shipping?"}, out.FollowUps)
	assert.Len(t, out.Evidence, 3)

	// The sufficiency prompt previews fetched chunk text.
	assert.Contains(t, llm.lastSufficiencyGot, "refund policy lasts thirty days")
}

func TestControllerRun_TerminatesAtMaxRounds(t *testing.T) {
	llm := &scriptedLLM{
		decompose:   `["what is the refund policy"]`,
		sufficiency: []string{`{"sufficient": false, "follow_ups": ["what about exchanges?"]}`},
	}
	corpus := newCorpus()
	c := newTestController(llm, allChunksSearcher(), corpus, true)

	out, err := c.Run(context.Background(), "t1", "what is the refund policy", nil,
		tenant.Config{MaxRounds: 2, VariationLimit: 100})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Rounds)
	assert.False(t, out.Sufficient)
	assert.Equal(t, []string{"what about exchanges?"}, out.FollowUps)
}

func TestControllerRun_StopsWhenNoFollowUps(t *testing.T) {
	llm := &scriptedLLM{
		decompose:   `["what is the refund policy"]`,
		sufficiency: []string{`{"sufficient": false, "follow_ups": []}`},
	}
	corpus := newCorpus()
	c := newTestController(llm, allChunksSearcher(), corpus, true)

	out, err := c.Run(context.Background(), "t1", "what is the refund policy", nil,
		tenant.Config{MaxRounds: 3, VariationLimit: 100})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Rounds)
	assert.False(t, out.Sufficient)
	assert.Empty(t, out.FollowUps)
}

func TestControllerRun_CancelledContextStopsBeforeFirstRound(t *testing.T) {
	llm := &scriptedLLM{decompose: `["anything"]`}
	corpus := newCorpus()
	c := newTestController(llm, allChunksSearcher(), corpus, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := c.Run(ctx, "t1", "anything", nil, tenant.Config{})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Rounds)
	assert.NotEmpty(t, out.Warnings)
}

func TestControllerRun_DedupsEvidenceAcrossRounds(t *testing.T) {
	llm := &scriptedLLM{
		decompose:   `["what is the refund policy"]`,
		sufficiency: []string{`{"sufficient": false, "follow_ups": ["anything else?"]}`},
	}
	corpus := newCorpus()
	c := newTestController(llm, allChunksSearcher(), corpus, true)

	out, err := c.Run(context.Background(), "t1", "what is the refund policy", nil,
		tenant.Config{MaxRounds: 3, VariationLimit: 100})
	require.NoError(t, err)

	assert.Len(t, out.Evidence, 3)
	seen := make(map[string]bool, len(out.Evidence))
	for _, ch := range out.Evidence {
		assert.False(t, seen[ch.ID], "duplicate evidence chunk %s", ch.ID)
		seen[ch.ID] = true
	}
	// Lexical index build reads each object once; round one fetches each
	// chunk once more. Later rounds hit only already-seen IDs.
	assert.Equal(t, int32(6), atomic.LoadInt32(&corpus.getCalls))
}

func TestControllerRun_VariationBudgetBoundsRounds(t *testing.T) {
	llm := &scriptedLLM{
		decompose:   `["refund policy", "shipping times"]`,
		variations:  "alpha rewording\nbeta rewording",
		sufficiency: []string{`{"sufficient": false, "follow_ups": ["more?"]}`},
	}
	corpus := newCorpus()
	c := newTestController(llm, allChunksSearcher(), corpus, true)

	out, err := c.Run(context.Background(), "t1", "refunds and shipping", nil,
		tenant.Config{MaxRounds: 5, VariationLimit: 3})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Rounds)
	assert.False(t, out.Sufficient)
	found := false
	for _, w := range out.Warnings {
		if strings.Contains(w, "variation budget") {
			found = true
		}
	}
	assert.True(t, found, "expected a variation budget warning, got %v", out.Warnings)
}

func TestControllerRun_DenseFailureStillServesFromLexical(t *testing.T) {
	llm := &scriptedLLM{
		decompose:   `["what is the refund policy"]`,
		sufficiency: []string{`{"sufficient": true, "follow_ups": []}`},
	}
	corpus := newCorpus()
	c := newTestController(llm, &fakeSearcher{err: errors.New("milvus down")}, corpus, true)

	out, err := c.Run(context.Background(), "t1", "what is the refund policy", nil, tenant.Config{})
	require.NoError(t, err)

	require.Len(t, out.Evidence, 1)
	assert.Equal(t, chunkRefund, out.Evidence[0].ID)
	found := false
	for _, w := range out.Warnings {
		if strings.HasPrefix(w, "dense retrieval failed") {
			found = true
		}
	}
	assert.True(t, found, "expected a dense failure warning, got %v", out.Warnings)
}

func TestControllerRun_NoEvidenceStopsAfterFirstRound(t *testing.T) {
	llm := &scriptedLLM{decompose: `["anything"]`}
	corpus := newCorpus()
	c := newTestController(llm, &fakeSearcher{err: errors.New("milvus down")}, corpus, false)

	out, err := c.Run(context.Background(), "t1", "anything", nil,
		tenant.Config{MaxRounds: 3})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Rounds)
	assert.Empty(t, out.Evidence)
	assert.NotEmpty(t, out.Warnings)
	assert.Equal(t, 0, llm.sufficiencyCalls)
}
