//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

package engine

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansera-ai/ansera/chunk"
	"github.com/ansera-ai/ansera/model"
	"github.com/ansera-ai/ansera/reranker"
	"github.com/ansera-ai/ansera/tenant"
	"github.com/ansera-ai/ansera/vectorstore"
)

const (
	chunkRefund   = "tenant_t1_source_a_chunk_0"
	chunkShipping = "tenant_t1_source_a_chunk_1"
	chunkWarranty = "tenant_t1_source_a_chunk_2"
)

// corpusFixture backs the lister and the blob with one tenant corpus.
type corpusFixture struct {
	mu      sync.Mutex
	ids     map[string][]string
	objects map[string]string
}

func (f *corpusFixture) ListChunkIDs(ctx context.Context, tenantID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids[tenantID], nil
}

func (f *corpusFixture) Get(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.objects[path]
	if !ok {
		return "", chunk.ErrNotFound
	}
	return text, nil
}

func newCorpus() *corpusFixture {
	return &corpusFixture{
		ids: map[string][]string{
			"t1": {chunkRefund, chunkShipping, chunkWarranty},
		},
		objects: map[string]string{
			"tenant_t1/source_a/0.txt": "refund policy lasts thirty days",
			"tenant_t1/source_a/1.txt": "shipping takes one week",
			"tenant_t1/source_a/2.txt": "warranty covers two years",
		},
	}
}

type fakeEmbedder struct{}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func (f *fakeEmbedder) EmbedDocument(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func (f *fakeEmbedder) GetDimensions() int { return 2 }

type fakeSearcher struct {
	results []vectorstore.ScoredID
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, vector []float64, tenantID string, topK int) ([]vectorstore.ScoredID, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// reversingReranker reverses candidate order, or fails.
type reversingReranker struct {
	err error
}

func (r *reversingReranker) Rerank(ctx context.Context, q *reranker.Query, results []*reranker.Result) ([]*reranker.Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*reranker.Result, len(results))
	for i, res := range results {
		out[len(results)-1-i] = res
	}
	return out, nil
}

type fixedCounter struct {
	tokens int
}

func (f *fixedCounter) CountTokens(ctx context.Context, text string) (int, error) {
	return f.tokens, nil
}

// scriptedLLM routes pipeline prompts to canned replies.
type scriptedLLM struct {
	mu sync.Mutex

	intent      string
	decompose   string
	sufficiency string
	summarize   string
	answer      string
	synthSafety bool
}

func (s *scriptedLLM) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply := func(text string) (*model.Response, error) {
		return &model.Response{Text: text, FinishReason: model.FinishStop}, nil
	}
	switch {
	case strings.Contains(req.Prompt, "primary user intent"):
		return reply(s.intent)
	case strings.Contains(req.Prompt, "Break it down"):
		return reply(s.decompose)
	case strings.Contains(req.Prompt, "Rephrased Queries"):
		return reply("")
	case strings.Contains(req.Prompt, "Analysis Task"):
		return reply(s.sufficiency)
	case strings.Contains(req.Prompt, "needs to be summarized"):
		return reply(s.summarize)
	case strings.Contains(req.Prompt, "Instructions: Based *only*"):
		if s.synthSafety {
			return &model.Response{FinishReason: model.FinishSafety, BlockReason: "SAFETY"}, nil
		}
		return reply(s.answer)
	}
	return reply("")
}

func happyLLM() *scriptedLLM {
	return &scriptedLLM{
		intent:      `{"intent": "information_seeking", "slots": {"topic": "refunds"}}`,
		decompose:   `["what is the refund policy"]`,
		sufficiency: `{"sufficient": true, "follow_ups": ["does it cover shipping?"]}`,
		answer:      "Refunds take 30 days [Source 1].",
	}
}

func allChunksSearcher() *fakeSearcher {
	return &fakeSearcher{results: []vectorstore.ScoredID{
		{ID: chunkRefund, Score: 0.9},
		{ID: chunkShipping, Score: 0.7},
		{ID: chunkWarranty, Score: 0.5},
	}}
}

func newTestEngine(t *testing.T, llm model.Generator, searcher vectorstore.Searcher, extra ...Option) *Engine {
	t.Helper()
	corpus := newCorpus()
	opts := append([]Option{
		WithGenerator(llm),
		WithEmbedder(&fakeEmbedder{}),
		WithSearcher(searcher),
		WithChunkStore(chunk.NewStore(corpus)),
		WithLister(corpus),
	}, extra...)
	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

func TestNew_RequiresComponents(t *testing.T) {
	_, err := New()
	assert.ErrorContains(t, err, "generator")

	_, err = New(WithGenerator(happyLLM()))
	assert.ErrorContains(t, err, "embedder")

	_, err = New(WithGenerator(happyLLM()), WithEmbedder(&fakeEmbedder{}))
	assert.ErrorContains(t, err, "searcher")

	_, err = New(WithGenerator(happyLLM()), WithEmbedder(&fakeEmbedder{}), WithSearcher(&fakeSearcher{}))
	assert.ErrorContains(t, err, "chunk store")
}

func TestExecute_EndToEnd(t *testing.T) {
	e := newTestEngine(t, happyLLM(), allChunksSearcher())

	got, err := e.Execute(context.Background(), &Request{TenantID: "t1", Query: "what is the refund policy"})
	require.NoError(t, err)

	require.NotNil(t, got.Answer)
	assert.Equal(t, "Refunds take 30 days [Source 1].", *got.Answer)
	assert.NotEmpty(t, got.SessionID)
	assert.Equal(t, "information_seeking", got.Metadata.Intent)
	assert.Equal(t, "refunds", got.Metadata.Slots["topic"])
	assert.Equal(t, []string{"does it cover shipping?"}, got.Metadata.FollowUps)
	assert.Equal(t, 1, got.Metadata.Rounds)
	assert.Len(t, got.Sources, 3)
	assert.Equal(t, chunkRefund, got.Sources[0].ChunkID)
	assert.Equal(t, "source_a", got.Sources[0].Identifier)
	assert.Equal(t, SourceTypeChunk, got.Sources[0].Type)
	assert.Len(t, got.RetrievedRawTexts, 3)
	assert.Contains(t, got.RetrievedRawTexts, "refund policy lasts thirty days")
	assert.Empty(t, got.Warnings)
}

func TestExecute_EchoesSessionID(t *testing.T) {
	e := newTestEngine(t, happyLLM(), allChunksSearcher())

	got, err := e.Execute(context.Background(), &Request{
		TenantID:  "t1",
		SessionID: "sess-42",
		Query:     "what is the refund policy",
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-42", got.SessionID)
}

func TestExecute_ValidatesRequest(t *testing.T) {
	e := newTestEngine(t, happyLLM(), allChunksSearcher())

	_, err := e.Execute(context.Background(), nil)
	assert.Error(t, err)

	_, err = e.Execute(context.Background(), &Request{TenantID: "t1"})
	assert.ErrorContains(t, err, "query")

	_, err = e.Execute(context.Background(), &Request{Query: "q"})
	assert.ErrorContains(t, err, "tenant")
}

func TestExecute_EmptyCorpusFails(t *testing.T) {
	llm := happyLLM()
	corpus := &corpusFixture{ids: map[string][]string{}, objects: map[string]string{}}
	e, err := New(
		WithGenerator(llm),
		WithEmbedder(&fakeEmbedder{}),
		WithSearcher(&fakeSearcher{}),
		WithChunkStore(chunk.NewStore(corpus)),
		WithLister(corpus),
	)
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), &Request{TenantID: "t1", Query: "anything"})
	assert.ErrorContains(t, err, "no relevant context")
}

func TestExecute_RerankerReordersAndLimits(t *testing.T) {
	provider := tenant.NewStaticProvider(tenant.Config{}, map[string]tenant.Config{
		"t1": {FinalContextChunks: 2},
	})
	e := newTestEngine(t, happyLLM(), allChunksSearcher(),
		WithReranker(&reversingReranker{}),
		WithTenantProvider(provider),
	)

	got, err := e.Execute(context.Background(), &Request{TenantID: "t1", Query: "what is the refund policy"})
	require.NoError(t, err)

	require.Len(t, got.Sources, 2)
	assert.Equal(t, chunkWarranty, got.Sources[0].ChunkID)
	assert.Equal(t, chunkShipping, got.Sources[1].ChunkID)
	// Raw texts still cover all evidence regardless of the final cut.
	assert.Len(t, got.RetrievedRawTexts, 3)
}

func TestExecute_RerankerFailureKeepsRetrievalOrder(t *testing.T) {
	e := newTestEngine(t, happyLLM(), allChunksSearcher(),
		WithReranker(&reversingReranker{err: errors.New("rerank service down")}),
	)

	got, err := e.Execute(context.Background(), &Request{TenantID: "t1", Query: "what is the refund policy"})
	require.NoError(t, err)

	require.Len(t, got.Sources, 3)
	assert.Equal(t, chunkRefund, got.Sources[0].ChunkID)
	found := false
	for _, w := range got.Warnings {
		if strings.Contains(w, "reranking failed") {
			found = true
		}
	}
	assert.True(t, found, "expected a reranking warning, got %v", got.Warnings)
}

// phraseReranker promotes chunks containing the phrase, keeping relative
// order otherwise.
type phraseReranker struct {
	phrase string
}

func (r *phraseReranker) Rerank(ctx context.Context, q *reranker.Query, results []*reranker.Result) ([]*reranker.Result, error) {
	var hits, rest []*reranker.Result
	for _, res := range results {
		if strings.Contains(res.Chunk.Text, r.phrase) {
			res.Score = 1
			hits = append(hits, res)
		} else {
			rest = append(rest, res)
		}
	}
	return append(hits, rest...), nil
}

func TestExecute_RefundPolicyChunkSurfacesFromLargeCorpus(t *testing.T) {
	corpus := &corpusFixture{
		ids:     map[string][]string{"t1": {}},
		objects: map[string]string{},
	}
	for i := 0; i < 50; i++ {
		id := "tenant_t1_source_a_chunk_" + strconv.Itoa(i)
		corpus.ids["t1"] = append(corpus.ids["t1"], id)
		corpus.objects["tenant_t1/source_a/"+strconv.Itoa(i)+".txt"] = "filler paragraph numbered " + strconv.Itoa(i)
	}
	corpus.objects["tenant_t1/source_a/7.txt"] = "our refund policy lasts thirty days"

	// Dense search surfaces unrelated chunks; only the lexical index
	// knows about chunk 7.
	searcher := &fakeSearcher{results: []vectorstore.ScoredID{
		{ID: "tenant_t1_source_a_chunk_0", Score: 0.9},
		{ID: "tenant_t1_source_a_chunk_1", Score: 0.8},
		{ID: "tenant_t1_source_a_chunk_2", Score: 0.7},
	}}
	e, err := New(
		WithGenerator(happyLLM()),
		WithEmbedder(&fakeEmbedder{}),
		WithSearcher(searcher),
		WithChunkStore(chunk.NewStore(corpus)),
		WithLister(corpus),
		WithReranker(&phraseReranker{phrase: "refund policy"}),
	)
	require.NoError(t, err)

	got, err := e.Execute(context.Background(), &Request{TenantID: "t1", Query: "What is the refund policy?"})
	require.NoError(t, err)

	require.NotEmpty(t, got.Sources)
	assert.Equal(t, "tenant_t1_source_a_chunk_7", got.Sources[0].ChunkID)
	assert.Equal(t, 1, got.Metadata.Rounds)
}

func TestExecute_SafetyBlockedAnswerIsNil(t *testing.T) {
	llm := happyLLM()
	llm.synthSafety = true
	e := newTestEngine(t, llm, allChunksSearcher())

	got, err := e.Execute(context.Background(), &Request{TenantID: "t1", Query: "what is the refund policy"})
	require.NoError(t, err)

	assert.Nil(t, got.Answer)
	found := false
	for _, w := range got.Warnings {
		if strings.Contains(w, "safety") {
			found = true
		}
	}
	assert.True(t, found, "expected a safety warning, got %v", got.Warnings)
}

func TestExecute_CompressionTruncationWarns(t *testing.T) {
	llm := happyLLM()
	llm.summarize = strings.Repeat("x", 2000)
	provider := tenant.NewStaticProvider(tenant.Config{}, map[string]tenant.Config{
		"t1": {TokenBudget: 10},
	})
	e := newTestEngine(t, llm, allChunksSearcher(),
		WithTenantProvider(provider),
		WithTokenCounter(&fixedCounter{tokens: 9000}),
	)

	got, err := e.Execute(context.Background(), &Request{TenantID: "t1", Query: "what is the refund policy"})
	require.NoError(t, err)

	require.NotNil(t, got.Answer)
	found := false
	for _, w := range got.Warnings {
		if strings.Contains(w, "truncated") {
			found = true
		}
	}
	assert.True(t, found, "expected a truncation warning, got %v", got.Warnings)
}
