//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package engine wires query understanding, iterative hybrid retrieval,
// reranking, context compression, and answer synthesis into the complete
// question answering pipeline.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ansera-ai/ansera/chunk"
	"github.com/ansera-ai/ansera/compress"
	"github.com/ansera-ai/ansera/embedder"
	"github.com/ansera-ai/ansera/lexical"
	"github.com/ansera-ai/ansera/log"
	"github.com/ansera-ai/ansera/model"
	"github.com/ansera-ai/ansera/query"
	"github.com/ansera-ai/ansera/reranker"
	"github.com/ansera-ai/ansera/retrieval"
	"github.com/ansera-ai/ansera/synthesize"
	"github.com/ansera-ai/ansera/tenant"
	"github.com/ansera-ai/ansera/vectorstore"
)

var tracer = otel.Tracer("github.com/ansera-ai/ansera/engine")

// Request is one question against a tenant's corpus.
type Request struct {
	// TenantID selects the corpus. Required.
	TenantID string
	// SessionID identifies the conversation. Generated when empty.
	SessionID string
	// Query is the user's question. Required.
	Query string
	// History is the prior conversation, oldest first.
	History []model.Message
}

// SourceTypeChunk marks a source backed by a corpus chunk.
const SourceTypeChunk = "chunk"

// Source names a document backing the answer.
type Source struct {
	// ChunkID is the chunk the passage came from.
	ChunkID string
	// Identifier is the human-readable source name.
	Identifier string
	// Type classifies the source. Always SourceTypeChunk today.
	Type string
}

// Metadata carries per-request pipeline facts for callers.
type Metadata struct {
	// Intent is the recognized query intent.
	Intent string
	// Slots are the extracted entities.
	Slots map[string]any
	// FollowUps are suggested next questions.
	FollowUps []string
	// Rounds is how many retrieval rounds ran.
	Rounds int
}

// Result is the pipeline outcome.
type Result struct {
	// SessionID echoes or assigns the conversation ID.
	SessionID string
	// Answer is the grounded answer. Nil when generation was blocked or
	// produced nothing.
	Answer *string
	// Sources are the documents behind the final context, in context
	// order.
	Sources []Source
	// RetrievedRawTexts holds every unique evidence text fetched across
	// rounds, before reranking and compression.
	RetrievedRawTexts []string
	// Metadata carries understanding and loop facts.
	Metadata Metadata
	// Warnings lists every degradation the pipeline survived.
	Warnings []string
}

// Engine runs the question answering pipeline.
type Engine struct {
	gen          model.Generator
	counter      model.TokenCounter
	emb          embedder.Embedder
	searcher     vectorstore.Searcher
	lister       vectorstore.Lister
	chunks       *chunk.Store
	lexCache     *lexical.Cache
	rerank       reranker.Reranker
	tenants      tenant.Provider
	compressOpts []compress.Option
	synthOpts    []synthesize.Option

	understander *query.Understander
	controller   *retrieval.Controller
	synthesizer  *synthesize.Synthesizer
}

// Option configures Engine.
type Option func(*Engine)

// WithGenerator sets the LLM used for understanding, compression, and
// synthesis. Required.
func WithGenerator(gen model.Generator) Option {
	return func(e *Engine) {
		e.gen = gen
	}
}

// WithTokenCounter sets the exact token counter used by compression.
// Without one a local estimate is used.
func WithTokenCounter(c model.TokenCounter) Option {
	return func(e *Engine) {
		e.counter = c
	}
}

// WithEmbedder sets the query embedder for dense retrieval. Required.
func WithEmbedder(emb embedder.Embedder) Option {
	return func(e *Engine) {
		e.emb = emb
	}
}

// WithSearcher sets the vector store searcher. Required.
func WithSearcher(s vectorstore.Searcher) Option {
	return func(e *Engine) {
		e.searcher = s
	}
}

// WithLister sets the corpus lister backing the lexical index. Without
// one retrieval is dense only.
func WithLister(l vectorstore.Lister) Option {
	return func(e *Engine) {
		e.lister = l
	}
}

// WithChunkStore sets the chunk text store. Required.
func WithChunkStore(s *chunk.Store) Option {
	return func(e *Engine) {
		e.chunks = s
	}
}

// WithLexicalCache sets a prebuilt lexical index cache, overriding the
// one derived from the lister.
func WithLexicalCache(c *lexical.Cache) Option {
	return func(e *Engine) {
		e.lexCache = c
	}
}

// WithReranker sets the relevance reranker. Without one retrieval order
// is kept.
func WithReranker(r reranker.Reranker) Option {
	return func(e *Engine) {
		e.rerank = r
	}
}

// WithTenantProvider sets the per-tenant config source. Without one
// every tenant gets the library defaults.
func WithTenantProvider(p tenant.Provider) Option {
	return func(e *Engine) {
		e.tenants = p
	}
}

// WithCompressOptions appends options applied to the per-request
// compressor after the tenant token budget.
func WithCompressOptions(opts ...compress.Option) Option {
	return func(e *Engine) {
		e.compressOpts = append(e.compressOpts, opts...)
	}
}

// WithSynthesizeOptions sets options for the answer synthesizer.
func WithSynthesizeOptions(opts ...synthesize.Option) Option {
	return func(e *Engine) {
		e.synthOpts = append(e.synthOpts, opts...)
	}
}

// New creates an Engine. A generator, an embedder, a searcher, and a
// chunk store are required.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.gen == nil {
		return nil, errors.New("engine: a generator is required")
	}
	if e.emb == nil {
		return nil, errors.New("engine: an embedder is required")
	}
	if e.searcher == nil {
		return nil, errors.New("engine: a vector store searcher is required")
	}
	if e.chunks == nil {
		return nil, errors.New("engine: a chunk store is required")
	}
	if e.tenants == nil {
		e.tenants = tenant.NewStaticProvider(tenant.Config{}, nil)
	}
	if e.lexCache == nil && e.lister != nil {
		e.lexCache = lexical.NewCache(e.lister, e.chunks)
	}

	e.understander = query.NewUnderstander(e.gen)
	hybrid := retrieval.NewHybrid(e.emb, e.searcher, e.lexCache)
	e.controller = retrieval.NewController(hybrid, e.chunks, e.understander)
	e.synthesizer = synthesize.New(e.gen, e.synthOpts...)
	return e, nil
}

// Execute answers req against the tenant's corpus.
func (e *Engine) Execute(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || req.Query == "" {
		return nil, errors.New("engine: a query is required")
	}
	if req.TenantID == "" {
		return nil, errors.New("engine: a tenant id is required")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, span := tracer.Start(ctx, "engine.execute", trace.WithAttributes(
		attribute.String("ansera.tenant_id", req.TenantID),
		attribute.String("ansera.session_id", sessionID),
	))
	defer span.End()

	cfg, err := e.tenants.Config(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant %s config: %w", req.TenantID, err)
	}
	cfg = cfg.WithDefaults()

	intent := e.understander.IntentAndSlots(ctx, req.Query, req.History)
	log.Infof("engine: tenant %s session %s intent %q", req.TenantID, sessionID, intent.Intent)

	outcome, err := e.controller.Run(ctx, req.TenantID, req.Query, req.History, cfg)
	if err != nil {
		return nil, fmt.Errorf("retrieve evidence: %w", err)
	}
	span.SetAttributes(
		attribute.Int("ansera.rounds", outcome.Rounds),
		attribute.Int("ansera.evidence", len(outcome.Evidence)),
	)
	if len(outcome.Evidence) == 0 {
		return nil, fmt.Errorf("no relevant context found for tenant %s", req.TenantID)
	}

	warnings := append([]string(nil), outcome.Warnings...)

	final, rerankWarning := e.rerankEvidence(ctx, req.Query, outcome.Evidence, cfg.FinalContextChunks)
	if rerankWarning != "" {
		warnings = append(warnings, rerankWarning)
	}

	compressor := compress.New(append([]compress.Option{
		compress.WithGenerator(e.gen),
		compress.WithTokenCounter(e.counter),
		compress.WithTokenBudget(cfg.TokenBudget),
	}, e.compressOpts...)...)
	compressed := compressor.Compress(ctx, req.Query, final)
	if compressed.Truncated {
		warnings = append(warnings, "context was truncated to fit the token budget")
	}

	synth, err := e.synthesizer.Synthesize(ctx, cfg.BasePrompt, compressed.Text, req.Query, req.History)
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}
	if synth.Warning != "" {
		warnings = append(warnings, synth.Warning)
	}

	result := &Result{
		SessionID: sessionID,
		Sources:   sources(final),
		Metadata: Metadata{
			Intent:    intent.Intent,
			Slots:     intent.Slots,
			FollowUps: outcome.FollowUps,
			Rounds:    outcome.Rounds,
		},
		Warnings: warnings,
	}
	if synth.Answer != "" {
		answer := synth.Answer
		result.Answer = &answer
	}
	for _, ch := range outcome.Evidence {
		result.RetrievedRawTexts = append(result.RetrievedRawTexts, ch.Text)
	}
	return result, nil
}

// rerankEvidence reorders evidence by relevance and keeps the top limit
// chunks. A reranker failure degrades to retrieval order.
func (e *Engine) rerankEvidence(ctx context.Context, queryText string, evidence []chunk.Chunk, limit int) ([]chunk.Chunk, string) {
	ordered := evidence
	warning := ""
	if e.rerank != nil {
		candidates := make([]*reranker.Result, 0, len(evidence))
		for _, ch := range evidence {
			candidates = append(candidates, &reranker.Result{Chunk: ch})
		}
		reranked, err := e.rerank.Rerank(ctx, &reranker.Query{Text: queryText}, candidates)
		if err != nil {
			log.Warnf("engine: reranking failed, keeping retrieval order: %v", err)
			warning = fmt.Sprintf("reranking failed, keeping retrieval order: %v", err)
		} else {
			ordered = make([]chunk.Chunk, 0, len(reranked))
			for _, r := range reranked {
				ordered = append(ordered, r.Chunk)
			}
		}
	}
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, warning
}

func sources(chunks []chunk.Chunk) []Source {
	out := make([]Source, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, Source{ChunkID: ch.ID, Identifier: ch.SourceIdentifier, Type: SourceTypeChunk})
	}
	return out
}
