//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

package compress

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ansera-ai/ansera/chunk"
	"github.com/ansera-ai/ansera/model"
)

type fixedCounter struct {
	tokens int
	err    error
}

func (f *fixedCounter) CountTokens(ctx context.Context, text string) (int, error) {
	return f.tokens, f.err
}

type stubGenerator struct {
	text      string
	err       error
	gotPrompt string
	calls     int
}

func (s *stubGenerator) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	s.calls++
	s.gotPrompt = req.Prompt
	if s.err != nil {
		return nil, s.err
	}
	return &model.Response{Text: s.text, FinishReason: model.FinishStop}, nil
}

func testChunks() []chunk.Chunk {
	return []chunk.Chunk{
		{ID: "c1", Text: "Refunds are issued within 30 days.", SourceIdentifier: "refund-policy.md"},
		{ID: "c2", Text: "Shipping takes one week.", SourceIdentifier: "shipping.md"},
	}
}

func TestFormat(t *testing.T) {
	got := Format(testChunks())
	assert.Contains(t, got, "[Source 1: refund-policy.md]\nRefunds are issued within 30 days.")
	assert.Contains(t, got, "[Source 2: shipping.md]\nShipping takes one week.")
	assert.Equal(t, "", Format(nil))
}

func TestCompress_WithinBudgetUntouched(t *testing.T) {
	gen := &stubGenerator{}
	c := New(
		WithGenerator(gen),
		WithTokenCounter(&fixedCounter{tokens: 100}),
		WithTokenBudget(4000),
	)

	got := c.Compress(context.Background(), "refunds", testChunks())
	assert.Equal(t, Format(testChunks()), got.Text)
	assert.False(t, got.Truncated)
	assert.Equal(t, 0, gen.calls)
}

func TestCompress_SummarizesWhenOverBudget(t *testing.T) {
	gen := &stubGenerator{text: "[Source 1: refund-policy.md] Refunds within 30 days."}
	c := New(
		WithGenerator(gen),
		WithTokenCounter(&fixedCounter{tokens: 9000}),
		WithTokenBudget(4000),
	)

	got := c.Compress(context.Background(), "refunds", testChunks())
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, gen.text, got.Text)
	assert.False(t, got.Truncated)
	assert.Contains(t, gen.gotPrompt, `the original query: "refunds"`)
}

func TestCompress_TruncatesWhenSummaryTooLong(t *testing.T) {
	longSummary := strings.Repeat("x", 1000)
	gen := &stubGenerator{text: longSummary}
	c := New(
		WithGenerator(gen),
		WithTokenCounter(&fixedCounter{tokens: 9000}),
		WithTokenBudget(100),
		WithCharMultiplier(5),
	)

	got := c.Compress(context.Background(), "q", testChunks())
	assert.True(t, got.Truncated)
	assert.Len(t, got.Text, 500)
}

func TestCompress_SummarizerFailureFallsBackToTruncation(t *testing.T) {
	gen := &stubGenerator{err: errors.New("llm down")}
	c := New(
		WithGenerator(gen),
		WithTokenCounter(&fixedCounter{tokens: 9000}),
		WithTokenBudget(10),
		WithCharMultiplier(5),
	)

	got := c.Compress(context.Background(), "q", testChunks())
	assert.True(t, got.Truncated)
	assert.Len(t, got.Text, 50)
	assert.Equal(t, Format(testChunks())[:50], got.Text)
}

func TestCompress_NoGeneratorTruncatesDirectly(t *testing.T) {
	c := New(
		WithTokenCounter(&fixedCounter{tokens: 9000}),
		WithTokenBudget(10),
	)

	got := c.Compress(context.Background(), "q", testChunks())
	assert.True(t, got.Truncated)
	assert.Len(t, got.Text, 50)
}

func TestCompress_EmptyChunks(t *testing.T) {
	c := New()
	got := c.Compress(context.Background(), "q", nil)
	assert.Equal(t, "", got.Text)
	assert.False(t, got.Truncated)
}

func TestCompress_CounterFailureUsesEstimator(t *testing.T) {
	// The exact counter fails; the local estimator (or chars/4 fallback)
	// still keeps a small context inside a generous budget.
	c := New(
		WithTokenCounter(&fixedCounter{err: errors.New("api down")}),
		WithTokenBudget(4000),
	)

	got := c.Compress(context.Background(), "q", testChunks())
	assert.Equal(t, Format(testChunks()), got.Text)
	assert.False(t, got.Truncated)
}
