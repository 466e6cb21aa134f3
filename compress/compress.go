//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package compress assembles retrieved chunks into a source-tagged context
// string and compresses it into a token budget, summarizing with an LLM
// when needed and hard-truncating as a last resort.
package compress

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/ansera-ai/ansera/chunk"
	"github.com/ansera-ai/ansera/log"
	"github.com/ansera-ai/ansera/model"
)

const (
	defaultTokenBudget = 4000
	// defaultTokenBuffer is extra output headroom granted to the
	// summarization call on top of the budget.
	defaultTokenBuffer = 500
	// defaultCharMultiplier bounds the hard truncation fallback at
	// budget*multiplier characters.
	defaultCharMultiplier = 5

	summarizeTemperature float32 = 0.3

	estimatorEncoding = "cl100k_base"
)

var (
	estimatorOnce sync.Once
	estimator     *tiktoken.Tiktoken
)

// Compressed is the budgeted context.
type Compressed struct {
	// Text is the final context string.
	Text string
	// Chunks are the chunks included in the context, in order.
	Chunks []chunk.Chunk
	// Truncated reports that the text was hard-cut rather than fitting
	// naturally or via summarization.
	Truncated bool
}

// Compressor builds token-budgeted context strings.
type Compressor struct {
	gen         model.Generator
	counter     model.TokenCounter
	tokenBudget int
	tokenBuffer int
	charMult    int
}

// Option configures Compressor.
type Option func(*Compressor)

// WithGenerator sets the summarization model. Without one, oversized
// context falls straight through to truncation.
func WithGenerator(gen model.Generator) Option {
	return func(c *Compressor) {
		c.gen = gen
	}
}

// WithTokenCounter sets an exact token counter tried before the local
// estimator.
func WithTokenCounter(counter model.TokenCounter) Option {
	return func(c *Compressor) {
		c.counter = counter
	}
}

// WithTokenBudget sets the target context size in tokens.
func WithTokenBudget(budget int) Option {
	return func(c *Compressor) {
		if budget > 0 {
			c.tokenBudget = budget
		}
	}
}

// WithTokenBuffer sets the summarization output headroom in tokens.
func WithTokenBuffer(buffer int) Option {
	return func(c *Compressor) {
		if buffer >= 0 {
			c.tokenBuffer = buffer
		}
	}
}

// WithCharMultiplier sets the truncation bound multiplier.
func WithCharMultiplier(mult int) Option {
	return func(c *Compressor) {
		if mult > 0 {
			c.charMult = mult
		}
	}
}

// New creates a Compressor.
func New(opts ...Option) *Compressor {
	c := &Compressor{
		tokenBudget: defaultTokenBudget,
		tokenBuffer: defaultTokenBuffer,
		charMult:    defaultCharMultiplier,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Format renders chunks as a source-tagged context string.
func Format(chunks []chunk.Chunk) string {
	sections := make([]string, 0, len(chunks))
	for i, ch := range chunks {
		sections = append(sections, fmt.Sprintf("[Source %d: %s]\n%s", i+1, ch.SourceIdentifier, ch.Text))
	}
	return strings.Join(sections, "\n\n")
}

// Compress formats chunks and fits the result into the token budget. The
// returned text never exceeds budget*multiplier characters.
func (c *Compressor) Compress(ctx context.Context, query string, chunks []chunk.Chunk) Compressed {
	text := Format(chunks)
	if text == "" {
		return Compressed{Chunks: chunks}
	}

	tokens := c.countTokens(ctx, text)
	if tokens <= c.tokenBudget {
		return Compressed{Text: text, Chunks: chunks}
	}

	log.Infof("context exceeds budget (%d > %d tokens), compressing", tokens, c.tokenBudget)
	if c.gen != nil {
		if summarized, ok := c.summarize(ctx, query, text, tokens); ok {
			text = summarized
		}
	}

	maxChars := c.tokenBudget * c.charMult
	if len(text) > maxChars {
		return Compressed{Text: text[:maxChars], Chunks: chunks, Truncated: true}
	}
	return Compressed{Text: text, Chunks: chunks}
}

func (c *Compressor) summarize(ctx context.Context, query, text string, tokens int) (string, bool) {
	prompt := fmt.Sprintf(`The following context has been retrieved to answer the query: "%s"

Context:
---
%s
---

The context is too long (%d estimated tokens) and needs to be summarized to fit within approximately %d tokens.
Please summarize the context concisely, focusing *only* on the information most relevant to answering the original query: "%s".
Preserve key details and source references (like "[Source X: ...]") if possible within the summary.
Output *only* the summarized context.`, query, text, tokens, c.tokenBudget, query)

	temp := summarizeTemperature
	rsp, err := c.gen.Generate(ctx, &model.Request{
		Prompt:          prompt,
		Temperature:     &temp,
		MaxOutputTokens: int32(c.tokenBudget + c.tokenBuffer),
	})
	if err != nil {
		log.Warnf("context summarization failed, falling back to truncation: %v", err)
		return "", false
	}
	summary := strings.TrimSpace(rsp.Text)
	if summary == "" || rsp.FinishReason == model.FinishSafety {
		log.Warnf("context summarization returned no usable text (%s), falling back to truncation", rsp.FinishReason)
		return "", false
	}
	return summary, true
}

// countTokens prefers the exact counter, then the local estimator, then a
// chars/4 heuristic.
func (c *Compressor) countTokens(ctx context.Context, text string) int {
	if c.counter != nil {
		if n, err := c.counter.CountTokens(ctx, text); err == nil {
			return n
		} else {
			log.Warnf("exact token count failed, estimating locally: %v", err)
		}
	}
	if enc := getEstimator(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return len(text) / 4
}

func getEstimator() *tiktoken.Tiktoken {
	estimatorOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(estimatorEncoding)
		if err != nil {
			log.Warnf("load %s encoding: %v", estimatorEncoding, err)
			return
		}
		estimator = enc
	})
	return estimator
}
