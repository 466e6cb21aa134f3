//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package synthesize produces the final grounded answer from compressed
// context, chat history, and the tenant's base prompt.
package synthesize

import (
	"context"
	"fmt"
	"strings"

	"github.com/ansera-ai/ansera/model"
)

const (
	defaultBasePrompt = "You are a helpful assistant."

	defaultTemperature float32 = 0.5
	defaultMaxTokens   int32   = 1500

	// maxHistoryTurns bounds how much chat history enters the prompt.
	maxHistoryTurns = 20
)

// Result is the synthesis outcome.
type Result struct {
	// Answer is the generated answer text. Empty when generation was
	// blocked or produced nothing.
	Answer string
	// FinishReason is the mapped provider finish reason.
	FinishReason model.FinishReason
	// Warning carries a human-readable degradation note, e.g. a safety
	// block or an output cut at the token cap.
	Warning string
}

// Synthesizer generates grounded answers.
type Synthesizer struct {
	gen         model.Generator
	temperature float32
	maxTokens   int32
}

// Option configures Synthesizer.
type Option func(*Synthesizer)

// WithTemperature sets the generation temperature.
func WithTemperature(t float32) Option {
	return func(s *Synthesizer) {
		s.temperature = t
	}
}

// WithMaxTokens caps the answer length.
func WithMaxTokens(n int32) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// New creates a Synthesizer backed by gen.
func New(gen model.Generator, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		gen:         gen,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildPrompt assembles the grounded answer prompt.
func BuildPrompt(basePrompt, contextText, query string, history []model.Message) string {
	if basePrompt == "" {
		basePrompt = defaultBasePrompt
	}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Content))
	}
	return fmt.Sprintf(`%s

Chat History:
---
%s
---

Context (potentially summarized for relevance and length):
---
%s
---

User Query: "%s"

Instructions: Based *only* on the provided context and chat history, answer the user's query. If the context does not contain the answer, state that clearly. Cite the source number (e.g., [Source 1], [Source 2]) where the information was found, if possible. Do not make up information.

Answer:`, basePrompt, strings.Join(lines, "\n"), contextText, query)
}

// Synthesize generates the final answer. Provider errors are returned as
// errors; degraded completions (safety block, cut output, empty output)
// come back as a Result with a warning.
func (s *Synthesizer) Synthesize(ctx context.Context, basePrompt, contextText, query string, history []model.Message) (*Result, error) {
	prompt := BuildPrompt(basePrompt, contextText, query, history)
	temp := s.temperature
	rsp, err := s.gen.Generate(ctx, &model.Request{
		Prompt:          prompt,
		Temperature:     &temp,
		MaxOutputTokens: s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}

	result := &Result{
		Answer:       strings.TrimSpace(rsp.Text),
		FinishReason: rsp.FinishReason,
	}
	switch rsp.FinishReason {
	case model.FinishSafety:
		result.Answer = ""
		reason := rsp.BlockReason
		if reason == "" {
			reason = string(model.FinishSafety)
		}
		result.Warning = fmt.Sprintf("answer generation was blocked by safety filters (%s)", reason)
	case model.FinishMaxTokens:
		result.Warning = "answer was cut off at the output token limit"
	case model.FinishEmpty:
		result.Warning = "model returned no answer text"
	default:
		if result.Answer == "" {
			result.FinishReason = model.FinishEmpty
			result.Warning = "model returned no answer text"
		}
	}
	return result, nil
}
