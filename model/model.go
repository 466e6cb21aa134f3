//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package model defines the text generation abstraction used by the
// retrieval and synthesis pipeline.
package model

import "context"

// Role constants for chat history messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat history turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FinishReason describes why generation stopped.
type FinishReason string

// Finish reasons surfaced to callers.
const (
	// FinishStop means the model completed naturally.
	FinishStop FinishReason = "STOP"
	// FinishMaxTokens means the output hit the token cap and may be cut off.
	FinishMaxTokens FinishReason = "MAX_TOKENS"
	// FinishSafety means the provider blocked the prompt or the response.
	FinishSafety FinishReason = "SAFETY"
	// FinishEmpty means the provider returned no usable candidate text.
	FinishEmpty FinishReason = "EMPTY"
	// FinishOther covers provider-specific reasons not mapped above.
	FinishOther FinishReason = "OTHER"
)

// Request is a single-shot generation request.
type Request struct {
	// Prompt is the user-turn text.
	Prompt string
	// System is an optional system instruction.
	System string
	// History is prepended to the prompt as prior turns.
	History []Message
	// Temperature overrides the provider default when non-nil.
	Temperature *float32
	// MaxOutputTokens caps the response length when positive.
	MaxOutputTokens int32
	// JSONOutput asks the provider for a JSON-typed response body.
	JSONOutput bool
}

// Response is the generation result.
type Response struct {
	Text         string
	FinishReason FinishReason
	// BlockReason holds the provider block detail when FinishReason is
	// FinishSafety.
	BlockReason string
}

// Generator produces text completions.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// TokenCounter reports exact token counts for a text, when the provider
// supports it.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}
