//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package query performs LLM-backed query understanding: intent and slot
// recognition, sub-question decomposition, query variation generation, and
// retrieval sufficiency analysis. Every operation degrades to a safe
// fallback instead of failing.
package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/ansera-ai/ansera/log"
	"github.com/ansera-ai/ansera/model"
	"github.com/ansera-ai/ansera/structured"
)

// Generation tuning per operation.
const (
	intentTemperature      float32 = 0.2
	intentMaxTokens        int32   = 200
	decomposeTemperature   float32 = 0.7
	decomposeMaxTokens     int32   = 150
	variationTemperature   float32 = 0.7
	variationMaxTokens     int32   = 150
	sufficiencyTemperature float32 = 0.6
	sufficiencyMaxTokens   int32   = 300
)

// IntentResult is the recognized intent with extracted slots.
type IntentResult struct {
	Intent string         `json:"intent"`
	Slots  map[string]any `json:"slots"`
}

// SufficiencyResult reports whether retrieved context likely answers all
// sub-questions, plus suggested follow-up questions.
type SufficiencyResult struct {
	Sufficient bool     `json:"sufficient"`
	FollowUps  []string `json:"follow_ups"`
}

// Understander runs query understanding against a generator.
type Understander struct {
	gen model.Generator
}

// NewUnderstander creates an Understander backed by gen.
func NewUnderstander(gen model.Generator) *Understander {
	return &Understander{gen: gen}
}

func formatHistory(history []model.Message) string {
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Content))
	}
	return strings.Join(lines, "\n")
}

// IntentAndSlots recognizes the primary intent and named slots of query.
// On failure it returns intent "unknown" with empty slots.
func (u *Understander) IntentAndSlots(ctx context.Context, query string, history []model.Message) IntentResult {
	prompt := fmt.Sprintf(`Analyze the 'Original Query' in the context of the 'Chat History'.
Identify the primary user intent (e.g., 'information_seeking', 'comparison', 'greeting', 'request_action', 'clarification', 'other').
Extract key named entities or slots relevant to the query (e.g., product names, features, locations, dates).

Output the results as a single JSON object with two keys: "intent" (string) and "slots" (object).
Example: {"intent": "comparison", "slots": {"product_a": "XYZ", "product_b": "ABC", "feature": "battery life"}}
If no specific slots are identified, return an empty object for "slots": {"intent": "greeting", "slots": {}}

Chat History:
---
%s
---

Original Query: "%s"

JSON Output:`, formatHistory(history), query)

	temp := intentTemperature
	var result IntentResult
	err := structured.Call(ctx, u.gen, &model.Request{
		Prompt:          prompt,
		Temperature:     &temp,
		MaxOutputTokens: intentMaxTokens,
	}, &result, structured.WithRequiredKeys("intent", "slots"))
	if err != nil || result.Intent == "" {
		log.Warnf("intent recognition failed, using fallback: %v", err)
		return IntentResult{Intent: "unknown", Slots: map[string]any{}}
	}
	if result.Slots == nil {
		result.Slots = map[string]any{}
	}
	return result
}

// Decompose breaks query into self-contained sub-questions. On failure it
// returns the original query as the only sub-question.
func (u *Understander) Decompose(ctx context.Context, query string, history []model.Message) []string {
	prompt := fmt.Sprintf(`Analyze the 'Original Query' in the context of the 'Chat History'.
Break it down into one or more simpler, self-contained sub-questions that can be answered independently to fully address the original query.
If the original query is already simple and self-contained, just return the original query as a single item in the list.

Output the results as a JSON list of strings. Example: ["sub-question 1", "sub-question 2"] or ["original query"]

Chat History:
---
%s
---

Original Query: "%s"

JSON Output:`, formatHistory(history), query)

	temp := decomposeTemperature
	var subQuestions []string
	err := structured.Call(ctx, u.gen, &model.Request{
		Prompt:          prompt,
		Temperature:     &temp,
		MaxOutputTokens: decomposeMaxTokens,
	}, &subQuestions)
	if err != nil || len(subQuestions) == 0 {
		log.Warnf("query decomposition failed, using original query: %v", err)
		return []string{query}
	}
	cleaned := subQuestions[:0]
	for _, q := range subQuestions {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
	}
	if len(cleaned) == 0 {
		return []string{query}
	}
	return cleaned
}

// Variations generates diverse rephrasings of query, always including the
// original. On failure it returns just the original query.
func (u *Understander) Variations(ctx context.Context, query string, history []model.Message) []string {
	prompt := fmt.Sprintf(`Given the following chat history and the latest user query, generate 3-5 diverse rephrasings or expansions of the original query. Focus on capturing different facets or underlying intents of the query, considering the conversation context. Output *only* the rephrased queries, each on a new line, without any preamble or numbering.
Include the original query itself in the output list.

Chat History:
---
%s
---

Original Query: "%s"

Rephrased Queries (including original):`, formatHistory(history), query)

	temp := variationTemperature
	rsp, err := u.gen.Generate(ctx, &model.Request{
		Prompt:          prompt,
		Temperature:     &temp,
		MaxOutputTokens: variationMaxTokens,
	})
	if err != nil || rsp.FinishReason == model.FinishSafety || rsp.Text == "" {
		log.Warnf("query variation generation failed, using original query: %v", err)
		return []string{query}
	}

	variations := []string{query}
	seen := map[string]bool{query: true}
	for _, line := range strings.Split(rsp.Text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		variations = append(variations, line)
	}
	return variations
}

// Sufficiency judges whether the context preview likely answers all
// sub-questions and proposes follow-up questions. On failure it reports
// insufficient with no follow-ups.
func (u *Understander) Sufficiency(ctx context.Context, query string, subQuestions []string, contextPreview string) SufficiencyResult {
	subList := make([]string, 0, len(subQuestions))
	for _, q := range subQuestions {
		subList = append(subList, "- "+q)
	}
	prompt := fmt.Sprintf(`Given the original user query, the sub-questions derived from it, and a preview of the retrieved context, analyze if the context likely contains enough information to fully answer *all* the sub-questions.
Then, generate 1-3 potential follow-up questions the user might ask next, based on the original query and the provided context. If unsure, provide an empty list.

Original Query: "%s"

Sub-questions derived:
%s

Retrieved Context Preview:
---
%s
---

Analysis Task:
1. Sufficiency: Based *only* on the preview, is it likely the full retrieved context can answer *all* the sub-questions? Answer true or false.
2. Follow-up Questions: Generate 1-3 concise follow-up questions a user might ask next, related to the original query or the provided context. If unsure, provide an empty list.

Output the results as a single JSON object with two keys: "sufficient" (boolean) and "follow_ups" (list of strings).
Example: {"sufficient": true, "follow_ups": ["What are the side effects?", "How does it compare to product Y?"]}`,
		query, strings.Join(subList, "\n"), contextPreview)

	temp := sufficiencyTemperature
	var result SufficiencyResult
	err := structured.Call(ctx, u.gen, &model.Request{
		Prompt:          prompt,
		Temperature:     &temp,
		MaxOutputTokens: sufficiencyMaxTokens,
	}, &result, structured.WithRequiredKeys("sufficient", "follow_ups"))
	if err != nil {
		log.Warnf("sufficiency analysis failed, treating as insufficient: %v", err)
		return SufficiencyResult{Sufficient: false, FollowUps: []string{}}
	}
	if result.FollowUps == nil {
		result.FollowUps = []string{}
	}
	return result
}
