//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/ansera-ai/ansera/model"
)

// defaultModelName is used when the caller does not name a model.
const defaultModelName = "gemini-2.0-flash"

// Model implements model.Generator and model.TokenCounter for the Gemini API.
type Model struct {
	client Client
	name   string
}

type options struct {
	clientConfig *genai.ClientConfig
	client       Client
}

// Option configures Model.
type Option func(*options)

// WithClientConfig sets the ClientConfig used for client initialization.
func WithClientConfig(c *genai.ClientConfig) Option {
	return func(o *options) {
		o.clientConfig = c
	}
}

// WithAPIKey sets the Gemini API key. The GOOGLE_API_KEY environment
// variable is used when neither this nor a client config is given.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.clientConfig = &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		}
	}
}

// WithClient injects a pre-built client, bypassing genai initialization.
func WithClient(c Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// New creates a Gemini-backed generator.
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if name == "" {
		name = defaultModelName
	}
	if o.client != nil {
		return &Model{client: o.client, name: name}, nil
	}
	client, err := genai.NewClient(ctx, o.clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Model{client: &clientWrapper{client: client}, name: name}, nil
}

// Generate implements model.Generator.
func (m *Model) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	contents := buildContents(req)
	config := buildConfig(req)
	rsp, err := m.client.Models().GenerateContent(ctx, m.name, contents, config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	return buildResponse(rsp), nil
}

// CountTokens implements model.TokenCounter.
func (m *Model) CountTokens(ctx context.Context, text string) (int, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	rsp, err := m.client.Models().CountTokens(ctx, m.name, contents, nil)
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	if rsp == nil {
		return 0, errors.New("count tokens: empty response")
	}
	return int(rsp.TotalTokens), nil
}

// buildContents converts history plus prompt into the Gemini content list.
func buildContents(req *model.Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, msg := range req.History {
		role := genai.Role(genai.RoleUser)
		if msg.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))
	return contents
}

func buildConfig(req *model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(*req.Temperature)
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = req.MaxOutputTokens
	}
	if req.JSONOutput {
		config.ResponseMIMEType = "application/json"
	}
	return config
}

// buildResponse maps the provider response onto the model finish-reason
// taxonomy. A prompt-level block takes priority over candidate inspection.
func buildResponse(rsp *genai.GenerateContentResponse) *model.Response {
	if rsp == nil {
		return &model.Response{FinishReason: model.FinishEmpty}
	}
	if rsp.PromptFeedback != nil && rsp.PromptFeedback.BlockReason != "" {
		return &model.Response{
			FinishReason: model.FinishSafety,
			BlockReason:  string(rsp.PromptFeedback.BlockReason),
		}
	}
	text, finish := convertCandidates(rsp.Candidates)
	return &model.Response{
		Text:         text,
		FinishReason: finish,
	}
}

func convertCandidates(candidates []*genai.Candidate) (string, model.FinishReason) {
	if len(candidates) == 0 {
		return "", model.FinishEmpty
	}
	var textBuilder strings.Builder
	var finishReason genai.FinishReason
	for _, candidate := range candidates {
		if candidate.FinishReason != "" {
			finishReason = candidate.FinishReason
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				textBuilder.WriteString(part.Text)
			}
		}
	}
	text := textBuilder.String()
	switch string(finishReason) {
	case "STOP", "":
		if text == "" {
			return "", model.FinishEmpty
		}
		return text, model.FinishStop
	case "MAX_TOKENS":
		return text, model.FinishMaxTokens
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII":
		return text, model.FinishSafety
	default:
		return text, model.FinishOther
	}
}
