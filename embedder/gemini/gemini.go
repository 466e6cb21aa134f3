//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package gemini implements embedder.Embedder using Gemini embedding models.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const (
	defaultModel = "text-embedding-004"

	taskRetrievalQuery    = "RETRIEVAL_QUERY"
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
)

// Models is the subset of the genai model service used for embeddings.
type Models interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type genaiModels struct {
	models *genai.Models
}

func (g *genaiModels) EmbedContent(ctx context.Context, model string, contents []*genai.Content,
	config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	return g.models.EmbedContent(ctx, model, contents, config)
}

// Embedder implements embedder.Embedder for the Gemini embedding API.
type Embedder struct {
	models     Models
	model      string
	dimensions int
}

type options struct {
	clientConfig *genai.ClientConfig
	models       Models
	model        string
	dimensions   int
}

// Option configures Embedder.
type Option func(*options)

// WithClientConfig sets the ClientConfig used for client initialization.
func WithClientConfig(c *genai.ClientConfig) Option {
	return func(o *options) {
		o.clientConfig = c
	}
}

// WithAPIKey sets the Gemini API key.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.clientConfig = &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		}
	}
}

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithDimensions records the expected vector dimensionality.
func WithDimensions(d int) Option {
	return func(o *options) {
		o.dimensions = d
	}
}

// WithModels injects a pre-built model service, bypassing genai
// initialization.
func WithModels(m Models) Option {
	return func(o *options) {
		o.models = m
	}
}

// New creates a Gemini-backed embedder.
func New(ctx context.Context, opts ...Option) (*Embedder, error) {
	o := options{
		model:      defaultModel,
		dimensions: -1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.models != nil {
		return &Embedder{models: o.models, model: o.model, dimensions: o.dimensions}, nil
	}
	client, err := genai.NewClient(ctx, o.clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Embedder{
		models:     &genaiModels{models: client.Models},
		model:      o.model,
		dimensions: o.dimensions,
	}, nil
}

// EmbedQuery implements the embedder.Embedder interface.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return e.embed(ctx, text, taskRetrievalQuery)
}

// EmbedDocument implements the embedder.Embedder interface.
func (e *Embedder) EmbedDocument(ctx context.Context, text string) ([]float64, error) {
	return e.embed(ctx, text, taskRetrievalDocument)
}

// GetDimensions implements the embedder.Embedder interface.
func (e *Embedder) GetDimensions() int {
	return e.dimensions
}

func (e *Embedder) embed(ctx context.Context, text, taskType string) ([]float64, error) {
	if text == "" {
		return nil, errors.New("text is empty")
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	rsp, err := e.models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if rsp == nil || len(rsp.Embeddings) == 0 || len(rsp.Embeddings[0].Values) == 0 {
		return nil, errors.New("empty embedding response")
	}
	values := rsp.Embeddings[0].Values
	vector := make([]float64, len(values))
	for i, v := range values {
		vector[i] = float64(v)
	}
	return vector, nil
}
