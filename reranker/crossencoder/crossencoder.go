//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package crossencoder implements Reranker against a self-hosted
// cross-encoder service speaking the Infinity/TEI rerank API.
package crossencoder

import (
	"context"
	"net/http"
	"os"

	"github.com/ansera-ai/ansera/reranker"
	"github.com/ansera-ai/ansera/reranker/internal/httpclient"
)

const envRerankEndpoint = "RERANK_ENDPOINT"

// Reranker scores query/document pairs with a remote cross-encoder model.
type Reranker struct {
	endpoint   string
	apiKey     string
	modelName  string
	topN       int
	httpClient *httpclient.Client
}

// Option configures Reranker.
type Option func(*Reranker)

// WithEndpoint sets the rerank endpoint URL.
func WithEndpoint(endpoint string) Option {
	return func(r *Reranker) {
		r.endpoint = endpoint
	}
}

// WithAPIKey sets the API key (optional for self-hosted).
func WithAPIKey(key string) Option {
	return func(r *Reranker) {
		r.apiKey = key
	}
}

// WithModel sets the model name (optional, depends on server config).
func WithModel(model string) Option {
	return func(r *Reranker) {
		r.modelName = model
	}
}

// WithTopN truncates the reranked list to the top N results.
func WithTopN(n int) Option {
	return func(r *Reranker) {
		r.topN = n
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Reranker) {
		r.httpClient = httpclient.NewClient(client)
	}
}

// New creates a cross-encoder reranker. The endpoint defaults to the
// RERANK_ENDPOINT environment variable.
func New(opts ...Option) *Reranker {
	r := &Reranker{
		endpoint:   os.Getenv(envRerankEndpoint),
		topN:       -1,
		httpClient: httpclient.NewClient(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank implements the reranker.Reranker interface.
func (r *Reranker) Rerank(
	ctx context.Context,
	query *reranker.Query,
	results []*reranker.Result,
) ([]*reranker.Result, error) {
	if len(results) == 0 {
		return results, nil
	}

	docs := make([]string, len(results))
	for i, res := range results {
		docs[i] = res.Chunk.Text
	}

	req := httpclient.RerankRequest{
		Model:     r.modelName,
		Query:     query.Text,
		Documents: docs,
		TopN:      r.topN,
	}

	reranked, err := r.httpClient.Rerank(ctx, r.endpoint, r.apiKey, req, results)
	if err != nil {
		return nil, err
	}

	if r.topN > 0 && len(reranked) > r.topN {
		reranked = reranked[:r.topN]
	}
	return reranked, nil
}
