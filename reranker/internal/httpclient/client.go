//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package httpclient provides a common HTTP client for Reranker implementations.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/ansera-ai/ansera/log"
	"github.com/ansera-ai/ansera/reranker"
)

// Client is a shared HTTP client for cross-encoder rerank services. It
// handles the request/response logic of APIs compatible with the
// Cohere/Infinity rerank shape.
type Client struct {
	client *http.Client
}

// NewClient creates a new Client.
func NewClient(client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{client: client}
}

// RerankRequest represents the request payload for reranking.
type RerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Rerank performs the reranking request and maps returned scores back onto
// the original results, sorted by score descending.
func (c *Client) Rerank(
	ctx context.Context,
	endpoint string,
	apiKey string,
	reqPayload RerankRequest,
	originalResults []*reranker.Result,
) ([]*reranker.Result, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is empty")
	}

	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	reranked := make([]*reranker.Result, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		if r.Index >= 0 && r.Index < len(originalResults) {
			res := *originalResults[r.Index]
			res.Score = r.RelevanceScore
			reranked = append(reranked, &res)
		} else {
			log.Warnf("Invalid index from reranker: %d", r.Index)
		}
	}

	sort.Slice(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})

	return reranked, nil
}
