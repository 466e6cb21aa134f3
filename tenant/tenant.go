//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package tenant provides per-tenant pipeline configuration.
package tenant

import "context"

// Defaults applied where a tenant config leaves a field zero.
const (
	DefaultMaxRounds               = 3
	DefaultVariationLimit          = 10
	DefaultDenseTopK               = 10
	DefaultHybridChunksPerQuery    = 5
	DefaultFinalContextChunks      = 5
	DefaultTokenBudget             = 4000
	DefaultRRFK                    = 60
	DefaultSufficiencyPreviewCount = 3
	DefaultSufficiencyPreviewChars = 200
)

// Config is one tenant's pipeline settings.
type Config struct {
	// BasePrompt is the tenant's persona prompt prepended to synthesis.
	// Empty means the library default.
	BasePrompt string
	// MaxRounds bounds the iterative retrieval loop.
	MaxRounds int
	// VariationLimit bounds how many query variations run in total across
	// all rounds.
	VariationLimit int
	// DenseTopK is the candidate count requested from the vector store
	// per variation.
	DenseTopK int
	// HybridChunksPerQuery is how many fused chunk IDs each variation
	// contributes after RRF.
	HybridChunksPerQuery int
	// FinalContextChunks is how many reranked chunks enter the context.
	FinalContextChunks int
	// TokenBudget is the compression target in tokens.
	TokenBudget int
	// RRFK is the rank-fusion smoothing constant.
	RRFK int
	// SufficiencyPreviewCount is how many chunks appear in the
	// sufficiency preview.
	SufficiencyPreviewCount int
	// SufficiencyPreviewChars is the per-chunk preview length.
	SufficiencyPreviewChars int
}

// WithDefaults fills zero fields with the library defaults.
func (c Config) WithDefaults() Config {
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.VariationLimit <= 0 {
		c.VariationLimit = DefaultVariationLimit
	}
	if c.DenseTopK <= 0 {
		c.DenseTopK = DefaultDenseTopK
	}
	if c.HybridChunksPerQuery <= 0 {
		c.HybridChunksPerQuery = DefaultHybridChunksPerQuery
	}
	if c.FinalContextChunks <= 0 {
		c.FinalContextChunks = DefaultFinalContextChunks
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = DefaultTokenBudget
	}
	if c.RRFK <= 0 {
		c.RRFK = DefaultRRFK
	}
	if c.SufficiencyPreviewCount <= 0 {
		c.SufficiencyPreviewCount = DefaultSufficiencyPreviewCount
	}
	if c.SufficiencyPreviewChars <= 0 {
		c.SufficiencyPreviewChars = DefaultSufficiencyPreviewChars
	}
	return c
}

// Provider resolves tenant configuration at query time.
type Provider interface {
	Config(ctx context.Context, tenantID string) (Config, error)
}

// StaticProvider serves fixed per-tenant configs with a shared fallback.
type StaticProvider struct {
	fallback Config
	configs  map[string]Config
}

// NewStaticProvider creates a provider returning fallback for unknown
// tenants.
func NewStaticProvider(fallback Config, configs map[string]Config) *StaticProvider {
	return &StaticProvider{fallback: fallback, configs: configs}
}

// Config implements Provider.
func (p *StaticProvider) Config(_ context.Context, tenantID string) (Config, error) {
	if c, ok := p.configs[tenantID]; ok {
		return c.WithDefaults(), nil
	}
	return p.fallback.WithDefaults(), nil
}
