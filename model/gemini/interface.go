//
// Ansera is pleased to support the open source community by making ansera available.
//
// Copyright (C) 2026 Ansera.  All rights reserved.
//
// ansera is licensed under the Apache License Version 2.0.
//
//

// Package gemini implements model.Generator on top of the Gemini API.
package gemini

import (
	"context"

	"google.golang.org/genai"
)

// Client is the GenAI client. It provides access to the various GenAI services.
type Client interface {
	Models() Models
}

// Models provides methods for interacting with the available language models.
type Models interface {
	// GenerateContent generates content based on the provided model, contents, and configuration.
	GenerateContent(ctx context.Context, model string, contents []*genai.Content,
		config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	// CountTokens counts the tokens of the provided contents.
	CountTokens(ctx context.Context, model string, contents []*genai.Content,
		config *genai.CountTokensConfig) (*genai.CountTokensResponse, error)
}

// clientWrapper implements Client.
type clientWrapper struct {
	client *genai.Client
}

// Models implements Client.Models.
func (c *clientWrapper) Models() Models {
	return &modelsWrapper{models: c.client.Models}
}

// modelsWrapper implements Models.
type modelsWrapper struct {
	models *genai.Models
}

// GenerateContent implements Models.GenerateContent.
func (m *modelsWrapper) GenerateContent(ctx context.Context, model string, contents []*genai.Content,
	config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.models.GenerateContent(ctx, model, contents, config)
}

// CountTokens implements Models.CountTokens.
func (m *modelsWrapper) CountTokens(ctx context.Context, model string, contents []*genai.Content,
	config *genai.CountTokensConfig) (*genai.CountTokensResponse, error) {
	return m.models.CountTokens(ctx, model, contents, config)
}
