// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"fmt"
	"strings"
)

// DefaultOpenAIURL is the base URL for the OpenAI API.
const DefaultOpenAIURL = "https://api.openai.com/v1"

// DefaultOpenAIModel is used when the request names no model.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI is the adapter for the OpenAI chat completions API.
type OpenAI struct{}

// Name returns the adapter's display name.
func (OpenAI) Name() string { return "OpenAI" }

// Complete sends one chat turn to OpenAI.
func (a OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return "", fmt.Errorf("%w: OpenAI API key not set", ErrNotConfigured)
	}

	baseURL := req.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	if req.Model == "" {
		req.Model = DefaultOpenAIModel
	}
	return completeOAI(ctx, a.Name(), baseURL, strings.TrimSpace(req.APIKey), req)
}
