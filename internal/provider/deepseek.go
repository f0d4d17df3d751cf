// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"fmt"
	"strings"
)

// DefaultDeepSeekURL is the base URL for the DeepSeek API.
const DefaultDeepSeekURL = "https://api.deepseek.com/v1"

// DefaultDeepSeekModel is used when the request names no model.
const DefaultDeepSeekModel = "deepseek-chat"

// DeepSeek is the adapter for the DeepSeek API, which speaks the
// chat/completions schema.
type DeepSeek struct{}

// Name returns the adapter's display name.
func (DeepSeek) Name() string { return "DeepSeek" }

// Complete sends one chat turn to DeepSeek.
func (a DeepSeek) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return "", fmt.Errorf("%w: DeepSeek API key not set", ErrNotConfigured)
	}

	baseURL := req.BaseURL
	if baseURL == "" {
		baseURL = DefaultDeepSeekURL
	}
	if req.Model == "" {
		req.Model = DefaultDeepSeekModel
	}
	return completeOAI(ctx, a.Name(), baseURL, strings.TrimSpace(req.APIKey), req)
}
