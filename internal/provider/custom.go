// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"fmt"
	"strings"
)

// Custom is the adapter for a user-supplied OpenAI-compatible endpoint,
// typically a local inference server. The endpoint is required; the API
// key is optional because local servers often run unauthenticated.
type Custom struct{}

// Name returns the adapter's display name.
func (Custom) Name() string { return "Custom" }

// Complete sends one chat turn to the configured endpoint.
func (a Custom) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.BaseURL) == "" {
		return "", fmt.Errorf("%w: custom endpoint URL not set", ErrNotConfigured)
	}
	if req.Model == "" {
		return "", fmt.Errorf("%w: custom model name not set", ErrNotConfigured)
	}
	return completeOAI(ctx, a.Name(), strings.TrimSpace(req.BaseURL), strings.TrimSpace(req.APIKey), req)
}
