// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"queryquant/internal/model"
)

// DefaultAnthropicURL is the base URL for the Anthropic API.
const DefaultAnthropicURL = "https://api.anthropic.com/v1"

// DefaultAnthropicModel is used when the request names no model.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// anthropicVersion is the required API version header value.
const anthropicVersion = "2023-06-01"

// anthropicMaxTokens caps reply length; the messages API requires it.
const anthropicMaxTokens = 4096

// =============================================================================
// ANTHROPIC WIRE TYPES
// =============================================================================

// anthMessage is one turn. Content is a plain string for text-only turns
// and a block array when images ride along.
type anthMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// anthContentBlock is one element of a mixed text/image content array.
type anthContentBlock struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthImageSource `json:"source,omitempty"`
}

type anthImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []anthMessage `json:"messages"`
}

type anthResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// =============================================================================
// ANTHROPIC ADAPTER
// =============================================================================

// Anthropic is the adapter for the Anthropic messages API. Authentication
// uses the x-api-key header rather than a bearer token, and only the
// current turn carries images; stored history images are not resent.
type Anthropic struct{}

// Name returns the adapter's display name.
func (Anthropic) Name() string { return "Anthropic" }

// Complete sends one chat turn to Anthropic.
func (a Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return "", fmt.Errorf("%w: Anthropic API key not set", ErrNotConfigured)
	}

	baseURL := req.BaseURL
	if baseURL == "" {
		baseURL = DefaultAnthropicURL
	}
	modelName := req.Model
	if modelName == "" {
		modelName = DefaultAnthropicModel
	}

	payload := anthRequest{
		Model:     modelName,
		MaxTokens: anthropicMaxTokens,
		System:    req.SystemPrompt,
		Messages:  buildAnthMessages(req),
	}

	headers := map[string]string{
		"x-api-key":         strings.TrimSpace(req.APIKey),
		"anthropic-version": anthropicVersion,
	}

	body, err := doJSON(ctx, a.Name(), strings.TrimSuffix(baseURL, "/")+"/messages", headers, payload)
	if err != nil {
		return "", err
	}

	var resp anthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return noResponsePlaceholder, nil
	}
	return sb.String(), nil
}

// buildAnthMessages translates history plus the current turn into messages
// API turns. History is plain text; attachments appear only on the final
// user turn, as base64 image blocks.
func buildAnthMessages(req Request) []anthMessage {
	messages := make([]anthMessage, 0, len(req.History)+1)

	for _, m := range req.History {
		role := "user"
		if m.Role == model.RoleModel {
			role = "assistant"
		}
		messages = append(messages, anthMessage{Role: role, Content: m.Text})
	}

	if len(req.Attachments) == 0 {
		messages = append(messages, anthMessage{Role: "user", Content: req.Text})
		return messages
	}

	blocks := make([]anthContentBlock, 0, len(req.Attachments)+1)
	for _, att := range req.Attachments {
		blocks = append(blocks, anthContentBlock{
			Type: "image",
			Source: &anthImageSource{
				Type:      "base64",
				MediaType: att.MimeType,
				Data:      att.Data,
			},
		})
	}
	if req.Text != "" {
		blocks = append(blocks, anthContentBlock{Type: "text", Text: req.Text})
	}
	messages = append(messages, anthMessage{Role: "user", Content: blocks})
	return messages
}
