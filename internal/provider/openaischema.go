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

// =============================================================================
// OPENAI-COMPATIBLE CHAT SCHEMA
//
// OpenAI, DeepSeek, and user-supplied custom endpoints all speak the
// chat/completions schema; only base URL, default model, and key handling
// differ. This file holds the shared translation.
// =============================================================================

// oaiMessage is one message in a chat/completions request. Content is a
// plain string for text-only turns and a part array when images ride along.
type oaiMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// oaiContentPart is one element of a mixed text/image content array.
type oaiContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *oaiImagePart `json:"image_url,omitempty"`
}

type oaiImagePart struct {
	URL string `json:"url"`
}

type oaiChatRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// buildOAIMessages translates a Request into chat/completions messages.
// The system prompt leads, history follows as plain strings (stored images
// are not resent), and the current turn carries any attachments inline as
// data URIs.
func buildOAIMessages(req Request) []oaiMessage {
	messages := make([]oaiMessage, 0, len(req.History)+2)

	if req.SystemPrompt != "" {
		messages = append(messages, oaiMessage{Role: "system", Content: req.SystemPrompt})
	}

	for _, m := range req.History {
		role := "user"
		if m.Role == model.RoleModel {
			role = "assistant"
		}
		messages = append(messages, oaiMessage{Role: role, Content: m.Text})
	}

	if len(req.Attachments) == 0 {
		messages = append(messages, oaiMessage{Role: "user", Content: req.Text})
		return messages
	}

	parts := make([]oaiContentPart, 0, len(req.Attachments)+1)
	if req.Text != "" {
		parts = append(parts, oaiContentPart{Type: "text", Text: req.Text})
	}
	for _, att := range req.Attachments {
		parts = append(parts, oaiContentPart{
			Type:     "image_url",
			ImageURL: &oaiImagePart{URL: dataURI(att)},
		})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: parts})
	return messages
}

// completeOAI performs one chat/completions round trip.
func completeOAI(ctx context.Context, provider, baseURL, apiKey string, req Request) (string, error) {
	url := strings.TrimSuffix(baseURL, "/") + "/chat/completions"

	headers := map[string]string{}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}

	body, err := doJSON(ctx, provider, url, headers, oaiChatRequest{
		Model:    req.Model,
		Messages: buildOAIMessages(req),
	})
	if err != nil {
		return "", err
	}

	var chatResp oaiChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return noResponsePlaceholder, nil
	}
	return chatResp.Choices[0].Message.Content, nil
}
