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

// DefaultGeminiURL is the base URL for the Gemini REST API.
const DefaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultGeminiModel is used when the request names no model.
const DefaultGeminiModel = "gemini-2.5-flash"

// =============================================================================
// GEMINI WIRE TYPES
// =============================================================================

// geminiPart is one part of a Gemini content block: text or inline image.
type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// geminiContent is one turn. Role is "user" or "model".
type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// =============================================================================
// GEMINI ADAPTER
// =============================================================================

// Gemini is the adapter for the Google Gemini generateContent API. Unlike
// the chat/completions providers, Gemini re-sends stored history images as
// inlineData parts on every turn.
type Gemini struct{}

// Name returns the adapter's display name.
func (Gemini) Name() string { return "Gemini" }

// Complete sends one chat turn to Gemini.
func (a Gemini) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return "", fmt.Errorf("%w: Gemini API key not set", ErrNotConfigured)
	}

	baseURL := req.BaseURL
	if baseURL == "" {
		baseURL = DefaultGeminiURL
	}
	modelName := req.Model
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	url := strings.TrimSuffix(baseURL, "/") + "/models/" + modelName + ":generateContent"

	payload := geminiRequest{Contents: buildGeminiContents(req)}
	if req.SystemPrompt != "" {
		payload.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		}
	}

	headers := map[string]string{
		"x-goog-api-key": strings.TrimSpace(req.APIKey),
	}

	body, err := doJSON(ctx, a.Name(), url, headers, payload)
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return geminiText(resp), nil
}

// buildGeminiContents translates history plus the current turn into Gemini
// content blocks. Attachments become inlineData parts, history included.
func buildGeminiContents(req Request) []geminiContent {
	contents := make([]geminiContent, 0, len(req.History)+1)

	for _, m := range req.History {
		role := "user"
		if m.Role == model.RoleModel {
			role = "model"
		}
		contents = append(contents, geminiContent{
			Role:  role,
			Parts: geminiParts(m.Text, m.Attachments),
		})
	}

	contents = append(contents, geminiContent{
		Role:  "user",
		Parts: geminiParts(req.Text, req.Attachments),
	})
	return contents
}

// geminiParts builds the part list for one turn. Images lead so an
// image-only turn still yields a non-empty part list.
func geminiParts(text string, attachments []model.Attachment) []geminiPart {
	parts := make([]geminiPart, 0, len(attachments)+1)
	for _, att := range attachments {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{MimeType: att.MimeType, Data: att.Data},
		})
	}
	if text != "" || len(parts) == 0 {
		parts = append(parts, geminiPart{Text: text})
	}
	return parts
}

// geminiText extracts the reply text from the first candidate.
func geminiText(resp geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return noResponsePlaceholder
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return noResponsePlaceholder
	}
	return sb.String()
}
