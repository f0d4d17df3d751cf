// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"queryquant/internal/model"
)

func TestAdaptersFailFastWithoutCredentials(t *testing.T) {
	// No server: a network attempt would fail differently than
	// ErrNotConfigured, so these must short-circuit.
	tests := []struct {
		name    string
		adapter Adapter
		req     Request
	}{
		{"gemini no key", Gemini{}, Request{Text: "hi"}},
		{"openai no key", OpenAI{}, Request{Text: "hi"}},
		{"deepseek no key", DeepSeek{}, Request{Text: "hi"}},
		{"anthropic no key", Anthropic{}, Request{Text: "hi"}},
		{"custom no endpoint", Custom{}, Request{Text: "hi", APIKey: "k", Model: "m"}},
		{"custom no model", Custom{}, Request{Text: "hi", BaseURL: "http://localhost:1"}},
		{"whitespace key rejected", OpenAI{}, Request{Text: "hi", APIKey: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.adapter.Complete(context.Background(), tt.req)
			if !errors.Is(err, ErrNotConfigured) {
				t.Errorf("expected ErrNotConfigured, got %v", err)
			}
		})
	}
}

func TestOpenAISchemaRequestShape(t *testing.T) {
	var captured struct {
		path    string
		auth    string
		payload oaiChatRequest
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured.payload)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	}))
	defer server.Close()

	req := Request{
		Text:         "current question",
		SystemPrompt: "be brief",
		APIKey:       "sk-test",
		Model:        "gpt-4o-mini",
		BaseURL:      server.URL,
		History: []model.Message{
			{Role: model.RoleUser, Text: "earlier question"},
			{Role: model.RoleModel, Text: "earlier answer"},
		},
	}

	got, err := OpenAI{}.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "pong" {
		t.Errorf("reply = %q, want %q", got, "pong")
	}

	if captured.path != "/chat/completions" {
		t.Errorf("path = %q", captured.path)
	}
	if captured.auth != "Bearer sk-test" {
		t.Errorf("auth = %q", captured.auth)
	}

	msgs := captured.payload.Messages
	if len(msgs) != 4 {
		t.Fatalf("message count = %d, want 4", len(msgs))
	}
	if msgs[0].Role != "system" {
		t.Errorf("first role = %q, want system", msgs[0].Role)
	}
	if msgs[2].Role != "assistant" {
		t.Errorf("history model turn mapped to %q, want assistant", msgs[2].Role)
	}
	if msgs[3].Content != "current question" {
		t.Errorf("final turn content = %v", msgs[3].Content)
	}
}

func TestOpenAISchemaAttachmentBecomesDataURI(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &raw)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	req := Request{
		Text:    "what is this?",
		APIKey:  "sk-test",
		BaseURL: server.URL,
		Attachments: []model.Attachment{
			{MimeType: "image/png", Data: "QUJD"},
		},
	}
	if _, err := (OpenAI{}).Complete(context.Background(), req); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	messages := raw["messages"].([]any)
	last := messages[len(messages)-1].(map[string]any)
	parts := last["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("part count = %d, want 2", len(parts))
	}
	img := parts[1].(map[string]any)
	url := img["image_url"].(map[string]any)["url"].(string)
	if url != "data:image/png;base64,QUJD" {
		t.Errorf("image url = %q", url)
	}
}

func TestGeminiRequestShape(t *testing.T) {
	var captured struct {
		path    string
		key     string
		payload geminiRequest
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.key = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured.payload)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello "},{"text":"there"}]}}]}`))
	}))
	defer server.Close()

	req := Request{
		Text:         "follow-up",
		SystemPrompt: "answer in haiku",
		APIKey:       "gm-key",
		Model:        "gemini-2.5-flash",
		BaseURL:      server.URL,
		History: []model.Message{
			{Role: model.RoleUser, Text: "look", Attachments: []model.Attachment{
				{MimeType: "image/jpeg", Data: "SU1H"},
			}},
			{Role: model.RoleModel, Text: "a cat"},
		},
	}

	got, err := Gemini{}.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello there" {
		t.Errorf("reply = %q, want concatenated parts", got)
	}

	if !strings.HasSuffix(captured.path, "/models/gemini-2.5-flash:generateContent") {
		t.Errorf("path = %q", captured.path)
	}
	if captured.key != "gm-key" {
		t.Errorf("api key header = %q", captured.key)
	}
	if captured.payload.SystemInstruction == nil ||
		captured.payload.SystemInstruction.Parts[0].Text != "answer in haiku" {
		t.Errorf("system instruction missing")
	}

	contents := captured.payload.Contents
	if len(contents) != 3 {
		t.Fatalf("content count = %d, want 3", len(contents))
	}
	// History image is resent as inlineData.
	if contents[0].Parts[0].InlineData == nil || contents[0].Parts[0].InlineData.Data != "SU1H" {
		t.Errorf("history attachment not resent: %+v", contents[0].Parts)
	}
	if contents[1].Role != "model" {
		t.Errorf("history model turn role = %q, want model", contents[1].Role)
	}
	if contents[2].Parts[0].Text != "follow-up" {
		t.Errorf("final turn = %+v", contents[2].Parts)
	}
}

func TestGeminiEmptyCandidatesYieldsPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	got, err := Gemini{}.Complete(context.Background(), Request{
		Text: "hi", APIKey: "k", BaseURL: server.URL,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != noResponsePlaceholder {
		t.Errorf("reply = %q, want placeholder", got)
	}
}

func TestAnthropicRequestShape(t *testing.T) {
	var captured struct {
		key     string
		version string
		payload anthRequest
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.key = r.Header.Get("x-api-key")
		captured.version = r.Header.Get("anthropic-version")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured.payload)
		w.Write([]byte(`{"content":[{"type":"text","text":"claude says hi"}]}`))
	}))
	defer server.Close()

	req := Request{
		Text:         "what is in this image?",
		SystemPrompt: "be helpful",
		APIKey:       "anth-key",
		BaseURL:      server.URL,
		Attachments: []model.Attachment{
			{MimeType: "image/png", Data: "UE5H"},
		},
		History: []model.Message{
			{Role: model.RoleUser, Text: "old turn", Attachments: []model.Attachment{
				{MimeType: "image/png", Data: "T0xE"},
			}},
			{Role: model.RoleModel, Text: "old reply"},
		},
	}

	got, err := Anthropic{}.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "claude says hi" {
		t.Errorf("reply = %q", got)
	}

	if captured.key != "anth-key" {
		t.Errorf("x-api-key = %q", captured.key)
	}
	if captured.version != anthropicVersion {
		t.Errorf("anthropic-version = %q", captured.version)
	}
	if captured.payload.MaxTokens != anthropicMaxTokens {
		t.Errorf("max_tokens = %d", captured.payload.MaxTokens)
	}
	if captured.payload.System != "be helpful" {
		t.Errorf("system = %q", captured.payload.System)
	}

	msgs := captured.payload.Messages
	if len(msgs) != 3 {
		t.Fatalf("message count = %d, want 3", len(msgs))
	}
	// History turns stay plain text: the stored image must not be resent.
	if _, ok := msgs[0].Content.(string); !ok {
		t.Errorf("history turn should be a plain string, got %T", msgs[0].Content)
	}
	if msgs[1].Role != "assistant" {
		t.Errorf("history model turn role = %q, want assistant", msgs[1].Role)
	}
	// Current turn carries the image as a base64 block.
	blocks, ok := msgs[2].Content.([]any)
	if !ok || len(blocks) != 2 {
		t.Fatalf("final turn content = %#v", msgs[2].Content)
	}
	img := blocks[0].(map[string]any)
	if img["type"] != "image" {
		t.Errorf("first block type = %v, want image", img["type"])
	}
	source := img["source"].(map[string]any)
	if source["media_type"] != "image/png" || source["data"] != "UE5H" {
		t.Errorf("image source = %v", source)
	}
}

func TestErrorEnvelopeMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":"invalid_key","message":"bad key"}}`, ErrAuthFailed},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimited},
		{"model missing", http.StatusNotFound, `{"error":{"message":"no such model"}}`, ErrModelNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := OpenAI{}.Complete(context.Background(), Request{
				Text: "hi", APIKey: "k", BaseURL: server.URL,
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			// The failing backend is named so the transcript and the CLI
			// show where the error came from.
			if !strings.Contains(err.Error(), (OpenAI{}).Name()) {
				t.Errorf("error %q does not name the provider", err)
			}
		})
	}
}

func TestProviderErrorCarriesEnvelopeDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"type":"overloaded_error","message":"try later"}}`))
	}))
	defer server.Close()

	_, err := Anthropic{}.Complete(context.Background(), Request{
		Text: "hi", APIKey: "k", BaseURL: server.URL,
	})

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d", perr.Status)
	}
	if perr.Code != "overloaded_error" || perr.Message != "try later" {
		t.Errorf("envelope not carried: %+v", perr)
	}
}

func TestUnparseableErrorBodyFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	_, err := DeepSeek{}.Complete(context.Background(), Request{
		Text: "hi", APIKey: "k", BaseURL: server.URL,
	})

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Status != http.StatusBadGateway || perr.Message != "upstream exploded" {
		t.Errorf("fallback error = %+v", perr)
	}
}

func TestEmptyChoicesYieldsPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	got, err := Custom{}.Complete(context.Background(), Request{
		Text: "hi", BaseURL: server.URL, Model: "local-model",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != noResponsePlaceholder {
		t.Errorf("reply = %q, want placeholder", got)
	}
}

func TestCustomAdapterOmitsAuthWithoutKey(t *testing.T) {
	var auth string
	var sawAuthHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, sawAuthHeader = r.Header.Get("Authorization"), r.Header.Get("Authorization") != ""
		w.Write([]byte(`{"choices":[{"message":{"content":"local"}}]}`))
	}))
	defer server.Close()

	got, err := Custom{}.Complete(context.Background(), Request{
		Text: "hi", BaseURL: server.URL, Model: "llama",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "local" {
		t.Errorf("reply = %q", got)
	}
	if sawAuthHeader {
		t.Errorf("unexpected Authorization header %q", auth)
	}
}

func TestContextCancellationAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := OpenAI{}.Complete(ctx, Request{Text: "hi", APIKey: "k", BaseURL: server.URL})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
