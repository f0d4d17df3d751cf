// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements adapters for the supported LLM HTTP APIs.
//
// Each provider speaks a different wire schema. The adapters translate the
// shared Request type into the provider's native request shape, parse its
// native response, and normalize failures into ProviderError so callers
// handle every provider the same way.
package provider

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"queryquant/internal/model"
)

// Configuration constants shared by all adapters.
const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion attacks.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// noResponsePlaceholder substitutes for a well-formed reply that carries
	// no text, so the transcript never records an empty model turn.
	noResponsePlaceholder = "No response received."
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared HTTP client with connection pooling for all provider requests.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	Timeout: DefaultTimeout,
}

// sharedLimiter smooths request bursts across all adapters so rapid
// regenerate clicks cannot trip provider rate limits.
var sharedLimiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 3)

// =============================================================================
// ERRORS
// =============================================================================

// Error variables for common provider failures.
var (
	// ErrNotConfigured indicates the API key (or endpoint) is not set.
	ErrNotConfigured = errors.New("provider not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")
)

// ProviderError represents an error response from a provider API.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Status   int
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s error [%s] (HTTP %d): %s", e.Provider, e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error (HTTP %d): %s", e.Provider, e.Status, e.Message)
}

// apiErrorResponse is the error envelope shared by every supported API.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// REQUEST / ADAPTER
// =============================================================================

// Request is the provider-neutral chat request. History holds the prior
// transcript; Text and Attachments form the current turn.
type Request struct {
	Text         string
	Attachments  []model.Attachment
	History      []model.Message
	SystemPrompt string

	APIKey  string
	Model   string
	BaseURL string
}

// Adapter is implemented by every provider backend. Complete blocks until
// the provider replies and returns the model's text.
type Adapter interface {
	// Name returns the adapter's display name.
	Name() string

	// Complete sends one chat turn and returns the reply text.
	Complete(ctx context.Context, req Request) (string, error)
}

// =============================================================================
// SHARED HTTP HELPERS
// =============================================================================

// doJSON posts a JSON body and returns the response body, normalizing
// non-2xx statuses into ProviderError via the shared error envelope.
func doJSON(ctx context.Context, provider, url string, headers map[string]string, payload any) ([]byte, error) {
	if err := sharedLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(bodyBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "queryquant/0.1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := sharedHTTPClient.Do(req)

	// SECURITY: Clear auth headers immediately after the request to prevent logging
	req.Header.Del("Authorization")
	req.Header.Del("x-api-key")
	req.Header.Del("x-goog-api-key")

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, handleErrorResponse(provider, resp.StatusCode, body)
	}
	return body, nil
}

// readResponse reads the response body with size limits.
//
// SECURITY: Response size limit prevents memory exhaustion attacks.
func readResponse(resp *http.Response) ([]byte, error) {
	limitedReader := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse converts HTTP error responses to Go errors.
func handleErrorResponse(provider string, statusCode int, body []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		code := apiErr.Error.Code
		if code == "" {
			code = apiErr.Error.Type
		}
		perr := &ProviderError{
			Provider: provider,
			Code:     code,
			Message:  apiErr.Error.Message,
			Status:   statusCode,
		}

		// The provider name stays on the error so the transcript shows
		// which backend failed.
		switch statusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%s: %w: %s", provider, ErrAuthFailed, perr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w: %s", provider, ErrModelNotFound, perr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w: %s", provider, ErrRateLimited, perr.Message)
		default:
			return perr
		}
	}

	// Fallback for unparseable error responses.
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w", provider, ErrAuthFailed)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", provider, ErrModelNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", provider, ErrRateLimited)
	default:
		return &ProviderError{
			Provider: provider,
			Message:  strings.TrimSpace(string(body)),
			Status:   statusCode,
		}
	}
}

// dataURI builds a data URI from an attachment for APIs that inline images.
func dataURI(att model.Attachment) string {
	return "data:" + att.MimeType + ";base64," + att.Data
}
