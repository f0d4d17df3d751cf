// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router dispatches chat requests to the configured provider
// backend.
//
// Provider is a closed enumeration: the dispatcher switches exhaustively
// over the known values and returns ErrUnknownProvider for anything else,
// so a stale or corrupted configuration value fails loudly instead of
// silently falling through to a default backend.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"queryquant/internal/provider"
)

// =============================================================================
// PROVIDER ENUMERATION
// =============================================================================

// Provider identifies a chat backend.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderDeepSeek  Provider = "deepseek"
	ProviderCustom    Provider = "custom"
)

// All lists every known provider, in display order.
func All() []Provider {
	return []Provider{
		ProviderGemini,
		ProviderOpenAI,
		ProviderAnthropic,
		ProviderDeepSeek,
		ProviderCustom,
	}
}

// String returns the provider's identifier.
func (p Provider) String() string {
	return string(p)
}

// DisplayName returns a human-readable provider name.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGemini:
		return "Gemini"
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic"
	case ProviderDeepSeek:
		return "DeepSeek"
	case ProviderCustom:
		return "Custom"
	default:
		return string(p)
	}
}

// Valid reports whether the provider is a known value.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderDeepSeek, ProviderCustom:
		return true
	default:
		return false
	}
}

// Parse converts a string into a Provider, case-insensitively.
func Parse(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
	return p, nil
}

// =============================================================================
// DISPATCH
// =============================================================================

// ErrUnknownProvider is returned when a request names a provider outside
// the closed enumeration.
var ErrUnknownProvider = errors.New("unknown provider")

// adapters maps each provider to its backend. Populated once at init;
// the dispatch switch below stays the single source of truth for what
// counts as a known provider.
var adapters = map[Provider]provider.Adapter{
	ProviderGemini:    provider.Gemini{},
	ProviderOpenAI:    provider.OpenAI{},
	ProviderAnthropic: provider.Anthropic{},
	ProviderDeepSeek:  provider.DeepSeek{},
	ProviderCustom:    provider.Custom{},
}

// Route sends a chat request to the named provider and returns the reply
// text. Unknown providers fail with ErrUnknownProvider before any network
// activity.
func Route(ctx context.Context, p Provider, req provider.Request) (string, error) {
	switch p {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderDeepSeek, ProviderCustom:
		return adapters[p].Complete(ctx, req)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
}

// Adapter returns the backend for a provider, or ErrUnknownProvider.
func Adapter(p Provider) (provider.Adapter, error) {
	a, ok := adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return a, nil
}
