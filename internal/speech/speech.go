// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech synthesizes spoken audio for model replies using the
// Gemini TTS API and plays it through an external system player.
package speech

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// CONSTANTS & ERRORS
// =============================================================================

const (
	// DefaultBaseURL is the Gemini API endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is the dedicated TTS model.
	DefaultModel = "gemini-2.5-flash-preview-tts"

	// DefaultVoice is the prebuilt voice used when none is configured.
	DefaultVoice = "Kore"

	// SampleRate is the PCM sample rate the TTS API returns.
	SampleRate = 24000

	// maxAudioSize caps the response body read (50MB).
	maxAudioSize = 50 * 1024 * 1024

	requestTimeout = 120 * time.Second
)

var (
	// ErrMissingKey indicates no Gemini API key is configured.
	ErrMissingKey = errors.New("gemini api key required for speech")

	// ErrNoAudio indicates the API returned no audio data.
	ErrNoAudio = errors.New("no audio data in response")

	// ErrNothingToSay indicates the text had no speakable content.
	ErrNothingToSay = errors.New("nothing readable in text")
)

// =============================================================================
// SYNTHESIZER
// =============================================================================

// Synthesizer performs text-to-speech requests.
type Synthesizer struct {
	// BaseURL overrides the Gemini endpoint. Empty uses DefaultBaseURL.
	BaseURL string
	// Model overrides the TTS model. Empty uses DefaultModel.
	Model string
	// Voice overrides the prebuilt voice. Empty uses DefaultVoice.
	Voice string
	// HTTPClient overrides the HTTP client used for requests.
	HTTPClient *http.Client
}

var defaultClient = &http.Client{
	Timeout: requestTimeout,
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
}

type ttsPart struct {
	Text       string `json:"text,omitempty"`
	InlineData *struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	} `json:"inlineData,omitempty"`
}

type ttsContent struct {
	Parts []ttsPart `json:"parts"`
}

type ttsRequest struct {
	Contents         []ttsContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
		SpeechConfig       struct {
			VoiceConfig struct {
				PrebuiltVoiceConfig struct {
					VoiceName string `json:"voiceName"`
				} `json:"prebuiltVoiceConfig"`
			} `json:"voiceConfig"`
		} `json:"speechConfig"`
	} `json:"generationConfig"`
}

type ttsResponse struct {
	Candidates []struct {
		Content ttsContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Synthesize converts text to 24 kHz mono 16-bit PCM audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text, apiKey string) ([]byte, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingKey
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNothingToSay
	}

	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	model := s.Model
	if model == "" {
		model = DefaultModel
	}
	voice := s.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	var payload ttsRequest
	payload.Contents = []ttsContent{{Parts: []ttsPart{{Text: text}}}}
	payload.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	payload.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voice

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimSuffix(base, "/"), model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	client := s.HTTPClient
	if client == nil {
		client = defaultClient
	}

	resp, err := client.Do(req)
	// SECURITY: Clear auth header after the request completes
	req.Header.Del("x-goog-api-key")
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed ttsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("speech api error (status %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("speech api error (status %d)", resp.StatusCode)
	}

	for _, cand := range parsed.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode audio: %w", err)
				}
				return pcm, nil
			}
		}
	}
	return nil, ErrNoAudio
}

// Synthesize converts text to speech using default settings.
func Synthesize(ctx context.Context, text, apiKey string) ([]byte, error) {
	s := &Synthesizer{}
	return s.Synthesize(ctx, text, apiKey)
}

// =============================================================================
// TEXT CLEANUP
// =============================================================================

var (
	reCodeBlock  = regexp.MustCompile("(?s)```.*?```")
	reInlineCode = regexp.MustCompile("`([^`]+)`")
	reEmphasis   = regexp.MustCompile(`[*_]{1,3}([^*_]+)[*_]{1,3}`)
	reImage      = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	reHeading    = regexp.MustCompile(`(?m)^#+\s+`)
	reNewlines   = regexp.MustCompile(`\n+`)
)

// CleanForSpeech strips markdown artifacts that read poorly aloud.
// Code blocks become a short verbal placeholder, images vanish, and
// formatting markers collapse to their inner text.
func CleanForSpeech(text string) string {
	text = reCodeBlock.ReplaceAllString(text, "Code block omitted. ")
	text = reInlineCode.ReplaceAllString(text, "${1}")
	text = reEmphasis.ReplaceAllString(text, "${1}")
	text = reImage.ReplaceAllString(text, "")
	text = reLink.ReplaceAllString(text, "${1}")
	text = reHeading.ReplaceAllString(text, "")
	text = reNewlines.ReplaceAllString(text, ". ")
	return strings.TrimSpace(text)
}
