// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// speak.go - text-to-speech for the "speak" command.
//
// Command: speak
// Short:   Read text aloud with Gemini TTS
//
// Examples:
//   queryquant speak "hello there"
//   queryquant speak --out hello.wav "hello there"
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"queryquant/internal/config"
	"queryquant/internal/speech"
)

// HandleSpeak synthesizes text and plays it, or writes a WAV file when
// --out is given. Speech always goes through Gemini, regardless of the
// chat provider.
func HandleSpeak(cfg *config.Config, args Args) error {
	if args.Query == "" {
		return usageErrorf(`speak needs text: queryquant speak "hello"`)
	}
	if cfg.Gemini.APIKey == "" {
		return usageErrorf("speech needs a Gemini API key (queryquant config set gemini.api_key ...)")
	}

	synth := &speech.Synthesizer{
		Model: cfg.Speech.Model,
		Voice: cfg.Speech.Voice,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	text := speech.CleanForSpeech(args.Query)
	pcm, err := synth.Synthesize(ctx, text, cfg.Gemini.APIKey)
	if err != nil {
		return &CommandError{Command: "speak", Action: "synthesize", Reason: "speech request failed", Err: err}
	}

	if args.Out != "" {
		f, err := os.Create(args.Out)
		if err != nil {
			return &CommandError{Command: "speak", Action: "write", Reason: "could not create output file", Err: err}
		}
		defer f.Close()
		if err := speech.WriteWAV(f, pcm); err != nil {
			return &CommandError{Command: "speak", Action: "write", Reason: "could not write WAV", Err: err}
		}
		if !args.Quiet {
			duration := time.Duration(len(pcm)/2) * time.Second / speech.SampleRate
			fmt.Printf("%s %s (%s)\n", SuccessStyle.Render("Wrote"), args.Out, duration.Round(100*time.Millisecond))
		}
		return nil
	}

	player := &speech.Player{Command: cfg.Speech.Player}
	if err := player.PlaySync(pcm); err != nil {
		return &CommandError{Command: "speak", Action: "play", Reason: "could not play audio (try --out FILE)", Err: err}
	}
	return nil
}
