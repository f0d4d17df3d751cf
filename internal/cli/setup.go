// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup.go - first-run setup wizard.
//
// Command: setup
// Short:   Interactive configuration wizard
//
// Walks through provider selection, API keys (entered without echo),
// and storage choice, then writes the config file with 0600
// permissions.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"queryquant/internal/config"
	"queryquant/internal/router"
)

// HandleSetup runs the interactive first-run wizard.
func HandleSetup(args Args) error {
	if !IsTTY() {
		return usageErrorf("setup is interactive and needs a terminal")
	}

	cfg, err := config.Load()
	if err != nil {
		// A corrupt config should not block re-running setup.
		cfg = config.Default()
	}

	fmt.Println(TitleStyle.Render("queryquant setup"))
	fmt.Println(infoStyle.Render("Press Enter to keep the value shown in brackets."))
	fmt.Println()

	// Provider
	providers := []string{"gemini", "openai", "anthropic", "deepseek", "custom"}
	defaultIdx := 0
	for i, p := range providers {
		if p == cfg.Provider {
			defaultIdx = i
		}
	}
	fmt.Println(SectionStyle.Render("Provider"))
	for i, p := range providers {
		name, _ := router.Parse(p)
		fmt.Printf("  %d. %s\n", i+1, name.DisplayName())
	}
	choice := promptChoice("Default provider", providers, defaultIdx)
	cfg.Provider = providers[choice]

	// API keys. Only the chosen provider's key is mandatory prompting;
	// the rest can be filled in later with config set.
	fmt.Println(SectionStyle.Render("API keys"))
	switch cfg.Provider {
	case "gemini":
		cfg.Gemini.APIKey = promptKey("Gemini API key", cfg.Gemini.APIKey)
	case "openai":
		cfg.OpenAI.APIKey = promptKey("OpenAI API key", cfg.OpenAI.APIKey)
	case "anthropic":
		cfg.Anthropic.APIKey = promptKey("Anthropic API key", cfg.Anthropic.APIKey)
	case "deepseek":
		cfg.DeepSeek.APIKey = promptKey("DeepSeek API key", cfg.DeepSeek.APIKey)
	case "custom":
		cfg.Custom.Endpoint = promptString("Endpoint URL (OpenAI-compatible)", cfg.Custom.Endpoint)
		cfg.Custom.Model = promptString("Model name", cfg.Custom.Model)
		cfg.Custom.APIKey = promptKey("API key (blank for none)", cfg.Custom.APIKey)
	}
	if cfg.Provider != "gemini" && promptYesNo("Also set a Gemini key (needed for speech)?", false) {
		cfg.Gemini.APIKey = promptKey("Gemini API key", cfg.Gemini.APIKey)
	}

	// System prompt
	fmt.Println(SectionStyle.Render("Behavior"))
	cfg.SystemPrompt = promptString("System prompt (blank for none)", cfg.SystemPrompt)

	// Storage
	fmt.Println(SectionStyle.Render("Storage"))
	backends := []string{"sqlite", "file", "memory"}
	backendIdx := 0
	for i, b := range backends {
		if b == cfg.Storage.Backend {
			backendIdx = i
		}
	}
	cfg.Storage.Backend = backends[promptChoice("Storage backend", backends, backendIdx)]

	if err := cfg.Validate(); err != nil {
		return usageErrorf("configuration invalid: %v", err)
	}
	if err := config.Save(cfg); err != nil {
		return &CommandError{Command: "setup", Action: "save", Reason: "could not write config", Err: err}
	}

	path, _ := config.ConfigPath()
	fmt.Println()
	fmt.Printf("%s %s\n", SuccessStyle.Render("Configuration saved to"), path)
	fmt.Println(infoStyle.Render("Run queryquant to start chatting."))
	return nil
}

// =============================================================================
// PROMPT HELPERS
// =============================================================================

// promptString reads a line, falling back to the default when empty.
func promptString(prompt, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Printf("%s: ", prompt)
	}
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return defaultVal
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// promptKey reads sensitive input without echoing. An empty entry keeps
// the existing key.
func promptKey(prompt, existing string) string {
	if existing != "" {
		fmt.Printf("%s [keep current]: ", prompt)
	} else {
		fmt.Printf("%s: ", prompt)
	}
	keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return existing
	}
	key := strings.TrimSpace(string(keyBytes))
	if key == "" {
		return existing
	}
	return key
}

// promptYesNo prompts for a yes/no answer.
func promptYesNo(prompt string, defaultYes bool) bool {
	suffix := "[Y/n]"
	if !defaultYes {
		suffix = "[y/N]"
	}
	input := strings.ToLower(promptString(fmt.Sprintf("%s %s", prompt, suffix), ""))
	if input == "" {
		return defaultYes
	}
	return input == "y" || input == "yes"
}

// promptChoice prompts for one of the numbered options, returning its
// index. Either the number or the option text is accepted.
func promptChoice(prompt string, options []string, defaultIdx int) int {
	input := promptString(fmt.Sprintf("%s [%s]", prompt, options[defaultIdx]), "")
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultIdx
	}
	for i, opt := range options {
		if strings.EqualFold(input, opt) || input == strconv.Itoa(i+1) {
			return i
		}
	}
	return defaultIdx
}
