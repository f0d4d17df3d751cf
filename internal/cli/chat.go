// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - interactive chat REPL for the "chat" command.
//
// Command: chat
// Short:   Start an interactive chat session
//
// Interactive commands (during chat):
//   /help, /h           Show available commands
//   /new                Start a fresh session
//   /edit [N]           Edit a past user turn and resend it
//   /sessions           List saved sessions
//   /regen              Regenerate the last reply
//   /provider           Show the active provider and model
//   /quit, /q           Exit chat
//   Ctrl+C              Cancel the in-flight request
//   Ctrl+D              Exit chat
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"queryquant/internal/chat"
	"queryquant/internal/config"
	"queryquant/internal/model"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	welcomeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt. Arrow keys
// navigate history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// ReadInputWithSuggestion reads a line pre-filled with existing text,
// cursor at the end. Used for editing past turns in place.
func (c *ChatCLI) ReadInputWithSuggestion(prompt, suggestion string) (string, error) {
	input, err := c.line.PromptWithSuggestion(prompt, suggestion, len(suggestion))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat runs the interactive chat REPL. The most recent session is
// resumed; a fresh one is created when none exist. Config edits made
// while the REPL runs apply to the next request.
func HandleChat(app *App, args Args) error {
	controller := app.Controller()
	controller.EnsureSession()

	stopWatching := app.WatchConfig()
	defer stopWatching()

	input := NewChatCLI()
	defer input.Close()

	renderer := newMarkdownRenderer(app.Config)

	if !args.Quiet {
		printChatWelcome(app)
	}

	// Ctrl+C cancels the in-flight request instead of killing the REPL.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	for {
		line, err := input.ReadInput(promptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			// io.EOF on Ctrl+D
			fmt.Println()
			return nil
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "/") {
			if quit := handleSlashCommand(app, controller, input, renderer, sigChan, text); quit {
				return nil
			}
			continue
		}

		runRequest(renderer, sigChan, func(ctx context.Context) (string, error) {
			return controller.Send(ctx, text, nil)
		})
	}
}

// runRequest executes one provider round trip with Ctrl+C cancellation
// and prints the outcome.
func runRequest(renderer *glamour.TermRenderer, sigChan chan os.Signal, do func(context.Context) (string, error)) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-done:
		}
	}()

	reply, err := do(ctx)
	close(done)
	cancel()

	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println(infoStyle.Render("(cancelled)"))
	case errors.Is(err, chat.ErrSuperseded):
		// A newer action took over; nothing to print.
	case err != nil:
		PrintError(err)
	default:
		fmt.Println(renderReply(renderer, reply))
	}
}

// handleSlashCommand dispatches a /command, returning true to exit.
func handleSlashCommand(app *App, controller *chat.Controller, input *ChatCLI, renderer *glamour.TermRenderer, sigChan chan os.Signal, text string) bool {
	fields := strings.Fields(text)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/q", "/exit":
		printChatSummary(app)
		return true

	case "/help", "/h":
		printChatHelp()

	case "/new":
		controller.NewSession()
		fmt.Println(infoStyle.Render("Started a new session."))

	case "/edit":
		handleEditCommand(controller, input, renderer, sigChan, fields)

	case "/sessions", "/list":
		for _, sess := range controller.Sessions() {
			fmt.Printf("  %s  %s %s\n",
				DimStyle.Render(shortID(sess.ID)),
				sess.Title,
				DimStyle.Render(sess.UpdatedAt.Format("2006-01-02 15:04")))
		}

	case "/regen", "/regenerate":
		runRequest(renderer, sigChan, controller.Regenerate)

	case "/provider", "/model":
		s := app.ChatSettings()
		fmt.Printf("  %s %s\n", LabelStyle.Render("Provider"), s.Provider.DisplayName())
		fmt.Printf("  %s %s\n", LabelStyle.Render("Model"), s.Model)

	default:
		fmt.Println(infoStyle.Render("Unknown command. Type /help for available commands."))
	}
	return false
}

// handleEditCommand rewrites a past user turn. With no argument the most
// recent user turn is edited; a numeric argument selects the Nth user
// turn counting from the start of the transcript. Everything after the
// edited turn is discarded and the edited text is resent.
func handleEditCommand(controller *chat.Controller, input *ChatCLI, renderer *glamour.TermRenderer, sigChan chan os.Signal, fields []string) {
	sess := controller.Current()
	if sess == nil {
		fmt.Println(infoStyle.Render("No active session."))
		return
	}

	var userTurns []model.Message
	for _, msg := range sess.Messages {
		if msg.Role == model.RoleUser {
			userTurns = append(userTurns, msg)
		}
	}
	if len(userTurns) == 0 {
		fmt.Println(infoStyle.Render("Nothing to edit yet."))
		return
	}

	target := userTurns[len(userTurns)-1]
	if len(fields) > 1 {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(userTurns) {
			fmt.Println(infoStyle.Render(fmt.Sprintf("Pick a turn between 1 and %d.", len(userTurns))))
			return
		}
		target = userTurns[n-1]
	}

	line, err := input.ReadInputWithSuggestion(promptStyle.Render("edit> "), target.Text)
	if err != nil {
		return
	}
	edited := strings.TrimSpace(line)
	if edited == "" {
		return
	}

	runRequest(renderer, sigChan, func(ctx context.Context) (string, error) {
		return controller.EditMessage(ctx, target.ID, edited)
	})
}

// =============================================================================
// RENDERING
// =============================================================================

// newMarkdownRenderer builds a glamour renderer, or nil when markdown
// rendering is disabled or unavailable.
func newMarkdownRenderer(cfg *config.Config) *glamour.TermRenderer {
	if !cfg.UI.Markdown || !IsStdoutTTY() {
		return nil
	}
	width := TerminalWidth()
	if width > 100 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return renderer
}

// renderReply renders a model reply as markdown, falling back to plain
// text when rendering fails.
func renderReply(renderer *glamour.TermRenderer, reply string) string {
	if renderer == nil {
		return reply
	}
	out, err := renderer.Render(reply)
	if err != nil {
		return reply
	}
	return strings.TrimRight(out, "\n")
}

func printChatWelcome(app *App) {
	s := app.ChatSettings()
	fmt.Println(welcomeStyle.Render("queryquant chat"))
	fmt.Printf("%s %s (%s)\n",
		infoStyle.Render("Provider:"), s.Provider.DisplayName(), s.Model)
	fmt.Println(infoStyle.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Println()
}

func printChatHelp() {
	rows := [][2]string{
		{"/help, /h", "Show this help"},
		{"/new", "Start a fresh session"},
		{"/edit [N]", "Edit the Nth (default last) user turn and resend"},
		{"/sessions", "List saved sessions"},
		{"/regen", "Regenerate the last reply"},
		{"/provider", "Show the active provider and model"},
		{"/quit, /q", "Exit chat"},
	}
	for _, row := range rows {
		fmt.Printf("  %s  %s\n", commandStyle.Render(fmt.Sprintf("%-12s", row[0])), row[1])
	}
}

func printChatSummary(app *App) {
	today := app.Stats.Today()
	fmt.Printf("%s %d queries today (%d in-app, %d external)\n",
		infoStyle.Render("Usage:"), today.Total(), today.InternalCount, today.ExternalCount)
}
