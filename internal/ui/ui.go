// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the bubbletea TUI: session sidebar, transcript
// viewport, input area, and a status bar with the day's usage counters.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"queryquant/internal/chat"
	"queryquant/internal/config"
	"queryquant/internal/model"
	"queryquant/internal/speech"
	"queryquant/internal/storage"
	"queryquant/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// sendDoneMsg carries the outcome of one provider round trip. Seq ties
// it to the request that started it; replies from older requests are
// dropped without touching the view.
type sendDoneMsg struct {
	seq  uint64
	text string
	err  error
}

// speakDoneMsg reports the outcome of reading a reply aloud.
type speakDoneMsg struct {
	err error
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the application.
type Model struct {
	controller *chat.Controller
	stats      *storage.StatsStore
	cfg        *config.Config
	theme      *styles.Theme
	renderer   *glamour.TermRenderer
	player     *speech.Player

	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model

	width  int
	height int
	ready  bool

	sending bool
	seq     uint64

	// editing holds the message ID being edited, or "" for a fresh send.
	editing string

	// pending attachments queued with /attach for the next send.
	pending []model.Attachment

	status string
}

// New builds the TUI model.
func New(controller *chat.Controller, stats *storage.StatsStore, cfg *config.Config) Model {
	input := textarea.New()
	input.Placeholder = "Ask anything... (/attach FILE to add an image)"
	input.ShowLineNumbers = false
	input.SetHeight(2)
	input.CharLimit = 0
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	theme := styles.New(cfg.UI.Theme)
	spin.Style = theme.Spinner

	m := Model{
		controller: controller,
		stats:      stats,
		cfg:        cfg,
		theme:      theme,
		player:     &speech.Player{Command: cfg.Speech.Player},
		input:      input,
		spin:       spin,
	}
	if cfg.UI.Markdown {
		if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80)); err == nil {
			m.renderer = r
		}
	}
	return m
}

// Run starts the TUI and blocks until exit. The most recent session is
// resumed; a fresh one is created when none exist.
func Run(controller *chat.Controller, stats *storage.StatsStore, cfg *config.Config) error {
	controller.EnsureSession()
	p := tea.NewProgram(New(controller, stats, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spin.Tick)
}

// =============================================================================
// UPDATE
// =============================================================================

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshTranscript()
		m.ready = true

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q":
			m.player.Stop()
			return m, tea.Quit

		case "enter":
			return m.submit()

		case "ctrl+n":
			m.controller.NewSession()
			m.editing = ""
			m.pending = nil
			m.status = "new session"
			m.refreshTranscript()

		case "ctrl+r":
			return m.regenerate()

		case "ctrl+e":
			m.beginEdit()

		case "ctrl+t":
			return m.speakLastReply()

		case "ctrl+p":
			m.cycleSession(-1)

		case "ctrl+o":
			m.cycleSession(1)

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case sendDoneMsg:
		// Replies from superseded requests never reach the transcript.
		if msg.seq != m.seq {
			return m, nil
		}
		m.sending = false
		switch {
		case errors.Is(msg.err, chat.ErrSuperseded):
		case errors.Is(msg.err, context.Canceled):
			m.status = "cancelled"
		case msg.err != nil:
			m.status = m.theme.ErrorText.Render(msg.err.Error())
		default:
			m.status = ""
		}
		m.refreshTranscript()

	case speakDoneMsg:
		if msg.err != nil {
			m.status = m.theme.ErrorText.Render("speech: " + msg.err.Error())
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
		// The user turn lands in the transcript as soon as the
		// controller persists it, partway through the round trip.
		if m.sending {
			m.refreshTranscript()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit handles Enter: slash commands, edits, and fresh sends.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if path, ok := strings.CutPrefix(text, "/attach "); ok {
		att, err := LoadAttachment(strings.TrimSpace(path))
		if err != nil {
			m.status = m.theme.ErrorText.Render(err.Error())
		} else {
			m.pending = append(m.pending, att)
			m.status = fmt.Sprintf("attached %s (%d queued)", att.MimeType, len(m.pending))
		}
		m.input.Reset()
		return m, nil
	}

	m.input.Reset()
	m.sending = true
	m.seq++
	m.status = ""

	seq := m.seq
	controller := m.controller
	attachments := m.pending
	m.pending = nil

	var cmd tea.Cmd
	if editID := m.editing; editID != "" {
		m.editing = ""
		cmd = func() tea.Msg {
			reply, err := controller.EditMessage(context.Background(), editID, text)
			return sendDoneMsg{seq: seq, text: reply, err: err}
		}
	} else {
		cmd = func() tea.Msg {
			reply, err := controller.Send(context.Background(), text, attachments)
			return sendDoneMsg{seq: seq, text: reply, err: err}
		}
	}

	m.refreshTranscript()
	return m, tea.Batch(cmd, m.spin.Tick)
}

// regenerate retries the last exchange.
func (m Model) regenerate() (tea.Model, tea.Cmd) {
	if m.sending || m.controller.Current() == nil {
		return m, nil
	}
	m.sending = true
	m.seq++
	seq := m.seq
	controller := m.controller
	cmd := func() tea.Msg {
		reply, err := controller.Regenerate(context.Background())
		return sendDoneMsg{seq: seq, text: reply, err: err}
	}
	return m, tea.Batch(cmd, m.spin.Tick)
}

// beginEdit loads a user turn into the input for resubmission. The
// first press picks the most recent user turn; pressing again steps
// back through earlier turns, wrapping around.
func (m *Model) beginEdit() {
	sess := m.controller.Current()
	if sess == nil {
		return
	}

	var userTurns []model.Message
	for _, msg := range sess.Messages {
		if msg.Role == model.RoleUser {
			userTurns = append(userTurns, msg)
		}
	}
	if len(userTurns) == 0 {
		return
	}

	idx := len(userTurns) - 1
	if m.editing != "" {
		for i, msg := range userTurns {
			if msg.ID == m.editing {
				idx = (i - 1 + len(userTurns)) % len(userTurns)
				break
			}
		}
	}

	target := userTurns[idx]
	m.editing = target.ID
	m.input.SetValue(target.Text)
	m.input.CursorEnd()
	m.status = fmt.Sprintf("editing turn %d/%d (Ctrl+E steps back, Enter resends, Ctrl+N abandons)", idx+1, len(userTurns))
}

// speakLastReply reads the most recent model turn aloud.
func (m Model) speakLastReply() (tea.Model, tea.Cmd) {
	sess := m.controller.Current()
	if sess == nil || len(sess.Messages) == 0 {
		return m, nil
	}
	var lastReply string
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].Role == model.RoleModel {
			lastReply = sess.Messages[i].Text
			break
		}
	}
	if lastReply == "" {
		return m, nil
	}
	apiKey := m.cfg.Gemini.APIKey
	if apiKey == "" {
		m.status = m.theme.ErrorText.Render("speech needs a Gemini API key")
		return m, nil
	}

	synth := &speech.Synthesizer{Model: m.cfg.Speech.Model, Voice: m.cfg.Speech.Voice}
	player := m.player
	m.status = "speaking..."
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		pcm, err := synth.Synthesize(ctx, speech.CleanForSpeech(lastReply), apiKey)
		if err != nil {
			return speakDoneMsg{err: err}
		}
		return speakDoneMsg{err: player.Play(pcm)}
	}
}

// cycleSession moves the active session by delta through the saved list.
func (m *Model) cycleSession(delta int) {
	sessions := m.controller.Sessions()
	if len(sessions) == 0 {
		return
	}
	current := m.controller.Current()
	idx := 0
	if current != nil {
		for i, sess := range sessions {
			if sess.ID == current.ID {
				idx = i
				break
			}
		}
	}
	idx = (idx + delta + len(sessions)) % len(sessions)
	if err := m.controller.SelectSession(sessions[idx].ID); err == nil {
		m.editing = ""
		m.refreshTranscript()
	}
}
