// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions_cmd.go - session management for the "sessions" command.
//
// Command: sessions
// Short:   List, inspect, delete, and export saved sessions
//
// Examples:
//   queryquant sessions                      List sessions
//   queryquant sessions show 4f1d2c81        Print a transcript
//   queryquant sessions delete 4f1d2c81      Delete a session
//   queryquant sessions export 4f1d2c81 --format html
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"queryquant/internal/backup"
	"queryquant/internal/model"
)

// HandleSessions dispatches the sessions subcommands.
func HandleSessions(app *App, args Args) error {
	switch args.Subcommand {
	case "list", "":
		return sessionsList(app, args)
	case "show":
		return sessionsShow(app, args)
	case "delete", "rm":
		return sessionsDelete(app, args)
	case "export":
		return sessionsExport(app, args)
	default:
		return usageErrorf("unknown sessions subcommand %q (want list, show, delete, or export)", args.Subcommand)
	}
}

// shortID abbreviates a session ID for display. Imported backups may
// carry IDs shorter than the usual UUID, so the slice is guarded.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// resolveSession finds a session by full ID or unique prefix.
func resolveSession(app *App, id string) (*model.Session, error) {
	if id == "" {
		return nil, usageErrorf("a session ID is required")
	}
	if sess, err := app.Sessions.Load(id); err == nil {
		return sess, nil
	}

	var match *model.Session
	for _, sess := range app.Sessions.List() {
		if strings.HasPrefix(sess.ID, id) {
			if match != nil {
				return nil, usageErrorf("session prefix %q is ambiguous", id)
			}
			match = sess
		}
	}
	if match == nil {
		return nil, &CommandError{Command: "sessions", Action: "lookup", Reason: fmt.Sprintf("no session %q", id)}
	}
	return match, nil
}

func sessionsList(app *App, args Args) error {
	sessions := app.Sessions.List()

	if args.JSON {
		type row struct {
			ID       string `json:"id"`
			Title    string `json:"title"`
			Messages int    `json:"messages"`
			Updated  string `json:"updated"`
		}
		rows := make([]row, 0, len(sessions))
		for _, sess := range sessions {
			rows = append(rows, row{
				ID: sess.ID, Title: sess.Title,
				Messages: len(sess.Messages),
				Updated:  sess.UpdatedAt.Format("2006-01-02 15:04"),
			})
		}
		return json.NewEncoder(os.Stdout).Encode(rows)
	}

	if len(sessions) == 0 {
		fmt.Println(DimStyle.Render("No saved sessions."))
		return nil
	}
	fmt.Println(TitleStyle.Render("Sessions"))
	for _, sess := range sessions {
		fmt.Printf("  %s  %-30s %s %s\n",
			DimStyle.Render(shortID(sess.ID)),
			sess.Title,
			DimStyle.Render(fmt.Sprintf("%3d msgs", len(sess.Messages))),
			DimStyle.Render(sess.UpdatedAt.Format("2006-01-02 15:04")))
	}
	return nil
}

func sessionsShow(app *App, args Args) error {
	sess, err := resolveSession(app, args.SessionID)
	if err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render(sess.Title))
	fmt.Println(DimStyle.Render(sess.ID + " · started " + sess.CreatedAt.Format("2006-01-02 15:04")))
	fmt.Println()
	for _, msg := range sess.Messages {
		fmt.Printf("%s %s\n", promptStyle.Render(msg.Role.DisplayName()+":"), DimStyle.Render(msg.Timestamp.Format("15:04")))
		fmt.Println(msg.Text)
		if msg.HasAttachments() {
			fmt.Println(DimStyle.Render(fmt.Sprintf("  [%d image(s) attached]", len(msg.Attachments))))
		}
		fmt.Println()
	}
	return nil
}

func sessionsDelete(app *App, args Args) error {
	sess, err := resolveSession(app, args.SessionID)
	if err != nil {
		return err
	}
	if err := app.Sessions.Delete(sess.ID); err != nil {
		return &CommandError{Command: "sessions", Action: "delete", Reason: "could not delete session", Err: err}
	}
	if !args.Quiet {
		fmt.Printf("%s %s (%s)\n", SuccessStyle.Render("Deleted."), sess.Title, shortID(sess.ID))
	}
	return nil
}

func sessionsExport(app *App, args Args) error {
	sess, err := resolveSession(app, args.SessionID)
	if err != nil {
		return err
	}

	var (
		data []byte
		ext  string
	)
	switch args.Format {
	case "md", "markdown", "":
		exporter := backup.NewMarkdownExporter()
		data, err = exporter.Export(sess)
		ext = exporter.FileExtension()
	case "html":
		exporter := backup.NewHTMLExporter()
		data, err = exporter.Export(sess)
		ext = exporter.FileExtension()
	case "json":
		data, err = json.MarshalIndent(sess, "", "  ")
		ext = ".json"
	default:
		return usageErrorf("unknown export format %q (want md, html, or json)", args.Format)
	}
	if err != nil {
		return &CommandError{Command: "sessions", Action: "export", Reason: "could not render session", Err: err}
	}

	out := args.Out
	if out == "" {
		out = "queryquant-session-" + shortID(sess.ID) + ext
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return &CommandError{Command: "sessions", Action: "export", Reason: "could not write file", Err: err}
	}
	if !args.Quiet {
		fmt.Printf("%s %s\n", SuccessStyle.Render("Exported to"), out)
	}
	return nil
}
