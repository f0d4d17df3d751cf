// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// backup_cmd.go - whole-state backup and restore.
//
// Command: backup / restore
// Short:   Export all state to a file, or replace all state from one
//
// Examples:
//   queryquant backup                         Write queryquant-backup-DATE.json
//   queryquant backup --out ~/state.json      Custom destination
//   queryquant restore ~/state.json           Replace everything from a file
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"queryquant/internal/backup"
	"queryquant/internal/util"
)

// maxBackupSize caps how much of a restore file is read.
const maxBackupSize = 64 << 20 // 64 MB

// HandleBackup exports sessions and usage counters to one JSON file.
func HandleBackup(app *App, args Args) error {
	doc := backup.Export(app.Sessions, app.Stats)
	data, err := doc.Encode()
	if err != nil {
		return &CommandError{Command: "backup", Action: "encode", Reason: "could not encode state", Err: err}
	}

	out := args.Out
	if out == "" {
		out = backup.FileName(time.Now())
	}
	if err := util.AtomicWriteFile(out, data, 0600); err != nil {
		return &CommandError{Command: "backup", Action: "write", Reason: "could not write backup file", Err: err}
	}

	if !args.Quiet {
		fmt.Printf("%s %s (%d sessions, %d days of stats)\n",
			SuccessStyle.Render("Backup written to"), out, len(doc.Sessions), len(doc.Stats))
	}
	return nil
}

// HandleRestore replaces all local state from a backup file. The
// document is validated in full before anything is overwritten, so a
// bad file leaves existing state untouched.
func HandleRestore(app *App, args Args) error {
	if args.File == "" {
		return usageErrorf("restore needs a backup file: queryquant restore FILE")
	}

	f, err := os.Open(args.File)
	if err != nil {
		return &CommandError{Command: "restore", Action: "open", Reason: "could not open backup file", Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBackupSize))
	if err != nil {
		return &CommandError{Command: "restore", Action: "read", Reason: "could not read backup file", Err: err}
	}

	doc, err := backup.Decode(data)
	if err != nil {
		return &CommandError{Command: "restore", Action: "decode", Reason: "invalid backup file", Err: err}
	}
	if err := backup.Import(doc, app.Sessions, app.Stats); err != nil {
		return &CommandError{Command: "restore", Action: "import", Reason: "could not apply backup", Err: err}
	}

	if !args.Quiet {
		fmt.Printf("%s %d sessions, %d days of stats\n",
			SuccessStyle.Render("Restored."), len(doc.Sessions), len(doc.Stats))
	}
	return nil
}
