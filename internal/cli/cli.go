// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - argument parsing and command dispatch for queryquant.
package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdDashboard
	CmdLog
	CmdSessions
	CmdBackup
	CmdRestore
	CmdConfig
	CmdSetup
	CmdSpeak
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet   bool
	Verbose bool
	JSON    bool
	NoColor bool

	// Command-specific
	Range      string // dashboard window (7d, 30d, 6m, all, or a year)
	Date       string // log day override (YYYY-MM-DD)
	N          int    // log repeat count
	Subcommand string
	SessionID  string
	Format     string // sessions export format (md, html, json)
	Out        string // backup destination file
	File       string // restore source file
	ConfigKey  string
	ConfigVal  string
	Query      string // speak text

	// Raw args remaining after flag parsing
	Raw []string
}

const usageText = `queryquant - personal LLM usage tracker and chat client

Queryquant is a terminal chat client that routes to Gemini, OpenAI,
Anthropic, DeepSeek, or any OpenAI-compatible endpoint, and keeps a
local record of how much you query each day.

Usage:
  queryquant                     Start TUI (default)
  queryquant chat                Interactive chat REPL
  queryquant dashboard           Usage dashboard
    --range 7d|30d|6m|all|YEAR   Reporting window (default: 30d)
  queryquant log                 Log external queries (made outside the app)
    --date YYYY-MM-DD            Day to log against (default: today)
    -n N                         Number of queries to log (default: 1)
  queryquant sessions [list]     List saved sessions
  queryquant sessions show ID    Print a session transcript
  queryquant sessions delete ID  Delete a session
  queryquant sessions export ID  Export a session
    --format md|html|json        Export format (default: md)
  queryquant backup              Export all state to a backup file
    --out FILE                   Destination (default: queryquant-backup-DATE.json)
  queryquant restore FILE        Replace all state from a backup file
  queryquant config              Show configuration (keys masked)
  queryquant config path         Print the config file location
  queryquant config get KEY      Read one setting
  queryquant config set KEY VAL  Write one setting
  queryquant setup               First-run wizard
  queryquant speak "text"        Read text aloud with Gemini TTS
  queryquant version             Show version
  queryquant help                Show this help

Global flags:
  -q, --quiet       Suppress non-essential output
  -v, --verbose     Verbose output
  --json            Machine-readable output where supported
  --no-color        Disable colored output

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("queryquant version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments (without the program name) and
// returns the command and args.
func Parse(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	// No command defaults to the TUI.
	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, args

	case "chat":
		return CmdChat, args

	case "dashboard", "dash", "stats":
		parseDashboardArgs(&args, remaining)
		return CmdDashboard, args

	case "log":
		parseLogArgs(&args, remaining)
		return CmdLog, args

	case "session", "sessions":
		parseSessionsArgs(&args, remaining)
		return CmdSessions, args

	case "backup":
		parseBackupArgs(&args, remaining)
		return CmdBackup, args

	case "restore", "import":
		if len(remaining) > 0 {
			args.File = remaining[0]
		}
		return CmdRestore, args

	case "config":
		parseConfigArgs(&args, remaining)
		return CmdConfig, args

	case "setup":
		return CmdSetup, args

	case "speak", "say":
		parseSpeakArgs(&args, remaining)
		return CmdSpeak, args

	case "version", "--version", "-V":
		return CmdVersion, args

	case "help", "--help", "-h":
		return CmdHelp, args

	default:
		// Unknown commands show help rather than failing silently.
		return CmdHelp, args
	}
}

// parseGlobalFlags extracts global flags, returning the remaining args.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var remaining []string
	args := Args{N: 1, Range: "30d", Format: "md"}

	for _, arg := range argv {
		switch arg {
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		case "--json":
			args.JSON = true
		case "--no-color":
			args.NoColor = true
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args
}

func parseDashboardArgs(args *Args, remaining []string) {
	i := 0
	for i < len(remaining) {
		arg := remaining[i]
		switch {
		case arg == "-r" || arg == "--range":
			if i+1 < len(remaining) {
				i++
				args.Range = remaining[i]
			}
		case strings.HasPrefix(arg, "--range="):
			args.Range = strings.TrimPrefix(arg, "--range=")
		default:
			// A bare window like "7d" or "2025" also works.
			args.Range = arg
		}
		i++
	}
}

func parseLogArgs(args *Args, remaining []string) {
	i := 0
	for i < len(remaining) {
		arg := remaining[i]
		switch {
		case arg == "-d" || arg == "--date":
			if i+1 < len(remaining) {
				i++
				args.Date = remaining[i]
			}
		case strings.HasPrefix(arg, "--date="):
			args.Date = strings.TrimPrefix(arg, "--date=")
		case arg == "-n" || arg == "--count":
			if i+1 < len(remaining) {
				i++
				if n, err := strconv.Atoi(remaining[i]); err == nil && n > 0 {
					args.N = n
				}
			}
		default:
			if n, err := strconv.Atoi(arg); err == nil && n > 0 {
				args.N = n
			}
		}
		i++
	}
}

func parseSessionsArgs(args *Args, remaining []string) {
	if len(remaining) == 0 {
		args.Subcommand = "list"
		return
	}
	args.Subcommand = strings.ToLower(remaining[0])
	remaining = remaining[1:]

	i := 0
	for i < len(remaining) {
		arg := remaining[i]
		switch {
		case arg == "-f" || arg == "--format":
			if i+1 < len(remaining) {
				i++
				args.Format = strings.ToLower(remaining[i])
			}
		case strings.HasPrefix(arg, "--format="):
			args.Format = strings.ToLower(strings.TrimPrefix(arg, "--format="))
		case arg == "-o" || arg == "--out":
			if i+1 < len(remaining) {
				i++
				args.Out = remaining[i]
			}
		default:
			if args.SessionID == "" {
				args.SessionID = arg
			}
		}
		i++
	}
}

func parseBackupArgs(args *Args, remaining []string) {
	i := 0
	for i < len(remaining) {
		arg := remaining[i]
		switch {
		case arg == "-o" || arg == "--out":
			if i+1 < len(remaining) {
				i++
				args.Out = remaining[i]
			}
		case strings.HasPrefix(arg, "--out="):
			args.Out = strings.TrimPrefix(arg, "--out=")
		default:
			if args.Out == "" {
				args.Out = arg
			}
		}
		i++
	}
}

func parseSpeakArgs(args *Args, remaining []string) {
	var words []string
	i := 0
	for i < len(remaining) {
		arg := remaining[i]
		switch {
		case arg == "-o" || arg == "--out":
			if i+1 < len(remaining) {
				i++
				args.Out = remaining[i]
			}
		case strings.HasPrefix(arg, "--out="):
			args.Out = strings.TrimPrefix(arg, "--out=")
		default:
			words = append(words, arg)
		}
		i++
	}
	args.Query = strings.Join(words, " ")
}

func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) == 0 {
		args.Subcommand = "show"
		return
	}
	args.Subcommand = strings.ToLower(remaining[0])
	switch args.Subcommand {
	case "get":
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
	case "set":
		if len(remaining) > 1 {
			args.ConfigKey = remaining[1]
		}
		if len(remaining) > 2 {
			args.ConfigVal = strings.Join(remaining[2:], " ")
		}
	}
}
