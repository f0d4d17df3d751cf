// queryquant - personal LLM usage tracker and chat client.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"queryquant/internal/cli"
	"queryquant/internal/config"
	"queryquant/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse(os.Args[1:])

	if args.NoColor {
		os.Setenv("NO_COLOR", "1")
	}

	if err := run(cmd, args); err != nil {
		cli.PrintError(err)
		code := cli.GetExitCode(err)
		if code == cli.ExitUsageError {
			cli.PrintUsage()
		}
		os.Exit(code)
	}
}

func run(cmd cli.Command, args cli.Args) error {
	// Commands that never touch storage skip opening it.
	switch cmd {
	case cli.CmdVersion:
		cli.PrintVersion()
		return nil
	case cli.CmdHelp:
		cli.PrintUsage()
		return nil
	case cli.CmdSetup:
		return cli.HandleSetup(args)
	case cli.CmdConfig:
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return cli.HandleConfig(cfg, args)
	case cli.CmdSpeak:
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return cli.HandleSpeak(cfg, args)
	}

	app, err := cli.OpenApp()
	if err != nil {
		return err
	}
	defer app.Close()

	switch cmd {
	case cli.CmdTUI:
		stop := app.WatchConfig()
		defer stop()
		return ui.Run(app.Controller(), app.Stats, app.Config)
	case cli.CmdChat:
		return cli.HandleChat(app, args)
	case cli.CmdDashboard:
		return cli.HandleDashboard(app, args)
	case cli.CmdLog:
		return cli.HandleLog(app, args)
	case cli.CmdSessions:
		return cli.HandleSessions(app, args)
	case cli.CmdBackup:
		return cli.HandleBackup(app, args)
	case cli.CmdRestore:
		return cli.HandleRestore(app, args)
	default:
		cli.PrintUsage()
		return nil
	}
}
