// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - configuration inspection and editing.
//
// Command: config
// Short:   Show, read, or write configuration
//
// Examples:
//   queryquant config                        Show config (keys masked)
//   queryquant config path                   Print config file location
//   queryquant config get provider           Read one setting
//   queryquant config set provider openai    Write one setting
//   queryquant config keys                   List settable keys
package cli

import (
	"fmt"

	"queryquant/internal/config"
)

// HandleConfig dispatches the config subcommands. It works on the
// config file directly and does not need storage, so it takes the
// loaded config rather than an App.
func HandleConfig(cfg *config.Config, args Args) error {
	switch args.Subcommand {
	case "show", "":
		fmt.Print(cfg.RedactedString())
		return nil

	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			return &CommandError{Command: "config", Action: "path", Reason: "could not resolve config path", Err: err}
		}
		fmt.Println(path)
		return nil

	case "keys":
		for _, key := range config.GetAllKeys() {
			fmt.Println(key)
		}
		return nil

	case "get":
		if args.ConfigKey == "" {
			return usageErrorf("config get needs a key (see: queryquant config keys)")
		}
		value, err := cfg.Get(args.ConfigKey)
		if err != nil {
			return usageErrorf("%v", err)
		}
		fmt.Println(value)
		return nil

	case "set":
		if args.ConfigKey == "" || args.ConfigVal == "" {
			return usageErrorf("config set needs a key and a value")
		}
		if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
			return usageErrorf("%v", err)
		}
		if err := cfg.Validate(); err != nil {
			return usageErrorf("rejected: %v", err)
		}
		if err := config.Save(cfg); err != nil {
			return &CommandError{Command: "config", Action: "set", Reason: "could not save config", Err: err}
		}
		if !args.Quiet {
			fmt.Printf("%s %s\n", SuccessStyle.Render("Saved"), args.ConfigKey)
		}
		return nil

	default:
		return usageErrorf("unknown config subcommand %q (want show, path, keys, get, or set)", args.Subcommand)
	}
}
