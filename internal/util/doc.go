// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for queryquant: atomic file
// writes for durable persistence and rune/width-aware string truncation
// for terminal output.
package util
