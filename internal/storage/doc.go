// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable local persistence for QueryQuant.
//
// The package is built around a small key-value port (Store) with three
// backends: an in-memory map for tests, a JSON-file-per-key directory
// store, and a SQLite store used by default. On top of the port sit two
// typed repositories:
//
//   - SessionStore: the whole session collection under a single key
//   - StatsStore: the per-day usage counters under a single key
//
// Writes go through read-modify-write of the whole collection, so the
// stored value is always a consistent snapshot.
package storage
