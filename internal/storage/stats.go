// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"queryquant/internal/model"
)

// =============================================================================
// STATS STORE
// =============================================================================

// StatsStore persists the per-day usage counters under a single key.
// Increment is guarded by a mutex so concurrent queries on the same day
// never lose a count to interleaved read-modify-write.
type StatsStore struct {
	store Store
	mu    sync.Mutex
}

// NewStatsStore creates a stats store on top of a backend.
func NewStatsStore(store Store) *StatsStore {
	return &StatsStore{store: store}
}

// All returns every stored counter. A missing or unreadable collection
// yields an empty map.
func (s *StatsStore) All() model.StatMap {
	data, err := s.store.Get(KeyStats)
	if err != nil {
		return model.StatMap{}
	}

	stats := model.StatMap{}
	if err := json.Unmarshal(data, &stats); err != nil {
		return model.StatMap{}
	}
	return stats
}

// Increment bumps one of today's counters and persists the collection.
// The count is recorded even when the query itself later fails.
func (s *StatsStore) Increment(kind model.Kind) error {
	return s.IncrementDay(kind, time.Now())
}

// IncrementDay bumps a counter for the day containing t.
func (s *StatsStore) IncrementDay(kind model.Kind, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.All()
	stats.Increment(kind, model.DayKey(t))

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := s.store.Set(KeyStats, data); err != nil {
		return fmt.Errorf("persist stats: %w", err)
	}
	return nil
}

// Replace swaps the whole counter collection, used by backup import.
func (s *StatsStore) Replace(stats model.StatMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if err := s.store.Set(KeyStats, data); err != nil {
		return fmt.Errorf("persist stats: %w", err)
	}
	return nil
}

// Today returns the counters for the current day.
func (s *StatsStore) Today() model.DailyStat {
	key := model.DayKey(time.Now())
	stat := s.All()[key]
	stat.Date = key
	return stat
}
