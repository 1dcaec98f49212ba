package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory keeps results for the life of the process.
type Memory struct {
	mu      sync.RWMutex
	results map[string]Result
}

func NewMemory() *Memory {
	return &Memory{results: make(map[string]Result)}
}

func (m *Memory) Record(_ context.Context, r Result) error {
	if err := validate(r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[r.GameID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateResult, r.GameID)
	}
	m.results[r.GameID] = r
	return nil
}

func (m *Memory) Leaderboard(_ context.Context, limit int) ([]LeaderRow, error) {
	m.mu.RLock()
	agg := make(map[string]*LeaderRow)
	for _, res := range m.results {
		for _, s := range res.Scores {
			row, ok := agg[s.Name]
			if !ok {
				row = &LeaderRow{Name: s.Name, BestScore: s.Score, BestNetWorth: s.NetWorth}
				agg[s.Name] = row
			}
			row.Games++
			if res.isWinner(s.Name) {
				row.Wins++
			}
			row.BestScore = max(row.BestScore, s.Score)
			row.BestNetWorth = max(row.BestNetWorth, s.NetWorth)
		}
	}
	m.mu.RUnlock()

	out := make([]LeaderRow, 0, len(agg))
	for _, row := range agg {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.BestScore != b.BestScore {
			return a.BestScore > b.BestScore
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.Name < b.Name
	})
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return rankRows(out), nil
}

func (m *Memory) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.results {
		if r.FinishedAt.Before(before) {
			delete(m.results, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close() error { return nil }
