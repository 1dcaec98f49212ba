package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"stockmarket/internal/db"
	"stockmarket/internal/game"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleResults() []Result {
	return []Result{
		{
			GameID: "g1", FinishedAt: baseTime, Rounds: 12, Difficulty: 1, Target: 5000,
			Reason: ReasonWinners, Winners: []string{"alice"},
			Scores: []game.ScoreRow{
				{Rank: 1, Name: "alice", NetWorth: 6000, Profit: 5000, Score: 352},
				{Rank: 2, Name: "bob", NetWorth: 900, Profit: -100, Score: 52},
			},
		},
		{
			GameID: "g2", FinishedAt: baseTime.Add(time.Hour), Rounds: 3, Difficulty: 2, Target: 5000,
			Reason: ReasonEndedEarly,
			Scores: []game.ScoreRow{
				{Rank: 1, Name: "bob", NetWorth: 8000, Profit: 7000, Score: 615},
				{Rank: 2, Name: "alice", NetWorth: 0, Profit: -1000, Score: 0, Bankrupt: true},
			},
		},
		{
			GameID: "g3", FinishedAt: baseTime.Add(2 * time.Hour), Rounds: 4, Difficulty: 1, Target: 5000,
			Reason: ReasonAllBankrupt, Winners: []string{game.AllBankruptResult},
			Scores: []game.ScoreRow{
				{Rank: 1, Name: "carol", NetWorth: 0, Profit: -1000, Score: 0, Bankrupt: true},
			},
		},
	}
}

func exerciseArchive(t *testing.T, a Archive) {
	t.Helper()
	ctx := context.Background()
	for _, r := range sampleResults() {
		if err := a.Record(ctx, r); err != nil {
			t.Fatalf("record %s: %v", r.GameID, err)
		}
	}
	if err := a.Record(ctx, sampleResults()[0]); !errors.Is(err, ErrDuplicateResult) {
		t.Fatalf("expected ErrDuplicateResult, got %v", err)
	}
	if err := a.Record(ctx, Result{GameID: "empty"}); err == nil {
		t.Fatalf("expected result without scores to fail")
	}

	rows, err := a.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	want := []LeaderRow{
		{Rank: 1, Name: "bob", Games: 2, Wins: 0, BestScore: 615, BestNetWorth: 8000},
		{Rank: 2, Name: "alice", Games: 2, Wins: 1, BestScore: 352, BestNetWorth: 6000},
		{Rank: 3, Name: "carol", Games: 1, Wins: 0, BestScore: 0, BestNetWorth: 0},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows=%+v", rows)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("row %d=%+v want %+v", i, rows[i], want[i])
		}
	}

	top, err := a.Leaderboard(ctx, 1)
	if err != nil || len(top) != 1 || top[0].Name != "bob" {
		t.Fatalf("limited leaderboard=%+v err=%v", top, err)
	}

	n, err := a.Prune(ctx, baseTime.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Fatalf("pruned=%d want 2", n)
	}
	rows, err = a.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard after prune: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "carol" {
		t.Fatalf("after prune=%+v", rows)
	}
}

func TestMemoryArchive(t *testing.T) {
	exerciseArchive(t, NewMemory())
}

func TestSQLiteArchive(t *testing.T) {
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	a, err := NewSQLite(conn, nil)
	if err != nil {
		t.Fatalf("new sqlite archive: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	exerciseArchive(t, a)
}

func TestOpenMemoryByDefault(t *testing.T) {
	a, err := Open(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := a.(*Memory); !ok {
		t.Fatalf("got %T want *Memory", a)
	}
}
