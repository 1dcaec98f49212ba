// Package store archives finished games and serves the cross-game leaderboard.
// Live table state is never stored here.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"stockmarket/internal/game"
)

var ErrDuplicateResult = errors.New("result already recorded")

const DefaultLeaderboardLimit = 20

// End reasons recorded with a result.
const (
	ReasonWinners      = "winners"
	ReasonAllBankrupt  = "all_bankrupt"
	ReasonLastStanding = "last_standing"
	ReasonEndedEarly   = "ended_early"
)

type Result struct {
	GameID     string          `json:"game_id"`
	FinishedAt time.Time       `json:"finished_at"`
	Rounds     int             `json:"rounds"`
	Difficulty int             `json:"difficulty"`
	Target     int64           `json:"target"`
	Reason     string          `json:"reason"`
	Winners    []string        `json:"winners"`
	Scores     []game.ScoreRow `json:"scores"`
}

type LeaderRow struct {
	Rank         int    `json:"rank" db:"-"`
	Name         string `json:"name" db:"name"`
	Games        int64  `json:"games" db:"games"`
	Wins         int64  `json:"wins" db:"wins"`
	BestScore    int64  `json:"best_score" db:"best_score"`
	BestNetWorth int64  `json:"best_net_worth" db:"best_net_worth"`
}

// Archive persists finished-game results.
type Archive interface {
	Record(ctx context.Context, r Result) error
	Leaderboard(ctx context.Context, limit int) ([]LeaderRow, error)
	// Prune drops results finished before the cutoff and reports how many went.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

func validate(r Result) error {
	if strings.TrimSpace(r.GameID) == "" {
		return errors.New("result game id is required")
	}
	if len(r.Scores) == 0 {
		return errors.New("result has no scores")
	}
	return nil
}

// isWinner reports whether name is listed among the result's winners. The
// all-bankrupt marker never counts as a win.
func (r Result) isWinner(name string) bool {
	return slices.Contains(r.Winners, name) && name != game.AllBankruptResult
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLeaderboardLimit
	}
	return limit
}

func rankRows(rows []LeaderRow) []LeaderRow {
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

const leaderboardQuery = `
	SELECT name,
	       COUNT(*) AS games,
	       SUM(CASE WHEN winner THEN 1 ELSE 0 END) AS wins,
	       MAX(score) AS best_score,
	       MAX(net_worth) AS best_net_worth
	FROM result_scores
	GROUP BY name
	ORDER BY best_score DESC, wins DESC, name ASC
	LIMIT %s
`
