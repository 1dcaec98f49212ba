package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

type SQLite struct {
	conn *sqlx.DB
	log  *slog.Logger
}

// NewSQLite takes ownership of conn and ensures the archive tables exist.
func NewSQLite(conn *sqlx.DB, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SQLite{conn: conn, log: logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		game_id     TEXT PRIMARY KEY,
		finished_at INTEGER NOT NULL,
		rounds      INTEGER NOT NULL,
		difficulty  INTEGER NOT NULL,
		target      INTEGER NOT NULL,
		reason      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS result_scores (
		game_id   TEXT NOT NULL,
		rank      INTEGER NOT NULL,
		name      TEXT NOT NULL,
		net_worth INTEGER NOT NULL,
		profit    INTEGER NOT NULL,
		score     INTEGER NOT NULL,
		bankrupt  INTEGER NOT NULL,
		winner    INTEGER NOT NULL,
		PRIMARY KEY (game_id, name)
	);

	CREATE INDEX IF NOT EXISTS result_scores_name_idx ON result_scores (name);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *SQLite) Record(ctx context.Context, r Result) error {
	if err := validate(r); err != nil {
		return err
	}
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO results (game_id, finished_at, rounds, difficulty, target, reason)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.GameID, r.FinishedAt.UnixMilli(), r.Rounds, r.Difficulty, r.Target, r.Reason,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateResult, r.GameID)
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO result_scores
		(game_id, rank, name, net_worth, profit, score, bankrupt, winner)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sc := range r.Scores {
		if _, err := stmt.ExecContext(ctx,
			r.GameID, sc.Rank, sc.Name, sc.NetWorth, sc.Profit, sc.Score,
			boolInt(sc.Bankrupt), boolInt(r.isWinner(sc.Name)),
		); err != nil {
			return fmt.Errorf("insert score %q: %w", sc.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Info("result archived", "game_id", r.GameID, "reason", r.Reason, "players", len(r.Scores))
	return nil
}

func (s *SQLite) Leaderboard(ctx context.Context, limit int) ([]LeaderRow, error) {
	var rows []LeaderRow
	if err := s.conn.SelectContext(ctx, &rows, fmt.Sprintf(leaderboardQuery, "?"), normalizeLimit(limit)); err != nil {
		return nil, err
	}
	return rankRows(rows), nil
}

func (s *SQLite) Prune(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	cutoff := before.UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM result_scores WHERE game_id IN (SELECT game_id FROM results WHERE finished_at < ?)`, cutoff); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM results WHERE finished_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
