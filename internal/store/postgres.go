package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgres takes ownership of pool and ensures the archive tables exist.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Postgres{pool: pool, log: logger}
	if err := p.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS results (
			game_id     TEXT PRIMARY KEY,
			finished_at TIMESTAMPTZ NOT NULL,
			rounds      INTEGER NOT NULL,
			difficulty  INTEGER NOT NULL,
			target      BIGINT NOT NULL,
			reason      TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS result_scores (
			game_id   TEXT NOT NULL REFERENCES results(game_id) ON DELETE CASCADE,
			rank      INTEGER NOT NULL,
			name      TEXT NOT NULL,
			net_worth BIGINT NOT NULL,
			profit    BIGINT NOT NULL,
			score     BIGINT NOT NULL,
			bankrupt  BOOLEAN NOT NULL,
			winner    BOOLEAN NOT NULL,
			PRIMARY KEY (game_id, name)
		);
		CREATE INDEX IF NOT EXISTS result_scores_name_idx ON result_scores (name);
	`)
	return err
}

func (p *Postgres) Record(ctx context.Context, r Result) error {
	if err := validate(r); err != nil {
		return err
	}
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
		INSERT INTO results (game_id, finished_at, rounds, difficulty, target, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game_id) DO NOTHING
	`, r.GameID, r.FinishedAt.UTC(), r.Rounds, r.Difficulty, r.Target, r.Reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateResult, r.GameID)
	}

	for _, s := range r.Scores {
		if _, err := tx.Exec(ctx, `
			INSERT INTO result_scores (game_id, rank, name, net_worth, profit, score, bankrupt, winner)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, r.GameID, s.Rank, s.Name, s.NetWorth, s.Profit, s.Score, s.Bankrupt, r.isWinner(s.Name)); err != nil {
			return fmt.Errorf("insert score %q: %w", s.Name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	p.log.Info("result archived", "game_id", r.GameID, "reason", r.Reason, "players", len(r.Scores))
	return nil
}

func (p *Postgres) Leaderboard(ctx context.Context, limit int) ([]LeaderRow, error) {
	rows, err := p.pool.Query(ctx, fmt.Sprintf(leaderboardQuery, "$1"), normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderRow
	for rows.Next() {
		var r LeaderRow
		if err := rows.Scan(&r.Name, &r.Games, &r.Wins, &r.BestScore, &r.BestNetWorth); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return rankRows(out), rows.Err()
}

func (p *Postgres) Prune(ctx context.Context, before time.Time) (int64, error) {
	cmd, err := p.pool.Exec(ctx, `DELETE FROM results WHERE finished_at < $1`, before.UTC())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
