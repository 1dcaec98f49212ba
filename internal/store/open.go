package store

import (
	"context"
	"fmt"
	"log/slog"

	"stockmarket/internal/config"
	"stockmarket/internal/db"
)

// Open builds the archive named by an ARCHIVE_DSN value.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (Archive, error) {
	kind, target, err := config.ArchiveBackend(dsn)
	if err != nil {
		return nil, err
	}
	switch kind {
	case config.ArchivePostgres:
		pool, err := db.ConnectPostgres(ctx, target)
		if err != nil {
			return nil, err
		}
		a, err := NewPostgres(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return a, nil
	case config.ArchiveSQLite:
		conn, err := db.OpenSQLite(target)
		if err != nil {
			return nil, err
		}
		a, err := NewSQLite(conn, logger)
		if err != nil {
			conn.Close()
			return nil, err
		}
		return a, nil
	case config.ArchiveMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", kind)
	}
}
