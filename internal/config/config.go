package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"stockmarket/internal/game"
)

type APIConfig struct {
	Addr        string
	ArchiveDSN  string
	JournalDir  string
	RulesPath   string
	TokenSecret string
	IdleTTL     time.Duration
	ReapEvery   time.Duration
	TokenTTL    time.Duration
	// Retention and PruneEvery drive the archive pruning worker.
	Retention  time.Duration
	PruneEvery time.Duration
	// LeaderboardLimit caps GET /v1/leaderboard when no limit is given.
	LeaderboardLimit int
	Rules            game.Rules
}

type CLIConfig struct {
	APIBaseURL string
}

// Archive backends selected by ARCHIVE_DSN.
const (
	ArchiveMemory   = "memory"
	ArchivePostgres = "postgres"
	ArchiveSQLite   = "sqlite"
)

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("STOCKMARKET_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:        addr,
		ArchiveDSN:  strings.TrimSpace(os.Getenv("ARCHIVE_DSN")),
		JournalDir:  strings.TrimSpace(os.Getenv("STOCKMARKET_JOURNAL_DIR")),
		RulesPath:   strings.TrimSpace(os.Getenv("STOCKMARKET_RULES")),
		TokenSecret: strings.TrimSpace(os.Getenv("STOCKMARKET_TOKEN_SECRET")),
		IdleTTL:     envDurationDefault("STOCKMARKET_IDLE_TTL", 2*time.Hour),
		ReapEvery:   envDurationDefault("STOCKMARKET_REAP_EVERY", 5*time.Minute),
		TokenTTL:    envDurationDefault("STOCKMARKET_TOKEN_TTL", 24*time.Hour),
		Rules:       game.DefaultRules(),

		LeaderboardLimit: envIntDefault("STOCKMARKET_LEADERBOARD_LIMIT", 20),
		Retention:        envDurationDefault("STOCKMARKET_RETENTION", 90*24*time.Hour),
		PruneEvery:       envDurationDefault("STOCKMARKET_PRUNE_EVERY", time.Hour),
	}
	if _, _, err := ArchiveBackend(cfg.ArchiveDSN); err != nil {
		return cfg, err
	}
	if cfg.RulesPath != "" {
		rules, err := LoadRules(cfg.RulesPath)
		if err != nil {
			return cfg, err
		}
		cfg.Rules = rules
	}
	if cfg.LeaderboardLimit <= 0 {
		cfg.LeaderboardLimit = 20
	}
	if cfg.ReapEvery <= 0 {
		return cfg, fmt.Errorf("STOCKMARKET_REAP_EVERY must be > 0")
	}
	if cfg.PruneEvery <= 0 {
		return cfg, fmt.Errorf("STOCKMARKET_PRUNE_EVERY must be > 0")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("SMK_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

// ArchiveBackend splits an archive DSN into backend kind and the string the
// driver expects. postgres:// and postgresql:// URLs pass through whole;
// sqlite:<path> yields the file path.
func ArchiveBackend(dsn string) (kind, target string, err error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "" || dsn == ArchiveMemory:
		return ArchiveMemory, "", nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return ArchivePostgres, dsn, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		path := strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite:"), "//")
		if path == "" {
			return "", "", fmt.Errorf("ARCHIVE_DSN sqlite: path is required")
		}
		return ArchiveSQLite, path, nil
	default:
		return "", "", fmt.Errorf("ARCHIVE_DSN: unsupported scheme in %q", dsn)
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
