package cache

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/nurpe/freight-quotes/internal/model"
)

const (
	SnapshotKey   = "cotacoes_frete"
	CredentialKey = "cotacoesFreteSession"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store keeps the client's offline snapshot and session credential in a
// local SQLite file, one row per fixed key.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. Pass ":memory:" for an
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

// SaveSnapshot overwrites the stored collection with quotes.
func (s *Store) SaveSnapshot(ctx context.Context, quotes []model.Quote) error {
	if quotes == nil {
		quotes = []model.Quote{}
	}
	raw, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return s.put(ctx, SnapshotKey, string(raw))
}

// LoadSnapshot returns the stored collection, or an empty one when nothing
// was saved yet.
func (s *Store) LoadSnapshot(ctx context.Context) ([]model.Quote, error) {
	raw, err := s.get(ctx, SnapshotKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return []model.Quote{}, nil
	}
	var quotes []model.Quote
	if err := json.Unmarshal([]byte(raw), &quotes); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return quotes, nil
}

func (s *Store) SaveCredential(ctx context.Context, token string) error {
	return s.put(ctx, CredentialKey, token)
}

// LoadCredential returns "" when no credential is stored.
func (s *Store) LoadCredential(ctx context.Context) (string, error) {
	return s.get(ctx, CredentialKey)
}

func (s *Store) ClearCredential(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", CredentialKey)
	return err
}

func (s *Store) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}
