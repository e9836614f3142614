// Package cache stores per-period pipeline outputs in SQLite. Entries
// are all-or-nothing per (stage, period) key: a run either finds a
// complete payload or recomputes the stage from source files.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/tradepanel/internal/config"
)

// SchemaVersion invalidates cached payloads when the serialized row
// shape changes. Bump on any incompatible change to the cached types.
const SchemaVersion = 1

// Pipeline stage names used as cache keys.
const (
	StageExports   = "exports"
	StageDisasters = "disasters"
)

// Entry describes one cached artifact for status reporting.
type Entry struct {
	Stage         string
	PeriodKey     string
	SchemaVersion int
	ParamsHash    string
	CreatedAt     time.Time
}

// Store is the SQLite-backed period cache.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database under dir and
// applies the schema.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "cache: create dir")
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "tradepanel.db"))
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS period_cache (
	stage          TEXT NOT NULL,
	period_key     TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	params_hash    TEXT NOT NULL,
	payload        TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (stage, period_key)
);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "cache: migrate")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get loads a cached payload into out. A missing entry, a schema or
// params mismatch, or an unreadable payload all report a miss; the last
// two also log a warning, since the entry will be overwritten.
func (s *Store) Get(ctx context.Context, stage, periodKey, paramsHash string, out any) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT schema_version, params_hash, payload FROM period_cache
		 WHERE stage = ? AND period_key = ?`,
		stage, periodKey,
	)

	var (
		version int
		hash    string
		payload string
	)
	err := row.Scan(&version, &hash, &payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "cache: get")
	}

	log := zap.L().With(zap.String("stage", stage), zap.String("period", periodKey))
	if version != SchemaVersion {
		log.Warn("cache schema version mismatch, recomputing",
			zap.Int("cached", version), zap.Int("current", SchemaVersion))
		return false, nil
	}
	if hash != paramsHash {
		log.Warn("cache params mismatch, recomputing")
		return false, nil
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		log.Warn("cache payload unreadable, recomputing", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Put stores a payload, replacing any previous entry for the key.
func (s *Store) Put(ctx context.Context, stage, periodKey, paramsHash string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "cache: marshal payload")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO period_cache (stage, period_key, schema_version, params_hash, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (stage, period_key) DO UPDATE SET
			schema_version = excluded.schema_version,
			params_hash    = excluded.params_hash,
			payload        = excluded.payload,
			created_at     = excluded.created_at`,
		stage, periodKey, SchemaVersion, paramsHash, string(raw), time.Now().UTC(),
	)
	return eris.Wrap(err, "cache: put")
}

// ClearStage removes one stage's entry for one period.
func (s *Store) ClearStage(ctx context.Context, stage, periodKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM period_cache WHERE stage = ? AND period_key = ?`, stage, periodKey)
	return eris.Wrapf(err, "cache: clear %s %s", stage, periodKey)
}

// Clear removes all cached stages for one period.
func (s *Store) Clear(ctx context.Context, periodKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM period_cache WHERE period_key = ?`, periodKey)
	return eris.Wrapf(err, "cache: clear period %s", periodKey)
}

// ClearAll removes every cached entry.
func (s *Store) ClearAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM period_cache`)
	return eris.Wrap(err, "cache: clear all")
}

// Entries lists all cached artifacts, newest first.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, period_key, schema_version, params_hash, created_at
		 FROM period_cache ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "cache: list entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Stage, &e.PeriodKey, &e.SchemaVersion, &e.ParamsHash, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "cache: scan entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "cache: iterate entries")
}

// ParamsHash fingerprints the inputs that shape a period's payload
// beyond the period key itself: the window boundaries and the active
// exclusion set.
func ParamsHash(period config.Period, excludedISOCodes []string) string {
	codes := make([]string, len(excludedISOCodes))
	copy(codes, excludedISOCodes)
	sort.Strings(codes)

	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%s", period.Start, period.End, strings.Join(codes, ","))
	return hex.EncodeToString(h.Sum(nil))
}
