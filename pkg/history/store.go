// Package history persists provider health snapshots to SQLite so
// operators can inspect availability over time.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"verity-hq/callisto/pkg/providers"
)

const schema = `
CREATE TABLE IF NOT EXISTS health_snapshots (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	provider             TEXT NOT NULL,
	capability           TEXT NOT NULL,
	is_healthy           INTEGER NOT NULL,
	consecutive_failures INTEGER NOT NULL,
	response_time_ms     INTEGER NOT NULL,
	last_error           TEXT NOT NULL DEFAULT '',
	recorded_at          TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_provider_time
	ON health_snapshots(provider, recorded_at);
CREATE INDEX IF NOT EXISTS idx_snapshots_time
	ON health_snapshots(recorded_at);
`

// Snapshot is one persisted health observation.
type Snapshot struct {
	ID                  int64
	Provider            string
	Capability          providers.CapabilityType
	IsHealthy           bool
	ConsecutiveFailures int
	ResponseTime        time.Duration
	LastError           string
	RecordedAt          time.Time
}

// Store persists health snapshots in SQLite. Safe for concurrent use;
// the database handle serializes writes.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the snapshot database at path and prepares the
// schema. WAL mode keeps sweep recording from blocking reads.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	logger.Info("health history store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Record persists one health observation.
func (s *Store) Record(ctx context.Context, provider string, capability providers.CapabilityType, health providers.HealthStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO health_snapshots
			(provider, capability, is_healthy, consecutive_failures, response_time_ms, last_error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		provider,
		string(capability),
		boolToInt(health.IsHealthy),
		health.ConsecutiveFailures,
		health.ResponseTime.Milliseconds(),
		health.LastError,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record health snapshot for %s: %w", provider, err)
	}
	return nil
}

// RecentSnapshots returns the newest snapshots for a provider, most
// recent first.
func (s *Store) RecentSnapshots(ctx context.Context, provider string, limit int) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider, capability, is_healthy, consecutive_failures,
		       response_time_ms, last_error, recorded_at
		FROM health_snapshots
		WHERE provider = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`,
		provider, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots for %s: %w", provider, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			snap      Snapshot
			healthy   int
			respMs    int64
			capString string
		)
		if err := rows.Scan(&snap.ID, &snap.Provider, &capString, &healthy,
			&snap.ConsecutiveFailures, &respMs, &snap.LastError, &snap.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Capability = providers.CapabilityType(capString)
		snap.IsHealthy = healthy != 0
		snap.ResponseTime = time.Duration(respMs) * time.Millisecond
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Availability reports the fraction of healthy snapshots for a
// provider since the given time, and the number of observations.
func (s *Store) Availability(ctx context.Context, provider string, since time.Time) (float64, int, error) {
	var total, healthy int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(is_healthy), 0)
		FROM health_snapshots
		WHERE provider = ? AND recorded_at >= ?`,
		provider, since.UTC(),
	).Scan(&total, &healthy)
	if err != nil {
		return 0, 0, fmt.Errorf("compute availability for %s: %w", provider, err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(healthy) / float64(total), total, nil
}

// Prune deletes snapshots older than the cutoff and returns the number
// removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM health_snapshots WHERE recorded_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("pruned health snapshots", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
