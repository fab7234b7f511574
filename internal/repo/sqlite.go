package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/miradorstack/mirador-uptime/internal/models"
	"github.com/miradorstack/mirador-uptime/internal/utils"
)

// SQLiteRepo stores session logs in a SQLite database, one row per probe and outage.
type SQLiteRepo struct {
	db *sql.DB
}

// NewSQLiteRepo opens the database file and runs migrations.
func NewSQLiteRepo(ctx context.Context, dataSourceName string) (*SQLiteRepo, error) {
	if dataSourceName == "" {
		return nil, fmt.Errorf("sqlite repo requires a path")
	}
	if !strings.HasPrefix(dataSourceName, ":memory:") && !strings.HasPrefix(dataSourceName, "file:") {
		if err := os.MkdirAll(filepath.Dir(dataSourceName), 0o755); err != nil {
			return nil, fmt.Errorf("ensure data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	repo := &SQLiteRepo{db: db}
	if err := repo.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repo, nil
}

// Close closes the database connection.
func (r *SQLiteRepo) Close() error { return r.db.Close() }

func (r *SQLiteRepo) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	saved_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_saved_at ON sessions (saved_at DESC);

CREATE TABLE IF NOT EXISTS session_targets (
	session_id  TEXT NOT NULL,
	position    INTEGER NOT NULL,
	address     TEXT NOT NULL,
	PRIMARY KEY (session_id, address),
	FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS probes (
	session_id      TEXT NOT NULL,
	target          TEXT NOT NULL,
	position        INTEGER NOT NULL,
	sequence_number INTEGER NOT NULL,
	time_requested  TEXT NOT NULL,
	time_received   TEXT,
	rtt_ms          REAL,
	response_size   INTEGER,
	ttl_hops        INTEGER,
	failed          INTEGER NOT NULL,
	error_kind      TEXT NOT NULL,
	PRIMARY KEY (session_id, target, sequence_number),
	FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS target_outages (
	session_id       TEXT NOT NULL,
	target           TEXT NOT NULL,
	position         INTEGER NOT NULL,
	start_time       TEXT NOT NULL,
	end_time         TEXT NOT NULL,
	duration_seconds REAL NOT NULL,
	first_sequence   INTEGER NOT NULL,
	last_sequence    INTEGER NOT NULL,
	FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS full_outages (
	session_id       TEXT NOT NULL,
	position         INTEGER NOT NULL,
	start_time       TEXT NOT NULL,
	end_time         TEXT NOT NULL,
	duration_seconds REAL NOT NULL,
	FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Save replaces everything stored for the session in one transaction.
func (r *SQLiteRepo) Save(ctx context.Context, log models.SessionLog) error {
	if log.SessionID == "" {
		return fmt.Errorf("session log has no id")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"full_outages", "target_outages", "probes", "session_targets", "sessions"} {
		column := "session_id"
		if table == "sessions" {
			column = "id"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, column), log.SessionID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO sessions (id, started_at, saved_at) VALUES (?, ?, ?)`,
		log.SessionID, utils.FormatTimestamp(log.StartedAt), utils.FormatTimestamp(log.SavedAt)); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	for i, target := range log.Targets {
		if _, err := tx.ExecContext(ctx, `INSERT INTO session_targets (session_id, position, address) VALUES (?, ?, ?)`,
			log.SessionID, i, target.Address); err != nil {
			return fmt.Errorf("failed to insert target %s: %w", target.Address, err)
		}
		if err := insertProbes(ctx, tx, log.SessionID, target); err != nil {
			return err
		}
		for j, outage := range target.Outages {
			if len(outage.Probes) == 0 {
				continue
			}
			_, err := tx.ExecContext(ctx, `
INSERT INTO target_outages (session_id, target, position, start_time, end_time, duration_seconds, first_sequence, last_sequence)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				log.SessionID, target.Address, j,
				utils.FormatTimestamp(outage.StartTime), utils.FormatTimestamp(outage.EndTime), outage.DurationSeconds,
				outage.Probes[0].SequenceNumber, outage.Probes[len(outage.Probes)-1].SequenceNumber)
			if err != nil {
				return fmt.Errorf("failed to insert outage for %s: %w", target.Address, err)
			}
		}
	}

	for i, outage := range log.FullOutages {
		_, err := tx.ExecContext(ctx, `
INSERT INTO full_outages (session_id, position, start_time, end_time, duration_seconds)
VALUES (?, ?, ?, ?, ?)`,
			log.SessionID, i, utils.FormatTimestamp(outage.StartTime), utils.FormatTimestamp(outage.EndTime), outage.DurationSeconds)
		if err != nil {
			return fmt.Errorf("failed to insert full outage: %w", err)
		}
	}

	return tx.Commit()
}

func insertProbes(ctx context.Context, tx *sql.Tx, sessionID string, target models.TargetLog) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO probes (session_id, target, position, sequence_number, time_requested, time_received, rtt_ms, response_size, ttl_hops, failed, error_kind)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare probe insert: %w", err)
	}
	defer stmt.Close()

	for i, probe := range target.Probes {
		var received sql.NullString
		if probe.TimeReceived != nil {
			received = sql.NullString{String: utils.FormatTimestamp(*probe.TimeReceived), Valid: true}
		}
		var rtt sql.NullFloat64
		if probe.RoundTripTimeMs != nil {
			rtt = sql.NullFloat64{Float64: *probe.RoundTripTimeMs, Valid: true}
		}
		_, err := stmt.ExecContext(ctx, sessionID, target.Address, i, probe.SequenceNumber,
			utils.FormatTimestamp(probe.TimeRequested), received, rtt,
			nullInt(probe.ResponseSizeBytes), nullInt(probe.TTLHops), probe.Failed, string(probe.ErrorKind))
		if err != nil {
			return fmt.Errorf("failed to insert probe %s#%d: %w", target.Address, probe.SequenceNumber, err)
		}
	}
	return nil
}

// Load rebuilds a session log. An empty sessionID selects the most recently saved session.
func (r *SQLiteRepo) Load(ctx context.Context, sessionID string) (models.SessionLog, error) {
	var log models.SessionLog
	var startedAt, savedAt string

	query := `SELECT id, started_at, saved_at FROM sessions WHERE id = ?`
	args := []any{sessionID}
	if sessionID == "" {
		query = `SELECT id, started_at, saved_at FROM sessions ORDER BY rowid DESC LIMIT 1`
		args = nil
	}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&log.SessionID, &startedAt, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SessionLog{}, ErrNotFound
	}
	if err != nil {
		return models.SessionLog{}, fmt.Errorf("failed to load session: %w", err)
	}
	if log.StartedAt, err = utils.ParseTimestamp(startedAt); err != nil {
		return models.SessionLog{}, err
	}
	if log.SavedAt, err = utils.ParseTimestamp(savedAt); err != nil {
		return models.SessionLog{}, err
	}

	targets, err := r.loadTargets(ctx, log.SessionID)
	if err != nil {
		return models.SessionLog{}, err
	}
	for _, address := range targets {
		target, err := r.loadTarget(ctx, log.SessionID, address)
		if err != nil {
			return models.SessionLog{}, err
		}
		log.Targets = append(log.Targets, target)
	}
	if log.Targets == nil {
		log.Targets = []models.TargetLog{}
	}

	if log.FullOutages, err = r.loadFullOutages(ctx, log.SessionID); err != nil {
		return models.SessionLog{}, err
	}
	return log, nil
}

func (r *SQLiteRepo) loadTargets(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT address FROM session_targets WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, err
		}
		out = append(out, address)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) loadTarget(ctx context.Context, sessionID, address string) (models.TargetLog, error) {
	target := models.TargetLog{Address: address, Outages: []models.TargetOutage{}}

	rows, err := r.db.QueryContext(ctx, `
SELECT sequence_number, time_requested, time_received, rtt_ms, response_size, ttl_hops, failed, error_kind
FROM probes WHERE session_id = ? AND target = ? ORDER BY position`, sessionID, address)
	if err != nil {
		return target, fmt.Errorf("failed to query probes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		probe := models.ProbeResult{TargetAddress: address}
		var requested, kind string
		var received sql.NullString
		var rtt sql.NullFloat64
		var size, ttl sql.NullInt64
		if err := rows.Scan(&probe.SequenceNumber, &requested, &received, &rtt, &size, &ttl, &probe.Failed, &kind); err != nil {
			return target, err
		}
		if probe.TimeRequested, err = utils.ParseTimestamp(requested); err != nil {
			return target, err
		}
		if received.Valid {
			ts, err := utils.ParseTimestamp(received.String)
			if err != nil {
				return target, err
			}
			probe.TimeReceived = &ts
		}
		if rtt.Valid {
			v := rtt.Float64
			probe.RoundTripTimeMs = &v
		}
		probe.ResponseSizeBytes = intPtr(size)
		probe.TTLHops = intPtr(ttl)
		probe.ErrorKind = models.ErrorKind(kind)
		target.Probes = append(target.Probes, probe)
	}
	if err := rows.Err(); err != nil {
		return target, err
	}

	outageRows, err := r.db.QueryContext(ctx, `
SELECT start_time, end_time, duration_seconds, first_sequence, last_sequence
FROM target_outages WHERE session_id = ? AND target = ? ORDER BY position`, sessionID, address)
	if err != nil {
		return target, fmt.Errorf("failed to query outages: %w", err)
	}
	defer outageRows.Close()

	for outageRows.Next() {
		outage := models.TargetOutage{Target: address}
		var start, end string
		var first, last int64
		if err := outageRows.Scan(&start, &end, &outage.DurationSeconds, &first, &last); err != nil {
			return target, err
		}
		if outage.StartTime, err = utils.ParseTimestamp(start); err != nil {
			return target, err
		}
		if outage.EndTime, err = utils.ParseTimestamp(end); err != nil {
			return target, err
		}
		outage.Probes = probesBetween(target.Probes, first, last)
		target.Outages = append(target.Outages, outage)
	}
	return target, outageRows.Err()
}

func (r *SQLiteRepo) loadFullOutages(ctx context.Context, sessionID string) ([]models.FullOutage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT start_time, end_time, duration_seconds FROM full_outages WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query full outages: %w", err)
	}
	defer rows.Close()

	out := make([]models.FullOutage, 0)
	for rows.Next() {
		var outage models.FullOutage
		var start, end string
		if err := rows.Scan(&start, &end, &outage.DurationSeconds); err != nil {
			return nil, err
		}
		if outage.StartTime, err = utils.ParseTimestamp(start); err != nil {
			return nil, err
		}
		if outage.EndTime, err = utils.ParseTimestamp(end); err != nil {
			return nil, err
		}
		out = append(out, outage)
	}
	return out, rows.Err()
}

// probesBetween returns the probes whose sequence lies in [first, last], in sequence order.
// An outage's probes are contiguous in sequence order, so the range identifies them exactly.
func probesBetween(probes []models.ProbeResult, first, last int64) []models.ProbeResult {
	out := make([]models.ProbeResult, 0)
	for _, probe := range probes {
		if probe.SequenceNumber >= first && probe.SequenceNumber <= last {
			out = append(out, probe)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
