package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/miradorstack/mirador-uptime/internal/models"
)

// ErrNotFound signals that no session log matches the request.
var ErrNotFound = errors.New("session log not found")

// HistoryRepo persists session logs.
type HistoryRepo interface {
	Save(ctx context.Context, log models.SessionLog) error
	// Load returns the log for sessionID, or the most recently saved log when sessionID is empty.
	Load(ctx context.Context, sessionID string) (models.SessionLog, error)
	Close() error
}

// Open selects a repo by driver name: json, sqlite, or none.
func Open(ctx context.Context, driver, path string) (HistoryRepo, error) {
	switch driver {
	case "", "none":
		return NoopRepo{}, nil
	case "json":
		return NewFileRepo(path)
	case "sqlite":
		return NewSQLiteRepo(ctx, path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// NoopRepo implements HistoryRepo but never stores data.
type NoopRepo struct{}

// Save discards the log.
func (NoopRepo) Save(context.Context, models.SessionLog) error { return nil }

// Load always returns ErrNotFound.
func (NoopRepo) Load(context.Context, string) (models.SessionLog, error) {
	return models.SessionLog{}, ErrNotFound
}

// Close is a no-op.
func (NoopRepo) Close() error { return nil }
