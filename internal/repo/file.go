package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/miradorstack/mirador-uptime/internal/models"
)

// FileRepo keeps the most recent session log in a single JSON file.
type FileRepo struct {
	mu   sync.Mutex
	path string
}

// NewFileRepo ensures the parent directory exists.
func NewFileRepo(path string) (*FileRepo, error) {
	if path == "" {
		return nil, fmt.Errorf("file repo requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	return &FileRepo{path: path}, nil
}

// Save replaces the file atomically.
func (r *FileRepo) Save(_ context.Context, log models.SessionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bytes, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session log: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o644); err != nil {
		return fmt.Errorf("write temp session log: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace session log file: %w", err)
	}
	return nil
}

// Load reads the stored log. A non-empty sessionID must match the stored one.
func (r *FileRepo) Load(_ context.Context, sessionID string) (models.SessionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.SessionLog{}, ErrNotFound
		}
		return models.SessionLog{}, fmt.Errorf("read session log: %w", err)
	}
	if len(data) == 0 {
		return models.SessionLog{}, ErrNotFound
	}

	var log models.SessionLog
	if err := json.Unmarshal(data, &log); err != nil {
		return models.SessionLog{}, fmt.Errorf("parse session log: %w", err)
	}
	if sessionID != "" && log.SessionID != sessionID {
		return models.SessionLog{}, ErrNotFound
	}
	return log, nil
}

// Close is a no-op; every Save is already durable.
func (r *FileRepo) Close() error { return nil }
