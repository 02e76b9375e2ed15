// Package capture persists sampled inferences to SQLite so that request
// traffic can be inspected and replayed offline.
package capture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
	"github.com/baditaflorin/go_pair_features/internal/npy"
	"github.com/baditaflorin/go_pair_features/internal/ports"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS captures (
	inference_id     TEXT PRIMARY KEY,
	captured_at      TEXT NOT NULL,
	s1               TEXT NOT NULL,
	s2               TEXT NOT NULL,
	features_npy_b64 TEXT NOT NULL,
	label            REAL,
	score            REAL
);
CREATE INDEX IF NOT EXISTS idx_captures_captured_at ON captures(captured_at);
`

// Config controls where captures go and how many are kept.
type Config struct {
	Path string
	// SamplingPercentage is the share of inferences stored, 0 to 100.
	SamplingPercentage float64
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("capture: path is required")
	}
	if c.SamplingPercentage < 0 || c.SamplingPercentage > 100 {
		return errors.New("capture: sampling percentage must be between 0 and 100")
	}
	return nil
}

// Store is a SQLite-backed ports.CaptureStore.
type Store struct {
	db       *sql.DB
	path     string
	sampling float64
	sample   func() float64
}

// Open creates or opens the capture database.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("capture: ensure directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("capture: open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("capture: apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("capture: init schema: %w", err)
	}

	return &Store{
		db:       db,
		path:     cfg.Path,
		sampling: cfg.SamplingPercentage,
		sample:   rand.Float64,
	}, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sampled reports whether the next inference should be stored.
func (s *Store) Sampled() bool {
	switch {
	case s.sampling >= 100:
		return true
	case s.sampling <= 0:
		return false
	}
	return s.sample()*100 < s.sampling
}

// Save stores rec if it falls in the sample. Records with an id that was
// already captured replace the previous row.
func (s *Store) Save(ctx context.Context, rec ports.CaptureRecord) error {
	if !s.Sampled() {
		return nil
	}
	if rec.InferenceID == "" {
		return errors.New("capture: inference id is required")
	}
	if rec.CapturedAt.IsZero() {
		rec.CapturedAt = time.Now()
	}

	encoded, err := npy.EncodeBase64(npy.Row(rec.Features))
	if err != nil {
		return fmt.Errorf("capture: encoding features: %w", err)
	}

	var label, score sql.NullFloat64
	if rec.Decision != nil {
		label = sql.NullFloat64{Float64: rec.Decision.Label, Valid: true}
		score = sql.NullFloat64{Float64: rec.Decision.Score, Valid: true}
	}

	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO captures
				(inference_id, captured_at, s1, s2, features_npy_b64, label, score)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.InferenceID,
			rec.CapturedAt.UTC().Format(time.RFC3339Nano),
			rec.Input.S1,
			rec.Input.S2,
			encoded,
			label,
			score,
		)
		return err
	})
}

// Entry is a stored capture with the features still in wire form.
type Entry struct {
	InferenceID string
	CapturedAt  time.Time
	Input       domain.RawPair
	FeaturesB64 string
	Decision    *domain.Decision
}

// Record decodes the stored features.
func (e Entry) Record() (ports.CaptureRecord, error) {
	arr, err := npy.DecodeBase64(e.FeaturesB64)
	if err != nil {
		return ports.CaptureRecord{}, err
	}
	return ports.CaptureRecord{
		InferenceID: e.InferenceID,
		CapturedAt:  e.CapturedAt,
		Input:       e.Input,
		Features:    domain.MetricVector(arr.Data),
		Decision:    e.Decision,
	}, nil
}

// List returns the most recent captures first. A limit of 0 or less returns
// everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	clause := `ORDER BY captured_at DESC, inference_id`
	if limit > 0 {
		return s.list(ctx, clause+` LIMIT ?`, limit)
	}
	return s.list(ctx, clause)
}

// Get returns one capture by id. The boolean is false when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (Entry, bool, error) {
	entries, err := s.list(ctx, `WHERE inference_id = ?`, id)
	if err != nil || len(entries) == 0 {
		return Entry{}, false, err
	}
	return entries[0], true, nil
}

func (s *Store) list(ctx context.Context, where string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT inference_id, captured_at, s1, s2, features_npy_b64, label, score FROM captures `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("capture: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e            Entry
			capturedAt   string
			label, score sql.NullFloat64
		)
		if err := rows.Scan(&e.InferenceID, &capturedAt, &e.Input.S1, &e.Input.S2, &e.FeaturesB64, &label, &score); err != nil {
			return nil, fmt.Errorf("capture: scan: %w", err)
		}
		if e.CapturedAt, err = time.Parse(time.RFC3339Nano, capturedAt); err != nil {
			return nil, fmt.Errorf("capture: parse time for %s: %w", e.InferenceID, err)
		}
		if label.Valid {
			e.Decision = &domain.Decision{Label: label.Float64, Score: score.Float64}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored captures.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM captures`).Scan(&n); err != nil {
		return 0, fmt.Errorf("capture: count: %w", err)
	}
	return n, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
