// Package store is the durable state layer, backed by SQLite.
// It holds two things: whole-tree snapshots (read/replace as one
// object, transactionally, so an interrupted run resumes from the
// last complete state) and the append-only log of finished analyses.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// AnalysisRecord is one completed analysis in the append-only log.
// Records are never mutated or deleted after being written.
type AnalysisRecord struct {
	ID            string
	Category      string
	Input         string
	PathJSON      []byte // serialized reasoning path steps
	FinalDecision string
	Confidence    float64
	StoredAt      time.Time
}

// Store wraps the SQLite database. Single-writer design: one
// orchestrating process owns the store; multi-process concurrent
// writers are out of scope.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open creates or opens the store under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	dbPath := filepath.Join(dir, "council.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	-- Single-row whole-tree snapshot
	CREATE TABLE IF NOT EXISTS tree_snapshot (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		root_id TEXT NOT NULL,
		data TEXT NOT NULL,
		saved_at DATETIME NOT NULL
	);

	-- Append-only analysis log
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		input_description TEXT NOT NULL,
		path_json TEXT,
		final_decision TEXT NOT NULL,
		confidence REAL NOT NULL,
		stored_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analyses_stored ON analyses(stored_at);
	CREATE INDEX IF NOT EXISTS idx_analyses_category ON analyses(category);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TREE SNAPSHOT OPERATIONS
// =============================================================================

// ReplaceTreeSnapshot atomically replaces the stored tree with data.
// Either the new snapshot fully lands or the prior one remains intact.
func (s *Store) ReplaceTreeSnapshot(rootID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO tree_snapshot (id, root_id, data, saved_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			root_id = excluded.root_id,
			data = excluded.data,
			saved_at = excluded.saved_at
	`, rootID, string(data), time.Now())
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	return tx.Commit()
}

// LoadTreeSnapshot reads the stored tree. Returns (nil, nil) when no
// snapshot exists.
func (s *Store) LoadTreeSnapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data string
	err := s.db.QueryRow(`SELECT data FROM tree_snapshot WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return []byte(data), nil
}

// DeleteTreeSnapshot removes the stored tree.
func (s *Store) DeleteTreeSnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM tree_snapshot WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// =============================================================================
// ANALYSIS LOG OPERATIONS
// =============================================================================

// AppendAnalysis adds one record to the log.
func (s *Store) AppendAnalysis(rec AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = "analysis-" + uuid.NewString()[:8]
	}
	if rec.StoredAt.IsZero() {
		rec.StoredAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO analyses (id, category, input_description, path_json,
			final_decision, confidence, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Category, rec.Input, string(rec.PathJSON),
		rec.FinalDecision, rec.Confidence, rec.StoredAt)
	if err != nil {
		return fmt.Errorf("failed to append analysis: %w", err)
	}
	return nil
}

// ScanAnalyses returns every record in insertion order.
func (s *Store) ScanAnalyses() ([]AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, category, input_description, path_json, final_decision, confidence, stored_at
		FROM analyses
		ORDER BY stored_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan analyses: %w", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		var pathJSON sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Category, &rec.Input, &pathJSON,
			&rec.FinalDecision, &rec.Confidence, &rec.StoredAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis row: %w", err)
		}
		if pathJSON.Valid {
			rec.PathJSON = []byte(pathJSON.String)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
