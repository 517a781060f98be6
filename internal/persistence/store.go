package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// TaskResult is one task's persisted outcome within a run.
type TaskResult struct {
	TaskID     string
	Output     string
	TokensUsed int
	Duration   time.Duration
	Error      string // Empty on success
}

// RunRecord is one orchestrator run, ready for persistence.
type RunRecord struct {
	ID             int64 // Assigned on save
	SessionID      string
	Strategy       string
	Reasoning      string
	Success        bool
	TotalTasks     int
	BatchCount     int
	MaxParallelism int
	Duration       time.Duration
	Results        []TaskResult
	CreatedAt      time.Time
}

// TranscriptLine is one persisted narration message.
type TranscriptLine struct {
	Role      string
	Content   string
	Kind      string
	Timestamp time.Time
}

// Store defines the persistence interface for sessions, runs, and the
// narration transcript.
type Store interface {
	EnsureSession(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) ([]string, error)

	SaveRun(ctx context.Context, rec *RunRecord) error
	GetRuns(ctx context.Context, sessionID string) ([]*RunRecord, error)

	SaveMessage(ctx context.Context, sessionID, role, content, kind string) error
	GetTranscript(ctx context.Context, sessionID string) ([]TranscriptLine, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys,
// and a busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// modernc.org/sqlite doesn't support _foreign_keys in the connection
	// string; it is enabled via PRAGMA below.
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return initStore(ctx, db)
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Uses a shared cache so multiple connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	return initStore(ctx, db)
}

func initStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// One connection for primary queries, one for subqueries.
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
