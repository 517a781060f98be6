package persistence

import (
	"context"
	"fmt"
)

// EnsureSession creates the session row if it doesn't exist.
func (s *SQLiteStore) EnsureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id) VALUES (?) ON CONFLICT(id) DO NOTHING`,
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

// ListSessions returns all session ids, oldest first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveMessage appends one narration line to the session transcript.
func (s *SQLiteStore) SaveMessage(ctx context.Context, sessionID, role, content, kind string) error {
	if err := s.EnsureSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript (session_id, role, content, kind) VALUES (?, ?, ?, ?)`,
		sessionID, role, content, kind)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// GetTranscript returns a session's narration lines in order.
func (s *SQLiteStore) GetTranscript(ctx context.Context, sessionID string) ([]TranscriptLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, kind, timestamp
		FROM transcript WHERE session_id = ? ORDER BY id`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer rows.Close()

	var lines []TranscriptLine
	for rows.Next() {
		var line TranscriptLine
		if err := rows.Scan(&line.Role, &line.Content, &line.Kind, &line.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transcript line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
