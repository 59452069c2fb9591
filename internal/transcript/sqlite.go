package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id         TEXT PRIMARY KEY,
	bot_id     TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	prompt     TEXT NOT NULL,
	response   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcripts_bot_user
	ON transcripts (bot_id, user_id, created_at);
`

// SQLiteStore persists transcripts in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript database: %w", err)
	}

	// modernc.org/sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create transcript schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// SavePrompt records a new prompt.
func (s *SQLiteStore) SavePrompt(ctx context.Context, e Entry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (id, bot_id, user_id, prompt, response, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.BotID, e.UserID, e.Prompt, e.Response, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save prompt: %w", err)
	}
	return nil
}

// SaveResponse fills in the response for a saved prompt.
func (s *SQLiteStore) SaveResponse(ctx context.Context, id, response string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transcripts SET response = ? WHERE id = ?`, response, id)
	if err != nil {
		return fmt.Errorf("failed to save response: %w", err)
	}
	return nil
}

// History returns all entries for a bot/user pair, oldest first.
func (s *SQLiteStore) History(ctx context.Context, botID, userID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bot_id, user_id, prompt, response, created_at
		 FROM transcripts
		 WHERE bot_id = ? AND user_id = ?
		 ORDER BY created_at ASC`,
		botID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BotID, &e.UserID, &e.Prompt, &e.Response, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
