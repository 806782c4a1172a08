package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SessionDB records one row per completed pipeline session in SQLite.
type SessionDB struct {
	db *sql.DB
}

// SessionRecord is the stored metadata for one session.
type SessionRecord struct {
	SessionID      string    `json:"session_id"`
	RequestName    string    `json:"request_name"`
	SourcePath     string    `json:"source_path"`
	TranscriptPath string    `json:"transcript_path"`
	LanguageCode   string    `json:"language_code"`
	SegmentCount   int       `json:"segment_count"`
	SpeechDuration float64   `json:"speech_duration"`
	WordCount      int       `json:"word_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewSessionDB opens (and if needed initializes) the session database.
func NewSessionDB(dbPath string) (*SessionDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL UNIQUE,
		request_name TEXT NOT NULL,
		source_path TEXT NOT NULL,
		transcript_path TEXT NOT NULL,
		language_code TEXT,
		segment_count INTEGER,
		speech_duration REAL,
		word_count INTEGER,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_request_name ON sessions(request_name);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %v", err)
	}

	return &SessionDB{db: db}, nil
}

// SaveSession inserts one session record.
func (s *SessionDB) SaveSession(rec *SessionRecord) error {
	query := `
	INSERT INTO sessions (session_id, request_name, source_path, transcript_path,
		language_code, segment_count, speech_duration, word_count, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, rec.SessionID, rec.RequestName, rec.SourcePath,
		rec.TranscriptPath, rec.LanguageCode, rec.SegmentCount,
		rec.SpeechDuration, rec.WordCount, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save session metadata: %v", err)
	}
	return nil
}

// GetSession retrieves one session by ID.
func (s *SessionDB) GetSession(sessionID string) (*SessionRecord, error) {
	query := `
	SELECT session_id, request_name, source_path, transcript_path,
		language_code, segment_count, speech_duration, word_count, created_at
	FROM sessions WHERE session_id = ?
	`

	var rec SessionRecord
	err := s.db.QueryRow(query, sessionID).Scan(
		&rec.SessionID, &rec.RequestName, &rec.SourcePath, &rec.TranscriptPath,
		&rec.LanguageCode, &rec.SegmentCount, &rec.SpeechDuration,
		&rec.WordCount, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %v", err)
	}
	return &rec, nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *SessionDB) ListSessions(limit int) ([]SessionRecord, error) {
	query := `
	SELECT session_id, request_name, source_path, transcript_path,
		language_code, segment_count, speech_duration, word_count, created_at
	FROM sessions ORDER BY created_at DESC LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %v", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.SessionID, &rec.RequestName, &rec.SourcePath,
			&rec.TranscriptPath, &rec.LanguageCode, &rec.SegmentCount,
			&rec.SpeechDuration, &rec.WordCount, &rec.CreatedAt); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close closes the database connection.
func (s *SessionDB) Close() error {
	return s.db.Close()
}
