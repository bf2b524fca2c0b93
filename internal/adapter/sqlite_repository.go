package adapter

import (
	"database/sql"
	"fmt"
	"time"

	"jira-video-session/internal/domain"
	"jira-video-session/internal/logger"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements port.SessionIndex using SQLite.
// The JSON records stay canonical; this index only serves listing and history.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite repository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	logger.Debug("NewSQLiteRepository: opening database at %s", dbPath)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Debug("NewSQLiteRepository: failed to open database: %v", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		logger.Debug("NewSQLiteRepository: migration failed: %v", err)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Debug("NewSQLiteRepository: database opened and migrated successfully")
	return repo, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	logger.Debug("SQLiteRepository: closing database connection")
	return r.db.Close()
}

// migrate runs database migrations
func (r *SQLiteRepository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			video_source_path TEXT,
			status TEXT NOT NULL,
			frame_count INTEGER DEFAULT 0,
			has_transcription BOOLEAN DEFAULT FALSE,
			record_path TEXT,
			created_at DATETIME,
			indexed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS frame_materializations (
			session_id TEXT NOT NULL,
			frame_id TEXT NOT NULL,
			local_path TEXT NOT NULL,
			size_bytes INTEGER DEFAULT 0,
			materialized_at DATETIME,
			PRIMARY KEY (session_id, frame_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// RecordSession inserts the summary row of a newly persisted session.
// Re-recording the same session id keeps the first row.
func (r *SQLiteRepository) RecordSession(summary *domain.SessionSummary) error {
	logger.Debug("RecordSession: sessionID=%s, status=%s", summary.SessionID, summary.Status)
	query := `INSERT INTO sessions (session_id, video_source_path, status, frame_count, has_transcription, record_path, created_at, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`

	now := time.Now().UTC()
	result, err := r.db.Exec(query,
		summary.SessionID,
		summary.VideoSourcePath,
		string(summary.Status),
		summary.FrameCount,
		summary.HasTranscription,
		summary.RecordPath,
		summary.CreatedAt,
		now,
	)
	if err != nil {
		logger.Debug("RecordSession: failed: %v", err)
		return fmt.Errorf("failed to record session: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 1 {
		if id, err := result.LastInsertId(); err == nil {
			summary.ID = id
		}
		summary.IndexedAt = now
	}
	return nil
}

// RecordMaterialization stores that a frame now lives in the local cache
func (r *SQLiteRepository) RecordMaterialization(m *domain.FrameMaterialization) error {
	logger.Debug("RecordMaterialization: %s/%s -> %s", m.SessionID, m.FrameID, m.LocalPath)
	if m.MaterializedAt.IsZero() {
		m.MaterializedAt = time.Now().UTC()
	}
	query := `INSERT INTO frame_materializations (session_id, frame_id, local_path, size_bytes, materialized_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, frame_id) DO NOTHING`

	if _, err := r.db.Exec(query, m.SessionID, m.FrameID, m.LocalPath, m.SizeBytes, m.MaterializedAt); err != nil {
		logger.Debug("RecordMaterialization: failed: %v", err)
		return fmt.Errorf("failed to record materialization: %w", err)
	}
	return nil
}

// GetSession retrieves a session summary by id
func (r *SQLiteRepository) GetSession(sessionID string) (*domain.SessionSummary, error) {
	query := `SELECT id, session_id, video_source_path, status, frame_count, has_transcription, record_path, created_at, indexed_at
		FROM sessions WHERE session_id = ?`

	summary, err := scanSummary(r.db.QueryRow(query, sessionID))
	if err == sql.ErrNoRows {
		logger.Debug("GetSession: session not found: %s", sessionID)
		return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return summary, nil
}

// ListSessions lists all indexed sessions, newest first
func (r *SQLiteRepository) ListSessions() ([]*domain.SessionSummary, error) {
	query := `SELECT id, session_id, video_source_path, status, frame_count, has_transcription, record_path, created_at, indexed_at
		FROM sessions ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		logger.Debug("ListSessions: query failed: %v", err)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.SessionSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// ListMaterializations lists the cached frames of a session
func (r *SQLiteRepository) ListMaterializations(sessionID string) ([]*domain.FrameMaterialization, error) {
	query := `SELECT session_id, frame_id, local_path, size_bytes, materialized_at
		FROM frame_materializations WHERE session_id = ? ORDER BY materialized_at ASC, frame_id ASC`

	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list materializations: %w", err)
	}
	defer rows.Close()

	var result []*domain.FrameMaterialization
	for rows.Next() {
		var m domain.FrameMaterialization
		if err := rows.Scan(&m.SessionID, &m.FrameID, &m.LocalPath, &m.SizeBytes, &m.MaterializedAt); err != nil {
			return nil, fmt.Errorf("failed to scan materialization: %w", err)
		}
		result = append(result, &m)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*domain.SessionSummary, error) {
	var s domain.SessionSummary
	var status string
	if err := row.Scan(
		&s.ID,
		&s.SessionID,
		&s.VideoSourcePath,
		&status,
		&s.FrameCount,
		&s.HasTranscription,
		&s.RecordPath,
		&s.CreatedAt,
		&s.IndexedAt,
	); err != nil {
		return nil, err
	}
	s.Status = domain.SessionStatus(status)
	return &s, nil
}
