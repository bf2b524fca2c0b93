package adapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"jira-video-session/internal/domain"
	"jira-video-session/internal/logger"
)

const (
	sessionsDirName  = "sessions"
	recordFileName   = "session.json"
	framesDirName    = "frames"
	recordTempPrefix = ".session-*.tmp"
	recordLockName   = ".session.lock"
)

// FileResultStore implements port.ResultStore on the local filesystem.
//
// Layout: <root>/sessions/<sessionID>/session.json
//
// Record updates are serialized by a per-session mutex inside the process and by
// an flock on <root>/sessions/<sessionID>/.session.lock across processes.
type FileResultStore struct {
	rootDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileResultStore creates a store rooted at rootDir
func NewFileResultStore(rootDir string) (*FileResultStore, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}
	if err := os.MkdirAll(filepath.Join(absRoot, sessionsDirName), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileResultStore{
		rootDir: absRoot,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// RootDir returns the absolute storage root
func (s *FileResultStore) RootDir() string {
	return s.rootDir
}

// SessionDir returns the directory holding everything of one session
func (s *FileResultStore) SessionDir(sessionID string) string {
	return filepath.Join(s.rootDir, sessionsDirName, sessionID)
}

// ResolvePath turns a recorded FrameRef.LocalPath into an absolute path.
// Recorded paths are relative to the storage root; absolute ones are returned as is.
func (s *FileResultStore) ResolvePath(localPath string) string {
	if localPath == "" || filepath.IsAbs(localPath) {
		return localPath
	}
	return filepath.Join(s.rootDir, filepath.FromSlash(localPath))
}

// RecordPath returns where the record of sessionID lives
func (s *FileResultStore) RecordPath(sessionID string) string {
	return filepath.Join(s.SessionDir(sessionID), recordFileName)
}

// Save creates the record. It never overwrites: the temp file is hard-linked
// into place, which fails if the record already exists.
func (s *FileResultStore) Save(session *domain.Session) error {
	if session == nil {
		return fmt.Errorf("%w: session is nil", domain.ErrInvalidInput)
	}
	logger.Debug("Save: sessionID=%s, status=%s, frames=%d", session.SessionID, session.Status, len(session.Frames))

	if err := session.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid session: %w", err)
	}
	if session.Status == domain.StatusFailed {
		return fmt.Errorf("%w: failed sessions are not persisted", domain.ErrInvalidInput)
	}

	data, err := encodeSession(session)
	if err != nil {
		return err
	}

	dir := s.SessionDir(session.SessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmpPath, err := writeTemp(dir, recordTempPrefix, data)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := os.Link(tmpPath, s.RecordPath(session.SessionID)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			logger.Debug("Save: record already exists: %s", session.SessionID)
			return fmt.Errorf("session %s: %w", session.SessionID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to publish session record: %w", err)
	}
	syncDir(dir)

	logger.Debug("Save: success, path=%s", s.RecordPath(session.SessionID))
	return nil
}

// Load reads and strictly decodes a record
func (s *FileResultStore) Load(sessionID string) (*domain.Session, error) {
	if err := domain.ValidateID("session id", sessionID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.RecordPath(sessionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session %s: %w", sessionID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}

	session, err := decodeSession(data)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w: %v", sessionID, domain.ErrCorrupt, err)
	}
	if session.SessionID != sessionID {
		return nil, fmt.Errorf("session %s: %w: record belongs to %q", sessionID, domain.ErrCorrupt, session.SessionID)
	}
	return session, nil
}

// SetFrameLocalPath sets FrameRef.LocalPath once. Setting the same value again is a
// no-op; a different existing value yields domain.ErrLocalPathConflict. Every other
// field of the record is carried over untouched.
func (s *FileResultStore) SetFrameLocalPath(sessionID, frameID, localPath string) error {
	if localPath == "" {
		return fmt.Errorf("%w: empty local path", domain.ErrInvalidInput)
	}

	// Load first: it validates the id and reports an unknown session before any lock file is created
	if _, err := s.Load(sessionID); err != nil {
		return err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	fileLock := flock.New(filepath.Join(s.SessionDir(sessionID), recordLockName))
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("failed to lock session %s: %w", sessionID, err)
	}
	defer fileLock.Unlock()

	// Reload under the lock so a concurrent writer's update is carried over
	session, err := s.Load(sessionID)
	if err != nil {
		return err
	}

	idx := session.FindFrame(frameID)
	if idx < 0 {
		return fmt.Errorf("frame %s in session %s: %w", frameID, sessionID, domain.ErrNotFound)
	}

	switch current := session.Frames[idx].LocalPath; current {
	case localPath:
		return nil
	case "":
	default:
		return fmt.Errorf("frame %s in session %s is %s: %w", frameID, sessionID, current, domain.ErrLocalPathConflict)
	}

	session.Frames[idx].LocalPath = localPath
	data, err := encodeSession(session)
	if err != nil {
		return err
	}

	dir := s.SessionDir(sessionID)
	if err := replaceFile(s.RecordPath(sessionID), dir, recordTempPrefix, data); err != nil {
		return fmt.Errorf("failed to update frame local path: %w", err)
	}

	logger.Debug("SetFrameLocalPath: %s/%s -> %s", sessionID, frameID, localPath)
	return nil
}

func (s *FileResultStore) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

func encodeSession(session *domain.Session) ([]byte, error) {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeSession(data []byte) (*domain.Session, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var session domain.Session
	if err := dec.Decode(&session); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("trailing data after record")
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if session.Status == domain.StatusFailed {
		return nil, fmt.Errorf("failed sessions are never persisted")
	}
	return &session, nil
}
