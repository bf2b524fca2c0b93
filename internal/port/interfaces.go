package port

import (
	"context"
	"fmt"

	"jira-video-session/internal/classifier"
	"jira-video-session/internal/domain"
)

// SubmitRequest is one video submission to the remote service
type SubmitRequest struct {
	VideoPath string
	// APIURL overrides the configured endpoint when non-empty
	APIURL  string
	Options domain.SubmitOptions
}

// RemoteFailure is a sub-failure marker carried in a remote response
type RemoteFailure struct {
	Stage   domain.Stage
	Signal  classifier.Signal
	Message string
}

// SubmitResponse is the strictly decoded remote reply, tagged by Variant
type SubmitResponse struct {
	Variant       domain.SessionStatus
	SessionID     string
	Frames        []domain.FrameRef
	Transcription *domain.Transcript
	Failure       *RemoteFailure
	// APIURL is the endpoint that actually served the request
	APIURL string
}

// FetchRequest asks the remote service for the bytes of one frame
type FetchRequest struct {
	APIURL    string
	SessionID string
	Frame     domain.FrameRef
}

// RemoteError is a transport or protocol failure carrying its raw signal
type RemoteError struct {
	Signal  classifier.Signal
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Signal, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Signal, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// RemoteService defines the capabilities used from the video-analysis service
type RemoteService interface {
	// Submit uploads a video and blocks until the service answers or ctx expires
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
	// FetchFrame downloads the raw image bytes of one frame
	FetchFrame(ctx context.Context, req FetchRequest) ([]byte, error)
}

// VideoInfo describes a local input video
type VideoInfo struct {
	Path      string
	MimeType  string
	Extension string
	Size      int64
}

// VideoInspector validates local input files before submission
type VideoInspector interface {
	// Inspect fails with an *InputError carrying file_not_found or unsupported_format
	Inspect(videoPath string) (*VideoInfo, error)
}

// InputError is a local input failure carrying its raw signal
type InputError struct {
	Signal  classifier.Signal
	Message string
	Err     error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *InputError) Unwrap() error { return e.Err }

// ResultStore persists canonical session records
type ResultStore interface {
	// Save creates the record; an existing record yields domain.ErrAlreadyExists
	Save(session *domain.Session) error
	// Load returns domain.ErrNotFound or domain.ErrCorrupt on failure
	Load(sessionID string) (*domain.Session, error)
	// SetFrameLocalPath is the only post-persist update: a compare-and-set of one FrameRef.LocalPath
	SetFrameLocalPath(sessionID, frameID, localPath string) error
	// RecordPath returns where the record of sessionID lives
	RecordPath(sessionID string) string
	// ResolvePath turns a recorded LocalPath (relative to the storage root) into an absolute path
	ResolvePath(localPath string) string
}

// FrameCache is the local content store of materialized frames, keyed by (session, frame)
type FrameCache interface {
	// Path returns the canonical location of a frame, relative to the storage root.
	// This is the value recorded in FrameRef.LocalPath.
	Path(sessionID string, frame domain.FrameRef) (string, error)
	// Read returns the cached bytes at a recorded location, or domain.ErrNotFound
	Read(localPath string) ([]byte, error)
	// Write materializes data at the canonical location via temp file and rename
	// and returns that location
	Write(sessionID string, frame domain.FrameRef, data []byte) (string, error)
}

// SessionIndex keeps a queryable history of sessions and materialized frames
type SessionIndex interface {
	RecordSession(summary *domain.SessionSummary) error
	RecordMaterialization(m *domain.FrameMaterialization) error
	GetSession(sessionID string) (*domain.SessionSummary, error)
	ListSessions() ([]*domain.SessionSummary, error)
	ListMaterializations(sessionID string) ([]*domain.FrameMaterialization, error)
}

// FrameGetter returns the bytes of a frame, materializing it if needed
type FrameGetter interface {
	Get(ctx context.Context, sessionID, frameID string) ([]byte, error)
}

// ManifestWriter renders a manifest for manual or automated attachment
type ManifestWriter interface {
	// Write stores the manifest and returns the written file paths
	Write(manifest *domain.Manifest, dir string) ([]string, error)
}

// ManifestPublisher pushes a manifest and its files to shared storage
type ManifestPublisher interface {
	Publish(ctx context.Context, manifest *domain.Manifest) (string, error)
}
