package domain

import (
	"fmt"
	"regexp"
	"time"
)

// SessionStatus is the outcome of one video submission
type SessionStatus string

const (
	StatusSuccess        SessionStatus = "success"
	StatusPartialSuccess SessionStatus = "partial_success"
	StatusFailed         SessionStatus = "failed"
)

// Stage names the pipeline step an ErrorReport belongs to
type Stage string

const (
	StageSubmission    Stage = "submission"
	StageTranscription Stage = "transcription"
	StageFrameFetch    Stage = "frame_fetch"
)

// Session is the persisted record of one video-processing request
type Session struct {
	SessionID       string        `json:"session_id"`
	VideoSourcePath string        `json:"video_source_path"`
	APIURL          string        `json:"api_url,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	Status          SessionStatus `json:"status"`
	Options         SubmitOptions `json:"options"`
	Frames          []FrameRef    `json:"frames"`
	Transcription   *Transcript   `json:"transcription,omitempty"`
	Errors          []ErrorReport `json:"errors,omitempty"`
}

// FrameRef points at one extracted frame
type FrameRef struct {
	FrameID       string `json:"frame_id"`
	RemoteLocator string `json:"remote_locator"`
	LocalPath     string `json:"local_path,omitempty"`
}

// Transcript is the speech transcription of a video
type Transcript struct {
	FullText string    `json:"full_text"`
	Segments []Segment `json:"segments"`
}

// Segment is a timed piece of a transcript
type Segment struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// ErrorReport records a degradation or failure attached to a session
type ErrorReport struct {
	Stage       Stage  `json:"stage"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable"`
}

// SubmitOptions are the caller-supplied knobs for one submission
type SubmitOptions struct {
	MaxFrames         int           `json:"max_frames,omitempty"`
	SkipTranscription bool          `json:"skip_transcription,omitempty"`
	Timeout           time.Duration `json:"timeout"`
}

// Validate checks the option constraints
func (o SubmitOptions) Validate() error {
	if o.MaxFrames < 0 {
		return fmt.Errorf("%w: max_frames must not be negative, got %d", ErrInvalidInput, o.MaxFrames)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidInput, o.Timeout)
	}
	return nil
}

var safeIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateID reports whether id can be used as a single path component
func ValidateID(kind, id string) error {
	if !safeIDPattern.MatchString(id) {
		return fmt.Errorf("%w: invalid %s %q", ErrInvalidInput, kind, id)
	}
	return nil
}

// FindFrame returns the index of frameID in the session, or -1
func (s *Session) FindFrame(frameID string) int {
	for i := range s.Frames {
		if s.Frames[i].FrameID == frameID {
			return i
		}
	}
	return -1
}

// HasTranscription reports whether a transcript is present (possibly with no segments)
func (s *Session) HasTranscription() bool {
	return s.Transcription != nil
}

// Validate checks the structural invariants of a session record
func (s *Session) Validate() error {
	if err := ValidateID("session id", s.SessionID); err != nil {
		return err
	}

	switch s.Status {
	case StatusSuccess, StatusPartialSuccess:
	case StatusFailed:
		if len(s.Frames) > 0 {
			return fmt.Errorf("failed session %s must not carry frames", s.SessionID)
		}
		if s.Transcription != nil {
			return fmt.Errorf("failed session %s must not carry a transcription", s.SessionID)
		}
	default:
		return fmt.Errorf("unknown session status %q", s.Status)
	}

	if s.Status == StatusPartialSuccess && len(s.Errors) == 0 {
		return fmt.Errorf("partial session %s has no error report", s.SessionID)
	}

	seen := make(map[string]bool, len(s.Frames))
	for _, f := range s.Frames {
		if err := ValidateID("frame id", f.FrameID); err != nil {
			return err
		}
		if seen[f.FrameID] {
			return fmt.Errorf("duplicate frame id %q", f.FrameID)
		}
		seen[f.FrameID] = true
	}

	if s.Transcription != nil {
		for i, seg := range s.Transcription.Segments {
			if seg.EndMs < seg.StartMs {
				return fmt.Errorf("segment %d ends before it starts", i)
			}
		}
	}
	return nil
}

// FailedSession builds the in-memory record returned for a fatal submission.
// It is never persisted.
func FailedSession(videoPath string, opts SubmitOptions, report ErrorReport) *Session {
	return &Session{
		VideoSourcePath: videoPath,
		CreatedAt:       time.Now().UTC(),
		Status:          StatusFailed,
		Options:         opts,
		Frames:          []FrameRef{},
		Errors:          []ErrorReport{report},
	}
}
