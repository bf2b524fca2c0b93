package domain

import "time"

// SessionSummary is the index row kept for every persisted session
type SessionSummary struct {
	ID               int64         `json:"id"`
	SessionID        string        `json:"session_id"`
	VideoSourcePath  string        `json:"video_source_path"`
	Status           SessionStatus `json:"status"`
	FrameCount       int           `json:"frame_count"`
	HasTranscription bool          `json:"has_transcription"`
	RecordPath       string        `json:"record_path"`
	CreatedAt        time.Time     `json:"created_at"`
	IndexedAt        time.Time     `json:"indexed_at"`
}

// FrameMaterialization records that a frame was written to the local cache
type FrameMaterialization struct {
	SessionID      string    `json:"session_id"`
	FrameID        string    `json:"frame_id"`
	LocalPath      string    `json:"local_path"`
	SizeBytes      int64     `json:"size_bytes"`
	MaterializedAt time.Time `json:"materialized_at"`
}

// SummarizeSession derives the index row for a session stored at recordPath
func SummarizeSession(s *Session, recordPath string) *SessionSummary {
	return &SessionSummary{
		SessionID:        s.SessionID,
		VideoSourcePath:  s.VideoSourcePath,
		Status:           s.Status,
		FrameCount:       len(s.Frames),
		HasTranscription: s.Transcription != nil,
		RecordPath:       recordPath,
		CreatedAt:        s.CreatedAt,
	}
}
