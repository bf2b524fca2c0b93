package domain

import "fmt"

// FrameSelection picks the frames an attachment manifest should contain
type FrameSelection struct {
	All      bool
	FrameIDs []string
}

// AllFrames selects every frame of the session
func AllFrames() FrameSelection {
	return FrameSelection{All: true}
}

// SelectFrames selects an explicit subset. Duplicates are dropped, order is kept.
func SelectFrames(ids ...string) FrameSelection {
	seen := make(map[string]bool, len(ids))
	var unique []string
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	return FrameSelection{FrameIDs: unique}
}

// Resolve returns the frame ids the selection names within s, in session order
// for AllFrames and in caller order otherwise.
func (sel FrameSelection) Resolve(s *Session) ([]string, error) {
	if sel.All {
		ids := make([]string, 0, len(s.Frames))
		for _, f := range s.Frames {
			ids = append(ids, f.FrameID)
		}
		return ids, nil
	}
	if len(sel.FrameIDs) == 0 {
		return nil, fmt.Errorf("%w: empty frame selection", ErrInvalidInput)
	}
	for _, id := range sel.FrameIDs {
		if s.FindFrame(id) < 0 {
			return nil, fmt.Errorf("frame %s in session %s: %w", id, s.SessionID, ErrNotFound)
		}
	}
	return sel.FrameIDs, nil
}

// Manifest lists the locally available attachment files for a session
type Manifest struct {
	SessionID       string          `json:"session_id"`
	VideoSourcePath string          `json:"video_source_path"`
	Status          SessionStatus   `json:"status"`
	Entries         []ManifestEntry `json:"entries"`
	Transcription   *Transcript     `json:"transcription,omitempty"`
	Failures        []FrameFailure  `json:"failures,omitempty"`
}

// ManifestEntry is one materialized frame
type ManifestEntry struct {
	FrameID   string `json:"frame_id"`
	LocalPath string `json:"local_path"`
}

// FrameFailure names a frame that could not be materialized
type FrameFailure struct {
	FrameID string `json:"frame_id"`
	Reason  string `json:"reason"`
}

// FilePaths returns the local paths of all entries, in order
func (m *Manifest) FilePaths() []string {
	paths := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		paths = append(paths, e.LocalPath)
	}
	return paths
}
