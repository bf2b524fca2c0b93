package usecase_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jira-video-session/internal/adapter"
	"jira-video-session/internal/domain"
	"jira-video-session/internal/port"
)

// newStore returns a result store and frame cache rooted in a temp dir
func newStore(t *testing.T) (*adapter.FileResultStore, *adapter.FileFrameCache) {
	t.Helper()
	store, err := adapter.NewFileResultStore(t.TempDir())
	require.NoError(t, err)
	return store, adapter.NewFileFrameCache(store)
}

// writeVideo creates a placeholder input file
func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bug-report.mp4")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))
	return path
}

func defaultOptions() domain.SubmitOptions {
	return domain.SubmitOptions{MaxFrames: 10, Timeout: 5 * time.Second}
}

func successResponse(sessionID string, frameIDs ...string) *port.SubmitResponse {
	frames := make([]domain.FrameRef, 0, len(frameIDs))
	for _, id := range frameIDs {
		frames = append(frames, domain.FrameRef{
			FrameID:       id,
			RemoteLocator: "/v1/sessions/" + sessionID + "/frames/" + id + ".png",
		})
	}
	return &port.SubmitResponse{
		Variant:   domain.StatusSuccess,
		SessionID: sessionID,
		Frames:    frames,
		Transcription: &domain.Transcript{
			FullText: "the dialog does not close",
			Segments: []domain.Segment{{StartMs: 0, EndMs: 2500, Text: "the dialog does not close"}},
		},
		APIURL: "http://analysis.local",
	}
}

// persistSession saves a success session with the given frames
func persistSession(t *testing.T, store *adapter.FileResultStore, sessionID string, frameIDs ...string) *domain.Session {
	t.Helper()
	resp := successResponse(sessionID, frameIDs...)
	session := &domain.Session{
		SessionID:       sessionID,
		VideoSourcePath: "/videos/bug.mp4",
		APIURL:          resp.APIURL,
		CreatedAt:       time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		Status:          domain.StatusSuccess,
		Options:         defaultOptions(),
		Frames:          resp.Frames,
		Transcription:   resp.Transcription,
	}
	require.NoError(t, store.Save(session))
	return session
}
