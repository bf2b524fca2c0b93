package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-video-session/internal/domain"
)

func sampleSession(id string) *domain.Session {
	return &domain.Session{
		SessionID:       id,
		VideoSourcePath: "/videos/crash.mov",
		APIURL:          "http://analysis.local",
		CreatedAt:       time.Date(2026, 2, 14, 16, 45, 12, 500_000_000, time.UTC),
		Status:          domain.StatusSuccess,
		Options:         domain.SubmitOptions{MaxFrames: 3, Timeout: 90 * time.Second},
		Frames: []domain.FrameRef{
			{FrameID: "f001", RemoteLocator: "/v1/sessions/" + id + "/frames/f001.jpg"},
			{FrameID: "f002", RemoteLocator: "/v1/sessions/" + id + "/frames/f002.jpg"},
		},
		Transcription: &domain.Transcript{
			FullText: "app crashes on rotate",
			Segments: []domain.Segment{{StartMs: 100, EndMs: 1900, Text: "app crashes on rotate"}},
		},
	}
}

func newTestStore(t *testing.T) *FileResultStore {
	t.Helper()
	store, err := NewFileResultStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestFileResultStore_SaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	session := sampleSession("sess-rt")

	require.NoError(t, store.Save(session))

	loaded, err := store.Load("sess-rt")
	require.NoError(t, err)
	assert.Equal(t, session, loaded)

	// re-encoding the loaded record reproduces the file byte for byte
	onDisk, err := os.ReadFile(store.RecordPath("sess-rt"))
	require.NoError(t, err)
	reencoded, err := encodeSession(loaded)
	require.NoError(t, err)
	assert.Equal(t, string(onDisk), string(reencoded))
}

func TestFileResultStore_RoundTripPartialNoSpeech(t *testing.T) {
	store := newTestStore(t)
	session := sampleSession("sess-ns")
	session.Status = domain.StatusPartialSuccess
	session.Transcription = &domain.Transcript{Segments: []domain.Segment{}}
	session.Errors = []domain.ErrorReport{{Stage: domain.StageTranscription, Kind: "no_speech_detected", Message: "silence", Recoverable: true}}

	require.NoError(t, store.Save(session))
	loaded, err := store.Load("sess-ns")

	require.NoError(t, err)
	assert.Equal(t, session, loaded)
	require.NotNil(t, loaded.Transcription)
	assert.NotNil(t, loaded.Transcription.Segments)
}

func TestFileResultStore_SaveRefusesOverwrite(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(sampleSession("sess-dup")))

	other := sampleSession("sess-dup")
	other.VideoSourcePath = "/videos/other.mov"
	err := store.Save(other)

	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	loaded, err := store.Load("sess-dup")
	require.NoError(t, err)
	assert.Equal(t, "/videos/crash.mov", loaded.VideoSourcePath)
}

func TestFileResultStore_SaveRejectsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *domain.Session)
	}{
		{"failed session", func(s *domain.Session) {
			s.Status = domain.StatusFailed
			s.Frames = []domain.FrameRef{}
			s.Transcription = nil
		}},
		{"unsafe id", func(s *domain.Session) { s.SessionID = "../../etc" }},
		{"partial without report", func(s *domain.Session) { s.Status = domain.StatusPartialSuccess }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			s := sampleSession("sess-bad")
			tt.mutate(s)

			assert.Error(t, store.Save(s))

			entries, err := os.ReadDir(filepath.Join(store.RootDir(), sessionsDirName))
			require.NoError(t, err)
			for _, e := range entries {
				_, statErr := os.Stat(filepath.Join(store.RootDir(), sessionsDirName, e.Name(), recordFileName))
				assert.True(t, os.IsNotExist(statErr))
			}
		})
	}
}

func TestFileResultStore_LoadErrors(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.Load("../escape")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	corrupt := []struct {
		name string
		body string
	}{
		{"truncated", `{"session_id": "sess-c", "status": "succ`},
		{"unknown field", `{"session_id":"sess-c","video_source_path":"x","created_at":"2026-01-01T00:00:00Z","status":"success","options":{"timeout":1},"frames":[],"extra":1}`},
		{"trailing data", `{"session_id":"sess-c","video_source_path":"x","created_at":"2026-01-01T00:00:00Z","status":"success","options":{"timeout":1},"frames":[]} {}`},
		{"failed status", `{"session_id":"sess-c","video_source_path":"x","created_at":"2026-01-01T00:00:00Z","status":"failed","options":{"timeout":1},"frames":[]}`},
		{"foreign id", `{"session_id":"sess-z","video_source_path":"x","created_at":"2026-01-01T00:00:00Z","status":"success","options":{"timeout":1},"frames":[]}`},
	}
	for _, tt := range corrupt {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.MkdirAll(store.SessionDir("sess-c"), 0755))
			require.NoError(t, os.WriteFile(store.RecordPath("sess-c"), []byte(tt.body), 0644))

			_, err := store.Load("sess-c")
			assert.ErrorIs(t, err, domain.ErrCorrupt)
		})
	}
}

func TestFileResultStore_SetFrameLocalPath(t *testing.T) {
	store := newTestStore(t)
	original := sampleSession("sess-lp")
	require.NoError(t, store.Save(original))

	require.NoError(t, store.SetFrameLocalPath("sess-lp", "f002", "/cache/f002.jpg"))
	// same value again is a no-op
	require.NoError(t, store.SetFrameLocalPath("sess-lp", "f002", "/cache/f002.jpg"))

	err := store.SetFrameLocalPath("sess-lp", "f002", "/elsewhere/f002.jpg")
	assert.ErrorIs(t, err, domain.ErrLocalPathConflict)

	err = store.SetFrameLocalPath("sess-lp", "f404", "/cache/f404.jpg")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = store.SetFrameLocalPath("sess-lp", "f001", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	loaded, err := store.Load("sess-lp")
	require.NoError(t, err)
	assert.Equal(t, "/cache/f002.jpg", loaded.Frames[1].LocalPath)

	loaded.Frames[1].LocalPath = ""
	assert.Equal(t, original, loaded, "only the local path may change")
}

func TestFileResultStore_SetFrameLocalPath_Concurrent(t *testing.T) {
	store := newTestStore(t)
	session := sampleSession("sess-cc")
	session.Frames = nil
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("f%03d", i)
		session.Frames = append(session.Frames, domain.FrameRef{FrameID: id, RemoteLocator: id + ".png"})
	}
	require.NoError(t, store.Save(session))

	var wg sync.WaitGroup
	for _, f := range session.Frames {
		wg.Add(1)
		go func(frameID string) {
			defer wg.Done()
			assert.NoError(t, store.SetFrameLocalPath("sess-cc", frameID, "/cache/"+frameID+".png"))
		}(f.FrameID)
	}
	wg.Wait()

	loaded, err := store.Load("sess-cc")
	require.NoError(t, err)
	for _, f := range loaded.Frames {
		assert.Equal(t, "/cache/"+f.FrameID+".png", f.LocalPath, "no update may be lost")
	}

	entries, err := os.ReadDir(store.SessionDir("sess-cc"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"))
	}
}

func TestFileResultStore_SetFrameLocalPath_SeparateStores(t *testing.T) {
	// two stores on one root stand in for two CLI processes sharing the storage dir
	root := t.TempDir()
	first, err := NewFileResultStore(root)
	require.NoError(t, err)
	second, err := NewFileResultStore(root)
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		sessionID := fmt.Sprintf("sess-mp-%02d", i)
		require.NoError(t, first.Save(sampleSession(sessionID)))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, first.SetFrameLocalPath(sessionID, "f001", "sessions/"+sessionID+"/frames/f001.jpg"))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, second.SetFrameLocalPath(sessionID, "f002", "sessions/"+sessionID+"/frames/f002.jpg"))
		}()
		wg.Wait()

		loaded, err := first.Load(sessionID)
		require.NoError(t, err)
		assert.Equal(t, "sessions/"+sessionID+"/frames/f001.jpg", loaded.Frames[0].LocalPath, "iteration %d", i)
		assert.Equal(t, "sessions/"+sessionID+"/frames/f002.jpg", loaded.Frames[1].LocalPath, "iteration %d", i)
	}
}

func TestFileResultStore_SetFrameLocalPath_UnknownSessionCreatesNothing(t *testing.T) {
	store := newTestStore(t)

	err := store.SetFrameLocalPath("sess-none", "f001", "sessions/sess-none/frames/f001.png")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, statErr := os.Stat(store.SessionDir("sess-none"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileResultStore_ResolvePath(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, filepath.Join(store.RootDir(), "sessions", "s1", "frames", "f001.png"), store.ResolvePath("sessions/s1/frames/f001.png"))
	assert.Equal(t, "/legacy/f001.png", store.ResolvePath("/legacy/f001.png"))
	assert.Empty(t, store.ResolvePath(""))
}
