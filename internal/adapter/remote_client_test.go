package adapter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-video-session/internal/classifier"
	"jira-video-session/internal/domain"
	"jira-video-session/internal/port"
)

func writeTestVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake video payload"), 0644))
	return path
}

func submitReq(t *testing.T) port.SubmitRequest {
	return port.SubmitRequest{
		VideoPath: writeTestVideo(t),
		Options:   domain.SubmitOptions{MaxFrames: 5, SkipTranscription: true, Timeout: time.Minute},
	}
}

func TestRemoteClient_Submit_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/sessions", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get(apiKeyHeader))
		assert.NotEmpty(t, r.Header.Get(requestIDHeader))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "5", r.FormValue("max_frames"))
		assert.Equal(t, "true", r.FormValue("skip_transcription"))
		file, header, err := r.FormFile("video")
		require.NoError(t, err)
		defer file.Close()
		body, _ := io.ReadAll(file)
		assert.Equal(t, "clip.mp4", header.Filename)
		assert.Equal(t, "fake video payload", string(body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"status": "success",
			"session_id": "sess-http",
			"frames": [{"frame_id": "f001", "locator": "/v1/sessions/sess-http/frames/f001.png"}],
			"transcription": {"full_text": "hello", "segments": [{"start_ms": 0, "end_ms": 900, "text": "hello"}]}
		}`)
	}))
	defer server.Close()

	client := NewRemoteClient(server.URL, "secret")
	resp, err := client.Submit(context.Background(), submitReq(t))

	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, resp.Variant)
	assert.Equal(t, "sess-http", resp.SessionID)
	assert.Equal(t, server.URL, resp.APIURL)
	require.Len(t, resp.Frames, 1)
	assert.Equal(t, "/v1/sessions/sess-http/frames/f001.png", resp.Frames[0].RemoteLocator)
	require.NotNil(t, resp.Transcription)
	assert.Equal(t, int64(900), resp.Transcription.Segments[0].EndMs)
}

func TestRemoteClient_Submit_APIURLOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"success","session_id":"s1","frames":[]}`)
	}))
	defer server.Close()

	client := NewRemoteClient("http://127.0.0.1:1", "")
	req := submitReq(t)
	req.APIURL = server.URL + "/"

	resp, err := client.Submit(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, server.URL, resp.APIURL)
}

func TestDecodeSubmitResponse(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantVariant domain.SessionStatus
		wantSignal  classifier.Signal
		wantErr     bool
	}{
		{
			name:        "partial no audio",
			body:        `{"status":"partial_success","session_id":"s1","frames":[{"frame_id":"f1","locator":"a.png"}],"failure":{"stage":"transcription","reason":"no_audio_track","message":"silent"}}`,
			wantVariant: domain.StatusPartialSuccess,
			wantSignal:  classifier.SignalNoAudioTrack,
		},
		{
			name:        "partial no speech with empty transcript",
			body:        `{"status":"partial_success","session_id":"s1","frames":[],"transcription":{"full_text":"","segments":[]},"failure":{"stage":"transcription","reason":"no_speech","message":""}}`,
			wantVariant: domain.StatusPartialSuccess,
			wantSignal:  classifier.SignalNoSpeech,
		},
		{
			name:        "failed",
			body:        `{"status":"failed","failure":{"stage":"submission","reason":"unsupported_format","message":"codec"}}`,
			wantVariant: domain.StatusFailed,
			wantSignal:  classifier.SignalUnsupportedFormat,
		},
		{name: "unknown status", body: `{"status":"done","session_id":"s1","frames":[]}`, wantErr: true},
		{name: "unknown field", body: `{"status":"success","session_id":"s1","frames":[],"debug":true}`, wantErr: true},
		{name: "trailing data", body: `{"status":"success","session_id":"s1","frames":[]}{}`, wantErr: true},
		{name: "missing frames", body: `{"status":"success","session_id":"s1"}`, wantErr: true},
		{name: "missing session id", body: `{"status":"success","frames":[]}`, wantErr: true},
		{name: "success with failure", body: `{"status":"success","session_id":"s1","frames":[],"failure":{"stage":"transcription","reason":"x"}}`, wantErr: true},
		{name: "partial without failure", body: `{"status":"partial_success","session_id":"s1","frames":[]}`, wantErr: true},
		{name: "partial on submission stage", body: `{"status":"partial_success","session_id":"s1","frames":[],"failure":{"stage":"submission","reason":"x"}}`, wantErr: true},
		{name: "partial no audio with transcript", body: `{"status":"partial_success","session_id":"s1","frames":[],"transcription":{"full_text":"","segments":[]},"failure":{"stage":"transcription","reason":"no_audio_track"}}`, wantErr: true},
		{name: "failed with frames", body: `{"status":"failed","frames":[{"frame_id":"f1","locator":"a"}],"failure":{"stage":"submission","reason":"x"}}`, wantErr: true},
		{name: "frame without id", body: `{"status":"success","session_id":"s1","frames":[{"locator":"a.png"}]}`, wantErr: true},
		{name: "not json", body: `<html>bad gateway</html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := decodeSubmitResponse([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVariant, resp.Variant)
			require.NotNil(t, resp.Failure)
			assert.Equal(t, tt.wantSignal, resp.Failure.Signal)
		})
	}
}

func TestRemoteClient_Submit_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   classifier.Signal
	}{
		{http.StatusUnauthorized, `{"error":{"code":"auth","message":"bad key"}}`, classifier.SignalAuthRejected},
		{http.StatusForbidden, ``, classifier.SignalAuthRejected},
		{http.StatusGatewayTimeout, ``, classifier.SignalTimeout},
		{http.StatusTooManyRequests, ``, classifier.SignalServerError},
		{http.StatusBadGateway, `upstream down`, classifier.SignalServerError},
		{http.StatusUnsupportedMediaType, ``, classifier.SignalUnsupportedFormat},
		{http.StatusBadRequest, `{"error":{"code":"unsupported_format","message":"codec"}}`, classifier.SignalUnsupportedFormat},
		{http.StatusUnprocessableEntity, ``, classifier.SignalProcessingFailed},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.Copy(io.Discard, r.Body)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := NewRemoteClient(server.URL, "k").Submit(context.Background(), submitReq(t))

			var remoteErr *port.RemoteError
			require.ErrorAs(t, err, &remoteErr)
			assert.Equal(t, tt.want, remoteErr.Signal)
		})
	}
}

func TestRemoteClient_Submit_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"success"`)
	}))
	defer server.Close()

	_, err := NewRemoteClient(server.URL, "").Submit(context.Background(), submitReq(t))

	var remoteErr *port.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, classifier.SignalMalformedResponse, remoteErr.Signal)
}

func TestRemoteClient_Submit_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := NewRemoteClient(server.URL, "").Submit(ctx, submitReq(t))

	var remoteErr *port.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, classifier.SignalTimeout, remoteErr.Signal)
}

func TestRemoteClient_Submit_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewRemoteClient(url, "").Submit(context.Background(), submitReq(t))

	var remoteErr *port.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, classifier.SignalNetworkUnreachable, remoteErr.Signal)
}

func TestRemoteClient_Submit_MissingFile(t *testing.T) {
	req := submitReq(t)
	req.VideoPath = filepath.Join(t.TempDir(), "gone.mp4")

	_, err := NewRemoteClient("http://127.0.0.1:1", "").Submit(context.Background(), req)

	var inputErr *port.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, classifier.SignalFileNotFound, inputErr.Signal)
}

func TestRemoteClient_FetchFrame(t *testing.T) {
	var gotKey, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey, gotPath = r.Header.Get(apiKeyHeader), r.URL.Path
		switch r.URL.Path {
		case "/v1/sessions/s1/frames/f404":
			http.NotFound(w, r)
		case "/v1/sessions/s1/frames/empty.png":
			w.WriteHeader(http.StatusOK)
		default:
			w.Write([]byte("png-bytes"))
		}
	}))
	defer server.Close()
	client := NewRemoteClient(server.URL, "secret")

	t.Run("relative locator", func(t *testing.T) {
		data, err := client.FetchFrame(context.Background(), port.FetchRequest{
			SessionID: "s1",
			Frame:     domain.FrameRef{FrameID: "f001", RemoteLocator: "/v1/sessions/s1/frames/f001.png"},
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("png-bytes"), data)
		assert.Equal(t, "secret", gotKey)
	})

	t.Run("empty locator falls back to frame endpoint", func(t *testing.T) {
		_, err := client.FetchFrame(context.Background(), port.FetchRequest{SessionID: "s1", Frame: domain.FrameRef{FrameID: "f002"}})
		require.NoError(t, err)
		assert.Equal(t, "/v1/sessions/s1/frames/f002", gotPath)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := client.FetchFrame(context.Background(), port.FetchRequest{SessionID: "s1", Frame: domain.FrameRef{FrameID: "f404"}})
		var remoteErr *port.RemoteError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, classifier.SignalNotFound, remoteErr.Signal)
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := client.FetchFrame(context.Background(), port.FetchRequest{
			SessionID: "s1",
			Frame:     domain.FrameRef{FrameID: "e", RemoteLocator: "/v1/sessions/s1/frames/empty.png"},
		})
		var remoteErr *port.RemoteError
		require.ErrorAs(t, err, &remoteErr)
		assert.Equal(t, classifier.SignalServerError, remoteErr.Signal)
	})
}

func TestResolveLocator(t *testing.T) {
	base := "https://api.example.com"

	got, same, err := resolveLocator(base, "s1", domain.FrameRef{FrameID: "f1", RemoteLocator: "frames/f1.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/frames/f1.png", got)
	assert.True(t, same)

	got, same, err = resolveLocator(base, "s1", domain.FrameRef{FrameID: "f1", RemoteLocator: "https://cdn.example.net/f1.png?sig=1"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.net/f1.png?sig=1", got)
	assert.False(t, same, "credentials must not leak to a foreign host")

	got, same, err = resolveLocator(base, "s1", domain.FrameRef{FrameID: "f1", RemoteLocator: "https://API.example.com/frames/f1.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://API.example.com/frames/f1.png", got)
	assert.True(t, same)

	got, same, err = resolveLocator(base, "s1", domain.FrameRef{FrameID: "f1", RemoteLocator: "http://api.example.com/frames/f1.png"})
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com/frames/f1.png", got)
	assert.False(t, same, "credentials must not be sent over a downgraded scheme")

	_, _, err = resolveLocator(base, "s1", domain.FrameRef{FrameID: "f1", RemoteLocator: "file:///etc/passwd"})
	assert.Error(t, err)
}
