package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"jira-video-session/internal/classifier"
	"jira-video-session/internal/domain"
	"jira-video-session/internal/logger"
	"jira-video-session/internal/port"
)

const (
	apiKeyHeader    = "X-API-Key"
	requestIDHeader = "X-Request-ID"

	maxResponseBytes = 32 << 20
	maxFrameBytes    = 64 << 20
)

// RemoteClient implements port.RemoteService over HTTP
type RemoteClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewRemoteClient creates a new remote service client. Calls are bounded by the
// caller's context rather than a client-wide timeout.
func NewRemoteClient(baseURL, apiKey string) *RemoteClient {
	return &RemoteClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (c *RemoteClient) WithHTTPClient(hc *http.Client) *RemoteClient {
	c.httpClient = hc
	return c
}

// submitEnvelope is the wire shape of a submission reply
type submitEnvelope struct {
	Status        string             `json:"status"`
	SessionID     string             `json:"session_id"`
	Frames        []wireFrame        `json:"frames"`
	Transcription *wireTranscription `json:"transcription"`
	Failure       *wireFailure       `json:"failure"`
}

type wireFrame struct {
	FrameID string `json:"frame_id"`
	Locator string `json:"locator"`
}

type wireTranscription struct {
	FullText string        `json:"full_text"`
	Segments []wireSegment `json:"segments"`
}

type wireSegment struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

type wireFailure struct {
	Stage   string `json:"stage"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit uploads the video as multipart form data and decodes the tagged reply
func (c *RemoteClient) Submit(ctx context.Context, req port.SubmitRequest) (*port.SubmitResponse, error) {
	defer logger.DebugFunc("RemoteClient.Submit")()

	base, err := c.resolveBase(req.APIURL)
	if err != nil {
		return nil, &port.RemoteError{Signal: classifier.SignalInvalidOptions, Message: "invalid api url", Err: err}
	}
	endpoint := base + "/v1/sessions"

	file, err := os.Open(req.VideoPath)
	if err != nil {
		return nil, &port.InputError{Signal: classifier.SignalFileNotFound, Message: fmt.Sprintf("failed to open video: %s", req.VideoPath), Err: err}
	}
	defer file.Close()

	body, contentType := streamMultipart(file, req)
	defer body.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, &port.RemoteError{Signal: classifier.SignalInvalidOptions, Message: "failed to create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	requestID := c.setHeaders(httpReq, true)
	logger.Debug("Submit: POST %s, requestID=%s, video=%s", endpoint, requestID, req.VideoPath)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, "submit", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(ctx, "read submit response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, data)
	}

	decoded, err := decodeSubmitResponse(data)
	if err != nil {
		logger.Debug("Submit: malformed response: %v", err)
		return nil, &port.RemoteError{Signal: classifier.SignalMalformedResponse, Message: "malformed submit response", Err: err}
	}
	decoded.APIURL = base
	return decoded, nil
}

// FetchFrame downloads the bytes of one frame
func (c *RemoteClient) FetchFrame(ctx context.Context, req port.FetchRequest) ([]byte, error) {
	base, err := c.resolveBase(req.APIURL)
	if err != nil {
		return nil, &port.RemoteError{Signal: classifier.SignalInvalidOptions, Message: "invalid api url", Err: err}
	}
	target, sameOrigin, err := resolveLocator(base, req.SessionID, req.Frame)
	if err != nil {
		return nil, &port.RemoteError{Signal: classifier.SignalNotFound, Message: "invalid frame locator", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &port.RemoteError{Signal: classifier.SignalNotFound, Message: "failed to create request", Err: err}
	}
	requestID := c.setHeaders(httpReq, sameOrigin)
	logger.Debug("FetchFrame: GET %s, requestID=%s", target, requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, "fetch frame", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound {
			return nil, &port.RemoteError{Signal: classifier.SignalNotFound, Message: fmt.Sprintf("frame %s not found on remote", req.Frame.FrameID)}
		}
		return nil, statusError(resp.StatusCode, body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes+1))
	if err != nil {
		return nil, transportError(ctx, "read frame", err)
	}
	if len(data) > maxFrameBytes {
		return nil, &port.RemoteError{Signal: classifier.SignalServerError, Message: "frame exceeds size limit"}
	}
	if len(data) == 0 {
		return nil, &port.RemoteError{Signal: classifier.SignalServerError, Message: "empty frame body"}
	}
	return data, nil
}

func (c *RemoteClient) resolveBase(override string) (string, error) {
	base := c.baseURL
	if override != "" {
		base = strings.TrimSuffix(override, "/")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("api url must be absolute http(s): %q", base)
	}
	return base, nil
}

// setHeaders attaches the request id and, for the service's own origin, the credential
func (c *RemoteClient) setHeaders(req *http.Request, withKey bool) string {
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	if withKey && c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	return requestID
}

// streamMultipart pipes the video into a multipart body without buffering it in memory
func streamMultipart(file *os.File, req port.SubmitRequest) (*io.PipeReader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(mw, file, req)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}

func writeMultipart(mw *multipart.Writer, file *os.File, req port.SubmitRequest) error {
	if req.Options.MaxFrames > 0 {
		if err := mw.WriteField("max_frames", strconv.Itoa(req.Options.MaxFrames)); err != nil {
			return err
		}
	}
	if err := mw.WriteField("skip_transcription", strconv.FormatBool(req.Options.SkipTranscription)); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("video", filepath.Base(req.VideoPath))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

// resolveLocator turns a frame locator into a URL. Relative locators resolve against
// the API base; absolute ones on a foreign host do not receive the credential.
func resolveLocator(base, sessionID string, frame domain.FrameRef) (string, bool, error) {
	if frame.RemoteLocator == "" {
		return fmt.Sprintf("%s/v1/sessions/%s/frames/%s", base, url.PathEscape(sessionID), url.PathEscape(frame.FrameID)), true, nil
	}

	loc, err := url.Parse(frame.RemoteLocator)
	if err != nil {
		return "", false, err
	}
	if loc.IsAbs() {
		if loc.Scheme != "http" && loc.Scheme != "https" {
			return "", false, fmt.Errorf("unsupported locator scheme %q", loc.Scheme)
		}
		baseURL, _ := url.Parse(base)
		return loc.String(), sameOrigin(baseURL, loc), nil
	}
	return base + "/" + strings.TrimPrefix(frame.RemoteLocator, "/"), true, nil
}

// sameOrigin reports whether u shares scheme and host with base
func sameOrigin(base, u *url.URL) bool {
	if base == nil || u == nil {
		return false
	}
	return strings.EqualFold(base.Scheme, u.Scheme) && strings.EqualFold(base.Host, u.Host)
}

func transportError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &port.RemoteError{Signal: classifier.SignalTimeout, Message: op + " timed out", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &port.RemoteError{Signal: classifier.SignalTimeout, Message: op + " timed out", Err: err}
	}
	return &port.RemoteError{Signal: classifier.SignalNetworkUnreachable, Message: op + " failed", Err: err}
}

func statusError(status int, body []byte) error {
	message := fmt.Sprintf("API error (status %d)", status)
	var envelope errorEnvelope
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		message = fmt.Sprintf("%s: %s", message, envelope.Error.Message)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &port.RemoteError{Signal: classifier.SignalAuthRejected, Message: message}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &port.RemoteError{Signal: classifier.SignalTimeout, Message: message}
	case status == http.StatusTooManyRequests || status >= 500:
		return &port.RemoteError{Signal: classifier.SignalServerError, Message: message}
	case envelope.Error.Code == string(classifier.SignalUnsupportedFormat) || status == http.StatusUnsupportedMediaType:
		return &port.RemoteError{Signal: classifier.SignalUnsupportedFormat, Message: message}
	default:
		return &port.RemoteError{Signal: classifier.SignalProcessingFailed, Message: message}
	}
}

// decodeSubmitResponse strictly decodes one of the three reply variants
func decodeSubmitResponse(data []byte) (*port.SubmitResponse, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env submitEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("trailing data after response")
	}

	switch domain.SessionStatus(env.Status) {
	case domain.StatusSuccess:
		if env.Failure != nil {
			return nil, fmt.Errorf("success reply carries a failure marker")
		}
		return buildResponse(env, domain.StatusSuccess, nil)

	case domain.StatusPartialSuccess:
		if env.Failure == nil {
			return nil, fmt.Errorf("partial_success reply without failure marker")
		}
		if domain.Stage(env.Failure.Stage) != domain.StageTranscription {
			return nil, fmt.Errorf("partial_success reply with non-transcription stage %q", env.Failure.Stage)
		}
		failure := toRemoteFailure(env.Failure)
		if env.Transcription != nil && (failure.Signal != classifier.SignalNoSpeech || len(env.Transcription.Segments) > 0) {
			return nil, fmt.Errorf("partial_success reply carries a transcription for %q", env.Failure.Reason)
		}
		return buildResponse(env, domain.StatusPartialSuccess, failure)

	case domain.StatusFailed:
		if env.Failure == nil {
			return nil, fmt.Errorf("failed reply without failure marker")
		}
		if len(env.Frames) > 0 || env.Transcription != nil {
			return nil, fmt.Errorf("failed reply carries artifacts")
		}
		return &port.SubmitResponse{
			Variant:   domain.StatusFailed,
			SessionID: env.SessionID,
			Failure:   toRemoteFailure(env.Failure),
		}, nil

	default:
		return nil, fmt.Errorf("unknown reply status %q", env.Status)
	}
}

func buildResponse(env submitEnvelope, variant domain.SessionStatus, failure *port.RemoteFailure) (*port.SubmitResponse, error) {
	if env.SessionID == "" {
		return nil, fmt.Errorf("reply without session_id")
	}
	if env.Frames == nil {
		return nil, fmt.Errorf("reply without frames")
	}

	frames := make([]domain.FrameRef, 0, len(env.Frames))
	for i, f := range env.Frames {
		if f.FrameID == "" {
			return nil, fmt.Errorf("frame %d without frame_id", i)
		}
		frames = append(frames, domain.FrameRef{FrameID: f.FrameID, RemoteLocator: f.Locator})
	}

	var transcript *domain.Transcript
	if env.Transcription != nil {
		if env.Transcription.Segments == nil {
			return nil, fmt.Errorf("transcription without segments")
		}
		transcript = &domain.Transcript{
			FullText: env.Transcription.FullText,
			Segments: make([]domain.Segment, 0, len(env.Transcription.Segments)),
		}
		for _, seg := range env.Transcription.Segments {
			transcript.Segments = append(transcript.Segments, domain.Segment{StartMs: seg.StartMs, EndMs: seg.EndMs, Text: seg.Text})
		}
	}

	return &port.SubmitResponse{
		Variant:       variant,
		SessionID:     env.SessionID,
		Frames:        frames,
		Transcription: transcript,
		Failure:       failure,
	}, nil
}

func toRemoteFailure(f *wireFailure) *port.RemoteFailure {
	stage := domain.Stage(f.Stage)
	if stage == "" {
		stage = domain.StageSubmission
	}
	return &port.RemoteFailure{
		Stage:   stage,
		Signal:  classifier.Signal(f.Reason),
		Message: f.Message,
	}
}
