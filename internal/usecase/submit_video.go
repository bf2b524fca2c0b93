package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"jira-video-session/internal/classifier"
	"jira-video-session/internal/domain"
	"jira-video-session/internal/logger"
	"jira-video-session/internal/metrics"
	"jira-video-session/internal/port"
)

// ProgressCallback is called to report progress
type ProgressCallback func(progress float64, status string)

// SubmitVideoUseCase submits a video to the remote service and persists the resulting session
type SubmitVideoUseCase struct {
	remote    port.RemoteService
	inspector port.VideoInspector
	store     port.ResultStore
	index     port.SessionIndex
	now       func() time.Time
}

// NewSubmitVideoUseCase creates a new SubmitVideoUseCase. index may be nil.
func NewSubmitVideoUseCase(
	remote port.RemoteService,
	inspector port.VideoInspector,
	store port.ResultStore,
	index port.SessionIndex,
) *SubmitVideoUseCase {
	return &SubmitVideoUseCase{
		remote:    remote,
		inspector: inspector,
		store:     store,
		index:     index,
		now:       time.Now,
	}
}

// Execute runs one bounded submission. Fatal outcomes return a failed, unpersisted
// session together with a *domain.SubmitError; degraded transcription outcomes are
// persisted as partial_success and return no error.
func (uc *SubmitVideoUseCase) Execute(
	ctx context.Context,
	videoPath, apiURL string,
	opts domain.SubmitOptions,
	onProgress ProgressCallback,
) (*domain.Session, error) {
	if onProgress == nil {
		onProgress = func(float64, string) {}
	}

	// Step 1: Validate input
	onProgress(0.1, "validating input")
	if err := opts.Validate(); err != nil {
		return uc.fail(videoPath, opts, classifier.SignalInvalidOptions, err.Error(), err)
	}
	if absPath, err := filepath.Abs(videoPath); err == nil {
		videoPath = absPath
	}
	info, err := uc.inspector.Inspect(videoPath)
	if err != nil {
		return uc.fail(videoPath, opts, signalOf(ctx, err), err.Error(), err)
	}
	logger.Debug("Execute: video=%s, type=%s, size=%d", info.Path, info.MimeType, info.Size)

	// Step 2: One bounded remote call
	onProgress(0.3, "submitting video")
	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := uc.remote.Submit(callCtx, port.SubmitRequest{VideoPath: videoPath, APIURL: apiURL, Options: opts})
	metrics.RemoteCallDuration.WithLabelValues("submit").Observe(time.Since(start).Seconds())
	if err != nil {
		return uc.fail(videoPath, opts, signalOf(callCtx, err), err.Error(), err)
	}

	// Step 3: Build the session from the tagged reply
	onProgress(0.7, "building session")
	if resp != nil && resp.Variant == domain.StatusFailed {
		signal, message := classifier.SignalProcessingFailed, "remote processing failed"
		if resp.Failure != nil {
			signal, message = resp.Failure.Signal, resp.Failure.Message
		}
		return uc.fail(videoPath, opts, signal, message, nil)
	}
	session, err := uc.buildSession(videoPath, opts, resp)
	if err != nil {
		return uc.fail(videoPath, opts, classifier.SignalMalformedResponse, err.Error(), err)
	}

	// Step 4: Persist before returning
	onProgress(0.9, "saving session")
	if err := uc.store.Save(session); err != nil {
		return session, fmt.Errorf("failed to persist session %s: %w", session.SessionID, err)
	}
	uc.recordIndex(session)

	metrics.SubmissionsTotal.WithLabelValues(string(session.Status)).Inc()
	for _, report := range session.Errors {
		metrics.SubmissionErrorsTotal.WithLabelValues(string(report.Stage), report.Kind).Inc()
		logger.Info("session degraded", "session_id", session.SessionID, "stage", report.Stage, "kind", report.Kind)
	}
	logger.Info("session persisted",
		"session_id", session.SessionID,
		"status", session.Status,
		"frames", len(session.Frames),
		"transcript", session.HasTranscription(),
	)

	onProgress(1.0, fmt.Sprintf("done: session %s (%s)", session.SessionID, session.Status))
	return session, nil
}

func (uc *SubmitVideoUseCase) buildSession(videoPath string, opts domain.SubmitOptions, resp *port.SubmitResponse) (*domain.Session, error) {
	if resp == nil {
		return nil, errors.New("empty reply")
	}

	session := &domain.Session{
		SessionID:       resp.SessionID,
		VideoSourcePath: videoPath,
		APIURL:          resp.APIURL,
		CreatedAt:       uc.now().UTC(),
		Status:          resp.Variant,
		Options:         opts,
		Frames:          resp.Frames,
		Transcription:   resp.Transcription,
	}
	if session.Frames == nil {
		session.Frames = []domain.FrameRef{}
	}

	if resp.Variant == domain.StatusPartialSuccess {
		if resp.Failure == nil {
			return nil, errors.New("partial reply without failure marker")
		}
		report, c := classifier.Report(domain.StageTranscription, resp.Failure.Signal, resp.Failure.Message)
		if c.Continuation != domain.ContinueDegraded {
			return nil, fmt.Errorf("unexpected continuation %s for degraded reply", c.Continuation)
		}
		session.Errors = []domain.ErrorReport{report}

		if report.Kind == classifier.KindNoSpeechDetected {
			// "no speech" keeps an explicit empty transcript, unlike a missing one
			if session.Transcription == nil {
				session.Transcription = &domain.Transcript{}
			}
			session.Transcription.Segments = []domain.Segment{}
		} else {
			session.Transcription = nil
		}
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}
	return session, nil
}

func (uc *SubmitVideoUseCase) recordIndex(session *domain.Session) {
	if uc.index == nil {
		return
	}
	summary := domain.SummarizeSession(session, uc.store.RecordPath(session.SessionID))
	if err := uc.index.RecordSession(summary); err != nil {
		logger.Warn("session index update failed", "session_id", session.SessionID, "error", err)
	}
}

func (uc *SubmitVideoUseCase) fail(videoPath string, opts domain.SubmitOptions, signal classifier.Signal, message string, cause error) (*domain.Session, error) {
	report, c := classifier.Report(domain.StageSubmission, signal, message)
	metrics.SubmissionsTotal.WithLabelValues(string(domain.StatusFailed)).Inc()
	metrics.SubmissionErrorsTotal.WithLabelValues(string(report.Stage), report.Kind).Inc()
	logger.Warn("submission failed",
		"video", videoPath,
		"kind", report.Kind,
		"continuation", c.Continuation,
		"error", cause,
	)
	return domain.FailedSession(videoPath, opts, report), &domain.SubmitError{
		Report:       report,
		Continuation: c.Continuation,
		Err:          cause,
	}
}

// signalOf extracts the raw failure signal carried by err
func signalOf(ctx context.Context, err error) classifier.Signal {
	var remoteErr *port.RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Signal
	}
	var inputErr *port.InputError
	if errors.As(err, &inputErr) {
		return inputErr.Signal
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return classifier.SignalInvalidOptions
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return classifier.SignalTimeout
	}
	return classifier.SignalNetworkUnreachable
}
