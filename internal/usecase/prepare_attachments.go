package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"jira-video-session/internal/domain"
	"jira-video-session/internal/logger"
	"jira-video-session/internal/metrics"
	"jira-video-session/internal/port"
)

const defaultPrepareConcurrency = 4

// PrepareAttachmentsUseCase materializes selected frames of a session and
// lists the local files ready for attachment to a ticket.
type PrepareAttachmentsUseCase struct {
	store       port.ResultStore
	frames      port.FrameGetter
	concurrency int
}

// NewPrepareAttachmentsUseCase creates a new PrepareAttachmentsUseCase
func NewPrepareAttachmentsUseCase(store port.ResultStore, frames port.FrameGetter) *PrepareAttachmentsUseCase {
	return &PrepareAttachmentsUseCase{
		store:       store,
		frames:      frames,
		concurrency: defaultPrepareConcurrency,
	}
}

// WithConcurrency limits how many frames are materialized at once
func (uc *PrepareAttachmentsUseCase) WithConcurrency(n int) *PrepareAttachmentsUseCase {
	if n > 0 {
		uc.concurrency = n
	}
	return uc
}

// Execute returns the manifest for the selected frames. When some frames fail the
// manifest still lists every frame that succeeded, and the error is a
// *domain.PartialMaterializationError naming the rest.
func (uc *PrepareAttachmentsUseCase) Execute(ctx context.Context, sessionID string, sel domain.FrameSelection) (*domain.Manifest, error) {
	defer logger.DebugFunc("PrepareAttachments.Execute")()

	session, err := uc.store.Load(sessionID)
	if err != nil {
		return nil, err
	}
	ids, err := sel.Resolve(session)
	if err != nil {
		return nil, err
	}
	logger.Debug("Execute: sessionID=%s, frames=%d", sessionID, len(ids))

	// 프레임별 결과는 선택 순서대로 보관
	results := make([]error, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			_, results[i] = uc.frames.Get(gctx, sessionID, id)
			return nil
		})
	}
	_ = g.Wait()

	// Reload so entries carry the paths actually recorded
	current, err := uc.store.Load(sessionID)
	if err != nil {
		return nil, err
	}

	manifest := &domain.Manifest{
		SessionID:       current.SessionID,
		VideoSourcePath: current.VideoSourcePath,
		Status:          current.Status,
		Entries:         make([]domain.ManifestEntry, 0, len(ids)),
		Transcription:   current.Transcription,
	}
	for i, id := range ids {
		if results[i] != nil {
			manifest.Failures = append(manifest.Failures, domain.FrameFailure{FrameID: id, Reason: results[i].Error()})
			continue
		}
		localPath := current.Frames[current.FindFrame(id)].LocalPath
		if localPath == "" {
			manifest.Failures = append(manifest.Failures, domain.FrameFailure{FrameID: id, Reason: "local path not recorded"})
			continue
		}
		// 매니페스트에는 바로 첨부할 수 있도록 절대 경로를 기록
		manifest.Entries = append(manifest.Entries, domain.ManifestEntry{FrameID: id, LocalPath: uc.store.ResolvePath(localPath)})
	}

	if len(manifest.Failures) > 0 {
		metrics.ManifestsPreparedTotal.WithLabelValues("partial").Inc()
		logger.Warn("manifest incomplete",
			"session_id", sessionID,
			"entries", len(manifest.Entries),
			"failed", len(manifest.Failures),
		)
		return manifest, &domain.PartialMaterializationError{SessionID: sessionID, Failed: manifest.Failures}
	}

	metrics.ManifestsPreparedTotal.WithLabelValues("complete").Inc()
	logger.Info("manifest prepared", "session_id", sessionID, "entries", len(manifest.Entries))
	return manifest, nil
}

// ExportManifest writes the manifest with writer and optionally publishes it.
// The returned location is empty when publisher is nil.
func ExportManifest(ctx context.Context, manifest *domain.Manifest, writer port.ManifestWriter, dir string, publisher port.ManifestPublisher) ([]string, string, error) {
	files, err := writer.Write(manifest, dir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write manifest: %w", err)
	}
	if publisher == nil {
		return files, "", nil
	}
	location, err := publisher.Publish(ctx, manifest)
	if err != nil {
		return files, "", fmt.Errorf("failed to publish manifest: %w", err)
	}
	logger.Info("manifest published", "session_id", manifest.SessionID, "location", location)
	return files, location, nil
}
