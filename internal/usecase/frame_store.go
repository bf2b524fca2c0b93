package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"jira-video-session/internal/classifier"
	"jira-video-session/internal/domain"
	"jira-video-session/internal/logger"
	"jira-video-session/internal/metrics"
	"jira-video-session/internal/port"
)

// FrameStore returns frame bytes for persisted sessions, fetching each frame
// from the remote service at most once and caching it locally.
type FrameStore struct {
	store        port.ResultStore
	cache        port.FrameCache
	remote       port.RemoteService
	index        port.SessionIndex
	fetchTimeout time.Duration
	now          func() time.Time

	group singleflight.Group
}

// NewFrameStore creates a new FrameStore. index may be nil.
func NewFrameStore(store port.ResultStore, cache port.FrameCache, remote port.RemoteService, index port.SessionIndex) *FrameStore {
	return &FrameStore{
		store:  store,
		cache:  cache,
		remote: remote,
		index:  index,
		now:    time.Now,
	}
}

// WithFetchTimeout bounds each remote frame download. The download is shared by
// every concurrent caller of the same frame and is not cancelled when one of them gives up.
func (fs *FrameStore) WithFetchTimeout(d time.Duration) *FrameStore {
	fs.fetchTimeout = d
	return fs
}

// Get returns the bytes of one frame of a persisted session.
// An unknown session or frame yields domain.ErrNotFound without touching the network.
func (fs *FrameStore) Get(ctx context.Context, sessionID, frameID string) ([]byte, error) {
	defer logger.DebugFunc("FrameStore.Get")()

	session, err := fs.store.Load(sessionID)
	if err != nil {
		return nil, err
	}
	idx := session.FindFrame(frameID)
	if idx < 0 {
		return nil, fmt.Errorf("frame %s in session %s: %w", frameID, sessionID, domain.ErrNotFound)
	}
	frame := session.Frames[idx]

	if frame.LocalPath != "" {
		data, err := fs.cache.Read(frame.LocalPath)
		if err == nil {
			metrics.FrameCacheTotal.WithLabelValues("hit").Inc()
			logger.Debug("Get: cache hit session=%s, frame=%s", sessionID, frameID)
			return data, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		// recorded file removed from disk; re-materialize at the same canonical path
		logger.Warn("cached frame missing, refetching", "session_id", sessionID, "frame_id", frameID, "path", frame.LocalPath)
	}

	// The shared materialization must outlive any single caller; each caller waits on its own ctx
	ch := fs.group.DoChan(sessionID+"/"+frameID, func() (interface{}, error) {
		return fs.materialize(context.WithoutCancel(ctx), session, frame)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for frame %s: %w", frameID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		logger.Debug("Get: materialized session=%s, frame=%s, shared=%v", sessionID, frameID, res.Shared)
		return res.Val.([]byte), nil
	}
}

func (fs *FrameStore) materialize(ctx context.Context, session *domain.Session, frame domain.FrameRef) ([]byte, error) {
	sessionID := session.SessionID

	canonical, err := fs.cache.Path(sessionID, frame)
	if err != nil {
		return nil, err
	}

	// Another process may have written the file but lost the record update
	if data, err := fs.cache.Read(canonical); err == nil {
		if err := fs.commit(sessionID, frame.FrameID, canonical, len(data)); err != nil {
			return nil, err
		}
		metrics.FrameCacheTotal.WithLabelValues("adopted").Inc()
		return data, nil
	}

	fetchCtx := ctx
	if fs.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, fs.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	data, err := fs.remote.FetchFrame(fetchCtx, port.FetchRequest{
		APIURL:    session.APIURL,
		SessionID: sessionID,
		Frame:     frame,
	})
	metrics.RemoteCallDuration.WithLabelValues("fetch_frame").Observe(time.Since(start).Seconds())
	if err != nil {
		report, _ := classifier.Report(domain.StageFrameFetch, signalOf(fetchCtx, err), err.Error())
		metrics.FrameCacheTotal.WithLabelValues("failed").Inc()
		logger.Warn("frame fetch failed", "session_id", sessionID, "frame_id", frame.FrameID, "kind", report.Kind, "error", err)
		return nil, &domain.FrameFetchError{
			SessionID: sessionID,
			FrameID:   frame.FrameID,
			Report:    report,
			Err:       err,
		}
	}
	metrics.FrameBytesTotal.Add(float64(len(data)))

	written, err := fs.cache.Write(sessionID, frame, data)
	if err != nil {
		return nil, fmt.Errorf("failed to cache frame %s: %w", frame.FrameID, err)
	}
	if err := fs.commit(sessionID, frame.FrameID, written, len(data)); err != nil {
		return nil, err
	}

	metrics.FrameCacheTotal.WithLabelValues("fetched").Inc()
	logger.Info("frame materialized", "session_id", sessionID, "frame_id", frame.FrameID, "bytes", len(data))
	return data, nil
}

// commit records localPath on the session and in the index
func (fs *FrameStore) commit(sessionID, frameID, localPath string, size int) error {
	if err := fs.store.SetFrameLocalPath(sessionID, frameID, localPath); err != nil {
		return fmt.Errorf("failed to record frame %s: %w", frameID, err)
	}
	if fs.index == nil {
		return nil
	}
	err := fs.index.RecordMaterialization(&domain.FrameMaterialization{
		SessionID:      sessionID,
		FrameID:        frameID,
		LocalPath:      localPath,
		SizeBytes:      int64(size),
		MaterializedAt: fs.now().UTC(),
	})
	if err != nil {
		logger.Warn("materialization index update failed", "session_id", sessionID, "frame_id", frameID, "error", err)
	}
	return nil
}
