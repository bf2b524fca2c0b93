package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"jira-video-session/internal/domain"
	"jira-video-session/internal/port"
)

// RemoteService is a mock implementation of port.RemoteService
type RemoteService struct {
	SubmitFunc     func(ctx context.Context, req port.SubmitRequest) (*port.SubmitResponse, error)
	FetchFrameFunc func(ctx context.Context, req port.FetchRequest) ([]byte, error)

	submitCalls atomic.Int32
	fetchCalls  atomic.Int32
}

func (m *RemoteService) Submit(ctx context.Context, req port.SubmitRequest) (*port.SubmitResponse, error) {
	m.submitCalls.Add(1)
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, req)
	}
	return nil, nil
}

func (m *RemoteService) FetchFrame(ctx context.Context, req port.FetchRequest) ([]byte, error) {
	m.fetchCalls.Add(1)
	if m.FetchFrameFunc != nil {
		return m.FetchFrameFunc(ctx, req)
	}
	return nil, nil
}

// SubmitCalls returns how many times Submit was called
func (m *RemoteService) SubmitCalls() int { return int(m.submitCalls.Load()) }

// FetchCalls returns how many times FetchFrame was called
func (m *RemoteService) FetchCalls() int { return int(m.fetchCalls.Load()) }

// VideoInspector is a mock implementation of port.VideoInspector
type VideoInspector struct {
	InspectFunc func(videoPath string) (*port.VideoInfo, error)
}

func (m *VideoInspector) Inspect(videoPath string) (*port.VideoInfo, error) {
	if m.InspectFunc != nil {
		return m.InspectFunc(videoPath)
	}
	return &port.VideoInfo{Path: videoPath, MimeType: "video/mp4", Extension: ".mp4"}, nil
}

// SessionIndex is an in-memory implementation of port.SessionIndex
type SessionIndex struct {
	RecordSessionErr error

	mu               sync.Mutex
	Sessions         []*domain.SessionSummary
	Materializations []*domain.FrameMaterialization
}

func (m *SessionIndex) RecordSession(summary *domain.SessionSummary) error {
	if m.RecordSessionErr != nil {
		return m.RecordSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sessions = append(m.Sessions, summary)
	return nil
}

func (m *SessionIndex) RecordMaterialization(fm *domain.FrameMaterialization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Materializations = append(m.Materializations, fm)
	return nil
}

func (m *SessionIndex) GetSession(sessionID string) (*domain.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Sessions {
		if s.SessionID == sessionID {
			return s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *SessionIndex) ListSessions() ([]*domain.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.SessionSummary(nil), m.Sessions...), nil
}

func (m *SessionIndex) ListMaterializations(sessionID string) ([]*domain.FrameMaterialization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.FrameMaterialization
	for _, fm := range m.Materializations {
		if fm.SessionID == sessionID {
			result = append(result, fm)
		}
	}
	return result, nil
}

// FrameGetter is a mock implementation of port.FrameGetter
type FrameGetter struct {
	GetFunc func(ctx context.Context, sessionID, frameID string) ([]byte, error)
}

func (m *FrameGetter) Get(ctx context.Context, sessionID, frameID string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, sessionID, frameID)
	}
	return nil, nil
}

// ManifestPublisher is a mock implementation of port.ManifestPublisher
type ManifestPublisher struct {
	PublishFunc func(ctx context.Context, manifest *domain.Manifest) (string, error)
	Published   []*domain.Manifest
}

func (m *ManifestPublisher) Publish(ctx context.Context, manifest *domain.Manifest) (string, error) {
	m.Published = append(m.Published, manifest)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, manifest)
	}
	return "s3://mock/" + manifest.SessionID, nil
}
