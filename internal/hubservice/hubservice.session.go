package hubservice

import (
	"context"
	"fmt"

	"github.com/itsatony/recorderhub/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// CreateSession creates a recording session and claims the requested devices
func (s *HubService) CreateSession(ctx context.Context, req *models.CreateSessionRequest) (*models.RecordingSession, error) {
	session, err := s.Sessions.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.Metrics.SessionCreated(session)
	s.Metrics.RecordEvent("session.created", map[string]string{
		"session_id": fmt.Sprint(session.ID),
		"devices":    fmt.Sprint(len(session.DeviceStatuses)),
	})
	return session, nil
}

// CancelSession cancels a session and optionally archives it in the same step
func (s *HubService) CancelSession(ctx context.Context, sessionID int64, archive bool) (*models.RecordingSession, error) {
	session, err := s.Sessions.Cancel(ctx, sessionID, archive)
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordEvent("session.canceled", map[string]string{"session_id": fmt.Sprint(sessionID)})
	return session, nil
}

// ArchiveSession hides a session from the active listing without touching its status
func (s *HubService) ArchiveSession(ctx context.Context, sessionID int64) (*models.RecordingSession, error) {
	if err := s.Sessions.Archive(ctx, sessionID); err != nil {
		return nil, err
	}
	s.Metrics.RecordEvent("session.archived", map[string]string{"session_id": fmt.Sprint(sessionID)})
	return s.Sessions.Get(ctx, sessionID)
}

func (s *HubService) GetSession(ctx context.Context, sessionID int64) (*models.RecordingSession, error) {
	return s.Sessions.Get(ctx, sessionID)
}

func (s *HubService) ListSessions(ctx context.Context, filters models.SessionFilters) ([]*models.RecordingSession, error) {
	return s.Sessions.List(ctx, filters)
}

func (s *HubService) GetDeviceStatus(ctx context.Context, sessionID, deviceID int64) (*models.DeviceSessionStatus, error) {
	return s.Sessions.DeviceStatus(ctx, sessionID, deviceID)
}

// RemoveDevice cancels one device's participation. The device is freed by its
// next heartbeat.
func (s *HubService) RemoveDevice(ctx context.Context, sessionID, deviceID int64) (*models.DeviceSessionStatus, error) {
	status, err := s.Sessions.RemoveDevice(ctx, sessionID, deviceID)
	if err != nil {
		return nil, err
	}
	nuts.L.Infof("[HubService] Removed device %d from session %d (%s)", deviceID, sessionID, status.Status)
	return status, nil
}

// CompleteSessions flips finished sessions to COMPLETE
func (s *HubService) CompleteSessions(ctx context.Context) ([]int64, error) {
	ids, err := s.Sessions.CheckForComplete(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		s.Metrics.RecordEvent("sessions.completed", map[string]string{"count": fmt.Sprint(len(ids))})
	}
	return ids, nil
}
