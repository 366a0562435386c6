// Package sessions owns the recording session lifecycle: creation with device
// locking, cancellation, archival and completion detection.
package sessions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/models"
	"github.com/itsatony/recorderhub/internal/repository"
	"github.com/jonboulle/clockwork"
	nuts "github.com/vaudience/go-nuts"
)

const defaultListLimit = 20

// DeviceLocker is the part of the device registry used while assigning devices
type DeviceLocker interface {
	LockForAssignment(ctx context.Context, tx database.Transaction, ids []int64) (map[int64]*models.Device, []int64, error)
	AssignSession(ctx context.Context, tx database.Transaction, device *models.Device, sessionID int64) error
}

// StatusRemover is the part of the status tracker used on cancellation
type StatusRemover interface {
	Get(ctx context.Context, tx database.Transaction, deviceID, sessionID int64) (*models.DeviceSessionStatus, error)
	RemoveFromSession(ctx context.Context, tx database.Transaction, status *models.DeviceSessionStatus) error
}

type Store struct {
	runner   database.TxRunner
	sessions repository.SessionRepository
	statuses repository.StatusRepository
	devices  DeviceLocker
	tracker  StatusRemover
	clock    clockwork.Clock
}

func New(
	runner database.TxRunner,
	sessions repository.SessionRepository,
	statuses repository.StatusRepository,
	devices DeviceLocker,
	tracker StatusRemover,
	clock clockwork.Clock,
) *Store {
	return &Store{
		runner:   runner,
		sessions: sessions,
		statuses: statuses,
		devices:  devices,
		tracker:  tracker,
		clock:    clock,
	}
}

// BusyMessage is the FAILED message written for a device that already records elsewhere
func BusyMessage(deviceName string, sessionID int64) string {
	return fmt.Sprintf("device %s is already assigned to a recording session (%d)", deviceName, sessionID)
}

// Create inserts a session and claims every free requested device for it. Busy
// devices get a FAILED status row and are not attached. Everything happens in
// one transaction.
func (s *Store) Create(ctx context.Context, req *models.CreateSessionRequest) (*models.RecordingSession, error) {
	if err := req.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error(), err)
	}

	var session *models.RecordingSession
	err := s.runner.WithTx(ctx, func(tx database.Transaction) error {
		devices, missing, err := s.devices.LockForAssignment(ctx, tx, req.DeviceIDs())
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return errors.NewValidationError("unknown device ids: "+joinIDs(missing), nil).WithDetails(missing)
		}

		session = &models.RecordingSession{
			Name:           req.Name,
			Notes:          req.Notes,
			Duration:       req.Duration,
			FragmentHourly: req.FragmentHourly,
			TargetFPS:      req.TargetFPS,
			ApplyFilter:    req.ApplyFilter,
			CreationTime:   s.clock.Now().UTC(),
			Status:         models.SessionInProgress,
		}
		if err := s.sessions.Create(ctx, tx, session); err != nil {
			return err
		}

		for _, spec := range req.DeviceSpec {
			status, err := s.claim(ctx, tx, session.ID, devices[spec.DeviceID], spec.FilenamePrefix)
			if err != nil {
				return err
			}
			session.DeviceStatuses = append(session.DeviceStatuses, status)
		}
		return nil
	})
	if err != nil {
		return nil, database.MapError(err, "failed to create recording session")
	}

	nuts.L.Infof("[Sessions] Created recording session %d (%s) with %d devices", session.ID, session.Name, len(session.DeviceStatuses))
	return session, nil
}

func (s *Store) claim(ctx context.Context, tx database.Transaction, sessionID int64, device *models.Device, prefix string) (*models.DeviceSessionStatus, error) {
	if prefix == "" {
		prefix = device.Name
	}
	status := &models.DeviceSessionStatus{
		DeviceID:   device.ID,
		SessionID:  sessionID,
		DeviceName: device.Name,
		Status:     models.StatusPending,
		FilePrefix: prefix,
	}

	if device.SessionID != nil {
		msg := BusyMessage(device.Name, *device.SessionID)
		status.Status = models.StatusFailed
		status.Message = &msg
		nuts.L.Warnf("[Sessions] Session %d: %s", sessionID, msg)
		if err := s.statuses.Insert(ctx, tx, status); err != nil {
			return nil, err
		}
		return status, nil
	}

	if err := s.statuses.Insert(ctx, tx, status); err != nil {
		return nil, err
	}
	if err := s.devices.AssignSession(ctx, tx, device, sessionID); err != nil {
		return nil, err
	}
	return status, nil
}

// Cancel cancels every active member status and marks an in-progress session
// CANCELED. Devices are freed lazily by their next heartbeat. With archive set the
// session is archived in the same transaction.
func (s *Store) Cancel(ctx context.Context, sessionID int64, archive bool) (*models.RecordingSession, error) {
	err := s.runner.WithTx(ctx, func(tx database.Transaction) error {
		session, err := s.sessions.GetForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		active, err := s.statuses.ListActiveForUpdate(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		for _, status := range active {
			if err := s.tracker.RemoveFromSession(ctx, tx, status); err != nil {
				return err
			}
		}

		if session.Status == models.SessionInProgress {
			if err := s.sessions.UpdateStatus(ctx, tx, sessionID, models.SessionCanceled); err != nil {
				return err
			}
		}
		if archive && !session.Archived {
			if err := s.sessions.SetArchived(ctx, tx, sessionID, true); err != nil {
				return err
			}
		}
		nuts.L.Infof("[Sessions] Canceled recording session %d (%d active devices)", sessionID, len(active))
		return nil
	})
	if err != nil {
		return nil, database.MapError(err, "failed to cancel recording session")
	}
	return s.Get(ctx, sessionID)
}

// Archive hides a session from the active listing. Its status is unaffected.
func (s *Store) Archive(ctx context.Context, sessionID int64) error {
	err := s.runner.WithTx(ctx, func(tx database.Transaction) error {
		return s.sessions.SetArchived(ctx, tx, sessionID, true)
	})
	if err != nil {
		return database.MapError(err, "failed to archive recording session")
	}
	return nil
}

// CheckForComplete flips finished in-progress sessions to COMPLETE
func (s *Store) CheckForComplete(ctx context.Context) ([]int64, error) {
	ids, err := s.sessions.CompleteFinished(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		nuts.L.Infof("[Sessions] Completed recording sessions %s", joinIDs(ids))
	}
	return ids, nil
}

// Get returns a session with its device statuses
func (s *Store) Get(ctx context.Context, sessionID int64) (*models.RecordingSession, error) {
	session, err := s.sessions.Get(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	session.DeviceStatuses, err = s.statuses.ListBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// List returns sessions newest first after running a completion check
func (s *Store) List(ctx context.Context, filters models.SessionFilters) ([]*models.RecordingSession, error) {
	if _, err := s.CheckForComplete(ctx); err != nil {
		nuts.L.Warnf("[Sessions] Completion check before listing failed: %v", err)
	}
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	sessions, err := s.sessions.List(ctx, filters.Archived, filters.Offset, filters.Limit)
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		session.DeviceStatuses, err = s.statuses.ListBySession(ctx, nil, session.ID)
		if err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

// DeviceStatus returns the status of one device within a session
func (s *Store) DeviceStatus(ctx context.Context, sessionID, deviceID int64) (*models.DeviceSessionStatus, error) {
	return s.statuses.Get(ctx, nil, deviceID, sessionID)
}

// RemoveDevice cancels one device's participation in a session. Removing a device
// that already finished is a no-op.
func (s *Store) RemoveDevice(ctx context.Context, sessionID, deviceID int64) (*models.DeviceSessionStatus, error) {
	var status *models.DeviceSessionStatus
	err := s.runner.WithTx(ctx, func(tx database.Transaction) error {
		var err error
		status, err = s.tracker.Get(ctx, tx, deviceID, sessionID)
		if err != nil {
			return err
		}
		if status == nil {
			return errors.NewNotFoundError(fmt.Sprintf("device %d is not part of session %d", deviceID, sessionID), nil)
		}
		return s.tracker.RemoveFromSession(ctx, tx, status)
	})
	if err != nil {
		return nil, database.MapError(err, "failed to remove device from session")
	}
	return status, nil
}

func joinIDs(ids []int64) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
