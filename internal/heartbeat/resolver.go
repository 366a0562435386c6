// Package heartbeat decides which command, if any, a device receives in reply to
// a heartbeat, and drives the status changes the heartbeat implies.
package heartbeat

import (
	"context"
	"fmt"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

const (
	MsgUnexpectedLeave = "device unexpectedly left recording session"
	MsgStoppedEarly    = "device stopped before recording started"
)

// Mutation names used for savepoints, logs and metrics
const (
	OpClearSession  = "clear_session"
	OpJoinSession   = "join_session"
	OpUpdateStatus  = "update_status"
	OpRecordingTime = "recording_time"
)

// Devices is the part of the device registry the resolver drives
type Devices interface {
	ClearSession(ctx context.Context, tx database.Transaction, device *models.Device) error
	JoinSession(ctx context.Context, tx database.Transaction, device *models.Device, status *models.DeviceSessionStatus) error
	IsStreamActive(device *models.Device) bool
}

// Statuses is the part of the status tracker the resolver drives
type Statuses interface {
	Get(ctx context.Context, tx database.Transaction, deviceID, sessionID int64) (*models.DeviceSessionStatus, error)
	UpdateRecordingTime(ctx context.Context, tx database.Transaction, status *models.DeviceSessionStatus, seconds int) error
	UpdateStatus(ctx context.Context, tx database.Transaction, status *models.DeviceSessionStatus, next models.DeviceStatus, message string) error
}

// Sessions reads the session a START command is built from
type Sessions interface {
	Get(ctx context.Context, tx database.Transaction, id int64) (*models.RecordingSession, error)
}

// Recorder is told about failures the resolver swallows
type Recorder interface {
	MutationFailed(op string)
	Inconsistency()
}

type nopRecorder struct{}

func (nopRecorder) MutationFailed(string) {}
func (nopRecorder) Inconsistency()        {}

type Resolver struct {
	devices  Devices
	statuses Statuses
	sessions Sessions
	recorder Recorder
}

func New(devices Devices, statuses Statuses, sessions Sessions, recorder Recorder) *Resolver {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Resolver{
		devices:  devices,
		statuses: statuses,
		sessions: sessions,
		recorder: recorder,
	}
}

// Resolve reconciles a validated heartbeat against the stored state of device,
// which must be locked by tx. It returns nil when there is nothing to tell the
// device. Failed writes are rolled back to a savepoint and retried by the next
// heartbeat; only read failures and session conflicts are returned.
func (r *Resolver) Resolve(ctx context.Context, tx database.Transaction, device *models.Device, hb *models.HeartbeatRequest) (*models.Command, error) {
	if device.SessionID == nil {
		return nil, nil
	}
	sessionID := *device.SessionID

	status, err := r.statuses.Get(ctx, tx, device.ID, sessionID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		nuts.L.Errorf("[Heartbeat] Device %s points at session %d without a status row, clearing", device.Name, sessionID)
		r.recorder.Inconsistency()
		r.attempt(ctx, tx, OpClearSession, device, func() error {
			return r.devices.ClearSession(ctx, tx, device)
		})
		return nil, nil
	}

	switch {
	case hb.SessionID == nil:
		return r.unaware(ctx, tx, device, status)
	case *hb.SessionID != sessionID:
		nuts.L.Warnf("[Heartbeat] Device %s reports session %d but is assigned to %d, stopping", device.Name, *hb.SessionID, sessionID)
		return &models.Command{Name: models.CommandStop}, nil
	case !hb.CameraRecording():
		return r.stopped(ctx, tx, device, status, hb)
	}

	switch status.Status {
	case models.StatusCanceled:
		return &models.Command{Name: models.CommandStop}, nil
	case models.StatusRecording:
		r.attempt(ctx, tx, OpRecordingTime, device, func() error {
			return r.statuses.UpdateRecordingTime(ctx, tx, status, hb.ReportedDuration())
		})
		if r.devices.IsStreamActive(device) {
			return &models.Command{Name: models.CommandStream}, nil
		}
	case models.StatusPending:
		err := r.attempt(ctx, tx, OpJoinSession, device, func() error {
			return r.devices.JoinSession(ctx, tx, device, status)
		})
		if errors.IsConflict(err) {
			return nil, err
		}
		if err == nil {
			nuts.L.Infof("[Heartbeat] Device %s started recording session %d", device.Name, sessionID)
			r.attempt(ctx, tx, OpRecordingTime, device, func() error {
				return r.statuses.UpdateRecordingTime(ctx, tx, status, hb.ReportedDuration())
			})
		}
	}
	return nil, nil
}

// unaware handles a device that does not echo the session it is assigned to
func (r *Resolver) unaware(ctx context.Context, tx database.Transaction, device *models.Device, status *models.DeviceSessionStatus) (*models.Command, error) {
	switch status.Status {
	case models.StatusPending:
		session, err := r.sessions.Get(ctx, tx, status.SessionID)
		if err != nil {
			return nil, err
		}
		cmd, err := models.NewStartCommand(session, status)
		if err != nil {
			return nil, errors.NewInternalError("failed to build start command", err)
		}
		nuts.L.Debugf("[Heartbeat] Sending START for session %d to device %s", session.ID, device.Name)
		return cmd, nil

	case models.StatusCanceled:
		r.attempt(ctx, tx, OpClearSession, device, func() error {
			return r.devices.ClearSession(ctx, tx, device)
		})
		return nil, nil
	}

	nuts.L.Warnf("[Heartbeat] Device %s dropped out of session %d while %s", device.Name, status.SessionID, status.Status)
	if err := r.attempt(ctx, tx, OpUpdateStatus, device, func() error {
		return r.statuses.UpdateStatus(ctx, tx, status, models.StatusFailed, MsgUnexpectedLeave)
	}); err != nil {
		return nil, nil
	}
	r.attempt(ctx, tx, OpClearSession, device, func() error {
		return r.devices.ClearSession(ctx, tx, device)
	})
	return nil, nil
}

// stopped handles a device that echoes its session but no longer records. The
// session is only released once the final status is stored.
func (r *Resolver) stopped(ctx context.Context, tx database.Transaction, device *models.Device, status *models.DeviceSessionStatus, hb *models.HeartbeatRequest) (*models.Command, error) {
	var err error
	if msg := hb.ErrorMessage(); msg != "" {
		nuts.L.Warnf("[Heartbeat] Device %s failed in session %d: %s", device.Name, status.SessionID, msg)
		err = r.attempt(ctx, tx, OpUpdateStatus, device, func() error {
			return r.statuses.UpdateStatus(ctx, tx, status, models.StatusFailed, msg)
		})
	} else {
		err = r.finish(ctx, tx, device, status, hb.ReportedDuration())
	}
	if err != nil {
		return nil, nil
	}

	r.attempt(ctx, tx, OpClearSession, device, func() error {
		return r.devices.ClearSession(ctx, tx, device)
	})
	nuts.L.Infof("[Heartbeat] Device %s finished session %d as %s", device.Name, status.SessionID, status.Status)
	return &models.Command{Name: models.CommandComplete}, nil
}

func (r *Resolver) finish(ctx context.Context, tx database.Transaction, device *models.Device, status *models.DeviceSessionStatus, duration int) error {
	if err := r.attempt(ctx, tx, OpRecordingTime, device, func() error {
		return r.statuses.UpdateRecordingTime(ctx, tx, status, duration)
	}); err != nil {
		return err
	}

	// A PENDING row is never left active once the device reports idle: it
	// completes when the device reported recording time and fails otherwise.
	var next models.DeviceStatus
	var msg string
	switch {
	case status.Status == models.StatusRecording:
		next = models.StatusComplete
	case status.Status == models.StatusPending && duration > 0:
		next = models.StatusComplete
	case status.Status == models.StatusPending:
		next, msg = models.StatusFailed, MsgStoppedEarly
	default:
		return nil
	}
	return r.attempt(ctx, tx, OpUpdateStatus, device, func() error {
		return r.statuses.UpdateStatus(ctx, tx, status, next, msg)
	})
}

// attempt runs one write inside a savepoint. An illegal transition means another
// writer already settled the row and counts as success. Any other failure is
// logged, counted and returned.
func (r *Resolver) attempt(ctx context.Context, tx database.Transaction, op string, device *models.Device, fn func() error) error {
	err := database.Savepoint(ctx, tx, "heartbeat_"+op, fn)
	if err == nil {
		return nil
	}
	if errors.IsInvalidTransition(err) {
		nuts.L.Debugf("[Heartbeat] %s for device %s already settled: %v", op, device.Name, err)
		return nil
	}
	if errors.IsConflict(err) {
		return err
	}

	nuts.L.Warnf("[Heartbeat] %s for device %s failed, retrying on next heartbeat: %v", op, device.Name, err)
	r.recorder.MutationFailed(op)
	return fmt.Errorf("%s: %w", op, err)
}
