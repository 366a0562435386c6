// Package tracker is the only writer of a device session status once the row
// exists. Every status change is checked against the lifecycle table.
package tracker

import (
	"context"
	"fmt"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/lifecycle"
	"github.com/itsatony/recorderhub/internal/models"
	"github.com/itsatony/recorderhub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

type Tracker struct {
	statuses repository.StatusRepository
}

func New(statuses repository.StatusRepository) *Tracker {
	return &Tracker{statuses: statuses}
}

// Get returns the locked status row of device in session, or nil when none exists
func (t *Tracker) Get(ctx context.Context, tx database.Transaction, deviceID, sessionID int64) (*models.DeviceSessionStatus, error) {
	status, err := t.statuses.GetForUpdate(ctx, tx, deviceID, sessionID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return status, nil
}

// UpdateRecordingTime stores the cumulative recording time reported by the
// device. While recording, a smaller value than the stored one is ignored.
func (t *Tracker) UpdateRecordingTime(ctx context.Context, tx database.Transaction, status *models.DeviceSessionStatus, seconds int) error {
	if seconds < 0 {
		return errors.NewValidationError(fmt.Sprintf("recording time must not be negative, got %d", seconds), nil)
	}
	if status.Status == models.StatusRecording && seconds < status.RecordingTime {
		nuts.L.Debugf("[Tracker] Ignoring recording time %d < %d for device %d in session %d",
			seconds, status.RecordingTime, status.DeviceID, status.SessionID)
		return nil
	}
	if seconds == status.RecordingTime {
		return nil
	}

	if err := t.statuses.UpdateRecordingTime(ctx, tx, status.DeviceID, status.SessionID, seconds); err != nil {
		return err
	}
	status.RecordingTime = seconds
	return nil
}

// UpdateStatus moves status to next. message is required for FAILED and ignored
// otherwise.
func (t *Tracker) UpdateStatus(ctx context.Context, tx database.Transaction, status *models.DeviceSessionStatus, next models.DeviceStatus, message string) error {
	if next == models.StatusFailed && message == "" {
		return errors.NewValidationError("a message is required when failing a device session status", nil)
	}

	event, err := lifecycle.EventFor(next)
	if err != nil {
		return errors.NewValidationError(err.Error(), nil)
	}
	if _, err := lifecycle.Next(status.Status, event); err != nil {
		return errors.NewInvalidTransitionError(
			fmt.Sprintf("device %d in session %d: %v", status.DeviceID, status.SessionID, err), err)
	}

	var msg *string
	if next == models.StatusFailed {
		msg = &message
	}
	if err := t.statuses.UpdateStatus(ctx, tx, status.DeviceID, status.SessionID, status.Status, next, msg); err != nil {
		return err
	}

	nuts.L.Debugf("[Tracker] Device %d in session %d: %s -> %s", status.DeviceID, status.SessionID, status.Status, next)
	status.Status = next
	status.Message = msg
	return nil
}

// RemoveFromSession cancels status if it is still active and is a no-op otherwise
func (t *Tracker) RemoveFromSession(ctx context.Context, tx database.Transaction, status *models.DeviceSessionStatus) error {
	if !status.Status.Active() {
		return nil
	}
	return t.UpdateStatus(ctx, tx, status, models.StatusCanceled, "")
}
