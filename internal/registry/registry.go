// Package registry owns device identity, liveness and the device's current
// session pointer.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/models"
	"github.com/itsatony/recorderhub/internal/repository"
	"github.com/jonboulle/clockwork"
	nuts "github.com/vaudience/go-nuts"
)

const defaultListLimit = 50

// StatusUpdater moves a device session status through its lifecycle
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, tx database.Transaction, status *models.DeviceSessionStatus, next models.DeviceStatus, message string) error
}

type Config struct {
	DownThreshold   time.Duration
	StreamKeepAlive time.Duration
}

type Registry struct {
	devices         repository.DeviceRepository
	statuses        StatusUpdater
	clock           clockwork.Clock
	downThreshold   time.Duration
	streamKeepAlive time.Duration
}

func New(devices repository.DeviceRepository, statuses StatusUpdater, clock clockwork.Clock, cfg Config) *Registry {
	return &Registry{
		devices:         devices,
		statuses:        statuses,
		clock:           clock,
		downThreshold:   cfg.DownThreshold,
		streamKeepAlive: cfg.StreamKeepAlive,
	}
}

// UpsertFromHeartbeat creates the device on first contact or refreshes its
// telemetry. The device row stays locked until tx ends. hb must be validated.
func (r *Registry) UpsertFromHeartbeat(ctx context.Context, tx database.Transaction, hb *models.HeartbeatRequest) (*models.Device, bool, error) {
	now := r.clock.Now().UTC()

	device, created, err := r.devices.GetOrCreateForUpdate(ctx, tx, hb.Name, now)
	if err != nil {
		return nil, false, err
	}

	if created {
		nuts.L.Infof("[Registry] New device %s registered with id %d", device.Name, device.ID)
	} else if reportedBackwards(device, hb.ObservedAt) {
		nuts.L.Warnf("[Registry] Clock skew for device %s: heartbeat timestamp %v is before previous report %v",
			device.Name, hb.ObservedAt, *device.LastReportedAt)
	}

	observed := hb.ObservedAt
	device.LastUpdate = now
	device.LastReportedAt = &observed
	device.SensorStatus = *hb.SensorStatus
	device.SystemInfo = *hb.SystemInfo
	device.Location = hb.Location
	device.ReportedState = hb.State

	if err := r.devices.UpdateFromHeartbeat(ctx, tx, device); err != nil {
		return nil, false, err
	}
	return r.Snapshot(device), created, nil
}

// reportedBackwards reports a device clock that went back since its previous heartbeat
func reportedBackwards(device *models.Device, observed time.Time) bool {
	return device.LastReportedAt != nil && observed.Before(*device.LastReportedAt)
}

// ClearSession frees the device for a future session
func (r *Registry) ClearSession(ctx context.Context, tx database.Transaction, device *models.Device) error {
	if err := r.devices.ClearSession(ctx, tx, device.ID); err != nil {
		return err
	}
	device.SessionID = nil
	return nil
}

// AssignSession points a free device at a session
func (r *Registry) AssignSession(ctx context.Context, tx database.Transaction, device *models.Device, sessionID int64) error {
	if device.SessionID != nil {
		return errors.NewConflictError(fmt.Sprintf("device %s is already part of session %d", device.Name, *device.SessionID), nil)
	}
	if err := r.devices.AssignSession(ctx, tx, device.ID, sessionID); err != nil {
		return err
	}
	device.SessionID = &sessionID
	return nil
}

// JoinSession marks the device as recording for the session of status. It fails
// with a conflict when the device no longer points at that session.
func (r *Registry) JoinSession(ctx context.Context, tx database.Transaction, device *models.Device, status *models.DeviceSessionStatus) error {
	if !device.InSession(status.SessionID) {
		return errors.NewConflictError("device already part of another session", nil)
	}
	return r.statuses.UpdateStatus(ctx, tx, status, models.StatusRecording, "")
}

// LockForAssignment locks the given devices in id order and reports the ids that
// do not exist
func (r *Registry) LockForAssignment(ctx context.Context, tx database.Transaction, ids []int64) (map[int64]*models.Device, []int64, error) {
	devices, err := r.devices.LockByIDs(ctx, tx, ids)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[int64]*models.Device, len(devices))
	for _, device := range devices {
		byID[device.ID] = device
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	return byID, missing, nil
}

// RequestLiveStream records a live stream request for a recording device. The
// request expires after the keep-alive window unless resubmitted.
func (r *Registry) RequestLiveStream(ctx context.Context, tx database.Transaction, deviceID int64) (*models.Device, error) {
	device, err := r.devices.GetForUpdate(ctx, tx, deviceID)
	if err != nil {
		return nil, err
	}
	if !device.IsRecording() {
		return nil, errors.NewDomainError(fmt.Sprintf("device %s is not recording", device.Name), nil)
	}

	now := r.clock.Now().UTC()
	if err := r.devices.SetStreamRequest(ctx, tx, device.ID, now); err != nil {
		return nil, err
	}
	device.LastStreamRequest = &now
	return r.Snapshot(device), nil
}

// IsStreamActive reports whether a live stream was requested within the keep-alive window
func (r *Registry) IsStreamActive(device *models.Device) bool {
	if device.LastStreamRequest == nil {
		return false
	}
	return r.clock.Since(*device.LastStreamRequest) <= r.streamKeepAlive
}

func (r *Registry) Get(ctx context.Context, id int64) (*models.Device, error) {
	device, err := r.devices.Get(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	return r.Snapshot(device), nil
}

func (r *Registry) GetByName(ctx context.Context, name string) (*models.Device, error) {
	device, err := r.devices.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.Snapshot(device), nil
}

func (r *Registry) List(ctx context.Context, filters models.DeviceFilters) ([]*models.Device, error) {
	if filters.State != "" && !filters.State.Valid() {
		return nil, errors.NewValidationError("invalid device state: "+string(filters.State), nil)
	}
	if filters.Limit <= 0 {
		filters.Limit = defaultListLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	devices, err := r.devices.List(ctx, filters.State, r.DownCutoff(), filters.Offset, filters.Limit)
	if err != nil {
		return nil, err
	}
	return r.SnapshotAll(devices), nil
}
