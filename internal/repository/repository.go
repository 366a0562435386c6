// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/models"
)

// Methods taking a database.Transaction run inside it. Read methods accept a nil
// transaction and then use the connection pool.

// DeviceRepository defines the interface for device data operations
type DeviceRepository interface {
	// GetOrCreateForUpdate returns the device with the given name, creating it if
	// needed, and keeps its row locked until tx ends
	GetOrCreateForUpdate(ctx context.Context, tx database.Transaction, name string, now time.Time) (*models.Device, bool, error)
	GetForUpdate(ctx context.Context, tx database.Transaction, id int64) (*models.Device, error)
	// LockByIDs locks the given devices in ascending id order
	LockByIDs(ctx context.Context, tx database.Transaction, ids []int64) ([]*models.Device, error)
	UpdateFromHeartbeat(ctx context.Context, tx database.Transaction, device *models.Device) error
	AssignSession(ctx context.Context, tx database.Transaction, deviceID, sessionID int64) error
	ClearSession(ctx context.Context, tx database.Transaction, deviceID int64) error
	SetStreamRequest(ctx context.Context, tx database.Transaction, deviceID int64, at time.Time) error

	Get(ctx context.Context, tx database.Transaction, id int64) (*models.Device, error)
	GetByName(ctx context.Context, name string) (*models.Device, error)
	// List filters by derived state; devices last heard from before cutoff are DOWN
	List(ctx context.Context, state models.DeviceState, cutoff time.Time, offset, limit int) ([]*models.Device, error)
}

// SessionRepository defines the interface for recording session data operations
type SessionRepository interface {
	Create(ctx context.Context, tx database.Transaction, session *models.RecordingSession) error
	Get(ctx context.Context, tx database.Transaction, id int64) (*models.RecordingSession, error)
	GetForUpdate(ctx context.Context, tx database.Transaction, id int64) (*models.RecordingSession, error)
	List(ctx context.Context, archived bool, offset, limit int) ([]*models.RecordingSession, error)
	UpdateStatus(ctx context.Context, tx database.Transaction, id int64, status models.SessionStatus) error
	SetArchived(ctx context.Context, tx database.Transaction, id int64, archived bool) error
	// CompleteFinished flips every IN_PROGRESS session without active members to
	// COMPLETE and returns their ids
	CompleteFinished(ctx context.Context) ([]int64, error)
}

// StatusRepository defines the interface for device session status rows
type StatusRepository interface {
	Insert(ctx context.Context, tx database.Transaction, status *models.DeviceSessionStatus) error
	Get(ctx context.Context, tx database.Transaction, deviceID, sessionID int64) (*models.DeviceSessionStatus, error)
	GetForUpdate(ctx context.Context, tx database.Transaction, deviceID, sessionID int64) (*models.DeviceSessionStatus, error)
	ListBySession(ctx context.Context, tx database.Transaction, sessionID int64) ([]*models.DeviceSessionStatus, error)
	ListActiveForUpdate(ctx context.Context, tx database.Transaction, sessionID int64) ([]*models.DeviceSessionStatus, error)
	// UpdateStatus only applies while the row is still in status from
	UpdateStatus(ctx context.Context, tx database.Transaction, deviceID, sessionID int64, from, to models.DeviceStatus, message *string) error
	UpdateRecordingTime(ctx context.Context, tx database.Transaction, deviceID, sessionID int64, seconds int) error
}

// TelemetryRepository defines the interface for device telemetry history
type TelemetryRepository interface {
	Insert(ctx context.Context, point *models.TelemetryPoint) error
	GetHistory(ctx context.Context, deviceID int64, start, end time.Time) ([]models.TelemetryPoint, error)
	GetHourly(ctx context.Context, deviceID int64, start, end time.Time) ([]models.TelemetryAggregate, error)
	DeleteOldData(ctx context.Context, before time.Time) (int64, error)
}
