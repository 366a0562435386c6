// FilePath: internal/repository/postgres/postgres.device.go
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/models"
	"github.com/lib/pq"
)

const deviceColumns = `id, name, last_update, last_reported_at, session_id, sensor_status,
	uptime, total_ram, free_ram, total_disk, free_disk, load, release,
	location, reported_state, last_stream_request, created_at`

type DeviceRepo struct {
	PostgresBaseRepo
}

func NewDeviceRepository(db database.DB) *DeviceRepo {
	return &DeviceRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *DeviceRepo) GetOrCreateForUpdate(ctx context.Context, tx database.Transaction, name string, now time.Time) (*models.Device, bool, error) {
	// ON CONFLICT DO NOTHING blocks on a concurrent uncommitted insert of the same
	// name and then yields no row, so exactly one caller sees created == true
	var id int64
	created := true
	err := tx.GetContext(ctx, &id, `
		INSERT INTO devices (name, last_update, created_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (name) DO NOTHING
		RETURNING id`, name, now)
	if err != nil {
		if !stderrors.Is(err, sql.ErrNoRows) {
			return nil, false, database.MapError(err, "failed to create device")
		}
		created = false
	}

	device := &models.Device{}
	err = tx.GetContext(ctx, device, `SELECT `+deviceColumns+` FROM devices WHERE name = $1 FOR UPDATE`, name)
	if err != nil {
		return nil, false, database.MapError(err, "failed to lock device")
	}
	return device, created, nil
}

func (r *DeviceRepo) GetForUpdate(ctx context.Context, tx database.Transaction, id int64) (*models.Device, error) {
	device := &models.Device{}
	err := tx.GetContext(ctx, device, `SELECT `+deviceColumns+` FROM devices WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("device not found", err)
		}
		return nil, database.MapError(err, "failed to lock device")
	}
	return device, nil
}

func (r *DeviceRepo) LockByIDs(ctx context.Context, tx database.Transaction, ids []int64) ([]*models.Device, error) {
	devices := []*models.Device{}
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	if err := tx.SelectContext(ctx, &devices, query, pq.Array(ids)); err != nil {
		return nil, database.MapError(err, "failed to lock devices")
	}
	return devices, nil
}

func (r *DeviceRepo) UpdateFromHeartbeat(ctx context.Context, tx database.Transaction, device *models.Device) error {
	query := `
		UPDATE devices SET
			last_update = :last_update,
			last_reported_at = :last_reported_at,
			sensor_status = :sensor_status,
			uptime = :uptime,
			total_ram = :total_ram,
			free_ram = :free_ram,
			total_disk = :total_disk,
			free_disk = :free_disk,
			load = :load,
			release = :release,
			location = :location,
			reported_state = :reported_state
		WHERE id = :id`

	result, err := tx.NamedExecContext(ctx, query, device)
	if err != nil {
		return database.MapError(err, "failed to update device")
	}
	return requireAffected(result, "device not found")
}

func (r *DeviceRepo) AssignSession(ctx context.Context, tx database.Transaction, deviceID, sessionID int64) error {
	result, err := tx.ExecContext(ctx, `UPDATE devices SET session_id = $1 WHERE id = $2`, sessionID, deviceID)
	if err != nil {
		return database.MapError(err, "failed to assign device to session")
	}
	return requireAffected(result, "device not found")
}

func (r *DeviceRepo) ClearSession(ctx context.Context, tx database.Transaction, deviceID int64) error {
	result, err := tx.ExecContext(ctx, `UPDATE devices SET session_id = NULL WHERE id = $1`, deviceID)
	if err != nil {
		return database.MapError(err, "failed to clear device session")
	}
	return requireAffected(result, "device not found")
}

func (r *DeviceRepo) SetStreamRequest(ctx context.Context, tx database.Transaction, deviceID int64, at time.Time) error {
	result, err := tx.ExecContext(ctx, `UPDATE devices SET last_stream_request = $1 WHERE id = $2`, at, deviceID)
	if err != nil {
		return database.MapError(err, "failed to record stream request")
	}
	return requireAffected(result, "device not found")
}

func (r *DeviceRepo) Get(ctx context.Context, tx database.Transaction, id int64) (*models.Device, error) {
	device := &models.Device{}
	err := r.conn(tx).GetContext(ctx, device, `SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("device not found", err)
		}
		return nil, database.MapError(err, "failed to get device")
	}
	return device, nil
}

func (r *DeviceRepo) GetByName(ctx context.Context, name string) (*models.Device, error) {
	device := &models.Device{}
	err := r.db.GetDB().GetContext(ctx, device, `SELECT `+deviceColumns+` FROM devices WHERE name = $1`, name)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("device not found", err)
		}
		return nil, database.MapError(err, "failed to get device")
	}
	return device, nil
}

func (r *DeviceRepo) List(ctx context.Context, state models.DeviceState, cutoff time.Time, offset, limit int) ([]*models.Device, error) {
	devices := []*models.Device{}

	var where string
	args := []interface{}{limit, offset}
	switch state {
	case models.DeviceStateDown:
		where = `WHERE last_update < $3`
		args = append(args, cutoff)
	case models.DeviceStateBusy:
		where = `WHERE last_update >= $3 AND session_id IS NOT NULL`
		args = append(args, cutoff)
	case models.DeviceStateIdle:
		where = `WHERE last_update >= $3 AND session_id IS NULL`
		args = append(args, cutoff)
	case "":
	default:
		return nil, errors.NewValidationError("invalid device state: "+string(state), nil)
	}

	query := `SELECT ` + deviceColumns + ` FROM devices ` + where + ` ORDER BY name LIMIT $1 OFFSET $2`
	if err := r.db.GetDB().SelectContext(ctx, &devices, query, args...); err != nil {
		return nil, database.MapError(err, "failed to list devices")
	}
	return devices, nil
}
