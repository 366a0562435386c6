// FilePath: internal/repository/postgres/postgres.status.go
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/models"
)

const statusSelect = `
	SELECT s.device_id, s.session_id, d.name AS device_name, s.status,
		s.recording_time, s.file_prefix, s.message
	FROM device_session_status s
	JOIN devices d ON d.id = s.device_id`

type StatusRepo struct {
	PostgresBaseRepo
}

func NewStatusRepository(db database.DB) *StatusRepo {
	return &StatusRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *StatusRepo) Insert(ctx context.Context, tx database.Transaction, status *models.DeviceSessionStatus) error {
	query := `
		INSERT INTO device_session_status (
			device_id, session_id, status, recording_time, file_prefix, message
		) VALUES (
			:device_id, :session_id, :status, :recording_time, :file_prefix, :message
		)`

	if _, err := tx.NamedExecContext(ctx, query, status); err != nil {
		return database.MapError(err, "failed to create device session status")
	}
	return nil
}

func (r *StatusRepo) get(ctx context.Context, q queryer, query string, deviceID, sessionID int64) (*models.DeviceSessionStatus, error) {
	status := &models.DeviceSessionStatus{}
	if err := q.GetContext(ctx, status, query, deviceID, sessionID); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("device session status not found", err)
		}
		return nil, database.MapError(err, "failed to get device session status")
	}
	return status, nil
}

func (r *StatusRepo) Get(ctx context.Context, tx database.Transaction, deviceID, sessionID int64) (*models.DeviceSessionStatus, error) {
	return r.get(ctx, r.conn(tx), statusSelect+` WHERE s.device_id = $1 AND s.session_id = $2`, deviceID, sessionID)
}

func (r *StatusRepo) GetForUpdate(ctx context.Context, tx database.Transaction, deviceID, sessionID int64) (*models.DeviceSessionStatus, error) {
	return r.get(ctx, tx, statusSelect+` WHERE s.device_id = $1 AND s.session_id = $2 FOR UPDATE OF s`, deviceID, sessionID)
}

func (r *StatusRepo) ListBySession(ctx context.Context, tx database.Transaction, sessionID int64) ([]*models.DeviceSessionStatus, error) {
	statuses := []*models.DeviceSessionStatus{}
	query := statusSelect + ` WHERE s.session_id = $1 ORDER BY s.device_id`

	if err := r.conn(tx).SelectContext(ctx, &statuses, query, sessionID); err != nil {
		return nil, database.MapError(err, "failed to list device session statuses")
	}
	return statuses, nil
}

func (r *StatusRepo) ListActiveForUpdate(ctx context.Context, tx database.Transaction, sessionID int64) ([]*models.DeviceSessionStatus, error) {
	statuses := []*models.DeviceSessionStatus{}
	query := statusSelect + `
		WHERE s.session_id = $1 AND s.status IN ('PENDING', 'RECORDING')
		ORDER BY s.device_id
		FOR UPDATE OF s`

	if err := tx.SelectContext(ctx, &statuses, query, sessionID); err != nil {
		return nil, database.MapError(err, "failed to lock device session statuses")
	}
	return statuses, nil
}

func (r *StatusRepo) UpdateStatus(ctx context.Context, tx database.Transaction, deviceID, sessionID int64, from, to models.DeviceStatus, message *string) error {
	query := `
		UPDATE device_session_status
		SET status = $1, message = $2
		WHERE device_id = $3 AND session_id = $4 AND status = $5`

	result, err := tx.ExecContext(ctx, query, to, message, deviceID, sessionID, from)
	if err != nil {
		return database.MapError(err, "failed to update device session status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewInvalidTransitionError(
			fmt.Sprintf("device session status for device %d in session %d is no longer %s", deviceID, sessionID, from), nil)
	}
	return nil
}

func (r *StatusRepo) UpdateRecordingTime(ctx context.Context, tx database.Transaction, deviceID, sessionID int64, seconds int) error {
	// while RECORDING the reported time never goes backwards
	query := `
		UPDATE device_session_status
		SET recording_time = CASE
			WHEN status = 'RECORDING' THEN GREATEST(recording_time, $1)
			ELSE $1
		END
		WHERE device_id = $2 AND session_id = $3`

	result, err := tx.ExecContext(ctx, query, seconds, deviceID, sessionID)
	if err != nil {
		return database.MapError(err, "failed to update recording time")
	}
	return requireAffected(result, "device session status not found")
}
