// FilePath: internal/repository/postgres/postgres.session.go
package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/models"
)

const sessionColumns = `id, name, notes, duration, fragment_hourly, target_fps, apply_filter,
	creation_time, archived, status`

type SessionRepo struct {
	PostgresBaseRepo
}

func NewSessionRepository(db database.DB) *SessionRepo {
	return &SessionRepo{PostgresBaseRepo: PostgresBaseRepo{db: db}}
}

func (r *SessionRepo) Create(ctx context.Context, tx database.Transaction, session *models.RecordingSession) error {
	query := `
		INSERT INTO recording_sessions (
			name, notes, duration, fragment_hourly, target_fps, apply_filter,
			creation_time, archived, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
		RETURNING id`

	if session.Status == "" {
		session.Status = models.SessionInProgress
	}
	err := tx.GetContext(ctx, &session.ID, query,
		session.Name, session.Notes, session.Duration, session.FragmentHourly,
		session.TargetFPS, session.ApplyFilter, session.CreationTime, session.Status,
	)
	if err != nil {
		return database.MapError(err, "failed to create recording session")
	}
	return nil
}

func (r *SessionRepo) get(ctx context.Context, q queryer, query string, id int64) (*models.RecordingSession, error) {
	session := &models.RecordingSession{}
	if err := q.GetContext(ctx, session, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("recording session not found", err)
		}
		return nil, database.MapError(err, "failed to get recording session")
	}
	return session, nil
}

func (r *SessionRepo) Get(ctx context.Context, tx database.Transaction, id int64) (*models.RecordingSession, error) {
	return r.get(ctx, r.conn(tx), `SELECT `+sessionColumns+` FROM recording_sessions WHERE id = $1`, id)
}

func (r *SessionRepo) GetForUpdate(ctx context.Context, tx database.Transaction, id int64) (*models.RecordingSession, error) {
	return r.get(ctx, tx, `SELECT `+sessionColumns+` FROM recording_sessions WHERE id = $1 FOR UPDATE`, id)
}

func (r *SessionRepo) List(ctx context.Context, archived bool, offset, limit int) ([]*models.RecordingSession, error) {
	sessions := []*models.RecordingSession{}
	query := `
		SELECT ` + sessionColumns + `
		FROM recording_sessions
		WHERE archived = $1
		ORDER BY creation_time DESC, id DESC
		LIMIT $2 OFFSET $3`

	if err := r.db.GetDB().SelectContext(ctx, &sessions, query, archived, limit, offset); err != nil {
		return nil, database.MapError(err, "failed to list recording sessions")
	}
	return sessions, nil
}

func (r *SessionRepo) UpdateStatus(ctx context.Context, tx database.Transaction, id int64, status models.SessionStatus) error {
	result, err := tx.ExecContext(ctx, `UPDATE recording_sessions SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return database.MapError(err, "failed to update recording session status")
	}
	return requireAffected(result, "recording session not found")
}

func (r *SessionRepo) SetArchived(ctx context.Context, tx database.Transaction, id int64, archived bool) error {
	result, err := tx.ExecContext(ctx, `UPDATE recording_sessions SET archived = $1 WHERE id = $2`, archived, id)
	if err != nil {
		return database.MapError(err, "failed to archive recording session")
	}
	return requireAffected(result, "recording session not found")
}

func (r *SessionRepo) CompleteFinished(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	query := `
		UPDATE recording_sessions s
		SET status = 'COMPLETE'
		WHERE s.status = 'IN_PROGRESS'
		AND NOT EXISTS (
			SELECT 1 FROM device_session_status d
			WHERE d.session_id = s.id AND d.status IN ('PENDING', 'RECORDING')
		)
		RETURNING s.id`

	if err := r.db.GetDB().SelectContext(ctx, &ids, query); err != nil {
		return nil, database.MapError(err, "failed to complete finished sessions")
	}
	return ids, nil
}
