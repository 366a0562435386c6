package postgres

import (
	"context"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	nuts "github.com/vaudience/go-nuts"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS recording_sessions (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		notes TEXT,
		duration INTEGER NOT NULL CHECK (duration > 0),
		fragment_hourly BOOLEAN NOT NULL DEFAULT FALSE,
		target_fps INTEGER NOT NULL CHECK (target_fps > 0),
		apply_filter BOOLEAN NOT NULL DEFAULT FALSE,
		creation_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		archived BOOLEAN NOT NULL DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'IN_PROGRESS'
			CHECK (status IN ('IN_PROGRESS', 'COMPLETE', 'CANCELED'))
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		last_update TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_reported_at TIMESTAMPTZ,
		session_id BIGINT REFERENCES recording_sessions(id) ON DELETE SET NULL,
		sensor_status JSONB NOT NULL DEFAULT '{}',
		uptime BIGINT NOT NULL DEFAULT 0,
		total_ram BIGINT NOT NULL DEFAULT 0,
		free_ram BIGINT NOT NULL DEFAULT 0,
		total_disk BIGINT NOT NULL DEFAULT 0,
		free_disk BIGINT NOT NULL DEFAULT 0,
		load DOUBLE PRECISION NOT NULL DEFAULT 0,
		release TEXT NOT NULL DEFAULT '',
		location TEXT,
		reported_state TEXT CHECK (reported_state IN ('IDLE', 'BUSY')),
		last_stream_request TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS device_session_status (
		device_id BIGINT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		session_id BIGINT NOT NULL REFERENCES recording_sessions(id) ON DELETE CASCADE,
		status TEXT NOT NULL
			CHECK (status IN ('PENDING', 'RECORDING', 'COMPLETE', 'FAILED', 'CANCELED')),
		recording_time INTEGER NOT NULL DEFAULT 0 CHECK (recording_time >= 0),
		file_prefix TEXT NOT NULL DEFAULT '',
		message TEXT,
		PRIMARY KEY (device_id, session_id),
		CHECK (status <> 'FAILED' OR message IS NOT NULL)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_device_session_status_session
		ON device_session_status(session_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_session ON devices(session_id)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_last_update ON devices(last_update)`,
	`CREATE INDEX IF NOT EXISTS idx_recording_sessions_listing
		ON recording_sessions(archived, creation_time DESC)`,
}

// InitSchema creates the application tables if they do not exist yet
func InitSchema(ctx context.Context, db database.DB) error {
	for _, query := range schema {
		if _, err := db.GetDB().ExecContext(ctx, query); err != nil {
			return errors.NewDatabaseError("failed to initialize schema", err)
		}
	}
	nuts.L.Infof("[PostgresDB] Schema ready")
	return nil
}
