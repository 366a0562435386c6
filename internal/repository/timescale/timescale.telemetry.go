// FilePath: internal/repository/timescale/timescale.telemetry.go
package timescale

import (
	"context"
	"fmt"
	"time"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

type TelemetryRepo struct {
	TimeScaleBaseRepo
}

// NewTelemetryRepository prepares the telemetry hypertable. retention of zero
// disables the built-in retention policy; pruning then relies on DeleteOldData.
func NewTelemetryRepository(db database.DB, retention time.Duration) (*TelemetryRepo, error) {
	repo := &TelemetryRepo{TimeScaleBaseRepo: TimeScaleBaseRepo{db: db}}
	if err := repo.initializeSchema(); err != nil {
		return nil, err
	}
	if retention > 0 {
		repo.setupRetentionPolicy(retention)
	}
	return repo, nil
}

func (r *TelemetryRepo) initializeSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS device_telemetry (
			id TEXT NOT NULL,
			device_id BIGINT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			recording BOOLEAN NOT NULL,
			fps DOUBLE PRECISION,
			uptime BIGINT NOT NULL,
			total_ram BIGINT NOT NULL,
			free_ram BIGINT NOT NULL,
			total_disk BIGINT NOT NULL,
			free_disk BIGINT NOT NULL,
			load DOUBLE PRECISION NOT NULL,
			release TEXT NOT NULL
		)`,
		`SELECT create_hypertable('device_telemetry', 'timestamp',
			chunk_time_interval => INTERVAL '1 day',
			if_not_exists => TRUE
		)`,
		`CREATE MATERIALIZED VIEW IF NOT EXISTS device_telemetry_hourly
			WITH (timescaledb.continuous) AS
			SELECT device_id,
				time_bucket('1 hour', timestamp) AS bucket,
				AVG(load) AS avg_load,
				MIN(free_ram) AS min_free_ram,
				MIN(free_disk) AS min_free_disk,
				COUNT(*) AS heartbeats,
				AVG(CASE WHEN recording THEN 100.0 ELSE 0.0 END) AS recording_pct
			FROM device_telemetry
			GROUP BY device_id, time_bucket('1 hour', timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_device_telemetry_device_timestamp
			ON device_telemetry(device_id, timestamp DESC)`,
	}

	for _, query := range queries {
		if _, err := r.db.GetDB().Exec(query); err != nil {
			return errors.NewDatabaseError("failed to initialize schema", err)
		}
	}
	return nil
}

func (r *TelemetryRepo) setupRetentionPolicy(retention time.Duration) {
	query := fmt.Sprintf(`
		SELECT add_retention_policy('device_telemetry',
			INTERVAL '%d seconds',
			if_not_exists => TRUE
		)`, int64(retention.Seconds()))

	if _, err := r.db.GetDB().Exec(query); err != nil {
		nuts.L.Errorf("[TimescaleDB] Failed to set up retention policy: %v", err)
	}
}

func (r *TelemetryRepo) Insert(ctx context.Context, point *models.TelemetryPoint) error {
	if point.ID == "" {
		point.ID = nuts.NID("tm", 12)
	}
	query := `
		INSERT INTO device_telemetry (
			id, device_id, timestamp, recording, fps,
			uptime, total_ram, free_ram, total_disk, free_disk, load, release
		) VALUES (
			:id, :device_id, :timestamp, :recording, :fps,
			:uptime, :total_ram, :free_ram, :total_disk, :free_disk, :load, :release
		)`

	if _, err := r.db.GetDB().NamedExecContext(ctx, query, point); err != nil {
		return errors.NewDatabaseError("failed to insert device telemetry", err)
	}
	return nil
}

func (r *TelemetryRepo) GetHistory(ctx context.Context, deviceID int64, start, end time.Time) ([]models.TelemetryPoint, error) {
	points := []models.TelemetryPoint{}
	query := `
		SELECT id, device_id, timestamp, recording, fps,
			uptime, total_ram, free_ram, total_disk, free_disk, load, release
		FROM device_telemetry
		WHERE device_id = $1 AND timestamp BETWEEN $2 AND $3
		ORDER BY timestamp DESC`

	if err := r.db.GetDB().SelectContext(ctx, &points, query, deviceID, start, end); err != nil {
		return nil, errors.NewDatabaseError("failed to get device telemetry", err)
	}
	return points, nil
}

func (r *TelemetryRepo) GetHourly(ctx context.Context, deviceID int64, start, end time.Time) ([]models.TelemetryAggregate, error) {
	aggregates := []models.TelemetryAggregate{}
	query := `
		SELECT device_id, bucket, avg_load, min_free_ram, min_free_disk, heartbeats, recording_pct
		FROM device_telemetry_hourly
		WHERE device_id = $1 AND bucket BETWEEN $2 AND $3
		ORDER BY bucket DESC`

	if err := r.db.GetDB().SelectContext(ctx, &aggregates, query, deviceID, start, end); err != nil {
		return nil, errors.NewDatabaseError("failed to get device telemetry aggregates", err)
	}
	return aggregates, nil
}

func (r *TelemetryRepo) DeleteOldData(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.GetDB().ExecContext(ctx, `DELETE FROM device_telemetry WHERE timestamp < $1`, before)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to delete old telemetry", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("failed to get rows affected", err)
	}

	nuts.L.Infof("[TimescaleDB] Deleted %d telemetry rows before %v", rows, before)
	return rows, nil
}
