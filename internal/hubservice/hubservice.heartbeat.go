package hubservice

import (
	"context"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/models"
	"github.com/itsatony/recorderhub/internal/monitoring"
	nuts "github.com/vaudience/go-nuts"
)

// ProcessHeartbeat admits a heartbeat, updates the device and resolves the command
// to return, all in one transaction holding the device row lock. A nil command
// means there is nothing to tell the device.
func (s *HubService) ProcessHeartbeat(ctx context.Context, hb *models.HeartbeatRequest) (*models.Command, error) {
	start := s.clock.Now()

	if err := hb.Validate(); err != nil {
		s.Metrics.ObserveHeartbeat(monitoring.ResultRejected, nil, s.clock.Since(start))
		return nil, errors.NewValidationError(err.Error(), err)
	}

	var (
		device  *models.Device
		created bool
		cmd     *models.Command
	)
	err := s.Runner.WithTx(ctx, func(tx database.Transaction) error {
		var err error
		device, created, err = s.Registry.UpsertFromHeartbeat(ctx, tx, hb)
		if err != nil {
			return err
		}
		cmd, err = s.Resolver.Resolve(ctx, tx, device, hb)
		return err
	})
	if err != nil {
		s.Metrics.ObserveHeartbeat(monitoring.ResultError, nil, s.clock.Since(start))
		nuts.L.Warnf("[HubService] Heartbeat from %s failed: %v", hb.Name, err)
		return nil, database.MapError(err, "failed to process heartbeat")
	}

	if created {
		s.Metrics.DeviceRegistered()
	}
	s.recordTelemetry(ctx, device)

	result := monitoring.ResultNoCommand
	if cmd != nil {
		result = monitoring.ResultCommand
		nuts.L.Debugf("[HubService] Device %s receives %s", device.Name, cmd.Name)
	}
	s.Metrics.ObserveHeartbeat(result, cmd, s.clock.Since(start))
	return cmd, nil
}

// recordTelemetry appends the heartbeat to the telemetry history. Losing a point
// never fails the heartbeat.
func (s *HubService) recordTelemetry(ctx context.Context, device *models.Device) {
	if s.Telemetry == nil {
		return
	}
	if err := s.Telemetry.Insert(ctx, models.NewTelemetryPoint(device)); err != nil {
		nuts.L.Warnf("[HubService] Failed to store telemetry for device %s: %v", device.Name, err)
	}
}
