package hubservice

import (
	"context"
	"time"

	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

const defaultTelemetryWindow = 24 * time.Hour

func (s *HubService) GetDevice(ctx context.Context, id int64) (*models.Device, error) {
	return s.Registry.Get(ctx, id)
}

func (s *HubService) GetDeviceByName(ctx context.Context, name string) (*models.Device, error) {
	return s.Registry.GetByName(ctx, name)
}

func (s *HubService) ListDevices(ctx context.Context, filters models.DeviceFilters) ([]*models.Device, error) {
	return s.Registry.List(ctx, filters)
}

// RequestLiveStream starts or extends the live stream of a recording device. The
// device receives STREAM on its heartbeats until the keep-alive window lapses.
func (s *HubService) RequestLiveStream(ctx context.Context, deviceID int64) (*models.Device, error) {
	var device *models.Device
	err := s.Runner.WithTx(ctx, func(tx database.Transaction) error {
		var err error
		device, err = s.Registry.RequestLiveStream(ctx, tx, deviceID)
		return err
	})
	if err != nil {
		return nil, database.MapError(err, "failed to request live stream")
	}
	nuts.L.Debugf("[HubService] Live stream requested for device %s", device.Name)
	return device, nil
}

// GetTelemetry returns a device's telemetry history, raw or as hourly rollups.
// Without a range the last 24 hours are returned.
func (s *HubService) GetTelemetry(ctx context.Context, deviceID int64, filters models.TelemetryFilters) (interface{}, error) {
	if s.Telemetry == nil {
		return nil, errors.NewUnavailableError("telemetry history is not configured", nil)
	}
	if _, err := s.Registry.Get(ctx, deviceID); err != nil {
		return nil, err
	}

	end := filters.End
	if end.IsZero() {
		end = s.clock.Now().UTC()
	}
	start := filters.Start
	if start.IsZero() {
		start = end.Add(-defaultTelemetryWindow)
	}
	if !start.Before(end) {
		return nil, errors.NewValidationError("start must be before end", nil)
	}

	switch filters.Interval {
	case "":
		return s.Telemetry.GetHistory(ctx, deviceID, start, end)
	case "hour":
		return s.Telemetry.GetHourly(ctx, deviceID, start, end)
	}
	return nil, errors.NewValidationError("invalid interval: "+filters.Interval, nil)
}
