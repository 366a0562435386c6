package registry

import (
	"time"

	"github.com/itsatony/recorderhub/internal/models"
)

// Classify derives the externally visible state of a device. A device that has not
// been heard from for longer than downThreshold is DOWN regardless of its session.
func Classify(device *models.Device, now time.Time, downThreshold time.Duration) models.DeviceState {
	if now.Sub(device.LastUpdate) > downThreshold {
		return models.DeviceStateDown
	}
	if device.SessionID != nil {
		return models.DeviceStateBusy
	}
	return models.DeviceStateIdle
}

// Snapshot fills in the derived state of device and returns it
func (r *Registry) Snapshot(device *models.Device) *models.Device {
	device.State = Classify(device, r.clock.Now(), r.downThreshold)
	return device
}

// SnapshotAll applies Snapshot to every device using one reference time
func (r *Registry) SnapshotAll(devices []*models.Device) []*models.Device {
	now := r.clock.Now()
	for _, device := range devices {
		device.State = Classify(device, now, r.downThreshold)
	}
	return devices
}

// DownCutoff is the last_update before which a device counts as DOWN
func (r *Registry) DownCutoff() time.Time {
	return r.clock.Now().Add(-r.downThreshold)
}
