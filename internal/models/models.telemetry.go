// FilePath: internal/models/models.telemetry.go
package models

import "time"

// TelemetryPoint is one heartbeat's host telemetry, kept as history in TimescaleDB
type TelemetryPoint struct {
	ID         string    `json:"id" db:"id"`
	DeviceID   int64     `json:"device_id" db:"device_id"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
	Recording  bool      `json:"recording" db:"recording"`
	FPS        *float64  `json:"fps,omitempty" db:"fps"`
	SystemInfo `json:"system_info"`
}

// TelemetryAggregate is an hourly rollup of a device's telemetry
type TelemetryAggregate struct {
	DeviceID     int64     `json:"device_id" db:"device_id"`
	Bucket       time.Time `json:"bucket" db:"bucket"`
	AvgLoad      float64   `json:"avg_load" db:"avg_load"`
	MinFreeRAM   int64     `json:"min_free_ram" db:"min_free_ram"`
	MinFreeDisk  int64     `json:"min_free_disk" db:"min_free_disk"`
	Heartbeats   int       `json:"heartbeats" db:"heartbeats"`
	RecordingPct float64   `json:"recording_pct" db:"recording_pct"`
}

// NewTelemetryPoint captures the telemetry of a device after a heartbeat
func NewTelemetryPoint(device *Device) *TelemetryPoint {
	point := &TelemetryPoint{
		DeviceID:   device.ID,
		Timestamp:  device.LastUpdate,
		Recording:  device.IsRecording(),
		SystemInfo: device.SystemInfo,
	}
	if device.SensorStatus.Camera != nil {
		point.FPS = device.SensorStatus.Camera.FPS
	}
	return point
}
