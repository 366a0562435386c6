// FilePath: internal/models/models.device.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DeviceState is the externally visible state of a device. It is derived on read and
// never stored.
type DeviceState string

const (
	DeviceStateIdle DeviceState = "IDLE"
	DeviceStateBusy DeviceState = "BUSY"
	DeviceStateDown DeviceState = "DOWN"
)

func (s DeviceState) Valid() bool {
	switch s {
	case DeviceStateIdle, DeviceStateBusy, DeviceStateDown:
		return true
	}
	return false
}

// CameraStatus is the camera part of a device's self-reported sensor status
type CameraStatus struct {
	Recording bool     `json:"recording"`
	Duration  *int     `json:"duration,omitempty"`
	FPS       *float64 `json:"fps,omitempty"`
}

// SensorStatus is stored as JSONB
type SensorStatus struct {
	Camera *CameraStatus `json:"camera"`
}

// Value implements the driver.Valuer interface
func (s SensorStatus) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface
func (s *SensorStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = SensorStatus{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return fmt.Errorf("unsupported sensor_status type %T", value)
}

// SystemInfo is the host telemetry reported with each heartbeat
type SystemInfo struct {
	Uptime    int64   `json:"uptime" db:"uptime"`
	TotalRAM  int64   `json:"total_ram" db:"total_ram"`
	FreeRAM   int64   `json:"free_ram" db:"free_ram"`
	TotalDisk int64   `json:"total_disk" db:"total_disk"`
	FreeDisk  int64   `json:"free_disk" db:"free_disk"`
	Load      float64 `json:"load" db:"load"`
	Release   string  `json:"release" db:"release"`
}

type Device struct {
	ID                int64        `json:"id" db:"id"`
	Name              string       `json:"name" db:"name"`
	LastUpdate        time.Time    `json:"last_update" db:"last_update"`
	LastReportedAt    *time.Time   `json:"last_reported_at,omitempty" db:"last_reported_at"`
	SessionID         *int64       `json:"session_id" db:"session_id"`
	SensorStatus      SensorStatus `json:"sensor_status" db:"sensor_status"`
	SystemInfo        `json:"system_info"`
	Location          *string      `json:"location,omitempty" db:"location"`
	ReportedState     *DeviceState `json:"reported_state,omitempty" db:"reported_state"`
	LastStreamRequest *time.Time   `json:"last_stream_request,omitempty" db:"last_stream_request"`
	CreatedAt         time.Time    `json:"created_at" db:"created_at"`

	// State is filled in by the liveness check before a device leaves a read path
	State DeviceState `json:"state" db:"-"`
}

// IsRecording reports whether the device's camera says it is recording
func (d *Device) IsRecording() bool {
	return d.SensorStatus.Camera != nil && d.SensorStatus.Camera.Recording
}

// InSession reports whether the device points at the given session
func (d *Device) InSession(sessionID int64) bool {
	return d.SessionID != nil && *d.SessionID == sessionID
}
