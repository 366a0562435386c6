// FilePath: internal/models/models.heartbeat.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestamp layouts accepted from devices, tried in order. Layouts without a zone
// are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp, defaulting to UTC
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", value)
}

// HeartbeatRequest is the payload a device sends on every poll
type HeartbeatRequest struct {
	Name         string        `json:"name"`
	Timestamp    string        `json:"timestamp"`
	SessionID    *int64        `json:"session_id,omitempty"`
	ErrMsg       *string       `json:"err_msg,omitempty"`
	State        *DeviceState  `json:"state,omitempty"`
	SensorStatus *SensorStatus `json:"sensor_status"`
	SystemInfo   *SystemInfo   `json:"system_info"`
	Location     *string       `json:"location,omitempty"`

	// ObservedAt is the parsed Timestamp, set by Validate
	ObservedAt time.Time `json:"-"`
}

// Validate rejects malformed heartbeats before anything is written
func (h *HeartbeatRequest) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if h.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}
	ts, err := ParseTimestamp(h.Timestamp)
	if err != nil {
		return err
	}
	h.ObservedAt = ts

	if h.SensorStatus == nil || h.SensorStatus.Camera == nil {
		return fmt.Errorf("sensor_status.camera is required")
	}
	if d := h.SensorStatus.Camera.Duration; d != nil && *d < 0 {
		return fmt.Errorf("sensor_status.camera.duration must not be negative")
	}
	if h.SystemInfo == nil {
		return fmt.Errorf("system_info is required")
	}
	if h.State != nil && *h.State != DeviceStateIdle && *h.State != DeviceStateBusy {
		return fmt.Errorf("invalid state %q", *h.State)
	}
	if h.SessionID != nil && *h.SessionID <= 0 {
		return fmt.Errorf("invalid session_id %d", *h.SessionID)
	}
	return nil
}

// CameraRecording reports the camera recording flag
func (h *HeartbeatRequest) CameraRecording() bool {
	return h.SensorStatus != nil && h.SensorStatus.Camera != nil && h.SensorStatus.Camera.Recording
}

// ReportedDuration returns the cumulative recording duration, zero when absent
func (h *HeartbeatRequest) ReportedDuration() int {
	if h.SensorStatus == nil || h.SensorStatus.Camera == nil || h.SensorStatus.Camera.Duration == nil {
		return 0
	}
	return *h.SensorStatus.Camera.Duration
}

// ErrorMessage returns the device's error message, "" when absent
func (h *HeartbeatRequest) ErrorMessage() string {
	if h.ErrMsg == nil {
		return ""
	}
	return strings.TrimSpace(*h.ErrMsg)
}

type CommandName string

const (
	CommandStart    CommandName = "START"
	CommandStop     CommandName = "STOP"
	CommandComplete CommandName = "COMPLETE"
	CommandStream   CommandName = "STREAM"
)

// Command is the optional instruction returned in a heartbeat reply
type Command struct {
	Name       CommandName `json:"command_name"`
	Parameters string      `json:"parameters,omitempty"`
}

// StartParameters are serialized into the parameters of a START command
type StartParameters struct {
	SessionID      int64  `json:"session_id"`
	Duration       int    `json:"duration"`
	FragmentHourly bool   `json:"fragment_hourly"`
	FilePrefix     string `json:"file_prefix"`
	TargetFPS      int    `json:"target_fps"`
	ApplyFilter    bool   `json:"apply_filter"`
}

// NewStartCommand builds the START command for a pending device
func NewStartCommand(session *RecordingSession, status *DeviceSessionStatus) (*Command, error) {
	params, err := json.Marshal(StartParameters{
		SessionID:      session.ID,
		Duration:       session.Duration,
		FragmentHourly: session.FragmentHourly,
		FilePrefix:     status.FilePrefix,
		TargetFPS:      session.TargetFPS,
		ApplyFilter:    session.ApplyFilter,
	})
	if err != nil {
		return nil, err
	}
	return &Command{Name: CommandStart, Parameters: string(params)}, nil
}
