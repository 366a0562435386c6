// FilePath: internal/models/models.session.go
package models

import (
	"fmt"
	"strings"
	"time"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionComplete   SessionStatus = "COMPLETE"
	SessionCanceled   SessionStatus = "CANCELED"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionInProgress, SessionComplete, SessionCanceled:
		return true
	}
	return false
}

// DeviceStatus is the status of one device within one recording session
type DeviceStatus string

const (
	StatusPending   DeviceStatus = "PENDING"
	StatusRecording DeviceStatus = "RECORDING"
	StatusComplete  DeviceStatus = "COMPLETE"
	StatusFailed    DeviceStatus = "FAILED"
	StatusCanceled  DeviceStatus = "CANCELED"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRecording, StatusComplete, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Active reports whether a device in this status still holds its session
func (s DeviceStatus) Active() bool {
	return s == StatusPending || s == StatusRecording
}

type RecordingSession struct {
	ID             int64         `json:"id" db:"id"`
	Name           string        `json:"name" db:"name"`
	Notes          *string       `json:"notes,omitempty" db:"notes"`
	Duration       int           `json:"duration" db:"duration"`
	FragmentHourly bool          `json:"fragment_hourly" db:"fragment_hourly"`
	TargetFPS      int           `json:"target_fps" db:"target_fps"`
	ApplyFilter    bool          `json:"apply_filter" db:"apply_filter"`
	CreationTime   time.Time     `json:"creation_time" db:"creation_time"`
	Archived       bool          `json:"archived" db:"archived"`
	Status         SessionStatus `json:"status" db:"status"`

	DeviceStatuses []*DeviceSessionStatus `json:"device_statuses" db:"-"`
}

// DeviceSessionStatus is the join record between a device and a session
type DeviceSessionStatus struct {
	DeviceID      int64        `json:"device_id" db:"device_id"`
	SessionID     int64        `json:"session_id" db:"session_id"`
	DeviceName    string       `json:"device_name" db:"device_name"`
	Status        DeviceStatus `json:"status" db:"status"`
	RecordingTime int          `json:"recording_time" db:"recording_time"`
	FilePrefix    string       `json:"file_prefix" db:"file_prefix"`
	Message       *string      `json:"message,omitempty" db:"message"`
}

// DeviceSpec names one device to record with and the file prefix it should use
type DeviceSpec struct {
	DeviceID       int64  `json:"device_id"`
	FilenamePrefix string `json:"filename_prefix"`
}

type CreateSessionRequest struct {
	Name           string       `json:"name"`
	Notes          *string      `json:"notes,omitempty"`
	Duration       int          `json:"duration"`
	FragmentHourly bool         `json:"fragment_hourly"`
	TargetFPS      int          `json:"target_fps"`
	ApplyFilter    bool         `json:"apply_filter"`
	DeviceSpec     []DeviceSpec `json:"device_spec"`
}

// Validate checks the request shape; device existence is checked by the store
func (r *CreateSessionRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is required")
	}
	if r.Duration <= 0 {
		problems = append(problems, "duration must be positive")
	}
	if r.TargetFPS <= 0 {
		problems = append(problems, "target_fps must be positive")
	}
	if len(r.DeviceSpec) == 0 {
		problems = append(problems, "device_spec must name at least one device")
	}

	seen := make(map[int64]bool, len(r.DeviceSpec))
	for _, spec := range r.DeviceSpec {
		if spec.DeviceID <= 0 {
			problems = append(problems, fmt.Sprintf("invalid device_id %d", spec.DeviceID))
			continue
		}
		if seen[spec.DeviceID] {
			problems = append(problems, fmt.Sprintf("device %d listed more than once", spec.DeviceID))
		}
		seen[spec.DeviceID] = true
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// DeviceIDs returns the requested device ids in request order
func (r *CreateSessionRequest) DeviceIDs() []int64 {
	ids := make([]int64, 0, len(r.DeviceSpec))
	for _, spec := range r.DeviceSpec {
		ids = append(ids, spec.DeviceID)
	}
	return ids
}
