package models

import "time"

// DeviceFilters defines the available filter options for device listings
type DeviceFilters struct {
	State  DeviceState `schema:"state"`
	Offset int         `schema:"offset"`
	Limit  int         `schema:"limit"`
}

// SessionFilters defines the available filter options for session listings
type SessionFilters struct {
	Archived bool `schema:"archived"`
	Offset   int  `schema:"offset"`
	Limit    int  `schema:"limit"`
}

// TelemetryFilters selects a device's telemetry history. Interval is "" for raw
// points or "hour" for hourly rollups.
type TelemetryFilters struct {
	Start    time.Time `schema:"start"`
	End      time.Time `schema:"end"`
	Interval string    `schema:"interval"`
}
