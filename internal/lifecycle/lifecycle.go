// Package lifecycle holds the transition table for a device's status within a
// recording session.
package lifecycle

import (
	"fmt"

	"github.com/itsatony/recorderhub/internal/models"
)

// Event is something that happens to a device inside a session
type Event string

const (
	EventJoin   Event = "join"
	EventFinish Event = "finish"
	EventFail   Event = "fail"
	EventCancel Event = "cancel"
)

type transition struct {
	from  models.DeviceStatus
	event Event
}

var table = map[transition]models.DeviceStatus{
	{models.StatusPending, EventJoin}: models.StatusRecording,

	{models.StatusPending, EventFinish}:   models.StatusComplete,
	{models.StatusRecording, EventFinish}: models.StatusComplete,

	{models.StatusPending, EventFail}:   models.StatusFailed,
	{models.StatusRecording, EventFail}: models.StatusFailed,

	{models.StatusPending, EventCancel}:   models.StatusCanceled,
	{models.StatusRecording, EventCancel}: models.StatusCanceled,
}

// TransitionError reports an event that is not allowed in the current status
type TransitionError struct {
	From  models.DeviceStatus
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a device session status in state %s", e.Event, e.From)
}

// Next returns the status reached by applying event to current
func Next(current models.DeviceStatus, event Event) (models.DeviceStatus, error) {
	next, ok := table[transition{current, event}]
	if !ok {
		return "", &TransitionError{From: current, Event: event}
	}
	return next, nil
}

// EventFor maps a requested target status to the event producing it
func EventFor(target models.DeviceStatus) (Event, error) {
	switch target {
	case models.StatusRecording:
		return EventJoin, nil
	case models.StatusComplete:
		return EventFinish, nil
	case models.StatusFailed:
		return EventFail, nil
	case models.StatusCanceled:
		return EventCancel, nil
	}
	return "", fmt.Errorf("no event leads to status %s", target)
}
