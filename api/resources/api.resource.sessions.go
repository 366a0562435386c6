// FilePath: api/resources/api.resource.sessions.go
package resources

import (
	"net/http"
	"strconv"

	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/hubservice"
	"github.com/itsatony/recorderhub/internal/models"
)

// SessionHandlers encapsulates the recording-session HTTP handlers
type SessionHandlers struct {
	hubservice *hubservice.HubService
}

// @Summary List recording sessions
// @Description Newest first; archived and active sessions are listed separately
// @Tags sessions
// @Produce json
// @Param archived query bool false "List archived sessions"
// @Param offset query int false "Offset for pagination"
// @Param limit query int false "Limit for pagination"
// @Success 200 {array} models.RecordingSession
// @Router /recording-sessions [get]
func (h *SessionHandlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	var filters models.SessionFilters
	if err := decodeQuery(r, &filters); err != nil {
		respondWithError(w, r, err)
		return
	}
	clampPage(&filters.Offset, &filters.Limit)

	sessions, err := h.hubservice.ListSessions(r.Context(), filters)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sessions)
}

// @Summary Create a recording session
// @Description Busy devices are reported with a FAILED status instead of failing the request
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body models.CreateSessionRequest true "Session details"
// @Success 201 {object} models.RecordingSession
// @Failure 400 {object} errors.APIError
// @Failure 503 {object} errors.APIError
// @Router /recording-sessions [post]
func (h *SessionHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, r, err)
		return
	}

	session, err := h.hubservice.CreateSession(r.Context(), &req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, session)
}

// @Summary Get a recording session
// @Tags sessions
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} models.RecordingSession
// @Failure 404 {object} errors.APIError
// @Router /recording-sessions/{id} [get]
func (h *SessionHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r, "id")
	if apiErr != nil {
		respondWithError(w, r, apiErr)
		return
	}

	session, err := h.hubservice.GetSession(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session)
}

// @Summary Cancel a recording session
// @Description Cancels all active devices; with archive=true the session is also archived
// @Tags sessions
// @Produce json
// @Param id path int true "Session ID"
// @Param archive query bool false "Archive the session as well"
// @Success 200 {object} models.RecordingSession
// @Failure 404 {object} errors.APIError
// @Router /recording-sessions/{id} [delete]
func (h *SessionHandlers) CancelSession(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r, "id")
	if apiErr != nil {
		respondWithError(w, r, apiErr)
		return
	}
	archive := false
	if raw := r.URL.Query().Get("archive"); raw != "" {
		var err error
		if archive, err = strconv.ParseBool(raw); err != nil {
			respondWithError(w, r, errors.NewValidationError("invalid archive flag: "+raw, err))
			return
		}
	}

	session, err := h.hubservice.CancelSession(r.Context(), id, archive)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session)
}

// @Summary Archive a recording session
// @Description Hides the session from the active listing; its status is unchanged
// @Tags sessions
// @Produce json
// @Param id path int true "Session ID"
// @Success 200 {object} models.RecordingSession
// @Failure 404 {object} errors.APIError
// @Router /recording-sessions/{id}/archive [post]
func (h *SessionHandlers) ArchiveSession(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r, "id")
	if apiErr != nil {
		respondWithError(w, r, apiErr)
		return
	}

	session, err := h.hubservice.ArchiveSession(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session)
}

// @Summary Get a device's status in a session
// @Tags sessions
// @Produce json
// @Param id path int true "Session ID"
// @Param device_id path int true "Device ID"
// @Success 200 {object} models.DeviceSessionStatus
// @Failure 404 {object} errors.APIError
// @Router /recording-sessions/{id}/device-status/{device_id} [get]
func (h *SessionHandlers) GetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, deviceID, apiErr := sessionAndDevice(r)
	if apiErr != nil {
		respondWithError(w, r, apiErr)
		return
	}

	status, err := h.hubservice.GetDeviceStatus(r.Context(), sessionID, deviceID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

// @Summary Remove a device from a session
// @Description Cancels the device's participation; the device is released on its next heartbeat
// @Tags sessions
// @Produce json
// @Param id path int true "Session ID"
// @Param device_id path int true "Device ID"
// @Success 200 {object} models.DeviceSessionStatus
// @Failure 404 {object} errors.APIError
// @Router /recording-sessions/{id}/devices/{device_id} [delete]
func (h *SessionHandlers) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	sessionID, deviceID, apiErr := sessionAndDevice(r)
	if apiErr != nil {
		respondWithError(w, r, apiErr)
		return
	}

	status, err := h.hubservice.RemoveDevice(r.Context(), sessionID, deviceID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

func sessionAndDevice(r *http.Request) (int64, int64, *errors.APIError) {
	sessionID, err := pathID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	deviceID, err := pathID(r, "device_id")
	if err != nil {
		return 0, 0, err
	}
	return sessionID, deviceID, nil
}
