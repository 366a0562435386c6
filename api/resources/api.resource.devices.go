// FilePath: api/resources/api.resource.devices.go
package resources

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/itsatony/recorderhub/internal/hubservice"
	"github.com/itsatony/recorderhub/internal/models"
)

// DeviceHandlers encapsulates the device-related HTTP handlers
type DeviceHandlers struct {
	hubservice *hubservice.HubService
}

// @Summary List devices
// @Description Get a paginated list of devices, optionally filtered by derived state
// @Tags devices
// @Produce json
// @Param state query string false "IDLE, BUSY or DOWN"
// @Param offset query int false "Offset for pagination"
// @Param limit query int false "Limit for pagination"
// @Success 200 {array} models.Device
// @Failure 400 {object} errors.APIError
// @Router /devices [get]
func (h *DeviceHandlers) ListDevices(w http.ResponseWriter, r *http.Request) {
	var filters models.DeviceFilters
	if err := decodeQuery(r, &filters); err != nil {
		respondWithError(w, r, err)
		return
	}
	clampPage(&filters.Offset, &filters.Limit)

	devices, err := h.hubservice.ListDevices(r.Context(), filters)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, devices)
}

// @Summary Get a device by ID
// @Tags devices
// @Produce json
// @Param id path int true "Device ID"
// @Success 200 {object} models.Device
// @Failure 404 {object} errors.APIError
// @Router /devices/{id} [get]
func (h *DeviceHandlers) GetDevice(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r, "id")
	if apiErr != nil {
		respondWithError(w, r, apiErr)
		return
	}

	device, err := h.hubservice.GetDevice(r.Context(), id)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, device)
}

// @Summary Get a device by name
// @Tags devices
// @Produce json
// @Param name path string true "Device name"
// @Success 200 {object} models.Device
// @Failure 404 {object} errors.APIError
// @Router /devices/name/{name} [get]
func (h *DeviceHandlers) GetDeviceByName(w http.ResponseWriter, r *http.Request) {
	device, err := h.hubservice.GetDeviceByName(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, device)
}

// @Summary Request a live stream
// @Description Start or extend the live stream of a recording device. Resubmit periodically to keep it alive.
// @Tags devices
// @Param id path int true "Device ID"
// @Success 204 "No Content"
// @Failure 404 {object} errors.APIError
// @Failure 422 {object} errors.APIError
// @Router /devices/{id}/stream [post]
func (h *DeviceHandlers) RequestLiveStream(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r, "id")
	if apiErr != nil {
		respondWithError(w, r, apiErr)
		return
	}

	if _, err := h.hubservice.RequestLiveStream(r.Context(), id); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Get device telemetry
// @Description Telemetry history of a device, raw or as hourly rollups
// @Tags devices
// @Produce json
// @Param id path int true "Device ID"
// @Param start query string false "Start time (RFC3339)"
// @Param end query string false "End time (RFC3339)"
// @Param interval query string false "empty for raw points, hour for rollups"
// @Success 200 {array} models.TelemetryPoint
// @Failure 400 {object} errors.APIError
// @Failure 503 {object} errors.APIError
// @Router /devices/{id}/telemetry [get]
func (h *DeviceHandlers) GetTelemetry(w http.ResponseWriter, r *http.Request) {
	id, apiErr := pathID(r, "id")
	if apiErr != nil {
		respondWithError(w, r, apiErr)
		return
	}
	var filters models.TelemetryFilters
	if err := decodeQuery(r, &filters); err != nil {
		respondWithError(w, r, err)
		return
	}

	points, err := h.hubservice.GetTelemetry(r.Context(), id, filters)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, points)
}
