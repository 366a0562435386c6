// FilePath: api/resources/api.resource.heartbeat.go
package resources

import (
	"net/http"

	"github.com/itsatony/recorderhub/internal/hubservice"
	"github.com/itsatony/recorderhub/internal/models"
)

// HeartbeatHandlers encapsulates the device-facing HTTP handlers
type HeartbeatHandlers struct {
	hubservice *hubservice.HubService
}

// @Summary Device heartbeat
// @Description Report device status and receive at most one command
// @Tags devices
// @Accept json
// @Produce json
// @Param heartbeat body models.HeartbeatRequest true "Heartbeat payload"
// @Success 200 {object} models.Command
// @Success 204 "No command"
// @Failure 400 {object} errors.APIError
// @Failure 409 {object} errors.APIError
// @Failure 503 {object} errors.APIError
// @Router /device/heartbeat [post]
func (h *HeartbeatHandlers) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var hb models.HeartbeatRequest
	if err := decodeBody(r, &hb); err != nil {
		respondWithError(w, r, err)
		return
	}

	cmd, err := h.hubservice.ProcessHeartbeat(r.Context(), &hb)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if cmd == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondWithJSON(w, http.StatusOK, cmd)
}
