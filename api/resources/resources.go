// FilePath: api/resources/resources.go
package resources

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/itsatony/recorderhub/api/middleware"
	"github.com/itsatony/recorderhub/docs"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/hubservice"
	"github.com/itsatony/recorderhub/internal/models"
	"github.com/swaggo/swag"
	nuts "github.com/vaudience/go-nuts"
)

const maxPageSize = 100

// Resources holds all HTTP resource handlers
type Resources struct {
	Heartbeat   *HeartbeatHandlers
	Devices     *DeviceHandlers
	Sessions    *SessionHandlers
	HealthCheck func(w http.ResponseWriter, r *http.Request)
	SwaggerDoc  func(w http.ResponseWriter, r *http.Request)
	Metrics     func(w http.ResponseWriter, r *http.Request)
}

// NewResources creates a new Resources instance
func NewResources(svc *hubservice.HubService) *Resources {
	return &Resources{
		Heartbeat:   &HeartbeatHandlers{hubservice: svc},
		Devices:     &DeviceHandlers{hubservice: svc},
		Sessions:    &SessionHandlers{hubservice: svc},
		HealthCheck: handleHealth,
		SwaggerDoc:  handleSwaggerDoc,
	}
}

// SetMetrics sets the metrics handler
func (r *Resources) SetMetrics(h func(w http.ResponseWriter, r *http.Request)) {
	r.Metrics = h
}

// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": nuts.GetVersion(),
	})
}

var queryDecoder = newQueryDecoder()

// handleSwaggerDoc serves the registered OpenAPI document
func handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		respondWithError(w, r, errors.NewInternalError("failed to read API document", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.RegisterConverter(time.Time{}, func(value string) reflect.Value {
		t, err := models.ParseTimestamp(value)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(t)
	})
	return d
}

// decodeQuery fills dst from the query string and clamps pagination fields
func decodeQuery(r *http.Request, dst interface{}) *errors.APIError {
	if err := queryDecoder.Decode(dst, r.URL.Query()); err != nil {
		return errors.NewValidationError("invalid query parameters", err)
	}
	return nil
}

func clampPage(offset, limit *int) {
	if *offset < 0 {
		*offset = 0
	}
	if *limit > maxPageSize {
		*limit = maxPageSize
	}
}

func pathID(r *http.Request, name string) (int64, *errors.APIError) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError("invalid "+name+": "+raw, err)
	}
	return id, nil
}

func decodeBody(r *http.Request, dst interface{}) *errors.APIError {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.NewValidationError("invalid request body", err)
	}
	return nil
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := errors.AsAPIError(err).WithRequestID(middleware.GetRequestID(r.Context()))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code)
	json.NewEncoder(w).Encode(apiErr)
	if apiErr.Code >= http.StatusInternalServerError {
		nuts.L.Errorf("[API] %s %s: %s", r.Method, r.URL.Path, apiErr.Error())
	} else {
		nuts.L.Debugf("[API] %s %s: %s", r.Method, r.URL.Path, apiErr.Error())
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
