package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/itsatony/recorderhub/api/middleware"
	"github.com/itsatony/recorderhub/api/resources"
	"github.com/itsatony/recorderhub/internal/hubservice"
	nuts "github.com/vaudience/go-nuts"
)

type Router struct {
	router    *mux.Router
	resources *resources.Resources
	handler   http.Handler
}

// RouterConfig carries the HTTP-level options of the router
type RouterConfig struct {
	AllowedOrigins []string
	MetricsPath    string
}

func NewRouter(svc *hubservice.HubService, cfg RouterConfig) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		resources: resources.NewResources(svc),
	}
	if svc.Metrics != nil {
		r.resources.SetMetrics(svc.Metrics.Handler().ServeHTTP)
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	if svc.Metrics != nil {
		r.router.Use(svc.Metrics.Middleware)
	}
	r.setupRoutes(cfg)

	var h http.Handler = r.router
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{}), handlers.PrintRecoveryStack(true))(h)
	if len(cfg.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(cfg.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", middleware.RequestIDHeader}),
			handlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
		)(h)
	}
	r.handler = middleware.RequestID(h)
	return r
}

func (r *Router) setupRoutes(cfg RouterConfig) {
	r.router.HandleFunc("/health", r.resources.HealthCheck).Methods(http.MethodGet)
	if r.resources.Metrics != nil {
		r.router.HandleFunc(cfg.MetricsPath, r.resources.Metrics).Methods(http.MethodGet)
	}

	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", r.resources.HealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/swagger/doc.json", r.resources.SwaggerDoc).Methods(http.MethodGet)

	// Devices
	api.HandleFunc("/device/heartbeat", r.resources.Heartbeat.Heartbeat).Methods(http.MethodPost)

	devices := api.PathPrefix("/devices").Subrouter()
	devices.HandleFunc("", r.resources.Devices.ListDevices).Methods(http.MethodGet)
	devices.HandleFunc("/name/{name}", r.resources.Devices.GetDeviceByName).Methods(http.MethodGet)
	devices.HandleFunc("/{id:[0-9]+}", r.resources.Devices.GetDevice).Methods(http.MethodGet)
	devices.HandleFunc("/{id:[0-9]+}/stream", r.resources.Devices.RequestLiveStream).Methods(http.MethodPost)
	devices.HandleFunc("/{id:[0-9]+}/telemetry", r.resources.Devices.GetTelemetry).Methods(http.MethodGet)

	// Recording sessions
	sessions := api.PathPrefix("/recording-sessions").Subrouter()
	sessions.HandleFunc("", r.resources.Sessions.ListSessions).Methods(http.MethodGet)
	sessions.HandleFunc("", r.resources.Sessions.CreateSession).Methods(http.MethodPost)
	sessions.HandleFunc("/{id:[0-9]+}", r.resources.Sessions.GetSession).Methods(http.MethodGet)
	sessions.HandleFunc("/{id:[0-9]+}", r.resources.Sessions.CancelSession).Methods(http.MethodDelete)
	sessions.HandleFunc("/{id:[0-9]+}/archive", r.resources.Sessions.ArchiveSession).Methods(http.MethodPost)
	sessions.HandleFunc("/{id:[0-9]+}/device-status/{device_id:[0-9]+}", r.resources.Sessions.GetDeviceStatus).Methods(http.MethodGet)
	sessions.HandleFunc("/{id:[0-9]+}/devices/{device_id:[0-9]+}", r.resources.Sessions.RemoveDevice).Methods(http.MethodDelete)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	nuts.L.Errorf("[API] recovered from panic: %v", v)
}
