// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/itsatony/recorderhub/api"
	"github.com/itsatony/recorderhub/internal/config"
	"github.com/itsatony/recorderhub/internal/coordination"
	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/hubservice"
	"github.com/itsatony/recorderhub/internal/maintenance"
	"github.com/itsatony/recorderhub/internal/monitoring"
	"github.com/itsatony/recorderhub/internal/registry"
	"github.com/itsatony/recorderhub/internal/repository/postgres"
	"github.com/itsatony/recorderhub/internal/repository/timescale"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"
)

const maintenanceLeaseKey = "recorderhub:maintenance"

// Server represents our HTTP server
type Server struct {
	config      *config.Config
	srv         *http.Server
	hubservice  *hubservice.HubService
	monitoring  *monitoring.Service
	maintenance *maintenance.Service

	appDB  database.DB
	tsdb   database.DB
	redis  *redis.Client
	cancel context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config: cfg,
		srv:    srv,
	}
}

// Start wires all components, begins listening for requests and blocks until shutdown
func (s *Server) Start() error {
	clock := clockwork.NewRealClock()
	s.monitoring = monitoring.NewService(prometheus.NewRegistry())

	if err := s.initializeHubService(clock); err != nil {
		s.closeConnections()
		return err
	}

	router := api.NewRouter(s.hubservice, api.RouterConfig{
		AllowedOrigins: s.config.Server.AllowedOrigins,
		MetricsPath:    s.config.Monitoring.MetricsPath,
	})
	s.srv.Handler = handlers.CombinedLoggingHandler(os.Stdout, router)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.initializeMaintenance(clock)
	go s.maintenance.Start(ctx)

	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	s.cancel()
	s.closeConnections()
	if err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

func (s *Server) closeConnections() {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.tsdb != nil {
		s.tsdb.Close()
	}
	if s.appDB != nil {
		s.appDB.Close()
	}
}

// initializeHubService connects the stores and builds the hub service
func (s *Server) initializeHubService(clock clockwork.Clock) error {
	appDB, err := initAppDB(s.config.Database.AppDB)
	if err != nil {
		return err
	}
	s.appDB = appDB

	repos := hubservice.Repositories{
		Devices:  postgres.NewDeviceRepository(appDB),
		Sessions: postgres.NewSessionRepository(appDB),
		Statuses: postgres.NewStatusRepository(appDB),
	}

	if s.config.Database.TimescaleDB.Enabled() {
		tsdb, err := initTimescaleDB(s.config.Database.TimescaleDB)
		if err != nil {
			return err
		}
		s.tsdb = tsdb
		telemetry, err := timescale.NewTelemetryRepository(tsdb, s.config.Fleet.TelemetryRetention)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry repository: %w", err)
		}
		repos.Telemetry = telemetry
	} else {
		nuts.L.Infof("[Server] TimescaleDB not configured, telemetry history disabled")
	}

	fleet := s.config.Fleet
	runner := database.NewRunner(appDB, fleet.LockTimeout, fleet.StatementTimeout)
	s.hubservice = hubservice.New(runner, repos, s.monitoring, clock, registry.Config{
		DownThreshold:   fleet.DownThreshold,
		StreamKeepAlive: fleet.StreamKeepAlive,
	})
	return s.hubservice.Validate()
}

// initializeMaintenance builds the periodic task runner. With redis configured the
// tasks run on one instance at a time.
func (s *Server) initializeMaintenance(clock clockwork.Clock) {
	fleet := s.config.Fleet

	var leader maintenance.Leader
	holder := "local"
	if s.config.Redis.Enabled() {
		client, err := database.NewRedisClient(s.config.Redis)
		if err != nil {
			nuts.L.Warnf("[Server] Redis unavailable, maintenance runs without a lease: %v", err)
		} else {
			s.redis = client
			instanceID := fleet.InstanceID
			if instanceID == "" {
				instanceID = nuts.NID("hub", 12)
			}
			lease := coordination.NewLease(client, instanceID, maintenanceLeaseKey, fleet.LeaderTTL)
			holder = lease.InstanceID()
			leader = lease
		}
	}

	var pruner maintenance.Pruner
	if s.hubservice.Telemetry != nil {
		pruner = s.hubservice.Telemetry
	}

	s.maintenance = maintenance.New(maintenance.Config{
		Interval:  fleet.MaintenanceInterval,
		Retention: fleet.TelemetryRetention,
	}, s.hubservice, pruner, leader, clock)
	s.setupMaintenanceHandlers(holder)
}

func (s *Server) setupMaintenanceHandlers(holder string) {
	handlers := map[string]interface{}{
		maintenance.EventSessionsCompleted: func(ids []int64) {
			nuts.L.Infof("[Maintenance] Sessions %v completed", ids)
		},
		maintenance.EventTelemetryPruned: func(deleted int64) {
			nuts.L.Infof("[Maintenance] %d telemetry points pruned", deleted)
			s.monitoring.RecordEvent("telemetry.pruned", nil)
		},
		maintenance.EventLeadershipChanged: func(leading bool) {
			nuts.L.Infof("[Maintenance] Instance %s leading=%v", holder, leading)
			s.monitoring.RecordEvent("maintenance.leadership", map[string]string{
				"leading": fmt.Sprintf("%v", leading),
			})
		},
	}
	for event, handler := range handlers {
		if err := s.maintenance.On(event, handler); err != nil {
			nuts.L.Warnf("[Server] %v", err)
		}
	}
}

func initTimescaleDB(cfg config.PostgresConfig) (database.DB, error) {
	db, err := database.NewTimescaleDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to TimescaleDB: %w", err)
	}
	if err := pingWithTimeout(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping TimescaleDB: %w", err)
	}
	return db, nil
}

func initAppDB(cfg config.PostgresConfig) (database.DB, error) {
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AppDB: %w", err)
	}
	if err := pingWithTimeout(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping AppDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := postgres.InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func pingWithTimeout(db database.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.Ping(ctx)
}
