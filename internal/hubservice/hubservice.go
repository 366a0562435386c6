package hubservice

import (
	"github.com/itsatony/recorderhub/internal/database"
	"github.com/itsatony/recorderhub/internal/errors"
	"github.com/itsatony/recorderhub/internal/heartbeat"
	"github.com/itsatony/recorderhub/internal/monitoring"
	"github.com/itsatony/recorderhub/internal/registry"
	"github.com/itsatony/recorderhub/internal/repository"
	"github.com/itsatony/recorderhub/internal/sessions"
	"github.com/itsatony/recorderhub/internal/tracker"
	"github.com/jonboulle/clockwork"
)

// Repositories bundles the persistence the hub is built on. Telemetry is optional.
type Repositories struct {
	Devices   repository.DeviceRepository
	Sessions  repository.SessionRepository
	Statuses  repository.StatusRepository
	Telemetry repository.TelemetryRepository
}

// HubService wires the fleet components and owns the transaction boundaries
type HubService struct {
	Runner    database.TxRunner
	Registry  *registry.Registry
	Tracker   *tracker.Tracker
	Sessions  *sessions.Store
	Resolver  *heartbeat.Resolver
	Telemetry repository.TelemetryRepository
	Metrics   *monitoring.Service

	clock clockwork.Clock
}

// New creates a new HubService instance
func New(
	runner database.TxRunner,
	repos Repositories,
	metrics *monitoring.Service,
	clock clockwork.Clock,
	cfg registry.Config,
) *HubService {
	svc := &HubService{
		Runner:    runner,
		Telemetry: repos.Telemetry,
		Metrics:   metrics,
		clock:     clock,
	}
	if repos.Statuses != nil {
		svc.Tracker = tracker.New(repos.Statuses)
	}
	if repos.Devices != nil && svc.Tracker != nil {
		svc.Registry = registry.New(repos.Devices, svc.Tracker, clock, cfg)
	}
	if repos.Sessions != nil && svc.Registry != nil {
		svc.Sessions = sessions.New(runner, repos.Sessions, repos.Statuses, svc.Registry, svc.Tracker, clock)
		var recorder heartbeat.Recorder
		if metrics != nil {
			recorder = metrics
		}
		svc.Resolver = heartbeat.New(svc.Registry, svc.Tracker, repos.Sessions, recorder)
	}
	return svc
}

// Validate checks if all required components are initialized
func (s *HubService) Validate() error {
	if s.Runner == nil {
		return ErrMissingComponent("transaction runner")
	}
	if s.Tracker == nil {
		return ErrMissingRepository("statuses")
	}
	if s.Registry == nil {
		return ErrMissingRepository("devices")
	}
	if s.Sessions == nil || s.Resolver == nil {
		return ErrMissingRepository("sessions")
	}
	if s.Metrics == nil {
		return ErrMissingComponent("metrics")
	}
	return nil
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}

func ErrMissingComponent(name string) error {
	return errors.NewInternalError("missing component: "+name, nil)
}
