// Package maintenance runs the periodic fleet housekeeping: completing finished
// sessions and pruning old telemetry.
package maintenance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	nuts "github.com/vaudience/go-nuts"
)

// Events emitted after each successful task
const (
	EventSessionsCompleted = "sessions.completed"
	EventTelemetryPruned   = "telemetry.pruned"
	EventLeadershipChanged = "leadership.changed"
)

// Completer flips finished sessions to COMPLETE
type Completer interface {
	CompleteSessions(ctx context.Context) ([]int64, error)
}

// Pruner deletes telemetry recorded before a point in time
type Pruner interface {
	DeleteOldData(ctx context.Context, before time.Time) (int64, error)
}

// Leader decides whether this instance may run the tasks
type Leader interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

// Service coordinates the periodic tasks. Pruner and Leader are optional; without
// a Leader every instance runs the tasks.
type Service struct {
	completer Completer
	pruner    Pruner
	leader    Leader
	clock     clockwork.Clock
	cfg       Config
	events    *nuts.EventEmitter
	handlers  atomic.Int64
	isLeader  bool
}

// New creates a new maintenance Service
func New(cfg Config, completer Completer, pruner Pruner, leader Leader, clock clockwork.Clock) *Service {
	return &Service{
		completer: completer,
		pruner:    pruner,
		leader:    leader,
		clock:     clock,
		cfg:       cfg,
		events:    nuts.NewEventEmitter(),
	}
}

// On registers a callback for maintenance events. The handler must accept the
// event payload: []int64 for sessions.completed, int64 for telemetry.pruned and
// bool for leadership.changed.
func (s *Service) On(event string, handler interface{}) error {
	id := fmt.Sprintf("maintenance_handler_%d", s.handlers.Add(1))
	if _, err := s.events.On(event, id, handler); err != nil {
		return fmt.Errorf("failed to register %s handler: %w", event, err)
	}
	return nil
}

func (s *Service) emit(event string, payload interface{}) {
	if err := s.events.Emit(event, payload); err != nil {
		nuts.L.Warnf("[Maintenance] Handler for %s failed: %v", event, err)
	}
}

// RunOnce runs every task once if this instance holds the lease
func (s *Service) RunOnce(ctx context.Context) error {
	if s.leader != nil {
		leading, err := s.leader.TryAcquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire maintenance lease: %w", err)
		}
		if leading != s.isLeader {
			s.isLeader = leading
			nuts.L.Infof("[Maintenance] Leadership changed: leading=%v", leading)
			s.emit(EventLeadershipChanged, leading)
		}
		if !leading {
			return nil
		}
	}

	ids, err := s.completer.CompleteSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to complete sessions: %w", err)
	}
	if len(ids) > 0 {
		s.emit(EventSessionsCompleted, ids)
	}

	if s.pruner != nil && s.cfg.Retention > 0 {
		before := s.clock.Now().Add(-s.cfg.Retention)
		deleted, err := s.pruner.DeleteOldData(ctx, before)
		if err != nil {
			return fmt.Errorf("failed to prune telemetry: %w", err)
		}
		if deleted > 0 {
			nuts.L.Infof("[Maintenance] Pruned %d telemetry points older than %v", deleted, before)
			s.emit(EventTelemetryPruned, deleted)
		}
	}
	return nil
}

// Start runs the tasks immediately and then on every interval until ctx is done.
// The lease is released on the way out.
func (s *Service) Start(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	nuts.L.Infof("[Maintenance] Started with interval %v", s.cfg.Interval)
	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			nuts.L.Warnf("[Maintenance] Run failed: %v", err)
		}

		select {
		case <-ctx.Done():
			s.release()
			return
		case <-ticker.Chan():
		}
	}
}

func (s *Service) release() {
	if s.leader == nil || !s.isLeader {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.leader.Release(ctx); err != nil {
		nuts.L.Warnf("[Maintenance] Failed to release lease: %v", err)
	}
	s.isLeader = false
}
