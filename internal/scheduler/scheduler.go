// Package scheduler runs periodic maintenance jobs for the engine,
// independent of the push-based registry notification path: mainly a
// heartbeat sweep over every registered concept so an unresponsive
// concept is detected even without an inbound completion to trigger
// Resolve/Query against it.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/concordhq/concord/internal/logging"
	"github.com/concordhq/concord/internal/registry"
)

// Scheduler manages cron-scheduled maintenance jobs against the
// registry.
type Scheduler struct {
	cron    *cron.Cron
	reg     *registry.Registry
	entries map[string]cron.EntryID
	mu      sync.Mutex
}

// New creates a Scheduler bound to reg.
func New(reg *registry.Registry) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor))),
		reg:     reg,
		entries: make(map[string]cron.EntryID),
	}
}

// AddHeartbeatSweep registers a recurring job, on cronExpr, that
// heartbeats every registered concept. Returns a job id usable with
// Remove.
func (s *Scheduler) AddHeartbeatSweep(id, cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.sweep(id)
	})
	if err != nil {
		return err
	}
	s.entries[id] = entryID
	return nil
}

// Remove unregisters a job.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	logging.Op().Info("scheduler started")
}

// Stop halts the cron scheduler and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logging.Op().Info("scheduler stopped")
}

func (s *Scheduler) sweep(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	s.reg.HeartbeatAll(ctx)
	logging.Op().Debug("heartbeat sweep completed", "job", id, "duration_ms", time.Since(start).Milliseconds())
}
