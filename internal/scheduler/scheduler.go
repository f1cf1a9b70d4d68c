// Package scheduler runs the periodic step loop for every configured
// campaign.
package scheduler

import (
	"sync"

	"github.com/evren/tiersim/internal/simulation"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler advances every configured campaign on a cron cadence. Steps for
// different campaigns run from the same cron entry, sequentially, so two
// steps never contend for the simulation database write lock.
type Scheduler struct {
	service   *simulation.Service
	cron      *cron.Cron
	campaigns []int64
	spec      string
	mu        sync.Mutex
	log       zerolog.Logger
}

// New creates a new step scheduler
func New(service *simulation.Service, campaigns []int64, spec string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		service:   service,
		campaigns: campaigns,
		spec:      spec,
		cron:      cron.New(),
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the step job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().Str("cadence", s.spec).Ints64("campaigns", s.campaigns).Msg("Step scheduler started")
	return nil
}

// Stop stops the cron loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	// A tick started before Stop may still be mid-step.
	s.mu.Lock()
	s.mu.Unlock()
	s.log.Info().Msg("Step scheduler stopped")
}

// RunOnce advances every campaign by one step immediately. Used by the
// dev-mode fast loop and by operators forcing a step.
func (s *Scheduler) RunOnce() {
	s.tick()
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, campaignID := range s.campaigns {
		step, err := s.service.NextStep(campaignID)
		if err != nil {
			s.log.Error().Err(err).Int64("campaign_id", campaignID).Msg("Failed to determine next step")
			continue
		}

		if _, err := s.service.AdvanceStep(campaignID, step); err != nil {
			s.log.Error().Err(err).Int64("campaign_id", campaignID).Int64("step", step).Msg("Simulation step failed")
		}
	}
}
