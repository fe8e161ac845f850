package service

import (
	"context"
	"time"

	"slotline/pkg/config"
)

// Sweeper periodically reclaims expired holds. Expired holds are
// already invisible to conflict checks; the sweeper's job is physical
// cleanup and the expiry/waitlist notifications.
type Sweeper struct {
	holds    HoldService
	interval time.Duration
	cfg      *config.Config
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSweeper(holds HoldService, cfg *config.Config) *Sweeper {
	return &Sweeper{
		holds:    holds,
		interval: cfg.HoldSweepInterval,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.run()
	s.cfg.Log.Info("Hold sweeper started", "interval", s.interval)
}

func (s *Sweeper) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			if _, err := s.holds.Sweep(ctx); err != nil {
				s.cfg.Log.Error("Hold sweep failed", "error", err)
			}
			cancel()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.cfg.Log.Info("Hold sweeper stopped")
}
