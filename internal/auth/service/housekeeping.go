package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bbmovie/auth/internal/auth/store"
)

// HousekeepingService runs the periodic maintenance loops: weekly key
// rotation, six-hourly key pruning, and hourly expired-session sweeps.
type HousekeepingService struct {
	Store    store.Store
	Rotation *KeyRotationService
	Logger   *slog.Logger

	RotateInterval time.Duration
	PruneInterval  time.Duration
	SweepInterval  time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the housekeeping worker. Zero intervals fall
// back to weekly rotation, 6h pruning, and hourly session sweeps.
func NewHousekeepingService(st store.Store, rotation *KeyRotationService, logger *slog.Logger, rotateEvery, pruneEvery, sweepEvery time.Duration) *HousekeepingService {
	if rotateEvery <= 0 {
		rotateEvery = 7 * 24 * time.Hour
	}
	if pruneEvery <= 0 {
		pruneEvery = 6 * time.Hour
	}
	if sweepEvery <= 0 {
		sweepEvery = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:          st,
		Rotation:       rotation,
		Logger:         logger,
		RotateInterval: rotateEvery,
		PruneInterval:  pruneEvery,
		SweepInterval:  sweepEvery,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop() to shut it
// down. The caller should run EnsureActiveKey before starting so the first
// rotation tick isn't load-bearing.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started",
		"rotate_interval", s.RotateInterval,
		"prune_interval", s.PruneInterval,
		"sweep_interval", s.SweepInterval,
	)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress run.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	rotate := time.NewTicker(s.RotateInterval)
	defer rotate.Stop()
	prune := time.NewTicker(s.PruneInterval)
	defer prune.Stop()
	sweep := time.NewTicker(s.SweepInterval)
	defer sweep.Stop()

	// Sweep once on startup; rotation already happened via EnsureActiveKey.
	s.sweepSessions()

	for {
		select {
		case <-rotate.C:
			s.rotateKeys()
		case <-prune.C:
			s.pruneKeys()
		case <-sweep.C:
			s.sweepSessions()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) rotateKeys() {
	if err := s.Rotation.Rotate(context.Background()); err != nil {
		s.Logger.Error("failed to rotate signing keys", "error", err)
		return
	}
	s.Logger.Info("rotated signing keys")
}

func (s *HousekeepingService) pruneKeys() {
	if err := s.Rotation.Prune(context.Background()); err != nil {
		s.Logger.Error("failed to prune signing keys", "error", err)
		return
	}
	s.Logger.Debug("pruned signing keys")
}

func (s *HousekeepingService) sweepSessions() {
	if err := s.Store.Sessions().DeleteExpiredSessions(context.Background()); err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
		return
	}
	s.Logger.Debug("deleted expired sessions")
}
