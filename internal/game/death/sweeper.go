package death

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/fightsheet/internal/game/player"
	"github.com/cory-johannsen/fightsheet/internal/storage"
)

// sweepFilter selects every record that may need a transition.
var sweepFilter = storage.Filter{AnyOf: []storage.Predicate{
	storage.LessOrEqual(player.HealthPath, 0),
	storage.LessOrEqual(player.LegacyHealthPath, 0),
	storage.Exists(player.ReviveAtPath),
	storage.Exists(player.LegacyDeadUntilPath),
}}

// SweepReport summarizes one sweep.
type SweepReport struct {
	RunID         string
	Checked       int
	Incapacitated int
	Revived       int
	TimersCleared int
	Failed        int
	Elapsed       time.Duration
}

// Sweeper periodically applies Machine.CheckAndResolve to every player that
// is dead or carries a death timer, so revival does not wait for the player
// to act.
type Sweeper struct {
	machine  *Machine
	store    storage.Store
	interval time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	stop chan struct{}
}

// NewSweeper creates a Sweeper.
//
// Precondition: interval must be > 0; machine, store and logger must be non-nil.
func NewSweeper(machine *Machine, store storage.Store, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		panic("death.NewSweeper: interval must be > 0")
	}
	return &Sweeper{
		machine:  machine,
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// SweepOnce scans for candidates and resolves each. A failure for one player
// is logged and counted; only a failed scan returns an error.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	start := time.Now()
	report := SweepReport{RunID: uuid.NewString()}
	logger := s.logger.With(zap.String("run_id", report.RunID))

	docs, err := s.store.Scan(ctx, sweepFilter, player.HealthPath)
	if err != nil {
		return report, fmt.Errorf("death: Sweeper.SweepOnce: %w", err)
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		st, err := s.machine.CheckAndResolve(ctx, doc.ID)
		if err != nil {
			report.Failed++
			logger.Warn("sweep check failed",
				zap.String("player", doc.ID),
				zap.Error(err),
			)
			continue
		}
		switch {
		case st.Revived:
			report.Revived++
		case st.TimerCleared:
			report.TimersCleared++
		case st.State == Incapacitated:
			report.Incapacitated++
		}
	}
	report.Elapsed = time.Since(start)

	if report.Checked > 0 {
		logger.Info("death sweep complete",
			zap.Int("checked", report.Checked),
			zap.Int("incapacitated", report.Incapacitated),
			zap.Int("revived", report.Revived),
			zap.Int("timers_cleared", report.TimersCleared),
			zap.Int("failed", report.Failed),
			zap.Duration("elapsed", report.Elapsed),
		)
	}
	return report, nil
}

// Start sweeps immediately and then once per interval of the machine's clock
// until ctx is cancelled or Stop is called.
//
// Postcondition: returns nil once stopped.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return fmt.Errorf("death: Sweeper.Start: already running")
	}
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	ticker := s.machine.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("death sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		case <-ticker.C():
		}
	}
}

// Stop ends a running Start. It is safe to call more than once.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}
