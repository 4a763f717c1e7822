package daemon

import (
	"context"
	"time"

	"github.com/1broseidon/floatdrop/internal/scratch"
	"github.com/sirupsen/logrus"
)

const defaultSweepInterval = 10 * time.Minute

// SweeperConfig holds configuration for the sweeper.
type SweeperConfig struct {
	Interval time.Duration
	Dirs     []scratch.Dir
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Sweeper periodically removes expired files from the scratch directories.
type Sweeper struct {
	interval time.Duration
	dirs     []scratch.Dir
	now      func() time.Time
	logger   *logrus.Entry
}

// NewSweeper creates a new sweeper with the given configuration.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		interval: interval,
		dirs:     cfg.Dirs,
		now:      now,
		logger:   log.WithField("task", "sweeper"),
	}
}

// Run starts the sweep loop. Blocks until context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithField("interval", s.interval).Info("sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep performs a single pass over every directory.
func (s *Sweeper) sweep() (removed map[string]int) {
	// Recover from panics to prevent crashing the daemon
	defer func() {
		if err := recover(); err != nil {
			s.logger.WithField("panic", err).Error("sweeper panic recovered")
		}
	}()
	return scratch.SweepAll(s.dirs, s.now())
}

// SweepNow triggers an immediate pass and returns the files removed per
// directory.
func (s *Sweeper) SweepNow() map[string]int {
	removed := s.sweep()
	if removed == nil {
		removed = map[string]int{}
	}
	return removed
}
