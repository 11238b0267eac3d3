// Package sweeper runs account transitions in the background on a fixed
// interval.
//
// LIFECYCLE:
//
//	New → Start (spawns one goroutine) → ... → Stop (closes done, waits)
//
// Start and Stop are both safe to call more than once.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/account-gate/internal/service"
)

// Target is what the sweeper drives. *service.AccountService satisfies it.
type Target interface {
	Sweep(ctx context.Context, now time.Time) (service.SweepReport, error)
}

// Sweeper calls Target.Sweep every interval until stopped.
type Sweeper struct {
	target   Target
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func New(target Target, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		target:   target,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. A non-positive interval leaves it idle.
func (s *Sweeper) Start() {
	if s.interval <= 0 {
		return
	}
	s.startOnce.Do(func() {
		s.logger.Info("starting account sweeper", slog.Duration("interval", s.interval))
		s.wg.Add(1)
		go s.loop()
	})
}

// Stop ends the loop and waits for an in-flight sweep to notice.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.logger.Info("account sweeper stopped")
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

// runOnce does one sweep. The context is cancelled as soon as Stop is
// called so a long sweep doesn't hold up shutdown.
func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	report, err := s.target.Sweep(ctx, s.now())
	if err != nil {
		s.logger.Error("account sweep failed",
			slog.String("error", err.Error()),
			slog.Int("scanned", report.Scanned),
		)
		return
	}
	s.logger.Debug("account sweep done", slog.Int("scanned", report.Scanned))
}
