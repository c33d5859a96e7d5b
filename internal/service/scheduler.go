package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultRunTimeout = 30 * time.Minute

// Scheduler runs every configured pull source on a fixed interval.
type Scheduler struct {
	runner *Runner
	logger *zap.Logger

	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu   sync.Mutex
	last *RunReport
}

func NewScheduler(runner *Runner, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		logger:   logger,
		interval: interval,
		timeout:  defaultRunTimeout,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) SetTimeout(d time.Duration) {
	s.timeout = d
}

// Start runs the scheduler in a background goroutine.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("run scheduler started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stopCh:
				s.logger.Info("run scheduler stopped")
				return
			}
		}
	}()
}

// Stop stops the scheduler and cancels a run in progress.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// LastReport returns the report of the most recent scheduled run.
func (s *Scheduler) LastReport() *RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	report, err := s.runner.Run(ctx, nil)
	if err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.last = report
	s.mu.Unlock()
}
