// Package worker runs background maintenance for stores that have no native expiry.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

const sweepLockName = "sweeper"

// Expirer deletes rows whose lifetime has passed
type Expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Target is a named store the sweeper cleans
type Target struct {
	Name  string
	Store Expirer
}

// Sweeper periodically removes expired sessions and hand-offs.
// When a lock is configured only one instance sweeps per interval.
type Sweeper struct {
	targets  []Target
	lock     driven.DistributedLock
	interval time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	running   bool
	lastSweep time.Time
	lastErr   error
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// Config holds configuration for the sweeper.
type Config struct {
	Targets  []Target
	Lock     driven.DistributedLock // Optional
	Interval time.Duration          // default: 5m
	Logger   *slog.Logger
}

// NewSweeper creates a new sweeper.
func NewSweeper(cfg Config) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Sweeper{
		targets:  cfg.Targets,
		lock:     cfg.Lock,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the sweep loop.
// It runs until Stop is called or context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("sweeper starting", "interval", s.interval, "targets", len(s.targets))

	go func() {
		defer close(s.doneCh)
		s.loop(ctx)
	}()
	return nil
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("sweeper stopped")
}

// Wait blocks until the sweeper stops.
func (s *Sweeper) Wait() {
	<-s.doneCh
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce cleans every target and returns how many rows were removed.
// A failing target does not stop the others; the first error is returned.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, sweepLockName, s.interval)
		if err != nil {
			s.record(err)
			return 0, err
		}
		if !acquired {
			s.logger.Debug("another instance is sweeping")
			return 0, nil
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), sweepLockName); err != nil {
				s.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	var (
		total    int64
		firstErr error
	)
	for _, t := range s.targets {
		n, err := t.Store.DeleteExpired(ctx)
		if err != nil {
			s.logger.Error("failed to delete expired rows", "target", t.Name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if n > 0 {
			s.logger.Info("deleted expired rows", "target", t.Name, "count", n)
		}
		total += n
	}

	s.record(firstErr)
	return total, firstErr
}

func (s *Sweeper) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSweep = time.Now()
	s.lastErr = err
}

// Health reports the sweeper state.
type Health struct {
	Running   bool      `json:"running"`
	LastSweep time.Time `json:"last_sweep,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Health returns the health status of the sweeper.
func (s *Sweeper) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := Health{Running: s.running, LastSweep: s.lastSweep}
	if s.lastErr != nil {
		h.Error = s.lastErr.Error()
	}
	return h
}
