package service

import (
	"context"
	"sync"
	"time"

	"consign-review-api/internal/repository"

	log "github.com/sirupsen/logrus"
)

// CleanupConfig holds configuration for the audit retention scheduler.
type CleanupConfig struct {
	// Retention is how long dispatch records are kept.
	// Default: 30 days
	Retention time.Duration

	// CleanupInterval is how often the purge runs.
	// Default: 24 hours
	CleanupInterval time.Duration

	// InitialDelay postpones the first purge after Start.
	InitialDelay time.Duration

	// RunTimeout bounds a single purge.
	RunTimeout time.Duration
}

// CleanupRun describes the most recent purge.
type CleanupRun struct {
	At      time.Time `json:"at"`
	Deleted int64     `json:"deleted"`
	Error   string    `json:"error,omitempty"`
}

// CleanupScheduler periodically purges dispatch records older than the retention window.
type CleanupScheduler struct {
	repo   repository.AuditRepository
	config CleanupConfig
	logger *log.Entry
	now    func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun *CleanupRun
}

// NewCleanupScheduler creates a new cleanup scheduler.
func NewCleanupScheduler(repo repository.AuditRepository, config CleanupConfig) *CleanupScheduler {
	if config.Retention <= 0 {
		config.Retention = 30 * 24 * time.Hour
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 24 * time.Hour
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Minute
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 5 * time.Minute
	}

	return &CleanupScheduler{
		repo:   repo,
		config: config,
		logger: log.WithField("component", "CleanupScheduler"),
		now:    time.Now,
	}
}

// Start launches the purge loop. Calling it on a running scheduler is a no-op.
func (s *CleanupScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.WithFields(log.Fields{
		"interval":  s.config.CleanupInterval,
		"retention": s.config.Retention,
	}).Info("Started")

	go s.loop(ctx, s.done)
}

func (s *CleanupScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	wait := time.NewTimer(s.config.InitialDelay)
	defer wait.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopped")
			return
		case <-wait.C:
			s.purge(ctx)
			wait.Reset(s.config.CleanupInterval)
		}
	}
}

func (s *CleanupScheduler) purge(ctx context.Context) {
	deleted, err := s.RunNow(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Purge failed")
		return
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("Purged expired dispatch records")
	} else {
		s.logger.Debug("No expired dispatch records")
	}
}

// Stop halts the purge loop and waits for an in-flight purge to return.
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunNow deletes every record older than the retention window.
func (s *CleanupScheduler) RunNow(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	at := s.now()
	deleted, err := s.repo.DeleteOlderThan(ctx, at.Add(-s.config.Retention))

	run := &CleanupRun{At: at, Deleted: deleted}
	if err != nil {
		run.Error = err.Error()
	}
	s.mu.Lock()
	s.lastRun = run
	s.mu.Unlock()

	return deleted, err
}

// LastRun returns the most recent purge, or nil before the first one.
func (s *CleanupScheduler) LastRun() *CleanupRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return nil
	}
	run := *s.lastRun
	return &run
}
