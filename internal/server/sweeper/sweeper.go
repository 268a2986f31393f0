// Package sweeper purges expired token pairs, action tokens and archived
// passwords on independent schedules.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

const (
	JobTokenPairs   = "token-pairs"
	JobOldPasswords = "old-passwords"
	JobActionTokens = "action-tokens"
)

type Options struct {
	TokenRetention        time.Duration
	TokenSweepInterval    time.Duration
	PasswordRetention     time.Duration
	PasswordSweepInterval time.Duration
	// ActionTokenTTL is the action token lifetime; older tokens cannot verify.
	ActionTokenTTL time.Duration
}

type purgeFunc func(ctx context.Context, cutoff time.Time) (int64, error)

type job struct {
	name      string
	interval  time.Duration
	retention time.Duration
	purge     purgeFunc
}

type Sweeper struct {
	jobs    []job
	metrics *metrics.Metrics
	log     logging.Logger
	now     func() time.Time
}

func New(repos repomanager.RepositoryManager, opts Options, m *metrics.Metrics, log logging.Logger) *Sweeper {
	return &Sweeper{
		jobs: []job{
			{JobTokenPairs, opts.TokenSweepInterval, opts.TokenRetention, repos.TokenPairs().DeleteOlderThan},
			{JobOldPasswords, opts.PasswordSweepInterval, opts.PasswordRetention, repos.PasswordHistory().DeleteOlderThan},
			{JobActionTokens, opts.TokenSweepInterval, opts.ActionTokenTTL, repos.ActionTokens().DeleteOlderThan},
		},
		metrics: m,
		log:     log.With("module", "sweeper"),
		now:     time.Now,
	}
}

// SetClock replaces the time source used to compute cutoffs.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Sweeper) runJob(ctx context.Context, j job) {
	cutoff := s.now().Add(-j.retention)
	n, err := j.purge(ctx, cutoff)
	if err != nil {
		// retried on the next tick
		s.metrics.SweepFailed(j.name)
		s.log.Error(ctx, "sweep failed", "job", j.name, "error", err)
		return
	}
	s.metrics.Swept(j.name, n)
	if n > 0 {
		s.log.Info(ctx, "swept", "job", j.name, "deleted", n)
	}
}

// RunOnce runs every job a single time.
func (s *Sweeper) RunOnce(ctx context.Context) {
	for _, j := range s.jobs {
		s.runJob(ctx, j)
	}
}

// Run schedules each job on its own ticker and blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range s.jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			ticker := time.NewTicker(j.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.runJob(ctx, j)
				}
			}
		}(j)
	}
	wg.Wait()
	s.log.Info(ctx, "sweeper stopped")
}
