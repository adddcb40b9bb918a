package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = time.Minute

// ExpiredTokenSweeper deletes tokens whose deadline passed.
type ExpiredTokenSweeper interface {
	DeleteAllExpiredTokens(ctx context.Context) (int64, error)
}

// TokenSweeper runs the expired-token sweep on a cron schedule. Sweeping is an optimization:
// consumption rejects expired tokens whether or not they were swept.
type TokenSweeper struct {
	cron    *cron.Cron
	tokens  ExpiredTokenSweeper
	logger  *zap.Logger
	entryID cron.EntryID
}

// NewTokenSweeper schedules the sweep. A run still in progress makes the next tick a no-op.
func NewTokenSweeper(schedule string, tokens ExpiredTokenSweeper, logger *zap.Logger) (*TokenSweeper, error) {
	s := &TokenSweeper{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		tokens: tokens,
		logger: logger,
	}
	id, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) })
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	s.entryID = id
	return s, nil
}

// Start begins running the schedule in the background.
func (s *TokenSweeper) Start() {
	s.cron.Start()
	s.logger.Info("token sweeper started", zap.Time("next_run", s.cron.Entry(s.entryID).Next))
}

// Stop waits for a running sweep to finish.
func (s *TokenSweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("token sweeper stopped")
}

// RunOnce performs a single sweep.
func (s *TokenSweeper) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	count, err := s.tokens.DeleteAllExpiredTokens(ctx)
	if err != nil {
		s.logger.Error("token sweep failed", zap.Error(err))
		return 0
	}
	return count
}
