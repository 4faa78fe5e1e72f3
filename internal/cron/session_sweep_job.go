package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mavilaortega/caja-backend/pkg/logger"
)

// idleSweeper is implemented by the session registry.
type idleSweeper interface {
	SweepIdle(ctx context.Context, now time.Time) int
}

// SessionSweepJobParams configure the idle checkout sweep.
type SessionSweepJobParams struct {
	Logger   *logger.Logger
	Registry idleSweeper
}

// NewSessionSweepJob builds the job that drops abandoned checkout sessions.
// It touches in-process state only, so it runs inside the api process with a
// local lock rather than in the shared worker.
func NewSessionSweepJob(params SessionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("session registry required")
	}
	return &sessionSweepJob{
		logg:     params.Logger,
		registry: params.Registry,
		now:      time.Now,
	}, nil
}

type sessionSweepJob struct {
	logg     *logger.Logger
	registry idleSweeper
	now      func() time.Time
}

func (j *sessionSweepJob) Name() string { return "stale-checkout-sweep" }

func (j *sessionSweepJob) Run(ctx context.Context) error {
	removed := j.registry.SweepIdle(ctx, j.now())
	if removed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "sessions_removed", removed), "idle checkout sessions swept")
	}
	return nil
}
