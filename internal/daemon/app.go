// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rs/zerolog"
)

// Job is a background task owned by the daemon. It must return once ctx is done.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// App owns the background jobs (session sweeper, cache janitor, channel
// watcher) and delegates server management to Manager.
type App struct {
	logger  zerolog.Logger
	manager Manager
	jobs    []Job
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, jobs ...Job) *App {
	return &App{
		logger:  logger,
		manager: manager,
		jobs:    jobs,
	}
}

// Run starts all jobs and the servers and blocks until ctx is cancelled or a
// server fails. Jobs are best-effort: a failing job is logged, not fatal.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, job := range a.jobs {
		g.Go(func() error {
			a.logger.Debug().Str("job", job.Name).Msg("background job started")
			if err := job.Run(gctx); err != nil {
				a.logger.Error().
					Err(err).
					Str("event", "job.failed").
					Str("job", job.Name).
					Msg("background job stopped with error")
				return nil
			}
			a.logger.Debug().Str("job", job.Name).Msg("background job stopped")
			return nil
		})
	}

	// Main server lifecycle. Its return cancels gctx and with it every job.
	g.Go(func() error {
		return a.manager.Start(gctx)
	})

	return g.Wait()
}
