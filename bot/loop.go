// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/pubwatch/pubwatch/lib/clock"
	"github.com/pubwatch/pubwatch/messaging"
	"github.com/pubwatch/pubwatch/watch"
)

// Loop is the polling schedule: every interval it polls each source in
// configuration order and announces non-empty deltas. One failing
// source never blocks the others, and a failed tick is simply retried
// at the next one.
type Loop struct {
	detector *watch.Detector
	sources  []*watch.Source
	notifier *Notifier

	// sessionFn returns the current session, or nil while the driver
	// is (re)authenticating. Deltas found without a session are still
	// recorded in the snapshot; only the announcement is skipped.
	sessionFn func() *messaging.Session

	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

// NewLoop creates the polling loop.
func NewLoop(detector *watch.Detector, sources []*watch.Source, notifier *Notifier, sessionFn func() *messaging.Session, interval time.Duration, clk clock.Clock, logger *slog.Logger) *Loop {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		detector:  detector,
		sources:   sources,
		notifier:  notifier,
		sessionFn: sessionFn,
		interval:  interval,
		clock:     clk,
		logger:    logger,
	}
}

// Run polls until ctx is cancelled. The first tick runs immediately so
// the baseline snapshots exist before the first interval elapses.
func (l *Loop) Run(ctx context.Context) {
	l.tick(ctx)

	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	for _, source := range l.sources {
		if ctx.Err() != nil {
			return
		}

		delta, err := l.detector.Poll(ctx, source)
		if err != nil {
			l.logger.Error("poll failed", "source", source.Name, "error", err)
			continue
		}
		if len(delta) == 0 {
			continue
		}

		api := l.sessionFn()
		if api == nil {
			l.logger.Warn("delta found but no session yet, skipping announcement",
				"source", source.Name, "entries", len(delta))
			continue
		}
		l.notifier.Notify(ctx, api, source, delta)
	}
}
