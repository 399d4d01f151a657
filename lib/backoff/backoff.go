// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package backoff is the single retry-delay primitive shared by the
// membership policy (invite join/reject) and the sync driver. Both
// retry loops need identical semantics — an exponential schedule with
// a cap — and keeping the schedule in one type lets the delay sequence
// be tested in isolation.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pubwatch/pubwatch/lib/clock"
)

// Policy describes an exponential delay schedule.
type Policy struct {
	// Initial is the first delay.
	Initial time.Duration

	// Multiplier scales the delay after each attempt. Values below 2
	// are treated as 2.
	Multiplier int

	// Cap bounds the delay. With ClampAtCap the schedule levels off at
	// Cap; without it the schedule gives up permanently once the next
	// delay would exceed Cap.
	Cap time.Duration

	// ClampAtCap selects clamp-forever semantics instead of give-up.
	ClampAtCap bool
}

// Membership is the schedule for invite accept/reject operations:
// 2s doubling, giving up once the delay would exceed an hour. The
// homeserver can race invite visibility with join eligibility, so
// early attempts fail routinely.
var Membership = Policy{Initial: 2 * time.Second, Multiplier: 2, Cap: time.Hour}

// Streaming is the schedule for transient /sync failures in the event
// stream: 1s doubling, clamped at 30s, never giving up.
var Streaming = Policy{Initial: time.Second, Multiplier: 2, Cap: 30 * time.Second, ClampAtCap: true}

// Start begins a fresh retry chain. Each chain is single-use: reset on
// success by discarding it and calling Start again.
func (p Policy) Start() *Backoff {
	multiplier := p.Multiplier
	if multiplier < 2 {
		multiplier = 2
	}
	return &Backoff{policy: p, multiplier: multiplier, delay: p.Initial}
}

// Backoff walks one retry chain through its delay schedule.
type Backoff struct {
	policy     Policy
	multiplier int
	delay      time.Duration
}

// Next returns the delay to wait before the next attempt. The second
// return is false when the schedule is exhausted and the operation
// should be abandoned.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.delay > b.policy.Cap {
		if !b.policy.ClampAtCap {
			return 0, false
		}
		return b.policy.Cap, true
	}
	current := b.delay
	b.delay *= time.Duration(b.multiplier)
	return current, true
}

// ErrGiveUp wraps the last attempt error when a retry chain exhausts
// its schedule.
var ErrGiveUp = errors.New("backoff: retries exhausted")

// Retry runs op until it succeeds, the schedule gives up, or ctx is
// cancelled. Waits go through the injected clock so tests can drive
// the schedule deterministically. On give-up the last error is wrapped
// with ErrGiveUp.
func Retry(ctx context.Context, clk clock.Clock, policy Policy, op func(context.Context) error) error {
	chain := policy.Start()
	for {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay, ok := chain.Next()
		if !ok {
			return fmt.Errorf("%w: %w", ErrGiveUp, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(delay):
		}
	}
}
