// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package backoff

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pubwatch/pubwatch/lib/clock"
)

func TestMembershipSchedule(t *testing.T) {
	chain := Membership.Start()

	want := []time.Duration{2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048}
	for i, seconds := range want {
		delay, ok := chain.Next()
		if !ok {
			t.Fatalf("schedule gave up at step %d", i)
		}
		if delay != seconds*time.Second {
			t.Errorf("step %d: delay = %v, want %vs", i, delay, seconds)
		}
	}

	// The next delay would be 4096s > 3600s: permanent give-up.
	if delay, ok := chain.Next(); ok {
		t.Errorf("schedule should be exhausted, got delay %v", delay)
	}
}

func TestStreamingScheduleClampsAtCap(t *testing.T) {
	chain := Streaming.Start()

	want := []time.Duration{1, 2, 4, 8, 16, 30, 30, 30}
	for i, seconds := range want {
		delay, ok := chain.Next()
		if !ok {
			t.Fatalf("clamped schedule must never give up (step %d)", i)
		}
		if delay != seconds*time.Second {
			t.Errorf("step %d: delay = %v, want %vs", i, delay, seconds)
		}
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	attempts := 0

	done := make(chan error, 1)
	go func() {
		done <- Retry(context.Background(), fake, Membership, func(context.Context) error {
			attempts++
			if attempts < 3 {
				return fmt.Errorf("attempt %d failed", attempts)
			}
			return nil
		})
	}()

	fake.WaitForWaiters(1)
	fake.Advance(2 * time.Second)
	fake.WaitForWaiters(1)
	fake.Advance(4 * time.Second)

	if err := <-done; err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryGivesUp(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	policy := Policy{Initial: time.Second, Multiplier: 2, Cap: 2 * time.Second}

	done := make(chan error, 1)
	go func() {
		done <- Retry(context.Background(), fake, policy, func(context.Context) error {
			return errors.New("always fails")
		})
	}()

	// Delays 1s and 2s fire; the next would be 4s > cap, so the chain
	// gives up after the third attempt.
	fake.WaitForWaiters(1)
	fake.Advance(time.Second)
	fake.WaitForWaiters(1)
	fake.Advance(2 * time.Second)

	err := <-done
	if !errors.Is(err, ErrGiveUp) {
		t.Fatalf("err = %v, want ErrGiveUp", err)
	}
}

func TestRetryObservesCancellation(t *testing.T) {
	fake := clock.Fake(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, fake, Membership, func(context.Context) error {
			return errors.New("transient")
		})
	}()

	fake.WaitForWaiters(1)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Retry did not observe cancellation")
	}
}
