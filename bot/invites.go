// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pubwatch/pubwatch/lib/backoff"
	"github.com/pubwatch/pubwatch/lib/clock"
)

// inviteAPI is the slice of the Matrix session the membership policy
// needs. Leaving a pending invite rejects it.
type inviteAPI interface {
	JoinRoom(ctx context.Context, roomID string) (string, error)
	LeaveRoom(ctx context.Context, roomID string) error
}

// Invites decides room invitations: accept when autojoin is on and the
// inviter is trusted, reject otherwise. The decided operation runs in a
// background goroutine under the membership retry schedule, because the
// homeserver can race invite visibility against join eligibility —
// early join attempts fail routinely and resolve themselves.
type Invites struct {
	autojoin     bool
	allowedUsers map[string]struct{}
	clock        clock.Clock
	logger       *slog.Logger

	wg sync.WaitGroup
}

// NewInvites creates a membership policy. An empty allowedUsers list
// trusts every inviter.
func NewInvites(autojoin bool, allowedUsers []string, clk clock.Clock, logger *slog.Logger) *Invites {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(allowedUsers))
	for _, user := range allowedUsers {
		allowed[user] = struct{}{}
	}
	return &Invites{
		autojoin:     autojoin,
		allowedUsers: allowed,
		clock:        clk,
		logger:       logger,
	}
}

func (i *Invites) trusted(inviter string) bool {
	if len(i.allowedUsers) == 0 {
		return true
	}
	_, ok := i.allowedUsers[inviter]
	return ok
}

// HandleInvite decides one invite and starts the accept or reject in a
// tracked goroutine. The decision is made here, synchronously, from
// the policy's configuration; only the Matrix operation retries in the
// background. A permanent give-up is logged and abandoned — one
// undecidable invite must not take the agent down.
func (i *Invites) HandleInvite(ctx context.Context, api inviteAPI, roomID, inviter string) {
	accept := i.autojoin && i.trusted(inviter)

	logger := i.logger.With("room_id", roomID, "inviter", inviter)
	if accept {
		logger.Info("accepting invite")
	} else {
		logger.Info("rejecting invite")
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()

		err := backoff.Retry(ctx, i.clock, backoff.Membership, func(ctx context.Context) error {
			if accept {
				_, err := api.JoinRoom(ctx, roomID)
				return err
			}
			return api.LeaveRoom(ctx, roomID)
		})
		switch {
		case err == nil:
			logger.Info("invite resolved", "accepted", accept)
		case ctx.Err() != nil:
			// Shutdown; the invite stays pending on the server.
		default:
			logger.Error("giving up on invite", "accepted", accept, "error", err)
		}
	}()
}

// Wait blocks until every in-flight membership operation has finished
// or abandoned. Called at shutdown after the driver stops.
func (i *Invites) Wait() { i.wg.Wait() }
