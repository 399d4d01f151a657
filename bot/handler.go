// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"log/slog"

	"github.com/pubwatch/pubwatch/messaging"
)

// Handler routes sync responses: pending invites to the membership
// policy, joined-room timeline messages to the command dispatcher.
type Handler struct {
	commands *Commands
	invites  *Invites
	logger   *slog.Logger
}

// NewHandler creates the sync response router.
func NewHandler(commands *Commands, invites *Invites, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{commands: commands, invites: invites, logger: logger}
}

// HandleSync implements SyncHandler.
func (h *Handler) HandleSync(ctx context.Context, api *messaging.Session, response *messaging.SyncResponse) {
	for roomID, invited := range response.Rooms.Invite {
		inviter := invited.Inviter(api.UserID())
		h.invites.HandleInvite(ctx, api, roomID, inviter)
	}
	for roomID, joined := range response.Rooms.Join {
		for _, event := range joined.Timeline.Events {
			h.commands.HandleMessage(ctx, api, roomID, event)
		}
	}
}
