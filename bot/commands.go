// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"log/slog"

	"github.com/pubwatch/pubwatch/messaging"
)

// commandAPI is the slice of the Matrix session the command dispatcher
// needs.
type commandAPI interface {
	UserID() string
	SendMessage(ctx context.Context, roomID string, content messaging.MessageContent) (string, error)
	LeaveRoom(ctx context.Context, roomID string) error
}

// Commands dispatches room messages to the agent's commands. Commands
// are exact matches on the full message body; anything else is
// ordinary room chatter and ignored.
type Commands struct {
	registry          *Registry
	allowedUsers      map[string]struct{}
	ignoreOwnMessages bool
	logger            *slog.Logger
}

// NewCommands creates a dispatcher. An empty allowedUsers list trusts
// every sender.
func NewCommands(registry *Registry, allowedUsers []string, ignoreOwnMessages bool, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(allowedUsers))
	for _, user := range allowedUsers {
		allowed[user] = struct{}{}
	}
	return &Commands{
		registry:          registry,
		allowedUsers:      allowed,
		ignoreOwnMessages: ignoreOwnMessages,
		logger:            logger,
	}
}

// allowed reports whether a sender may command the agent.
func (c *Commands) allowed(sender string) bool {
	if len(c.allowedUsers) == 0 {
		return true
	}
	_, ok := c.allowedUsers[sender]
	return ok
}

// HandleMessage processes one timeline event. Non-text events,
// the agent's own messages, and messages from untrusted senders are
// silently ignored. Reply failures are logged and swallowed — a failed
// acknowledgement must not wedge the event stream.
func (c *Commands) HandleMessage(ctx context.Context, api commandAPI, roomID string, event messaging.Event) {
	body, ok := event.TextBody()
	if !ok {
		return
	}
	if c.ignoreOwnMessages && event.Sender == api.UserID() {
		return
	}
	if !c.allowed(event.Sender) {
		return
	}

	switch body {
	case "!ping":
		c.reply(ctx, api, roomID, "pong")

	case "!watch":
		if c.registry.Add(roomID) {
			c.logger.Info("room subscribed", "room_id", roomID, "sender", event.Sender)
			c.reply(ctx, api, roomID, "Watching. New entries will be announced here.")
		} else {
			c.reply(ctx, api, roomID, "Already watching this room.")
		}

	case "!leave":
		// Farewell first, then drop the subscription, then leave: the
		// registry must never hold a room the agent has left, and the
		// goodbye cannot be sent after leaving.
		c.reply(ctx, api, roomID, "Goodbye.")
		c.registry.Remove(roomID)
		if err := api.LeaveRoom(ctx, roomID); err != nil {
			c.logger.Error("leaving room failed", "room_id", roomID, "error", err)
		} else {
			c.logger.Info("left room on request", "room_id", roomID, "sender", event.Sender)
		}
	}
}

func (c *Commands) reply(ctx context.Context, api commandAPI, roomID, text string) {
	if _, err := api.SendMessage(ctx, roomID, messaging.NewTextMessage(text)); err != nil {
		c.logger.Error("sending reply failed", "room_id", roomID, "error", err)
	}
}
