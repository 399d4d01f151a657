// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/pubwatch/pubwatch/messaging"
	"github.com/pubwatch/pubwatch/watch"
)

// notifyAPI is the slice of the Matrix session the notifier needs.
type notifyAPI interface {
	JoinedRooms(ctx context.Context) ([]string, error)
	SendMessage(ctx context.Context, roomID string, content messaging.MessageContent) (string, error)
}

// Notifier fans a source's delta out to every subscribed room. The
// registry snapshot is cross-checked against the rooms the agent is
// actually joined to, so a room left out-of-band is silently skipped
// instead of producing a doomed send.
type Notifier struct {
	registry *Registry
	baseURL  string
	markdown goldmark.Markdown
	logger   *slog.Logger
}

// NewNotifier creates a notifier announcing entries under baseURL.
func NewNotifier(registry *Registry, baseURL string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		registry: registry,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		markdown: goldmark.New(),
		logger:   logger,
	}
}

// Notify announces one non-empty delta. Send failures are logged
// per-room and do not stop the fan-out.
func (n *Notifier) Notify(ctx context.Context, api notifyAPI, source *watch.Source, delta []string) {
	if len(delta) == 0 {
		return
	}

	rooms := n.registry.Snapshot()
	if len(rooms) == 0 {
		return
	}

	joined, err := api.JoinedRooms(ctx)
	if err != nil {
		n.logger.Error("listing joined rooms failed, skipping notification",
			"source", source.Name, "error", err)
		return
	}
	joinedSet := make(map[string]struct{}, len(joined))
	for _, roomID := range joined {
		joinedSet[roomID] = struct{}{}
	}

	content := n.buildMessage(source, delta)
	for _, roomID := range rooms {
		if _, ok := joinedSet[roomID]; !ok {
			continue
		}
		if _, err := api.SendMessage(ctx, roomID, content); err != nil {
			n.logger.Error("sending notification failed",
				"room_id", roomID, "source", source.Name, "error", err)
			continue
		}
	}
	n.logger.Info("notified delta", "source", source.Name, "entries", len(delta))
}

// buildMessage renders the announcement: a plain-text body for clients
// that don't do HTML, and a markdown-derived HTML body linking to the
// listing.
func (n *Notifier) buildMessage(source *watch.Source, delta []string) messaging.MessageContent {
	listingURL := n.baseURL + "/" + strings.Trim(source.Path, "/") + "/"

	plain := fmt.Sprintf("%s got %d new entries: %s",
		source.Path, len(delta), strings.Join(delta, ", "))

	var md strings.Builder
	fmt.Fprintf(&md, "[%s](%s) got %d new entries:\n\n", source.Path, listingURL, len(delta))
	for _, entry := range delta {
		fmt.Fprintf(&md, "- `%s`\n", entry)
	}

	var html strings.Builder
	if err := n.markdown.Convert([]byte(md.String()), &html); err != nil {
		// Rendering failure degrades to plain text only.
		n.logger.Error("rendering notification markdown failed", "source", source.Name, "error", err)
		return messaging.NewTextMessage(plain)
	}
	return messaging.NewHTMLMessage(plain, strings.TrimSpace(html.String()))
}
