// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/pubwatch/pubwatch/watch"
)

func TestNotifySendsToSubscribedJoinedRooms(t *testing.T) {
	api := &fakeRoomAPI{userID: botUser, joined: []string{"!a:example.org", "!b:example.org"}}
	registry := NewRegistry(&fakeStore{}, nil)
	registry.Add("!a:example.org")
	registry.Add("!b:example.org")
	notifier := NewNotifier(registry, "https://archive.example.org/pub", nil)

	source := &watch.Source{Name: "releases", Path: "firefox/releases"}
	notifier.Notify(context.Background(), api, source, []string{"141.0", "142.0"})

	sent := api.sentMessages()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	body := sent[0].content.Body
	if !strings.Contains(body, "firefox/releases") || !strings.Contains(body, "2 new entries") {
		t.Errorf("plain body = %q", body)
	}
	if !strings.Contains(body, "141.0, 142.0") {
		t.Errorf("plain body should list entries, got %q", body)
	}

	html := sent[0].content.FormattedBody
	if !strings.Contains(html, `href="https://archive.example.org/pub/firefox/releases/"`) {
		t.Errorf("html body should link the listing, got %q", html)
	}
	if !strings.Contains(html, "<li>") || !strings.Contains(html, "141.0") {
		t.Errorf("html body should list entries, got %q", html)
	}
}

func TestNotifySkipsLeftRooms(t *testing.T) {
	// "!gone" is subscribed but no longer joined; the send is skipped
	// rather than attempted and failed.
	api := &fakeRoomAPI{userID: botUser, joined: []string{"!a:example.org"}}
	registry := NewRegistry(&fakeStore{}, nil)
	registry.Add("!a:example.org")
	registry.Add("!gone:example.org")
	notifier := NewNotifier(registry, "https://archive.example.org/pub", nil)

	source := &watch.Source{Name: "releases", Path: "firefox/releases"}
	notifier.Notify(context.Background(), api, source, []string{"141.0"})

	sent := api.sentMessages()
	if len(sent) != 1 || sent[0].roomID != "!a:example.org" {
		t.Errorf("sent = %+v, want one message to !a:example.org", sent)
	}
}

func TestNotifyEmptyDeltaIsSilent(t *testing.T) {
	api := &fakeRoomAPI{userID: botUser, joined: []string{"!a:example.org"}}
	registry := NewRegistry(&fakeStore{}, nil)
	registry.Add("!a:example.org")
	notifier := NewNotifier(registry, "https://archive.example.org/pub", nil)

	notifier.Notify(context.Background(), api, &watch.Source{Name: "s", Path: "p"}, nil)
	if sent := api.sentMessages(); len(sent) != 0 {
		t.Errorf("empty delta should send nothing, got %+v", sent)
	}
}

func TestNotifySendFailureContinuesFanOut(t *testing.T) {
	api := &fakeRoomAPI{userID: botUser, joined: []string{"!a:example.org", "!b:example.org"}, sendErr: errTest}
	registry := NewRegistry(&fakeStore{}, nil)
	registry.Add("!a:example.org")
	registry.Add("!b:example.org")
	notifier := NewNotifier(registry, "https://archive.example.org/pub", nil)

	// Both sends fail; the point is that Notify returns instead of
	// wedging or panicking.
	notifier.Notify(context.Background(), api, &watch.Source{Name: "s", Path: "p"}, []string{"x"})
}
