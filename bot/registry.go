// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/pubwatch/pubwatch/session"
)

// Registry is the set of rooms subscribed to notifications. The
// in-memory set is authoritative; every mutation is written through to
// the session store's watch-list sidecar so subscriptions survive a
// restart. A write-through failure is logged and the mutation stands —
// losing persistence is better than losing the subscription.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]struct{}
	store  session.Store
	logger *slog.Logger
}

// NewRegistry creates an empty registry persisting through store.
func NewRegistry(store session.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rooms:  make(map[string]struct{}),
		store:  store,
		logger: logger,
	}
}

// Load seeds the registry from the store's sidecar. Called once at
// startup, before the sync driver starts delivering commands.
func (r *Registry) Load() error {
	roomIDs, err := r.store.LoadWatchList()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, roomID := range roomIDs {
		r.rooms[roomID] = struct{}{}
	}
	return nil
}

// Add subscribes a room, reporting whether it was newly added.
func (r *Registry) Add(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomID]; ok {
		return false
	}
	r.rooms[roomID] = struct{}{}
	r.persistLocked()
	return true
}

// Remove unsubscribes a room, reporting whether it was present.
func (r *Registry) Remove(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomID]; !ok {
		return false
	}
	delete(r.rooms, roomID)
	r.persistLocked()
	return true
}

// Contains reports whether a room is subscribed.
func (r *Registry) Contains(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[roomID]
	return ok
}

// Snapshot returns the subscribed rooms, sorted.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked()
}

func (r *Registry) sortedLocked() []string {
	roomIDs := make([]string, 0, len(r.rooms))
	for roomID := range r.rooms {
		roomIDs = append(roomIDs, roomID)
	}
	sort.Strings(roomIDs)
	return roomIDs
}

func (r *Registry) persistLocked() {
	if err := r.store.SaveWatchList(r.sortedLocked()); err != nil {
		r.logger.Error("persisting watch list failed", "error", err)
	}
}
