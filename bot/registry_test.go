// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/pubwatch/pubwatch/session"
)

// fakeStore records watch-list writes and serves a canned credential.
type fakeStore struct {
	mu         sync.Mutex
	credential *session.Credential
	watchList  []string
	saveErr    error
	saves      int
	wipes      int
	persists   int
}

func (s *fakeStore) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential != nil
}

func (s *fakeStore) Restore() (*session.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credential == nil {
		return nil, session.ErrNotFound
	}
	copied := *s.credential
	return &copied, nil
}

func (s *fakeStore) Persist(credential *session.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *credential
	s.credential = &copied
	s.persists++
	return nil
}

func (s *fakeStore) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = nil
	s.watchList = nil
	s.wipes++
	return nil
}

func (s *fakeStore) SaveWatchList(roomIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.watchList = append([]string(nil), roomIDs...)
	s.saves++
	return nil
}

func (s *fakeStore) LoadWatchList() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.watchList...), nil
}

func (s *fakeStore) savedWatchList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.watchList...)
}

func TestRegistryAddRemove(t *testing.T) {
	store := &fakeStore{}
	registry := NewRegistry(store, nil)

	if !registry.Add("!b:example.org") {
		t.Error("first Add should report a change")
	}
	if registry.Add("!b:example.org") {
		t.Error("duplicate Add should report no change")
	}
	registry.Add("!a:example.org")

	if want := []string{"!a:example.org", "!b:example.org"}; !reflect.DeepEqual(registry.Snapshot(), want) {
		t.Errorf("Snapshot = %v, want %v", registry.Snapshot(), want)
	}
	if !registry.Contains("!a:example.org") {
		t.Error("Contains should be true for a subscribed room")
	}

	if !registry.Remove("!a:example.org") {
		t.Error("Remove of a present room should report a change")
	}
	if registry.Remove("!a:example.org") {
		t.Error("Remove of an absent room should report no change")
	}
	if want := []string{"!b:example.org"}; !reflect.DeepEqual(registry.Snapshot(), want) {
		t.Errorf("Snapshot = %v, want %v", registry.Snapshot(), want)
	}
}

func TestRegistryWritesThrough(t *testing.T) {
	store := &fakeStore{}
	registry := NewRegistry(store, nil)

	registry.Add("!b:example.org")
	registry.Add("!a:example.org")
	if want := []string{"!a:example.org", "!b:example.org"}; !reflect.DeepEqual(store.savedWatchList(), want) {
		t.Errorf("persisted watch list = %v, want %v", store.savedWatchList(), want)
	}

	registry.Remove("!b:example.org")
	if want := []string{"!a:example.org"}; !reflect.DeepEqual(store.savedWatchList(), want) {
		t.Errorf("persisted watch list = %v, want %v", store.savedWatchList(), want)
	}
}

func TestRegistryPersistFailureIsNotFatal(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("disk full")}
	registry := NewRegistry(store, nil)

	if !registry.Add("!a:example.org") {
		t.Error("Add should succeed even when persistence fails")
	}
	if !registry.Contains("!a:example.org") {
		t.Error("in-memory state should stand despite the persist failure")
	}
}

func TestRegistryLoad(t *testing.T) {
	store := &fakeStore{watchList: []string{"!a:example.org", "!b:example.org"}}
	registry := NewRegistry(store, nil)

	if err := registry.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if want := []string{"!a:example.org", "!b:example.org"}; !reflect.DeepEqual(registry.Snapshot(), want) {
		t.Errorf("Snapshot after Load = %v, want %v", registry.Snapshot(), want)
	}
}
