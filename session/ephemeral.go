// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package session

// NewEphemeral returns a Store that persists nothing. Every restart
// starts from a fresh password login and an empty watch registry.
func NewEphemeral() Store { return ephemeral{} }

type ephemeral struct{}

func (ephemeral) Exists() bool                  { return false }
func (ephemeral) Restore() (*Credential, error) { return nil, ErrNotFound }
func (ephemeral) Persist(*Credential) error     { return nil }
func (ephemeral) Wipe() error                   { return nil }
func (ephemeral) SaveWatchList([]string) error  { return nil }
func (ephemeral) LoadWatchList() ([]string, error) {
	return nil, nil
}
