// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package session persists the agent's Matrix credential — and the
// watch-registry sidecar — across restarts.
//
// Three backends implement one [Store] contract: Ephemeral (nothing
// survives the process), File (an age-encrypted CBOR blob under a
// configured directory, passphrase-protected at rest), and Keyring
// (the operating system's secret service). Exactly one backend is
// selected at startup; the choice is immutable for the process
// lifetime.
//
// Restore distinguishes "never stored" (ErrNotFound) from "stored but
// unreadable" (ErrCorrupt). Callers treat both as "log in fresh"; the
// distinction matters only for logging.
package session

import "errors"

// Credential is the authentication material the agent needs to resume
// a Matrix session without a fresh password login. NextBatch is the
// /sync resumption token, advanced after every successful sync step.
type Credential struct {
	UserID       string `cbor:"user_id" json:"user_id"`
	DeviceID     string `cbor:"device_id" json:"device_id"`
	AccessToken  string `cbor:"access_token" json:"access_token"`
	RefreshToken string `cbor:"refresh_token,omitempty" json:"refresh_token,omitempty"`
	NextBatch    string `cbor:"next_batch,omitempty" json:"next_batch,omitempty"`
}

// ErrNotFound means the backend has no stored credential.
var ErrNotFound = errors.New("session: no stored credential")

// ErrCorrupt means the backend has a credential it cannot read
// (decryption or decode failure). Callers treat it as ErrNotFound and
// force a fresh login; the wipe that follows clears the bad state.
var ErrCorrupt = errors.New("session: stored credential is corrupt")

// Store persists a Credential and the watch-registry sidecar.
// Implementations are single-writer: only this process touches the
// backing file or secret collection.
type Store interface {
	// Exists reports whether a credential is stored.
	Exists() bool

	// Restore loads the stored credential. Returns ErrNotFound or
	// ErrCorrupt when there is nothing usable.
	Restore() (*Credential, error)

	// Persist durably stores the credential, replacing any previous
	// one. The write completes fully or not at all.
	Persist(credential *Credential) error

	// Wipe removes all stored state, credential and sidecar both.
	// Used when the server rejects the stored credential outright, so
	// the agent never re-presents dead tokens.
	Wipe() error

	// SaveWatchList stores the watch-registry room IDs.
	SaveWatchList(roomIDs []string) error

	// LoadWatchList returns the stored room IDs; empty (not an error)
	// when nothing is stored.
	LoadWatchList() ([]string, error)
}
