// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// Keyring entry names within the configured service.
const (
	keyUserID       = "user_id"
	keyDeviceID     = "device_id"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyNextBatch    = "next_batch"
	keyWatchList    = "watchlist"
)

// KeyringStore persists the credential in the operating system's
// secret service (Secret Service on Linux, Keychain on macOS,
// Credential Manager on Windows), one entry per field under a
// configured service name.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keyring-backed store under the given
// service name.
func NewKeyringStore(service string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("session: keyring store requires a service name")
	}
	return &KeyringStore{service: service}, nil
}

// Exists reports whether an access token entry is present.
func (s *KeyringStore) Exists() bool {
	_, err := keyring.Get(s.service, keyAccessToken)
	return err == nil
}

// Restore assembles a credential from the keyring entries. A missing
// required field (user id, access token) is ErrNotFound; optional
// fields degrade to absent rather than failing the restore.
func (s *KeyringStore) Restore() (*Credential, error) {
	userID, err := s.required(keyUserID)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.required(keyAccessToken)
	if err != nil {
		return nil, err
	}

	return &Credential{
		UserID:       userID,
		DeviceID:     s.optional(keyDeviceID),
		AccessToken:  accessToken,
		RefreshToken: s.optional(keyRefreshToken),
		NextBatch:    s.optional(keyNextBatch),
	}, nil
}

// Persist writes every credential field to its keyring entry. Empty
// optional fields clear their entries so a stale refresh token never
// outlives the credential that owned it.
func (s *KeyringStore) Persist(credential *Credential) error {
	required := map[string]string{
		keyUserID:      credential.UserID,
		keyAccessToken: credential.AccessToken,
	}
	for key, value := range required {
		if err := keyring.Set(s.service, key, value); err != nil {
			return fmt.Errorf("session: storing %s in keyring: %w", key, err)
		}
	}

	optional := map[string]string{
		keyDeviceID:     credential.DeviceID,
		keyRefreshToken: credential.RefreshToken,
		keyNextBatch:    credential.NextBatch,
	}
	for key, value := range optional {
		if value == "" {
			if err := s.delete(key); err != nil {
				return err
			}
			continue
		}
		if err := keyring.Set(s.service, key, value); err != nil {
			return fmt.Errorf("session: storing %s in keyring: %w", key, err)
		}
	}
	return nil
}

// Wipe removes every entry, watch list included. A deletion failure is
// reported — it means a live token may still sit in the keyring.
func (s *KeyringStore) Wipe() error {
	var errs []error
	for _, key := range []string{keyUserID, keyDeviceID, keyAccessToken, keyRefreshToken, keyNextBatch, keyWatchList} {
		if err := s.delete(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveWatchList stores the registry as a newline-joined entry —
// keyring values are strings, and room IDs cannot contain newlines.
func (s *KeyringStore) SaveWatchList(roomIDs []string) error {
	if len(roomIDs) == 0 {
		return s.delete(keyWatchList)
	}
	if err := keyring.Set(s.service, keyWatchList, joinLines(roomIDs)); err != nil {
		return fmt.Errorf("session: storing watch list in keyring: %w", err)
	}
	return nil
}

// LoadWatchList reads the registry entry; absent means empty.
func (s *KeyringStore) LoadWatchList() ([]string, error) {
	value, err := keyring.Get(s.service, keyWatchList)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: reading watch list from keyring: %w", err)
	}
	return splitLines(value), nil
}

func (s *KeyringStore) required(key string) (string, error) {
	value, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session: reading %s from keyring: %w", key, err)
	}
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *KeyringStore) optional(key string) string {
	value, err := keyring.Get(s.service, key)
	if err != nil {
		return ""
	}
	return value
}

func joinLines(values []string) string { return strings.Join(values, "\n") }

func splitLines(value string) []string {
	var values []string
	for _, line := range strings.Split(value, "\n") {
		if line != "" {
			values = append(values, line)
		}
	}
	return values
}

// delete removes an entry, treating not-found as success.
func (s *KeyringStore) delete(key string) error {
	if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("session: deleting %s from keyring: %w", key, err)
	}
	return nil
}
