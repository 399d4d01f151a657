// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
	"github.com/fxamacker/cbor/v2"

	"github.com/pubwatch/pubwatch/lib/secret"
)

const (
	credentialFile = "credential.age"
	watchListFile  = "watchlist.cbor"
)

// FileStore persists the credential as a single age-encrypted CBOR
// blob under dir, protected by a passphrase (age scrypt recipient).
// The watch registry lives beside it as a plain CBOR sidecar — room
// IDs are not secret, only the credential is.
type FileStore struct {
	dir        string
	passphrase *secret.Buffer
}

// NewFileStore creates a file-backed store rooted at dir. The
// directory is created (0700) if missing. The passphrase buffer is
// borrowed for the lifetime of the store — the caller closes it after
// the store is no longer used.
func NewFileStore(dir string, passphrase *secret.Buffer) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session: file store requires a directory")
	}
	if passphrase == nil {
		return nil, fmt.Errorf("session: file store requires a passphrase")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: creating store directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, passphrase: passphrase}, nil
}

// Exists reports whether the credential blob is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(filepath.Join(s.dir, credentialFile))
	return err == nil
}

// Restore decrypts and decodes the credential blob. A missing blob is
// ErrNotFound; a blob that fails decryption or decoding is ErrCorrupt.
func (s *FileStore) Restore() (*Credential, error) {
	ciphertext, err := os.ReadFile(filepath.Join(s.dir, credentialFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: reading credential blob: %w", err)
	}

	identity, err := age.NewScryptIdentity(s.passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("session: building scrypt identity: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypting: %v", ErrCorrupt, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading decrypted blob: %v", ErrCorrupt, err)
	}
	defer secret.Zero(plaintext)

	var credential Credential
	if err := cbor.Unmarshal(plaintext, &credential); err != nil {
		return nil, fmt.Errorf("%w: decoding: %v", ErrCorrupt, err)
	}
	if credential.AccessToken == "" || credential.UserID == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrCorrupt)
	}
	return &credential, nil
}

// Persist encodes, encrypts, and atomically writes the credential.
func (s *FileStore) Persist(credential *Credential) error {
	plaintext, err := cbor.Marshal(credential)
	if err != nil {
		return fmt.Errorf("session: encoding credential: %w", err)
	}
	defer secret.Zero(plaintext)

	recipient, err := age.NewScryptRecipient(s.passphrase.String())
	if err != nil {
		return fmt.Errorf("session: building scrypt recipient: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return fmt.Errorf("session: creating encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return fmt.Errorf("session: encrypting credential: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("session: finalizing encryption: %w", err)
	}

	return writeAtomic(filepath.Join(s.dir, credentialFile), ciphertext.Bytes())
}

// Wipe deletes the entire store directory tree, credential and
// sidecar both.
func (s *FileStore) Wipe() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("session: wiping store directory %s: %w", s.dir, err)
	}
	return nil
}

// SaveWatchList writes the registry sidecar.
func (s *FileStore) SaveWatchList(roomIDs []string) error {
	// Wipe may have removed the directory; recreate so a post-wipe
	// mutation still persists.
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("session: recreating store directory: %w", err)
	}
	encoded, err := cbor.Marshal(roomIDs)
	if err != nil {
		return fmt.Errorf("session: encoding watch list: %w", err)
	}
	return writeAtomic(filepath.Join(s.dir, watchListFile), encoded)
}

// LoadWatchList reads the registry sidecar. Missing or unreadable
// sidecars yield an empty list — the registry is advisory state and a
// bad sidecar should not block startup.
func (s *FileStore) LoadWatchList() ([]string, error) {
	encoded, err := os.ReadFile(filepath.Join(s.dir, watchListFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: reading watch list: %w", err)
	}

	var roomIDs []string
	if err := cbor.Unmarshal(encoded, &roomIDs); err != nil {
		return nil, fmt.Errorf("session: decoding watch list: %w", err)
	}
	return roomIDs, nil
}

// writeAtomic writes data to path via a temp file and rename, so a
// crash mid-write leaves either the old content or the new, never a
// torn blob.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pubwatch-*")
	if err != nil {
		return fmt.Errorf("session: creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("session: writing %s: %w", path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("session: setting mode on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("session: closing %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("session: replacing %s: %w", path, err)
	}
	return nil
}
