// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds sensitive material — the account password, the
// Matrix access token, the session-store passphrase — in memory that
// the Go runtime cannot copy or leak.
//
// Buffer allocates its backing memory outside the Go heap with
// mmap(MAP_ANONYMOUS), pins it into RAM with mlock so it never reaches
// swap, and marks it MADV_DONTDUMP so it is excluded from core dumps.
// Close zeroes the region before unmapping it. The garbage collector
// never sees the region and therefore never duplicates it.
package secret

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer is a guarded byte region for secret material. It must not be
// copied after creation. Accessing the contents after Close panics.
type Buffer struct {
	mu     sync.Mutex
	region []byte
	closed bool
}

// New allocates a guarded buffer of the given size. The caller must
// Close it when the secret is no longer needed.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(region)
		unix.Munmap(region)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP): %w", err)
	}

	return &Buffer{region: region}, nil
}

// NewFromBytes copies source into a fresh guarded buffer and zeroes
// source in place, so the caller's slice no longer holds the secret.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: cannot create buffer from empty source")
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.region, source)
	Zero(source)
	return buffer, nil
}

// NewFromString copies source into a guarded buffer. The string itself
// remains on the heap until collected — unavoidable for string inputs;
// the buffer is the durable copy. Use NewFromBytes where possible.
func NewFromString(source string) (*Buffer, error) {
	if source == "" {
		return nil, fmt.Errorf("secret: cannot create buffer from empty string")
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.region, source)
	return buffer, nil
}

// Bytes returns the guarded region itself. Do not retain the slice
// beyond the lifetime of the Buffer. Panics after Close.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return b.region
}

// String returns a heap copy of the secret. Go strings are immutable
// heap values, so this escapes the guarded region — use only at API
// boundaries that demand a string (JSON bodies, Authorization headers).
// Panics after Close.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: read from closed buffer")
	}
	return string(b.region)
}

// Len returns the size of the secret.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.region)
}

// Close zeroes the region, unpins it, and unmaps it. Idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.region)

	var firstError error
	if err := unix.Munlock(b.region); err != nil {
		firstError = fmt.Errorf("secret: munlock: %w", err)
	}
	if err := unix.Munmap(b.region); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munmap: %w", err)
	}
	b.region = nil
	return firstError
}

// Zero overwrites a byte slice in place. Use on transient heap copies
// (serialized credentials, decrypted blobs) as soon as they have been
// consumed.
func Zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
