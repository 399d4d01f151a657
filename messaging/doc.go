// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the slice of the Matrix client-server API the
// agent needs: password login, token-restored sessions, incremental
// /sync with long-polling, room join/leave, joined-room queries, and
// message sending (plain and HTML bodies).
//
// [Client] is the unauthenticated half: homeserver URL plus HTTP
// transport, shared by every Session derived from it. [Session] adds
// the access token, held in mmap-backed secret.Buffer memory (locked
// against swap, excluded from core dumps); callers must Close sessions
// to release it.
//
// All API errors are returned as [*MatrixError] carrying the standard
// Matrix error code, the HTTP status, and — for M_LIMIT_EXCEEDED — the
// server-specified retry_after_ms. The sync driver's whole error
// taxonomy (transient / rate-limited / auth-invalid) is derived from
// this one type plus ordinary transport errors.
package messaging
