// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package bot is the agent's Matrix-facing half: the sync driver that
// keeps an authenticated session alive across restarts, rate limits,
// and token invalidation; the membership policy deciding invites; the
// command dispatcher (!ping, !watch, !leave); the watch registry of
// subscribed rooms; and the notification fan-out that announces
// listing deltas to those rooms.
//
// The driver owns the session. Everything else receives the Matrix API
// per call, so a reauthentication that swaps the session underneath is
// invisible to the handlers.
package bot
