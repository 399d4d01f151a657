// Copyright 2026 The Pubwatch Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pubwatch/pubwatch/lib/backoff"
	"github.com/pubwatch/pubwatch/lib/clock"
	"github.com/pubwatch/pubwatch/lib/secret"
	"github.com/pubwatch/pubwatch/messaging"
	"github.com/pubwatch/pubwatch/session"
)

// ErrAuthRejected means the homeserver refused the configured
// credentials outright. There is no recovering from a wrong password;
// the operator has to fix the configuration.
var ErrAuthRejected = errors.New("bot: credentials rejected by homeserver")

// errReauth is the driver-internal signal that the current access
// token is dead and a full reauthentication is required.
var errReauth = errors.New("bot: access token invalidated")

const (
	// defaultStreamTimeout is the /sync long-poll timeout.
	defaultStreamTimeout = 30 * time.Second

	// rateLimitFallback is the wait after a rate-limit response that
	// carries no retry_after_ms.
	rateLimitFallback = 5 * time.Second

	// transientLoginDelay paces retries of transient login failures.
	transientLoginDelay = 2 * time.Second

	// defaultLoginAttempts bounds retries of login failures that are
	// neither fatal nor clearly transient.
	defaultLoginAttempts = 3
)

// SyncHandler consumes one /sync response. The session is passed per
// call because a reauthentication may swap it between responses.
type SyncHandler interface {
	HandleSync(ctx context.Context, api *messaging.Session, response *messaging.SyncResponse)
}

// DriverConfig configures a Driver.
type DriverConfig struct {
	Client *messaging.Client
	Store  session.Store
	Clock  clock.Clock
	Logger *slog.Logger

	Username   string
	Password   *secret.Buffer
	DeviceName string

	// StreamTimeout overrides the long-poll timeout (mainly for tests).
	StreamTimeout time.Duration

	// LoginAttempts bounds non-transient, non-fatal login retries.
	LoginAttempts int
}

// Driver keeps an authenticated session alive and feeds sync responses
// to a handler. It owns the session and the sync token; on token
// invalidation it wipes the store, reauthenticates with the configured
// password, and resumes streaming from the in-memory token.
type Driver struct {
	client        *messaging.Client
	store         session.Store
	clock         clock.Clock
	logger        *slog.Logger
	username      string
	password      *secret.Buffer
	deviceName    string
	streamTimeout time.Duration
	loginAttempts int

	mu        sync.Mutex
	session   *messaging.Session
	nextBatch string
}

// NewDriver creates a driver. Password is required — it is the
// recovery path when a restored token turns out to be dead.
func NewDriver(config DriverConfig) (*Driver, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("bot: driver requires a client")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("bot: driver requires a session store")
	}
	if config.Username == "" || config.Password == nil {
		return nil, fmt.Errorf("bot: driver requires username and password")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.StreamTimeout <= 0 {
		config.StreamTimeout = defaultStreamTimeout
	}
	if config.LoginAttempts <= 0 {
		config.LoginAttempts = defaultLoginAttempts
	}
	return &Driver{
		client:        config.Client,
		store:         config.Store,
		clock:         config.Clock,
		logger:        config.Logger,
		username:      config.Username,
		password:      config.Password,
		deviceName:    config.DeviceName,
		streamTimeout: config.StreamTimeout,
		loginAttempts: config.LoginAttempts,
	}, nil
}

// Session returns the current authenticated session, or nil before the
// first successful authentication.
func (d *Driver) Session() *messaging.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

func (d *Driver) setSession(sess *messaging.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session != nil {
		d.session.Close()
	}
	d.session = sess
}

// Run authenticates and streams sync responses into handler until ctx
// is cancelled or a fatal error occurs. The only fatal errors are
// ErrAuthRejected (wrong credentials) and repeated unexplainable login
// failures; everything else is retried internally.
func (d *Driver) Run(ctx context.Context, handler SyncHandler) error {
	defer d.setSession(nil)

	if err := d.authenticate(ctx); err != nil {
		return err
	}

	for {
		err := d.catchUp(ctx)
		if err == nil {
			err = d.stream(ctx, handler)
		}

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, errReauth):
			d.reauthenticate()
			if err := d.authenticate(ctx); err != nil {
				return err
			}
		default:
			return err
		}
	}
}

// authenticate establishes a session: from the store when a credential
// is present, by password login otherwise.
func (d *Driver) authenticate(ctx context.Context) error {
	credential, err := d.store.Restore()
	switch {
	case err == nil:
		sess, err := d.client.SessionFromToken(credential.UserID, credential.DeviceID, credential.AccessToken)
		if err != nil {
			return fmt.Errorf("bot: restoring session: %w", err)
		}
		d.setSession(sess)
		d.mu.Lock()
		d.nextBatch = credential.NextBatch
		d.mu.Unlock()
		d.logger.Info("session restored", "user_id", credential.UserID)
		return nil

	case errors.Is(err, session.ErrNotFound):
		d.logger.Info("no stored session, logging in")
	case errors.Is(err, session.ErrCorrupt):
		d.logger.Warn("stored session is corrupt, logging in fresh", "error", err)
	default:
		return fmt.Errorf("bot: restoring credential: %w", err)
	}

	return d.login(ctx)
}

// login performs password authentication. Wrong credentials are fatal;
// transient network failures retry unboundedly; anything else gets a
// bounded number of attempts.
func (d *Driver) login(ctx context.Context) error {
	attempts := 0
	for {
		sess, err := d.client.Login(ctx, d.username, d.password, d.deviceName)
		if err == nil {
			d.setSession(sess)
			d.persistCredential()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if messaging.IsMatrixError(err, messaging.ErrCodeForbidden) {
			return fmt.Errorf("%w: %v", ErrAuthRejected, err)
		}
		if messaging.IsTransient(err) {
			d.logger.Warn("login failed, retrying", "error", err)
			d.clock.Sleep(transientLoginDelay)
			continue
		}

		attempts++
		if attempts >= d.loginAttempts {
			return fmt.Errorf("bot: login failed after %d attempts: %w", attempts, err)
		}
		d.logger.Warn("login failed", "attempt", attempts, "error", err)
		d.clock.Sleep(transientLoginDelay)
	}
}

// catchUp performs the bounded sync that brings the token current
// before streaming begins. The same fetch is retried until it
// succeeds, the token is declared dead, or ctx ends.
func (d *Driver) catchUp(ctx context.Context) error {
	for {
		sess := d.Session()
		response, err := sess.Sync(ctx, messaging.SyncOptions{
			Since:      d.currentBatch(),
			Timeout:    0,
			SetTimeout: true,
		})
		if err == nil {
			d.advanceBatch(response.NextBatch)
			d.logger.Info("caught up", "next_batch", response.NextBatch)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if limited, ok := messaging.IsRateLimited(err); ok {
			delay := limited.RetryAfter(rateLimitFallback)
			d.logger.Warn("rate limited during catch-up", "delay", delay)
			d.clock.Sleep(delay)
			continue
		}
		if messaging.IsAuthInvalid(err) {
			return errReauth
		}
		if messaging.IsTransient(err) {
			d.logger.Warn("catch-up sync failed, retrying", "error", err)
			d.clock.Sleep(time.Second)
			continue
		}
		return fmt.Errorf("bot: catch-up sync failed: %w", err)
	}
}

// stream long-polls /sync and dispatches each response. Transient
// failures back off exponentially (1s doubling, clamped at 30s) and
// reset on the next success.
func (d *Driver) stream(ctx context.Context, handler SyncHandler) error {
	chain := backoff.Streaming.Start()
	for {
		sess := d.Session()
		response, err := sess.Sync(ctx, messaging.SyncOptions{
			Since:      d.currentBatch(),
			Timeout:    int(d.streamTimeout.Milliseconds()),
			SetTimeout: true,
		})
		if err == nil {
			handler.HandleSync(ctx, sess, response)
			d.advanceBatch(response.NextBatch)
			chain = backoff.Streaming.Start()
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if limited, ok := messaging.IsRateLimited(err); ok {
			delay := limited.RetryAfter(rateLimitFallback)
			d.logger.Warn("rate limited during streaming", "delay", delay)
			d.clock.Sleep(delay)
			continue
		}
		if messaging.IsAuthInvalid(err) {
			return errReauth
		}

		// Anything else — connection failures, 5xx, and the odd
		// unexpected response — is retried under the streaming
		// schedule. The stream must outlive server weather.
		delay, _ := chain.Next()
		d.logger.Warn("streaming sync failed, backing off", "delay", delay, "error", err)
		sess.CloseIdleConnections()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.clock.After(delay):
		}
	}
}

// reauthenticate discards the dead session wholesale: persisted
// credential, in-memory token, pooled connections. The fresh login
// starts from a clean baseline; replayed events are safe because
// registry mutations are idempotent.
func (d *Driver) reauthenticate() {
	d.logger.Warn("access token invalidated, reauthenticating")
	if err := d.store.Wipe(); err != nil {
		d.logger.Error("wiping session store failed", "error", err)
	}
	d.setSession(nil)
	d.mu.Lock()
	d.nextBatch = ""
	d.mu.Unlock()
	d.client.CloseIdleConnections()
}

func (d *Driver) currentBatch() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nextBatch
}

// advanceBatch records a new sync token and persists the credential so
// a restart resumes from here. Persist failures are logged; the
// in-memory token stays authoritative.
func (d *Driver) advanceBatch(nextBatch string) {
	d.mu.Lock()
	d.nextBatch = nextBatch
	d.mu.Unlock()
	d.persistCredential()
}

func (d *Driver) persistCredential() {
	sess := d.Session()
	if sess == nil {
		return
	}
	credential := &session.Credential{
		UserID:      sess.UserID(),
		DeviceID:    sess.DeviceID(),
		AccessToken: sess.AccessToken(),
		NextBatch:   d.currentBatch(),
	}
	if err := d.store.Persist(credential); err != nil {
		d.logger.Error("persisting credential failed", "error", err)
	}
}
