// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package credentials provides the CredentialsProvider capability: a
// single resolver interface, a caching decorator with single-flight
// refresh (grounded on the teacher's control_channel.go
// reconnect-with-backoff state machine), and an ordered fallback chain.
package credentials

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nishisan-dev/go-protocol-core/clock"
	"github.com/nishisan-dev/go-protocol-core/sdkerrors"
)

// Credentials are immutable once constructed.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      *time.Time
	ProviderName    string
}

// Provider resolves credentials, possibly performing I/O.
type Provider interface {
	Resolve(ctx context.Context) (Credentials, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context) (Credentials, error)

// Resolve calls f.
func (f ProviderFunc) Resolve(ctx context.Context) (Credentials, error) { return f(ctx) }

const (
	defaultExpireAfter  = 15 * time.Minute
	defaultRefreshBuffer = 10 * time.Second
)

// CachedProvider memoizes the latest credentials from source until
// min(credentials.Expiration, clock.Now()+expireAfter) - refreshBuffer
// <= clock.Now(). Concurrent callers during a refresh share one
// in-flight call to source.Resolve.
type CachedProvider struct {
	source        Provider
	expireAfter   time.Duration
	refreshBuffer time.Duration
	clock         clock.Clock
	logger        *slog.Logger

	mu       sync.Mutex
	cached   *Credentials
	validUntil time.Time
	closed   bool

	inFlight *sync.WaitGroup
	result   Credentials
	resultErr error
}

// Option configures a CachedProvider at construction time.
type Option func(*CachedProvider)

// WithExpireAfter overrides the default 15-minute cap on how long
// resolved credentials are cached. The cap applies whether or not the
// source credentials carry an expiration; the earlier of the two wins.
func WithExpireAfter(d time.Duration) Option {
	return func(p *CachedProvider) { p.expireAfter = d }
}

// WithRefreshBuffer overrides the default 10-second early-refresh buffer.
func WithRefreshBuffer(d time.Duration) Option {
	return func(p *CachedProvider) { p.refreshBuffer = d }
}

// WithClock overrides the clock used to evaluate expiration (System by default).
func WithClock(c clock.Clock) Option {
	return func(p *CachedProvider) { p.clock = c }
}

// WithLogger attaches a logger for refresh diagnostics; nil-safe, falls
// back to slog.Default() when never set.
func WithLogger(l *slog.Logger) Option {
	return func(p *CachedProvider) { p.logger = l }
}

// NewCachedProvider wraps source with caching per the options given.
func NewCachedProvider(source Provider, opts ...Option) *CachedProvider {
	p := &CachedProvider{
		source:        source,
		expireAfter:   defaultExpireAfter,
		refreshBuffer: defaultRefreshBuffer,
		clock:         clock.System{},
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolve returns the cached credentials if still valid, otherwise
// refreshes from source. Only one refresh is ever in flight; other
// callers arriving during a refresh observe its result.
func (p *CachedProvider) Resolve(ctx context.Context) (Credentials, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Credentials{}, sdkerrors.NewCredentialsProviderException([]sdkerrors.ProviderFailure{
			{ProviderName: "CachedProvider", Err: errClosed},
		})
	}
	now := p.clock.Now()
	if p.cached != nil && now.Before(p.validUntil) {
		creds := *p.cached
		p.mu.Unlock()
		return creds, nil
	}

	if p.inFlight != nil {
		wg := p.inFlight
		p.mu.Unlock()
		wg.Wait()
		p.mu.Lock()
		result, err := p.result, p.resultErr
		p.mu.Unlock()
		return result, err
	}

	wg := &sync.WaitGroup{}
	wg.Add(1)
	p.inFlight = wg
	p.mu.Unlock()

	creds, err := p.source.Resolve(ctx)

	p.mu.Lock()
	p.result, p.resultErr = creds, err
	if err == nil {
		p.cached = &creds
		p.validUntil = p.expirationDeadline(creds, now)
	}
	p.inFlight = nil
	p.mu.Unlock()
	wg.Done()

	if p.logger != nil {
		if err != nil {
			p.logger.With("component", "credentials").Error("refresh failed", "error", err)
		} else {
			p.logger.With("component", "credentials").Debug("refreshed credentials", "provider", creds.ProviderName, "valid_until", p.validUntil)
		}
	}

	return creds, err
}

func (p *CachedProvider) expirationDeadline(creds Credentials, now time.Time) time.Time {
	ceiling := now.Add(p.expireAfter)
	deadline := ceiling
	if creds.Expiration != nil && creds.Expiration.Before(ceiling) {
		deadline = *creds.Expiration
	}
	return deadline.Add(-p.refreshBuffer)
}

// Close evicts any cached credentials; subsequent Resolve calls fail.
func (p *CachedProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cached = nil
}

var errClosed = sdkerrors.NewClientException("credentials provider is closed", nil)

// Chain tries providers in order, returning the first success. Each
// failure is remembered; if every provider fails, Resolve raises
// CredentialsProviderException listing every attempt.
type Chain struct {
	providers []namedProvider
}

type namedProvider struct {
	name     string
	provider Provider
}

// NewChain builds a Chain from name/provider pairs, tried in the given order.
func NewChain(entries ...ChainEntry) *Chain {
	c := &Chain{}
	for _, e := range entries {
		c.providers = append(c.providers, namedProvider{name: e.Name, provider: e.Provider})
	}
	return c
}

// ChainEntry names one provider within a Chain for diagnostics.
type ChainEntry struct {
	Name     string
	Provider Provider
}

// Resolve tries each provider in order and returns the first success.
// If a provider fails, its failure is remembered and the next provider
// is tried; later providers are never invoked once one succeeds.
func (c *Chain) Resolve(ctx context.Context) (Credentials, error) {
	var failures []sdkerrors.ProviderFailure
	for _, np := range c.providers {
		creds, err := np.provider.Resolve(ctx)
		if err == nil {
			return creds, nil
		}
		failures = append(failures, sdkerrors.ProviderFailure{ProviderName: np.name, Err: err})
	}
	return Credentials{}, sdkerrors.NewCredentialsProviderException(failures)
}
