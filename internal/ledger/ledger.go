// Package ledger maintains the one-attempt-per-candidate lock against the
// external durable store. The UI-facing lock is optimistic: it is set
// synchronously before any network round trip and never auto-unlocks,
// while the durable write reconciles asynchronously.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hiregen/coordinator/internal/domain"
)

var ErrUnauthenticated = errors.New("no authenticated candidate")

// IdentityProvider resolves the current candidate. Immediately after a
// page reload the token may not be available yet, so lookups are retried.
type IdentityProvider interface {
	CurrentCandidate(ctx context.Context) (domain.CandidateID, error)
}

// AttemptStore is the durable record collaborator.
type AttemptStore interface {
	GetAttempt(ctx context.Context, id domain.CandidateID) (domain.AttemptRecord, bool, error)
	UpsertAttempt(ctx context.Context, rec domain.AttemptRecord) error
	SubscribeAttempts(ctx context.Context) (<-chan domain.AttemptRecord, func(), error)
}

const (
	DefaultIdentityRetries = 8
	DefaultIdentityBackoff = 300 * time.Millisecond
)

// Client tracks two independent lock cells: localLockHint (synchronous,
// wins for UI decisions within this mounted session) and
// durableLockConfirmed (authoritative across reloads, set once the store
// round trip lands).
type Client struct {
	identity IdentityProvider
	store    AttemptStore

	retries int
	backoff time.Duration

	mu                   sync.Mutex
	localLockHint        bool
	durableLockConfirmed bool
}

type Option func(*Client)

func WithIdentityRetry(retries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.backoff = backoff
	}
}

func New(identity IdentityProvider, store AttemptStore, opts ...Option) *Client {
	c := &Client{
		identity: identity,
		store:    store,
		retries:  DefaultIdentityRetries,
		backoff:  DefaultIdentityBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resolveCandidate retries the identity lookup with a fixed backoff before
// giving up. Exhaustion means "unauthenticated", not "not attempted".
func (c *Client) resolveCandidate(ctx context.Context) (domain.CandidateID, error) {
	for i := 0; i < c.retries; i++ {
		id, err := c.identity.CurrentCandidate(ctx)
		if err == nil && id != "" {
			return id, nil
		}
		if err != nil {
			log.Debug().Err(err).Str("module", "ledger").Int("try", i+1).Msg("identity lookup failed")
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.backoff):
		}
	}
	return "", ErrUnauthenticated
}

// HasAttempted reads the durable record. Absent records and store
// failures after retries read as false: a transient read failure must
// never block a legitimate first attempt. Identity exhaustion is
// different — the caller blocks Start entirely rather than guessing.
func (c *Client) HasAttempted(ctx context.Context) (bool, error) {
	id, err := c.resolveCandidate(ctx)
	if err != nil {
		return false, err
	}

	rec, found, err := c.store.GetAttempt(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("module", "ledger").Str("candidate", id.String()).Msg("attempt read failed, treating as not attempted")
		return false, nil
	}
	attempted := found && rec.Attempted
	if attempted {
		c.mu.Lock()
		c.durableLockConfirmed = true
		c.mu.Unlock()
	}
	return attempted, nil
}

// MarkAttempted sets the local lock synchronously, then upserts
// attempted=true. Safe to call any number of times; a failed write logs
// and leaves the local lock in place — the UI never re-opens.
func (c *Client) MarkAttempted(ctx context.Context) error {
	c.mu.Lock()
	c.localLockHint = true
	c.mu.Unlock()

	id, err := c.resolveCandidate(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "ledger").Msg("markAttempted: no candidate to upsert for")
		return err
	}

	rec := domain.AttemptRecord{CandidateID: id, Attempted: true, UpdatedAt: time.Now()}
	if err := c.store.UpsertAttempt(ctx, rec); err != nil {
		log.Error().Err(err).Str("module", "ledger").Str("candidate", id.String()).Msg("attempt upsert failed")
		return err
	}

	c.mu.Lock()
	c.durableLockConfirmed = true
	c.mu.Unlock()
	log.Info().Str("module", "ledger").Str("candidate", id.String()).Msg("attempt upserted")
	return nil
}

// LockLocal sets the optimistic lock without any network round trip.
// The controller calls this synchronously on Start so the UI can never
// double-click its way into a second attempt; MarkAttempted reconciles
// the durable side afterwards.
func (c *Client) LockLocal() {
	c.mu.Lock()
	c.localLockHint = true
	c.mu.Unlock()
}

// Locked reports the UI lock: the local hint wins for decisions within
// this mounted session.
func (c *Client) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localLockHint || c.durableLockConfirmed
}

// DurableConfirmed reports whether the lock is known to have landed.
func (c *Client) DurableConfirmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.durableLockConfirmed
}

// Watch invokes onChange with the attempted flag whenever the current
// candidate's record changes. The returned cancel must be called on
// session teardown; stores without change feeds are tolerated.
func (c *Client) Watch(ctx context.Context, onChange func(bool)) (func(), error) {
	id, err := c.resolveCandidate(ctx)
	if err != nil {
		return nil, err
	}

	events, cancel, err := c.store.SubscribeAttempts(ctx)
	if err != nil {
		log.Debug().Err(err).Str("module", "ledger").Msg("store has no change feed")
		return func() {}, nil
	}

	go func() {
		for rec := range events {
			if rec.CandidateID != id {
				continue
			}
			if rec.Attempted {
				c.mu.Lock()
				c.durableLockConfirmed = true
				c.mu.Unlock()
			}
			onChange(rec.Attempted)
		}
	}()

	return cancel, nil
}
