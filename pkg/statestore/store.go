package statestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/convflow/convflow/pkg/variables"
)

// DefaultTTL is the state lifetime applied when a save does not specify
// one. Refreshed on every write.
const DefaultTTL = time.Hour

// Store is the StateRepository: dual-write saves, read-through gets, and
// the maintenance operations run by the janitor.
type Store struct {
	fast    FastStore
	durable DurableStore
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source. Tests use it to simulate TTL
// expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(fast FastStore, durable DurableStore, logger *slog.Logger, opts ...Option) *Store {
	store := &Store{
		fast:    fast,
		durable: durable,
		logger:  logger.With("module", "statestore"),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Save writes the full snapshot to both tiers. The cache write is
// best-effort; a durable write failure is the reported error. A cache
// entry written before a failed durable write is left in place: durable
// is the source of truth on misses and the discrepancy self-heals on the
// next save.
func (s *Store) Save(ctx context.Context, state *SessionState, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := s.now().UTC()

	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}

	state.UpdatedAt = now
	state.ExpiresAt = now.Add(ttl)

	if err := s.fast.Put(ctx, state, ttl); err != nil {
		s.logger.WarnContext(ctx, "Cache write failed, durable store remains authoritative",
			"session_id", state.SessionID, "error", err)
	}

	if err := s.durable.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}

	return nil
}

// Get reads through the cache. An expired cache hit is treated as a miss
// and deleted; a durable hit repopulates the cache with the remaining TTL,
// not the original one. Returns ErrStateNotFound when neither tier has a
// live row.
func (s *Store) Get(ctx context.Context, sessionID string) (*SessionState, error) {
	now := s.now().UTC()

	cached, err := s.fast.Fetch(ctx, sessionID)
	if err != nil {
		s.logger.WarnContext(ctx, "Cache read failed, falling back to durable store",
			"session_id", sessionID, "error", err)
	}

	if cached != nil {
		if !cached.Expired(now) {
			return cached, nil
		}

		if err := s.fast.Delete(ctx, sessionID); err != nil {
			s.logger.WarnContext(ctx, "Failed to evict expired cache entry",
				"session_id", sessionID, "error", err)
		}
	}

	stored, err := s.durable.Fetch(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil, ErrStateNotFound
		}

		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	if stored.Expired(now) {
		if err := s.durable.Delete(ctx, sessionID); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete expired session state",
				"session_id", sessionID, "error", err)
		}

		return nil, ErrStateNotFound
	}

	remaining := stored.ExpiresAt.Sub(now)
	if err := s.fast.Put(ctx, stored, remaining); err != nil {
		s.logger.WarnContext(ctx, "Failed to repopulate cache",
			"session_id", sessionID, "error", err)
	}

	return stored, nil
}

// UpdateVariables merges (or replaces) the variable bag of an existing
// state and re-saves it with every other field unchanged.
func (s *Store) UpdateVariables(ctx context.Context, sessionID string, partial map[string]any, merge bool) error {
	state, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if merge {
		state.Variables = variables.Merge(state.Variables, partial)
	} else {
		state.Variables = partial
	}

	return s.Save(ctx, state, s.remainingOrDefault(state))
}

// AdvanceOptions carries the optional fields of Advance. A nil Variables
// keeps the stored bag untouched, so step types that do not write
// variables cannot clobber ones the caller just wrote.
type AdvanceOptions struct {
	StepContext     *StepContext
	WaitingForInput *WaitingKind
	Variables       map[string]any
	LastUserMessage string
	LastBotMessage  string
}

// Advance moves the session to a new step and re-saves, carrying forward
// any field not set in opts.
func (s *Store) Advance(ctx context.Context, sessionID, newStepID string, opts AdvanceOptions) error {
	state, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	state.CurrentStepID = newStepID

	if opts.StepContext != nil {
		state.StepContext = opts.StepContext
	}

	if opts.WaitingForInput != nil {
		state.WaitingForInput = *opts.WaitingForInput
	}

	if opts.Variables != nil {
		state.Variables = opts.Variables
	}

	if opts.LastUserMessage != "" {
		state.LastUserMessage = opts.LastUserMessage
	}

	if opts.LastBotMessage != "" {
		state.LastBotMessage = opts.LastBotMessage
	}

	return s.Save(ctx, state, s.remainingOrDefault(state))
}

// MarkCompleted flags the state completed and clears the waiting marker,
// but does NOT delete the row: it still expires via TTL, which keeps late
// duplicate step calls idempotent and leaves the state inspectable for the
// rest of the TTL window.
func (s *Store) MarkCompleted(ctx context.Context, sessionID string) error {
	state, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	state.Completed = true
	state.WaitingForInput = WaitingNone

	return s.Save(ctx, state, s.remainingOrDefault(state))
}

// Delete removes the state from both tiers.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.fast.Delete(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete cache entry",
			"session_id", sessionID, "error", err)
	}

	if err := s.durable.Delete(ctx, sessionID); err != nil && !errors.Is(err, ErrStateNotFound) {
		return fmt.Errorf("failed to delete session state: %w", err)
	}

	return nil
}

// CleanupExpired removes durable rows past their TTL. Cache entries expire
// on their own.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	removed, err := s.durable.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired states: %w", err)
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "Removed expired session states", "count", removed)
	}

	return removed, nil
}

// ReconcileCache deletes cache entries whose durable counterpart is gone,
// handling a cache TTL that outlives a deleted durable row.
func (s *Store) ReconcileCache(ctx context.Context) (int, error) {
	sessionIDs, err := s.fast.SessionIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache entries: %w", err)
	}

	removed := 0

	for _, sessionID := range sessionIDs {
		_, err := s.durable.Fetch(ctx, sessionID)
		if err == nil {
			continue
		}

		if !errors.Is(err, ErrStateNotFound) {
			return removed, fmt.Errorf("failed to reconcile session %s: %w", sessionID, err)
		}

		if err := s.fast.Delete(ctx, sessionID); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete orphaned cache entry",
				"session_id", sessionID, "error", err)

			continue
		}

		removed++
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "Removed orphaned cache entries", "count", removed)
	}

	return removed, nil
}

// remainingOrDefault refreshes the TTL on every write, per the state
// lifecycle: writes push expiry out by the full window again.
func (s *Store) remainingOrDefault(state *SessionState) time.Duration {
	ttl := state.ExpiresAt.Sub(state.UpdatedAt)
	if ttl <= 0 {
		return DefaultTTL
	}

	return ttl
}
