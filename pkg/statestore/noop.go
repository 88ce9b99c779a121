package statestore

import (
	"context"
	"time"
)

// NopFastStore stands in when no cache tier is configured: every read
// misses and falls through to the durable store.
type NopFastStore struct{}

func (NopFastStore) Put(_ context.Context, _ *SessionState, _ time.Duration) error {
	return nil
}

func (NopFastStore) Fetch(_ context.Context, _ string) (*SessionState, error) {
	return nil, nil
}

func (NopFastStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (NopFastStore) SessionIDs(_ context.Context) ([]string, error) {
	return nil, nil
}
