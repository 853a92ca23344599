package core

import (
	"context"
	"testing"
	"time"
)

func TestPruneEvictsExpiredSettledEntries(t *testing.T) {
	now := mustParseTime(t, "2021-04-16T00:00:01Z")
	clock := newManualClock(now)
	store, err := NewMemoryCredentialStore(refreshableFixture(t, "2021-04-16T00:00:00Z"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	identity := &fakeIdentityClient{
		grant: TokenGrant{
			AccessToken:  "a1",
			RefreshToken: "r1",
			ExpiresIn:    3600,
			ObtainedAt:   now,
		},
	}
	provider := newTestProvider(t, store, identity, clock)

	if _, err := provider.Fetch(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, ok := provider.refreshEntry("a0"); !ok {
		t.Fatal("expected a settled entry for the superseded token")
	}

	// Inside the retention window the entry survives.
	newExpiry := now.Add(time.Hour)
	if removed := provider.prune(newExpiry.Add(DefaultExpiryAge - time.Minute)); removed != 0 {
		t.Fatalf("expected no eviction inside the retention window, removed %d", removed)
	}
	if _, ok := provider.refreshEntry("a0"); !ok {
		t.Fatal("entry evicted inside the retention window")
	}

	// Past expiry plus the retention age it is gone.
	if removed := provider.prune(newExpiry.Add(DefaultExpiryAge + time.Minute)); removed != 1 {
		t.Fatalf("expected one eviction, removed %d", removed)
	}
	if _, ok := provider.refreshEntry("a0"); ok {
		t.Fatal("expected the entry to be pruned")
	}
}

func TestPruneNeverRemovesInFlightEntries(t *testing.T) {
	now := mustParseTime(t, "2021-04-16T00:00:01Z")
	clock := newManualClock(now)
	store, err := NewMemoryCredentialStore(refreshableFixture(t, "2021-04-16T00:00:00Z"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	gate := make(chan struct{})
	identity := &fakeIdentityClient{
		refreshGate: gate,
		grant: TokenGrant{
			AccessToken:  "a1",
			RefreshToken: "r1",
			ExpiresIn:    3600,
			ObtainedAt:   now,
		},
	}
	provider := newTestProvider(t, store, identity, clock)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = provider.Fetch(context.Background())
	}()
	waitFor(t, "refresh to be in flight", func() bool {
		provider.mu.Lock()
		defer provider.mu.Unlock()
		_, ok := provider.refreshes["a0"]
		return ok
	})

	if removed := provider.prune(now.Add(100 * 24 * time.Hour)); removed != 0 {
		t.Fatalf("pruner removed %d in-flight entries", removed)
	}

	close(gate)
	<-done
	if _, ok := provider.refreshEntry("a0"); !ok {
		t.Fatal("expected the refresh to settle into the map")
	}
}
