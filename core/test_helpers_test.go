package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now.UTC()}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *manualClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now.UTC()
	c.mu.Unlock()
}

type fakeIdentityClient struct {
	mu           sync.Mutex
	refreshCalls int
	grant        TokenGrant
	grantQueue   []TokenGrant
	refreshErr   error
	refreshGate  chan struct{}

	infoCalls int
	info      TokenInfo
	infoErr   error
}

func (c *fakeIdentityClient) RefreshToken(_ context.Context, _, _, _ string) (TokenGrant, error) {
	c.mu.Lock()
	c.refreshCalls++
	gate := c.refreshGate
	err := c.refreshErr
	grant := c.grant
	if len(c.grantQueue) > 0 {
		grant = c.grantQueue[0]
		c.grantQueue = c.grantQueue[1:]
	}
	c.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return TokenGrant{}, err
	}
	return grant, nil
}

func (c *fakeIdentityClient) TokenInfo(_ context.Context, _, _ string) (TokenInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.infoCalls++
	if c.infoErr != nil {
		return TokenInfo{}, c.infoErr
	}
	return c.info, nil
}

func (c *fakeIdentityClient) refreshCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshCalls
}

func (c *fakeIdentityClient) infoCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.infoCalls
}

func (c *fakeIdentityClient) setRefreshErr(err error) {
	c.mu.Lock()
	c.refreshErr = err
	c.mu.Unlock()
}

// trackingStore wraps a store and lets tests fail saves on demand.
type trackingStore struct {
	inner CredentialStore

	mu        sync.Mutex
	saveCalls int
	saveErr   error
	lastSaved Credentials
}

func newTrackingStore(inner CredentialStore) *trackingStore {
	return &trackingStore{inner: inner}
}

func (s *trackingStore) Load(ctx context.Context) (Credentials, error) {
	return s.inner.Load(ctx)
}

func (s *trackingStore) Save(ctx context.Context, credentials Credentials) error {
	s.mu.Lock()
	s.saveCalls++
	err := s.saveErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if saveErr := s.inner.Save(ctx, credentials); saveErr != nil {
		return saveErr
	}
	s.mu.Lock()
	s.lastSaved = credentials
	s.mu.Unlock()
	return nil
}

func (s *trackingStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCalls
}

func (s *trackingStore) setSaveErr(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}

func (s *trackingStore) saved() Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

type failingLoadStore struct {
	err error
}

func (s failingLoadStore) Load(context.Context) (Credentials, error) {
	return Credentials{}, s.err
}

func (s failingLoadStore) Save(context.Context, Credentials) error {
	return nil
}

func waitFor(t *testing.T, message string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", message)
}

func mustParseTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time %q: %v", value, err)
	}
	return parsed.UTC()
}

func refreshableFixture(t *testing.T, expiry string) Credentials {
	t.Helper()
	expiresAt := mustParseTime(t, expiry)
	return Credentials{
		ClientID:     "c",
		ClientSecret: "s",
		AccessToken:  "a0",
		RefreshToken: "r0",
		Scopes:       []string{"chat:read"},
		ExpiresAt:    &expiresAt,
	}
}

func newTestProvider(t *testing.T, store CredentialStore, identity IdentityClient, clock *manualClock, extra ...Option) *Provider {
	t.Helper()
	options := []Option{
		WithStore(store),
		WithIdentityClient(identity),
		WithClock(clock.Now),
	}
	options = append(options, extra...)
	provider, err := NewProvider(Config{}, options...)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	t.Cleanup(provider.Close)
	return provider
}
