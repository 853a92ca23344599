package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RefreshFor exchanges the refresh token for new credentials, keyed by the
// access token being superseded. Calls naming the same superseded token share
// one upstream exchange: the first caller installs an in-flight future into
// the refresh map, replaces the credential cell, and clears the save-retry
// stamp, all without suspending; later callers (and retries with the old
// token, for as long as the entry survives pruning) observe the same result.
func (p *Provider) RefreshFor(ctx context.Context, oldAccessToken string) (credentials Credentials, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["client_id"] = credentials.ClientID
		p.observeOperation(ctx, startedAt, "refresh", err, fields)
	}()

	if p == nil {
		return Credentials{}, fmt.Errorf("core: provider is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	oldAccessToken = strings.TrimSpace(oldAccessToken)
	if oldAccessToken == "" {
		err = p.mapError(fmt.Errorf("core: access token is required"))
		return Credentials{}, err
	}

	p.mu.Lock()
	if entry, ok := p.refreshes[oldAccessToken]; ok {
		p.mu.Unlock()
		credentials, err = entry.wait(ctx)
		if err != nil {
			err = p.mapError(err)
			return Credentials{}, err
		}
		return credentials, nil
	}

	prev := p.current
	future := newTokenFuture(prev)
	p.refreshes[oldAccessToken] = future
	p.current = future
	p.nextSaveRetry = time.Time{}
	p.mu.Unlock()

	go p.runRefresh(future, oldAccessToken, prev)

	credentials, err = future.wait(ctx)
	if err != nil {
		err = p.mapError(err)
		return Credentials{}, err
	}
	return credentials, nil
}

// runRefresh is the body of a refresh future. It runs detached from any
// caller context: cancelling one waiter must not cancel the exchange other
// waiters depend on.
func (p *Provider) runRefresh(future *tokenFuture, oldAccessToken string, prev *tokenFuture) {
	creds, err := p.performRefresh(oldAccessToken, prev)
	if err != nil {
		p.mu.Lock()
		delete(p.refreshes, oldAccessToken)
		p.mu.Unlock()
		p.logError(context.Background(), "token refresh failed", map[string]any{
			"error": err.Error(),
		})
		future.settle(Credentials{}, err)
		return
	}

	// Settling flips the map entry from in-flight to a settled record; the
	// pruner expires it by date from here on.
	future.settle(creds, nil)

	go p.saveCredentials(creds)
}

func (p *Provider) performRefresh(oldAccessToken string, prev *tokenFuture) (Credentials, error) {
	cur, err := p.resolveSettled(prev)
	if err != nil {
		return Credentials{}, err
	}

	if !cur.Refreshable() {
		return Credentials{}, newFatalError(
			"core: credentials lack the client secret or refresh token required to refresh",
			AuthErrorNotRefreshable,
		)
	}
	if cur.AccessToken != oldAccessToken {
		// Returning the current record here would hand a newer token to a
		// caller that only proved possession of an old one.
		return Credentials{}, newFatalError(
			"core: refresh was called with a stale or unknown access token",
			AuthErrorStaleAccessToken,
		)
	}
	if p.identityClient == nil {
		return Credentials{}, fmt.Errorf("core: identity client is required to refresh")
	}

	grant, err := p.identityClient.RefreshToken(
		context.Background(),
		cur.ClientID,
		cur.ClientSecret,
		cur.RefreshToken,
	)
	if err != nil {
		return Credentials{}, newUpstreamError(
			fmt.Sprintf("core: token refresh request failed: %v", err),
			AuthErrorUpstreamFailed,
		)
	}
	if strings.TrimSpace(grant.AccessToken) == "" {
		return Credentials{}, newFatalError(
			"core: refresh response is missing the access token",
			AuthErrorUpstreamContract,
		)
	}
	if grant.ExpiresIn <= 0 || grant.ObtainedAt.IsZero() {
		return Credentials{}, newFatalError(
			"core: refresh response is missing the token expiry",
			AuthErrorUpstreamContract,
		)
	}

	next := Credentials{
		ClientID:     cur.ClientID,
		ClientSecret: cur.ClientSecret,
		AccessToken:  strings.TrimSpace(grant.AccessToken),
		RefreshToken: strings.TrimSpace(grant.RefreshToken),
		Scopes:       append([]string(nil), grant.Scopes...),
		ExpiresIn:    grant.ExpiresIn,
		ObtainedAt:   grant.ObtainedAt.UTC(),
		ExpiresAt:    expiresAtFrom(grant.ObtainedAt, grant.ExpiresIn),
	}
	if next.RefreshToken == "" {
		next.RefreshToken = cur.RefreshToken
	}
	if next.Scopes == nil {
		next.Scopes = append([]string(nil), cur.Scopes...)
	}
	return next, nil
}

// refreshEntry returns the settled record for a superseded token, if any.
// In-flight entries report ok=false. Exposed for tests and diagnostics.
func (p *Provider) refreshEntry(oldAccessToken string) (Credentials, bool) {
	p.mu.Lock()
	entry, ok := p.refreshes[oldAccessToken]
	p.mu.Unlock()
	if !ok || !entry.settled() || entry.err != nil {
		return Credentials{}, false
	}
	return entry.creds, true
}
