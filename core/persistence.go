package core

import (
	"context"
	"time"
)

// saveCredentials pushes a record to the store. Failures never surface to the
// caller that triggered the save: they are logged once and stamped for an
// opportunistic retry on a later Fetch.
func (p *Provider) saveCredentials(creds Credentials) {
	if p == nil || p.store == nil {
		return
	}
	ctx := context.Background()

	err := p.store.Save(ctx, creds)

	p.mu.Lock()
	if err != nil {
		p.nextSaveRetry = p.now().Add(p.config.SaveRetryInterval)
	} else {
		p.nextSaveRetry = time.Time{}
	}
	p.mu.Unlock()

	if err != nil {
		p.logError(ctx, "saving credentials failed", map[string]any{
			"client_id": creds.ClientID,
			"error":     err.Error(),
		})
	}
}

// maybeRetrySave re-attempts a previously failed save, at most once per
// retry interval. The stamp is advanced before the save fires so concurrent
// fetches cannot pile retries onto the store.
func (p *Provider) maybeRetrySave(creds Credentials) {
	if p == nil {
		return
	}
	now := p.now()

	p.mu.Lock()
	due := !p.nextSaveRetry.IsZero() && !now.Before(p.nextSaveRetry)
	if due {
		p.nextSaveRetry = now.Add(p.config.SaveRetryInterval)
	}
	p.mu.Unlock()

	if due {
		go p.saveCredentials(creds)
	}
}

// saveRetryAt returns the pending save-retry stamp, zero when no retry is
// outstanding. Exposed for tests.
func (p *Provider) saveRetryAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextSaveRetry
}
