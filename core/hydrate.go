package core

import (
	"context"
	"fmt"
)

// resolveInitial loads the stored credentials, hydrates missing metadata, and
// settles the initial credential cell. Load failures settle the cell with the
// error; every reader of the cell observes them.
func (p *Provider) resolveInitial(future *tokenFuture) {
	ctx := context.Background()

	loaded, err := p.store.Load(ctx)
	if err != nil {
		future.settle(Credentials{}, newUpstreamError(
			fmt.Sprintf("core: loading credentials failed: %v", err),
			AuthErrorLoadFailed,
		))
		return
	}
	if err := loaded.Validate(); err != nil {
		future.settle(Credentials{}, p.hydrationError(err))
		return
	}

	creds, hydrated, err := p.hydrate(ctx, loaded)
	if err != nil {
		future.settle(Credentials{}, err)
		return
	}

	future.settle(creds, nil)

	// The store handed us a partial record; write the full shape back so it
	// learns scopes and expiry. Fire-and-forget, like any other save.
	if hydrated && creds.Refreshable() {
		go p.saveCredentials(creds)
	}
}

// hydrate fills in scopes and expiry via the identity service when the loaded
// record lacks them. A missing expiry in the introspection response means
// "permanent or unknown validity": ExpiresAt stays nil and the record is
// never auto-refreshed on time grounds.
func (p *Provider) hydrate(ctx context.Context, loaded Credentials) (Credentials, bool, error) {
	needsScopes := loaded.Scopes == nil
	needsExpiry := loaded.ExpiresAt == nil && loaded.ExpiresIn == 0
	if !needsScopes && !needsExpiry {
		if loaded.ExpiresAt == nil {
			loaded.ExpiresAt = expiresAtFrom(loaded.ObtainedAt, loaded.ExpiresIn)
		}
		return loaded, false, nil
	}

	if p.identityClient == nil {
		return Credentials{}, false, p.hydrationError(
			fmt.Errorf("core: identity client is required to hydrate missing data"),
		)
	}

	info, err := p.identityClient.TokenInfo(ctx, loaded.AccessToken, loaded.ClientID)
	if err != nil {
		return Credentials{}, false, newUpstreamError(
			fmt.Sprintf("core: token introspection failed: %v", err),
			AuthErrorUpstreamFailed,
		)
	}

	if needsScopes {
		if info.Scopes == nil {
			return Credentials{}, false, p.hydrationError(
				fmt.Errorf("core: token info carries no scope list"),
			)
		}
		loaded.Scopes = append([]string(nil), info.Scopes...)
	}
	if needsExpiry {
		loaded.ExpiresAt = cloneTimePointer(info.ExpiresAt)
		if info.ExpiresIn > 0 {
			loaded.ExpiresIn = info.ExpiresIn
			loaded.ObtainedAt = p.now()
			if loaded.ExpiresAt == nil {
				loaded.ExpiresAt = expiresAtFrom(loaded.ObtainedAt, loaded.ExpiresIn)
			}
		}
	}

	if err := loaded.Validate(); err != nil {
		return Credentials{}, false, p.hydrationError(err)
	}
	return loaded, true, nil
}

func (p *Provider) hydrationError(cause error) error {
	return newFatalError(
		fmt.Sprintf("core: failed to hydrate missing data: %v", cause),
		AuthErrorHydrationFailed,
	)
}
