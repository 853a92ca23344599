package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Credentials is the canonical credential record held by a Provider. Records
// are treated as immutable values once built; callers may share them freely.
type Credentials struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	// Scopes is nil when the record has not been hydrated yet; an empty
	// non-nil slice means "no scopes granted".
	Scopes []string
	// ExpiresIn is the validity in seconds granted at issuance, 0 = unknown.
	ExpiresIn int64
	// ObtainedAt is the instant of issuance; zero = unknown.
	ObtainedAt time.Time
	// ExpiresAt is nil when the token never expires or its expiry is unknown.
	// When ObtainedAt and ExpiresIn are both present,
	// ExpiresAt = ObtainedAt + ExpiresIn.
	ExpiresAt *time.Time
}

// Validate checks the loadable shape: the minimum an external store must supply.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("core: client id is required")
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("core: access token is required")
	}
	return nil
}

// Refreshable reports whether the record carries everything a refresh needs.
func (c Credentials) Refreshable() bool {
	return c.Validate() == nil &&
		strings.TrimSpace(c.ClientSecret) != "" &&
		strings.TrimSpace(c.RefreshToken) != ""
}

// RemainingValidity returns the time left before the token enters the refresh
// window. A non-positive duration means the token is expired or imminently
// expiring. The boolean is false when the record has no expiry and never
// needs a time-based refresh.
func (c Credentials) RemainingValidity(now time.Time, padding time.Duration) (time.Duration, bool) {
	if c.ExpiresAt == nil {
		return 0, false
	}
	return c.ExpiresAt.Sub(now.UTC()) - padding, true
}

func (c Credentials) clone() Credentials {
	cloned := c
	if c.Scopes != nil {
		cloned.Scopes = append([]string(nil), c.Scopes...)
	}
	cloned.ExpiresAt = cloneTimePointer(c.ExpiresAt)
	return cloned
}

// TokenGrant is the payload of a successful refresh against the identity
// service token endpoint.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	Scopes       []string
	ExpiresIn    int64
	ObtainedAt   time.Time
}

// TokenInfo is the payload of the identity service introspection endpoint,
// consumed during hydration.
type TokenInfo struct {
	ClientID  string
	Login     string
	UserID    string
	Scopes    []string
	ExpiresIn int64
	// ExpiresAt is nil when the token has no expiry.
	ExpiresAt *time.Time
}

// NormalizeScopes dedupes and sorts a scope list for comparison. Scope sets
// are unordered; insertion order is irrelevant.
func NormalizeScopes(scopes []string) []string {
	if scopes == nil {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		out = append(out, scope)
	}
	sort.Strings(out)
	return out
}

// SameScopeSet compares two scope lists as sets.
func SameScopeSet(left, right []string) bool {
	normalizedLeft := NormalizeScopes(left)
	normalizedRight := NormalizeScopes(right)
	if len(normalizedLeft) != len(normalizedRight) {
		return false
	}
	for i := range normalizedLeft {
		if normalizedLeft[i] != normalizedRight[i] {
			return false
		}
	}
	return true
}

func expiresAtFrom(obtainedAt time.Time, expiresIn int64) *time.Time {
	if obtainedAt.IsZero() || expiresIn <= 0 {
		return nil
	}
	expiresAt := obtainedAt.UTC().Add(time.Duration(expiresIn) * time.Second)
	return &expiresAt
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}
