// Package core contains the credential provider: the canonical credential
// record, the single-flight refresh coordinator keyed by superseded access
// tokens, hydration of partially loaded records, the persistence bridge with
// its opportunistic save retry, and the refresh-map pruner. Stores and
// identity clients must depend on this package; core must not depend on
// storage- or transport-specific adapters.
package core
