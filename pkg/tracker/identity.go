package tracker

import "time"

// Identity is the externally-provided account the current session belongs
// to. All persisted collections are namespaced by ID; the remaining fields
// are host context forwarded verbatim on init so the server profile stays
// current.
type Identity struct {
	ID           string
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
	AuthTime     time.Time // when the ambient host authenticated this identity
}

// Resolver reads the ambient host-provided user context. It returns nil when
// no host identity is available (pure standalone use), in which case the
// client operates in a single anonymous scope. Resolvers must be pure reads:
// no network calls, no side effects.
type Resolver func() *Identity

// DefaultFreshnessWindow is the maximum accepted age of the ambient auth
// context before Open refuses to load anything.
const DefaultFreshnessWindow = 24 * time.Hour

// IdentityChanged reports whether the active identity differs from the
// previous one. Absence is distinct from any real id.
func IdentityChanged(previous, current *Identity) bool {
	return scopeID(previous) != scopeID(current)
}

// stale reports whether the identity's auth context is older than the
// window. A zero AuthTime means the host supplied no auth timestamp and is
// accepted as-is.
func stale(id *Identity, window time.Duration, now time.Time) bool {
	if id == nil || id.AuthTime.IsZero() {
		return false
	}
	return now.Sub(id.AuthTime) > window
}

// anonScope is the sentinel scope used when no host identity is available.
// Data written under it persists on the device but never syncs.
const anonScope = "anon"

func scopeID(id *Identity) string {
	if id == nil || id.ID == "" {
		return anonScope
	}
	return id.ID
}
