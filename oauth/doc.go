// Package oauth implements the two-phase OAuth authorization-code flow
// against the identity backend.
//
// Phase one constructs the provider authorization URL; no network call
// happens and the caller is responsible for navigating the browser to
// it. Phase two handles the provider callback: the single-use
// authorization code is exchanged with the backend for a session.
//
// A Flow guards against duplicate exchange of the same code, which
// matters when the callback handler can be re-invoked (e.g. an effect
// re-running after a re-render): the prior result is replayed instead
// of firing a second exchange request.
package oauth
