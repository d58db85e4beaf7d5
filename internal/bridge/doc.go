// Package bridge owns the session-service boundary.
//
// Ownership boundary:
// - request-facing session operations (list, create, pair, triggers, delete)
// - pairing-attempt rate limiting
// - background expiry and reconnect-timeout sweeps
// - HTTP surface and error-to-status mapping
//
// Bridge does not validate transitions itself; the registry and the
// session transition table own that.
package bridge
