// Package session owns connection lifecycle state.
//
// Ownership boundary:
// - session record shape
// - state and trigger vocabulary
// - transition validation and apply semantics
//
// Session does not store records and does not talk to the network;
// the registry owns storage and the bridge owns transport.
package session
