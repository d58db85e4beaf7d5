package session

import "errors"

var (
	ErrNotFound           = errors.New("session: not found")
	ErrInvalidName        = errors.New("session: name is required")
	ErrInvalidTransition  = errors.New("session: invalid transition")
	ErrUnknownTrigger     = errors.New("session: unknown trigger")
	ErrStalePairingCode   = errors.New("session: stale pairing code")
	ErrPairingCodeExpired = errors.New("session: pairing code expired")
	ErrMissingCode        = errors.New("session: pairing code required")
)
