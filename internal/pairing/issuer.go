// Package pairing mints single-use connection codes (QR payloads).
//
// The issuer is purely local: codes are generated outside any registry
// lock and only become authoritative once the registry commits them to
// a session, so issuance never holds a critical section across I/O.
package pairing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTTL bounds how long a freshly minted code may be redeemed.
	DefaultTTL = 60 * time.Second

	// codePrefix matches the payload scheme the client renders as a QR code.
	codePrefix = "whatsapp://connection/"

	// issueAttempts bounds retries when the random source fails.
	issueAttempts = 3
)

// Issuer mints pairing codes with a fixed time-to-live.
type Issuer struct {
	ttl   time.Duration
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

// New constructs an issuer with the given TTL; zero or negative falls
// back to DefaultTTL.
func New(ttl time.Duration) *Issuer {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock constructs an issuer with an explicit clock.
func NewWithClock(ttl time.Duration, now func() time.Time) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Issuer{ttl: ttl, now: now, newID: uuid.NewRandom}
}

// TTL returns the configured code lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints one code plus its redemption deadline. The payload is
// derived purely from the random source and leaks nothing about the
// session it will be bound to.
func (i *Issuer) Issue() (string, time.Time, error) {
	var lastErr error
	for attempt := 0; attempt < issueAttempts; attempt++ {
		id, err := i.newID()
		if err != nil {
			lastErr = err
			continue
		}
		return codePrefix + id.String(), i.now().Add(i.ttl), nil
	}
	return "", time.Time{}, fmt.Errorf("pairing: issue code: %w", lastErr)
}
