package session

import (
	"fmt"
	"time"
)

// allowedFrom is the transition table: for each trigger, the states it
// may fire from. A trigger applied anywhere else is rejected and the
// session is left untouched.
var allowedFrom = map[Trigger][]State{
	TriggerStartPairing:      {StateUnpaired, StatePairing, StateInactive},
	TriggerPairingSucceeded:  {StatePairing},
	TriggerPairingExpired:    {StatePairing},
	TriggerHeartbeatLost:     {StateActive},
	TriggerHeartbeatRestored: {StateReconnecting},
	TriggerReconnectTimeout:  {StateReconnecting},
	TriggerManualReconnect:   {StateActive, StateReconnecting, StateInactive},
	TriggerDelete: {
		StateUnpaired, StatePairing, StateActive,
		StateReconnecting, StateInactive,
	},
}

// Apply validates ev against the current state of s and returns the
// session after the transition. The input session is never mutated; on
// any error the caller's record must be kept as-is.
func Apply(s Session, ev Event) (Session, error) {
	allowed, ok := allowedFrom[ev.Trigger]
	if !ok {
		return s, fmt.Errorf("%w: trigger=%q session=%q state=%q",
			ErrUnknownTrigger, ev.Trigger, s.ID, s.State)
	}
	if !stateIn(s.State, allowed) {
		return s, fmt.Errorf("%w: trigger=%q session=%q state=%q",
			ErrInvalidTransition, ev.Trigger, s.ID, s.State)
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	switch ev.Trigger {
	case TriggerStartPairing:
		if ev.Code == "" || ev.ExpiresAt.IsZero() {
			return s, fmt.Errorf("%w: trigger=%q session=%q",
				ErrMissingCode, ev.Trigger, s.ID)
		}
		s.State = StatePairing
		s.PairingCode = ev.Code
		s.PairingExpiresAt = ev.ExpiresAt
		s.ReconnectingSince = time.Time{}

	case TriggerPairingSucceeded:
		if err := checkCodeIdentity(s, ev); err != nil {
			return s, err
		}
		if at.After(s.PairingExpiresAt) {
			return s, fmt.Errorf("%w: session=%q expired_at=%s",
				ErrPairingCodeExpired, s.ID, s.PairingExpiresAt.Format(time.RFC3339))
		}
		if s.PhoneNumber == "" {
			s.PhoneNumber = ev.PhoneNumber
		}
		s.State = StateActive
		s.LastActiveAt = at
		clearPairing(&s)

	case TriggerPairingExpired:
		if err := checkCodeIdentity(s, ev); err != nil {
			return s, err
		}
		s.State = StateUnpaired
		clearPairing(&s)

	case TriggerHeartbeatLost:
		s.State = StateReconnecting
		s.ReconnectingSince = at

	case TriggerHeartbeatRestored:
		s.State = StateActive
		s.LastActiveAt = at
		s.ReconnectingSince = time.Time{}

	case TriggerReconnectTimeout:
		s.State = StateInactive
		s.ReconnectingSince = time.Time{}

	case TriggerManualReconnect:
		// Re-entry keeps the original deadline; re-arming only happens
		// from active or inactive.
		if s.State == StateReconnecting {
			return s, nil
		}
		s.State = StateReconnecting
		s.ReconnectingSince = at

	case TriggerDelete:
		s.State = StateDeleted
		clearPairing(&s)
		s.ReconnectingSince = time.Time{}
	}

	return s, nil
}

// checkCodeIdentity resolves success/expiry races by code value: an
// event referencing anything but the session's current code lost the
// race and must not apply retroactively.
func checkCodeIdentity(s Session, ev Event) error {
	if ev.Code != s.PairingCode {
		return fmt.Errorf("%w: trigger=%q session=%q",
			ErrStalePairingCode, ev.Trigger, s.ID)
	}
	return nil
}

func clearPairing(s *Session) {
	s.PairingCode = ""
	s.PairingExpiresAt = time.Time{}
}

func stateIn(state State, states []State) bool {
	for _, candidate := range states {
		if state == candidate {
			return true
		}
	}
	return false
}
