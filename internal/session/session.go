package session

import "time"

// State is one connection lifecycle phase for a session.
type State string

const (
	StateUnpaired     State = "unpaired"
	StatePairing      State = "pairing"
	StateActive       State = "active"
	StateReconnecting State = "reconnecting"
	StateInactive     State = "inactive"
	StateDeleted      State = "deleted"
)

// Trigger is one named lifecycle event applied to a session.
type Trigger string

const (
	TriggerStartPairing      Trigger = "start_pairing"
	TriggerPairingSucceeded  Trigger = "pairing_succeeded"
	TriggerPairingExpired    Trigger = "pairing_expired"
	TriggerHeartbeatLost     Trigger = "heartbeat_lost"
	TriggerHeartbeatRestored Trigger = "heartbeat_restored"
	TriggerReconnectTimeout  Trigger = "reconnect_timeout"
	TriggerManualReconnect   Trigger = "manual_reconnect"
	TriggerDelete            Trigger = "delete"
)

// ParseTrigger maps a wire-level trigger name to its Trigger value.
func ParseTrigger(raw string) (Trigger, bool) {
	switch Trigger(raw) {
	case TriggerStartPairing, TriggerPairingSucceeded, TriggerPairingExpired,
		TriggerHeartbeatLost, TriggerHeartbeatRestored, TriggerReconnectTimeout,
		TriggerManualReconnect, TriggerDelete:
		return Trigger(raw), true
	}
	return "", false
}

// Session is one logical connection to a messaging account.
//
// PhoneNumber is set once by the first successful pairing and never
// cleared afterwards. PairingCode and PairingExpiresAt are non-zero
// exactly while State is StatePairing.
type Session struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone,omitempty"`
	State       State  `json:"status"`

	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActive,omitzero"`

	PairingCode      string    `json:"qrCode,omitempty"`
	PairingExpiresAt time.Time `json:"qrCodeExpiresAt,omitzero"`

	// ReconnectingSince marks entry into StateReconnecting so the
	// sweep can enforce the reconnection window. Not exposed on the wire.
	ReconnectingSince time.Time `json:"-"`
}

// Event is one trigger delivery plus its arguments.
//
// Code carries the pairing code the event refers to: the freshly minted
// code for TriggerStartPairing, the code being redeemed or expired for
// TriggerPairingSucceeded and TriggerPairingExpired.
type Event struct {
	Trigger     Trigger
	At          time.Time
	PhoneNumber string
	Code        string
	ExpiresAt   time.Time
}
