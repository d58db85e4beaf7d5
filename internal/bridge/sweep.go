package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alex2liv/metabridge-API/internal/observability"
	"github.com/alex2liv/metabridge-API/internal/session"
)

// RunSweeper drives the expiry and reconnect-timeout sweeps until ctx
// is cancelled. The sweeps go through the same per-session apply path
// as request handlers; there is no unsynchronized shortcut.
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// sweepOnce walks a fleet snapshot and fires overdue timer triggers.
// Outcomes invalidated by a concurrent mutation (code rotated, session
// deleted, state already moved on) are discarded as stale.
func (s *Service) sweepOnce() {
	now := s.now()
	for _, snap := range s.reg.List() {
		switch snap.State {
		case session.StatePairing:
			if snap.PairingExpiresAt.After(now) {
				continue
			}
			_, err := s.reg.Apply(snap.ID, session.Event{
				Trigger: session.TriggerPairingExpired,
				At:      now,
				Code:    snap.PairingCode,
			})
			if err == nil {
				observability.RecordTransition(string(session.TriggerPairingExpired), true)
				observability.RecordPairingCodeExpired()
				log.Info().Str("session", snap.ID).Msg("pairing_code_expired")
				s.afterMutation()
			} else if !isStaleSweepOutcome(err) {
				log.Warn().Err(err).Str("session", snap.ID).Msg("pairing_expiry_sweep_failed")
			}

		case session.StateReconnecting:
			if snap.ReconnectingSince.IsZero() || now.Sub(snap.ReconnectingSince) < s.cfg.ReconnectWindow {
				continue
			}
			_, err := s.reg.Apply(snap.ID, session.Event{
				Trigger: session.TriggerReconnectTimeout,
				At:      now,
			})
			if err == nil {
				observability.RecordTransition(string(session.TriggerReconnectTimeout), true)
				log.Info().Str("session", snap.ID).Msg("reconnect_window_elapsed")
				s.afterMutation()
			} else if !isStaleSweepOutcome(err) {
				log.Warn().Err(err).Str("session", snap.ID).Msg("reconnect_timeout_sweep_failed")
			}
		}
	}
}

// isStaleSweepOutcome reports whether a timer trigger lost a race with
// a concurrent mutation and can be dropped silently.
func isStaleSweepOutcome(err error) bool {
	return errors.Is(err, session.ErrNotFound) ||
		errors.Is(err, session.ErrInvalidTransition) ||
		errors.Is(err, session.ErrStalePairingCode)
}
