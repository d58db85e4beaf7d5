package bridge

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alex2liv/metabridge-API/internal/observability"
	"github.com/alex2liv/metabridge-API/internal/pairing"
	"github.com/alex2liv/metabridge-API/internal/registry"
	"github.com/alex2liv/metabridge-API/internal/session"
	"github.com/alex2liv/metabridge-API/internal/store"
)

var ErrPairingRateLimited = errors.New("bridge: pairing rate limited")

// Session service endpoint configuration.
type ServiceConfig struct {
	ListenAddr  string
	ServiceID   string
	CORSOrigins []string
	APIToken    string

	PairingCodeTTL       time.Duration
	ReconnectWindow      time.Duration
	SweepInterval        time.Duration
	PairingMaxAttempts   int
	PairingAttemptWindow time.Duration

	// StorePath enables snapshot persistence when non-empty.
	StorePath string
}

// Session service defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr:           ":8080",
		ServiceID:            "metabridge-api",
		PairingCodeTTL:       pairing.DefaultTTL,
		ReconnectWindow:      5 * time.Minute,
		SweepInterval:        time.Second,
		PairingMaxAttempts:   5,
		PairingAttemptWindow: time.Minute,
	}
}

// WithDefaults fills zero-valued fields from DefaultServiceConfig.
func (c ServiceConfig) WithDefaults() ServiceConfig {
	def := DefaultServiceConfig()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	if strings.TrimSpace(c.ServiceID) == "" {
		c.ServiceID = def.ServiceID
	}
	if c.PairingCodeTTL <= 0 {
		c.PairingCodeTTL = def.PairingCodeTTL
	}
	if c.ReconnectWindow <= 0 {
		c.ReconnectWindow = def.ReconnectWindow
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.PairingMaxAttempts <= 0 {
		c.PairingMaxAttempts = def.PairingMaxAttempts
	}
	if c.PairingAttemptWindow <= 0 {
		c.PairingAttemptWindow = def.PairingAttemptWindow
	}
	return c
}

// DeliverArgs carries optional arguments for an externally delivered
// trigger.
type DeliverArgs struct {
	PhoneNumber string
	Code        string
}

// Service answers external session requests and runs the sweeps.
type Service struct {
	cfg ServiceConfig
	reg *registry.Registry
	iss *pairing.Issuer
	fs  *store.FileStore
	now func() time.Time

	attemptsMu sync.Mutex
	attempts   map[string][]time.Time

	// snapshotMu orders registry capture and snapshot commit so an
	// older fleet view can never overwrite a newer one on disk.
	snapshotMu sync.Mutex
}

// NewService constructs a service, restoring any persisted fleet.
func NewService(cfg ServiceConfig) (*Service, error) {
	return newService(cfg, time.Now)
}

func newService(cfg ServiceConfig, now func() time.Time) (*Service, error) {
	cfg = cfg.WithDefaults()
	svc := &Service{
		cfg:      cfg,
		reg:      registry.New(now),
		iss:      pairing.NewWithClock(cfg.PairingCodeTTL, now),
		now:      now,
		attempts: make(map[string][]time.Time),
	}
	if path := strings.TrimSpace(cfg.StorePath); path != "" {
		svc.fs = store.NewFileStore(path)
		if err := svc.restore(); err != nil {
			return nil, err
		}
	}
	svc.updateStateGauge()
	return svc, nil
}

// Config returns the normalized service configuration.
func (s *Service) Config() ServiceConfig {
	return s.cfg
}

// List returns every live session in insertion order.
func (s *Service) List() []session.Session {
	return s.reg.List()
}

// Get returns one session.
func (s *Service) Get(id string) (session.Session, error) {
	return s.reg.Get(id)
}

// Create registers a new unpaired session.
func (s *Service) Create(name string) (session.Session, error) {
	sess, err := s.reg.Create(name)
	if err != nil {
		return session.Session{}, err
	}
	log.Info().Str("session", sess.ID).Str("name", sess.Name).Msg("session_created")
	s.afterMutation()
	return sess, nil
}

// StartPairing mints a pairing code and commits it to the session.
// Issuance happens outside any registry lock; only the commit holds
// the session's critical section.
func (s *Service) StartPairing(id string) (session.Session, error) {
	if err := s.allowPairingAttempt(id); err != nil {
		return session.Session{}, err
	}
	code, expiresAt, err := s.iss.Issue()
	if err != nil {
		return session.Session{}, err
	}
	sess, err := s.reg.Apply(id, session.Event{
		Trigger:   session.TriggerStartPairing,
		At:        s.now(),
		Code:      code,
		ExpiresAt: expiresAt,
	})
	observability.RecordTransition(string(session.TriggerStartPairing), err == nil)
	if err != nil {
		return session.Session{}, err
	}
	observability.RecordPairingCodeIssued()
	s.recordPairingAttempt(id)
	log.Info().Str("session", sess.ID).Time("expires_at", expiresAt).Msg("pairing_code_issued")
	s.afterMutation()
	return sess, nil
}

// InvalidatePairing drops the session's live code, if any. Invalidating
// a session that is not pairing is a no-op.
func (s *Service) InvalidatePairing(id string) error {
	sess, err := s.reg.Get(id)
	if err != nil {
		return err
	}
	if sess.State != session.StatePairing {
		return nil
	}
	_, err = s.reg.Apply(id, session.Event{
		Trigger: session.TriggerPairingExpired,
		At:      s.now(),
		Code:    sess.PairingCode,
	})
	if isStaleSweepOutcome(err) {
		return nil
	}
	if err == nil {
		s.afterMutation()
	}
	return err
}

// Deliver applies one named trigger to a session.
func (s *Service) Deliver(id string, trigger session.Trigger, args DeliverArgs) (session.Session, error) {
	sess, err := s.reg.Apply(id, session.Event{
		Trigger:     trigger,
		At:          s.now(),
		PhoneNumber: strings.TrimSpace(args.PhoneNumber),
		Code:        args.Code,
	})
	observability.RecordTransition(string(trigger), err == nil)
	if err != nil {
		return session.Session{}, err
	}
	log.Info().
		Str("session", sess.ID).
		Str("trigger", string(trigger)).
		Str("state", string(sess.State)).
		Msg("session_transition")
	s.afterMutation()
	return sess, nil
}

// Rename updates the session label.
func (s *Service) Rename(id, name string) (session.Session, error) {
	sess, err := s.reg.Rename(id, name)
	if err != nil {
		return session.Session{}, err
	}
	s.afterMutation()
	return sess, nil
}

// Delete removes the session permanently.
func (s *Service) Delete(id string) error {
	err := s.reg.Delete(id)
	observability.RecordTransition(string(session.TriggerDelete), err == nil)
	if err != nil {
		return err
	}
	log.Info().Str("session", id).Msg("session_deleted")
	s.dropPairingAttempts(id)
	s.afterMutation()
	return nil
}

// allowPairingAttempt enforces the per-session issuance window.
func (s *Service) allowPairingAttempt(id string) error {
	now := s.now()
	cutoff := now.Add(-s.cfg.PairingAttemptWindow)

	s.attemptsMu.Lock()
	defer s.attemptsMu.Unlock()
	recent := s.attempts[id][:0]
	for _, at := range s.attempts[id] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	s.attempts[id] = recent
	if len(recent) >= s.cfg.PairingMaxAttempts {
		return fmt.Errorf("%w: session=%q attempts=%d window=%s",
			ErrPairingRateLimited, id, len(recent), s.cfg.PairingAttemptWindow)
	}
	return nil
}

func (s *Service) recordPairingAttempt(id string) {
	s.attemptsMu.Lock()
	defer s.attemptsMu.Unlock()
	s.attempts[id] = append(s.attempts[id], s.now())
}

func (s *Service) dropPairingAttempts(id string) {
	s.attemptsMu.Lock()
	defer s.attemptsMu.Unlock()
	delete(s.attempts, id)
}

// afterMutation refreshes the fleet gauge and persists the snapshot.
func (s *Service) afterMutation() {
	s.updateStateGauge()
	if s.fs == nil {
		return
	}
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	if err := s.fs.Save(s.reg.List()); err != nil {
		log.Warn().Err(err).Str("path", s.fs.Path()).Msg("snapshot_save_failed")
	}
}

func (s *Service) updateStateGauge() {
	counts := make(map[string]int)
	for _, sess := range s.reg.List() {
		counts[string(sess.State)]++
	}
	observability.SetSessionsByState(counts)
}

// restore loads the persisted fleet. Sessions caught mid-pairing come
// back unpaired (their codes died with the process); reconnecting
// sessions have their window re-armed from boot time.
func (s *Service) restore() error {
	sessions, err := s.fs.Load()
	if err != nil {
		return err
	}
	now := s.now()
	for i := range sessions {
		switch sessions[i].State {
		case session.StatePairing:
			sessions[i].State = session.StateUnpaired
			sessions[i].PairingCode = ""
			sessions[i].PairingExpiresAt = time.Time{}
		case session.StateReconnecting:
			sessions[i].ReconnectingSince = now
		}
	}
	s.reg.Restore(sessions)
	if len(sessions) > 0 {
		log.Info().Int("sessions", len(sessions)).Str("path", s.fs.Path()).Msg("fleet_restored")
	}
	return nil
}
