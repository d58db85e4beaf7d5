package bridge

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alex2liv/metabridge-API/internal/session"
	"github.com/alex2liv/metabridge-API/internal/testutil/testlog"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestService(t *testing.T, cfg ServiceConfig) (*Service, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	svc, err := newService(cfg, clock.Now)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, clock
}

func pairedActiveSession(t *testing.T, svc *Service, name, phone string) session.Session {
	t.Helper()
	created, err := svc.Create(name)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	paired, err := svc.StartPairing(created.ID)
	if err != nil {
		t.Fatalf("start pairing: %v", err)
	}
	active, err := svc.Deliver(created.ID, session.TriggerPairingSucceeded, DeliverArgs{
		PhoneNumber: phone,
		Code:        paired.PairingCode,
	})
	if err != nil {
		t.Fatalf("pairing succeeded: %v", err)
	}
	return active
}

func TestPairingSuccessScenario(t *testing.T) {
	testlog.Start(t)
	svc, _ := newTestService(t, ServiceConfig{})

	created, err := svc.Create("Support")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	paired, err := svc.StartPairing(created.ID)
	if err != nil {
		t.Fatalf("start pairing: %v", err)
	}
	if paired.State != session.StatePairing {
		t.Fatalf("expected pairing, got %q", paired.State)
	}
	if paired.PairingCode == "" {
		t.Fatalf("expected a live pairing code")
	}
	if got := paired.PairingExpiresAt.Sub(svc.now()); got != 60*time.Second {
		t.Fatalf("expected 60s ttl, got %v", got)
	}

	active, err := svc.Deliver(created.ID, session.TriggerPairingSucceeded, DeliverArgs{
		PhoneNumber: "+15550001",
		Code:        paired.PairingCode,
	})
	if err != nil {
		t.Fatalf("pairing succeeded: %v", err)
	}
	if active.State != session.StateActive {
		t.Fatalf("expected active, got %q", active.State)
	}
	if active.PhoneNumber != "+15550001" {
		t.Fatalf("unexpected phone number: %q", active.PhoneNumber)
	}
	if active.PairingCode != "" {
		t.Fatalf("code must clear on success: %q", active.PairingCode)
	}
}

func TestPairingExpirySweepScenario(t *testing.T) {
	testlog.Start(t)
	svc, clock := newTestService(t, ServiceConfig{})

	created, err := svc.Create("Support")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.StartPairing(created.ID); err != nil {
		t.Fatalf("start pairing: %v", err)
	}

	clock.Advance(59 * time.Second)
	svc.sweepOnce()
	mid, err := svc.Get(created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if mid.State != session.StatePairing {
		t.Fatalf("sweep fired before the deadline: %q", mid.State)
	}

	clock.Advance(2 * time.Second)
	svc.sweepOnce()
	got, err := svc.Get(created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != session.StateUnpaired {
		t.Fatalf("expected unpaired after expiry, got %q", got.State)
	}
	if got.PairingCode != "" {
		t.Fatalf("expected cleared code, got %q", got.PairingCode)
	}
}

func TestReconnectTimeoutScenario(t *testing.T) {
	testlog.Start(t)
	svc, clock := newTestService(t, ServiceConfig{})
	active := pairedActiveSession(t, svc, "Support", "+15550001")

	lost, err := svc.Deliver(active.ID, session.TriggerHeartbeatLost, DeliverArgs{})
	if err != nil {
		t.Fatalf("heartbeat lost: %v", err)
	}
	if lost.State != session.StateReconnecting {
		t.Fatalf("expected reconnecting, got %q", lost.State)
	}

	clock.Advance(4 * time.Minute)
	svc.sweepOnce()
	if got, _ := svc.Get(active.ID); got.State != session.StateReconnecting {
		t.Fatalf("sweep fired inside the window: %q", got.State)
	}

	clock.Advance(90 * time.Second)
	svc.sweepOnce()
	got, err := svc.Get(active.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != session.StateInactive {
		t.Fatalf("expected inactive after window, got %q", got.State)
	}
	if got.PhoneNumber != "+15550001" {
		t.Fatalf("phone number must survive, got %q", got.PhoneNumber)
	}
}

func TestDeleteWhilePairingDiscardsLateSuccess(t *testing.T) {
	testlog.Start(t)
	svc, _ := newTestService(t, ServiceConfig{})

	created, err := svc.Create("Support")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	paired, err := svc.StartPairing(created.ID)
	if err != nil {
		t.Fatalf("start pairing: %v", err)
	}
	if err := svc.Delete(created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err = svc.Deliver(created.ID, session.TriggerPairingSucceeded, DeliverArgs{
		PhoneNumber: "+15550001",
		Code:        paired.PairingCode,
	})
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for late success, got %v", err)
	}
}

func TestStalePairingCodeRejected(t *testing.T) {
	testlog.Start(t)
	svc, _ := newTestService(t, ServiceConfig{PairingMaxAttempts: 10})

	created, err := svc.Create("Support")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	first, err := svc.StartPairing(created.ID)
	if err != nil {
		t.Fatalf("first pairing: %v", err)
	}
	second, err := svc.StartPairing(created.ID)
	if err != nil {
		t.Fatalf("second pairing: %v", err)
	}
	if first.PairingCode == second.PairingCode {
		t.Fatalf("re-issuance must rotate the code")
	}

	// Success for the rotated-away code lost the race.
	if _, err := svc.Deliver(created.ID, session.TriggerPairingSucceeded, DeliverArgs{
		PhoneNumber: "+15550001",
		Code:        first.PairingCode,
	}); !errors.Is(err, session.ErrStalePairingCode) {
		t.Fatalf("expected ErrStalePairingCode, got %v", err)
	}

	if _, err := svc.Deliver(created.ID, session.TriggerPairingSucceeded, DeliverArgs{
		PhoneNumber: "+15550001",
		Code:        second.PairingCode,
	}); err != nil {
		t.Fatalf("current code must redeem: %v", err)
	}
}

func TestPairingRateLimit(t *testing.T) {
	testlog.Start(t)
	svc, clock := newTestService(t, ServiceConfig{
		PairingMaxAttempts:   2,
		PairingAttemptWindow: time.Minute,
	})
	created, err := svc.Create("Support")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for n := 0; n < 2; n++ {
		if _, err := svc.StartPairing(created.ID); err != nil {
			t.Fatalf("attempt %d: %v", n, err)
		}
	}
	if _, err := svc.StartPairing(created.ID); !errors.Is(err, ErrPairingRateLimited) {
		t.Fatalf("expected ErrPairingRateLimited, got %v", err)
	}

	clock.Advance(61 * time.Second)
	if _, err := svc.StartPairing(created.ID); err != nil {
		t.Fatalf("window elapsed, expected fresh attempt: %v", err)
	}
}

func TestInvalidatePairing(t *testing.T) {
	testlog.Start(t)
	svc, _ := newTestService(t, ServiceConfig{})
	created, err := svc.Create("Support")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Not pairing: a no-op, not an error.
	if err := svc.InvalidatePairing(created.ID); err != nil {
		t.Fatalf("invalidate on unpaired: %v", err)
	}

	if _, err := svc.StartPairing(created.ID); err != nil {
		t.Fatalf("start pairing: %v", err)
	}
	if err := svc.InvalidatePairing(created.ID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	got, err := svc.Get(created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != session.StateUnpaired || got.PairingCode != "" {
		t.Fatalf("expected unpaired with no code, got %+v", got)
	}

	if err := svc.InvalidatePairing("missing"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotRestoreAcrossRestart(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "sessions.json")

	svc, _ := newTestService(t, ServiceConfig{StorePath: path})
	active := pairedActiveSession(t, svc, "Business Account", "+15550123")

	midPairing, err := svc.Create("Support Team")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.StartPairing(midPairing.ID); err != nil {
		t.Fatalf("start pairing: %v", err)
	}

	restarted, _ := newTestService(t, ServiceConfig{StorePath: path})
	listed := restarted.List()
	if len(listed) != 2 {
		t.Fatalf("expected 2 restored sessions, got %d", len(listed))
	}

	restoredActive, err := restarted.Get(active.ID)
	if err != nil {
		t.Fatalf("get restored active: %v", err)
	}
	if restoredActive.State != session.StateActive || restoredActive.PhoneNumber != "+15550123" {
		t.Fatalf("active session did not survive restart: %+v", restoredActive)
	}

	restoredPairing, err := restarted.Get(midPairing.ID)
	if err != nil {
		t.Fatalf("get restored pairing: %v", err)
	}
	if restoredPairing.State != session.StateUnpaired || restoredPairing.PairingCode != "" {
		t.Fatalf("mid-pairing session must restart unpaired: %+v", restoredPairing)
	}
}

func TestDeletedSessionStaysDeletedAcrossRestart(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "sessions.json")

	svc, _ := newTestService(t, ServiceConfig{StorePath: path})
	doomed, err := svc.Create("Doomed")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Concurrent mutators race the delete's snapshot commit.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n == 0 {
				if err := svc.Delete(doomed.ID); err != nil {
					t.Errorf("delete: %v", err)
				}
				return
			}
			if _, err := svc.Create("Bystander"); err != nil {
				t.Errorf("create bystander: %v", err)
			}
		}(i)
	}
	wg.Wait()

	restarted, _ := newTestService(t, ServiceConfig{StorePath: path})
	if _, err := restarted.Get(doomed.ID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("deleted session must not resurrect, got %v", err)
	}
	if got := len(restarted.List()); got != 7 {
		t.Fatalf("expected 7 bystanders, got %d", got)
	}
}

func TestWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := ServiceConfig{}.WithDefaults()
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.PairingCodeTTL != 60*time.Second {
		t.Fatalf("unexpected ttl: %v", cfg.PairingCodeTTL)
	}
	if cfg.ReconnectWindow != 5*time.Minute {
		t.Fatalf("unexpected reconnect window: %v", cfg.ReconnectWindow)
	}
	if cfg.SweepInterval != time.Second {
		t.Fatalf("unexpected sweep interval: %v", cfg.SweepInterval)
	}

	custom := ServiceConfig{ListenAddr: ":9999", PairingCodeTTL: 5 * time.Second}.WithDefaults()
	if custom.ListenAddr != ":9999" || custom.PairingCodeTTL != 5*time.Second {
		t.Fatalf("explicit values must win: %+v", custom)
	}
}
