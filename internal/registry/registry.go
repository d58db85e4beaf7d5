// Package registry is the authoritative store of session records.
//
// Ownership boundary:
// - session identity assignment
// - per-session mutation serialization
// - insertion-order listing
//
// Every state change goes through the session transition table; the
// registry never commits a caller-supplied raw state.
package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alex2liv/metabridge-API/internal/session"
)

// Registry indexes session records by id. The registry mutex only
// guards the index and ordering; each record carries its own mutex so
// concurrent operations on different sessions never contend.
type Registry struct {
	mu      sync.Mutex
	records map[string]*record
	order   []string
	now     func() time.Time
}

// record is one indexed session plus its serialization lock. gone is
// flipped inside the record's critical section when the session is
// deleted, so callers holding a stale pointer observe the purge.
type record struct {
	mu   sync.Mutex
	sess session.Session
	gone bool
}

// New constructs an empty registry. A nil clock means time.Now.
func New(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		records: make(map[string]*record),
		now:     now,
	}
}

// Create inserts a fresh session in the unpaired state.
func (r *Registry) Create(name string) (session.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return session.Session{}, fmt.Errorf("%w: blank name", session.ErrInvalidName)
	}

	sess := session.Session{
		ID:        uuid.NewString(),
		Name:      name,
		State:     session.StateUnpaired,
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if _, taken := r.records[sess.ID]; !taken {
			break
		}
		sess.ID = uuid.NewString()
	}
	r.records[sess.ID] = &record{sess: sess}
	r.order = append(r.order, sess.ID)
	return sess, nil
}

// Get returns a copy of one session.
func (r *Registry) Get(id string) (session.Session, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return session.Session{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.gone {
		return session.Session{}, notFound(id)
	}
	return rec.sess, nil
}

// List returns copies of all live sessions in insertion order. Each
// entry is captured under its record lock, so concurrent mutation is
// never observable as a torn read.
func (r *Registry) List() []session.Session {
	r.mu.Lock()
	ordered := make([]*record, 0, len(r.order))
	for _, id := range r.order {
		if rec, ok := r.records[id]; ok {
			ordered = append(ordered, rec)
		}
	}
	r.mu.Unlock()

	out := make([]session.Session, 0, len(ordered))
	for _, rec := range ordered {
		rec.mu.Lock()
		if !rec.gone {
			out = append(out, rec.sess)
		}
		rec.mu.Unlock()
	}
	return out
}

// Apply runs one trigger through the transition table and commits the
// result, holding the record's lock for the whole read-validate-write
// sequence. A delete purges the index entry before the lock releases.
func (r *Registry) Apply(id string, ev session.Event) (session.Session, error) {
	rec, err := r.lookup(id)
	if err != nil {
		return session.Session{}, err
	}
	if ev.At.IsZero() {
		ev.At = r.now()
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.gone {
		return session.Session{}, notFound(id)
	}

	next, err := session.Apply(rec.sess, ev)
	if err != nil {
		return session.Session{}, err
	}
	rec.sess = next
	if next.State == session.StateDeleted {
		rec.gone = true
		r.purge(id)
	}
	return next, nil
}

// Rename updates the user-supplied label.
func (r *Registry) Rename(id, name string) (session.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return session.Session{}, fmt.Errorf("%w: blank name", session.ErrInvalidName)
	}
	rec, err := r.lookup(id)
	if err != nil {
		return session.Session{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.gone {
		return session.Session{}, notFound(id)
	}
	rec.sess.Name = name
	return rec.sess, nil
}

// Delete transitions the session to deleted and removes it from the
// index. Deletion is explicit and irreversible; late timer or platform
// events for the id fail with not-found afterwards.
func (r *Registry) Delete(id string) error {
	_, err := r.Apply(id, session.Event{Trigger: session.TriggerDelete})
	return err
}

// Restore seeds the registry from a persisted snapshot, preserving ids
// and ordering. Deleted entries and duplicates are skipped.
func (r *Registry) Restore(sessions []session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sess := range sessions {
		if sess.ID == "" || sess.State == session.StateDeleted {
			continue
		}
		if _, taken := r.records[sess.ID]; taken {
			continue
		}
		r.records[sess.ID] = &record{sess: sess}
		r.order = append(r.order, sess.ID)
	}
}

func (r *Registry) lookup(id string) (*record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, notFound(id)
	}
	return rec, nil
}

// purge removes the index entry for a deleted session. Called with the
// record lock held; takes the registry lock, which is safe because the
// registry lock is never held while acquiring a record lock.
func (r *Registry) purge(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	for i, candidate := range r.order {
		if candidate == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func notFound(id string) error {
	return fmt.Errorf("%w: id=%q", session.ErrNotFound, id)
}
