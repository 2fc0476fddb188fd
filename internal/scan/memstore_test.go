package scan

import (
	"context"
	"errors"
	"sync"
	"time"
)

// memStore is an in-memory Store with the same locking discipline as the
// Postgres implementation: BeginScan takes a per-pet lock that is held
// until Record or Rollback.
type memStore struct {
	mu     sync.Mutex
	pets   map[string]Pet
	owners map[string]Owner
	events []ScanEvent
	locks  map[string]*sync.Mutex

	ownerCalls int
	failRecord bool
}

func newMemStore() *memStore {
	return &memStore{
		pets:   make(map[string]Pet),
		owners: make(map[string]Owner),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *memStore) Pet(_ context.Context, id string) (Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pets[id]
	if !ok {
		return Pet{}, ErrPetNotFound
	}
	return p, nil
}

func (s *memStore) Owner(_ context.Context, id string) (Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerCalls++
	o, ok := s.owners[id]
	if !ok {
		return Owner{}, ErrOwnerNotFound
	}
	return o, nil
}

func (s *memStore) BeginScan(_ context.Context, petID string, window time.Duration) (ScanTx, error) {
	s.mu.Lock()
	lock, ok := s.locks[petID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[petID] = lock
	}
	s.mu.Unlock()

	lock.Lock()

	threshold := time.Now().UTC().Add(-window)
	s.mu.Lock()
	recent := false
	for _, ev := range s.events {
		if ev.PetID == petID && ev.CreatedAt.After(threshold) {
			recent = true
			break
		}
	}
	s.mu.Unlock()

	return &memTx{store: s, lock: lock, throttled: recent}, nil
}

func (s *memStore) RecentScans(_ context.Context, petID string, limit int) ([]ScanEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ScanEvent
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if s.events[i].PetID == petID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

func (s *memStore) PurgeScans(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []ScanEvent
	var purged int64
	for _, ev := range s.events {
		if ev.CreatedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return purged, nil
}

// eventsFor returns recorded events for a pet in insertion order.
func (s *memStore) eventsFor(petID string) []ScanEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ScanEvent
	for _, ev := range s.events {
		if ev.PetID == petID {
			out = append(out, ev)
		}
	}
	return out
}

// seed installs a pet/owner pair plus optional prior events.
func (s *memStore) seed(p Pet, o Owner, events ...ScanEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pets[p.ID] = p
	if o.ID != "" {
		s.owners[o.ID] = o
	}
	s.events = append(s.events, events...)
}

type memTx struct {
	store     *memStore
	lock      *sync.Mutex
	throttled bool
	done      bool
}

func (t *memTx) Throttled() bool { return t.throttled }

func (t *memTx) Record(_ context.Context, ev ScanEvent) error {
	if t.done {
		return errors.New("claim already closed")
	}
	t.store.mu.Lock()
	fail := t.store.failRecord
	if !fail {
		t.store.events = append(t.store.events, ev)
	}
	t.store.mu.Unlock()

	t.done = true
	t.lock.Unlock()
	if fail {
		return errors.New("record failed")
	}
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.lock.Unlock()
	return nil
}

// fakeMailer records sends and can be forced to fail.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

type sentMail struct {
	to      string
	subject string
	html    string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, html: htmlBody})
	return nil
}

func (m *fakeMailer) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
