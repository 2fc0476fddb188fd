package scan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func ptr(f float64) *float64 { return &f }

func seedRexAndAlice(store *memStore, events ...ScanEvent) {
	store.seed(
		Pet{ID: "p1", Name: "Rex", OwnerID: "u1"},
		Owner{ID: "u1", FullName: "Alice", Email: "alice@example.com"},
		events...,
	)
}

func TestHandle_FreshScanSendsAndRecords(t *testing.T) {
	store := newMemStore()
	seedRexAndAlice(store)
	mailer := &fakeMailer{}
	svc := NewService(store, mailer, 30*time.Minute, testLogger)

	result, err := svc.Handle(context.Background(), ScanRequest{PetID: "p1", Lat: ptr(1.0), Lng: ptr(2.0)})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result != ResultSent {
		t.Fatalf("result = %q, want %q", result, ResultSent)
	}

	if mailer.sendCount() != 1 {
		t.Fatalf("sends = %d, want 1", mailer.sendCount())
	}
	if mailer.sent[0].to != "alice@example.com" {
		t.Errorf("to = %q", mailer.sent[0].to)
	}

	events := store.eventsFor("p1")
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Outcome != OutcomeNotified || !events[0].Emailed {
		t.Errorf("event = %+v, want notified/emailed", events[0])
	}
}

func TestHandle_RecentEventThrottles(t *testing.T) {
	store := newMemStore()
	seedRexAndAlice(store, ScanEvent{
		ID: "old", PetID: "p1", Outcome: OutcomeNotified, Emailed: true,
		CreatedAt: time.Now().UTC().Add(-5 * time.Minute),
	})
	mailer := &fakeMailer{}
	svc := NewService(store, mailer, 30*time.Minute, testLogger)

	result, err := svc.Handle(context.Background(), ScanRequest{PetID: "p1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result != ResultThrottled {
		t.Fatalf("result = %q, want %q", result, ResultThrottled)
	}
	if mailer.sendCount() != 0 {
		t.Fatalf("sends = %d, want 0", mailer.sendCount())
	}

	events := store.eventsFor("p1")
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	latest := events[1]
	if latest.Outcome != OutcomeThrottled || latest.Emailed {
		t.Errorf("event = %+v, want throttled/not emailed", latest)
	}
}

// A failed or throttled event inside the window suppresses the next send
// just like a notified one.
func TestHandle_FailedEventAlsoThrottles(t *testing.T) {
	store := newMemStore()
	seedRexAndAlice(store, ScanEvent{
		ID: "old", PetID: "p1", Outcome: OutcomeFailed,
		CreatedAt: time.Now().UTC().Add(-time.Minute),
	})
	mailer := &fakeMailer{}
	svc := NewService(store, mailer, 30*time.Minute, testLogger)

	result, err := svc.Handle(context.Background(), ScanRequest{PetID: "p1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result != ResultThrottled {
		t.Fatalf("result = %q, want %q", result, ResultThrottled)
	}
	if mailer.sendCount() != 0 {
		t.Fatalf("sends = %d, want 0", mailer.sendCount())
	}
}

func TestHandle_ExpiredWindowSendsAgain(t *testing.T) {
	store := newMemStore()
	seedRexAndAlice(store, ScanEvent{
		ID: "old", PetID: "p1", Outcome: OutcomeNotified, Emailed: true,
		CreatedAt: time.Now().UTC().Add(-31 * time.Minute),
	})
	mailer := &fakeMailer{}
	svc := NewService(store, mailer, 30*time.Minute, testLogger)

	result, err := svc.Handle(context.Background(), ScanRequest{PetID: "p1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result != ResultSent {
		t.Fatalf("result = %q, want %q", result, ResultSent)
	}
	if mailer.sendCount() != 1 {
		t.Fatalf("sends = %d, want 1", mailer.sendCount())
	}
}

func TestHandle_SendFailureRecordsFailedEvent(t *testing.T) {
	store := newMemStore()
	seedRexAndAlice(store)
	mailer := &fakeMailer{err: errors.New("smtp down")}
	svc := NewService(store, mailer, 30*time.Minute, testLogger)

	_, err := svc.Handle(context.Background(), ScanRequest{PetID: "p1"})
	if err == nil {
		t.Fatal("want error")
	}

	events := store.eventsFor("p1")
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Outcome != OutcomeFailed || events[0].Emailed {
		t.Errorf("event = %+v, want failed/not emailed", events[0])
	}
}

func TestHandle_NilMailerFailsWithoutRecording(t *testing.T) {
	store := newMemStore()
	seedRexAndAlice(store)
	svc := NewService(store, nil, 30*time.Minute, testLogger)

	_, err := svc.Handle(context.Background(), ScanRequest{PetID: "p1"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
	if n := len(store.eventsFor("p1")); n != 0 {
		t.Fatalf("events = %d, want 0 (configuration errors leave no trail)", n)
	}
}

func TestHandle_RecordLostAfterSuccessfulSend(t *testing.T) {
	store := newMemStore()
	seedRexAndAlice(store)
	store.failRecord = true
	mailer := &fakeMailer{}
	svc := NewService(store, mailer, 30*time.Minute, testLogger)

	_, err := svc.Handle(context.Background(), ScanRequest{PetID: "p1"})
	if !errors.Is(err, ErrRecordLost) {
		t.Fatalf("err = %v, want ErrRecordLost", err)
	}
	if mailer.sendCount() != 1 {
		t.Fatalf("sends = %d, want 1 (mail went out before the record failed)", mailer.sendCount())
	}
}

func TestHandle_ResolverFailuresLeaveNoTrail(t *testing.T) {
	store := newMemStore()
	store.seed(Pet{ID: "orphan", Name: "Rex"}, Owner{})
	store.seed(Pet{ID: "ghostowner", Name: "Rex", OwnerID: "nobody"}, Owner{})
	store.seed(Pet{ID: "noemail", Name: "Rex", OwnerID: "u2"}, Owner{ID: "u2", FullName: "Bob"})
	svc := NewService(store, &fakeMailer{}, 30*time.Minute, testLogger)

	cases := []struct {
		petID string
		want  error
	}{
		{"missing", ErrPetNotFound},
		{"orphan", ErrNoOwnerLink},
		{"ghostowner", ErrOwnerNotFound},
		{"noemail", ErrNoOwnerEmail},
	}
	for _, tc := range cases {
		_, err := svc.Handle(context.Background(), ScanRequest{PetID: tc.petID})
		if !errors.Is(err, tc.want) {
			t.Errorf("Handle(%q) err = %v, want %v", tc.petID, err, tc.want)
		}
		if n := len(store.eventsFor(tc.petID)); n != 0 {
			t.Errorf("Handle(%q) left %d events, want 0", tc.petID, n)
		}
	}
}

// The central correctness property: N simultaneous scans for the same pet
// produce exactly one notified event and one sent email.
func TestHandle_ConcurrentScansNotifyExactlyOnce(t *testing.T) {
	store := newMemStore()
	seedRexAndAlice(store)
	mailer := &fakeMailer{}
	svc := NewService(store, mailer, 30*time.Minute, testLogger)

	const n = 25
	var wg sync.WaitGroup
	results := make([]Result, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Handle(context.Background(), ScanRequest{PetID: "p1"})
		}(i)
	}
	wg.Wait()

	var sent, throttled int
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Handle[%d]: %v", i, errs[i])
		}
		switch results[i] {
		case ResultSent:
			sent++
		case ResultThrottled:
			throttled++
		}
	}
	if sent != 1 || throttled != n-1 {
		t.Fatalf("sent = %d, throttled = %d, want 1 and %d", sent, throttled, n-1)
	}
	if mailer.sendCount() != 1 {
		t.Fatalf("sends = %d, want exactly 1", mailer.sendCount())
	}

	var notified int
	for _, ev := range store.eventsFor("p1") {
		if ev.Outcome == OutcomeNotified {
			notified++
		}
	}
	if notified != 1 {
		t.Fatalf("notified events = %d, want exactly 1", notified)
	}
}
