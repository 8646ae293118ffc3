package services

import (
	"testing"
	"time"
)

func TestLogServiceNilSafe(t *testing.T) {
	var svc *LogService
	// Must not panic.
	svc.Event("noop", "nothing recorded", "")
}

func TestLogServiceRecentNewestFirst(t *testing.T) {
	store := newMemStore()
	svc := NewLogService(store)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	svc.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}

	svc.Event("first", "one", "alice")
	svc.Event("second", "two", "bob")

	events, err := svc.Recent()
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Kind != "second" || events[1].Kind != "first" {
		t.Fatalf("not newest first: %s, %s", events[0].Kind, events[1].Kind)
	}
	if events[0].Subject != "bob" {
		t.Fatalf("subject = %q", events[0].Subject)
	}
}
