package services

import (
	"testing"
	"time"
)

func newActivityService(store *memStore) *ActivityService {
	s := NewActivityService(store, store, store, nil)
	s.now = fixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	s.newID = seqIDs("a")
	return s
}

func intPtr(n int) *int { return &n }

func activityInput(username string) *LogActivityInput {
	return &LogActivityInput{
		Username:        username,
		Activity:        "Reading",
		StartTime:       "2025-03-01T10:00:00Z",
		EndTime:         "2025-03-01T11:00:00Z",
		DurationSeconds: intPtr(3600),
	}
}

func TestLogActivityReusesOpenDiary(t *testing.T) {
	store := newMemStore()
	store.profiles["alice"] = &Profile{Key: "alice", Pseudonym: "alice", Role: RoleStudent}
	svc := newActivityService(store)

	a1, err := svc.LogActivity(activityInput("alice"))
	if err != nil {
		t.Fatalf("LogActivity: %v", err)
	}
	a2, err := svc.LogActivity(activityInput("alice"))
	if err != nil {
		t.Fatalf("LogActivity: %v", err)
	}
	if a1.DiaryID != a2.DiaryID {
		t.Fatalf("second activity opened a new diary: %s vs %s", a1.DiaryID, a2.DiaryID)
	}
	if len(store.diaries) != 1 {
		t.Fatalf("diaries = %d, want 1", len(store.diaries))
	}
	if !store.diaries[0].Open {
		t.Fatalf("diary not open")
	}
}

func TestLogActivityUnknownUser(t *testing.T) {
	svc := newActivityService(newMemStore())
	_, err := svc.LogActivity(activityInput("ghost"))
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestLogActivityCategoryLookup(t *testing.T) {
	store := newMemStore()
	store.profiles["alice"] = &Profile{Key: "alice", Pseudonym: "alice", Role: RoleStudent}
	store.categories["Sport"] = "cat1"
	svc := newActivityService(store)

	in := activityInput("alice")
	in.Category = "Sport"
	a, err := svc.LogActivity(in)
	if err != nil {
		t.Fatalf("LogActivity: %v", err)
	}
	if a.CategoryID != "cat1" {
		t.Fatalf("category id = %q, want cat1", a.CategoryID)
	}

	in = activityInput("alice")
	in.Category = "Cooking"
	_, err = svc.LogActivity(in)
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("unknown category err = %v, want not_found", err)
	}
}

func TestLogActivityValidation(t *testing.T) {
	store := newMemStore()
	store.profiles["alice"] = &Profile{Key: "alice", Pseudonym: "alice", Role: RoleStudent}
	svc := newActivityService(store)

	in := activityInput("alice")
	in.DurationSeconds = nil
	_, err := svc.LogActivity(in)
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorInvalid {
		t.Fatalf("missing duration err = %v, want invalid", err)
	}

	in = activityInput("alice")
	in.StartTime = "yesterday"
	_, err = svc.LogActivity(in)
	se, ok = AsServiceError(err)
	if !ok || se.Code != ErrorInvalid {
		t.Fatalf("bad timestamp err = %v, want invalid", err)
	}
}

func TestActivitiesForUserSorted(t *testing.T) {
	store := newMemStore()
	store.profiles["alice"] = &Profile{Key: "alice", Pseudonym: "alice", Role: RoleStudent}
	svc := newActivityService(store)

	late := activityInput("alice")
	late.Activity = "Late"
	late.StartTime = "2025-03-01T15:00:00Z"
	late.EndTime = "2025-03-01T16:00:00Z"
	if _, err := svc.LogActivity(late); err != nil {
		t.Fatalf("LogActivity: %v", err)
	}
	early := activityInput("alice")
	early.Activity = "Early"
	if _, err := svc.LogActivity(early); err != nil {
		t.Fatalf("LogActivity: %v", err)
	}

	userID := store.links["alice"].ID
	out, err := svc.ActivitiesForUser(userID)
	if err != nil {
		t.Fatalf("ActivitiesForUser: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("activities = %d, want 2", len(out))
	}
	if out[0].Activity != "Early" || out[1].Activity != "Late" {
		t.Fatalf("not sorted by start time: %s, %s", out[0].Activity, out[1].Activity)
	}
	if out[0].StartTime != "2025-03-01T10:00:00Z" {
		t.Fatalf("start time = %q", out[0].StartTime)
	}
}

func TestListDiariesAggregates(t *testing.T) {
	store := newMemStore()
	store.profiles["alice"] = &Profile{Key: "alice", Pseudonym: "alice", Role: RoleStudent}
	svc := newActivityService(store)

	if _, err := svc.LogActivity(activityInput("alice")); err != nil {
		t.Fatalf("LogActivity: %v", err)
	}
	second := activityInput("alice")
	second.DurationSeconds = intPtr(1800)
	if _, err := svc.LogActivity(second); err != nil {
		t.Fatalf("LogActivity: %v", err)
	}

	userID := store.links["alice"].ID
	diaries, err := svc.ListDiaries(userID)
	if err != nil {
		t.Fatalf("ListDiaries: %v", err)
	}
	if len(diaries) != 1 {
		t.Fatalf("diaries = %d, want 1", len(diaries))
	}
	if diaries[0].ActivityCount != 2 {
		t.Fatalf("activity count = %d, want 2", diaries[0].ActivityCount)
	}
	if diaries[0].TotalDuration != 5400 {
		t.Fatalf("total duration = %d, want 5400", diaries[0].TotalDuration)
	}
}
