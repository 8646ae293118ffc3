package services

import (
	"log"
	"time"

	"github.com/google/uuid"
)

// EventStore persists domain log events.
type EventStore interface {
	AppendEvent(e *EventLog) error
	ListEvents() ([]*EventLog, error)
}

// LogService is a fire-and-forget event sink. It never blocks core logic and
// never raises back into it; append failures go to the process log only.
type LogService struct {
	store EventStore
	now   func() time.Time
}

func NewLogService(store EventStore) *LogService {
	return &LogService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Event records a (kind, message, subject) triple. Safe to call on a nil
// service, which keeps engine code free of guards in tests.
func (s *LogService) Event(kind, message, subject string) {
	if s == nil || s.store == nil {
		return
	}
	e := &EventLog{
		ID:        uuid.NewString(),
		Timestamp: s.now(),
		Kind:      kind,
		Message:   message,
		Subject:   subject,
	}
	if err := s.store.AppendEvent(e); err != nil {
		log.Printf("log sink: append %s: %v", kind, err)
	}
}

// Recent returns stored events newest first.
func (s *LogService) Recent() ([]*EventLog, error) {
	events, err := s.store.ListEvents()
	if err != nil {
		return nil, storeErr(err)
	}
	return events, nil
}
