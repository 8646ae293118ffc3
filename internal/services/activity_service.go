package services

import (
	"fmt"
	"sort"
	"time"
)

// ActivityLedger owns per-user diaries and activity entries.
type ActivityLedger interface {
	// FindOpenDiary returns the user's first open diary, or nil.
	FindOpenDiary(userID string) (*Diary, error)
	InsertDiary(d *Diary) error
	ListDiaries(userID string) ([]*Diary, error)
	InsertActivity(a *Activity) error
	ListActivities(userID string) ([]*Activity, error)
}

// CategoryDirectory resolves category names to ids.
type CategoryDirectory interface {
	CategoryMap() (map[string]string, error)
}

// ActivityUserDirectory resolves profiles and lazily creates the operational
// identity link on first reference.
type ActivityUserDirectory interface {
	FindProfileByPseudonym(pseudonym string) (*Profile, error)
	EnsureLinkedUser(pseudonym string) (string, error)
}

type ActivityService struct {
	ledger     ActivityLedger
	categories CategoryDirectory
	users      ActivityUserDirectory
	logs       *LogService
	now        func() time.Time
	newID      func() string
}

func NewActivityService(ledger ActivityLedger, categories CategoryDirectory, users ActivityUserDirectory, logs *LogService) *ActivityService {
	return &ActivityService{
		ledger:     ledger,
		categories: categories,
		users:      users,
		logs:       logs,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      func() string { return shortID(12) },
	}
}

type LogActivityInput struct {
	Username        string `json:"username" validate:"required"`
	Activity        string `json:"activity" validate:"required"`
	StartTime       string `json:"start_time" validate:"required"`
	EndTime         string `json:"end_time" validate:"required"`
	DurationSeconds *int   `json:"duration_seconds" validate:"required"`
	Category        string `json:"category"`
}

// LogActivity appends an activity entry to the user's open diary, opening a
// new diary when none is open. Retried requests create duplicate rows; the
// caller is expected to dedupe upstream.
func (s *ActivityService) LogActivity(in *LogActivityInput) (*Activity, error) {
	if err := checkInput(in); err != nil {
		s.logs.Event("log_activity_fail", "missing data", in.Username)
		return nil, err
	}
	start, err := time.Parse(time.RFC3339, in.StartTime)
	if err != nil {
		return nil, NewInvalidError("start_time is not a valid timestamp")
	}
	end, err := time.Parse(time.RFC3339, in.EndTime)
	if err != nil {
		return nil, NewInvalidError("end_time is not a valid timestamp")
	}

	profile, err := s.users.FindProfileByPseudonym(in.Username)
	if err != nil {
		return nil, storeErr(err)
	}
	if profile == nil {
		s.logs.Event("log_activity_fail", "user not found", in.Username)
		return nil, NewNotFoundError("user not found")
	}
	userID, err := s.users.EnsureLinkedUser(in.Username)
	if err != nil {
		return nil, storeErr(err)
	}

	categoryID := ""
	if in.Category != "" {
		byName, err := s.categories.CategoryMap()
		if err != nil {
			return nil, storeErr(err)
		}
		id, ok := byName[in.Category]
		if !ok {
			s.logs.Event("log_activity_fail", fmt.Sprintf("category %q not found", in.Category), in.Username)
			return nil, NewNotFoundError(fmt.Sprintf("category %q not found", in.Category))
		}
		categoryID = id
	}

	diary, err := s.ledger.FindOpenDiary(userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if diary == nil {
		diary = &Diary{
			ID:           s.newID(),
			UserID:       userID,
			Open:         true,
			CreationDate: s.now(),
			DurationTime: 0,
		}
		if err := s.ledger.InsertDiary(diary); err != nil {
			return nil, storeErr(err)
		}
	}

	activity := &Activity{
		ID:              s.newID(),
		UserID:          userID,
		DiaryID:         diary.ID,
		Activity:        in.Activity,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: *in.DurationSeconds,
		CategoryID:      categoryID,
	}
	if err := s.ledger.InsertActivity(activity); err != nil {
		return nil, storeErr(err)
	}
	s.logs.Event("activity_log", fmt.Sprintf("activity %q logged with category %q", in.Activity, in.Category), in.Username)
	return activity, nil
}

// ActivityEntry is the normalized per-activity projection with ISO-8601
// timestamps.
type ActivityEntry struct {
	Activity  string `json:"activity"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Duration  int    `json:"duration"`
}

// ActivitiesForUser returns every activity for the user, sorted by start time
// ascending.
func (s *ActivityService) ActivitiesForUser(userID string) ([]*ActivityEntry, error) {
	activities, err := s.ledger.ListActivities(userID)
	if err != nil {
		return nil, storeErr(err)
	}
	sort.Slice(activities, func(i, j int) bool {
		return activities[i].StartTime.Before(activities[j].StartTime)
	})
	out := make([]*ActivityEntry, 0, len(activities))
	for _, a := range activities {
		out = append(out, &ActivityEntry{
			Activity:  a.Activity,
			StartTime: a.StartTime.Format(time.RFC3339),
			EndTime:   a.EndTime.Format(time.RFC3339),
			Duration:  a.DurationSeconds,
		})
	}
	return out, nil
}

// DiarySummary reports a diary with its duration aggregate derived from the
// activities attached to it.
type DiarySummary struct {
	ID            string    `json:"id"`
	Open          bool      `json:"open"`
	CreationDate  time.Time `json:"creation_date"`
	ActivityCount int       `json:"activity_count"`
	TotalDuration int       `json:"total_duration_seconds"`
}

// ListDiaries returns the user's diaries with derived duration totals.
func (s *ActivityService) ListDiaries(userID string) ([]*DiarySummary, error) {
	diaries, err := s.ledger.ListDiaries(userID)
	if err != nil {
		return nil, storeErr(err)
	}
	activities, err := s.ledger.ListActivities(userID)
	if err != nil {
		return nil, storeErr(err)
	}
	type agg struct {
		count    int
		duration int
	}
	byDiary := make(map[string]agg, len(diaries))
	for _, a := range activities {
		cur := byDiary[a.DiaryID]
		cur.count++
		cur.duration += a.DurationSeconds
		byDiary[a.DiaryID] = cur
	}
	out := make([]*DiarySummary, 0, len(diaries))
	for _, d := range diaries {
		out = append(out, &DiarySummary{
			ID:            d.ID,
			Open:          d.Open,
			CreationDate:  d.CreationDate,
			ActivityCount: byDiary[d.ID].count,
			TotalDuration: byDiary[d.ID].duration,
		})
	}
	return out, nil
}
