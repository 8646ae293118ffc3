package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/test0011220/activity-tracker-backend/internal/services"
)

// Store is the operational store backing diaries, activities, questionnaires,
// questions, responses, categories, modules and the event log.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	if err := applySchema(db, operationalSchema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func int64ToBool(v int64) bool { return v != 0 }

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func isConstraintErr(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}

// --- questionnaires ---

func (s *Store) InsertQuestionnaire(q *services.Questionnaire) error {
	filieres, err := encodeJSON(q.Filieres)
	if err != nil {
		return err
	}
	years, err := encodeJSON(q.Years)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO questionnaires
		(id, title, description, category, activity_id, filieres, years, is_active, created_at_unix, updated_at_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.Title, q.Description, q.Category, nullable(q.ActivityID),
		filieres, years, boolToInt64(q.IsActive), q.CreatedAt.Unix(), q.UpdatedAt.Unix())
	return err
}

func (s *Store) UpdateQuestionnaireMeta(q *services.Questionnaire) (bool, error) {
	filieres, err := encodeJSON(q.Filieres)
	if err != nil {
		return false, err
	}
	years, err := encodeJSON(q.Years)
	if err != nil {
		return false, err
	}
	res, err := s.db.Exec(`UPDATE questionnaires
		SET title = ?, description = ?, category = ?, activity_id = ?, filieres = ?, years = ?, updated_at_unix = ?
		WHERE id = ?`,
		q.Title, q.Description, q.Category, nullable(q.ActivityID),
		filieres, years, q.UpdatedAt.Unix(), q.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) SetQuestionnaireStatus(id string, active bool, updatedAt time.Time) (bool, error) {
	res, err := s.db.Exec(`UPDATE questionnaires SET is_active = ?, updated_at_unix = ? WHERE id = ?`,
		boolToInt64(active), updatedAt.Unix(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const questionnaireCols = `id, title, description, category, activity_id, filieres, years, is_active, created_at_unix, updated_at_unix`

func (s *Store) GetQuestionnaire(id string) (*services.Questionnaire, error) {
	row := s.db.QueryRow(`SELECT `+questionnaireCols+` FROM questionnaires WHERE id = ?`, id)
	return scanQuestionnaire(row)
}

func (s *Store) GetQuestionnaireByTitle(title string) (*services.Questionnaire, error) {
	row := s.db.QueryRow(`SELECT `+questionnaireCols+` FROM questionnaires WHERE title = ? LIMIT 1`, title)
	return scanQuestionnaire(row)
}

func (s *Store) ListQuestionnaires() ([]*services.Questionnaire, error) {
	rows, err := s.db.Query(`SELECT ` + questionnaireCols + ` FROM questionnaires ORDER BY created_at_unix`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestionnaires(rows)
}

// ListEligibleQuestionnaires filters active questionnaires whose filiere tags
// or year tags intersect the given sets. Tag lists live in JSON columns, so
// intersection is evaluated here rather than in SQL.
func (s *Store) ListEligibleQuestionnaires(filieres, years []string) ([]*services.Questionnaire, error) {
	rows, err := s.db.Query(`SELECT ` + questionnaireCols + ` FROM questionnaires WHERE is_active = 1 ORDER BY created_at_unix`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	all, err := collectQuestionnaires(rows)
	if err != nil {
		return nil, err
	}
	out := make([]*services.Questionnaire, 0, len(all))
	for _, q := range all {
		if intersects(q.Filieres, filieres) || intersects(q.Years, years) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *Store) GetQuestionnairesByIDs(ids []string) ([]*services.Questionnaire, error) {
	out := make([]*services.Questionnaire, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		q, err := s.GetQuestionnaire(id)
		if err != nil {
			return nil, err
		}
		if q != nil {
			out = append(out, q)
		}
	}
	return out, nil
}

// DeleteQuestionnaire removes the questionnaire and cascades to its questions
// and responses in one transaction.
func (s *Store) DeleteQuestionnaire(id string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`DELETE FROM questionnaires WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if _, err := tx.Exec(`DELETE FROM questions WHERE questionnaire_id = ?`, id); err != nil {
		return false, err
	}
	if _, err := tx.Exec(`DELETE FROM responses WHERE questionnaire_id = ?`, id); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// --- questions ---

func (s *Store) InsertQuestion(q *services.Question) error {
	props, err := encodeJSON(q.Propositions)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO questions
		(id, questionnaire_id, text, type, propositions, ord, points, created_at_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.QuestionnaireID, q.Text, q.Type, props, q.Order, q.Points, q.CreatedAt.Unix())
	return err
}

const questionCols = `id, questionnaire_id, text, type, propositions, ord, points, created_at_unix`

func (s *Store) GetQuestion(id string) (*services.Question, error) {
	row := s.db.QueryRow(`SELECT `+questionCols+` FROM questions WHERE id = ?`, id)
	q, err := scanQuestion(row)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *Store) ListQuestions(questionnaireID string) ([]*services.Question, error) {
	rows, err := s.db.Query(`SELECT `+questionCols+` FROM questions WHERE questionnaire_id = ? ORDER BY ord ASC`, questionnaireID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *Store) DeleteQuestionsByQuestionnaire(questionnaireID string) error {
	_, err := s.db.Exec(`DELETE FROM questions WHERE questionnaire_id = ?`, questionnaireID)
	return err
}

// --- responses ---

func (s *Store) InsertResponse(r *services.QuestionnaireResponse) error {
	answers, err := encodeJSON(r.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO responses
		(id, questionnaire_id, user_id, answers, duration_seconds, feedback, completed_at_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.QuestionnaireID, r.UserID, answers, r.DurationSeconds, r.Feedback, r.CompletedAt.Unix())
	if isConstraintErr(err) {
		return services.ErrDuplicateResponse
	}
	return err
}

const responseCols = `id, questionnaire_id, user_id, answers, duration_seconds, feedback, completed_at_unix`

func (s *Store) GetResponse(userID, questionnaireID string) (*services.QuestionnaireResponse, error) {
	row := s.db.QueryRow(`SELECT `+responseCols+` FROM responses WHERE user_id = ? AND questionnaire_id = ?`,
		userID, questionnaireID)
	return scanResponse(row)
}

func (s *Store) ListResponsesByUser(userID string) ([]*services.QuestionnaireResponse, error) {
	rows, err := s.db.Query(`SELECT `+responseCols+` FROM responses WHERE user_id = ? ORDER BY completed_at_unix`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.QuestionnaireResponse
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- identity link ---

func (s *Store) GetLinkedUser(id string) (*services.LinkedUser, error) {
	row := s.db.QueryRow(`SELECT id, pseudonym FROM users WHERE id = ?`, id)
	return scanLinkedUser(row)
}

func (s *Store) FindLinkedUserByPseudonym(pseudonym string) (*services.LinkedUser, error) {
	row := s.db.QueryRow(`SELECT id, pseudonym FROM users WHERE pseudonym = ?`, pseudonym)
	return scanLinkedUser(row)
}

// EnsureLinkedUser lazily creates the operational identity record on first
// reference. A concurrent insert for the same pseudonym is resolved by
// re-reading after the unique-constraint failure.
func (s *Store) EnsureLinkedUser(pseudonym string) (string, error) {
	existing, err := s.FindLinkedUserByPseudonym(pseudonym)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}
	id := uuid.NewString()
	_, err = s.db.Exec(`INSERT INTO users (id, pseudonym) VALUES (?, ?)`, id, pseudonym)
	if err != nil {
		if isConstraintErr(err) {
			existing, err = s.FindLinkedUserByPseudonym(pseudonym)
			if err != nil {
				return "", err
			}
			if existing != nil {
				return existing.ID, nil
			}
		}
		return "", err
	}
	return id, nil
}

func (s *Store) RenameLinkedUser(oldPseudonym, newPseudonym string) error {
	_, err := s.db.Exec(`UPDATE users SET pseudonym = ? WHERE pseudonym = ?`, newPseudonym, oldPseudonym)
	return err
}

func (s *Store) DeleteLinkedUser(pseudonym string) error {
	_, err := s.db.Exec(`DELETE FROM users WHERE pseudonym = ?`, pseudonym)
	return err
}

// --- diaries and activities ---

func (s *Store) FindOpenDiary(userID string) (*services.Diary, error) {
	row := s.db.QueryRow(`SELECT id, user_id, open, creation_date_unix, duration_time
		FROM diaries WHERE user_id = ? AND open = 1 LIMIT 1`, userID)
	return scanDiary(row)
}

func (s *Store) InsertDiary(d *services.Diary) error {
	_, err := s.db.Exec(`INSERT INTO diaries (id, user_id, open, creation_date_unix, duration_time)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.UserID, boolToInt64(d.Open), d.CreationDate.Unix(), d.DurationTime)
	return err
}

func (s *Store) ListDiaries(userID string) ([]*services.Diary, error) {
	rows, err := s.db.Query(`SELECT id, user_id, open, creation_date_unix, duration_time
		FROM diaries WHERE user_id = ? ORDER BY creation_date_unix`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.Diary
	for rows.Next() {
		d, err := scanDiary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) InsertActivity(a *services.Activity) error {
	_, err := s.db.Exec(`INSERT INTO activities
		(id, user_id, diary_id, activity, start_time_unix, end_time_unix, duration_seconds, category_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.DiaryID, a.Activity, a.StartTime.Unix(), a.EndTime.Unix(),
		a.DurationSeconds, nullable(a.CategoryID))
	return err
}

func (s *Store) ListActivities(userID string) ([]*services.Activity, error) {
	rows, err := s.db.Query(`SELECT id, user_id, diary_id, activity, start_time_unix, end_time_unix, duration_seconds, category_id
		FROM activities WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.Activity
	for rows.Next() {
		var (
			a        services.Activity
			start    int64
			end      int64
			category sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.DiaryID, &a.Activity, &start, &end, &a.DurationSeconds, &category); err != nil {
			return nil, err
		}
		a.StartTime = time.Unix(start, 0).UTC()
		a.EndTime = time.Unix(end, 0).UTC()
		a.CategoryID = category.String
		out = append(out, &a)
	}
	return out, rows.Err()
}

// --- categories and modules ---

func (s *Store) InsertCategory(c *services.Category) error {
	_, err := s.db.Exec(`INSERT INTO categories (id, name) VALUES (?, ?)`, c.ID, c.Name)
	return err
}

func (s *Store) CategoryMap() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT id, name FROM categories`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

func (s *Store) InsertModule(name, year, studies, semester string) error {
	_, err := s.db.Exec(`INSERT INTO modules (name, year, studies, semester) VALUES (?, ?, ?, ?)`,
		name, year, studies, semester)
	return err
}

func (s *Store) ListModules(year, studies, semester string) ([]*services.Module, error) {
	rows, err := s.db.Query(`SELECT name FROM modules WHERE year = ? AND studies = ? AND semester = ?`,
		year, studies, semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*services.Module{}
	for rows.Next() {
		var m services.Module
		if err := rows.Scan(&m.Name); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- event log and password resets ---

func (s *Store) AppendEvent(e *services.EventLog) error {
	_, err := s.db.Exec(`INSERT INTO logs (id, ts_unix, event_type, message, user) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.Unix(), e.Kind, e.Message, nullable(e.Subject))
	return err
}

func (s *Store) ListEvents() ([]*services.EventLog, error) {
	rows, err := s.db.Query(`SELECT id, ts_unix, event_type, message, user FROM logs ORDER BY ts_unix DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.EventLog
	for rows.Next() {
		var (
			e       services.EventLog
			ts      int64
			subject sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &e.Kind, &e.Message, &subject); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		e.Subject = subject.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) AppendPasswordReset(r *services.PasswordResetRequest) error {
	_, err := s.db.Exec(`INSERT INTO password_resets (username, requested_at_unix, status) VALUES (?, ?, ?)`,
		r.Username, r.RequestedAt.Unix(), r.Status)
	return err
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestionnaire(row rowScanner) (*services.Questionnaire, error) {
	var (
		q          services.Questionnaire
		activityID sql.NullString
		filieres   string
		years      string
		active     int64
		created    int64
		updated    int64
	)
	err := row.Scan(&q.ID, &q.Title, &q.Description, &q.Category, &activityID,
		&filieres, &years, &active, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	q.ActivityID = activityID.String
	if err := json.Unmarshal([]byte(filieres), &q.Filieres); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(years), &q.Years); err != nil {
		return nil, err
	}
	q.IsActive = int64ToBool(active)
	q.CreatedAt = time.Unix(created, 0).UTC()
	q.UpdatedAt = time.Unix(updated, 0).UTC()
	return &q, nil
}

func collectQuestionnaires(rows *sql.Rows) ([]*services.Questionnaire, error) {
	var out []*services.Questionnaire
	for rows.Next() {
		q, err := scanQuestionnaire(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func scanQuestion(row rowScanner) (*services.Question, error) {
	var (
		q       services.Question
		props   string
		created int64
	)
	err := row.Scan(&q.ID, &q.QuestionnaireID, &q.Text, &q.Type, &props, &q.Order, &q.Points, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(props), &q.Propositions); err != nil {
		return nil, err
	}
	q.CreatedAt = time.Unix(created, 0).UTC()
	return &q, nil
}

func scanResponse(row rowScanner) (*services.QuestionnaireResponse, error) {
	var (
		r         services.QuestionnaireResponse
		answers   string
		completed int64
	)
	err := row.Scan(&r.ID, &r.QuestionnaireID, &r.UserID, &answers, &r.DurationSeconds, &r.Feedback, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
		return nil, err
	}
	r.CompletedAt = time.Unix(completed, 0).UTC()
	return &r, nil
}

func scanLinkedUser(row rowScanner) (*services.LinkedUser, error) {
	var u services.LinkedUser
	err := row.Scan(&u.ID, &u.Pseudonym)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanDiary(row rowScanner) (*services.Diary, error) {
	var (
		d       services.Diary
		open    int64
		created int64
	)
	err := row.Scan(&d.ID, &d.UserID, &open, &created, &d.DurationTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Open = int64ToBool(open)
	d.CreationDate = time.Unix(created, 0).UTC()
	return &d, nil
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
