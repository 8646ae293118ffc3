package services

import "time"

// Question types supported by the questionnaire engine.
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionOpenEnded      = "open_ended"
)

// RoleSuperAdmin sees every questionnaire regardless of activation or
// eligibility tags.
const RoleSuperAdmin = "super_admin"

const RoleStudent = "student"

// Proposition is one selectable answer option for a multiple-choice question.
type Proposition struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type Question struct {
	ID              string        `json:"id"`
	QuestionnaireID string        `json:"questionnaire_id"`
	Text            string        `json:"text"`
	Type            string        `json:"type"`
	Propositions    []Proposition `json:"propositions"`
	Order           int           `json:"order"`
	Points          int           `json:"points"`
	CreatedAt       time.Time     `json:"created_at"`
}

type Questionnaire struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	ActivityID  string    `json:"activity_id,omitempty"`
	Filieres    []string  `json:"filieres"`
	Years       []string  `json:"years"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Answer is one per-question entry inside a stored response. IsCorrect is
// derived at submission time by matching the selected proposition.
type Answer struct {
	QuestionID            string `json:"question_id"`
	SelectedPropositionID string `json:"selected_proposition_id,omitempty"`
	AnswerText            string `json:"answer_text,omitempty"`
	IsCorrect             bool   `json:"is_correct"`
}

type QuestionnaireResponse struct {
	ID              string    `json:"id"`
	QuestionnaireID string    `json:"questionnaire_id"`
	UserID          string    `json:"user_id"`
	Answers         []Answer  `json:"responses"`
	DurationSeconds int       `json:"duration_seconds"`
	Feedback        string    `json:"feedback"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Diary groups sequential activity entries for one user. At most one diary is
// expected to be open per user; selection is first-match, not enforced.
type Diary struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Open         bool      `json:"open"`
	CreationDate time.Time `json:"creation_date"`
	DurationTime int       `json:"duration_time"`
}

type Activity struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	DiaryID         string    `json:"diary_id"`
	Activity        string    `json:"activity"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds int       `json:"duration_seconds"`
	CategoryID      string    `json:"category_id,omitempty"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Module struct {
	Name string `json:"name"`
}

// Profile is the document stored in the profile store, keyed by pseudonym for
// manual accounts and by email for federated ones.
type Profile struct {
	Key       string    `json:"-"`
	Pseudonym string    `json:"pseudonym"`
	Password  string    `json:"password,omitempty"`
	Role      string    `json:"role"`
	Email     string    `json:"email_address"`
	Gender    string    `json:"gender,omitempty"`
	Age       string    `json:"age,omitempty"`
	Year      string    `json:"year,omitempty"`
	Studies   string    `json:"studies,omitempty"`
	Semester  string    `json:"semester,omitempty"`
	GoogleUID string    `json:"google_uid,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LinkedUser is the identity-link row joining a profile pseudonym to the
// generated operational id referenced by diaries, activities and responses.
type LinkedUser struct {
	ID        string `json:"id"`
	Pseudonym string `json:"pseudonym"`
}

type EventLog struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"event_type"`
	Message   string    `json:"message"`
	Subject   string    `json:"user,omitempty"`
}

type PasswordResetRequest struct {
	Username    string    `json:"username"`
	RequestedAt time.Time `json:"timestamp"`
	Status      string    `json:"status"`
}
