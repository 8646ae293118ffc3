package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuestionnaireStore owns questionnaire metadata and response records.
type QuestionnaireStore interface {
	InsertQuestionnaire(q *Questionnaire) error
	// UpdateQuestionnaireMeta replaces title/description/category/activity
	// link/tags and refreshes updated_at. Returns false when no row matched.
	UpdateQuestionnaireMeta(q *Questionnaire) (bool, error)
	SetQuestionnaireStatus(id string, active bool, updatedAt time.Time) (bool, error)
	GetQuestionnaire(id string) (*Questionnaire, error)
	GetQuestionnaireByTitle(title string) (*Questionnaire, error)
	ListQuestionnaires() ([]*Questionnaire, error)
	// ListEligibleQuestionnaires returns active questionnaires whose filiere
	// tags or year tags intersect the given sets.
	ListEligibleQuestionnaires(filieres, years []string) ([]*Questionnaire, error)
	// DeleteQuestionnaire cascades to the questionnaire's questions and
	// responses. Returns false when the id matched nothing.
	DeleteQuestionnaire(id string) (bool, error)
	GetQuestionnairesByIDs(ids []string) ([]*Questionnaire, error)

	InsertResponse(r *QuestionnaireResponse) error
	GetResponse(userID, questionnaireID string) (*QuestionnaireResponse, error)
	ListResponsesByUser(userID string) ([]*QuestionnaireResponse, error)
}

// QuestionStore owns question documents, keyed by questionnaire.
type QuestionStore interface {
	InsertQuestion(q *Question) error
	GetQuestion(id string) (*Question, error)
	// ListQuestions returns questions ordered ascending by their order field.
	ListQuestions(questionnaireID string) ([]*Question, error)
	DeleteQuestionsByQuestionnaire(questionnaireID string) error
}

// EligibilityDirectory resolves the requesting user's role and tags.
type EligibilityDirectory interface {
	GetLinkedUser(id string) (*LinkedUser, error)
	FindProfileByPseudonym(pseudonym string) (*Profile, error)
}

// maxTitleProbes caps the sequential duplicate-title search so a pathological
// store state cannot loop unbounded.
const defaultMaxTitleProbes = 1000

type QuestionnaireService struct {
	store     QuestionnaireStore
	questions QuestionStore
	users     EligibilityDirectory
	logs      *LogService
	now       func() time.Time
	newID     func() string
	maxProbes int
}

func NewQuestionnaireService(store QuestionnaireStore, questions QuestionStore, users EligibilityDirectory, logs *LogService) *QuestionnaireService {
	return &QuestionnaireService{
		store:     store,
		questions: questions,
		users:     users,
		logs:      logs,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return shortID(12) },
		maxProbes: defaultMaxTitleProbes,
	}
}

type QuestionInput struct {
	Text         string        `json:"text" validate:"required"`
	Type         string        `json:"type" validate:"omitempty,oneof=multiple_choice open_ended"`
	Propositions []Proposition `json:"propositions"`
	Order        int           `json:"order"`
	Points       int           `json:"points"`
}

type QuestionnaireInput struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	ActivityID  string          `json:"activity_id"`
	Filieres    []string        `json:"filieres" validate:"required,min=1"`
	Years       []string        `json:"years" validate:"required,min=1"`
	Questions   []QuestionInput `json:"questions" validate:"dive"`
}

// Create persists a new active questionnaire and its questions. Question
// order defaults to the position in the submitted list when not supplied.
func (s *QuestionnaireService) Create(in *QuestionnaireInput) (string, error) {
	if err := checkInput(in); err != nil {
		s.logs.Event("create_questionnaire_fail", "missing required fields", "")
		return "", err
	}
	now := s.now()
	q := &Questionnaire{
		ID:          s.newID(),
		Title:       in.Title,
		Description: in.Description,
		Category:    defaultCategory(in.Category),
		ActivityID:  in.ActivityID,
		Filieres:    in.Filieres,
		Years:       in.Years,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertQuestionnaire(q); err != nil {
		return "", storeErr(err)
	}
	if err := s.insertQuestions(q.ID, in.Questions, now); err != nil {
		return "", err
	}
	s.logs.Event("create_questionnaire", "questionnaire created: "+in.Title, "")
	return q.ID, nil
}

// Update replaces the questionnaire metadata, then deletes and re-inserts the
// supplied question list. There is no diffing; question ids are regenerated.
func (s *QuestionnaireService) Update(id string, in *QuestionnaireInput) error {
	if err := checkInput(in); err != nil {
		s.logs.Event("update_questionnaire_fail", "missing required fields", "")
		return err
	}
	now := s.now()
	meta := &Questionnaire{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Category:    defaultCategory(in.Category),
		ActivityID:  in.ActivityID,
		Filieres:    in.Filieres,
		Years:       in.Years,
		UpdatedAt:   now,
	}
	ok, err := s.store.UpdateQuestionnaireMeta(meta)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return NewNotFoundError("questionnaire not found")
	}
	if err := s.questions.DeleteQuestionsByQuestionnaire(id); err != nil {
		return storeErr(err)
	}
	if err := s.insertQuestions(id, in.Questions, now); err != nil {
		return err
	}
	s.logs.Event("update_questionnaire", "questionnaire updated: "+in.Title, "")
	return nil
}

// ToggleStatus sets the activation flag. Setting the current value again
// still counts as a write.
func (s *QuestionnaireService) ToggleStatus(id string, active bool) error {
	q, err := s.store.GetQuestionnaire(id)
	if err != nil {
		return storeErr(err)
	}
	if q == nil {
		s.logs.Event("toggle_status_fail", "questionnaire not found", "")
		return NewNotFoundError("questionnaire not found")
	}
	ok, err := s.store.SetQuestionnaireStatus(id, active, s.now())
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return NewInternalError("status update failed")
	}
	s.logs.Event("toggle_status", fmt.Sprintf("questionnaire %s active set to %t", id, active), "")
	return nil
}

// Duplicate copies a questionnaire and its questions under a fresh title of
// the form base(n). The base is the title hint when given, else the source
// title, with any trailing parenthetical suffix stripped so repeated
// duplication yields T(1), T(2) rather than T(1)(1).
func (s *QuestionnaireService) Duplicate(id, titleHint string) (string, error) {
	src, err := s.store.GetQuestionnaire(id)
	if err != nil {
		return "", storeErr(err)
	}
	if src == nil {
		s.logs.Event("duplicate_questionnaire_fail", "questionnaire not found: "+id, "")
		return "", NewNotFoundError("questionnaire not found")
	}

	base := stripTitleSuffix(src.Title)
	if titleHint != "" {
		base = stripTitleSuffix(titleHint)
	}
	title, err := s.probeTitle(base)
	if err != nil {
		return "", err
	}

	now := s.now()
	dup := &Questionnaire{
		ID:          s.newID(),
		Title:       title,
		Description: src.Description,
		Category:    src.Category,
		ActivityID:  src.ActivityID,
		Filieres:    src.Filieres,
		Years:       src.Years,
		IsActive:    src.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertQuestionnaire(dup); err != nil {
		return "", storeErr(err)
	}

	questions, err := s.questions.ListQuestions(id)
	if err != nil {
		return "", storeErr(err)
	}
	for _, q := range questions {
		copy := &Question{
			ID:              s.newID(),
			QuestionnaireID: dup.ID,
			Text:            q.Text,
			Type:            q.Type,
			Propositions:    q.Propositions,
			Order:           q.Order,
			Points:          q.Points,
			CreatedAt:       now,
		}
		if err := s.questions.InsertQuestion(copy); err != nil {
			return "", storeErr(err)
		}
	}
	s.logs.Event("duplicate_questionnaire", fmt.Sprintf("questionnaire duplicated: %s -> %s", id, dup.ID), "")
	return dup.ID, nil
}

// probeTitle finds the first unused base(n) title, n starting at 1.
func (s *QuestionnaireService) probeTitle(base string) (string, error) {
	for n := 1; n <= s.maxProbes; n++ {
		title := fmt.Sprintf("%s(%d)", base, n)
		existing, err := s.store.GetQuestionnaireByTitle(title)
		if err != nil {
			return "", storeErr(err)
		}
		if existing == nil {
			return title, nil
		}
	}
	return "", NewConflictError("duplicate title limit reached for " + base)
}

// Delete removes the questionnaire and cascades to its questions and
// responses. This is the only operation that touches response records.
func (s *QuestionnaireService) Delete(id string) error {
	ok, err := s.store.DeleteQuestionnaire(id)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		s.logs.Event("delete_questionnaire_fail", "questionnaire not found: "+id, "")
		return NewNotFoundError("questionnaire not found")
	}
	s.logs.Event("delete_questionnaire", "questionnaire deleted: "+id, "")
	return nil
}

// QuestionnaireSummary is the listing projection returned to callers.
type QuestionnaireSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Filieres    []string  `json:"filieres"`
	Years       []string  `json:"years"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListForUser resolves the user's role and eligibility tags and returns the
// questionnaires they may still answer. Elevated roles see everything.
func (s *QuestionnaireService) ListForUser(userID string) ([]*QuestionnaireSummary, error) {
	if userID == "" {
		s.logs.Event("get_questionnaires_fail", "user_id missing", "")
		return nil, NewInvalidError("user_id required")
	}
	link, err := s.users.GetLinkedUser(userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if link == nil {
		s.logs.Event("get_questionnaires_fail", "user not found: "+userID, "")
		return nil, NewNotFoundError("user not found")
	}
	profile, err := s.users.FindProfileByPseudonym(link.Pseudonym)
	if err != nil {
		return nil, storeErr(err)
	}
	if profile == nil {
		s.logs.Event("get_questionnaires_fail", "profile not found for "+link.Pseudonym, "")
		return nil, NewNotFoundError("profile not found")
	}

	if profile.Role == RoleSuperAdmin {
		all, err := s.store.ListQuestionnaires()
		if err != nil {
			return nil, storeErr(err)
		}
		return summarize(all), nil
	}

	filieres := splitTags(profile.Studies)
	if profile.Year == "" {
		s.logs.Event("get_questionnaires_fail", "no year on profile", link.Pseudonym)
		return nil, NewInvalidError("no year found for user")
	}
	years := []string{profile.Year}

	eligible, err := s.store.ListEligibleQuestionnaires(filieres, years)
	if err != nil {
		return nil, storeErr(err)
	}
	answered, err := s.answeredSet(userID)
	if err != nil {
		return nil, err
	}
	out := make([]*QuestionnaireSummary, 0, len(eligible))
	for _, q := range eligible {
		if answered[q.ID] {
			continue
		}
		out = append(out, summary(q))
	}
	return out, nil
}

// QuestionnaireDetail pairs metadata with its questions ordered ascending.
type QuestionnaireDetail struct {
	Questionnaire
	Questions []*Question `json:"questions"`
}

func (s *QuestionnaireService) GetDetail(id string) (*QuestionnaireDetail, error) {
	q, err := s.store.GetQuestionnaire(id)
	if err != nil {
		return nil, storeErr(err)
	}
	if q == nil {
		return nil, NewNotFoundError("questionnaire not found")
	}
	questions, err := s.questions.ListQuestions(id)
	if err != nil {
		return nil, storeErr(err)
	}
	return &QuestionnaireDetail{Questionnaire: *q, Questions: questions}, nil
}

type AddQuestionInput struct {
	QuestionnaireID string        `json:"questionnaire_id" validate:"required"`
	Text            string        `json:"text" validate:"required"`
	Type            string        `json:"type" validate:"omitempty,oneof=multiple_choice open_ended"`
	Propositions    []Proposition `json:"propositions"`
	Order           int           `json:"order"`
	Points          int           `json:"points"`
}

// AddQuestion appends a single question to an existing questionnaire.
func (s *QuestionnaireService) AddQuestion(in *AddQuestionInput) (string, error) {
	if err := checkInput(in); err != nil {
		s.logs.Event("add_question_fail", "missing required fields", "")
		return "", err
	}
	q := buildQuestion(in.QuestionnaireID, QuestionInput{
		Text:         in.Text,
		Type:         in.Type,
		Propositions: in.Propositions,
		Order:        in.Order,
		Points:       in.Points,
	}, 1, s.newID(), s.now())
	if err := s.questions.InsertQuestion(q); err != nil {
		return "", storeErr(err)
	}
	s.logs.Event("add_question", "question added to questionnaire "+in.QuestionnaireID, "")
	return q.ID, nil
}

type AnswerInput struct {
	QuestionID            string `json:"question_id" validate:"required"`
	SelectedPropositionID string `json:"selected_proposition_id"`
	AnswerText            string `json:"answer_text"`
}

type SubmitResponseInput struct {
	QuestionnaireID string        `json:"questionnaire_id" validate:"required"`
	UserID          string        `json:"user_id" validate:"required"`
	Answers         []AnswerInput `json:"responses" validate:"required,min=1,dive"`
	DurationSeconds int           `json:"duration_seconds"`
	Feedback        string        `json:"feedback"`
}

// SubmitResponse scores and persists one response document. Answers whose
// question id does not resolve are silently dropped. A second submission for
// the same (user, questionnaire) pair is rejected with a conflict.
func (s *QuestionnaireService) SubmitResponse(in *SubmitResponseInput) (*QuestionnaireResponse, error) {
	if err := checkInput(in); err != nil {
		s.logs.Event("submit_response_fail", "missing required fields", "")
		return nil, err
	}
	q, err := s.store.GetQuestionnaire(in.QuestionnaireID)
	if err != nil {
		return nil, storeErr(err)
	}
	if q == nil || !q.IsActive {
		return nil, NewNotFoundError("questionnaire not found or inactive")
	}
	existing, err := s.store.GetResponse(in.UserID, in.QuestionnaireID)
	if err != nil {
		return nil, storeErr(err)
	}
	if existing != nil {
		return nil, NewConflictError("response already submitted for this questionnaire")
	}

	answers := make([]Answer, 0, len(in.Answers))
	for _, a := range in.Answers {
		question, err := s.questions.GetQuestion(a.QuestionID)
		if err != nil {
			return nil, storeErr(err)
		}
		if question == nil {
			continue
		}
		correct := false
		if question.Type == QuestionMultipleChoice && a.SelectedPropositionID != "" {
			for _, p := range question.Propositions {
				if p.ID == a.SelectedPropositionID {
					correct = p.IsCorrect
					break
				}
			}
		}
		answers = append(answers, Answer{
			QuestionID:            a.QuestionID,
			SelectedPropositionID: a.SelectedPropositionID,
			AnswerText:            a.AnswerText,
			IsCorrect:             correct,
		})
	}

	resp := &QuestionnaireResponse{
		ID:              s.newID(),
		QuestionnaireID: in.QuestionnaireID,
		UserID:          in.UserID,
		Answers:         answers,
		DurationSeconds: in.DurationSeconds,
		Feedback:        in.Feedback,
		CompletedAt:     s.now(),
	}
	if err := s.store.InsertResponse(resp); err != nil {
		if errors.Is(err, ErrDuplicateResponse) {
			return nil, NewConflictError("response already submitted for this questionnaire")
		}
		return nil, storeErr(err)
	}
	s.logs.Event("submit_response", "response submitted for questionnaire "+in.QuestionnaireID, in.UserID)
	return resp, nil
}

// GetUserResponse returns the stored response for one (user, questionnaire)
// pair.
func (s *QuestionnaireService) GetUserResponse(userID, questionnaireID string) (*QuestionnaireResponse, error) {
	resp, err := s.store.GetResponse(userID, questionnaireID)
	if err != nil {
		return nil, storeErr(err)
	}
	if resp == nil {
		return nil, NewNotFoundError("no response found")
	}
	return resp, nil
}

// AnsweredQuestionnaire pairs a questionnaire's public metadata with the
// user's completion timestamp.
type AnsweredQuestionnaire struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Filieres    []string  `json:"filieres"`
	Years       []string  `json:"years"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// ListAnswered joins the user's responses against the questionnaire store. A
// response referencing a since-deleted questionnaire is dropped with a logged
// warning, not an error.
func (s *QuestionnaireService) ListAnswered(userID string) ([]*AnsweredQuestionnaire, error) {
	if userID == "" {
		return nil, NewInvalidError("user_id required")
	}
	responses, err := s.store.ListResponsesByUser(userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if len(responses) == 0 {
		return []*AnsweredQuestionnaire{}, nil
	}
	ids := make([]string, 0, len(responses))
	for _, r := range responses {
		ids = append(ids, r.QuestionnaireID)
	}
	questionnaires, err := s.store.GetQuestionnairesByIDs(ids)
	if err != nil {
		return nil, storeErr(err)
	}
	byID := make(map[string]*Questionnaire, len(questionnaires))
	for _, q := range questionnaires {
		byID[q.ID] = q
	}
	out := make([]*AnsweredQuestionnaire, 0, len(responses))
	for _, r := range responses {
		q, ok := byID[r.QuestionnaireID]
		if !ok {
			s.logs.Event("get_answered_questionnaires_warning",
				fmt.Sprintf("questionnaire %s not found for user %s", r.QuestionnaireID, userID), "")
			continue
		}
		out = append(out, &AnsweredQuestionnaire{
			ID:          q.ID,
			Title:       q.Title,
			Description: q.Description,
			Category:    q.Category,
			Filieres:    q.Filieres,
			Years:       q.Years,
			CreatedAt:   q.CreatedAt,
			CompletedAt: r.CompletedAt,
		})
	}
	return out, nil
}

func (s *QuestionnaireService) answeredSet(userID string) (map[string]bool, error) {
	responses, err := s.store.ListResponsesByUser(userID)
	if err != nil {
		return nil, storeErr(err)
	}
	set := make(map[string]bool, len(responses))
	for _, r := range responses {
		set[r.QuestionnaireID] = true
	}
	return set, nil
}

func (s *QuestionnaireService) insertQuestions(questionnaireID string, questions []QuestionInput, now time.Time) error {
	for i, in := range questions {
		q := buildQuestion(questionnaireID, in, i+1, s.newID(), now)
		if err := s.questions.InsertQuestion(q); err != nil {
			return storeErr(err)
		}
	}
	return nil
}

func buildQuestion(questionnaireID string, in QuestionInput, position int, id string, now time.Time) *Question {
	typ := in.Type
	if typ == "" {
		typ = QuestionMultipleChoice
	}
	props := in.Propositions
	if typ == QuestionOpenEnded {
		props = nil
	}
	order := in.Order
	if order <= 0 {
		order = position
	}
	points := in.Points
	if points <= 0 {
		points = 1
	}
	return &Question{
		ID:              id,
		QuestionnaireID: questionnaireID,
		Text:            in.Text,
		Type:            typ,
		Propositions:    props,
		Order:           order,
		Points:          points,
		CreatedAt:       now,
	}
}

// stripTitleSuffix removes a trailing parenthetical, so "Quiz(2)" probes as
// "Quiz".
func stripTitleSuffix(title string) string {
	if i := strings.LastIndex(title, "("); i >= 0 && strings.HasSuffix(title, ")") {
		return strings.TrimSpace(title[:i])
	}
	return strings.TrimSpace(title)
}

func defaultCategory(c string) string {
	if c == "" {
		return "Other"
	}
	return c
}

// splitTags parses a comma-separated profile field into a tag list.
func splitTags(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func summarize(qs []*Questionnaire) []*QuestionnaireSummary {
	out := make([]*QuestionnaireSummary, 0, len(qs))
	for _, q := range qs {
		out = append(out, summary(q))
	}
	return out
}

func summary(q *Questionnaire) *QuestionnaireSummary {
	return &QuestionnaireSummary{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		Category:    q.Category,
		Filieres:    q.Filieres,
		Years:       q.Years,
		IsActive:    q.IsActive,
		CreatedAt:   q.CreatedAt,
	}
}

func shortID(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
