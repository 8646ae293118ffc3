package services

import (
	"testing"
	"time"
)

func newQuestionnaireService(store *memStore) *QuestionnaireService {
	s := NewQuestionnaireService(store, store, store, nil)
	s.now = fixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	s.newID = seqIDs("q")
	return s
}

func sampleInput(title string) *QuestionnaireInput {
	return &QuestionnaireInput{
		Title:    title,
		Category: "Anatomy",
		Filieres: []string{"Medecine"},
		Years:    []string{"2"},
		Questions: []QuestionInput{
			{
				Text: "Which bone is the longest?",
				Type: QuestionMultipleChoice,
				Propositions: []Proposition{
					{ID: "p1", Text: "Femur", IsCorrect: true},
					{ID: "p2", Text: "Tibia"},
				},
			},
			{Text: "Describe the knee joint.", Type: QuestionOpenEnded},
		},
	}
}

func TestCreateAndGetDetail(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	id, err := svc.Create(sampleInput("Bones"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	detail, err := svc.GetDetail(id)
	if err != nil {
		t.Fatalf("GetDetail: %v", err)
	}
	if !detail.IsActive {
		t.Fatalf("new questionnaire should be active")
	}
	if detail.Category != "Anatomy" {
		t.Fatalf("category = %q", detail.Category)
	}
	if len(detail.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(detail.Questions))
	}
	if detail.Questions[0].Order != 1 || detail.Questions[1].Order != 2 {
		t.Fatalf("question order not positional: %d, %d", detail.Questions[0].Order, detail.Questions[1].Order)
	}
	if detail.Questions[0].Points != 1 {
		t.Fatalf("default points = %d, want 1", detail.Questions[0].Points)
	}
	if detail.Questions[1].Propositions != nil {
		t.Fatalf("open-ended question kept propositions")
	}
}

func TestCreateDefaultsCategory(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	in := sampleInput("Uncategorized")
	in.Category = ""
	id, err := svc.Create(in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	q, _ := store.GetQuestionnaire(id)
	if q.Category != "Other" {
		t.Fatalf("category = %q, want Other", q.Category)
	}
}

func TestCreateRequiresTags(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	in := sampleInput("Bones")
	in.Filieres = nil
	_, err := svc.Create(in)
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorInvalid {
		t.Fatalf("err = %v, want invalid", err)
	}
}

func TestUpdateReplacesQuestions(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	id, _ := svc.Create(sampleInput("Bones"))
	upd := sampleInput("Bones v2")
	upd.Questions = []QuestionInput{{Text: "Only question now"}}
	if err := svc.Update(id, upd); err != nil {
		t.Fatalf("Update: %v", err)
	}
	detail, _ := svc.GetDetail(id)
	if detail.Title != "Bones v2" {
		t.Fatalf("title = %q", detail.Title)
	}
	if len(detail.Questions) != 1 || detail.Questions[0].Text != "Only question now" {
		t.Fatalf("questions not replaced: %+v", detail.Questions)
	}
	if detail.Questions[0].Type != QuestionMultipleChoice {
		t.Fatalf("default type = %q", detail.Questions[0].Type)
	}
}

func TestUpdateUnknownQuestionnaire(t *testing.T) {
	svc := newQuestionnaireService(newMemStore())
	err := svc.Update("missing", sampleInput("X"))
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestToggleStatus(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	id, _ := svc.Create(sampleInput("Bones"))
	if err := svc.ToggleStatus(id, false); err != nil {
		t.Fatalf("ToggleStatus: %v", err)
	}
	q, _ := store.GetQuestionnaire(id)
	if q.IsActive {
		t.Fatalf("questionnaire still active")
	}

	err := svc.ToggleStatus("missing", true)
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestDuplicateProbesTitles(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	id, _ := svc.Create(sampleInput("Quiz"))
	d1, err := svc.Duplicate(id, "")
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	d2, err := svc.Duplicate(id, "")
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	q1, _ := store.GetQuestionnaire(d1)
	q2, _ := store.GetQuestionnaire(d2)
	if q1.Title != "Quiz(1)" || q2.Title != "Quiz(2)" {
		t.Fatalf("titles = %q, %q", q1.Title, q2.Title)
	}

	// Duplicating a duplicate strips the suffix before probing.
	d3, err := svc.Duplicate(d1, "")
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	q3, _ := store.GetQuestionnaire(d3)
	if q3.Title != "Quiz(3)" {
		t.Fatalf("title = %q, want Quiz(3)", q3.Title)
	}

	questions, _ := store.ListQuestions(d1)
	if len(questions) != 2 {
		t.Fatalf("duplicate carried %d questions, want 2", len(questions))
	}
	for _, q := range questions {
		if q.QuestionnaireID != d1 {
			t.Fatalf("copied question still points at %s", q.QuestionnaireID)
		}
	}
}

func TestDuplicateTitleHint(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	id, _ := svc.Create(sampleInput("Quiz"))
	dup, err := svc.Duplicate(id, "Midterm")
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	q, _ := store.GetQuestionnaire(dup)
	if q.Title != "Midterm(1)" {
		t.Fatalf("title = %q, want Midterm(1)", q.Title)
	}
}

func TestDuplicateProbeCap(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)
	svc.maxProbes = 2

	id, _ := svc.Create(sampleInput("Quiz"))
	if _, err := svc.Duplicate(id, ""); err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if _, err := svc.Duplicate(id, ""); err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	_, err := svc.Duplicate(id, "")
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestDuplicateUnknown(t *testing.T) {
	svc := newQuestionnaireService(newMemStore())
	_, err := svc.Duplicate("missing", "")
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	id, _ := svc.Create(sampleInput("Bones"))
	detail, _ := svc.GetDetail(id)
	userID, _ := store.EnsureLinkedUser("alice")
	_, err := svc.SubmitResponse(&SubmitResponseInput{
		QuestionnaireID: id,
		UserID:          userID,
		Answers:         []AnswerInput{{QuestionID: detail.Questions[0].ID, SelectedPropositionID: "p1"}},
	})
	if err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}

	if err := svc.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.questions) != 0 {
		t.Fatalf("questions not cascaded: %d left", len(store.questions))
	}
	if len(store.responses) != 0 {
		t.Fatalf("responses not cascaded: %d left", len(store.responses))
	}

	err = svc.Delete(id)
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("second delete err = %v, want not_found", err)
	}
}

func TestSubmitResponseScoring(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	id, _ := svc.Create(sampleInput("Bones"))
	detail, _ := svc.GetDetail(id)
	mc := detail.Questions[0]
	open := detail.Questions[1]

	resp, err := svc.SubmitResponse(&SubmitResponseInput{
		QuestionnaireID: id,
		UserID:          "u1",
		Answers: []AnswerInput{
			{QuestionID: mc.ID, SelectedPropositionID: "p1"},
			{QuestionID: open.ID, AnswerText: "hinge joint"},
			{QuestionID: "ghost", SelectedPropositionID: "p1"},
		},
		DurationSeconds: 90,
	})
	if err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}
	if len(resp.Answers) != 2 {
		t.Fatalf("answers = %d, want 2 (unresolvable question dropped)", len(resp.Answers))
	}
	if !resp.Answers[0].IsCorrect {
		t.Fatalf("correct proposition not scored correct")
	}
	if resp.Answers[1].IsCorrect {
		t.Fatalf("open-ended answer scored correct")
	}
}

func TestSubmitResponseWrongProposition(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	id, _ := svc.Create(sampleInput("Bones"))
	detail, _ := svc.GetDetail(id)
	resp, err := svc.SubmitResponse(&SubmitResponseInput{
		QuestionnaireID: id,
		UserID:          "u1",
		Answers:         []AnswerInput{{QuestionID: detail.Questions[0].ID, SelectedPropositionID: "p2"}},
	})
	if err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}
	if resp.Answers[0].IsCorrect {
		t.Fatalf("wrong proposition scored correct")
	}
}

func TestSubmitResponseInactive(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	id, _ := svc.Create(sampleInput("Bones"))
	detail, _ := svc.GetDetail(id)
	_ = svc.ToggleStatus(id, false)

	_, err := svc.SubmitResponse(&SubmitResponseInput{
		QuestionnaireID: id,
		UserID:          "u1",
		Answers:         []AnswerInput{{QuestionID: detail.Questions[0].ID}},
	})
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestSubmitResponseDuplicate(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	id, _ := svc.Create(sampleInput("Bones"))
	detail, _ := svc.GetDetail(id)
	in := &SubmitResponseInput{
		QuestionnaireID: id,
		UserID:          "u1",
		Answers:         []AnswerInput{{QuestionID: detail.Questions[0].ID, SelectedPropositionID: "p1"}},
	}
	if _, err := svc.SubmitResponse(in); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := svc.SubmitResponse(in)
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorConflict {
		t.Fatalf("second submit err = %v, want conflict", err)
	}
}

func TestListForUserEligibility(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	userID, _ := store.EnsureLinkedUser("alice")
	store.profiles["alice"] = &Profile{
		Key: "alice", Pseudonym: "alice", Role: RoleStudent,
		Studies: "Medecine, Pharmacie", Year: "2",
	}

	matchFiliere := sampleInput("Filiere match")
	matchFiliere.Years = []string{"5"}
	idFiliere, _ := svc.Create(matchFiliere)

	matchYear := sampleInput("Year match")
	matchYear.Filieres = []string{"Dentaire"}
	idYear, _ := svc.Create(matchYear)

	noMatch := sampleInput("No match")
	noMatch.Filieres = []string{"Dentaire"}
	noMatch.Years = []string{"5"}
	_, _ = svc.Create(noMatch)

	inactive := sampleInput("Inactive")
	idInactive, _ := svc.Create(inactive)
	_ = svc.ToggleStatus(idInactive, false)

	answered := sampleInput("Answered")
	idAnswered, _ := svc.Create(answered)
	detail, _ := svc.GetDetail(idAnswered)
	if _, err := svc.SubmitResponse(&SubmitResponseInput{
		QuestionnaireID: idAnswered,
		UserID:          userID,
		Answers:         []AnswerInput{{QuestionID: detail.Questions[0].ID, SelectedPropositionID: "p1"}},
	}); err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}

	out, err := svc.ListForUser(userID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	got := map[string]bool{}
	for _, q := range out {
		got[q.ID] = true
	}
	if len(out) != 2 || !got[idFiliere] || !got[idYear] {
		t.Fatalf("eligible set wrong: %v", got)
	}
}

func TestListForUserSuperAdmin(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	adminID, _ := store.EnsureLinkedUser("admin")
	store.profiles["admin"] = &Profile{Key: "admin", Pseudonym: "admin", Role: RoleSuperAdmin}

	_, _ = svc.Create(sampleInput("One"))
	id2, _ := svc.Create(sampleInput("Two"))
	_ = svc.ToggleStatus(id2, false)

	out, err := svc.ListForUser(adminID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("super admin sees %d, want 2", len(out))
	}
}

func TestListForUserMissingYear(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	userID, _ := store.EnsureLinkedUser("bob")
	store.profiles["bob"] = &Profile{Key: "bob", Pseudonym: "bob", Role: RoleStudent, Studies: "Medecine"}

	_, err := svc.ListForUser(userID)
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorInvalid {
		t.Fatalf("err = %v, want invalid", err)
	}
}

func TestListForUserUnknownUser(t *testing.T) {
	svc := newQuestionnaireService(newMemStore())
	_, err := svc.ListForUser("ghost")
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("err = %v, want not_found", err)
	}
}

func TestListAnsweredDropsDeleted(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	id1, _ := svc.Create(sampleInput("Kept"))
	id2, _ := svc.Create(sampleInput("Doomed"))
	for _, id := range []string{id1, id2} {
		detail, _ := svc.GetDetail(id)
		if _, err := svc.SubmitResponse(&SubmitResponseInput{
			QuestionnaireID: id,
			UserID:          "u1",
			Answers:         []AnswerInput{{QuestionID: detail.Questions[0].ID, SelectedPropositionID: "p1"}},
		}); err != nil {
			t.Fatalf("SubmitResponse: %v", err)
		}
	}
	// Remove the questionnaire but keep its response behind.
	delete(store.questionnaires, id2)

	out, err := svc.ListAnswered("u1")
	if err != nil {
		t.Fatalf("ListAnswered: %v", err)
	}
	if len(out) != 1 || out[0].ID != id1 {
		t.Fatalf("answered = %+v, want only %s", out, id1)
	}
	if out[0].CompletedAt.IsZero() {
		t.Fatalf("completed_at not set")
	}
}

func TestGetUserResponse(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	_, err := svc.GetUserResponse("u1", "missing")
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorNotFound {
		t.Fatalf("err = %v, want not_found", err)
	}

	id, _ := svc.Create(sampleInput("Bones"))
	detail, _ := svc.GetDetail(id)
	if _, err := svc.SubmitResponse(&SubmitResponseInput{
		QuestionnaireID: id,
		UserID:          "u1",
		Answers:         []AnswerInput{{QuestionID: detail.Questions[0].ID, SelectedPropositionID: "p1"}},
	}); err != nil {
		t.Fatalf("SubmitResponse: %v", err)
	}
	resp, err := svc.GetUserResponse("u1", id)
	if err != nil {
		t.Fatalf("GetUserResponse: %v", err)
	}
	if resp.QuestionnaireID != id || resp.UserID != "u1" {
		t.Fatalf("wrong response returned: %+v", resp)
	}
}

func TestAddQuestionDefaults(t *testing.T) {
	store := newMemStore()
	svc := newQuestionnaireService(store)

	id, _ := svc.Create(sampleInput("Bones"))
	qid, err := svc.AddQuestion(&AddQuestionInput{
		QuestionnaireID: id,
		Text:            "Extra question",
	})
	if err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	q, _ := store.GetQuestion(qid)
	if q.Type != QuestionMultipleChoice || q.Points != 1 || q.Order != 1 {
		t.Fatalf("defaults not applied: %+v", q)
	}
}

func TestStripTitleSuffix(t *testing.T) {
	cases := map[string]string{
		"Quiz":       "Quiz",
		"Quiz(1)":    "Quiz",
		"Quiz (2)":   "Quiz",
		"Quiz(1)(2)": "Quiz(1)",
	}
	for in, want := range cases {
		if got := stripTitleSuffix(in); got != want {
			t.Errorf("stripTitleSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}
