package services

import (
	"fmt"
	"time"
)

// memStore is an in-memory double for every store interface the engines
// consume, mirroring the semantics of the sqlite-backed store.
type memStore struct {
	questionnaires map[string]*Questionnaire
	qOrder         []string
	questions      map[string]*Question
	responses      []*QuestionnaireResponse
	links          map[string]*LinkedUser
	profiles       map[string]*Profile
	diaries        []*Diary
	activities     []*Activity
	categories     map[string]string
	modules        []memModule
	events         []*EventLog
	resets         []*PasswordResetRequest
	nextLinkID     int
}

type memModule struct {
	name, year, studies, semester string
}

func newMemStore() *memStore {
	return &memStore{
		questionnaires: map[string]*Questionnaire{},
		questions:      map[string]*Question{},
		links:          map[string]*LinkedUser{},
		profiles:       map[string]*Profile{},
		categories:     map[string]string{},
	}
}

// --- QuestionnaireStore ---

func (m *memStore) InsertQuestionnaire(q *Questionnaire) error {
	cp := *q
	m.questionnaires[q.ID] = &cp
	m.qOrder = append(m.qOrder, q.ID)
	return nil
}

func (m *memStore) UpdateQuestionnaireMeta(q *Questionnaire) (bool, error) {
	cur, ok := m.questionnaires[q.ID]
	if !ok {
		return false, nil
	}
	cur.Title = q.Title
	cur.Description = q.Description
	cur.Category = q.Category
	cur.ActivityID = q.ActivityID
	cur.Filieres = q.Filieres
	cur.Years = q.Years
	cur.UpdatedAt = q.UpdatedAt
	return true, nil
}

func (m *memStore) SetQuestionnaireStatus(id string, active bool, updatedAt time.Time) (bool, error) {
	q, ok := m.questionnaires[id]
	if !ok {
		return false, nil
	}
	q.IsActive = active
	q.UpdatedAt = updatedAt
	return true, nil
}

func (m *memStore) GetQuestionnaire(id string) (*Questionnaire, error) {
	if q, ok := m.questionnaires[id]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetQuestionnaireByTitle(title string) (*Questionnaire, error) {
	for _, id := range m.qOrder {
		if q, ok := m.questionnaires[id]; ok && q.Title == title {
			cp := *q
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListQuestionnaires() ([]*Questionnaire, error) {
	out := make([]*Questionnaire, 0, len(m.qOrder))
	for _, id := range m.qOrder {
		if q, ok := m.questionnaires[id]; ok {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) ListEligibleQuestionnaires(filieres, years []string) ([]*Questionnaire, error) {
	all, _ := m.ListQuestionnaires()
	out := make([]*Questionnaire, 0, len(all))
	for _, q := range all {
		if !q.IsActive {
			continue
		}
		if tagsIntersect(q.Filieres, filieres) || tagsIntersect(q.Years, years) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *memStore) DeleteQuestionnaire(id string) (bool, error) {
	if _, ok := m.questionnaires[id]; !ok {
		return false, nil
	}
	delete(m.questionnaires, id)
	for qid, q := range m.questions {
		if q.QuestionnaireID == id {
			delete(m.questions, qid)
		}
	}
	kept := m.responses[:0]
	for _, r := range m.responses {
		if r.QuestionnaireID != id {
			kept = append(kept, r)
		}
	}
	m.responses = kept
	return true, nil
}

func (m *memStore) GetQuestionnairesByIDs(ids []string) ([]*Questionnaire, error) {
	seen := map[string]bool{}
	var out []*Questionnaire
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if q, ok := m.questionnaires[id]; ok {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) InsertResponse(r *QuestionnaireResponse) error {
	for _, existing := range m.responses {
		if existing.UserID == r.UserID && existing.QuestionnaireID == r.QuestionnaireID {
			return ErrDuplicateResponse
		}
	}
	cp := *r
	m.responses = append(m.responses, &cp)
	return nil
}

func (m *memStore) GetResponse(userID, questionnaireID string) (*QuestionnaireResponse, error) {
	for _, r := range m.responses {
		if r.UserID == userID && r.QuestionnaireID == questionnaireID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListResponsesByUser(userID string) ([]*QuestionnaireResponse, error) {
	var out []*QuestionnaireResponse
	for _, r := range m.responses {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- QuestionStore ---

func (m *memStore) InsertQuestion(q *Question) error {
	cp := *q
	m.questions[q.ID] = &cp
	return nil
}

func (m *memStore) GetQuestion(id string) (*Question, error) {
	if q, ok := m.questions[id]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) ListQuestions(questionnaireID string) ([]*Question, error) {
	var out []*Question
	for _, q := range m.questions {
		if q.QuestionnaireID == questionnaireID {
			cp := *q
			out = append(out, &cp)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Order < out[i].Order {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (m *memStore) DeleteQuestionsByQuestionnaire(questionnaireID string) error {
	for id, q := range m.questions {
		if q.QuestionnaireID == questionnaireID {
			delete(m.questions, id)
		}
	}
	return nil
}

// --- identity link ---

func (m *memStore) GetLinkedUser(id string) (*LinkedUser, error) {
	for _, l := range m.links {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindLinkedUserByPseudonym(pseudonym string) (*LinkedUser, error) {
	if l, ok := m.links[pseudonym]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) EnsureLinkedUser(pseudonym string) (string, error) {
	if l, ok := m.links[pseudonym]; ok {
		return l.ID, nil
	}
	m.nextLinkID++
	id := fmt.Sprintf("u%d", m.nextLinkID)
	m.links[pseudonym] = &LinkedUser{ID: id, Pseudonym: pseudonym}
	return id, nil
}

func (m *memStore) RenameLinkedUser(oldPseudonym, newPseudonym string) error {
	if l, ok := m.links[oldPseudonym]; ok {
		delete(m.links, oldPseudonym)
		l.Pseudonym = newPseudonym
		m.links[newPseudonym] = l
	}
	return nil
}

func (m *memStore) DeleteLinkedUser(pseudonym string) error {
	delete(m.links, pseudonym)
	return nil
}

// --- ProfileStore ---

func (m *memStore) GetProfile(key string) (*Profile, error) {
	if p, ok := m.profiles[key]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) FindProfileByPseudonym(pseudonym string) (*Profile, error) {
	for _, p := range m.profiles {
		if p.Pseudonym == pseudonym {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertProfile(p *Profile) error {
	if _, ok := m.profiles[p.Key]; ok {
		return ErrProfileExists
	}
	cp := *p
	m.profiles[p.Key] = &cp
	return nil
}

func (m *memStore) UpdateProfileInfo(key string, upd ProfileInfoUpdate) error {
	p, ok := m.profiles[key]
	if !ok {
		return nil
	}
	if upd.Pseudonym != "" {
		p.Pseudonym = upd.Pseudonym
	}
	if upd.Password != "" {
		p.Password = upd.Password
	}
	if upd.Year != "" {
		p.Year = upd.Year
	}
	if upd.Studies != "" {
		p.Studies = upd.Studies
	}
	if upd.Semester != "" {
		p.Semester = upd.Semester
	}
	if upd.Gender != "" {
		p.Gender = upd.Gender
	}
	return nil
}

func (m *memStore) SetProfilePassword(key, hash string) error {
	if p, ok := m.profiles[key]; ok {
		p.Password = hash
	}
	return nil
}

func (m *memStore) DeleteProfile(key string) (bool, error) {
	if _, ok := m.profiles[key]; !ok {
		return false, nil
	}
	delete(m.profiles, key)
	return true, nil
}

func (m *memStore) ListProfiles() ([]*Profile, error) {
	var out []*Profile
	for _, p := range m.profiles {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) ListProfilesByRole(role string) ([]*Profile, error) {
	var out []*Profile
	for _, p := range m.profiles {
		if p.Role == role {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- ActivityLedger ---

func (m *memStore) FindOpenDiary(userID string) (*Diary, error) {
	for _, d := range m.diaries {
		if d.UserID == userID && d.Open {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) InsertDiary(d *Diary) error {
	cp := *d
	m.diaries = append(m.diaries, &cp)
	return nil
}

func (m *memStore) ListDiaries(userID string) ([]*Diary, error) {
	var out []*Diary
	for _, d := range m.diaries {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memStore) InsertActivity(a *Activity) error {
	cp := *a
	m.activities = append(m.activities, &cp)
	return nil
}

func (m *memStore) ListActivities(userID string) ([]*Activity, error) {
	var out []*Activity
	for _, a := range m.activities {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- CategoryDirectory ---

func (m *memStore) CategoryMap() (map[string]string, error) {
	out := map[string]string{}
	for name, id := range m.categories {
		out[name] = id
	}
	return out, nil
}

// --- ModuleStore ---

func (m *memStore) ListModules(year, studies, semester string) ([]*Module, error) {
	out := []*Module{}
	for _, row := range m.modules {
		if row.year == year && row.studies == studies && row.semester == semester {
			out = append(out, &Module{Name: row.name})
		}
	}
	return out, nil
}

// --- EventStore ---

func (m *memStore) AppendEvent(e *EventLog) error {
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *memStore) ListEvents() ([]*EventLog, error) {
	out := make([]*EventLog, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0; i-- {
		cp := *m.events[i]
		out = append(out, &cp)
	}
	return out, nil
}

// --- password resets ---

func (m *memStore) AppendPasswordReset(r *PasswordResetRequest) error {
	cp := *r
	m.resets = append(m.resets, &cp)
	return nil
}

func tagsIntersect(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// seqIDs returns a deterministic id generator: q1, q2, q3...
func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
