package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CSVImporter translates tabular rows into the same create-questionnaire
// calls the engine exposes; it is a repeated caller of the public surface,
// not a separate write path.
type CSVImporter struct {
	questionnaires *QuestionnaireService
	logs           *LogService
}

func NewCSVImporter(questionnaires *QuestionnaireService, logs *LogService) *CSVImporter {
	return &CSVImporter{questionnaires: questionnaires, logs: logs}
}

type ImportSummary struct {
	Questionnaires int `json:"questionnaires"`
	Questions      int `json:"questions"`
}

// Import parses rows of the form
// questionnaire_title,description,category,filieres,years,activity_id,
// question_text,question_type,propositions,question_order and groups them by
// title. Rows with malformed propositions or order are skipped with a logged
// warning; groups missing filieres, years or questions are dropped the same
// way.
func (imp *CSVImporter) Import(data []byte) (*ImportSummary, error) {
	// Strip optional UTF-8 BOM
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	r := csv.NewReader(strings.NewReader(string(data)))
	rows, err := r.ReadAll()
	if err != nil {
		return nil, NewInvalidError("invalid csv: " + err.Error())
	}
	if len(rows) < 2 {
		return nil, NewInvalidError("empty csv")
	}
	header := rows[0]
	idx := func(name string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}

	iTitle := idx("questionnaire_title")
	iDesc := idx("description")
	iCategory := idx("category")
	iFilieres := idx("filieres")
	iYears := idx("years")
	iActivity := idx("activity_id")
	iQText := idx("question_text")
	iQType := idx("question_type")
	iProps := idx("propositions")
	iQOrder := idx("question_order")

	order := []string{}
	groups := map[string]*QuestionnaireInput{}

	for rowIdx, row := range rows[1:] {
		get := func(i int) string {
			if i >= 0 && i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}
		title := get(iTitle)
		if title == "" {
			imp.logs.Event("upload_csv_warning", fmt.Sprintf("row %d: missing questionnaire_title, skipping", rowIdx+1), "")
			continue
		}
		in, ok := groups[title]
		if !ok {
			in = &QuestionnaireInput{
				Title:       title,
				Description: get(iDesc),
				Category:    defaultCategory(get(iCategory)),
				ActivityID:  get(iActivity),
				Filieres:    splitTags(get(iFilieres)),
				Years:       splitTags(get(iYears)),
			}
			groups[title] = in
			order = append(order, title)
		}

		qType := get(iQType)
		if qType == "" {
			qType = QuestionOpenEnded
		}
		var props []Proposition
		if qType != QuestionOpenEnded {
			if raw := get(iProps); raw != "" {
				parsed, err := parsePropositions(raw)
				if err != nil {
					imp.logs.Event("upload_csv_error", fmt.Sprintf("row %d: invalid propositions: %v", rowIdx+1, err), "")
					continue
				}
				props = parsed
			}
		}
		qOrder := len(in.Questions) + 1
		if raw := get(iQOrder); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				imp.logs.Event("upload_csv_error", fmt.Sprintf("row %d: invalid question_order %q", rowIdx+1, raw), "")
				continue
			}
			qOrder = n
		}
		in.Questions = append(in.Questions, QuestionInput{
			Text:         get(iQText),
			Type:         qType,
			Propositions: props,
			Order:        qOrder,
		})
	}

	summary := &ImportSummary{}
	for _, title := range order {
		in := groups[title]
		if len(in.Filieres) == 0 || len(in.Years) == 0 || len(in.Questions) == 0 {
			imp.logs.Event("upload_csv_error", "invalid questionnaire data for title: "+title, "")
			continue
		}
		if _, err := imp.questionnaires.Create(in); err != nil {
			return summary, err
		}
		summary.Questionnaires++
		summary.Questions += len(in.Questions)
	}
	imp.logs.Event("upload_csv", fmt.Sprintf("%d questionnaires and %d questions imported", summary.Questionnaires, summary.Questions), "")
	return summary, nil
}

// parsePropositions accepts a JSON array cell, tolerating single-quoted
// exports by normalizing quotes before decoding.
func parsePropositions(raw string) ([]Proposition, error) {
	normalized := strings.ReplaceAll(raw, "'", `"`)
	var props []Proposition
	if err := json.Unmarshal([]byte(normalized), &props); err != nil {
		return nil, err
	}
	return props, nil
}
