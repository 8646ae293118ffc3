package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/test0011220/activity-tracker-backend/internal/services"
)

// POST /questionnaires — {user_id}
func (rt *Router) handleQuestionnairesForUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid payload")
		return
	}
	out, err := rt.questionnaires.ListForUser(req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /answered_questionnaires — {user_id}
func (rt *Router) handleAnswered(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid payload")
		return
	}
	out, err := rt.questionnaires.ListAnswered(req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /create_questionnaire
func (rt *Router) handleCreateQuestionnaire(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req services.QuestionnaireInput
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid payload")
		return
	}
	id, err := rt.questionnaires.Create(&req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "questionnaire created", "id": id})
}

// PUT /update_questionnaire/{id}
func (rt *Router) handleUpdateQuestionnaire(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := pathParam(r, "/update_questionnaire/")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "questionnaire id required")
		return
	}
	var req services.QuestionnaireInput
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := rt.questionnaires.Update(id, &req); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "questionnaire updated")
}

// PUT /toggle_questionnaire_status/{id} — {is_active}
func (rt *Router) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := pathParam(r, "/toggle_questionnaire_status/")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "questionnaire id required")
		return
	}
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if err := decodeJSON(r, &req); err != nil || req.IsActive == nil {
		writeMessage(w, http.StatusBadRequest, "is_active required")
		return
	}
	if err := rt.questionnaires.ToggleStatus(id, *req.IsActive); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "questionnaire status updated")
}

// POST /duplicate_questionnaire/{id} — optional {title}
func (rt *Router) handleDuplicate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := pathParam(r, "/duplicate_questionnaire/")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "questionnaire id required")
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	// Body is optional for duplication.
	_ = decodeJSON(r, &req)
	newID, err := rt.questionnaires.Duplicate(id, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "questionnaire duplicated", "id": newID})
}

// DELETE /delete_questionnaire/{id}
func (rt *Router) handleDeleteQuestionnaire(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := pathParam(r, "/delete_questionnaire/")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "questionnaire id required")
		return
	}
	if err := rt.questionnaires.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "questionnaire deleted")
}

// GET /questionnaire/{id}
func (rt *Router) handleQuestionnaireDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := pathParam(r, "/questionnaire/")
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "questionnaire id required")
		return
	}
	detail, err := rt.questionnaires.GetDetail(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// POST /add_question
func (rt *Router) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req services.AddQuestionInput
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid payload")
		return
	}
	id, err := rt.questionnaires.AddQuestion(&req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "question added", "id": id})
}

// POST /submit_questionnaire_response
func (rt *Router) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req services.SubmitResponseInput
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid payload")
		return
	}
	resp, err := rt.questionnaires.SubmitResponse(&req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// GET /user_responses/{user}/{questionnaire}
func (rt *Router) handleUserResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := pathParam(r, "/user_responses/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeMessage(w, http.StatusBadRequest, "user id and questionnaire id required")
		return
	}
	resp, err := rt.questionnaires.GetUserResponse(parts[0], parts[1])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /upload_csv — multipart form with a "file" field, or a raw CSV body.
func (rt *Router) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var data []byte
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "file field required")
			return
		}
		defer file.Close()
		data, err = io.ReadAll(file)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "could not read file")
			return
		}
	} else {
		var err error
		data, err = io.ReadAll(r.Body)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "could not read body")
			return
		}
	}
	summary, err := rt.importer.Import(data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}
