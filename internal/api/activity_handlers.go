package api

import (
	"net/http"

	"github.com/test0011220/activity-tracker-backend/internal/services"
)

// POST /log_activity
func (rt *Router) handleLogActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req services.LogActivityInput
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid payload")
		return
	}
	activity, err := rt.activities.LogActivity(&req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activity)
}

// GET /activities/{user}
func (rt *Router) handleActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := pathParam(r, "/activities/")
	if userID == "" {
		writeMessage(w, http.StatusBadRequest, "user id required")
		return
	}
	out, err := rt.activities.ActivitiesForUser(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /diaries/{user}
func (rt *Router) handleDiaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := pathParam(r, "/diaries/")
	if userID == "" {
		writeMessage(w, http.StatusBadRequest, "user id required")
		return
	}
	out, err := rt.activities.ListDiaries(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /modules — {year, studies, semester}
func (rt *Router) handleModules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req services.ModulesInput
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid payload")
		return
	}
	modules, err := rt.modules.List(&req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modules)
}
