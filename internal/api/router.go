package api

import (
	"net/http"
	"strings"

	"github.com/test0011220/activity-tracker-backend/internal/middleware"
	"github.com/test0011220/activity-tracker-backend/internal/services"
)

// Router wires the engines to their HTTP routes. Handlers are thin glue:
// decode the payload, call the engine, map the error class to a status.
type Router struct {
	users          *services.UserService
	questionnaires *services.QuestionnaireService
	activities     *services.ActivityService
	modules        *services.ModuleService
	importer       *services.CSVImporter
	logs           *services.LogService
}

func NewRouter(
	users *services.UserService,
	questionnaires *services.QuestionnaireService,
	activities *services.ActivityService,
	modules *services.ModuleService,
	importer *services.CSVImporter,
	logs *services.LogService,
) *Router {
	return &Router{
		users:          users,
		questionnaires: questionnaires,
		activities:     activities,
		modules:        modules,
		importer:       importer,
		logs:           logs,
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/login", rt.handleLogin)                                  // POST
	mux.HandleFunc("/google-login", rt.handleGoogleLogin)                     // POST
	mux.HandleFunc("/add_user", rt.handleAddUser)                             // POST
	mux.HandleFunc("/update_user_info", rt.handleUpdateUserInfo)              // POST
	mux.HandleFunc("/change_password", rt.handleChangePassword)               // POST
	mux.HandleFunc("/forgot_password", rt.handleForgotPassword)               // POST
	mux.HandleFunc("/log_activity", rt.handleLogActivity)                     // POST
	mux.HandleFunc("/modules", rt.handleModules)                              // POST
	mux.HandleFunc("/questionnaires", rt.handleQuestionnairesForUser)         // POST
	mux.HandleFunc("/answered_questionnaires", rt.handleAnswered)             // POST
	mux.HandleFunc("/create_questionnaire", rt.handleCreateQuestionnaire)     // POST
	mux.HandleFunc("/add_question", rt.handleAddQuestion)                     // POST
	mux.HandleFunc("/submit_questionnaire_response", rt.handleSubmitResponse) // POST
	mux.HandleFunc("/upload_csv", rt.handleUploadCSV)                         // POST multipart
	mux.HandleFunc("/update_questionnaire/", rt.handleUpdateQuestionnaire)    // PUT /{id}
	mux.HandleFunc("/toggle_questionnaire_status/", rt.handleToggleStatus)    // PUT /{id}
	mux.HandleFunc("/duplicate_questionnaire/", rt.handleDuplicate)           // POST /{id}
	mux.HandleFunc("/delete_questionnaire/", rt.handleDeleteQuestionnaire)    // DELETE /{id}
	mux.HandleFunc("/questionnaire/", rt.handleQuestionnaireDetail)           // GET /{id}
	mux.HandleFunc("/user_responses/", rt.handleUserResponse)                 // GET /{user}/{questionnaire}
	mux.HandleFunc("/activities/", rt.handleActivities)                       // GET /{user}
	mux.HandleFunc("/diaries/", rt.handleDiaries)                             // GET /{user}
	mux.HandleFunc("/health", rt.handleHealth)                                // GET

	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireRole(services.RoleSuperAdmin, h)
	}
	mux.Handle("/users", admin(rt.handleUsers))                                // GET
	mux.Handle("/admin/students_activities", admin(rt.handleStudentsActivities)) // GET
	mux.Handle("/logs", admin(rt.handleLogs))                                  // GET
	mux.Handle("/delete_user/", admin(rt.handleDeleteUser))                    // DELETE /{username}
}

// GET /health
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathParam extracts the remainder of the URL after prefix, e.g. the {id} in
// /questionnaire/{id}.
func pathParam(r *http.Request, prefix string) string {
	return strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
}
