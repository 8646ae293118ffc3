package main

import (
	"database/sql"
	"log"
	"net/http"

	_ "github.com/mattn/go-sqlite3"

	"github.com/test0011220/activity-tracker-backend/internal/api"
	"github.com/test0011220/activity-tracker-backend/internal/auth"
	"github.com/test0011220/activity-tracker-backend/internal/config"
	"github.com/test0011220/activity-tracker-backend/internal/db"
	"github.com/test0011220/activity-tracker-backend/internal/middleware"
	"github.com/test0011220/activity-tracker-backend/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	opDB, err := sql.Open("sqlite3", cfg.OperationalDB)
	if err != nil {
		log.Fatalf("open operational db: %v", err)
	}
	defer opDB.Close()
	store, err := db.New(opDB)
	if err != nil {
		log.Fatalf("init operational store: %v", err)
	}

	profDB, err := sql.Open("sqlite3", cfg.ProfileDB)
	if err != nil {
		log.Fatalf("open profile db: %v", err)
	}
	defer profDB.Close()
	profiles, err := db.NewProfileStore(profDB)
	if err != nil {
		log.Fatalf("init profile store: %v", err)
	}

	directory := &db.Directory{Store: store, ProfileStore: profiles}

	var verifier services.IdentityVerifier
	if cfg.GoogleClientID != "" {
		verifier = auth.NewGoogleVerifier(cfg.GoogleClientID)
	} else {
		log.Printf("TRACKER_GOOGLE_CLIENT_ID not set, federated login disabled")
	}

	logs := services.NewLogService(store)
	questionnaires := services.NewQuestionnaireService(store, store, directory, logs)
	activities := services.NewActivityService(store, store, directory, logs)
	users := services.NewUserService(profiles, store, store, verifier, middleware.SignToken, logs)
	modules := services.NewModuleService(store)
	importer := services.NewCSVImporter(questionnaires, logs)

	mux := http.NewServeMux()
	api.NewRouter(users, questionnaires, activities, modules, importer, logs).Register(mux)

	handler := middleware.CORS(middleware.SecureHeaders(middleware.NoStore(middleware.WithAuth(mux))))

	log.Printf("activity tracker listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
