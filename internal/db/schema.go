package db

import "database/sql"

// Operational-store schema. Kept in code rather than .sql files so a fresh
// database is usable without a migration step. Tag lists, propositions and
// answers are stored as JSON text, matching the document shapes the engines
// exchange.
var operationalSchema = []string{
	`CREATE TABLE IF NOT EXISTS questionnaires (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		activity_id TEXT,
		filieres TEXT NOT NULL,
		years TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at_unix INTEGER NOT NULL,
		updated_at_unix INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_questionnaires_title ON questionnaires(title);`,
	`CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		questionnaire_id TEXT NOT NULL,
		text TEXT NOT NULL,
		type TEXT NOT NULL,
		propositions TEXT NOT NULL,
		ord INTEGER NOT NULL,
		points INTEGER NOT NULL DEFAULT 1,
		created_at_unix INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_questions_questionnaire ON questions(questionnaire_id);`,
	`CREATE TABLE IF NOT EXISTS responses (
		id TEXT PRIMARY KEY,
		questionnaire_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		answers TEXT NOT NULL,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		feedback TEXT NOT NULL DEFAULT '',
		completed_at_unix INTEGER NOT NULL
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_responses_user_questionnaire
		ON responses(user_id, questionnaire_id);`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		pseudonym TEXT NOT NULL UNIQUE
	);`,
	`CREATE TABLE IF NOT EXISTS diaries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		open INTEGER NOT NULL DEFAULT 1,
		creation_date_unix INTEGER NOT NULL,
		duration_time INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE INDEX IF NOT EXISTS idx_diaries_user ON diaries(user_id);`,
	`CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		diary_id TEXT NOT NULL,
		activity TEXT NOT NULL,
		start_time_unix INTEGER NOT NULL,
		end_time_unix INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		category_id TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_activities_user ON activities(user_id);`,
	`CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);`,
	`CREATE TABLE IF NOT EXISTS modules (
		name TEXT NOT NULL,
		year TEXT NOT NULL,
		studies TEXT NOT NULL,
		semester TEXT NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS logs (
		id TEXT PRIMARY KEY,
		ts_unix INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		message TEXT NOT NULL,
		user TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS password_resets (
		username TEXT NOT NULL,
		requested_at_unix INTEGER NOT NULL,
		status TEXT NOT NULL
	);`,
}

var profileSchema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		key TEXT PRIMARY KEY,
		doc TEXT NOT NULL
	);`,
}

func applySchema(db *sql.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
