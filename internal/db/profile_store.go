package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/test0011220/activity-tracker-backend/internal/services"
)

// ProfileStore is the document-oriented profile store, keyed by pseudonym for
// manual accounts and by email for federated ones. Each record is a single
// JSON document; field queries go through json_extract.
type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) (*ProfileStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("apply sqlite pragma: %w", err)
	}
	if err := applySchema(db, profileSchema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &ProfileStore{db: db}, nil
}

func (s *ProfileStore) GetProfile(key string) (*services.Profile, error) {
	row := s.db.QueryRow(`SELECT key, doc FROM profiles WHERE key = ?`, key)
	return scanProfile(row)
}

func (s *ProfileStore) FindProfileByPseudonym(pseudonym string) (*services.Profile, error) {
	row := s.db.QueryRow(`SELECT key, doc FROM profiles
		WHERE json_extract(doc, '$.pseudonym') = ? LIMIT 1`, pseudonym)
	return scanProfile(row)
}

// InsertProfile performs the existence check and insert as one transaction,
// so exactly one of several concurrent registrations for the same key
// succeeds. The primary key backs this up should two transactions interleave.
func (s *ProfileStore) InsertProfile(p *services.Profile) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRow(`SELECT COUNT(1) FROM profiles WHERE key = ?`, p.Key).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return services.ErrProfileExists
	}
	if _, err := tx.Exec(`INSERT INTO profiles (key, doc) VALUES (?, ?)`, p.Key, string(doc)); err != nil {
		if isConstraintErr(err) {
			return services.ErrProfileExists
		}
		return err
	}
	return tx.Commit()
}

// UpdateProfileInfo rewrites the supplied profile-completion fields inside
// the stored document. Empty fields are left untouched.
func (s *ProfileStore) UpdateProfileInfo(key string, upd services.ProfileInfoUpdate) error {
	return s.mutateProfile(key, func(p *services.Profile) {
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
	})
}

func (s *ProfileStore) SetProfilePassword(key, hash string) error {
	return s.mutateProfile(key, func(p *services.Profile) {
		p.Password = hash
	})
}

func (s *ProfileStore) DeleteProfile(key string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM profiles WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *ProfileStore) ListProfiles() ([]*services.Profile, error) {
	return s.queryProfiles(`SELECT key, doc FROM profiles ORDER BY key`)
}

func (s *ProfileStore) ListProfilesByRole(role string) ([]*services.Profile, error) {
	return s.queryProfiles(`SELECT key, doc FROM profiles
		WHERE json_extract(doc, '$.role') = ? ORDER BY key`, role)
}

func (s *ProfileStore) queryProfiles(query string, args ...any) ([]*services.Profile, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*services.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// mutateProfile applies a read-modify-write of the document in one
// transaction.
func (s *ProfileStore) mutateProfile(key string, mutate func(*services.Profile)) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var doc string
	err = tx.QueryRow(`SELECT doc FROM profiles WHERE key = ?`, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("profile %q not found", key)
	}
	if err != nil {
		return err
	}
	var p services.Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return err
	}
	p.Key = key
	mutate(&p)
	updated, err := json.Marshal(&p)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE profiles SET doc = ? WHERE key = ?`, string(updated), key); err != nil {
		return err
	}
	return tx.Commit()
}

func scanProfile(row rowScanner) (*services.Profile, error) {
	var key, doc string
	err := row.Scan(&key, &doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p services.Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, err
	}
	p.Key = key
	return &p, nil
}

// Directory combines the two stores for engines that join identities across
// them.
type Directory struct {
	*Store
	*ProfileStore
}
