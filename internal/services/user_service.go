package services

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ProfileStore is the document-oriented store keyed by pseudonym or email.
type ProfileStore interface {
	GetProfile(key string) (*Profile, error)
	FindProfileByPseudonym(pseudonym string) (*Profile, error)
	// InsertProfile is an atomic existence-check-and-insert; exactly one of
	// several concurrent callers for the same key succeeds, the rest get
	// ErrProfileExists.
	InsertProfile(p *Profile) error
	UpdateProfileInfo(key string, upd ProfileInfoUpdate) error
	SetProfilePassword(key, hash string) error
	DeleteProfile(key string) (bool, error)
	ListProfiles() ([]*Profile, error)
	ListProfilesByRole(role string) ([]*Profile, error)
}

// ProfileInfoUpdate carries the profile-completion fields.
type ProfileInfoUpdate struct {
	Pseudonym string `json:"pseudonym"`
	Password  string `json:"password"`
	Year      string `json:"year"`
	Studies   string `json:"studies"`
	Semester  string `json:"semester"`
	Gender    string `json:"gender"`
}

// UserDirectory is the operational-store side of the identity link.
type UserDirectory interface {
	EnsureLinkedUser(pseudonym string) (string, error)
	FindLinkedUserByPseudonym(pseudonym string) (*LinkedUser, error)
	RenameLinkedUser(oldPseudonym, newPseudonym string) error
	DeleteLinkedUser(pseudonym string) error
	AppendPasswordReset(r *PasswordResetRequest) error
}

// ActivityReader exposes the activity rows needed by the admin listing.
type ActivityReader interface {
	ListActivities(userID string) ([]*Activity, error)
}

// IdentityVerifier checks an opaque federated credential and returns the
// verified (subject id, email) pair.
type IdentityVerifier interface {
	Verify(idToken string) (subject, email string, err error)
}

// TokenSigner mints a session token for an authenticated user.
type TokenSigner func(userID, pseudonym, role string, ttl time.Duration) (string, error)

type UserService struct {
	profiles   ProfileStore
	users      UserDirectory
	activities ActivityReader
	verifier   IdentityVerifier
	logs       *LogService
	signToken  TokenSigner
	tokenTTL   time.Duration
	now        func() time.Time
}

func NewUserService(profiles ProfileStore, users UserDirectory, activities ActivityReader, verifier IdentityVerifier, signer TokenSigner, logs *LogService) *UserService {
	return &UserService{
		profiles:   profiles,
		users:      users,
		activities: activities,
		verifier:   verifier,
		logs:       logs,
		signToken:  signer,
		tokenTTL:   30 * 24 * time.Hour,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type LoginResult struct {
	Token     string    `json:"token,omitempty"`
	Role      string    `json:"role"`
	Pseudonym string    `json:"pseudonym"`
	Email     string    `json:"email"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Year      string    `json:"year,omitempty"`
	Studies   string    `json:"studies,omitempty"`
	Semester  string    `json:"semester,omitempty"`
}

// Login checks a manual credential pair against the profile store and ensures
// the operational identity link exists.
func (s *UserService) Login(username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, NewInvalidError("username and password required")
	}
	profile, err := s.profiles.FindProfileByPseudonym(username)
	if err != nil {
		return nil, storeErr(err)
	}
	if profile == nil {
		s.logs.Event("login_fail", "user not found", username)
		return nil, NewNotFoundError("user not found")
	}
	if bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(password)) != nil {
		s.logs.Event("login_fail", "incorrect password", username)
		return nil, NewUnauthorizedError("incorrect password")
	}
	userID, err := s.users.EnsureLinkedUser(username)
	if err != nil {
		return nil, storeErr(err)
	}
	token, err := s.mintToken(userID, profile)
	if err != nil {
		return nil, err
	}
	s.logs.Event("login_success", username+" logged in", username)
	res := &LoginResult{
		Token:     token,
		Role:      profile.Role,
		Pseudonym: profile.Pseudonym,
		Email:     profile.Email,
		UserID:    userID,
		CreatedAt: profile.CreatedAt,
	}
	if profile.Role == RoleStudent {
		res.Year = profile.Year
		res.Studies = profile.Studies
		res.Semester = profile.Semester
	}
	return res, nil
}

type FederatedLoginResult struct {
	Token                  string   `json:"token,omitempty"`
	Role                   string   `json:"role"`
	UserID                 string   `json:"user_id"`
	NeedsProfileCompletion bool     `json:"needs_profile_completion"`
	Profile                *Profile `json:"user_info"`
}

// FederatedLogin verifies an opaque identity token, creating a profile keyed
// by the verified email on first sight.
func (s *UserService) FederatedLogin(idToken string) (*FederatedLoginResult, error) {
	if idToken == "" {
		return nil, NewInvalidError("id_token required")
	}
	if s.verifier == nil {
		return nil, NewInternalError("identity verifier not configured")
	}
	subject, email, err := s.verifier.Verify(idToken)
	if err != nil {
		s.logs.Event("google_login_fail", "invalid token: "+err.Error(), email)
		return nil, NewUnauthorizedError("invalid token")
	}

	profile, err := s.profiles.GetProfile(email)
	if err != nil {
		return nil, storeErr(err)
	}
	if profile == nil {
		profile = &Profile{
			Key:       email,
			Role:      RoleStudent,
			Email:     email,
			GoogleUID: subject,
			CreatedAt: s.now(),
		}
		if err := s.profiles.InsertProfile(profile); err != nil {
			if !errors.Is(err, ErrProfileExists) {
				return nil, storeErr(err)
			}
			// Lost a concurrent first-login race; the record is there now.
			profile, err = s.profiles.GetProfile(email)
			if err != nil || profile == nil {
				return nil, storeErr(err)
			}
		}
	}
	userID, err := s.users.EnsureLinkedUser(email)
	if err != nil {
		return nil, storeErr(err)
	}
	token, err := s.mintToken(userID, profile)
	if err != nil {
		return nil, err
	}
	needsCompletion := profile.Password == "" || profile.Year == "" ||
		profile.Studies == "" || profile.Semester == ""
	s.logs.Event("google_login", "federated login for "+email, email)
	return &FederatedLoginResult{
		Token:                  token,
		Role:                   profile.Role,
		UserID:                 userID,
		NeedsProfileCompletion: needsCompletion,
		Profile:                profile,
	}, nil
}

type RegisterInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Gender   string `json:"gender" validate:"required"`
	Age      string `json:"age"`
	Studies  string `json:"studies"`
	Year     string `json:"year"`
	Semester string `json:"semester"`
}

// Register creates a new profile. The existence check and insert are a single
// atomic unit; concurrent duplicate registrations are rejected with a
// conflict.
func (s *UserService) Register(in *RegisterInput) (string, error) {
	if err := checkInput(in); err != nil {
		s.logs.Event("add_user_fail", "missing fields", "")
		return "", err
	}
	if err := ValidateEmail(in.Email); err != nil {
		s.logs.Event("add_user_fail", "invalid email", in.Username)
		return "", err
	}
	if err := ValidatePassword(in.Password); err != nil {
		s.logs.Event("add_user_fail", "weak password", in.Username)
		return "", err
	}
	if in.Role == RoleStudent && (in.Age == "" || in.Year == "" || in.Semester == "") {
		s.logs.Event("add_user_fail", "missing student fields", in.Username)
		return "", NewInvalidError("age, year and semester required for students")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", NewInternalError("password hashing failed")
	}
	profile := &Profile{
		Key:       in.Username,
		Pseudonym: in.Username,
		Password:  string(hash),
		Role:      in.Role,
		Email:     in.Email,
		Gender:    in.Gender,
		CreatedAt: s.now(),
	}
	if in.Role == RoleStudent {
		profile.Age = in.Age
		profile.Studies = in.Studies
		profile.Year = in.Year
		profile.Semester = in.Semester
	}
	if err := s.profiles.InsertProfile(profile); err != nil {
		if errors.Is(err, ErrProfileExists) {
			s.logs.Event("add_user_fail", "user already exists", in.Username)
			return "", NewConflictError("user already exists")
		}
		return "", storeErr(err)
	}
	if _, err := s.users.EnsureLinkedUser(in.Username); err != nil {
		return "", storeErr(err)
	}
	s.logs.Event("add_user", "user added: "+in.Username, in.Username)
	return in.Username, nil
}

// UpdateProfile completes or edits a profile keyed by email, and renames the
// operational identity link when the pseudonym changes.
func (s *UserService) UpdateProfile(email string, upd ProfileInfoUpdate) error {
	if email == "" {
		s.logs.Event("update_user_info_fail", "email required", "")
		return NewInvalidError("email required")
	}
	profile, err := s.profiles.GetProfile(email)
	if err != nil {
		return storeErr(err)
	}
	if profile == nil {
		s.logs.Event("update_user_info_fail", "user not found", email)
		return NewNotFoundError("user not found")
	}
	if upd.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(upd.Password), bcrypt.DefaultCost)
		if err != nil {
			return NewInternalError("password hashing failed")
		}
		upd.Password = string(hash)
	}
	if err := s.profiles.UpdateProfileInfo(email, upd); err != nil {
		return storeErr(err)
	}
	if upd.Pseudonym != "" {
		if err := s.users.RenameLinkedUser(email, upd.Pseudonym); err != nil {
			return storeErr(err)
		}
	}
	s.logs.Event("update_user_info", "profile updated for "+email, email)
	return nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *UserService) ChangePassword(username, current, next string) error {
	if username == "" || current == "" || next == "" {
		s.logs.Event("change_password_fail", "missing fields", username)
		return NewInvalidError("username, current and new password required")
	}
	if err := ValidatePassword(next); err != nil {
		s.logs.Event("change_password_fail", "weak new password", username)
		return err
	}
	profile, err := s.profiles.FindProfileByPseudonym(username)
	if err != nil {
		return storeErr(err)
	}
	if profile == nil {
		s.logs.Event("change_password_fail", "user not found", username)
		return NewNotFoundError("user not found")
	}
	if bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(current)) != nil {
		s.logs.Event("change_password_fail", "current password incorrect", username)
		return NewUnauthorizedError("current password incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return NewInternalError("password hashing failed")
	}
	if err := s.profiles.SetProfilePassword(profile.Key, string(hash)); err != nil {
		return storeErr(err)
	}
	s.logs.Event("change_password_success", "password changed for "+username, username)
	return nil
}

// ForgotPassword queues a reset request for an administrator to handle.
func (s *UserService) ForgotPassword(username string) error {
	if username == "" {
		s.logs.Event("forgot_password_fail", "username missing", "")
		return NewInvalidError("username required")
	}
	profile, err := s.profiles.FindProfileByPseudonym(username)
	if err != nil {
		return storeErr(err)
	}
	if profile == nil {
		s.logs.Event("forgot_password_fail", "user not found", username)
		return NewNotFoundError("user not found")
	}
	req := &PasswordResetRequest{
		Username:    username,
		RequestedAt: s.now(),
		Status:      "pending",
	}
	if err := s.users.AppendPasswordReset(req); err != nil {
		return storeErr(err)
	}
	s.logs.Event("forgot_password_request", "password reset requested for "+username, username)
	return nil
}

// DeleteUser removes the profile and its operational identity link.
func (s *UserService) DeleteUser(username string) error {
	ok, err := s.profiles.DeleteProfile(username)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		s.logs.Event("delete_user_fail", "user not found: "+username, username)
		return NewNotFoundError("user not found")
	}
	if err := s.users.DeleteLinkedUser(username); err != nil {
		return storeErr(err)
	}
	s.logs.Event("delete_user", "user deleted: "+username, username)
	return nil
}

// UserSummary is the admin listing projection.
type UserSummary struct {
	Pseudonym string `json:"pseudonym"`
	Role      string `json:"role"`
	Email     string `json:"email"`
	Gender    string `json:"gender"`
	UserID    string `json:"user_id,omitempty"`
	Year      string `json:"year,omitempty"`
	Studies   string `json:"studies,omitempty"`
	Semester  string `json:"semester,omitempty"`
	Age       string `json:"age,omitempty"`
}

func (s *UserService) ListUsers() ([]*UserSummary, error) {
	profiles, err := s.profiles.ListProfiles()
	if err != nil {
		return nil, storeErr(err)
	}
	out := make([]*UserSummary, 0, len(profiles))
	for _, p := range profiles {
		u := &UserSummary{
			Pseudonym: p.Pseudonym,
			Role:      p.Role,
			Email:     p.Email,
			Gender:    p.Gender,
		}
		link, err := s.users.FindLinkedUserByPseudonym(p.Pseudonym)
		if err != nil {
			return nil, storeErr(err)
		}
		if link != nil {
			u.UserID = link.ID
		}
		if p.Role == RoleStudent {
			u.Year = p.Year
			u.Studies = p.Studies
			u.Semester = p.Semester
			u.Age = p.Age
		}
		out = append(out, u)
	}
	return out, nil
}

// StudentActivities pairs a student profile with their activity rows.
type StudentActivities struct {
	Pseudonym  string           `json:"pseudonym"`
	Email      string           `json:"email"`
	Year       string           `json:"year"`
	Semester   string           `json:"semester"`
	Studies    string           `json:"studies"`
	UserID     string           `json:"user_id"`
	Activities []*ActivityEntry `json:"activities"`
}

// StudentsWithActivities is the admin view joining student profiles to their
// activity rows. Students without an identity link are skipped.
func (s *UserService) StudentsWithActivities() ([]*StudentActivities, error) {
	students, err := s.profiles.ListProfilesByRole(RoleStudent)
	if err != nil {
		return nil, storeErr(err)
	}
	out := make([]*StudentActivities, 0, len(students))
	for _, p := range students {
		link, err := s.users.FindLinkedUserByPseudonym(p.Pseudonym)
		if err != nil {
			return nil, storeErr(err)
		}
		if link == nil {
			continue
		}
		activities, err := s.activities.ListActivities(link.ID)
		if err != nil {
			return nil, storeErr(err)
		}
		entries := make([]*ActivityEntry, 0, len(activities))
		for _, a := range activities {
			entries = append(entries, &ActivityEntry{
				Activity:  a.Activity,
				StartTime: a.StartTime.Format(time.RFC3339),
				EndTime:   a.EndTime.Format(time.RFC3339),
				Duration:  a.DurationSeconds,
			})
		}
		out = append(out, &StudentActivities{
			Pseudonym:  p.Pseudonym,
			Email:      p.Email,
			Year:       p.Year,
			Semester:   p.Semester,
			Studies:    p.Studies,
			UserID:     link.ID,
			Activities: entries,
		})
	}
	return out, nil
}

func (s *UserService) mintToken(userID string, profile *Profile) (string, error) {
	if s.signToken == nil {
		return "", nil
	}
	token, err := s.signToken(userID, profile.Pseudonym, profile.Role, s.tokenTTL)
	if err != nil {
		return "", NewInternalError("token signing failed")
	}
	return token, nil
}
