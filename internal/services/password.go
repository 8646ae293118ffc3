package services

import "regexp"

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`\d`)
	specialRe = regexp.MustCompile(`[^\w\s]`)
	emailRe   = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)
)

// ValidatePassword enforces the platform password policy: at least 8
// characters with an upper-case letter, a lower-case letter, a digit and a
// special character.
func ValidatePassword(password string) error {
	if len(password) < 8 ||
		!upperRe.MatchString(password) ||
		!lowerRe.MatchString(password) ||
		!digitRe.MatchString(password) ||
		!specialRe.MatchString(password) {
		return NewInvalidError("password must be at least 8 characters and contain an upper-case letter, a lower-case letter, a digit and a special character")
	}
	return nil
}

func ValidateEmail(email string) error {
	if !emailRe.MatchString(email) {
		return NewInvalidError("invalid email")
	}
	return nil
}
