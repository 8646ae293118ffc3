package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
	ErrorInternal     ErrorCode = "internal"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error  { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewNotFoundError(msg string) error { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewInternalError(msg string) error { return &ServiceError{Code: ErrorInternal, Message: msg} }

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Sentinels returned by store implementations so engines can classify
// constraint failures without depending on driver error types.
var (
	// ErrProfileExists signals that a transactional profile insert lost to an
	// existing record with the same key.
	ErrProfileExists = errors.New("profile already exists")
	// ErrDuplicateResponse signals a second response for the same
	// (user, questionnaire) pair.
	ErrDuplicateResponse = errors.New("response already submitted")
)

// storeErr wraps an unexpected storage failure as an internal ServiceError,
// so raw store errors never cross the public boundary.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsServiceError(err); ok {
		return err
	}
	return &ServiceError{Code: ErrorInternal, Message: "storage failure: " + err.Error()}
}
