package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionAlreadyActive = errors.New("session already active for this user")
	ErrSessionNotFound      = errors.New("session not found")
	ErrUserMissing          = errors.New("user no longer exists")
	ErrMissingIdentifier    = errors.New("username or session id required")
	ErrMismatch             = errors.New("username and session id refer to different sessions")
	ErrNoRelevantCookies    = errors.New("no cookies relevant to domain")
	ErrStorageFailure       = errors.New("storage operation failed")
	ErrNotFound             = errors.New("resource not found")
	ErrForbidden            = errors.New("forbidden")
	ErrDuplicateEntry       = errors.New("duplicate entry")
)

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
