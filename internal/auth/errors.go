package auth

import "errors"

var (
	// ErrInvalidToken covers every token validation failure: malformed,
	// bad signature, expired, revoked, or unknown subject. Callers never
	// learn which check failed.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrInvalidCredentials is returned for both unknown usernames and
	// wrong passwords.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrForbidden means the caller is authenticated but not permitted.
	ErrForbidden = errors.New("auth: forbidden")

	// ErrInvalidInput wraps registration validation failures.
	ErrInvalidInput = errors.New("auth: invalid input")
)
