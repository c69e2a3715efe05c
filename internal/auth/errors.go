package auth

import "errors"

// Sentinel errors for authentication failures.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidCredentials is returned when a login attempt fails.
	// Deliberately does not distinguish unknown user from wrong password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrTokenInvalid is returned for tokens that fail signature,
	// structure, or claim validation (including expiry).
	ErrTokenInvalid = errors.New("auth: invalid token")
)
