// Package errs contains the error taxonomy shared by the token, session and
// policy layers. Handlers map these values to HTTP status codes; nothing
// below the handler layer decides on a status.
package errs

import "errors"

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateIdentity is matched by every *DuplicateError.
	ErrDuplicateIdentity = errors.New("identity already exists")

	// ErrAuthenticationFailed is the single login failure. It never says
	// whether the email or the password was wrong.
	ErrAuthenticationFailed = errors.New("invalid email or password")

	// Token-level failures.
	ErrTokenMalformed   = errors.New("token malformed")
	ErrSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired     = errors.New("token expired")

	// ErrInvalidRefreshToken wraps any verification failure of a refresh token.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrTokenRevokedOrUnknown means the refresh token verified but is not
	// present in the revocation registry.
	ErrTokenRevokedOrUnknown = errors.New("refresh token revoked or unknown")

	// ErrNoActiveIdentity is matched by both ErrIdentityNotFound and
	// ErrIdentityInactive failures returned from the directory.
	ErrNoActiveIdentity = errors.New("no such active identity")
	ErrIdentityNotFound = errors.New("identity not found")
	ErrIdentityInactive = errors.New("identity inactive")

	// ErrAuthorizationDenied is matched by every *DeniedError.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrConfig is matched by every *ConfigError.
	ErrConfig = errors.New("invalid configuration")
)
