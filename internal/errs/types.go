package errs

import "fmt"

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

// Validation builds a *ValidationError.
func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DuplicateError reports which unique field collided.
type DuplicateError struct {
	Field string // "username" or "email"
}

func (e *DuplicateError) Error() string {
	switch e.Field {
	case "username":
		return "Username already exists"
	case "email":
		return "Email already exists"
	}
	return ErrDuplicateIdentity.Error()
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicateIdentity }

// DeniedError is an authorization policy rejection. Anonymous is true when
// the request carried no authenticated principal.
type DeniedError struct {
	Path      string
	Role      string
	Anonymous bool
}

func (e *DeniedError) Error() string {
	if e.Anonymous {
		return "authentication required"
	}
	return fmt.Sprintf("role %s may not access %s", e.Role, e.Path)
}

func (e *DeniedError) Is(target error) bool { return target == ErrAuthorizationDenied }

// ConfigError is a fatal startup configuration problem.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Key, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// identityError hides whether the identity was missing or inactive behind a
// single message, while errors.Is still sees the precise cause.
type identityError struct{ cause error }

// NoActiveIdentity wraps cause (ErrIdentityNotFound or ErrIdentityInactive).
func NoActiveIdentity(cause error) error { return &identityError{cause: cause} }

func (e *identityError) Error() string { return ErrNoActiveIdentity.Error() }

func (e *identityError) Unwrap() []error { return []error{ErrNoActiveIdentity, e.cause} }
