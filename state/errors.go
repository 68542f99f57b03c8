package state

import (
	"errors"
	"strings"
)

// ErrorKind classifies an [AuthError].
type ErrorKind uint8

const (
	// KindUnknown wraps an unclassified underlying error.
	KindUnknown ErrorKind = iota
	// KindConfiguration reports missing or invalid setup.
	KindConfiguration
	// KindValidation reports bad caller input.
	KindValidation
	// KindService reports a rejection by the identity provider.
	KindService
	// KindNotAuthorized reports rejected credentials.
	KindNotAuthorized
	// KindSessionExpired reports a session that can no longer be refreshed.
	KindSessionExpired
	// KindInvalidState reports an operation attempted in a state that does not accept it.
	KindInvalidState
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindService:
		return "service"
	case KindNotAuthorized:
		return "notAuthorized"
	case KindSessionExpired:
		return "sessionExpired"
	case KindInvalidState:
		return "invalidState"
	default:
		return "unknown"
	}
}

type kindSentinel ErrorKind

func (k kindSentinel) Error() string {
	return "auth: " + ErrorKind(k).String()
}

// Kind sentinels. errors.Is(err, ErrValidation) reports whether err is an
// [AuthError] of that kind.
var (
	ErrUnknown        error = kindSentinel(KindUnknown)
	ErrConfiguration  error = kindSentinel(KindConfiguration)
	ErrValidation     error = kindSentinel(KindValidation)
	ErrService        error = kindSentinel(KindService)
	ErrNotAuthorized  error = kindSentinel(KindNotAuthorized)
	ErrSessionExpired error = kindSentinel(KindSessionExpired)
	ErrInvalidState   error = kindSentinel(KindInvalidState)
)

// AuthError is the single error shape carried by error states and returned
// by the public operations.
type AuthError struct {
	Kind    ErrorKind
	Message string
	// Field names the offending input for validation errors.
	Field string
	// Code is the provider error code, e.g. "UserNotFoundException".
	Code string
	// Recoverable marks errors the caller can retry in the same flow, such as a
	// mistyped confirmation code.
	Recoverable bool
	Err         error
}

func (e *AuthError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Field != "" {
		b.WriteString(" (")
		b.WriteString(e.Field)
		b.WriteString(")")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches kind sentinels and other AuthErrors with the same kind and code.
func (e *AuthError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch t := target.(type) {
	case kindSentinel:
		return ErrorKind(t) == e.Kind
	case *AuthError:
		return t != nil && t.Kind == e.Kind && t.Code == e.Code
	}
	return false
}

// NewValidationError reports bad input for the named field.
func NewValidationError(field, message string) *AuthError {
	return &AuthError{Kind: KindValidation, Field: field, Message: message}
}

// NewConfigurationError reports missing or invalid setup.
func NewConfigurationError(message string) *AuthError {
	return &AuthError{Kind: KindConfiguration, Message: message}
}

// NewInvalidStateError reports an operation the current state does not accept.
func NewInvalidStateError(message string) *AuthError {
	return &AuthError{Kind: KindInvalidState, Message: message}
}

// NewServiceError reports a provider-side rejection.
func NewServiceError(code, message string, recoverable bool, err error) *AuthError {
	return &AuthError{Kind: KindService, Code: code, Message: message, Recoverable: recoverable, Err: err}
}

// NewNotAuthorizedError reports rejected credentials.
func NewNotAuthorizedError(code, message string, err error) *AuthError {
	return &AuthError{Kind: KindNotAuthorized, Code: code, Message: message, Err: err}
}

// NewSessionExpiredError reports a session that cannot be refreshed.
func NewSessionExpiredError(message string, err error) *AuthError {
	return &AuthError{Kind: KindSessionExpired, Message: message, Err: err}
}

// AsAuthError returns err as an *AuthError, wrapping unclassified errors as
// [KindUnknown]. A nil err returns nil.
func AsAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return &AuthError{Kind: KindUnknown, Message: "unclassified error", Err: err}
}
