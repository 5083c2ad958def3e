package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	TextCodeValidation             = "VALIDATION_ERROR"
	TextCodeDuplicateEmail         = "DUPLICATE_EMAIL"
	TextCodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	TextCodeInvalidToken           = "INVALID_TOKEN"
	TextCodeLockedOut              = "TOO_MANY_ATTEMPTS"
	TextCodeInvalidCreds           = "INVALID_CREDENTIALS"
	TextCodeUnauthenticated        = "UNAUTHENTICATED"
	TextCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	TextCodeTokenExpired           = "TOKEN_EXPIRED"
	TextCodeTokenMalformed         = "TOKEN_MALFORMED"
	TextCodeTokenSignature         = "TOKEN_BAD_SIGNATURE"
	TextCodeEmptyPassword          = "EMPTY_PASSWORD"
	TextCodeInvalidTransition      = "INVALID_STATUS_TRANSITION"
	TextCodeForbidden              = "FORBIDDEN"
)

// ErrDuplicateEmail is returned when the e-mail is already registered
var ErrDuplicateEmail = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeDuplicateEmail)

// ErrAccountNotFound is returned by lookups that found no account
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeAccountNotFound)

// ErrInvalidToken covers unknown, consumed or refreshed-away tokens
var ErrInvalidToken = goerrors.New("invalid or expired token", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeInvalidToken)

// ErrLockedOut is returned while the lockout window is active.
// Transports must render it exactly like ErrInvalidCredentials.
var ErrLockedOut = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeLockedOut)

// ErrInvalidCredentials is the password mismatch error
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidCreds)

// ErrUnauthenticated is the only error the guard ever returns
var ErrUnauthenticated = goerrors.New("please authenticate", goerrors.CategoryAuth).
	WithCode(http.StatusUnauthorized).
	WithTextCode(TextCodeUnauthenticated)

// ErrConcurrentModification is returned when a versioned save lost the race twice
var ErrConcurrentModification = goerrors.New("account was modified concurrently", goerrors.CategoryConflict).
	WithCode(http.StatusInternalServerError).
	WithTextCode(TextCodeConcurrentModification)

// ErrTokenExpired token past its exp claim
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithCode(http.StatusUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed token could not be parsed
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(http.StatusUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrTokenBadSignature token signature did not verify
var ErrTokenBadSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithCode(http.StatusUnauthorized).
	WithTextCode(TextCodeTokenSignature)

// ErrNoEmptyString empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeEmptyPassword)

// ErrInvalidTransition is returned for status changes outside the transition graph
var ErrInvalidTransition = goerrors.New("invalid account status transition", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidTransition)

// ErrForbidden is returned when a non admin calls an admin operation
var ErrForbidden = goerrors.New("operation not allowed", goerrors.CategoryAuthz).
	WithCode(http.StatusForbidden).
	WithTextCode(TextCodeForbidden)

// NewValidationError wraps ozzo validation errors, field messages go
// into the metadata so transports can render them.
func NewValidationError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryValidation {
		return richErr
	}

	fields := map[string]any{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				fields[field] = ferr.Error()
			}
		}
	}

	return goerrors.Wrap(err, goerrors.CategoryValidation, "validation failed").
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidation).
		WithMetadata(map[string]any{"fields": fields})
}

// IsValidationError reports whether err carries the validation category
func IsValidationError(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryValidation
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return goerrors.Is(err, ErrTokenExpired)
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	return goerrors.Is(err, ErrTokenMalformed)
}
