package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MinPasswordLength is the shortest plaintext password accepted
const MinPasswordLength = 7

var errPasswordContainsWord = errors.New(`must not contain the word "password"`)

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(MinPasswordLength, 0),
		validation.By(func(value any) error {
			s, _ := value.(string)
			if strings.Contains(strings.ToLower(s), "password") {
				return errPasswordContainsWord
			}
			return nil
		}),
	}
}

// ValidatePassword checks a plaintext password against the password policy
func ValidatePassword(password string) error {
	if err := validation.Validate(password, passwordRules()...); err != nil {
		return NewValidationError(validation.Errors{"password": err})
	}
	return nil
}

// Validate runs the registration rules. Email is expected normalized.
func (r Registration) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, passwordRules()...),
		validation.Field(&r.Language, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Role, validation.In(RoleUser, RoleAdmin)),
	)
	if err != nil {
		return NewValidationError(err)
	}
	return nil
}

// Validate runs the invariants every stored account must satisfy
func (a *Account) Validate() error {
	err := validation.ValidateStruct(a,
		validation.Field(&a.Email, validation.Required, is.Email),
		validation.Field(&a.DisplayName, validation.Required, validation.Length(1, 128)),
		validation.Field(&a.Language, validation.Required, validation.Length(1, 64)),
		validation.Field(&a.Status, validation.Required, validation.In(AccountPendingVerification, AccountActive, AccountSuspended)),
		validation.Field(&a.Role, validation.Required, validation.In(RoleUser, RoleAdmin)),
		validation.Field(&a.LoginAttemptCount, validation.Min(0)),
	)
	if err != nil {
		return NewValidationError(err)
	}

	if password, ok := a.PendingPassword(); ok {
		return ValidatePassword(password)
	}

	return nil
}

// Validate rejects empty patches and blank values
func (p ProfilePatch) Validate() error {
	if p.IsEmpty() {
		return NewValidationError(validation.Errors{
			"body": errors.New("nothing to update"),
		})
	}

	errs := validation.Errors{}
	if p.Name != nil {
		errs["name"] = validation.Validate(strings.TrimSpace(*p.Name), validation.Required, validation.Length(1, 128))
	}
	if p.Language != nil {
		errs["language"] = validation.Validate(strings.TrimSpace(*p.Language), validation.Required, validation.Length(1, 64))
	}
	if err := errs.Filter(); err != nil {
		return NewValidationError(err)
	}
	return nil
}
