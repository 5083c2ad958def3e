package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// RegisterRequest is the payload of POST /v1/users/register
type RegisterRequest struct {
	Name                        string `json:"name"`
	Email                       string `json:"email"`
	Password                    string `json:"password"`
	Language                    string `json:"language"`
	RegistrationConfirmationURL string `json:"registrationConfirmationURL"`
}

// Validate checks the transport level shape, account rules run in the store
func (r RegisterRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.RegistrationConfirmationURL, is.URL),
	)
	if err != nil {
		return NewValidationError(err)
	}
	return nil
}

// LoginRequest is the payload of POST /v1/users/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
	if err != nil {
		return NewValidationError(err)
	}
	return nil
}

// ChangePasswordRequest is the payload of PATCH /v1/users/password
type ChangePasswordRequest struct {
	PasswordOld string `json:"passwordold"`
	PasswordNew string `json:"passwordnew"`
}

// Validate will run validation rules
func (r ChangePasswordRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.PasswordOld, validation.Required),
		validation.Field(&r.PasswordNew, passwordRules()...),
	)
	if err != nil {
		return NewValidationError(err)
	}
	return nil
}

// ForgotPasswordRequest is the payload of POST /v1/users/forgotpassword
type ForgotPasswordRequest struct {
	Email             string `json:"email"`
	ForgotPasswordURL string `json:"forgotPasswordURL"`
}

// Validate will run validation rules
func (r ForgotPasswordRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.ForgotPasswordURL, is.URL),
	)
	if err != nil {
		return NewValidationError(err)
	}
	return nil
}

// ResendVerificationRequest is the payload of POST /v1/users/resendVerification
type ResendVerificationRequest struct {
	Email                       string `json:"email"`
	RegistrationConfirmationURL string `json:"registrationConfirmationURL"`
}

// Validate will run validation rules
func (r ResendVerificationRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.RegistrationConfirmationURL, validation.Required, is.URL),
	)
	if err != nil {
		return NewValidationError(err)
	}
	return nil
}

// ResetPasswordRequest is the payload of PATCH /v1/users/resetpassword/:token
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// StatusChangeRequest is the payload of PATCH /v1/users/:id/status
type StatusChangeRequest struct {
	Status AccountStatus `json:"status"`
}

// Validate will run validation rules
func (r StatusChangeRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(AccountActive, AccountSuspended)),
	)
	if err != nil {
		return NewValidationError(err)
	}
	return nil
}
