package auth

// Request payloads implement LogFields with the fields that may be logged.
// Secrets never appear; their presence is reported instead.

// LogFielder exposes a whitelisted view of a value for logging
type LogFielder interface {
	LogFields() map[string]any
}

// LogFields returns the loggable view of a register request
func (r RegisterRequest) LogFields() map[string]any {
	return map[string]any{
		"name":                        r.Name,
		"email":                       r.Email,
		"language":                    r.Language,
		"registrationConfirmationURL": r.RegistrationConfirmationURL,
		"password":                    redacted(r.Password),
	}
}

// LogFields returns the loggable view of a login request
func (r LoginRequest) LogFields() map[string]any {
	return map[string]any{
		"email":    r.Email,
		"password": redacted(r.Password),
	}
}

// LogFields returns the loggable view of a change password request
func (r ChangePasswordRequest) LogFields() map[string]any {
	return map[string]any{
		"passwordold": redacted(r.PasswordOld),
		"passwordnew": redacted(r.PasswordNew),
	}
}

// LogFields returns the loggable view of a forgot password request
func (r ForgotPasswordRequest) LogFields() map[string]any {
	return map[string]any{
		"email":             r.Email,
		"forgotPasswordURL": r.ForgotPasswordURL,
	}
}

// LogFields returns the loggable view of a resend verification request
func (r ResendVerificationRequest) LogFields() map[string]any {
	return map[string]any{
		"email":                       r.Email,
		"registrationConfirmationURL": r.RegistrationConfirmationURL,
	}
}

// LogFields returns the loggable view of a reset password request
func (r ResetPasswordRequest) LogFields() map[string]any {
	return map[string]any{
		"password": redacted(r.Password),
	}
}

// LogFields returns the loggable view of a profile patch
func (p ProfilePatch) LogFields() map[string]any {
	out := map[string]any{}
	if p.Name != nil {
		out["name"] = *p.Name
	}
	if p.Language != nil {
		out["language"] = *p.Language
	}
	return out
}

// LogFields returns the loggable view of a status change request
func (r StatusChangeRequest) LogFields() map[string]any {
	return map[string]any{
		"status": r.Status,
	}
}

// LogFields returns the loggable view of an account
func (a AccountView) LogFields() map[string]any {
	return map[string]any{
		"_id":    a.ID,
		"email":  a.Email,
		"status": a.Status,
		"role":   a.Role,
	}
}

// LogFields returns the loggable view of a principal
func (p *Principal) LogFields() map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return map[string]any{
		"account_id": p.AccountID,
		"email":      p.Email,
		"role":       p.Role,
	}
}

func redacted(secret string) string {
	if secret == "" {
		return ""
	}
	return "[REDACTED]"
}
