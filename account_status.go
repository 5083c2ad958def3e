package auth

// statusTransitions lists the status changes an administrator may request.
// pending -> active only happens through verification.
var statusTransitions = map[AccountStatus]map[AccountStatus]struct{}{
	AccountPendingVerification: {
		AccountSuspended: {},
	},
	AccountActive: {
		AccountSuspended: {},
	},
	AccountSuspended: {
		AccountActive: {},
	},
}

// IsValid reports whether s is a known status
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountPendingVerification, AccountActive, AccountSuspended:
		return true
	default:
		return false
	}
}

// CanTransition reports whether an admin may move an account from -> to
func CanTransition(from, to AccountStatus) bool {
	if allowed, ok := statusTransitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// transitionStatus applies an admin status change to the account record.
// Suspension drops every session and pending token, so a reinstated account
// that never verified comes back active.
func transitionStatus(account *Account, target AccountStatus) error {
	if account == nil || !target.IsValid() {
		return ErrInvalidTransition
	}

	from := account.Status
	if from == target {
		return nil
	}

	if !CanTransition(from, target) {
		return ErrInvalidTransition
	}

	account.Status = target
	if target == AccountSuspended {
		account.ClearSessions()
		account.PasswordResetToken = ""
		account.VerificationToken = ""
	}

	return nil
}
