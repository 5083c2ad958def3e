package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// RegisterResult is returned by Service.Register
type RegisterResult struct {
	Account   AccountView
	EmailSent bool
}

// LoginResult is returned by Service.Login
type LoginResult struct {
	Account AccountView
	Session *IssuedSession
}

// ForgotPasswordResult is returned by Service.ForgotPassword
type ForgotPasswordResult struct {
	ResetPasswordToken string
	EmailSent          bool
}

// Service composes the auth components into the operations the transport
// layer exposes.
type Service struct {
	cfg      Config
	accounts Accounts
	hasher   PasswordHasher
	codec    TokenCodec
	verifier *CredentialVerifier
	sessions *SessionManager
	guard    *Guard
	flow     *VerificationFlow
	mailer   Mailer
	activity ActivitySink
	clock    Clock
	logger   Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithHasher sets the password hasher, it must match the store's
func WithHasher(hasher PasswordHasher) ServiceOption {
	return func(s *Service) {
		if hasher != nil {
			s.hasher = hasher
		}
	}
}

// WithTokenCodec sets the token codec
func WithTokenCodec(codec TokenCodec) ServiceOption {
	return func(s *Service) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithMailer sets the mail sender
func WithMailer(mailer Mailer) ServiceOption {
	return func(s *Service) {
		if mailer != nil {
			s.mailer = mailer
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) ServiceOption {
	return func(s *Service) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithLogger sets the logger shared by every component
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		s.logger = normalizeLogger(logger)
	}
}

// WithClock sets the clock shared by every component
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService validates cfg and wires the components over accounts
func NewService(cfg Config, accounts Accounts, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		accounts: accounts,
		activity: noopActivitySink{},
		clock:    systemClock,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.hasher == nil {
		s.hasher = NewBcryptHasher(cfg.BcryptCost)
	}
	if s.codec == nil {
		s.codec = NewTokenService(cfg, WithTokenClock(s.clock), WithTokenLogger(s.logger))
	}
	if s.mailer == nil {
		s.mailer = NewLogMailer(s.logger)
	}

	s.verifier = NewCredentialVerifier(accounts, s.hasher, cfg,
		WithVerifierClock(s.clock), WithVerifierLogger(s.logger))
	s.sessions = NewSessionManager(accounts, s.codec, cfg,
		WithSessionClock(s.clock), WithSessionLogger(s.logger))
	s.guard = NewGuard(accounts, s.codec, cfg,
		WithGuardClock(s.clock), WithGuardLogger(s.logger))
	s.flow = NewVerificationFlow(accounts).WithLogger(s.logger)

	return s, nil
}

// Config returns the configuration the service was built with
func (s *Service) Config() Config {
	return s.cfg
}

// Guard returns the guard protecting authenticated operations
func (s *Service) Guard() *Guard {
	return s.guard
}

// Sessions returns the session manager
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// Register creates a pending account and mails the confirmation link
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	token, err := newRandomToken()
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.Create(ctx, Registration{
		Name:              req.Name,
		Email:             req.Email,
		Password:          req.Password,
		Language:          req.Language,
		VerificationToken: token,
	})
	if err != nil {
		return nil, err
	}

	sent := false
	if req.RegistrationConfirmationURL != "" {
		url := joinTokenURL(req.RegistrationConfirmationURL, account.VerificationToken)
		sent = s.deliver(ctx, account.Email, url, VerificationMessage)
	}

	s.emit(ctx, ActivityEventRegistered, accountActor(account.ID.String()), account.ID.String(), map[string]any{
		"email_sent": sent,
	})

	return &RegisterResult{Account: account.View(), EmailSent: sent}, nil
}

// Login checks the credentials and opens a session. Unknown, inactive and
// locked out accounts all fail as ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	account, err := s.verifier.Verify(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case goerrors.Is(err, ErrLockedOut):
			s.logger.Warn("login rejected, account locked", "email", NormalizeEmail(req.Email))
			s.emit(ctx, ActivityEventLockedOut, ActorRef{Type: "unknown"}, "", map[string]any{
				"email": NormalizeEmail(req.Email),
			})
			return nil, ErrInvalidCredentials
		case goerrors.Is(err, ErrAccountNotFound), goerrors.Is(err, ErrInvalidCredentials):
			s.logger.Debug("login rejected", "email", NormalizeEmail(req.Email), "reason", err)
			s.emit(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
				"email": NormalizeEmail(req.Email),
			})
			return nil, ErrInvalidCredentials
		default:
			return nil, err
		}
	}

	session, err := s.sessions.Issue(ctx, account)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, accountActor(account.ID.String()), account.ID.String(), map[string]any{
		"session_id": session.SessionID,
	})

	return &LoginResult{Account: session.Account.View(), Session: session}, nil
}

// Refresh swaps a token for a new one
func (s *Service) Refresh(ctx context.Context, token string) (*IssuedSession, error) {
	session, err := s.sessions.Refresh(ctx, token)
	if err != nil {
		return nil, err
	}

	id := session.Account.ID.String()
	s.emit(ctx, ActivityEventSessionRefreshed, accountActor(id), id, map[string]any{
		"session_id": session.SessionID,
	})

	return session, nil
}

// Authenticate resolves a raw token into a Principal
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	return s.guard.Authenticate(ctx, token)
}

// Logout ends the session the principal authenticated with
func (s *Service) Logout(ctx context.Context, p *Principal) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if err := s.sessions.Revoke(ctx, p.AccountID, p.Token); err != nil {
		return err
	}
	s.emit(ctx, ActivityEventLogout, accountActor(p.AccountID), p.AccountID, nil)
	return nil
}

// LogoutAll ends every session of the principal's account
func (s *Service) LogoutAll(ctx context.Context, p *Principal) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if err := s.sessions.RevokeAll(ctx, p.AccountID); err != nil {
		return err
	}
	s.emit(ctx, ActivityEventLogoutAll, accountActor(p.AccountID), p.AccountID, nil)
	return nil
}

// Me returns the principal's account
func (s *Service) Me(ctx context.Context, p *Principal) (AccountView, error) {
	if p == nil {
		return AccountView{}, ErrUnauthenticated
	}
	if p.Account != nil {
		return p.Account.View(), nil
	}
	account, err := s.accounts.FindByID(ctx, p.AccountID)
	if err != nil {
		return AccountView{}, err
	}
	return account.View(), nil
}

// UpdateProfile applies patch to the principal's account
func (s *Service) UpdateProfile(ctx context.Context, p *Principal, patch ProfilePatch) (AccountView, error) {
	if p == nil {
		return AccountView{}, ErrUnauthenticated
	}
	if err := patch.Validate(); err != nil {
		return AccountView{}, err
	}

	account, err := s.accounts.Update(ctx, p.AccountID, func(a *Account) error {
		patch.Apply(a)
		return nil
	})
	if err != nil {
		return AccountView{}, err
	}

	s.emit(ctx, ActivityEventProfileUpdated, accountActor(p.AccountID), p.AccountID, patch.LogFields())
	return account.View(), nil
}

// ChangePassword replaces the password after checking the old one through
// the lockout aware verifier. Other sessions stay valid.
func (s *Service) ChangePassword(ctx context.Context, p *Principal, req ChangePasswordRequest) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if err := req.Validate(); err != nil {
		return err
	}

	account, err := s.accounts.FindByID(ctx, p.AccountID)
	if err != nil {
		return err
	}

	if _, err := s.verifier.Verify(ctx, account.Email, req.PasswordOld); err != nil {
		if goerrors.Is(err, ErrLockedOut) || goerrors.Is(err, ErrAccountNotFound) || goerrors.Is(err, ErrInvalidCredentials) {
			s.logger.Debug("password change rejected", "account_id", p.AccountID, "reason", err)
			return ErrInvalidCredentials
		}
		return err
	}

	if _, err := s.accounts.Update(ctx, p.AccountID, func(a *Account) error {
		a.SetPassword(req.PasswordNew)
		return nil
	}); err != nil {
		return err
	}

	s.emit(ctx, ActivityEventPasswordChanged, accountActor(p.AccountID), p.AccountID, nil)
	return nil
}

// VerifyRegistration consumes a verification token
func (s *Service) VerifyRegistration(ctx context.Context, token string) (AccountView, error) {
	account, err := s.flow.ConsumeVerification(ctx, token)
	if err != nil {
		return AccountView{}, err
	}

	id := account.ID.String()
	s.emit(ctx, ActivityEventVerified, accountActor(id), id, nil)
	return account.View(), nil
}

// ResendVerification replaces the verification token of a pending account
// and mails the new confirmation link. It reports whether the mail went out.
func (s *Service) ResendVerification(ctx context.Context, req ResendVerificationRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}

	account, err := s.accounts.FindByEmail(ctx, req.Email)
	if err != nil {
		return false, err
	}

	id := account.ID.String()
	token, err := s.flow.IssueVerification(ctx, id)
	if err != nil {
		return false, err
	}

	sent := s.deliver(ctx, account.Email, joinTokenURL(req.RegistrationConfirmationURL, token), VerificationMessage)

	s.emit(ctx, ActivityEventVerificationResent, accountActor(id), id, map[string]any{
		"email_sent": sent,
	})

	return sent, nil
}

// ForgotPassword stores a reset token and mails the reset link
func (s *Service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (*ForgotPasswordResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	token, account, err := s.flow.IssuePasswordReset(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	sent := false
	if req.ForgotPasswordURL != "" {
		sent = s.deliver(ctx, account.Email, joinTokenURL(req.ForgotPasswordURL, token), PasswordResetMessage)
	}

	id := account.ID.String()
	s.emit(ctx, ActivityEventPasswordResetRequest, ActorRef{Type: ActorTypeSystem}, id, map[string]any{
		"email_sent": sent,
	})

	return &ForgotPasswordResult{ResetPasswordToken: token, EmailSent: sent}, nil
}

// ResetPassword consumes a reset token and sets the new password
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	account, err := s.flow.ConsumePasswordReset(ctx, token, password)
	if err != nil {
		return err
	}

	id := account.ID.String()
	s.emit(ctx, ActivityEventPasswordResetSuccess, accountActor(id), id, nil)
	return nil
}

// ListSessions returns the live sessions of the principal's account
func (s *Service) ListSessions(ctx context.Context, p *Principal) ([]SessionView, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}
	return s.sessions.List(ctx, p.AccountID, p.Token)
}

// SetStatus lets an admin suspend or reinstate an account. Suspension
// revokes every session of the target.
func (s *Service) SetStatus(ctx context.Context, p *Principal, accountID string, status AccountStatus) (AccountView, error) {
	if p == nil {
		return AccountView{}, ErrUnauthenticated
	}
	if !p.IsAdmin() {
		return AccountView{}, ErrForbidden
	}

	if err := (StatusChangeRequest{Status: status}).Validate(); err != nil {
		return AccountView{}, err
	}

	var from AccountStatus
	account, err := s.accounts.Update(ctx, accountID, func(a *Account) error {
		from = a.Status
		if from == status {
			return errSkipSave
		}
		return transitionStatus(a, status)
	})
	if err != nil {
		return AccountView{}, err
	}

	if from != status {
		s.emitEvent(ctx, ActivityEvent{
			EventType:  ActivityEventStatusChanged,
			Actor:      ActorRef{ID: p.AccountID, Type: ActorTypeAdmin},
			AccountID:  accountID,
			FromStatus: from,
			ToStatus:   status,
		})
	}

	return account.View(), nil
}

type messageRenderer func(to, url, brand string) (Message, error)

// deliver reports whether the mail went out, failures are only logged
func (s *Service) deliver(ctx context.Context, to, url string, render messageRenderer) bool {
	msg, err := render(to, url, s.cfg.BrandName)
	if err != nil {
		s.logger.Error("failed to render mail", "error", err)
		return false
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send mail", "to", to, "error", err)
		return false
	}
	return true
}

func (s *Service) emit(ctx context.Context, eventType ActivityEventType, actor ActorRef, accountID string, metadata map[string]any) {
	s.emitEvent(ctx, ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		AccountID: accountID,
		Metadata:  metadata,
	})
}

func (s *Service) emitEvent(ctx context.Context, event ActivityEvent) {
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock()
	}
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}

func accountActor(id string) ActorRef {
	return ActorRef{ID: id, Type: ActorTypeAccount}
}

func joinTokenURL(base, token string) string {
	return strings.TrimRight(base, "/") + "/" + token
}
