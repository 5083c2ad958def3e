package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// pgUniqueViolation is the SQLSTATE for unique constraint failures
const pgUniqueViolation = "23505"

// errSkipSave lets an Update mutation finish without writing
var errSkipSave = goerrors.New("no changes to persist", goerrors.CategoryOperation).
	WithTextCode("SKIP_SAVE")

// AccountStore persists accounts with optimistic versioning. Every call
// gets its own deadline; a timed out call is reported, never retried.
type AccountStore struct {
	repository.Repository[*Account]
	db               *bun.DB
	hasher           PasswordHasher
	timeout          time.Duration
	clock            Clock
	deterministicIDs bool
	logger           Logger
}

var _ Accounts = (*AccountStore)(nil)

// AccountStoreOption configures an AccountStore
type AccountStoreOption func(*AccountStore)

// WithStoreTimeout bounds every store round-trip
func WithStoreTimeout(timeout time.Duration) AccountStoreOption {
	return func(s *AccountStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithStoreClock sets the clock used for timestamps
func WithStoreClock(clock Clock) AccountStoreOption {
	return func(s *AccountStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDeterministicIDs derives new account ids from their e-mail
func WithDeterministicIDs(enabled bool) AccountStoreOption {
	return func(s *AccountStore) {
		s.deterministicIDs = enabled
	}
}

// WithStoreLogger sets the logger
func WithStoreLogger(logger Logger) AccountStoreOption {
	return func(s *AccountStore) {
		s.logger = normalizeLogger(logger)
	}
}

// NewAccountStore returns a store over db. The hasher is used for staged
// plaintext passwords.
func NewAccountStore(db *bun.DB, hasher PasswordHasher, opts ...AccountStoreOption) *AccountStore {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	store := &AccountStore{
		Repository: repo,
		db:         db,
		hasher:     hasher,
		timeout:    DefaultConfig().StoreTimeout,
		clock:      systemClock,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	return store
}

// Create validates and inserts a new pending account
func (s *AccountStore) Create(ctx context.Context, reg Registration) (*Account, error) {
	reg.Email = NormalizeEmail(reg.Email)
	reg.Name = strings.TrimSpace(reg.Name)
	reg.Language = strings.TrimSpace(reg.Language)
	if reg.Language == "" {
		reg.Language = DefaultLanguage
	}
	if reg.Role == "" {
		reg.Role = RoleUser
	}

	if err := reg.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.FindByEmail(ctx, reg.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !goerrors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	verificationToken := reg.VerificationToken
	if verificationToken == "" {
		if verificationToken, err = newRandomToken(); err != nil {
			return nil, err
		}
	}

	now := s.clock()
	account := &Account{
		ID:                s.newID(reg.Email),
		Email:             reg.Email,
		DisplayName:       reg.Name,
		PasswordHash:      hash,
		Language:          reg.Language,
		Status:            AccountPendingVerification,
		Role:              reg.Role,
		VerificationToken: verificationToken,
		ActiveSessions:    []SessionRecord{},
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.NewInsert().Model(account).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, s.wrapErr(err, "failed to create account")
	}

	return account, nil
}

// FindByID returns the account with the given id
func (s *AccountStore) FindByID(ctx context.Context, id string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrAccountNotFound
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	account, err := s.Repository.GetByID(ctx, id)
	if err != nil {
		return nil, s.notFoundOr(err, "failed to load account")
	}

	return ensureSessions(account), nil
}

// FindByEmail returns the account registered under email, any status
func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return s.findOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.email = ?", NormalizeEmail(email))
	})
}

// FindActiveByEmail returns the account only when it may log in
func (s *AccountStore) FindActiveByEmail(ctx context.Context, email string) (*Account, error) {
	return s.findOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.email = ?", NormalizeEmail(email)).
			Where("?TableAlias.status = ?", AccountActive)
	})
}

// FindByVerificationToken returns the pending account holding token
func (s *AccountStore) FindByVerificationToken(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrAccountNotFound
	}
	return s.findOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where("?TableAlias.verification_token = ?", token).
			Where("?TableAlias.status = ?", AccountPendingVerification)
	})
}

// FindByResetToken returns the account holding the reset token
func (s *AccountStore) FindByResetToken(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrAccountNotFound
	}
	return s.findOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.password_reset_token = ?", token)
	})
}

// Save validates and writes the account if nobody else wrote it since it
// was read. A staged plaintext password is hashed here, once.
func (s *AccountStore) Save(ctx context.Context, account *Account) error {
	if account == nil || account.ID == uuid.Nil {
		return ErrAccountNotFound
	}

	account.Email = NormalizeEmail(account.Email)
	if err := account.Validate(); err != nil {
		return err
	}

	prevHash := account.PasswordHash
	if password, ok := account.PendingPassword(); ok {
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		account.PasswordHash = hash
	}

	if account.PasswordHash == "" {
		return ErrNoEmptyString
	}

	if account.ActiveSessions == nil {
		account.ActiveSessions = []SessionRecord{}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	taken, err := s.db.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.email = ?", account.Email).
		Where("?TableAlias.id <> ?", account.ID).
		Exists(ctx)
	if err != nil {
		account.PasswordHash = prevHash
		return s.wrapErr(err, "failed to check e-mail uniqueness")
	}
	if taken {
		account.PasswordHash = prevHash
		return ErrDuplicateEmail
	}

	prevVersion := account.Version
	prevUpdatedAt := account.UpdatedAt
	account.Version = prevVersion + 1
	account.UpdatedAt = s.clock()

	res, err := s.db.NewUpdate().
		Model(account).
		ExcludeColumn("id", "created_at").
		WherePK().
		Where("version = ?", prevVersion).
		Exec(ctx)

	restore := func() {
		account.PasswordHash = prevHash
		account.Version = prevVersion
		account.UpdatedAt = prevUpdatedAt
	}

	if err != nil {
		restore()
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return s.wrapErr(err, "failed to save account")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		restore()
		return s.wrapErr(err, "failed to save account")
	}

	if rows == 0 {
		restore()
		exists, err := s.db.NewSelect().
			Model((*Account)(nil)).
			Where("?TableAlias.id = ?", account.ID).
			Exists(ctx)
		if err != nil {
			return s.wrapErr(err, "failed to save account")
		}
		if !exists {
			return ErrAccountNotFound
		}
		return ErrConcurrentModification
	}

	account.clearPendingPassword()
	return nil
}

// Update loads the account, applies mutate and saves it. A version
// conflict re-reads and re-applies mutate once.
func (s *AccountStore) Update(ctx context.Context, id string, mutate func(*Account) error) (*Account, error) {
	return updateAccount(ctx, s, s.logger, id, mutate)
}

func updateAccount(ctx context.Context, accounts Accounts, logger Logger, id string, mutate func(*Account) error) (*Account, error) {
	for attempt := 1; attempt <= 2; attempt++ {
		account, err := accounts.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := mutate(account); err != nil {
			if goerrors.Is(err, errSkipSave) {
				return account, nil
			}
			return nil, err
		}

		err = accounts.Save(ctx, account)
		if err == nil {
			return account, nil
		}

		if !goerrors.Is(err, ErrConcurrentModification) {
			return nil, err
		}

		logger.Debug("account update lost a version race", "account_id", id, "attempt", attempt)
	}

	return nil, ErrConcurrentModification
}

func (s *AccountStore) findOne(ctx context.Context, scope func(*bun.SelectQuery) *bun.SelectQuery) (*Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	account := &Account{}
	err := scope(s.db.NewSelect().Model(account)).Limit(1).Scan(ctx)
	if err != nil {
		return nil, s.notFoundOr(err, "failed to load account")
	}

	return ensureSessions(account), nil
}

func (s *AccountStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *AccountStore) newID(email string) uuid.UUID {
	if s.deterministicIDs {
		if id, err := hashid.NewUUID(email); err == nil {
			return id
		}
	}
	return uuid.New()
}

func (s *AccountStore) notFoundOr(err error, msg string) error {
	if repository.IsRecordNotFound(err) || goerrors.Is(err, sql.ErrNoRows) {
		return ErrAccountNotFound
	}
	return s.wrapErr(err, msg)
}

func (s *AccountStore) wrapErr(err error, msg string) error {
	if goerrors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("account store call timed out", "timeout", s.timeout)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "account store timed out")
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

func ensureSessions(account *Account) *Account {
	if account.ActiveSessions == nil {
		account.ActiveSessions = []SessionRecord{}
	}
	return account
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key")
}
