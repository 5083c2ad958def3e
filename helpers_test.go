package auth

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const testSigningKey = "0123456789abcdef-test-signing-key"

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// every connection to :memory: is a new database
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, Migrate(context.Background(), db))

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// plainHasher keeps tests fast, bcrypt has its own tests
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}
	return "plain:" + password, nil
}

func (plainHasher) Compare(password, hash string) error {
	if !strings.HasPrefix(hash, "plain:") || hash != "plain:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+msg+formatArgs(args))
}

func (l *captureLogger) Debug(msg string, args ...any) { l.log("DBG", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.log("INF", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.log("WRN", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.log("ERR", msg, args...) }

func (l *captureLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SigningKey = testSigningKey
	cfg.CookieSecure = false
	return cfg
}

type testEnv struct {
	db     *bun.DB
	cfg    Config
	clock  *testClock
	store  *AccountStore
	codec  *TokenService
	logger *captureLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newTestClock()
	logger := &captureLogger{}
	db := newTestDB(t)
	cfg := testConfig()

	return &testEnv{
		db:     db,
		cfg:    cfg,
		clock:  clock,
		logger: logger,
		store: NewAccountStore(db, plainHasher{},
			WithStoreClock(clock.Now),
			WithStoreLogger(logger),
			WithStoreTimeout(time.Second),
		),
		codec: NewTokenService(cfg, WithTokenClock(clock.Now), WithTokenLogger(logger)),
	}
}

func (e *testEnv) register(t *testing.T, email, password string) *Account {
	t.Helper()
	account, err := e.store.Create(context.Background(), Registration{
		Name:     "Test User",
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return account
}

// activate registers an account and moves it straight to active
func (e *testEnv) activate(t *testing.T, email, password string) *Account {
	t.Helper()
	account := e.register(t, email, password)
	updated, err := e.store.Update(context.Background(), account.ID.String(), func(a *Account) error {
		a.Status = AccountActive
		a.VerificationToken = ""
		return nil
	})
	require.NoError(t, err)
	return updated
}
