package auth

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const migrationsRoot = "data/sql/migrations"

// goose keeps its base FS and dialect in package globals
var gooseMu sync.Mutex

// Migrate applies the embedded migrations matching the dialect of db
func Migrate(ctx context.Context, db *bun.DB) error {
	var gooseDialect, dir string
	switch db.Dialect().Name() {
	case dialect.SQLite:
		gooseDialect, dir = "sqlite3", migrationsRoot+"/sqlite"
	case dialect.PG:
		gooseDialect, dir = "postgres", migrationsRoot+"/postgres"
	default:
		return goerrors.New("unsupported database dialect", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"dialect": db.Dialect().Name().String()})
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(gooseDialect); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set migration dialect")
	}

	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations")
	}

	return nil
}
