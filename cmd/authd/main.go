package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	auth "github.com/goliatone/go-session-auth"
	"github.com/goliatone/go-session-auth/activitymap"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	env    EnvConfig
	db     *bun.DB
	svc    *auth.Service
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("authd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	envCfg, err := LoadEnvConfig()
	if err != nil {
		lgr.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if envCfg.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybePrettyJSON(map[string]any{
			"addr":      envCfg.Addr,
			"postgres":  envCfg.isPostgres(),
			"mode":      envCfg.Mode,
			"transport": envCfg.Transport,
			"smtp":      envCfg.SMTPAddr != "",
		}))
		fmt.Println("============")
	}

	app := &App{env: envCfg, logger: lgr}
	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		lgr.Error("persistence setup failed", "error", err)
		os.Exit(1)
	}
	defer app.db.Close()

	if err := WithService(ctx, app); err != nil {
		lgr.Error("service setup failed", "error", err)
		os.Exit(1)
	}

	WithHTTPServer(app)

	go func() {
		if err := app.srv.Serve(envCfg.Addr); err != nil {
			lgr.Error("http server stopped", "error", err)
		}
	}()

	sig := WaitExitSignal()
	lgr.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("http shutdown error", "error", err)
	}
}

// WithPersistence opens the database named by the DSN and migrates it
func WithPersistence(ctx context.Context, app *App) error {
	var db *bun.DB
	if app.env.isPostgres() {
		sqldb, err := sql.Open("pgx", app.env.DSN)
		if err != nil {
			return err
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	} else {
		sqldb, err := sql.Open(sqliteshim.ShimName, app.env.DSN)
		if err != nil {
			return err
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "database is not reachable")
	}

	if err := auth.Migrate(ctx, db); err != nil {
		return err
	}

	app.db = db
	return nil
}

// WithService wires the store, mailer and activity sink into the service
func WithService(ctx context.Context, app *App) error {
	cfg := app.env.AuthConfig()
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)

	accounts := auth.NewAccountStore(app.db, hasher,
		auth.WithStoreTimeout(cfg.StoreTimeout),
		auth.WithDeterministicIDs(cfg.DeterministicIDs),
		auth.WithStoreLogger(app.GetLogger("store")),
	)

	var mailer auth.Mailer = auth.NewLogMailer(app.GetLogger("mail"))
	if app.env.SMTPAddr != "" {
		smtpMailer, err := auth.NewSMTPMailer(app.env.SMTPAddr, app.env.SMTPUsername, app.env.SMTPPassword, cfg.MailFrom)
		if err != nil {
			return err
		}
		mailer = smtpMailer
	}

	svc, err := auth.NewService(cfg, accounts,
		auth.WithHasher(hasher),
		auth.WithMailer(mailer),
		auth.WithActivitySink(activitySink(app.GetLogger("activity"))),
		auth.WithLogger(app.GetLogger("auth")),
	)
	if err != nil {
		return err
	}

	app.svc = svc
	return nil
}

func activitySink(logger glog.Logger) auth.ActivitySink {
	return activitymap.NewSink(func(_ context.Context, r activitymap.Record) error {
		logger.Info("activity",
			"verb", r.Verb,
			"actor_id", r.ActorID,
			"object_id", r.ObjectID,
			"occurred_at", r.OccurredAt,
			"metadata", r.Metadata,
		)
		return nil
	})
}

// WithHTTPServer mounts the account routes under /v1/users
func WithHTTPServer(app *App) {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.env.Debug,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	controller := auth.NewController(app.svc,
		auth.WithControllerLogger(app.GetLogger("http")),
		auth.WithControllerDebug(app.env.Debug),
	)
	auth.RegisterRoutes(srv.Router().Group("/v1/users"), controller)

	app.srv = srv
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
