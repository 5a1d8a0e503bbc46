package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/labbot/core/config"
	coredatabase "github.com/m3rciful/labbot/core/database"
	"github.com/m3rciful/labbot/core/logger"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// Migrations holds *.up.sql / *.down.sql files; nil skips migrating.
	Migrations fs.FS
	// Tables must exist once migrations ran.
	Tables  []string
	Modules Modules

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config, fs.FS) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, connects to the database, applies migrations,
// checks the schema and runs the seeders.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connectWithRetry(ctx, connect, opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	if opts.Migrations != nil {
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}
		if err := migrate(ctx, opts.Database, opts.Migrations); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
	}
	if len(opts.Tables) > 0 {
		if err := coredatabase.VerifySchema(ctx, db, opts.Tables...); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
	}

	for i, s := range opts.Modules.Seeders {
		if err := s.Seed(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: seeder %d failed: %w", i, err)
		}
	}
	if n := len(opts.Modules.Seeders); n > 0 {
		logger.Info(ctx, logger.CompApp, "bootstrap.seeded", slog.Int("seeders", n))
	}

	return &Result{DB: db}, nil
}

// connectWithRetry tries connect up to cfg.MigrateAttempts times, sleeping
// cfg.MigrateBackoff between failures.
func connectWithRetry(
	ctx context.Context,
	connect func(context.Context, coredatabase.Config) (*sqlx.DB, error),
	cfg coredatabase.Config,
) (*sqlx.DB, error) {
	attempts := cfg.MigrateAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := connect(ctx, cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err
		logger.Warn(ctx, logger.CompApp, "bootstrap.connect.retry",
			slog.Int("attempt", attempt),
			slog.Int("attempts", attempts),
			slog.Duration("backoff", cfg.MigrateBackoff),
			logger.Err(err),
		)
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(cfg.MigrateBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%d attempts: %w", attempts, lastErr)
}
