package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/labbot/core/logger"
)

// RunMigrations applies all up migrations found at the root of fsys.
// Each attempt waits for the database first; failures are retried with a fixed
// backoff up to cfg.MigrateAttempts times.
func RunMigrations(ctx context.Context, cfg Config, fsys fs.FS) error {
	files := listMigrationFiles(fsys)
	preview, truncated := logger.SummarizeStrings(files, 6)
	args := []any{
		slog.String("event", "resolve"),
		slog.Int("files_total", len(files)),
	}
	if preview != "" {
		args = append(args, slog.String("files_preview", preview))
	}
	if truncated {
		args = append(args, slog.Bool("files_truncated", true))
	}
	logger.MIG.Debug("migrations resolved", args...)

	attempts := cfg.MigrateAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		lastErr = migrateOnce(ctx, cfg, fsys, files)
		if lastErr == nil {
			return nil
		}
		logger.MIG.Warn("migration attempt failed",
			slog.String("event", "retry"),
			slog.Int("attempt", i),
			slog.Int("attempts", attempts),
			slog.Duration("backoff", cfg.MigrateBackoff),
			slog.String("err", lastErr.Error()),
		)
		if i == attempts {
			break
		}
		if err := sleepCtx(ctx, cfg.MigrateBackoff); err != nil {
			return err
		}
	}
	logger.MIG.Error("schema unavailable",
		slog.String("event", "abort"),
		slog.Int("attempts", attempts),
		slog.String("err", lastErr.Error()),
	)
	return fmt.Errorf("migrations failed after %d attempts: %w", attempts, lastErr)
}

func migrateOnce(ctx context.Context, cfg Config, fsys fs.FS, files []string) error {
	if err := WaitForPostgres(ctx, cfg.DSN(), 1, 0); err != nil {
		return err
	}

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL())
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	fromVer, _, _ := m.Version()

	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)

	if errors.Is(upErr, migrate.ErrNoChange) {
		logger.MIG.Info("migrations summary",
			slog.String("event", "summary"),
			slog.Uint64("from_ver", uint64(fromVer)),
			slog.Uint64("to_ver", uint64(fromVer)),
			slog.Int("files", 0),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return nil
	}
	if upErr != nil {
		return fmt.Errorf("apply migrations: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	if len(applied) > 0 {
		previewApplied, truncatedApplied := logger.SummarizeStrings(applied, 6)
		logger.MIG.Debug("applied files",
			slog.String("event", "apply"),
			slog.Int("files_total", len(applied)),
			slog.String("files_preview", previewApplied),
			slog.Bool("files_truncated", truncatedApplied),
		)
	}

	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", countApplied(files, uint64(fromVer), uint64(toVer))),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return nil
}

// VerifySchema checks that every named table exists in the current schema.
func VerifySchema(ctx context.Context, db *sqlx.DB, tables ...string) error {
	var present []string
	err := db.SelectContext(ctx, &present,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema()`)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	missing := missingTables(present, tables)
	if len(missing) > 0 {
		return fmt.Errorf("schema incomplete, missing tables: %s", strings.Join(missing, ", "))
	}
	logger.MIG.Debug("schema verified",
		slog.String("event", "verify"),
		slog.Int("tables", len(tables)),
	)
	return nil
}

func missingTables(present, want []string) []string {
	have := make(map[string]struct{}, len(present))
	for _, t := range present {
		have[t] = struct{}{}
	}
	var missing []string
	for _, t := range want {
		if _, ok := have[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

func listMigrationFiles(fsys fs.FS) []string {
	if fsys == nil {
		return nil
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name := e.Name(); strings.HasSuffix(name, ".up.sql") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func parseVersion(name string) uint64 {
	parts := strings.SplitN(name, "_", 2)
	v, _ := strconv.ParseUint(parts[0], 10, 64)
	return v
}

func countApplied(files []string, from, to uint64) int {
	return len(selectApplied(files, from, to))
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		v := parseVersion(f)
		if v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
