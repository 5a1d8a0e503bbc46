package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/labbot/core/bootstrap"
	"github.com/m3rciful/labbot/core/logger"
	coretelegram "github.com/m3rciful/labbot/core/telegram"
	"github.com/m3rciful/labbot/core/telegram/helpers"
	"github.com/m3rciful/labbot/internal/bot"
	"github.com/m3rciful/labbot/internal/config"
	"github.com/m3rciful/labbot/internal/ops"
	"github.com/m3rciful/labbot/internal/staging"
	"github.com/m3rciful/labbot/internal/store"
	"github.com/m3rciful/labbot/migrations"
)

const msgRateLimited = "Слишком много запросов, подождите немного."

type application struct {
	cfg   *config.Config
	db    *sqlx.DB
	store *store.Store
	bot   *bot.Bot
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: migrations.FS,
		Tables:     migrations.Tables,
		Modules: bootstrap.Modules{Seeders: []bootstrap.Seeder{
			adminSync(cfg.Telegram.AdminID),
		}},
	})
	if err != nil {
		return nil, err
	}

	files, err := staging.New(cfg.Uploads.Dir)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	st := store.New(res.DB)
	return &application{
		cfg:   cfg,
		db:    res.DB,
		store: st,
		bot: bot.New(bot.Options{
			Store:          st,
			Files:          files,
			AdminID:        cfg.Telegram.AdminID,
			RemoveOnDelete: cfg.Uploads.RemoveOnDelete,
		}),
	}, nil
}

// adminSync recomputes is_admin for every stored user from the configured admin id.
func adminSync(adminID int64) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		n, err := store.New(db).SyncAdminFlags(ctx, adminID)
		if err != nil {
			return fmt.Errorf("sync admin flags: %w", err)
		}
		logger.Info(ctx, logger.CompStore, "store.users.admin_sync", slog.Int64("updated", n))
		return nil
	})
}

func (a *application) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("register handlers: %w", err)
	}
	core := a.cfg.CoreConfig()
	return coretelegram.RunOptions{
		Config:            core,
		Registry:          reg,
		DispatcherOptions: coretelegram.SenderOptions(core),
		Middlewares: coretelegram.DefaultMiddlewares(core, func(c tele.Context) error {
			return helpers.SendText(c, msgRateLimited)
		}),
		Routes:  a.bot.Routes(reg),
		OnStart: a.start,
		OnStop:  a.stop,
	}, nil
}

func (a *application) start(ctx context.Context, _ coretelegram.Runtime) error {
	if a.cfg.Ops.Listen == "" {
		return nil
	}
	srv := ops.New(a.cfg.Ops.Listen, a.store)
	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.Error(ctx, logger.CompOps, "ops.fail", logger.Err(err))
		}
	}()
	return nil
}

func (a *application) stop(ctx context.Context, _ coretelegram.Runtime) error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	logger.Info(ctx, logger.CompApp, "app.db.closed")
	return nil
}
