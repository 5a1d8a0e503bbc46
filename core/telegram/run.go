package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/labbot/core/config"
	"github.com/m3rciful/labbot/core/logger"
	tghelpers "github.com/m3rciful/labbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/labbot/core/telegram/sender"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram composes and runs a Telegram bot until the provided context is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}

	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})

	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(),
		OnError: func(err error, c tele.Context) {
			logCtx := context.Background()
			if c != nil {
				logCtx = tghelpers.BuildContext(c)
			}
			logger.Error(logCtx, "tg", "handler.unhandled_error", logger.Err(err))
		},
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	announceMode(ctx, poller, cfg, time.Since(buildStart))
	if _, webhook := poller.(*tele.Webhook); !webhook && !opts.DisableWebhookCleanup {
		dropStaleWebhook(bot)
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(dispatcher)
	}
	teardown := func() {
		dispatcher.Close()
		if !opts.DisableHelperDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}
	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
	SetupCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			teardown()
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	// OnStop may still reply, so the sender closes after it
	teardown()

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func announceMode(ctx context.Context, poller tele.Poller, cfg *coreconfig.Config, took time.Duration) {
	if wh, ok := poller.(*tele.Webhook); ok {
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", wh.Listen),
			slog.String("public_url", wh.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return
	}
	timeout := 10
	if cfg.Telegram.LongPollTimeoutSeconds > 0 {
		timeout = cfg.Telegram.LongPollTimeoutSeconds
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode",
		slog.String("mode", "polling"),
		slog.Int("timeout_seconds", timeout),
		slog.Duration("duration", logger.RoundMS(took)),
	)
}

// dropStaleWebhook clears a webhook left by an earlier deployment; while set, getUpdates fails.
func dropStaleWebhook(bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.LogEvent(context.Background(), logger.TG, slog.LevelWarn, "delete_webhook", slog.String("status", "fail"), logger.Err(err))
		return
	}
	logger.LogEvent(context.Background(), logger.TG, slog.LevelInfo, "delete_webhook", slog.String("status", "ok"))
}
