package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/labbot/core/config"
	"github.com/m3rciful/labbot/core/telegram/middleware"
	tgsender "github.com/m3rciful/labbot/core/telegram/sender"
)

// DefaultMiddlewares builds the shared middleware chain for bots.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited func(tele.Context) error) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					MaxUsers:  cfg.RateLimit.MaxUsers,
					Exclude:   ex,
					OnLimited: onLimited,
				}),
			})
		}
	}

	mws = append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
	return mws
}

// SenderOptions maps sender configuration onto dispatcher options.
func SenderOptions(cfg *coreconfig.Config) tgsender.Options {
	if cfg == nil {
		return tgsender.Options{}
	}
	return tgsender.Options{
		Workers:    cfg.Sender.Workers,
		QueueSize:  cfg.Sender.QueueSize,
		MaxRetries: cfg.Sender.MaxRetries,
	}
}
