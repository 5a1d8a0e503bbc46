package middleware

import (
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/labbot/core/logger"
	"github.com/m3rciful/labbot/core/metrics"
	tghelpers "github.com/m3rciful/labbot/core/telegram/helpers"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval time.Duration
	// MaxUsers bounds how many users are tracked at once.
	MaxUsers  int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// UpdateKind classifies an update for rate-limit exclusions and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil && (upd.Message.Document != nil || upd.Message.Photo != nil):
		return "document"
	case upd.Message != nil:
		return "message"
	default:
		return "other"
	}
}

// RateLimitMiddleware enforces a minimum interval between updates from the same user.
// Entries expire after Interval, so presence in the cache means "seen too recently".
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.MaxUsers <= 0 {
		opts.MaxUsers = 10000
	}
	lastSeen := expirable.NewLRU[int64, struct{}](opts.MaxUsers, nil, opts.Interval)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}
			if _, recent := lastSeen.Get(user.ID); recent {
				metrics.RateLimited.Inc()
				logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
					slog.String("status", "rate_limited"),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			lastSeen.Add(user.ID, struct{}{})
			return next(c)
		}
	}
}
