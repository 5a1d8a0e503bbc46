package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/labbot/core/logger"
	"github.com/m3rciful/labbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/labbot/core/telegram/helpers"
)

// recentUpdates remembers update ids already logged, since the middleware
// may wrap several route branches.
var recentUpdates = expirable.NewLRU[int, struct{}](4096, nil, 10*time.Second)

func alreadyLogged(updateID int) bool {
	if _, ok := recentUpdates.Get(updateID); ok {
		return true
	}
	recentUpdates.Add(updateID, struct{}{})
	return false
}

// LoggerMiddleware sets the rid and logs a single receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if user := c.Sender(); user != nil {
			userID = user.ID
		}
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)

		ctx := logger.WithRID(context.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.TG)
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && !alreadyLogged(upd.ID) {
			attrs := []slog.Attr{slog.String("status", "ok")}
			switch {
			case upd.Callback != nil:
				key, payload := callbacks.ParseCallbackData(upd.Callback.Data)
				attrs = append(attrs,
					slog.String("cb_key", logger.SanitizeLimit(key, 64)),
					slog.String("payload", logger.SanitizeLimit(payload, 64)),
				)
			case upd.Message != nil && upd.Message.Document != nil:
				attrs = append(attrs, slog.String("file_name", logger.SanitizeLimit(upd.Message.Document.FileName, 128)))
			case upd.Message != nil:
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
			}
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}
