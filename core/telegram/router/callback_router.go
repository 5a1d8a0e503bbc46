package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/labbot/core/telegram"
	"github.com/m3rciful/labbot/core/telegram/callbacks"
)

// CallbackRoute returns a handler that offers callbacks to an active conversation
// first and then routes them through the registry by key.
func CallbackRoute(reg *tg.Registry, fsm FSM) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}
		_ = c.Respond()

		key := callbacks.CallbackKey(c)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		if fsm != nil && c.Sender() != nil && fsm.InProgress(c.Sender().ID) {
			var handled bool
			err := handleWithSummary(c, "fsm."+normalizeHandlerName(key), start, func() error {
				var err error
				handled, err = fsm.Offer(c)
				return err
			}, extras...)
			if handled || err != nil {
				return err
			}
			start = time.Now()
		}

		cbHandler, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			if fallback := reg.CallbackNotFound(); fallback != nil {
				return handleWithSummary(c, name, start, func() error {
					return fallback(c)
				}, append(extras, slog.String("reason", "not_found"))...)
			}
			logHandlerSummary(c, name, start, "skip", nil, append(extras, slog.String("reason", "not_found"))...)
			return nil
		}

		return handleWithSummary(c, name, start, func() error {
			return cbHandler(c)
		}, extras...)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
