package router

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/labbot/core/logger"
	tg "github.com/m3rciful/labbot/core/telegram"
	"github.com/m3rciful/labbot/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	Admin middleware.AdminOptions
	// FSM receives commands first while a conversation is active (/cancel, /done, /skip).
	FSM FSM
}

// CommandRoutes prepares command handlers wrapped with admin checks and a handler summary.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		name := normalizeHandlerName(cmd)
		h := def.Handler
		if def.AdminOnly {
			h = middleware.AdminOnlyMiddleware(opts.Admin)(h)
		}
		inner := h
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler: func(c tele.Context) error {
				start := time.Now()
				if opts.FSM != nil && c.Sender() != nil && opts.FSM.InProgress(c.Sender().ID) {
					var handled bool
					err := handleWithSummary(c, "fsm."+name, start, func() error {
						var err error
						handled, err = opts.FSM.Offer(c)
						return err
					})
					if handled || err != nil {
						return err
					}
					start = time.Now()
				}
				return handleWithSummary(c, name, start, func() error { return inner(c) })
			},
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
