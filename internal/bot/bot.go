// Package bot binds the lab catalogue to Telegram: commands, menu buttons,
// inline callbacks and the conversation engine.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/labbot/core/logger"
	tg "github.com/m3rciful/labbot/core/telegram"
	"github.com/m3rciful/labbot/core/telegram/helpers"
	"github.com/m3rciful/labbot/core/telegram/middleware"
	"github.com/m3rciful/labbot/core/telegram/router"
	"github.com/m3rciful/labbot/internal/conversation"
	"github.com/m3rciful/labbot/internal/menu"
	"github.com/m3rciful/labbot/internal/model"
	"github.com/m3rciful/labbot/internal/staging"
	"github.com/m3rciful/labbot/internal/store"
)

// Store is everything the bot reads and writes.
type Store interface {
	conversation.Store
	UpsertUser(ctx context.Context, tgID int64, isAdmin bool) (model.User, error)
	GetUserByTelegramID(ctx context.Context, tgID int64) (model.User, error)
	ListLabs(ctx context.Context) ([]model.Lab, error)
	ListLabsBySubject(ctx context.Context, subjectID int64) ([]model.Lab, error)
	DeleteLab(ctx context.Context, id int64) (model.Lab, []model.LabFile, error)
	DeleteSubject(ctx context.Context, id int64) (model.Subject, []model.LabFile, error)
	Overview(ctx context.Context) ([]model.SubjectLabs, error)
	GetLabFile(ctx context.Context, id int64) (model.LabFile, error)
	ListLabFiles(ctx context.Context, labID int64) ([]model.LabFile, error)
}

// Options configures a Bot.
type Options struct {
	Store Store
	Files *staging.Service
	// AdminID is the Telegram user promoted to admin on /start.
	AdminID        int64
	RemoveOnDelete bool
	Now            func() time.Time
}

// Bot owns the handlers and the conversation engine.
type Bot struct {
	store          Store
	files          *staging.Service
	engine         *conversation.Engine
	adminID        int64
	removeOnDelete bool
	now            func() time.Time
}

// New builds a Bot.
func New(opts Options) *Bot {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Bot{
		store:          opts.Store,
		files:          opts.Files,
		engine:         conversation.New(opts.Store, opts.Files),
		adminID:        opts.AdminID,
		removeOnDelete: opts.RemoveOnDelete,
		now:            now,
	}
}

// InProgress implements router.FSM.
func (b *Bot) InProgress(userID int64) bool {
	return b.engine.InProgress(userID)
}

// Offer implements router.FSM.
func (b *Bot) Offer(c tele.Context) (bool, error) {
	return b.engine.Handle(helpers.BuildContext(c), inputFrom(c), newChannel(c))
}

// IsAdmin consults the stored admin flag of tgID.
func (b *Bot) IsAdmin(tgID int64) bool {
	return b.isAdmin(context.Background(), tgID)
}

func (b *Bot) isAdmin(ctx context.Context, tgID int64) bool {
	u, err := b.store.GetUserByTelegramID(ctx, tgID)
	return adminFlag(ctx, u, err)
}

// viewerIsAdmin reports whether the author of c may see admin buttons.
func (b *Bot) viewerIsAdmin(ctx context.Context, c tele.Context) bool {
	u, err := helpers.CurrentUser[model.User](ctx, c, b.store)
	return adminFlag(ctx, u, err)
}

// adminFlag treats an unknown user or a failed lookup as a non-admin.
func adminFlag(ctx context.Context, u model.User, err error) bool {
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn(ctx, logger.CompBot, "bot.admin_check.fail", logger.Err(err))
		}
		return false
	}
	return u.IsAdmin
}

func (b *Bot) adminOptions() middleware.AdminOptions {
	return middleware.AdminOptions{
		IsAdmin: b.IsAdmin,
		OnReject: func(c tele.Context) error {
			logger.Info(helpers.BuildContext(c), logger.CompBot, "bot.access_denied",
				slog.Int64("user", helpers.SenderID(c)),
			)
			return show(c, menu.AccessDenied())
		},
	}
}

// Routes returns every route the bot serves; Register must be called first.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		Admin: b.adminOptions(),
		FSM:   b,
	})
	routes = append(routes, router.CallbackRoute(reg, b))
	return append(routes, router.TextRoutes(b, reg)...)
}

// show renders v into the chat of c, editing the pressed message when v asks for it.
func show(c tele.Context, v menu.View) error {
	markup := v.Markup()
	edit := v.Edit && c.Callback() != nil
	switch {
	case edit && v.HTML:
		return helpers.EditOrSendHTML(c, v.Text, markup)
	case edit:
		return helpers.EditOrSendText(c, v.Text, markup)
	case v.HTML:
		return helpers.SendHTML(c, v.Text, markup)
	}
	return helpers.SendText(c, v.Text, markup)
}
