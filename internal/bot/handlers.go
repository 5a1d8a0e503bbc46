package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/labbot/core/logger"
	tg "github.com/m3rciful/labbot/core/telegram"
	"github.com/m3rciful/labbot/core/telegram/commands"
	"github.com/m3rciful/labbot/core/telegram/helpers"
	"github.com/m3rciful/labbot/core/telegram/middleware"
	"github.com/m3rciful/labbot/internal/action"
	"github.com/m3rciful/labbot/internal/conversation"
	"github.com/m3rciful/labbot/internal/menu"
	"github.com/m3rciful/labbot/internal/model"
	"github.com/m3rciful/labbot/internal/store"
)

const (
	msgLabDeleted     = "Лабораторная '%s' удалена!"
	msgSubjectDeleted = "Предмет '%s' и все связанные лабораторные удалены!"
	msgLabNotFound    = "Лабораторная не найдена."
	msgSubjectMissing = "Предмет не найден."
	msgLoadFailure    = "❌ Произошла ошибка при получении данных"
	msgDeleteFailure  = "❌ Не удалось удалить, попробуйте позже."
	msgStrayFile      = "Файлы принимаются только при добавлении лабораторной."
)

// Register puts every command, menu button and callback of the bot into reg.
func (b *Bot) Register(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{Handler: b.handleStart, Description: "Главное меню"})
	reg.RegisterCommand("/admin", commands.Command{Handler: b.handleAdmin, Description: "Админ панель", AdminOnly: true})
	reg.RegisterCommand("/cancel", commands.Command{Handler: b.handleCancel, Description: "Отменить текущее действие"})

	adminOnly := middleware.AdminOnlyMiddleware(b.adminOptions())
	reg.RegisterMenuButton(commands.MenuButton{Label: menu.LabelSubjects, Handler: b.handleSubjects})
	reg.RegisterMenuButton(commands.MenuButton{Label: menu.LabelActual, Handler: b.handleActual})
	reg.RegisterMenuButton(commands.MenuButton{Label: menu.LabelAdmin, Handler: adminOnly(b.handleAdmin)})

	public := map[action.Kind]func(tele.Context, action.Action) error{
		action.Subject:        b.showSubject,
		action.Lab:            b.showLab,
		action.LabFiles:       b.showLabFiles,
		action.DownloadFile:   b.downloadFile,
		action.BackToSubjects: b.backToSubjects,
	}
	admin := map[action.Kind]func(tele.Context, action.Action) error{
		action.DeleteLab:      b.deleteLab,
		action.EditLab:        b.begin(conversation.EditLab),
		action.DeleteSubject:  b.deleteSubject,
		action.EditSubject:    b.begin(conversation.EditSubject),
		action.AddSubject:     b.begin(conversation.AddSubject),
		action.Notify:         b.begin(conversation.Notify),
		action.AddLab:         b.begin(conversation.AddLab),
		action.ManageSubjects: b.manageSubjects,
		action.ManageLabs:     b.manageLabs,
		action.BackToAdmin:    b.backToAdmin,
	}
	var errs []error
	for kind, h := range public {
		errs = append(errs, reg.RegisterCallback(kind.Tag(), withAction(h)))
	}
	for kind, h := range admin {
		errs = append(errs, reg.RegisterCallback(kind.Tag(), adminOnly(withAction(h))))
	}
	reg.SetDocumentFallback(func(c tele.Context) error {
		return helpers.SendText(c, msgStrayFile)
	})
	return errors.Join(errs...)
}

// withAction decodes the callback data before calling h; malformed data is dropped.
func withAction(h func(tele.Context, action.Action) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		a, err := action.Parse(c.Callback().Data)
		if err != nil {
			logger.Warn(helpers.BuildContext(c), logger.CompBot, "bot.callback.malformed",
				slog.String("data", logger.SanitizeLimit(c.Callback().Data, 64)),
				logger.Err(err),
			)
			return nil
		}
		return h(c, a)
	}
}

func (b *Bot) handleStart(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	id := helpers.SenderID(c)
	u, err := b.store.UpsertUser(ctx, id, id == b.adminID)
	if err != nil {
		logger.Error(ctx, logger.CompBot, "bot.start.upsert_fail", logger.Err(err))
		return helpers.SendText(c, msgLoadFailure)
	}
	if err := show(c, menu.Main(u.IsAdmin)); err != nil {
		return err
	}
	if u.IsAdmin {
		return show(c, menu.AdminPanel())
	}
	return nil
}

func (b *Bot) handleAdmin(c tele.Context) error {
	return show(c, menu.AdminPanel())
}

func (b *Bot) handleCancel(c tele.Context) error {
	return b.engine.Cancel(helpers.BuildContext(c), helpers.SenderID(c), newChannel(c))
}

func (b *Bot) handleSubjects(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	subjects, err := b.store.ListSubjects(ctx)
	if err != nil {
		return b.loadFailed(ctx, c, "subjects", err)
	}
	return show(c, menu.SubjectList(subjects))
}

func (b *Bot) handleActual(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	overview, err := b.store.Overview(ctx)
	if err != nil {
		return b.loadFailed(ctx, c, "actual", err)
	}
	return show(c, menu.Actual(overview, b.now()))
}

func (b *Bot) showSubject(c tele.Context, a action.Action) error {
	ctx := helpers.BuildContext(c)
	subj, err := b.store.GetSubject(ctx, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return helpers.SendText(c, msgSubjectMissing)
	}
	if err != nil {
		return b.loadFailed(ctx, c, "subject", err)
	}
	labs, err := b.store.ListLabsBySubject(ctx, subj.ID)
	if err != nil {
		return b.loadFailed(ctx, c, "subject", err)
	}
	return show(c, menu.SubjectDetails(subj, labs, b.viewerIsAdmin(ctx, c)))
}

func (b *Bot) showLab(c tele.Context, a action.Action) error {
	ctx := helpers.BuildContext(c)
	lab, err := b.store.GetLab(ctx, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return helpers.SendText(c, msgLabNotFound)
	}
	if err != nil {
		return b.loadFailed(ctx, c, "lab", err)
	}
	subj, err := b.store.GetSubject(ctx, lab.SubjectID)
	if err != nil {
		return b.loadFailed(ctx, c, "lab", err)
	}
	return show(c, menu.LabDetails(lab, subj, b.viewerIsAdmin(ctx, c)))
}

func (b *Bot) showLabFiles(c tele.Context, a action.Action) error {
	ctx := helpers.BuildContext(c)
	lab, err := b.store.GetLab(ctx, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return helpers.SendText(c, msgLabNotFound)
	}
	if err != nil {
		return b.loadFailed(ctx, c, "lab_files", err)
	}
	files, err := b.store.ListLabFiles(ctx, lab.ID)
	if err != nil {
		return b.loadFailed(ctx, c, "lab_files", err)
	}
	return show(c, menu.LabFiles(lab, files))
}

func (b *Bot) backToSubjects(c tele.Context, _ action.Action) error {
	ctx := helpers.BuildContext(c)
	subjects, err := b.store.ListSubjects(ctx)
	if err != nil {
		return b.loadFailed(ctx, c, "subjects", err)
	}
	v := menu.SubjectList(subjects)
	v.Edit = true
	return show(c, v)
}

func (b *Bot) backToAdmin(c tele.Context, _ action.Action) error {
	v := menu.AdminPanel()
	v.Edit = true
	return show(c, v)
}

func (b *Bot) manageSubjects(c tele.Context, _ action.Action) error {
	ctx := helpers.BuildContext(c)
	subjects, err := b.store.ListSubjects(ctx)
	if err != nil {
		return b.loadFailed(ctx, c, "manage_subjects", err)
	}
	return show(c, menu.ManageSubjects(subjects))
}

func (b *Bot) manageLabs(c tele.Context, _ action.Action) error {
	ctx := helpers.BuildContext(c)
	labs, err := b.store.ListLabs(ctx)
	if err != nil {
		return b.loadFailed(ctx, c, "manage_labs", err)
	}
	return show(c, menu.ManageLabs(labs))
}

// begin returns a callback handler that starts wf on the entity carried by the button.
func (b *Bot) begin(wf conversation.Workflow) func(tele.Context, action.Action) error {
	return func(c tele.Context, a action.Action) error {
		return b.engine.Begin(helpers.BuildContext(c), helpers.SenderID(c), wf, a.ID, newChannel(c))
	}
}

func (b *Bot) deleteLab(c tele.Context, a action.Action) error {
	ctx := helpers.BuildContext(c)
	lab, files, err := b.store.DeleteLab(ctx, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return helpers.SendText(c, msgLabNotFound)
	}
	if err != nil {
		logger.Error(ctx, logger.CompBot, "bot.lab.delete_fail", slog.Int64("lab_id", a.ID), logger.Err(err))
		return helpers.SendText(c, msgDeleteFailure)
	}
	b.dropFiles(ctx, files)
	logger.Info(ctx, logger.CompBot, "bot.lab.deleted",
		slog.Int64("lab_id", lab.ID),
		slog.Int("files", len(files)),
	)
	return helpers.SendText(c, fmt.Sprintf(msgLabDeleted, lab.Title))
}

func (b *Bot) deleteSubject(c tele.Context, a action.Action) error {
	ctx := helpers.BuildContext(c)
	subj, files, err := b.store.DeleteSubject(ctx, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return helpers.SendText(c, msgSubjectMissing)
	}
	if err != nil {
		logger.Error(ctx, logger.CompBot, "bot.subject.delete_fail", slog.Int64("subject_id", a.ID), logger.Err(err))
		return helpers.SendText(c, msgDeleteFailure)
	}
	b.dropFiles(ctx, files)
	logger.Info(ctx, logger.CompBot, "bot.subject.deleted",
		slog.Int64("subject_id", subj.ID),
		slog.Int("files", len(files)),
	)
	return helpers.SendText(c, fmt.Sprintf(msgSubjectDeleted, subj.Name))
}

// dropFiles removes the disk copies of deleted rows when configured to; by default they stay.
func (b *Bot) dropFiles(ctx context.Context, files []model.LabFile) {
	if !b.removeOnDelete || len(files) == 0 {
		return
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.FilePath)
	}
	b.files.Discard(ctx, paths...)
}

func (b *Bot) loadFailed(ctx context.Context, c tele.Context, view string, err error) error {
	logger.Error(ctx, logger.CompBot, "bot.load_fail",
		slog.String("view", view),
		logger.Err(err),
	)
	return helpers.SendText(c, msgLoadFailure)
}
