package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/labbot/core/logger"
	"github.com/m3rciful/labbot/core/metrics"
	"github.com/m3rciful/labbot/core/telegram/format"
	"github.com/m3rciful/labbot/core/telegram/state"
	"github.com/m3rciful/labbot/internal/action"
	"github.com/m3rciful/labbot/internal/menu"
	"github.com/m3rciful/labbot/internal/model"
	"github.com/m3rciful/labbot/internal/store"
)

func (e *Engine) handleAddSubject(ctx context.Context, in Input, ch Channel) (bool, error) {
	if in.Kind != InputText {
		return unexpected(in), nil
	}
	name := strings.TrimSpace(in.Text)
	if name == "" {
		return true, ch.Reply(ctx, menu.Text(msgEmptySubjectName))
	}
	e.finish(in.UserID)

	subj, err := e.store.CreateSubject(ctx, name)
	switch {
	case errors.Is(err, store.ErrConflict):
		rejected(ctx, AddSubject, "conflict")
		return true, ch.Reply(ctx, menu.Text(fmt.Sprintf(msgSubjectExists, name)))
	case err != nil:
		return true, e.storeFailure(ctx, AddSubject, err, ch)
	}
	committed(ctx, AddSubject, slog.Int64("subject_id", subj.ID))
	return true, ch.Reply(ctx, menu.Text(fmt.Sprintf(msgSubjectAdded, subj.Name)))
}

func (e *Engine) handleNotify(ctx context.Context, in Input, ch Channel) (bool, error) {
	if in.Kind != InputText {
		return unexpected(in), nil
	}
	e.finish(in.UserID)

	users, err := e.store.ListUsers(ctx)
	if err != nil {
		return true, e.storeFailure(ctx, Notify, err, ch)
	}
	sent := e.broadcast(ctx, users, msgBroadcastPrefix+in.Text, ch)
	committed(ctx, Notify,
		slog.Int("recipients", len(users)),
		slog.Int("sent", sent),
	)
	return true, ch.Reply(ctx, menu.Text(fmt.Sprintf(msgBroadcastDone, sent)))
}

// broadcast sends text to every user one after another; a failed delivery is logged and skipped.
func (e *Engine) broadcast(ctx context.Context, users []model.User, text string, ch Channel) int {
	sent := 0
	for _, u := range users {
		if err := ch.SendTo(ctx, u.TgID, text); err != nil {
			metrics.Broadcasts.WithLabelValues("failed").Inc()
			logger.Warn(ctx, logger.CompConversation, "conversation.broadcast.skip",
				slog.Int64("recipient", u.TgID),
				logger.Err(err),
			)
			continue
		}
		metrics.Broadcasts.WithLabelValues("sent").Inc()
		sent++
	}
	return sent
}

func (e *Engine) handleEditSubject(ctx context.Context, d *EditSubjectDraft, in Input, ch Channel) (bool, error) {
	if in.Kind != InputText {
		return unexpected(in), nil
	}
	name := strings.TrimSpace(in.Text)
	if name == "" {
		return true, ch.Reply(ctx, menu.Text(msgEmptySubjectName))
	}
	e.finish(in.UserID)

	old, err := e.store.GetSubject(ctx, d.SubjectID)
	if err == nil {
		err = e.store.RenameSubject(ctx, d.SubjectID, name)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		rejected(ctx, EditSubject, "not_found")
		return true, ch.Reply(ctx, menu.Text(msgSubjectNotFound))
	case errors.Is(err, store.ErrConflict):
		rejected(ctx, EditSubject, "conflict")
		return true, ch.Reply(ctx, menu.Text(fmt.Sprintf(msgSubjectExists, name)))
	case err != nil:
		return true, e.storeFailure(ctx, EditSubject, err, ch)
	}
	committed(ctx, EditSubject, slog.Int64("subject_id", d.SubjectID))
	return true, ch.Reply(ctx, menu.Text(fmt.Sprintf(msgSubjectRenamed, old.Name, name)))
}

var editPrompts = map[LabField]string{
	FieldTitle:    promptEditTitle,
	FieldDesc:     promptEditDesc,
	FieldDeadline: promptEditDeadline,
}

func (e *Engine) handleEditLab(ctx context.Context, step state.State, d *EditLabDraft, in Input, ch Channel) (bool, error) {
	if step == StepEditLabField {
		if in.Kind != InputCallback {
			return unexpected(in), nil
		}
		switch in.Action.Kind {
		case action.EditLabTitle:
			d.Field = FieldTitle
		case action.EditLabDesc:
			d.Field = FieldDesc
		case action.EditLabDeadline:
			d.Field = FieldDeadline
		default:
			return false, nil
		}
		e.advance(in.UserID, StepEditLabValue, d)
		return true, ch.Reply(ctx, menu.Text(editPrompts[d.Field]))
	}

	var value string
	switch {
	case in.Kind == InputText:
		value = strings.TrimSpace(in.Text)
	case in.Kind == InputCommand && in.Text == CmdSkip && d.Field != FieldTitle:
	default:
		return unexpected(in), nil
	}
	if d.Field == FieldTitle && value == "" {
		return true, ch.Reply(ctx, menu.Text(msgEmptyLabTitle))
	}
	e.finish(in.UserID)

	lab, err := e.store.GetLab(ctx, d.LabID)
	if err == nil {
		switch d.Field {
		case FieldTitle:
			lab.Title = value
		case FieldDesc:
			lab.Desc = format.StringPtr(value)
		case FieldDeadline:
			lab.Deadline = format.StringPtr(value)
		}
		err = e.store.UpdateLab(ctx, lab)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		rejected(ctx, EditLab, "not_found")
		return true, ch.Reply(ctx, menu.Text(msgLabNotFound))
	case err != nil:
		return true, e.storeFailure(ctx, EditLab, err, ch)
	}
	committed(ctx, EditLab,
		slog.Int64("lab_id", lab.ID),
		slog.String("field", string(d.Field)),
	)
	return true, ch.Reply(ctx, menu.Text(fmt.Sprintf(msgLabUpdated, lab.Title)))
}
