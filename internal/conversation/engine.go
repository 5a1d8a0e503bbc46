package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/labbot/core/logger"
	"github.com/m3rciful/labbot/core/metrics"
	"github.com/m3rciful/labbot/core/telegram/state"
	"github.com/m3rciful/labbot/internal/apperr"
	"github.com/m3rciful/labbot/internal/menu"
	"github.com/m3rciful/labbot/internal/store"
)

// Engine owns the per-user sessions.
type Engine struct {
	sessions *state.Memory[Draft]
	store    Store
	stager   Stager
}

// New builds an engine over store and stager.
func New(st Store, stager Stager) *Engine {
	return &Engine{
		sessions: state.NewMemory[Draft](),
		store:    st,
		stager:   stager,
	}
}

// InProgress reports whether userID is inside a workflow.
func (e *Engine) InProgress(userID int64) bool {
	return e.sessions.InProgress(userID)
}

// Session exposes the current step and draft, mainly for diagnostics and tests.
func (e *Engine) Session(userID int64) state.Session[Draft] {
	return e.sessions.Get(userID)
}

// Begin starts wf for userID. An unfinished workflow is abandoned first and its
// staged files are removed. entityID is the lab or subject being edited.
func (e *Engine) Begin(ctx context.Context, userID int64, wf Workflow, entityID int64, ch Channel) error {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	if prev, ok := e.sessions.Clear(userID); ok && prev.Active() {
		e.discardDraft(ctx, prev.Draft)
		logger.Info(ctx, logger.CompConversation, "conversation.abandon",
			slog.String("workflow", string(prev.Draft.Workflow())),
			slog.String("step", string(prev.State)),
			slog.String("next", string(wf)),
		)
	}

	var (
		step  state.State
		draft Draft
		view  menu.View
	)
	switch wf {
	case AddSubject:
		step, draft, view = StepSubjectName, &SubjectDraft{}, menu.Text(promptSubjectName)
	case Notify:
		step, draft, view = StepNotifyMessage, &NotifyDraft{}, menu.Text(promptNotify)
	case AddLab:
		subjects, err := e.store.ListSubjects(ctx)
		if err != nil {
			return e.storeFailure(ctx, wf, err, ch)
		}
		if len(subjects) == 0 {
			return ch.Reply(ctx, menu.Text(msgNoSubjectsForLab))
		}
		step, draft, view = StepLabSubject, &LabDraft{}, menu.LabSubjectChoice(subjects)
	case EditLab:
		lab, err := e.store.GetLab(ctx, entityID)
		if errors.Is(err, store.ErrNotFound) {
			return ch.Reply(ctx, menu.Text(msgLabNotFound))
		}
		if err != nil {
			return e.storeFailure(ctx, wf, err, ch)
		}
		step, draft, view = StepEditLabField, &EditLabDraft{LabID: lab.ID}, menu.EditLabFields(lab)
	case EditSubject:
		subj, err := e.store.GetSubject(ctx, entityID)
		if errors.Is(err, store.ErrNotFound) {
			return ch.Reply(ctx, menu.Text(msgSubjectNotFound))
		}
		if err != nil {
			return e.storeFailure(ctx, wf, err, ch)
		}
		step, draft = StepEditSubjectName, &EditSubjectDraft{SubjectID: subj.ID}
		view = menu.Text(fmt.Sprintf(promptSubjectRename, subj.Name))
	default:
		return fmt.Errorf("conversation: unknown workflow %q", wf)
	}

	e.sessions.Set(userID, state.Session[Draft]{State: step, Draft: draft})
	logger.Info(ctx, logger.CompConversation, "conversation.begin",
		slog.String("workflow", string(wf)),
		slog.Int64("entity_id", entityID),
	)
	return ch.Reply(ctx, view)
}

// Cancel discards any draft of userID and confirms it, even when nothing was active.
func (e *Engine) Cancel(ctx context.Context, userID int64, ch Channel) error {
	unlock := e.sessions.Lock(userID)
	defer unlock()
	e.cancelLocked(ctx, userID)
	return ch.Reply(ctx, menu.Text(msgCancelled))
}

func (e *Engine) cancelLocked(ctx context.Context, userID int64) {
	prev, ok := e.sessions.Clear(userID)
	if !ok {
		return
	}
	e.discardDraft(ctx, prev.Draft)
	logger.Info(ctx, logger.CompConversation, "conversation.cancel",
		slog.String("workflow", string(prev.Draft.Workflow())),
		slog.String("step", string(prev.State)),
	)
}

// Handle feeds in to the active workflow of in.UserID. It reports false when the
// update is not meant for the workflow so the caller can route it elsewhere.
func (e *Engine) Handle(ctx context.Context, in Input, ch Channel) (bool, error) {
	unlock := e.sessions.Lock(in.UserID)
	defer unlock()

	sess := e.sessions.Get(in.UserID)
	if !sess.Active() {
		return false, nil
	}
	if in.Kind == InputCommand && in.Text == CmdCancel {
		e.cancelLocked(ctx, in.UserID)
		return true, ch.Reply(ctx, menu.Text(msgCancelled))
	}

	switch d := sess.Draft.(type) {
	case *SubjectDraft:
		return e.handleAddSubject(ctx, in, ch)
	case *NotifyDraft:
		return e.handleNotify(ctx, in, ch)
	case *LabDraft:
		return e.handleAddLab(ctx, sess.State, d, in, ch)
	case *EditLabDraft:
		return e.handleEditLab(ctx, sess.State, d, in, ch)
	case *EditSubjectDraft:
		return e.handleEditSubject(ctx, d, in, ch)
	}
	return false, nil
}

// unexpected decides what happens to input a step does not accept:
// commands and button presses go back to the router, anything else is swallowed.
func unexpected(in Input) bool {
	return in.Kind != InputCommand && in.Kind != InputCallback
}

func (e *Engine) advance(userID int64, step state.State, d Draft) {
	e.sessions.Set(userID, state.Session[Draft]{State: step, Draft: d})
}

func (e *Engine) finish(userID int64) {
	e.sessions.Clear(userID)
}

func (e *Engine) discardDraft(ctx context.Context, d Draft) {
	lab, ok := d.(*LabDraft)
	if !ok || len(lab.Files) == 0 {
		return
	}
	paths := make([]string, 0, len(lab.Files))
	for _, f := range lab.Files {
		paths = append(paths, f.Path)
	}
	e.stager.Discard(ctx, paths...)
}

func (e *Engine) storeFailure(ctx context.Context, wf Workflow, err error, ch Channel) error {
	storeFailed(ctx, wf, err)
	return ch.Reply(ctx, menu.Text(msgStoreFailure))
}

func storeFailed(ctx context.Context, wf Workflow, err error) {
	metrics.Commits.WithLabelValues(string(wf), "store").Inc()
	logger.Error(ctx, logger.CompConversation, "conversation.store_fail",
		slog.String("workflow", string(wf)),
		logger.Err(err),
	)
}

func committed(ctx context.Context, wf Workflow, attrs ...slog.Attr) {
	metrics.Commits.WithLabelValues(string(wf), "ok").Inc()
	logger.Info(ctx, logger.CompConversation, "conversation.commit",
		append([]slog.Attr{slog.String("workflow", string(wf))}, attrs...)...)
}

func rejected(ctx context.Context, wf Workflow, reason string) {
	metrics.Commits.WithLabelValues(string(wf), reason).Inc()
	logger.Info(ctx, logger.CompConversation, "conversation.reject",
		slog.String("workflow", string(wf)),
		slog.String("reason", reason),
	)
}

// invalid records a commit aborted by a validation error; err_code comes from its kind.
func invalid(ctx context.Context, wf Workflow, err error) {
	code := "validation"
	if kind, ok := apperr.KindOf(err); ok {
		code = string(kind)
	}
	metrics.Commits.WithLabelValues(string(wf), code).Inc()
	logger.Info(ctx, logger.CompConversation, "conversation.reject",
		slog.String("workflow", string(wf)),
		slog.String("reason", code),
		slog.String("err_code", code),
		logger.Err(err),
	)
}
