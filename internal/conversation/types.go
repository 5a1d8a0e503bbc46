// Package conversation drives the multi-step admin workflows.
//
// Each user has at most one active workflow. Steps accumulate fields into a
// per-user draft held in process memory; the last step performs a single
// commit and the draft is cleared whatever the outcome.
package conversation

import (
	"context"

	"github.com/m3rciful/labbot/core/telegram/state"
	"github.com/m3rciful/labbot/internal/action"
	"github.com/m3rciful/labbot/internal/menu"
	"github.com/m3rciful/labbot/internal/model"
	"github.com/m3rciful/labbot/internal/staging"
)

// Workflow names a conversation.
type Workflow string

const (
	AddSubject  Workflow = "add_subject"
	Notify      Workflow = "notify"
	AddLab      Workflow = "add_lab"
	EditLab     Workflow = "edit_lab"
	EditSubject Workflow = "edit_subject"
)

// Steps. Each accepts exactly one input shape.
const (
	StepSubjectName     state.State = "add_subject.name"
	StepNotifyMessage   state.State = "notify.message"
	StepLabSubject      state.State = "add_lab.subject"
	StepLabTitle        state.State = "add_lab.title"
	StepLabDesc         state.State = "add_lab.desc"
	StepLabDeadline     state.State = "add_lab.deadline"
	StepLabFiles        state.State = "add_lab.files"
	StepEditLabField    state.State = "edit_lab.field"
	StepEditLabValue    state.State = "edit_lab.value"
	StepEditSubjectName state.State = "edit_subject.name"
)

// Commands understood inside a workflow.
const (
	CmdCancel = "/cancel"
	CmdDone   = "/done"
	CmdSkip   = "/skip"
)

// Draft is the per-workflow accumulator.
type Draft interface {
	Workflow() Workflow
}

// SubjectDraft backs AddSubject.
type SubjectDraft struct{}

// NotifyDraft backs Notify.
type NotifyDraft struct{}

// LabDraft backs AddLab. Files are already on disk but not yet recorded.
type LabDraft struct {
	SubjectID *int64
	Title     string
	Desc      string
	Deadline  string
	Files     []staging.Staged
}

// LabField names an editable lab field.
type LabField string

const (
	FieldTitle    LabField = "title"
	FieldDesc     LabField = "desc"
	FieldDeadline LabField = "deadline"
)

// EditLabDraft backs EditLab.
type EditLabDraft struct {
	LabID int64
	Field LabField
}

// EditSubjectDraft backs EditSubject.
type EditSubjectDraft struct {
	SubjectID int64
}

func (*SubjectDraft) Workflow() Workflow     { return AddSubject }
func (*NotifyDraft) Workflow() Workflow      { return Notify }
func (*LabDraft) Workflow() Workflow         { return AddLab }
func (*EditLabDraft) Workflow() Workflow     { return EditLab }
func (*EditSubjectDraft) Workflow() Workflow { return EditSubject }

// InputKind is the shape of an inbound update.
type InputKind int

const (
	InputText InputKind = iota
	InputCommand
	InputCallback
	InputDocument
	InputPhoto
)

// Input is one update addressed to the engine.
type Input struct {
	UserID int64
	Kind   InputKind
	// Text holds the message text, or the bare command ("/done") for InputCommand.
	Text   string
	Action action.Action
	File   *staging.FileRef
}

// Channel is how the engine talks back.
type Channel interface {
	staging.Source
	Reply(ctx context.Context, v menu.View) error
	// SendTo delivers text to an arbitrary user; used by broadcasts.
	SendTo(ctx context.Context, tgID int64, text string) error
}

// Store is the persistence the workflows commit to.
type Store interface {
	CreateSubject(ctx context.Context, name string) (model.Subject, error)
	GetSubject(ctx context.Context, id int64) (model.Subject, error)
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	RenameSubject(ctx context.Context, id int64, name string) error
	CreateLab(ctx context.Context, lab model.Lab, files []model.LabFile) (model.Lab, []model.LabFile, error)
	GetLab(ctx context.Context, id int64) (model.Lab, error)
	UpdateLab(ctx context.Context, lab model.Lab) error
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Stager writes attachments to disk and removes them again.
type Stager interface {
	Stage(ctx context.Context, src staging.Source, ref staging.FileRef) (staging.Staged, error)
	Discard(ctx context.Context, paths ...string)
}
