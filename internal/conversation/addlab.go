package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/labbot/core/telegram/format"
	"github.com/m3rciful/labbot/core/telegram/state"
	"github.com/m3rciful/labbot/internal/action"
	"github.com/m3rciful/labbot/internal/apperr"
	"github.com/m3rciful/labbot/internal/menu"
	"github.com/m3rciful/labbot/internal/model"
	"github.com/m3rciful/labbot/internal/staging"
)

func (e *Engine) handleAddLab(ctx context.Context, step state.State, d *LabDraft, in Input, ch Channel) (bool, error) {
	// /done commits from any step; a draft without subject or title is rejected there.
	if in.Kind == InputCommand && in.Text == CmdDone {
		return true, e.commitLab(ctx, in.UserID, d, ch)
	}

	switch step {
	case StepLabSubject:
		if in.Kind != InputCallback || in.Action.Kind != action.LabSubject {
			return unexpected(in), nil
		}
		id := in.Action.ID
		d.SubjectID = &id
		e.advance(in.UserID, StepLabTitle, d)
		return true, ch.Reply(ctx, menu.Text(promptLabTitle))

	case StepLabTitle:
		if in.Kind != InputText {
			return unexpected(in), nil
		}
		title := strings.TrimSpace(in.Text)
		if title == "" {
			return true, ch.Reply(ctx, menu.Text(msgEmptyLabTitle))
		}
		d.Title = title
		e.advance(in.UserID, StepLabDesc, d)
		return true, ch.Reply(ctx, menu.Text(promptLabDesc))

	case StepLabDesc, StepLabDeadline:
		var value string
		switch {
		case in.Kind == InputText:
			value = strings.TrimSpace(in.Text)
		case in.Kind == InputCommand && in.Text == CmdSkip:
		default:
			return unexpected(in), nil
		}
		if step == StepLabDesc {
			d.Desc = value
			e.advance(in.UserID, StepLabDeadline, d)
			return true, ch.Reply(ctx, menu.Text(promptLabDeadline))
		}
		d.Deadline = value
		e.advance(in.UserID, StepLabFiles, d)
		return true, ch.Reply(ctx, menu.Text(promptLabFiles))

	case StepLabFiles:
		switch in.Kind {
		case InputDocument, InputPhoto:
			return true, e.stageFile(ctx, d, in, ch)
		case InputCommand:
			if in.Text != CmdSkip {
				return false, nil
			}
			// skipping drops whatever was uploaded so far
			e.discardDraft(ctx, d)
			d.Files = nil
			return true, e.commitLab(ctx, in.UserID, d, ch)
		}
		return unexpected(in), nil
	}
	return false, nil
}

func (e *Engine) stageFile(ctx context.Context, d *LabDraft, in Input, ch Channel) error {
	if in.File == nil {
		return nil
	}
	ref := *in.File
	staged, err := e.stager.Stage(ctx, ch, ref)
	switch {
	case apperr.IsKind(err, apperr.KindUnsupportedFormat):
		return ch.Reply(ctx, menu.Text(fmt.Sprintf(msgUnsupportedFile, staging.Ext(ref.Name), staging.FormatAllowed())))
	case err != nil:
		if in.Kind == InputPhoto {
			return ch.Reply(ctx, menu.Text(msgPhotoFailed))
		}
		return ch.Reply(ctx, menu.Text(fmt.Sprintf(msgFileFailed, ref.Name)))
	}

	d.Files = append(d.Files, staged)
	if in.Kind == InputPhoto {
		return ch.Reply(ctx, menu.Text(msgPhotoStaged))
	}
	return ch.Reply(ctx, menu.Text(fmt.Sprintf(msgFileStaged, ref.Name)))
}

func (e *Engine) commitLab(ctx context.Context, userID int64, d *LabDraft, ch Channel) error {
	e.finish(userID)

	if err := validateLab(d); err != nil {
		e.discardDraft(ctx, d)
		invalid(ctx, AddLab, err)
		return ch.Reply(ctx, menu.Text(msgLabMissingFields))
	}

	files := make([]model.LabFile, 0, len(d.Files))
	for _, f := range d.Files {
		files = append(files, model.LabFile{
			FileName: f.OriginalName,
			FilePath: f.Path,
			FileSize: f.Size,
		})
	}
	lab, stored, err := e.store.CreateLab(ctx, model.Lab{
		SubjectID: *d.SubjectID,
		Title:     d.Title,
		Desc:      format.StringPtr(d.Desc),
		Deadline:  format.StringPtr(d.Deadline),
	}, files)
	if err != nil {
		e.discardDraft(ctx, d)
		storeFailed(ctx, AddLab, err)
		return ch.Reply(ctx, menu.Text(msgLabStoreFailure))
	}

	committed(ctx, AddLab,
		slog.Int64("lab_id", lab.ID),
		slog.Int64("subject_id", lab.SubjectID),
		slog.Int("files", len(stored)),
	)
	if err := ch.Reply(ctx, menu.Text(labSummary(lab, len(stored)))); err != nil {
		return err
	}
	if len(stored) == 0 {
		return nil
	}
	names := make([]string, 0, len(stored))
	for _, f := range stored {
		names = append(names, "• "+f.FileName)
	}
	return ch.Reply(ctx, menu.Text(msgLabFilesHeader+strings.Join(names, "\n")))
}

func labSummary(lab model.Lab, files int) string {
	var b strings.Builder
	fmt.Fprintf(&b, msgLabAdded, lab.Title)
	fmt.Fprintf(&b, "📝 Описание: %s\n", format.DerefString(lab.Desc, "нет"))
	fmt.Fprintf(&b, "⏳ Дедлайн: %s\n", format.DerefString(lab.Deadline, "не установлен"))
	fmt.Fprintf(&b, "📎 Файлов: %d", files)
	return b.String()
}

// validateLab names the required fields the draft still lacks.
func validateLab(d *LabDraft) error {
	var missing []string
	if d.SubjectID == nil {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if len(missing) == 0 {
		return nil
	}
	return apperr.New(apperr.KindValidation, "conversation.add_lab",
		fmt.Errorf("missing %s", strings.Join(missing, ", ")))
}
