package menu

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/m3rciful/labbot/core/telegram/format"
	"github.com/m3rciful/labbot/core/telegram/helpers"
	"github.com/m3rciful/labbot/core/telegram/keyboard"
	"github.com/m3rciful/labbot/internal/action"
	"github.com/m3rciful/labbot/internal/model"
)

type row = []keyboard.InlineBtn

func btn(kind action.Kind, id int64, text string) keyboard.InlineBtn {
	return action.New(kind, id).Button(text)
}

// Main is the greeting with the reply keyboard; admins get an extra row.
func Main(isAdmin bool) View {
	v := View{
		Text:  "Добро пожаловать!",
		Reply: [][]string{{LabelSubjects}, {LabelActual}},
	}
	if isAdmin {
		v.Text += "\nВы админ, используйте админские кнопки ниже."
		v.Reply = append(v.Reply, []string{LabelAdmin})
	}
	return v
}

// AdminPanel lists the admin entry points.
func AdminPanel() View {
	return View{
		Text: "Админ панель:",
		Inline: [][]keyboard.InlineBtn{
			{btn(action.Notify, 0, "Оповестить")},
			{btn(action.AddSubject, 0, "Добавить предмет")},
			{btn(action.AddLab, 0, "Добавить лабораторную")},
			{btn(action.ManageSubjects, 0, "Управление предметами")},
			{btn(action.ManageLabs, 0, "Управление лабораторными")},
		},
	}
}

// AccessDenied is shown to non-admins asking for admin screens.
func AccessDenied() View {
	return Text("У вас нет доступа к админ панели.")
}

// SubjectList is the student entry screen.
func SubjectList(subjects []model.Subject) View {
	if len(subjects) == 0 {
		return Text("Пока предметов нет.")
	}
	v := View{Text: "Ваши предметы:"}
	for _, s := range subjects {
		v.Inline = append(v.Inline, row{btn(action.Subject, s.ID, s.Name)})
	}
	return v
}

// SubjectDetails lists the labs of a subject.
func SubjectDetails(subject model.Subject, labs []model.Lab, isAdmin bool) View {
	v := View{Edit: true}
	if len(labs) == 0 {
		v.Text = fmt.Sprintf("📚 %s\n\nПока нет лабораторных работ.", subject.Name)
	} else {
		v.Text = fmt.Sprintf("📚 %s\n\nВыберите лабораторную:", subject.Name)
	}
	for _, l := range labs {
		v.Inline = append(v.Inline, row{btn(action.Lab, l.ID, l.Title)})
	}
	if isAdmin {
		v.Inline = append(v.Inline, row{
			btn(action.EditSubject, subject.ID, "✏️ Редактировать"),
			btn(action.DeleteSubject, subject.ID, "🗑️ Удалить"),
		})
	}
	v.Inline = append(v.Inline, row{btn(action.BackToSubjects, 0, "⬅️ Назад к предметам")})
	return v
}

// LabDetails is the lab card.
func LabDetails(lab model.Lab, subject model.Subject, isAdmin bool) View {
	var b strings.Builder
	fmt.Fprintf(&b, "📌 %s\n\n", format.Bold(lab.Title))
	fmt.Fprintf(&b, "📝 <b>Описание:</b>\n%s\n\n", format.EscapeHTML(format.DerefString(lab.Desc, "Нет описания")))
	fmt.Fprintf(&b, "⏳ <b>Дедлайн:</b> %s\n\n", format.EscapeHTML(format.DerefString(lab.Deadline, "не установлен")))
	fmt.Fprintf(&b, "📚 <b>Предмет:</b> %s", format.EscapeHTML(subject.Name))

	v := View{Text: b.String(), HTML: true, Edit: true}
	if isAdmin {
		v.Inline = append(v.Inline,
			row{btn(action.EditLab, lab.ID, "✏️ Редактировать")},
			row{btn(action.DeleteLab, lab.ID, "🗑️ Удалить")},
		)
	}
	v.Inline = append(v.Inline,
		row{btn(action.LabFiles, lab.ID, "📎 Файлы лабораторной")},
		row{btn(action.Subject, lab.SubjectID, "⬅️ Назад к предмету")},
	)
	return v
}

var fileIcons = map[string]string{
	".pdf": "📕", ".docx": "📘", ".txt": "📄",
	".xlsx": "📊", ".xls": "📊", ".zip": "📦",
	".py": "🐍", ".pcap": "🌐", ".tar": "📦",
	".jpg": "🖼️", ".jpeg": "🖼️", ".png": "🖼️",
}

// FileIcon picks an emoji by extension.
func FileIcon(name string) string {
	if icon, ok := fileIcons[strings.ToLower(filepath.Ext(name))]; ok {
		return icon
	}
	return "📄"
}

// LabFiles lists downloadable attachments of a lab.
func LabFiles(lab model.Lab, files []model.LabFile) View {
	back := row{btn(action.Lab, lab.ID, "⬅️ Назад к лабораторной")}
	if len(files) == 0 {
		return View{
			Text:   "📭 Для этой лабораторной пока нет файлов.",
			Inline: [][]keyboard.InlineBtn{back},
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📁 Файлы лабораторной '%s':\n\n", lab.Title)
	v := View{}
	for _, f := range files {
		icon := FileIcon(f.FileName)
		fmt.Fprintf(&b, "%s %s (%s)\n", icon, f.FileName, format.HumanSize(f.FileSize))
		v.Inline = append(v.Inline, row{btn(action.DownloadFile, f.ID, icon+" Скачать "+f.FileName)})
	}
	v.Text = b.String()
	v.Inline = append(v.Inline, back)
	return v
}

// ManageSubjects lists subjects with edit and delete buttons.
func ManageSubjects(subjects []model.Subject) View {
	back := row{btn(action.BackToAdmin, 0, "⬅️ Назад")}
	if len(subjects) == 0 {
		return View{Text: "Нет предметов для управления.", Inline: [][]keyboard.InlineBtn{back}, Edit: true}
	}
	v := View{Text: "Управление предметами:\n\nВыберите предмет для редактирования или удаления:", Edit: true}
	for _, s := range subjects {
		v.Inline = append(v.Inline, row{
			btn(action.EditSubject, s.ID, "✏️ "+s.Name),
			btn(action.DeleteSubject, s.ID, "🗑️"),
		})
	}
	v.Inline = append(v.Inline, back)
	return v
}

// ManageLabs lists labs with edit and delete buttons.
func ManageLabs(labs []model.Lab) View {
	back := row{btn(action.BackToAdmin, 0, "⬅️ Назад")}
	if len(labs) == 0 {
		return View{Text: "Нет лабораторных для управления.", Inline: [][]keyboard.InlineBtn{back}, Edit: true}
	}
	v := View{Text: "Управление лабораторными:\n\nВыберите лабораторную для редактирования или удаления:", Edit: true}
	for _, l := range labs {
		v.Inline = append(v.Inline, row{
			btn(action.EditLab, l.ID, "✏️ "+l.Title),
			btn(action.DeleteLab, l.ID, "🗑️"),
		})
	}
	v.Inline = append(v.Inline, back)
	return v
}

// EditLabFields asks which lab field to change.
func EditLabFields(lab model.Lab) View {
	return View{
		Text: fmt.Sprintf("Редактирование лабораторной: %s\n\nЧто вы хотите изменить?", lab.Title),
		Inline: [][]keyboard.InlineBtn{
			{btn(action.EditLabTitle, 0, "📝 Название")},
			{btn(action.EditLabDesc, 0, "📄 Описание")},
			{btn(action.EditLabDeadline, 0, "⏳ Дедлайн")},
			{btn(action.Lab, lab.ID, "⬅️ Назад")},
		},
		Edit: true,
	}
}

// LabSubjectChoice asks which subject a new lab belongs to.
func LabSubjectChoice(subjects []model.Subject) View {
	v := View{Text: "Выберите предмет:"}
	for _, s := range subjects {
		v.Inline = append(v.Inline, row{btn(action.LabSubject, s.ID, s.Name)})
	}
	return v
}

// Actual is the digest of all subjects with labs and deadlines.
// Labs whose deadline already passed relative to now are marked.
func Actual(overview []model.SubjectLabs, now time.Time) View {
	if len(overview) == 0 {
		return Text("📭 Пока нет предметов и лабораторных работ.")
	}
	var b strings.Builder
	b.WriteString("📚 <b>АКТУАЛЬНЫЕ ЛАБОРАТОРНЫЕ</b>\n\n")
	for _, entry := range overview {
		if len(entry.Labs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "<b>📖 %s</b>\n", format.EscapeHTML(entry.Subject.Name))
		for _, l := range entry.Labs {
			fmt.Fprintf(&b, "   • %s", format.EscapeHTML(l.Title))
			if deadline := format.DerefString(l.Deadline, ""); deadline != "" {
				fmt.Fprintf(&b, " | ⏳ %s", format.EscapeHTML(deadline))
				if helpers.DeadlinePassed(deadline, now) {
					b.WriteString(" ⚠️ просрочено")
				}
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return View{Text: strings.TrimRight(b.String(), "\n"), HTML: true}
}
