// Package menu renders navigation screens from entity state.
// Functions here are pure: callers load entities and the admin flag, menu only lays them out.
package menu

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/labbot/core/telegram/keyboard"
)

// Reply keyboard labels of the main menu.
const (
	LabelSubjects = "Мои предметы"
	LabelActual   = "Актуально"
	LabelAdmin    = "Админ панель"
)

// View is one outgoing screen.
type View struct {
	Text   string
	HTML   bool
	Inline [][]keyboard.InlineBtn
	Reply  [][]string
	// Edit replaces the message behind the pressed button instead of sending a new one.
	Edit bool
}

// Text is a plain message without buttons.
func Text(s string) View { return View{Text: s} }

// Markup returns the keyboard to attach, or nil when the view has none.
func (v View) Markup() *tele.ReplyMarkup {
	switch {
	case len(v.Inline) > 0:
		return keyboard.InlineButtonsRows(v.Inline...)
	case len(v.Reply) > 0:
		return keyboard.ReplyButtons(v.Reply...)
	}
	return nil
}

// Buttons returns all inline buttons in row order.
func (v View) Buttons() []keyboard.InlineBtn {
	var out []keyboard.InlineBtn
	for _, row := range v.Inline {
		out = append(out, row...)
	}
	return out
}
