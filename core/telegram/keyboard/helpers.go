package keyboard

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/labbot/core/telegram/callbacks"
)

// InlineBtn describes an inline button; Unique and Data form the callback data "unique:data".
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// CallbackData returns the raw callback payload sent by Telegram on press.
func (b InlineBtn) CallbackData() string {
	return callbacks.Encode(b.Unique, b.Data)
}

// ReplyButtons builds a resized reply keyboard from rows of labels.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
// Buttons carry plain callback data, so presses reach the generic OnCallback endpoint.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = tele.InlineButton{Text: btn.Text, Data: btn.CallbackData()}
		}
		inline = append(inline, r)
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}
