package keyboard

import "testing"

func TestInlineButtonsRowsUsesPlainCallbackData(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "Лаба 1", Unique: "lab", Data: "1"}},
		nil,
		[]InlineBtn{{Text: "⬅️ Назад", Unique: "back_to_subjects"}, {Text: "x", Unique: "delete_lab", Data: "9"}},
	)
	if len(m.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2 (empty rows dropped)", len(m.InlineKeyboard))
	}
	if got := m.InlineKeyboard[0][0]; got.Data != "lab:1" || got.Unique != "" || got.Text != "Лаба 1" {
		t.Fatalf("unexpected first button: %+v", got)
	}
	if got := m.InlineKeyboard[1][0].Data; got != "back_to_subjects" {
		t.Fatalf("bare tag button data = %q", got)
	}
	if got := m.InlineKeyboard[1][1].Data; got != "delete_lab:9" {
		t.Fatalf("second button data = %q", got)
	}
}

func TestReplyButtons(t *testing.T) {
	m := ReplyButtons([]string{"Мои предметы", "Актуально"}, []string{"Админ панель"})
	if !m.ResizeKeyboard {
		t.Fatal("reply keyboard should be resized")
	}
	if len(m.ReplyKeyboard) != 2 || len(m.ReplyKeyboard[0]) != 2 {
		t.Fatalf("unexpected layout: %+v", m.ReplyKeyboard)
	}
	if m.ReplyKeyboard[1][0].Text != "Админ панель" {
		t.Fatalf("unexpected label: %q", m.ReplyKeyboard[1][0].Text)
	}
}
