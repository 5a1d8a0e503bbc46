package bot

import (
	"context"
	"io"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/labbot/core/telegram/helpers"
	"github.com/m3rciful/labbot/internal/action"
	"github.com/m3rciful/labbot/internal/conversation"
	"github.com/m3rciful/labbot/internal/menu"
	"github.com/m3rciful/labbot/internal/staging"
)

// photoName is what an uploaded photo is stored as; Telegram photos carry no file name.
const photoName = "photo.jpg"

// channel lets the conversation engine reply through the update it is handling.
type channel struct {
	c tele.Context
}

func newChannel(c tele.Context) channel { return channel{c: c} }

func (ch channel) Reply(_ context.Context, v menu.View) error {
	return show(ch.c, v)
}

func (ch channel) SendTo(_ context.Context, tgID int64, text string) error {
	_, err := ch.c.Bot().Send(&tele.User{ID: tgID}, text)
	return err
}

func (ch channel) Fetch(_ context.Context, fileID string) (io.ReadCloser, error) {
	return ch.c.Bot().File(&tele.File{FileID: fileID})
}

// inputFrom classifies an update for the conversation engine.
func inputFrom(c tele.Context) conversation.Input {
	in := conversation.Input{UserID: helpers.SenderID(c)}
	if cb := c.Callback(); cb != nil {
		in.Kind = conversation.InputCallback
		// an unknown tag leaves Action zero, which no step accepts
		in.Action, _ = action.Parse(cb.Data)
		return in
	}

	msg := c.Message()
	if msg == nil {
		in.Kind = conversation.InputText
		return in
	}
	switch {
	case msg.Document != nil:
		in.Kind = conversation.InputDocument
		in.File = &staging.FileRef{
			FileID: msg.Document.FileID,
			Name:   msg.Document.FileName,
			Size:   int64(msg.Document.FileSize),
		}
	case msg.Photo != nil:
		// telebot keeps the largest size of the photo
		in.Kind = conversation.InputPhoto
		in.File = &staging.FileRef{
			FileID: msg.Photo.FileID,
			Name:   photoName,
			Size:   int64(msg.Photo.FileSize),
		}
	case strings.HasPrefix(msg.Text, "/"):
		in.Kind = conversation.InputCommand
		in.Text = commandName(msg.Text)
	default:
		in.Kind = conversation.InputText
		in.Text = msg.Text
	}
	return in
}

// commandName strips arguments and a @botname suffix.
func commandName(text string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "@")
	return name
}
