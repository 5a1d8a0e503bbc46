package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/labbot/core/logger"
	"github.com/m3rciful/labbot/core/telegram/sender"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func sendAsync(c tele.Context, action string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}

	var chatID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, action, chatID, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, logger.CompSender, "queue.fallback",
			slog.String("action", action),
			logger.Err(err),
		)
		return run()
	}
	return err
}

// SendText sends plain text to the current chat.
func SendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return sendAsync(c, "send.text", func() error {
		return c.Send(text, opts)
	})
}

// SendHTML sends a message with HTML parse mode and optional reply markup.
func SendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return sendAsync(c, "send.html", func() error {
		return c.Send(text, opts)
	})
}

// EditOrSendHTML edits the message behind a button press, or sends a new one otherwise.
func EditOrSendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return sendAsync(c, "edit_or_send.html", func() error {
		return c.EditOrSend(text, opts)
	})
}

// EditOrSendText is EditOrSendHTML without a parse mode, for text that may contain markup characters.
func EditOrSendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return sendAsync(c, "edit_or_send.text", func() error {
		return c.EditOrSend(text, opts)
	})
}

// SendFile delivers a document, photo or video to the current chat synchronously
// so the caller can report a failed transmission.
func SendFile(c tele.Context, what tele.Sendable) error {
	return c.Send(what)
}
