package router

import (
	"time"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/labbot/core/telegram"
)

// FSM is the conversation engine as seen by the routers.
type FSM interface {
	InProgress(userID int64) bool
	// Offer hands the update to the active conversation and reports whether it was consumed.
	Offer(c tele.Context) (bool, error)
}

// TextRoutes builds handlers for free text, documents and photos.
// Text goes to reply-keyboard buttons, then the active conversation, then commands,
// then the registry fallback. Files are only meaningful inside a conversation.
func TextRoutes(fsm FSM, reg *tg.Registry) []tg.Route {
	offer := func(c tele.Context, name string, start time.Time) (bool, error) {
		if fsm == nil || c.Sender() == nil || !fsm.InProgress(c.Sender().ID) {
			return false, nil
		}
		var handled bool
		err := handleWithSummary(c, name, start, func() error {
			var err error
			handled, err = fsm.Offer(c)
			return err
		})
		return handled || err != nil, err
	}

	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if btn, ok := reg.LookupMenuButton(text); ok {
			return handleWithSummary(c, "menu."+normalizeHandlerName(text), start, func() error {
				return btn.Handler(c)
			})
		}

		if done, err := offer(c, "fsm", start); done {
			return err
		}

		if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
			return handleWithSummary(c, normalizeHandlerName(key), start, func() error {
				return cmd.Handler(c)
			})
		}

		if fb := reg.TextFallback(); fb != nil {
			return handleWithSummary(c, "fallback", start, func() error { return fb(c) })
		}
		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	fileHandler := func(c tele.Context) error {
		start := time.Now()
		if done, err := offer(c, "fsm_file", start); done {
			return err
		}
		if fb := reg.DocumentFallback(); fb != nil {
			return handleWithSummary(c, "unexpected_file", start, func() error { return fb(c) })
		}
		logHandlerSummary(c, "unexpected_file", start, "skip", nil)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: textHandler},
		{Endpoint: tele.OnDocument, Handler: fileHandler},
		{Endpoint: tele.OnPhoto, Handler: fileHandler},
	}
}
