package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a slash command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
}

// MenuButton binds a fixed reply-keyboard label to a handler.
// Presses arrive as plain text equal to Label.
type MenuButton struct {
	Label   string
	Handler tele.HandlerFunc
}
