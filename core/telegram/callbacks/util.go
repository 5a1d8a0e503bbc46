package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Separator splits the action tag from its payload in callback data ("lab:42").
const Separator = ":"

// Encode renders callback data for key and an optional payload.
func Encode(key, payload string) string {
	if payload == "" {
		return key
	}
	return key + Separator + payload
}

// ParseCallbackData splits raw callback data into key and payload (may be empty).
// Telebot's \f<unique>|<payload> form is accepted as well.
func ParseCallbackData(data string) (string, string) {
	if strings.HasPrefix(data, "\f") {
		key, payload, _ := strings.Cut(strings.TrimPrefix(data, "\f"), "|")
		return strings.TrimSpace(key), payload
	}
	key, payload, _ := strings.Cut(data, Separator)
	return strings.TrimSpace(key), strings.TrimSpace(payload)
}

// CallbackKey returns cb.Unique if present; otherwise parses it from Data.
func CallbackKey(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	k, _ := ParseCallbackData(cb.Data)
	return k
}
