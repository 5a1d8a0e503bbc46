package format

import (
	"fmt"
	"html"
)

// EscapeHTML escapes user supplied text for Telegram's HTML parse mode.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

// Bold wraps escaped text in <b> tags.
func Bold(s string) string {
	return "<b>" + EscapeHTML(s) + "</b>"
}

// HumanSize renders a byte count as KB below one megabyte and MB above it.
func HumanSize(n int64) string {
	const mb = 1024 * 1024
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	return fmt.Sprintf("%.1f KB", float64(n)/1024)
}
