package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

// CurrentUser resolves the update author to a domain entity through any service
// exposing GetUserByTelegramID.
func CurrentUser[T any](
	ctx context.Context,
	c tele.Context,
	service interface {
		GetUserByTelegramID(context.Context, int64) (T, error)
	},
) (T, error) {
	return service.GetUserByTelegramID(ctx, SenderID(c))
}
