package bot

import (
	"errors"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/labbot/core/logger"
	"github.com/m3rciful/labbot/core/telegram/helpers"
	"github.com/m3rciful/labbot/internal/action"
	"github.com/m3rciful/labbot/internal/apperr"
	"github.com/m3rciful/labbot/internal/staging"
	"github.com/m3rciful/labbot/internal/store"
)

const (
	msgFileNotFound = "❌ Файл не найден"
	msgFileMissing  = "❌ Файл %s не найден на сервере"
	msgSendFailed   = "❌ Ошибка при отправке файла %s"
)

// sendable frames a stored file as photo, video or document by its original name.
func sendable(path, name string) tele.Sendable {
	file := tele.FromDisk(path)
	switch staging.DeliveryKind(name) {
	case staging.DeliverPhoto:
		return &tele.Photo{File: file, Caption: "📸 " + name}
	case staging.DeliverVideo:
		return &tele.Video{File: file, Caption: "🎥 " + name, FileName: name}
	}
	return &tele.Document{File: file, Caption: "📄 " + name, FileName: name}
}

func (b *Bot) downloadFile(c tele.Context, a action.Action) error {
	ctx := helpers.BuildContext(c)
	lf, err := b.store.GetLabFile(ctx, a.ID)
	if errors.Is(err, store.ErrNotFound) {
		return helpers.SendText(c, msgFileNotFound)
	}
	if err != nil {
		return b.loadFailed(ctx, c, "download_file", err)
	}

	path, err := b.files.Resolve(lf.FilePath)
	if err != nil {
		logger.Warn(ctx, logger.CompBot, "bot.file.missing",
			slog.Int64("file_id", lf.ID),
			slog.String("path", lf.FilePath),
			slog.String("err_code", string(apperr.KindFileMissing)),
		)
		return helpers.SendText(c, fmt.Sprintf(msgFileMissing, lf.FileName))
	}

	if err := helpers.SendFile(c, sendable(path, lf.FileName)); err != nil {
		err = apperr.New(apperr.KindSendFailure, "bot.download_file", err)
		logger.Error(ctx, logger.CompBot, "bot.file.send_fail",
			slog.Int64("file_id", lf.ID),
			logger.Err(err),
		)
		return helpers.SendText(c, fmt.Sprintf(msgSendFailed, lf.FileName))
	}
	logger.Info(ctx, logger.CompBot, "bot.file.sent",
		slog.Int64("file_id", lf.ID),
		slog.Int64("size", lf.FileSize),
	)
	return nil
}
