package conversation

const (
	promptSubjectName   = "Введите название предмета:"
	promptSubjectRename = "Введите новое название для предмета '%s':"
	promptNotify        = "Введите сообщение для рассылки всем пользователям:"
	promptLabTitle      = "Введите название лабораторной:"
	promptLabDesc       = "Введите описание лабораторной:\n(отправьте /skip, чтобы пропустить)"
	promptLabDeadline   = "Введите дедлайн лабораторной:\n(отправьте /skip, чтобы пропустить)"
	promptLabFiles      = "Теперь пришлите файлы для лабораторной (если есть). Можно присылать несколько файлов.\nКогда закончите, отправьте /done\nЧтобы пропустить, отправьте /skip"
	promptEditTitle     = "Введите новое название лабораторной:"
	promptEditDesc      = "Введите новое описание лабораторной:\n(отправьте /skip, чтобы очистить)"
	promptEditDeadline  = "Введите новый дедлайн лабораторной:\n(отправьте /skip, чтобы очистить)"

	msgCancelled        = "Операция отменена."
	msgEmptySubjectName = "Название предмета не может быть пустым."
	msgEmptyLabTitle    = "Название лабораторной не может быть пустым."
	msgSubjectAdded     = "Предмет '%s' добавлен!"
	msgSubjectRenamed   = "Предмет '%s' переименован в '%s'!"
	msgSubjectExists    = "Предмет '%s' уже существует."
	msgSubjectNotFound  = "Предмет не найден."
	msgLabNotFound      = "Лабораторная не найдена."
	msgLabUpdated       = "✅ Лабораторная '%s' обновлена."
	msgNoSubjectsForLab = "Нет предметов для добавления лабораторной."
	msgBroadcastPrefix  = "📢 Оповещение от админа:\n"
	msgBroadcastDone    = "Сообщение отправлено %d пользователям."
	msgLabMissingFields = "❌ Ошибка: не указаны название или предмет лабораторной."
	msgLabStoreFailure  = "❌ Ошибка при добавлении лабораторной в БД."
	msgLabAdded         = "✅ Лабораторная '%s' добавлена!\n\n"
	msgLabFilesHeader   = "📁 Загруженные файлы:\n"
	msgStoreFailure     = "❌ Не удалось сохранить изменения, попробуйте позже."
	msgUnsupportedFile  = "❌ Формат файла %s не поддерживается.\n📋 Поддерживаемые форматы: %s"
	msgFileStaged       = "✅ Файл '%s' загружен на сервер!"
	msgPhotoStaged      = "✅ Фото загружено на сервер!"
	msgFileFailed       = "❌ Ошибка при загрузке файла '%s'"
	msgPhotoFailed      = "❌ Ошибка при загрузке фото"
)
