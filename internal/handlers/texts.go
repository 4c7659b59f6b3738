package handlers

const (
	txtHelp = "Я присылаю план тренировок и веду дневник.\n\n" +
		"📅 План на сегодня и 🗓 План на дату показывают тренировки.\n" +
		"📝 Отчёт за день показывает дневник и спрашивает о восстановлении.\n" +
		"⚖️ Записать вес сохраняет утренний или вечерний вес.\n" +
		"🔔 Подписка присылает план каждый день в выбранное время.\n\n" +
		"Сначала привяжите аккаунт кодом с сайта: 🔗 Привязать аккаунт.\n" +
		"Отменить ввод можно словом «Отмена»."

	txtLinkFirst    = "Сначала привяжите аккаунт: нажмите «🔗 Привязать аккаунт» и введите код с сайта."
	txtAlreadyLink  = "Этот чат уже привязан к аккаунту."
	txtTryLater     = "Что-то пошло не так. Попробуйте позже."
	txtCancelled    = "Действие отменено."
	txtStaleButton  = "Эта кнопка уже неактуальна."
	txtDraftExpired = "Ввод устарел, начните заново."

	txtLinkPrompt    = "Введите 6-значный код привязки из личного кабинета."
	txtLinkBadFormat = "Код состоит из 6 символов. Попробуйте ещё раз или нажмите «✖️ Отменить привязку»."
	txtLinkInvalid   = "Код недействителен, просрочен или уже использован. Запросите новый код и введите его."
	txtLinked        = "Готово! Аккаунт привязан."
	txtLinkCancelled = "Привязка отменена."
	txtNoLinkPending = "Нет активной привязки для отмены."

	txtNotLinked = "Чат не привязан к аккаунту."
	txtUnlinked  = "Аккаунт отвязан. Удалено подписок: %d."

	txtWeightDatePrompt = "За какой день записать вес? Выберите кнопку или введите дату ДД.ММ.ГГГГ."
	txtWeightDateBad    = "Не понял дату. Нажмите «Сегодня», «Вчера» или введите ДД.ММ.ГГГГ (не позже сегодняшнего дня)."
	txtWeightValue      = "Дата: %s, период: %s.\nВыберите период кнопкой и введите вес в кг, например 72.5"
	txtWeightBad        = "Вес должен быть числом больше 0 и не больше 400, например 72.5"
	txtWeightSaved      = "Записал: %s (%s, %s)."
	txtPeriodChosen     = "Период: %s. Теперь введите вес в кг."

	txtTimePrompt = "Во сколько присылать план? Введите время ЧЧ:ММ, например 07:30."
	txtTimeBad    = "Нужен формат ЧЧ:ММ: часы 0–23, минуты 0–59. Например 07:30."
	txtTimeSaved  = "Время рассылки: %s."

	txtTZPrompt = "Введите часовой пояс в формате IANA, например Europe/Moscow или Asia/Yekaterinburg."
	txtTZBad    = "Не знаю такой часовой пояс. Пример: Europe/Moscow."
	txtTZSaved  = "Часовой пояс: %s. Сейчас там %s."

	txtRecoveryPrompt = "Как прошло восстановление? Ответьте тремя словами да/нет: сон, питание, растяжка. Например: да нет да"
	txtRecoveryBad    = "Нужно ровно три ответа да/нет: сон, питание, растяжка. Например: да нет да"
	txtRecoverySaved  = "Восстановление за %s сохранено."

	txtSubscribed      = "Подписка включена. План будет приходить в %s (%s)."
	txtSubscribedIncmp = "Подписка включена, но план не придёт, пока не заданы: %s."
	txtUnsubscribed    = "Подписка отключена."

	txtPickDate = "Выберите дату:"
)
