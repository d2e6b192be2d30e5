package bot

import "fmt"

// User-facing texts in every supported language.  Every terminal state
// of the reservation flow has exactly one message here; handlers never
// build user-visible strings inline.
var catalog = map[string]map[string]string{
	"en": {
		"welcome":            "Welcome to the parking bot. Use the menu below or /reserve to book a space.",
		"help":               "Commands:\n/reserve – book a parking space\n/status – your reservations\n/link <plate> – link your license plate\n/language en|ru – change language",
		"not_linked":         "I don't know your license plate yet. Send /link followed by your plate (for example: /link ABC-123), then try again.",
		"linked_ok":          "Plate %s linked. You can reserve a space now.",
		"language_set":       "Language updated.",
		"wallet_saved":       "Wallet address saved.",
		"wallet_not_linked":  "Link your plate with /link before connecting a wallet.",
		"choose_zone":        "Choose a parking zone:",
		"choose_space":       "Available spaces in %s:",
		"no_spaces":          "No available spaces in this zone right now.",
		"choose_rail":        "Space %s is in a premium zone (%d ⭐ or %d nanoTON per hour). Choose how to pay:",
		"rail_stars":         "⭐ Pay with Stars",
		"rail_ton":           "💎 Pay with TON",
		"space_unavailable":  "Sorry, this space is no longer available. Pick another one with /reserve.",
		"invoice_title":      "Parking space %s",
		"invoice_desc":       "One hour reservation in zone %s",
		"ton_instructions":   "Transfer %d nanoTON to:\n%s\nThen press the button below and send me the transaction hash.",
		"payment_sent":       "I've sent it",
		"send_hash_prompt":   "Please paste the transaction hash of your transfer.",
		"no_pending":         "I couldn't find a pending payment for your plate. Start again with /reserve.",
		"payment_unverified": "Your payment could not be verified. Please contact support.",
		"reserved_ok":        "Space %s is reserved for plate %s until %s. Reservation code: %s",
		"already_reserved":   "Space %s is already reserved for plate %s until %s.",
		"reserved_taken":     "The space was taken while your payment completed. Your payment is recorded; support will contact you about a refund.",
		"precheckout_gone":   "This space is no longer available.",
		"status_none":        "You have no reservations yet.",
		"status_header":      "Your reservations:",
		"status_line":        "• space %d, until %s (code %s)",
		"link_prompt":        "Send /link followed by your plate, for example: /link ABC-123.",
		"unknown_input":      "I didn't understand that. Send /help for the list of commands.",
		"try_again":          "Something went wrong on our side. Please try again with /reserve.",
		"bad_argument":       "That button looks broken. Please start again with /reserve.",
	},
	"ru": {
		"welcome":            "Добро пожаловать в паркинг-бот. Используйте меню ниже или /reserve, чтобы забронировать место.",
		"help":               "Команды:\n/reserve – забронировать место\n/status – ваши брони\n/link <номер> – привязать номер машины\n/language en|ru – сменить язык",
		"not_linked":         "Я ещё не знаю номер вашей машины. Отправьте /link и номер (например: /link A123BC), затем попробуйте снова.",
		"linked_ok":          "Номер %s привязан. Теперь можно бронировать место.",
		"language_set":       "Язык обновлён.",
		"wallet_saved":       "Адрес кошелька сохранён.",
		"wallet_not_linked":  "Сначала привяжите номер через /link, затем подключайте кошелёк.",
		"choose_zone":        "Выберите парковочную зону:",
		"choose_space":       "Свободные места в зоне %s:",
		"no_spaces":          "В этой зоне сейчас нет свободных мест.",
		"choose_rail":        "Место %s в премиум-зоне (%d ⭐ или %d nanoTON в час). Выберите способ оплаты:",
		"rail_stars":         "⭐ Оплатить Stars",
		"rail_ton":           "💎 Оплатить TON",
		"space_unavailable":  "К сожалению, это место уже занято. Выберите другое через /reserve.",
		"invoice_title":      "Парковочное место %s",
		"invoice_desc":       "Бронь на один час в зоне %s",
		"ton_instructions":   "Переведите %d nanoTON на адрес:\n%s\nЗатем нажмите кнопку ниже и пришлите хеш транзакции.",
		"payment_sent":       "Я оплатил",
		"send_hash_prompt":   "Пришлите, пожалуйста, хеш транзакции перевода.",
		"no_pending":         "Не нашёл ожидающий платёж для вашего номера. Начните заново через /reserve.",
		"payment_unverified": "Не удалось подтвердить ваш платёж. Пожалуйста, обратитесь в поддержку.",
		"reserved_ok":        "Место %s забронировано за номером %s до %s. Код брони: %s",
		"already_reserved":   "Место %s уже забронировано за номером %s до %s.",
		"reserved_taken":     "Место заняли, пока завершалась оплата. Платёж записан, поддержка свяжется с вами по поводу возврата.",
		"precheckout_gone":   "Это место уже недоступно.",
		"status_none":        "У вас пока нет броней.",
		"status_header":      "Ваши брони:",
		"status_line":        "• место %d, до %s (код %s)",
		"link_prompt":        "Отправьте /link и номер машины, например: /link A123BC.",
		"unknown_input":      "Я вас не понял. Отправьте /help, чтобы увидеть список команд.",
		"try_again":          "Что-то пошло не так на нашей стороне. Попробуйте снова через /reserve.",
		"bad_argument":       "Эта кнопка сломана. Начните заново через /reserve.",
	},
}

// T renders the message key in the given language, falling back to
// English for unknown languages or missing keys.
func T(lang, key string, args ...any) string {
	msgs, ok := catalog[lang]
	if !ok {
		msgs = catalog["en"]
	}
	tmpl, ok := msgs[key]
	if !ok {
		tmpl = catalog["en"][key]
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
