package handlers

import (
	"fmt"
	"strings"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
	"github.com/orderdesk/orderdesk-bot/internal/intake"
)

const (
	msgGreeting = "Привет! Этот бот поможет оформить анонимный заказ на выполнение учебной работы.\n\n" +
		"Выберите тип задания из меню ниже:"

	msgHelp = "Чтобы оформить заказ, нажмите /start и следуйте инструкциям бота.\n\n" +
		"Команды:\n" +
		"/start — начать оформление заказа\n" +
		"/help — показать справку\n" +
		"/cancel — отменить оформление заказа"

	promptSubject     = "Введите полное название предмета:"
	promptDescription = "Отправьте файл с требованиями из eclass или опишите задачу текстом:"
	promptAdditional  = "Есть ли дополнительные пожелания? Опишите что конкретно хотите, или напишите 'нет'"
	promptDeadline    = "Укажите дедлайн (например: 15.12.2024 18:00) или напишите 'нет', если его нет:"
	promptBudget      = "Укажите ваш бюджет (сумму в сумах или тенге):"

	msgInvalidBudget    = "Пожалуйста, укажите бюджет числом. Попробуйте ещё раз."
	msgUnknownOrderType = "Неизвестный тип заказа. Попробуйте ещё раз."
	confirmationTitle   = "Проверьте, всё ли верно:"

	msgOrderCancelled        = "Создание заказа отменено. Если захотите попробовать снова, введите /start."
	msgNothingToCancel       = "Сейчас нечего отменять. Нажмите /start, чтобы оформить заказ."
	msgUnknownInput          = "Я вас не понял. Нажмите /start, чтобы оформить заказ, или /help для справки."
	msgDeclineReasonRequired = "Причина обязательна для отклонения заказа. Пожалуйста, ответьте на запрос."

	msgAdminMenu = "🔐 ПАНЕЛЬ АДМИНИСТРАТОРА\n\nДобро пожаловать! Выберите нужный раздел:"

	msgBroadcastPrompt = "📢 Рассылка объявления\n\n" +
		"Введите текст объявления, которое будет отправлено всем пользователям бота."
	msgBroadcastQueued = "✅ Объявление принято и будет разослано."

	msgAddAdminPrompt = "➕ Добавление администратора\n\n" +
		"Введите Telegram ID пользователя, которого хотите сделать администратором."
	msgAddAdminInvalidID = "Не удалось разобрать ID. Отправьте числовой Telegram ID."
	msgAdminAdded        = "✅ Администратор добавлен."

	msgRemoveAdminMenu  = "➖ Удаление администратора\n\nНажмите на кнопку, чтобы отозвать права:"
	msgCannotRemoveSelf = "Нельзя удалить самого себя."
	msgAdminRemoved     = "✅ Администратор удален."

	msgCompleteMenu      = "📄 Управление заказами\n\nНажмите на кнопку, чтобы отметить заказ как выполненный:"
	msgNoActiveOrders    = "📭 Нет активных заказов\n\nВсе заказы обработаны."
	msgReceiptReceived   = "Спасибо! Мы отправили квитанцию на проверку. О результате сообщим дополнительно."
	msgReceiptUnrouted   = "Не нашли заказ, ожидающий оплату. Если вы уже оплатили, свяжитесь с исполнителем."
	msgAttachUnsupported = "⚠️ Невозможно переслать файл: неподдерживаемый тип."
)

func msgOrderSubmitted(orderID int64) string {
	return fmt.Sprintf("✅ Ваш заказ #%d отправлен в группу исполнителей. Мы сообщим, когда его примут в работу.", orderID)
}

func msgOrderDeclined(orderID int64, reason string) string {
	return fmt.Sprintf(
		"❌ Ваш заказ #%d отклонен.\n\nПричина: %s\n\nВы можете создать новый заказ с учетом замечаний. Нажмите /start",
		orderID, reason,
	)
}

func msgPaymentInstructions(orderID int64, budget, card string) string {
	return fmt.Sprintf(
		"✅ Ваш заказ #%d принят.\n\nПожалуйста, отправьте %s на карту %s. "+
			"После перевода отправьте боту квитанцию или скриншот об оплате.",
		orderID, budget, card,
	)
}

func msgUploadReceiptPrompt(orderID int64) string {
	return fmt.Sprintf("📎 Отправьте квитанцию или скриншот об оплате заказа #%d следующим сообщением.", orderID)
}

func msgPaymentApproved(orderID int64) string {
	return fmt.Sprintf("✅ Оплата по заказу #%d подтверждена. Работа начнётся в ближайшее время.", orderID)
}

func msgPaymentRejected(orderID int64) string {
	return fmt.Sprintf("❌ Оплата по заказу #%d не подтверждена. Пожалуйста, проверьте данные и загрузите квитанцию повторно.", orderID)
}

func msgOrderCompleted(orderID int64) string {
	return fmt.Sprintf("✅ Ваш заказ #%d отмечен как выполненный. Спасибо, что воспользовались ботом!", orderID)
}

func declineReasonPrompt(username string, orderID int64) string {
	return fmt.Sprintf("@%s, укажите причину отклонения заказа #%d в сообщении ответом на это.", username, orderID)
}

func declinePendingBlock(username string) string {
	return fmt.Sprintf("⏳ Ожидается причина отклонения от @%s", username)
}

func declinedBlock(reason string) string {
	return fmt.Sprintf("❌ ЗАКАЗ ОТКЛОНЕН\nПричина: %s", reason)
}

func claimedBlock(username string, orderID int64, budget string) string {
	return fmt.Sprintf("✅ @%s взял(а) на себя выполнение заказа #%d (Бюджет: %s)", username, orderID, budget)
}

func completedBlock(orderID int64) string {
	return fmt.Sprintf("✅ Заказ #%d отмечен как выполненный администратором.", orderID)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// renderDraftSummary builds the confirmation text shown before submission.
func renderDraftSummary(d *intake.Draft) string {
	lines := []string{
		fmt.Sprintf("📋 Тип: %s", d.Fields.OrderTypeLabel),
		fmt.Sprintf("📚 Предмет: %s", d.Fields.Subject),
		fmt.Sprintf("📄 Описание: %s", d.Fields.Description),
		fmt.Sprintf("💡 Доп. информация: %s", orDash(d.Fields.ExtraNotes)),
		fmt.Sprintf("⏰ Дедлайн: %s", orDash(d.Fields.Deadline)),
		fmt.Sprintf("💰 Бюджет: %s", d.Fields.Budget),
	}

	return confirmationTitle + "\n\n" + strings.Join(lines, "\n")
}

// renderGroupMessage builds the group announcement. The optional extra block
// reflects the current lifecycle state and is appended on each edit.
func renderGroupMessage(order *domain.Order, extra string) string {
	usernameDisplay := "—"
	if order.Requester.Username != "" {
		usernameDisplay = "@" + order.Requester.Username
	}

	text := fmt.Sprintf(
		"🆕 НОВЫЙ ЗАКАЗ #%d\n\n"+
			"📋 Тип: %s\n"+
			"📚 Предмет: %s\n"+
			"📄 Описание: %s\n"+
			"💡 Доп. информация: %s\n"+
			"⏰ Дедлайн: %s\n"+
			"💰 Бюджет: %s\n"+
			"📌 Статус: %s\n"+
			"💳 Оплата: %s\n"+
			"👤 Контакт студента:\n"+
			"   ID: %d\n"+
			"   Username: %s\n"+
			"   Имя: %s %s",
		order.ID,
		order.Type,
		order.Subject,
		orDash(order.Description),
		orDash(order.ExtraNotes),
		orDash(order.Deadline),
		order.Budget,
		string(order.Status),
		string(order.PaymentStatus),
		order.Requester.ID,
		usernameDisplay,
		order.Requester.FirstName,
		order.Requester.LastName,
	)

	if extra != "" {
		text += "\n\n" + extra
	}

	return text
}

// renderStats builds the admin statistics view.
func renderStats(counts map[domain.OrderStatus]int, userCount int) string {
	total := 0
	for _, n := range counts {
		total += n
	}

	lines := []string{
		"📊 Статистика",
		"",
		fmt.Sprintf("Пользователей: %d", userCount),
		fmt.Sprintf("Всего заказов: %d", total),
		"",
		fmt.Sprintf("⏳ Ожидают: %d", counts[domain.StatusPending]),
		fmt.Sprintf("✍️ Ждут причину отказа: %d", counts[domain.StatusAwaitingDeclineReason]),
		fmt.Sprintf("💳 Ждут оплату: %d", counts[domain.StatusAwaitingPayment]),
		fmt.Sprintf("🔎 Проверка оплаты: %d", counts[domain.StatusPaymentReview]),
		fmt.Sprintf("🛠 В работе: %d", counts[domain.StatusInProgress]),
		fmt.Sprintf("✅ Выполнено: %d", counts[domain.StatusCompleted]),
		fmt.Sprintf("❌ Отклонено: %d", counts[domain.StatusDeclined]),
	}

	return strings.Join(lines, "\n")
}

// renderAdminList builds the admin roster view.
func renderAdminList(admins []domain.Admin) string {
	lines := []string{"👥 Администраторы:", ""}
	for _, a := range admins {
		name := a.Username
		if name == "" {
			name = strings.TrimSpace(a.FirstName + " " + a.LastName)
		}
		if name == "" {
			name = "—"
		}
		lines = append(lines, fmt.Sprintf("• %d (%s)", a.UserID, name))
	}

	return strings.Join(lines, "\n")
}
