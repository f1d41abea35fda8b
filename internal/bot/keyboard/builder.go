// Package keyboard builds the inline keyboards and their callback encoding.
package keyboard

import (
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
)

// OrderType is a selectable order category.
type OrderType struct {
	Code  string
	Label string
}

// OrderTypes lists the categories offered at the first intake step.
var OrderTypes = []OrderType{
	{Code: "homework", Label: "📝 Домашнее задание"},
	{Code: "eclass", Label: "🎓 Закрыть eclass"},
	{Code: "project", Label: "💼 Проект"},
	{Code: "laboratory", Label: "🔬 Лабораторная работа"},
}

// OrderTypeLabel returns the display label for a type code.
func OrderTypeLabel(code string) (string, bool) {
	for _, t := range OrderTypes {
		if t.Code == code {
			return t.Label, true
		}
	}

	return "", false
}

// Builder creates inline keyboards.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	return &Builder{log: log}
}

// OrderTypeMenu builds the type-selection menu shown at intake start.
func (b *Builder) OrderTypeMenu() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	rows := make([][]tele.InlineButton, 0, len(OrderTypes))
	for _, t := range OrderTypes {
		rows = append(rows, []tele.InlineButton{
			{
				Text: t.Label,
				Data: ActionSelectType + ":" + t.Code,
			},
		})
	}

	markup.InlineKeyboard = rows
	return markup
}

// StartMenu builds the greeting menu. Admins additionally get a console
// button.
func (b *Builder) StartMenu(isAdmin bool) *tele.ReplyMarkup {
	markup := b.OrderTypeMenu()
	if isAdmin {
		markup.InlineKeyboard = append(markup.InlineKeyboard, []tele.InlineButton{
			{
				Text: "🔐 Панель администратора",
				Data: ActionAdminMenu,
			},
		})
	}

	return markup
}

// ConfirmButtons builds the submit-or-cancel row under the draft summary.
func (b *Builder) ConfirmButtons() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = [][]tele.InlineButton{
		{
			{
				Text: "✅ Отправить заказ",
				Data: ActionConfirmOrder,
			},
			{
				Text: "❌ Отменить",
				Data: ActionCancelOrder,
			},
		},
	}
	return markup
}

// GroupOrderButtons builds the claim/decline row under a group announcement.
func (b *Builder) GroupOrderButtons(orderID int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = [][]tele.InlineButton{
		{
			{
				Text: "✅ Принять заказ",
				Data: FormatCallback(ActionClaim, orderID),
			},
			{
				Text: "❌ Отклонить заказ",
				Data: FormatCallback(ActionDecline, orderID),
			},
		},
	}
	return markup
}

// PaymentReviewButtons builds the approve/reject row under forwarded
// payment evidence.
func (b *Builder) PaymentReviewButtons(orderID int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = [][]tele.InlineButton{
		{
			{
				Text: "✅ Подтвердить оплату",
				Data: FormatCallback(ActionApprovePayment, orderID),
			},
			{
				Text: "❌ Отклонить оплату",
				Data: FormatCallback(ActionRejectPayment, orderID),
			},
		},
	}
	return markup
}

// PaymentUploadButton builds the upload-receipt button under the payment
// instructions, binding the next attachment to this order.
func (b *Builder) PaymentUploadButton(orderID int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = [][]tele.InlineButton{
		{
			{
				Text: "📎 Загрузить квитанцию",
				Data: FormatCallback(ActionUploadReceipt, orderID),
			},
		},
	}
	return markup
}

// AdminMenu builds the admin console menu.
func (b *Builder) AdminMenu() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = [][]tele.InlineButton{
		{
			{Text: "📊 Статистика", Data: ActionAdminStats},
		},
		{
			{Text: "📢 Рассылка", Data: ActionAdminBroadcast},
		},
		{
			{Text: "➕ Добавить администратора", Data: ActionAdminAdd},
			{Text: "➖ Удалить", Data: ActionAdminRemove},
		},
		{
			{Text: "👥 Список администраторов", Data: ActionAdminList},
		},
		{
			{Text: "📄 Завершение заказов", Data: ActionAdminComplete},
		},
	}
	return markup
}

// RemoveAdminButtons builds one removal button per admin.
func (b *Builder) RemoveAdminButtons(admins []domain.Admin) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	rows := make([][]tele.InlineButton, 0, len(admins))
	for _, a := range admins {
		name := a.Username
		if name == "" {
			name = fmt.Sprintf("%d", a.UserID)
		}
		rows = append(rows, []tele.InlineButton{
			{
				Text: "➖ " + name,
				Data: FormatCallback(ActionRemoveAdmin, a.UserID),
			},
		})
	}

	markup.InlineKeyboard = rows
	return markup
}

// CompleteOrderButtons builds one completion button per active order.
func (b *Builder) CompleteOrderButtons(orders []*domain.Order) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	rows := make([][]tele.InlineButton, 0, len(orders))
	for _, order := range orders {
		rows = append(rows, []tele.InlineButton{
			{
				Text: fmt.Sprintf("✅ Заказ #%d — %s", order.ID, order.Subject),
				Data: FormatCallback(ActionComplete, order.ID),
			},
		})
	}

	markup.InlineKeyboard = rows
	return markup
}
