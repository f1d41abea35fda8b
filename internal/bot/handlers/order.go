package handlers

import (
	"context"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/bot/keyboard"
	"github.com/orderdesk/orderdesk-bot/internal/domain"
	apperrors "github.com/orderdesk/orderdesk-bot/internal/errors"
	"github.com/orderdesk/orderdesk-bot/internal/order"
	"github.com/orderdesk/orderdesk-bot/internal/transport"
)

// AdminChecker reports whether a user belongs to the authorized set.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// OrderHandlers drive claims and declines from the executor group.
type OrderHandlers struct {
	orders     *order.Service
	correlator *order.Correlator
	admins     AdminChecker
	tr         transport.Transport
	kb         *keyboard.Builder
	cardNumber string
	log        *slog.Logger
}

// NewOrderHandlers wires the lifecycle handlers.
func NewOrderHandlers(
	orders *order.Service,
	correlator *order.Correlator,
	admins AdminChecker,
	tr transport.Transport,
	kb *keyboard.Builder,
	cardNumber string,
	log *slog.Logger,
) *OrderHandlers {
	if log == nil {
		log = slog.Default()
	}

	return &OrderHandlers{
		orders:     orders,
		correlator: correlator,
		admins:     admins,
		tr:         tr,
		kb:         kb,
		cardNumber: cardNumber,
		log:        log,
	}
}

// Claim handles the accept button under a group announcement. Exactly one of
// several racing admins wins; the losers see the already-processed alert.
func (h *OrderHandlers) Claim(c tele.Context) error {
	orderID, err := h.callbackOrderID(c)
	if err != nil || orderID == 0 {
		return err
	}

	ctx := context.Background()
	executor := userRefFrom(c)

	if err := h.requireAdmin(ctx, c); err != nil {
		return err
	}

	ord, err := h.orders.Claim(ctx, orderID, executor)
	if err != nil {
		return h.respondLifecycleError(c, err)
	}

	h.updateGroupMessage(ctx, ord, claimedBlock(executor.DisplayName(), ord.ID, ord.Budget), nil)

	// Payment instructions go straight to the requester. A blocked bot must
	// not undo the claim.
	instructions := msgPaymentInstructions(ord.ID, ord.Budget, h.cardNumber)
	if _, err := h.tr.Send(ctx, ord.Requester.ID, instructions, &transport.SendOptions{
		Markup: h.kb.PaymentUploadButton(ord.ID),
	}); err != nil {
		h.log.Error("failed to send payment instructions",
			slog.Int64("order_id", ord.ID),
			slog.Any("error", err),
		)
	}

	return c.Respond(&tele.CallbackResponse{Text: "Заказ закреплен за вами"})
}

// StartDecline handles the decline button: the order is parked and the admin
// is asked to reply with the reason.
func (h *OrderHandlers) StartDecline(c tele.Context) error {
	orderID, err := h.callbackOrderID(c)
	if err != nil || orderID == 0 {
		return err
	}

	ctx := context.Background()
	executor := userRefFrom(c)

	if err := h.requireAdmin(ctx, c); err != nil {
		return err
	}

	ord, err := h.orders.StartDecline(ctx, orderID, executor)
	if err != nil {
		return h.respondLifecycleError(c, err)
	}

	h.updateGroupMessage(ctx, ord, declinePendingBlock(executor.DisplayName()), nil)

	prompt := declineReasonPrompt(executor.DisplayName(), ord.ID)
	promptRef, err := h.tr.Send(ctx, chatIDFrom(c), prompt, &transport.SendOptions{ForceReply: true})
	if err != nil {
		h.log.Error("failed to send decline prompt",
			slog.Int64("order_id", ord.ID),
			slog.Any("error", err),
		)
		return c.Respond(&tele.CallbackResponse{Text: "Не удалось запросить причину, попробуйте снова"})
	}

	h.correlator.Open(promptRef, ord.ID, executor.ID)

	return c.Respond()
}

// DeclineReason consumes a reply to an open decline prompt. Returns false
// when the reply correlates with nothing, so routing continues.
func (h *OrderHandlers) DeclineReason(c tele.Context) (bool, error) {
	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil || c.Sender() == nil {
		return false, nil
	}

	ref := domain.MessageRef{
		ChatID:    msg.ReplyTo.Chat.ID,
		MessageID: msg.ReplyTo.ID,
	}

	corr, ok := h.correlator.Resolve(ref)
	if !ok {
		return false, nil
	}

	// Only the admin who pressed decline may supply the reason. A reply from
	// anyone else is rejected and the prompt stays open.
	if c.Sender().ID != corr.ExecutorID {
		h.log.Warn("decline reason from wrong admin",
			slog.Int64("order_id", corr.OrderID),
			slog.Int64("expected", corr.ExecutorID),
			slog.Int64("got", c.Sender().ID),
		)
		return true, c.Send(msgDeclineReasonRequired)
	}

	reason := strings.TrimSpace(c.Text())
	if reason == "" {
		return true, c.Send(msgDeclineReasonRequired)
	}

	ctx := context.Background()

	ord, err := h.orders.Decline(ctx, corr.OrderID, corr.ExecutorID, reason)
	if err != nil {
		// The order was claimed while the reason was being typed; drop the
		// stale prompt.
		h.correlator.Remove(ref)
		return true, err
	}

	h.correlator.Remove(ref)

	h.updateGroupMessage(ctx, ord, declinedBlock(reason), nil)

	if _, err := h.tr.Send(ctx, ord.Requester.ID, msgOrderDeclined(ord.ID, reason), nil); err != nil {
		h.log.Error("failed to notify requester about decline",
			slog.Int64("order_id", ord.ID),
			slog.Any("error", err),
		)
	}

	return true, nil
}

// Complete handles the completion button in the admin console.
func (h *OrderHandlers) Complete(c tele.Context) error {
	orderID, err := h.callbackOrderID(c)
	if err != nil || orderID == 0 {
		return err
	}

	ctx := context.Background()

	if err := h.requireAdmin(ctx, c); err != nil {
		return err
	}

	ord, err := h.orders.Complete(ctx, orderID)
	if err != nil {
		return h.respondLifecycleError(c, err)
	}

	h.updateGroupMessage(ctx, ord, completedBlock(ord.ID), nil)

	if _, err := h.tr.Send(ctx, ord.Requester.ID, msgOrderCompleted(ord.ID), nil); err != nil {
		h.log.Error("failed to notify requester about completion",
			slog.Int64("order_id", ord.ID),
			slog.Any("error", err),
		)
	}

	return c.Respond(&tele.CallbackResponse{Text: "Заказ завершен"})
}

// updateGroupMessage re-renders the announcement with the given extra block.
// Terminal and claimed orders keep no buttons; pending ones keep theirs.
func (h *OrderHandlers) updateGroupMessage(ctx context.Context, ord *domain.Order, extra string, markup *tele.ReplyMarkup) {
	if ord.GroupMessage.IsZero() {
		return
	}

	opts := &transport.SendOptions{}
	if markup != nil {
		opts.Markup = markup
	}

	if err := h.tr.Edit(ctx, ord.GroupMessage, renderGroupMessage(ord, extra), opts); err != nil {
		h.log.Error("failed to update group message",
			slog.Int64("order_id", ord.ID),
			slog.Any("error", err),
		)
	}
}

func (h *OrderHandlers) requireAdmin(ctx context.Context, c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}

	isAdmin, err := h.admins.IsAdmin(ctx, c.Sender().ID)
	if err != nil {
		return apperrors.NewDatabaseError(err)
	}
	if !isAdmin {
		_ = c.Respond(&tele.CallbackResponse{Text: "Доступ запрещен", ShowAlert: true})
		return apperrors.NewAuthorizationError("non-admin pressed a lifecycle button")
	}

	return nil
}

func (h *OrderHandlers) respondLifecycleError(c tele.Context, err error) error {
	var appErr *apperrors.AppError
	if asAppError(err, &appErr) && (appErr.Code == "E400" || appErr.Code == "E404") {
		return c.Respond(&tele.CallbackResponse{Text: appErr.UserMessage, ShowAlert: true})
	}

	return err
}

func (h *OrderHandlers) callbackOrderID(c tele.Context) (int64, error) {
	cb := c.Callback()
	if cb == nil {
		return 0, nil
	}

	_, orderID, err := keyboard.ParseCallback(cb.Data)
	if err != nil {
		h.log.Warn("malformed callback data", slog.String("data", cb.Data))
		return 0, nil
	}

	return orderID, nil
}

func chatIDFrom(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}

	return 0
}
