package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/bot/keyboard"
	apperrors "github.com/orderdesk/orderdesk-bot/internal/errors"
	"github.com/orderdesk/orderdesk-bot/internal/order"
	"github.com/orderdesk/orderdesk-bot/internal/transport"
)

// PaymentHandlers drive the payment-confirmation loop: receipt intake from
// the requester and review by the executor group.
type PaymentHandlers struct {
	orders      *order.Service
	binder      *order.ReceiptBinder
	admins      AdminChecker
	tr          transport.Transport
	kb          *keyboard.Builder
	groupChatID int64
	cardNumber  string
	log         *slog.Logger
}

// NewPaymentHandlers wires the payment flow.
func NewPaymentHandlers(
	orders *order.Service,
	binder *order.ReceiptBinder,
	admins AdminChecker,
	tr transport.Transport,
	kb *keyboard.Builder,
	groupChatID int64,
	cardNumber string,
	log *slog.Logger,
) *PaymentHandlers {
	if log == nil {
		log = slog.Default()
	}

	return &PaymentHandlers{
		orders:      orders,
		binder:      binder,
		admins:      admins,
		tr:          tr,
		kb:          kb,
		groupChatID: groupChatID,
		cardNumber:  cardNumber,
		log:         log,
	}
}

// ArmUpload handles the upload-receipt button: the requester's next
// attachment is bound to this order.
func (h *PaymentHandlers) ArmUpload(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || c.Sender() == nil {
		return nil
	}

	_, orderID, err := keyboard.ParseCallback(cb.Data)
	if err != nil || orderID == 0 {
		return nil
	}

	ctx := context.Background()
	userID := c.Sender().ID

	ord, err := h.orders.Get(ctx, orderID)
	if err != nil {
		return h.reviewError(c, err)
	}
	if ord.Requester.ID != userID {
		return c.Respond(&tele.CallbackResponse{Text: "Доступ запрещен", ShowAlert: true})
	}

	if err := h.binder.Bind(ctx, userID, orderID); err != nil {
		return err
	}

	if err := c.Respond(); err != nil {
		h.log.Warn("failed to answer upload callback", slog.Int64("order_id", orderID), slog.Any("error", err))
	}

	return c.Send(msgUploadReceiptPrompt(orderID))
}

// Evidence consumes an attachment from a requester whose order awaits
// payment. Returns false when the sender has no such order, so routing
// continues.
func (h *PaymentHandlers) Evidence(c tele.Context) (bool, error) {
	if c.Sender() == nil {
		return false, nil
	}

	att := attachmentFrom(c.Message())
	if att == nil {
		return false, nil
	}

	ctx := context.Background()
	userID := c.Sender().ID

	orderID, err := h.resolveTargetOrder(ctx, userID)
	if err != nil {
		return false, err
	}
	if orderID == 0 {
		return false, nil
	}

	ord, err := h.orders.SubmitEvidence(ctx, orderID, userID, *att)
	if err != nil {
		return true, err
	}

	if err := h.binder.Clear(ctx, userID); err != nil {
		h.log.Warn("failed to clear receipt binding", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	// Forward the receipt to the group for review.
	caption := fmt.Sprintf("💳 Квитанция по заказу #%d (бюджет: %s)", ord.ID, ord.Budget)
	if _, err := h.tr.SendAttachment(ctx, h.groupChatID, *att, caption, &transport.SendOptions{
		Markup: h.kb.PaymentReviewButtons(ord.ID),
	}); err != nil {
		h.log.Error("failed to forward payment evidence",
			slog.Int64("order_id", ord.ID),
			slog.Any("error", err),
		)
	}

	return true, c.Send(msgReceiptReceived)
}

// resolveTargetOrder picks the order a receipt belongs to: the armed upload
// binding wins; without one, the user's awaiting-payment order is used.
// Returns 0 when the attachment correlates with nothing.
func (h *PaymentHandlers) resolveTargetOrder(ctx context.Context, userID int64) (int64, error) {
	orderID, err := h.binder.Resolve(ctx, userID)
	if err == nil {
		return orderID, nil
	}
	if !errors.Is(err, order.ErrNoBinding) {
		return 0, err
	}

	pending, err := h.orders.FindAwaitingPayment(ctx, userID)
	if err != nil {
		return 0, err
	}
	if pending == nil {
		return 0, nil
	}

	return pending.ID, nil
}

// Approve confirms the payment and starts the work.
func (h *PaymentHandlers) Approve(c tele.Context) error {
	return h.review(c, true)
}

// Reject sends the order back to awaiting_payment and re-sends the payment
// instructions so the requester can try again.
func (h *PaymentHandlers) Reject(c tele.Context) error {
	return h.review(c, false)
}

func (h *PaymentHandlers) review(c tele.Context, approve bool) error {
	cb := c.Callback()
	if cb == nil || c.Sender() == nil {
		return nil
	}

	_, orderID, err := keyboard.ParseCallback(cb.Data)
	if err != nil || orderID == 0 {
		return nil
	}

	ctx := context.Background()
	reviewerID := c.Sender().ID

	isAdmin, err := h.admins.IsAdmin(ctx, reviewerID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return c.Respond(&tele.CallbackResponse{Text: "Доступ запрещен", ShowAlert: true})
	}

	if approve {
		ord, err := h.orders.ConfirmPayment(ctx, orderID, reviewerID)
		if err != nil {
			return h.reviewError(c, err)
		}

		if _, err := h.tr.Send(ctx, ord.Requester.ID, msgPaymentApproved(ord.ID), nil); err != nil {
			h.log.Error("failed to notify requester about approval",
				slog.Int64("order_id", ord.ID),
				slog.Any("error", err),
			)
		}

		h.clearReviewButtons(ctx, c)
		return c.Respond(&tele.CallbackResponse{Text: "Оплата подтверждена"})
	}

	ord, err := h.orders.RejectPayment(ctx, orderID, reviewerID, "")
	if err != nil {
		return h.reviewError(c, err)
	}

	if _, err := h.tr.Send(ctx, ord.Requester.ID, msgPaymentRejected(ord.ID), nil); err != nil {
		h.log.Error("failed to notify requester about rejection",
			slog.Int64("order_id", ord.ID),
			slog.Any("error", err),
		)
	}

	// Re-send the instructions so the loop can continue.
	instructions := msgPaymentInstructions(ord.ID, ord.Budget, h.cardNumber)
	if _, err := h.tr.Send(ctx, ord.Requester.ID, instructions, &transport.SendOptions{
		Markup: h.kb.PaymentUploadButton(ord.ID),
	}); err != nil {
		h.log.Error("failed to re-send payment instructions",
			slog.Int64("order_id", ord.ID),
			slog.Any("error", err),
		)
	}

	h.clearReviewButtons(ctx, c)
	return c.Respond(&tele.CallbackResponse{Text: "Оплата отклонена"})
}

func (h *PaymentHandlers) clearReviewButtons(ctx context.Context, c tele.Context) {
	cb := c.Callback()
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}

	ref := messageRefOf(cb.Message)
	if err := h.tr.ClearButtons(ctx, ref); err != nil {
		h.log.Warn("failed to clear review buttons",
			slog.Int64("chat_id", ref.ChatID),
			slog.Int("message_id", ref.MessageID),
			slog.Any("error", err),
		)
	}
}

func (h *PaymentHandlers) reviewError(c tele.Context, err error) error {
	var appErr *apperrors.AppError
	if asAppError(err, &appErr) && (appErr.Code == "E400" || appErr.Code == "E404") {
		return c.Respond(&tele.CallbackResponse{Text: appErr.UserMessage, ShowAlert: true})
	}

	return err
}
