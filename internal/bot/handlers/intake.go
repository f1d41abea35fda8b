package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/bot/keyboard"
	"github.com/orderdesk/orderdesk-bot/internal/intake"
	"github.com/orderdesk/orderdesk-bot/internal/order"
	"github.com/orderdesk/orderdesk-bot/internal/transport"
)

// IntakeHandlers drive the order form: one prompt per step, one message per
// answer, summary and confirmation at the end.
type IntakeHandlers struct {
	machine     intake.Machine
	orders      *order.Service
	admins      AdminChecker
	tr          transport.Transport
	kb          *keyboard.Builder
	groupChatID int64
	log         *slog.Logger
}

// NewIntakeHandlers wires the intake flow.
func NewIntakeHandlers(
	machine intake.Machine,
	orders *order.Service,
	admins AdminChecker,
	tr transport.Transport,
	kb *keyboard.Builder,
	groupChatID int64,
	log *slog.Logger,
) *IntakeHandlers {
	if log == nil {
		log = slog.Default()
	}

	return &IntakeHandlers{
		machine:     machine,
		orders:      orders,
		admins:      admins,
		tr:          tr,
		kb:          kb,
		groupChatID: groupChatID,
		log:         log,
	}
}

// Start begins a fresh draft and shows the type menu. Restarting mid-form
// discards the previous draft.
func (h *IntakeHandlers) Start(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}

	ctx := context.Background()

	if _, err := h.machine.Begin(ctx, userRefFrom(c)); err != nil {
		return err
	}

	isAdmin, err := h.admins.IsAdmin(ctx, c.Sender().ID)
	if err != nil {
		h.log.Error("failed to check admin membership", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
		isAdmin = false
	}

	return c.Send(msgGreeting, h.kb.StartMenu(isAdmin))
}

// Help shows the command reference.
func (h *IntakeHandlers) Help(c tele.Context) error {
	return c.Send(msgHelp)
}

// Cancel discards the draft, if any.
func (h *IntakeHandlers) Cancel(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}

	ctx := context.Background()
	userID := c.Sender().ID

	if _, err := h.machine.Get(ctx, userID); err != nil {
		if errors.Is(err, intake.ErrDraftNotFound) {
			return c.Send(msgNothingToCancel)
		}
		return err
	}

	if err := h.machine.Clear(ctx, userID); err != nil {
		return err
	}

	return c.Send(msgOrderCancelled)
}

// SelectType consumes the type-selection callback and asks for the subject.
func (h *IntakeHandlers) SelectType(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || c.Sender() == nil {
		return nil
	}

	code := typeCodeFrom(cb.Data)
	if code == "" {
		return nil
	}
	label, ok := keyboard.OrderTypeLabel(code)
	if !ok {
		return c.Edit(msgUnknownOrderType, h.kb.OrderTypeMenu())
	}

	in := intake.Input{
		Step:           intake.StepSelectingType,
		OrderType:      code,
		OrderTypeLabel: label,
	}

	if _, err := h.machine.Apply(context.Background(), c.Sender().ID, in); err != nil {
		return h.applyError(c, intake.StepSelectingType, err)
	}

	return c.Edit(promptSubject)
}

// FormMessage consumes one answer for the given text step and prompts for the
// next one.
func (h *IntakeHandlers) FormMessage(c tele.Context, step intake.Step) error {
	if c.Sender() == nil {
		return nil
	}

	in := intake.Input{
		Step: step,
		Text: c.Text(),
	}
	if step == intake.StepEnteringDescription {
		in.Attachment = attachmentFrom(c.Message())
	}

	draft, err := h.machine.Apply(context.Background(), c.Sender().ID, in)
	if err != nil {
		return h.applyError(c, step, err)
	}

	if draft.Step == intake.StepConfirming {
		return c.Send(renderDraftSummary(draft), h.kb.ConfirmButtons())
	}

	return c.Send(stepPrompt(draft.Step))
}

// Confirm submits the finished draft: the order is persisted, announced to
// the executor group, and the draft is cleared.
func (h *IntakeHandlers) Confirm(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}

	ctx := context.Background()
	userID := c.Sender().ID

	draft, err := h.machine.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, intake.ErrDraftNotFound) {
			return c.Edit(msgNothingToCancel)
		}
		return err
	}

	if draft.Step != intake.StepConfirming {
		h.log.Warn("confirm pressed outside confirmation step",
			slog.Int64("user_id", userID),
			slog.String("step", string(draft.Step)),
		)
		return nil
	}

	ord, err := h.orders.CreateFromDraft(ctx, draft)
	if err != nil {
		return err
	}

	// Announce to the group. Delivery failures leave the order pending; the
	// completion menu still lists it.
	ref, sendErr := h.tr.Send(ctx, h.groupChatID, renderGroupMessage(ord, ""), &transport.SendOptions{
		Markup: h.kb.GroupOrderButtons(ord.ID),
	})
	if sendErr != nil {
		h.log.Error("failed to announce order", slog.Int64("order_id", ord.ID), slog.Any("error", sendErr))
	} else {
		if err := h.orders.RememberGroupMessage(ctx, ord.ID, ref); err != nil {
			h.log.Error("failed to store group message", slog.Int64("order_id", ord.ID), slog.Any("error", err))
		}

		if ord.Attachment != nil {
			if _, err := h.tr.SendAttachment(ctx, h.groupChatID, *ord.Attachment, "", nil); err != nil {
				h.log.Warn("failed to forward attachment", slog.Int64("order_id", ord.ID), slog.Any("error", err))
			}
		}
	}

	if err := h.machine.Clear(ctx, userID); err != nil {
		h.log.Error("failed to clear draft", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	return c.Edit(msgOrderSubmitted(ord.ID))
}

// CancelDraft consumes the cancel button under the summary.
func (h *IntakeHandlers) CancelDraft(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}

	if err := h.machine.Clear(context.Background(), c.Sender().ID); err != nil {
		h.log.Error("failed to clear draft", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
	}

	return c.Edit(msgOrderCancelled)
}

func (h *IntakeHandlers) applyError(c tele.Context, step intake.Step, err error) error {
	switch {
	case errors.Is(err, intake.ErrInvalidInput):
		if step == intake.StepEnteringBudget {
			return c.Send(msgInvalidBudget)
		}
		return c.Send(stepPrompt(step))

	case errors.Is(err, intake.ErrStaleStep), errors.Is(err, intake.ErrDraftLocked):
		// A late or duplicate message for a step already passed. Drop it.
		return nil

	case errors.Is(err, intake.ErrDraftNotFound):
		return c.Send(msgUnknownInput)

	default:
		return err
	}
}

func stepPrompt(step intake.Step) string {
	switch step {
	case intake.StepEnteringSubject:
		return promptSubject
	case intake.StepEnteringDescription:
		return promptDescription
	case intake.StepEnteringExtra:
		return promptAdditional
	case intake.StepEnteringDeadline:
		return promptDeadline
	case intake.StepEnteringBudget:
		return promptBudget
	default:
		return msgUnknownInput
	}
}

func typeCodeFrom(data string) string {
	data = strings.TrimPrefix(data, "\f")
	_, code, _ := strings.Cut(data, ":")
	return code
}
