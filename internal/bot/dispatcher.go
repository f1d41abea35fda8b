package bot

import (
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/bot/handlers"
	"github.com/orderdesk/orderdesk-bot/internal/intake"
)

// Dispatcher routes non-command messages by conversational context, checked
// in priority order: decline-reason replies, armed admin actions, the intake
// form step, and finally payment receipts.
type Dispatcher struct {
	machine intake.Machine
	intake  *handlers.IntakeHandlers
	orders  *handlers.OrderHandlers
	payment *handlers.PaymentHandlers
	admin   *handlers.AdminHandlers
	log     *slog.Logger
}

// NewDispatcher creates a Dispatcher over the handler groups.
func NewDispatcher(
	machine intake.Machine,
	intakeHandlers *handlers.IntakeHandlers,
	orderHandlers *handlers.OrderHandlers,
	paymentHandlers *handlers.PaymentHandlers,
	adminHandlers *handlers.AdminHandlers,
	log *slog.Logger,
) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		machine: machine,
		intake:  intakeHandlers,
		orders:  orderHandlers,
		payment: paymentHandlers,
		admin:   adminHandlers,
		log:     log,
	}
}

// Dispatch routes the message and reports whether it was consumed.
func (d *Dispatcher) Dispatch(c tele.Context) (bool, error) {
	if c == nil || c.Sender() == nil {
		return false, nil
	}

	// Replies can arrive in the executor group; everything else is
	// private-chat only.
	if msg := c.Message(); msg != nil && msg.ReplyTo != nil {
		handled, err := d.orders.DeclineReason(c)
		if handled || err != nil {
			return handled, err
		}
	}

	if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate {
		return false, nil
	}

	handled, err := d.admin.PendingInput(c)
	if handled || err != nil {
		return handled, err
	}

	handled, err = d.dispatchFormStep(c)
	if handled || err != nil {
		return handled, err
	}

	return d.payment.Evidence(c)
}

func (d *Dispatcher) dispatchFormStep(c tele.Context) (bool, error) {
	draft, err := d.machine.Get(context.Background(), c.Sender().ID)
	if err != nil {
		if errors.Is(err, intake.ErrDraftNotFound) {
			return false, nil
		}
		return false, err
	}

	step := draft.Step
	if !intake.IsFormStep(step) || step == intake.StepSelectingType || step == intake.StepConfirming {
		// Button-driven steps ignore free text.
		return false, nil
	}

	return true, d.intake.FormMessage(c, step)
}
