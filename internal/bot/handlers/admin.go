package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/admin"
	"github.com/orderdesk/orderdesk-bot/internal/bot/keyboard"
	"github.com/orderdesk/orderdesk-bot/internal/domain"
	apperrors "github.com/orderdesk/orderdesk-bot/internal/errors"
	"github.com/orderdesk/orderdesk-bot/internal/order"
	"github.com/orderdesk/orderdesk-bot/internal/repository"
)

// Broadcaster enqueues a fan-out of an announcement.
type Broadcaster interface {
	EnqueueBroadcast(ctx context.Context, text string, initiatorID int64) error
}

// AdminHandlers drive the admin console: stats, broadcast, admin management,
// and the completion menu.
type AdminHandlers struct {
	orders      *order.Service
	admins      *repository.AdminRepository
	profiles    *repository.ProfileRepository
	pending     *admin.PendingStore
	broadcaster Broadcaster
	kb          *keyboard.Builder
	log         *slog.Logger
}

// NewAdminHandlers wires the admin console.
func NewAdminHandlers(
	orders *order.Service,
	admins *repository.AdminRepository,
	profiles *repository.ProfileRepository,
	pending *admin.PendingStore,
	broadcaster Broadcaster,
	kb *keyboard.Builder,
	log *slog.Logger,
) *AdminHandlers {
	if log == nil {
		log = slog.Default()
	}

	return &AdminHandlers{
		orders:      orders,
		admins:      admins,
		profiles:    profiles,
		pending:     pending,
		broadcaster: broadcaster,
		kb:          kb,
		log:         log,
	}
}

// Menu handles the /admin command.
func (h *AdminHandlers) Menu(c tele.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return err
	}

	return c.Send(msgAdminMenu, h.kb.AdminMenu())
}

// Stats shows the per-status aggregate.
func (h *AdminHandlers) Stats(c tele.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return err
	}

	ctx := context.Background()

	counts, err := h.orders.CountByStatus(ctx)
	if err != nil {
		return err
	}

	userCount, err := h.profiles.Count(ctx)
	if err != nil {
		return err
	}

	return c.Edit(renderStats(counts, userCount), h.kb.AdminMenu())
}

// StartBroadcast arms the broadcast action; the next message is the
// announcement text.
func (h *AdminHandlers) StartBroadcast(c tele.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return err
	}

	if err := h.pending.Set(context.Background(), c.Sender().ID, admin.ActionBroadcast); err != nil {
		return err
	}

	return c.Edit(msgBroadcastPrompt)
}

// StartAddAdmin arms the add-admin action; the next message is the user id.
func (h *AdminHandlers) StartAddAdmin(c tele.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return err
	}

	if err := h.pending.Set(context.Background(), c.Sender().ID, admin.ActionAddAdmin); err != nil {
		return err
	}

	return c.Edit(msgAddAdminPrompt)
}

// RemoveMenu lists every admin with a removal button.
func (h *AdminHandlers) RemoveMenu(c tele.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return err
	}

	admins, err := h.admins.List(context.Background())
	if err != nil {
		return err
	}

	return c.Edit(msgRemoveAdminMenu, h.kb.RemoveAdminButtons(admins))
}

// RemoveAdmin revokes the selected admin. Self-removal is rejected so the
// admin set can never empty itself.
func (h *AdminHandlers) RemoveAdmin(c tele.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return err
	}

	cb := c.Callback()
	if cb == nil || c.Sender() == nil {
		return nil
	}

	_, targetID, err := keyboard.ParseCallback(cb.Data)
	if err != nil || targetID == 0 {
		return err
	}

	if targetID == c.Sender().ID {
		return c.Respond(&tele.CallbackResponse{Text: msgCannotRemoveSelf, ShowAlert: true})
	}

	ctx := context.Background()
	if err := h.admins.Remove(ctx, targetID); err != nil {
		return apperrors.NewDatabaseError(err)
	}

	h.log.Info("admin removed",
		slog.Int64("admin_id", targetID),
		slog.Int64("removed_by", c.Sender().ID),
	)

	admins, err := h.admins.List(ctx)
	if err != nil {
		return err
	}

	return c.Edit(msgAdminRemoved+"\n\n"+msgRemoveAdminMenu, h.kb.RemoveAdminButtons(admins))
}

// ListAdmins shows the current roster.
func (h *AdminHandlers) ListAdmins(c tele.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return err
	}

	admins, err := h.admins.List(context.Background())
	if err != nil {
		return err
	}

	return c.Edit(renderAdminList(admins), h.kb.AdminMenu())
}

// CompleteMenu lists in-progress orders with one completion button each.
func (h *AdminHandlers) CompleteMenu(c tele.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return err
	}

	orders, err := h.orders.ListInProgress(context.Background(), 20)
	if err != nil {
		return err
	}

	if len(orders) == 0 {
		return c.Edit(msgNoActiveOrders, h.kb.AdminMenu())
	}

	return c.Edit(msgCompleteMenu, h.kb.CompleteOrderButtons(orders))
}

// PendingInput consumes a text message that answers an armed admin action.
// Returns false when the sender has nothing pending, so routing continues.
func (h *AdminHandlers) PendingInput(c tele.Context) (bool, error) {
	if c.Sender() == nil {
		return false, nil
	}

	ctx := context.Background()
	adminID := c.Sender().ID

	kind, err := h.pending.Get(ctx, adminID)
	if err != nil {
		if errors.Is(err, admin.ErrNoPendingAction) {
			return false, nil
		}
		return false, err
	}

	// Only admins can have armed actions, but membership may have been
	// revoked since the prompt.
	isAdmin, err := h.admins.IsAdmin(ctx, adminID)
	if err != nil {
		return true, apperrors.NewDatabaseError(err)
	}
	if !isAdmin {
		_ = h.pending.Clear(ctx, adminID)
		return true, apperrors.NewAuthorizationError("pending action for revoked admin")
	}

	switch kind {
	case admin.ActionBroadcast:
		return true, h.finishBroadcast(ctx, c, adminID)
	case admin.ActionAddAdmin:
		return true, h.finishAddAdmin(ctx, c, adminID)
	default:
		h.log.Warn("unknown pending admin action", slog.String("kind", string(kind)))
		_ = h.pending.Clear(ctx, adminID)
		return false, nil
	}
}

func (h *AdminHandlers) finishBroadcast(ctx context.Context, c tele.Context, adminID int64) error {
	text := strings.TrimSpace(c.Text())
	if text == "" {
		return c.Send(msgBroadcastPrompt)
	}

	if err := h.broadcaster.EnqueueBroadcast(ctx, text, adminID); err != nil {
		return err
	}

	if err := h.pending.Clear(ctx, adminID); err != nil {
		h.log.Error("failed to clear pending action", slog.Int64("admin_id", adminID), slog.Any("error", err))
	}

	return c.Send(msgBroadcastQueued)
}

func (h *AdminHandlers) finishAddAdmin(ctx context.Context, c tele.Context, adminID int64) error {
	userID, err := strconv.ParseInt(strings.TrimSpace(c.Text()), 10, 64)
	if err != nil {
		return c.Send(msgAddAdminInvalidID)
	}

	newAdmin := domain.Admin{
		UserID:  userID,
		AddedBy: adminID,
	}
	if profile, err := h.profiles.GetByID(ctx, userID); err == nil {
		newAdmin.Username = profile.Username
		newAdmin.FirstName = profile.FirstName
		newAdmin.LastName = profile.LastName
	}

	if err := h.admins.Add(ctx, newAdmin); err != nil {
		return apperrors.NewDatabaseError(err)
	}

	if err := h.pending.Clear(ctx, adminID); err != nil {
		h.log.Error("failed to clear pending action", slog.Int64("admin_id", adminID), slog.Any("error", err))
	}

	return c.Send(msgAdminAdded)
}

// CancelPending drops an armed action, typically from /cancel.
func (h *AdminHandlers) CancelPending(ctx context.Context, adminID int64) {
	if err := h.pending.Clear(ctx, adminID); err != nil {
		h.log.Error("failed to clear pending action", slog.Int64("admin_id", adminID), slog.Any("error", err))
	}
}

func (h *AdminHandlers) requireAdmin(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}

	isAdmin, err := h.admins.IsAdmin(context.Background(), c.Sender().ID)
	if err != nil {
		return apperrors.NewDatabaseError(err)
	}
	if !isAdmin {
		return apperrors.NewAuthorizationError("non-admin opened the admin console")
	}

	return nil
}
