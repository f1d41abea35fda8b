// Package order implements the lifecycle operations over persisted orders.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
	apperrors "github.com/orderdesk/orderdesk-bot/internal/errors"
	"github.com/orderdesk/orderdesk-bot/internal/intake"
	"github.com/orderdesk/orderdesk-bot/internal/repository"
	"github.com/orderdesk/orderdesk-bot/pkg/metrics"
)

// Store is the persistence contract the service needs from the order
// repository.
type Store interface {
	Create(ctx context.Context, order *domain.Order) (int64, error)
	GetByID(ctx context.Context, orderID int64) (*domain.Order, error)
	SetGroupMessage(ctx context.Context, orderID int64, ref domain.MessageRef) error
	Claim(ctx context.Context, orderID int64, executor domain.UserRef) error
	MarkAwaitingDeclineReason(ctx context.Context, orderID int64, executor domain.UserRef) error
	Decline(ctx context.Context, orderID, executorID int64, reason string) error
	SubmitPaymentEvidence(ctx context.Context, orderID, requesterID int64, evidence domain.PaymentEvidence) error
	ConfirmPayment(ctx context.Context, orderID int64, review domain.PaymentReview) error
	RejectPayment(ctx context.Context, orderID int64, review domain.PaymentReview) error
	Complete(ctx context.Context, orderID int64) error
	FindAwaitingPaymentByUser(ctx context.Context, userID int64) (*domain.Order, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus, limit int) ([]*domain.Order, error)
	CountByStatus(ctx context.Context) (map[domain.OrderStatus]int, error)
}

// Service drives order lifecycle transitions. Every transition is decided by
// the repository's conditional update; the service maps the outcome onto the
// application error taxonomy.
type Service struct {
	store Store
	log   *slog.Logger
}

// NewService creates the order lifecycle service.
func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{store: store, log: log}
}

// CreateFromDraft persists a confirmed draft as a new pending order.
func (s *Service) CreateFromDraft(ctx context.Context, draft *intake.Draft) (*domain.Order, error) {
	order := &domain.Order{
		Requester:   draft.Requester,
		Type:        draft.Fields.OrderTypeLabel,
		Subject:     draft.Fields.Subject,
		Description: draft.Fields.Description,
		Attachment:  draft.Fields.Attachment,
		ExtraNotes:  draft.Fields.ExtraNotes,
		Deadline:    draft.Fields.Deadline,
		Budget:      draft.Fields.Budget,
	}

	if _, err := s.store.Create(ctx, order); err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	metrics.RecordOrderTransition("none", domain.StatusPending)
	s.log.Info("order created",
		slog.Int64("order_id", order.ID),
		slog.Int64("user_id", order.Requester.ID),
	)

	return order, nil
}

// Get returns the order by id.
func (s *Service) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		return nil, s.mapStoreError(err, fmt.Sprintf("get order %d", orderID))
	}

	return order, nil
}

// RememberGroupMessage stores the announcement handle on the order.
func (s *Service) RememberGroupMessage(ctx context.Context, orderID int64, ref domain.MessageRef) error {
	if err := s.store.SetGroupMessage(ctx, orderID, ref); err != nil {
		return s.mapStoreError(err, fmt.Sprintf("remember group message for order %d", orderID))
	}

	return nil
}

// Claim assigns the executor and moves the order into awaiting_payment.
// Exactly one of several racing admins succeeds; the rest get an
// already-processed error.
func (s *Service) Claim(ctx context.Context, orderID int64, executor domain.UserRef) (*domain.Order, error) {
	if err := s.store.Claim(ctx, orderID, executor); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			metrics.RecordClaimConflict()
		}
		return nil, s.mapStoreError(err, fmt.Sprintf("claim order %d", orderID))
	}

	metrics.RecordOrderTransition(domain.StatusPending, domain.StatusAwaitingPayment)
	s.log.Info("order claimed",
		slog.Int64("order_id", orderID),
		slog.Int64("executor_id", executor.ID),
	)

	return s.Get(ctx, orderID)
}

// StartDecline parks a pending order while the admin types the reason.
func (s *Service) StartDecline(ctx context.Context, orderID int64, executor domain.UserRef) (*domain.Order, error) {
	if err := s.store.MarkAwaitingDeclineReason(ctx, orderID, executor); err != nil {
		return nil, s.mapStoreError(err, fmt.Sprintf("start decline for order %d", orderID))
	}

	metrics.RecordOrderTransition(domain.StatusPending, domain.StatusAwaitingDeclineReason)
	s.log.Info("order awaiting decline reason",
		slog.Int64("order_id", orderID),
		slog.Int64("executor_id", executor.ID),
	)

	return s.Get(ctx, orderID)
}

// Decline finalizes a parked decline with the reason text.
func (s *Service) Decline(ctx context.Context, orderID, executorID int64, reason string) (*domain.Order, error) {
	if err := s.store.Decline(ctx, orderID, executorID, reason); err != nil {
		return nil, s.mapStoreError(err, fmt.Sprintf("decline order %d", orderID))
	}

	metrics.RecordOrderTransition(domain.StatusAwaitingDeclineReason, domain.StatusDeclined)
	s.log.Info("order declined",
		slog.Int64("order_id", orderID),
		slog.Int64("executor_id", executorID),
	)

	return s.Get(ctx, orderID)
}

// SubmitEvidence records a payment receipt from the requester and moves the
// order into review.
func (s *Service) SubmitEvidence(ctx context.Context, orderID, requesterID int64, att domain.Attachment) (*domain.Order, error) {
	evidence := domain.PaymentEvidence{
		Attachment:  att,
		SubmittedAt: time.Now().UTC(),
	}

	if err := s.store.SubmitPaymentEvidence(ctx, orderID, requesterID, evidence); err != nil {
		return nil, s.mapStoreError(err, fmt.Sprintf("submit evidence for order %d", orderID))
	}

	metrics.RecordOrderTransition(domain.StatusAwaitingPayment, domain.StatusPaymentReview)
	s.log.Info("payment evidence submitted",
		slog.Int64("order_id", orderID),
		slog.Int64("user_id", requesterID),
	)

	return s.Get(ctx, orderID)
}

// FindAwaitingPayment returns the requester's order that is waiting for a
// receipt, or nil when there is none.
func (s *Service) FindAwaitingPayment(ctx context.Context, userID int64) (*domain.Order, error) {
	order, err := s.store.FindAwaitingPaymentByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, s.mapStoreError(err, fmt.Sprintf("find awaiting-payment order for user %d", userID))
	}

	return order, nil
}

// ConfirmPayment approves the submitted evidence; work starts.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, reviewerID int64) (*domain.Order, error) {
	review := domain.PaymentReview{
		ReviewerID: reviewerID,
		ReviewedAt: time.Now().UTC(),
	}

	if err := s.store.ConfirmPayment(ctx, orderID, review); err != nil {
		return nil, s.mapStoreError(err, fmt.Sprintf("confirm payment for order %d", orderID))
	}

	metrics.RecordOrderTransition(domain.StatusPaymentReview, domain.StatusInProgress)
	s.log.Info("payment confirmed",
		slog.Int64("order_id", orderID),
		slog.Int64("reviewer_id", reviewerID),
	)

	return s.Get(ctx, orderID)
}

// RejectPayment sends the order back to awaiting_payment for a new receipt.
func (s *Service) RejectPayment(ctx context.Context, orderID, reviewerID int64, notes string) (*domain.Order, error) {
	review := domain.PaymentReview{
		ReviewerID: reviewerID,
		ReviewedAt: time.Now().UTC(),
		Notes:      notes,
	}

	if err := s.store.RejectPayment(ctx, orderID, review); err != nil {
		return nil, s.mapStoreError(err, fmt.Sprintf("reject payment for order %d", orderID))
	}

	metrics.RecordOrderTransition(domain.StatusPaymentReview, domain.StatusAwaitingPayment)
	s.log.Info("payment rejected",
		slog.Int64("order_id", orderID),
		slog.Int64("reviewer_id", reviewerID),
	)

	return s.Get(ctx, orderID)
}

// Complete closes an in-progress order. Completing an already completed order
// yields an already-processed error, so double taps are harmless.
func (s *Service) Complete(ctx context.Context, orderID int64) (*domain.Order, error) {
	if err := s.store.Complete(ctx, orderID); err != nil {
		return nil, s.mapStoreError(err, fmt.Sprintf("complete order %d", orderID))
	}

	metrics.RecordOrderTransition(domain.StatusInProgress, domain.StatusCompleted)
	s.log.Info("order completed", slog.Int64("order_id", orderID))

	return s.Get(ctx, orderID)
}

// ListInProgress returns active orders for the completion menu.
func (s *Service) ListInProgress(ctx context.Context, limit int) ([]*domain.Order, error) {
	orders, err := s.store.ListByStatus(ctx, domain.StatusInProgress, limit)
	if err != nil {
		return nil, s.mapStoreError(err, "list in-progress orders")
	}

	return orders, nil
}

// CountByStatus returns the per-status aggregate for stats and gauges.
func (s *Service) CountByStatus(ctx context.Context) (map[domain.OrderStatus]int, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, s.mapStoreError(err, "count orders by status")
	}

	return counts, nil
}

func (s *Service) mapStoreError(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFoundError(op + ": order not found")
	case errors.Is(err, repository.ErrStatusConflict):
		return apperrors.NewAlreadyProcessedError(op + ": status guard did not match")
	default:
		return apperrors.NewDatabaseError(err)
	}
}
