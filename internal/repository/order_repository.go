// Package repository contains the Postgres persistence layer.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
)

var (
	// ErrNotFound indicates that the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict indicates that a conditional update matched the row
	// by id but not by expected status: another actor got there first.
	ErrStatusConflict = errors.New("order status conflict")
)

// OrderRepository persists orders. All state transitions are conditional
// updates guarded by the expected current status, so concurrent admins
// racing for the same order resolve to exactly one winner.
type OrderRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewOrderRepository creates an order repository over the given connection.
func NewOrderRepository(db *sql.DB, log *slog.Logger) *OrderRepository {
	if log == nil {
		log = slog.Default()
	}

	return &OrderRepository{db: db, log: log}
}

const orderColumns = `order_id, user_id, username, first_name, last_name,
	order_type, subject, description, file_id, file_type, additional_info,
	deadline, budget, status, executor_id, executor_username,
	group_chat_id, group_message_id, decline_reason,
	payment_status, payment_receipt_file_id, payment_receipt_type,
	payment_submitted_at, payment_reviewed_by, payment_reviewed_at, payment_notes,
	created_at, completed_at`

// Create inserts a new pending order and returns its assigned id.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) (int64, error) {
	query := `
		INSERT INTO orders (
			user_id, username, first_name, last_name,
			order_type, subject, description, file_id, file_type,
			additional_info, deadline, budget, status, payment_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING order_id, created_at`

	var fileID, fileType sql.NullString
	if order.Attachment != nil {
		fileID = sql.NullString{String: order.Attachment.FileID, Valid: true}
		fileType = sql.NullString{String: string(order.Attachment.Kind), Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		order.Requester.ID,
		order.Requester.Username,
		order.Requester.FirstName,
		order.Requester.LastName,
		order.Type,
		order.Subject,
		order.Description,
		fileID,
		fileType,
		order.ExtraNotes,
		order.Deadline,
		order.Budget,
		domain.StatusPending,
		domain.PaymentNotRequested,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		r.log.Error("failed to create order", "user_id", order.Requester.ID, "error", err)
		return 0, fmt.Errorf("create order: %w", err)
	}

	order.Status = domain.StatusPending
	order.PaymentStatus = domain.PaymentNotRequested

	return order.ID, nil
}

// GetByID returns the order with the given id or ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.log.Error("failed to get order", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}

	return order, nil
}

// SetGroupMessage stores the handle of the announcement message so later
// transitions can edit it in place.
func (r *OrderRepository) SetGroupMessage(ctx context.Context, orderID int64, ref domain.MessageRef) error {
	query := `UPDATE orders SET group_chat_id = $2, group_message_id = $3 WHERE order_id = $1`

	res, err := r.db.ExecContext(ctx, query, orderID, ref.ChatID, ref.MessageID)
	if err != nil {
		r.log.Error("failed to set group message", "order_id", orderID, "error", err)
		return fmt.Errorf("set group message for order %d: %w", orderID, err)
	}

	return r.checkAffected(ctx, res, orderID)
}

// Claim atomically assigns the executor and moves the order into the payment
// phase. A claim succeeds from pending or awaiting_decline_reason; in the
// latter case it cancels the pending decline. Returns ErrStatusConflict when
// someone else already resolved the order.
func (r *OrderRepository) Claim(ctx context.Context, orderID int64, executor domain.UserRef) error {
	query := `
		UPDATE orders
		SET status = $3,
			executor_id = $4,
			executor_username = $5,
			payment_status = $6,
			decline_reason = NULL
		WHERE order_id = $1 AND status = ANY($2)`

	expected := pq.Array([]string{
		string(domain.StatusPending),
		string(domain.StatusAwaitingDeclineReason),
	})

	res, err := r.db.ExecContext(ctx, query,
		orderID,
		expected,
		domain.StatusAwaitingPayment,
		executor.ID,
		executor.Username,
		domain.PaymentRequested,
	)
	if err != nil {
		r.log.Error("failed to claim order", "order_id", orderID, "executor_id", executor.ID, "error", err)
		return fmt.Errorf("claim order %d: %w", orderID, err)
	}

	return r.checkAffected(ctx, res, orderID)
}

// MarkAwaitingDeclineReason parks a pending order while the admin types the
// reason. Only pending orders can enter this state.
func (r *OrderRepository) MarkAwaitingDeclineReason(ctx context.Context, orderID int64, executor domain.UserRef) error {
	query := `
		UPDATE orders
		SET status = $2, executor_id = $3, executor_username = $4
		WHERE order_id = $1 AND status = $5`

	res, err := r.db.ExecContext(ctx, query,
		orderID,
		domain.StatusAwaitingDeclineReason,
		executor.ID,
		executor.Username,
		domain.StatusPending,
	)
	if err != nil {
		r.log.Error("failed to mark order awaiting decline reason", "order_id", orderID, "error", err)
		return fmt.Errorf("mark order %d awaiting decline reason: %w", orderID, err)
	}

	return r.checkAffected(ctx, res, orderID)
}

// Decline finalizes a decline with the provided reason. The update is guarded
// by both the parked status and the executor identity, so only the admin who
// started the decline can finish it.
func (r *OrderRepository) Decline(ctx context.Context, orderID, executorID int64, reason string) error {
	query := `
		UPDATE orders
		SET status = $3, decline_reason = $4
		WHERE order_id = $1 AND status = $5 AND executor_id = $2`

	res, err := r.db.ExecContext(ctx, query,
		orderID,
		executorID,
		domain.StatusDeclined,
		reason,
		domain.StatusAwaitingDeclineReason,
	)
	if err != nil {
		r.log.Error("failed to decline order", "order_id", orderID, "error", err)
		return fmt.Errorf("decline order %d: %w", orderID, err)
	}

	return r.checkAffected(ctx, res, orderID)
}

// SubmitPaymentEvidence records a receipt from the requester and moves the
// order into review. Accepted from awaiting_payment, and also from
// payment_review so a requester can replace an earlier receipt.
func (r *OrderRepository) SubmitPaymentEvidence(ctx context.Context, orderID, requesterID int64, evidence domain.PaymentEvidence) error {
	query := `
		UPDATE orders
		SET status = $3,
			payment_status = $4,
			payment_receipt_file_id = $5,
			payment_receipt_type = $6,
			payment_submitted_at = $7
		WHERE order_id = $1 AND user_id = $2 AND status = ANY($8)`

	expected := pq.Array([]string{
		string(domain.StatusAwaitingPayment),
		string(domain.StatusPaymentReview),
	})

	res, err := r.db.ExecContext(ctx, query,
		orderID,
		requesterID,
		domain.StatusPaymentReview,
		domain.PaymentSubmitted,
		evidence.Attachment.FileID,
		string(evidence.Attachment.Kind),
		evidence.SubmittedAt,
		expected,
	)
	if err != nil {
		r.log.Error("failed to submit payment evidence", "order_id", orderID, "error", err)
		return fmt.Errorf("submit payment evidence for order %d: %w", orderID, err)
	}

	return r.checkAffected(ctx, res, orderID)
}

// ConfirmPayment approves submitted evidence and starts the work.
func (r *OrderRepository) ConfirmPayment(ctx context.Context, orderID int64, review domain.PaymentReview) error {
	query := `
		UPDATE orders
		SET status = $2,
			payment_status = $3,
			payment_reviewed_by = $4,
			payment_reviewed_at = $5,
			payment_notes = $6
		WHERE order_id = $1 AND status = $7`

	res, err := r.db.ExecContext(ctx, query,
		orderID,
		domain.StatusInProgress,
		domain.PaymentConfirmed,
		review.ReviewerID,
		review.ReviewedAt,
		review.Notes,
		domain.StatusPaymentReview,
	)
	if err != nil {
		r.log.Error("failed to confirm payment", "order_id", orderID, "error", err)
		return fmt.Errorf("confirm payment for order %d: %w", orderID, err)
	}

	return r.checkAffected(ctx, res, orderID)
}

// RejectPayment sends the order back to awaiting_payment so the requester can
// submit a new receipt. The previous receipt is kept for the audit trail.
func (r *OrderRepository) RejectPayment(ctx context.Context, orderID int64, review domain.PaymentReview) error {
	query := `
		UPDATE orders
		SET status = $2,
			payment_status = $3,
			payment_reviewed_by = $4,
			payment_reviewed_at = $5,
			payment_notes = $6
		WHERE order_id = $1 AND status = $7`

	res, err := r.db.ExecContext(ctx, query,
		orderID,
		domain.StatusAwaitingPayment,
		domain.PaymentRejected,
		review.ReviewerID,
		review.ReviewedAt,
		review.Notes,
		domain.StatusPaymentReview,
	)
	if err != nil {
		r.log.Error("failed to reject payment", "order_id", orderID, "error", err)
		return fmt.Errorf("reject payment for order %d: %w", orderID, err)
	}

	return r.checkAffected(ctx, res, orderID)
}

// Complete closes an in-progress order.
func (r *OrderRepository) Complete(ctx context.Context, orderID int64) error {
	query := `
		UPDATE orders
		SET status = $2, completed_at = $3
		WHERE order_id = $1 AND status = $4`

	res, err := r.db.ExecContext(ctx, query,
		orderID,
		domain.StatusCompleted,
		time.Now().UTC(),
		domain.StatusInProgress,
	)
	if err != nil {
		r.log.Error("failed to complete order", "order_id", orderID, "error", err)
		return fmt.Errorf("complete order %d: %w", orderID, err)
	}

	return r.checkAffected(ctx, res, orderID)
}

// FindAwaitingPaymentByUser returns the requester's most recent order that is
// waiting for a receipt, so an incoming attachment can be routed to it.
func (r *OrderRepository) FindAwaitingPaymentByUser(ctx context.Context, userID int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC LIMIT 1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, userID, domain.StatusAwaitingPayment))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.log.Error("failed to find awaiting-payment order", "user_id", userID, "error", err)
		return nil, fmt.Errorf("find awaiting-payment order for user %d: %w", userID, err)
	}

	return order, nil
}

// ListByStatus returns the most recent orders in the given status.
func (r *OrderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + orderColumns + `
		FROM orders WHERE status = $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, status, limit)
	if err != nil {
		r.log.Error("failed to list orders", "status", string(status), "error", err)
		return nil, fmt.Errorf("list orders by status %s: %w", status, err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// CountByStatus returns the number of orders per lifecycle status.
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[domain.OrderStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM orders GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.log.Error("failed to count orders by status", "error", err)
		return nil, fmt.Errorf("count orders by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.OrderStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[domain.OrderStatus(status)] = count
	}

	return counts, rows.Err()
}

// checkAffected maps a zero-row conditional update to the right sentinel:
// ErrNotFound when the order id is unknown, ErrStatusConflict when the row
// exists but the guard did not match.
func (r *OrderRepository) checkAffected(ctx context.Context, res sql.Result, orderID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for order %d: %w", orderID, err)
	}

	if affected > 0 {
		return nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE order_id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check order %d existence: %w", orderID, err)
	}

	if !exists {
		return ErrNotFound
	}

	return ErrStatusConflict
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order                               domain.Order
		username, firstName, lastName       sql.NullString
		fileID, fileType                    sql.NullString
		extraNotes, deadline, declineReason sql.NullString
		executorID                          sql.NullInt64
		executorUsername                    sql.NullString
		groupChatID                         sql.NullInt64
		groupMessageID                      sql.NullInt64
		receiptFileID, receiptType          sql.NullString
		submittedAt, reviewedAt             sql.NullTime
		reviewedBy                          sql.NullInt64
		reviewNotes                         sql.NullString
		completedAt                         sql.NullTime
	)

	err := row.Scan(
		&order.ID,
		&order.Requester.ID,
		&username,
		&firstName,
		&lastName,
		&order.Type,
		&order.Subject,
		&order.Description,
		&fileID,
		&fileType,
		&extraNotes,
		&deadline,
		&order.Budget,
		&order.Status,
		&executorID,
		&executorUsername,
		&groupChatID,
		&groupMessageID,
		&declineReason,
		&order.PaymentStatus,
		&receiptFileID,
		&receiptType,
		&submittedAt,
		&reviewedBy,
		&reviewedAt,
		&reviewNotes,
		&order.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	order.Requester.Username = username.String
	order.Requester.FirstName = firstName.String
	order.Requester.LastName = lastName.String
	order.ExtraNotes = extraNotes.String
	order.Deadline = deadline.String
	order.DeclineReason = declineReason.String

	if fileID.Valid {
		order.Attachment = &domain.Attachment{
			FileID: fileID.String,
			Kind:   domain.AttachmentKind(fileType.String),
		}
	}

	if executorID.Valid {
		order.Executor = &domain.UserRef{
			ID:       executorID.Int64,
			Username: executorUsername.String,
		}
	}

	if groupChatID.Valid || groupMessageID.Valid {
		order.GroupMessage = domain.MessageRef{
			ChatID:    groupChatID.Int64,
			MessageID: int(groupMessageID.Int64),
		}
	}

	if receiptFileID.Valid {
		order.Evidence = &domain.PaymentEvidence{
			Attachment: domain.Attachment{
				FileID: receiptFileID.String,
				Kind:   domain.AttachmentKind(receiptType.String),
			},
			SubmittedAt: submittedAt.Time,
		}
	}

	if reviewedBy.Valid {
		order.Review = &domain.PaymentReview{
			ReviewerID: reviewedBy.Int64,
			ReviewedAt: reviewedAt.Time,
			Notes:      reviewNotes.String,
		}
	}

	if completedAt.Valid {
		t := completedAt.Time
		order.CompletedAt = &t
	}

	return &order, nil
}
