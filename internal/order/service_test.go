package order

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
	apperrors "github.com/orderdesk/orderdesk-bot/internal/errors"
	"github.com/orderdesk/orderdesk-bot/internal/intake"
	"github.com/orderdesk/orderdesk-bot/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore mirrors the repository's conditional-update semantics in memory.
type memStore struct {
	mu     sync.Mutex
	seq    int64
	orders map[int64]*domain.Order
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[int64]*domain.Order)}
}

func (s *memStore) Create(_ context.Context, order *domain.Order) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	order.ID = s.seq
	order.Status = domain.StatusPending
	order.PaymentStatus = domain.PaymentNotRequested
	order.CreatedAt = time.Now()

	clone := *order
	s.orders[order.ID] = &clone

	return order.ID, nil
}

func (s *memStore) GetByID(_ context.Context, orderID int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}

	clone := *order
	return &clone, nil
}

func (s *memStore) SetGroupMessage(_ context.Context, orderID int64, ref domain.MessageRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}

	order.GroupMessage = ref
	return nil
}

func (s *memStore) Claim(_ context.Context, orderID int64, executor domain.UserRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != domain.StatusPending && order.Status != domain.StatusAwaitingDeclineReason {
		return repository.ErrStatusConflict
	}

	exec := executor
	order.Status = domain.StatusAwaitingPayment
	order.Executor = &exec
	order.PaymentStatus = domain.PaymentRequested
	order.DeclineReason = ""
	return nil
}

func (s *memStore) MarkAwaitingDeclineReason(_ context.Context, orderID int64, executor domain.UserRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != domain.StatusPending {
		return repository.ErrStatusConflict
	}

	exec := executor
	order.Status = domain.StatusAwaitingDeclineReason
	order.Executor = &exec
	return nil
}

func (s *memStore) Decline(_ context.Context, orderID, executorID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != domain.StatusAwaitingDeclineReason ||
		order.Executor == nil || order.Executor.ID != executorID {
		return repository.ErrStatusConflict
	}

	order.Status = domain.StatusDeclined
	order.DeclineReason = reason
	return nil
}

func (s *memStore) SubmitPaymentEvidence(_ context.Context, orderID, requesterID int64, evidence domain.PaymentEvidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Requester.ID != requesterID ||
		(order.Status != domain.StatusAwaitingPayment && order.Status != domain.StatusPaymentReview) {
		return repository.ErrStatusConflict
	}

	ev := evidence
	order.Status = domain.StatusPaymentReview
	order.PaymentStatus = domain.PaymentSubmitted
	order.Evidence = &ev
	return nil
}

func (s *memStore) ConfirmPayment(_ context.Context, orderID int64, review domain.PaymentReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != domain.StatusPaymentReview {
		return repository.ErrStatusConflict
	}

	rv := review
	order.Status = domain.StatusInProgress
	order.PaymentStatus = domain.PaymentConfirmed
	order.Review = &rv
	return nil
}

func (s *memStore) RejectPayment(_ context.Context, orderID int64, review domain.PaymentReview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != domain.StatusPaymentReview {
		return repository.ErrStatusConflict
	}

	rv := review
	order.Status = domain.StatusAwaitingPayment
	order.PaymentStatus = domain.PaymentRejected
	order.Review = &rv
	return nil
}

func (s *memStore) Complete(_ context.Context, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != domain.StatusInProgress {
		return repository.ErrStatusConflict
	}

	now := time.Now()
	order.Status = domain.StatusCompleted
	order.CompletedAt = &now
	return nil
}

func (s *memStore) FindAwaitingPaymentByUser(_ context.Context, userID int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.orders {
		if order.Requester.ID == userID && order.Status == domain.StatusAwaitingPayment {
			clone := *order
			return &clone, nil
		}
	}

	return nil, repository.ErrNotFound
}

func (s *memStore) ListByStatus(_ context.Context, status domain.OrderStatus, _ int) ([]*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Order
	for _, order := range s.orders {
		if order.Status == status {
			clone := *order
			out = append(out, &clone)
		}
	}

	return out, nil
}

func (s *memStore) CountByStatus(_ context.Context) (map[domain.OrderStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[domain.OrderStatus]int)
	for _, order := range s.orders {
		counts[order.Status]++
	}

	return counts, nil
}

func newPendingOrder(t *testing.T, svc *Service) *domain.Order {
	t.Helper()

	draft := &intake.Draft{
		UserID:    42,
		Requester: domain.UserRef{ID: 42, Username: "student"},
		Step:      intake.StepConfirming,
		Fields: intake.Fields{
			OrderType:      "homework",
			OrderTypeLabel: "📝 Домашнее задание",
			Subject:        "Математика",
			Description:    "Задачи 1-10",
			ExtraNotes:     "нет",
			Deadline:       "завтра",
			Budget:         "1500",
		},
	}

	order, err := svc.CreateFromDraft(context.Background(), draft)
	if err != nil {
		t.Fatalf("create from draft: %v", err)
	}

	return order
}

func appErrorCode(t *testing.T, err error) string {
	t.Helper()

	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}

	return appErr.Code
}

func TestService_ClaimRace(t *testing.T) {
	svc := NewService(newMemStore(), testLogger())
	order := newPendingOrder(t, svc)

	const racers = 8

	var wg sync.WaitGroup
	results := make(chan error, racers)

	for i := 0; i < racers; i++ {
		executor := domain.UserRef{ID: int64(100 + i), Username: "executor"}
		wg.Add(1)
		go func(e domain.UserRef) {
			defer wg.Done()
			_, err := svc.Claim(context.Background(), order.ID, e)
			results <- err
		}(executor)
	}

	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		if err == nil {
			won++
			continue
		}
		if appErrorCode(t, err) == "E400" {
			lost++
			continue
		}
		t.Fatalf("unexpected error: %v", err)
	}

	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
	if lost != racers-1 {
		t.Fatalf("expected %d losers, got %d", racers-1, lost)
	}
}

func TestService_ClaimCancelsPendingDecline(t *testing.T) {
	svc := NewService(newMemStore(), testLogger())
	order := newPendingOrder(t, svc)
	ctx := context.Background()

	if _, err := svc.StartDecline(ctx, order.ID, domain.UserRef{ID: 77}); err != nil {
		t.Fatalf("start decline: %v", err)
	}

	claimed, err := svc.Claim(ctx, order.ID, domain.UserRef{ID: 88, Username: "winner"})
	if err != nil {
		t.Fatalf("claim from awaiting_decline_reason: %v", err)
	}

	if claimed.Status != domain.StatusAwaitingPayment {
		t.Fatalf("expected awaiting_payment, got %s", claimed.Status)
	}
	if claimed.PaymentStatus != domain.PaymentRequested {
		t.Fatalf("expected payment requested, got %s", claimed.PaymentStatus)
	}
	if claimed.Executor == nil || claimed.Executor.ID != 88 {
		t.Fatalf("expected executor 88, got %+v", claimed.Executor)
	}

	// The parked decline must be dead: its reason can no longer land.
	_, err = svc.Decline(ctx, order.ID, 77, "слишком сложно")
	if appErrorCode(t, err) != "E400" {
		t.Fatalf("expected already-processed, got %v", err)
	}
}

func TestService_DeclineGuardedByExecutor(t *testing.T) {
	svc := NewService(newMemStore(), testLogger())
	order := newPendingOrder(t, svc)
	ctx := context.Background()

	if _, err := svc.StartDecline(ctx, order.ID, domain.UserRef{ID: 77}); err != nil {
		t.Fatalf("start decline: %v", err)
	}

	// A different admin cannot finish someone else's decline.
	if _, err := svc.Decline(ctx, order.ID, 88, "нет времени"); err == nil {
		t.Fatalf("expected decline by wrong admin to fail")
	}

	declined, err := svc.Decline(ctx, order.ID, 77, "нет времени")
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if declined.Status != domain.StatusDeclined {
		t.Fatalf("expected declined, got %s", declined.Status)
	}
	if declined.DeclineReason != "нет времени" {
		t.Fatalf("unexpected reason: %q", declined.DeclineReason)
	}
}

func TestService_DeclineOnlyFromPending(t *testing.T) {
	svc := NewService(newMemStore(), testLogger())
	order := newPendingOrder(t, svc)
	ctx := context.Background()

	if _, err := svc.Claim(ctx, order.ID, domain.UserRef{ID: 88}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	_, err := svc.StartDecline(ctx, order.ID, domain.UserRef{ID: 77})
	if appErrorCode(t, err) != "E400" {
		t.Fatalf("expected already-processed for decline after claim, got %v", err)
	}
}

func TestService_PaymentLoop(t *testing.T) {
	svc := NewService(newMemStore(), testLogger())
	order := newPendingOrder(t, svc)
	ctx := context.Background()

	receipt := domain.Attachment{FileID: "receipt-1", Kind: domain.AttachmentPhoto}
	var paymentTrail []domain.PaymentStatus

	claimed, err := svc.Claim(ctx, order.ID, domain.UserRef{ID: 88})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	paymentTrail = append(paymentTrail, claimed.PaymentStatus)

	submitted, err := svc.SubmitEvidence(ctx, order.ID, 42, receipt)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	paymentTrail = append(paymentTrail, submitted.PaymentStatus)

	rejected, err := svc.RejectPayment(ctx, order.ID, 88, "сумма не совпадает")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	paymentTrail = append(paymentTrail, rejected.PaymentStatus)
	if rejected.Status != domain.StatusAwaitingPayment {
		t.Fatalf("expected awaiting_payment after rejection, got %s", rejected.Status)
	}

	resubmitted, err := svc.SubmitEvidence(ctx, order.ID, 42, receipt)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	paymentTrail = append(paymentTrail, resubmitted.PaymentStatus)

	confirmed, err := svc.ConfirmPayment(ctx, order.ID, 88)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	paymentTrail = append(paymentTrail, confirmed.PaymentStatus)
	if confirmed.Status != domain.StatusInProgress {
		t.Fatalf("expected in_progress after confirmation, got %s", confirmed.Status)
	}

	expected := []domain.PaymentStatus{
		domain.PaymentRequested,
		domain.PaymentSubmitted,
		domain.PaymentRejected,
		domain.PaymentSubmitted,
		domain.PaymentConfirmed,
	}
	for i, status := range expected {
		if paymentTrail[i] != status {
			t.Fatalf("payment trail mismatch at %d: expected %s, got %s", i, status, paymentTrail[i])
		}
	}

	completed, err := svc.Complete(ctx, order.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != domain.StatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("expected completed order with timestamp, got %+v", completed)
	}

	// Completing twice must be harmless.
	_, err = svc.Complete(ctx, order.ID)
	if appErrorCode(t, err) != "E400" {
		t.Fatalf("expected already-processed on double completion, got %v", err)
	}
}

func TestService_EvidenceFromWrongUserRejected(t *testing.T) {
	svc := NewService(newMemStore(), testLogger())
	order := newPendingOrder(t, svc)
	ctx := context.Background()

	if _, err := svc.Claim(ctx, order.ID, domain.UserRef{ID: 88}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	receipt := domain.Attachment{FileID: "receipt-1", Kind: domain.AttachmentPhoto}
	_, err := svc.SubmitEvidence(ctx, order.ID, 999, receipt)
	if appErrorCode(t, err) != "E400" {
		t.Fatalf("expected rejection for foreign receipt, got %v", err)
	}
}

func TestService_GetMissingOrder(t *testing.T) {
	svc := NewService(newMemStore(), testLogger())

	_, err := svc.Get(context.Background(), 12345)
	if appErrorCode(t, err) != "E404" {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestService_FindAwaitingPayment(t *testing.T) {
	svc := NewService(newMemStore(), testLogger())
	order := newPendingOrder(t, svc)
	ctx := context.Background()

	// Nothing awaits payment before the claim.
	found, err := svc.FindAwaitingPayment(ctx, 42)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != nil {
		t.Fatalf("expected no awaiting-payment order, got %+v", found)
	}

	if _, err := svc.Claim(ctx, order.ID, domain.UserRef{ID: 88}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	found, err = svc.FindAwaitingPayment(ctx, 42)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found == nil || found.ID != order.ID {
		t.Fatalf("expected order %d, got %+v", order.ID, found)
	}
}
