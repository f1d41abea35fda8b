package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/bot/keyboard"
	"github.com/orderdesk/orderdesk-bot/internal/domain"
	"github.com/orderdesk/orderdesk-bot/internal/order"
	"github.com/orderdesk/orderdesk-bot/internal/repository"
	"github.com/orderdesk/orderdesk-bot/internal/transport"
)

type kvAdapter struct {
	client *redis.Client
}

func (k kvAdapter) Get(ctx context.Context, key string) (string, error) {
	return k.client.Get(ctx, key).Result()
}

func (k kvAdapter) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return k.client.Set(ctx, key, value, ttl).Err()
}

func (k kvAdapter) Delete(ctx context.Context, key string) error {
	return k.client.Del(ctx, key).Err()
}

// stubOrderStore serves the payment routing tests: two fields matter, the
// orders on file and which ones received evidence.
type stubOrderStore struct {
	orders    map[int64]*domain.Order
	submitted []int64
}

func (s *stubOrderStore) Create(context.Context, *domain.Order) (int64, error) { return 0, nil }

func (s *stubOrderStore) GetByID(_ context.Context, orderID int64) (*domain.Order, error) {
	ord, ok := s.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *ord
	return &clone, nil
}

func (s *stubOrderStore) SetGroupMessage(context.Context, int64, domain.MessageRef) error {
	return nil
}

func (s *stubOrderStore) Claim(context.Context, int64, domain.UserRef) error { return nil }

func (s *stubOrderStore) MarkAwaitingDeclineReason(context.Context, int64, domain.UserRef) error {
	return nil
}

func (s *stubOrderStore) Decline(context.Context, int64, int64, string) error { return nil }

func (s *stubOrderStore) SubmitPaymentEvidence(_ context.Context, orderID, requesterID int64, evidence domain.PaymentEvidence) error {
	ord, ok := s.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	if ord.Requester.ID != requesterID || ord.Status != domain.StatusAwaitingPayment {
		return repository.ErrStatusConflict
	}

	ev := evidence
	ord.Status = domain.StatusPaymentReview
	ord.PaymentStatus = domain.PaymentSubmitted
	ord.Evidence = &ev
	s.submitted = append(s.submitted, orderID)
	return nil
}

func (s *stubOrderStore) ConfirmPayment(context.Context, int64, domain.PaymentReview) error {
	return nil
}

func (s *stubOrderStore) RejectPayment(context.Context, int64, domain.PaymentReview) error {
	return nil
}

func (s *stubOrderStore) Complete(context.Context, int64) error { return nil }

func (s *stubOrderStore) FindAwaitingPaymentByUser(_ context.Context, userID int64) (*domain.Order, error) {
	var latest *domain.Order
	for _, ord := range s.orders {
		if ord.Requester.ID != userID || ord.Status != domain.StatusAwaitingPayment {
			continue
		}
		if latest == nil || ord.ID > latest.ID {
			latest = ord
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}

	clone := *latest
	return &clone, nil
}

func (s *stubOrderStore) ListByStatus(context.Context, domain.OrderStatus, int) ([]*domain.Order, error) {
	return nil, nil
}

func (s *stubOrderStore) CountByStatus(context.Context) (map[domain.OrderStatus]int, error) {
	return map[domain.OrderStatus]int{}, nil
}

type stubTransport struct {
	captions []string
}

func (t *stubTransport) Send(_ context.Context, chatID int64, _ string, _ *transport.SendOptions) (domain.MessageRef, error) {
	return domain.MessageRef{ChatID: chatID, MessageID: 1}, nil
}

func (t *stubTransport) SendAttachment(_ context.Context, chatID int64, _ domain.Attachment, caption string, _ *transport.SendOptions) (domain.MessageRef, error) {
	t.captions = append(t.captions, caption)
	return domain.MessageRef{ChatID: chatID, MessageID: 2}, nil
}

func (t *stubTransport) Edit(context.Context, domain.MessageRef, string, *transport.SendOptions) error {
	return nil
}

func (t *stubTransport) ClearButtons(context.Context, domain.MessageRef) error { return nil }

func awaitingPaymentOrder(id, requesterID int64) *domain.Order {
	return &domain.Order{
		ID:            id,
		Requester:     domain.UserRef{ID: requesterID, Username: "student"},
		Type:          "📝 Домашнее задание",
		Subject:       "Математика",
		Budget:        "1500",
		Status:        domain.StatusAwaitingPayment,
		PaymentStatus: domain.PaymentRequested,
	}
}

func newPaymentFixture(t *testing.T, store *stubOrderStore) (*PaymentHandlers, *order.ReceiptBinder) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	binder := order.NewReceiptBinder(kvAdapter{client: client}, testLogger())
	h := NewPaymentHandlers(
		order.NewService(store, testLogger()),
		binder,
		nil,
		&stubTransport{},
		keyboard.NewBuilder(testLogger()),
		-100,
		"7777888899990000",
		testLogger(),
	)

	return h, binder
}

func receiptMessage(senderID int64) *stubContext {
	return &stubContext{
		sender: &tele.User{ID: senderID},
		msg: &tele.Message{
			ID:    20,
			Chat:  &tele.Chat{ID: senderID},
			Photo: &tele.Photo{File: tele.File{FileID: "receipt-1"}},
		},
	}
}

func TestEvidence_BoundOrderWins(t *testing.T) {
	store := &stubOrderStore{orders: map[int64]*domain.Order{
		1: awaitingPaymentOrder(1, 42),
		2: awaitingPaymentOrder(2, 42),
	}}
	h, binder := newPaymentFixture(t, store)
	ctx := context.Background()

	// The requester pressed the upload button on the older order.
	if err := binder.Bind(ctx, 42, 1); err != nil {
		t.Fatalf("bind: %v", err)
	}

	c := receiptMessage(42)
	handled, err := h.Evidence(c)
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if !handled {
		t.Fatalf("receipt with a binding must be consumed")
	}

	if len(store.submitted) != 1 || store.submitted[0] != 1 {
		t.Fatalf("expected evidence on order 1, got %v", store.submitted)
	}
	if len(c.sent) != 1 || c.sent[0] != msgReceiptReceived {
		t.Fatalf("expected receipt confirmation, got %v", c.sent)
	}

	// The binding is consumed with the receipt.
	if _, err := binder.Resolve(ctx, 42); !errors.Is(err, order.ErrNoBinding) {
		t.Fatalf("expected binding cleared, got %v", err)
	}
}

func TestEvidence_FallsBackToAwaitingPayment(t *testing.T) {
	store := &stubOrderStore{orders: map[int64]*domain.Order{
		1: awaitingPaymentOrder(1, 42),
		2: awaitingPaymentOrder(2, 42),
	}}
	h, _ := newPaymentFixture(t, store)

	c := receiptMessage(42)
	handled, err := h.Evidence(c)
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if !handled {
		t.Fatalf("receipt for an awaiting-payment order must be consumed")
	}

	if len(store.submitted) != 1 || store.submitted[0] != 2 {
		t.Fatalf("expected fallback to the most recent order, got %v", store.submitted)
	}
}

func TestEvidence_NoTargetPassesThrough(t *testing.T) {
	store := &stubOrderStore{orders: map[int64]*domain.Order{}}
	h, _ := newPaymentFixture(t, store)

	c := receiptMessage(42)
	handled, err := h.Evidence(c)
	if err != nil {
		t.Fatalf("evidence: %v", err)
	}
	if handled {
		t.Fatalf("receipt with no matching order must pass through")
	}
	if len(store.submitted) != 0 {
		t.Fatalf("unexpected submission: %v", store.submitted)
	}
}
