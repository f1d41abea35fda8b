package handlers

import (
	"io"
	"log/slog"
	"testing"

	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
	"github.com/orderdesk/orderdesk-bot/internal/order"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubContext overrides just the telebot accessors the handlers touch.
type stubContext struct {
	tele.Context
	sender *tele.User
	msg    *tele.Message
	sent   []string
}

func (c *stubContext) Sender() *tele.User {
	return c.sender
}

func (c *stubContext) Message() *tele.Message {
	return c.msg
}

func (c *stubContext) Text() string {
	if c.msg == nil {
		return ""
	}
	return c.msg.Text
}

func (c *stubContext) Send(what interface{}, _ ...interface{}) error {
	if text, ok := what.(string); ok {
		c.sent = append(c.sent, text)
	}
	return nil
}

func declineReply(senderID int64, text string) *stubContext {
	return &stubContext{
		sender: &tele.User{ID: senderID},
		msg: &tele.Message{
			ID:      10,
			Text:    text,
			Chat:    &tele.Chat{ID: -100},
			ReplyTo: &tele.Message{ID: 5, Chat: &tele.Chat{ID: -100}},
		},
	}
}

func newDeclineHandlers(t *testing.T) (*OrderHandlers, *order.Correlator) {
	t.Helper()

	correlator := order.NewCorrelator()
	h := NewOrderHandlers(order.NewService(nil, testLogger()), correlator, nil, nil, nil, "", testLogger())
	return h, correlator
}

func TestDeclineReason_WrongAdminRejected(t *testing.T) {
	h, correlator := newDeclineHandlers(t)

	promptRef := domain.MessageRef{ChatID: -100, MessageID: 5}
	correlator.Open(promptRef, 7, 77)

	c := declineReply(88, "не успеваю")

	handled, err := h.DeclineReason(c)
	if err != nil {
		t.Fatalf("decline reason: %v", err)
	}
	if !handled {
		t.Fatalf("reply to an open prompt must be consumed")
	}
	if len(c.sent) != 1 || c.sent[0] != msgDeclineReasonRequired {
		t.Fatalf("expected reason-required notice, got %v", c.sent)
	}

	// The prompt stays open for the correlated admin.
	if _, ok := correlator.Resolve(promptRef); !ok {
		t.Fatalf("prompt must stay open after a foreign reply")
	}
}

func TestDeclineReason_EmptyReasonRejected(t *testing.T) {
	h, correlator := newDeclineHandlers(t)

	promptRef := domain.MessageRef{ChatID: -100, MessageID: 5}
	correlator.Open(promptRef, 7, 77)

	c := declineReply(77, "   ")

	handled, err := h.DeclineReason(c)
	if err != nil {
		t.Fatalf("decline reason: %v", err)
	}
	if !handled {
		t.Fatalf("empty reply to an open prompt must be consumed")
	}
	if len(c.sent) != 1 || c.sent[0] != msgDeclineReasonRequired {
		t.Fatalf("expected reason-required notice, got %v", c.sent)
	}
	if _, ok := correlator.Resolve(promptRef); !ok {
		t.Fatalf("prompt must stay open after an empty reply")
	}
}

func TestDeclineReason_UnrelatedReplyIgnored(t *testing.T) {
	h, correlator := newDeclineHandlers(t)

	correlator.Open(domain.MessageRef{ChatID: -100, MessageID: 5}, 7, 77)

	// A reply to a different message correlates with nothing.
	c := &stubContext{
		sender: &tele.User{ID: 77},
		msg: &tele.Message{
			ID:      11,
			Text:    "обычное сообщение",
			Chat:    &tele.Chat{ID: -100},
			ReplyTo: &tele.Message{ID: 6, Chat: &tele.Chat{ID: -100}},
		},
	}

	handled, err := h.DeclineReason(c)
	if err != nil {
		t.Fatalf("decline reason: %v", err)
	}
	if handled {
		t.Fatalf("unrelated reply must pass through to other handlers")
	}
	if len(c.sent) != 0 {
		t.Fatalf("unexpected messages sent: %v", c.sent)
	}
}
