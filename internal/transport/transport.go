// Package transport abstracts the messaging platform behind a narrow
// interface so services never hold a bot handle directly.
package transport

import (
	"context"

	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
)

// SendOptions carries the optional rendering knobs for outgoing messages.
type SendOptions struct {
	Markup     *tele.ReplyMarkup
	ParseMode  string
	ForceReply bool
}

// Transport sends and edits messages. Implementations wrap failures in a
// transport error; callers decide whether a delivery failure is fatal.
type Transport interface {
	// Send delivers a text message and returns a handle to it.
	Send(ctx context.Context, chatID int64, text string, opts *SendOptions) (domain.MessageRef, error)
	// SendAttachment delivers a stored file with an optional caption.
	SendAttachment(ctx context.Context, chatID int64, att domain.Attachment, caption string, opts *SendOptions) (domain.MessageRef, error)
	// Edit replaces the text and markup of a previously sent message.
	Edit(ctx context.Context, ref domain.MessageRef, text string, opts *SendOptions) error
	// ClearButtons removes the inline keyboard from a previously sent message.
	ClearButtons(ctx context.Context, ref domain.MessageRef) error
}
