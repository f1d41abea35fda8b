package transport

import (
	"context"
	"log/slog"
	"strconv"

	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
	apperrors "github.com/orderdesk/orderdesk-bot/internal/errors"
)

// TelebotTransport implements Transport over a telebot instance.
type TelebotTransport struct {
	bot *tele.Bot
	log *slog.Logger
}

// NewTelebotTransport wraps the given bot.
func NewTelebotTransport(bot *tele.Bot, log *slog.Logger) *TelebotTransport {
	if log == nil {
		log = slog.Default()
	}

	return &TelebotTransport{bot: bot, log: log}
}

// Send delivers a text message to the given chat.
func (t *TelebotTransport) Send(ctx context.Context, chatID int64, text string, opts *SendOptions) (domain.MessageRef, error) {
	msg, err := t.bot.Send(tele.ChatID(chatID), text, sendOptions(opts))
	if err != nil {
		t.log.Error("failed to send message", "chat_id", chatID, "error", err)
		return domain.MessageRef{}, apperrors.NewTransportError("send message", err)
	}

	return messageRef(msg), nil
}

// SendAttachment delivers a stored file with an optional caption.
func (t *TelebotTransport) SendAttachment(ctx context.Context, chatID int64, att domain.Attachment, caption string, opts *SendOptions) (domain.MessageRef, error) {
	msg, err := t.bot.Send(tele.ChatID(chatID), media(att, caption), sendOptions(opts))
	if err != nil {
		t.log.Error("failed to send attachment",
			"chat_id", chatID,
			"kind", string(att.Kind),
			"error", err,
		)
		return domain.MessageRef{}, apperrors.NewTransportError("send attachment", err)
	}

	return messageRef(msg), nil
}

// Edit replaces the text and markup of a previously sent message.
func (t *TelebotTransport) Edit(ctx context.Context, ref domain.MessageRef, text string, opts *SendOptions) error {
	if _, err := t.bot.Edit(editable(ref), text, sendOptions(opts)); err != nil {
		t.log.Error("failed to edit message",
			"chat_id", ref.ChatID,
			"message_id", ref.MessageID,
			"error", err,
		)
		return apperrors.NewTransportError("edit message", err)
	}

	return nil
}

// ClearButtons removes the inline keyboard from a previously sent message.
func (t *TelebotTransport) ClearButtons(ctx context.Context, ref domain.MessageRef) error {
	if _, err := t.bot.EditReplyMarkup(editable(ref), nil); err != nil {
		t.log.Error("failed to clear buttons",
			"chat_id", ref.ChatID,
			"message_id", ref.MessageID,
			"error", err,
		)
		return apperrors.NewTransportError("clear buttons", err)
	}

	return nil
}

func sendOptions(opts *SendOptions) *tele.SendOptions {
	out := &tele.SendOptions{}
	if opts == nil {
		return out
	}

	if opts.Markup != nil {
		out.ReplyMarkup = opts.Markup
	}
	if opts.ForceReply {
		if out.ReplyMarkup == nil {
			out.ReplyMarkup = &tele.ReplyMarkup{}
		}
		out.ReplyMarkup.ForceReply = true
	}
	if opts.ParseMode != "" {
		out.ParseMode = opts.ParseMode
	}

	return out
}

func media(att domain.Attachment, caption string) tele.Sendable {
	file := tele.File{FileID: att.FileID}

	switch att.Kind {
	case domain.AttachmentPhoto:
		return &tele.Photo{File: file, Caption: caption}
	case domain.AttachmentAudio:
		return &tele.Audio{File: file, Caption: caption}
	case domain.AttachmentVoice:
		return &tele.Voice{File: file, Caption: caption}
	case domain.AttachmentVideo:
		return &tele.Video{File: file, Caption: caption}
	case domain.AttachmentVideoNote:
		return &tele.VideoNote{File: file}
	case domain.AttachmentSticker:
		return &tele.Sticker{File: file}
	default:
		return &tele.Document{File: file, Caption: caption}
	}
}

func messageRef(msg *tele.Message) domain.MessageRef {
	if msg == nil {
		return domain.MessageRef{}
	}

	return domain.MessageRef{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
	}
}

// storedMessage satisfies tele.Editable for messages known only by reference.
type storedMessage struct {
	ref domain.MessageRef
}

func (m storedMessage) MessageSig() (string, int64) {
	return strconv.Itoa(m.ref.MessageID), m.ref.ChatID
}

func editable(ref domain.MessageRef) tele.Editable {
	return storedMessage{ref: ref}
}
