package handlers

import (
	"errors"

	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
	apperrors "github.com/orderdesk/orderdesk-bot/internal/errors"
)

func asAppError(err error, target **apperrors.AppError) bool {
	return errors.As(err, target)
}

func userRefFrom(c tele.Context) domain.UserRef {
	sender := c.Sender()
	if sender == nil {
		return domain.UserRef{}
	}

	return domain.UserRef{
		ID:        sender.ID,
		Username:  sender.Username,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
	}
}

func messageRefOf(msg *tele.Message) domain.MessageRef {
	if msg == nil || msg.Chat == nil {
		return domain.MessageRef{}
	}

	return domain.MessageRef{
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
	}
}

// attachmentFrom extracts the first supported media from the message.
func attachmentFrom(msg *tele.Message) *domain.Attachment {
	if msg == nil {
		return nil
	}

	switch {
	case msg.Document != nil:
		return &domain.Attachment{FileID: msg.Document.FileID, Kind: domain.AttachmentDocument}
	case msg.Photo != nil:
		return &domain.Attachment{FileID: msg.Photo.FileID, Kind: domain.AttachmentPhoto}
	case msg.Audio != nil:
		return &domain.Attachment{FileID: msg.Audio.FileID, Kind: domain.AttachmentAudio}
	case msg.Voice != nil:
		return &domain.Attachment{FileID: msg.Voice.FileID, Kind: domain.AttachmentVoice}
	case msg.Video != nil:
		return &domain.Attachment{FileID: msg.Video.FileID, Kind: domain.AttachmentVideo}
	case msg.VideoNote != nil:
		return &domain.Attachment{FileID: msg.VideoNote.FileID, Kind: domain.AttachmentVideoNote}
	case msg.Sticker != nil:
		return &domain.Attachment{FileID: msg.Sticker.FileID, Kind: domain.AttachmentSticker}
	default:
		return nil
	}
}
