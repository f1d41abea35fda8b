// Package domain defines the core entities shared across the bot.
package domain

import "time"

// OrderStatus is the lifecycle state of an order. The tags form a closed set
// and are stored as-is, so they must never be renamed.
type OrderStatus string

const (
	StatusPending               OrderStatus = "pending"
	StatusAwaitingDeclineReason OrderStatus = "awaiting_decline_reason"
	StatusDeclined              OrderStatus = "declined"
	StatusAwaitingPayment       OrderStatus = "awaiting_payment"
	StatusPaymentReview         OrderStatus = "payment_review"
	StatusInProgress            OrderStatus = "in_progress"
	StatusCompleted             OrderStatus = "completed"
)

// PaymentStatus tracks the payment sub-workflow. Meaningful only once an
// order has been claimed.
type PaymentStatus string

const (
	PaymentNotRequested PaymentStatus = "not_requested"
	PaymentRequested    PaymentStatus = "requested"
	PaymentSubmitted    PaymentStatus = "submitted"
	PaymentConfirmed    PaymentStatus = "confirmed"
	PaymentRejected     PaymentStatus = "rejected"
)

// IsTerminal reports whether the status permits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDeclined || s == StatusCompleted
}

// AttachmentKind mirrors the transport's typed attachment categories.
type AttachmentKind string

const (
	AttachmentDocument  AttachmentKind = "document"
	AttachmentPhoto     AttachmentKind = "photo"
	AttachmentAudio     AttachmentKind = "audio"
	AttachmentVoice     AttachmentKind = "voice"
	AttachmentVideo     AttachmentKind = "video"
	AttachmentVideoNote AttachmentKind = "video_note"
	AttachmentSticker   AttachmentKind = "sticker"
)

// Attachment references a file held by the transport.
type Attachment struct {
	FileID string         `json:"file_id"`
	Kind   AttachmentKind `json:"kind"`
}

// UserRef identifies an actor together with a display handle.
type UserRef struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName returns the username when present, otherwise the full name.
func (u UserRef) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}

	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	return name
}

// MessageRef is an opaque handle to a previously sent message, kept so the
// broadcast message can be edited later.
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// IsZero reports whether the reference points at nothing.
func (r MessageRef) IsZero() bool {
	return r.ChatID == 0 && r.MessageID == 0
}

// PaymentEvidence is a receipt submitted by the requester.
type PaymentEvidence struct {
	Attachment  Attachment
	SubmittedAt time.Time
}

// PaymentReview records the admin decision over submitted evidence.
type PaymentReview struct {
	ReviewerID int64
	ReviewedAt time.Time
	Notes      string
}

// Order is the central record of the system. Orders are never deleted.
type Order struct {
	ID        int64
	Requester UserRef

	Type        string
	Subject     string
	Description string
	Attachment  *Attachment
	ExtraNotes  string
	Deadline    string
	Budget      string

	Status        OrderStatus
	Executor      *UserRef
	DeclineReason string
	GroupMessage  MessageRef

	PaymentStatus PaymentStatus
	Evidence      *PaymentEvidence
	Review        *PaymentReview

	CreatedAt   time.Time
	CompletedAt *time.Time
}
