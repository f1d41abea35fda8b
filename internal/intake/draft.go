// Package intake drives the multi-step order intake form.
package intake

import (
	"time"

	"github.com/orderdesk/orderdesk-bot/internal/domain"
)

// Step identifies the current position inside the intake form.
type Step string

const (
	StepNone                Step = "none"
	StepSelectingType       Step = "selecting_type"
	StepEnteringSubject     Step = "entering_subject"
	StepEnteringDescription Step = "entering_description"
	StepEnteringExtra       Step = "entering_extra"
	StepEnteringDeadline    Step = "entering_deadline"
	StepEnteringBudget      Step = "entering_budget"
	StepConfirming          Step = "confirming"
)

// Fields holds everything collected so far. A field is populated only once
// the step that gathers it has been passed.
type Fields struct {
	OrderType      string             `json:"order_type,omitempty"`
	OrderTypeLabel string             `json:"order_type_label,omitempty"`
	Subject        string             `json:"subject,omitempty"`
	Description    string             `json:"description,omitempty"`
	Attachment     *domain.Attachment `json:"attachment,omitempty"`
	ExtraNotes     string             `json:"extra_notes,omitempty"`
	Deadline       string             `json:"deadline,omitempty"`
	Budget         string             `json:"budget,omitempty"`
}

// Draft is a requester's work-in-progress order. Persisted after every step
// so a restart loses at most the in-flight message.
type Draft struct {
	UserID    int64          `json:"user_id"`
	Requester domain.UserRef `json:"requester"`
	Step      Step           `json:"step"`
	Fields    Fields         `json:"fields"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Complete reports whether every required field has been collected.
func (d *Draft) Complete() bool {
	if d == nil {
		return false
	}

	f := d.Fields
	return f.OrderType != "" && f.Subject != "" && f.Description != "" &&
		f.ExtraNotes != "" && f.Budget != ""
}
