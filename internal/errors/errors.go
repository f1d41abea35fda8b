// Package errors defines the application error taxonomy.
package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError carries an error code, operator-facing message, and the message
// shown to the acting user.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// NewValidationError marks malformed user input. Always recovered locally by
// re-prompting the same step.
func NewValidationError(msg, userMsg string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     msg,
		UserMessage: userMsg,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewDatabaseError wraps a storage failure.
func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("database error: %s", underlyingMsg),
		UserMessage: "Временная проблема, попробуйте позже",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewTransportError wraps a message delivery or edit failure. Never retried
// automatically and never aborts the remaining side effects of a transition.
func NewTransportError(operation string, cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     fmt.Sprintf("transport error: %s", operation),
		UserMessage: "Сервис временно недоступен",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewAlreadyProcessedError reports a transition whose guard failed because
// another actor won the race or the order reached a terminal state.
func NewAlreadyProcessedError(msg string) *AppError {
	return &AppError{
		Code:        "E400",
		Message:     msg,
		UserMessage: "Этот заказ уже обработан.",
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewNotFoundError reports a missing order or draft.
func NewNotFoundError(msg string) *AppError {
	return &AppError{
		Code:        "E404",
		Message:     msg,
		UserMessage: "Заказ не найден.",
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewAuthorizationError reports a non-admin invoking an admin-only action.
func NewAuthorizationError(msg string) *AppError {
	return &AppError{
		Code:        "E403",
		Message:     msg,
		UserMessage: "🚫 Доступ запрещен. У вас нет прав администратора.",
		Severity:    SeverityLow,
		Retryable:   false,
	}
}
