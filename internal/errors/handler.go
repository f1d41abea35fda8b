package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/orderdesk/orderdesk-bot/pkg/logger"
)

// Handler centralizes logging and Sentry reporting of handler failures.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle logs err according to its severity and returns the message that
// should be shown to the acting user. Low-severity guard failures (already
// processed, validation, authorization) are not logged as errors.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}

	if ctx == nil {
		ctx = context.Background()
	}

	log := h.log
	if log == nil {
		log = slog.Default()
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		attrs := []any{
			slog.String("code", appErr.Code),
			slog.String("message", appErr.Message),
			slog.String("severity", string(appErr.Severity)),
		}

		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			attrs = append(attrs, slog.String("correlation_id", correlationID))
		}

		switch appErr.Severity {
		case SeverityLow:
			log.Info("handled application error", attrs...)
		case SeverityMedium:
			log.Warn("application error", attrs...)
		default:
			log.Error("application error", attrs...)
		}

		if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
			h.sendToSentry(err)
		}

		userMessage := appErr.UserMessage
		if userMessage == "" {
			userMessage = genericUserMessage
		}

		return userMessage, appErr.Retryable
	}

	args := []any{
		slog.String("message", err.Error()),
		slog.String("severity", string(SeverityHigh)),
	}

	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		args = append(args, slog.String("correlation_id", correlationID))
	}

	log.Error("unknown error", args...)

	if h.sentryEnabled {
		h.sendToSentry(err)
	}

	return genericUserMessage, false
}

const genericUserMessage = "Произошла непредвиденная ошибка. Попробуйте ещё раз позже или начните заново с /start."

func (h *Handler) sendToSentry(err error) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		var appErr *AppError
		if errors.As(err, &appErr) && appErr != nil {
			if appErr.Code != "" {
				scope.SetTag("code", appErr.Code)
			}

			if appErr.Severity != "" {
				scope.SetTag("severity", string(appErr.Severity))
			}
		}

		sentry.CaptureException(err)
	})
}
