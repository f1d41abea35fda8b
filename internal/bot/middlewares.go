package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/bot/handlers"
	"github.com/orderdesk/orderdesk-bot/internal/domain"
	apperrors "github.com/orderdesk/orderdesk-bot/internal/errors"
	"github.com/orderdesk/orderdesk-bot/internal/idempotency"
	"github.com/orderdesk/orderdesk-bot/internal/ratelimit"
	"github.com/orderdesk/orderdesk-bot/internal/repository"
	"github.com/orderdesk/orderdesk-bot/pkg/metrics"
)

// RecoveryMiddleware catches panics, reports them via the centralized
// handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)

					userMsg := "Произошла непредвиденная ошибка. Попробуйте ещё раз позже или начните заново с /start."
					if errHandler != nil {
						appErr := apperrors.NewDatabaseError(fmt.Errorf("panic recovered: %v", r))
						if msg, _ := errHandler.Handle(context.Background(), appErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// IdempotencyMiddleware drops redelivered updates.
func IdempotencyMiddleware(manager *idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c tele.Context) error {
			if manager == nil || c == nil {
				return next(c)
			}

			updateID := c.Update().ID
			if updateID == 0 {
				return next(c)
			}

			first, err := manager.FirstSeen(context.Background(), updateID)
			if err != nil {
				// Degrade to at-least-once rather than dropping the update.
				return next(c)
			}
			if !first {
				log.Info("duplicate update dropped", slog.Int("update_id", updateID))
				return nil
			}

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for
// handler failures.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c tele.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := "Произошла ошибка. Попробуйте позже"
			if errHandler != nil {
				if msg, _ := errHandler.Handle(context.Background(), err); msg != "" {
					userMsg = msg
				}
			}

			if c != nil {
				_ = c.Send(userMsg)
			}

			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c tele.Context) error {
			start := time.Now()
			userID := int64(0)
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			action := actionOf(c)

			log.Info("handling update", slog.Int64("user_id", userID), slog.String("action", action))
			err := next(c)
			log.Info("handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// ProfileUpsertMiddleware keeps the broadcast roster current: every
// private-chat update refreshes the sender's profile and chat id.
func ProfileUpsertMiddleware(profiles *repository.ProfileRepository, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c tele.Context) error {
			if profiles == nil || c == nil || c.Sender() == nil {
				return next(c)
			}

			chat := c.Chat()
			if chat == nil || chat.Type != tele.ChatPrivate {
				return next(c)
			}

			profile := domain.Profile{
				UserID:    c.Sender().ID,
				Username:  c.Sender().Username,
				FirstName: c.Sender().FirstName,
				LastName:  c.Sender().LastName,
				ChatID:    chat.ID,
			}

			if err := profiles.Upsert(context.Background(), profile); err != nil {
				log.Error("failed to upsert profile",
					slog.Int64("user_id", profile.UserID),
					slog.Any("error", err),
				)
			}

			return next(c)
		}
	}
}

// MetricsMiddleware records counters and latency per update.
func MetricsMiddleware(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c tele.Context) error {
		start := time.Now()
		action := actionKind(c)

		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordUpdate(action, status)
		metrics.ObserveHandlerDuration(action, time.Since(start))

		return err
	}
}

// RateLimitMiddleware throttles per-user input.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c tele.Context) error {
			if limiter == nil || c == nil || c.Sender() == nil {
				return next(c)
			}

			allowed, err := limiter.Allow(context.Background(), c.Sender().ID)
			if err != nil {
				return next(c)
			}
			if !allowed {
				log.Warn("rate limit exceeded", slog.Int64("user_id", c.Sender().ID))
				return nil
			}

			return next(c)
		}
	}
}

func actionOf(c tele.Context) string {
	if c == nil {
		return ""
	}

	if cb := c.Callback(); cb != nil {
		return cb.Data
	}

	return c.Text()
}

func actionKind(c tele.Context) string {
	if c == nil {
		return "unknown"
	}

	if c.Callback() != nil {
		return "callback"
	}
	if text := c.Text(); len(text) > 0 && text[0] == '/' {
		return "command"
	}

	return "message"
}
