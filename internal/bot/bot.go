// Package bot wires the Telegram surface: router, dispatcher, middlewares,
// and handler registration.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v3"

	"github.com/orderdesk/orderdesk-bot/internal/bot/handlers"
	"github.com/orderdesk/orderdesk-bot/internal/bot/keyboard"
	apperrors "github.com/orderdesk/orderdesk-bot/internal/errors"
	"github.com/orderdesk/orderdesk-bot/internal/idempotency"
	"github.com/orderdesk/orderdesk-bot/internal/ratelimit"
	"github.com/orderdesk/orderdesk-bot/internal/repository"
	"github.com/orderdesk/orderdesk-bot/pkg/config"
)

// NewTelebot builds the underlying telebot instance from the configuration.
func NewTelebot(cfg config.Config) (*tele.Bot, error) {
	settings := tele.Settings{
		Token: cfg.Bot.Token,
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &tele.Webhook{
			Listen: cfg.Server.Port,
		}
	} else {
		settings.Poller = &tele.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	tb, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	return tb, nil
}

// Deps carries everything the bot surface needs.
type Deps struct {
	Config      config.Config
	Log         *slog.Logger
	ErrHandler  *apperrors.Handler
	Idempotency *idempotency.Manager
	Limiter     *ratelimit.Limiter
	Profiles    *repository.ProfileRepository

	Intake  *handlers.IntakeHandlers
	Orders  *handlers.OrderHandlers
	Payment *handlers.PaymentHandlers
	Admin   *handlers.AdminHandlers

	Dispatcher *Dispatcher
}

// Bot owns the telebot event loop and the routing layers above it.
type Bot struct {
	telebot *tele.Bot
	router  *Router
	log     *slog.Logger
}

// New assembles the router, registers all handlers, and binds the telebot
// events.
func New(tb *tele.Bot, deps Deps) *Bot {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	router := NewRouter(deps.Dispatcher, log)

	b := &Bot{
		telebot: tb,
		router:  router,
		log:     log,
	}

	b.setupMiddlewares(deps)
	b.setupRoutes(deps)
	b.registerTelebotHandlers()

	return b
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot instance.
func (b *Bot) Telebot() *tele.Bot {
	return b.telebot
}

func (b *Bot) setupMiddlewares(deps Deps) {
	b.router.Use(RecoveryMiddleware(b.log, deps.ErrHandler))
	b.router.Use(IdempotencyMiddleware(deps.Idempotency, b.log))
	b.router.Use(ErrorHandlingMiddleware(deps.ErrHandler))
	b.router.Use(LoggingMiddleware(b.log))

	if deps.Config.RateLimit.Enabled {
		b.router.Use(RateLimitMiddleware(deps.Limiter, b.log))
	}

	b.router.Use(ProfileUpsertMiddleware(deps.Profiles, b.log))
	b.router.Use(MetricsMiddleware)
}

func (b *Bot) setupRoutes(deps Deps) {
	b.router.RegisterCommand(CommandStart, deps.Intake.Start)
	b.router.RegisterCommand(CommandHelp, deps.Intake.Help)
	b.router.RegisterCommand(CommandAdmin, deps.Admin.Menu)
	b.router.RegisterCommand(CommandCancel, func(c tele.Context) error {
		if c.Sender() != nil {
			deps.Admin.CancelPending(context.Background(), c.Sender().ID)
		}
		return deps.Intake.Cancel(c)
	})

	b.router.RegisterCallback(keyboard.ActionSelectType+":", deps.Intake.SelectType)
	b.router.RegisterCallback(keyboard.ActionConfirmOrder, deps.Intake.Confirm)
	b.router.RegisterCallback(keyboard.ActionCancelOrder, deps.Intake.CancelDraft)

	b.router.RegisterCallback(keyboard.ActionClaim+":", deps.Orders.Claim)
	b.router.RegisterCallback(keyboard.ActionDecline+":", deps.Orders.StartDecline)
	b.router.RegisterCallback(keyboard.ActionComplete+":", deps.Orders.Complete)

	b.router.RegisterCallback(keyboard.ActionApprovePayment+":", deps.Payment.Approve)
	b.router.RegisterCallback(keyboard.ActionRejectPayment+":", deps.Payment.Reject)
	b.router.RegisterCallback(keyboard.ActionUploadReceipt+":", deps.Payment.ArmUpload)

	b.router.RegisterCallback(keyboard.ActionAdminMenu, deps.Admin.Menu)
	b.router.RegisterCallback(keyboard.ActionAdminStats, deps.Admin.Stats)
	b.router.RegisterCallback(keyboard.ActionAdminBroadcast, deps.Admin.StartBroadcast)
	b.router.RegisterCallback(keyboard.ActionAdminAdd, deps.Admin.StartAddAdmin)
	b.router.RegisterCallback(keyboard.ActionAdminRemove, deps.Admin.RemoveMenu)
	b.router.RegisterCallback(keyboard.ActionRemoveAdmin+":", deps.Admin.RemoveAdmin)
	b.router.RegisterCallback(keyboard.ActionAdminList, deps.Admin.ListAdmins)
	b.router.RegisterCallback(keyboard.ActionAdminComplete, deps.Admin.CompleteMenu)

	b.router.SetDefault(handlers.Fallback())
}

func (b *Bot) registerTelebotHandlers() {
	if b.telebot == nil {
		return
	}

	events := []string{
		tele.OnText,
		tele.OnCallback,
		tele.OnDocument,
		tele.OnPhoto,
		tele.OnAudio,
		tele.OnVoice,
		tele.OnVideo,
		tele.OnVideoNote,
		tele.OnSticker,
	}

	for _, event := range events {
		b.telebot.Handle(event, b.router.Route)
	}
}
