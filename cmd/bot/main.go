package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orderdesk/orderdesk-bot/internal/admin"
	"github.com/orderdesk/orderdesk-bot/internal/bot"
	"github.com/orderdesk/orderdesk-bot/internal/bot/handlers"
	"github.com/orderdesk/orderdesk-bot/internal/bot/keyboard"
	"github.com/orderdesk/orderdesk-bot/internal/database"
	apperrors "github.com/orderdesk/orderdesk-bot/internal/errors"
	"github.com/orderdesk/orderdesk-bot/internal/health"
	"github.com/orderdesk/orderdesk-bot/internal/idempotency"
	"github.com/orderdesk/orderdesk-bot/internal/intake"
	"github.com/orderdesk/orderdesk-bot/internal/jobs"
	"github.com/orderdesk/orderdesk-bot/internal/lifecycle"
	"github.com/orderdesk/orderdesk-bot/internal/order"
	"github.com/orderdesk/orderdesk-bot/internal/ratelimit"
	"github.com/orderdesk/orderdesk-bot/internal/repository"
	"github.com/orderdesk/orderdesk-bot/internal/transport"
	"github.com/orderdesk/orderdesk-bot/pkg/config"
	"github.com/orderdesk/orderdesk-bot/pkg/graceful"
	"github.com/orderdesk/orderdesk-bot/pkg/logger"
	"github.com/orderdesk/orderdesk-bot/pkg/metrics"
	appredis "github.com/orderdesk/orderdesk-bot/pkg/redis"

	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		slog.Error("bot exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, _, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			slog.Error("failed to init sentry", slog.Any("error", err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	log := logger.New(*cfg)
	log.Info("starting order desk bot", slog.String("env", cfg.AppEnv))

	// Postgres.
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
		return err
	}

	// Redis.
	rdb, err := appredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	kv := appredis.NewMetricsClient(rdb)

	// Repositories.
	orderRepo := repository.NewOrderRepository(db, log)
	profileRepo := repository.NewProfileRepository(db, log)
	adminRepo := repository.NewAdminRepository(db, log)

	if err := adminRepo.Seed(ctx, cfg.Admin.BootstrapID); err != nil {
		return err
	}

	// Draft storage backend.
	var draftStore intake.Storage
	if cfg.Drafts.Backend == "postgres" {
		draftStore = repository.NewDraftRepository(db, log)
	} else {
		draftStore = intake.NewRedisStorage(kv, cfg.Drafts.TTL, log)
	}

	machine := intake.NewMachine(draftStore, log, rdb.Client)
	intake.RegisterTransitionRecorder(metrics.RecordIntakeTransition)

	// Services.
	orderService := order.NewService(orderRepo, log)
	correlator := order.NewCorrelator()
	receiptBinder := order.NewReceiptBinder(kv, log)
	pendingStore := admin.NewPendingStore(kv, log)

	// Telegram surface.
	tb, err := bot.NewTelebot(*cfg)
	if err != nil {
		return err
	}

	tr := transport.NewTelebotTransport(tb, log)
	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)
	idem := idempotency.NewManager(rdb.Client, 0, log)
	limiter := ratelimit.NewLimiter(rdb.Client, cfg.RateLimit.Limit, cfg.RateLimit.Window, log)
	kb := keyboard.NewBuilder(log)

	// Background jobs.
	jobManager := jobs.NewManager(cfg.Redis, log)
	broadcastHandler := jobs.NewBroadcastHandler(profileRepo, tr, log)
	sweepHandler := jobs.NewSweepHandler(correlator, 24*time.Hour, log)
	if err := jobManager.Start(broadcastHandler, sweepHandler); err != nil {
		return err
	}

	// Handlers.
	intakeHandlers := handlers.NewIntakeHandlers(machine, orderService, adminRepo, tr, kb, cfg.Bot.GroupChatID, log)
	orderHandlers := handlers.NewOrderHandlers(orderService, correlator, adminRepo, tr, kb, cfg.Payment.CardNumber, log)
	paymentHandlers := handlers.NewPaymentHandlers(orderService, receiptBinder, adminRepo, tr, kb, cfg.Bot.GroupChatID, cfg.Payment.CardNumber, log)
	adminHandlers := handlers.NewAdminHandlers(orderService, adminRepo, profileRepo, pendingStore, jobManager, kb, log)

	dispatcher := bot.NewDispatcher(machine, intakeHandlers, orderHandlers, paymentHandlers, adminHandlers, log)

	b := bot.New(tb, bot.Deps{
		Config:      *cfg,
		Log:         log,
		ErrHandler:  errHandler,
		Idempotency: idem,
		Limiter:     limiter,
		Profiles:    profileRepo,
		Intake:      intakeHandlers,
		Orders:      orderHandlers,
		Payment:     paymentHandlers,
		Admin:       adminHandlers,
		Dispatcher:  dispatcher,
	})

	// Metrics and health HTTP listener.
	collector := metrics.NewCollector(orderRepo, log, time.Minute)
	go collector.Run(ctx)

	checker := health.NewChecker(db, rdb.Client, log)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", checker.LivenessHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())

	httpServer := graceful.NewServer(log, &http.Server{
		Addr:    cfg.Server.Port,
		Handler: logger.Middleware(mux),
	}, cfg.Server.ShutdownTimeout)

	go func() {
		if err := httpServer.ListenAndServe(ctx); err != nil {
			log.Error("http server stopped", slog.Any("error", err))
		}
	}()

	// Ordered shutdown.
	shutdown := lifecycle.NewManager(cfg.Server.ShutdownTimeout, log)
	shutdown.Register("jobs", func(context.Context) error {
		jobManager.Shutdown()
		return nil
	})
	shutdown.Register("bot", func(context.Context) error {
		b.Stop()
		return nil
	})

	go b.Start()
	log.Info("order desk bot started")

	<-ctx.Done()

	shutdown.Shutdown()
	log.Info("order desk bot stopped")

	return nil
}
