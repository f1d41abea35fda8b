package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/orderdesk/orderdesk-bot/pkg/config"
)

// Manager owns the asynq client, worker server, and scheduler.
type Manager struct {
	client    *asynq.Client
	server    *asynq.Server
	scheduler *asynq.Scheduler
	log       *slog.Logger
}

// NewManager wires asynq against the shared Redis instance.
func NewManager(cfg config.RedisConfig, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			"default": 1,
		},
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	return &Manager{
		client:    asynq.NewClient(redisOpt),
		server:    server,
		scheduler: scheduler,
		log:       log,
	}
}

// EnqueueBroadcast queues a fan-out of the given announcement.
func (m *Manager) EnqueueBroadcast(ctx context.Context, text string, initiatorID int64) error {
	task, err := NewBroadcastTask(text, initiatorID)
	if err != nil {
		return err
	}

	info, err := m.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue broadcast: %w", err)
	}

	m.log.Info("broadcast enqueued",
		slog.String("task_id", info.ID),
		slog.Int64("initiator_id", initiatorID),
	)

	return nil
}

// Start registers the handlers and launches the worker and scheduler in the
// background.
func (m *Manager) Start(broadcast *BroadcastHandler, sweep *SweepHandler) error {
	mux := asynq.NewServeMux()
	mux.Handle(TypeBroadcast, broadcast)
	mux.Handle(TypeCorrelationSweep, sweep)

	if _, err := m.scheduler.Register("@every 1h", NewCorrelationSweepTask()); err != nil {
		return fmt.Errorf("register correlation sweep: %w", err)
	}

	if err := m.server.Start(mux); err != nil {
		return fmt.Errorf("start job server: %w", err)
	}

	if err := m.scheduler.Start(); err != nil {
		m.server.Shutdown()
		return fmt.Errorf("start job scheduler: %w", err)
	}

	m.log.Info("job manager started")

	return nil
}

// Shutdown stops the scheduler, drains the worker, and closes the client.
func (m *Manager) Shutdown() {
	m.scheduler.Shutdown()
	m.server.Shutdown()

	if err := m.client.Close(); err != nil {
		m.log.Error("failed to close job client", "error", err)
	}

	m.log.Info("job manager stopped")
}
