// Package lifecycle coordinates ordered shutdown of the bot's components.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Hook is a named shutdown step.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Manager runs registered hooks in reverse registration order, so the last
// component started is the first stopped.
type Manager struct {
	mu      sync.Mutex
	hooks   []Hook
	timeout time.Duration
	log     *slog.Logger
}

// NewManager creates a shutdown manager with the given per-run timeout.
func NewManager(timeout time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Manager{timeout: timeout, log: log}
}

// Register appends a shutdown hook.
func (m *Manager) Register(name string, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = append(m.hooks, Hook{Name: name, Fn: fn})
}

// Shutdown runs every hook in reverse order under a shared deadline. A
// failing hook is logged and the rest still run.
func (m *Manager) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.mu.Lock()
	hooks := make([]Hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]

		m.log.Info("shutting down component", slog.String("component", hook.Name))
		if err := hook.Fn(ctx); err != nil {
			m.log.Error("component shutdown failed",
				slog.String("component", hook.Name),
				slog.Any("error", err),
			)
		}
	}
}
